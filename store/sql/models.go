package sqlstore

import (
	"time"

	"github.com/goliatone/go-donations/core"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type pendingOrderRecord struct {
	bun.BaseModel `bun:"table:donations_temp,alias:dt"`

	ID           string             `bun:"id,pk"`
	OrderID      string             `bun:"order_id,notnull"`
	DonorName    *string            `bun:"donor_name"`
	DonorEmail   *string            `bun:"donor_email"`
	DonorAddress *core.DonorAddress `bun:"donor_address,type:jsonb"`
	Amount       decimal.Decimal    `bun:"amount,notnull"`
	Currency     string             `bun:"currency,notnull"`
	Status       string             `bun:"status,notnull"`
	CaptureData  *string            `bun:"capture_data"`
	CreatedAt    time.Time          `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time          `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type donationRecord struct {
	bun.BaseModel `bun:"table:donations,alias:d"`

	ID            string            `bun:"id,pk"`
	TransactionID string            `bun:"transaction_id,notnull"`
	OrderID       string            `bun:"order_id,notnull"`
	Amount        decimal.Decimal   `bun:"amount,notnull"`
	Currency      string            `bun:"currency,notnull"`
	DonorName     string            `bun:"donor_name,notnull"`
	DonorEmail    string            `bun:"donor_email,notnull"`
	DonorAddress  core.DonorAddress `bun:"donor_address,type:jsonb,notnull"`
	CreatedAt     time.Time         `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type webhookDeliveryRecord struct {
	bun.BaseModel `bun:"table:donation_webhook_deliveries,alias:dwd"`

	ID            string     `bun:"id,pk"`
	ClaimID       *string    `bun:"claim_id"`
	ProviderID    string     `bun:"provider_id,notnull"`
	DeliveryID    string     `bun:"delivery_id,notnull"`
	Status        string     `bun:"status,notnull"`
	Attempts      int        `bun:"attempts,notnull"`
	Payload       []byte     `bun:"payload"`
	LastError     string     `bun:"last_error,notnull"`
	NextAttemptAt *time.Time `bun:"next_attempt_at,nullzero"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type orderLockRecord struct {
	bun.BaseModel `bun:"table:donation_order_locks,alias:dol"`

	OrderID   string    `bun:"order_id,pk"`
	Owner     string    `bun:"owner,notnull"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
