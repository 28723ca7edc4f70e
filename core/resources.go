package core

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// OrderResource is the subset of a PayPal order read from
// CHECKOUT.ORDER.APPROVED. Every field is optional.
type OrderResource struct {
	ID            string          `json:"id"`
	Status        string          `json:"status,omitempty"`
	Payer         *Payer          `json:"payer,omitempty"`
	PurchaseUnits []PurchaseUnit  `json:"purchase_units,omitempty"`
	Raw           json.RawMessage `json:"-"`
}

type Payer struct {
	Name         *PayerName `json:"name,omitempty"`
	EmailAddress string     `json:"email_address,omitempty"`
	PayerID      string     `json:"payer_id,omitempty"`
}

type PayerName struct {
	GivenName string `json:"given_name,omitempty"`
	Surname   string `json:"surname,omitempty"`
}

type PurchaseUnit struct {
	ReferenceID string    `json:"reference_id,omitempty"`
	Amount      *Money    `json:"amount,omitempty"`
	Shipping    *Shipping `json:"shipping,omitempty"`
}

type Money struct {
	CurrencyCode string `json:"currency_code,omitempty"`
	Value        string `json:"value,omitempty"`
}

type Shipping struct {
	Address *DonorAddress `json:"address,omitempty"`
}

// CaptureResource is the subset of a PayPal capture read from
// PAYMENT.CAPTURE.COMPLETED.
type CaptureResource struct {
	ID                string             `json:"id"`
	Status            string             `json:"status,omitempty"`
	Amount            *Money             `json:"amount,omitempty"`
	SupplementaryData *SupplementaryData `json:"supplementary_data,omitempty"`
}

type SupplementaryData struct {
	RelatedIDs *RelatedIDs `json:"related_ids,omitempty"`
}

type RelatedIDs struct {
	OrderID         string `json:"order_id,omitempty"`
	AuthorizationID string `json:"authorization_id,omitempty"`
}

func DecodeOrderResource(raw json.RawMessage) (OrderResource, error) {
	var order OrderResource
	if err := decodeResource(raw, &order); err != nil {
		return OrderResource{}, err
	}
	order.Raw = append(json.RawMessage(nil), raw...)
	return order, nil
}

func DecodeCaptureResource(raw json.RawMessage) (CaptureResource, error) {
	var capture CaptureResource
	if err := decodeResource(raw, &capture); err != nil {
		return CaptureResource{}, err
	}
	return capture, nil
}

func decodeResource(raw json.RawMessage, target any) error {
	if len(raw) == 0 || strings.TrimSpace(string(raw)) == "null" {
		return NewMalformedPayloadError("webhook resource is required", nil)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return NewMalformedPayloadError("webhook resource is not a valid object", err)
	}
	return nil
}

func (o OrderResource) OrderID() string {
	return strings.TrimSpace(o.ID)
}

// DonorName concatenates given name and surname, or "N/A" when either part is
// missing.
func (o OrderResource) DonorName() string {
	if o.Payer == nil || o.Payer.Name == nil {
		return NotAvailable
	}
	given := strings.TrimSpace(o.Payer.Name.GivenName)
	surname := strings.TrimSpace(o.Payer.Name.Surname)
	if given == "" || surname == "" {
		return NotAvailable
	}
	return given + " " + surname
}

func (o OrderResource) DonorEmail() string {
	if o.Payer == nil || strings.TrimSpace(o.Payer.EmailAddress) == "" {
		return NotAvailable
	}
	return strings.TrimSpace(o.Payer.EmailAddress)
}

// DonorAddress reads the first purchase unit shipping address. Each part
// defaults to "" on its own.
func (o OrderResource) DonorAddress() DonorAddress {
	unit, ok := o.firstUnit()
	if !ok || unit.Shipping == nil || unit.Shipping.Address == nil {
		return DonorAddress{}
	}
	address := *unit.Shipping.Address
	return DonorAddress{
		AddressLine1: strings.TrimSpace(address.AddressLine1),
		AdminArea2:   strings.TrimSpace(address.AdminArea2),
		AdminArea1:   strings.TrimSpace(address.AdminArea1),
		PostalCode:   strings.TrimSpace(address.PostalCode),
		CountryCode:  strings.TrimSpace(address.CountryCode),
	}
}

// Amount reads the first purchase unit amount, defaulting to 0 USD.
func (o OrderResource) Amount() (decimal.Decimal, string) {
	unit, ok := o.firstUnit()
	if !ok || unit.Amount == nil {
		return decimal.Zero, DefaultCurrency
	}
	return unit.Amount.Decimal(), unit.Amount.Currency()
}

func (o OrderResource) firstUnit() (PurchaseUnit, bool) {
	if len(o.PurchaseUnits) == 0 {
		return PurchaseUnit{}, false
	}
	return o.PurchaseUnits[0], true
}

func (m *Money) Decimal() decimal.Decimal {
	if m == nil {
		return decimal.Zero
	}
	value, err := decimal.NewFromString(strings.TrimSpace(m.Value))
	if err != nil {
		return decimal.Zero
	}
	return value
}

func (m *Money) Currency() string {
	if m == nil || strings.TrimSpace(m.CurrencyCode) == "" {
		return DefaultCurrency
	}
	return strings.ToUpper(strings.TrimSpace(m.CurrencyCode))
}

func (c CaptureResource) TransactionID() string {
	return strings.TrimSpace(c.ID)
}

func (c CaptureResource) OrderID() string {
	if c.SupplementaryData == nil || c.SupplementaryData.RelatedIDs == nil {
		return ""
	}
	return strings.TrimSpace(c.SupplementaryData.RelatedIDs.OrderID)
}
