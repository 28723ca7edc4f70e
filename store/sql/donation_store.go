package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-donations/core"
	repository "github.com/goliatone/go-repository-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// SummaryCacheKey is the cache entry holding campaign totals.
const SummaryCacheKey = "go-donations::summary::v1"

// DonationStore is the donations ledger. transaction_id is unique, so a
// replayed capture never produces a second row.
type DonationStore struct {
	db    bun.IDB
	repo  repository.Repository[*donationRecord]
	cache repositorycache.CacheService
	now   func() time.Time
	inTx  bool
}

func NewDonationStore(db *bun.DB) (*DonationStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*donationRecord](db, donationHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid donation repository wiring: %w", err)
		}
	}
	return &DonationStore{
		db:   db,
		repo: repo,
		now:  defaultNow,
	}, nil
}

func (s *DonationStore) withDB(db bun.IDB) *DonationStore {
	return &DonationStore{db: db, repo: s.repo, cache: s.cache, now: s.now, inTx: true}
}

func (s *DonationStore) InsertIfAbsent(ctx context.Context, donation core.Donation) (core.InsertOutcome, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("sqlstore: donation store is not configured")
	}
	if strings.TrimSpace(donation.TransactionID) == "" {
		return "", fmt.Errorf("sqlstore: transaction id is required")
	}
	record := newDonationRecord(donation, s.now().UTC())
	res, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (transaction_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return "", err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if affected == 0 {
		return core.InsertOutcomeAlreadyExists, nil
	}
	return core.InsertOutcomeInserted, nil
}

func (s *DonationStore) Get(ctx context.Context, transactionID string) (core.Donation, error) {
	if s == nil || s.repo == nil {
		return core.Donation{}, fmt.Errorf("sqlstore: donation store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("transaction_id", "=", strings.TrimSpace(transactionID)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Donation{}, err
	}
	if len(records) == 0 {
		return core.Donation{}, core.ErrDonationNotFound
	}
	return records[0].toDomain(), nil
}

func (s *DonationStore) List(ctx context.Context, filter core.DonationFilter) (core.DonationPage, error) {
	if s == nil || s.repo == nil {
		return core.DonationPage{}, fmt.Errorf("sqlstore: donation store is not configured")
	}
	filter = filter.Normalize()
	records, total, err := s.repo.List(ctx,
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(filter.PerPage, filter.Offset()),
	)
	if err != nil {
		return core.DonationPage{}, err
	}
	items := make([]core.Donation, 0, len(records))
	for _, record := range records {
		items = append(items, record.toDomain())
	}
	return core.DonationPage{
		Items:   items,
		Page:    filter.Page,
		PerPage: filter.PerPage,
		Total:   total,
	}, nil
}

// Summary totals the ledger. Outside a transaction the result is served from
// the summary cache when one is configured.
func (s *DonationStore) Summary(ctx context.Context) (core.DonationSummary, error) {
	if s == nil || s.db == nil {
		return core.DonationSummary{}, fmt.Errorf("sqlstore: donation store is not configured")
	}
	if s.cache == nil || s.inTx {
		return s.loadSummary(ctx)
	}
	return repositorycache.GetOrFetch(ctx, s.cache, SummaryCacheKey, s.loadSummary)
}

func (s *DonationStore) loadSummary(ctx context.Context) (core.DonationSummary, error) {
	var total decimal.NullDecimal
	var count int
	err := s.db.NewSelect().
		Model((*donationRecord)(nil)).
		ColumnExpr("COALESCE(SUM(?TableAlias.amount), 0)").
		ColumnExpr("COUNT(*)").
		Scan(ctx, &total, &count)
	if err != nil {
		return core.DonationSummary{}, err
	}
	summary := core.DonationSummary{Total: decimal.Zero, Count: count}
	if total.Valid {
		summary.Total = total.Decimal.Round(2)
	}
	return summary, nil
}

func (s *DonationStore) invalidateSummary(ctx context.Context) error {
	if s == nil || s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, SummaryCacheKey)
}

var _ core.DonationLedger = (*DonationStore)(nil)
