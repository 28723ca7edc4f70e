package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-donations/core"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// PendingOrderStore persists half-received orders in donations_temp.
type PendingOrderStore struct {
	db  bun.IDB
	now func() time.Time
	// inTx marks stores bound to a transaction; reads then lock the row on
	// dialects that support it.
	inTx bool
}

func NewPendingOrderStore(db bun.IDB) (*PendingOrderStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &PendingOrderStore{db: db, now: defaultNow}, nil
}

func (s *PendingOrderStore) withDB(db bun.IDB) *PendingOrderStore {
	return &PendingOrderStore{db: db, now: s.now, inTx: true}
}

func (s *PendingOrderStore) UpsertMerge(ctx context.Context, orderID string, patch core.PendingOrderPatch) (core.PendingOrder, error) {
	if s == nil || s.db == nil {
		return core.PendingOrder{}, fmt.Errorf("sqlstore: pending order store is not configured")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return core.PendingOrder{}, fmt.Errorf("sqlstore: order id is required")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return core.PendingOrder{}, fmt.Errorf("sqlstore: invalid pending status %q", *patch.Status)
	}
	now := s.now().UTC()

	record := newPendingOrderRecord(orderID, now)
	record.applyPatch(patch, now)
	insert := s.db.NewInsert().Model(record)
	if columns := patchedColumns(patch); len(columns) == 0 {
		insert = insert.On("CONFLICT (order_id) DO NOTHING")
	} else {
		insert = insert.On("CONFLICT (order_id) DO UPDATE")
		for _, column := range columns {
			insert = insert.Set("? = EXCLUDED.?", bun.Ident(column), bun.Ident(column))
		}
		insert = insert.Set("updated_at = EXCLUDED.updated_at")
	}
	if _, err := insert.Exec(ctx); err != nil {
		return core.PendingOrder{}, err
	}

	stored, found, err := s.find(ctx, orderID)
	if err != nil {
		return core.PendingOrder{}, err
	}
	if !found {
		return core.PendingOrder{}, fmt.Errorf("sqlstore: pending order %q not found after upsert", orderID)
	}
	return stored.toDomain(), nil
}

// patchedColumns lists the donations_temp columns a patch supplies. Columns
// outside the list keep their stored value on conflict.
func patchedColumns(patch core.PendingOrderPatch) []string {
	columns := make([]string, 0, 7)
	if patch.DonorName != nil {
		columns = append(columns, "donor_name")
	}
	if patch.DonorEmail != nil {
		columns = append(columns, "donor_email")
	}
	if patch.DonorAddress != nil {
		columns = append(columns, "donor_address")
	}
	if patch.Amount != nil {
		columns = append(columns, "amount")
	}
	if patch.Currency != nil {
		columns = append(columns, "currency")
	}
	if patch.Status != nil {
		columns = append(columns, "status")
	}
	if len(patch.CaptureData) > 0 {
		columns = append(columns, "capture_data")
	}
	return columns
}

func (s *PendingOrderStore) Get(ctx context.Context, orderID string) (core.PendingOrder, bool, error) {
	if s == nil || s.db == nil {
		return core.PendingOrder{}, false, fmt.Errorf("sqlstore: pending order store is not configured")
	}
	record, found, err := s.find(ctx, strings.TrimSpace(orderID))
	if err != nil || !found {
		return core.PendingOrder{}, false, err
	}
	return record.toDomain(), true, nil
}

func (s *PendingOrderStore) Delete(ctx context.Context, orderID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: pending order store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*pendingOrderRecord)(nil)).
		Where("order_id = ?", strings.TrimSpace(orderID)).
		Exec(ctx)
	return err
}

func (s *PendingOrderStore) ListStale(ctx context.Context, query core.StaleQuery) ([]core.PendingOrder, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: pending order store is not configured")
	}
	limit := query.Limit
	if limit <= 0 {
		limit = 100
	}
	records := []*pendingOrderRecord{}
	sel := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.created_at < ?", query.Before.UTC())
	if query.Captured {
		sel = sel.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("?TableAlias.status = ?", string(core.PendingStatusPendingCapture)).
				WhereOr("?TableAlias.capture_data IS NOT NULL")
		})
	} else {
		sel = sel.
			Where("?TableAlias.status = ?", string(core.PendingStatusPending)).
			Where("?TableAlias.capture_data IS NULL")
	}
	err := sel.
		Order("created_at ASC", "order_id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.PendingOrder, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *PendingOrderStore) find(ctx context.Context, orderID string) (*pendingOrderRecord, bool, error) {
	record := &pendingOrderRecord{}
	query := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.order_id = ?", orderID).
		Limit(1)
	if s.inTx && s.db.Dialect().Name() == dialect.PG {
		query = query.For("UPDATE")
	}
	if err := query.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return record, true, nil
}

var _ core.PendingOrderStore = (*PendingOrderStore)(nil)
