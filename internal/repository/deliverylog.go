package repository

import (
	"context"

	"github.com/capsulemail/capsuled/internal/model"
	"github.com/jmoiron/sqlx"
)

// DeliveryLogRepository records delivery attempts in ClickHouse for
// operator reporting. Writes are best-effort: the scheduler logs and
// continues if an append fails.
type DeliveryLogRepository interface {
	InsertBatch(ctx context.Context, recs []model.DeliveryRecord) error
	ListByOwner(ctx context.Context, ownerID int64, outcome model.DeliveryOutcome, limit, offset int) ([]model.DeliveryRecord, error)
}

type deliveryLogRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewDeliveryLogRepository(ch *sqlx.DB) DeliveryLogRepository {
	return &deliveryLogRepository{ch: ch}
}

// InsertBatch appends one row per attempted candidate. ClickHouse wants
// batched inserts, so rows go through a single prepared statement per tx.
func (r *deliveryLogRepository) InsertBatch(ctx context.Context, recs []model.DeliveryRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO capsuled.deliveries (capsule_id, owner_id, recipient, outcome, error, run_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx,
			rec.CapsuleID, rec.OwnerID, rec.Recipient,
			rec.Outcome.String(), rec.Error, rec.RunAt.UTC(),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *deliveryLogRepository) ListByOwner(ctx context.Context, ownerID int64, outcome model.DeliveryOutcome, limit, offset int) ([]model.DeliveryRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT capsule_id, owner_id, recipient, outcome, error, run_at
		FROM capsuled.deliveries
		WHERE owner_id = ?
	`
	args := []any{ownerID}

	if outcome != "" {
		q += " AND outcome = ?"
		args = append(args, outcome.String())
	}

	q += " ORDER BY run_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.DeliveryRecord
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
