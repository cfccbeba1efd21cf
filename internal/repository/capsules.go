package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/capsulemail/capsuled/internal/model"
	"github.com/jmoiron/sqlx"
)

const capsuleColumns = `id, owner_id, title, occasion, tags, recipient_email,
scheduled_at, body_inline, body_ref, status, delivered_at, error_message,
created_at, updated_at`

// errorMessageMax bounds what we persist into error_message.
const errorMessageMax = 512

// CapsulesRepository is the record store adapter for the capsules table.
//
// MarkDelivered and MarkFailed are conditional transitions: they apply only
// while the record is still pending and report (false, nil) when a
// concurrent run got there first. Callers treat that as a no-op, never as
// an error.
type CapsulesRepository interface {
	Insert(ctx context.Context, c model.Capsule) error
	GetByID(ctx context.Context, id string, ownerID int64) (*model.Capsule, error)
	ListByOwner(ctx context.Context, ownerID int64, status model.CapsuleStatus, limit, offset int) ([]model.Capsule, error)

	// FindDue returns pending capsules with scheduled_at <= now, oldest first.
	FindDue(ctx context.Context, now time.Time, limit int) ([]model.Capsule, error)
	MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, id string, errMsg string, at time.Time) (bool, error)

	// UpdatePending and DeletePending refuse to touch terminal capsules.
	UpdatePending(ctx context.Context, c model.Capsule) (bool, error)
	DeletePending(ctx context.Context, id string, ownerID int64) (bool, error)
}

type CapsulesRepositoryImpl struct {
	db *sqlx.DB
}

func NewCapsulesRepository(db *sqlx.DB) *CapsulesRepositoryImpl {
	return &CapsulesRepositoryImpl{db: db}
}

var _ CapsulesRepository = (*CapsulesRepositoryImpl)(nil)

// Insert writes a new capsule row in pending status.
func (r *CapsulesRepositoryImpl) Insert(ctx context.Context, c model.Capsule) error {
	const q = `
		INSERT INTO capsules
		    (id, owner_id, title, occasion, tags, recipient_email, scheduled_at,
		     body_inline, body_ref, status, created_at, updated_at)
		VALUES
		    (?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending', NOW(), NOW())
	`
	_, err := r.db.ExecContext(ctx, q,
		c.ID, c.OwnerID, c.Title, c.Occasion, c.Tags, c.RecipientEmail,
		c.ScheduledAt.UTC(), c.BodyInline, c.BodyRef,
	)
	return err
}

func (r *CapsulesRepositoryImpl) GetByID(ctx context.Context, id string, ownerID int64) (*model.Capsule, error) {
	var c model.Capsule
	err := r.db.GetContext(ctx, &c, `
		SELECT `+capsuleColumns+`
		  FROM capsules
		 WHERE id = ? AND owner_id = ? LIMIT 1
	`, id, ownerID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CapsulesRepositoryImpl) ListByOwner(ctx context.Context, ownerID int64, status model.CapsuleStatus, limit, offset int) ([]model.Capsule, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `SELECT ` + capsuleColumns + ` FROM capsules WHERE owner_id = ?`
	args := []any{ownerID}

	if status != "" {
		q += " AND status = ?"
		args = append(args, status.String())
	}

	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.Capsule
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// FindDue is the due-candidate query backing a scheduler run. Duplicates
// across overlapping runs are acceptable; the conditional transitions below
// make double-processing harmless.
func (r *CapsulesRepositoryImpl) FindDue(ctx context.Context, now time.Time, limit int) ([]model.Capsule, error) {
	if limit <= 0 {
		limit = 500
	}

	var rows []model.Capsule
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+capsuleColumns+`
		  FROM capsules
		 WHERE status = ? AND scheduled_at <= ?
		 ORDER BY scheduled_at ASC
		 LIMIT ?
	`, model.StatusPending.String(), now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkDelivered transitions pending -> delivered. Returns (false, nil) when
// the record is gone or already terminal.
func (r *CapsulesRepositoryImpl) MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) (bool, error) {
	at := deliveredAt.UTC()
	q, args, err := UpdateTable("capsules").
		Set("status", model.StatusDelivered.String()).
		Set("delivered_at", at).
		Set("updated_at", at).
		Where("id", id).
		Where("status", model.StatusPending.String()).
		Build()
	if err != nil {
		return false, err
	}
	return r.execConditional(ctx, q, args)
}

// MarkFailed transitions pending -> failed with the error description.
func (r *CapsulesRepositoryImpl) MarkFailed(ctx context.Context, id string, errMsg string, at time.Time) (bool, error) {
	if len(errMsg) > errorMessageMax {
		errMsg = errMsg[:errorMessageMax]
	}
	q, args, err := UpdateTable("capsules").
		Set("status", model.StatusFailed.String()).
		Set("error_message", errMsg).
		Set("updated_at", at.UTC()).
		Where("id", id).
		Where("status", model.StatusPending.String()).
		Build()
	if err != nil {
		return false, err
	}
	return r.execConditional(ctx, q, args)
}

// UpdatePending rewrites the mutable fields of a capsule that has not been
// delivered yet. Returns (false, nil) when the capsule is missing, owned by
// someone else, or already terminal.
func (r *CapsulesRepositoryImpl) UpdatePending(ctx context.Context, c model.Capsule) (bool, error) {
	q, args, err := UpdateTable("capsules").
		Set("title", c.Title).
		Set("occasion", c.Occasion).
		Set("tags", c.Tags).
		Set("recipient_email", c.RecipientEmail).
		Set("scheduled_at", c.ScheduledAt.UTC()).
		Set("body_inline", c.BodyInline).
		Set("body_ref", c.BodyRef).
		Set("updated_at", time.Now().UTC()).
		Where("id", c.ID).
		Where("owner_id", c.OwnerID).
		Where("status", model.StatusPending.String()).
		Build()
	if err != nil {
		return false, err
	}
	return r.execConditional(ctx, q, args)
}

func (r *CapsulesRepositoryImpl) DeletePending(ctx context.Context, id string, ownerID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM capsules
		 WHERE id = ? AND owner_id = ? AND status = ?
	`, id, ownerID, model.StatusPending.String())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *CapsulesRepositoryImpl) execConditional(ctx context.Context, q string, args []any) (bool, error) {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
