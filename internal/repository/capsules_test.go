package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/capsulemail/capsuled/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*CapsulesRepositoryImpl, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewCapsulesRepository(sqlx.NewDb(db, "mysql")), mock
}

func capsuleRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "owner_id", "title", "occasion", "tags", "recipient_email",
		"scheduled_at", "body_inline", "body_ref", "status", "delivered_at",
		"error_message", "created_at", "updated_at",
	})
}

func TestFindDueSelectsPendingPastCapsules(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)SELECT .+ FROM capsules\s+WHERE status = \? AND scheduled_at <= \?\s+ORDER BY scheduled_at ASC\s+LIMIT \?`).
		WithArgs("pending", now, 100).
		WillReturnRows(capsuleRows().
			AddRow("cap-1", 1, "t", "", "", "a@example.com",
				now.Add(-time.Hour), "hello", "", "pending", nil, nil, now, now))

	due, err := repo.FindDue(context.Background(), now, 100)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "cap-1", due[0].ID)
	assert.Equal(t, model.StatusPending, due[0].Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindDueDefaultsLimit(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`(?s)SELECT .+ FROM capsules`).
		WithArgs("pending", now, 500).
		WillReturnRows(capsuleRows())

	_, err := repo.FindDue(context.Background(), now, 0)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkDeliveredApplied(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE capsules SET status = \?, delivered_at = \?, updated_at = \? WHERE id = \? AND status = \?`).
		WithArgs("delivered", at, at, "cap-1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := repo.MarkDelivered(context.Background(), "cap-1", at)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkDeliveredNoOpWhenAlreadyTerminal(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Now().UTC()

	mock.ExpectExec(`UPDATE capsules SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := repo.MarkDelivered(context.Background(), "cap-1", at)
	require.NoError(t, err)
	assert.False(t, applied, "terminal record must report a no-op, not an error")
}

func TestMarkFailedAppliedAndTruncatesError(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	long := make([]byte, 600)
	for i := range long {
		long[i] = 'x'
	}
	want := string(long[:512])

	mock.ExpectExec(`UPDATE capsules SET status = \?, error_message = \?, updated_at = \? WHERE id = \? AND status = \?`).
		WithArgs("failed", want, at, "cap-1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := repo.MarkFailed(context.Background(), "cap-1", string(long), at)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePendingGuardsOnStatusAndOwner(t *testing.T) {
	repo, mock := newMockRepo(t)

	c := model.Capsule{
		ID:             "cap-1",
		OwnerID:        7,
		Title:          "new title",
		RecipientEmail: "a@example.com",
		ScheduledAt:    time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		BodyInline:     "new body",
	}

	mock.ExpectExec(`UPDATE capsules SET .+ WHERE id = \? AND owner_id = \? AND status = \?`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := repo.UpdatePending(context.Background(), c)
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestUpdatePendingNoOpWhenTerminal(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE capsules SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := repo.UpdatePending(context.Background(), model.Capsule{
		ID: "cap-1", OwnerID: 7, Title: "t", ScheduledAt: time.Now(),
	})
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestDeletePendingOnly(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`DELETE FROM capsules\s+WHERE id = \? AND owner_id = \? AND status = \?`).
		WithArgs("cap-1", int64(7), "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := repo.DeletePending(context.Background(), "cap-1", 7)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDReturnsNilOnMiss(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`(?s)SELECT .+ FROM capsules\s+WHERE id = \? AND owner_id = \? LIMIT 1`).
		WithArgs("cap-missing", int64(7)).
		WillReturnRows(capsuleRows())

	got, err := repo.GetByID(context.Background(), "cap-missing", 7)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInsertWritesPendingRow(t *testing.T) {
	repo, mock := newMockRepo(t)

	c := model.Capsule{
		ID:             "cap-1",
		OwnerID:        7,
		Title:          "t",
		RecipientEmail: "a@example.com",
		ScheduledAt:    time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		BodyInline:     "hello",
	}

	mock.ExpectExec(`INSERT INTO capsules`).
		WithArgs(c.ID, c.OwnerID, c.Title, c.Occasion, c.Tags, c.RecipientEmail,
			c.ScheduledAt.UTC(), c.BodyInline, c.BodyRef).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Insert(context.Background(), c))
	assert.NoError(t, mock.ExpectationsWereMet())
}
