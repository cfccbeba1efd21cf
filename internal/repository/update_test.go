package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateBuilderBuildsSetThenWhere(t *testing.T) {
	q, args, err := UpdateTable("capsules").
		Set("status", "delivered").
		Set("updated_at", "2026-03-01").
		Where("id", "cap-1").
		Where("status", "pending").
		Build()
	require.NoError(t, err)

	assert.Equal(t, "UPDATE capsules SET status = ?, updated_at = ? WHERE id = ? AND status = ?", q)
	assert.Equal(t, []any{"delivered", "2026-03-01", "cap-1", "pending"}, args)
}

func TestUpdateBuilderSingleSetAndWhere(t *testing.T) {
	q, args, err := UpdateTable("users").
		Set("status", "blocked").
		Where("id", int64(9)).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "UPDATE users SET status = ? WHERE id = ?", q)
	assert.Equal(t, []any{"blocked", int64(9)}, args)
}

func TestUpdateBuilderRejectsEmptyTable(t *testing.T) {
	_, _, err := UpdateTable("").Set("a", 1).Where("b", 2).Build()
	assert.Error(t, err)
}

func TestUpdateBuilderRejectsNoAssignments(t *testing.T) {
	_, _, err := UpdateTable("capsules").Where("id", "cap-1").Build()
	assert.Error(t, err)
}

func TestUpdateBuilderRejectsUnconditionalUpdate(t *testing.T) {
	_, _, err := UpdateTable("capsules").Set("status", "failed").Build()
	assert.Error(t, err)
}
