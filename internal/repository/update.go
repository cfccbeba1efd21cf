package repository

import (
	"fmt"
	"strings"
)

// UpdateBuilder composes an UPDATE statement from typed column/value pairs.
// Conditions are first-class: MarkDelivered/MarkFailed express their
// "only while still pending" guard as a Where pair instead of concatenating
// expression strings by hand.
type UpdateBuilder struct {
	table    string
	sets     []string
	setArgs  []any
	conds    []string
	condArgs []any
}

// UpdateTable starts a builder for the given table.
func UpdateTable(table string) *UpdateBuilder {
	return &UpdateBuilder{table: table}
}

// Set adds a `column = ?` assignment.
func (b *UpdateBuilder) Set(column string, value any) *UpdateBuilder {
	b.sets = append(b.sets, column+" = ?")
	b.setArgs = append(b.setArgs, value)
	return b
}

// Where adds a `column = ?` condition; multiple calls combine with AND.
func (b *UpdateBuilder) Where(column string, value any) *UpdateBuilder {
	b.conds = append(b.conds, column+" = ?")
	b.condArgs = append(b.condArgs, value)
	return b
}

// Build returns the statement and its args in SET-then-WHERE order.
// It refuses to build an unconditional update.
func (b *UpdateBuilder) Build() (string, []any, error) {
	if b.table == "" {
		return "", nil, fmt.Errorf("update builder: empty table")
	}
	if len(b.sets) == 0 {
		return "", nil, fmt.Errorf("update builder: no assignments for %s", b.table)
	}
	if len(b.conds) == 0 {
		return "", nil, fmt.Errorf("update builder: no conditions for %s", b.table)
	}

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(b.table)
	sb.WriteString(" SET ")
	sb.WriteString(strings.Join(b.sets, ", "))
	sb.WriteString(" WHERE ")
	sb.WriteString(strings.Join(b.conds, " AND "))

	args := make([]any, 0, len(b.setArgs)+len(b.condArgs))
	args = append(args, b.setArgs...)
	args = append(args, b.condArgs...)

	return sb.String(), args, nil
}
