package model

import (
	"database/sql"
	"strings"
	"time"
)

type CapsuleStatus string

const (
	StatusPending   CapsuleStatus = "pending"
	StatusDelivered CapsuleStatus = "delivered"
	StatusFailed    CapsuleStatus = "failed"
)

func (s CapsuleStatus) String() string {
	return string(s)
}

func (s CapsuleStatus) Valid() bool {
	return s == StatusPending || s == StatusDelivered || s == StatusFailed
}

// Terminal reports whether the status permits no further transitions.
func (s CapsuleStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusFailed
}

// ParseCapsuleStatus normalizes input. Returns (value, true) if valid.
func ParseCapsuleStatus(s string) (CapsuleStatus, bool) {
	st := CapsuleStatus(strings.ToLower(strings.TrimSpace(s)))
	if st.Valid() {
		return st, true
	}
	return "", false
}

// Capsule is the DB entity persisted in the capsules table.
type Capsule struct {
	ID             string         `db:"id"`
	OwnerID        int64          `db:"owner_id"`
	Title          string         `db:"title"`
	Occasion       string         `db:"occasion"`
	Tags           string         `db:"tags"` // comma-separated
	RecipientEmail string         `db:"recipient_email"`
	ScheduledAt    time.Time      `db:"scheduled_at"`
	BodyInline     string         `db:"body_inline"`
	BodyRef        string         `db:"body_ref"` // blob key; empty when body is inline or absent
	Status         CapsuleStatus  `db:"status"`
	DeliveredAt    sql.NullTime   `db:"delivered_at"`
	ErrorMessage   sql.NullString `db:"error_message"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

// Due reports whether the capsule should be picked up by a delivery run at now.
func (c Capsule) Due(now time.Time) bool {
	return c.Status == StatusPending && !c.ScheduledAt.After(now)
}
