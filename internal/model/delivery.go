package model

import "time"

type DeliveryOutcome string

const (
	OutcomeDelivered DeliveryOutcome = "delivered"
	OutcomeFailed    DeliveryOutcome = "failed"
	// OutcomeSkipped marks a candidate whose terminal write was a no-op
	// because a concurrent run already transitioned the record.
	OutcomeSkipped DeliveryOutcome = "skipped"
)

func (o DeliveryOutcome) String() string { return string(o) }

func (o DeliveryOutcome) Valid() bool {
	return o == OutcomeDelivered || o == OutcomeFailed || o == OutcomeSkipped
}

// DeliveryRecord is one row of the delivery audit log (ClickHouse).
type DeliveryRecord struct {
	CapsuleID string          `db:"capsule_id"`
	OwnerID   int64           `db:"owner_id"`
	Recipient string          `db:"recipient"`
	Outcome   DeliveryOutcome `db:"outcome"`
	Error     string          `db:"error"`
	RunAt     time.Time       `db:"run_at"`
}
