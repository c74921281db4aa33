package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// IdentifierReservation is a short-lived claim on an order identifier before
// the owning order is durably created. The unique primary key on Identifier
// is what makes concurrent allocation safe: a second reservation attempt for
// the same identifier fails at the database, not in application logic.
type IdentifierReservation struct {
	bun.BaseModel `bun:"table:identifier_reservations"`

	Identifier     string     `bun:"identifier,pk"`
	PeriodPrefix   string     `bun:"period_prefix,notnull"`
	SequenceNumber int        `bun:"sequence_number,notnull"`
	ReservedAt     time.Time  `bun:"reserved_at,nullzero,notnull"`
	ExpiresAt      time.Time  `bun:"expires_at,nullzero,notnull"`
	IsUsed         bool       `bun:"is_used,notnull,default:false"`
	UsedAt         *time.Time `bun:"used_at"`
}

// Active reports whether the reservation still blocks its sequence number:
// unused and not yet expired at the given instant.
func (r *IdentifierReservation) Active(now time.Time) bool {
	return !r.IsUsed && r.ExpiresAt.After(now)
}
