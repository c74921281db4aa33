// Package identifier issues globally unique, human-readable order
// identifiers. Sequence numbers are derived from durable state on every
// attempt instead of any in-process counter, so allocation stays correct
// across concurrent request handlers with no shared memory.
package identifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/foundry/internal/entity"
)

var allocTracer = otel.Tracer("github.com/Additional-Code/foundry/identifier")

// ErrConflict signals that a reservation insert lost a race on the
// identifier's uniqueness constraint. The allocator consumes it internally;
// it never reaches callers.
var ErrConflict = errors.New("identifier already reserved")

// SequenceSource reports the highest issued sequence number for a period
// prefix among durably persisted records. Zero means none issued yet.
type SequenceSource interface {
	MaxSequence(ctx context.Context, prefix string) (int, error)
}

// ReservationStore is the durable table of tentative identifier claims.
type ReservationStore interface {
	Insert(ctx context.Context, res *entity.IdentifierReservation) error
	MaxActiveSequence(ctx context.Context, prefix string, now time.Time) (int, error)
	MarkUsed(ctx context.Context, id string, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

const (
	defaultTTL         = 5 * time.Minute
	defaultMaxAttempts = 5
)

// Allocator hands out the next free identifier for the current period.
type Allocator struct {
	orders       SequenceSource
	reservations ReservationStore
	ttl          time.Duration
	maxAttempts  int
	logger       *zap.Logger
}

// Option tweaks allocator behavior at construction.
type Option func(*Allocator)

// WithTTL overrides the reservation lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(a *Allocator) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithMaxAttempts overrides the bounded retry count.
func WithMaxAttempts(n int) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

// NewAllocator builds an Allocator over the given sequence source and
// reservation store.
func NewAllocator(orders SequenceSource, reservations ReservationStore, logger *zap.Logger, opts ...Option) *Allocator {
	a := &Allocator{
		orders:       orders,
		reservations: reservations,
		ttl:          defaultTTL,
		maxAttempts:  defaultMaxAttempts,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate reserves and returns the next identifier for the period containing
// now. Races on the reservation table are absorbed by re-reading and
// retrying; when every attempt loses, a timestamp-derived fallback identifier
// is returned rather than failing the caller.
func (a *Allocator) Allocate(ctx context.Context, now time.Time) (string, error) {
	prefix := PeriodCode(now)
	ctx, span := allocTracer.Start(ctx, "Allocator.Allocate", trace.WithAttributes(attribute.String("identifier.prefix", prefix)))
	defer span.End()

	// Opportunistic cleanup. Failure here must not block allocation.
	if _, err := a.reservations.DeleteExpired(ctx, now); err != nil {
		a.logger.Warn("expired reservation sweep failed", zap.Error(err))
	}

	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		candidate, err := a.nextSequence(ctx, prefix, now)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "sequence read failed")
			return "", err
		}

		id := FormatIdentifier(prefix, candidate)
		res := &entity.IdentifierReservation{
			Identifier:     id,
			PeriodPrefix:   prefix,
			SequenceNumber: candidate,
			ReservedAt:     now,
			ExpiresAt:      now.Add(a.ttl),
		}

		err = a.reservations.Insert(ctx, res)
		if err == nil {
			span.SetAttributes(attribute.String("identifier.reserved", id), attribute.Int("identifier.attempt", attempt+1))
			return id, nil
		}
		if errors.Is(err, ErrConflict) {
			// Lost the race. Re-read both sources rather than incrementing
			// locally: a concurrent caller may have claimed a non-adjacent
			// sequence through its own retries.
			a.logger.Debug("identifier conflict, retrying",
				zap.String("identifier", id),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "reservation insert failed")
		return "", err
	}

	fallback := a.fallbackIdentifier(prefix, now)
	a.logger.Warn("identifier allocation exhausted retries, using fallback",
		zap.String("prefix", prefix),
		zap.Int("attempts", a.maxAttempts),
		zap.String("fallback", fallback),
	)
	span.SetAttributes(attribute.String("identifier.fallback", fallback))
	return fallback, nil
}

func (a *Allocator) nextSequence(ctx context.Context, prefix string, now time.Time) (int, error) {
	issued, err := a.orders.MaxSequence(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("read issued sequences: %w", err)
	}
	reserved, err := a.reservations.MaxActiveSequence(ctx, prefix, now)
	if err != nil {
		return 0, fmt.Errorf("read reserved sequences: %w", err)
	}
	if reserved > issued {
		issued = reserved
	}
	return issued + 1, nil
}

// fallbackIdentifier degrades to the period prefix plus truncated unix-time
// digits. Non-sequential, but it cannot collide with a used sequential
// identifier and keeps order creation available under pathological
// contention.
func (a *Allocator) fallbackIdentifier(prefix string, now time.Time) string {
	return fmt.Sprintf("%s%06d", prefix, now.Unix()%1_000_000)
}

// MarkUsed flips the reservation backing id to used so the sweep never
// reclaims it. Idempotent; a missing reservation row is logged but not an
// error, since by this point the order itself is durably created.
func (a *Allocator) MarkUsed(ctx context.Context, id string, now time.Time) {
	found, err := a.reservations.MarkUsed(ctx, id, now)
	if err != nil {
		a.logger.Error("mark reservation used failed", zap.String("identifier", id), zap.Error(err))
		return
	}
	if !found {
		a.logger.Warn("no reservation row to mark used", zap.String("identifier", id))
	}
}

// SweepExpired deletes unused reservations whose TTL has lapsed, freeing
// their sequence numbers for reissue. Safe to run concurrently with Allocate.
func (a *Allocator) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	count, err := a.reservations.DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		a.logger.Info("swept expired identifier reservations", zap.Int64("count", count))
	}
	return count, nil
}
