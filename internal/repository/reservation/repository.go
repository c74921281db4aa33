package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/foundry/internal/database"
	"github.com/Additional-Code/foundry/internal/entity"
	"github.com/Additional-Code/foundry/internal/identifier"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/foundry/repository/reservation")

// Repository persists identifier reservations. All operations run against
// the writer: the table is the synchronization point for concurrent
// allocators and must never observe replica lag.
type Repository struct {
	db *bun.DB
}

// NewRepository wires the reservation repository.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{db: conns.Writer}
}

// Insert creates a reservation row. A uniqueness violation on the identifier
// column is reported as identifier.ErrConflict for the allocator's retry
// loop; any other failure passes through untouched.
func (r *Repository) Insert(ctx context.Context, res *entity.IdentifierReservation) error {
	if res == nil {
		return errors.New("nil reservation")
	}
	ctx, span := repoTracer.Start(ctx, "ReservationRepository.Insert", trace.WithAttributes(attribute.String("identifier", res.Identifier)))
	defer span.End()

	_, err := r.db.NewInsert().Model(res).Exec(ctx)
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		span.SetStatus(codes.Error, "conflict")
		return fmt.Errorf("insert reservation %s: %w", res.Identifier, identifier.ErrConflict)
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "insert failed")
	return err
}

// MaxActiveSequence returns the highest sequence among unused, unexpired
// reservations for the period prefix, or zero when none are active.
func (r *Repository) MaxActiveSequence(ctx context.Context, prefix string, now time.Time) (int, error) {
	ctx, span := repoTracer.Start(ctx, "ReservationRepository.MaxActiveSequence", trace.WithAttributes(attribute.String("identifier.prefix", prefix)))
	defer span.End()

	var max int
	err := r.db.NewSelect().Model((*entity.IdentifierReservation)(nil)).
		ColumnExpr("COALESCE(MAX(sequence_number), 0)").
		Where("period_prefix = ?", prefix).
		Where("is_used = ?", false).
		Where("expires_at > ?", now).
		Scan(ctx, &max)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return 0, err
	}
	return max, nil
}

// MarkUsed flips the reservation to used, recording when. Idempotent; the
// returned bool reports whether a matching row existed.
func (r *Repository) MarkUsed(ctx context.Context, id string, now time.Time) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "ReservationRepository.MarkUsed", trace.WithAttributes(attribute.String("identifier", id)))
	defer span.End()

	res, err := r.db.NewUpdate().Model((*entity.IdentifierReservation)(nil)).
		Set("is_used = ?", true).
		Set("used_at = ?", now).
		Where("identifier = ?", id).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// DeleteExpired removes unused reservations past their expiry, freeing their
// sequence numbers. Used rows are never deleted; they stay as an audit trail.
func (r *Repository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "ReservationRepository.DeleteExpired")
	defer span.End()

	res, err := r.db.NewDelete().Model((*entity.IdentifierReservation)(nil)).
		Where("is_used = ?", false).
		Where("expires_at < ?", now).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return 0, err
	}
	return res.RowsAffected()
}

// GetByIdentifier fetches a reservation row, mostly for diagnostics and tests.
func (r *Repository) GetByIdentifier(ctx context.Context, id string) (*entity.IdentifierReservation, error) {
	res := new(entity.IdentifierReservation)
	err := r.db.NewSelect().Model(res).Where("identifier = ?", id).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// isUniqueViolation recognizes a unique-constraint failure across the
// supported drivers: postgres (SQLSTATE 23505), mysql (error 1062), and
// sqlite (message match; mattn exposes no stable typed code through
// database/sql).
func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.Field('C') == "23505" {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
