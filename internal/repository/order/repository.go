package order

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/foundry/internal/database"
	"github.com/Additional-Code/foundry/internal/entity"
	"github.com/Additional-Code/foundry/internal/identifier"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/foundry/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// Repository encapsulates read/write access for orders.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create persists a new order using the write connection.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.id", order.OrderID)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(order).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// Update persists the mutable order fields (department, stamps, status,
// scrap record) keyed by the identifier.
func (r *Repository) Update(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Update", trace.WithAttributes(attribute.String("order.id", order.OrderID)))
	defer span.End()

	res, err := r.writer.NewUpdate().Model(order).WherePK().Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		span.SetStatus(codes.Error, "not found")
		return ErrNotFound
	}
	return nil
}

// GetByID fetches an order by identifier using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).Where("order_id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// GetActive lists every order still in the pipeline (not scrapped or
// cancelled), the working set for dashboard aggregations.
func (r *Repository) GetActive(ctx context.Context) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetActive")
	defer span.End()

	var orders []entity.Order
	err := r.reader.NewSelect().Model(&orders).
		Where("status NOT IN (?)", bun.In([]string{entity.StatusScrapped, entity.StatusCancelled})).
		Order("order_id ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// GetByDepartment lists non-terminal orders currently sitting in dept.
func (r *Repository) GetByDepartment(ctx context.Context, dept string) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByDepartment", trace.WithAttributes(attribute.String("department", dept)))
	defer span.End()

	var orders []entity.Order
	err := r.reader.NewSelect().Model(&orders).
		Where("current_department = ?", dept).
		Where("status NOT IN (?)", bun.In([]string{entity.StatusScrapped, entity.StatusCancelled})).
		Order("order_id ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// MaxSequence reports the highest sequence number already issued for the
// period prefix among persisted orders. Candidate identifiers are parsed
// rather than compared lexically so sequences past the standard pad width
// still order correctly. Reads go to the writer: the allocator needs its own
// writes visible immediately, not replica-lagged.
func (r *Repository) MaxSequence(ctx context.Context, prefix string) (int, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.MaxSequence", trace.WithAttributes(attribute.String("identifier.prefix", prefix)))
	defer span.End()

	var ids []string
	err := r.writer.NewSelect().Model((*entity.Order)(nil)).
		Column("order_id").
		Where("order_id LIKE ?", prefix+"%").
		Scan(ctx, &ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return 0, err
	}

	max := 0
	for _, id := range ids {
		p, seq, ok := identifier.ParseIdentifier(id)
		if ok && p == prefix && seq > max {
			max = seq
		}
	}
	return max, nil
}
