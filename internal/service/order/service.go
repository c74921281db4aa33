package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/foundry/internal/cache"
	"github.com/Additional-Code/foundry/internal/config"
	"github.com/Additional-Code/foundry/internal/entity"
	"github.com/Additional-Code/foundry/internal/identifier"
	"github.com/Additional-Code/foundry/internal/messaging"
	"github.com/Additional-Code/foundry/internal/pipeline"
	repo "github.com/Additional-Code/foundry/internal/repository/order"
	"github.com/Additional-Code/foundry/internal/schedule"
	"github.com/Additional-Code/foundry/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/foundry/service/order")

// Service encapsulates business logic around pipeline orders.
type Service struct {
	repo      *repo.Repository
	allocator *identifier.Allocator
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Client
	messaging messagingConfig

	// now is swappable in tests.
	now func() time.Time
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Allocator  *identifier.Allocator
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		repo:      p.Repository,
		allocator: p.Allocator,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    p.Logger,
		publisher: p.Publisher,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// CreateParams carries the customer and spec fields for a new order.
type CreateParams struct {
	CustomerID   string
	CustomerPO   string
	ModelID      string
	Handedness   string
	Features     string
	IsAdjustable bool
	DueDate      time.Time
}

// Create allocates an identifier, persists the order at the head of the
// pipeline, and marks the reservation used. Identifier contention never
// fails the caller; the allocator degrades to a fallback identifier instead.
func (s *Service) Create(ctx context.Context, params CreateParams) (*entity.Order, error) {
	if params.CustomerID == "" {
		return nil, errorbank.BadRequest("customer id is required")
	}
	if params.DueDate.IsZero() {
		return nil, errorbank.BadRequest("due date is required")
	}

	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(attribute.String("order.customer", params.CustomerID)))
	defer span.End()

	now := s.now()
	orderID, err := s.allocator.Allocate(ctx, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "allocation error")
		return nil, errorbank.Internal("failed to allocate order identifier", errorbank.WithCause(err))
	}
	span.SetAttributes(attribute.String("order.id", orderID))

	order := &entity.Order{
		OrderID:           orderID,
		CustomerID:        params.CustomerID,
		CustomerPO:        params.CustomerPO,
		ModelID:           params.ModelID,
		Handedness:        params.Handedness,
		Features:          params.Features,
		IsAdjustable:      params.IsAdjustable,
		CurrentDepartment: string(pipeline.First()),
		Status:            entity.StatusActive,
		OrderDate:         now,
		DueDate:           params.DueDate,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repo.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}

	// The order is durable; the reservation is now just an audit row.
	s.allocator.MarkUsed(ctx, orderID, s.now())

	s.writeCache(ctx, order)
	s.publishEvent(ctx, eventOrderCreated, order)
	return order, nil
}

// Get retrieves an order by identifier, consulting cache when available.
func (s *Service) Get(ctx context.Context, id string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	if order, err := s.readCache(ctx, id); err == nil {
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.String("id", id), zap.Error(err))
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found", errorbank.WithDetail("order_id", id))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	s.writeCache(ctx, order)
	return order, nil
}

// Progress advances the order to its next department, or to explicitTarget
// when given. Explicit targets may skip or rewind departments; that is the
// manual-correction escape hatch and is audited via the progressed event.
func (s *Service) Progress(ctx context.Context, id string, explicitTarget string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Progress", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.target", explicitTarget),
	))
	defer span.End()

	order, err := s.getForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Terminal() {
		return nil, errorbank.Unprocessable("order is no longer in the pipeline",
			errorbank.WithDetail("order_id", id),
			errorbank.WithDetail("status", order.Status),
		)
	}

	from := order.CurrentDepartment
	if err := pipeline.Advance(order, pipeline.Department(explicitTarget), s.now()); err != nil {
		var invalid *pipeline.ErrInvalidTransition
		if errors.As(err, &invalid) {
			return nil, errorbank.Unprocessable("order cannot be advanced",
				errorbank.WithCause(err),
				errorbank.WithDetail("order_id", id),
				errorbank.WithDetail("current_department", invalid.From),
			)
		}
		return nil, errorbank.Internal("failed to advance order", errorbank.WithCause(err))
	}

	if err := s.persist(ctx, span, order); err != nil {
		return nil, err
	}

	s.logger.Info("order progressed",
		zap.String("order_id", order.OrderID),
		zap.String("from", from),
		zap.String("to", order.CurrentDepartment),
	)
	s.publishEvent(ctx, eventOrderProgressed, order)
	return order, nil
}

// Scrap terminally scraps the order, recording reason, disposition, and
// authorization. The order keeps its department so the scrap record shows
// where it died. Replacement creation is a separate, explicit call.
func (s *Service) Scrap(ctx context.Context, id, reason, disposition, authorization string) (*entity.Order, error) {
	if reason == "" {
		return nil, errorbank.BadRequest("scrap reason is required")
	}

	ctx, span := serviceTracer.Start(ctx, "OrderService.Scrap", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order, err := s.getForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Terminal() {
		return nil, errorbank.Unprocessable("order is already terminal",
			errorbank.WithDetail("order_id", id),
			errorbank.WithDetail("status", order.Status),
		)
	}

	pipeline.Scrap(order, reason, disposition, authorization, s.now())

	if err := s.persist(ctx, span, order); err != nil {
		return nil, err
	}

	s.logger.Info("order scrapped",
		zap.String("order_id", order.OrderID),
		zap.String("department", order.CurrentDepartment),
		zap.String("reason", reason),
	)
	s.publishEvent(ctx, eventOrderScrapped, order)
	return order, nil
}

// CreateReplacement builds a brand-new order replacing a scrapped one: fresh
// identifier, same customer and spec fields, pipeline reset to the first
// department.
func (s *Service) CreateReplacement(ctx context.Context, scrappedID string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.CreateReplacement", trace.WithAttributes(attribute.String("order.replaced", scrappedID)))
	defer span.End()

	scrapped, err := s.getForUpdate(ctx, scrappedID)
	if err != nil {
		return nil, err
	}
	if scrapped.Status != entity.StatusScrapped {
		return nil, errorbank.Unprocessable("only scrapped orders can be replaced",
			errorbank.WithDetail("order_id", scrappedID),
			errorbank.WithDetail("status", scrapped.Status),
		)
	}

	now := s.now()
	newID, err := s.allocator.Allocate(ctx, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "allocation error")
		return nil, errorbank.Internal("failed to allocate replacement identifier", errorbank.WithCause(err))
	}

	replacement := pipeline.BuildReplacement(scrapped, newID, now)
	if err := s.repo.Create(ctx, replacement); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to create replacement order", errorbank.WithCause(err))
	}
	s.allocator.MarkUsed(ctx, newID, s.now())

	s.logger.Info("replacement order created",
		zap.String("order_id", replacement.OrderID),
		zap.String("replaces", scrappedID),
	)
	s.writeCache(ctx, replacement)
	s.publishEvent(ctx, eventOrderCreated, replacement)
	return replacement, nil
}

// PipelineCounts returns in-flight order counts grouped by department.
func (s *Service) PipelineCounts(ctx context.Context) (map[string]int, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.PipelineCounts")
	defer span.End()

	orders, err := s.repo.GetActive(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load active orders", errorbank.WithCause(err))
	}
	return schedule.Counts(orders), nil
}

// PipelineDetails returns the per-department dashboard rows with freshly
// computed schedule verdicts. Nothing is cached; verdicts are derived per
// request.
func (s *Service) PipelineDetails(ctx context.Context) (map[string][]schedule.OrderDetail, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.PipelineDetails")
	defer span.End()

	orders, err := s.repo.GetActive(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load active orders", errorbank.WithCause(err))
	}
	return schedule.Details(orders, s.now()), nil
}

// getForUpdate loads the order from the primary store, bypassing the cache:
// mutations must start from the durable row.
func (s *Service) getForUpdate(ctx context.Context, id string) (*entity.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found", errorbank.WithDetail("order_id", id))
		}
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	return order, nil
}

func (s *Service) persist(ctx context.Context, span trace.Span, order *entity.Order) error {
	if err := s.repo.Update(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to persist order", errorbank.WithCause(err))
	}
	s.writeCache(ctx, order)
	return nil
}

func (s *Service) cacheKey(id string) string {
	return fmt.Sprintf("orders:%s", id)
}

func (s *Service) readCache(ctx context.Context, id string) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, s.cacheKey(id))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) writeCache(ctx context.Context, order *entity.Order) {
	if s.cache == nil || order == nil {
		return
	}
	bytes, err := json.Marshal(order)
	if err != nil {
		s.logger.Warn("orders cache marshal failed", zap.String("id", order.OrderID), zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(order.OrderID), bytes, s.cacheTTL); err != nil {
		s.logger.Warn("orders cache write failed", zap.String("id", order.OrderID), zap.Error(err))
	}
}
