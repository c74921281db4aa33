package order

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/foundry/internal/dto"
	"github.com/Additional-Code/foundry/internal/entity"
	"github.com/Additional-Code/foundry/internal/pipeline"
	"github.com/Additional-Code/foundry/internal/presentation/http/response"
	service "github.com/Additional-Code/foundry/internal/service/order"
	"github.com/Additional-Code/foundry/pkg/errorbank"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/foundry/transport/http/order")

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.POST("", h.create)
	g.GET("/:id", h.getByID)
	g.POST("/:id/progress", h.progress)
	g.POST("/:id/scrap", h.scrap)
	g.POST("/:id/replacement", h.createReplacement)
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		CustomerID   string `json:"customer_id"`
		CustomerPO   string `json:"customer_po"`
		ModelID      string `json:"model_id"`
		Handedness   string `json:"handedness"`
		Features     string `json:"features"`
		IsAdjustable bool   `json:"is_adjustable"`
		DueDate      string `json:"due_date"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	dueDate, err := time.Parse("2006-01-02", payload.DueDate)
	if err != nil {
		return b.WithError(errorbank.BadRequest("due_date must be YYYY-MM-DD", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create", trace.WithAttributes(
		attribute.String("order.customer", payload.CustomerID),
	))
	defer span.End()

	order, err := h.svc.Create(ctx, service.CreateParams{
		CustomerID:   payload.CustomerID,
		CustomerPO:   payload.CustomerPO,
		ModelID:      payload.ModelID,
		Handedness:   payload.Handedness,
		Features:     payload.Features,
		IsAdjustable: payload.IsAdjustable,
		DueDate:      dueDate,
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(toDTO(order)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)
	id := c.Param("id")

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(toDTO(order)).Build()
}

func (h *Handler) progress(c echo.Context) error {
	b := response.New(c)
	id := c.Param("id")

	var payload struct {
		NextDepartment string `json:"next_department"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.progress", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.target", payload.NextDepartment),
	))
	defer span.End()

	order, err := h.svc.Progress(ctx, id, payload.NextDepartment)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(toDTO(order)).Build()
}

func (h *Handler) scrap(c echo.Context) error {
	b := response.New(c)
	id := c.Param("id")

	var payload struct {
		Reason        string `json:"reason"`
		Disposition   string `json:"disposition"`
		Authorization string `json:"authorization"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.scrap", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order, err := h.svc.Scrap(ctx, id, payload.Reason, payload.Disposition, payload.Authorization)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(toDTO(order)).Build()
}

func (h *Handler) createReplacement(c echo.Context) error {
	b := response.New(c)
	id := c.Param("id")

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.createReplacement", trace.WithAttributes(attribute.String("order.replaced", id)))
	defer span.End()

	order, err := h.svc.CreateReplacement(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(toDTO(order)).Build()
}

func toDTO(order *entity.Order) dto.OrderResponse {
	resp := dto.OrderResponse{
		OrderID:           order.OrderID,
		CustomerID:        order.CustomerID,
		CustomerPO:        order.CustomerPO,
		ModelID:           order.ModelID,
		Handedness:        order.Handedness,
		Features:          order.Features,
		IsAdjustable:      order.IsAdjustable,
		CurrentDepartment: order.CurrentDepartment,
		Status:            order.Status,
		OrderDate:         order.OrderDate,
		DueDate:           order.DueDate,
		IsReplacement:     order.IsReplacement,
		ReplacedOrderID:   order.ReplacedOrderID,
		CreatedAt:         order.CreatedAt,
		UpdatedAt:         order.UpdatedAt,
	}
	for _, dept := range pipeline.Sequence {
		resp.Departments = append(resp.Departments, dto.DeptStamp{
			Department:  string(dept),
			CompletedAt: pipeline.CompletedAt(order, dept),
		})
	}
	if order.Status == entity.StatusScrapped {
		resp.Scrap = &dto.ScrapInfo{
			Reason:        order.ScrapReason,
			Disposition:   order.ScrapDisposition,
			Authorization: order.ScrapAuthorization,
			Date:          order.ScrapDate,
		}
	}
	return resp
}
