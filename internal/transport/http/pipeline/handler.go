package pipeline

import (
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"

	"github.com/Additional-Code/foundry/internal/presentation/http/response"
	service "github.com/Additional-Code/foundry/internal/service/order"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/foundry/transport/http/pipeline")

// Handler exposes the pipeline dashboard endpoints.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a pipeline Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/pipeline")
	g.GET("/counts", h.counts)
	g.GET("/details", h.details)
}

func (h *Handler) counts(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "pipeline.counts")
	defer span.End()

	counts, err := h.svc.PipelineCounts(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(counts).Build()
}

func (h *Handler) details(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "pipeline.details")
	defer span.End()

	details, err := h.svc.PipelineDetails(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(details).Build()
}
