package order

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/Additional-Code/foundry/internal/entity"
)

// Event types published on the order lifecycle topic.
const (
	eventOrderCreated    = "order.created"
	eventOrderProgressed = "order.progressed"
	eventOrderScrapped   = "order.scrapped"
)

// LifecycleEvent is emitted whenever an order is created, moved, or scrapped.
type LifecycleEvent struct {
	Type            string    `json:"type"`
	OrderID         string    `json:"order_id"`
	Department      string    `json:"department"`
	Status          string    `json:"status"`
	IsReplacement   bool      `json:"is_replacement,omitempty"`
	ReplacedOrderID string    `json:"replaced_order_id,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

func (s *Service) publishEvent(ctx context.Context, eventType string, order *entity.Order) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	event := LifecycleEvent{
		Type:            eventType,
		OrderID:         order.OrderID,
		Department:      order.CurrentDepartment,
		Status:          order.Status,
		IsReplacement:   order.IsReplacement,
		ReplacedOrderID: order.ReplacedOrderID,
		OccurredAt:      s.now(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order lifecycle event", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, []byte(order.OrderID), payload); err != nil {
		s.logger.Error("publish order lifecycle event",
			zap.String("type", eventType),
			zap.String("order_id", order.OrderID),
			zap.Error(err),
		)
	}
}
