package pipeline

import (
	"fmt"
	"time"

	"github.com/Additional-Code/foundry/internal/entity"
)

// ErrInvalidTransition is returned when an order cannot move forward: it is
// already in the terminal department and no explicit target was supplied, or
// its recorded department is not a pipeline member.
type ErrInvalidTransition struct {
	OrderID string
	From    string
	Target  string
}

func (e *ErrInvalidTransition) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("order %s: invalid transition from %q to %q", e.OrderID, e.From, e.Target)
	}
	return fmt.Sprintf("order %s: no next department after %q", e.OrderID, e.From)
}

// Advance moves the order to the next department, or to the explicit target
// when one is given. The completion stamp of the department being left is
// recorded with now; the stamp is written only on departure, so a later
// advance never touches it again.
//
// Explicit targets are deliberately permissive: manual transfers may skip or
// rewind departments as a correction escape hatch.
func Advance(order *entity.Order, explicitTarget Department, now time.Time) error {
	current := Department(order.CurrentDepartment)

	target := explicitTarget
	if target == "" {
		next, ok := current.Next()
		if !ok {
			return &ErrInvalidTransition{OrderID: order.OrderID, From: order.CurrentDepartment}
		}
		target = next
	} else if !target.Valid() {
		return &ErrInvalidTransition{OrderID: order.OrderID, From: order.CurrentDepartment, Target: string(target)}
	}

	if current.Valid() {
		stampCompleted(order, current, now)
	}
	order.CurrentDepartment = string(target)
	order.UpdatedAt = now
	return nil
}

// Scrap marks the order as terminally scrapped. The current department is
// left untouched so the scrap record shows where the order died. Callers must
// not advance a scrapped order afterwards.
func Scrap(order *entity.Order, reason, disposition, authorization string, now time.Time) {
	order.Status = entity.StatusScrapped
	order.ScrapReason = reason
	order.ScrapDisposition = disposition
	order.ScrapAuthorization = authorization
	order.ScrapDate = &now
	order.UpdatedAt = now
}

// BuildReplacement constructs a fresh order replacing a scrapped one. The
// customer and spec fields carry over; department stamps and scrap fields do
// not. The caller supplies the freshly allocated identifier.
func BuildReplacement(scrapped *entity.Order, newOrderID string, now time.Time) *entity.Order {
	return &entity.Order{
		OrderID:           newOrderID,
		CustomerID:        scrapped.CustomerID,
		CustomerPO:        scrapped.CustomerPO,
		ModelID:           scrapped.ModelID,
		Handedness:        scrapped.Handedness,
		Features:          scrapped.Features,
		IsAdjustable:      scrapped.IsAdjustable,
		CurrentDepartment: string(First()),
		Status:            entity.StatusActive,
		OrderDate:         now,
		DueDate:           scrapped.DueDate,
		IsReplacement:     true,
		ReplacedOrderID:   scrapped.OrderID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}
