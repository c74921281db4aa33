// Package schedule derives pipeline scheduling diagnostics from order rows.
// Nothing here is stored; every verdict is recomputed from the current orders
// on demand.
package schedule

import (
	"time"

	"github.com/Additional-Code/foundry/internal/entity"
	"github.com/Additional-Code/foundry/internal/pipeline"
)

// Status is the tri-state schedule verdict for an in-flight order.
type Status string

const (
	OnSchedule Status = "on-schedule"
	// DeptOverdue means the order has sat in its current department longer
	// than the standard allotment but can still make its due date.
	DeptOverdue Status = "dept-overdue"
	// CannotMeetDue means the remaining standard processing time exceeds the
	// days left until the due date. It outranks DeptOverdue.
	CannotMeetDue Status = "cannot-meet-due"
)

const dayHours = 24 * time.Hour

// DaysInDepartment is the whole-day (ceiling) age of the order inside its
// current department: now minus the completion stamp of the preceding
// department, or minus the creation time while the order is still in the
// first department.
func DaysInDepartment(order *entity.Order, now time.Time) int {
	entered := departmentEntry(order)
	if entered.IsZero() || !entered.Before(now) {
		return 0
	}
	return ceilDays(now.Sub(entered))
}

func departmentEntry(order *entity.Order) time.Time {
	current := pipeline.Department(order.CurrentDepartment)
	for i, dept := range pipeline.Sequence {
		if dept != current {
			continue
		}
		if i == 0 {
			return order.CreatedAt
		}
		if ts := pipeline.CompletedAt(order, pipeline.Sequence[i-1]); ts != nil {
			return *ts
		}
		return order.CreatedAt
	}
	return order.CreatedAt
}

// Evaluate computes the schedule verdict for a single order.
func Evaluate(order *entity.Order, now time.Time) Status {
	current := pipeline.Department(order.CurrentDepartment)

	daysInDept := DaysInDepartment(order, now)
	deptOverdue := daysInDept > current.AllotmentDays(order.IsAdjustable)

	remaining := pipeline.RemainingAllotmentDays(current, order.IsAdjustable)
	daysUntilDue := ceilDays(order.DueDate.Sub(now))

	if remaining > daysUntilDue {
		return CannotMeetDue
	}
	if deptOverdue {
		return DeptOverdue
	}
	return OnSchedule
}

func ceilDays(d time.Duration) int {
	if d <= 0 {
		return int(d / dayHours)
	}
	days := d / dayHours
	if d%dayHours != 0 {
		days++
	}
	return int(days)
}

// OrderDetail is one dashboard row for an in-flight order.
type OrderDetail struct {
	OrderID    string    `json:"order_id"`
	ModelID    string    `json:"model_id"`
	DueDate    time.Time `json:"due_date"`
	DaysInDept int       `json:"days_in_dept"`
	Status     Status    `json:"schedule_status"`
}

// Counts groups non-terminal orders by current department.
func Counts(orders []entity.Order) map[string]int {
	counts := make(map[string]int)
	for i := range orders {
		if orders[i].Terminal() {
			continue
		}
		counts[orders[i].CurrentDepartment]++
	}
	return counts
}

// Details builds the per-department dashboard rows, recomputing days-in-dept
// and schedule verdicts against now.
func Details(orders []entity.Order, now time.Time) map[string][]OrderDetail {
	details := make(map[string][]OrderDetail)
	for i := range orders {
		order := &orders[i]
		if order.Terminal() {
			continue
		}
		details[order.CurrentDepartment] = append(details[order.CurrentDepartment], OrderDetail{
			OrderID:    order.OrderID,
			ModelID:    order.ModelID,
			DueDate:    order.DueDate,
			DaysInDept: DaysInDepartment(order, now),
			Status:     Evaluate(order, now),
		})
	}
	return details
}
