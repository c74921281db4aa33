package pipeline

import (
	"time"

	"github.com/Additional-Code/foundry/internal/entity"
)

// Department is one stage in the fixed production sequence. Modeling the
// stages as a closed type keeps successor computation and allotment lookups
// exhaustive instead of degrading silently on a typo.
type Department string

const (
	Layup    Department = "Layup"
	Plugging Department = "Plugging"
	CNC      Department = "CNC"
	Finish   Department = "Finish"
	Gunsmith Department = "Gunsmith"
	Paint    Department = "Paint"
	QC       Department = "QC"
	Shipping Department = "Shipping"
)

// Sequence is the fixed pipeline order. First() and Next() derive from it.
var Sequence = []Department{Layup, Plugging, CNC, Finish, Gunsmith, Paint, QC, Shipping}

// First returns the entry department for new orders.
func First() Department {
	return Sequence[0]
}

// Valid reports whether d is a member of the pipeline sequence.
func (d Department) Valid() bool {
	return d.index() >= 0
}

func (d Department) index() int {
	for i, dept := range Sequence {
		if dept == d {
			return i
		}
	}
	return -1
}

// Next returns the successor department. ok is false when d is the terminal
// department or not a pipeline member at all.
func (d Department) Next() (Department, bool) {
	i := d.index()
	if i < 0 || i >= len(Sequence)-1 {
		return "", false
	}
	return Sequence[i+1], true
}

const defaultAllotmentDays = 7

// AllotmentDays is the standard processing time for the department in whole
// days. Finish and Gunsmith run longer for adjustable models.
func (d Department) AllotmentDays(adjustable bool) int {
	switch d {
	case Layup:
		return 35
	case Finish, Gunsmith:
		if adjustable {
			return 14
		}
		return 7
	case Plugging, CNC, Paint, QC, Shipping:
		return 7
	default:
		return defaultAllotmentDays
	}
}

// RemainingAllotmentDays sums the standard allotments for d and every
// department after it in the sequence.
func RemainingAllotmentDays(d Department, adjustable bool) int {
	i := d.index()
	if i < 0 {
		return d.AllotmentDays(adjustable)
	}
	total := 0
	for _, dept := range Sequence[i:] {
		total += dept.AllotmentDays(adjustable)
	}
	return total
}

// CompletedAt returns the completion stamp recorded for d on the order, or
// nil while the order has not yet left d.
func CompletedAt(order *entity.Order, d Department) *time.Time {
	switch d {
	case Layup:
		return order.LayupCompletedAt
	case Plugging:
		return order.PluggingCompletedAt
	case CNC:
		return order.CNCCompletedAt
	case Finish:
		return order.FinishCompletedAt
	case Gunsmith:
		return order.GunsmithCompletedAt
	case Paint:
		return order.PaintCompletedAt
	case QC:
		return order.QCCompletedAt
	case Shipping:
		return order.ShippingCompletedAt
	default:
		return nil
	}
}

func stampCompleted(order *entity.Order, d Department, now time.Time) {
	switch d {
	case Layup:
		order.LayupCompletedAt = &now
	case Plugging:
		order.PluggingCompletedAt = &now
	case CNC:
		order.CNCCompletedAt = &now
	case Finish:
		order.FinishCompletedAt = &now
	case Gunsmith:
		order.GunsmithCompletedAt = &now
	case Paint:
		order.PaintCompletedAt = &now
	case QC:
		order.QCCompletedAt = &now
	case Shipping:
		order.ShippingCompletedAt = &now
	}
}
