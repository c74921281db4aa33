package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Order status values. Scrapped and cancelled orders are terminal and are
// excluded from pipeline aggregations.
const (
	StatusActive    = "ACTIVE"
	StatusScrapped  = "SCRAPPED"
	StatusFulfilled = "FULFILLED"
	StatusCancelled = "CANCELLED"
)

// Order is the unit of work flowing through the production pipeline. The
// order identifier is assigned once by the allocator and never changes.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	OrderID           string `bun:"order_id,pk"`
	CustomerID        string `bun:"customer_id"`
	CustomerPO        string `bun:"customer_po"`
	ModelID           string `bun:"model_id"`
	Handedness        string `bun:"handedness"`
	Features          string `bun:"features"`
	IsAdjustable      bool   `bun:"is_adjustable"`
	CurrentDepartment string `bun:"current_department"`
	Status            string `bun:"status"`

	OrderDate time.Time `bun:"order_date,nullzero"`
	DueDate   time.Time `bun:"due_date,nullzero"`

	// Per-department completion stamps, set when the order leaves the
	// department. The stamp for the current department stays nil.
	LayupCompletedAt    *time.Time `bun:"layup_completed_at"`
	PluggingCompletedAt *time.Time `bun:"plugging_completed_at"`
	CNCCompletedAt      *time.Time `bun:"cnc_completed_at"`
	FinishCompletedAt   *time.Time `bun:"finish_completed_at"`
	GunsmithCompletedAt *time.Time `bun:"gunsmith_completed_at"`
	PaintCompletedAt    *time.Time `bun:"paint_completed_at"`
	QCCompletedAt       *time.Time `bun:"qc_completed_at"`
	ShippingCompletedAt *time.Time `bun:"shipping_completed_at"`

	IsReplacement   bool   `bun:"is_replacement"`
	ReplacedOrderID string `bun:"replaced_order_id,nullzero"`

	ScrapReason        string     `bun:"scrap_reason,nullzero"`
	ScrapDisposition   string     `bun:"scrap_disposition,nullzero"`
	ScrapAuthorization string     `bun:"scrap_authorization,nullzero"`
	ScrapDate          *time.Time `bun:"scrap_date"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `bun:"updated_at,nullzero"`
}

// Terminal reports whether the order has left the pipeline.
func (o *Order) Terminal() bool {
	return o.Status == StatusScrapped || o.Status == StatusCancelled
}
