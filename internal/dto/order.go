package dto

import "time"

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	OrderID           string      `json:"order_id"`
	CustomerID        string      `json:"customer_id"`
	CustomerPO        string      `json:"customer_po,omitempty"`
	ModelID           string      `json:"model_id,omitempty"`
	Handedness        string      `json:"handedness,omitempty"`
	Features          string      `json:"features,omitempty"`
	IsAdjustable      bool        `json:"is_adjustable"`
	CurrentDepartment string      `json:"current_department"`
	Status            string      `json:"status"`
	OrderDate         time.Time   `json:"order_date"`
	DueDate           time.Time   `json:"due_date"`
	Departments       []DeptStamp `json:"departments"`
	IsReplacement     bool        `json:"is_replacement"`
	ReplacedOrderID   string      `json:"replaced_order_id,omitempty"`
	Scrap             *ScrapInfo  `json:"scrap,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// DeptStamp pairs a department with its completion timestamp, nil while the
// order has not yet left that department.
type DeptStamp struct {
	Department  string     `json:"department"`
	CompletedAt *time.Time `json:"completed_at"`
}

// ScrapInfo surfaces the scrap record of a scrapped order.
type ScrapInfo struct {
	Reason        string     `json:"reason"`
	Disposition   string     `json:"disposition,omitempty"`
	Authorization string     `json:"authorization,omitempty"`
	Date          *time.Time `json:"date"`
}
