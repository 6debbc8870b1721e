package requisition

import (
	"time"

	"github.com/shopspring/decimal"
)

// Requisition statuses as issued by the backend
const (
	StatusDraft     = "draft"
	StatusSubmitted = "submitted"
	StatusReviewed  = "reviewed"
)

// Line item review statuses
const (
	ItemPending    = "pending"
	ItemApproved   = "approved"
	ItemRejected   = "rejected"
	ItemQuestioned = "questioned"
)

// Usage types for a requisition
const (
	UsageDaily   = "daily"
	UsageProject = "project"
)

// RequestOrder is a requisition as returned by the backend, keyed by its
// business identifier request_order_no.
type RequestOrder struct {
	RequestOrderNo       string        `json:"request_order_no"`
	RequesterID          int           `json:"requester_id"`
	RequesterName        string        `json:"requester_name"`
	UsageType            string        `json:"usage_type"`
	ProjectID            string        `json:"project_id,omitempty"`
	SubmitDate           string        `json:"submit_date,omitempty"`
	OrderStatus          string        `json:"order_status"`
	IsUrgent             bool          `json:"is_urgent"`
	ExpectedDeliveryDate string        `json:"expected_delivery_date,omitempty"`
	UrgentReason         string        `json:"urgent_reason,omitempty"`
	Items                []RequestItem `json:"items,omitempty"`
	Summary              *LineSummary  `json:"summary,omitempty"`
	CreatedAt            time.Time     `json:"created_at,omitzero"`
	UpdatedAt            time.Time     `json:"updated_at,omitzero"`
}

// LineSummary is the backend's per-requisition line status rollup
type LineSummary struct {
	TotalItems      int `json:"total_items"`
	ApprovedItems   int `json:"approved_items"`
	RejectedItems   int `json:"rejected_items"`
	QuestionedItems int `json:"questioned_items"`
	PendingItems    int `json:"pending_items"`
}

// RequestItem is one line of a requisition
type RequestItem struct {
	DetailID          int              `json:"detail_id"`
	RequestOrderNo    string           `json:"request_order_no"`
	ItemName          string           `json:"item_name"`
	ItemQuantity      decimal.Decimal  `json:"item_quantity"`
	ItemUnit          string           `json:"item_unit"`
	ItemSpecification string           `json:"item_specification,omitempty"`
	ItemDescription   string           `json:"item_description,omitempty"`
	ItemCategory      string           `json:"item_category,omitempty"`
	ItemStatus        string           `json:"item_status"`
	AcceptanceStatus  string           `json:"acceptance_status,omitempty"`
	SupplierID        string           `json:"supplier_id,omitempty"`
	UnitPrice         *decimal.Decimal `json:"unit_price,omitempty"`
	MaterialSerialNo  string           `json:"material_serial_no,omitempty"`
	StatusNote        string           `json:"status_note,omitempty"`
	NeedsAcceptance   bool             `json:"needs_acceptance"`
	Subtotal          decimal.Decimal  `json:"subtotal"`
}

// Permissions describes how the backend scoped the returned list
type Permissions struct {
	CanViewAll    bool   `json:"can_view_all"`
	UserRole      string `json:"user_role"`
	FilteredToOwn bool   `json:"filtered_to_own"`
}

// Filters narrows a requisition list fetch
type Filters struct {
	Mine     *bool  `json:"mine,omitempty"`
	Status   string `json:"status,omitempty"`
	Page     int    `json:"page,omitempty"`
	PageSize int    `json:"page_size,omitempty"`
}

// CreateItemInput is one line of a new requisition
type CreateItemInput struct {
	ItemName          string          `json:"item_name" validate:"required"`
	ItemQuantity      decimal.Decimal `json:"item_quantity" validate:"required"`
	ItemUnit          string          `json:"item_unit" validate:"required"`
	ItemSpecification string          `json:"item_specification,omitempty"`
	ItemDescription   string          `json:"item_description,omitempty"`
	ItemCategory      string          `json:"item_category,omitempty"`
}

// CreateInput creates a requisition, optionally already submitted
type CreateInput struct {
	UsageType            string            `json:"usage_type" validate:"required,oneof=daily project"`
	ProjectID            string            `json:"project_id,omitempty" validate:"required_if=UsageType project"`
	Status               string            `json:"status,omitempty" validate:"omitempty,oneof=draft submitted"`
	IsUrgent             bool              `json:"is_urgent"`
	ExpectedDeliveryDate string            `json:"expected_delivery_date,omitempty" validate:"required_if=IsUrgent true"`
	UrgentReason         string            `json:"urgent_reason,omitempty" validate:"required_if=IsUrgent true"`
	Items                []CreateItemInput `json:"items" validate:"required,min=1,dive"`
}

// UpdateInput is a partial update of a draft requisition
type UpdateInput struct {
	UsageType string            `json:"usage_type,omitempty" validate:"omitempty,oneof=daily project"`
	ProjectID string            `json:"project_id,omitempty"`
	Items     []CreateItemInput `json:"items,omitempty" validate:"omitempty,min=1,dive"`
}

// ApproveItemInput approves a line with its sourcing decision
type ApproveItemInput struct {
	SupplierID string          `json:"supplier_id" validate:"required"`
	UnitPrice  decimal.Decimal `json:"unit_price" validate:"required"`
}

// ReasonInput carries the mandatory reason for reject/question/cancel
type ReasonInput struct {
	Reason string `json:"reason" validate:"required"`
}

// SaveChangesInput updates a line's sourcing fields without moving its
// review status.
type SaveChangesInput struct {
	SupplierID string           `json:"supplier_id,omitempty"`
	UnitPrice  *decimal.Decimal `json:"unit_price,omitempty"`
	StatusNote string           `json:"status_note,omitempty"`
}

// NoteInput updates a line's free-form note
type NoteInput struct {
	Note string `json:"note" validate:"required"`
}
