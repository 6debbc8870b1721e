package procurement

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase order lifecycle statuses
const (
	PurchaseStatusCreated   = "order_created"
	PurchaseStatusPurchased = "purchased"
)

// Shipping statuses stamped by logistics milestones
const (
	ShippingNone             = "none"
	ShippingShipped          = "shipped"
	ShippingInTransit        = "in_transit"
	ShippingCustomsClearance = "customs_clearance"
	ShippingExpectedArrival  = "expected_arrival"
	ShippingArrived          = "arrived"
)

// Billing statuses stamped by accounting
const (
	BillingNone   = "none"
	BillingBilled = "billed"
	BillingPaid   = "paid"
)

// Export formats accepted by the export endpoint
const (
	ExportPrint = "print"
	ExportPDF   = "pdf"
	ExportExcel = "excel"
)

// PurchaseOrder is a supplier-facing order, keyed by purchase_order_no
type PurchaseOrder struct {
	PurchaseOrderNo    string          `json:"purchase_order_no"`
	SupplierID         string          `json:"supplier_id"`
	SupplierName       string          `json:"supplier_name"`
	SupplierAddress    string          `json:"supplier_address,omitempty"`
	ContactPhone       string          `json:"contact_phone,omitempty"`
	ContactPerson      string          `json:"contact_person,omitempty"`
	SupplierTaxID      string          `json:"supplier_tax_id,omitempty"`
	OrderDate          string          `json:"order_date,omitempty"`
	QuotationNo        string          `json:"quotation_no,omitempty"`
	DeliveryAddress    string          `json:"delivery_address,omitempty"`
	CreatorID          int             `json:"creator_id"`
	OutputPersonID     int             `json:"output_person_id,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	ConfirmPurchaserID int             `json:"confirm_purchaser_id,omitempty"`
	PurchaseStatus     string          `json:"purchase_status"`
	ShippingStatus     string          `json:"shipping_status"`
	ShippedAt          string          `json:"shipped_at,omitempty"`
	ETADate            string          `json:"eta_date,omitempty"`
	ArrivalDate        string          `json:"arrival_date,omitempty"`
	Carrier            string          `json:"carrier,omitempty"`
	TrackingNo         string          `json:"tracking_no,omitempty"`
	LogisticsNote      string          `json:"logistics_note,omitempty"`
	Subtotal           decimal.Decimal `json:"subtotal_int"`
	Tax                decimal.Decimal `json:"tax_decimal1"`
	GrandTotal         decimal.Decimal `json:"grand_total_int"`
	BillingStatus      string          `json:"billing_status"`
	PaymentMethod      string          `json:"payment_method,omitempty"`
	DueDate            string          `json:"due_date,omitempty"`
	BilledMonth        string          `json:"billed_month,omitempty"`
	CreatedAt          time.Time       `json:"created_at,omitzero"`
	UpdatedAt          time.Time       `json:"updated_at,omitzero"`
}

// CandidateItem is one approved requisition line awaiting a purchase order
type CandidateItem struct {
	DetailID             int             `json:"detail_id"`
	ItemName             string          `json:"item_name"`
	ItemQuantity         decimal.Decimal `json:"item_quantity"`
	ItemUnit             string          `json:"item_unit"`
	UnitPrice            decimal.Decimal `json:"unit_price"`
	ItemSpecification    string          `json:"item_specification,omitempty"`
	LineSubtotal         decimal.Decimal `json:"line_subtotal"`
	SourceRequestOrderNo string          `json:"source_request_order_no"`
}

// BuildCandidate groups the approved lines of one supplier
type BuildCandidate struct {
	SupplierID   string          `json:"supplier_id"`
	SupplierName string          `json:"supplier_name"`
	Items        []CandidateItem `json:"items"`
}

// BuildCandidates is keyed by supplier id
type BuildCandidates struct {
	Candidates map[string]BuildCandidate `json:"candidates"`
}

// Filters narrows a purchase order list fetch
type Filters struct {
	Status     string `json:"status,omitempty"`
	SupplierID string `json:"supplier_id,omitempty"`
	Page       int    `json:"page,omitempty"`
	PageSize   int    `json:"page_size,omitempty"`
}

// CreateLineInput selects one candidate line, optionally overriding its
// quantity or price.
type CreateLineInput struct {
	DetailID  int              `json:"detail_id" validate:"required"`
	Quantity  *decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

// CreateInput creates a purchase order from candidate lines
type CreateInput struct {
	SupplierID      string            `json:"supplier_id" validate:"required"`
	QuotationNo     string            `json:"quotation_no,omitempty"`
	DeliveryAddress string            `json:"delivery_address,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	Lines           []CreateLineInput `json:"lines" validate:"required,min=1,dive"`
}

// UpdateInput is a partial update of an unconfirmed purchase order
type UpdateInput struct {
	QuotationNo     string `json:"quotation_no,omitempty"`
	DeliveryAddress string `json:"delivery_address,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// ReasonInput carries the mandatory reason for cancel/withdraw
type ReasonInput struct {
	Reason string `json:"reason" validate:"required"`
}

// ReorganizeItemInput keeps or removes one line during reorganization
type ReorganizeItemInput struct {
	DetailID     int              `json:"detail_id" validate:"required"`
	Action       string           `json:"action" validate:"required,oneof=keep remove"`
	NewQuantity  *decimal.Decimal `json:"new_quantity,omitempty"`
	NewUnitPrice *decimal.Decimal `json:"new_unit_price,omitempty"`
}

// ReorganizeInput restructures a purchase order's lines
type ReorganizeInput struct {
	Reason string                `json:"reason" validate:"required"`
	Items  []ReorganizeItemInput `json:"items" validate:"required,min=1,dive"`
}

// ExportInput selects the export format
type ExportInput struct {
	Format      string `json:"format" validate:"required,oneof=print pdf excel"`
	QuotationNo string `json:"quotation_no,omitempty"`
}

// ExportInfo describes the status bump an export caused
type ExportInfo struct {
	PreviousStatus  string `json:"previous_status"`
	CurrentStatus   string `json:"current_status"`
	ExportPersonID  int    `json:"export_person_id"`
	ExportCount     int    `json:"export_count"`
	ExportTimestamp string `json:"export_timestamp"`
}

// ExportResult is the JSON response of a print-format export
type ExportResult struct {
	Success         bool       `json:"success"`
	PurchaseOrderNo string     `json:"purchase_order_no"`
	ExportInfo      ExportInfo `json:"export_info"`
	Message         string     `json:"message"`
}
