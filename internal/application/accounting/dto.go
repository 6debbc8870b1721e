package accounting

import (
	"github.com/shopspring/decimal"
)

// Billing batch statuses
const (
	BillingStatusBilled = "billed"
	BillingStatusPaid   = "paid"
)

// Payment methods accepted by the backend
const (
	PaymentRemittance = "remittance"
	PaymentCheck      = "check"
	PaymentCash       = "cash"
)

// BillingCandidate is an unbilled, purchased PO eligible for a billing
// batch.
type BillingCandidate struct {
	PurchaseOrderNo string          `json:"purchase_order_no"`
	SupplierName    string          `json:"supplier_name"`
	OrderDate       string          `json:"order_date"`
	GrandTotal      decimal.Decimal `json:"grand_total_int"`
	BillingStatus   string          `json:"billing_status"`
}

// CandidateFilters narrows the billing candidate fetch
type CandidateFilters struct {
	SupplierID string `json:"supplier_id,omitempty"`
	Month      string `json:"month,omitempty"`
}

// BillingBatch groups purchase orders into one supplier invoice
type BillingBatch struct {
	BillingID      string             `json:"billing_id"`
	SupplierID     string             `json:"supplier_id"`
	SupplierName   string             `json:"supplier_name"`
	BillingMonth   string             `json:"billing_month"`
	TotalAmount    decimal.Decimal    `json:"total_amount"`
	PaymentTerms   string             `json:"payment_terms"`
	DueDate        string             `json:"due_date,omitempty"`
	BillingStatus  string             `json:"billing_status"`
	PaymentMethod  string             `json:"payment_method,omitempty"`
	CreatedAt      string             `json:"created_at"`
	PurchaseOrders []BillingCandidate `json:"purchase_orders"`
}

// GenerateBillingInput creates a billing batch from candidate POs
type GenerateBillingInput struct {
	SupplierID   string   `json:"supplier_id" validate:"required"`
	Month        string   `json:"month" validate:"required"`
	PaymentTerms string   `json:"payment_terms" validate:"required"`
	DueDate      string   `json:"due_date,omitempty"`
	PONumbers    []string `json:"po_numbers" validate:"required,min=1"`
}

// MarkPaidInput records how a billing batch or PO was settled
type MarkPaidInput struct {
	PaymentMethod string `json:"payment_method" validate:"required,oneof=remittance check cash"`
	PaidDate      string `json:"paid_date,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// HistoryFilters narrows the payment history fetch
type HistoryFilters struct {
	SupplierID string `json:"supplier_id,omitempty"`
	Month      string `json:"month,omitempty"`
	Paid       *bool  `json:"paid,omitempty"`
	Page       int    `json:"page,omitempty"`
	PageSize   int    `json:"page_size,omitempty"`
}

// HistoryItem is one settled or outstanding payment row
type HistoryItem struct {
	BillingID       string          `json:"billing_id,omitempty"`
	PurchaseOrderNo string          `json:"purchase_order_no,omitempty"`
	SupplierName    string          `json:"supplier_name"`
	Amount          decimal.Decimal `json:"amount"`
	BillingMonth    string          `json:"billing_month,omitempty"`
	PaymentMethod   string          `json:"payment_method,omitempty"`
	BillingStatus   string          `json:"billing_status"`
	CreatedAt       string          `json:"created_at"`
	PaidAt          string          `json:"paid_at,omitempty"`
}

// SupplierSummary aggregates one supplier's payment history
type SupplierSummary struct {
	TotalAmount  decimal.Decimal `json:"total_amount"`
	UnpaidAmount decimal.Decimal `json:"unpaid_amount"`
	PaidAmount   decimal.Decimal `json:"paid_amount"`
	Entries      int             `json:"entries"`
}
