package workflow

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is one requisition line carried through the workflow
type Item struct {
	DetailID int             `json:"detail_id"`
	Name     string          `json:"item_name"`
	Quantity decimal.Decimal `json:"item_quantity"`
	Unit     string          `json:"item_unit"`
	Approved bool            `json:"approved"`
}

// Tracking holds the shipping milestone information required before
// receiving can start.
type Tracking struct {
	Carrier    string     `json:"carrier"`
	TrackingNo string     `json:"tracking_no"`
	ShippedAt  *time.Time `json:"shipped_at,omitempty"`
	ETADate    *time.Time `json:"eta_date,omitempty"`
}

// Data is the business payload of one workflow instance. It is mutated
// only inside TransitionTo and JumpToStep.
type Data struct {
	RequisitionID      string          `json:"requisition_id,omitempty"`
	PurchaseOrderID    string          `json:"purchase_order_id,omitempty"`
	Items              []Item          `json:"items,omitempty"`
	SupplierID         string          `json:"supplier_id,omitempty"`
	ProjectID          string          `json:"project_id,omitempty"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	Status             string          `json:"status,omitempty"`
	TrackingInfo       *Tracking       `json:"tracking_info,omitempty"`
	ReceivedItems      []string        `json:"received_items,omitempty"`
	StorageAssignments []string        `json:"storage_assignments,omitempty"`
	AcceptedItems      []string        `json:"accepted_items,omitempty"`
	InventoryRecords   []string        `json:"inventory_records,omitempty"`
	CreatedBy          string          `json:"created_by,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Patch is a partial Data update; nil fields are left untouched when the
// patch is merged during a transition.
type Patch struct {
	RequisitionID      *string
	PurchaseOrderID    *string
	Items              []Item
	SupplierID         *string
	ProjectID          *string
	TotalAmount        *decimal.Decimal
	Status             *string
	TrackingInfo       *Tracking
	ReceivedItems      []string
	StorageAssignments []string
	AcceptedItems      []string
	InventoryRecords   []string
	CreatedBy          *string
}

// merge applies the patch to the data in place
func (d *Data) merge(p Patch) {
	if p.RequisitionID != nil {
		d.RequisitionID = *p.RequisitionID
	}
	if p.PurchaseOrderID != nil {
		d.PurchaseOrderID = *p.PurchaseOrderID
	}
	if p.Items != nil {
		d.Items = p.Items
	}
	if p.SupplierID != nil {
		d.SupplierID = *p.SupplierID
	}
	if p.ProjectID != nil {
		d.ProjectID = *p.ProjectID
	}
	if p.TotalAmount != nil {
		d.TotalAmount = *p.TotalAmount
	}
	if p.Status != nil {
		d.Status = *p.Status
	}
	if p.TrackingInfo != nil {
		d.TrackingInfo = p.TrackingInfo
	}
	if p.ReceivedItems != nil {
		d.ReceivedItems = p.ReceivedItems
	}
	if p.StorageAssignments != nil {
		d.StorageAssignments = p.StorageAssignments
	}
	if p.AcceptedItems != nil {
		d.AcceptedItems = p.AcceptedItems
	}
	if p.InventoryRecords != nil {
		d.InventoryRecords = p.InventoryRecords
	}
	if p.CreatedBy != nil {
		d.CreatedBy = *p.CreatedBy
	}
}

// Ptr is a convenience for building patches from literals
func Ptr[T any](v T) *T { return &v }
