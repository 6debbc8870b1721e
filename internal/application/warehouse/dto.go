package warehouse

import (
	"github.com/erp/client/internal/application/procurement"
	"github.com/shopspring/decimal"
)

// Acceptance statuses on a requisition line
const (
	AcceptancePending  = "pending_acceptance"
	AcceptanceAccepted = "accepted"
)

// Inventory movement directions
const (
	MovementIn  = "in"
	MovementOut = "out"
)

// ReceivingItem is one purchase order line awaiting receipt
type ReceivingItem struct {
	DetailID         int             `json:"detail_id"`
	PurchaseOrderNo  string          `json:"purchase_order_no"`
	ItemName         string          `json:"item_name"`
	ItemQuantity     decimal.Decimal `json:"item_quantity"`
	ItemUnit         string          `json:"item_unit"`
	ItemSpec         string          `json:"item_specification,omitempty"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	LineSubtotal     decimal.Decimal `json:"line_subtotal"`
	ReceivedQuantity decimal.Decimal `json:"received_quantity"`
	PendingQuantity  decimal.Decimal `json:"pending_quantity"`
	SupplierName     string          `json:"supplier_name"`
	OrderDate        string          `json:"order_date,omitempty"`
}

// ReceivingDetail is one purchase order with its receivable lines
type ReceivingDetail struct {
	PurchaseOrder procurement.PurchaseOrder `json:"purchase_order"`
	Items         []ReceivingItem           `json:"items"`
}

// ReceivingFilters narrows the receiving worklist
type ReceivingFilters struct {
	Region     string `json:"region,omitempty" validate:"omitempty,oneof=domestic international"`
	SupplierID string `json:"supplier_id,omitempty"`
}

// ConfirmReceivingInput confirms receipt of one line, optionally partial
type ConfirmReceivingInput struct {
	ReceivedQuantity *decimal.Decimal `json:"received_quantity,omitempty"`
	Notes            string           `json:"notes,omitempty"`
}

// StoragePosition is one physical slot in the warehouse
type StoragePosition struct {
	StorageID        string          `json:"storage_id"`
	FrontBack        int             `json:"front_back_position"`
	LeftMiddleRight  int             `json:"left_middle_right_position"`
	IsActive         bool            `json:"is_active"`
	CurrentInventory decimal.Decimal `json:"current_inventory"`
}

// StorageFloor is one shelf floor and its positions
type StorageFloor struct {
	Floor     int               `json:"floor"`
	Positions []StoragePosition `json:"positions"`
}

// StorageShelf is one shelf and its floors
type StorageShelf struct {
	Shelf  string         `json:"shelf"`
	Floors []StorageFloor `json:"floors"`
}

// StorageZone is the top of the storage hierarchy
type StorageZone struct {
	Zone    string         `json:"zone"`
	Shelves []StorageShelf `json:"shelves"`
}

// LocationFilters narrows a flat storage location query
type LocationFilters struct {
	Zone          string `json:"zone,omitempty"`
	Shelf         string `json:"shelf,omitempty"`
	Floor         int    `json:"floor,omitempty"`
	AvailableOnly bool   `json:"available_only,omitempty"`
}

// StorageLocation is one slot in the flat location listing
type StorageLocation struct {
	StorageID        string          `json:"storage_id"`
	AreaCode         string          `json:"area_code"`
	ShelfCode        string          `json:"shelf_code"`
	FloorLevel       int             `json:"floor_level"`
	FrontBack        int             `json:"front_back_position"`
	LeftMiddleRight  int             `json:"left_middle_right_position"`
	IsActive         bool            `json:"is_active"`
	CurrentInventory decimal.Decimal `json:"current_inventory"`
}

// PutAwayItem is a received item awaiting a storage assignment
type PutAwayItem struct {
	ItemID       string          `json:"item_id"`
	ItemName     string          `json:"item_name"`
	ItemQuantity decimal.Decimal `json:"item_quantity"`
	ItemUnit     string          `json:"item_unit"`
	ItemSpec     string          `json:"item_specification,omitempty"`
	SourceType   string          `json:"source_type"`
	SourceNo     string          `json:"source_no"`
	SourceLine   int             `json:"source_line"`
	Status       string          `json:"status"`
}

// AssignStorageInput puts one received item away to a slot
type AssignStorageInput struct {
	ItemID     string          `json:"item_id" validate:"required"`
	StorageID  string          `json:"storage_id" validate:"required"`
	Quantity   decimal.Decimal `json:"quantity" validate:"required"`
	SourceType string          `json:"source_type" validate:"required"`
	SourceNo   string          `json:"source_no" validate:"required"`
	SourceLine int             `json:"source_line"`
	Note       string          `json:"note,omitempty"`
}

// QuickStorageInput stores an ad-hoc item without a putaway worklist entry
type QuickStorageInput struct {
	ItemName     string          `json:"item_name" validate:"required"`
	ItemQuantity decimal.Decimal `json:"item_quantity" validate:"required"`
	ItemUnit     string          `json:"item_unit" validate:"required"`
	StorageID    string          `json:"storage_id" validate:"required"`
	SourceType   string          `json:"source_type" validate:"required"`
	SourceNo     string          `json:"source_no" validate:"required"`
	Note         string          `json:"note,omitempty"`
}

// StorageRecord is one stock movement row
type StorageRecord struct {
	HistoryID     int             `json:"history_id"`
	StorageID     string          `json:"storage_id"`
	ItemID        string          `json:"item_id"`
	OperationType string          `json:"operation_type"`
	OperationDate string          `json:"operation_date"`
	OperatorID    int             `json:"operator_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	SourceType    string          `json:"source_type,omitempty"`
	Note          string          `json:"note,omitempty"`
}

// AcceptanceItem is one stored line awaiting the requestor's acceptance
type AcceptanceItem struct {
	DetailID         int             `json:"detail_id"`
	ItemName         string          `json:"item_name"`
	ItemQuantity     decimal.Decimal `json:"item_quantity"`
	ItemUnit         string          `json:"item_unit"`
	ItemSpec         string          `json:"item_specification,omitempty"`
	RequestOrderNo   string          `json:"request_order_no"`
	AcceptanceStatus string          `json:"acceptance_status"`
}

// ConfirmAcceptanceInput accepts one line, optionally partial
type ConfirmAcceptanceInput struct {
	DetailID         int              `json:"detail_id" validate:"required"`
	AcceptedQuantity *decimal.Decimal `json:"accepted_quantity,omitempty"`
	Notes            string           `json:"notes,omitempty"`
}

// InventoryLocation is one slot a stocked item occupies
type InventoryLocation struct {
	StorageID       string          `json:"storage_id"`
	AreaCode        string          `json:"area_code"`
	ShelfCode       string          `json:"shelf_code"`
	FloorLevel      int             `json:"floor_level"`
	FrontBack       int             `json:"front_back_position"`
	LeftMiddleRight int             `json:"left_middle_right_position"`
	Quantity        decimal.Decimal `json:"quantity"`
}

// InventoryMovement is one recent stock movement of an item
type InventoryMovement struct {
	OperationDate string          `json:"operation_date"`
	OperationType string          `json:"operation_type"`
	Quantity      decimal.Decimal `json:"quantity"`
	OperatorName  string          `json:"operator_name"`
	Note          string          `json:"note,omitempty"`
}

// InventoryItem is an item's aggregate stock view
type InventoryItem struct {
	ItemID            string              `json:"item_id"`
	ItemName          string              `json:"item_name"`
	ItemUnit          string              `json:"item_unit"`
	ItemSpec          string              `json:"item_specification,omitempty"`
	TotalQuantity     decimal.Decimal     `json:"total_quantity"`
	AvailableQuantity decimal.Decimal     `json:"available_quantity"`
	StorageLocations  []InventoryLocation `json:"storage_locations"`
	RecentMovements   []InventoryMovement `json:"recent_movements"`
}

// InventoryFilters narrows an inventory query
type InventoryFilters struct {
	Name      string `json:"name,omitempty"`
	Spec      string `json:"spec,omitempty"`
	RequestNo string `json:"request_no,omitempty"`
	PONo      string `json:"po_no,omitempty"`
	UsageType string `json:"usage_type,omitempty"`
	Zone      string `json:"zone,omitempty"`
	Shelf     string `json:"shelf,omitempty"`
	Floor     int    `json:"floor,omitempty"`
}

// IssueItemInput issues stock out of a slot for use
type IssueItemInput struct {
	ItemRef        string          `json:"item_ref" validate:"required"`
	StorageID      string          `json:"storage_id" validate:"required"`
	Qty            decimal.Decimal `json:"qty" validate:"required"`
	UsageType      string          `json:"usage_type,omitempty" validate:"omitempty,oneof=daily project"`
	ProjectID      string          `json:"project_id,omitempty" validate:"required_if=UsageType project"`
	RequestOrderNo string          `json:"request_order_no,omitempty"`
	Note           string          `json:"note,omitempty"`
}
