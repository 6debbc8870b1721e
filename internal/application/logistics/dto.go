package logistics

import (
	"github.com/erp/client/internal/application/procurement"
)

// Shipment is the logistics view of one purchase order in transit
type Shipment struct {
	PurchaseOrderNo string `json:"purchase_order_no"`
	SupplierName    string `json:"supplier_name"`
	ShippingStatus  string `json:"shipping_status"`
	ShippedAt       string `json:"shipped_at,omitempty"`
	ETADate         string `json:"eta_date,omitempty"`
	ArrivalDate     string `json:"arrival_date,omitempty"`
	Carrier         string `json:"carrier,omitempty"`
	TrackingNo      string `json:"tracking_no,omitempty"`
	LogisticsNote   string `json:"logistics_note,omitempty"`
}

// Filters narrows a shipment list fetch
type Filters struct {
	VisibleOnly bool `json:"visible_only,omitempty"`
}

// MilestoneInput moves one purchase order to a new shipping milestone
type MilestoneInput struct {
	ShippingStatus string `json:"shipping_status" validate:"required,oneof=shipped in_transit customs_clearance expected_arrival arrived"`
	ShippedAt      string `json:"shipped_at,omitempty"`
	ETADate        string `json:"eta_date,omitempty"`
	ArrivalDate    string `json:"arrival_date,omitempty"`
	Carrier        string `json:"carrier,omitempty"`
	TrackingNo     string `json:"tracking_no,omitempty"`
	LogisticsNote  string `json:"logistics_note,omitempty"`
}

// Consolidation groups purchase orders into one shipping container
type Consolidation struct {
	ConsolidationID   string                        `json:"consolidation_id"`
	ConsolidationName string                        `json:"consolidation_name"`
	ContainerNo       string                        `json:"container_no,omitempty"`
	ShippingMethod    string                        `json:"shipping_method"`
	DeparturePort     string                        `json:"departure_port,omitempty"`
	DestinationPort   string                        `json:"destination_port,omitempty"`
	ETDDate           string                        `json:"etd_date,omitempty"`
	ETADate           string                        `json:"eta_date,omitempty"`
	ArrivalDate       string                        `json:"arrival_date,omitempty"`
	CustomsStatus     string                        `json:"customs_status,omitempty"`
	TrackingInfo      string                        `json:"tracking_info,omitempty"`
	Notes             string                        `json:"notes,omitempty"`
	PurchaseOrders    []procurement.PurchaseOrder   `json:"purchase_orders"`
	CreatedAt         string                        `json:"created_at,omitempty"`
}

// CreateConsolidationInput creates a consolidation container
type CreateConsolidationInput struct {
	ConsolidationName string `json:"consolidation_name" validate:"required"`
	ContainerNo       string `json:"container_no,omitempty"`
	ShippingMethod    string `json:"shipping_method" validate:"required"`
	DeparturePort     string `json:"departure_port,omitempty"`
	DestinationPort   string `json:"destination_port,omitempty"`
	ETDDate           string `json:"etd_date,omitempty"`
	ETADate           string `json:"eta_date,omitempty"`
	Notes             string `json:"notes,omitempty"`
}

// AddPOInput attaches one purchase order to a consolidation
type AddPOInput struct {
	PurchaseOrderNo string `json:"purchase_order_no" validate:"required"`
}
