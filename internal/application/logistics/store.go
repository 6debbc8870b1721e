package logistics

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/erp/client/internal/application/procurement"
	"github.com/erp/client/internal/domain/shared"
	"github.com/erp/client/internal/infrastructure/transport"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Store is the client-side cache of shipment tracking and consolidation
// containers. Milestone updates patch only the milestone fields into the
// cached shipment; the backend list is the source of everything else.
type Store struct {
	api      *transport.Client
	bus      shared.EventPublisher
	validate *validator.Validate
	logger   *zap.Logger

	mu                   sync.RWMutex
	shipments            []Shipment
	consolidations       []Consolidation
	currentConsolidation *Consolidation
	loading              bool
}

// NewStore creates a logistics store
func NewStore(api *transport.Client, bus shared.EventPublisher, logger *zap.Logger) *Store {
	return &Store{
		api:      api,
		bus:      bus,
		validate: validator.New(),
		logger:   logger,
	}
}

// FetchShipments replaces the cached shipment list wholesale
func (s *Store) FetchShipments(ctx context.Context, filters Filters) ([]Shipment, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	query := url.Values{}
	if filters.VisibleOnly {
		query.Set("visible_only", "true")
	}

	var shipments []Shipment
	if err := s.api.Get(ctx, "/leadtime", &shipments, transport.WithQuery(query)); err != nil {
		return nil, s.fail(ctx, err, "獲取發貨跟蹤數據失敗")
	}

	s.mu.Lock()
	s.shipments = shipments
	s.mu.Unlock()
	return shipments, nil
}

// UpdateMilestone moves one purchase order to a new shipping milestone
// and patches the milestone fields into the cached shipment.
func (s *Store) UpdateMilestone(ctx context.Context, poNo string, input MilestoneInput) (procurement.PurchaseOrder, error) {
	if err := s.validate.Struct(input); err != nil {
		return procurement.PurchaseOrder{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	var po procurement.PurchaseOrder
	if err := s.api.Post(ctx, "/po/"+poNo+"/milestone", input, &po); err != nil {
		return procurement.PurchaseOrder{}, s.fail(ctx, err, "更新發貨里程碑失敗")
	}

	s.mu.Lock()
	for i := range s.shipments {
		if s.shipments[i].PurchaseOrderNo == poNo {
			s.shipments[i].ShippingStatus = input.ShippingStatus
			s.shipments[i].ShippedAt = input.ShippedAt
			s.shipments[i].ETADate = input.ETADate
			s.shipments[i].ArrivalDate = input.ArrivalDate
			s.shipments[i].Carrier = input.Carrier
			s.shipments[i].TrackingNo = input.TrackingNo
			s.shipments[i].LogisticsNote = input.LogisticsNote
			break
		}
	}
	s.mu.Unlock()

	s.notifySuccess(ctx, "發貨里程碑更新成功")
	return po, nil
}

// FetchConsolidations replaces the cached consolidation list wholesale
func (s *Store) FetchConsolidations(ctx context.Context) ([]Consolidation, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	var consolidations []Consolidation
	if err := s.api.Get(ctx, "/consolidations", &consolidations); err != nil {
		return nil, s.fail(ctx, err, "獲取拼櫃信息失敗")
	}

	s.mu.Lock()
	s.consolidations = consolidations
	s.mu.Unlock()
	return consolidations, nil
}

// FetchConsolidationDetail sets the current consolidation singleton
func (s *Store) FetchConsolidationDetail(ctx context.Context, id string) (Consolidation, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	var consolidation Consolidation
	if err := s.api.Get(ctx, "/consolidations/"+id, &consolidation); err != nil {
		return Consolidation{}, s.fail(ctx, err, "獲取拼櫃詳情失敗")
	}

	s.mu.Lock()
	s.currentConsolidation = &consolidation
	s.mu.Unlock()
	return consolidation, nil
}

// CreateConsolidation creates a container and unshifts it into the list
func (s *Store) CreateConsolidation(ctx context.Context, input CreateConsolidationInput) (Consolidation, error) {
	if err := s.validate.Struct(input); err != nil {
		return Consolidation{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	var consolidation Consolidation
	if err := s.api.Post(ctx, "/consolidations", input, &consolidation); err != nil {
		return Consolidation{}, s.fail(ctx, err, "創建拼櫃失敗")
	}

	s.mu.Lock()
	s.consolidations = append([]Consolidation{consolidation}, s.consolidations...)
	s.mu.Unlock()

	s.notifySuccess(ctx, "拼櫃創建成功")
	return consolidation, nil
}

// AddPO attaches a purchase order to a consolidation and merges the
// returned container by id.
func (s *Store) AddPO(ctx context.Context, consolidationID string, input AddPOInput) (Consolidation, error) {
	if err := s.validate.Struct(input); err != nil {
		return Consolidation{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	var consolidation Consolidation
	if err := s.api.Post(ctx, "/consolidations/"+consolidationID+"/po", input, &consolidation); err != nil {
		return Consolidation{}, s.fail(ctx, err, "添加採購單到拼櫃失敗")
	}

	s.mergeConsolidation(consolidation)
	s.notifySuccess(ctx, "採購單已加入拼櫃")
	return consolidation, nil
}

// BulkUpdateMilestone applies one milestone to every purchase order in a
// consolidation and merges the returned container.
func (s *Store) BulkUpdateMilestone(ctx context.Context, consolidationID string, input MilestoneInput) (Consolidation, error) {
	if err := s.validate.Struct(input); err != nil {
		return Consolidation{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	var consolidation Consolidation
	if err := s.api.Post(ctx, "/consolidations/"+consolidationID+"/bulk-milestone", input, &consolidation); err != nil {
		return Consolidation{}, s.fail(ctx, err, "批量更新里程碑失敗")
	}

	s.mergeConsolidation(consolidation)
	s.notifySuccess(ctx, "里程碑批量更新成功")
	return consolidation, nil
}

// Shipments returns a copy of the cached shipment list
func (s *Store) Shipments() []Shipment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shipments := make([]Shipment, len(s.shipments))
	copy(shipments, s.shipments)
	return shipments
}

// ActiveShipments returns cached shipments that are in flight
func (s *Store) ActiveShipments() []Shipment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var active []Shipment
	for _, shipment := range s.shipments {
		if shipment.ShippingStatus != procurement.ShippingNone && shipment.ShippingStatus != procurement.ShippingArrived {
			active = append(active, shipment)
		}
	}
	return active
}

// ShipmentsByStatus groups the cached shipments by milestone
func (s *Store) ShipmentsByStatus() map[string][]Shipment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	grouped := make(map[string][]Shipment)
	for _, shipment := range s.shipments {
		status := shipment.ShippingStatus
		if status == "" {
			status = procurement.ShippingNone
		}
		grouped[status] = append(grouped[status], shipment)
	}
	return grouped
}

// Consolidations returns a copy of the cached consolidation list
func (s *Store) Consolidations() []Consolidation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	consolidations := make([]Consolidation, len(s.consolidations))
	copy(consolidations, s.consolidations)
	return consolidations
}

// CurrentConsolidation returns the detail singleton, ok=false when none
// is loaded.
func (s *Store) CurrentConsolidation() (Consolidation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentConsolidation == nil {
		return Consolidation{}, false
	}
	return *s.currentConsolidation, true
}

// Loading reports whether a fetch or mutation is in flight
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store) mergeConsolidation(consolidation Consolidation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.consolidations {
		if s.consolidations[i].ConsolidationID == consolidation.ConsolidationID {
			s.consolidations[i] = consolidation
			break
		}
	}
	if s.currentConsolidation != nil && s.currentConsolidation.ConsolidationID == consolidation.ConsolidationID {
		s.currentConsolidation = &consolidation
	}
}

func (s *Store) setLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()
}

func (s *Store) fail(ctx context.Context, err error, fallback string) error {
	_ = s.bus.Publish(ctx, shared.NewErrorNotification(shared.UserMessage(err, fallback)))
	return err
}

func (s *Store) notifySuccess(ctx context.Context, message string) {
	_ = s.bus.Publish(ctx, shared.NewSuccessNotification(message))
}
