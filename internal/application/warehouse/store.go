package warehouse

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/erp/client/internal/domain/shared"
	"github.com/erp/client/internal/infrastructure/transport"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Store covers the warehouse half of the lifecycle: receiving confirmed
// shipments, putting items away to storage slots, requestor acceptance,
// and inventory query/issue. Worklists are replaced wholesale on fetch;
// confirmations refetch their worklist since the backend removes the
// consumed row.
type Store struct {
	api      *transport.Client
	bus      shared.EventPublisher
	validate *validator.Validate
	logger   *zap.Logger

	mu              sync.RWMutex
	receiving       []ReceivingItem
	putAway         []PutAwayItem
	tree            []StorageZone
	locations       []StorageLocation
	acceptance      []AcceptanceItem
	inventory       []InventoryItem
	inventoryFilter InventoryFilters
	loading         bool
}

// NewStore creates a warehouse store
func NewStore(api *transport.Client, bus shared.EventPublisher, logger *zap.Logger) *Store {
	return &Store{
		api:      api,
		bus:      bus,
		validate: validator.New(),
		logger:   logger,
	}
}

// FetchReceiving replaces the receiving worklist wholesale
func (s *Store) FetchReceiving(ctx context.Context, filters ReceivingFilters) ([]ReceivingItem, error) {
	if err := s.validate.Struct(filters); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	query := url.Values{}
	if filters.Region != "" {
		query.Set("region", filters.Region)
	}
	if filters.SupplierID != "" {
		query.Set("supplier_id", filters.SupplierID)
	}

	var items []ReceivingItem
	if err := s.api.Get(ctx, "/receiving", &items, transport.WithQuery(query)); err != nil {
		return nil, s.fail(ctx, err, "獲取收貨列表失敗")
	}

	s.mu.Lock()
	s.receiving = items
	s.mu.Unlock()
	return items, nil
}

// ConfirmReceiving confirms receipt of one purchase order line and drops
// the consumed row from the cached worklist.
func (s *Store) ConfirmReceiving(ctx context.Context, poNo string, detailID int, input ConfirmReceivingInput) error {
	s.setLoading(true)
	defer s.setLoading(false)

	path := fmt.Sprintf("/receiving/po/%s/items/%d/confirm", poNo, detailID)
	if err := s.api.Post(ctx, path, input, nil); err != nil {
		return s.fail(ctx, err, "確認收貨失敗")
	}

	s.mu.Lock()
	for i := range s.receiving {
		if s.receiving[i].PurchaseOrderNo == poNo && s.receiving[i].DetailID == detailID {
			s.receiving = append(s.receiving[:i], s.receiving[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.notifySuccess(ctx, "收貨確認成功")
	return nil
}

// FetchReceivingDetail loads one purchase order's receivable lines.
// Returned, not cached: the worklist cache stays the source of truth.
func (s *Store) FetchReceivingDetail(ctx context.Context, poNo string) (ReceivingDetail, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	var detail ReceivingDetail
	if err := s.api.Get(ctx, "/receiving/po/"+poNo, &detail); err != nil {
		return ReceivingDetail{}, s.fail(ctx, err, "獲取收貨明細失敗")
	}
	return detail, nil
}

// FetchStorageTree loads the zone/shelf/floor/position hierarchy
func (s *Store) FetchStorageTree(ctx context.Context) ([]StorageZone, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	var tree []StorageZone
	if err := s.api.Get(ctx, "/storage/tree", &tree); err != nil {
		return nil, s.fail(ctx, err, "獲取儲位結構失敗")
	}

	s.mu.Lock()
	s.tree = tree
	s.mu.Unlock()
	return tree, nil
}

// FetchLocations lists storage slots flat, optionally only free ones
func (s *Store) FetchLocations(ctx context.Context, filters LocationFilters) ([]StorageLocation, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	query := url.Values{}
	if filters.Zone != "" {
		query.Set("zone", filters.Zone)
	}
	if filters.Shelf != "" {
		query.Set("shelf", filters.Shelf)
	}
	if filters.Floor > 0 {
		query.Set("floor", strconv.Itoa(filters.Floor))
	}
	if filters.AvailableOnly {
		query.Set("available_only", "true")
	}

	var locations []StorageLocation
	if err := s.api.Get(ctx, "/storage/locations", &locations, transport.WithQuery(query)); err != nil {
		return nil, s.fail(ctx, err, "獲取儲位列表失敗")
	}

	s.mu.Lock()
	s.locations = locations
	s.mu.Unlock()
	return locations, nil
}

// FetchPutAwayItems lists received items awaiting a storage assignment
func (s *Store) FetchPutAwayItems(ctx context.Context, status string) ([]PutAwayItem, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}

	var items []PutAwayItem
	if err := s.api.Get(ctx, "/putaway", &items, transport.WithQuery(query)); err != nil {
		return nil, s.fail(ctx, err, "獲取待入庫項目失敗")
	}

	s.mu.Lock()
	s.putAway = items
	s.mu.Unlock()
	return items, nil
}

// AssignStorage puts one item away and drops it from the worklist
func (s *Store) AssignStorage(ctx context.Context, input AssignStorageInput) (StorageRecord, error) {
	if err := s.validate.Struct(input); err != nil {
		return StorageRecord{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	var record StorageRecord
	if err := s.api.Post(ctx, "/putaway/assign", input, &record); err != nil {
		return StorageRecord{}, s.fail(ctx, err, "儲位分配失敗")
	}

	s.mu.Lock()
	for i := range s.putAway {
		if s.putAway[i].ItemID == input.ItemID {
			s.putAway = append(s.putAway[:i], s.putAway[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.notifySuccess(ctx, "儲位分配成功")
	return record, nil
}

// QuickStorage stores an ad-hoc item directly into a slot
func (s *Store) QuickStorage(ctx context.Context, input QuickStorageInput) (StorageRecord, error) {
	if err := s.validate.Struct(input); err != nil {
		return StorageRecord{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	var record StorageRecord
	if err := s.api.Post(ctx, "/storage/quick-in", input, &record); err != nil {
		return StorageRecord{}, s.fail(ctx, err, "快速入庫失敗")
	}

	s.notifySuccess(ctx, "快速入庫成功")
	return record, nil
}

// FetchMyAcceptance lists the caller's stored lines awaiting acceptance
func (s *Store) FetchMyAcceptance(ctx context.Context) ([]AcceptanceItem, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	var items []AcceptanceItem
	if err := s.api.Get(ctx, "/acceptance/mine", &items); err != nil {
		return nil, s.fail(ctx, err, "獲取驗收列表失敗")
	}

	s.mu.Lock()
	s.acceptance = items
	s.mu.Unlock()
	return items, nil
}

// ConfirmAcceptance accepts one line and marks the cached row accepted
func (s *Store) ConfirmAcceptance(ctx context.Context, input ConfirmAcceptanceInput) error {
	if err := s.validate.Struct(input); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	if err := s.api.Post(ctx, "/acceptance/confirm", input, nil); err != nil {
		return s.fail(ctx, err, "確認驗收失敗")
	}

	s.mu.Lock()
	for i := range s.acceptance {
		if s.acceptance[i].DetailID == input.DetailID {
			s.acceptance[i].AcceptanceStatus = AcceptanceAccepted
			break
		}
	}
	s.mu.Unlock()

	s.notifySuccess(ctx, "驗收確認成功")
	return nil
}

// FetchInventory replaces the cached inventory query result wholesale
func (s *Store) FetchInventory(ctx context.Context, filters InventoryFilters) ([]InventoryItem, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	s.mu.Lock()
	s.inventoryFilter = filters
	s.mu.Unlock()

	var items []InventoryItem
	if err := s.api.Get(ctx, "/inventory", &items, transport.WithQuery(inventoryQuery(filters))); err != nil {
		return nil, s.fail(ctx, err, "查詢庫存失敗")
	}

	s.mu.Lock()
	s.inventory = items
	s.mu.Unlock()
	return items, nil
}

// FetchItemHistory loads the paginated movement history of one item.
// The result is returned, not cached: history is a drill-down view.
func (s *Store) FetchItemHistory(ctx context.Context, itemKey string, page, perPage int) ([]InventoryMovement, shared.Pagination, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	query := url.Values{}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		query.Set("per_page", strconv.Itoa(perPage))
	}

	var resp shared.ListEnvelope[InventoryMovement]
	if err := s.api.Get(ctx, "/inventory/items/"+url.PathEscape(itemKey)+"/history", &resp, transport.WithQuery(query)); err != nil {
		return nil, shared.Pagination{}, s.fail(ctx, err, "查詢庫存歷史失敗")
	}
	return resp.Items, resp.Pagination, nil
}

// IssueItem issues stock out of a slot and refetches the inventory with
// the filters of the last query, since quantities changed server-side.
func (s *Store) IssueItem(ctx context.Context, input IssueItemInput) (StorageRecord, error) {
	if err := s.validate.Struct(input); err != nil {
		return StorageRecord{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	var record StorageRecord
	if err := s.api.Post(ctx, "/inventory/issue", input, &record); err != nil {
		return StorageRecord{}, s.fail(ctx, err, "領用出庫失敗")
	}

	s.mu.RLock()
	filters := s.inventoryFilter
	s.mu.RUnlock()
	if _, err := s.FetchInventory(ctx, filters); err != nil {
		s.logger.Warn("inventory refetch after issue failed",
			zap.String("item_ref", input.ItemRef),
			zap.Error(err),
		)
	}

	s.notifySuccess(ctx, "領用出庫成功")
	return record, nil
}

// Receiving returns a copy of the cached receiving worklist
func (s *Store) Receiving() []ReceivingItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]ReceivingItem, len(s.receiving))
	copy(items, s.receiving)
	return items
}

// PutAway returns a copy of the cached putaway worklist
func (s *Store) PutAway() []PutAwayItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]PutAwayItem, len(s.putAway))
	copy(items, s.putAway)
	return items
}

// Tree returns the cached storage hierarchy
func (s *Store) Tree() []StorageZone {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tree := make([]StorageZone, len(s.tree))
	copy(tree, s.tree)
	return tree
}

// Locations returns the cached flat location list
func (s *Store) Locations() []StorageLocation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	locations := make([]StorageLocation, len(s.locations))
	copy(locations, s.locations)
	return locations
}

// Acceptance returns a copy of the cached acceptance worklist
func (s *Store) Acceptance() []AcceptanceItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]AcceptanceItem, len(s.acceptance))
	copy(items, s.acceptance)
	return items
}

// PendingAcceptance returns the cached lines still awaiting acceptance
func (s *Store) PendingAcceptance() []AcceptanceItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var pending []AcceptanceItem
	for _, item := range s.acceptance {
		if item.AcceptanceStatus == AcceptancePending {
			pending = append(pending, item)
		}
	}
	return pending
}

// Inventory returns a copy of the cached inventory query result
func (s *Store) Inventory() []InventoryItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]InventoryItem, len(s.inventory))
	copy(items, s.inventory)
	return items
}

// Loading reports whether a fetch or mutation is in flight
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
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

func inventoryQuery(f InventoryFilters) url.Values {
	query := url.Values{}
	if f.Name != "" {
		query.Set("name", f.Name)
	}
	if f.Spec != "" {
		query.Set("spec", f.Spec)
	}
	if f.RequestNo != "" {
		query.Set("request_no", f.RequestNo)
	}
	if f.PONo != "" {
		query.Set("po_no", f.PONo)
	}
	if f.UsageType != "" {
		query.Set("usage_type", f.UsageType)
	}
	if f.Zone != "" {
		query.Set("zone", f.Zone)
	}
	if f.Shelf != "" {
		query.Set("shelf", f.Shelf)
	}
	if f.Floor > 0 {
		query.Set("floor", strconv.Itoa(f.Floor))
	}
	return query
}
