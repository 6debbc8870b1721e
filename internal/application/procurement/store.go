package procurement

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

// Store is the client-side cache of purchase orders and the per-supplier
// build candidates they are created from. The PO collection endpoint is
// trailing-slash sensitive, so paths here use "/po/" verbatim.
type Store struct {
	api      *transport.Client
	bus      shared.EventPublisher
	validate *validator.Validate
	logger   *zap.Logger

	mu         sync.RWMutex
	orders     []PurchaseOrder
	candidates *BuildCandidates
	current    *PurchaseOrder
	pagination shared.Pagination
	filters    Filters
	loading    bool
}

// NewStore creates a purchase order store
func NewStore(api *transport.Client, bus shared.EventPublisher, logger *zap.Logger) *Store {
	return &Store{
		api:      api,
		bus:      bus,
		validate: validator.New(),
		logger:   logger,
		filters:  Filters{Page: 1, PageSize: 20},
	}
}

// FetchBuildCandidates loads the approved requisition lines grouped by
// supplier, replacing the cached set wholesale.
func (s *Store) FetchBuildCandidates(ctx context.Context) (BuildCandidates, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	var candidates BuildCandidates
	if err := s.api.Get(ctx, "/po/build-candidates", &candidates); err != nil {
		return BuildCandidates{}, s.fail(ctx, err, "獲取待採購項目失敗")
	}

	s.mu.Lock()
	s.candidates = &candidates
	s.mu.Unlock()
	return candidates, nil
}

// Create creates a purchase order, unshifts it into the cached list, and
// refetches the build candidates since the consumed lines are gone.
func (s *Store) Create(ctx context.Context, input CreateInput) (PurchaseOrder, error) {
	if err := s.validate.Struct(input); err != nil {
		return PurchaseOrder{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	var po PurchaseOrder
	if err := s.api.Post(ctx, "/po/", input, &po); err != nil {
		return PurchaseOrder{}, s.fail(ctx, err, "創建採購單失敗")
	}

	s.mu.Lock()
	s.orders = append([]PurchaseOrder{po}, s.orders...)
	s.mu.Unlock()

	if _, err := s.FetchBuildCandidates(ctx); err != nil {
		s.logger.Warn("refreshing build candidates after create failed",
			zap.String("purchase_order_no", po.PurchaseOrderNo),
			zap.Error(err),
		)
	}

	s.notifySuccess(ctx, "採購單創建成功")
	return po, nil
}

// Fetch replaces the cached list wholesale. A nil filters argument reuses
// the filters of the previous fetch.
func (s *Store) Fetch(ctx context.Context, filters *Filters) ([]PurchaseOrder, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	s.mu.Lock()
	if filters != nil {
		s.filters = *filters
	}
	query := s.filters
	s.mu.Unlock()

	var resp shared.ListEnvelope[PurchaseOrder]
	if err := s.api.Get(ctx, "/po/", &resp, transport.WithQuery(filterQuery(query))); err != nil {
		return nil, s.fail(ctx, err, "獲取採購單列表失敗")
	}

	s.mu.Lock()
	s.orders = resp.Items
	s.pagination = resp.Pagination
	s.mu.Unlock()
	return resp.Items, nil
}

// FetchDetail sets the current singleton without patching the list entry
func (s *Store) FetchDetail(ctx context.Context, poNo string) (PurchaseOrder, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	var po PurchaseOrder
	if err := s.api.Get(ctx, "/po/"+poNo, &po); err != nil {
		return PurchaseOrder{}, s.fail(ctx, err, "獲取採購單詳情失敗")
	}

	s.mu.Lock()
	s.current = &po
	s.mu.Unlock()
	return po, nil
}

// Update updates an unconfirmed purchase order and merges the result
func (s *Store) Update(ctx context.Context, poNo string, input UpdateInput) (PurchaseOrder, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	var po PurchaseOrder
	if err := s.api.Put(ctx, "/po/"+poNo, input, &po); err != nil {
		return PurchaseOrder{}, s.fail(ctx, err, "更新採購單失敗")
	}

	s.mergeOrder(po)
	s.notifySuccess(ctx, "採購單更新成功")
	return po, nil
}

// ConfirmPurchase marks the supplier confirmation. The request carries an
// idempotency key: double-confirming a PO must not double-apply.
func (s *Store) ConfirmPurchase(ctx context.Context, poNo string) (PurchaseOrder, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	var po PurchaseOrder
	if err := s.api.Post(ctx, "/po/"+poNo+"/confirm-purchase", struct{}{}, &po, transport.WithIdempotencyKey()); err != nil {
		return PurchaseOrder{}, s.fail(ctx, err, "確認採購單失敗")
	}

	s.mergeOrder(po)
	s.notifySuccess(ctx, "採購單確認成功")
	return po, nil
}

// Cancel cancels a purchase order with a reason, idempotently
func (s *Store) Cancel(ctx context.Context, poNo string, input ReasonInput) (PurchaseOrder, error) {
	if err := s.validate.Struct(input); err != nil {
		return PurchaseOrder{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	var po PurchaseOrder
	if err := s.api.Post(ctx, "/po/"+poNo+"/cancel", input, &po, transport.WithIdempotencyKey()); err != nil {
		return PurchaseOrder{}, s.fail(ctx, err, "取消採購單失敗")
	}

	s.mergeOrder(po)
	s.notifySuccess(ctx, "採購單已取消")
	return po, nil
}

// Withdraw withdraws a purchase order.
//
// Deprecated: the backend kept this alongside Cancel with overlapping
// semantics; use Cancel for new callers.
func (s *Store) Withdraw(ctx context.Context, poNo string, input ReasonInput) (PurchaseOrder, error) {
	if err := s.validate.Struct(input); err != nil {
		return PurchaseOrder{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	var po PurchaseOrder
	if err := s.api.Post(ctx, "/po/"+poNo+"/withdraw", input, &po); err != nil {
		return PurchaseOrder{}, s.fail(ctx, err, "撤回採購單失敗")
	}

	s.mergeOrder(po)
	s.notifySuccess(ctx, "採購單已撤回")
	return po, nil
}

// Reorganize restructures a purchase order's lines
func (s *Store) Reorganize(ctx context.Context, poNo string, input ReorganizeInput) (PurchaseOrder, error) {
	if err := s.validate.Struct(input); err != nil {
		return PurchaseOrder{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	var po PurchaseOrder
	if err := s.api.Post(ctx, "/po/"+poNo+"/reorganize", input, &po); err != nil {
		return PurchaseOrder{}, s.fail(ctx, err, "重組採購單失敗")
	}

	s.mergeOrder(po)
	s.notifySuccess(ctx, "採購單重組成功")
	return po, nil
}

// Export exports a purchase order. Print format returns a structured
// result; pdf and excel return the raw document bytes.
func (s *Store) Export(ctx context.Context, poNo string, input ExportInput) (*ExportResult, []byte, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	path := "/po/" + poNo + "/export"
	if input.Format == ExportPrint {
		var result ExportResult
		if err := s.api.Post(ctx, path, input, &result); err != nil {
			return nil, nil, s.fail(ctx, err, "匯出採購單失敗")
		}
		return &result, nil, nil
	}

	var document []byte
	if err := s.api.Post(ctx, path, input, nil, transport.WithRawBody(&document)); err != nil {
		return nil, nil, s.fail(ctx, err, "匯出採購單失敗")
	}
	return nil, document, nil
}

// Orders returns a copy of the cached list
func (s *Store) Orders() []PurchaseOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orders := make([]PurchaseOrder, len(s.orders))
	copy(orders, s.orders)
	return orders
}

// Current returns the detail singleton, ok=false when none is loaded
func (s *Store) Current() (PurchaseOrder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return PurchaseOrder{}, false
	}
	return *s.current, true
}

// ClearCurrent drops the detail singleton
func (s *Store) ClearCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}

// ClearBuildCandidates drops the cached candidate set
func (s *Store) ClearBuildCandidates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates = nil
}

// Candidates returns the cached build candidates, ok=false before the
// first fetch.
func (s *Store) Candidates() (BuildCandidates, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.candidates == nil {
		return BuildCandidates{}, false
	}
	return *s.candidates, true
}

// Pagination returns the pagination of the last list fetch
func (s *Store) Pagination() shared.Pagination {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pagination
}

// Loading reports whether a fetch or mutation is in flight
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// BySupplier groups the cached purchase orders by supplier id
func (s *Store) BySupplier() map[string][]PurchaseOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	grouped := make(map[string][]PurchaseOrder)
	for _, po := range s.orders {
		grouped[po.SupplierID] = append(grouped[po.SupplierID], po)
	}
	return grouped
}

// Active returns the cached purchase orders not yet purchased
func (s *Store) Active() []PurchaseOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var active []PurchaseOrder
	for _, po := range s.orders {
		if po.PurchaseStatus == PurchaseStatusCreated {
			active = append(active, po)
		}
	}
	return active
}

// ByID returns the cached list entry with the given order number
func (s *Store) ByID(poNo string) (PurchaseOrder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, po := range s.orders {
		if po.PurchaseOrderNo == poNo {
			return po, true
		}
	}
	return PurchaseOrder{}, false
}

func (s *Store) mergeOrder(po PurchaseOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].PurchaseOrderNo == po.PurchaseOrderNo {
			s.orders[i] = po
			break
		}
	}
	if s.current != nil && s.current.PurchaseOrderNo == po.PurchaseOrderNo {
		s.current = &po
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

func filterQuery(f Filters) url.Values {
	query := url.Values{}
	if f.Status != "" {
		query.Set("status", f.Status)
	}
	if f.SupplierID != "" {
		query.Set("supplier_id", f.SupplierID)
	}
	if f.Page > 0 {
		query.Set("page", strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 {
		query.Set("page_size", strconv.Itoa(f.PageSize))
	}
	return query
}
