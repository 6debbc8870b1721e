package partner

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

// Store caches the supplier directory: the paginated list, the current
// detail record, and the lightweight summary used for dropdowns.
type Store struct {
	api      *transport.Client
	bus      shared.EventPublisher
	validate *validator.Validate
	logger   *zap.Logger

	mu         sync.RWMutex
	suppliers  []Supplier
	current    *Supplier
	summary    []SummaryItem
	pagination shared.Pagination
	loading    bool
}

// NewStore creates a supplier store
func NewStore(api *transport.Client, bus shared.EventPublisher, logger *zap.Logger) *Store {
	return &Store{
		api:      api,
		bus:      bus,
		validate: validator.New(),
		logger:   logger,
	}
}

// Fetch replaces the cached supplier list wholesale
func (s *Store) Fetch(ctx context.Context, filters Filters) ([]Supplier, error) {
	if err := s.validate.Struct(filters); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	var resp shared.ListEnvelope[Supplier]
	if err := s.api.Get(ctx, "/suppliers", &resp, transport.WithQuery(filterQuery(filters))); err != nil {
		return nil, s.fail(ctx, err, "獲取供應商列表失敗")
	}

	s.mu.Lock()
	s.suppliers = resp.Items
	s.pagination = resp.Pagination
	s.mu.Unlock()
	return resp.Items, nil
}

// FetchDetail loads one supplier into the current slot. The list cache
// is left as-is; callers needing a fresh list refetch it.
func (s *Store) FetchDetail(ctx context.Context, supplierID string) (Supplier, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	var supplier Supplier
	if err := s.api.Get(ctx, "/suppliers/"+supplierID, &supplier); err != nil {
		return Supplier{}, s.fail(ctx, err, "獲取供應商資料失敗")
	}

	s.mu.Lock()
	s.current = &supplier
	s.mu.Unlock()
	return supplier, nil
}

// Create registers a supplier and unshifts it into the cached list
func (s *Store) Create(ctx context.Context, input CreateInput) (Supplier, error) {
	if err := s.validate.Struct(input); err != nil {
		return Supplier{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	var supplier Supplier
	if err := s.api.Post(ctx, "/suppliers", input, &supplier); err != nil {
		return Supplier{}, s.fail(ctx, err, "供應商創建失敗")
	}

	s.mu.Lock()
	s.suppliers = append([]Supplier{supplier}, s.suppliers...)
	s.mu.Unlock()

	s.notifySuccess(ctx, "供應商創建成功")
	return supplier, nil
}

// Update patches a supplier and merges the result into the caches
func (s *Store) Update(ctx context.Context, supplierID string, input UpdateInput) (Supplier, error) {
	if err := s.validate.Struct(input); err != nil {
		return Supplier{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	var supplier Supplier
	if err := s.api.Put(ctx, "/suppliers/"+supplierID, input, &supplier); err != nil {
		return Supplier{}, s.fail(ctx, err, "供應商更新失敗")
	}

	s.merge(supplier)
	s.notifySuccess(ctx, "供應商更新成功")
	return supplier, nil
}

// Deactivate soft-deletes a supplier. The cached record stays in the
// list with is_active flipped off.
func (s *Store) Deactivate(ctx context.Context, supplierID string) error {
	s.setLoading(true)
	defer s.setLoading(false)

	if err := s.api.Delete(ctx, "/suppliers/"+supplierID, nil); err != nil {
		return s.fail(ctx, err, "供應商停用失敗")
	}

	s.mu.Lock()
	for i := range s.suppliers {
		if s.suppliers[i].SupplierID == supplierID {
			s.suppliers[i].IsActive = false
		}
	}
	if s.current != nil && s.current.SupplierID == supplierID {
		s.current.IsActive = false
	}
	s.mu.Unlock()

	s.notifySuccess(ctx, "供應商停用成功")
	return nil
}

// FetchSummary loads the dropdown projection
func (s *Store) FetchSummary(ctx context.Context, region string, activeOnly bool) ([]SummaryItem, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	query := url.Values{}
	if region != "" {
		query.Set("region", region)
	}
	if activeOnly {
		query.Set("active", "true")
	}

	var summary []SummaryItem
	if err := s.api.Get(ctx, "/suppliers/summary", &summary, transport.WithQuery(query)); err != nil {
		return nil, s.fail(ctx, err, "獲取供應商摘要失敗")
	}

	s.mu.Lock()
	s.summary = summary
	s.mu.Unlock()
	return summary, nil
}

// Suppliers returns a copy of the cached supplier list
func (s *Store) Suppliers() []Supplier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	suppliers := make([]Supplier, len(s.suppliers))
	copy(suppliers, s.suppliers)
	return suppliers
}

// Current returns the supplier detail, if one is loaded
func (s *Store) Current() *Supplier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	supplier := *s.current
	return &supplier
}

// ClearCurrent drops the detail record
func (s *Store) ClearCurrent() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}

// Summary returns a copy of the cached dropdown projection
func (s *Store) Summary() []SummaryItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary := make([]SummaryItem, len(s.summary))
	copy(summary, s.summary)
	return summary
}

// Active returns the cached suppliers still in use
func (s *Store) Active() []Supplier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var active []Supplier
	for _, supplier := range s.suppliers {
		if supplier.IsActive {
			active = append(active, supplier)
		}
	}
	return active
}

// ByRegion returns the cached suppliers in one region
func (s *Store) ByRegion(region string) []Supplier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []Supplier
	for _, supplier := range s.suppliers {
		if supplier.Region == region {
			matched = append(matched, supplier)
		}
	}
	return matched
}

// ByID finds a supplier in the cached list
func (s *Store) ByID(supplierID string) (Supplier, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, supplier := range s.suppliers {
		if supplier.SupplierID == supplierID {
			return supplier, true
		}
	}
	return Supplier{}, false
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

func (s *Store) merge(supplier Supplier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.suppliers {
		if s.suppliers[i].SupplierID == supplier.SupplierID {
			s.suppliers[i] = supplier
			break
		}
	}
	if s.current != nil && s.current.SupplierID == supplier.SupplierID {
		s.current = &supplier
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
	if f.Region != "" {
		query.Set("region", f.Region)
	}
	if f.Active != nil {
		query.Set("active", strconv.FormatBool(*f.Active))
	}
	if f.Search != "" {
		query.Set("q", f.Search)
	}
	if f.Page > 0 {
		query.Set("page", strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 {
		query.Set("page_size", strconv.Itoa(f.PageSize))
	}
	return query
}
