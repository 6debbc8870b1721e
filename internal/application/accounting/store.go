package accounting

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/erp/client/internal/application/procurement"
	"github.com/erp/client/internal/domain/shared"
	"github.com/erp/client/internal/infrastructure/transport"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Store is the client-side cache for accounts payable: billing
// candidates, generated billing batches, and payment history.
type Store struct {
	api      *transport.Client
	bus      shared.EventPublisher
	validate *validator.Validate
	logger   *zap.Logger

	mu         sync.RWMutex
	candidates []BillingCandidate
	batches    []BillingBatch
	history    []HistoryItem
	pagination shared.Pagination
	loading    bool
}

// NewStore creates an accounting store
func NewStore(api *transport.Client, bus shared.EventPublisher, logger *zap.Logger) *Store {
	return &Store{
		api:      api,
		bus:      bus,
		validate: validator.New(),
		logger:   logger,
	}
}

// FetchCandidates replaces the cached billing candidates wholesale
func (s *Store) FetchCandidates(ctx context.Context, filters CandidateFilters) ([]BillingCandidate, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	query := url.Values{}
	if filters.SupplierID != "" {
		query.Set("supplier_id", filters.SupplierID)
	}
	if filters.Month != "" {
		query.Set("month", filters.Month)
	}

	var candidates []BillingCandidate
	if err := s.api.Get(ctx, "/ap/billing/candidates", &candidates, transport.WithQuery(query)); err != nil {
		return nil, s.fail(ctx, err, "獲取請款候選失敗")
	}

	s.mu.Lock()
	s.candidates = candidates
	s.mu.Unlock()
	return candidates, nil
}

// GenerateBilling creates a billing batch, unshifts it, and removes the
// consumed purchase orders from the candidate cache.
func (s *Store) GenerateBilling(ctx context.Context, input GenerateBillingInput) (BillingBatch, error) {
	if err := s.validate.Struct(input); err != nil {
		return BillingBatch{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	var batch BillingBatch
	if err := s.api.Post(ctx, "/ap/billing", input, &batch); err != nil {
		return BillingBatch{}, s.fail(ctx, err, "生成請款單失敗")
	}

	consumed := make(map[string]bool, len(input.PONumbers))
	for _, poNo := range input.PONumbers {
		consumed[poNo] = true
	}

	s.mu.Lock()
	s.batches = append([]BillingBatch{batch}, s.batches...)
	kept := s.candidates[:0]
	for _, candidate := range s.candidates {
		if !consumed[candidate.PurchaseOrderNo] {
			kept = append(kept, candidate)
		}
	}
	s.candidates = kept
	s.mu.Unlock()

	s.notifySuccess(ctx, "請款單生成成功")
	return batch, nil
}

// MarkBillingPaid settles a billing batch. The request is idempotent and
// the payment history is refetched afterwards since its rows changed
// server-side.
func (s *Store) MarkBillingPaid(ctx context.Context, billingID string, input MarkPaidInput) (BillingBatch, error) {
	if err := s.validate.Struct(input); err != nil {
		return BillingBatch{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	var batch BillingBatch
	if err := s.api.Post(ctx, "/ap/billing/"+billingID+"/mark-paid", input, &batch, transport.WithIdempotencyKey()); err != nil {
		return BillingBatch{}, s.fail(ctx, err, "標記付款失敗")
	}

	s.mu.Lock()
	for i := range s.batches {
		if s.batches[i].BillingID == billingID {
			s.batches[i] = batch
			break
		}
	}
	s.mu.Unlock()

	if _, err := s.FetchHistory(ctx, HistoryFilters{}); err != nil {
		s.logger.Warn("payment history refetch failed", zap.String("billing_id", billingID), zap.Error(err))
	}

	s.notifySuccess(ctx, "付款標記成功")
	return batch, nil
}

// MarkPOPaid settles one purchase order outside a batch, idempotently
func (s *Store) MarkPOPaid(ctx context.Context, poNo string, input MarkPaidInput) (procurement.PurchaseOrder, error) {
	if err := s.validate.Struct(input); err != nil {
		return procurement.PurchaseOrder{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	var po procurement.PurchaseOrder
	if err := s.api.Post(ctx, "/ap/po/"+poNo+"/mark-paid", input, &po, transport.WithIdempotencyKey()); err != nil {
		return procurement.PurchaseOrder{}, s.fail(ctx, err, "標記採購單付款失敗")
	}

	if _, err := s.FetchHistory(ctx, HistoryFilters{}); err != nil {
		s.logger.Warn("payment history refetch failed", zap.String("purchase_order_no", poNo), zap.Error(err))
	}

	s.notifySuccess(ctx, "採購單付款標記成功")
	return po, nil
}

// FetchHistory replaces the cached payment history wholesale
func (s *Store) FetchHistory(ctx context.Context, filters HistoryFilters) ([]HistoryItem, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	var resp shared.ListEnvelope[HistoryItem]
	if err := s.api.Get(ctx, "/ap/history", &resp, transport.WithQuery(historyQuery(filters))); err != nil {
		return nil, s.fail(ctx, err, "獲取付款歷史失敗")
	}

	s.mu.Lock()
	s.history = resp.Items
	s.pagination = resp.Pagination
	s.mu.Unlock()
	return resp.Items, nil
}

// Candidates returns a copy of the cached billing candidates
func (s *Store) Candidates() []BillingCandidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	candidates := make([]BillingCandidate, len(s.candidates))
	copy(candidates, s.candidates)
	return candidates
}

// CandidatesBySupplier groups the cached candidates by supplier name
func (s *Store) CandidatesBySupplier() map[string][]BillingCandidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	grouped := make(map[string][]BillingCandidate)
	for _, candidate := range s.candidates {
		grouped[candidate.SupplierName] = append(grouped[candidate.SupplierName], candidate)
	}
	return grouped
}

// TotalCandidateAmount sums the cached candidates' grand totals
func (s *Store) TotalCandidateAmount() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, candidate := range s.candidates {
		total = total.Add(candidate.GrandTotal)
	}
	return total
}

// Batches returns a copy of the cached billing batches
func (s *Store) Batches() []BillingBatch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	batches := make([]BillingBatch, len(s.batches))
	copy(batches, s.batches)
	return batches
}

// History returns a copy of the cached payment history
func (s *Store) History() []HistoryItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := make([]HistoryItem, len(s.history))
	copy(history, s.history)
	return history
}

// Unpaid returns the cached history rows still billed
func (s *Store) Unpaid() []HistoryItem {
	return s.partition(BillingStatusBilled)
}

// Paid returns the cached history rows already settled
func (s *Store) Paid() []HistoryItem {
	return s.partition(BillingStatusPaid)
}

func (s *Store) partition(status string) []HistoryItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []HistoryItem
	for _, item := range s.history {
		if item.BillingStatus == status {
			rows = append(rows, item)
		}
	}
	return rows
}

// TotalUnpaidAmount sums the outstanding history rows
func (s *Store) TotalUnpaidAmount() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.Unpaid() {
		total = total.Add(item.Amount)
	}
	return total
}

// SupplierSummary aggregates the cached history for one supplier
func (s *Store) SupplierSummary(supplierName string) SupplierSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := SupplierSummary{
		TotalAmount:  decimal.Zero,
		UnpaidAmount: decimal.Zero,
		PaidAmount:   decimal.Zero,
	}
	for _, item := range s.history {
		if item.SupplierName != supplierName {
			continue
		}
		summary.Entries++
		summary.TotalAmount = summary.TotalAmount.Add(item.Amount)
		switch item.BillingStatus {
		case BillingStatusBilled:
			summary.UnpaidAmount = summary.UnpaidAmount.Add(item.Amount)
		case BillingStatusPaid:
			summary.PaidAmount = summary.PaidAmount.Add(item.Amount)
		}
	}
	return summary
}

// Pagination returns the pagination of the last history fetch
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

func historyQuery(f HistoryFilters) url.Values {
	query := url.Values{}
	if f.SupplierID != "" {
		query.Set("supplier_id", f.SupplierID)
	}
	if f.Month != "" {
		query.Set("month", f.Month)
	}
	if f.Paid != nil {
		query.Set("paid", strconv.FormatBool(*f.Paid))
	}
	if f.Page > 0 {
		query.Set("page", strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 {
		query.Set("page_size", strconv.Itoa(f.PageSize))
	}
	return query
}
