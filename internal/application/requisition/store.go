package requisition

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/erp/client/internal/domain/shared"
	"github.com/erp/client/internal/infrastructure/session"
	"github.com/erp/client/internal/infrastructure/transport"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// RetryConfig bounds the read-after-write compensation loops
type RetryConfig struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	PollAttempts int
	PollInterval time.Duration
}

// DefaultRetryConfig returns the retry budget applied when none is given
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		BaseDelay:    time.Second,
		PollAttempts: 5,
		PollInterval: time.Second,
	}
}

// Store is the client-side cache of requisitions. The cached list and the
// current detail singleton always reflect the last server-confirmed
// state: list fetches replace wholesale, mutations merge by id only after
// the backend accepted them, and failures leave the cache untouched.
type Store struct {
	api      *transport.Client
	sessions *session.Holder
	bus      shared.EventPublisher
	validate *validator.Validate
	retry    RetryConfig
	logger   *zap.Logger

	mu          sync.RWMutex
	orders      []RequestOrder
	current     *RequestOrder
	pagination  shared.Pagination
	permissions Permissions
	filters     Filters
	loading     bool
}

// NewStore creates a requisition store
func NewStore(api *transport.Client, sessions *session.Holder, bus shared.EventPublisher, retry RetryConfig, logger *zap.Logger) *Store {
	if retry.MaxAttempts < 1 {
		retry = DefaultRetryConfig()
	}
	return &Store{
		api:      api,
		sessions: sessions,
		bus:      bus,
		validate: validator.New(),
		retry:    retry,
		logger:   logger,
		filters:  Filters{Page: 1, PageSize: 20},
	}
}

// listResponse is the requisition list envelope; the backend attaches its
// permission scoping alongside the usual pagination.
type listResponse struct {
	Items       []RequestOrder    `json:"items"`
	Pagination  shared.Pagination `json:"pagination"`
	Permissions *Permissions      `json:"permissions,omitempty"`
}

// Fetch replaces the cached list wholesale. A nil filters argument reuses
// the filters of the previous fetch.
func (s *Store) Fetch(ctx context.Context, filters *Filters) ([]RequestOrder, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	s.mu.Lock()
	if filters != nil {
		s.filters = *filters
	}
	query := s.filters
	s.mu.Unlock()

	var resp listResponse
	if err := s.api.Get(ctx, "/requisitions", &resp, transport.WithQuery(filterQuery(query))); err != nil {
		return nil, s.fail(ctx, err, "獲取請購單列表失敗")
	}

	s.mu.Lock()
	s.orders = resp.Items
	s.pagination = resp.Pagination
	if resp.Permissions != nil {
		s.permissions = *resp.Permissions
	}
	s.mu.Unlock()
	return resp.Items, nil
}

// FetchDetail sets the current singleton. A matching list entry is left
// stale on purpose: detail responses carry fields the list summary does
// not, so patching the list from a detail is not safe.
func (s *Store) FetchDetail(ctx context.Context, id string) (RequestOrder, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	var order RequestOrder
	if err := s.api.Get(ctx, "/requisitions/"+id, &order); err != nil {
		return RequestOrder{}, s.fail(ctx, err, "獲取請購單詳情失敗")
	}

	s.mu.Lock()
	s.current = &order
	s.mu.Unlock()
	return order, nil
}

// Create creates a requisition and unshifts it into the cached list. The
// list is not refetched and not resorted.
func (s *Store) Create(ctx context.Context, input CreateInput) (RequestOrder, error) {
	if err := s.validate.Struct(input); err != nil {
		return RequestOrder{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	var order RequestOrder
	if err := s.api.Post(ctx, "/requisitions", input, &order); err != nil {
		return RequestOrder{}, s.fail(ctx, err, "創建請購單失敗")
	}

	s.mu.Lock()
	s.orders = append([]RequestOrder{order}, s.orders...)
	s.mu.Unlock()

	s.notifySuccess(ctx, "請購單創建成功")
	return order, nil
}

// Update updates a draft requisition and merges the result by id
func (s *Store) Update(ctx context.Context, id string, input UpdateInput) (RequestOrder, error) {
	if err := s.validate.Struct(input); err != nil {
		return RequestOrder{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	var order RequestOrder
	if err := s.api.Put(ctx, "/requisitions/"+id, input, &order); err != nil {
		return RequestOrder{}, s.fail(ctx, err, "更新請購單失敗")
	}

	s.mergeOrder(order)
	s.notifySuccess(ctx, "請購單更新成功")
	return order, nil
}

// Submit moves a draft requisition into review
func (s *Store) Submit(ctx context.Context, id string) (RequestOrder, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	var order RequestOrder
	if err := s.api.Post(ctx, "/requisitions/"+id+"/submit", nil, &order); err != nil {
		return RequestOrder{}, s.fail(ctx, err, "提交請購單失敗")
	}

	s.mergeOrder(order)
	s.notifySuccess(ctx, "請購單提交成功")
	return order, nil
}

// ApproveItem approves one line with its sourcing decision, then refetches
// the requisition with retries because the rollup lags the line update.
func (s *Store) ApproveItem(ctx context.Context, id string, detailID int, input ApproveItemInput) (RequestItem, error) {
	if err := s.validate.Struct(input); err != nil {
		return RequestItem{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return s.lineAction(ctx, id, detailID, "approve", input, "項目審核通過", "審核項目失敗")
}

// QuestionItem flags one line for clarification
func (s *Store) QuestionItem(ctx context.Context, id string, detailID int, input ReasonInput) (RequestItem, error) {
	if err := s.validate.Struct(input); err != nil {
		return RequestItem{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return s.lineAction(ctx, id, detailID, "question", input, "項目標記為有疑問", "標記項目疑問失敗")
}

// RejectItem rejects one line with a reason
func (s *Store) RejectItem(ctx context.Context, id string, detailID int, input ReasonInput) (RequestItem, error) {
	if err := s.validate.Struct(input); err != nil {
		return RequestItem{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return s.lineAction(ctx, id, detailID, "reject", input, "項目已駁回", "駁回項目失敗")
}

func (s *Store) lineAction(ctx context.Context, id string, detailID int, action string, body any, successMsg, failMsg string) (RequestItem, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	path := fmt.Sprintf("/requisitions/%s/lines/%d/%s", id, detailID, action)
	var item RequestItem
	if err := s.api.Post(ctx, path, body, &item); err != nil {
		return RequestItem{}, s.fail(ctx, err, failMsg)
	}

	if _, err := s.RefreshWithRetry(ctx, id, 0); err != nil {
		s.logger.Warn("refresh after line action failed",
			zap.String("request_order_no", id),
			zap.Int("detail_id", detailID),
			zap.Error(err),
		)
	}
	s.notifySuccess(ctx, successMsg)
	return item, nil
}

// Reject rejects the whole requisition
func (s *Store) Reject(ctx context.Context, id string, input ReasonInput) (RequestOrder, error) {
	if err := s.validate.Struct(input); err != nil {
		return RequestOrder{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	var order RequestOrder
	if err := s.api.Post(ctx, "/requisitions/"+id+"/reject", input, &order); err != nil {
		return RequestOrder{}, s.fail(ctx, err, "駁回請購單失敗")
	}

	s.mergeOrder(order)
	s.notifySuccess(ctx, "請購單已駁回")
	return order, nil
}

// Cancel withdraws a requisition with a reason
func (s *Store) Cancel(ctx context.Context, id string, input ReasonInput) (RequestOrder, error) {
	if err := s.validate.Struct(input); err != nil {
		return RequestOrder{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	var order RequestOrder
	if err := s.api.Post(ctx, "/requisitions/"+id+"/cancel", input, &order, transport.WithIdempotencyKey()); err != nil {
		return RequestOrder{}, s.fail(ctx, err, "取消請購單失敗")
	}

	s.mergeOrder(order)
	s.notifySuccess(ctx, "請購單已取消")
	return order, nil
}

// SaveItemChanges updates a line's sourcing fields through the
// fix-status endpoint without moving the line's review status.
func (s *Store) SaveItemChanges(ctx context.Context, id string, detailID int, input SaveChangesInput) (RequestItem, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	payload := struct {
		SaveChangesInput
		DetailID int `json:"detail_id"`
	}{SaveChangesInput: input, DetailID: detailID}

	var item RequestItem
	if err := s.api.Post(ctx, "/requisitions/"+id+"/fix-status", payload, &item); err != nil {
		return RequestItem{}, s.fail(ctx, err, "保存變更失敗")
	}

	s.mergeItem(id, item)
	return item, nil
}

// UpdateItemNote updates a line's free-form note
func (s *Store) UpdateItemNote(ctx context.Context, id string, detailID int, input NoteInput) (RequestItem, error) {
	if err := s.validate.Struct(input); err != nil {
		return RequestItem{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	path := fmt.Sprintf("/requisitions/%s/lines/%d/note", id, detailID)
	var item RequestItem
	if err := s.api.Patch(ctx, path, input, &item); err != nil {
		return RequestItem{}, s.fail(ctx, err, "更新備註失敗")
	}

	s.mergeItem(id, item)
	return item, nil
}

// QuestionedItems lists reviewer-questioned lines across requisitions
func (s *Store) QuestionedItems(ctx context.Context) ([]RequestItem, error) {
	var resp shared.ListEnvelope[RequestItem]
	if err := s.api.Get(ctx, "/requisitions/questioned-items", &resp); err != nil {
		return nil, s.fail(ctx, err, "獲取疑問項目失敗")
	}
	return resp.Items, nil
}

// RefreshWithRetry refetches the detail up to maxRetries times with
// increasing delay and merges the result into the list and the current
// singleton. It compensates for the backend's read-after-write lag after
// a line mutation; maxRetries <= 0 uses the configured budget.
func (s *Store) RefreshWithRetry(ctx context.Context, id string, maxRetries int) (RequestOrder, error) {
	if maxRetries <= 0 {
		maxRetries = s.retry.MaxAttempts
	}

	order, err := transport.RetryLinear(ctx, maxRetries, s.retry.BaseDelay, func(ctx context.Context) (RequestOrder, error) {
		var fresh RequestOrder
		if err := s.api.Get(ctx, "/requisitions/"+id, &fresh); err != nil {
			return RequestOrder{}, err
		}
		return fresh, nil
	})
	if err != nil {
		return RequestOrder{}, err
	}

	s.mergeOrder(order)
	return order, nil
}

// PollStatus refetches the requisition until its status equals expected
// or the attempt budget runs out. It returns found=false, not an error,
// when the status never arrives; maxAttempts <= 0 uses the configured
// budget.
func (s *Store) PollStatus(ctx context.Context, id, expected string, maxAttempts int) (RequestOrder, bool, error) {
	if maxAttempts <= 0 {
		maxAttempts = s.retry.PollAttempts
	}

	order, found, err := transport.Poll(ctx, maxAttempts, s.retry.PollInterval, func(ctx context.Context) (RequestOrder, bool, error) {
		var fresh RequestOrder
		if err := s.api.Get(ctx, "/requisitions/"+id, &fresh); err != nil {
			return RequestOrder{}, false, err
		}
		return fresh, fresh.OrderStatus == expected, nil
	})
	if err != nil || !found {
		return RequestOrder{}, false, err
	}

	s.mergeOrder(order)
	return order, true, nil
}

// Requisitions returns a copy of the cached list
func (s *Store) Requisitions() []RequestOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orders := make([]RequestOrder, len(s.orders))
	copy(orders, s.orders)
	return orders
}

// Current returns the detail singleton, ok=false when none is loaded
func (s *Store) Current() (RequestOrder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return RequestOrder{}, false
	}
	return *s.current, true
}

// ClearCurrent drops the detail singleton
func (s *Store) ClearCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}

// Pagination returns the pagination of the last list fetch
func (s *Store) Pagination() shared.Pagination {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pagination
}

// Permissions returns the scoping of the last list fetch
func (s *Store) Permissions() Permissions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.permissions
}

// Loading reports whether a fetch or mutation is in flight
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Pending returns the cached requisitions awaiting review
func (s *Store) Pending() []RequestOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var pending []RequestOrder
	for _, order := range s.orders {
		if order.OrderStatus == StatusSubmitted {
			pending = append(pending, order)
		}
	}
	return pending
}

// Mine returns the cached requisitions raised by the authenticated user
func (s *Store) Mine() []RequestOrder {
	user, err := currentUser(s.sessions)
	if err != nil {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var mine []RequestOrder
	for _, order := range s.orders {
		if order.RequesterID == user.UserID {
			mine = append(mine, order)
		}
	}
	return mine
}

// ByID returns the cached list entry with the given order number
func (s *Store) ByID(id string) (RequestOrder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, order := range s.orders {
		if order.RequestOrderNo == id {
			return order, true
		}
	}
	return RequestOrder{}, false
}

// mergeOrder merges a server-confirmed requisition by id into the list
// and the current singleton.
func (s *Store) mergeOrder(order RequestOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].RequestOrderNo == order.RequestOrderNo {
			s.orders[i] = order
			break
		}
	}
	if s.current != nil && s.current.RequestOrderNo == order.RequestOrderNo {
		s.current = &order
	}
}

// mergeItem merges a server-confirmed line into the current singleton
func (s *Store) mergeItem(id string, item RequestItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.RequestOrderNo != id {
		return
	}
	for i := range s.current.Items {
		if s.current.Items[i].DetailID == item.DetailID {
			s.current.Items[i] = item
			return
		}
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

func currentUser(sessions *session.Holder) (session.User, error) {
	sess := sessions.Get()
	if !sess.Authenticated() {
		return session.User{}, shared.ErrNotAuthenticated
	}
	return sess.User, nil
}

func filterQuery(f Filters) url.Values {
	query := url.Values{}
	if f.Mine != nil {
		query.Set("mine", strconv.FormatBool(*f.Mine))
	}
	if f.Status != "" {
		query.Set("status", f.Status)
	}
	if f.Page > 0 {
		query.Set("page", strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 {
		query.Set("page_size", strconv.Itoa(f.PageSize))
	}
	return query
}
