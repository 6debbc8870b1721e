package requisition

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/client/internal/domain/shared"
	"github.com/erp/client/internal/infrastructure/session"
	"github.com/erp/client/internal/infrastructure/transport"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func (b *recordingBus) Publish(_ context.Context, events ...shared.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, events...)
	return nil
}

func (b *recordingBus) typesSeen() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	types := make([]string, 0, len(b.events))
	for _, e := range b.events {
		types = append(types, e.EventType())
	}
	return types
}

func testRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		BaseDelay:    2 * time.Millisecond,
		PollAttempts: 3,
		PollInterval: 2 * time.Millisecond,
	}
}

func newTestStore(t *testing.T, handler http.Handler) (*Store, *session.Holder, *recordingBus) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	holder := session.NewHolder(session.NewMemoryStore())
	require.NoError(t, holder.Set(session.Session{
		AccessToken: "access", RefreshToken: "refresh",
		User: session.User{UserID: 7, Username: "wchen", Role: "Procurement"},
	}))
	bus := &recordingBus{}
	api := transport.NewClient(transport.Options{BaseURL: srv.URL, Timeout: 5 * time.Second}, holder, bus, zap.NewNop())
	return NewStore(api, holder, bus, testRetryConfig(), zap.NewNop()), holder, bus
}

func order(no, status string, requesterID int) RequestOrder {
	return RequestOrder{RequestOrderNo: no, OrderStatus: status, RequesterID: requesterID, UsageType: UsageDaily}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestFetchReplacesListWholesale(t *testing.T) {
	page := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/requisitions", func(w http.ResponseWriter, r *http.Request) {
		page++
		if page == 1 {
			writeJSON(t, w, listResponse{
				Items:       []RequestOrder{order("RO-001", StatusDraft, 7), order("RO-002", StatusSubmitted, 8)},
				Pagination:  shared.Pagination{Page: 1, PageSize: 20, Total: 2, Pages: 1},
				Permissions: &Permissions{CanViewAll: true, UserRole: "Procurement"},
			})
			return
		}
		writeJSON(t, w, listResponse{
			Items:      []RequestOrder{order("RO-003", StatusSubmitted, 9)},
			Pagination: shared.Pagination{Page: 1, PageSize: 20, Total: 1, Pages: 1},
		})
	})
	s, _, _ := newTestStore(t, mux)

	first, err := s.Fetch(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, first, 2)
	assert.True(t, s.Permissions().CanViewAll)

	second, err := s.Fetch(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, second, 1)

	cached := s.Requisitions()
	require.Len(t, cached, 1, "list fetch never partial-merges")
	assert.Equal(t, "RO-003", cached[0].RequestOrderNo)
	assert.Equal(t, 1, s.Pagination().Total)
}

func TestFetchDetailLeavesListStale(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/requisitions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, listResponse{Items: []RequestOrder{order("RO-001", StatusDraft, 7)}})
	})
	mux.HandleFunc("/requisitions/RO-001", func(w http.ResponseWriter, r *http.Request) {
		detail := order("RO-001", StatusSubmitted, 7)
		detail.Items = []RequestItem{{DetailID: 1, ItemName: "bearing", ItemStatus: ItemPending}}
		writeJSON(t, w, detail)
	})
	s, _, _ := newTestStore(t, mux)

	_, err := s.Fetch(context.Background(), nil)
	require.NoError(t, err)

	detail, err := s.FetchDetail(context.Background(), "RO-001")
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, detail.OrderStatus)

	current, ok := s.Current()
	require.True(t, ok)
	assert.Len(t, current.Items, 1)

	cached, ok := s.ByID("RO-001")
	require.True(t, ok)
	assert.Equal(t, StatusDraft, cached.OrderStatus, "detail fetch must not patch the list entry")
}

func TestCreateUnshifts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/requisitions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			writeJSON(t, w, listResponse{Items: []RequestOrder{order("RO-001", StatusDraft, 7)}})
			return
		}
		writeJSON(t, w, order("RO-002", StatusDraft, 7))
	})
	s, _, bus := newTestStore(t, mux)

	_, err := s.Fetch(context.Background(), nil)
	require.NoError(t, err)

	created, err := s.Create(context.Background(), CreateInput{
		UsageType: UsageDaily,
		Items: []CreateItemInput{
			{ItemName: "bearing", ItemQuantity: decimal.NewFromInt(10), ItemUnit: "pcs"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "RO-002", created.RequestOrderNo)

	cached := s.Requisitions()
	require.Len(t, cached, 2)
	assert.Equal(t, "RO-002", cached[0].RequestOrderNo, "created entity is unshifted")
	assert.Contains(t, bus.typesSeen(), shared.EventNotificationSuccess)
}

func TestCreateValidation(t *testing.T) {
	s, _, _ := newTestStore(t, http.NewServeMux())

	tests := []struct {
		name  string
		input CreateInput
	}{
		{"no items", CreateInput{UsageType: UsageDaily}},
		{"bad usage type", CreateInput{UsageType: "weekly", Items: []CreateItemInput{{ItemName: "x", ItemQuantity: decimal.NewFromInt(1), ItemUnit: "pcs"}}}},
		{"project without project id", CreateInput{UsageType: UsageProject, Items: []CreateItemInput{{ItemName: "x", ItemQuantity: decimal.NewFromInt(1), ItemUnit: "pcs"}}}},
		{"item missing unit", CreateInput{UsageType: UsageDaily, Items: []CreateItemInput{{ItemName: "x", ItemQuantity: decimal.NewFromInt(1)}}}},
		{"urgent without reason", CreateInput{UsageType: UsageDaily, IsUrgent: true, Items: []CreateItemInput{{ItemName: "x", ItemQuantity: decimal.NewFromInt(1), ItemUnit: "pcs"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, shared.ErrInvalidInput))
		})
	}
}

func TestSubmitMergesByID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/requisitions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, listResponse{Items: []RequestOrder{order("RO-001", StatusDraft, 7), order("RO-002", StatusDraft, 7)}})
	})
	mux.HandleFunc("/requisitions/RO-001", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, order("RO-001", StatusDraft, 7))
	})
	mux.HandleFunc("/requisitions/RO-001/submit", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, order("RO-001", StatusSubmitted, 7))
	})
	s, _, _ := newTestStore(t, mux)

	_, err := s.Fetch(context.Background(), nil)
	require.NoError(t, err)
	_, err = s.FetchDetail(context.Background(), "RO-001")
	require.NoError(t, err)

	_, err = s.Submit(context.Background(), "RO-001")
	require.NoError(t, err)

	cached, ok := s.ByID("RO-001")
	require.True(t, ok)
	assert.Equal(t, StatusSubmitted, cached.OrderStatus)

	untouched, ok := s.ByID("RO-002")
	require.True(t, ok)
	assert.Equal(t, StatusDraft, untouched.OrderStatus)

	current, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, StatusSubmitted, current.OrderStatus, "current singleton follows the merge")
}

func TestMutationFailureLeavesCacheUntouched(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/requisitions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, listResponse{Items: []RequestOrder{order("RO-001", StatusDraft, 7)}})
	})
	mux.HandleFunc("/requisitions/RO-001/submit", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		writeJSON(t, w, map[string]any{"error": map[string]any{"code": "INVALID_STATE", "message": "請購單狀態不允許提交"}})
	})
	s, _, bus := newTestStore(t, mux)

	_, err := s.Fetch(context.Background(), nil)
	require.NoError(t, err)

	_, err = s.Submit(context.Background(), "RO-001")
	require.Error(t, err)
	var apiErr *shared.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "請購單狀態不允許提交", apiErr.Message)

	cached, ok := s.ByID("RO-001")
	require.True(t, ok)
	assert.Equal(t, StatusDraft, cached.OrderStatus, "failed mutation never touches the cache")
	assert.False(t, s.Loading(), "loading flag reset on the error path")
	assert.Contains(t, bus.typesSeen(), shared.EventNotificationError)
}

func TestApproveItemRefreshesWithRetry(t *testing.T) {
	var detailFetches atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/requisitions/RO-001/lines/3/approve", func(w http.ResponseWriter, r *http.Request) {
		var input ApproveItemInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&input))
		assert.Equal(t, "SUP-01", input.SupplierID)
		writeJSON(t, w, RequestItem{DetailID: 3, ItemStatus: ItemApproved, SupplierID: input.SupplierID})
	})
	mux.HandleFunc("/requisitions/RO-001", func(w http.ResponseWriter, r *http.Request) {
		// First refresh attempt observes the pre-mutation state lag
		if detailFetches.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(t, w, order("RO-001", StatusReviewed, 7))
	})
	s, _, _ := newTestStore(t, mux)

	item, err := s.ApproveItem(context.Background(), "RO-001", 3, ApproveItemInput{
		SupplierID: "SUP-01",
		UnitPrice:  decimal.RequireFromString("12.50"),
	})
	require.NoError(t, err)
	assert.Equal(t, ItemApproved, item.ItemStatus)
	assert.Equal(t, int64(2), detailFetches.Load(), "refresh retried past the lagging read")
}

func TestRefreshWithRetryExhaustsBudget(t *testing.T) {
	var detailFetches atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/requisitions/RO-001", func(w http.ResponseWriter, r *http.Request) {
		detailFetches.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	s, _, _ := newTestStore(t, mux)

	_, err := s.RefreshWithRetry(context.Background(), "RO-001", 0)
	require.Error(t, err)
	assert.Equal(t, int64(3), detailFetches.Load(), "default budget is three attempts")
}

func TestPollStatus(t *testing.T) {
	var fetches atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/requisitions/RO-001", func(w http.ResponseWriter, r *http.Request) {
		status := StatusSubmitted
		if fetches.Add(1) >= 2 {
			status = StatusReviewed
		}
		writeJSON(t, w, order("RO-001", status, 7))
	})
	s, _, _ := newTestStore(t, mux)

	got, found, err := s.PollStatus(context.Background(), "RO-001", StatusReviewed, 0)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StatusReviewed, got.OrderStatus)
	assert.Equal(t, int64(2), fetches.Load())
}

func TestPollStatusBudgetExhausted(t *testing.T) {
	var fetches atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/requisitions/RO-001", func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		writeJSON(t, w, order("RO-001", StatusSubmitted, 7))
	})
	s, _, _ := newTestStore(t, mux)

	_, found, err := s.PollStatus(context.Background(), "RO-001", StatusReviewed, 0)
	require.NoError(t, err, "an exhausted budget is not an error")
	assert.False(t, found)
	assert.Equal(t, int64(3), fetches.Load(), "budget is mandatory")
}

func TestSaveItemChangesPatchesCurrentLine(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/requisitions/RO-001", func(w http.ResponseWriter, r *http.Request) {
		detail := order("RO-001", StatusSubmitted, 7)
		detail.Items = []RequestItem{
			{DetailID: 1, ItemName: "bearing", ItemStatus: ItemPending},
			{DetailID: 2, ItemName: "bolt", ItemStatus: ItemPending},
		}
		writeJSON(t, w, detail)
	})
	mux.HandleFunc("/requisitions/RO-001/fix-status", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.EqualValues(t, 2, payload["detail_id"])
		writeJSON(t, w, RequestItem{DetailID: 2, ItemName: "bolt", ItemStatus: ItemPending, StatusNote: "quote pending"})
	})
	s, _, _ := newTestStore(t, mux)

	_, err := s.FetchDetail(context.Background(), "RO-001")
	require.NoError(t, err)

	_, err = s.SaveItemChanges(context.Background(), "RO-001", 2, SaveChangesInput{StatusNote: "quote pending"})
	require.NoError(t, err)

	current, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "quote pending", current.Items[1].StatusNote)
	assert.Empty(t, current.Items[0].StatusNote, "sibling lines untouched")
}

func TestMineUsesSessionUser(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/requisitions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, listResponse{Items: []RequestOrder{
			order("RO-001", StatusDraft, 7),
			order("RO-002", StatusSubmitted, 8),
			order("RO-003", StatusSubmitted, 7),
		}})
	})
	s, holder, _ := newTestStore(t, mux)

	_, err := s.Fetch(context.Background(), nil)
	require.NoError(t, err)

	mine := s.Mine()
	require.Len(t, mine, 2)
	assert.Equal(t, "RO-001", mine[0].RequestOrderNo)
	assert.Equal(t, "RO-003", mine[1].RequestOrderNo)

	require.NoError(t, holder.Clear())
	assert.Nil(t, s.Mine(), "logged-out client owns nothing")
}

func TestPendingPartition(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/requisitions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, listResponse{Items: []RequestOrder{
			order("RO-001", StatusDraft, 7),
			order("RO-002", StatusSubmitted, 8),
		}})
	})
	s, _, _ := newTestStore(t, mux)

	_, err := s.Fetch(context.Background(), nil)
	require.NoError(t, err)

	pending := s.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "RO-002", pending[0].RequestOrderNo)
}

func TestFetchSendsFilters(t *testing.T) {
	var gotQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("/requisitions", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		writeJSON(t, w, listResponse{})
	})
	s, _, _ := newTestStore(t, mux)

	mine := true
	_, err := s.Fetch(context.Background(), &Filters{Mine: &mine, Status: StatusSubmitted, Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Contains(t, gotQuery, "mine=true")
	assert.Contains(t, gotQuery, "status=submitted")
	assert.Contains(t, gotQuery, "page=2")
	assert.Contains(t, gotQuery, "page_size=10")
}
