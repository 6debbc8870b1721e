package partner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/erp/client/internal/domain/shared"
	"github.com/erp/client/internal/infrastructure/session"
	"github.com/erp/client/internal/infrastructure/transport"
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

func newTestStore(t *testing.T, handler http.Handler) (*Store, *recordingBus) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	holder := session.NewHolder(session.NewMemoryStore())
	require.NoError(t, holder.Set(session.Session{AccessToken: "access", RefreshToken: "refresh"}))
	bus := &recordingBus{}
	api := transport.NewClient(transport.Options{BaseURL: srv.URL, Timeout: 5 * time.Second}, holder, bus, zap.NewNop())
	return NewStore(api, bus, zap.NewNop()), bus
}

func supplier(id, nameZh, region string, active bool) Supplier {
	return Supplier{SupplierID: id, NameZh: nameZh, Region: region, IsActive: active}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestFetchSendsFiltersAndReplacesList(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /suppliers", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "domestic", r.URL.Query().Get("region"))
		assert.Equal(t, "true", r.URL.Query().Get("active"))
		assert.Equal(t, "軸承", r.URL.Query().Get("q"))
		writeJSON(t, w, shared.ListEnvelope[Supplier]{
			Items:      []Supplier{supplier("SUP-01", "精密軸承股份有限公司", RegionDomestic, true)},
			Pagination: shared.Pagination{Page: 1, PageSize: 20, Total: 1, Pages: 1},
		})
	})
	s, _ := newTestStore(t, mux)

	active := true
	got, err := s.Fetch(context.Background(), Filters{Region: RegionDomestic, Active: &active, Search: "軸承"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, s.Pagination().Total)
}

func TestFetchRejectsUnknownRegion(t *testing.T) {
	s, _ := newTestStore(t, http.NewServeMux())

	_, err := s.Fetch(context.Background(), Filters{Region: "mars"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestCreateUnshifts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /suppliers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, shared.ListEnvelope[Supplier]{Items: []Supplier{supplier("SUP-01", "大安五金行", RegionDomestic, true)}})
	})
	mux.HandleFunc("POST /suppliers", func(w http.ResponseWriter, r *http.Request) {
		var input CreateInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&input))
		writeJSON(t, w, supplier(input.SupplierID, input.NameZh, input.Region, true))
	})
	s, bus := newTestStore(t, mux)

	_, err := s.Fetch(context.Background(), Filters{})
	require.NoError(t, err)

	created, err := s.Create(context.Background(), CreateInput{
		SupplierID: "SUP-02",
		NameZh:     "精密軸承股份有限公司",
		Region:     RegionDomestic,
	})
	require.NoError(t, err)

	suppliers := s.Suppliers()
	require.Len(t, suppliers, 2)
	assert.Equal(t, created.SupplierID, suppliers[0].SupplierID, "new supplier is unshifted")

	bus.mu.Lock()
	defer bus.mu.Unlock()
	last := bus.events[len(bus.events)-1]
	assert.Equal(t, shared.EventNotificationSuccess, last.EventType())
	assert.Equal(t, "供應商創建成功", last.Payload()["message"])
}

func TestCreateValidation(t *testing.T) {
	s, _ := newTestStore(t, http.NewServeMux())

	cases := []struct {
		name  string
		input CreateInput
	}{
		{"missing id", CreateInput{NameZh: "大安五金行", Region: RegionDomestic}},
		{"missing name", CreateInput{SupplierID: "SUP-02", Region: RegionDomestic}},
		{"missing region", CreateInput{SupplierID: "SUP-02", NameZh: "大安五金行"}},
		{"bad region", CreateInput{SupplierID: "SUP-02", NameZh: "大安五金行", Region: "mars"}},
		{"bad email", CreateInput{SupplierID: "SUP-02", NameZh: "大安五金行", Region: RegionDomestic, Email: "not-an-email"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Create(context.Background(), tc.input)
			assert.ErrorIs(t, err, shared.ErrInvalidInput)
		})
	}
}

func TestUpdateMergesListAndCurrent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /suppliers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, shared.ListEnvelope[Supplier]{Items: []Supplier{
			supplier("SUP-01", "大安五金行", RegionDomestic, true),
			supplier("SUP-02", "精密軸承股份有限公司", RegionDomestic, true),
		}})
	})
	mux.HandleFunc("GET /suppliers/SUP-01", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, supplier("SUP-01", "大安五金行", RegionDomestic, true))
	})
	mux.HandleFunc("PUT /suppliers/SUP-01", func(w http.ResponseWriter, r *http.Request) {
		var input UpdateInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&input))
		require.NotNil(t, input.PaymentTerms)
		updated := supplier("SUP-01", "大安五金行", RegionDomestic, true)
		updated.PaymentTerms = *input.PaymentTerms
		writeJSON(t, w, updated)
	})
	s, _ := newTestStore(t, mux)

	_, err := s.Fetch(context.Background(), Filters{})
	require.NoError(t, err)
	_, err = s.FetchDetail(context.Background(), "SUP-01")
	require.NoError(t, err)

	terms := "net60"
	_, err = s.Update(context.Background(), "SUP-01", UpdateInput{PaymentTerms: &terms})
	require.NoError(t, err)

	got, ok := s.ByID("SUP-01")
	require.True(t, ok)
	assert.Equal(t, "net60", got.PaymentTerms)
	require.NotNil(t, s.Current())
	assert.Equal(t, "net60", s.Current().PaymentTerms)

	other, ok := s.ByID("SUP-02")
	require.True(t, ok)
	assert.Empty(t, other.PaymentTerms, "unrelated rows untouched")
}

func TestDeactivateFlipsCachedFlag(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /suppliers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, shared.ListEnvelope[Supplier]{Items: []Supplier{supplier("SUP-01", "大安五金行", RegionDomestic, true)}})
	})
	mux.HandleFunc("DELETE /suppliers/SUP-01", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	s, _ := newTestStore(t, mux)

	_, err := s.Fetch(context.Background(), Filters{})
	require.NoError(t, err)

	require.NoError(t, s.Deactivate(context.Background(), "SUP-01"))

	got, ok := s.ByID("SUP-01")
	require.True(t, ok, "deactivated supplier stays listed")
	assert.False(t, got.IsActive)
	assert.Empty(t, s.Active())
}

func TestFetchSummary(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /suppliers/summary", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("active"))
		writeJSON(t, w, []SummaryItem{
			{SupplierID: "SUP-01", NameZh: "大安五金行", Region: RegionDomestic, IsActive: true},
		})
	})
	s, _ := newTestStore(t, mux)

	got, err := s.FetchSummary(context.Background(), "", true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Len(t, s.Summary(), 1)
}

func TestDerivedRegionViews(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /suppliers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, shared.ListEnvelope[Supplier]{Items: []Supplier{
			supplier("SUP-01", "大安五金行", RegionDomestic, true),
			supplier("SUP-02", "精密軸承股份有限公司", RegionDomestic, false),
			supplier("SUP-03", "Nordlager GmbH", RegionInternational, true),
		}})
	})
	s, _ := newTestStore(t, mux)

	_, err := s.Fetch(context.Background(), Filters{})
	require.NoError(t, err)

	assert.Len(t, s.Active(), 2)
	assert.Len(t, s.ByRegion(RegionDomestic), 2)
	assert.Len(t, s.ByRegion(RegionInternational), 1)
}
