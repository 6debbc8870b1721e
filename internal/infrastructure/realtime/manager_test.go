package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/client/internal/domain/shared"
	"github.com/erp/client/internal/infrastructure/session"
	"github.com/gorilla/websocket"
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

func (b *recordingBus) byType(eventType string) []shared.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var matched []shared.Event
	for _, evt := range b.events {
		if evt.EventType() == eventType {
			matched = append(matched, evt)
		}
	}
	return matched
}

var upgrader = websocket.Upgrader{}

func wsServer(t *testing.T, handler func(*websocket.Conn, *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func authedHolder(t *testing.T) *session.Holder {
	t.Helper()
	holder := session.NewHolder(session.NewMemoryStore())
	require.NoError(t, holder.Set(session.Session{AccessToken: "access", RefreshToken: "refresh"}))
	return holder
}

func newManager(t *testing.T, srv *httptest.Server, holder *session.Holder, maxAttempts int) (*Manager, *recordingBus) {
	t.Helper()
	bus := &recordingBus{}
	m := NewManager(Options{
		URL:                  wsURL(srv),
		MaxReconnectAttempts: maxAttempts,
		ReconnectBaseDelay:   10 * time.Millisecond,
		HandshakeTimeout:     time.Second,
	}, holder, bus, zap.NewNop())
	t.Cleanup(m.Close)
	return m, bus
}

func TestConnectRequiresSession(t *testing.T) {
	srv := wsServer(t, func(conn *websocket.Conn, _ *http.Request) {})
	holder := session.NewHolder(session.NewMemoryStore())
	m, _ := newManager(t, srv, holder, 1)

	err := m.Connect(context.Background())
	assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
	assert.False(t, m.Connected())
}

func TestConnectSendsBearerAndSubscribeFrames(t *testing.T) {
	frames := make(chan Frame, 4)
	headers := make(chan string, 1)
	srv := wsServer(t, func(conn *websocket.Conn, r *http.Request) {
		headers <- r.Header.Get("Authorization")
		for {
			var frame Frame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			frames <- frame
		}
	})
	m, bus := newManager(t, srv, authedHolder(t), 1)

	require.NoError(t, m.Connect(context.Background()))
	assert.True(t, m.Connected())
	assert.Equal(t, "Bearer access", <-headers)

	require.NoError(t, m.SubscribeRequisition("REQ-20260831-001"))
	frame := <-frames
	assert.Equal(t, "subscribe_requisition", frame.Event)
	assert.Equal(t, "REQ-20260831-001", frame.Data["requisition_id"])

	require.NoError(t, m.UnsubscribeRequisition("REQ-20260831-001"))
	frame = <-frames
	assert.Equal(t, "unsubscribe_requisition", frame.Event)

	require.NotEmpty(t, bus.byType(shared.EventRealtimeConnected))
}

func TestStatusPushRepublishedOnBus(t *testing.T) {
	srv := wsServer(t, func(conn *websocket.Conn, _ *http.Request) {
		require.NoError(t, conn.WriteJSON(Frame{
			Event: "requisition_status_changed",
			Data:  map[string]any{"requisition_id": "REQ-20260831-001", "order_status": "reviewed"},
		}))
		// hold the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	m, bus := newManager(t, srv, authedHolder(t), 1)

	require.NoError(t, m.Connect(context.Background()))

	require.Eventually(t, func() bool {
		return len(bus.byType(shared.EventRequisitionStatusChanged)) == 1
	}, time.Second, 5*time.Millisecond)

	evt := bus.byType(shared.EventRequisitionStatusChanged)[0]
	assert.Equal(t, "REQ-20260831-001", evt.Payload()["requisition_id"])
	assert.Equal(t, "reviewed", evt.Payload()["order_status"])
}

func TestReconnectRestoresSubscriptions(t *testing.T) {
	var conns atomic.Int64
	frames := make(chan Frame, 4)
	srv := wsServer(t, func(conn *websocket.Conn, _ *http.Request) {
		n := conns.Add(1)
		if n == 1 {
			// drop the first connection after the initial subscribe
			var frame Frame
			require.NoError(t, conn.ReadJSON(&frame))
			frames <- frame
			return
		}
		for {
			var frame Frame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			frames <- frame
		}
	})
	m, _ := newManager(t, srv, authedHolder(t), 3)

	require.NoError(t, m.Connect(context.Background()))
	require.NoError(t, m.SubscribeRequisition("REQ-20260831-001"))

	first := <-frames
	assert.Equal(t, "subscribe_requisition", first.Event)

	select {
	case resub := <-frames:
		assert.Equal(t, "subscribe_requisition", resub.Event)
		assert.Equal(t, "REQ-20260831-001", resub.Data["requisition_id"])
	case <-time.After(time.Second):
		t.Fatal("subscription not restored after reconnect")
	}
	assert.GreaterOrEqual(t, conns.Load(), int64(2))
}

func TestManualCloseSuppressesReconnect(t *testing.T) {
	var conns atomic.Int64
	srv := wsServer(t, func(conn *websocket.Conn, _ *http.Request) {
		conns.Add(1)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	m, bus := newManager(t, srv, authedHolder(t), 3)

	require.NoError(t, m.Connect(context.Background()))
	m.Close()
	assert.False(t, m.Connected())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), conns.Load(), "closed manager never redials")
	assert.Empty(t, bus.byType(shared.EventRealtimeConnectionLost))
}

func TestExhaustedReconnectBudgetPublishesConnectionLost(t *testing.T) {
	var accepting atomic.Bool
	accepting.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !accepting.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	t.Cleanup(srv.Close)

	bus := &recordingBus{}
	m := NewManager(Options{
		URL:                  wsURL(srv),
		MaxReconnectAttempts: 2,
		ReconnectBaseDelay:   5 * time.Millisecond,
		HandshakeTimeout:     time.Second,
	}, authedHolder(t), bus, zap.NewNop())
	t.Cleanup(m.Close)

	require.NoError(t, m.Connect(context.Background()))
	accepting.Store(false)

	require.Eventually(t, func() bool {
		return len(bus.byType(shared.EventRealtimeConnectionLost)) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.NotEmpty(t, bus.byType(shared.EventNotificationError))
	assert.False(t, m.Connected())
}

func TestEmitRequiresConnection(t *testing.T) {
	srv := wsServer(t, func(conn *websocket.Conn, _ *http.Request) {})
	m, _ := newManager(t, srv, authedHolder(t), 1)

	err := m.Emit("ping", nil)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestCleanupSafeWhenNeverConnected(t *testing.T) {
	srv := wsServer(t, func(conn *websocket.Conn, _ *http.Request) {})
	m, _ := newManager(t, srv, authedHolder(t), 1)

	err := m.SubscribeRequisition("REQ-1")
	assert.ErrorIs(t, err, shared.ErrInvalidState, "subscription recorded but not deliverable yet")
	m.Cleanup()
	assert.False(t, m.Connected())
}
