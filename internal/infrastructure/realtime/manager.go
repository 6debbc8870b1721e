package realtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/erp/client/internal/domain/shared"
	"github.com/erp/client/internal/infrastructure/session"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Frame is the wire format for both directions: a named event and its
// JSON payload.
type Frame struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

// Wire event names
const (
	frameSubscribeRequisition   = "subscribe_requisition"
	frameUnsubscribeRequisition = "unsubscribe_requisition"
	frameRequisitionChanged     = "requisition_status_changed"
	frameAuthError              = "auth_error"
)

// Options configures the subscription manager
type Options struct {
	// URL is the websocket endpoint, ws:// or wss://.
	URL string
	// MaxReconnectAttempts bounds automatic reconnection. Zero means
	// the default of 5.
	MaxReconnectAttempts int
	// ReconnectBaseDelay is multiplied by the attempt number. Zero
	// means the default of one second.
	ReconnectBaseDelay time.Duration
	// HandshakeTimeout bounds the dial. Zero means the dialer default.
	HandshakeTimeout time.Duration
}

// Manager maintains one websocket connection to the realtime endpoint,
// tracks requisition subscriptions, and republishes server pushes on
// the internal event bus. Reconnection backs off linearly and restores
// the subscription set; a manual Close never reconnects.
type Manager struct {
	opts     Options
	sessions *session.Holder
	bus      shared.EventPublisher
	logger   *zap.Logger

	mu            sync.Mutex
	conn          *websocket.Conn
	connected     bool
	closed        bool
	attempts      int
	subscriptions map[string]bool
}

// NewManager creates a subscription manager. Connect must be called
// before subscribing.
func NewManager(opts Options, sessions *session.Holder, bus shared.EventPublisher, logger *zap.Logger) *Manager {
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = 5
	}
	if opts.ReconnectBaseDelay <= 0 {
		opts.ReconnectBaseDelay = time.Second
	}
	return &Manager{
		opts:          opts,
		sessions:      sessions,
		bus:           bus,
		logger:        logger,
		subscriptions: make(map[string]bool),
	}
}

// Connect dials the realtime endpoint with the session's bearer token.
// Connecting while already connected is a no-op.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.connected {
		m.mu.Unlock()
		return nil
	}
	m.closed = false
	m.mu.Unlock()

	token := m.sessions.AccessToken()
	if token == "" {
		return fmt.Errorf("%w: realtime connection requires a session", shared.ErrNotAuthenticated)
	}

	dialer := websocket.Dialer{HandshakeTimeout: m.opts.HandshakeTimeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := dialer.DialContext(ctx, m.opts.URL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrNetworkUnreachable, err)
	}

	m.mu.Lock()
	m.conn = conn
	m.connected = true
	m.attempts = 0
	resub := make([]string, 0, len(m.subscriptions))
	for id := range m.subscriptions {
		resub = append(resub, id)
	}
	m.mu.Unlock()

	m.logger.Info("realtime connected", zap.String("url", m.opts.URL))
	_ = m.bus.Publish(ctx, shared.NewEvent(shared.EventRealtimeConnected, map[string]any{"url": m.opts.URL}))

	for _, id := range resub {
		if err := m.send(Frame{Event: frameSubscribeRequisition, Data: map[string]any{"requisition_id": id}}); err != nil {
			m.logger.Warn("resubscribe failed", zap.String("requisition_id", id), zap.Error(err))
		}
	}

	go m.readLoop(conn)
	return nil
}

// SubscribeRequisition registers interest in one requisition's status
// pushes. The subscription survives reconnects.
func (m *Manager) SubscribeRequisition(requisitionID string) error {
	m.mu.Lock()
	m.subscriptions[requisitionID] = true
	connected := m.connected
	m.mu.Unlock()

	if !connected {
		return fmt.Errorf("%w: not connected", shared.ErrInvalidState)
	}
	return m.send(Frame{Event: frameSubscribeRequisition, Data: map[string]any{"requisition_id": requisitionID}})
}

// UnsubscribeRequisition drops interest in one requisition
func (m *Manager) UnsubscribeRequisition(requisitionID string) error {
	m.mu.Lock()
	delete(m.subscriptions, requisitionID)
	connected := m.connected
	m.mu.Unlock()

	if !connected {
		return fmt.Errorf("%w: not connected", shared.ErrInvalidState)
	}
	return m.send(Frame{Event: frameUnsubscribeRequisition, Data: map[string]any{"requisition_id": requisitionID}})
}

// Emit sends an arbitrary frame
func (m *Manager) Emit(event string, data map[string]any) error {
	m.mu.Lock()
	connected := m.connected
	m.mu.Unlock()
	if !connected {
		return fmt.Errorf("%w: not connected", shared.ErrInvalidState)
	}
	return m.send(Frame{Event: event, Data: data})
}

// Connected reports the connection state
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Close tears the connection down and suppresses reconnection
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	conn := m.conn
	m.conn = nil
	m.connected = false
	m.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}
}

// Cleanup closes the connection and forgets all subscriptions. It is
// safe to call when the manager never connected.
func (m *Manager) Cleanup() {
	m.Close()
	m.mu.Lock()
	m.subscriptions = make(map[string]bool)
	m.mu.Unlock()
}

func (m *Manager) send(frame Frame) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("%w: not connected", shared.ErrInvalidState)
	}
	if err := conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrNetworkUnreachable, err)
	}
	return nil
}

func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			m.onDisconnect(err)
			return
		}
		m.dispatch(frame)
	}
}

func (m *Manager) dispatch(frame Frame) {
	ctx := context.Background()
	switch frame.Event {
	case frameRequisitionChanged:
		m.logger.Debug("requisition status push", zap.Any("data", frame.Data))
		_ = m.bus.Publish(ctx, shared.NewEvent(shared.EventRequisitionStatusChanged, frame.Data))
	case frameAuthError:
		m.logger.Warn("realtime authentication rejected", zap.Any("data", frame.Data))
		m.Close()
	default:
		m.logger.Debug("unhandled realtime frame", zap.String("event", frame.Event))
	}
}

func (m *Manager) onDisconnect(cause error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.connected = false
	m.conn = nil
	m.attempts++
	attempt := m.attempts
	exhausted := attempt > m.opts.MaxReconnectAttempts
	m.mu.Unlock()

	ctx := context.Background()
	if exhausted {
		m.logger.Error("realtime reconnect budget exhausted", zap.Error(cause))
		_ = m.bus.Publish(ctx,
			shared.NewEvent(shared.EventRealtimeConnectionLost, map[string]any{"reason": cause.Error()}),
			shared.NewErrorNotification("即時連線中斷，請重新整理頁面"),
		)
		return
	}

	delay := time.Duration(attempt) * m.opts.ReconnectBaseDelay
	m.logger.Warn("realtime disconnected, reconnecting",
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
		zap.Error(cause),
	)

	time.AfterFunc(delay, func() {
		m.mu.Lock()
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return
		}
		if err := m.Connect(context.Background()); err != nil {
			m.onDisconnect(err)
		}
	})
}
