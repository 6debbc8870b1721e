package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/erp/client/internal/domain/shared"
	"github.com/erp/client/internal/infrastructure/session"
	"github.com/erp/client/internal/infrastructure/transport"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Manager owns the authentication lifecycle for the client: login,
// logout, proactive refresh, profile maintenance, and role checks. The
// session itself lives in the Holder so the transport layer can attach
// and rotate tokens without going through the manager.
type Manager struct {
	api      *transport.Client
	sessions *session.Holder
	validate *validator.Validate
	bus      shared.EventPublisher
	logger   *zap.Logger
}

// NewManager creates a new authentication manager
func NewManager(api *transport.Client, sessions *session.Holder, bus shared.EventPublisher, logger *zap.Logger) *Manager {
	return &Manager{
		api:      api,
		sessions: sessions,
		validate: validator.New(),
		bus:      bus,
		logger:   logger,
	}
}

// Restore loads a persisted session from the durable store. A missing or
// corrupt store is not an error: the client simply starts logged out.
func (m *Manager) Restore() error {
	if err := m.sessions.Init(); err != nil {
		return fmt.Errorf("restoring session: %w", err)
	}
	if sess := m.sessions.Get(); sess.Authenticated() {
		m.logger.Info("session restored",
			zap.String("username", sess.User.Username),
			zap.String("role", sess.User.Role),
		)
	}
	return nil
}

// Login authenticates against the backend and installs the returned
// session. On success auth.logged_in is published.
func (m *Manager) Login(ctx context.Context, input LoginInput) (session.User, error) {
	if err := m.validate.Struct(input); err != nil {
		return session.User{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	m.logger.Info("login attempt", zap.String("username", input.Username))

	var resp session.LoginResponse
	if err := m.api.Post(ctx, "/auth/login", input, &resp); err != nil {
		var apiErr *shared.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			m.logger.Warn("login rejected", zap.String("username", input.Username))
			return session.User{}, shared.ErrInvalidCredentials
		}
		return session.User{}, err
	}

	sess := resp.Session()
	if err := m.sessions.Set(sess); err != nil {
		return session.User{}, fmt.Errorf("persisting session: %w", err)
	}

	m.logger.Info("login successful",
		zap.Int("user_id", sess.User.UserID),
		zap.String("username", sess.User.Username),
	)
	_ = m.bus.Publish(ctx,
		shared.NewEvent(shared.EventAuthLoggedIn, map[string]any{
			"user_id":  sess.User.UserID,
			"username": sess.User.Username,
			"role":     sess.User.Role,
		}),
		shared.NewSuccessNotification("登入成功"),
	)
	return sess.User, nil
}

// Logout tells the backend to revoke the session, then clears local state
// regardless of the outcome. A dead backend must never trap the user in a
// logged-in client.
func (m *Manager) Logout(ctx context.Context) error {
	if m.sessions.Authenticated() {
		if err := m.api.Post(ctx, "/auth/logout", nil, nil); err != nil {
			m.logger.Warn("remote logout failed, clearing local session anyway", zap.Error(err))
		}
	}
	if err := m.sessions.Clear(); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	_ = m.bus.Publish(ctx, shared.NewEvent(shared.EventAuthLoggedOut, map[string]any{
		"reason": "user_logout",
	}))
	return nil
}

// Refresh proactively exchanges the refresh token for a new token pair
func (m *Manager) Refresh(ctx context.Context) error {
	if !m.sessions.Authenticated() {
		return shared.ErrNotAuthenticated
	}
	return m.api.Refresh(ctx)
}

// CurrentUser returns the authenticated user
func (m *Manager) CurrentUser() (session.User, error) {
	sess := m.sessions.Get()
	if !sess.Authenticated() {
		return session.User{}, shared.ErrNotAuthenticated
	}
	return sess.User, nil
}

// Authenticated reports whether a session is active
func (m *Manager) Authenticated() bool {
	return m.sessions.Authenticated()
}

// HasRole reports whether the current user holds the required role.
// Admin passes every check; a logged-out client holds no roles.
func (m *Manager) HasRole(required string) bool {
	sess := m.sessions.Get()
	if !sess.Authenticated() {
		return false
	}
	return roleSatisfies(sess.User.Role, required)
}

// HasAnyRole reports whether the current user holds any of the roles
func (m *Manager) HasAnyRole(required ...string) bool {
	for _, role := range required {
		if m.HasRole(role) {
			return true
		}
	}
	return false
}

// ChangePassword changes the current user's password
func (m *Manager) ChangePassword(ctx context.Context, input ChangePasswordInput) error {
	if !m.sessions.Authenticated() {
		return shared.ErrNotAuthenticated
	}
	if err := m.validate.Struct(input); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if err := m.api.Post(ctx, "/auth/change-password", input, nil); err != nil {
		return err
	}
	_ = m.bus.Publish(ctx, shared.NewSuccessNotification("密碼修改成功"))
	return nil
}

// UpdateProfile updates the editable profile fields and merges the
// backend's view of the user into the session.
func (m *Manager) UpdateProfile(ctx context.Context, input UpdateProfileInput) (session.User, error) {
	if !m.sessions.Authenticated() {
		return session.User{}, shared.ErrNotAuthenticated
	}

	var updated session.User
	if err := m.api.Put(ctx, "/auth/profile", input, &updated); err != nil {
		return session.User{}, err
	}
	if err := m.sessions.UpdateUser(func(u *session.User) {
		*u = updated
	}); err != nil {
		return session.User{}, fmt.Errorf("persisting profile: %w", err)
	}
	_ = m.bus.Publish(ctx, shared.NewSuccessNotification("資料更新成功"))
	return updated, nil
}
