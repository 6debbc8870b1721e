package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/erp/client/internal/domain/shared"
	"github.com/erp/client/internal/infrastructure/session"
	"go.uber.org/zap"
)

// refresh exchanges the refresh token for a new token pair. Concurrent
// callers collapse onto one network call via the singleflight group; every
// waiter observes the same outcome. On an irrecoverable failure the
// session is cleared wholesale and auth.logged_out is published, which is
// the client's login-boundary redirect.
func (c *Client) refresh(ctx context.Context) (string, error) {
	token, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		refreshToken := c.sessions.RefreshToken()
		if refreshToken == "" {
			c.expireSession()
			return nil, shared.ErrRefreshExpired
		}

		resp, err := c.doRefresh(ctx, refreshToken)
		if err != nil {
			c.logger.Warn("token refresh failed", zap.Error(err))
			c.expireSession()
			return nil, err
		}

		if err := c.sessions.Set(resp.Session()); err != nil {
			c.logger.Warn("persisting refreshed session failed", zap.Error(err))
		}
		c.logger.Debug("token refresh successful")
		return resp.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

// Refresh forces a token exchange outside the 401 replay path, for
// callers that want to renew a session proactively.
func (c *Client) Refresh(ctx context.Context) error {
	_, err := c.refresh(ctx)
	return err
}

// doRefresh performs the raw refresh request. It deliberately bypasses Do
// so a 401 here can never recurse into another refresh.
func (c *Client) doRefresh(ctx context.Context, refreshToken string) (*session.LoginResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.refreshPath, strings.NewReader("{}"))
	if err != nil {
		return nil, fmt.Errorf("building refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+refreshToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrNetworkUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, shared.ErrRefreshExpired
		}
		return nil, c.apiError(resp)
	}

	var loginResp session.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return nil, fmt.Errorf("decoding refresh response: %w", err)
	}
	if loginResp.AccessToken == "" {
		return nil, shared.ErrRefreshExpired
	}
	return &loginResp, nil
}

// expireSession clears local state and announces the forced logout
func (c *Client) expireSession() {
	if err := c.sessions.Clear(); err != nil {
		c.logger.Warn("clearing session failed", zap.Error(err))
	}
	_ = c.bus.Publish(context.Background(), shared.NewEvent(shared.EventAuthLoggedOut, map[string]any{
		"reason": "refresh_failed",
	}))
}
