package session

import (
	"sync"
	"time"
)

// User is the authenticated user as returned by the backend
type User struct {
	UserID      int    `json:"user_id"`
	ChineseName string `json:"chinese_name"`
	Username    string `json:"username"`
	Department  string `json:"department,omitempty"`
	JobTitle    string `json:"job_title,omitempty"`
	Role        string `json:"role"`
	IsActive    bool   `json:"is_active"`
}

// Session holds the bearer tokens and user identity for one login.
// Invariant: AccessToken is non-empty iff the session is authenticated.
type Session struct {
	AccessToken  string    `json:"auth_token"`
	RefreshToken string    `json:"refresh_token"`
	User         User      `json:"user_data"`
	ExpiresAt    time.Time `json:"expires_at,omitzero"`
}

// Authenticated reports whether the session carries a usable access token
func (s Session) Authenticated() bool {
	return s.AccessToken != ""
}

// LoginResponse is the token payload returned by login and refresh
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
	ExpiresIn    int    `json:"expires_in"`
}

// Session converts the response into a Session, stamping expiry from now
func (r LoginResponse) Session() Session {
	s := Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		User:         r.User,
	}
	if r.ExpiresIn > 0 {
		s.ExpiresAt = time.Now().Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return s
}

// Holder is the single process-wide owner of the current session. All
// reads and writes go through it; persistence to the durable store happens
// on every mutation so a restarted process can resume the session.
type Holder struct {
	mu    sync.RWMutex
	sess  Session
	store Store
}

// NewHolder creates a session holder backed by the given store
func NewHolder(store Store) *Holder {
	return &Holder{store: store}
}

// Init restores the session from the durable store, if one was persisted
func (h *Holder) Init() error {
	sess, ok, err := h.store.Load()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	h.mu.Lock()
	h.sess = sess
	h.mu.Unlock()
	return nil
}

// Get returns a copy of the current session
func (h *Holder) Get() Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sess
}

// AccessToken returns the current access token, empty when logged out
func (h *Holder) AccessToken() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sess.AccessToken
}

// RefreshToken returns the current refresh token, empty when logged out
func (h *Holder) RefreshToken() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sess.RefreshToken
}

// Authenticated reports whether a session is active
func (h *Holder) Authenticated() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sess.Authenticated()
}

// Set replaces the current session and persists it
func (h *Holder) Set(sess Session) error {
	h.mu.Lock()
	h.sess = sess
	h.mu.Unlock()
	return h.store.Save(sess)
}

// UpdateUser merges updated profile fields into the session user and
// persists the result. No-op when logged out.
func (h *Holder) UpdateUser(mutate func(*User)) error {
	h.mu.Lock()
	if !h.sess.Authenticated() {
		h.mu.Unlock()
		return nil
	}
	mutate(&h.sess.User)
	sess := h.sess
	h.mu.Unlock()
	return h.store.Save(sess)
}

// Clear drops the session and wipes the durable store
func (h *Holder) Clear() error {
	h.mu.Lock()
	h.sess = Session{}
	h.mu.Unlock()
	return h.store.Clear()
}
