package scoreapi

import (
	"context"
	"sync"
	"time"
)

// Sessions keeps one backend Client per logged-in username, so each user's
// backend cookie stays separate. Every sign-in is tracked under its own
// session id; the user's client lives until the last of them logs out.
// Anonymous reads go through Public.
type Sessions struct {
	base    string
	timeout time.Duration
	public  *Client

	mu    sync.RWMutex
	users map[string]*userSession
}

type userSession struct {
	client *Client
	sids   map[string]struct{}
}

func NewSessions(baseURL string, timeout time.Duration) *Sessions {
	return &Sessions{
		base:    baseURL,
		timeout: timeout,
		public:  New(baseURL, timeout),
		users:   make(map[string]*userSession),
	}
}

// Public is the cookie-less client used for leaderboard and profile reads.
func (s *Sessions) Public() *Client { return s.public }

// For returns username's client, or the public one when the user has no
// backend session in this process.
func (s *Sessions) For(username string) *Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if us, ok := s.users[username]; ok {
		return us.client
	}
	return s.public
}

// Active reports whether sid is a live sign-in of username.
func (s *Sessions) Active(username, sid string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	us, ok := s.users[username]
	if !ok {
		return false
	}
	_, ok = us.sids[sid]
	return ok
}

// Login authenticates username and keeps the resulting backend session
// under sid.
func (s *Sessions) Login(ctx context.Context, sid, username, password string) error {
	c := New(s.base, s.timeout)
	if err := c.Login(ctx, username, password); err != nil {
		return err
	}
	s.put(sid, username, c)
	return nil
}

// Register creates the account and keeps the resulting backend session
// under sid.
func (s *Sessions) Register(ctx context.Context, sid, username, password string) error {
	c := New(s.base, s.timeout)
	if err := c.Register(ctx, username, password); err != nil {
		return err
	}
	s.put(sid, username, c)
	return nil
}

// Logout ends the sign-in sid of username and returns how many of the
// user's sign-ins remain. The backend session is closed only when none do;
// the local one is dropped even when that backend call fails.
func (s *Sessions) Logout(ctx context.Context, sid, username string) (int, error) {
	s.mu.Lock()
	us, ok := s.users[username]
	if !ok {
		s.mu.Unlock()
		return 0, nil
	}
	delete(us.sids, sid)
	if n := len(us.sids); n > 0 {
		s.mu.Unlock()
		return n, nil
	}
	delete(s.users, username)
	s.mu.Unlock()
	return 0, us.client.Logout(ctx)
}

// put records sid and makes c the user's current client. Older clients of
// the same user hold equally valid backend cookies, so replacing is safe.
func (s *Sessions) put(sid, username string, c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	us, ok := s.users[username]
	if !ok {
		us = &userSession{sids: make(map[string]struct{})}
		s.users[username] = us
	}
	us.client = c
	us.sids[sid] = struct{}{}
}
