package remote

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// refreshWindow is how close to expiry a token gets refreshed.
const refreshWindow = 30 * time.Second

// SessionChange is delivered to subscribers whenever the session state
// flips. A nil Session means there is no active session anymore.
type SessionChange struct {
	Session *Session
}

// SessionManager owns the current session and fans session-state changes
// out to subscribers. It implements oauth2.TokenSource so the rows client's
// HTTP transport always carries a live access token.
type SessionManager struct {
	auth   AuthAPI
	logger *zap.Logger

	mu      sync.Mutex
	current *Session

	subsMu  sync.Mutex
	subs    map[int]chan SessionChange
	nextSub int

	events    chan SessionChange
	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewSessionManager(auth AuthAPI, logger *zap.Logger) *SessionManager {
	m := &SessionManager{
		auth:   auth,
		logger: logger,
		subs:   make(map[int]chan SessionChange),
		events: make(chan SessionChange, 8),
		stop:   make(chan struct{}),
	}
	m.wg.Add(1)
	go m.run()
	return m
}

// Current returns the active session, or nil when there is none.
func (m *SessionManager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *SessionManager) SignIn(ctx context.Context, email, password string) (*Session, error) {
	sess, err := m.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	m.set(sess)
	return sess, nil
}

func (m *SessionManager) SignUp(ctx context.Context, email, password string) (*Session, error) {
	sess, err := m.auth.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	m.set(sess)
	return sess, nil
}

// SignOut discards the session locally first; revocation at the service is
// best effort and only logged on failure.
func (m *SessionManager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	sess := m.current
	m.current = nil
	m.mu.Unlock()

	if sess == nil {
		return nil
	}
	m.publish(SessionChange{})

	if err := m.auth.SignOut(ctx, sess.Token.AccessToken); err != nil {
		m.logger.Warn("sign-out revocation failed", zap.Error(err))
		return err
	}
	return nil
}

// Invalidate drops the session in reaction to the service rejecting it
// (expiry, revocation elsewhere). No-op when already signed out.
func (m *SessionManager) Invalidate(reason string) {
	m.mu.Lock()
	had := m.current != nil
	m.current = nil
	m.mu.Unlock()

	if !had {
		return
	}
	m.logger.Warn("session invalidated", zap.String("reason", reason))
	m.publish(SessionChange{})
}

// Token implements oauth2.TokenSource. Expired tokens are refreshed through
// the auth API; a failed refresh invalidates the session.
func (m *SessionManager) Token() (*oauth2.Token, error) {
	m.mu.Lock()
	sess := m.current
	m.mu.Unlock()

	if sess == nil {
		return nil, ErrNoSession
	}

	tok := sess.Token
	if tok.Expiry.IsZero() || time.Until(tok.Expiry) > refreshWindow {
		return &tok, nil
	}
	if tok.RefreshToken == "" {
		return &tok, nil
	}

	refreshed, err := m.auth.Refresh(context.Background(), tok.RefreshToken)
	if err != nil {
		m.Invalidate("session refresh failed")
		return nil, err
	}
	m.mu.Lock()
	m.current = refreshed
	m.mu.Unlock()
	t := refreshed.Token
	return &t, nil
}

// Subscribe registers a listener for session changes. The returned release
// func deregisters it; calling release more than once is safe and no event
// is delivered after it returns.
func (m *SessionManager) Subscribe() (<-chan SessionChange, func()) {
	m.subsMu.Lock()
	id := m.nextSub
	m.nextSub++
	ch := make(chan SessionChange, 4)
	m.subs[id] = ch
	m.subsMu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			m.subsMu.Lock()
			defer m.subsMu.Unlock()
			if c, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(c)
			}
		})
	}
	return ch, release
}

// Close stops the fan-out goroutine and releases all subscribers.
func (m *SessionManager) Close() {
	m.closeOnce.Do(func() {
		close(m.stop)
		m.wg.Wait()

		m.subsMu.Lock()
		defer m.subsMu.Unlock()
		for id, ch := range m.subs {
			delete(m.subs, id)
			close(ch)
		}
	})
}

func (m *SessionManager) set(sess *Session) {
	m.mu.Lock()
	m.current = sess
	m.mu.Unlock()
	m.publish(SessionChange{Session: sess})
}

func (m *SessionManager) publish(ev SessionChange) {
	select {
	case m.events <- ev:
	case <-m.stop:
	}
}

func (m *SessionManager) run() {
	defer m.wg.Done()

	for {
		select {
		case <-m.stop:
			return
		case ev := <-m.events:
			m.subsMu.Lock()
			for _, ch := range m.subs {
				select {
				case ch <- ev:
				default:
					// Subscriber is not draining; drop rather than block
					// the fan-out loop.
				}
			}
			m.subsMu.Unlock()
		}
	}
}
