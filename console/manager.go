package console

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/ecorecycle/backend"
)

// SessionBackend is what the manager needs: the console's backend plus
// session change notifications.
type SessionBackend interface {
	Backend
	OnSessionChange(handler func(backend.SessionEvent, *backend.Session)) (unsubscribe func())
}

// Manager keeps one Console per admin session token. A console is created
// on first access and discarded when its session signs out or expires, so
// every new session starts without interaction.
type Manager struct {
	b           SessionBackend
	log         *zap.SugaredLogger
	now         func() time.Time
	defaultDays int

	mu          sync.Mutex
	consoles    map[string]*managed
	unsubscribe func()
}

type managed struct {
	console   *Console
	expiresAt time.Time // zero never expires
}

func (e *managed) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

var errSessionExpired = backend.NewError(backend.KindAuth, "console", "Session expired or invalid", nil)

// NewManager builds a manager. now may be nil.
func NewManager(b SessionBackend, log *zap.SugaredLogger, now func() time.Time, defaultDays int) *Manager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	m := &Manager{b: b, log: log, now: now, defaultDays: defaultDays, consoles: map[string]*managed{}}
	m.unsubscribe = b.OnSessionChange(func(ev backend.SessionEvent, sess *backend.Session) {
		if ev == backend.SignedOut && sess != nil {
			m.Drop(sess.Token)
		}
	})
	return m
}

// Get returns the console of sess, creating and loading it on first use.
// The console lives until the session signs out or reaches its ExpiresAt.
// A failed first load still returns the console; its status line carries the error.
func (m *Manager) Get(ctx context.Context, sess backend.Session) (*Console, error) {
	now := m.clock()
	m.mu.Lock()
	if e, ok := m.consoles[sess.Token]; ok {
		if !e.expired(now) {
			m.mu.Unlock()
			return e.console, nil
		}
		delete(m.consoles, sess.Token)
		m.mu.Unlock()
		e.console.Close()
		return nil, errSessionExpired
	}
	if (&managed{expiresAt: sess.ExpiresAt}).expired(now) {
		m.mu.Unlock()
		return nil, errSessionExpired
	}
	c := New(Config{Backend: m.b, Logger: m.log, Now: m.now, DefaultRetentionDays: m.defaultDays})
	m.consoles[sess.Token] = &managed{console: c, expiresAt: sess.ExpiresAt}
	m.mu.Unlock()

	if _, err := c.Start(ctx); err != nil {
		m.log.Warnw("initial console load failed", "err", err)
	}
	return c, nil
}

// Drop closes and forgets the console of token.
func (m *Manager) Drop(token string) {
	m.mu.Lock()
	e, ok := m.consoles[token]
	delete(m.consoles, token)
	m.mu.Unlock()
	if ok {
		e.console.Close()
	}
}

func (m *Manager) clock() time.Time {
	if m.now == nil {
		return time.Now()
	}
	return m.now()
}

// Len is the number of live consoles.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.consoles)
}

// Tick discards the consoles of expired sessions and re-renders the
// countdowns of the rest.
func (m *Manager) Tick() {
	now := m.clock()
	m.mu.Lock()
	live := make([]*Console, 0, len(m.consoles))
	var expired []*Console
	for token, e := range m.consoles {
		if e.expired(now) {
			delete(m.consoles, token)
			expired = append(expired, e.console)
			continue
		}
		live = append(live, e.console)
	}
	m.mu.Unlock()
	for _, c := range expired {
		c.Close()
	}
	if len(expired) > 0 {
		m.log.Infow("discarded consoles of expired sessions", "count", len(expired))
	}
	for _, c := range live {
		c.Tick()
	}
}

// Run ticks every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick()
		}
	}
}

// Close discards every console and stops listening for session changes.
func (m *Manager) Close() {
	m.mu.Lock()
	consoles := m.consoles
	m.consoles = map[string]*managed{}
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
	for _, e := range consoles {
		e.console.Close()
	}
}
