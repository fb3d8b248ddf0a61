package console

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/ecorecycle/backend"
	"github.com/cppla/ecorecycle/models"
)

func TestManagerOneConsolePerSession(t *testing.T) {
	f := newFakeBackend(clock(), sub("1", models.StatusPending))
	m := NewManager(f, nil, clock(), 90)
	defer m.Close()
	ctx := context.Background()

	a, err := m.Get(ctx, backend.Session{Token: "token-a"})
	require.NoError(t, err)
	again, err := m.Get(ctx, backend.Session{Token: "token-a"})
	require.NoError(t, err)
	assert.Same(t, a, again)

	b, err := m.Get(ctx, backend.Session{Token: "token-b"})
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, m.Len())
	assert.Len(t, a.Current().Cards, 1)
}

func TestManagerSignOutResetsInteraction(t *testing.T) {
	f := newFakeBackend(clock())
	m := NewManager(f, nil, clock(), 90)
	defer m.Close()
	ctx := context.Background()

	c, err := m.Get(ctx, backend.Session{Token: "token-a"})
	require.NoError(t, err)
	c.SetSearch("x")
	require.True(t, c.Interacted())

	f.emitSession(backend.SignedIn, &backend.Session{Token: "token-b"})
	assert.Equal(t, 1, m.Len())

	f.emitSession(backend.SignedOut, &backend.Session{Token: "token-a"})
	assert.Equal(t, 0, m.Len())

	next, err := m.Get(ctx, backend.Session{Token: "token-a"})
	require.NoError(t, err)
	assert.NotSame(t, c, next)
	assert.False(t, next.Interacted())
	// the discarded console let go of its realtime subscription
	assert.Equal(t, 1, f.subscribers())
}

func TestManagerRunTicks(t *testing.T) {
	f := newFakeBackend(clock(), sub("1", models.StatusPending))
	m := NewManager(f, nil, clock(), 90)
	defer m.Close()

	c, err := m.Get(context.Background(), backend.Session{Token: "token-a"})
	require.NoError(t, err)
	ticks := make(chan Snapshot, 16)
	cancelWatch := c.Watch(func(s Snapshot) {
		select {
		case ticks <- s:
		default:
		}
	})
	defer cancelWatch()
	<-ticks

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	select {
	case s := <-ticks:
		assert.False(t, s.EmptyVisible)
	case <-time.After(time.Second):
		t.Fatal("expected a countdown tick")
	}
	cancel()
	<-done
}

func TestManagerCloseDropsConsoles(t *testing.T) {
	f := newFakeBackend(clock())
	m := NewManager(f, nil, clock(), 90)
	_, err := m.Get(context.Background(), backend.Session{Token: "token-a"})
	require.NoError(t, err)

	m.Close()
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0, f.subscribers())
	f.mu.Lock()
	assert.Empty(t, f.sessionSubs)
	f.mu.Unlock()
}

func TestManagerDropsExpiredSessions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := newFakeBackend(clock())
	m := NewManager(f, nil, func() time.Time { return now }, 90)
	defer m.Close()
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		_, err := m.Get(ctx, backend.Session{Token: fmt.Sprintf("short-%d", i), ExpiresAt: now.Add(time.Hour)})
		require.NoError(t, err)
	}
	long, err := m.Get(ctx, backend.Session{Token: "long", ExpiresAt: now.Add(72 * time.Hour)})
	require.NoError(t, err)
	forever, err := m.Get(ctx, backend.Session{Token: "forever"})
	require.NoError(t, err)
	assert.Equal(t, 52, m.Len())
	assert.Equal(t, 52, f.subscribers())

	m.Tick()
	assert.Equal(t, 52, m.Len())

	now = now.Add(time.Hour)
	m.Tick()
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 2, f.subscribers())

	again, err := m.Get(ctx, backend.Session{Token: "long", ExpiresAt: now.Add(71 * time.Hour)})
	require.NoError(t, err)
	assert.Same(t, long, again)
	again, err = m.Get(ctx, backend.Session{Token: "forever"})
	require.NoError(t, err)
	assert.Same(t, forever, again)

	// an expired token neither revives its console nor gets a new one
	_, err = m.Get(ctx, backend.Session{Token: "short-0", ExpiresAt: now.Add(-time.Minute)})
	assert.Equal(t, backend.KindAuth, backend.KindOf(err))
	assert.Equal(t, 2, m.Len())
}

func TestManagerGetExpiresBeforeTick(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := newFakeBackend(clock())
	m := NewManager(f, nil, func() time.Time { return now }, 90)
	defer m.Close()
	sess := backend.Session{Token: "token-a", ExpiresAt: now.Add(time.Minute)}

	_, err := m.Get(context.Background(), sess)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = m.Get(context.Background(), sess)
	assert.Equal(t, backend.KindAuth, backend.KindOf(err))
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0, f.subscribers())
}
