package console

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/ecorecycle/backend"
	"github.com/cppla/ecorecycle/models"
)

var t0 = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func clock() func() time.Time {
	return func() time.Time { return t0 }
}

func sub(id string, status models.SubmissionStatus) models.Submission {
	return models.Submission{
		ID:             id,
		Status:         status,
		Name:           "Name " + id,
		Mobile:         "555-" + id,
		ProductDetails: "Item " + id,
		CreatedAt:      t0.Add(-time.Hour),
	}
}

func startConsole(t *testing.T, f *fakeBackend) *Console {
	t.Helper()
	c := New(Config{Backend: f, Now: clock()})
	_, err := c.Start(context.Background())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func toastMessages(s Snapshot) []string {
	out := make([]string, 0, len(s.Toasts))
	for _, t := range s.Toasts {
		out = append(out, t.Message)
	}
	return out
}

func TestFreshEmptyLoadHidesPlaceholder(t *testing.T) {
	f := newFakeBackend(clock())
	c := New(Config{Backend: f, Now: clock()})
	defer c.Close()

	snap, err := c.Start(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Grid)
	assert.False(t, snap.EmptyVisible)
	assert.False(t, snap.Interacted)
	assert.Equal(t, StatusLine{}, snap.Status)
}

func TestSearchWithoutMatchesShowsPlaceholder(t *testing.T) {
	f := newFakeBackend(clock(), sub("1", models.StatusPending))
	c := startConsole(t, f)

	snap := c.SetSearch("zzz")
	assert.True(t, snap.Interacted)
	assert.Empty(t, snap.Grid)
	assert.True(t, snap.EmptyVisible)

	// the countdown tick never shows the placeholder
	tick := c.Tick()
	assert.False(t, tick.EmptyVisible)
	assert.True(t, tick.Interacted)
}

func TestFilterScenario(t *testing.T) {
	f := newFakeBackend(clock(), sub("1", models.StatusPending), sub("2", models.StatusAccepted))
	c := startConsole(t, f)

	snap, err := c.SetFilter("pending")
	require.NoError(t, err)
	assert.Equal(t, Metrics{Total: 2, Pending: 1, Accepted: 1}, snap.Metrics)
	require.Len(t, snap.Cards, 1)
	assert.Equal(t, "1", snap.Cards[0].ID)
	assert.Equal(t, "pending", snap.StatusFilter)

	_, err = c.SetFilter("archived")
	assert.Equal(t, backend.KindValidation, backend.KindOf(err))

	snap, err = c.SetFilter("")
	require.NoError(t, err)
	assert.Len(t, snap.Cards, 2)
}

func TestLoadDoesNotMarkInteraction(t *testing.T) {
	f := newFakeBackend(clock())
	c := startConsole(t, f)
	_, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, c.Interacted())

	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Interacted)
	assert.True(t, snap.EmptyVisible)
	assert.Equal(t, 3, f.listCalls)
}

func TestLoadFailureSetsStatusLine(t *testing.T) {
	f := newFakeBackend(clock(), sub("1", models.StatusPending))
	c := startConsole(t, f)

	f.mu.Lock()
	f.listErr = backend.NewError(backend.KindQuery, "list", "Failed to load submissions", nil)
	f.mu.Unlock()

	snap, err := c.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusLine{Text: "Failed to load submissions", Level: LevelError}, snap.Status)
	// cache keeps the last good list
	assert.Len(t, snap.Cards, 1)
}

func TestSettingFailureKeepsPreviousDefault(t *testing.T) {
	f := newFakeBackend(clock(), sub("1", models.StatusPending))
	f.defaultDays = 45
	c := startConsole(t, f)
	assert.Equal(t, 45, c.Current().DefaultRetentionDays)

	f.mu.Lock()
	f.settingErr = errors.New("boom")
	f.mu.Unlock()
	snap, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 45, snap.DefaultRetentionDays)
}

func TestAcceptSetsStatusAndRetention(t *testing.T) {
	f := newFakeBackend(clock(), sub("1", models.StatusPending))
	c := startConsole(t, f)
	assert.False(t, c.Interacted())

	snap, err := c.Accept(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, snap.Interacted)
	assert.Equal(t, []string{"Status updated"}, toastMessages(snap))

	got, ok := c.Find("1")
	require.True(t, ok)
	assert.Equal(t, models.StatusAccepted, got.Status)
	require.NotNil(t, got.AutoDeleteAt)
	assert.True(t, t0.Add(90*24*time.Hour).Equal(*got.AutoDeleteAt))

	// one update carried both fields
	require.Len(t, f.updates, 1)
	require.NotNil(t, f.updates[0].Patch.Status)
	assert.True(t, f.updates[0].Patch.SetAutoDeleteAt)

	_, err = c.Accept(context.Background(), "1")
	assert.Equal(t, backend.KindValidation, backend.KindOf(err))
	assert.Len(t, f.updates, 1)
}

func TestRejectKeepsAutoDelete(t *testing.T) {
	at := t0.Add(7 * 24 * time.Hour)
	pending := sub("1", models.StatusPending)
	pending.AutoDeleteAt = &at
	f := newFakeBackend(clock(), pending)
	c := startConsole(t, f)

	_, err := c.Reject(context.Background(), "1")
	require.NoError(t, err)
	got, _ := c.Find("1")
	assert.Equal(t, models.StatusRejected, got.Status)
	require.NotNil(t, got.AutoDeleteAt)
	assert.True(t, at.Equal(*got.AutoDeleteAt))
	assert.False(t, f.updates[0].Patch.SetAutoDeleteAt)
}

func TestDefaultRetentionThenAccept(t *testing.T) {
	earlier := t0.Add(90 * 24 * time.Hour)
	old := sub("4", models.StatusAccepted)
	old.AutoDeleteAt = &earlier
	f := newFakeBackend(clock(), sub("5", models.StatusPending), old)
	c := startConsole(t, f)

	snap, err := c.SetDefaultRetention(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 30, snap.DefaultRetentionDays)
	assert.False(t, snap.Interacted)
	assert.Contains(t, snap.RetentionPresets, Preset{Days: 30, Active: true})

	_, err = c.Accept(context.Background(), "5")
	require.NoError(t, err)

	five, _ := c.Find("5")
	require.NotNil(t, five.AutoDeleteAt)
	assert.True(t, t0.Add(30*24*time.Hour).Equal(*five.AutoDeleteAt))

	four, _ := c.Find("4")
	assert.True(t, earlier.Equal(*four.AutoDeleteAt))
	assert.True(t, earlier.Equal(*f.row("4").AutoDeleteAt))
}

func TestSetDefaultRetentionValidates(t *testing.T) {
	f := newFakeBackend(clock())
	c := startConsole(t, f)

	for _, days := range []int{0, -3} {
		snap, err := c.SetDefaultRetention(context.Background(), days)
		assert.Equal(t, backend.KindValidation, backend.KindOf(err))
		assert.Equal(t, []string{"Invalid days"}, toastMessages(snap))
	}
	assert.Empty(t, f.procs)
}

func TestSetAndClearRetention(t *testing.T) {
	f := newFakeBackend(clock(), sub("1", models.StatusAccepted))
	c := startConsole(t, f)

	snap, err := c.SetRetention(context.Background(), "1", 7)
	require.NoError(t, err)
	assert.True(t, snap.Interacted)
	got, _ := c.Find("1")
	require.NotNil(t, got.AutoDeleteAt)
	assert.True(t, t0.Add(7*24*time.Hour).Equal(*got.AutoDeleteAt))
	assert.Equal(t, "7d 0h left", snap.Cards[0].Countdown)

	snap, err = c.ClearRetention(context.Background(), "1")
	require.NoError(t, err)
	got, _ = c.Find("1")
	assert.Nil(t, got.AutoDeleteAt)
	assert.Empty(t, snap.Cards[0].Countdown)
	assert.Equal(t, []string{"Retention cleared"}, toastMessages(snap))

	_, err = c.SetRetention(context.Background(), "1", 0)
	assert.Equal(t, backend.KindValidation, backend.KindOf(err))
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	f := newFakeBackend(clock(), sub("1", models.StatusPending))
	c := startConsole(t, f)

	_, err := c.Delete(context.Background(), "1", false)
	assert.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Empty(t, f.deletes)
	assert.False(t, c.Interacted())

	snap, err := c.Delete(context.Background(), "1", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, f.deletes)
	assert.Empty(t, snap.Cards)
	assert.True(t, snap.EmptyVisible)
	assert.Equal(t, 0, snap.Metrics.Total)
}

func TestFailedActionLeavesCache(t *testing.T) {
	f := newFakeBackend(clock(), sub("1", models.StatusPending))
	f.updateErr = backend.NewError(backend.KindQuery, "update", "permission denied", nil)
	c := startConsole(t, f)

	snap, err := c.Accept(context.Background(), "1")
	require.Error(t, err)
	assert.Equal(t, []Toast{{Message: "permission denied", Level: LevelError}}, snap.Toasts)
	got, _ := c.Find("1")
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Nil(t, got.AutoDeleteAt)
	assert.False(t, snap.Cards[0].Busy)
}

func TestActionOnUnknownSubmission(t *testing.T) {
	f := newFakeBackend(clock())
	c := startConsole(t, f)
	_, err := c.Reject(context.Background(), "nope")
	assert.True(t, backend.IsNotFound(err))
	assert.Empty(t, f.updates)
}

func TestSecondRequestForBusyIDFailsFast(t *testing.T) {
	f := newFakeBackend(clock(), sub("1", models.StatusPending), sub("2", models.StatusPending))
	f.block = make(chan struct{})
	f.entered = make(chan struct{}, 1)
	c := startConsole(t, f)

	var (
		wg       sync.WaitGroup
		firstErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = c.Accept(context.Background(), "1")
	}()
	<-f.entered

	busy := c.Current()
	require.True(t, busy.Cards[0].Busy)
	assert.Contains(t, string(busy.Grid), "disabled")

	_, err := c.Reject(context.Background(), "1")
	assert.ErrorIs(t, err, ErrBusy)
	_, err = c.Delete(context.Background(), "1", true)
	assert.ErrorIs(t, err, ErrBusy)

	close(f.block)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.Len(t, f.updates, 1)
	assert.Empty(t, f.deletes)
	assert.False(t, c.Current().Cards[0].Busy)
}

func TestRealtimeEvents(t *testing.T) {
	f := newFakeBackend(clock(), sub("1", models.StatusPending))
	c := startConsole(t, f)

	var (
		mu    sync.Mutex
		snaps []Snapshot
	)
	cancel := c.Watch(func(s Snapshot) {
		mu.Lock()
		snaps = append(snaps, s)
		mu.Unlock()
	})
	defer cancel()

	updated := sub("1", models.StatusAccepted)
	f.push(backend.ChangeEvent{Table: backend.TableSubmissions, Type: backend.ChangeInsert, New: &updated})
	cur := c.Current()
	assert.Equal(t, 1, cur.Metrics.Total)
	assert.Equal(t, 1, cur.Metrics.Accepted)

	fresh := sub("2", models.StatusPending)
	f.push(backend.ChangeEvent{Table: backend.TableSubmissions, Type: backend.ChangeInsert, New: &fresh})
	f.push(backend.ChangeEvent{Table: backend.TableSubmissions, Type: backend.ChangeUpdate, New: &fresh})
	f.push(backend.ChangeEvent{Table: backend.TableSubmissions, Type: backend.ChangeDelete, Old: &updated})

	cur = c.Current()
	require.Len(t, cur.Cards, 1)
	assert.Equal(t, "2", cur.Cards[0].ID)
	assert.False(t, cur.Interacted)

	mu.Lock()
	defer mu.Unlock()
	// the first call is the current render handed over by Watch
	require.Len(t, snaps, 5)
	var msgs []string
	for _, s := range snaps[1:] {
		msgs = append(msgs, toastMessages(s)...)
	}
	assert.Equal(t, []string{"New submission", "New submission", "Updated", "Deleted"}, msgs)
	assert.Empty(t, c.Current().Toasts)
}

func TestRealtimeDeleteEmptiesWithoutPlaceholder(t *testing.T) {
	only := sub("1", models.StatusPending)
	f := newFakeBackend(clock(), only)
	c := startConsole(t, f)

	f.push(backend.ChangeEvent{Table: backend.TableSubmissions, Type: backend.ChangeDelete, Old: &only})
	cur := c.Current()
	assert.Empty(t, cur.Cards)
	assert.False(t, cur.EmptyVisible)
}

func TestRealtimeResyncMarksStale(t *testing.T) {
	f := newFakeBackend(clock(), sub("1", models.StatusPending))
	c := startConsole(t, f)

	f.push(backend.ChangeEvent{Table: backend.TableSubmissions, Type: backend.ChangeResync})
	cur := c.Current()
	assert.Equal(t, StatusLine{Text: StaleStatus, Level: LevelError}, cur.Status)
	assert.Len(t, cur.Cards, 1)
	assert.False(t, cur.Interacted)

	// a tick keeps the warning
	assert.Equal(t, StaleStatus, c.Tick().Status.Text)

	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Status.Text)
}

func TestCloseUnsubscribes(t *testing.T) {
	f := newFakeBackend(clock())
	c := New(Config{Backend: f, Now: clock()})
	_, err := c.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.subscribers())

	c.Close()
	assert.Equal(t, 0, f.subscribers())
	_, err = c.Accept(context.Background(), "1")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSnapshotEscapesScript(t *testing.T) {
	s := sub("1", models.StatusPending)
	s.ProductDetails = "<script>alert(1)</script>"
	f := newFakeBackend(clock(), s)
	c := startConsole(t, f)

	grid := string(c.Current().Grid)
	assert.False(t, strings.Contains(grid, "<script>"))
	assert.Contains(t, grid, "&lt;script&gt;alert(1)&lt;/script&gt;")
}
