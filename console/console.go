// Package console holds the admin list view: a local mirror of the submission
// table, the filter/search state, a pure renderer and the action dispatcher
// that talks to the backend.
package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/ecorecycle/backend"
	"github.com/cppla/ecorecycle/models"
)

var (
	// ErrBusy is returned when a request for the same submission is still in flight.
	ErrBusy = errors.New("a request for this submission is already in progress")
	// ErrConfirmationRequired is returned by an unconfirmed Delete.
	ErrConfirmationRequired = errors.New("delete this submission permanently?")
	// ErrClosed is returned once the console has been discarded.
	ErrClosed = errors.New("console session closed")
)

// Backend is the part of backend.Client the console uses.
type Backend interface {
	backend.Tables
	backend.Procedures
	backend.Realtime
	PublicURL(path string) string
}

// StaleStatus is the status line shown after live updates were lost; the
// next successful load clears it.
const StaleStatus = "Live updates lagged, refresh to resync."

// Toast levels.
const (
	LevelSuccess = "success"
	LevelError   = "error"
	LevelInfo    = "info"
)

// Toast is a transient notification.
type Toast struct {
	Message string `json:"message"`
	Level   string `json:"level"`
}

// StatusLine is the persistent load status shown above the grid.
type StatusLine struct {
	Text  string `json:"text"`
	Level string `json:"level,omitempty"`
}

// Preset is a retention chip; Active marks the current default.
type Preset struct {
	Days   int  `json:"days"`
	Active bool `json:"active"`
}

// Snapshot is one render of the console plus the state around it.
type Snapshot struct {
	View
	StatusFilter         string     `json:"status_filter"`
	SearchText           string     `json:"search_text"`
	Interacted           bool       `json:"interacted"`
	DefaultRetentionDays int        `json:"default_retention_days"`
	RetentionPresets     []Preset   `json:"retention_presets"`
	Status               StatusLine `json:"status"`
	Loading              bool       `json:"loading"`
	Toasts               []Toast    `json:"toasts,omitempty"`
	RenderedAt           time.Time  `json:"rendered_at"`
}

// Config configures a Console.
type Config struct {
	Backend              Backend
	Logger               *zap.SugaredLogger
	Now                  func() time.Time
	DefaultRetentionDays int
}

// Console is one admin session's list view. State is guarded by mu and
// backend calls run with mu released; the cache only changes after a
// backend call succeeds.
type Console struct {
	b   Backend
	log *zap.SugaredLogger
	now func() time.Time

	mu          sync.Mutex
	cache       *Cache
	view        ViewState
	defaultDays int
	loading     bool
	status      StatusLine
	toasts      []Toast
	inflight    map[string]struct{}
	last        Snapshot
	sinks       map[int]func(Snapshot)
	nextSink    int
	unsubscribe func()
	closed      bool
}

func New(cfg Config) *Console {
	c := &Console{
		b:           cfg.Backend,
		log:         cfg.Logger,
		now:         cfg.Now,
		cache:       NewCache(),
		defaultDays: cfg.DefaultRetentionDays,
		inflight:    map[string]struct{}{},
		sinks:       map[int]func(Snapshot){},
	}
	if c.log == nil {
		c.log = zap.NewNop().Sugar()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.defaultDays <= 0 {
		c.defaultDays = models.DefaultRetentionDays
	}
	c.mu.Lock()
	c.renderLocked(false)
	c.mu.Unlock()
	return c
}

// Start subscribes to realtime changes and runs the initial load.
func (c *Console) Start(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	if c.unsubscribe == nil {
		c.unsubscribe = c.b.Subscribe(backend.TableSubmissions, c.HandleChange)
	}
	c.mu.Unlock()
	return c.Load(ctx)
}

// Close drops the realtime subscription and all sinks.
func (c *Console) Close() {
	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.closed = true
	c.sinks = map[int]func(Snapshot){}
	c.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Watch registers sink for every future render and calls it once with the
// current one. Sinks run under the console lock and must not block or call
// back into the console.
func (c *Console) Watch(sink func(Snapshot)) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return func() {}
	}
	id := c.nextSink
	c.nextSink++
	c.sinks[id] = sink
	sink(c.last)
	return func() {
		c.mu.Lock()
		delete(c.sinks, id)
		c.mu.Unlock()
	}
}

// Current returns the latest render without pending toasts.
func (c *Console) Current() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Interacted reports whether the admin has interacted in this session.
func (c *Console) Interacted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.Interacted()
}

// Find returns the cached submission with id.
func (c *Console) Find(id string) (models.Submission, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Find(id)
}

// Load fetches the retention setting and the full list. A load already in
// progress is not restarted. The result renders without the empty state.
func (c *Console) Load(ctx context.Context) (Snapshot, error) {
	return c.load(ctx, false)
}

// Refresh is a manual reload and counts as interaction.
func (c *Console) Refresh(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	c.view.MarkInteracted()
	c.mu.Unlock()
	return c.load(ctx, true)
}

func (c *Console) load(ctx context.Context, allowEmpty bool) (Snapshot, error) {
	c.mu.Lock()
	if c.loading {
		snap := c.last
		c.mu.Unlock()
		return snap, nil
	}
	c.loading = true
	c.status = StatusLine{Text: "Loading...", Level: LevelInfo}
	c.renderLocked(false)
	c.mu.Unlock()

	setting, settingErr := c.b.GetRetentionSetting(ctx)
	items, err := c.b.ListSubmissions(ctx, backend.SubmissionQuery{})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if settingErr != nil {
		c.log.Warnw("retention setting unavailable, keeping previous default", "days", c.defaultDays, "err", settingErr)
	} else if setting.DefaultRetentionDays > 0 {
		c.defaultDays = setting.DefaultRetentionDays
	}
	if err != nil {
		c.status = StatusLine{Text: err.Error(), Level: LevelError}
		return c.renderLocked(allowEmpty), err
	}
	c.status = StatusLine{}
	c.cache.Replace(items)
	return c.renderLocked(allowEmpty), nil
}

// SetFilter changes the status filter; "" shows every status.
func (c *Console) SetFilter(status string) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := models.SubmissionStatus(strings.TrimSpace(status))
	if st != "" && !st.Valid() {
		err := backend.Validationf("filter", "Unknown status %q", status)
		c.toastLocked(err.Error(), LevelError)
		return c.renderLocked(true), err
	}
	c.view.MarkInteracted()
	c.view.StatusFilter = st
	return c.renderLocked(true), nil
}

// SetSearch changes the search text.
func (c *Console) SetSearch(text string) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.MarkInteracted()
	c.view.SearchText = text
	return c.renderLocked(true)
}

// Tick re-renders countdowns. It never shows the empty state and leaves the
// cache alone.
func (c *Console) Tick() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renderLocked(false)
}

// HandleChange applies a realtime event. It does not count as interaction.
func (c *Console) HandleChange(ev backend.ChangeEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	switch ev.Type {
	case backend.ChangeInsert:
		if ev.New == nil {
			return
		}
		c.cache.UpsertFromRemote(*ev.New)
		c.toastLocked("New submission", LevelInfo)
	case backend.ChangeUpdate:
		if ev.New == nil {
			return
		}
		c.cache.UpsertFromRemote(*ev.New)
		c.toastLocked("Updated", LevelInfo)
	case backend.ChangeDelete:
		if ev.Old == nil {
			return
		}
		c.cache.RemoveFromRemote(ev.Old.ID)
		c.toastLocked("Deleted", LevelInfo)
	case backend.ChangeResync:
		c.log.Warnw("live updates lagged, list may be stale")
		c.status = StatusLine{Text: StaleStatus, Level: LevelError}
	default:
		return
	}
	c.renderLocked(true)
}

// Accept marks a pending submission accepted and schedules its deletion at
// now + the default retention, in one update.
func (c *Console) Accept(ctx context.Context, id string) (Snapshot, error) {
	var patch backend.SubmissionPatch
	return c.mutate(ctx, id, "Status updated",
		func(rec models.Submission) error {
			if !models.CanTransition(rec.Status, models.StatusAccepted) {
				return backend.Validationf("accept", "Only pending submissions can be accepted")
			}
			at := c.now().Add(time.Duration(c.defaultDays) * 24 * time.Hour)
			patch = backend.StatusPatch(models.StatusAccepted).WithAutoDeleteAt(&at)
			return nil
		},
		func(ctx context.Context) (func(), error) {
			if _, err := c.b.UpdateSubmission(ctx, id, patch); err != nil {
				return nil, err
			}
			return func() { c.cache.ApplyLocalMutation(id, patch) }, nil
		})
}

// Reject marks a pending submission rejected. The auto-delete time is kept.
func (c *Console) Reject(ctx context.Context, id string) (Snapshot, error) {
	patch := backend.StatusPatch(models.StatusRejected)
	return c.mutate(ctx, id, "Status updated",
		func(rec models.Submission) error {
			if !models.CanTransition(rec.Status, models.StatusRejected) {
				return backend.Validationf("reject", "Only pending submissions can be rejected")
			}
			return nil
		},
		func(ctx context.Context) (func(), error) {
			if _, err := c.b.UpdateSubmission(ctx, id, patch); err != nil {
				return nil, err
			}
			return func() { c.cache.ApplyLocalMutation(id, patch) }, nil
		})
}

// Delete permanently removes a submission. Without confirmation nothing is sent.
func (c *Console) Delete(ctx context.Context, id string, confirmed bool) (Snapshot, error) {
	if !confirmed {
		return c.Current(), ErrConfirmationRequired
	}
	return c.mutate(ctx, id, "Deleted", nil,
		func(ctx context.Context) (func(), error) {
			if err := c.b.DeleteSubmission(ctx, id); err != nil {
				return nil, err
			}
			return func() { c.cache.RemoveLocal(id) }, nil
		})
}

// SetRetention schedules one submission's deletion days from now.
func (c *Console) SetRetention(ctx context.Context, id string, days int) (Snapshot, error) {
	return c.mutate(ctx, id, "Retention set",
		func(models.Submission) error { return validDays("set retention", days) },
		func(ctx context.Context) (func(), error) {
			out, err := c.b.CallProcedure(ctx, backend.ProcSetSubmissionRetention, backend.Args{"_id": id, "_days": days})
			if err != nil {
				return nil, err
			}
			at, err := asTime(out)
			if err != nil {
				return nil, backend.NewError(backend.KindProcedure, backend.ProcSetSubmissionRetention, "Unexpected retention result", err)
			}
			return func() { c.cache.ApplyLocalMutation(id, backend.AutoDeletePatch(&at)) }, nil
		})
}

// ClearRetention removes one submission's auto-delete time.
func (c *Console) ClearRetention(ctx context.Context, id string) (Snapshot, error) {
	patch := backend.AutoDeletePatch(nil)
	return c.mutate(ctx, id, "Retention cleared", nil,
		func(ctx context.Context) (func(), error) {
			if _, err := c.b.UpdateSubmission(ctx, id, patch); err != nil {
				return nil, err
			}
			return func() { c.cache.ApplyLocalMutation(id, patch) }, nil
		})
}

// SetDefaultRetention changes the global default used by later accepts.
// Existing auto-delete times are not touched and interaction is not recorded.
func (c *Console) SetDefaultRetention(ctx context.Context, days int) (Snapshot, error) {
	if err := validDays("set default retention", days); err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.toastLocked(err.Error(), LevelError)
		return c.renderLocked(true), err
	}

	out, err := c.b.CallProcedure(ctx, backend.ProcSetDefaultRetention, backend.Args{"_days": days})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.toastLocked(err.Error(), LevelError)
		return c.renderLocked(true), err
	}
	if n, ok := asInt(out); ok && n > 0 {
		c.defaultDays = n
	} else {
		c.defaultDays = days
	}
	c.toastLocked("Default retention updated", LevelSuccess)
	return c.renderLocked(true), nil
}

// mutate runs one per-submission action. check runs under the lock against
// the cached record; call runs unlocked and returns the cache change to apply
// on success.
func (c *Console) mutate(
	ctx context.Context,
	id, success string,
	check func(models.Submission) error,
	call func(context.Context) (func(), error),
) (Snapshot, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	c.view.MarkInteracted()
	if _, busy := c.inflight[id]; busy {
		defer c.mu.Unlock()
		return c.renderLocked(true), ErrBusy
	}
	rec, ok := c.cache.Find(id)
	var err error
	switch {
	case !ok:
		err = backend.NewError(backend.KindValidation, "find", "Submission not found", backend.ErrNotFound)
	case check != nil:
		err = check(rec)
	}
	if err != nil {
		defer c.mu.Unlock()
		c.toastLocked(err.Error(), LevelError)
		return c.renderLocked(true), err
	}
	c.inflight[id] = struct{}{}
	c.renderLocked(true)
	c.mu.Unlock()

	apply, err := call(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, id)
	if err != nil {
		c.log.Warnw("console action failed", "id", id, "err", err)
		c.toastLocked(err.Error(), LevelError)
		return c.renderLocked(true), err
	}
	apply()
	c.toastLocked(success, LevelSuccess)
	return c.renderLocked(true), nil
}

func (c *Console) toastLocked(msg, level string) {
	c.toasts = append(c.toasts, Toast{Message: msg, Level: level})
}

// renderLocked renders, stores the result as the latest snapshot and hands
// it, with any queued toasts, to every sink.
func (c *Console) renderLocked(allowEmpty bool) Snapshot {
	all := c.cache.Snapshot()
	view, err := Render(RenderInput{
		All:               all,
		Filtered:          c.view.Filter(all),
		Interacted:        c.view.Interacted(),
		AllowEmptyDisplay: allowEmpty,
		Now:               c.now(),
		PublicURL:         c.b.PublicURL,
		Busy: func(id string) bool {
			_, ok := c.inflight[id]
			return ok
		},
	})
	if err != nil {
		c.log.Errorw("console render failed", "err", err)
		view = c.last.View
	}

	presets := make([]Preset, 0, len(RetentionPresets))
	for _, d := range RetentionPresets {
		presets = append(presets, Preset{Days: d, Active: d == c.defaultDays})
	}
	snap := Snapshot{
		View:                 view,
		StatusFilter:         string(c.view.StatusFilter),
		SearchText:           c.view.SearchText,
		Interacted:           c.view.Interacted(),
		DefaultRetentionDays: c.defaultDays,
		RetentionPresets:     presets,
		Status:               c.status,
		Loading:              c.loading,
		RenderedAt:           c.now(),
	}
	c.last = snap

	snap.Toasts = c.toasts
	c.toasts = nil
	for _, sink := range c.sinks {
		sink(snap)
	}
	return snap
}

func validDays(op string, days int) error {
	if days < 1 {
		return backend.Validationf(op, "Invalid days")
	}
	if days > backend.MaxRetentionDays {
		return backend.Validationf(op, "Retention is limited to %d days", backend.MaxRetentionDays)
	}
	return nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func asTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case *time.Time:
		if t != nil {
			return *t, nil
		}
	case string:
		return time.Parse(time.RFC3339Nano, t)
	}
	return time.Time{}, fmt.Errorf("unexpected result type %T", v)
}
