package console

import (
	"context"
	"sync"
	"time"

	"github.com/cppla/ecorecycle/backend"
	"github.com/cppla/ecorecycle/models"
)

type updateCall struct {
	ID    string
	Patch backend.SubmissionPatch
}

type procCall struct {
	Name string
	Args backend.Args
}

// fakeBackend is an in-memory backend whose failures and latency tests control.
type fakeBackend struct {
	mu          sync.Mutex
	now         func() time.Time
	rows        []models.Submission
	images      map[string][]models.SubmissionImage
	defaultDays int

	settingErr error
	listErr    error
	updateErr  error
	deleteErr  error
	procErr    error
	imagesErr  error

	// when block is set, UpdateSubmission signals entered and waits on block
	block   chan struct{}
	entered chan struct{}

	listCalls int
	updates   []updateCall
	deletes   []string
	procs     []procCall

	handlers    map[int]func(backend.ChangeEvent)
	sessionSubs map[int]func(backend.SessionEvent, *backend.Session)
	nextID      int
}

func newFakeBackend(now func() time.Time, rows ...models.Submission) *fakeBackend {
	return &fakeBackend{
		now:         now,
		rows:        rows,
		images:      map[string][]models.SubmissionImage{},
		defaultDays: 90,
		handlers:    map[int]func(backend.ChangeEvent){},
		sessionSubs: map[int]func(backend.SessionEvent, *backend.Session){},
	}
}

func (f *fakeBackend) ListSubmissions(ctx context.Context, q backend.SubmissionQuery) ([]models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.Submission(nil), f.rows...), nil
}

func (f *fakeBackend) GetSubmission(ctx context.Context, id string) (models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			return r, nil
		}
	}
	return models.Submission{}, backend.NewError(backend.KindQuery, "get", "Submission not found", backend.ErrNotFound)
}

func (f *fakeBackend) UpdateSubmission(ctx context.Context, id string, patch backend.SubmissionPatch) (models.Submission, error) {
	f.mu.Lock()
	block, entered := f.block, f.entered
	f.mu.Unlock()
	if block != nil {
		entered <- struct{}{}
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updateCall{ID: id, Patch: patch})
	if f.updateErr != nil {
		return models.Submission{}, f.updateErr
	}
	for i, r := range f.rows {
		if r.ID == id {
			f.rows[i] = patch.Apply(r)
			return f.rows[i], nil
		}
	}
	return models.Submission{}, backend.NewError(backend.KindQuery, "update", "Submission not found", backend.ErrNotFound)
}

func (f *fakeBackend) DeleteSubmission(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i, r := range f.rows {
		if r.ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeBackend) ListImages(ctx context.Context, submissionID string) ([]models.SubmissionImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.imagesErr != nil {
		return nil, f.imagesErr
	}
	return f.images[submissionID], nil
}

func (f *fakeBackend) GetRetentionSetting(ctx context.Context) (models.RetentionSetting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settingErr != nil {
		return models.RetentionSetting{}, f.settingErr
	}
	return models.RetentionSetting{ID: models.RetentionSettingID, DefaultRetentionDays: f.defaultDays}, nil
}

func (f *fakeBackend) CallProcedure(ctx context.Context, name string, args backend.Args) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.procs = append(f.procs, procCall{Name: name, Args: args})
	if f.procErr != nil {
		return nil, f.procErr
	}
	days, _ := args.Int("_days")
	switch name {
	case backend.ProcSetDefaultRetention:
		f.defaultDays = days
		return days, nil
	case backend.ProcSetSubmissionRetention:
		id := args.String("_id")
		at := f.now().Add(time.Duration(days) * 24 * time.Hour)
		for i, r := range f.rows {
			if r.ID == id {
				f.rows[i].AutoDeleteAt = &at
			}
		}
		return at, nil
	}
	return nil, backend.NewError(backend.KindProcedure, name, "Unknown procedure "+name, nil)
}

func (f *fakeBackend) PublicURL(path string) string {
	if path == "" {
		return ""
	}
	return "http://files.test/" + path
}

func (f *fakeBackend) Subscribe(table string, handler func(backend.ChangeEvent)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.handlers[id] = handler
	return func() {
		f.mu.Lock()
		delete(f.handlers, id)
		f.mu.Unlock()
	}
}

func (f *fakeBackend) OnSessionChange(handler func(backend.SessionEvent, *backend.Session)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.sessionSubs[id] = handler
	return func() {
		f.mu.Lock()
		delete(f.sessionSubs, id)
		f.mu.Unlock()
	}
}

// push delivers a realtime event synchronously to every subscriber.
func (f *fakeBackend) push(ev backend.ChangeEvent) {
	f.mu.Lock()
	handlers := make([]func(backend.ChangeEvent), 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

func (f *fakeBackend) emitSession(ev backend.SessionEvent, sess *backend.Session) {
	f.mu.Lock()
	handlers := make([]func(backend.SessionEvent, *backend.Session), 0, len(f.sessionSubs))
	for _, h := range f.sessionSubs {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()
	for _, h := range handlers {
		h(ev, sess)
	}
}

func (f *fakeBackend) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

func (f *fakeBackend) row(id string) models.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			return r
		}
	}
	return models.Submission{}
}
