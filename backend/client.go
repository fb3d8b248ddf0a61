// Package backend defines the data/auth/storage/realtime service the console talks to,
// and a local implementation of it on MySQL (gorm), Redis, JWT and the local disk.
package backend

import (
	"context"
	"time"

	"github.com/cppla/ecorecycle/models"
)

// Table names accepted by Subscribe.
const (
	TableSubmissions = "recycling_submissions"
	TableImages      = "recycling_submission_images"
	TableSettings    = "recycling_settings"
)

// Remote procedures exposed through CallProcedure.
const (
	ProcSetDefaultRetention    = "rpc_set_default_retention"
	ProcSetSubmissionRetention = "rpc_set_submission_retention"
	ProcCreateSubmissionMulti  = "rpc_create_recycling_submission_multi"
)

// BucketRequestImages is the storage bucket holding intake photos.
const BucketRequestImages = "request-images"

// Session is an authenticated admin session.
type Session struct {
	Token     string    `json:"access_token"`
	AdminID   uint      `json:"admin_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionEvent names an auth state change.
type SessionEvent string

const (
	SignedIn  SessionEvent = "SIGNED_IN"
	SignedOut SessionEvent = "SIGNED_OUT"
)

// ChangeType is the kind of row change carried by a realtime event.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
	// ChangeResync carries no row: events were dropped and the subscriber's
	// copy may be stale.
	ChangeResync ChangeType = "RESYNC"
)

// ChangeEvent is a realtime notification about a submission row.
// New is set for inserts and updates, Old for updates and deletes.
type ChangeEvent struct {
	Table string             `json:"table"`
	Type  ChangeType         `json:"eventType"`
	New   *models.Submission `json:"new,omitempty"`
	Old   *models.Submission `json:"old,omitempty"`
}

// SubmissionQuery selects submissions, newest first.
// MatchEmail and MatchMobile are exact matches; when both are set either may match.
type SubmissionQuery struct {
	Status      models.SubmissionStatus
	MatchEmail  string
	MatchMobile string
	Limit       int
}

// SubmissionPatch is a partial update of a submission row.
// SetAutoDeleteAt with a nil AutoDeleteAt clears the auto-delete time.
type SubmissionPatch struct {
	Status          *models.SubmissionStatus
	SetAutoDeleteAt bool
	AutoDeleteAt    *time.Time
}

// StatusPatch changes the status only.
func StatusPatch(status models.SubmissionStatus) SubmissionPatch {
	return SubmissionPatch{Status: &status}
}

// AutoDeletePatch sets (or, with nil, clears) the auto-delete time only.
func AutoDeletePatch(at *time.Time) SubmissionPatch {
	return SubmissionPatch{SetAutoDeleteAt: true, AutoDeleteAt: at}
}

// WithAutoDeleteAt returns a copy of p that also sets the auto-delete time.
func (p SubmissionPatch) WithAutoDeleteAt(at *time.Time) SubmissionPatch {
	p.SetAutoDeleteAt = true
	p.AutoDeleteAt = at
	return p
}

// Empty reports whether the patch changes nothing.
func (p SubmissionPatch) Empty() bool {
	return p.Status == nil && !p.SetAutoDeleteAt
}

// Apply merges the patch into s and returns the result.
func (p SubmissionPatch) Apply(s models.Submission) models.Submission {
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.SetAutoDeleteAt {
		if p.AutoDeleteAt == nil {
			s.AutoDeleteAt = nil
		} else {
			at := *p.AutoDeleteAt
			s.AutoDeleteAt = &at
		}
	}
	return s
}

// Auth manages admin sessions.
type Auth interface {
	SignIn(ctx context.Context, email, password string) (Session, error)
	// GetSession returns nil, nil when no token is presented.
	GetSession(ctx context.Context, token string) (*Session, error)
	SignOut(ctx context.Context, token string) error
	OnSessionChange(handler func(SessionEvent, *Session)) (unsubscribe func())
}

// Tables is row access to submissions, their images and the retention setting.
type Tables interface {
	ListSubmissions(ctx context.Context, q SubmissionQuery) ([]models.Submission, error)
	GetSubmission(ctx context.Context, id string) (models.Submission, error)
	UpdateSubmission(ctx context.Context, id string, patch SubmissionPatch) (models.Submission, error)
	DeleteSubmission(ctx context.Context, id string) error
	ListImages(ctx context.Context, submissionID string) ([]models.SubmissionImage, error)
	GetRetentionSetting(ctx context.Context) (models.RetentionSetting, error)
}

// Procedures runs named server-side procedures.
type Procedures interface {
	CallProcedure(ctx context.Context, name string, args Args) (any, error)
}

// Storage stores uploaded objects and resolves their public URLs.
type Storage interface {
	Upload(ctx context.Context, bucket, key string, data []byte) (string, error)
	PublicURL(path string) string
}

// Realtime delivers row change events for a table.
type Realtime interface {
	Subscribe(table string, handler func(ChangeEvent)) (unsubscribe func())
}

// Client is everything the console and the intake form need from the backend.
type Client interface {
	Auth
	Tables
	Procedures
	Storage
	Realtime
}
