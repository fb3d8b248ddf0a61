package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SubmissionStatus is the review state of a recycling request.
type SubmissionStatus string

const (
	StatusPending  SubmissionStatus = "pending"
	StatusAccepted SubmissionStatus = "accepted"
	StatusRejected SubmissionStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// CanTransition reports whether a submission may move from one status to another.
// Only pending submissions can be decided; decided ones can only be deleted.
func CanTransition(from, to SubmissionStatus) bool {
	return from == StatusPending && (to == StatusAccepted || to == StatusRejected)
}

// Submission represents one recycling request sent through the public intake form.
type Submission struct {
	ID             string           `gorm:"primaryKey;size:36" json:"id"`
	Status         SubmissionStatus `gorm:"size:16;index;not null;default:'pending'" json:"status"`
	Name           string           `gorm:"size:255;not null" json:"name"`
	Mobile         string           `gorm:"size:64;index;not null" json:"mobile"`
	Email          string           `gorm:"size:255;index" json:"email"` // empty when not provided
	Address        string           `gorm:"type:text;not null" json:"address"`
	ProductDetails string           `gorm:"type:text;not null" json:"product_details"`
	ImagePath      string           `gorm:"size:1024" json:"image_path"` // cover image, bucket-prefixed
	CreatedAt      time.Time        `gorm:"index" json:"created_at"`
	AutoDeleteAt   *time.Time       `gorm:"index" json:"auto_delete_at"`
}

func (Submission) TableName() string {
	return "recycling_submissions"
}

// BeforeCreate assigns an id and the initial status when missing.
func (s *Submission) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = StatusPending
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	return nil
}
