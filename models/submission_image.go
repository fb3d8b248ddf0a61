package models

import "time"

// SubmissionImage is one uploaded photo of a submission. Position 0 is the cover.
type SubmissionImage struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID string    `gorm:"size:36;index:idx_image_submission_pos;not null" json:"submission_id"`
	ImagePath    string    `gorm:"size:1024;not null" json:"image_path"`
	Position     int       `gorm:"index:idx_image_submission_pos;not null;default:0" json:"position"`
	CreatedAt    time.Time `json:"created_at"`
}

func (SubmissionImage) TableName() string {
	return "recycling_submission_images"
}
