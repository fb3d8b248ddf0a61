package models

import "time"

// RetentionSettingID is the primary key of the single settings row.
const RetentionSettingID = 1

// DefaultRetentionDays applies when no settings row exists yet.
const DefaultRetentionDays = 90

// RetentionSetting holds the global auto-delete horizon applied when a submission is accepted.
type RetentionSetting struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	DefaultRetentionDays int       `gorm:"not null;default:90" json:"default_retention_days"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (RetentionSetting) TableName() string {
	return "recycling_settings"
}
