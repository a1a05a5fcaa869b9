package models

import "time"

// FeatureFlag is a named on/off switch stored in the database and cached in
// redis. Flags gate operational behaviour such as intake and auto-send.
type FeatureFlag struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:64;uniqueIndex;not null" json:"name"`
	Enabled     bool      `gorm:"not null;default:false" json:"enabled"`
	Description string    `gorm:"size:255" json:"description"`
	UpdatedBy   string    `gorm:"size:64" json:"updated_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Well-known flag names.
const (
	FlagIntakeOpen      = "intake_open"
	FlagAutoSendEnabled = "auto_send_enabled"
)
