package models

import "time"

// AuditEntry records a single accepted state transition. The audit log is
// append-only; entries are never updated or deleted.
type AuditEntry struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	SubmissionID uint            `gorm:"not null;index" json:"submission_id"`
	FromState    SubmissionState `gorm:"size:32;not null" json:"from_state"`
	ToState      SubmissionState `gorm:"size:32;not null" json:"to_state"`
	Event        TransitionEvent `gorm:"size:32;not null" json:"event"`
	ActorType    string          `gorm:"size:16;not null" json:"actor_type"`
	ActorID      string          `gorm:"size:64" json:"actor_id"`
	Reason       string          `gorm:"size:512" json:"reason,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
