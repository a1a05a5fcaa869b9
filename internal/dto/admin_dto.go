package dto

import (
	"time"

	"github.com/ReMyndassessments/concern2care-api/internal/models"
)

// SubmissionListFilter narrows the admin list view.
type SubmissionListFilter struct {
	State          *string `query:"state" validate:"omitempty,oneof=pending_review held approved auto_sent sent canceled escalated"`
	Classification *string `query:"classification" validate:"omitempty,oneof=normal urgent"`
	Page           int     `query:"page" validate:"omitempty,min=1"`
	PageSize       int     `query:"page_size" validate:"omitempty,min=1,max=200"`
}

// AdminActionRequest carries the version the admin last observed. The action
// is rejected with a conflict if the submission changed since that read.
type AdminActionRequest struct {
	Version uint64 `json:"version" validate:"required,min=1"`
}

// AdminReasonedActionRequest is used by cancel and escalate, which require a
// free-text reason for the audit trail.
type AdminReasonedActionRequest struct {
	Version uint64 `json:"version" validate:"required,min=1"`
	Reason  string `json:"reason" validate:"required,min=3,max=512"`
}

// ResolveEscalationRequest resolves an escalated submission one way or the other.
type ResolveEscalationRequest struct {
	Version  uint64 `json:"version" validate:"required,min=1"`
	Decision string `json:"decision" validate:"required,oneof=approve cancel"`
	Reason   string `json:"reason" validate:"required,min=3,max=512"`
}

// SubmissionListResponse wraps a page of submissions.
type SubmissionListResponse struct {
	Submissions []SubmissionResponse `json:"submissions"`
	Total       int64                `json:"total"`
	Page        int                  `json:"page"`
	PageSize    int                  `json:"page_size"`
}

// AuditEntryResponse is one row of a submission's transition history.
type AuditEntryResponse struct {
	ID        uint      `json:"id"`
	FromState string    `json:"from_state"`
	ToState   string    `json:"to_state"`
	Event     string    `json:"event"`
	ActorType string    `json:"actor_type"`
	ActorID   string    `json:"actor_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewAuditEntryResponseSlice maps audit models to their API representation.
func NewAuditEntryResponseSlice(entries []models.AuditEntry) []AuditEntryResponse {
	responses := make([]AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, AuditEntryResponse{
			ID:        entry.ID,
			FromState: string(entry.FromState),
			ToState:   string(entry.ToState),
			Event:     string(entry.Event),
			ActorType: entry.ActorType,
			ActorID:   entry.ActorID,
			Reason:    entry.Reason,
			CreatedAt: entry.CreatedAt,
		})
	}
	return responses
}

// AnalyticsOverviewResponse is the cached dashboard aggregate.
type AnalyticsOverviewResponse struct {
	Total            int64            `json:"total"`
	CountsByState    map[string]int64 `json:"counts_by_state"`
	UrgentTotal      int64            `json:"urgent_total"`
	UrgentRate       float64          `json:"urgent_rate"`
	DispatchFailures int64            `json:"dispatch_failures"`
	AvgMinutesToSend float64          `json:"avg_minutes_to_send"`
	GeneratedAt      time.Time        `json:"generated_at"`
}

// FlagResponse is the admin view of one feature flag.
type FlagResponse struct {
	Name        string    `json:"name"`
	Enabled     bool      `json:"enabled"`
	Description string    `json:"description,omitempty"`
	UpdatedBy   string    `json:"updated_by,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FlagUpdateRequest toggles a feature flag.
type FlagUpdateRequest struct {
	Name        string `json:"name" validate:"required,max=64"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description" validate:"omitempty,max=255"`
}

// NewFlagResponse maps a flag model.
func NewFlagResponse(flag models.FeatureFlag) FlagResponse {
	return FlagResponse{
		Name:        flag.Name,
		Enabled:     flag.Enabled,
		Description: flag.Description,
		UpdatedBy:   flag.UpdatedBy,
		UpdatedAt:   flag.UpdatedAt,
	}
}

// NewFlagResponseSlice maps flag models.
func NewFlagResponseSlice(flags []models.FeatureFlag) []FlagResponse {
	responses := make([]FlagResponse, 0, len(flags))
	for _, flag := range flags {
		responses = append(responses, NewFlagResponse(flag))
	}
	return responses
}
