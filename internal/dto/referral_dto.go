package dto

import (
	"encoding/json"
	"time"

	"github.com/ReMyndassessments/concern2care-api/internal/models"
)

// ReferralRequest is the public intake payload. Teachers identify themselves
// by email + PIN rather than a full account.
type ReferralRequest struct {
	TeacherEmail string `json:"teacher_email" validate:"required,email"`
	TeacherPIN   string `json:"teacher_pin" validate:"required,min=4,max=12"`
	StudentRef   string `json:"student_ref" validate:"required,max=255"`
	ConcernText  string `json:"concern_text" validate:"required,min=10,max=8000"`
}

// ReferralResponse is the opaque intake confirmation. It deliberately never
// carries the AI text: the response is held for review before delivery.
type ReferralResponse struct {
	ReferenceID string `json:"reference_id"`
	State       string `json:"state"`
	Urgent      bool   `json:"urgent"`
}

// SubmissionResponse is the admin-facing view of one submission.
type SubmissionResponse struct {
	ID                uint       `json:"id"`
	ReferenceID       string     `json:"reference_id"`
	TeacherEmail      string     `json:"teacher_email"`
	StudentRef        string     `json:"student_ref"`
	ConcernText       string     `json:"concern_text"`
	AIResponseText    string     `json:"ai_response_text,omitempty"`
	Classification    string     `json:"classification"`
	MatchedTerms      []string   `json:"matched_terms,omitempty"`
	State             string     `json:"state"`
	ReviewDeadline    *time.Time `json:"review_deadline,omitempty"`
	Version           uint64     `json:"version"`
	LastActorType     string     `json:"last_actor_type,omitempty"`
	LastActorID       string     `json:"last_actor_id,omitempty"`
	DispatchAttempts  int        `json:"dispatch_attempts"`
	LastDispatchError string     `json:"last_dispatch_error,omitempty"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// NewSubmissionResponse maps a model to its API representation.
func NewSubmissionResponse(submission models.Submission) SubmissionResponse {
	var terms []string
	if len(submission.MatchedTerms) > 0 {
		// Malformed stored terms degrade to an empty list rather than failing the read.
		_ = json.Unmarshal(submission.MatchedTerms, &terms)
	}

	return SubmissionResponse{
		ID:                submission.ID,
		ReferenceID:       submission.ReferenceID,
		TeacherEmail:      submission.TeacherEmail,
		StudentRef:        submission.StudentRef,
		ConcernText:       submission.ConcernText,
		AIResponseText:    submission.AIResponseText,
		Classification:    submission.Classification,
		MatchedTerms:      terms,
		State:             string(submission.State),
		ReviewDeadline:    submission.ReviewDeadline,
		Version:           submission.Version,
		LastActorType:     submission.LastActorType,
		LastActorID:       submission.LastActorID,
		DispatchAttempts:  submission.DispatchAttempts,
		LastDispatchError: submission.LastDispatchError,
		SentAt:            submission.SentAt,
		CreatedAt:         submission.CreatedAt,
		UpdatedAt:         submission.UpdatedAt,
	}
}

// NewSubmissionResponseSlice maps a slice of models.
func NewSubmissionResponseSlice(submissions []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, NewSubmissionResponse(submission))
	}
	return responses
}
