package models

import (
	"time"

	"gorm.io/datatypes"
)

// SubmissionState identifies a stage of the delayed-delivery pipeline.
type SubmissionState string

// Pipeline states. A submission is created in pending_review (normal
// classification) or escalated (urgent classification) and only ever moves
// along the transition graph below.
const (
	StatePendingReview SubmissionState = "pending_review"
	StateHeld          SubmissionState = "held"
	StateApproved      SubmissionState = "approved"
	StateAutoSent      SubmissionState = "auto_sent"
	StateSent          SubmissionState = "sent"
	StateCanceled      SubmissionState = "canceled"
	StateEscalated     SubmissionState = "escalated"
)

// TransitionEvent names a requested state change.
type TransitionEvent string

// Events accepted by the state machine.
const (
	EventAutoSendTimeout   TransitionEvent = "auto_send_timeout"
	EventApprove           TransitionEvent = "approve"
	EventHold              TransitionEvent = "hold"
	EventCancel            TransitionEvent = "cancel"
	EventEscalate          TransitionEvent = "escalate"
	EventDispatchSucceeded TransitionEvent = "dispatch_succeeded"
	EventResolveApprove    TransitionEvent = "resolve_approve"
	EventResolveCancel     TransitionEvent = "resolve_cancel"
)

// Classification labels assigned once at intake.
const (
	ClassificationNormal = "normal"
	ClassificationUrgent = "urgent"
)

// Actor types recorded on transitions.
const (
	ActorTypeSystem = "system"
	ActorTypeAdmin  = "admin"
)

// transitions is the full state graph. Any (state, event) pair missing here
// is an illegal transition.
var transitions = map[SubmissionState]map[TransitionEvent]SubmissionState{
	StatePendingReview: {
		EventAutoSendTimeout: StateAutoSent,
		EventApprove:         StateApproved,
		EventHold:            StateHeld,
		EventCancel:          StateCanceled,
		EventEscalate:        StateEscalated,
	},
	StateHeld: {
		EventApprove:  StateApproved,
		EventCancel:   StateCanceled,
		EventEscalate: StateEscalated,
	},
	StateApproved: {
		EventDispatchSucceeded: StateSent,
	},
	StateAutoSent: {
		EventDispatchSucceeded: StateSent,
	},
	StateEscalated: {
		EventResolveApprove: StateApproved,
		EventResolveCancel:  StateCanceled,
	},
}

// NextState returns the state reached by applying event from state, and
// whether the transition is legal.
func NextState(state SubmissionState, event TransitionEvent) (SubmissionState, bool) {
	next, ok := transitions[state][event]
	return next, ok
}

// Submission is one teacher-initiated referral moving through the
// delayed-delivery pipeline. ConcernText and Classification are immutable
// after creation; State changes only through versioned transitions.
type Submission struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	ReferenceID    string          `gorm:"size:36;uniqueIndex;not null" json:"reference_id"`
	TeacherEmail   string          `gorm:"size:255;not null;index" json:"teacher_email"`
	StudentRef     string          `gorm:"size:255;not null" json:"student_ref"`
	ConcernText    string          `gorm:"type:text;not null" json:"concern_text"`
	AIResponseText string          `gorm:"type:text" json:"ai_response_text"`
	Classification string          `gorm:"size:16;not null" json:"classification"`
	MatchedTerms   datatypes.JSON  `gorm:"type:json" json:"matched_terms"`
	State          SubmissionState `gorm:"size:32;not null;index" json:"state"`
	ReviewDeadline *time.Time      `gorm:"index" json:"review_deadline"`
	Version        uint64          `gorm:"not null;default:1" json:"version"`
	LastActorType  string          `gorm:"size:16" json:"last_actor_type"`
	LastActorID    string          `gorm:"size:64" json:"last_actor_id"`

	DispatchAttempts  int        `gorm:"not null;default:0" json:"dispatch_attempts"`
	LastDispatchError string     `gorm:"size:512" json:"last_dispatch_error,omitempty"`
	SentAt            *time.Time `json:"sent_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsTerminal reports whether the submission can no longer change state.
// Escalated is not terminal: it still awaits a human resolution.
func (s Submission) IsTerminal() bool {
	return s.State == StateSent || s.State == StateCanceled
}

// AwaitingDispatch reports whether the submission has been promoted but not
// yet confirmed delivered.
func (s Submission) AwaitingDispatch() bool {
	return s.State == StateApproved || s.State == StateAutoSent
}

// IsUrgent reports whether the intake classifier flagged the concern text.
func (s Submission) IsUrgent() bool {
	return s.Classification == ClassificationUrgent
}
