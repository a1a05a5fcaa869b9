package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ReMyndassessments/concern2care-api/internal/repository"
	"github.com/ReMyndassessments/concern2care-api/pkg/report"
)

// ReportService renders one submission, including its transition history,
// into a printable PDF for admin export.
type ReportService interface {
	SubmissionReport(ctx context.Context, id uint) ([]byte, string, error)
}

type reportService struct {
	submissions repository.SubmissionRepository
	audits      repository.AuditRepository
	logger      zerolog.Logger
}

// NewReportService constructs the report service.
func NewReportService(submissions repository.SubmissionRepository, audits repository.AuditRepository, logger zerolog.Logger) ReportService {
	return &reportService{
		submissions: submissions,
		audits:      audits,
		logger:      logger.With().Str("component", "report_service").Logger(),
	}
}

// SubmissionReport returns the PDF bytes and a suggested filename.
func (s *reportService) SubmissionReport(ctx context.Context, id uint) ([]byte, string, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrSubmissionNotFound
		}
		return nil, "", err
	}

	entries, err := s.audits.ListBySubmission(ctx, id)
	if err != nil {
		return nil, "", err
	}

	doc := report.Document{
		Title:       "Student concern referral",
		ReferenceID: submission.ReferenceID,
		Fields: []report.Field{
			{Label: "Teacher", Value: submission.TeacherEmail},
			{Label: "Student", Value: submission.StudentRef},
			{Label: "Classification", Value: submission.Classification},
			{Label: "State", Value: string(submission.State)},
			{Label: "Submitted", Value: submission.CreatedAt.UTC().Format("2006-01-02 15:04 MST")},
		},
		BodyHeading: "Concern",
		Body:        submission.ConcernText,
	}

	if submission.IsUrgent() {
		var terms []string
		if len(submission.MatchedTerms) > 0 {
			if err := json.Unmarshal(submission.MatchedTerms, &terms); err != nil {
				s.logger.Warn().Err(err).Uint("submission_id", id).Msg("matched terms unreadable")
			}
		}
		doc.Fields = append(doc.Fields, report.Field{Label: "Matched terms", Value: strings.Join(terms, ", ")})
	}
	if submission.SentAt != nil {
		doc.Fields = append(doc.Fields, report.Field{Label: "Sent", Value: submission.SentAt.UTC().Format("2006-01-02 15:04 MST")})
	}
	if submission.AIResponseText != "" {
		doc.Body = submission.ConcernText + "\n\nSuggested strategies\n\n" + submission.AIResponseText
	}

	for _, entry := range entries {
		actor := entry.ActorType
		if entry.ActorID != "" {
			actor = actor + ":" + entry.ActorID
		}
		doc.History = append(doc.History, report.HistoryRow{
			When:  entry.CreatedAt,
			From:  string(entry.FromState),
			To:    string(entry.ToState),
			Actor: actor,
			Note:  entry.Reason,
		})
	}

	payload, err := report.Render(doc)
	if err != nil {
		return nil, "", fmt.Errorf("render submission report: %w", err)
	}

	filename := fmt.Sprintf("referral-%s.pdf", submission.ReferenceID)
	return payload, filename, nil
}
