// Package mailer sends intervention strategy emails through SendGrid.
package mailer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// Config holds SendGrid credentials and sender identity.
type Config struct {
	APIKey    string
	FromName  string
	FromEmail string
	Subject   string
}

// Mailer delivers plain-text messages to a single recipient.
type Mailer struct {
	cfg    Config
	from   *sgmail.Email
	logger zerolog.Logger
}

// New constructs a SendGrid mailer.
func New(cfg Config, logger zerolog.Logger) (*Mailer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("sendgrid api key is required")
	}
	if cfg.FromEmail == "" {
		return nil, fmt.Errorf("sendgrid from address is required")
	}
	if cfg.Subject == "" {
		cfg.Subject = "Classroom intervention strategies"
	}

	return &Mailer{
		cfg:    cfg,
		from:   sgmail.NewEmail(cfg.FromName, cfg.FromEmail),
		logger: logger.With().Str("component", "mailer").Logger(),
	}, nil
}

// Send delivers body to the recipient address. The returned error is the
// delivery outcome; callers own retry policy.
func (m *Mailer) Send(ctx context.Context, toEmail, body string) error {
	personalization := sgmail.NewPersonalization()
	personalization.Subject = m.cfg.Subject
	personalization.AddTos(sgmail.NewEmail("", toEmail))

	message := sgmail.NewV3Mail()
	message.SetFrom(m.from)
	message.AddPersonalizations(personalization)
	message.AddContent(sgmail.NewContent("text/plain", body))

	request := sendgrid.GetRequest(m.cfg.APIKey, sendgridEndpoint, sendgridHost)
	request.Method = http.MethodPost
	request.Body = sgmail.GetRequestBody(message)

	response, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if response.StatusCode >= http.StatusBadRequest {
		m.logger.Warn().Int("status", response.StatusCode).Msg("sendgrid rejected message")
		return fmt.Errorf("sendgrid responded with status %d", response.StatusCode)
	}

	return nil
}
