package email

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"

	"github.com/ledgerkeep/recurring-service/internal/config"
	"github.com/ledgerkeep/recurring-service/internal/models"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

// SendSweepSummary emails the outcome of one recurring-payment sweep to
// the ops address
func (s *Sender) SendSweepSummary(result *models.ProcessingResult) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{s.cfg.OpsEmail}
	if result.Success {
		e.Subject = "Recurring payment sweep completed"
	} else {
		e.Subject = fmt.Sprintf("Recurring payment sweep completed with %d error(s)", len(result.Errors))
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Recurring payment sweep summary\n\n")
	fmt.Fprintf(&body, "Processed entries:       %d\n", result.ProcessedCount)
	fmt.Fprintf(&body, "Deactivated obligations: %d\n", result.DeactivatedCount)
	fmt.Fprintf(&body, "Errors:                  %d\n", len(result.Errors))
	if len(result.CreatedRecords) > 0 {
		body.WriteString("\nCreated records:\n")
		for _, rec := range result.CreatedRecords {
			fmt.Fprintf(&body, "  - %s #%d: %s (%s)\n", rec.Kind, rec.RecordID, rec.Amount, rec.Description)
		}
	}
	if len(result.Errors) > 0 {
		body.WriteString("\nFailures:\n")
		for _, pe := range result.Errors {
			if pe.ObligationID != 0 {
				fmt.Fprintf(&body, "  - obligation %d: %s\n", pe.ObligationID, pe.Error)
			} else {
				fmt.Fprintf(&body, "  - %s\n", pe.Error)
			}
		}
	}
	e.Text = []byte(body.String())

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send sweep summary to %s: %v", s.cfg.OpsEmail, err)
		return fmt.Errorf("failed to send sweep summary: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", s.cfg.OpsEmail, e.Subject)
	return nil
}
