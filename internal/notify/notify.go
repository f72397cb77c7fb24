// Package notify sends fire-and-forget completion emails for large jobs.
package notify

import (
	"fmt"
	"log/slog"
	"net/smtp"
)

// Notifier reports a finished job to its owner. Implementations must be
// fire-and-forget: failures are logged by callers, never escalated.
type Notifier interface {
	Notify(userEmail, jobID string, chunksProcessed, totalChunks int, success bool) error
}

// LogNotifier records notifications in the log only. Used when SMTP is
// not configured and in tests.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs the notification instead of sending it.
func (n *LogNotifier) Notify(userEmail, jobID string, chunksProcessed, totalChunks int, success bool) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("job notification",
		"email", userEmail,
		"job_id", jobID,
		"processed_chunks", chunksProcessed,
		"total_chunks", totalChunks,
		"success", success)
	return nil
}

// SMTPConfig configures the SMTP notifier.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier delivers notifications over plain SMTP.
type SMTPNotifier struct {
	cfg SMTPConfig
}

// NewSMTPNotifier creates an SMTP notifier.
func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg}
}

// Notify sends the completion email.
func (n *SMTPNotifier) Notify(userEmail, jobID string, chunksProcessed, totalChunks int, success bool) error {
	outcome := "completed"
	if !success {
		outcome = "stopped"
	}

	subject := fmt.Sprintf("Your analysis %s", outcome)
	body := fmt.Sprintf(
		"Analysis job %s %s.\r\nSections processed: %d of %d.\r\n",
		jobID, outcome, chunksProcessed, totalChunks)

	msg := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		n.cfg.From, userEmail, subject, body))

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	if err := smtp.SendMail(addr, auth, n.cfg.From, []string{userEmail}, msg); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}
