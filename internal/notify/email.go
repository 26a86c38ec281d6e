// Package notify delivers reminder digests about credits that are about to
// expire.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"

	"perks/internal/log"
	"perks/internal/services"
)

// ErrNoRecipient is returned when a user has no configured address.
var ErrNoRecipient = errors.New("no email address for user")

// SMTPConfig holds the outgoing mail server settings.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

type sendFunc func(e *email.Email, addr string, auth smtp.Auth) error

// EmailNotifier sends one plain-text email per digest.
type EmailNotifier struct {
	smtp       SMTPConfig
	recipients map[string]string
	send       sendFunc
	logger     *log.Logger
}

var _ services.Notifier = (*EmailNotifier)(nil)

// NewEmailNotifier creates a notifier. recipients maps user IDs to addresses.
func NewEmailNotifier(cfg SMTPConfig, recipients map[string]string, logger *log.Logger) *EmailNotifier {
	if logger == nil {
		logger = log.Discard()
	}
	return &EmailNotifier{
		smtp:       cfg,
		recipients: recipients,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
		logger: logger.WithComponent(log.ComponentNotify),
	}
}

// NotifyExpiring implements services.Notifier.
func (n *EmailNotifier) NotifyExpiring(ctx context.Context, userID string, credits []services.ExpiringCredit) error {
	if len(credits) == 0 {
		return nil
	}
	to, ok := n.recipients[userID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoRecipient, userID)
	}

	e := email.NewEmail()
	e.From = n.smtp.From
	e.To = []string{to}
	e.Subject = Subject(credits)
	e.Text = []byte(Body(userID, credits))

	addr := fmt.Sprintf("%s:%s", n.smtp.Host, n.smtp.Port)
	var auth smtp.Auth
	if n.smtp.Username != "" {
		auth = smtp.PlainAuth("", n.smtp.Username, n.smtp.Password, n.smtp.Host)
	}

	if err := n.send(e, addr, auth); err != nil {
		n.logger.ErrorContext(ctx, "Failed to send reminder email",
			log.FieldUserID, userID,
			log.FieldError, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	n.logger.InfoContext(ctx, "Reminder email sent",
		log.FieldUserID, userID,
		log.FieldCount, len(credits),
		"subject", e.Subject)
	return nil
}

// Subject summarizes a digest in one line.
func Subject(credits []services.ExpiringCredit) string {
	if len(credits) == 1 {
		if credits[0].DaysLeft == 0 {
			return fmt.Sprintf("%s expires today", credits[0].Credit)
		}
		return fmt.Sprintf("%s expires in %s", credits[0].Credit, days(credits[0].DaysLeft))
	}
	return fmt.Sprintf("%d card credits expire soon", len(credits))
}

// Body renders the digest text.
func Body(userID string, credits []services.ExpiringCredit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", userID)
	b.WriteString("These credits have not been used yet and their period ends soon:\n\n")
	for _, c := range credits {
		left := "last day"
		if c.DaysLeft > 0 {
			left = days(c.DaysLeft) + " left"
		}
		fmt.Fprintf(&b, "- %s (%s): %s, ends %s (%s)\n",
			c.Credit, c.Card, c.Amount, c.EndDate, left)
	}
	b.WriteString("\nMark them as used once redeemed to stop these reminders.\n")
	return b.String()
}

func days(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}
