package mailer

import (
	"context"
	"fmt"
	"html"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"
)

// Config holds the SMTP relay settings.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	// ResetURL is the frontend page that consumes reset tokens; the token is
	// appended as a query parameter.
	ResetURL string
}

// Mailer sends transactional mail over SMTP.
type Mailer struct {
	dialer   *gomail.Dialer
	from     string
	resetURL string
	logger   *zap.Logger
}

// New constructs a Mailer for the given relay.
func New(cfg Config, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{
		dialer:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:     cfg.FromAddress,
		resetURL: cfg.ResetURL,
		logger:   logger,
	}
}

// SendPasswordReset delivers the single-use reset link to the account's
// address. The context is honored between queueing and dialing; gomail itself
// does not support cancellation mid-send.
func (m *Mailer) SendPasswordReset(ctx context.Context, to, username, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	link := fmt.Sprintf("%s?token=%s", m.resetURL, token)
	body := fmt.Sprintf(
		"<p>Hi %s,</p>"+
			"<p>A password reset was requested for your E-Projects account. "+
			"Follow the link below to choose a new password. The link expires shortly.</p>"+
			"<p><a href=%q>Reset your password</a></p>"+
			"<p>If you did not request this, you can ignore this message.</p>",
		html.EscapeString(username), link)

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "E-Projects password reset")
	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send password reset mail: %w", err)
	}

	m.logger.Info("password reset mail sent", zap.String("to", to))
	return nil
}
