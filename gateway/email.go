package gateway

import (
	"context"
	"crypto/tls"
	"fmt"

	"propflow/config"
	"propflow/utils"

	"gopkg.in/gomail.v2"
)

// EmailSender delivers messages over SMTP with open/click tracking injected
// into the HTML body.
type EmailSender struct {
	cfg     config.SMTPConfig
	baseURL string
	secret  string
}

func NewEmailSender(cfg config.SMTPConfig, baseURL, secret string) *EmailSender {
	return &EmailSender{cfg: cfg, baseURL: baseURL, secret: secret}
}

func (s *EmailSender) Send(ctx context.Context, msg Message) (*SendResult, error) {
	if s.cfg.Host == "" {
		return nil, fmt.Errorf("SMTP is not configured")
	}

	dialer := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	dialer.TLSConfig = &tls.Config{ServerName: s.cfg.Host}

	trackedBody := utils.InjectTracking(msg.Body, s.baseURL, s.secret, msg.MessageID)

	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromEmail))
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", fmt.Sprintf("<%s@propflow>", msg.MessageID))
	m.SetHeader("List-Unsubscribe", fmt.Sprintf("<%s>", utils.UnsubscribeURL(s.baseURL, s.secret, msg.MessageID)))
	m.SetBody("text/html", trackedBody)

	// gomail has no context support; honor cancellation before dialing
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := dialer.DialAndSend(m); err != nil {
		return nil, fmt.Errorf("send failed: %w", err)
	}

	return &SendResult{
		MessageID: msg.MessageID,
		Provider:  "smtp",
		Cost:      0,
	}, nil
}
