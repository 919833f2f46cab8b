package auth

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/smtp"
	"net/url"
	"strings"
)

// Mailer delivers the verification link of a new account. The token never
// leaves the auth module any other way.
type Mailer interface {
	SendVerification(ctx context.Context, email, token string) error
}

// VerificationLink is the browser link that redeems token.
func VerificationLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/verify-email?token=" + url.QueryEscape(token)
}

// LogMailer writes verification links to the process log. For local
// development only: whoever reads the log can verify any account.
type LogMailer struct {
	BaseURL string
}

// SendVerification logs the link.
func (m LogMailer) SendVerification(_ context.Context, email, token string) error {
	log.Printf("[auth] Verification link for %s: %s", email, VerificationLink(m.BaseURL, token))
	return nil
}

// SMTPMailer sends verification links through an SMTP relay.
type SMTPMailer struct {
	Addr     string // host:port
	From     string
	Username string
	Password string
	BaseURL  string
}

// SendVerification sends one plain-text mail to email.
func (m SMTPMailer) SendVerification(ctx context.Context, email, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	host, _, err := net.SplitHostPort(m.Addr)
	if err != nil {
		return fmt.Errorf("invalid SMTP address %q: %w", m.Addr, err)
	}

	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, host)
	}

	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Confirm your orangeChat account\r\n\r\n"+
		"Open this link to confirm your email address:\r\n\r\n%s\r\n",
		m.From, email, VerificationLink(m.BaseURL, token))

	if err := smtp.SendMail(m.Addr, auth, m.From, []string{email}, []byte(body)); err != nil {
		return fmt.Errorf("failed to send verification mail: %w", err)
	}
	return nil
}
