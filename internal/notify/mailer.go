// Package notify hands account emails to a delivery transport.
package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Recipient is the addressee of an account email
type Recipient struct {
	Email string
	Name  string
}

// Mailer sends account lifecycle emails. Callers treat every method as best-effort.
type Mailer interface {
	SendWelcome(ctx context.Context, to Recipient) error
	SendPasswordReset(ctx context.Context, to Recipient, token string) error
	SendPasswordChanged(ctx context.Context, to Recipient) error
	SendEmailVerification(ctx context.Context, to Recipient, token string) error
}

// EmailType names the template a delivery worker should render
type EmailType string

const (
	EmailWelcome           EmailType = "welcome"
	EmailPasswordReset     EmailType = "password_reset"
	EmailPasswordChanged   EmailType = "password_changed"
	EmailEmailVerification EmailType = "email_verification"
)

// EmailJob is the transport-neutral description of one email
type EmailJob struct {
	Type      EmailType `json:"type"`
	To        string    `json:"to"`
	Name      string    `json:"name,omitempty"`
	ActionURL string    `json:"actionUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Links builds the frontend URLs embedded in emails
type Links struct {
	FrontendURL string
}

func (l Links) PasswordReset(token string) string {
	return l.withToken("/reset-password", token)
}

func (l Links) EmailVerification(token string) string {
	return l.withToken("/verify-email", token)
}

func (l Links) withToken(path, token string) string {
	base := strings.TrimRight(l.FrontendURL, "/")
	return fmt.Sprintf("%s%s?%s", base, path, url.Values{"token": []string{token}}.Encode())
}

func newJob(typ EmailType, to Recipient, actionURL string) EmailJob {
	return EmailJob{
		Type:      typ,
		To:        to.Email,
		Name:      to.Name,
		ActionURL: actionURL,
		CreatedAt: time.Now().UTC(),
	}
}
