package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogMailer writes emails to the log instead of delivering them.
// Action URLs carry live secrets; use it only outside production.
type LogMailer struct {
	logger *zap.Logger
	links  Links
}

func NewLogMailer(logger *zap.Logger, links Links) *LogMailer {
	return &LogMailer{logger: logger.Named("mailer"), links: links}
}

func (m *LogMailer) SendWelcome(_ context.Context, to Recipient) error {
	m.log(newJob(EmailWelcome, to, ""))
	return nil
}

func (m *LogMailer) SendPasswordReset(_ context.Context, to Recipient, token string) error {
	m.log(newJob(EmailPasswordReset, to, m.links.PasswordReset(token)))
	return nil
}

func (m *LogMailer) SendPasswordChanged(_ context.Context, to Recipient) error {
	m.log(newJob(EmailPasswordChanged, to, ""))
	return nil
}

func (m *LogMailer) SendEmailVerification(_ context.Context, to Recipient, token string) error {
	m.log(newJob(EmailEmailVerification, to, m.links.EmailVerification(token)))
	return nil
}

func (m *LogMailer) log(job EmailJob) {
	m.logger.Info("email",
		zap.String("type", string(job.Type)),
		zap.String("to", job.To),
		zap.String("action_url", job.ActionURL),
	)
}
