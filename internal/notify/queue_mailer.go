package notify

import (
	"context"

	"github.com/prperemyshlev/aths/internal/dispatch"
)

// Publisher puts a JSON payload on a named queue
type Publisher interface {
	Publish(ctx context.Context, queue string, payload any) error
}

// QueueMailer publishes EmailJobs for an external delivery worker
type QueueMailer struct {
	publisher Publisher
	queue     string
	links     Links
	retry     dispatch.RetryPolicy
}

func NewQueueMailer(publisher Publisher, queue string, links Links, retry dispatch.RetryPolicy) *QueueMailer {
	return &QueueMailer{publisher: publisher, queue: queue, links: links, retry: retry}
}

func (m *QueueMailer) SendWelcome(ctx context.Context, to Recipient) error {
	return m.publish(ctx, newJob(EmailWelcome, to, ""))
}

func (m *QueueMailer) SendPasswordReset(ctx context.Context, to Recipient, token string) error {
	return m.publish(ctx, newJob(EmailPasswordReset, to, m.links.PasswordReset(token)))
}

func (m *QueueMailer) SendPasswordChanged(ctx context.Context, to Recipient) error {
	return m.publish(ctx, newJob(EmailPasswordChanged, to, ""))
}

func (m *QueueMailer) SendEmailVerification(ctx context.Context, to Recipient, token string) error {
	return m.publish(ctx, newJob(EmailEmailVerification, to, m.links.EmailVerification(token)))
}

func (m *QueueMailer) publish(ctx context.Context, job EmailJob) error {
	return dispatch.Retry(ctx, m.retry, func(ctx context.Context) error {
		return m.publisher.Publish(ctx, m.queue, job)
	})
}

var (
	_ Mailer = (*LogMailer)(nil)
	_ Mailer = (*QueueMailer)(nil)
)
