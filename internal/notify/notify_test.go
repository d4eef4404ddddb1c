package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prperemyshlev/aths/internal/dispatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type published struct {
	queue   string
	payload any
}

type fakePublisher struct {
	failures int
	calls    int
	sent     []published
}

func (p *fakePublisher) Publish(_ context.Context, queue string, payload any) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, published{queue: queue, payload: payload})
	return nil
}

var fastRetry = dispatch.RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond}

func TestLinks(t *testing.T) {
	links := Links{FrontendURL: "https://shop.example.com/"}

	assert.Equal(t, "https://shop.example.com/reset-password?token=abc123", links.PasswordReset("abc123"))
	assert.Equal(t, "https://shop.example.com/verify-email?token=a%2Bb", links.EmailVerification("a+b"))
}

func TestQueueMailerPublishesJob(t *testing.T) {
	pub := &fakePublisher{}
	m := NewQueueMailer(pub, "aths.email", Links{FrontendURL: "http://localhost:3000"}, fastRetry)

	err := m.SendPasswordReset(context.Background(), Recipient{Email: "a@x.com", Name: "Ada"}, "secret")
	require.NoError(t, err)

	require.Len(t, pub.sent, 1)
	assert.Equal(t, "aths.email", pub.sent[0].queue)

	job, ok := pub.sent[0].payload.(EmailJob)
	require.True(t, ok)
	assert.Equal(t, EmailPasswordReset, job.Type)
	assert.Equal(t, "a@x.com", job.To)
	assert.Equal(t, "http://localhost:3000/reset-password?token=secret", job.ActionURL)
}

func TestQueueMailerRetries(t *testing.T) {
	pub := &fakePublisher{failures: 2}
	m := NewQueueMailer(pub, "aths.email", Links{}, fastRetry)

	require.NoError(t, m.SendWelcome(context.Background(), Recipient{Email: "a@x.com"}))
	assert.Equal(t, 3, pub.calls)
	assert.Len(t, pub.sent, 1)
}

func TestQueueMailerGivesUp(t *testing.T) {
	pub := &fakePublisher{failures: 10}
	m := NewQueueMailer(pub, "aths.email", Links{}, fastRetry)

	assert.Error(t, m.SendPasswordChanged(context.Background(), Recipient{Email: "a@x.com"}))
	assert.Equal(t, 3, pub.calls)
}

func TestLogMailer(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := NewLogMailer(zap.New(core), Links{FrontendURL: "http://localhost:3000"})

	require.NoError(t, m.SendEmailVerification(context.Background(), Recipient{Email: "a@x.com"}, "tok"))

	entries := logs.FilterMessage("email").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "email_verification", fields["type"])
	assert.Equal(t, "http://localhost:3000/verify-email?token=tok", fields["action_url"])
}
