package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prperemyshlev/aths/internal/apperrors"
	"github.com/prperemyshlev/aths/internal/audit"
	"github.com/prperemyshlev/aths/internal/crms"
	"github.com/prperemyshlev/aths/internal/dispatch"
	"github.com/prperemyshlev/aths/internal/domain"
	"github.com/prperemyshlev/aths/internal/dto"
	"github.com/prperemyshlev/aths/internal/notify"
	"github.com/prperemyshlev/aths/internal/repository"
	"github.com/prperemyshlev/aths/internal/repository/memory"
	"github.com/prperemyshlev/aths/internal/utils"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret   = "test-secret-key-that-is-at-least-32-characters-long"
	testPassword = "Passw0rd!"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentMail struct {
	kind  notify.EmailType
	to    string
	token string
}

// fakeMailer records every send attempt and then fails with err when set
type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []sentMail
}

func (m *fakeMailer) add(kind notify.EmailType, to notify.Recipient, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{kind: kind, to: to.Email, token: token})
	return m.err
}

func (m *fakeMailer) SendWelcome(_ context.Context, to notify.Recipient) error {
	return m.add(notify.EmailWelcome, to, "")
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, to notify.Recipient, token string) error {
	return m.add(notify.EmailPasswordReset, to, token)
}

func (m *fakeMailer) SendPasswordChanged(_ context.Context, to notify.Recipient) error {
	return m.add(notify.EmailPasswordChanged, to, "")
}

func (m *fakeMailer) SendEmailVerification(_ context.Context, to notify.Recipient, token string) error {
	return m.add(notify.EmailEmailVerification, to, token)
}

func (m *fakeMailer) count(kind notify.EmailType) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, s := range m.sent {
		if s.kind == kind {
			n++
		}
	}
	return n
}

// lastToken returns the secret of the most recent email of kind sent to email
func (m *fakeMailer) lastToken(t *testing.T, kind notify.EmailType, email string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].kind == kind && m.sent[i].to == email {
			return m.sent[i].token
		}
	}
	t.Fatalf("no %s email sent to %s", kind, email)
	return ""
}

type fakeCustomers struct {
	mu    sync.Mutex
	err   error
	calls []crms.Customer
}

func (c *fakeCustomers) CreateCustomer(_ context.Context, customer crms.Customer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, customer)
	return c.err
}

type failingSink struct{ err error }

func (s failingSink) Write(context.Context, audit.Event) error { return s.err }

type testEnv struct {
	clock     *testClock
	repos     *repository.Repositories
	resets    *memory.PasswordResetRepository
	sink      *audit.MemorySink
	mailer    *fakeMailer
	customers *fakeCustomers
	reader    *sdkmetric.ManualReader
	jwt       *utils.JWTManager
	hasher    *utils.PasswordHasher

	*Services
}

// newTestEnv wires services over memory repositories with an inline executor.
// opts may replace dependencies before the services are built.
func newTestEnv(t *testing.T, opts ...func(*Dependencies)) *testEnv {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	jwtManager, err := utils.NewJWTManager(utils.JWTConfig{
		Secret:     testSecret,
		Issuer:     "aths",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}, clock.Now)
	require.NoError(t, err)

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := NewMetrics(provider.Meter("test"))
	require.NoError(t, err)

	resets := memory.NewPasswordResetRepository()
	repos := &repository.Repositories{
		User:          memory.NewUserRepository(),
		RefreshToken:  memory.NewRefreshTokenRepository(),
		PasswordReset: resets,
	}

	sink := &audit.MemorySink{}
	mailer := &fakeMailer{}
	customers := &fakeCustomers{}
	hasher := utils.NewPasswordHasher(bcrypt.MinCost)

	deps := Dependencies{
		Repositories: repos,
		JWT:          jwtManager,
		Hasher:       hasher,
		Executor:     dispatch.Inline{},
		Audit:        audit.NewRecorder(sink, dispatch.Inline{}, clock.Now),
		Mailer:       mailer,
		Customers:    customers,
		Metrics:      metrics,
		Clock:        clock.Now,

		PasswordResetTTL:     time.Hour,
		EmailVerificationTTL: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	services := New(deps)

	return &testEnv{
		clock:     clock,
		repos:     repos,
		resets:    resets,
		sink:      sink,
		mailer:    mailer,
		customers: customers,
		reader:    reader,
		jwt:       jwtManager,
		hasher:    hasher,
		Services:  services,
	}
}

func (e *testEnv) register(t *testing.T, email string) *dto.AuthResponse {
	t.Helper()
	resp, err := e.Auth.Register(context.Background(), &dto.RegisterRequest{
		Email:    email,
		Password: testPassword,
		FullName: "Ada Lovelace",
	})
	require.NoError(t, err)
	return resp
}

func (e *testEnv) login(t *testing.T, email, password string) *dto.AuthResponse {
	t.Helper()
	resp, err := e.Auth.Login(context.Background(), &dto.LoginRequest{Email: email, Password: password})
	require.NoError(t, err)
	return resp
}

// admin registers an account and promotes it directly in the store
func (e *testEnv) admin(t *testing.T, email string) *domain.User {
	t.Helper()
	resp := e.register(t, email)

	user, err := e.repos.User.GetByID(context.Background(), resp.User.ID)
	require.NoError(t, err)
	user.Role = domain.RoleAdministrator
	require.NoError(t, e.repos.User.Update(context.Background(), user))
	return user
}

func (e *testEnv) user(t *testing.T, id string) *domain.User {
	t.Helper()
	user, err := e.repos.User.GetByID(context.Background(), id)
	require.NoError(t, err)
	return user
}

// counter sums the data points of an int64 counter whose attribute key equals value.
// An empty key matches every point.
func (e *testEnv) counter(t *testing.T, name, key, value string) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, e.reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				if key != "" {
					v, ok := dp.Attributes.Value(attribute.Key(key))
					if !ok || v.AsString() != value {
						continue
					}
				}
				total += dp.Value
			}
		}
	}
	return total
}

func requireKind(t *testing.T, err error, kind apperrors.Kind) *apperrors.Error {
	t.Helper()
	require.Error(t, err)

	var appErr *apperrors.Error
	require.True(t, errors.As(err, &appErr), "expected *apperrors.Error, got %T: %v", err, err)
	require.Equal(t, kind, appErr.Kind, "unexpected kind for %v", err)
	return appErr
}
