package service

import (
	"context"
	"time"

	"github.com/prperemyshlev/aths/internal/audit"
	"github.com/prperemyshlev/aths/internal/crms"
	"github.com/prperemyshlev/aths/internal/dispatch"
	"github.com/prperemyshlev/aths/internal/notify"
	"github.com/prperemyshlev/aths/internal/repository"
	"github.com/prperemyshlev/aths/internal/utils"
	"go.uber.org/zap"
)

// CustomerDirectory creates the downstream customer record for a new account
type CustomerDirectory interface {
	CreateCustomer(ctx context.Context, customer crms.Customer) error
}

// Dependencies are the collaborators shared by all services.
// Customers, Mailer and Audit are optional.
type Dependencies struct {
	Repositories *repository.Repositories
	JWT          *utils.JWTManager
	Hasher       *utils.PasswordHasher
	Executor     dispatch.Executor
	Audit        *audit.Recorder
	Mailer       notify.Mailer
	Customers    CustomerDirectory
	Metrics      *Metrics
	Logger       *zap.Logger
	Clock        func() time.Time

	PasswordResetTTL     time.Duration
	EmailVerificationTTL time.Duration
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Executor == nil {
		d.Executor = dispatch.Inline{Logger: d.Logger}
	}
	if d.Metrics == nil {
		d.Metrics = NoopMetrics()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.PasswordResetTTL <= 0 {
		d.PasswordResetTTL = time.Hour
	}
	if d.EmailVerificationTTL <= 0 {
		d.EmailVerificationTTL = 24 * time.Hour
	}
	return d
}

// Services bundles every service built from one set of dependencies
type Services struct {
	Sessions *SessionManager
	Auth     AuthService
	Recovery RecoveryService
	Account  AccountService
}

// New wires all services
func New(deps Dependencies) *Services {
	deps = deps.withDefaults()
	sessions := NewSessionManager(deps)
	return &Services{
		Sessions: sessions,
		Auth:     NewAuthService(deps, sessions),
		Recovery: NewRecoveryService(deps, sessions),
		Account:  NewAccountService(deps, sessions),
	}
}

// sideEffects submits best-effort work that must never fail the caller
type sideEffects struct {
	exec      dispatch.Executor
	audit     *audit.Recorder
	mailer    notify.Mailer
	customers CustomerDirectory
}

func newSideEffects(deps Dependencies) sideEffects {
	return sideEffects{
		exec:      deps.Executor,
		audit:     deps.Audit,
		mailer:    deps.Mailer,
		customers: deps.Customers,
	}
}

func (s sideEffects) record(ctx context.Context, event audit.Event) {
	s.audit.Record(ctx, event)
}

func (s sideEffects) mail(name string, send func(ctx context.Context, m notify.Mailer) error) {
	if s.mailer == nil {
		return
	}
	s.exec.Submit(dispatch.Task{
		Name: "mail:" + name,
		Run: func(ctx context.Context) error {
			return send(ctx, s.mailer)
		},
	})
}

// createCustomer is fire-and-forget: one attempt, failures are only logged.
func (s sideEffects) createCustomer(customer crms.Customer) {
	if s.customers == nil {
		return
	}
	s.exec.Submit(dispatch.Task{
		Name: "crms:create-customer",
		Run: func(ctx context.Context) error {
			return s.customers.CreateCustomer(ctx, customer)
		},
	})
}
