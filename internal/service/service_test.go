package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/account-requests/internal/audit"
	"github.com/spec-kit/account-requests/internal/auth"
	"github.com/spec-kit/account-requests/internal/domain"
	"github.com/spec-kit/account-requests/internal/events"
	"github.com/spec-kit/account-requests/internal/repository"
	"github.com/spec-kit/account-requests/internal/repository/memory"
	apperrors "github.com/spec-kit/account-requests/pkg/util/errorutil"
)

type sentMail struct {
	Subject    string
	Body       string
	Recipients []string
}

type fakeSender struct {
	mu   sync.Mutex
	err  error
	sent []sentMail
}

func (f *fakeSender) Send(_ context.Context, subject, body string, recipients []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{Subject: subject, Body: body, Recipients: recipients})
	return nil
}

type brokenAuditRepo struct{}

func (brokenAuditRepo) Append(context.Context, *domain.AuditEntry) error {
	return errors.New("audit store offline")
}

func (brokenAuditRepo) List(context.Context, repository.AuditFilter) ([]domain.AuditEntry, error) {
	return nil, errors.New("audit store offline")
}

type harness struct {
	store      *memory.Store
	recorder   *audit.Recorder
	staff      *StaffService
	requests   *RequestService
	intake     *IntakeService
	auth       *AuthService
	sender     *fakeSender
	dispatcher events.Dispatcher
	clock      *testClock
}

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	auditRepo   repository.AuditRepository
	requestRepo func(repository.RequestRepository) repository.RequestRepository
}

func withAuditRepo(repo repository.AuditRepository) harnessOption {
	return func(c *harnessConfig) { c.auditRepo = repo }
}

func withRequestRepo(wrap func(repository.RequestRepository) repository.RequestRepository) harnessOption {
	return func(c *harnessConfig) { c.requestRepo = wrap }
}

// staleMessageLookup misses the first message id lookups, as a reader racing
// a concurrent delivery would.
type staleMessageLookup struct {
	repository.RequestRepository
	mu     sync.Mutex
	misses int
}

func (r *staleMessageLookup) GetByMessageID(ctx context.Context, messageID string) (*domain.Request, error) {
	r.mu.Lock()
	if r.misses > 0 {
		r.misses--
		r.mu.Unlock()
		return nil, repository.ErrNotFound
	}
	r.mu.Unlock()
	return r.RequestRepository.GetByMessageID(ctx, messageID)
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	clk := &testClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	store := memory.NewStore("ACCT").WithClock(clk.now)

	cfg := harnessConfig{auditRepo: store.Audit()}
	for _, opt := range opts {
		opt(&cfg)
	}
	requestRepo := store.Requests()
	if cfg.requestRepo != nil {
		requestRepo = cfg.requestRepo(requestRepo)
	}

	recorder := audit.NewRecorder(cfg.auditRepo, nil, audit.WithClock(clk.now))
	dispatcher := events.NewInMemoryDispatcher(nil)
	sender := &fakeSender{}

	staff := NewStaffService(StaffDependencies{
		StaffRepo:       store.Staff(),
		Audit:           recorder,
		BcryptCost:      bcrypt.MinCost,
		DefaultPassword: "changeme123",
	})
	requests := NewRequestService(RequestDependencies{
		RequestRepo: requestRepo,
		CommentRepo: store.Comments(),
		Directory:   staff,
		Sender:      sender,
		Audit:       recorder,
		Dispatcher:  dispatcher,
		Now:         clk.now,
	})
	intake := NewIntakeService(IntakeDependencies{
		RequestRepo: requestRepo,
		CommentRepo: store.Comments(),
		Requests:    requests,
		Directory:   staff,
		Audit:       recorder,
		Dispatcher:  dispatcher,
		Now:         clk.now,
	})
	authSvc := NewAuthService(AuthDependencies{
		StaffRepo:    store.Staff(),
		Limiter:      auth.NewMemoryLimiter(3, 15*time.Minute).WithClock(clk.now),
		TokenManager: auth.NewTokenManager("secret", 60),
		Audit:        recorder,
		BcryptCost:   bcrypt.MinCost,
		Now:          clk.now,
	})

	return &harness{
		store:      store,
		recorder:   recorder,
		staff:      staff,
		requests:   requests,
		intake:     intake,
		auth:       authSvc,
		sender:     sender,
		dispatcher: dispatcher,
		clock:      clk,
	}
}

func (h *harness) seedStaff(t *testing.T, members ...SeedMember) {
	t.Helper()
	n, err := h.staff.Seed(context.Background(), members)
	require.NoError(t, err)
	require.Equal(t, len(members), n)
}

func (h *harness) auditActions(t *testing.T) []domain.AuditAction {
	t.Helper()
	entries, err := h.store.Audit().List(context.Background(), repository.AuditFilter{})
	require.NoError(t, err)
	actions := make([]domain.AuditAction, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		actions = append(actions, entries[i].Action)
	}
	return actions
}

func strPtr(s string) *string { return &s }

func agent() domain.Actor {
	return domain.Actor{Email: "agent@lab.org", Name: "Agent Smith", IP: strPtr("10.1.1.1")}
}

func domainCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	var de *apperrors.DomainError
	require.ErrorAs(t, err, &de)
	return de.Code
}

const notificationBody = `You have a new account request.

name: Jane Doe
email: Jane.Doe@Uni.edu
institution: State University
lab_name: Doe Lab
time: 2024-05-01 10:00
link:
https://ilab.example.com/requests/42
`

func repositoryFilterByAction(prefix string) repository.AuditFilter {
	return repository.AuditFilter{ActionPrefix: &prefix}
}
