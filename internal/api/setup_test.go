package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"
	"github.com/the-bazaar/bazaar-backend/internal/audit"
	"github.com/the-bazaar/bazaar-backend/internal/auth"
	"github.com/the-bazaar/bazaar-backend/internal/db"
	"github.com/the-bazaar/bazaar-backend/internal/identity"
	"github.com/the-bazaar/bazaar-backend/internal/mfa"
	"github.com/the-bazaar/bazaar-backend/internal/rbac"
	"github.com/the-bazaar/bazaar-backend/internal/staff"
	"github.com/the-bazaar/bazaar-backend/internal/testutil"
)

const testPaystackSecret = "sk_test_secret"

type mockStaff struct{ mock.Mock }

func (m *mockStaff) Create(ctx context.Context, actor uuid.UUID, in staff.CreateInput, ip string) (*staff.Member, error) {
	args := m.Called(ctx, actor, in, ip)
	member, _ := args.Get(0).(*staff.Member)
	return member, args.Error(1)
}

func (m *mockStaff) List(ctx context.Context, limit, offset int64) (*staff.Page, error) {
	args := m.Called(ctx, limit, offset)
	page, _ := args.Get(0).(*staff.Page)
	return page, args.Error(1)
}

func (m *mockStaff) Update(ctx context.Context, actor, id uuid.UUID, in staff.UpdateInput, ip string) (*staff.Member, error) {
	args := m.Called(ctx, actor, id, in, ip)
	member, _ := args.Get(0).(*staff.Member)
	return member, args.Error(1)
}

func (m *mockStaff) Deactivate(ctx context.Context, actor, id uuid.UUID, ip string) error {
	return m.Called(ctx, actor, id, ip).Error(0)
}

type mockMFA struct{ mock.Mock }

func (m *mockMFA) Status(ctx context.Context, user *auth.AuthenticatedUser) (*mfa.Status, error) {
	args := m.Called(ctx, user)
	status, _ := args.Get(0).(*mfa.Status)
	return status, args.Error(1)
}

func (m *mockMFA) EnrollTOTP(ctx context.Context, user *auth.AuthenticatedUser) (*identity.TOTPEnrollment, error) {
	args := m.Called(ctx, user)
	enrollment, _ := args.Get(0).(*identity.TOTPEnrollment)
	return enrollment, args.Error(1)
}

func (m *mockMFA) VerifyTOTP(ctx context.Context, user *auth.AuthenticatedUser, factorID, code, ip string) error {
	return m.Called(ctx, user, factorID, code, ip).Error(0)
}

func (m *mockMFA) RegisterCredential(ctx context.Context, user *auth.AuthenticatedUser, reg mfa.Registration, ip string) (*db.WebauthnCredential, error) {
	args := m.Called(ctx, user, reg, ip)
	cred, _ := args.Get(0).(*db.WebauthnCredential)
	return cred, args.Error(1)
}

func (m *mockMFA) IssueChallenge(ctx context.Context, user *auth.AuthenticatedUser) (*mfa.ChallengeOptions, error) {
	args := m.Called(ctx, user)
	options, _ := args.Get(0).(*mfa.ChallengeOptions)
	return options, args.Error(1)
}

func (m *mockMFA) VerifyAssertion(ctx context.Context, user *auth.AuthenticatedUser, a mfa.Assertion, ip string) error {
	return m.Called(ctx, user, a, ip).Error(0)
}

type mockOrders struct{ mock.Mock }

func (m *mockOrders) Get(ctx context.Context, id uuid.UUID) (db.Order, error) {
	args := m.Called(ctx, id)
	order, _ := args.Get(0).(db.Order)
	return order, args.Error(1)
}

func (m *mockOrders) Owners(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, id)
	owners, _ := args.Get(0).([]uuid.UUID)
	return owners, args.Error(1)
}

func (m *mockOrders) ListForVendor(ctx context.Context, vendorID uuid.UUID, limit, offset int64) ([]db.Order, error) {
	args := m.Called(ctx, vendorID, limit, offset)
	list, _ := args.Get(0).([]db.Order)
	return list, args.Error(1)
}

func (m *mockOrders) UpdateStatus(ctx context.Context, actor, id uuid.UUID, next, ip string) (db.Order, error) {
	args := m.Called(ctx, actor, id, next, ip)
	order, _ := args.Get(0).(db.Order)
	return order, args.Error(1)
}

func (m *mockOrders) Refund(ctx context.Context, actor, id uuid.UUID, ip string) (db.Order, error) {
	args := m.Called(ctx, actor, id, ip)
	order, _ := args.Get(0).(db.Order)
	return order, args.Error(1)
}

type mockAudit struct{ mock.Mock }

func (m *mockAudit) List(ctx context.Context, page, pageSize int) (*audit.Page, error) {
	args := m.Called(ctx, page, pageSize)
	p, _ := args.Get(0).(*audit.Page)
	return p, args.Error(1)
}

func (m *mockAudit) Export(ctx context.Context, actor uuid.UUID, ip string, from, to time.Time) (*audit.ExportResult, error) {
	args := m.Called(ctx, actor, ip, from, to)
	result, _ := args.Get(0).(*audit.ExportResult)
	return result, args.Error(1)
}

type mockQueue struct{ mock.Mock }

func (m *mockQueue) Enqueue(ctx context.Context, taskType string, data any, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, taskType, data)
	info, _ := args.Get(0).(*asynq.TaskInfo)
	return info, args.Error(1)
}

// harness is a router wired to mocks. Every mock asserts its expectations on
// cleanup.
type harness struct {
	t        *testing.T
	handler  http.Handler
	provider *testutil.MockProvider
	staff    *mockStaff
	mfa      *mockMFA
	orders   *mockOrders
	audit    *mockAudit
	queue    *mockQueue
	checks   map[string]Check
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithChecks(t, nil)
}

func newHarnessWithChecks(t *testing.T, checks map[string]Check) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		provider: testutil.NewMockProvider(t),
		staff:    &mockStaff{},
		mfa:      &mockMFA{},
		orders:   &mockOrders{},
		audit:    &mockAudit{},
		queue:    &mockQueue{},
		checks:   checks,
	}
	for _, m := range []interface {
		Test(mock.TestingT)
		AssertExpectations(mock.TestingT) bool
	}{&h.staff.Mock, &h.mfa.Mock, &h.orders.Mock, &h.audit.Mock, &h.queue.Mock} {
		m.Test(t)
		t.Cleanup(func() { m.AssertExpectations(t) })
	}

	h.handler = NewServer(Deps{
		Authenticator:  auth.NewAuthenticator(h.provider, nil),
		Staff:          h.staff,
		MFA:            h.mfa,
		Orders:         h.orders,
		AuditLog:       h.audit,
		AuditExporter:  h.audit,
		Queue:          h.queue,
		Checks:         checks,
		PaystackSecret: testPaystackSecret,
	}).Routes()
	return h
}

// signIn registers an identity with role and returns its token and id.
func (h *harness) signIn(role rbac.Role) (string, uuid.UUID) {
	ident := testutil.NewIdentity().WithRole(role).SignedInAgo(time.Minute).Build()
	token := "token-" + ident.ID.String()
	h.provider.ExpectUser(token, ident)
	return token, ident.ID
}

func (h *harness) do(req testutil.Request) *testutil.Response {
	h.t.Helper()
	return testutil.Do(h.t, h.handler, req)
}

func (h *harness) doAs(token string, req testutil.Request) *testutil.Response {
	h.t.Helper()
	return testutil.DoAuthenticated(h.t, h.handler, req, token)
}

// callerID matches the authenticated user id on the request context.
func callerID(id uuid.UUID) any {
	return mock.MatchedBy(func(u *auth.AuthenticatedUser) bool { return u != nil && u.ID == id })
}
