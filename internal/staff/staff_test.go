package staff

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/the-bazaar/bazaar-backend/internal/db"
	"github.com/the-bazaar/bazaar-backend/internal/identity"
	"github.com/the-bazaar/bazaar-backend/internal/testutil"
)

type mockStore struct {
	mock.Mock
}

func newMockStore(t *testing.T) *mockStore {
	m := &mockStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *mockStore) CreateAuditLog(ctx context.Context, arg db.CreateAuditLogParams) (db.AdminAuditLog, error) {
	args := m.Called(ctx, arg)
	row, _ := args.Get(0).(db.AdminAuditLog)
	return row, args.Error(1)
}

func (m *mockStore) ListAuditLogs(ctx context.Context, arg db.ListAuditLogsParams) ([]db.AdminAuditLog, error) {
	args := m.Called(ctx, arg)
	rows, _ := args.Get(0).([]db.AdminAuditLog)
	return rows, args.Error(1)
}

func (m *mockStore) CountAuditLogs(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) ListAuditLogsBetween(ctx context.Context, arg db.ListAuditLogsBetweenParams) ([]db.AdminAuditLog, error) {
	args := m.Called(ctx, arg)
	rows, _ := args.Get(0).([]db.AdminAuditLog)
	return rows, args.Error(1)
}

func (m *mockStore) UpsertProfile(ctx context.Context, arg db.UpsertProfileParams) (db.Profile, error) {
	args := m.Called(ctx, arg)
	p, _ := args.Get(0).(db.Profile)
	return p, args.Error(1)
}

func (m *mockStore) UpdateProfileRole(ctx context.Context, arg db.UpdateProfileRoleParams) error {
	return m.Called(ctx, arg).Error(0)
}

func (m *mockStore) SetProfileActive(ctx context.Context, arg db.SetProfileActiveParams) error {
	return m.Called(ctx, arg).Error(0)
}

func (m *mockStore) GetAdminStaff(ctx context.Context, profileID uuid.UUID) (db.AdminStaff, error) {
	args := m.Called(ctx, profileID)
	s, _ := args.Get(0).(db.AdminStaff)
	return s, args.Error(1)
}

func (m *mockStore) CreateAdminStaff(ctx context.Context, arg db.CreateAdminStaffParams) (db.AdminStaff, error) {
	args := m.Called(ctx, arg)
	s, _ := args.Get(0).(db.AdminStaff)
	return s, args.Error(1)
}

func (m *mockStore) UpdateAdminStaff(ctx context.Context, arg db.UpdateAdminStaffParams) (db.AdminStaff, error) {
	args := m.Called(ctx, arg)
	s, _ := args.Get(0).(db.AdminStaff)
	return s, args.Error(1)
}

func (m *mockStore) DeactivateAdminStaff(ctx context.Context, profileID uuid.UUID) (db.AdminStaff, error) {
	args := m.Called(ctx, profileID)
	s, _ := args.Get(0).(db.AdminStaff)
	return s, args.Error(1)
}

func (m *mockStore) ListAdminStaff(ctx context.Context, arg db.ListAdminStaffParams) ([]db.ListAdminStaffRow, error) {
	args := m.Called(ctx, arg)
	rows, _ := args.Get(0).([]db.ListAdminStaffRow)
	return rows, args.Error(1)
}

func (m *mockStore) CountAdminStaff(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type recordingNotifier struct {
	sent []string
}

func (n *recordingNotifier) SendBestEffort(_ context.Context, to, name string, _ any) {
	n.sent = append(n.sent, to+":"+name)
}

// direct runs the transaction body against the same store.
func direct(store Store) TxFunc {
	return func(_ context.Context, fn func(Store) error) error { return fn(store) }
}

func auditAction(action string) any {
	return mock.MatchedBy(func(arg db.CreateAuditLogParams) bool { return arg.Action == action })
}

func validInput() CreateInput {
	return CreateInput{
		Email:    "New.Hire@Bazaar.test",
		Password: "correct-horse-battery",
		FullName: "New Hire",
		Role:     "manager",
	}
}

func TestCreate_RejectsSuperAdminBeforeAnyWrite(t *testing.T) {
	store := newMockStore(t)
	provider := testutil.NewMockProvider(t)
	svc := NewService(provider, store, direct(store), nil)

	in := validInput()
	in.Role = "super_admin"
	_, err := svc.Create(context.Background(), uuid.New(), in, "")

	assert.ErrorIs(t, err, ErrEscalation)
	store.AssertNotCalled(t, "UpsertProfile", mock.Anything, mock.Anything)
	provider.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(testutil.NewMockProvider(t), newMockStore(t), nil, nil)

	in := CreateInput{Email: "nope", Password: "short", Role: "vendor", Permissions: []string{"orders:fly"}}
	_, err := svc.Create(context.Background(), uuid.New(), in, "")

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	fields := map[string]bool{}
	for _, f := range verr.Fields {
		fields[f.Field] = true
	}
	assert.True(t, fields["email"])
	assert.True(t, fields["password"])
	assert.True(t, fields["fullName"])
	assert.True(t, fields["role"])
	assert.True(t, fields["permissions"])
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	actor := uuid.New()
	newID := uuid.New()

	t.Run("writes profile, staff record and audit then sends welcome", func(t *testing.T) {
		store := newMockStore(t)
		provider := testutil.NewMockProvider(t)
		notifier := &recordingNotifier{}

		provider.On("CreateUser", mock.Anything, mock.MatchedBy(func(p identity.AdminUserParams) bool {
			return p.Email == "new.hire@bazaar.test" && p.EmailConfirm && p.AppMetadata["role"] == "manager"
		})).Return(&identity.User{ID: newID, Email: "new.hire@bazaar.test"}, nil)
		store.On("UpsertProfile", mock.Anything, mock.MatchedBy(func(p db.UpsertProfileParams) bool {
			return p.ID == newID && p.MustChangePassword && p.Role == "manager"
		})).Return(db.Profile{ID: newID, Email: "new.hire@bazaar.test", FullName: "New Hire"}, nil)
		store.On("CreateAdminStaff", mock.Anything, mock.MatchedBy(func(p db.CreateAdminStaffParams) bool {
			return p.ProfileID == newID && p.PermissionsOverride == nil && *p.CreatedBy == actor
		})).Return(db.AdminStaff{ProfileID: newID, Role: "manager", IsActive: true}, nil)
		store.On("CreateAuditLog", mock.Anything, auditAction("STAFF_CREATED")).Return(db.AdminAuditLog{}, nil)

		member, err := NewService(provider, store, direct(store), notifier).Create(ctx, actor, validInput(), "10.0.0.1")
		require.NoError(t, err)

		assert.Equal(t, newID, member.ID)
		assert.False(t, member.Override)
		assert.Contains(t, member.Permissions, "orders:view")
		assert.Equal(t, []string{"new.hire@bazaar.test:staff_welcome"}, notifier.sent)
	})

	t.Run("explicit permissions become the override", func(t *testing.T) {
		store := newMockStore(t)
		provider := testutil.NewMockProvider(t)

		provider.On("CreateUser", mock.Anything, mock.Anything).Return(&identity.User{ID: newID}, nil)
		store.On("UpsertProfile", mock.Anything, mock.Anything).Return(db.Profile{ID: newID}, nil)
		store.On("CreateAdminStaff", mock.Anything, mock.MatchedBy(func(p db.CreateAdminStaffParams) bool {
			return len(p.PermissionsOverride) == 1 && p.PermissionsOverride[0] == "orders:view"
		})).Return(db.AdminStaff{ProfileID: newID, Role: "manager", PermissionsOverride: []string{"orders:view"}}, nil)
		store.On("CreateAuditLog", mock.Anything, mock.Anything).Return(db.AdminAuditLog{}, nil)

		in := validInput()
		in.Permissions = []string{"orders:view"}
		member, err := NewService(provider, store, direct(store), nil).Create(ctx, actor, in, "")
		require.NoError(t, err)
		assert.True(t, member.Override)
		assert.Equal(t, []string{"orders:view"}, member.Permissions)
	})

	t.Run("duplicate email", func(t *testing.T) {
		provider := testutil.NewMockProvider(t)
		provider.On("CreateUser", mock.Anything, mock.Anything).Return(nil, identity.ErrUserExists)

		_, err := NewService(provider, newMockStore(t), nil, nil).Create(ctx, actor, validInput(), "")
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("transaction failure surfaces", func(t *testing.T) {
		store := newMockStore(t)
		provider := testutil.NewMockProvider(t)
		provider.On("CreateUser", mock.Anything, mock.Anything).Return(&identity.User{ID: newID}, nil)
		store.On("UpsertProfile", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

		_, err := NewService(provider, store, direct(store), nil).Create(ctx, actor, validInput(), "")
		assert.ErrorContains(t, err, "writing profile")
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	actor := uuid.New()
	target := uuid.New()

	t.Run("escalation is refused before lookup", func(t *testing.T) {
		role := "super_admin"
		_, err := NewService(nil, newMockStore(t), nil, nil).Update(ctx, actor, target, UpdateInput{Role: &role}, "")
		assert.ErrorIs(t, err, ErrEscalation)
	})

	t.Run("role change updates staff and profile", func(t *testing.T) {
		store := newMockStore(t)
		role := "viewer"
		store.On("GetAdminStaff", mock.Anything, target).Return(db.AdminStaff{ProfileID: target, Role: "manager", PermissionsOverride: []string{"orders:view"}}, nil)
		store.On("UpdateAdminStaff", mock.Anything, db.UpdateAdminStaffParams{ProfileID: target, Role: "viewer", PermissionsOverride: []string{"orders:view"}}).
			Return(db.AdminStaff{ProfileID: target, Role: "viewer", PermissionsOverride: []string{"orders:view"}}, nil)
		store.On("UpdateProfileRole", mock.Anything, db.UpdateProfileRoleParams{ID: target, Role: "viewer"}).Return(nil)
		store.On("CreateAuditLog", mock.Anything, auditAction("STAFF_UPDATED")).Return(db.AdminAuditLog{}, nil)

		member, err := NewService(nil, store, direct(store), nil).Update(ctx, actor, target, UpdateInput{Role: &role}, "")
		require.NoError(t, err)
		assert.Equal(t, "viewer", member.Role)
	})

	t.Run("reset returns to role defaults", func(t *testing.T) {
		store := newMockStore(t)
		store.On("GetAdminStaff", mock.Anything, target).Return(db.AdminStaff{ProfileID: target, Role: "staff", PermissionsOverride: []string{}}, nil)
		store.On("UpdateAdminStaff", mock.Anything, db.UpdateAdminStaffParams{ProfileID: target, Role: "staff"}).
			Return(db.AdminStaff{ProfileID: target, Role: "staff"}, nil)
		store.On("CreateAuditLog", mock.Anything, mock.Anything).Return(db.AdminAuditLog{}, nil)

		member, err := NewService(nil, store, direct(store), nil).Update(ctx, actor, target, UpdateInput{ResetPermissions: true}, "")
		require.NoError(t, err)
		assert.False(t, member.Override)
		assert.NotEmpty(t, member.Permissions)
	})

	t.Run("super admin records are protected", func(t *testing.T) {
		store := newMockStore(t)
		store.On("GetAdminStaff", mock.Anything, target).Return(db.AdminStaff{ProfileID: target, Role: "super_admin"}, nil)

		_, err := NewService(nil, store, direct(store), nil).Update(ctx, actor, target, UpdateInput{}, "")
		assert.ErrorIs(t, err, ErrProtectedMember)
	})

	t.Run("unknown member", func(t *testing.T) {
		store := newMockStore(t)
		store.On("GetAdminStaff", mock.Anything, target).Return(nil, pgx.ErrNoRows)

		_, err := NewService(nil, store, direct(store), nil).Update(ctx, actor, target, UpdateInput{}, "")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDeactivate(t *testing.T) {
	ctx := context.Background()
	actor := uuid.New()
	target := uuid.New()

	t.Run("self deactivation", func(t *testing.T) {
		err := NewService(nil, newMockStore(t), nil, nil).Deactivate(ctx, actor, actor, "")
		assert.ErrorIs(t, err, ErrSelfDeactivation)
	})

	t.Run("soft delete", func(t *testing.T) {
		store := newMockStore(t)
		store.On("GetAdminStaff", mock.Anything, target).Return(db.AdminStaff{ProfileID: target, Role: "staff", IsActive: true}, nil)
		store.On("DeactivateAdminStaff", mock.Anything, target).Return(db.AdminStaff{ProfileID: target, Role: "staff"}, nil)
		store.On("SetProfileActive", mock.Anything, db.SetProfileActiveParams{ID: target, IsActive: false}).Return(nil)
		store.On("CreateAuditLog", mock.Anything, auditAction("STAFF_DEACTIVATED")).Return(db.AdminAuditLog{}, nil)

		require.NoError(t, NewService(nil, store, direct(store), nil).Deactivate(ctx, actor, target, "10.0.0.1"))
	})
}

func TestList(t *testing.T) {
	store := newMockStore(t)
	id := uuid.New()
	store.On("ListAdminStaff", mock.Anything, db.ListAdminStaffParams{Limit: 20, Offset: 0}).Return([]db.ListAdminStaffRow{
		{ProfileID: id, Email: "a@bazaar.test", FullName: "A", Role: "viewer", IsActive: true},
	}, nil)
	store.On("CountAdminStaff", mock.Anything).Return(int64(1), nil)

	page, err := NewService(nil, store, nil, nil).List(context.Background(), 20, 0)
	require.NoError(t, err)
	require.Len(t, page.Members, 1)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, "a@bazaar.test", page.Members[0].Email)
}
