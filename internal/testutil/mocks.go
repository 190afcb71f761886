package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/the-bazaar/bazaar-backend/internal/db"
	"github.com/the-bazaar/bazaar-backend/internal/identity"
)

// MockProvider is a mock implementation of identity.Provider
type MockProvider struct {
	mock.Mock
}

var _ identity.Provider = (*MockProvider)(nil)

func NewMockProvider(t *testing.T) *MockProvider {
	m := &MockProvider{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockProvider) GetUser(ctx context.Context, accessToken string) (*identity.User, error) {
	args := m.Called(ctx, accessToken)
	user, _ := args.Get(0).(*identity.User)
	return user, args.Error(1)
}

func (m *MockProvider) RefreshSession(ctx context.Context, refreshToken string) (*identity.Session, error) {
	args := m.Called(ctx, refreshToken)
	session, _ := args.Get(0).(*identity.Session)
	return session, args.Error(1)
}

func (m *MockProvider) SignOut(ctx context.Context, accessToken string) error {
	args := m.Called(ctx, accessToken)
	return args.Error(0)
}

func (m *MockProvider) CreateUser(ctx context.Context, params identity.AdminUserParams) (*identity.User, error) {
	args := m.Called(ctx, params)
	user, _ := args.Get(0).(*identity.User)
	return user, args.Error(1)
}

func (m *MockProvider) EnrollTOTP(ctx context.Context, accessToken, friendlyName string) (*identity.TOTPEnrollment, error) {
	args := m.Called(ctx, accessToken, friendlyName)
	enrollment, _ := args.Get(0).(*identity.TOTPEnrollment)
	return enrollment, args.Error(1)
}

func (m *MockProvider) ChallengeFactor(ctx context.Context, accessToken, factorID string) (string, error) {
	args := m.Called(ctx, accessToken, factorID)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) VerifyFactor(ctx context.Context, accessToken, factorID, challengeID, code string) error {
	args := m.Called(ctx, accessToken, factorID, challengeID, code)
	return args.Error(0)
}

// Helper methods for setting up common mock expectations

// ExpectUser resolves token to user for any number of calls.
func (m *MockProvider) ExpectUser(token string, user *identity.User) *mock.Call {
	return m.On("GetUser", mock.Anything, token).Return(user, nil).Maybe()
}

// ExpectGetUserError fails the lookup of token with err.
func (m *MockProvider) ExpectGetUserError(token string, err error) *mock.Call {
	return m.On("GetUser", mock.Anything, token).Return(nil, err).Maybe()
}

func (m *MockProvider) ExpectSignOut(token string) *mock.Call {
	return m.On("SignOut", mock.Anything, token).Return(nil)
}

// MockStaffDirectory is a mock implementation of auth.StaffDirectory
type MockStaffDirectory struct {
	mock.Mock
}

func NewMockStaffDirectory(t *testing.T) *MockStaffDirectory {
	m := &MockStaffDirectory{}
	m.Test(t)
	return m
}

func (m *MockStaffDirectory) GetAdminStaff(ctx context.Context, profileID uuid.UUID) (db.AdminStaff, error) {
	args := m.Called(ctx, profileID)
	staff, _ := args.Get(0).(db.AdminStaff)
	return staff, args.Error(1)
}
