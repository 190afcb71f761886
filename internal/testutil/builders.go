package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/the-bazaar/bazaar-backend/internal/db"
	"github.com/the-bazaar/bazaar-backend/internal/rbac"
)

// ProfileBuilder inserts profiles, optionally with an admin_staff record.
type ProfileBuilder struct {
	tdb        *TestDatabase
	t          *testing.T
	params     db.UpsertProfileParams
	staff      bool
	override   []string
	createdBy  *uuid.UUID
	mfaMethod  string
	deactivate bool
}

func (tdb *TestDatabase) NewProfile(t *testing.T) *ProfileBuilder {
	id := uuid.New()
	return &ProfileBuilder{
		tdb: tdb,
		t:   t,
		params: db.UpsertProfileParams{
			ID:       id,
			Email:    "user-" + id.String()[:8] + "@bazaar.test",
			FullName: "Test User",
			Role:     string(rbac.RoleBuyer),
		},
	}
}

func (pb *ProfileBuilder) WithEmail(email string) *ProfileBuilder {
	pb.params.Email = email
	return pb
}

func (pb *ProfileBuilder) WithRole(role rbac.Role) *ProfileBuilder {
	pb.params.Role = string(role)
	return pb
}

// AsStaff also writes an admin_staff record with the profile's role.
func (pb *ProfileBuilder) AsStaff(role rbac.Role) *ProfileBuilder {
	pb.params.Role = string(role)
	pb.staff = true
	return pb
}

func (pb *ProfileBuilder) WithPermissions(perms ...string) *ProfileBuilder {
	pb.override = perms
	return pb
}

func (pb *ProfileBuilder) CreatedBy(id uuid.UUID) *ProfileBuilder {
	pb.createdBy = &id
	return pb
}

func (pb *ProfileBuilder) MustChangePassword() *ProfileBuilder {
	pb.params.MustChangePassword = true
	return pb
}

func (pb *ProfileBuilder) WithMFA(method string) *ProfileBuilder {
	pb.mfaMethod = method
	return pb
}

func (pb *ProfileBuilder) Inactive() *ProfileBuilder {
	pb.deactivate = true
	return pb
}

func (pb *ProfileBuilder) Create() db.Profile {
	pb.t.Helper()
	ctx := context.Background()
	q := pb.tdb.Queries()

	profile, err := q.UpsertProfile(ctx, pb.params)
	require.NoError(pb.t, err, "Failed to create profile")

	if pb.staff {
		_, err := q.CreateAdminStaff(ctx, db.CreateAdminStaffParams{
			ProfileID:           profile.ID,
			Role:                pb.params.Role,
			PermissionsOverride: pb.override,
			CreatedBy:           pb.createdBy,
		})
		require.NoError(pb.t, err, "Failed to create admin_staff record")
	}
	if pb.mfaMethod != "" {
		require.NoError(pb.t, q.EnableProfileMFA(ctx, db.EnableProfileMFAParams{ID: profile.ID, MfaMethod: pb.mfaMethod}))
	}
	if pb.deactivate {
		require.NoError(pb.t, q.SetProfileActive(ctx, db.SetProfileActiveParams{ID: profile.ID, IsActive: false}))
		if pb.staff {
			_, err := q.DeactivateAdminStaff(ctx, profile.ID)
			require.NoError(pb.t, err)
		}
	}

	profile, err = q.GetProfile(ctx, profile.ID)
	require.NoError(pb.t, err)
	return profile
}

// OrderBuilder inserts orders between a buyer and a vendor.
type OrderBuilder struct {
	tdb    *TestDatabase
	t      *testing.T
	params db.CreateOrderParams
}

func (tdb *TestDatabase) NewOrder(t *testing.T, buyer, vendor uuid.UUID) *OrderBuilder {
	return &OrderBuilder{
		tdb: tdb,
		t:   t,
		params: db.CreateOrderParams{
			BuyerID:   buyer,
			VendorID:  vendor,
			TotalKobo: 150000,
		},
	}
}

func (ob *OrderBuilder) WithReference(ref string) *OrderBuilder {
	ob.params.PaymentReference = &ref
	return ob
}

func (ob *OrderBuilder) WithTotal(kobo int64) *OrderBuilder {
	ob.params.TotalKobo = kobo
	return ob
}

func (ob *OrderBuilder) Create() db.Order {
	ob.t.Helper()
	order, err := ob.tdb.Queries().CreateOrder(context.Background(), ob.params)
	require.NoError(ob.t, err, "Failed to create order")
	return order
}
