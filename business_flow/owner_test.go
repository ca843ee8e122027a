package businessflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waxal-io/waxal/models"
	testutil "github.com/waxal-io/waxal/testing"
	"github.com/waxal-io/waxal/utils"
)

func TestResolveRegularCustomerActsAsThemselves(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedCustomer(1, "dakar-retail", models.RoleUser)

	resolver := NewOwnerResolver(f.Customers)
	owner, err := resolver.Resolve(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint(1), owner.CustomerID)
	assert.Equal(t, "dakar-retail", owner.Login)
	assert.Equal(t, models.RoleUser, owner.Role)
}

func TestResolvePartnerSubAccountSendsAsPartner(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedCustomer(1, "waxal-partner", models.RolePartner)
	sub := f.SeedCustomer(2, "sub-account", models.RoleUser)
	sub.PartnerID = utils.ToPtr(uint(1))
	require.NoError(t, f.Customers.Update(context.Background(), sub))

	resolver := NewOwnerResolver(f.Customers)
	owner, err := resolver.Resolve(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, uint(2), owner.CustomerID, "the sub-account keeps owning its campaigns")
	assert.Equal(t, "waxal-partner", owner.Login, "sends go out under the partner login")
}

func TestResolveInactiveCustomerIsRejected(t *testing.T) {
	f := testutil.NewFixtures()
	customer := f.SeedCustomer(1, "suspended", models.RoleUser)
	customer.IsActive = false
	require.NoError(t, f.Customers.Update(context.Background(), customer))

	resolver := NewOwnerResolver(f.Customers)
	_, err := resolver.Resolve(context.Background(), 1)
	assert.True(t, IsAccountInactive(err))
}

func TestResolveUnknownCustomer(t *testing.T) {
	f := testutil.NewFixtures()

	resolver := NewOwnerResolver(f.Customers)
	_, err := resolver.Resolve(context.Background(), 99)
	assert.True(t, IsCustomerNotFound(err))
}

func TestResolveMissingPartnerIsRejected(t *testing.T) {
	f := testutil.NewFixtures()
	sub := f.SeedCustomer(2, "orphan-sub", models.RoleUser)
	sub.PartnerID = utils.ToPtr(uint(77))
	require.NoError(t, f.Customers.Update(context.Background(), sub))

	resolver := NewOwnerResolver(f.Customers)
	_, err := resolver.Resolve(context.Background(), 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPartnerNotFound)
}
