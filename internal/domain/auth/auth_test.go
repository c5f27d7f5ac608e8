package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/apperr"
)

func TestPrincipal_Require(t *testing.T) {
	anon := Principal{}
	customer := Principal{UserID: 1, Roles: []Role{RoleCustomer}}
	admin := (&APIKeyInfo{UserID: 2, Role: RoleAdmin}).Principal()

	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(anon.RequireUser()))
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(anon.RequireAdmin()))

	require.NoError(t, customer.RequireUser())
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(customer.RequireAdmin()))

	require.NoError(t, admin.RequireUser())
	require.NoError(t, admin.RequireAdmin())
	assert.True(t, admin.HasRole(RoleCustomer))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("ADMIN")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)

	_, err = ParseRole("root")
	require.Error(t, err)
}

func TestContext(t *testing.T) {
	ctx := context.Background()
	assert.True(t, FromContext(ctx).Anonymous())

	p := Principal{UserID: 5, Name: "Ann", Roles: []Role{RoleCustomer}}
	assert.Equal(t, p, FromContext(WithPrincipal(ctx, p)))
}

func TestHashKey(t *testing.T) {
	assert.Equal(t, "b613679a0814d9ec772f95d778c35fc5ff1697c493715653c6c712144292c5ad", HashKey(nil, ""))

	h := HashKey([]byte("pepper"), "secret")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashKey([]byte("pepper"), "secret"))
	assert.NotEqual(t, h, HashKey([]byte("other"), "secret"))
}
