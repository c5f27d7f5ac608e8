package banner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/banner"
	"github.com/xenking/storefront/internal/storetest"
)

var admin = auth.Principal{UserID: 1, Name: "Admin", Roles: []auth.Role{auth.RoleAdmin}}

func ptr[T any](v T) *T { return &v }

func TestService(t *testing.T) {
	ctx := context.Background()
	svc := banner.NewService(storetest.New().Banners())

	summer, err := svc.Create(ctx, admin, banner.Input{ImageURL: "/img/summer.jpg", Title: "Summer", DisplayOrder: ptr(2)})
	require.NoError(t, err)
	assert.True(t, summer.Active, "banners are active by default")

	_, err = svc.Create(ctx, admin, banner.Input{ImageURL: "/img/new.jpg", Title: "New", DisplayOrder: ptr(1)})
	require.NoError(t, err)
	hidden, err := svc.Create(ctx, admin, banner.Input{ImageURL: "/img/old.jpg", Active: ptr(false)})
	require.NoError(t, err)
	assert.Zero(t, hidden.DisplayOrder)

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "New", active[0].Title)
	assert.Equal(t, "Summer", active[1].Title)

	all, err := svc.ListAll(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, hidden.ID, all[0].ID)

	up, err := svc.Update(ctx, admin, summer.ID, banner.Input{ImageURL: "/img/summer2.jpg", Title: "Summer Sale", Active: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, 2, up.DisplayOrder)
	assert.False(t, up.Active)

	require.NoError(t, svc.Delete(ctx, admin, hidden.ID))
	_, err = svc.Get(ctx, admin, hidden.ID)
	require.ErrorIs(t, err, banner.ErrNotFound)
}

func TestService_Rejections(t *testing.T) {
	ctx := context.Background()
	svc := banner.NewService(storetest.New().Banners())
	customer := auth.Principal{UserID: 2, Roles: []auth.Role{auth.RoleCustomer}}

	_, err := svc.Create(ctx, admin, banner.Input{ImageURL: "  "})
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))

	_, err = svc.Create(ctx, customer, banner.Input{ImageURL: "/x.jpg"})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = svc.ListAll(ctx, auth.Principal{})
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	_, err = svc.Update(ctx, admin, 77, banner.Input{ImageURL: "/x.jpg"})
	require.ErrorIs(t, err, banner.ErrNotFound)
}
