package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_DefaultRoleManager(t *testing.T) {
	ctx := context.Background()
	dbConnectionPool := openAuthenticatorTestPool(t)

	authenticator := newDefaultAuthenticator(
		withAuthenticatorDatabaseConnectionPool(dbConnectionPool),
		withPasswordEncrypter(NewDefaultPasswordEncrypter()),
	)
	roleManager := newDefaultRoleManager(
		withRoleManagerDBConnectionPool(dbConnectionPool),
	)

	user, err := authenticator.CreateUser(ctx, &User{
		FirstName: "Astrid",
		LastName:  "Berg",
		Email:     "astrid.berg@bank.local",
		Roles:     []string{OperatorUserRole.String(), ComplianceUserRole.String()},
	}, "password1234")
	require.NoError(t, err)

	t.Run("GetUserRoles", func(t *testing.T) {
		roles, gErr := roleManager.GetUserRoles(ctx, user)
		require.NoError(t, gErr)
		assert.Equal(t, []string{OperatorUserRole.String(), ComplianceUserRole.String()}, roles)
	})

	t.Run("GetUserRoles returns ErrUserNotFound for unknown user", func(t *testing.T) {
		_, gErr := roleManager.GetUserRoles(ctx, &User{ID: "00000000-0000-0000-0000-000000000000"})
		assert.ErrorIs(t, gErr, ErrUserNotFound)
	})

	t.Run("HasAllRoles", func(t *testing.T) {
		hasAll, hErr := roleManager.HasAllRoles(ctx, user, []string{OperatorUserRole.String(), ComplianceUserRole.String()})
		require.NoError(t, hErr)
		assert.True(t, hasAll)

		hasAll, hErr = roleManager.HasAllRoles(ctx, user, []string{OperatorUserRole.String(), AdminUserRole.String()})
		require.NoError(t, hErr)
		assert.False(t, hasAll)
	})

	t.Run("HasAnyRoles", func(t *testing.T) {
		hasAny, hErr := roleManager.HasAnyRoles(ctx, user, []string{AdminUserRole.String(), ComplianceUserRole.String()})
		require.NoError(t, hErr)
		assert.True(t, hasAny)

		hasAny, hErr = roleManager.HasAnyRoles(ctx, user, []string{AdminUserRole.String()})
		require.NoError(t, hErr)
		assert.False(t, hasAny)
	})

	t.Run("UpdateRoles", func(t *testing.T) {
		uErr := roleManager.UpdateRoles(ctx, user, []string{"superuser"})
		assert.ErrorContains(t, uErr, `invalid role "superuser"`)

		uErr = roleManager.UpdateRoles(ctx, user, []string{ManagerUserRole.String()})
		require.NoError(t, uErr)

		roles, gErr := roleManager.GetUserRoles(ctx, user)
		require.NoError(t, gErr)
		assert.Equal(t, []string{ManagerUserRole.String()}, roles)
	})
}
