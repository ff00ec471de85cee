package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func Test_AuthManager_Authenticate(t *testing.T) {
	ctx := context.Background()

	authenticatorMock := &AuthenticatorMock{}
	jwtManagerMock := &JWTManagerMock{}
	roleManagerMock := &RoleManagerMock{}

	authManager := NewAuthManager(
		WithCustomAuthenticatorOption(authenticatorMock),
		WithCustomJWTManagerOption(jwtManagerMock),
		WithCustomRoleManagerOption(roleManagerMock),
	)

	t.Run("returns a token for valid credentials", func(t *testing.T) {
		user := &User{ID: "user-id", Email: "operator@bank.local"}

		authenticatorMock.
			On("ValidateCredentials", ctx, "operator@bank.local", "password1234").
			Return(user, nil).
			Once()
		roleManagerMock.
			On("GetUserRoles", ctx, user).
			Return([]string{OperatorUserRole.String()}, nil).
			Once()
		jwtManagerMock.
			On("GenerateToken", ctx, user, mock.AnythingOfType("time.Time")).
			Return("token", nil).
			Once()

		tokenString, err := authManager.Authenticate(ctx, "operator@bank.local", "password1234")
		require.NoError(t, err)
		assert.Equal(t, "token", tokenString)
	})

	t.Run("propagates invalid credentials", func(t *testing.T) {
		authenticatorMock.
			On("ValidateCredentials", ctx, "operator@bank.local", "wrong").
			Return(nil, ErrInvalidCredentials).
			Once()

		_, err := authManager.Authenticate(ctx, "operator@bank.local", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("propagates locked account", func(t *testing.T) {
		authenticatorMock.
			On("ValidateCredentials", ctx, "locked@bank.local", "password1234").
			Return(nil, ErrUserAccountLocked).
			Once()

		_, err := authManager.Authenticate(ctx, "locked@bank.local", "password1234")
		assert.ErrorIs(t, err, ErrUserAccountLocked)
	})

	authenticatorMock.AssertExpectations(t)
	jwtManagerMock.AssertExpectations(t)
	roleManagerMock.AssertExpectations(t)
}

func Test_AuthManager_ValidateToken_revocation(t *testing.T) {
	ctx := context.Background()

	jwtManagerMock := &JWTManagerMock{}
	authManager := NewAuthManager(
		WithCustomJWTManagerOption(jwtManagerMock),
	)

	expiresAt := time.Now().Add(time.Minute * 15)

	jwtManagerMock.On("ValidateToken", ctx, "token").Return(true, nil)
	jwtManagerMock.On("GetTokenExpiration", ctx, "token").Return(expiresAt, nil).Once()

	isValid, err := authManager.ValidateToken(ctx, "token")
	require.NoError(t, err)
	assert.True(t, isValid)

	err = authManager.RevokeToken(ctx, "token")
	require.NoError(t, err)

	isValid, err = authManager.ValidateToken(ctx, "token")
	require.NoError(t, err)
	assert.False(t, isValid)

	jwtManagerMock.AssertExpectations(t)
}

func Test_AuthManager_AnyRolesInTokenUser(t *testing.T) {
	ctx := context.Background()

	jwtManagerMock := &JWTManagerMock{}
	roleManagerMock := &RoleManagerMock{}
	authManager := NewAuthManager(
		WithCustomJWTManagerOption(jwtManagerMock),
		WithCustomRoleManagerOption(roleManagerMock),
	)

	user := &User{ID: "user-id"}
	roleNames := []string{OperatorUserRole.String(), AdminUserRole.String()}

	t.Run("returns the role manager verdict", func(t *testing.T) {
		jwtManagerMock.On("ValidateToken", ctx, "token").Return(true, nil).Once()
		jwtManagerMock.On("GetUserFromToken", ctx, "token").Return(user, nil).Once()
		roleManagerMock.On("HasAnyRoles", ctx, user, roleNames).Return(true, nil).Once()

		hasAnyRoles, err := authManager.AnyRolesInTokenUser(ctx, "token", roleNames)
		require.NoError(t, err)
		assert.True(t, hasAnyRoles)
	})

	t.Run("rejects an invalid token", func(t *testing.T) {
		jwtManagerMock.On("ValidateToken", ctx, "bad-token").Return(false, nil).Once()

		_, err := authManager.AnyRolesInTokenUser(ctx, "bad-token", roleNames)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	jwtManagerMock.AssertExpectations(t)
	roleManagerMock.AssertExpectations(t)
}

func Test_AuthManager_UpdateUserRoles(t *testing.T) {
	ctx := context.Background()

	jwtManagerMock := &JWTManagerMock{}
	roleManagerMock := &RoleManagerMock{}
	authManager := NewAuthManager(
		WithCustomJWTManagerOption(jwtManagerMock),
		WithCustomRoleManagerOption(roleManagerMock),
	)

	roleNames := []string{ComplianceUserRole.String()}

	jwtManagerMock.On("ValidateToken", ctx, "token").Return(true, nil).Once()
	roleManagerMock.On("UpdateRoles", ctx, &User{ID: "user-id"}, roleNames).Return(nil).Once()

	err := authManager.UpdateUserRoles(ctx, "token", "user-id", roleNames)
	require.NoError(t, err)

	jwtManagerMock.AssertExpectations(t)
	roleManagerMock.AssertExpectations(t)
}

func Test_AuthManager_ExpirationTimeInMinutes(t *testing.T) {
	authManager := NewAuthManager()
	assert.Equal(t, time.Minute*15, authManager.ExpirationTimeInMinutes())

	authManager = NewAuthManager(WithExpirationTimeInMinutesOption(30))
	assert.Equal(t, time.Minute*30, authManager.ExpirationTimeInMinutes())
}

func Test_AuthManager_Authenticate_tokenGenerationError(t *testing.T) {
	ctx := context.Background()

	authenticatorMock := &AuthenticatorMock{}
	jwtManagerMock := &JWTManagerMock{}
	roleManagerMock := &RoleManagerMock{}
	authManager := NewAuthManager(
		WithCustomAuthenticatorOption(authenticatorMock),
		WithCustomJWTManagerOption(jwtManagerMock),
		WithCustomRoleManagerOption(roleManagerMock),
	)

	user := &User{ID: "user-id", Email: "operator@bank.local"}
	authenticatorMock.On("ValidateCredentials", ctx, "operator@bank.local", "password1234").Return(user, nil).Once()
	roleManagerMock.On("GetUserRoles", ctx, user).Return([]string{}, nil).Once()
	jwtManagerMock.
		On("GenerateToken", ctx, user, mock.AnythingOfType("time.Time")).
		Return("", errors.New("signing error")).
		Once()

	_, err := authManager.Authenticate(ctx, "operator@bank.local", "password1234")
	assert.ErrorContains(t, err, "signing error")

	authenticatorMock.AssertExpectations(t)
	jwtManagerMock.AssertExpectations(t)
	roleManagerMock.AssertExpectations(t)
}
