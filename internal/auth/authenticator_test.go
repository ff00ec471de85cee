package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordbank/banking-platform-backend/db"
	"github.com/nordbank/banking-platform-backend/db/dbtest"
)

func openAuthenticatorTestPool(t *testing.T) db.DBConnectionPool {
	t.Helper()

	testDB := dbtest.OpenWithAuthMigrationsOnly(t)
	dbConnectionPool, err := db.OpenDBConnectionPool(testDB.DSN)
	require.NoError(t, err)
	t.Cleanup(func() { dbConnectionPool.Close() })

	return dbConnectionPool
}

func Test_DefaultAuthenticator_CreateUser(t *testing.T) {
	ctx := context.Background()
	dbConnectionPool := openAuthenticatorTestPool(t)

	authenticator := newDefaultAuthenticator(
		withAuthenticatorDatabaseConnectionPool(dbConnectionPool),
		withPasswordEncrypter(NewDefaultPasswordEncrypter()),
	)

	t.Run("creates a user and rejects duplicated email", func(t *testing.T) {
		user, err := authenticator.CreateUser(ctx, &User{
			FirstName: "Astrid",
			LastName:  "Berg",
			Email:     "astrid.berg@bank.local",
			Roles:     []string{OperatorUserRole.String()},
		}, "password1234")
		require.NoError(t, err)
		assert.NotEmpty(t, user.ID)
		assert.True(t, user.IsActive)

		_, err = authenticator.CreateUser(ctx, &User{
			FirstName: "Astrid",
			LastName:  "Berg",
			Email:     "astrid.berg@bank.local",
		}, "password1234")
		assert.ErrorIs(t, err, ErrUserEmailAlreadyExists)
	})

	t.Run("rejects an invalid role", func(t *testing.T) {
		_, err := authenticator.CreateUser(ctx, &User{
			FirstName: "Nils",
			LastName:  "Holm",
			Email:     "nils.holm@bank.local",
			Roles:     []string{"superuser"},
		}, "password1234")
		assert.ErrorContains(t, err, `invalid role "superuser"`)
	})

	t.Run("generates a random password when none is given", func(t *testing.T) {
		user, err := authenticator.CreateUser(ctx, &User{
			FirstName: "Nils",
			LastName:  "Holm",
			Email:     "nils.holm@bank.local",
		}, "")
		require.NoError(t, err)

		_, err = authenticator.ValidateCredentials(ctx, user.Email, "definitely-not-the-password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func Test_DefaultAuthenticator_ValidateCredentials(t *testing.T) {
	ctx := context.Background()
	dbConnectionPool := openAuthenticatorTestPool(t)

	authenticator := newDefaultAuthenticator(
		withAuthenticatorDatabaseConnectionPool(dbConnectionPool),
		withPasswordEncrypter(NewDefaultPasswordEncrypter()),
	)

	user, err := authenticator.CreateUser(ctx, &User{
		FirstName: "Astrid",
		LastName:  "Berg",
		Email:     "astrid.berg@bank.local",
	}, "password1234")
	require.NoError(t, err)

	t.Run("returns the user for correct credentials", func(t *testing.T) {
		gotUser, vErr := authenticator.ValidateCredentials(ctx, user.Email, "password1234")
		require.NoError(t, vErr)
		assert.Equal(t, user.ID, gotUser.ID)
		assert.Equal(t, user.Email, gotUser.Email)
	})

	t.Run("returns ErrInvalidCredentials for unknown email", func(t *testing.T) {
		_, vErr := authenticator.ValidateCredentials(ctx, "unknown@bank.local", "password1234")
		assert.ErrorIs(t, vErr, ErrInvalidCredentials)
	})

	t.Run("returns ErrInvalidCredentials for deactivated user", func(t *testing.T) {
		require.NoError(t, authenticator.DeactivateUser(ctx, user.ID))
		defer func() {
			require.NoError(t, authenticator.ActivateUser(ctx, user.ID))
		}()

		_, vErr := authenticator.ValidateCredentials(ctx, user.Email, "password1234")
		assert.ErrorIs(t, vErr, ErrInvalidCredentials)
	})
}

func Test_DefaultAuthenticator_bruteForceLockout(t *testing.T) {
	ctx := context.Background()
	dbConnectionPool := openAuthenticatorTestPool(t)

	authenticator := newDefaultAuthenticator(
		withAuthenticatorDatabaseConnectionPool(dbConnectionPool),
		withPasswordEncrypter(NewDefaultPasswordEncrypter()),
	)

	user, err := authenticator.CreateUser(ctx, &User{
		FirstName: "Astrid",
		LastName:  "Berg",
		Email:     "astrid.berg@bank.local",
	}, "password1234")
	require.NoError(t, err)

	getLockState := func() (int, *time.Time) {
		var state struct {
			FailedLoginAttempts int        `db:"failed_login_attempts"`
			LockedAt            *time.Time `db:"locked_at"`
		}
		gErr := dbConnectionPool.GetContext(ctx, &state, "SELECT failed_login_attempts, locked_at FROM auth_users WHERE id = $1", user.ID)
		require.NoError(t, gErr)
		return state.FailedLoginAttempts, state.LockedAt
	}

	// a failed attempt increments the counter without locking
	_, err = authenticator.ValidateCredentials(ctx, user.Email, "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	attempts, lockedAt := getLockState()
	assert.Equal(t, 1, attempts)
	assert.Nil(t, lockedAt)

	// a successful login resets the counter
	_, err = authenticator.ValidateCredentials(ctx, user.Email, "password1234")
	require.NoError(t, err)

	attempts, lockedAt = getLockState()
	assert.Equal(t, 0, attempts)
	assert.Nil(t, lockedAt)

	// the fifth consecutive failure locks the account
	for i := 0; i < defaultMaxFailedLoginAttempts; i++ {
		_, err = authenticator.ValidateCredentials(ctx, user.Email, "wrong-password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	attempts, lockedAt = getLockState()
	assert.Equal(t, defaultMaxFailedLoginAttempts, attempts)
	assert.NotNil(t, lockedAt)

	// locked users are rejected even with the correct password
	_, err = authenticator.ValidateCredentials(ctx, user.Email, "password1234")
	assert.ErrorIs(t, err, ErrUserAccountLocked)

	// admin unlock restores access
	require.NoError(t, authenticator.UnlockUser(ctx, user.ID))

	_, err = authenticator.ValidateCredentials(ctx, user.Email, "password1234")
	require.NoError(t, err)
}

func Test_DefaultAuthenticator_UpdatePassword(t *testing.T) {
	ctx := context.Background()
	dbConnectionPool := openAuthenticatorTestPool(t)

	authenticator := newDefaultAuthenticator(
		withAuthenticatorDatabaseConnectionPool(dbConnectionPool),
		withPasswordEncrypter(NewDefaultPasswordEncrypter()),
	)

	user, err := authenticator.CreateUser(ctx, &User{
		FirstName: "Astrid",
		LastName:  "Berg",
		Email:     "astrid.berg@bank.local",
	}, "password1234")
	require.NoError(t, err)

	err = authenticator.UpdatePassword(ctx, user, "wrong-password", "new-password-1234")
	assert.ErrorContains(t, err, "validating credentials")

	err = authenticator.UpdatePassword(ctx, user, "password1234", "new-password-1234")
	require.NoError(t, err)

	_, err = authenticator.ValidateCredentials(ctx, user.Email, "new-password-1234")
	require.NoError(t, err)
}

func Test_DefaultAuthenticator_GetAllUsers(t *testing.T) {
	ctx := context.Background()
	dbConnectionPool := openAuthenticatorTestPool(t)

	authenticator := newDefaultAuthenticator(
		withAuthenticatorDatabaseConnectionPool(dbConnectionPool),
		withPasswordEncrypter(NewDefaultPasswordEncrypter()),
	)

	for _, email := range []string{"a@bank.local", "b@bank.local"} {
		_, err := authenticator.CreateUser(ctx, &User{
			FirstName: "Test",
			LastName:  "User",
			Email:     email,
			Roles:     []string{CustomerUserRole.String()},
		}, "password1234")
		require.NoError(t, err)
	}

	users, err := authenticator.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
