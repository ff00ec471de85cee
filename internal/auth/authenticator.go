package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/nordbank/banking-platform-backend/db"
	"github.com/nordbank/banking-platform-backend/internal/utils"
)

var (
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrNoRowsAffected         = errors.New("no rows affected")
	ErrUserNotFound           = errors.New("user not found")
	ErrUserEmailAlreadyExists = errors.New("a user with this email already exists")
	ErrUserAccountLocked      = errors.New("user account is locked")
)

// defaultMaxFailedLoginAttempts is the number of consecutive bad passwords
// after which the account is locked. Unlocking is an admin action.
const defaultMaxFailedLoginAttempts = 5

type Authenticator interface {
	ValidateCredentials(ctx context.Context, email, password string) (*User, error)
	// CreateUser creates a new user it receives a user object and the password
	CreateUser(ctx context.Context, user *User, password string) (*User, error)
	UpdateUser(ctx context.Context, ID, firstName, lastName, email, password string) error
	ActivateUser(ctx context.Context, userID string) error
	DeactivateUser(ctx context.Context, userID string) error
	UnlockUser(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, user *User, currentPassword, newPassword string) error
	// ResetPassword sets a new password without knowing the current one. The
	// caller is responsible for having verified the user's identity first.
	ResetPassword(ctx context.Context, userID, newPassword string) error
	GetAllUsers(ctx context.Context) ([]User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUser(ctx context.Context, userID string) (*User, error)
	GetUsers(ctx context.Context, userIDs []string) ([]*User, error)
}

type defaultAuthenticator struct {
	dbConnectionPool       db.DBConnectionPool
	passwordEncrypter      PasswordEncrypter
	maxFailedLoginAttempts int
}

type authUser struct {
	ID                  string     `db:"id"`
	FirstName           string     `db:"first_name"`
	LastName            string     `db:"last_name"`
	Email               string     `db:"email"`
	EncryptedPassword   string     `db:"encrypted_password"`
	FailedLoginAttempts int        `db:"failed_login_attempts"`
	LockedAt            *time.Time `db:"locked_at"`
}

func (a *defaultAuthenticator) ValidateCredentials(ctx context.Context, email, password string) (*User, error) {
	const query = `
		SELECT
			u.id,
			u.first_name,
			u.last_name,
			u.encrypted_password,
			u.failed_login_attempts,
			u.locked_at
		FROM
			auth_users u
		WHERE
			email = $1 AND is_active = true
	`

	au := authUser{}
	err := a.dbConnectionPool.GetContext(ctx, &au, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}

		return nil, fmt.Errorf("querying user: %w", err)
	}

	if au.LockedAt != nil {
		return nil, ErrUserAccountLocked
	}

	isEqual, err := a.passwordEncrypter.ComparePassword(ctx, au.EncryptedPassword, password)
	if err != nil {
		return nil, fmt.Errorf("comparing password: %w", err)
	}
	if !isEqual {
		if err = a.registerFailedLogin(ctx, au.ID); err != nil {
			return nil, fmt.Errorf("registering failed login attempt: %w", err)
		}
		return nil, ErrInvalidCredentials
	}

	if au.FailedLoginAttempts > 0 {
		if err = a.resetFailedLogins(ctx, au.ID); err != nil {
			return nil, fmt.Errorf("resetting failed login attempts: %w", err)
		}
	}

	return &User{
		ID:        au.ID,
		Email:     email,
		FirstName: au.FirstName,
		LastName:  au.LastName,
	}, nil
}

// registerFailedLogin increments the failed attempts counter and locks the
// account once the counter reaches the configured maximum.
func (a *defaultAuthenticator) registerFailedLogin(ctx context.Context, userID string) error {
	const query = `
		UPDATE
			auth_users
		SET
			failed_login_attempts = failed_login_attempts + 1,
			locked_at = CASE WHEN failed_login_attempts + 1 >= $2 THEN now() ELSE locked_at END
		WHERE
			id = $1
	`

	_, err := a.dbConnectionPool.ExecContext(ctx, query, userID, a.maxFailedLoginAttempts)
	if err != nil {
		return fmt.Errorf("updating failed login attempts for user ID %s: %w", userID, err)
	}

	return nil
}

func (a *defaultAuthenticator) resetFailedLogins(ctx context.Context, userID string) error {
	const query = "UPDATE auth_users SET failed_login_attempts = 0, locked_at = NULL WHERE id = $1"

	_, err := a.dbConnectionPool.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("resetting failed login attempts for user ID %s: %w", userID, err)
	}

	return nil
}

// UnlockUser clears the lock and the failed attempts counter. Restricted to
// admins at the handler layer.
func (a *defaultAuthenticator) UnlockUser(ctx context.Context, userID string) error {
	const query = "UPDATE auth_users SET failed_login_attempts = 0, locked_at = NULL WHERE id = $1"

	result, err := a.dbConnectionPool.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("unlocking user ID %s: %w", userID, err)
	}

	numRowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting number of rows affected: %w", err)
	}
	if numRowsAffected == 0 {
		return ErrNoRowsAffected
	}

	return nil
}

// CreateUser creates a user in the database. If a empty password is passed by parameter, a random password is generated,
// so the user can go through a password reset flow before the first login.
func (a *defaultAuthenticator) CreateUser(ctx context.Context, user *User, password string) (*User, error) {
	if err := user.Validate(); err != nil {
		return nil, fmt.Errorf("error validating user fields: %w", err)
	}

	// In case no password is passed we generate a random OTP (One Time Password)
	if password == "" {
		// Random length pasword
		randomNumber, err := rand.Int(rand.Reader, big.NewInt(MaxPasswordLength-MinPasswordLength+1))
		if err != nil {
			return nil, fmt.Errorf("error generating random number in create user: %w", err)
		}

		passwordLength := int(randomNumber.Int64() + MinPasswordLength)
		password, err = utils.RandomString(passwordLength)
		if err != nil {
			return nil, fmt.Errorf("error generating random password string in create user: %w", err)
		}
	}

	encryptedPassword, err := a.passwordEncrypter.Encrypt(ctx, password)
	if err != nil {
		return nil, fmt.Errorf("error encrypting password: %w", err)
	}

	const query = `
		INSERT INTO auth_users
			(email, encrypted_password, first_name, last_name, roles)
		VALUES
			($1, $2, $3, $4, $5)
		RETURNING id
	`

	var userID string
	err = a.dbConnectionPool.GetContext(ctx, &userID, query, user.Email, encryptedPassword, user.FirstName, user.LastName, pq.Array(user.Roles))
	if err != nil {
		if pqError, ok := err.(*pq.Error); ok && pqError.Constraint == "auth_users_email_key" {
			return nil, ErrUserEmailAlreadyExists
		}
		return nil, fmt.Errorf("error inserting user: %w", err)
	}

	user.ID = userID
	user.IsActive = true

	return user, nil
}

func (a *defaultAuthenticator) UpdateUser(ctx context.Context, ID, firstName, lastName, email, password string) error {
	if firstName == "" && lastName == "" && email == "" && password == "" {
		return fmt.Errorf("provide at least one of these values: firstName, lastName, email or password")
	}

	query := `
		UPDATE
			auth_users
		SET
			%s
		WHERE id = ?
	`

	fields := []string{}
	args := []interface{}{}
	if firstName != "" {
		fields = append(fields, "first_name = ?")
		args = append(args, firstName)
	}

	if lastName != "" {
		fields = append(fields, "last_name = ?")
		args = append(args, lastName)
	}

	if email != "" {
		if err := utils.ValidateEmail(email); err != nil {
			return fmt.Errorf("error validating email: %w", err)
		}

		fields = append(fields, "email = ?")
		args = append(args, email)
	}

	if password != "" {
		encryptedPassword, err := a.passwordEncrypter.Encrypt(ctx, password)
		if err != nil {
			if !errors.Is(err, ErrPasswordTooShort) {
				return fmt.Errorf("error encrypting password: %w", err)
			}
			return err
		}

		fields = append(fields, "encrypted_password = ?")
		args = append(args, encryptedPassword)
	}

	query = a.dbConnectionPool.Rebind(fmt.Sprintf(query, strings.Join(fields, ", ")))
	args = append(args, ID)

	res, err := a.dbConnectionPool.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error updating user in the database: %w", err)
	}

	numRowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting the number of rows affected: %w", err)
	}
	if numRowsAffected == 0 {
		return ErrNoRowsAffected
	}

	return nil
}

func (a *defaultAuthenticator) updateIsActive(ctx context.Context, userID string, isActive bool) error {
	const query = "UPDATE auth_users SET is_active = $1 WHERE id = $2"

	result, err := a.dbConnectionPool.ExecContext(ctx, query, isActive, userID)
	if err != nil {
		return fmt.Errorf("error updating is_active for user ID %s: %w", userID, err)
	}

	numRowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting number of rows affected: %w", err)
	}

	if numRowsAffected == 0 {
		return ErrNoRowsAffected
	}

	return nil
}

func (a *defaultAuthenticator) ActivateUser(ctx context.Context, userID string) error {
	err := a.updateIsActive(ctx, userID, true)
	if err != nil {
		return fmt.Errorf("error activating user ID %s: %w", userID, err)
	}

	return nil
}

func (a *defaultAuthenticator) DeactivateUser(ctx context.Context, userID string) error {
	err := a.updateIsActive(ctx, userID, false)
	if err != nil {
		return fmt.Errorf("error deactivating user ID %s: %w", userID, err)
	}

	return nil
}

func (a *defaultAuthenticator) UpdatePassword(ctx context.Context, user *User, currentPassword, newPassword string) error {
	if currentPassword == "" || newPassword == "" {
		return fmt.Errorf("provide currentPassword and newPassword values")
	}

	_, err := a.ValidateCredentials(ctx, user.Email, currentPassword)
	if err != nil {
		return fmt.Errorf("validating credentials: %w", err)
	}

	encryptedPassword, err := a.passwordEncrypter.Encrypt(ctx, newPassword)
	if err != nil {
		if !errors.Is(err, ErrPasswordTooShort) {
			return fmt.Errorf("encrypting password: %w", err)
		}
		return err
	}

	const query = `
		UPDATE
			auth_users
		SET
			encrypted_password = $1
		WHERE id = $2
	`

	res, err := a.dbConnectionPool.ExecContext(ctx, query, encryptedPassword, user.ID)
	if err != nil {
		return fmt.Errorf("updating user password in the database: %w", err)
	}

	numRowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting the number of rows affected: %w", err)
	}
	if numRowsAffected == 0 {
		return ErrNoRowsAffected
	}

	return nil
}

func (a *defaultAuthenticator) GetAllUsers(ctx context.Context) ([]User, error) {
	const query = `
		SELECT
			id,
			first_name,
			last_name,
			email,
			roles,
			is_active
		FROM
			auth_users
	`

	dbUsers := []struct {
		ID        string         `db:"id"`
		FirstName string         `db:"first_name"`
		LastName  string         `db:"last_name"`
		Email     string         `db:"email"`
		Roles     pq.StringArray `db:"roles"`
		IsActive  bool           `db:"is_active"`
	}{}
	err := a.dbConnectionPool.SelectContext(ctx, &dbUsers, query)
	if err != nil {
		return nil, fmt.Errorf("error querying all users in the database: %w", err)
	}

	users := []User{}
	for _, dbUser := range dbUsers {
		users = append(users, User{
			ID:        dbUser.ID,
			FirstName: dbUser.FirstName,
			LastName:  dbUser.LastName,
			Email:     dbUser.Email,
			IsActive:  dbUser.IsActive,
			Roles:     dbUser.Roles,
		})
	}

	return users, nil
}

func (a *defaultAuthenticator) GetUser(ctx context.Context, userID string) (*User, error) {
	const query = `
		SELECT
			first_name,
			last_name,
			email
		FROM
			auth_users
		WHERE
			id = $1 AND is_active = true
	`

	var u authUser
	err := a.dbConnectionPool.GetContext(ctx, &u, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error querying user ID %s: %w", userID, err)
	}

	return &User{
		ID:        userID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
	}, nil
}

func (a *defaultAuthenticator) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	const query = `
		SELECT
			id,
			first_name,
			last_name
		FROM
			auth_users
		WHERE
			email = $1 AND is_active = true
	`

	var u authUser
	err := a.dbConnectionPool.GetContext(ctx, &u, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error querying user email %s: %w", email, err)
	}

	return &User{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     email,
	}, nil
}

// GetUsers retrieves the respective users from a list of user IDs.
func (a *defaultAuthenticator) GetUsers(ctx context.Context, userIDs []string) ([]*User, error) {
	const query = `
		SELECT
			id,
			first_name,
			last_name
		FROM
			auth_users
		WHERE
			id = ANY($1::uuid[]) AND is_active = true
	`

	var dbUsers []authUser
	err := a.dbConnectionPool.SelectContext(ctx, &dbUsers, query, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("error querying user IDs: %w", err)
	}
	if len(dbUsers) != len(userIDs) {
		return nil,
			fmt.Errorf(
				"error querying user IDs: searching for %d users, found %d users",
				len(userIDs),
				len(dbUsers),
			)
	}

	users := make([]*User, len(dbUsers))
	for i, u := range dbUsers {
		users[i] = &User{
			ID:        u.ID,
			FirstName: u.FirstName,
			LastName:  u.LastName,
		}
	}

	return users, nil
}

func (a *defaultAuthenticator) ResetPassword(ctx context.Context, userID, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("provide a newPassword value")
	}

	encryptedPassword, err := a.passwordEncrypter.Encrypt(ctx, newPassword)
	if err != nil {
		if !errors.Is(err, ErrPasswordTooShort) {
			return fmt.Errorf("encrypting password: %w", err)
		}
		return err
	}

	const query = `
		UPDATE
			auth_users
		SET
			encrypted_password = $1,
			failed_login_attempts = 0,
			locked_at = NULL
		WHERE id = $2
	`

	res, err := a.dbConnectionPool.ExecContext(ctx, query, encryptedPassword, userID)
	if err != nil {
		return fmt.Errorf("resetting user password in the database: %w", err)
	}

	numRowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting the number of rows affected: %w", err)
	}
	if numRowsAffected == 0 {
		return ErrNoRowsAffected
	}

	return nil
}

type defaultAuthenticatorOption func(a *defaultAuthenticator)

func newDefaultAuthenticator(options ...defaultAuthenticatorOption) *defaultAuthenticator {
	authenticator := &defaultAuthenticator{
		maxFailedLoginAttempts: defaultMaxFailedLoginAttempts,
	}

	for _, option := range options {
		option(authenticator)
	}

	return authenticator
}

func withAuthenticatorDatabaseConnectionPool(dbConnectionPool db.DBConnectionPool) defaultAuthenticatorOption {
	return func(a *defaultAuthenticator) {
		a.dbConnectionPool = dbConnectionPool
	}
}

func withPasswordEncrypter(passwordEncrypter PasswordEncrypter) defaultAuthenticatorOption {
	return func(a *defaultAuthenticator) {
		a.passwordEncrypter = passwordEncrypter
	}
}

// Ensuring that defaultAuthenticator is implementing Authenticator interface
var _ Authenticator = (*defaultAuthenticator)(nil)
