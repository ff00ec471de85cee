package auth

import (
	"fmt"
	"time"

	"github.com/nordbank/banking-platform-backend/db"
	"github.com/nordbank/banking-platform-backend/internal/utils"
)

const defaultExpirationTimeInMinutes = 15

type User struct {
	ID        string   `json:"id"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Email     string   `json:"email"`
	IsActive  bool     `json:"is_active"`
	Roles     []string `json:"roles"`
}

func (u *User) Validate() error {
	if u.Email == "" {
		return fmt.Errorf("email is required")
	} else if err := utils.ValidateEmail(u.Email); err != nil {
		return fmt.Errorf("email is invalid: %w", err)
	}

	if u.FirstName == "" {
		return fmt.Errorf("first name is required")
	}

	if u.LastName == "" {
		return fmt.Errorf("last name is required")
	}

	for _, roleName := range u.Roles {
		if !UserRole(roleName).IsValid() {
			return fmt.Errorf("invalid role %q", roleName)
		}
	}

	return nil
}

// AuthManager manages the JWT token generation, validation, refresh and revocation.
// Use `NewAuthManager` function to construct a new pointer.
type defaultAuthManager struct {
	expirationTimeInMinutes time.Duration
	authenticator           Authenticator
	jwtManager              JWTManager
	roleManager             RoleManager
	revokedTokens           TokenRevocationStore
	otpStore                OTPStore
	otpTTL                  time.Duration
	failedLoginLock         int
}

type AuthManagerOption func(am *defaultAuthManager)

// NewAuthManager constructs a new `*AuthManager` and apply the options passed by parameter.
func NewAuthManager(options ...AuthManagerOption) AuthManager {
	authManager := &defaultAuthManager{
		expirationTimeInMinutes: time.Minute * defaultExpirationTimeInMinutes,
	}

	for _, option := range options {
		option(authManager)
	}

	if authManager.revokedTokens == nil {
		authManager.revokedTokens = NewInMemoryTokenRevocationStore(authManager.expirationTimeInMinutes)
	}
	if authManager.otpStore == nil {
		authManager.otpStore = NewInMemoryOTPStore(authManager.otpTTL)
	}
	if authManager.failedLoginLock > 0 {
		if a, ok := authManager.authenticator.(*defaultAuthenticator); ok {
			a.maxFailedLoginAttempts = authManager.failedLoginLock
		}
	}

	return authManager
}

// WithDefaultAuthenticatorOption sets a default authentication method that validates the users' credentials.
func WithDefaultAuthenticatorOption(dbConnectionPool db.DBConnectionPool, passwordEncrypter PasswordEncrypter) AuthManagerOption {
	return func(am *defaultAuthManager) {
		am.authenticator = newDefaultAuthenticator(
			withAuthenticatorDatabaseConnectionPool(dbConnectionPool),
			withPasswordEncrypter(passwordEncrypter),
		)
	}
}

// WithCustomAuthenticatorOption sets a custom authentication method that implements the `Authenticator` interface.
func WithCustomAuthenticatorOption(authenticator Authenticator) AuthManagerOption {
	return func(am *defaultAuthManager) {
		am.authenticator = authenticator
	}
}

// WithDefaultJWTManagerOption sets a default JWT Manager that generates, validates and refreshes the users' JWT token.
func WithDefaultJWTManagerOption(ECPublicKey, ECPrivateKey string) AuthManagerOption {
	return func(am *defaultAuthManager) {
		am.jwtManager = newDefaultJWTManager(withECKeypair(ECPublicKey, ECPrivateKey))
	}
}

// WithCustomJWTManagerOption sets a custom JWT Manager that implements the `JWTManager` interface.
func WithCustomJWTManagerOption(jwtManager JWTManager) AuthManagerOption {
	return func(am *defaultAuthManager) {
		am.jwtManager = jwtManager
	}
}

// WithExpirationTimeInMinutesOption sets the JWT token expiration time in minutes. Default is `15 minutes`.
func WithExpirationTimeInMinutesOption(minutes int) AuthManagerOption {
	return func(am *defaultAuthManager) {
		am.expirationTimeInMinutes = time.Minute * time.Duration(minutes)
	}
}

func WithDefaultRoleManagerOption(dbConnectionPool db.DBConnectionPool) AuthManagerOption {
	return func(am *defaultAuthManager) {
		am.roleManager = newDefaultRoleManager(
			withRoleManagerDBConnectionPool(dbConnectionPool),
		)
	}
}

func WithCustomRoleManagerOption(roleManager RoleManager) AuthManagerOption {
	return func(am *defaultAuthManager) {
		am.roleManager = roleManager
	}
}

func WithCustomTokenRevocationStoreOption(revokedTokens TokenRevocationStore) AuthManagerOption {
	return func(am *defaultAuthManager) {
		am.revokedTokens = revokedTokens
	}
}

// WithOTPTTLOption sets the lifetime of one-time passwords issued by the
// forgot-password flow. Default is 5 minutes.
func WithOTPTTLOption(ttl time.Duration) AuthManagerOption {
	return func(am *defaultAuthManager) {
		am.otpTTL = ttl
	}
}

func WithCustomOTPStoreOption(otpStore OTPStore) AuthManagerOption {
	return func(am *defaultAuthManager) {
		am.otpStore = otpStore
	}
}

// WithFailedLoginLockOption sets the number of consecutive failed sign-ins
// after which the default authenticator locks the account. Default is 5.
func WithFailedLoginLockOption(maxAttempts int) AuthManagerOption {
	return func(am *defaultAuthManager) {
		am.failedLoginLock = maxAttempts
	}
}
