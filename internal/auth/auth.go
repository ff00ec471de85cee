package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidOTP   = errors.New("invalid or expired one-time password")
)

type AuthManager interface {
	Authenticate(ctx context.Context, email, pass string) (string, error)
	RefreshToken(ctx context.Context, tokenString string) (string, error)
	ValidateToken(ctx context.Context, tokenString string) (bool, error)
	RevokeToken(ctx context.Context, tokenString string) error
	AllRolesInTokenUser(ctx context.Context, tokenString string, roleNames []string) (bool, error)
	AnyRolesInTokenUser(ctx context.Context, tokenString string, roleNames []string) (bool, error)
	CreateUser(ctx context.Context, user *User, password string) (*User, error)
	UpdateUser(ctx context.Context, tokenString, firstName, lastName, email, password string) error
	UpdatePassword(ctx context.Context, tokenString, currentPassword, newPassword string) error
	// ForgotPassword issues a one-time password for the email and returns it
	// for delivery. Unknown emails return ErrUserNotFound.
	ForgotPassword(ctx context.Context, email string) (string, error)
	// ResetPassword consumes the one-time password and sets the new password.
	ResetPassword(ctx context.Context, email, otp, newPassword string) error
	GetUser(ctx context.Context, tokenString string) (*User, error)
	GetUsersByID(ctx context.Context, userIDs []string) ([]*User, error)
	GetUserID(ctx context.Context, tokenString string) (string, error)
	GetAllUsers(ctx context.Context, tokenString string) ([]User, error)
	UpdateUserRoles(ctx context.Context, tokenString, userID string, roles []string) error
	DeactivateUser(ctx context.Context, tokenString, userID string) error
	ActivateUser(ctx context.Context, tokenString, userID string) error
	UnlockUser(ctx context.Context, tokenString, userID string) error
	ExpirationTimeInMinutes() time.Duration
}

func (am *defaultAuthManager) Authenticate(ctx context.Context, email, pass string) (string, error) {
	user, err := am.authenticator.ValidateCredentials(ctx, email, pass)
	if err != nil {
		return "", fmt.Errorf("validating credentials: %w", err)
	}

	return am.generateToken(ctx, user)
}

func (am *defaultAuthManager) generateToken(ctx context.Context, user *User) (string, error) {
	roles, err := am.roleManager.GetUserRoles(ctx, user)
	if err != nil {
		return "", fmt.Errorf("error getting user roles: %w", err)
	}

	user.Roles = roles

	expiresAt := time.Now().Add(am.expirationTimeInMinutes)
	tokenString, err := am.jwtManager.GenerateToken(ctx, user, expiresAt)
	if err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}

	return tokenString, nil
}

func (am *defaultAuthManager) RefreshToken(ctx context.Context, tokenString string) (string, error) {
	isValid, err := am.ValidateToken(ctx, tokenString)
	if err != nil {
		return "", fmt.Errorf("validating token: %w", err)
	}

	if !isValid {
		return "", ErrInvalidToken
	}

	expiresAt := time.Now().Add(am.expirationTimeInMinutes)
	tokenString, err = am.jwtManager.RefreshToken(ctx, tokenString, expiresAt)
	if err != nil {
		return "", fmt.Errorf("generating new refreshed token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken verifies the token signature and expiration, then checks the
// revocation set. A revoked token is reported as invalid without error.
func (am *defaultAuthManager) ValidateToken(ctx context.Context, tokenString string) (bool, error) {
	isValid, err := am.jwtManager.ValidateToken(ctx, tokenString)
	if err != nil {
		return false, fmt.Errorf("validating token: %w", err)
	}

	if !isValid {
		return false, nil
	}

	isRevoked, err := am.revokedTokens.IsRevoked(ctx, tokenString)
	if err != nil {
		return false, fmt.Errorf("checking token revocation: %w", err)
	}

	return !isRevoked, nil
}

// RevokeToken adds the token to the revocation set for its remaining lifetime.
func (am *defaultAuthManager) RevokeToken(ctx context.Context, tokenString string) error {
	expiresAt, err := am.jwtManager.GetTokenExpiration(ctx, tokenString)
	if err != nil {
		return fmt.Errorf("getting token expiration: %w", err)
	}

	err = am.revokedTokens.Revoke(ctx, tokenString, expiresAt)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}

	return nil
}

// AllRolesInTokenUser checks whether the user's token has all the roles passed by parameter.
func (am *defaultAuthManager) AllRolesInTokenUser(ctx context.Context, tokenString string, roleNames []string) (bool, error) {
	user, err := am.getUserFromToken(ctx, tokenString)
	if err != nil {
		return false, err
	}

	hasAllRoles, err := am.roleManager.HasAllRoles(ctx, user, roleNames)
	if err != nil {
		return false, fmt.Errorf("error validating user roles: %w", err)
	}

	return hasAllRoles, nil
}

// AnyRolesInTokenUser checks whether the user's token has one or more the roles passed by parameter.
func (am *defaultAuthManager) AnyRolesInTokenUser(ctx context.Context, tokenString string, roleNames []string) (bool, error) {
	user, err := am.getUserFromToken(ctx, tokenString)
	if err != nil {
		return false, err
	}

	hasAnyRoles, err := am.roleManager.HasAnyRoles(ctx, user, roleNames)
	if err != nil {
		return false, fmt.Errorf("error validating user roles: %w", err)
	}

	return hasAnyRoles, nil
}

// CreateUser creates a new user using Authenticator's CreateUser method.
func (am *defaultAuthManager) CreateUser(ctx context.Context, user *User, password string) (*User, error) {
	user, err := am.authenticator.CreateUser(ctx, user, password)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	return user, nil
}

func (am *defaultAuthManager) UpdateUser(ctx context.Context, tokenString, firstName, lastName, email, password string) error {
	user, err := am.getUserFromToken(ctx, tokenString)
	if err != nil {
		return err
	}

	err = am.authenticator.UpdateUser(ctx, user.ID, firstName, lastName, email, password)
	if err != nil {
		return fmt.Errorf("error updating user: %w", err)
	}

	return nil
}

func (am *defaultAuthManager) UpdatePassword(ctx context.Context, tokenString, currentPassword, newPassword string) error {
	user, err := am.getUserFromToken(ctx, tokenString)
	if err != nil {
		return err
	}

	err = am.authenticator.UpdatePassword(ctx, user, currentPassword, newPassword)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	return nil
}

func (am *defaultAuthManager) ForgotPassword(ctx context.Context, email string) (string, error) {
	user, err := am.authenticator.GetUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("getting user by email: %w", err)
	}

	otp, err := am.otpStore.Issue(ctx, user.Email)
	if err != nil {
		return "", fmt.Errorf("issuing one-time password: %w", err)
	}

	return otp, nil
}

func (am *defaultAuthManager) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	user, err := am.authenticator.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("getting user by email: %w", err)
	}

	valid, err := am.otpStore.Consume(ctx, user.Email, otp)
	if err != nil {
		return fmt.Errorf("consuming one-time password: %w", err)
	}
	if !valid {
		return ErrInvalidOTP
	}

	err = am.authenticator.ResetPassword(ctx, user.ID, newPassword)
	if err != nil {
		return fmt.Errorf("resetting password: %w", err)
	}

	return nil
}

func (am *defaultAuthManager) ActivateUser(ctx context.Context, tokenString, userID string) error {
	isValid, err := am.ValidateToken(ctx, tokenString)
	if err != nil {
		return fmt.Errorf("validating token: %w", err)
	}

	if !isValid {
		return ErrInvalidToken
	}

	err = am.authenticator.ActivateUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("error activating user ID %s: %w", userID, err)
	}

	return nil
}

func (am *defaultAuthManager) DeactivateUser(ctx context.Context, tokenString, userID string) error {
	isValid, err := am.ValidateToken(ctx, tokenString)
	if err != nil {
		return fmt.Errorf("validating token: %w", err)
	}

	if !isValid {
		return ErrInvalidToken
	}

	err = am.authenticator.DeactivateUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("error deactivating user ID %s: %w", userID, err)
	}

	return nil
}

// UnlockUser clears a brute-force lock on the given user.
func (am *defaultAuthManager) UnlockUser(ctx context.Context, tokenString, userID string) error {
	isValid, err := am.ValidateToken(ctx, tokenString)
	if err != nil {
		return fmt.Errorf("validating token: %w", err)
	}

	if !isValid {
		return ErrInvalidToken
	}

	err = am.authenticator.UnlockUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("error unlocking user ID %s: %w", userID, err)
	}

	return nil
}

func (am *defaultAuthManager) UpdateUserRoles(ctx context.Context, tokenString, userID string, roles []string) error {
	isValid, err := am.ValidateToken(ctx, tokenString)
	if err != nil {
		return fmt.Errorf("validating token: %w", err)
	}

	if !isValid {
		return ErrInvalidToken
	}

	err = am.roleManager.UpdateRoles(ctx, &User{ID: userID}, roles)
	if err != nil {
		return fmt.Errorf("error updating user roles: %w", err)
	}

	return nil
}

func (am *defaultAuthManager) GetAllUsers(ctx context.Context, tokenString string) ([]User, error) {
	isValid, err := am.ValidateToken(ctx, tokenString)
	if err != nil {
		return nil, fmt.Errorf("validating token: %w", err)
	}

	if !isValid {
		return nil, ErrInvalidToken
	}

	users, err := am.authenticator.GetAllUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting all users: %w", err)
	}

	return users, nil
}

func (am *defaultAuthManager) getUserFromToken(ctx context.Context, tokenString string) (*User, error) {
	isValid, err := am.ValidateToken(ctx, tokenString)
	if err != nil {
		return nil, fmt.Errorf("validating token: %w", err)
	}

	if !isValid {
		return nil, ErrInvalidToken
	}

	user, err := am.jwtManager.GetUserFromToken(ctx, tokenString)
	if err != nil {
		return nil, fmt.Errorf("getting user from token: %w", err)
	}

	return user, nil
}

func (am *defaultAuthManager) GetUsersByID(ctx context.Context, userIDs []string) ([]*User, error) {
	users, err := am.authenticator.GetUsers(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("getting user with IDs: %w", err)
	}

	return users, nil
}

func (am *defaultAuthManager) GetUserID(ctx context.Context, tokenString string) (string, error) {
	tokenUser, err := am.getUserFromToken(ctx, tokenString)
	if err != nil {
		return "", err
	}

	return tokenUser.ID, nil
}

func (am *defaultAuthManager) GetUser(ctx context.Context, tokenString string) (*User, error) {
	tokenUser, err := am.getUserFromToken(ctx, tokenString)
	if err != nil {
		return nil, fmt.Errorf("getting user from token: %w", err)
	}

	// We get the user latest state
	user, err := am.authenticator.GetUser(ctx, tokenUser.ID)
	if err != nil {
		return nil, fmt.Errorf("getting user ID %s: %w", tokenUser.ID, err)
	}

	roles, err := am.roleManager.GetUserRoles(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("getting user ID %s roles: %w", tokenUser.ID, err)
	}

	user.Roles = roles

	return user, nil
}

func (am *defaultAuthManager) ExpirationTimeInMinutes() time.Duration {
	return am.expirationTimeInMinutes
}

// Ensuring that defaultAuthManager is implementing AuthManager interface
var _ AuthManager = (*defaultAuthManager)(nil)
