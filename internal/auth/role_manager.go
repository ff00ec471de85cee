package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/nordbank/banking-platform-backend/db"
)

type RoleManager interface {
	GetUserRoles(ctx context.Context, user *User) ([]string, error)
	// HasAllRoles validates whether the user has all roles passed by parameter.
	HasAllRoles(ctx context.Context, user *User, roleNames []string) (bool, error)
	// HasAnyRoles validates whether the user has one or more roles passed by parameter.
	HasAnyRoles(ctx context.Context, user *User, roleNames []string) (bool, error)
	UpdateRoles(ctx context.Context, user *User, roleNames []string) error
}

type defaultRoleManager struct {
	dbConnectionPool db.DBConnectionPool
}

func (rm *defaultRoleManager) GetUserRoles(ctx context.Context, user *User) ([]string, error) {
	const query = "SELECT roles FROM auth_users WHERE id = $1"

	var roles pq.StringArray
	err := rm.dbConnectionPool.GetContext(ctx, &roles, query, user.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrUserNotFound
		}
		return nil, fmt.Errorf("error querying user ID %s roles: %w", user.ID, err)
	}

	return roles, nil
}

func (rm *defaultRoleManager) HasAllRoles(ctx context.Context, user *User, roleNames []string) (bool, error) {
	userRoles, err := rm.GetUserRoles(ctx, user)
	if err != nil {
		return false, fmt.Errorf("getting user roles: %w", err)
	}

	userRolesMap := make(map[string]struct{}, len(userRoles))
	for _, role := range userRoles {
		userRolesMap[role] = struct{}{}
	}

	for _, role := range roleNames {
		if _, ok := userRolesMap[role]; !ok {
			return false, nil
		}
	}

	return true, nil
}

func (rm *defaultRoleManager) HasAnyRoles(ctx context.Context, user *User, roleNames []string) (bool, error) {
	userRoles, err := rm.GetUserRoles(ctx, user)
	if err != nil {
		return false, fmt.Errorf("getting user roles: %w", err)
	}

	userRolesMap := make(map[string]struct{}, len(userRoles))
	for _, role := range userRoles {
		userRolesMap[role] = struct{}{}
	}

	for _, role := range roleNames {
		if _, ok := userRolesMap[role]; ok {
			return true, nil
		}
	}

	return false, nil
}

func (rm *defaultRoleManager) UpdateRoles(ctx context.Context, user *User, roleNames []string) error {
	for _, roleName := range roleNames {
		if !UserRole(roleName).IsValid() {
			return fmt.Errorf("invalid role %q", roleName)
		}
	}

	const query = "UPDATE auth_users SET roles = $1 WHERE id = $2"
	result, err := rm.dbConnectionPool.ExecContext(ctx, query, pq.Array(roleNames), user.ID)
	if err != nil {
		return fmt.Errorf("error updating user roles ID %s roles: %w", user.ID, err)
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

var _ RoleManager = (*defaultRoleManager)(nil)

type defaultRoleManagerOption func(m *defaultRoleManager)

func newDefaultRoleManager(options ...defaultRoleManagerOption) *defaultRoleManager {
	defaultRoleManager := &defaultRoleManager{}

	for _, option := range options {
		option(defaultRoleManager)
	}

	return defaultRoleManager
}

func withRoleManagerDBConnectionPool(dbConnectionPool db.DBConnectionPool) defaultRoleManagerOption {
	return func(m *defaultRoleManager) {
		m.dbConnectionPool = dbConnectionPool
	}
}
