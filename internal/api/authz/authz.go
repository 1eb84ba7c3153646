package authz

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

const (
	RoleAdmin       = "admin"
	RoleClubManager = "club_manager"
	RoleMember      = "member"
)

type AuthUser struct {
	ID          int64
	Role        string
	ClubID      *int64
	DisplayName string
}

type userContextKey struct{}

func ContextWithUser(ctx context.Context, user *AuthUser) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext retrieves the AuthUser stored in ctx.
// It returns nil if ctx is nil, if no user is stored, or if the stored value has a different type.
func UserFromContext(ctx context.Context) *AuthUser {
	if ctx == nil {
		return nil
	}

	user, ok := ctx.Value(userContextKey{}).(*AuthUser)
	if !ok {
		return nil
	}

	return user
}

// ValidRole reports whether role is one of the portal roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleClubManager, RoleMember:
		return true
	}
	return false
}

// IsAdmin reports whether user is a league administrator.
func IsAdmin(user *AuthUser) bool {
	return user != nil && strings.EqualFold(user.Role, RoleAdmin)
}

// LandingPath is where a signed-in user goes by default: their club's
// dashboard when they belong to a club, otherwise the leaderboard.
func LandingPath(user *AuthUser) string {
	if user != nil && user.ClubID != nil {
		return "/dashboard"
	}
	return "/leaderboard"
}

func HasRole(user *AuthUser, roles ...string) bool {
	if user == nil {
		return false
	}
	for _, role := range roles {
		if strings.EqualFold(user.Role, role) {
			return true
		}
	}
	return false
}

func RequireRole(ctx context.Context, roles ...string) error {
	user := UserFromContext(ctx)
	if user == nil {
		return ErrUnauthenticated
	}
	if !HasRole(user, roles...) {
		return ErrForbidden
	}
	return nil
}

// RequireClubAccess allows admins into every club and everyone else into
// their own club only.
func RequireClubAccess(ctx context.Context, clubID int64) error {
	user := UserFromContext(ctx)
	if user == nil {
		return ErrUnauthenticated
	}
	if IsAdmin(user) {
		return nil
	}
	if user.ClubID == nil || *user.ClubID != clubID {
		return ErrForbidden
	}
	return nil
}

// RequireClubManager allows admins and the manager of clubID.
func RequireClubManager(ctx context.Context, clubID int64) error {
	user := UserFromContext(ctx)
	if user == nil {
		return ErrUnauthenticated
	}
	if IsAdmin(user) {
		return nil
	}
	if !HasRole(user, RoleClubManager) {
		return ErrForbidden
	}
	return RequireClubAccess(ctx, clubID)
}

// ClubIDFromContext returns the signed-in user's club, if any.
func ClubIDFromContext(ctx context.Context) (int64, bool) {
	user := UserFromContext(ctx)
	if user == nil || user.ClubID == nil {
		return 0, false
	}
	return *user.ClubID, true
}
