package authz

import (
	"context"
	"errors"
	"testing"
)

func clubUser(role string, clubID int64) *AuthUser {
	return &AuthUser{ID: 10, Role: role, ClubID: &clubID}
}

func TestRequireRoleUnauthenticated(t *testing.T) {
	err := RequireRole(context.Background(), RoleAdmin)
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestRequireRole(t *testing.T) {
	ctx := ContextWithUser(context.Background(), clubUser(RoleClubManager, 1))

	if err := RequireRole(ctx, RoleAdmin); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := RequireRole(ctx, RoleAdmin, RoleClubManager); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestRequireClubAccessUnauthenticated(t *testing.T) {
	err := RequireClubAccess(context.Background(), 1)
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestRequireClubAccessOtherClubForbidden(t *testing.T) {
	ctx := ContextWithUser(context.Background(), clubUser(RoleMember, 2))

	err := RequireClubAccess(ctx, 1)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRequireClubAccessWithoutClubForbidden(t *testing.T) {
	ctx := ContextWithUser(context.Background(), &AuthUser{ID: 10, Role: RoleMember})

	err := RequireClubAccess(ctx, 1)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRequireClubAccessOwnClubAllowed(t *testing.T) {
	ctx := ContextWithUser(context.Background(), clubUser(RoleMember, 1))

	if err := RequireClubAccess(ctx, 1); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestRequireClubAccessAdminAllowed(t *testing.T) {
	ctx := ContextWithUser(context.Background(), &AuthUser{ID: 1, Role: RoleAdmin})

	if err := RequireClubAccess(ctx, 99); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestRequireClubManager(t *testing.T) {
	member := ContextWithUser(context.Background(), clubUser(RoleMember, 1))
	if err := RequireClubManager(member, 1); !errors.Is(err, ErrForbidden) {
		t.Fatalf("member: expected ErrForbidden, got %v", err)
	}

	manager := ContextWithUser(context.Background(), clubUser(RoleClubManager, 1))
	if err := RequireClubManager(manager, 1); err != nil {
		t.Fatalf("manager own club: expected nil, got %v", err)
	}
	if err := RequireClubManager(manager, 2); !errors.Is(err, ErrForbidden) {
		t.Fatalf("manager other club: expected ErrForbidden, got %v", err)
	}
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{RoleAdmin, RoleClubManager, RoleMember} {
		if !ValidRole(role) {
			t.Fatalf("expected %q valid", role)
		}
	}
	if ValidRole("staff") {
		t.Fatal("expected unknown role invalid")
	}
}

func TestLandingPath(t *testing.T) {
	tests := []struct {
		name string
		user *AuthUser
		want string
	}{
		{"admin without club", &AuthUser{ID: 1, Role: RoleAdmin}, "/leaderboard"},
		{"admin with club", clubUser(RoleAdmin, 4), "/dashboard"},
		{"manager", clubUser(RoleClubManager, 4), "/dashboard"},
		{"member", clubUser(RoleMember, 4), "/dashboard"},
		{"member without club", &AuthUser{ID: 2, Role: RoleMember}, "/leaderboard"},
		{"anonymous", nil, "/leaderboard"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LandingPath(tt.user); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
