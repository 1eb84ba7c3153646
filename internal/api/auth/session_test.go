package auth

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rcl-league/portal/internal/api/authz"
	"github.com/rcl-league/portal/internal/config"
	dbgen "github.com/rcl-league/portal/internal/db/generated"
	"github.com/rcl-league/portal/internal/testutil"
)

func useTestConfig(t *testing.T) {
	t.Helper()

	prevConfig := appConfig
	prevQueries := queries
	prevNow := now
	t.Cleanup(func() {
		appConfig = prevConfig
		queries = prevQueries
		now = prevNow
	})

	appConfig = &config.Config{}
	appConfig.App.Environment = "development"
	appConfig.App.SecretKey = "test-secret"
	queries = nil
}

func sessionCookieFor(t *testing.T, user *authz.AuthUser) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	if err := SetSessionCookie(rec, user); err != nil {
		t.Fatalf("set session cookie: %v", err)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func requestWithCookie(c *http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	return req
}

func TestSessionRoundTrip(t *testing.T) {
	useTestConfig(t)

	clubID := int64(7)
	cookie := sessionCookieFor(t, &authz.AuthUser{ID: 42, Role: authz.RoleClubManager, ClubID: &clubID, DisplayName: "Jo"})
	if !cookie.HttpOnly || cookie.Secure {
		t.Fatalf("unexpected cookie flags in development: %+v", cookie)
	}

	user, err := UserFromRequest(httptest.NewRecorder(), requestWithCookie(cookie))
	if err != nil {
		t.Fatalf("user from request: %v", err)
	}
	if user == nil || user.ID != 42 || user.Role != authz.RoleClubManager || user.DisplayName != "Jo" {
		t.Fatalf("unexpected user %+v", user)
	}
	if user.ClubID == nil || *user.ClubID != 7 {
		t.Fatalf("expected club 7, got %v", user.ClubID)
	}
}

func TestUserFromRequestAnonymous(t *testing.T) {
	useTestConfig(t)

	user, err := UserFromRequest(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil || user != nil {
		t.Fatalf("expected anonymous request, got %+v, %v", user, err)
	}
}

func TestUserFromRequestRejectsTamperedToken(t *testing.T) {
	useTestConfig(t)

	cookie := sessionCookieFor(t, &authz.AuthUser{ID: 1, Role: authz.RoleMember})
	cookie.Value = "x" + cookie.Value

	rec := httptest.NewRecorder()
	user, err := UserFromRequest(rec, requestWithCookie(cookie))
	if err != nil || user != nil {
		t.Fatalf("expected tampered token to be ignored, got %+v, %v", user, err)
	}
	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("expected invalid session cookie to be cleared")
	}
}

func TestUserFromRequestRejectsOtherSecret(t *testing.T) {
	useTestConfig(t)

	cookie := sessionCookieFor(t, &authz.AuthUser{ID: 1, Role: authz.RoleAdmin})
	appConfig.App.SecretKey = "rotated-secret"

	user, err := UserFromRequest(httptest.NewRecorder(), requestWithCookie(cookie))
	if err != nil || user != nil {
		t.Fatalf("expected token signed with old secret to be rejected, got %+v, %v", user, err)
	}
}

func TestUserFromRequestExpired(t *testing.T) {
	useTestConfig(t)

	issued := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now = func() time.Time { return issued }
	cookie := sessionCookieFor(t, &authz.AuthUser{ID: 1, Role: authz.RoleMember})

	now = func() time.Time { return issued.Add(authSessionTTL + time.Minute) }
	user, err := UserFromRequest(httptest.NewRecorder(), requestWithCookie(cookie))
	if err != nil || user != nil {
		t.Fatalf("expected expired session to be rejected, got %+v, %v", user, err)
	}
}

func TestUserFromRequestRefreshesFromDatabase(t *testing.T) {
	useTestConfig(t)
	database := testutil.NewTestDB(t)
	queries = database.Queries

	ctx := context.Background()
	record, err := database.Queries.CreateUser(ctx, dbgen.CreateUserParams{
		Username:    "sam",
		DisplayName: "Sam Lee",
		Role:        authz.RoleMember,
		Status:      userStatusActive,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	cookie := sessionCookieFor(t, &authz.AuthUser{ID: record.ID, Role: authz.RoleAdmin, DisplayName: "Stale"})
	user, err := UserFromRequest(httptest.NewRecorder(), requestWithCookie(cookie))
	if err != nil {
		t.Fatalf("user from request: %v", err)
	}
	if user == nil || user.Role != authz.RoleMember || user.DisplayName != "Sam Lee" {
		t.Fatalf("expected role refreshed from database, got %+v", user)
	}

	if _, err := database.ExecContext(ctx, "UPDATE users SET status = 'disabled' WHERE id = ?", record.ID); err != nil {
		t.Fatalf("disable user: %v", err)
	}
	user, err = UserFromRequest(httptest.NewRecorder(), requestWithCookie(cookie))
	if err != nil || user != nil {
		t.Fatalf("expected disabled user to be signed out, got %+v, %v", user, err)
	}
}

func TestSetSessionCookieRequiresSecret(t *testing.T) {
	useTestConfig(t)
	appConfig.App.SecretKey = ""

	err := SetSessionCookie(httptest.NewRecorder(), &authz.AuthUser{ID: 1, Role: authz.RoleMember})
	if err == nil {
		t.Fatal("expected error without a secret key")
	}
}

func TestAuthUserFromRecord(t *testing.T) {
	user := authUserFromRecord(3, authz.RoleMember, sql.NullInt64{}, "Ann")
	if user.ClubID != nil {
		t.Fatalf("expected no club, got %v", *user.ClubID)
	}
	user = authUserFromRecord(3, authz.RoleMember, sql.NullInt64{Int64: 9, Valid: true}, "Ann")
	if user.ClubID == nil || *user.ClubID != 9 {
		t.Fatalf("expected club 9, got %v", user.ClubID)
	}
}
