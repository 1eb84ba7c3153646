package auth

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/rcl-league/portal/internal/api/authz"
	"github.com/rcl-league/portal/internal/db"
	dbgen "github.com/rcl-league/portal/internal/db/generated"
	"github.com/rcl-league/portal/internal/membership"
	"github.com/rcl-league/portal/internal/ratelimit"
	"github.com/rcl-league/portal/internal/testutil"
)

type fakeMembers struct {
	member *membership.Member
	err    error
	calls  int
}

func (f *fakeMembers) Authenticate(ctx context.Context, username, password string) (*membership.Member, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.member, nil
}

func setupLoginTest(t *testing.T, authenticator Authenticator) *db.DB {
	t.Helper()

	useTestConfig(t)
	database := testutil.NewTestDB(t)

	prevMembers := members
	prevLimiter := limiter
	lim := ratelimit.New(nil)
	t.Cleanup(func() {
		members = prevMembers
		limiter = prevLimiter
		lim.Close()
	})

	queries = database.Queries
	members = authenticator
	limiter = lim
	return database
}

func createLocalUser(t *testing.T, database *db.DB, username, role, password string) dbgen.User {
	t.Helper()

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user, err := database.Queries.CreateUser(context.Background(), dbgen.CreateUserParams{
		Username:     username,
		DisplayName:  strings.ToUpper(username[:1]) + username[1:],
		Role:         role,
		PasswordHash: sql.NullString{String: hash, Valid: true},
		Status:       userStatusActive,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func postLogin(username, password string, headers map[string]string) *httptest.ResponseRecorder {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "203.0.113.10:5000"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	HandleLogin(rec, req)
	return rec
}

func hasSessionCookie(rec *httptest.ResponseRecorder) bool {
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName && c.Value != "" {
			return true
		}
	}
	return false
}

func TestLoginLocalAdmin(t *testing.T) {
	database := setupLoginTest(t, nil)
	createLocalUser(t, database, "admin", authz.RoleAdmin, "correct horse")

	rec := postLogin("Admin", "correct horse", nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/leaderboard" {
		t.Fatalf("expected clubless admin to land on leaderboard, got %q", loc)
	}
	if !hasSessionCookie(rec) {
		t.Fatal("expected session cookie")
	}
}

func TestLoginHTMXMemberRedirect(t *testing.T) {
	database := setupLoginTest(t, nil)
	createLocalUser(t, database, "member", authz.RoleMember, "pw-123456")

	rec := postLogin("member", "pw-123456", map[string]string{"HX-Request": "true"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("HX-Redirect"); got != "/leaderboard" {
		t.Fatalf("expected HX-Redirect to leaderboard, got %q", got)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	fake := &fakeMembers{}
	database := setupLoginTest(t, fake)
	createLocalUser(t, database, "admin", authz.RoleAdmin, "correct horse")

	rec := postLogin("admin", "wrong", map[string]string{"Accept": "application/json"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if hasSessionCookie(rec) {
		t.Fatal("did not expect a session cookie")
	}
	if fake.calls != 0 {
		t.Fatalf("local accounts must not fall through to the membership API")
	}
}

func TestLoginLocksOutAfterRepeatedFailures(t *testing.T) {
	database := setupLoginTest(t, nil)
	createLocalUser(t, database, "admin", authz.RoleAdmin, "correct horse")

	for i := 0; i < ratelimit.DefaultConfig().MaxFailures; i++ {
		if rec := postLogin("admin", "wrong", nil); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rec.Code)
		}
	}

	rec := postLogin("admin", "correct horse", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 while locked out, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestLoginMembershipUpsertsUser(t *testing.T) {
	fake := &fakeMembers{member: &membership.Member{
		ID:        "4411",
		Username:  "jsmith",
		FirstName: "Jo",
		LastName:  "Smith",
		Email:     "jo@example.com",
		ClubCode:  "harbou",
		Roles:     []string{"club_secretary"},
	}}
	database := setupLoginTest(t, fake)
	club := testutil.SeedClub(t, database, "Harbour", 40)

	rec := postLogin("jsmith", "pw", nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/dashboard" {
		t.Fatalf("expected club manager to land on dashboard, got %q", loc)
	}

	user, err := database.Queries.GetUserByUsername(context.Background(), "jsmith")
	if err != nil {
		t.Fatalf("load upserted user: %v", err)
	}
	if user.Role != authz.RoleClubManager || !user.ClubID.Valid || user.ClubID.Int64 != club.ID {
		t.Fatalf("unexpected upserted user %+v", user)
	}
	if user.ExternalID.String != "4411" || user.DisplayName != "Jo Smith" {
		t.Fatalf("unexpected profile %+v", user)
	}
}

func TestLoginMembershipUnknownClubDowngradesManager(t *testing.T) {
	fake := &fakeMembers{member: &membership.Member{
		ID:       "9",
		Username: "pat",
		ClubCode: "NOWHERE",
		Roles:    []string{"club_manager"},
	}}
	database := setupLoginTest(t, fake)

	if rec := postLogin("pat", "pw", nil); rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	user, err := database.Queries.GetUserByUsername(context.Background(), "pat")
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	if user.Role != authz.RoleMember || user.ClubID.Valid {
		t.Fatalf("expected member without club, got %+v", user)
	}
}

func TestLoginMembershipRejected(t *testing.T) {
	setupLoginTest(t, &fakeMembers{err: membership.ErrInvalidCredentials})

	rec := postLogin("ghost", "pw", map[string]string{"HX-Request": "true"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid username or password") {
		t.Fatalf("expected feedback message, got %q", rec.Body.String())
	}
}

func TestLoginRequiresFields(t *testing.T) {
	setupLoginTest(t, nil)

	if rec := postLogin("", "pw", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	useTestConfig(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec := httptest.NewRecorder()
	HandleLogout(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("expected session cookie to be cleared")
	}
}

func TestSafeNext(t *testing.T) {
	tests := map[string]string{
		"":                     "",
		"/events/3":            "/events/3",
		"//evil.example":       "",
		"https://evil.example": "",
		"/\\evil.example":      "",
	}
	for in, want := range tests {
		if got := safeNext(in); got != want {
			t.Fatalf("safeNext(%q) = %q, want %q", in, got, want)
		}
	}
}
