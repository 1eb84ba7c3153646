package auth

import (
	"context"
	"database/sql"
	"errors"
	"html"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/rs/zerolog/log"

	"github.com/rcl-league/portal/internal/api/apiutil"
	"github.com/rcl-league/portal/internal/api/authz"
	"github.com/rcl-league/portal/internal/api/htmx"
	"github.com/rcl-league/portal/internal/config"
	dbgen "github.com/rcl-league/portal/internal/db/generated"
	"github.com/rcl-league/portal/internal/membership"
	"github.com/rcl-league/portal/internal/ratelimit"
)

const loginQueryTimeout = 10 * time.Second

// Authenticator verifies credentials against the membership API.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*membership.Member, error)
}

var (
	queries     *dbgen.Queries
	queriesOnce sync.Once
	appConfig   *config.Config
	members     Authenticator
	limiter     *ratelimit.Limiter
)

var errInvalidLogin = errors.New("invalid username or password")

// InitHandlers wires the auth handlers. members may be nil when the
// membership API is not configured.
func InitHandlers(q *dbgen.Queries, cfg *config.Config, authenticator Authenticator, lim *ratelimit.Limiter) {
	if q == nil {
		return
	}
	queriesOnce.Do(func() {
		queries = q
	})
	appConfig = cfg
	members = authenticator
	limiter = lim
}

func loadQueries() *dbgen.Queries {
	return queries
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=200"`
	Next     string `json:"next" validate:"max=500"`
}

// GET /login
func HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if user := authz.UserFromContext(r.Context()); user != nil {
		http.Redirect(w, r, authz.LandingPath(user), http.StatusSeeOther)
		return
	}
	apiutil.RenderPage(w, r, "Sign in", loginForm(safeNext(r.URL.Query().Get("next")), ""))
}

// POST /auth/login
func HandleLogin(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries()
	if q == nil || appConfig == nil {
		logger.Error().Msg("Auth handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var req loginRequest
	if strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		if err := apiutil.DecodeJSON(r, &req); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		req.Username = r.FormValue("username")
		req.Password = r.FormValue("password")
		req.Next = r.FormValue("next")
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := apiutil.ValidateStruct(req); err != nil {
		apiutil.WriteError(w, r, err, "Invalid login request")
		return
	}

	ip := ratelimit.GetClientIP(r, appConfig.Security.TrustProxy)
	if limiter != nil {
		if result := limiter.CheckLogin(req.Username, ip); !result.Allowed {
			ratelimit.LogRateLimitExceeded(req.Username, ip, result.Reason)
			w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds()+0.5)))
			writeLoginError(w, r, req.Next, http.StatusTooManyRequests, "Too many sign-in attempts. Try again later.")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), loginQueryTimeout)
	defer cancel()

	user, source, err := authenticate(ctx, q, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, errInvalidLogin) {
			if limiter != nil && limiter.RecordFailure(req.Username, ip) {
				ratelimit.LogRateLimitExceeded(req.Username, ip, "lockout")
			}
			logger.Info().
				Str("username", ratelimit.SanitizeIdentifier(req.Username)).
				Msg("Sign-in rejected")
			writeLoginError(w, r, req.Next, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		logger.Error().Err(err).Msg("Sign-in failed")
		writeLoginError(w, r, req.Next, http.StatusInternalServerError, "Sign-in is unavailable right now")
		return
	}

	if limiter != nil {
		limiter.RecordSuccess(req.Username, ip)
	}
	if err := SetSessionCookie(w, user); err != nil {
		logger.Error().Err(err).Msg("Failed to issue session")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	logger.Info().
		Int64("user_id", user.ID).
		Str("role", user.Role).
		Str("source", source).
		Msg("User signed in")

	target := safeNext(req.Next)
	if target == "" {
		target = authz.LandingPath(user)
	}
	if apiutil.IsJSONRequest(r) {
		if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{
			"id":       user.ID,
			"role":     user.Role,
			"clubId":   user.ClubID,
			"name":     user.DisplayName,
			"redirect": target,
		}); err != nil {
			logger.Error().Err(err).Msg("Failed to write login response")
		}
		return
	}
	if htmx.IsRequest(r) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// POST /auth/logout
func HandleLogout(w http.ResponseWriter, r *http.Request) {
	ClearSessionCookie(w)
	if user := authz.UserFromContext(r.Context()); user != nil {
		log.Ctx(r.Context()).Info().Int64("user_id", user.ID).Msg("User signed out")
	}
	if htmx.IsRequest(r) {
		w.Header().Set("HX-Redirect", "/login")
		w.WriteHeader(http.StatusOK)
		return
	}
	if apiutil.IsJSONRequest(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// authenticate checks local credentials first. Accounts without a local
// password fall through to the membership API.
func authenticate(ctx context.Context, q *dbgen.Queries, username, password string) (*authz.AuthUser, string, error) {
	local, err := q.GetUserByUsername(ctx, username)
	switch {
	case err == nil && local.PasswordHash.Valid:
		if !VerifyPassword(local.PasswordHash.String, password) || local.Status != userStatusActive {
			return nil, "", errInvalidLogin
		}
		return authUserFromRecord(local.ID, local.Role, local.ClubID, local.DisplayName), "local", nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, "", err
	}

	if members == nil {
		return nil, "", errInvalidLogin
	}
	member, err := members.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, membership.ErrInvalidCredentials) {
			return nil, "", errInvalidLogin
		}
		return nil, "", err
	}

	clubID := sql.NullInt64{}
	if member.ClubCode != "" {
		club, err := q.GetClubByCode(ctx, member.ClubCode)
		switch {
		case err == nil:
			clubID = sql.NullInt64{Int64: club.ID, Valid: true}
		case errors.Is(err, sql.ErrNoRows):
			log.Ctx(ctx).Warn().Str("club_code", member.ClubCode).Msg("Member club not registered in portal")
		default:
			return nil, "", err
		}
	}

	role := member.PortalRole()
	if role == authz.RoleClubManager && !clubID.Valid {
		role = authz.RoleMember
	}
	record, err := q.UpsertExternalUser(ctx, dbgen.UpsertExternalUserParams{
		Username:    member.Username,
		DisplayName: member.DisplayName(),
		Email:       apiutil.ToNullString(member.Email),
		Role:        role,
		ClubID:      clubID,
		ExternalID:  string(member.ID),
	})
	if err != nil {
		return nil, "", err
	}
	if record.Status != userStatusActive {
		return nil, "", errInvalidLogin
	}
	return authUserFromRecord(record.ID, record.Role, record.ClubID, record.DisplayName), "membership", nil
}

// safeNext accepts only same-site absolute paths.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}
	return next
}

func writeLoginError(w http.ResponseWriter, r *http.Request, next string, status int, message string) {
	if apiutil.IsJSONRequest(r) {
		if err := apiutil.WriteJSON(w, status, map[string]string{"error": message}); err != nil {
			log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write login error")
		}
		return
	}
	if htmx.IsRequest(r) {
		apiutil.WriteHTMLFeedback(w, status, message)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := loginForm(safeNext(next), message).Render(r.Context(), w); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to render login form")
	}
}

func loginForm(next, message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<section class="mx-auto max-w-sm rounded border bg-white p-6">`)
		b.WriteString(`<h1 class="mb-4 text-xl font-semibold">Sign in</h1>`)
		b.WriteString(`<form method="post" action="/auth/login" hx-post="/auth/login" hx-target="#login-feedback" class="space-y-3">`)
		if next != "" {
			b.WriteString(`<input type="hidden" name="next" value="` + html.EscapeString(next) + `">`)
		}
		b.WriteString(`<label class="block text-sm">Username<input name="username" autocomplete="username" required class="mt-1 w-full rounded border p-2"></label>`)
		b.WriteString(`<label class="block text-sm">Password<input name="password" type="password" autocomplete="current-password" required class="mt-1 w-full rounded border p-2"></label>`)
		b.WriteString(`<div id="login-feedback">`)
		if message != "" {
			b.WriteString(`<div class="text-red-700" role="status">` + html.EscapeString(message) + `</div>`)
		}
		b.WriteString(`</div>`)
		b.WriteString(`<button type="submit" class="w-full rounded bg-blue-700 p-2 text-white">Sign in</button>`)
		b.WriteString(`</form></section>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}
