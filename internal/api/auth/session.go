package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rcl-league/portal/internal/api/authz"
)

const (
	sessionCookieName = "rcl_session"
	authSessionTTL    = 8 * time.Hour
	sessionIssuer     = "rcl-portal"
	userStatusActive  = "active"
)

var errAuthConfigMissing = errors.New("auth configuration missing")

type sessionClaims struct {
	Role        string `json:"role"`
	ClubID      *int64 `json:"club_id,omitempty"`
	DisplayName string `json:"name"`
	jwt.RegisteredClaims
}

// now is replaced in tests.
var now = time.Now

func isSecureCookie() bool {
	return appConfig == nil || appConfig.App.Environment != "development"
}

func secretKey() ([]byte, error) {
	if appConfig == nil || appConfig.App.SecretKey == "" {
		return nil, errAuthConfigMissing
	}
	return []byte(appConfig.App.SecretKey), nil
}

// SetSessionCookie issues a signed session for user.
func SetSessionCookie(w http.ResponseWriter, user *authz.AuthUser) error {
	if w == nil || user == nil {
		return errors.New("session requires response writer and user")
	}

	token, expiresAt, err := signSession(user)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecureCookie(),
		SameSite: http.SameSiteLaxMode,
		Expires:  expiresAt,
		MaxAge:   int(authSessionTTL.Seconds()),
	})
	return nil
}

func ClearSessionCookie(w http.ResponseWriter) {
	if w == nil {
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecureCookie(),
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

func signSession(user *authz.AuthUser) (string, time.Time, error) {
	key, err := secretKey()
	if err != nil {
		return "", time.Time{}, err
	}

	issuedAt := now()
	expiresAt := issuedAt.Add(authSessionTTL)
	claims := sessionClaims{
		Role:        user.Role,
		ClubID:      user.ClubID,
		DisplayName: user.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return token, expiresAt, nil
}

func parseSession(token string) (*sessionClaims, error) {
	key, err := secretKey()
	if err != nil {
		return nil, err
	}

	var claims sessionClaims
	_, err = jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return nil, err
	}
	return &claims, nil
}

// UserFromRequest resolves the session cookie to a user. It returns nil, nil
// for anonymous requests and clears cookies that no longer verify.
func UserFromRequest(w http.ResponseWriter, r *http.Request) (*authz.AuthUser, error) {
	if r == nil {
		return nil, nil
	}

	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return nil, nil
		}
		return nil, err
	}

	claims, err := parseSession(cookie.Value)
	if err != nil {
		if errors.Is(err, errAuthConfigMissing) {
			return nil, err
		}
		ClearSessionCookie(w)
		return nil, nil
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		ClearSessionCookie(w)
		return nil, nil
	}

	user := &authz.AuthUser{
		ID:          userID,
		Role:        claims.Role,
		ClubID:      claims.ClubID,
		DisplayName: claims.DisplayName,
	}

	q := loadQueries()
	if q == nil {
		return user, nil
	}

	// Role and club changes take effect on the next request.
	record, err := q.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			ClearSessionCookie(w)
			return nil, nil
		}
		return nil, err
	}
	if record.Status != userStatusActive {
		ClearSessionCookie(w)
		return nil, nil
	}
	return authUserFromRecord(record.ID, record.Role, record.ClubID, record.DisplayName), nil
}

func authUserFromRecord(id int64, role string, clubID sql.NullInt64, displayName string) *authz.AuthUser {
	user := &authz.AuthUser{ID: id, Role: role, DisplayName: displayName}
	if clubID.Valid {
		club := clubID.Int64
		user.ClubID = &club
	}
	return user
}
