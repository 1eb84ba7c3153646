package apiutil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/rcl-league/portal/internal/api/authz"
	"github.com/rcl-league/portal/internal/api/htmx"
)

type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

type HandlerError struct {
	Status  int
	Message string
	Err     error
}

func (e HandlerError) Error() string {
	return e.Message
}

func (e HandlerError) Unwrap() error {
	return e.Err
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// ValidateStruct runs validator tags on a request DTO and returns the first
// failure as a FieldError.
func ValidateStruct(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return err
	}
	fe := validationErrors[0]
	return FieldError{Field: fe.Field(), Reason: validationReason(fe)}
}

func validationReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be %s or greater", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be %s or less", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "alphanum":
		return "must contain only letters and digits"
	default:
		return "is invalid"
	}
}

func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("missing request body")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	if err := encoder.Encode(payload); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// IsJSONRequest reports whether the client sent or wants JSON rather than an
// HTMX fragment.
func IsJSONRequest(r *http.Request) bool {
	if htmx.IsRequest(r) {
		return false
	}
	contentType := strings.ToLower(r.Header.Get("Content-Type"))
	if strings.HasPrefix(contentType, "application/json") {
		return true
	}
	accept := strings.ToLower(r.Header.Get("Accept"))
	return strings.Contains(accept, "application/json")
}

// RenderHTMLComponent renders component with optional response headers. It
// logs and writes a 500 on failure and reports whether rendering succeeded.
func RenderHTMLComponent(ctx context.Context, w http.ResponseWriter, component templ.Component, headers map[string]string, logMessage, errorMessage string) bool {
	var buf bytes.Buffer
	if err := component.Render(ctx, &buf); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg(logMessage)
		http.Error(w, errorMessage, http.StatusInternalServerError)
		return false
	}
	for key, value := range headers {
		w.Header().Set(key, value)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg(logMessage)
		return false
	}
	return true
}

// WriteHTMLFeedback writes a small status message fragment for HTMX targets.
func WriteHTMLFeedback(w http.ResponseWriter, status int, message string) {
	class := "text-green-700"
	if status >= http.StatusBadRequest {
		class = "text-red-700"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `<div class="%s" role="status">%s</div>`, class, html.EscapeString(message))
}

// WriteError maps a handler error to an HTTP response. FieldError and
// HandlerError keep their message; anything else is logged as a 500.
func WriteError(w http.ResponseWriter, r *http.Request, err error, logMessage string) {
	var handlerErr HandlerError
	if errors.As(err, &handlerErr) {
		if handlerErr.Status >= http.StatusInternalServerError {
			log.Ctx(r.Context()).Error().Err(handlerErr.Err).Msg(logMessage)
		}
		http.Error(w, handlerErr.Message, handlerErr.Status)
		return
	}
	var fieldErr FieldError
	if errors.As(err, &fieldErr) {
		http.Error(w, fieldErr.Error(), http.StatusBadRequest)
		return
	}
	log.Ctx(r.Context()).Error().Err(err).Msg(logMessage)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// RequireRole writes 401/403 and returns false when the signed-in user lacks
// every listed role.
func RequireRole(w http.ResponseWriter, r *http.Request, roles ...string) bool {
	return writeAccessError(w, r, authz.RequireRole(r.Context(), roles...), "role", 0)
}

func RequireClubAccess(w http.ResponseWriter, r *http.Request, clubID int64) bool {
	return writeAccessError(w, r, authz.RequireClubAccess(r.Context(), clubID), "club", clubID)
}

func RequireClubManager(w http.ResponseWriter, r *http.Request, clubID int64) bool {
	return writeAccessError(w, r, authz.RequireClubManager(r.Context(), clubID), "club manager", clubID)
}

func writeAccessError(w http.ResponseWriter, r *http.Request, err error, scope string, clubID int64) bool {
	if err == nil {
		return true
	}
	logger := log.Ctx(r.Context())
	user := authz.UserFromContext(r.Context())

	switch {
	case errors.Is(err, authz.ErrUnauthenticated):
		logEvent := logger.Warn().Str("scope", scope)
		if clubID > 0 {
			logEvent = logEvent.Int64("club_id", clubID)
		}
		logEvent.Msg("Access denied: unauthenticated")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	case errors.Is(err, authz.ErrForbidden):
		logEvent := logger.Warn().Str("scope", scope)
		if clubID > 0 {
			logEvent = logEvent.Int64("club_id", clubID)
		}
		if user != nil {
			logEvent = logEvent.Int64("user_id", user.ID).Str("role", user.Role)
		}
		logEvent.Msg("Access denied: forbidden")
		http.Error(w, "Forbidden", http.StatusForbidden)
	default:
		logger.Error().Err(err).Str("scope", scope).Msg("Access check failed")
		http.Error(w, "Failed to authorize request", http.StatusInternalServerError)
	}
	return false
}
