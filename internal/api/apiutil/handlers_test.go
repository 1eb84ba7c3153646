package apiutil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rcl-league/portal/internal/api/authz"
)

type sampleRequest struct {
	Name  string `json:"name" validate:"required,max=10"`
	Email string `json:"contactEmail" validate:"omitempty,email"`
	Count int64  `json:"count" validate:"gte=0"`
}

func TestValidateStructUsesJSONNames(t *testing.T) {
	err := ValidateStruct(sampleRequest{Email: "not-an-email"})
	var fieldErr FieldError
	if !errors.As(err, &fieldErr) {
		t.Fatalf("expected FieldError, got %v", err)
	}
	if fieldErr.Field != "name" || fieldErr.Reason != "is required" {
		t.Fatalf("unexpected field error %+v", fieldErr)
	}

	err = ValidateStruct(sampleRequest{Name: "Harbour", Email: "not-an-email"})
	if !errors.As(err, &fieldErr) || fieldErr.Field != "contactEmail" {
		t.Fatalf("expected contactEmail error, got %v", err)
	}

	if err := ValidateStruct(sampleRequest{Name: "Harbour", Email: "a@b.co"}); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestIsJSONRequest(t *testing.T) {
	jsonReq := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
	jsonReq.Header.Set("Content-Type", "application/json")
	if !IsJSONRequest(jsonReq) {
		t.Fatal("expected JSON content type to be a JSON request")
	}

	acceptReq := httptest.NewRequest(http.MethodGet, "/", nil)
	acceptReq.Header.Set("Accept", "application/json")
	if !IsJSONRequest(acceptReq) {
		t.Fatal("expected Accept header to be a JSON request")
	}

	htmxReq := httptest.NewRequest(http.MethodGet, "/", nil)
	htmxReq.Header.Set("Accept", "application/json")
	htmxReq.Header.Set("HX-Request", "true")
	if IsJSONRequest(htmxReq) {
		t.Fatal("expected HTMX request to prefer HTML")
	}
}

func TestWriteErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"field", FieldError{Field: "name", Reason: "is required"}, http.StatusBadRequest},
		{"handler", HandlerError{Status: http.StatusConflict, Message: "exists"}, http.StatusConflict},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err, "test")
			if rec.Code != tt.want {
				t.Fatalf("status: got %d want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRequireClubAccessWritesStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	if RequireClubAccess(rec, req, 1) || rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	clubID := int64(2)
	req = req.WithContext(authz.ContextWithUser(context.Background(), &authz.AuthUser{ID: 5, Role: authz.RoleMember, ClubID: &clubID}))
	rec = httptest.NewRecorder()
	if RequireClubAccess(rec, req, 1) || rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	if !RequireClubAccess(rec, req, 2) {
		t.Fatalf("expected access to own club, got %d", rec.Code)
	}
}

func TestParseFields(t *testing.T) {
	if _, err := ParsePositiveInt64Field("0", "id"); err == nil {
		t.Fatal("expected zero to be rejected")
	}
	if v, err := ParseOptionalInt64Field("  ", "club_id"); err != nil || v != nil {
		t.Fatalf("expected nil for empty optional field, got %v (%v)", v, err)
	}
	if v, err := ParseRequiredInt64Field("-4", "points"); err != nil || v != -4 {
		t.Fatalf("expected -4, got %d (%v)", v, err)
	}
	if b, err := ParseBool("on"); err != nil || !b {
		t.Fatalf("expected true, got %v (%v)", b, err)
	}
	if FirstNonEmpty("", "  ", "x") != "x" {
		t.Fatal("expected first non-empty value")
	}
	d, err := ParseDateField("2024-05-10", "event_date")
	if err != nil || FormatDate(d) != "2024-05-10" {
		t.Fatalf("unexpected date %v (%v)", d, err)
	}
}
