// internal/api/clubs/handlers.go
package clubs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/nyaruka/phonenumbers"
	"github.com/rs/zerolog/log"

	"github.com/rcl-league/portal/internal/api/apiutil"
	dbgen "github.com/rcl-league/portal/internal/db/generated"
)

const (
	clubQueryTimeout = 5 * time.Second
	clubIDParam      = "id"
)

var (
	queries     *dbgen.Queries
	queriesOnce sync.Once
	phoneRegion = "US"
)

type clubRequest struct {
	Name         string `json:"name" validate:"required,max=100"`
	Code         string `json:"code" validate:"required,min=2,max=10,alphanum"`
	ContactName  string `json:"contactName" validate:"max=100"`
	ContactEmail string `json:"contactEmail" validate:"omitempty,email,max=254"`
	ContactPhone string `json:"contactPhone" validate:"max=32"`
	MemberCount  int64  `json:"memberCount" validate:"gte=0"`
	Status       string `json:"status" validate:"omitempty,oneof=active inactive"`
}

// InitHandlers must be called during server startup before handling requests.
// region is the ISO country used for phone numbers without a country code.
func InitHandlers(q *dbgen.Queries, region string) {
	if q == nil {
		return
	}
	queriesOnce.Do(func() {
		queries = q
	})
	if region != "" {
		phoneRegion = strings.ToUpper(region)
	}
}

func loadQueries() *dbgen.Queries {
	return queries
}

// NormalizePhone returns raw in E.164 form. Empty input stays empty.
func NormalizePhone(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	number, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsValidNumber(number) {
		return "", apiutil.FieldError{Field: "contactPhone", Reason: "must be a valid phone number"}
	}
	return phonenumbers.Format(number, phonenumbers.E164), nil
}

// GET /clubs
func HandleClubsPage(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), clubQueryTimeout)
	defer cancel()

	clubs, err := q.ListClubs(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch clubs")
		http.Error(w, "Failed to load clubs", http.StatusInternalServerError)
		return
	}

	apiutil.RenderPage(w, r, "Clubs", clubsPageComponent(clubs))
}

// GET /api/v1/clubs
func HandleClubList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), clubQueryTimeout)
	defer cancel()

	var (
		clubs []dbgen.Club
		err   error
	)
	if r.URL.Query().Get("status") == "active" {
		clubs, err = q.ListActiveClubs(ctx)
	} else {
		clubs, err = q.ListClubs(ctx)
	}
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch clubs")
		http.Error(w, "Failed to load clubs", http.StatusInternalServerError)
		return
	}

	if apiutil.IsJSONRequest(r) {
		if err := apiutil.WriteJSON(w, http.StatusOK, clubs); err != nil {
			logger.Error().Err(err).Msg("Failed to write clubs response")
		}
		return
	}
	renderClubList(r.Context(), w, clubs)
}

// GET /api/v1/clubs/{id}
func HandleClubGet(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	clubID, err := apiutil.PathID(r, clubIDParam)
	if err != nil {
		http.Error(w, "Invalid club ID", http.StatusBadRequest)
		return
	}
	if !apiutil.RequireClubAccess(w, r, clubID) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), clubQueryTimeout)
	defer cancel()

	club, err := q.GetClub(ctx, clubID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Club not found", http.StatusNotFound)
			return
		}
		logger.Error().Err(err).Int64("club_id", clubID).Msg("Failed to fetch club")
		http.Error(w, "Failed to load club", http.StatusInternalServerError)
		return
	}

	if apiutil.IsJSONRequest(r) {
		if err := apiutil.WriteJSON(w, http.StatusOK, club); err != nil {
			logger.Error().Err(err).Int64("club_id", clubID).Msg("Failed to write club response")
		}
		return
	}
	apiutil.RenderHTMLComponent(r.Context(), w, clubDetailComponent(club), nil, "Failed to render club", "Failed to render club")
}

// POST /api/v1/clubs
func HandleClubCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	req, err := decodeClubRequest(r)
	if err != nil {
		apiutil.WriteError(w, r, err, "Invalid club request")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), clubQueryTimeout)
	defer cancel()

	club, err := q.CreateClub(ctx, dbgen.CreateClubParams{
		Name:         req.Name,
		Code:         req.Code,
		ContactName:  req.ContactName,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		MemberCount:  req.MemberCount,
		Status:       req.Status,
	})
	if err != nil {
		if apiutil.IsUniqueViolation(err) {
			http.Error(w, "A club with this name or code already exists", http.StatusConflict)
			return
		}
		logger.Error().Err(err).Str("code", req.Code).Msg("Failed to create club")
		http.Error(w, "Failed to create club", http.StatusInternalServerError)
		return
	}

	logger.Info().Int64("club_id", club.ID).Str("code", club.Code).Msg("Club created")

	if apiutil.IsJSONRequest(r) {
		if err := apiutil.WriteJSON(w, http.StatusCreated, club); err != nil {
			logger.Error().Err(err).Int64("club_id", club.ID).Msg("Failed to write club response")
		}
		return
	}
	listAndRender(ctx, w, r, q)
}

// PUT /api/v1/clubs/{id}
func HandleClubUpdate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	clubID, err := apiutil.PathID(r, clubIDParam)
	if err != nil {
		http.Error(w, "Invalid club ID", http.StatusBadRequest)
		return
	}

	req, err := decodeClubRequest(r)
	if err != nil {
		apiutil.WriteError(w, r, err, "Invalid club request")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), clubQueryTimeout)
	defer cancel()

	club, err := q.UpdateClub(ctx, dbgen.UpdateClubParams{
		ID:           clubID,
		Name:         req.Name,
		Code:         req.Code,
		ContactName:  req.ContactName,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		MemberCount:  req.MemberCount,
		Status:       req.Status,
	})
	if err != nil {
		if apiutil.IsUniqueViolation(err) {
			http.Error(w, "A club with this name or code already exists", http.StatusConflict)
			return
		}
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Club not found", http.StatusNotFound)
			return
		}
		logger.Error().Err(err).Int64("club_id", clubID).Msg("Failed to update club")
		http.Error(w, "Failed to update club", http.StatusInternalServerError)
		return
	}

	if apiutil.IsJSONRequest(r) {
		if err := apiutil.WriteJSON(w, http.StatusOK, club); err != nil {
			logger.Error().Err(err).Int64("club_id", clubID).Msg("Failed to write club response")
		}
		return
	}
	listAndRender(ctx, w, r, q)
}

// DELETE /api/v1/clubs/{id}
func HandleClubDelete(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	clubID, err := apiutil.PathID(r, clubIDParam)
	if err != nil {
		http.Error(w, "Invalid club ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), clubQueryTimeout)
	defer cancel()

	deleted, err := q.DeleteClub(ctx, clubID)
	if err != nil {
		if apiutil.IsForeignKeyViolation(err) {
			http.Error(w, "Club has tournament matches; mark it inactive instead", http.StatusConflict)
			return
		}
		logger.Error().Err(err).Int64("club_id", clubID).Msg("Failed to delete club")
		http.Error(w, "Failed to delete club", http.StatusInternalServerError)
		return
	}
	if deleted == 0 {
		http.Error(w, "Club not found", http.StatusNotFound)
		return
	}

	logger.Info().Int64("club_id", clubID).Msg("Club deleted")

	if apiutil.IsJSONRequest(r) {
		if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"deleted": true}); err != nil {
			logger.Error().Err(err).Int64("club_id", clubID).Msg("Failed to write club response")
		}
		return
	}
	listAndRender(ctx, w, r, q)
}

func listAndRender(ctx context.Context, w http.ResponseWriter, r *http.Request, q *dbgen.Queries) {
	clubs, err := q.ListClubs(ctx)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to fetch clubs")
		http.Error(w, "Failed to load clubs", http.StatusInternalServerError)
		return
	}
	renderClubList(r.Context(), w, clubs)
}

func decodeClubRequest(r *http.Request) (clubRequest, error) {
	var req clubRequest
	if apiutil.IsJSONRequest(r) {
		if err := apiutil.DecodeJSON(r, &req); err != nil {
			return req, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid JSON body", Err: err}
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return req, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid form data", Err: err}
		}
		memberCount, err := apiutil.ParseNonNegativeInt64Field(apiutil.FirstNonEmpty(r.FormValue("member_count"), r.FormValue("memberCount"), "0"), "member_count")
		if err != nil {
			return req, apiutil.HandlerError{Status: http.StatusBadRequest, Message: err.Error(), Err: err}
		}
		req = clubRequest{
			Name:         r.FormValue("name"),
			Code:         r.FormValue("code"),
			ContactName:  apiutil.FirstNonEmpty(r.FormValue("contact_name"), r.FormValue("contactName")),
			ContactEmail: apiutil.FirstNonEmpty(r.FormValue("contact_email"), r.FormValue("contactEmail")),
			ContactPhone: apiutil.FirstNonEmpty(r.FormValue("contact_phone"), r.FormValue("contactPhone")),
			MemberCount:  memberCount,
			Status:       r.FormValue("status"),
		}
	}
	return normalizeClubRequest(req)
}

func normalizeClubRequest(req clubRequest) (clubRequest, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.ContactName = strings.TrimSpace(req.ContactName)
	req.ContactEmail = strings.ToLower(strings.TrimSpace(req.ContactEmail))
	req.Status = strings.TrimSpace(req.Status)
	if err := apiutil.ValidateStruct(req); err != nil {
		return req, err
	}
	if req.Status == "" {
		req.Status = "active"
	}
	phone, err := NormalizePhone(req.ContactPhone, phoneRegion)
	if err != nil {
		return req, err
	}
	req.ContactPhone = phone
	return req, nil
}

func renderClubList(ctx context.Context, w http.ResponseWriter, clubs []dbgen.Club) {
	apiutil.RenderHTMLComponent(ctx, w, clubListComponent(clubs), nil, "Failed to render club list", "Failed to render club list")
}

func clubsPageComponent(clubs []dbgen.Club) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<h1 class="mb-4 text-2xl font-semibold">Clubs</h1>`)
		b.WriteString(`<form hx-post="/api/v1/clubs" hx-target="#club-list" class="mb-6 grid grid-cols-2 gap-2">`)
		for _, field := range []struct{ name, label, kind string }{
			{"name", "Name", "text"},
			{"code", "Code", "text"},
			{"contact_name", "Contact name", "text"},
			{"contact_email", "Contact email", "email"},
			{"contact_phone", "Contact phone", "tel"},
			{"member_count", "Members", "number"},
		} {
			fmt.Fprintf(&b, `<label class="text-sm">%s<input name="%s" type="%s" class="mt-1 w-full rounded border p-1"></label>`, field.label, field.name, field.kind)
		}
		b.WriteString(`<button type="submit" class="col-span-2 rounded bg-blue-700 p-2 text-white">Add club</button></form>`)
		b.WriteString(`<div id="club-list">`)
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
		if err := clubListComponent(clubs).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</div>`)
		return err
	})
}

func clubListComponent(clubs []dbgen.Club) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		if len(clubs) == 0 {
			b.WriteString(`<p class="text-sm text-gray-500">No clubs yet</p>`)
			_, err := io.WriteString(w, b.String())
			return err
		}
		b.WriteString(`<table class="w-full text-sm"><thead><tr><th class="text-left">Club</th><th>Code</th><th>Members</th><th>Status</th><th></th></tr></thead><tbody>`)
		for _, club := range clubs {
			id := strconv.FormatInt(club.ID, 10)
			b.WriteString(`<tr id="club-` + id + `"><td>` + html.EscapeString(club.Name) + `</td>`)
			b.WriteString(`<td class="text-center">` + html.EscapeString(club.Code) + `</td>`)
			b.WriteString(`<td class="text-center">` + strconv.FormatInt(club.MemberCount, 10) + `</td>`)
			b.WriteString(`<td class="text-center">` + html.EscapeString(club.Status) + `</td>`)
			b.WriteString(`<td><button hx-delete="/api/v1/clubs/` + id + `" hx-target="#club-list" hx-confirm="Delete this club?" class="text-red-700">Delete</button></td></tr>`)
		}
		b.WriteString(`</tbody></table>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func clubDetailComponent(club dbgen.Club) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<dl class="grid grid-cols-2 gap-1 text-sm">`)
		for _, row := range [][2]string{
			{"Club", club.Name},
			{"Code", club.Code},
			{"Contact", club.ContactName},
			{"Email", club.ContactEmail},
			{"Phone", club.ContactPhone},
			{"Members", strconv.FormatInt(club.MemberCount, 10)},
			{"Status", club.Status},
		} {
			b.WriteString(`<dt class="font-medium">` + row[0] + `</dt><dd>` + html.EscapeString(row[1]) + `</dd>`)
		}
		b.WriteString(`</dl>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}
