// internal/api/nav/handlers.go
package nav

import (
	"context"
	"html"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/rs/zerolog/log"

	"github.com/rcl-league/portal/internal/api/apiutil"
	"github.com/rcl-league/portal/internal/api/authz"
	dbgen "github.com/rcl-league/portal/internal/db/generated"
)

const searchLimit = 10

var queries *dbgen.Queries

func InitHandlers(q *dbgen.Queries) {
	queries = q
}

type MenuItem struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

// MenuFor returns the navigation entries visible to user.
func MenuFor(user *authz.AuthUser) []MenuItem {
	if user == nil {
		return []MenuItem{{Label: "Sign in", Href: "/login"}}
	}

	items := []MenuItem{
		{Label: "Leaderboard", Href: "/leaderboard"},
		{Label: "Events", Href: "/events"},
	}
	if user.ClubID != nil || authz.IsAdmin(user) {
		items = append([]MenuItem{{Label: "Dashboard", Href: "/dashboard"}}, items...)
	}
	if authz.IsAdmin(user) {
		items = append(items, MenuItem{Label: "Clubs", Href: "/clubs"})
	}
	return items
}

// GET /api/v1/nav/menu
func HandleMenu(w http.ResponseWriter, r *http.Request) {
	items := MenuFor(authz.UserFromContext(r.Context()))
	if apiutil.IsJSONRequest(r) {
		if err := apiutil.WriteJSON(w, http.StatusOK, items); err != nil {
			log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write menu response")
		}
		return
	}
	apiutil.RenderHTMLComponent(r.Context(), w, menuComponent(items, r.URL.Query().Get("current")), nil, "Failed to render menu", "Failed to render menu")
}

// GET /api/v1/nav/menu/close
func HandleMenuClose(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
}

// GET /api/v1/nav/search?q=
func HandleSearch(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if queries == nil {
		logger.Error().Msg("Nav queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	term := strings.TrimSpace(r.URL.Query().Get("q"))
	results := []dbgen.Club{}
	if term != "" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		var err error
		results, err = queries.SearchClubs(ctx, dbgen.SearchClubsParams{Term: term, Limit: searchLimit})
		if err != nil {
			logger.Error().Err(err).Str("term", term).Msg("Club search failed")
			http.Error(w, "Search failed", http.StatusInternalServerError)
			return
		}
	}

	if apiutil.IsJSONRequest(r) {
		if err := apiutil.WriteJSON(w, http.StatusOK, results); err != nil {
			logger.Error().Err(err).Msg("Failed to write search response")
		}
		return
	}
	apiutil.RenderHTMLComponent(r.Context(), w, searchResults(results), nil, "Failed to render search results", "Search failed")
}

func menuComponent(items []MenuItem, current string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<ul class="flex gap-4 text-sm">`)
		for _, item := range items {
			class := "text-gray-700 hover:text-blue-700"
			if item.Href == current {
				class = "font-semibold text-blue-700"
			}
			b.WriteString(`<li><a class="` + class + `" href="` + html.EscapeString(item.Href) + `">` + html.EscapeString(item.Label) + `</a></li>`)
		}
		b.WriteString(`</ul>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func searchResults(clubs []dbgen.Club) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		if len(clubs) == 0 {
			b.WriteString(`<p class="text-sm text-gray-500">No clubs found</p>`)
		} else {
			b.WriteString(`<ul class="divide-y">`)
			for _, club := range clubs {
				b.WriteString(`<li class="py-1"><a href="/dashboard?club_id=` + strconv.FormatInt(club.ID, 10) + `">` +
					html.EscapeString(club.Name) + ` <span class="text-gray-500">` + html.EscapeString(club.Code) + `</span></a></li>`)
			}
			b.WriteString(`</ul>`)
		}
		_, err := io.WriteString(w, b.String())
		return err
	})
}
