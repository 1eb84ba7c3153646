package apiutil

import (
	"net/http"

	"github.com/a-h/templ"

	"github.com/rcl-league/portal/internal/api/authz"
	"github.com/rcl-league/portal/internal/templates/layouts"
)

// RenderPage renders content inside the base layout for the signed-in user.
func RenderPage(w http.ResponseWriter, r *http.Request, title string, content templ.Component) bool {
	var pageUser *layouts.PageUser
	if user := authz.UserFromContext(r.Context()); user != nil {
		pageUser = &layouts.PageUser{DisplayName: user.DisplayName, Role: user.Role}
	}
	return RenderHTMLComponent(r.Context(), w, layouts.Base(title, pageUser, content), nil, "Failed to render "+title+" page", "Failed to render page")
}
