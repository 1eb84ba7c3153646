package layouts

import (
	"context"
	"html"
	"io"

	"github.com/a-h/templ"
)

const appTitle = "RCL Portal"

// PageUser is the signed-in user shown in the header; nil renders a signed-out
// header.
type PageUser struct {
	DisplayName string
	Role        string
}

// Base wraps page content in the portal shell. The navigation menu is loaded
// over HTMX so it always reflects the current session.
func Base(title string, user *PageUser, content templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		pageTitle := appTitle
		if title != "" {
			pageTitle = title + " | " + appTitle
		}
		if _, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
			`<meta name="viewport" content="width=device-width, initial-scale=1">`+
			`<title>`+html.EscapeString(pageTitle)+`</title>`+
			`<link rel="stylesheet" href="/static/css/main.css">`+
			`<script src="/static/js/htmx.min.js" defer></script>`+
			`</head><body class="min-h-screen bg-gray-50 text-gray-900">`); err != nil {
			return err
		}
		if err := header(w, user); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `<main id="main-content" class="mx-auto max-w-6xl p-6">`); err != nil {
			return err
		}
		if content != nil {
			if err := content.Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</main></body></html>`)
		return err
	})
}

func header(w io.Writer, user *PageUser) error {
	if _, err := io.WriteString(w, `<header class="border-b bg-white"><div class="mx-auto flex max-w-6xl items-center justify-between p-4">`+
		`<a href="/" class="text-lg font-semibold">`+appTitle+`</a>`); err != nil {
		return err
	}
	if user == nil {
		_, err := io.WriteString(w, `<a href="/login" class="text-sm text-blue-700">Sign in</a></div></header>`)
		return err
	}
	_, err := io.WriteString(w, `<nav id="nav-menu" hx-get="/api/v1/nav/menu" hx-trigger="load" class="flex gap-4 text-sm"></nav>`+
		`<div class="flex items-center gap-3 text-sm"><span>`+html.EscapeString(user.DisplayName)+`</span>`+
		`<form method="post" action="/auth/logout"><button type="submit" class="text-blue-700">Sign out</button></form>`+
		`</div></div></header>`)
	return err
}
