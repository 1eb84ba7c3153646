package points

import (
	"context"
	"html"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	dbgen "github.com/rcl-league/portal/internal/db/generated"
)

// LedgerComponent renders point entries newest first.
func LedgerComponent(entries []dbgen.ListPointEntriesRow) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		if len(entries) == 0 {
			b.WriteString(`<p class="text-sm text-muted-foreground">No points recorded yet.</p>`)
			_, err := io.WriteString(w, b.String())
			return err
		}
		b.WriteString(`<table class="w-full text-sm" id="point-ledger"><thead><tr><th class="text-left">Date</th><th class="text-left">Club</th><th class="text-left">Event</th><th>Category</th><th class="text-right">Points</th><th class="text-left">Reason</th></tr></thead><tbody>`)
		for _, entry := range entries {
			event := ""
			if entry.EventName.Valid {
				event = entry.EventName.String
			}
			points := strconv.FormatInt(entry.Points, 10)
			class := "text-right"
			if entry.Points > 0 {
				points = "+" + points
			} else if entry.Points < 0 {
				class += " text-destructive"
			}
			b.WriteString(`<tr id="point-` + strconv.FormatInt(entry.ID, 10) + `"><td>` + entry.CreatedAt.Format("2006-01-02") +
				`</td><td>` + html.EscapeString(entry.ClubName) + `</td><td>` + html.EscapeString(event) +
				`</td><td>` + html.EscapeString(entry.Category) + `</td><td class="` + class + `">` + points +
				`</td><td>` + html.EscapeString(entry.Reason) + `</td></tr>`)
		}
		b.WriteString(`</tbody></table>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}
