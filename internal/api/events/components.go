package events

import (
	"context"
	"html"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/rcl-league/portal/internal/api/apiutil"
	dbgen "github.com/rcl-league/portal/internal/db/generated"
)

func eventsPageComponent(events []dbgen.Event) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<section class="space-y-4"><h1 class="text-2xl font-semibold">Events</h1><div id="event-list">`); err != nil {
			return err
		}
		if err := eventListComponent(events).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</div><div id="event-detail"></div></section>`)
		return err
	})
}

func eventListComponent(events []dbgen.Event) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		if len(events) == 0 {
			b.WriteString(`<p class="text-sm text-muted-foreground">No events scheduled.</p>`)
			_, err := io.WriteString(w, b.String())
			return err
		}
		b.WriteString(`<table class="w-full text-sm"><thead><tr><th class="text-left">Event</th><th>Date</th><th>Kind</th><th>Status</th><th></th></tr></thead><tbody>`)
		for _, event := range events {
			id := strconv.FormatInt(event.ID, 10)
			detail := `/api/v1/events/` + id + `/attendance`
			if event.Kind == "tournament" {
				detail = `/api/v1/events/` + id + `/standings`
			}
			b.WriteString(`<tr id="event-` + id + `"><td>` + html.EscapeString(event.Name) + `</td><td>` + apiutil.FormatDate(event.EventDate) +
				`</td><td>` + html.EscapeString(event.Kind) + `</td><td>` + html.EscapeString(event.Status) +
				`</td><td><button hx-get="` + detail + `" hx-target="#event-detail">View</button></td></tr>`)
		}
		b.WriteString(`</tbody></table>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func attendanceComponent(eventID int64, rows []attendanceRow) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<table class="w-full text-sm" data-event-id="` + strconv.FormatInt(eventID, 10) + `"><thead><tr><th class="text-left">Club</th><th>Registered</th><th>Attended</th><th>Eligible</th><th>%</th><th>Points</th></tr></thead><tbody>`)
		for _, row := range rows {
			b.WriteString(`<tr><td>` + html.EscapeString(row.ClubName) + `</td><td>` + strconv.FormatInt(row.RegisteredCount, 10) +
				`</td><td>` + strconv.FormatInt(row.AttendedCount, 10) + `</td><td>` + strconv.FormatInt(row.EligibleCount, 10) +
				`</td><td>` + strconv.FormatFloat(row.Percent, 'f', 1, 64) + `</td><td>` + strconv.Itoa(row.ProjectedPoints) + `</td></tr>`)
		}
		b.WriteString(`</tbody></table>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}
