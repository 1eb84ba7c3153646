package dashboard

import (
	"context"
	"html"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

// DashboardLayout renders the full dashboard body, including the club picker
// for admins.
func DashboardLayout(data DashboardData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<section class="space-y-6"><h1 class="text-2xl font-semibold">Club dashboard</h1>`)
		if data.ShowClubSelector {
			b.WriteString(`<form method="get" action="/dashboard"><select name="club_id" onchange="this.form.submit()"><option value="">Choose a club</option>`)
			for _, club := range data.Clubs {
				selected := ""
				if club.ID == data.ClubID {
					selected = ` selected`
				}
				b.WriteString(`<option value="` + strconv.FormatInt(club.ID, 10) + `"` + selected + `>` + html.EscapeString(club.Name) + `</option>`)
			}
			b.WriteString(`</select></form>`)
		}
		b.WriteString(`<div id="dashboard-metrics">`)
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
		if data.ClubID > 0 {
			if err := DashboardMetrics(data).Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</div></section>`)
		return err
	})
}

// DashboardMetrics renders the club's standing, recent ledger entries and
// attendance.
func DashboardMetrics(data DashboardData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="grid grid-cols-3 gap-4"><div class="rounded border bg-white p-4"><p class="text-sm">` + html.EscapeString(data.ClubName) +
			` &middot; ` + html.EscapeString(data.SeasonName) + `</p><p class="text-3xl font-semibold" id="club-total">` + strconv.FormatInt(data.Total, 10) + ` pts</p></div>`)
		rank := "Unranked"
		if data.Rank > 0 {
			rank = strconv.Itoa(data.Rank) + " of " + strconv.Itoa(data.ClubCount)
		}
		b.WriteString(`<div class="rounded border bg-white p-4"><p class="text-sm">Rank</p><p class="text-3xl font-semibold" id="club-rank">` + rank + `</p></div>`)
		b.WriteString(`<div class="rounded border bg-white p-4 text-sm"><p>Placement ` + strconv.FormatInt(data.Breakdown.Placement, 10) +
			`</p><p>Participation ` + strconv.FormatInt(data.Breakdown.Participation, 10) +
			`</p><p>Awards ` + strconv.FormatInt(data.Breakdown.Awards, 10) +
			`</p><p>Deductions ` + strconv.FormatInt(data.Breakdown.Deductions, 10) + `</p></div></div>`)

		b.WriteString(`<h2 class="text-lg font-semibold">Recent points</h2>`)
		if len(data.RecentEntries) == 0 {
			b.WriteString(`<p class="text-sm text-muted-foreground">No points recorded this season.</p>`)
		} else {
			b.WriteString(`<ul class="text-sm">`)
			for _, entry := range data.RecentEntries {
				label := entry.Reason
				if entry.EventName != "" {
					label = entry.EventName + ": " + label
				}
				points := strconv.FormatInt(entry.Points, 10)
				if entry.Points > 0 {
					points = "+" + points
				}
				b.WriteString(`<li>` + entry.Date.Format("2006-01-02") + ` ` + points + ` ` + html.EscapeString(label) + `</li>`)
			}
			b.WriteString(`</ul>`)
		}

		b.WriteString(`<h2 class="text-lg font-semibold">Attendance</h2>`)
		if len(data.Attendance) == 0 {
			b.WriteString(`<p class="text-sm text-muted-foreground">No attendance recorded this season.</p>`)
		} else {
			b.WriteString(`<table class="w-full text-sm"><tbody>`)
			for _, row := range data.Attendance {
				b.WriteString(`<tr><td>` + html.EscapeString(row.EventName) + `</td><td>` + row.EventDate.Format("2006-01-02") +
					`</td><td>` + strconv.FormatInt(row.Attended, 10) + `/` + strconv.FormatInt(row.Eligible, 10) +
					`</td><td>` + strconv.FormatFloat(row.Percent, 'f', 1, 64) + `%</td></tr>`)
			}
			b.WriteString(`</tbody></table>`)
		}
		_, err := io.WriteString(w, b.String())
		return err
	})
}
