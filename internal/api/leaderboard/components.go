package leaderboard

import (
	"context"
	"html"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/rcl-league/portal/internal/leagues"
)

func leaderboardPageComponent(view leaderboardView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<section class="space-y-4"><h1 class="text-2xl font-semibold">Leaderboard</h1>`)
		b.WriteString(`<form class="flex gap-2" hx-get="/api/v1/leaderboard" hx-target="#leaderboard-table" hx-trigger="change">`)
		b.WriteString(`<select name="season_id">`)
		for _, season := range view.Seasons {
			id := strconv.FormatInt(season.ID, 10)
			selected := ""
			if season.ID == view.Season.ID {
				selected = ` selected`
			}
			b.WriteString(`<option value="` + id + `"` + selected + `>` + html.EscapeString(season.Name) + `</option>`)
		}
		b.WriteString(`</select><select name="sport_id"><option value="">All sports</option>`)
		for _, sport := range view.Sports {
			id := strconv.FormatInt(sport.ID, 10)
			selected := ""
			if view.Sport != nil && view.Sport.ID == sport.ID {
				selected = ` selected`
			}
			b.WriteString(`<option value="` + id + `"` + selected + `>` + html.EscapeString(sport.Name) + `</option>`)
		}
		b.WriteString(`</select></form><div id="leaderboard-table">`)
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
		if err := tableComponent(view.Entries).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</div></section>`)
		return err
	})
}

func tableComponent(entries []leagues.LeaderboardEntry) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		if len(entries) == 0 {
			b.WriteString(`<p class="text-sm text-muted-foreground">No active clubs.</p>`)
			_, err := io.WriteString(w, b.String())
			return err
		}
		b.WriteString(`<table class="w-full text-sm"><thead><tr><th>#</th><th class="text-left">Club</th><th>Placement</th><th>Participation</th><th>Awards</th><th>Deductions</th><th>Total</th></tr></thead><tbody>`)
		for _, entry := range entries {
			b.WriteString(`<tr data-club-id="` + strconv.FormatInt(entry.ClubID, 10) + `"><td>` + strconv.Itoa(entry.Rank) +
				`</td><td>` + html.EscapeString(entry.ClubName) + `</td><td>` + strconv.FormatInt(entry.Placement, 10) +
				`</td><td>` + strconv.FormatInt(entry.Participation, 10) + `</td><td>` + strconv.FormatInt(entry.Awards, 10) +
				`</td><td>` + strconv.FormatInt(entry.Deductions, 10) + `</td><td class="font-semibold">` + strconv.FormatInt(entry.Total, 10) +
				`</td></tr>`)
		}
		b.WriteString(`</tbody></table>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}
