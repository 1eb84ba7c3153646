package tournaments

import (
	"context"
	"html"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	dbgen "github.com/rcl-league/portal/internal/db/generated"
	"github.com/rcl-league/portal/internal/leagues"
)

func matchListComponent(eventID int64, matches []dbgen.TournamentMatch, names map[int64]string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="space-y-2" id="bracket-` + strconv.FormatInt(eventID, 10) + `">`)
		round := int64(-1)
		for _, m := range matches {
			if !m.IsThirdPlace && m.Round != round {
				if round != -1 {
					b.WriteString(`</ul>`)
				}
				round = m.Round
				b.WriteString(`<h3 class="font-semibold">Round ` + strconv.FormatInt(round, 10) + `</h3><ul>`)
			}
			if m.IsThirdPlace {
				if round != -1 {
					b.WriteString(`</ul>`)
				}
				round = -1
				b.WriteString(`<h3 class="font-semibold">Third place</h3><ul>`)
			}
			b.WriteString(`<li>` + side(m.HomeClubID.Int64, m.HomeClubID.Valid, names) + ` ` + score(m.HomeScore.Int64, m.HomeScore.Valid) +
				` v ` + score(m.AwayScore.Int64, m.AwayScore.Valid) + ` ` + side(m.AwayClubID.Int64, m.AwayClubID.Valid, names) + `</li>`)
		}
		if len(matches) > 0 {
			b.WriteString(`</ul>`)
		}
		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func standingsComponent(resp standingsResponse) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<section><h2 class="text-lg font-semibold">` + html.EscapeString(resp.EventName) + `</h2>`)
		if !resp.Complete {
			b.WriteString(`<p class="text-sm">Bracket in progress; placings are provisional.</p>`)
		}
		b.WriteString(`<table class="w-full text-sm"><thead><tr><th>Place</th><th class="text-left">Club</th><th>W</th><th>L</th><th>Points</th></tr></thead><tbody>`)
		for _, row := range resp.Standings {
			place := "-"
			if row.Place > 0 {
				place = leagues.Ordinal(row.Place)
			}
			b.WriteString(`<tr><td>` + place + `</td><td>` + html.EscapeString(row.ClubName) + `</td><td>` + strconv.Itoa(row.Wins) +
				`</td><td>` + strconv.Itoa(row.Losses) + `</td><td>` + strconv.Itoa(row.Points) + `</td></tr>`)
		}
		b.WriteString(`</tbody></table></section>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func side(clubID int64, ok bool, names map[int64]string) string {
	if !ok {
		return `<span class="text-muted-foreground">TBD</span>`
	}
	name := names[clubID]
	if name == "" {
		name = "Club " + strconv.FormatInt(clubID, 10)
	}
	return html.EscapeString(name)
}

func score(value int64, ok bool) string {
	if !ok {
		return "-"
	}
	return strconv.FormatInt(value, 10)
}
