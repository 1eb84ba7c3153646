package email

import (
	"fmt"
	"strings"
	"time"

	"github.com/rcl-league/portal/internal/leagues"
)

type PointsAwardedDetails struct {
	ClubName  string
	EventName string
	Category  string
	Points    int64
	Reason    string
}

type DeductionDetails struct {
	ClubName   string
	SeasonName string
	Points     int64
	Reason     string
	Note       string
}

type TournamentResult struct {
	Place    int
	ClubName string
	Points   int64
}

type TournamentResultsDetails struct {
	ClubName  string
	EventName string
	EventDate time.Time
	Place     int
	Points    int64
	Results   []TournamentResult
}

func BuildPointsAwarded(details PointsAwardedDetails) Notification {
	clubName := fallback(details.ClubName, "your club")
	eventName := fallback(details.EventName, "a league event")
	category := fallback(details.Category, "points")

	lines := []string{
		fmt.Sprintf("%s has been awarded %s for %s.", clubName, pluralPoints(details.Points), eventName),
		"",
		fmt.Sprintf("Category: %s", category),
	}
	if reason := strings.TrimSpace(details.Reason); reason != "" {
		lines = append(lines, fmt.Sprintf("Details: %s", reason))
	}

	return Notification{
		Subject: fmt.Sprintf("League points awarded - %s", eventName),
		Body:    strings.Join(lines, "\n"),
	}
}

func BuildDeductionIssued(details DeductionDetails) Notification {
	clubName := fallback(details.ClubName, "your club")
	seasonName := fallback(details.SeasonName, "the current season")
	points := details.Points
	if points < 0 {
		points = -points
	}

	lines := []string{
		fmt.Sprintf("A deduction of %s has been recorded against %s in %s.", pluralPoints(points), clubName, seasonName),
		"",
		fmt.Sprintf("Reason: %s", leagues.ReasonLabel(details.Reason)),
	}
	if note := strings.TrimSpace(details.Note); note != "" {
		lines = append(lines, fmt.Sprintf("Note: %s", note))
	}
	lines = append(lines, "", "Contact the league office if you believe this is in error.")

	return Notification{
		Subject: fmt.Sprintf("Points deduction - %s", clubName),
		Body:    strings.Join(lines, "\n"),
	}
}

func BuildTournamentResults(details TournamentResultsDetails) Notification {
	clubName := fallback(details.ClubName, "your club")
	eventName := fallback(details.EventName, "the tournament")

	lines := []string{
		fmt.Sprintf("Final results for %s are in.", eventName),
	}
	if !details.EventDate.IsZero() {
		lines = append(lines, fmt.Sprintf("Date: %s", details.EventDate.Format("Monday, Jan 2, 2006")))
	}
	lines = append(lines, "")
	if details.Place > 0 {
		lines = append(lines, fmt.Sprintf("%s finished %s and earned %s.", clubName, leagues.Ordinal(details.Place), pluralPoints(details.Points)))
	}
	if len(details.Results) > 0 {
		lines = append(lines, "", "Standings:")
		for _, result := range details.Results {
			lines = append(lines, fmt.Sprintf("  %s  %s (%s)", leagues.Ordinal(result.Place), result.ClubName, pluralPoints(result.Points)))
		}
	}

	return Notification{
		Subject: fmt.Sprintf("Tournament results - %s", eventName),
		Body:    strings.Join(lines, "\n"),
	}
}

func pluralPoints(points int64) string {
	if points == 1 || points == -1 {
		return fmt.Sprintf("%d point", points)
	}
	return fmt.Sprintf("%d points", points)
}

func fallback(value, def string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return def
}
