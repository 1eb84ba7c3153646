package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	dbgen "github.com/rcl-league/portal/internal/db/generated"
	"github.com/rcl-league/portal/internal/leagues"
	"github.com/rcl-league/portal/internal/membership"
	"github.com/rcl-league/portal/internal/testutil"
)

var testTiers = []leagues.ParticipationTier{
	{MinPercent: 75, Points: 5},
	{MinPercent: 50, Points: 3},
}

func TestRegisterValidation(t *testing.T) {
	var nilService *Service
	noop := func(context.Context) error { return nil }
	if err := nilService.Register(Job{Name: "job", Cron: "* * * * *", Run: noop}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}

	svc := newTestService(t)
	tests := []struct {
		name string
		job  Job
		want error
	}{
		{"empty name", Job{Name: " ", Cron: "* * * * *", Run: noop}, ErrEmptyJobName},
		{"empty cron", Job{Name: "job", Run: noop}, ErrEmptyCronExpr},
		{"nil run", Job{Name: "job", Cron: "* * * * *"}, ErrNilJobRun},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.Register(tt.job); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if err := svc.Register(Job{Name: "job", Cron: "every tuesday", Run: noop}); err == nil {
		t.Fatal("expected invalid cron expression to be rejected")
	}
	if err := svc.Register(Job{Name: "job", Cron: "0 3 * * *", Run: noop}); err != nil {
		t.Fatalf("register job: %v", err)
	}
	if err := svc.Register(Job{Name: "job", Cron: "0 4 * * *", Run: noop}); !errors.Is(err, ErrDuplicateJob) {
		t.Fatalf("expected ErrDuplicateJob, got %v", err)
	}
	if names := svc.JobNames(); len(names) != 1 || names[0] != "job" {
		t.Fatalf("unexpected job names %v", names)
	}
}

func TestRunNowUsesJobContext(t *testing.T) {
	svc := newTestService(t)
	svc.Start()

	deadlines := make(chan bool, 1)
	err := svc.Register(Job{
		Name:    "probe",
		Cron:    "0 0 1 1 *",
		Timeout: time.Minute,
		Run: func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			deadlines <- ok
			return nil
		},
	})
	if err != nil {
		t.Fatalf("register job: %v", err)
	}
	if err := svc.RunNow("probe"); err != nil {
		t.Fatalf("run now: %v", err)
	}

	select {
	case hasDeadline := <-deadlines:
		if !hasDeadline {
			t.Fatal("expected job context to carry the job timeout")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for job run")
	}

	if err := svc.RunNow("missing"); err == nil {
		t.Fatal("expected error for unregistered job")
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService()
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	t.Cleanup(func() { _ = svc.Stop() })
	return svc
}

func TestSweepParticipationAwards(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()

	if awarded, err := SweepParticipationAwards(ctx, database, testTiers, nil); err != nil || awarded != 0 {
		t.Fatalf("expected no-op without an active season, got %d, %v", awarded, err)
	}

	season := testutil.SeedSeason(t, database, 2024)
	sport := testutil.SeedSport(t, database, "Orienteering")
	done := testutil.SeedEvent(t, database, season.ID, sport.ID, "Night Score", "participation")
	upcoming := testutil.SeedEvent(t, database, season.ID, sport.ID, "Sprint Series", "participation")
	club := testutil.SeedClub(t, database, "Ash", 10)

	for _, event := range []dbgen.Event{done, upcoming} {
		if _, err := database.Queries.UpsertAttendance(ctx, dbgen.UpsertAttendanceParams{
			EventID: event.ID, ClubID: club.ID, RegisteredCount: 8, AttendedCount: 8, EligibleCount: 10,
		}); err != nil {
			t.Fatalf("record attendance: %v", err)
		}
	}
	if err := database.Queries.UpdateEventStatus(ctx, done.ID, "completed"); err != nil {
		t.Fatalf("complete event: %v", err)
	}

	awarded, err := SweepParticipationAwards(ctx, database, testTiers, nil)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if awarded != 1 {
		t.Fatalf("expected 1 event awarded, got %d", awarded)
	}

	entries, err := database.Queries.ListPointEntries(ctx, dbgen.ListPointEntriesParams{SeasonID: season.ID, Limit: 10})
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Points != 5 || !entries[0].EventID.Valid || entries[0].EventID.Int64 != done.ID {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	awarded, err = SweepParticipationAwards(ctx, database, testTiers, nil)
	if err != nil || awarded != 0 {
		t.Fatalf("expected second sweep to find nothing, got %d, %v", awarded, err)
	}
}

type fakeCounter map[string]int

func (f fakeCounter) ClubMemberCount(ctx context.Context, clubCode string) (int, error) {
	if clubCode == "BROKEN" {
		return 0, fmt.Errorf("membership unavailable")
	}
	count, ok := f[clubCode]
	if !ok {
		return 0, fmt.Errorf("%w: %s", membership.ErrClubNotFound, clubCode)
	}
	return count, nil
}

func TestSyncClubRosters(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()

	ash := testutil.SeedClub(t, database, "Ash", 10)
	birch := testutil.SeedClub(t, database, "Birch", 12)
	cedar := testutil.SeedClub(t, database, "Cedar", 7)
	broken := testutil.SeedClub(t, database, "Broken", 3)

	updated, err := SyncClubRosters(ctx, database, fakeCounter{"ASH": 14, "BIRCH": 12})
	if err != nil {
		t.Fatalf("sync rosters: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 club updated, got %d", updated)
	}

	want := map[int64]int64{ash.ID: 14, birch.ID: 12, cedar.ID: 7, broken.ID: 3}
	for id, count := range want {
		club, err := database.Queries.GetClub(ctx, id)
		if err != nil {
			t.Fatalf("get club %d: %v", id, err)
		}
		if club.MemberCount != count {
			t.Fatalf("club %s: expected member count %d, got %d", club.Name, count, club.MemberCount)
		}
	}

	if _, err := SyncClubRosters(ctx, database, nil); err == nil {
		t.Fatal("expected error without a membership client")
	}
}
