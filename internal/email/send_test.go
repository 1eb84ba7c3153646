package email

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rcl-league/portal/internal/config"
	dbgen "github.com/rcl-league/portal/internal/db/generated"
	"github.com/rcl-league/portal/internal/testutil"
)

type sentEmail struct {
	recipient string
	subject   string
	ctxErr    error
}

type fakeEmailSender struct {
	mu    sync.Mutex
	sent  []sentEmail
	delay time.Duration
	done  chan struct{}
}

func newFakeEmailSender(delay time.Duration) *fakeEmailSender {
	return &fakeEmailSender{delay: delay, done: make(chan struct{}, 4)}
}

func (f *fakeEmailSender) Send(ctx context.Context, recipient, subject, body string) error {
	return f.SendFrom(ctx, recipient, subject, body, "")
}

func (f *fakeEmailSender) SendFrom(ctx context.Context, recipient, subject, body, sender string) error {
	select {
	case <-ctx.Done():
	case <-time.After(f.delay):
	}
	f.mu.Lock()
	f.sent = append(f.sent, sentEmail{recipient: recipient, subject: subject, ctxErr: ctx.Err()})
	f.mu.Unlock()
	f.done <- struct{}{}
	return ctx.Err()
}

func (f *fakeEmailSender) messages() []sentEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentEmail(nil), f.sent...)
}

func waitForSend(t *testing.T, f *fakeEmailSender) {
	t.Helper()

	select {
	case <-f.done:
	case <-time.After(time.Second):
		t.Fatal("expected notification to be sent")
	}
}

var testNotification = Notification{Subject: "Subject", Body: "Body"}

func TestSendClubNotificationSurvivesRequestCancellation(t *testing.T) {
	database := testutil.NewTestDB(t)
	club := testutil.SeedClub(t, database, "Harbour", 10)
	sender := newFakeEmailSender(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	SendClubNotification(ctx, database.Queries, sender, club.ID, testNotification, nil)
	cancel()

	waitForSend(t, sender)
	sent := sender.messages()
	if len(sent) != 1 {
		t.Fatalf("expected one email, got %d", len(sent))
	}
	if sent[0].recipient != club.ContactEmail {
		t.Fatalf("expected recipient %q, got %q", club.ContactEmail, sent[0].recipient)
	}
	if sent[0].ctxErr != nil {
		t.Fatalf("expected detached context, got %v", sent[0].ctxErr)
	}
}

func TestSendClubNotificationSkips(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()
	noContact, err := database.Queries.CreateClub(ctx, dbgen.CreateClubParams{
		Name:   "Quiet",
		Code:   "QT",
		Status: "active",
	})
	if err != nil {
		t.Fatalf("create club: %v", err)
	}
	club := testutil.SeedClub(t, database, "Harbour", 10)

	sender := newFakeEmailSender(0)
	SendClubNotification(ctx, database.Queries, sender, noContact.ID, testNotification, nil)
	SendClubNotification(ctx, database.Queries, sender, 9999, testNotification, nil)
	SendClubNotification(ctx, database.Queries, sender, club.ID, Notification{}, nil)
	SendClubNotification(ctx, database.Queries, nil, club.ID, testNotification, nil)

	time.Sleep(50 * time.Millisecond)
	if sent := sender.messages(); len(sent) != 0 {
		t.Fatalf("expected no emails, got %+v", sent)
	}
}

func TestNewSESClientDisabled(t *testing.T) {
	client, err := NewSESClient(context.Background(), config.EmailConfig{})
	if err != nil || client != nil {
		t.Fatalf("expected nil client for disabled email, got %v, %v", client, err)
	}
	if _, err := NewSESClient(context.Background(), config.EmailConfig{Enabled: true, Region: "us-east-1"}); err == nil {
		t.Fatal("expected error without credentials")
	}
}

func TestBuildTournamentResults(t *testing.T) {
	n := BuildTournamentResults(TournamentResultsDetails{
		ClubName:  "Harbour",
		EventName: "Summer Cup",
		EventDate: time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		Place:     2,
		Points:    7,
		Results: []TournamentResult{
			{Place: 1, ClubName: "Cedar", Points: 10},
			{Place: 2, ClubName: "Harbour", Points: 7},
		},
	})
	if n.Subject != "Tournament results - Summer Cup" {
		t.Fatalf("unexpected subject %q", n.Subject)
	}
	for _, want := range []string{"Harbour finished 2nd and earned 7 points.", "1st  Cedar (10 points)", "Friday, May 10, 2024"} {
		if !strings.Contains(n.Body, want) {
			t.Fatalf("expected body to contain %q, got:\n%s", want, n.Body)
		}
	}
}

func TestBuildDeductionIssued(t *testing.T) {
	n := BuildDeductionIssued(DeductionDetails{ClubName: "Harbour", SeasonName: "Season 2024", Points: -5, Reason: "no_show"})
	if !strings.Contains(n.Body, "deduction of 5 points") || !strings.Contains(n.Body, "Reason: No show") {
		t.Fatalf("unexpected body:\n%s", n.Body)
	}
}

func TestBuildPointsAwarded(t *testing.T) {
	n := BuildPointsAwarded(PointsAwardedDetails{ClubName: "Harbour", EventName: "Regatta", Category: "participation", Points: 1})
	if n.Subject != "League points awarded - Regatta" || !strings.Contains(n.Body, "awarded 1 point for Regatta") {
		t.Fatalf("unexpected notification: %+v", n)
	}
}
