//go:build smoke

package smoke

import (
	"bytes"
	"database/sql"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/rcl-league/portal/internal/testutil"
)

func TestServerStartup(t *testing.T) {
	tempDir := t.TempDir()
	srv := startServer(t, tempDir, filepath.Join(tempDir, "db", "smoke.db"))

	select {
	case <-srv.waitDone:
		t.Fatalf("server exited unexpectedly: %v\n%s", srv.waitErr, srv.output())
	default:
	}
}

type smokeServer struct {
	port     int
	stdout   bytes.Buffer
	stderr   bytes.Buffer
	waitDone chan struct{}
	waitErr  error
}

func (s *smokeServer) output() string {
	return "stdout:\n" + s.stdout.String() + "\nstderr:\n" + s.stderr.String()
}

func (s *smokeServer) url(path string) string {
	return fmt.Sprintf("http://localhost:%d%s", s.port, path)
}

// startServer builds cmd/server, starts it against dbPath and waits for
// /health.
func startServer(t *testing.T, tempDir, dbPath string) *smokeServer {
	t.Helper()

	repoRoot := findRepoRoot(t)
	binPath := filepath.Join(tempDir, "rcl-portal")
	buildCmd := exec.Command("go", "build", "-o", binPath, "./cmd/server")
	buildCmd.Dir = repoRoot
	buildOutput, err := buildCmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to build server: %v\n%s", err, buildOutput)
	}

	srv := &smokeServer{port: reservePort(t), waitDone: make(chan struct{})}
	configPath := filepath.Join(tempDir, "app.yaml")
	configBody := fmt.Sprintf(`app:
  name: "RCL Portal"
  environment: "development"
  port: %d
  base_url: "http://localhost:%d"

database:
  driver: "sqlite"
  filename: "%s"

jobs:
  participation_sweep: "0 3 * * *"
  roster_sync: "30 2 * * *"
`, srv.port, srv.port, filepath.ToSlash(dbPath))

	if err := os.WriteFile(configPath, []byte(configBody), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cmd := exec.Command(binPath, "-config", configPath)
	cmd.Dir = tempDir
	cmd.Stdout = &srv.stdout
	cmd.Stderr = &srv.stderr
	cmd.Env = append(os.Environ(), "APP_SECRET_KEY=smoke-test-secret")

	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	go func() {
		srv.waitErr = cmd.Wait()
		close(srv.waitDone)
	}()

	t.Cleanup(func() {
		if cmd.Process == nil {
			return
		}
		_ = cmd.Process.Signal(os.Interrupt)
		select {
		case <-srv.waitDone:
			return
		case <-time.After(5 * time.Second):
		}
		_ = cmd.Process.Kill()
		select {
		case <-srv.waitDone:
		case <-time.After(5 * time.Second):
			t.Logf("server process did not exit after kill")
		}
	})

	client := &http.Client{Timeout: 500 * time.Millisecond}
	deadline := time.Now().Add(10 * time.Second)
	for {
		select {
		case <-srv.waitDone:
			t.Fatalf("server exited before health check: %v\n%s", srv.waitErr, srv.output())
		default:
		}

		resp, err := client.Get(srv.url("/health"))
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return srv
			}
		}

		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for health check\n%s", srv.output())
		}

		time.Sleep(100 * time.Millisecond)
	}
}

func reservePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port
}

func findRepoRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}

	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	t.Fatal("failed to locate repo root with go.mod")
	return ""
}

func TestMigrationsApplied(t *testing.T) {
	db := testutil.NewTestDB(t)

	expectedTables := []string{
		"clubs",
		"users",
		"sports",
		"seasons",
		"events",
		"event_attendance",
		"tournament_matches",
		"point_entries",
	}

	for _, table := range expectedTables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name = ?",
			table,
		).Scan(&name)
		if err == sql.ErrNoRows {
			t.Fatalf("missing expected table %q after migrations", table)
		}
		if err != nil {
			t.Fatalf("query table %q existence: %v", table, err)
		}
	}
}

func TestForeignKeyIntegrity(t *testing.T) {
	db := testutil.NewTestDB(t)

	var foreignKeysEnabled int
	if err := db.QueryRow("PRAGMA foreign_keys;").Scan(&foreignKeysEnabled); err != nil {
		t.Fatalf("query foreign_keys pragma: %v", err)
	}
	if foreignKeysEnabled != 1 {
		t.Fatalf("expected foreign_keys pragma enabled, got %d", foreignKeysEnabled)
	}

	_, err := db.Exec(
		`INSERT INTO point_entries (season_id, club_id, category, points)
		 VALUES (9999, 9999, 'award', 1)`,
	)
	if err == nil {
		t.Fatal("expected foreign key constraint failure for invalid season_id")
	}
}
