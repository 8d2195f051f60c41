package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/workspace-bus/internal/config"
	"github.com/morezero/workspace-bus/pkg/transport"
	"github.com/morezero/workspace-bus/pkg/workflow"
)

const serverTestPrefix = "server:server_test"

const testSeed = `{
  "name": "test",
  "version": "1.0.0",
  "users": [
    {"email": "owner@example.com", "name": "Owner"},
    {"email": "guest@example.com", "name": "Guest"}
  ],
  "memberships": [{"owner": "owner@example.com", "member": "guest@example.com"}],
  "views": [{"owner": "owner@example.com", "name": "Notes", "layout": "Document"}]
}`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("SEED_FILE", "")
	return &config.Config{
		COMMSEnabled:       false,
		COMMSName:          "workspace-bus-test",
		StoreDriver:        config.StoreMemory,
		RequestTimeout:     5 * time.Second,
		HealthCheckTimeout: 5 * time.Second,
		SeedFile:           filepath.Join(t.TempDir(), "missing.json"),
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	s, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("%s - New: %v", serverTestPrefix, err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Close(ctx)
	})
	return s
}

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("%s - write seed: %v", serverTestPrefix, err)
	}
	return path
}

func startCOMMS(t *testing.T) string {
	t.Helper()
	ns, err := commsserver.NewServer(&commsserver.Options{
		Host:   "127.0.0.1",
		Port:   commsserver.RANDOM_PORT,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("%s - failed to create COMMS server: %v", serverTestPrefix, err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatalf("%s - COMMS server failed to start", serverTestPrefix)
	}
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns.ClientURL()
}

func TestHealthHandler_InMemory(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("%s - health got status %d, want 200", serverTestPrefix, rec.Code)
	}
	var out HealthOutput
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("%s - decode health: %v", serverTestPrefix, err)
	}
	if out.Status != "healthy" {
		t.Errorf("%s - Status = %q, want healthy", serverTestPrefix, out.Status)
	}
	want := HealthChecks{COMMS: CheckDisabled, Database: CheckDisabled}
	if out.Checks != want {
		t.Errorf("%s - Checks = %+v, want %+v", serverTestPrefix, out.Checks, want)
	}
	if out.Commands == 0 {
		t.Errorf("%s - expected registered commands in health output", serverTestPrefix)
	}
}

func TestReadyHandler(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("%s - ready got status %d, want 200", serverTestPrefix, rec.Code)
	}
	var out map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("%s - decode ready: %v", serverTestPrefix, err)
	}
	if out["status"] != "ready" {
		t.Errorf("%s - status = %q, want ready", serverTestPrefix, out["status"])
	}
}

func TestCommandsHandler(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	tests := []struct {
		name   string
		method string
		want   int
	}{
		{"get", http.MethodGet, http.StatusOK},
		{"post not allowed", http.MethodPost, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, "/commands", nil))
			if rec.Code != tt.want {
				t.Fatalf("%s - /commands %s got status %d, want %d", serverTestPrefix, tt.method, rec.Code, tt.want)
			}
			if tt.want != http.StatusOK {
				return
			}
			var out CommandsOutput
			if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
				t.Fatalf("%s - decode commands: %v", serverTestPrefix, err)
			}
			for _, id := range []string{"user.SignUp", "folder.CreateView", "folder.GatherPublishPayload"} {
				if !slices.Contains(out.Commands, id) {
					t.Errorf("%s - commands missing %s", serverTestPrefix, id)
				}
			}
			if len(out.Domains) != 2 {
				t.Errorf("%s - domains = %+v, want folder and user", serverTestPrefix, out.Domains)
			}
		})
	}
}

func TestHandleHome(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("%s - home got status %d, want 200", serverTestPrefix, rec.Code)
	}
	if rec.Header().Get("Content-Type") != "text/html; charset=utf-8" {
		t.Errorf("%s - Content-Type = %q, want text/html", serverTestPrefix, rec.Header().Get("Content-Type"))
	}
	body := rec.Body.String()
	if !strings.Contains(body, "healthy") || !strings.Contains(body, "user.SignUp") {
		t.Errorf("%s - body should contain health and commands", serverTestPrefix)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("%s - /other got status %d, want 404", serverTestPrefix, rec.Code)
	}
}

func TestNew_AppliesSeed(t *testing.T) {
	cfg := testConfig(t)
	cfg.SeedFile = writeSeed(t, testSeed)
	s := newTestServer(t, cfg)

	ctx := context.Background()
	owner := workflow.NewSession(s.Runtime().Dispatcher, "owner@example.com")
	guest := workflow.NewSession(s.Runtime().Dispatcher, "guest@example.com")

	wsID := owner.GetWorkspaceID(ctx)
	members := owner.GetWorkspaceMembers(ctx, wsID)
	if len(members) != 2 {
		t.Errorf("%s - members = %+v, want owner and guest", serverTestPrefix, members)
	}
	guest.OpenWorkspace(ctx, wsID)

	views := owner.GetAllWorkspaceViews(ctx)
	names := make([]string, 0, len(views))
	for _, v := range views {
		names = append(names, v.Name)
	}
	if !slices.Contains(names, "Notes") {
		t.Errorf("%s - workspace views = %v, want Notes", serverTestPrefix, names)
	}
}

func TestNew_InvalidSeed(t *testing.T) {
	cfg := testConfig(t)
	cfg.SeedFile = writeSeed(t, `{"users": [`)
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatalf("%s - expected error for malformed seed", serverTestPrefix)
	}
}

func TestNew_COMMSUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.COMMSEnabled = true
	cfg.COMMSURL = "nats://127.0.0.1:1"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatalf("%s - expected connect error", serverTestPrefix)
	}
}

func TestNew_ServesCommandsOverCOMMS(t *testing.T) {
	url := startCOMMS(t)
	cfg := testConfig(t)
	cfg.COMMSEnabled = true
	cfg.COMMSURL = url
	cfg.ChangeEventSubject = "test.changed"
	cfg.SeedFile = writeSeed(t, testSeed)
	s := newTestServer(t, cfg)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	var health HealthOutput
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatalf("%s - decode health: %v", serverTestPrefix, err)
	}
	if health.Checks.COMMS != CheckOK {
		t.Errorf("%s - COMMS check = %q, want ok", serverTestPrefix, health.Checks.COMMS)
	}

	nc, err := comms.Connect(url, comms.Timeout(5*time.Second))
	if err != nil {
		t.Fatalf("%s - connect client: %v", serverTestPrefix, err)
	}
	defer nc.Close()

	var mu sync.Mutex
	var seen []string
	sub, err := nc.Subscribe("test.changed", func(msg *comms.Msg) {
		mu.Lock()
		seen = append(seen, string(msg.Data))
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("%s - subscribe: %v", serverTestPrefix, err)
	}
	defer sub.Unsubscribe()
	if err := nc.Flush(); err != nil {
		t.Fatalf("%s - flush: %v", serverTestPrefix, err)
	}

	ctx := context.Background()
	remote := transport.NewRemote(nc, transport.RemoteOpts{Timeout: 5 * time.Second})
	owner := workflow.NewSession(remote, "owner@example.com")
	profile := owner.GetUserProfile(ctx)
	if profile.Email != "owner@example.com" {
		t.Errorf("%s - profile = %+v", serverTestPrefix, profile)
	}

	wsID := owner.GetWorkspaceID(ctx)
	view := owner.CreateView(ctx, wsID, "Remote")
	if got := owner.GetView(ctx, view.ID); got.Name != "Remote" {
		t.Errorf("%s - GetView name = %q, want Remote", serverTestPrefix, got.Name)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("%s - no change event on %s", serverTestPrefix, cfg.ChangeEventSubject)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
