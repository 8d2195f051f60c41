// Package server orchestrates all components: COMMS client, DB, command bus, transport bridge, HTTP health.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/workspace-bus/internal/config"
	"github.com/morezero/workspace-bus/pkg/bootstrap"
	"github.com/morezero/workspace-bus/pkg/cmderr"
	"github.com/morezero/workspace-bus/pkg/command"
	"github.com/morezero/workspace-bus/pkg/commsutil"
	"github.com/morezero/workspace-bus/pkg/db"
	"github.com/morezero/workspace-bus/pkg/dispatcher"
	"github.com/morezero/workspace-bus/pkg/events"
	"github.com/morezero/workspace-bus/pkg/registry"
	"github.com/morezero/workspace-bus/pkg/transport"
)

const logPrefix = "server:server"

// Health check states.
const (
	CheckOK       = "ok"
	CheckFailed   = "failed"
	CheckDisabled = "disabled"
)

// HealthChecks reports the state of each external dependency.
type HealthChecks struct {
	COMMS    string `json:"comms"`
	Database string `json:"database"`
}

// HealthOutput is the body of /health.
type HealthOutput struct {
	Status    string       `json:"status"`
	Checks    HealthChecks `json:"checks"`
	Commands  int          `json:"commands"`
	Timestamp string       `json:"timestamp"`
}

// CommandsOutput is the body of /commands.
type CommandsOutput struct {
	Domains  []registry.DomainInfo `json:"domains"`
	Commands []string              `json:"commands"`
}

// Server is the workspace-bus orchestrator.
type Server struct {
	cfg        *config.Config
	nc         *comms.Conn
	pool       *pgxpool.Pool
	runtime    *bootstrap.Runtime
	bridge     *transport.Bridge
	httpServer *http.Server
}

// Run starts the server, blocks until shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	slog.Info(fmt.Sprintf("%s - Starting %s", logPrefix, cfg.COMMSName))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	s.ListenHTTP()

	slog.Info(fmt.Sprintf("%s - %s is ready", logPrefix, cfg.COMMSName))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer shutdownCancel()
	if err := s.Close(shutdownCtx); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

// New wires stores, COMMS, the command bus and the transport bridge, then
// applies the seed file. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config) (_ *Server, err error) {
	s := &Server{cfg: cfg}
	defer func() {
		if err != nil {
			s.closeResources()
		}
	}()

	// Step 1: Storage
	params := bootstrap.Params{
		Middleware: []dispatcher.Middleware{dispatcher.Logging(), dispatcher.Metrics()},
		OnForgetError: func(id command.ID, e *cmderr.Error) {
			slog.Warn(fmt.Sprintf("%s - fire-and-forget %s failed: %v", logPrefix, id, e))
		},
	}
	if cfg.UsesPostgres() {
		if err := s.openDatabase(ctx); err != nil {
			return nil, err
		}
		params.WorkspaceStore = db.NewWorkspaceStore(s.pool)
		params.FolderStore = db.NewViewStore(s.pool)
	}

	// Step 2: COMMS
	if cfg.COMMSEnabled {
		nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to connect to COMMS: %w", logPrefix, err)
		}
		s.nc = nc
		publisherOpts := &events.CommsPublisherOpts{}
		if cfg.ChangeEventSubject != "" {
			publisherOpts.GlobalChangeSubject = cfg.ChangeEventSubject
		}
		params.Publisher = events.NewCommsPublisher(nc, publisherOpts)
	}

	// Step 3: Command bus
	rt, err := bootstrap.NewRuntime(params)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to build runtime: %w", logPrefix, err)
	}
	s.runtime = rt

	// Step 4: Seed
	seed, err := bootstrap.LoadSeedConfig(cfg.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to load seed: %w", logPrefix, err)
	}
	if err := bootstrap.ApplySeed(ctx, rt.Dispatcher, seed); err != nil {
		return nil, fmt.Errorf("%s - failed to apply seed: %w", logPrefix, err)
	}

	// Step 5: Serve commands over COMMS
	if s.nc != nil {
		bridge, err := transport.Serve(ctx, s.nc, rt.Dispatcher, transport.ServeOpts{
			SubjectPrefix:  cfg.CommandSubjectPrefix,
			Queue:          cfg.CommandQueue,
			RequestTimeout: cfg.RequestTimeout,
		})
		if err != nil {
			return nil, err
		}
		s.bridge = bridge
	}

	return s, nil
}

func (s *Server) openDatabase(ctx context.Context) error {
	if s.cfg.EnsureDatabase {
		if err := db.EnsureDatabase(ctx, s.cfg.DatabaseURL); err != nil {
			return fmt.Errorf("%s - failed to ensure database: %w", logPrefix, err)
		}
	}
	pool, err := db.NewPool(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
	}
	s.pool = pool

	if s.cfg.RunMigrations {
		migrations, err := db.LoadMigrations(s.cfg.MigrationPath)
		if err != nil {
			return fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
		}
		if err := db.RunMigrations(ctx, pool, migrations); err != nil {
			return fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
		}
	}
	return nil
}

// Runtime returns the wired command bus.
func (s *Server) Runtime() *bootstrap.Runtime {
	return s.runtime
}

// Conn returns the COMMS connection, or nil when COMMS is disabled.
func (s *Server) Conn() *comms.Conn {
	return s.nc
}

// Handler returns the HTTP mux for health, readiness and the command listing.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHome())
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})
	mux.HandleFunc("/commands", s.handleCommands)
	return mux
}

// ListenHTTP starts the HTTP server in the background.
func (s *Server) ListenHTTP() {
	httpAddr := fmt.Sprintf(":%d", s.cfg.HTTPPort)
	s.httpServer = &http.Server{Addr: httpAddr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP health server listening on %s", logPrefix, httpAddr))
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()
}

// Health checks COMMS and the database.
func (s *Server) Health(ctx context.Context) *HealthOutput {
	out := &HealthOutput{
		Status:    "healthy",
		Checks:    HealthChecks{COMMS: CheckDisabled, Database: CheckDisabled},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if s.runtime != nil {
		out.Commands = len(s.runtime.Registry.Commands())
	}
	if s.nc != nil {
		out.Checks.COMMS = CheckOK
		if !s.nc.IsConnected() {
			out.Checks.COMMS = CheckFailed
			out.Status = "unhealthy"
		}
	}
	if s.pool != nil {
		out.Checks.Database = CheckOK
		if err := s.pool.Ping(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - database ping failed: %v", logPrefix, err))
			out.Checks.Database = CheckFailed
			out.Status = "unhealthy"
		}
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
	defer cancel()
	h := s.Health(ctx)
	w.Header().Set("Content-Type", "application/json")
	if h.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(h)
}

func (s *Server) commands() *CommandsOutput {
	reg := s.runtime.Registry
	ids := reg.Commands()
	out := &CommandsOutput{Domains: reg.Domains(), Commands: make([]string, 0, len(ids))}
	for _, id := range ids {
		out.Commands = append(out.Commands, id.String())
	}
	return out
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.commands())
}

// homePageTemplate lists health and the registered commands.
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{.Name}}</title>
  <style>
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    h1, h2 { color: #0066cc; }
    .status-healthy { color: #0066cc; font-weight: bold; }
    .status-unhealthy { color: #cc0000; font-weight: bold; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; }
    th { background: #f0f4f8; color: #0066cc; }
  </style>
</head>
<body>
  <h1>{{.Name}}</h1>

  <section>
    <h2>Health</h2>
    <p>Status: <span class="status-{{.Health.Status}}">{{.Health.Status}}</span></p>
    <p>COMMS: {{.Health.Checks.COMMS}}</p>
    <p>Database: {{.Health.Checks.Database}}</p>
    <p>Timestamp: {{.Health.Timestamp}}</p>
  </section>

  <section>
    <h2>Domains</h2>
    <table>
      <thead><tr><th>Domain</th><th>Version</th></tr></thead>
      <tbody>
        {{range .Commands.Domains}}<tr><td>{{.Domain}}</td><td>{{.Version}}</td></tr>{{end}}
      </tbody>
    </table>
  </section>

  <section>
    <h2>Commands ({{len .Commands.Commands}})</h2>
    <table>
      <thead><tr><th>Command</th></tr></thead>
      <tbody>
        {{range .Commands.Commands}}<tr><td>{{.}}</td></tr>{{end}}
      </tbody>
    </table>
  </section>
</body>
</html>
`

type homeData struct {
	Name     string
	Health   *HealthOutput
	Commands *CommandsOutput
}

func (s *Server) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()

		data := homeData{Name: s.cfg.COMMSName, Health: s.Health(ctx), Commands: s.commands()}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", logPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}

// Close stops the bridge, waits for in-flight commands and releases connections.
func (s *Server) Close(ctx context.Context) error {
	var errs []error
	if s.bridge != nil {
		if err := s.bridge.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s - http shutdown: %w", logPrefix, err))
		}
	}
	if s.runtime != nil {
		done := make(chan struct{})
		go func() {
			s.runtime.Dispatcher.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			slog.Warn(fmt.Sprintf("%s - in-flight commands still running at shutdown", logPrefix))
		}
	}
	s.closeResources()
	return errors.Join(errs...)
}

func (s *Server) closeResources() {
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			s.nc.Close()
		}
		s.nc = nil
	}
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
}
