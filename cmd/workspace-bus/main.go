// Package main is the entrypoint for workspace-bus.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"

	"github.com/morezero/workspace-bus/internal/config"
	"github.com/morezero/workspace-bus/internal/server"
	"github.com/morezero/workspace-bus/pkg/bootstrap"
	"github.com/morezero/workspace-bus/pkg/db"
	"github.com/morezero/workspace-bus/pkg/folder"
	"github.com/morezero/workspace-bus/pkg/workflow"
)

const usage = `Usage: workspace-bus [command]
       workspace-bus serve              Start the command bus (COMMS bridge, HTTP health).
       workspace-bus migrate up         Run database migrations.
       workspace-bus migrate down       Not supported; migrations are forward-only.
       workspace-bus migrate status     Show migration status.
       workspace-bus ensure-db [name]   Create database if missing (default name: workspaces_test). Uses DATABASE_URL host/user.
       workspace-bus clear              Truncate all workspace and view tables; schema is preserved.
       workspace-bus seed [file]        Apply a seed file to the Postgres stores.
       workspace-bus commands           List command domains and identifiers.
       workspace-bus scenario           Run the invite and view workflow in memory and print the result.

Environment: STORE_DRIVER, DATABASE_URL, MIGRATION_PATH, COMMS_URL, SEED_FILE, HTTP_PORT. See README.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "migrate":
		if len(args) < 2 {
			log.Fatalf("workspace-bus migrate: require subcommand (up, down, status)")
		}
		sub := args[1]
		switch sub {
		case "up":
			if err := runMigrateUp(); err != nil {
				log.Fatalf("workspace-bus migrate up: %v", err)
			}
		case "status":
			if err := runMigrateStatus(os.Stdout); err != nil {
				log.Fatalf("workspace-bus migrate status: %v", err)
			}
		case "down":
			if err := runMigrateDown(); err != nil {
				log.Fatalf("workspace-bus migrate down: %v", err)
			}
		default:
			log.Fatalf("workspace-bus migrate: unknown subcommand %q (use up, down, status)", sub)
		}
		return
	case "clear":
		if err := runClear(); err != nil {
			log.Fatalf("workspace-bus clear: %v", err)
		}
		return
	case "seed":
		seedFile := ""
		if len(args) > 1 {
			seedFile = args[1]
		}
		if err := runSeed(seedFile); err != nil {
			log.Fatalf("workspace-bus seed: %v", err)
		}
		return
	case "ensure-db":
		dbName := "workspaces_test"
		if len(args) > 1 && args[1] != "" {
			dbName = args[1]
		}
		if err := runEnsureDB(dbName); err != nil {
			log.Fatalf("workspace-bus ensure-db: %v", err)
		}
		return
	case "commands":
		if err := runCommands(os.Stdout); err != nil {
			log.Fatalf("workspace-bus commands: %v", err)
		}
		return
	case "scenario":
		if err := runScenario(context.Background(), os.Stdout); err != nil {
			log.Fatalf("workspace-bus scenario: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
		// serve (explicit or default)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("workspace-bus: %v", err)
	}
}

func loadDBConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runMigrateUp() error {
	cfg, err := loadDBConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	migrations, err := db.LoadMigrations(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	if err := db.RunMigrations(ctx, pool, migrations); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func runMigrateStatus(w io.Writer) error {
	cfg, err := loadDBConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	state, err := db.MigrationStatus(ctx, pool, cfg.MigrationPath)
	if err != nil {
		return err
	}
	for _, name := range state.Applied {
		fmt.Fprintf(w, "applied  %s\n", name)
	}
	for _, name := range state.Pending {
		fmt.Fprintf(w, "pending  %s\n", name)
	}
	return nil
}

func runMigrateDown() error {
	cfg, err := loadDBConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	return db.MigrationDown(ctx, pool, cfg.MigrationPath)
}

func runClear() error {
	cfg, err := loadDBConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := db.ClearAll(ctx, pool); err != nil {
		return fmt.Errorf("clear tables: %w", err)
	}
	return nil
}

func runEnsureDB(dbName string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	u, err := url.Parse(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	// Replace path with target database name; query (e.g. sslmode) is kept on u.RawQuery.
	u.Path = "/" + dbName
	if err := db.EnsureDatabase(context.Background(), u.String()); err != nil {
		return err
	}
	fmt.Printf("Database %q is ready.\n", dbName)
	return nil
}

func runSeed(seedFile string) error {
	cfg, err := loadDBConfig()
	if err != nil {
		return err
	}
	if seedFile == "" {
		seedFile = cfg.SeedFile
	}
	seed, err := bootstrap.LoadSeedConfig(seedFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	rt, err := bootstrap.NewRuntime(bootstrap.Params{
		WorkspaceStore: db.NewWorkspaceStore(pool),
		FolderStore:    db.NewViewStore(pool),
	})
	if err != nil {
		return err
	}
	defer rt.Dispatcher.Wait()
	return bootstrap.ApplySeed(ctx, rt.Dispatcher, seed)
}

func runCommands(w io.Writer) error {
	rt, err := bootstrap.NewRuntime(bootstrap.Params{})
	if err != nil {
		return err
	}
	for _, d := range rt.Registry.Domains() {
		fmt.Fprintf(w, "%s@%s\n", d.Domain, d.Version)
	}
	for _, id := range rt.Registry.Commands() {
		fmt.Fprintf(w, "  %s\n", id)
	}
	return nil
}

// scenarioResult is what runScenario prints.
type scenarioResult struct {
	WorkspaceID string                  `json:"workspace_id"`
	Members     []string                `json:"members"`
	Ancestors   []string                `json:"ancestors"`
	Publish     []folder.PublishPayload `json:"publish"`
}

// runScenario signs up two users, shares a workspace between them and
// builds a small view tree. Workflow helpers panic on failure, so the panic
// is turned back into an error here.
func runScenario(ctx context.Context, w io.Writer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scenario failed: %v", r)
		}
	}()

	rt, err := bootstrap.NewRuntime(bootstrap.Params{})
	if err != nil {
		return err
	}
	defer rt.Dispatcher.Wait()

	alice := workflow.SignUp(ctx, rt.Dispatcher, "alice@example.com", "Alice")
	bob := workflow.SignUp(ctx, rt.Dispatcher, "bob@example.com", "Bob")

	wsID := alice.GetWorkspaceID(ctx)
	alice.AddWorkspaceMember(ctx, wsID, bob)
	bob.OpenWorkspace(ctx, wsID)

	fixture := workflow.NewGridViewFixture(ctx, alice, `{"rows":[]}`)
	child := bob.CreateViewWithLayout(ctx, fixture.ChildView.ID, "Bob's board", folder.LayoutBoard, "")

	out := scenarioResult{WorkspaceID: wsID}
	for _, m := range alice.GetWorkspaceMembers(ctx, wsID) {
		out.Members = append(out.Members, m.Email)
	}
	for _, v := range bob.GetViewAncestors(ctx, child.ID) {
		out.Ancestors = append(out.Ancestors, v.Name)
	}
	out.Publish = alice.GetPublishPayload(ctx, fixture.ChildView.ID, true)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
