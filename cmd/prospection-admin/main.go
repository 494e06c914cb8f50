package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/upjv/prospection-ui/config"
	"github.com/upjv/prospection-ui/internal/bootstrap"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

// commandContext carries what every command needs. auth and storage are
// opened on first use so commands that need neither stay offline.
type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Out    io.Writer
	In     io.Reader

	storage *bootstrap.Storage
	auth    *bootstrap.AuthContainer
}

const defaultCommandTimeout = 30 * time.Second

func main() {
	logger := bootstrap.InitLogger(os.Stderr, slog.LevelWarn)

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stderr); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}
	logger = bootstrap.InitLogger(os.Stderr, cfg.Observability.Logging.SlogLevel())

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
		Out:    os.Stdout,
		In:     os.Stdin,
	}
	runErr := cmd.run(cmdCtx, os.Args[2:])
	if closeErr := cmdCtx.close(); closeErr != nil {
		logger.Warn("close failed", "error", closeErr)
	}
	if runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"login": {
			name:        "login",
			description: "Log in and persist the session for the front-end",
			run:         runLogin,
		},
		"logout": {
			name:        "logout",
			description: "Log out and clear the persisted session",
			run:         runLogout,
		},
		"status": {
			name:        "status",
			description: "Show the persisted session without contacting the API",
			run:         runStatus,
		},
		"check": {
			name:        "check",
			description: "Revalidate the persisted session with the API",
			run:         runCheck,
		},
		"diagnose": {
			name:        "diagnose",
			description: "Test API connectivity and print session debug information",
			run:         runDiagnose,
		},
		"permissions": {
			name:        "permissions",
			description: "Print the permissions granted to roles, or the role matrix",
			run:         runPermissions,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: prospection-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := writef(w, "  %-14s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

// session opens storage and the auth core once.
func (c *commandContext) session() (*bootstrap.AuthContainer, error) {
	if c.auth != nil {
		return c.auth, nil
	}
	if c.storage == nil {
		storage, err := bootstrap.BuildStorage(bootstrap.StorageOptions{
			Storage: c.Config.Storage,
			Redis:   c.Config.Redis,
			Logger:  c.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("open session storage: %w", err)
		}
		c.storage = storage
	}

	auth, err := bootstrap.BuildAuth(bootstrap.AuthOptions{
		Auth:    c.Config.Auth,
		Storage: c.storage.Store,
		Logger:  c.Logger,
	})
	if err != nil {
		return nil, err
	}
	c.auth = auth
	return auth, nil
}

func (c *commandContext) storageLocation() string {
	if c.storage == nil {
		return string(c.Config.Storage.Backend)
	}
	return c.storage.Location
}

func (c *commandContext) close() error {
	if c.auth != nil {
		c.auth.Controller.Close()
	}
	if c.storage != nil {
		return c.storage.Close()
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	_, err := fmt.Fprintln(w, args...)
	return err
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
