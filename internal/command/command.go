// Package command implements the xnote command-line interface.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/starford/xnote/internal"
	"github.com/starford/xnote/internal/share"
	pkgconfig "github.com/starford/xnote/pkg/config"
)

// Exit codes.
const (
	ExitError    = 1 // generic failure, also "no input"
	ExitNotFound = 2
	ExitExists   = 3
)

// App is the CLI bound to its standard streams.
type App struct {
	in      io.Reader
	out     io.Writer
	err     io.Writer
	version string

	// Seams replaced in tests.
	running func(pidFile string) bool
	spawn   func(args []string) error
	client  *http.Client
	gists   share.Gists
}

// New creates the CLI over the given streams.
func New(in io.Reader, out, errOut io.Writer) *App {
	return &App{
		in:      in,
		out:     out,
		err:     errOut,
		version: "1.0.0",
		running: daemonRunning,
		spawn:   startDetached,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Run parses args (including the program name) and runs the command.
// Failures carrying an exit code are returned as cli.ExitCoder with their
// message already written to the error stream.
func (a *App) Run(ctx context.Context, args []string) error {
	return a.Command().Run(ctx, args)
}

// Command builds the command tree.
func (a *App) Command() *cli.Command {
	return &cli.Command{
		Name:      "xnote",
		Usage:     "xnote CLI - Manage notes from command line",
		Version:   a.version,
		Writer:    a.out,
		ErrWriter: a.err,
		// Exit codes are applied by main.
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (default <data-dir>/config.yaml)",
				Sources: cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Data directory (default ~/.xnote)",
				Sources: cli.EnvVars(internal.DataDirEnv),
			},
		},
		Commands: []*cli.Command{
			a.createCommand(),
			a.getCommand(),
			a.listCommand(),
			a.openCommand(),
			a.deleteCommand(),
			a.searchCommand(),
			a.exportCommand(),
			a.gistCommand(),
			a.settingsCommand(),
			a.serveCommand(),
			a.mcpCommand(),
		},
	}
}

// env is what a command action works with.
type env struct {
	cfg    *internal.Config
	logger *slog.Logger
	svc    *internal.Services
}

func (a *App) setup(cmd *cli.Command) (*env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(a.err, &slog.HandlerOptions{Level: slog.LevelWarn}))
	svc, err := internal.NewServices(cfg, logger)
	if err != nil {
		return nil, err
	}
	if a.gists != nil {
		svc.Sharer = share.NewSharer(svc.Notes, a.gists, logger)
	}
	return &env{cfg: cfg, logger: logger, svc: svc}, nil
}

// loadConfig applies, in order: defaults, the config file when present,
// and --data-dir.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	dataDir := cmd.String("data-dir")
	if dataDir != "" {
		cfg.Data.Dir = dataDir
	}

	path := cmd.String("config")
	if path == "" {
		path = filepath.Join(cfg.Data.Root(), "config.yaml")
	}
	if err := pkgconfig.LoadIfExists(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if dataDir != "" {
		cfg.Data.Dir = dataDir
	}
	return cfg, nil
}

// fail writes an error line and returns an exit error carrying code.
func (a *App) fail(code int, format string, args ...any) error {
	fmt.Fprintf(a.err, "Error: "+format+"\n", args...)
	return cli.Exit("", code)
}

func (a *App) notFound(name string) error {
	return a.fail(ExitNotFound, "Note \"%s\" not found.", name)
}

func requireName(a *App, cmd *cli.Command) (string, error) {
	if cmd.Args().Len() == 0 {
		return "", a.fail(ExitError, "missing note name.")
	}
	return cmd.Args().First(), nil
}

// readInput returns piped stdin. A terminal yields "" so that a bare
// "xnote create" fails fast instead of waiting for input.
func readInput(r io.Reader) (string, error) {
	if f, ok := r.(*os.File); ok {
		if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
			return "", nil
		}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

// ExitCode extracts the process exit code for err: 0 for nil, the carried
// code for cli.ExitCoder, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return ExitError
}
