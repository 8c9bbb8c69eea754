package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/starford/xnote/internal"
	"github.com/starford/xnote/internal/index"
	"github.com/starford/xnote/internal/mcpserver"
)

func (a *App) serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the local app daemon (HTTP API and event stream)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "open", Usage: "Show this note once the UI connects"},
		},
		Action: a.serve,
	}
}

func (a *App) serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}
	if name := cmd.String("open"); name != "" {
		opts = append(opts, internal.WithOpenNote(name))
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func (a *App) mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve notes to LLM tools over MCP (stdio)",
		Action: func(_ context.Context, cmd *cli.Command) error {
			e, err := a.setup(cmd)
			if err != nil {
				return err
			}
			db, err := index.Open(e.cfg.Data.IndexFile())
			if err != nil {
				return err
			}
			defer db.Close()
			if _, err := index.SyncStore(db, e.svc.Store, e.logger); err != nil {
				e.logger.Warn("initial sync failed", slog.String("error", err.Error()))
			}
			return mcpserver.New(e.svc.Notes, db, e.svc.Images, e.logger).ServeStdio()
		},
	}
}
