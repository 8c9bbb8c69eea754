package command

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/starford/xnote/internal/apperr"
	"github.com/starford/xnote/internal/share"
)

func (a *App) exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Write a note to a Markdown or HTML file",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Destination file or directory (default: export dir)"},
			&cli.BoolFlag{Name: "html", Usage: "Export rendered HTML instead of Markdown"},
		},
		Action: a.export,
	}
}

func (a *App) export(ctx context.Context, cmd *cli.Command) error {
	name, err := requireName(a, cmd)
	if err != nil {
		return err
	}
	e, err := a.setup(cmd)
	if err != nil {
		return err
	}
	n, ok, err := e.svc.Notes.FindByName(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return a.notFound(name)
	}

	dest := cmd.String("output")
	if dest == "" {
		dest = e.cfg.Data.Exports() + string(filepath.Separator)
	}
	var path string
	if cmd.Bool("html") {
		path, err = share.ExportHTML(n, dest)
	} else {
		path, err = share.ExportMarkdown(n, dest)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Exported \"%s\" to %s\n", n.Name, path)
	return nil
}

func (a *App) gistCommand() *cli.Command {
	return &cli.Command{
		Name:  "gist",
		Usage: "Share notes as GitHub Gists (requires an authenticated gh CLI)",
		Commands: []*cli.Command{
			{
				Name:      "share",
				Usage:     "Create or update the note's gist",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "public", Usage: "Create a public gist"},
					&cli.BoolFlag{Name: "copy", Usage: "Copy the gist URL to the clipboard"},
				},
				Action: a.gistShare,
			},
			{
				Name:      "delete",
				Usage:     "Delete the note's gist",
				ArgsUsage: "<name>",
				Action:    a.gistDelete,
			},
		},
	}
}

func (a *App) gistShare(ctx context.Context, cmd *cli.Command) error {
	name, err := requireName(a, cmd)
	if err != nil {
		return err
	}
	e, err := a.setup(cmd)
	if err != nil {
		return err
	}

	res, err := e.svc.Sharer.Share(ctx, name, cmd.Bool("public") || e.cfg.Share.Public)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return a.notFound(name)
		}
		return err
	}
	verb := "Updated"
	if res.Created {
		verb = "Shared"
	}
	fmt.Fprintf(a.out, "%s \"%s\": %s\n", verb, name, res.URL)

	if cmd.Bool("copy") {
		if err := share.CopyURL(res.URL); err != nil {
			fmt.Fprintf(a.err, "Warning: could not copy URL: %v\n", err)
		} else {
			fmt.Fprintln(a.err, "URL copied to clipboard")
		}
	}
	return nil
}

func (a *App) gistDelete(ctx context.Context, cmd *cli.Command) error {
	name, err := requireName(a, cmd)
	if err != nil {
		return err
	}
	e, err := a.setup(cmd)
	if err != nil {
		return err
	}

	err = e.svc.Sharer.Unshare(ctx, name)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return a.notFound(name)
	case errors.Is(err, apperr.ErrGistNotFound):
		return a.fail(ExitNotFound, "Note \"%s\" is not shared.", name)
	case err != nil:
		return err
	}
	fmt.Fprintf(a.out, "Unshared \"%s\"\n", name)
	return nil
}
