package command

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/xnote/internal/apperr"
	"github.com/starford/xnote/internal/index"
	"github.com/starford/xnote/internal/models"
	"github.com/starford/xnote/internal/noteservice"
)

func (a *App) createCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create note from stdin",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Note name (generated by AI when omitted)"},
			&cli.BoolFlag{Name: "force", Usage: "Overwrite existing note"},
		},
		Action: a.create,
	}
}

func (a *App) create(ctx context.Context, cmd *cli.Command) error {
	content, err := readInput(a.in)
	if err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		fmt.Fprintln(a.err, "Error: No input. Pipe content to this command.")
		fmt.Fprintln(a.err, `Example: echo "content" | xnote create -n "My Note"`)
		return cli.Exit("", ExitError)
	}

	e, err := a.setup(cmd)
	if err != nil {
		return err
	}

	name := strings.TrimSpace(cmd.String("name"))
	if name == "" {
		fmt.Fprint(a.err, "Generating title... ")
		name = e.svc.AI.GenerateTitle(ctx, content)
		fmt.Fprintln(a.err, "done")
	}

	if _, err := e.svc.Notes.Create(ctx, name, content, cmd.Bool("force")); err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return a.fail(ExitExists, "Note \"%s\" already exists. Use --force to overwrite.", name)
		}
		return err
	}
	fmt.Fprintf(a.out, "Created \"%s\"\n", name)
	return nil
}

func (a *App) getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Output note content to stdout (always markdown)",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "html", Usage: "Output raw HTML instead"},
			&cli.BoolFlag{Name: "json", Usage: "Output full note as JSON"},
		},
		Action: a.get,
	}
}

func (a *App) get(ctx context.Context, cmd *cli.Command) error {
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
		fmt.Fprintf(a.err, "Error: Note \"%s\" not found.\n", name)
		if similar, _ := e.svc.Notes.Similar(ctx, name, 3); len(similar) > 0 {
			names := make([]string, len(similar))
			for i, s := range similar {
				names[i] = s.Name
			}
			fmt.Fprintln(a.err, "Similar: "+strings.Join(names, ", "))
		}
		return cli.Exit("", ExitNotFound)
	}

	switch {
	case cmd.Bool("json"):
		return a.printJSON(n)
	case cmd.Bool("html"):
		fmt.Fprintln(a.out, n.RichContent)
	default:
		md, err := noteservice.Markdown(n)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, md)
	}
	return nil
}

func (a *App) listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List all notes",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Output as JSON"},
		},
		Action: a.list,
	}
}

func (a *App) list(ctx context.Context, cmd *cli.Command) error {
	e, err := a.setup(cmd)
	if err != nil {
		return err
	}
	notes, err := e.svc.Notes.ListAll(ctx)
	if err != nil {
		return err
	}
	if len(notes) == 0 {
		fmt.Fprintln(a.out, "No notes yet.")
		fmt.Fprintln(a.out, `Create one: echo "Hello" | xnote create -n "My Note"`)
		return nil
	}

	items := make([]models.NoteListItem, len(notes))
	for i, n := range notes {
		items[i] = n.ListItem()
	}
	if cmd.Bool("json") {
		return a.printJSON(items)
	}

	// Recency order is for display only; JSON keeps storage order.
	slices.SortStableFunc(notes, func(x, y models.Note) int {
		return cmp.Compare(y.UpdatedAt, x.UpdatedAt)
	})
	for _, n := range notes {
		fmt.Fprintf(a.out, "%s  (%s, %d chars)\n", n.Name, n.Updated().Format("2006-01-02"), n.Size())
	}
	return nil
}

func (a *App) deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a note",
		ArgsUsage: "<name>",
		Action:    a.delete,
	}
}

func (a *App) delete(ctx context.Context, cmd *cli.Command) error {
	name, err := requireName(a, cmd)
	if err != nil {
		return err
	}
	e, err := a.setup(cmd)
	if err != nil {
		return err
	}
	if err := e.svc.Notes.Delete(ctx, name); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return a.notFound(name)
		}
		return err
	}
	fmt.Fprintf(a.out, "Deleted \"%s\"\n", name)
	return nil
}

func (a *App) searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Full-text search across notes",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "Maximum number of results"},
			&cli.BoolFlag{Name: "json", Usage: "Output as JSON"},
		},
		Action: a.search,
	}
}

func (a *App) search(_ context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if query == "" {
		return a.fail(ExitError, "missing search query.")
	}
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
		return err
	}

	results, err := db.Search(query, int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		if results == nil {
			results = []index.SearchResult{}
		}
		return a.printJSON(results)
	}
	if len(results) == 0 {
		fmt.Fprintln(a.out, "No matches.")
		return nil
	}
	for _, r := range results {
		fmt.Fprintln(a.out, r.Name)
		if r.Snippet != "" {
			fmt.Fprintf(a.out, "    %s\n", r.Snippet)
		}
	}
	return nil
}

func (a *App) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, string(data))
	return nil
}
