package command

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func (a *App) settingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Show or change AI settings",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "api-key", Usage: "Gemini API key (empty string clears it)"},
			&cli.StringFlag{Name: "system-prompt", Usage: "System prompt for content generation"},
			&cli.BoolFlag{Name: "enable-search", Usage: "Ground generation with web search"},
			&cli.BoolFlag{Name: "json", Usage: "Output as JSON (API key masked)"},
		},
		Action: a.settings,
	}
}

func (a *App) settings(_ context.Context, cmd *cli.Command) error {
	e, err := a.setup(cmd)
	if err != nil {
		return err
	}
	s, err := e.svc.AI.Settings()
	if err != nil {
		return err
	}

	changed := false
	if cmd.IsSet("api-key") {
		s.APIKey = cmd.String("api-key")
		changed = true
	}
	if cmd.IsSet("system-prompt") {
		s.SystemPrompt = cmd.String("system-prompt")
		changed = true
	}
	if cmd.IsSet("enable-search") {
		s.EnableSearch = cmd.Bool("enable-search")
		changed = true
	}
	if changed {
		if err := e.svc.AI.SaveSettings(s); err != nil {
			return a.fail(ExitError, "%v", err)
		}
	}

	s.APIKey = maskKey(s.APIKey)
	if cmd.Bool("json") {
		return a.printJSON(s)
	}
	prompt := s.SystemPrompt
	if prompt == "" {
		prompt = "(default)"
	}
	search := "off"
	if s.EnableSearch {
		search = "on"
	}
	fmt.Fprintf(a.out, "API key:       %s\n", s.APIKey)
	fmt.Fprintf(a.out, "System prompt: %s\n", prompt)
	fmt.Fprintf(a.out, "Web search:    %s\n", search)
	return nil
}

func maskKey(key string) string {
	switch {
	case key == "":
		return "(not set)"
	case len(key) <= 8:
		return "****"
	default:
		return key[:4] + "…" + key[len(key)-4:]
	}
}
