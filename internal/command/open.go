package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/starford/xnote/internal"
	"github.com/starford/xnote/internal/api"
)

func (a *App) openCommand() *cli.Command {
	return &cli.Command{
		Name:      "open",
		Usage:     "Open note in xnote app",
		ArgsUsage: "<name>",
		Action:    a.open,
	}
}

func (a *App) open(ctx context.Context, cmd *cli.Command) error {
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

	if a.running(e.cfg.Data.PidFile()) {
		fmt.Fprintf(a.out, "Opening \"%s\"\n", n.Name)
		err := a.postOpen(ctx, e.cfg, n.Name)
		if err == nil {
			return nil
		}
		e.logger.Warn("running app did not accept open request, starting a new one",
			slog.String("error", err.Error()))
	} else {
		fmt.Fprintf(a.out, "Starting xnote with \"%s\"\n", n.Name)
	}

	args := []string{"--data-dir", e.cfg.Data.Dir}
	if path := cmd.String("config"); path != "" {
		args = append(args, "--config", path)
	}
	args = append(args, "serve", "--open", n.Name)
	return a.spawn(args)
}

// postOpen asks the running daemon to show the note.
func (a *App) postOpen(ctx context.Context, cfg *internal.Config, name string) error {
	body, _ := json.Marshal(api.OpenRequest{Name: name})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.App.HTTP.BaseURL()+"/api/open", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Auth.AuthEnabled() {
		req.Header.Set("Authorization", "Bearer "+cfg.Auth.Token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("open: daemon answered %s", resp.Status)
	}
	return nil
}

// daemonRunning reports whether the pid file names a live process.
func daemonRunning(pidFile string) bool {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}

// startDetached re-executes this binary with args, detached from the
// current terminal.
func startDetached(args []string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	c := exec.Command(exe, args...)
	detach(c)
	if err := c.Start(); err != nil {
		return fmt.Errorf("start xnote: %w", err)
	}
	return c.Process.Release()
}
