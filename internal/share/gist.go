package share

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/xnote/internal/apperr"
)

// DefaultTimeout bounds every gh invocation.
const DefaultTimeout = 30 * time.Second

// ErrTimeout is returned when a gh invocation exceeds its deadline.
var ErrTimeout = errors.New("share: gh timed out")

// notFoundPatterns are the stderr fragments gh prints for a missing gist.
var notFoundPatterns = []string{
	"http 404",
	"not found",
	"could not find",
	"gist not found",
	"no such gist",
}

// CommandError is a gh failure that is neither not-found nor a timeout.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("share: gh %s failed (exit %d): %s", strings.Join(e.Args, " "), e.ExitCode, msg)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Runner executes a command with optional stdin.
type Runner interface {
	Run(ctx context.Context, name string, args []string, stdin []byte) (stdout, stderr []byte, err error)
}

// ExecRunner runs real subprocesses.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args []string, stdin []byte) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Gist identifies a published gist.
type Gist struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// GistClient drives the gh CLI.
type GistClient struct {
	bin     string
	timeout time.Duration
	runner  Runner
}

// NewGistClient creates a client. An empty bin means "gh" from PATH.
func NewGistClient(bin string, timeout time.Duration, runner Runner) *GistClient {
	if bin == "" {
		bin = "gh"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &GistClient{bin: bin, timeout: timeout, runner: runner}
}

// Create publishes content as a new gist and returns its id and URL.
func (c *GistClient) Create(ctx context.Context, filename, content, description string, public bool) (Gist, error) {
	args := []string{"gist", "create", "--filename", filename, "--desc", description}
	if public {
		args = append(args, "--public")
	}
	args = append(args, "-")

	out, err := c.run(ctx, args, []byte(content))
	if err != nil {
		return Gist{}, err
	}
	url := lastLine(out)
	if !strings.HasPrefix(url, "http") {
		return Gist{}, &CommandError{Args: args, Stderr: "unexpected gh output: " + url}
	}
	return Gist{ID: path.Base(url), URL: url}, nil
}

// Update replaces filename's content in an existing gist.
func (c *GistClient) Update(ctx context.Context, id, filename, content string) error {
	dir, err := os.MkdirTemp("", "xnote-gist-*")
	if err != nil {
		return fmt.Errorf("share: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	local := filepath.Join(dir, filename)
	if err := os.WriteFile(local, []byte(content), 0o600); err != nil {
		return fmt.Errorf("share: write temp file: %w", err)
	}
	_, err = c.run(ctx, []string{"gist", "edit", id, "--filename", filename, local}, nil)
	return err
}

// Delete removes a gist.
func (c *GistClient) Delete(ctx context.Context, id string) error {
	_, err := c.run(ctx, []string{"gist", "delete", id, "--yes"}, nil)
	return err
}

func (c *GistClient) run(ctx context.Context, args []string, stdin []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stdout, stderr, err := c.runner.Run(ctx, c.bin, args, stdin)
	if err == nil {
		return string(stdout), nil
	}
	return "", classify(ctx, args, stderr, err)
}

// classify maps a failed invocation to ErrTimeout, apperr.ErrGistNotFound
// or a *CommandError. It never reports success.
func classify(ctx context.Context, args []string, stderr []byte, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("gh %s: %w", strings.Join(args[:min(2, len(args))], " "), ErrTimeout)
	}
	msg := strings.ToLower(string(stderr))
	for _, p := range notFoundPatterns {
		if strings.Contains(msg, p) {
			return fmt.Errorf("%s: %w", strings.TrimSpace(string(stderr)), apperr.ErrGistNotFound)
		}
	}
	if errors.Is(err, exec.ErrNotFound) {
		return &CommandError{Args: args, ExitCode: -1, Stderr: "gh command not found in PATH, please install the GitHub CLI", Err: err}
	}
	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return &CommandError{Args: args, ExitCode: code, Stderr: string(stderr), Err: err}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
