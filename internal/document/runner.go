package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/shlex"

	"shelter-media/internal/metrics"
)

var (
	// ErrKnownError marks a run whose output contained a denylisted message.
	ErrKnownError = errors.New("tool reported a known error")
	// ErrTimeout marks a run that was killed after its timeout.
	ErrTimeout = errors.New("tool timed out")
	// ErrEmptyCommand is returned when a command template expands to nothing.
	ErrEmptyCommand = errors.New("empty command")
)

// ToolError describes a failed external command run.
type ToolError struct {
	Tool     string
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *ToolError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("%s: exit code %d from '%s': %v", e.Tool, e.ExitCode, e.Command, e.Err)
	}
	return fmt.Sprintf("%s: '%s': %v", e.Tool, e.Command, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Expand substitutes %(name)s tokens in a command template.
func Expand(template string, vars map[string]string) string {
	out := template
	for name, value := range vars {
		out = strings.ReplaceAll(out, "%("+name+")s", value)
	}
	return out
}

// CommandArgs splits a command template into arguments the way a shell
// would, honoring quotes, then substitutes files and options inside each
// word. A substituted path therefore stays one argument even when it holds
// spaces. A word made of a single option token expands to that option's
// space separated words, so "%(papersize)s" can stand for
// "--page-size a3" or for nothing at all.
func CommandArgs(template string, files, options map[string]string) ([]string, error) {
	words, err := shlex.Split(template)
	if err != nil {
		return nil, fmt.Errorf("invalid command template '%s': %w", template, err)
	}

	args := make([]string, 0, len(words))
	for _, w := range words {
		if name, ok := soleToken(w); ok {
			if v, ok := options[name]; ok {
				args = append(args, strings.Fields(v)...)
				continue
			}
		}
		args = append(args, Expand(Expand(w, files), options))
	}
	return args, nil
}

// soleToken returns name when w is exactly "%(name)s".
func soleToken(w string) (string, bool) {
	if !strings.HasPrefix(w, "%(") || !strings.HasSuffix(w, ")s") {
		return "", false
	}
	name := w[2 : len(w)-2]
	if name == "" || strings.ContainsAny(name, "%()") {
		return "", false
	}
	return name, true
}

// toolRun is one external command invocation with file handoff.
type toolRun struct {
	tool        string
	template    string
	vars        map[string]string
	input       []byte
	inSuffix    string
	outSuffix   string
	timeout     time.Duration
	knownErrors []string
}

// run writes the input to a private temp directory, runs the expanded
// command against it and returns the output file contents. The temp
// directory is removed on every path.
func (r toolRun) run(ctx context.Context) (result []byte, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.ExternalToolRuns.WithLabelValues(r.tool, status).Inc()
		metrics.ExternalToolDuration.WithLabelValues(r.tool).Observe(time.Since(start).Seconds())
	}()

	dir, err := os.MkdirTemp("", "shelter-media-"+r.tool+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			log.Warn("failed to remove temp dir %s: %v", dir, rmErr)
		}
	}()

	inPath := filepath.Join(dir, "input"+r.inSuffix)
	outPath := filepath.Join(dir, "output"+r.outSuffix)
	if err := os.WriteFile(inPath, r.input, 0600); err != nil {
		return nil, fmt.Errorf("failed to write temp input: %w", err)
	}

	files := map[string]string{"input": inPath, "output": outPath}
	cmdline := Expand(Expand(r.template, files), r.vars)
	args, err := CommandArgs(r.template, files, r.vars)
	if err != nil {
		return nil, &ToolError{Tool: r.tool, Command: cmdline, Err: err}
	}
	if len(args) == 0 {
		return nil, &ToolError{Tool: r.tool, Command: cmdline, Err: ErrEmptyCommand}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	log.Debug("running %s", cmdline)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	// Children that inherit the output pipe must not hold CombinedOutput open
	// past the deadline.
	cmd.WaitDelay = time.Second
	output, runErr := cmd.CombinedOutput()

	for _, known := range r.knownErrors {
		if known != "" && strings.Contains(string(output), known) {
			return nil, &ToolError{Tool: r.tool, Command: cmdline, Output: string(output), Err: fmt.Errorf("%w: %s", ErrKnownError, known)}
		}
	}

	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &ToolError{Tool: r.tool, Command: cmdline, Output: string(output), Err: ErrTimeout}
		}
		return nil, &ToolError{Tool: r.tool, Command: cmdline, Output: string(output), Err: ctx.Err()}
	}

	if runErr != nil {
		te := &ToolError{Tool: r.tool, Command: cmdline, Output: string(output), Err: runErr}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			te.ExitCode = exitErr.ExitCode()
		}
		return nil, te
	}

	result, err = os.ReadFile(outPath)
	if err != nil {
		return nil, &ToolError{Tool: r.tool, Command: cmdline, Output: string(output), Err: err}
	}
	return result, nil
}
