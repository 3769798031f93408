// Package runner wraps external binaries (converters, rasterizers, OCR engines)
// behind an interface so pipelines can be exercised without shelling out.
package runner

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Output is what a finished subprocess produced.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Tool lets us stub external commands in tests.
type Tool interface {
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Output, error)
}

// Func adapts a function to Tool.
type Func func(ctx context.Context, timeout time.Duration, name string, args ...string) (Output, error)

func (f Func) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Output, error) {
	return f(ctx, timeout, name, args...)
}

// Exec runs real binaries via os/exec.
type Exec struct {
	logger *slog.Logger
}

func NewExec(logger *slog.Logger) *Exec {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exec{logger: logger}
}

func (e *Exec) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Output, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()

	e.logger.Debug("running command", "cmd_line", strings.Join(append([]string{name}, args...), " "))

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	dur := time.Since(start)

	res := Output{Stdout: out.Bytes(), Stderr: errb.Bytes()}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = -1
	}

	if err != nil {
		e.logger.Error("exec failed",
			"cmd", name,
			"duration_ms", dur.Milliseconds(),
			"exit_code", res.ExitCode,
			"error", err,
			"stderr", Truncate(errb.String(), 8<<10), // cap at 8KB
		)
	} else {
		e.logger.Debug("exec ok",
			"cmd", name,
			"args", strings.Join(args, " "),
			"duration_ms", dur.Milliseconds(),
			"stdout_bytes", out.Len(),
			"stderr_bytes", errb.Len(),
		)
	}
	return res, err
}

// Truncate caps s at max bytes, marking the cut.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
