// Package hooks runs the user's post-extract, configure and make scripts
// against a freshly extracted tree.
package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// Hook names one slot in the fixed hook sequence.
type Hook string

const (
	PostExtract Hook = "post-extract"
	Configure   Hook = "configure"
	Make        Hook = "make"
)

// Order is the sequence hooks run in.
var Order = []Hook{PostExtract, Configure, Make}

// HookError reports a hook that exited non-zero or could not be started.
// The hook's combined output is kept at LogPath.
type HookError struct {
	Hook     Hook
	ExitCode int
	LogPath  string
	Err      error
}

func (e *HookError) Error() string {
	msg := fmt.Sprintf("hook %s failed with exit code %d", e.Hook, e.ExitCode)
	if e.LogPath != "" {
		msg += " (output saved to " + e.LogPath + ")"
	}
	return msg
}

func (e *HookError) Unwrap() error {
	return e.Err
}

// Runner binds hook slots to executables in one directory.
type Runner struct {
	dir    string
	logger *log.Logger
	output io.Writer
}

// NewRunner creates a runner for the hooks in dir.
func NewRunner(dir string, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Runner{dir: dir, logger: logger}
}

// SetOutput streams hook output to w as it runs, in addition to capturing it.
func (r *Runner) SetOutput(w io.Writer) {
	r.output = w
}

// Dir returns the hooks directory.
func (r *Runner) Dir() string {
	return r.dir
}

// Bound returns the executable bound to h, if any. Missing and
// non-executable files leave the slot unbound.
func (r *Runner) Bound(h Hook) (string, bool) {
	p := filepath.Join(r.dir, string(h))
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() || info.Mode().Perm()&0111 == 0 {
		return "", false
	}
	return p, true
}

// RunAll runs every bound hook in Order against tree, stopping at the
// first failure.
func (r *Runner) RunAll(ctx context.Context, tree string) error {
	for _, h := range Order {
		if err := r.Run(ctx, h, tree); err != nil {
			return err
		}
	}
	return nil
}

// Run runs hook h with tree as working directory and sole argument. An
// unbound hook is skipped.
func (r *Runner) Run(ctx context.Context, h Hook, tree string) error {
	p, ok := r.Bound(h)
	if !ok {
		r.logger.Debug("hook not bound, skipping", "hook", h)
		return nil
	}

	r.logger.Info("running hook", "hook", h, "tree", tree)

	var buf bytes.Buffer
	var out io.Writer = &buf
	if r.output != nil {
		out = io.MultiWriter(&buf, r.output)
	}

	cmd := exec.CommandContext(ctx, p, tree)
	cmd.Dir = tree
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	if err == nil {
		return nil
	}

	herr := &HookError{Hook: h, ExitCode: -1, Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		herr.ExitCode = exitErr.ExitCode()
	}
	if logPath, lerr := saveLog(h, buf.Bytes()); lerr == nil {
		herr.LogPath = logPath
	} else {
		r.logger.Warn("could not save hook output", "hook", h, "err", lerr)
	}
	return herr
}

func saveLog(h Hook, output []byte) (string, error) {
	f, err := os.CreateTemp("", "phpfarm-"+string(h)+"-*.log")
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := f.Write(output); err != nil {
		return "", err
	}
	return f.Name(), nil
}
