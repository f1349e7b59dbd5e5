// Package subprocess runs build actions as child processes with a timeout,
// captured stdout/stderr, and data-dependency symlinking into the working
// directory. It is the Go counterpart of the original's CommandRunner
// (build_engine.cpp), built on top of internal/process's Child/Manager
// rather than reimplementing process supervision from scratch.
package subprocess

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/bec-ca/mellow/internal/mellowerr"
	"github.com/bec-ca/mellow/internal/process"
)

const defaultKillTimeout = 5 * time.Second

// tailLimit bounds how much of a failed command's stdout/stderr is kept in
// the returned error, matching the original's tail-tagged error messages.
const tailLimit = 4096

// Request describes one subprocess invocation.
type Request struct {
	Command []string
	Dir     string
	Env     []string

	// Data maps destination-name (relative to Dir) to source path; each is
	// symlinked into Dir before the command runs, mirroring how a GenRule's
	// declared `data` files are made available to the binary it invokes.
	Data map[string]string

	Timeout time.Duration

	// OutputPrefix, when non-empty, persists this invocation's stdout/stderr
	// to <OutputPrefix>.stdout and <OutputPrefix>.stderr, the per-task
	// capture files spec.md §4.9/§6's build directory layout requires,
	// alongside the in-memory capture used for golden comparison and error
	// tails.
	OutputPrefix string
}

// Result is a successfully completed (exit code 0) invocation's captured
// output.
type Result struct {
	Stdout string
	Stderr string
}

// Runner executes Requests via internal/process.Child, translating
// non-zero exits and timeouts into mellowerr.SubprocessFailed/Timeout.
type Runner struct {
	logger  hclog.Logger
	manager *process.Manager
}

// New creates a Runner that logs through logger with no centralized
// shutdown tracking; children it starts are only ever stopped by their own
// per-call timeout or the caller's context.
func New(logger hclog.Logger) *Runner {
	return &Runner{logger: logger}
}

// NewManaged creates a Runner whose children are registered with manager,
// so a single manager.Close() (wired to SIGINT in cmd/mellow) stops every
// in-flight compile/link/test/gen-rule subprocess across a build, not just
// the ones whose own timeout happens to have already elapsed.
func NewManaged(logger hclog.Logger, manager *process.Manager) *Runner {
	return &Runner{logger: logger, manager: manager}
}

// Run executes req and blocks until it completes, times out, or the
// supplied context is canceled.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if len(req.Command) == 0 {
		return nil, &mellowerr.Internal{Message: "empty command"}
	}

	if err := symlinkData(req.Dir, req.Data); err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	var stdoutW io.Writer = &stdout
	var stderrW io.Writer = &stderr

	if req.OutputPrefix != "" {
		stdoutFile, stderrFile, closeFiles, err := createCaptureFiles(req.OutputPrefix)
		if err != nil {
			return nil, err
		}
		defer closeFiles()
		stdoutW = io.MultiWriter(&stdout, stdoutFile)
		stderrW = io.MultiWriter(&stderr, stderrFile)
	}

	cmd := exec.CommandContext(ctx, req.Command[0], req.Command[1:]...)
	cmd.Dir = req.Dir
	cmd.Env = req.Env
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	child, err := process.NewChild(process.NewInput{
		Cmd:         cmd,
		Timeout:     0, // Runner races its own timeout below instead.
		KillSignal:  os.Interrupt,
		KillTimeout: defaultKillTimeout,
		Logger:      r.logger,
	})
	if err != nil {
		return nil, errors.Wrap(err, "constructing child process")
	}

	if r.manager != nil {
		if !r.manager.Track(child) {
			return nil, process.ErrClosing
		}
		defer r.manager.Untrack(child)
	}

	if err := child.Start(); err != nil {
		return nil, &mellowerr.IO{Op: "start", Path: req.Command[0], Err: err}
	}

	cmdLabel := child.Command()

	timeout := req.Timeout
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case code, ok := <-child.ExitCh():
		if !ok {
			return nil, &mellowerr.Internal{Message: "process manager closed while running " + cmdLabel}
		}
		if code != 0 {
			return nil, &mellowerr.SubprocessFailed{
				Command:  cmdLabel,
				ExitCode: code,
				Stdout:   tail(stdout.String()),
				Stderr:   tail(stderr.String()),
			}
		}
		return &Result{Stdout: stdout.String(), Stderr: stderr.String()}, nil

	case <-timeoutCh:
		child.Stop()
		return nil, &mellowerr.Timeout{
			Command: cmdLabel,
			Stdout:  tail(stdout.String()),
			Stderr:  tail(stderr.String()),
		}

	case <-ctx.Done():
		child.Stop()
		return nil, ctx.Err()
	}
}

// createCaptureFiles opens <prefix>.stdout and <prefix>.stderr for writing,
// creating prefix's parent directory if needed, and returns a func closing
// both.
func createCaptureFiles(prefix string) (*os.File, *os.File, func(), error) {
	if err := os.MkdirAll(filepath.Dir(prefix), 0o755); err != nil {
		return nil, nil, nil, &mellowerr.IO{Op: "mkdir", Path: filepath.Dir(prefix), Err: err}
	}
	stdoutFile, err := os.Create(prefix + ".stdout")
	if err != nil {
		return nil, nil, nil, &mellowerr.IO{Op: "create", Path: prefix + ".stdout", Err: err}
	}
	stderrFile, err := os.Create(prefix + ".stderr")
	if err != nil {
		stdoutFile.Close()
		return nil, nil, nil, &mellowerr.IO{Op: "create", Path: prefix + ".stderr", Err: err}
	}
	return stdoutFile, stderrFile, func() {
		stdoutFile.Close()
		stderrFile.Close()
	}, nil
}

func symlinkData(dir string, data map[string]string) error {
	if len(data) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &mellowerr.IO{Op: "mkdir", Path: dir, Err: err}
	}
	for dest, src := range data {
		destPath := filepath.Join(dir, dest)
		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return &mellowerr.IO{Op: "mkdir", Path: filepath.Dir(destPath), Err: err}
		}
		absSrc, err := filepath.Abs(src)
		if err != nil {
			return &mellowerr.IO{Op: "abs", Path: src, Err: err}
		}
		_ = os.Remove(destPath)
		if err := os.Symlink(absSrc, destPath); err != nil {
			return &mellowerr.IO{Op: "symlink", Path: destPath, Err: err}
		}
	}
	return nil
}

func tail(s string) string {
	if len(s) <= tailLimit {
		return s
	}
	return "..." + s[len(s)-tailLimit:]
}
