package engine

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Output capture limits.
const (
	// MaxOutputBytes is the most stdout captured from a single command (4 MiB).
	MaxOutputBytes = 4 << 20

	// maxStderrBytes bounds captured stderr, which only feeds the debug log.
	maxStderrBytes = 64 << 10

	// defaultWaitDelay is how long Wait waits for inherited pipes after the
	// process is killed.
	defaultWaitDelay = 2 * time.Second
)

var errEmptyCommand = errors.New("empty command")

// RunOutput is what a CommandRunner observed for one command.
type RunOutput struct {
	Stdout    []byte
	Stderr    []byte
	ExitCode  int
	Truncated bool
	Err       error
}

// CommandRunner runs one argv to completion or until ctx is done.
type CommandRunner interface {
	Run(ctx context.Context, argv []string) RunOutput
}

// OSRunner runs commands as child processes. The child gets no stdin and its
// own process group, so a timeout kills a whole shell pipeline.
type OSRunner struct {
	// MaxOutput caps captured stdout; zero means MaxOutputBytes.
	MaxOutput int

	// WaitDelay bounds the wait for pipes after a kill; zero means 2s.
	WaitDelay time.Duration
}

// Run executes argv and never returns without the child having been reaped
// or abandoned after WaitDelay.
func (r *OSRunner) Run(ctx context.Context, argv []string) RunOutput {
	if len(argv) == 0 {
		return RunOutput{ExitCode: -1, Err: errEmptyCommand}
	}

	limit := r.MaxOutput
	if limit <= 0 {
		limit = MaxOutputBytes
	}
	delay := r.WaitDelay
	if delay <= 0 {
		delay = defaultWaitDelay
	}

	stdout := &cappedBuffer{limit: limit}
	stderr := &cappedBuffer{limit: maxStderrBytes}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = delay
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		if err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}

	err := cmd.Run()

	// A command that exited cleanly but left a background child holding its
	// output pipes still succeeded; what it wrote before exiting is kept.
	if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success() {
		err = nil
	}

	stdoutBytes, truncated := stdout.snapshot()
	stderrBytes, _ := stderr.snapshot()
	out := RunOutput{
		Stdout:    stdoutBytes,
		Stderr:    stderrBytes,
		ExitCode:  -1,
		Truncated: truncated,
		Err:       err,
	}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}
	return out
}

// cappedBuffer keeps the first limit bytes written and silently drops the
// rest, so a chatty child never blocks on a full pipe. Writes may still be
// in flight when Run gives up waiting for the pipes, hence the lock.
type cappedBuffer struct {
	mu        sync.Mutex
	buf       []byte
	limit     int
	truncated bool
}

// snapshot returns a copy of the captured bytes and whether any were dropped.
func (b *cappedBuffer) snapshot() ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf...), b.truncated
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.limit - len(b.buf)
	if room <= 0 {
		if len(p) > 0 {
			b.truncated = true
		}
		return len(p), nil
	}
	if len(p) > room {
		b.buf = append(b.buf, p[:room]...)
		b.truncated = true
		return len(p), nil
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}
