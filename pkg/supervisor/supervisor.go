// Package supervisor runs the analyzer as a child process and feeds its
// output into a result.Result.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime/debug"
	"slices"
	"time"

	"github.com/dkoosis/kind2run/pkg/event"
	"github.com/dkoosis/kind2run/pkg/result"
	"github.com/dkoosis/kind2run/pkg/stream"
)

const (
	// DefaultPollInterval is how often Run checks for cancellation and completion.
	DefaultPollInterval = 100 * time.Millisecond
	// DefaultGrace is how long a process whose output ended normally may take to exit.
	DefaultGrace = time.Second
	// DefaultKillTimeout is the time between SIGTERM and SIGKILL.
	DefaultKillTimeout = 2 * time.Second
)

// NormalExitCodes are the analyzer's exit codes for a completed analysis:
// success, some property falsified, and errors in properties.
var NormalExitCodes = []int{0, 10, 20}

// IsNormalExit reports whether code is one of NormalExitCodes.
func IsNormalExit(code int) bool { return slices.Contains(NormalExitCodes, code) }

// ErrAbnormalExit is returned when the analyzer exits with a code outside
// NormalExitCodes without being canceled. Use errors.As with *ExitCodeError
// to get the code.
var ErrAbnormalExit = errors.New("analyzer exited abnormally")

// ExitCodeError carries the exit code of an abnormal exit. Code is -1 when the
// process was terminated by a signal.
type ExitCodeError struct {
	Code int
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// PanicError is a panic recovered from the parse pipeline.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("pipeline panic: %v", e.Value)
}

// Observer receives run telemetry. Calls happen on the pipeline goroutine
// for events and on the Run goroutine for the final report.
type Observer interface {
	ObserveEvent(ev event.Event)
	ObserveRun(snap result.Snapshot, exitCode int, err error)
}

// Supervisor spawns the analyzer and drives one run. The zero value uses
// the defaults above.
type Supervisor struct {
	PollInterval time.Duration
	Grace        time.Duration
	KillTimeout  time.Duration
	Logger       *slog.Logger
	Observer     Observer
	// Env defaults to the current environment.
	Env []string
	Dir string
}

func (s *Supervisor) pollInterval() time.Duration {
	if s.PollInterval > 0 {
		return s.PollInterval
	}
	return DefaultPollInterval
}

func (s *Supervisor) grace() time.Duration {
	if s.Grace > 0 {
		return s.Grace
	}
	return DefaultGrace
}

func (s *Supervisor) killTimeout() time.Duration {
	if s.KillTimeout > 0 {
		return s.KillTimeout
	}
	return DefaultKillTimeout
}

func (s *Supervisor) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Run executes argv, streaming its merged stdout and stderr into res until
// the process ends or ctx is canceled. However Run returns, the process has
// been reaped, the pipeline has stopped and res is Done or Canceled.
//
// Cancellation is not an error. Pipeline failures and abnormal exit codes are
// reported only after cleanup; when both occur they are joined.
func (s *Supervisor) Run(ctx context.Context, res *result.Result, argv []string) (err error) {
	if len(argv) == 0 {
		return errors.New("supervisor: empty command")
	}
	log := s.logger().With("run", res.ID().String())
	code := -1
	defer func() {
		if s.Observer != nil {
			s.Observer.ObserveRun(res.Snapshot(), code, err)
		}
	}()

	if err := res.Running(); err != nil {
		return err
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = s.Env
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	cmd.Dir = s.Dir
	setProcessGroup(cmd)

	pr, pw, err := os.Pipe()
	if err != nil {
		_ = finalize(res, ctx.Err() != nil)
		return fmt.Errorf("creating output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		_ = pr.Close()
		_ = finalize(res, ctx.Err() != nil)
		return fmt.Errorf("starting %s: %w", argv[0], err)
	}
	// The child holds its own copy; ours must go so the reader sees EOF.
	_ = pw.Close()
	log.Debug("analyzer started", "pid", cmd.Process.Pid, "argv", argv)

	var waitErr error
	exited := make(chan struct{})
	go func() {
		waitErr = cmd.Wait()
		close(exited)
	}()

	pipeCtx, stopPipe := context.WithCancel(context.Background())
	defer stopPipe()
	var pipeErr error
	pipeDone := make(chan struct{})
	go func() {
		defer close(pipeDone)
		defer func() {
			if r := recover(); r != nil {
				pipeErr = &PanicError{Value: r, Stack: debug.Stack()}
			}
		}()
		agg := result.NewAggregator(res, log)
		if s.Observer != nil {
			agg.OnEvent(s.Observer.ObserveEvent)
		}
		pipeErr = agg.Consume(pipeCtx, pr)
	}()

	canceled := s.poll(ctx, pipeDone, exited)

	// Cleanup runs on every path from here on.
	if !canceled && isClosed(pipeDone) && pipeErr == nil {
		select {
		case <-exited:
		case <-time.After(s.grace()):
		}
	}
	s.terminate(cmd, exited, log)
	code = exitCode(waitErr)

	select {
	case <-pipeDone:
	case <-time.After(s.killTimeout()):
		// Something outside the process group still holds the pipe open.
		stopPipe()
		<-pipeDone
	}
	_ = pr.Close()

	if err := finalize(res, canceled); err != nil {
		return err
	}
	log.Debug("analyzer finished", "exit_code", code, "canceled", canceled)

	var errs []error
	if pipeErr != nil && !(canceled && expectedOnCancel(pipeErr)) {
		errs = append(errs, pipeErr)
	}
	if !canceled && !IsNormalExit(code) {
		errs = append(errs, fmt.Errorf("%w: %w", ErrAbnormalExit, &ExitCodeError{Code: code}))
	}
	return errors.Join(errs...)
}

// poll waits until the pipeline finishes, the process exits or ctx is
// canceled. It reports whether cancellation was observed.
func (s *Supervisor) poll(ctx context.Context, pipeDone, exited <-chan struct{}) bool {
	ticker := time.NewTicker(s.pollInterval())
	defer ticker.Stop()
	for {
		if ctx.Err() != nil {
			return true
		}
		if isClosed(pipeDone) || isClosed(exited) {
			return false
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
		}
	}
}

// terminate asks the process group to stop, escalates to SIGKILL after the
// kill timeout and returns once the process has been reaped. Stragglers left
// in the group are killed as well.
func (s *Supervisor) terminate(cmd *exec.Cmd, exited <-chan struct{}, log *slog.Logger) {
	if !isClosed(exited) {
		if err := terminateProcessGroup(cmd); err != nil {
			log.Debug("terminate failed", "error", err)
		}
		select {
		case <-exited:
		case <-time.After(s.killTimeout()):
			log.Debug("process ignored termination, killing")
			_ = killProcessGroup(cmd)
			<-exited
		}
	}
	_ = killProcessGroup(cmd)
}

func finalize(res *result.Result, canceled bool) error {
	if canceled {
		return res.Cancel()
	}
	return res.Done()
}

// expectedOnCancel reports errors that a killed producer naturally causes.
func expectedOnCancel(err error) bool {
	return errors.Is(err, stream.ErrUnterminated) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, os.ErrClosed)
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code, ok := getExitCodeFromError(exitErr); ok {
			return code
		}
	}
	return -1
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
