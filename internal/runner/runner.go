package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ZebulonRouseFrantzich/depkeeper/internal/config"
)

// Waiter blocks until the engine is ready to run. *binary.Ready implements it.
type Waiter interface {
	Wait(ctx context.Context) error
}

// DefaultSuccessCodes are the exit codes treated as a completed run. The
// engine exits 1 when it found issues.
var DefaultSuccessCodes = []int{0, 1}

// waitDelay bounds how long Wait keeps reading output after the engine exits
// while a grandchild still holds the pipe.
const waitDelay = 2 * time.Second

// Config configures a Runner.
type Config struct {
	// Ready gates the first Spawn. Nil means no gate.
	Ready Waiter

	// Env is called on every Spawn. Nil means an empty Environment.
	Env EnvFunc

	// SuccessCodes defaults to DefaultSuccessCodes.
	SuccessCodes []int

	// BaseEnv defaults to os.Environ.
	BaseEnv func() []string

	Logger config.Logger
}

// SpawnRequest describes one engine run.
type SpawnRequest struct {
	// Task names the logical job. A new run of a task kills the previous one.
	Task string
	Path string
	Dir  string
	Args []string
}

// Result is a successful run.
type Result struct {
	Task     string
	ExitCode int
	Output   string
	Duration time.Duration
}

type handle struct {
	cmd      *exec.Cmd
	canceled atomic.Bool
	done     chan struct{}
}

// Runner starts engine processes and tracks one live process per task.
type Runner struct {
	ready        Waiter
	readyPassed  atomic.Bool
	env          EnvFunc
	successCodes []int
	baseEnv      func() []string
	logger       config.Logger

	mu      sync.Mutex
	handles map[string]*handle
}

// New creates a Runner.
func New(cfg Config) *Runner {
	r := &Runner{
		ready:        cfg.Ready,
		env:          cfg.Env,
		successCodes: cfg.SuccessCodes,
		baseEnv:      cfg.BaseEnv,
		logger:       config.OrNop(cfg.Logger),
		handles:      make(map[string]*handle),
	}
	if len(r.successCodes) == 0 {
		r.successCodes = DefaultSuccessCodes
	}
	if r.baseEnv == nil {
		r.baseEnv = os.Environ
	}
	if r.env == nil {
		r.env = func() Environment { return Environment{} }
	}
	return r
}

// Spawn runs the engine and waits for it to exit.
//
// Returns *SpawnError if the process cannot start, *ExitError for an exit
// code outside the success codes and ErrCanceled if the run was killed.
func (r *Runner) Spawn(ctx context.Context, req SpawnRequest) (*Result, error) {
	if err := r.waitReady(ctx); err != nil {
		return nil, ErrCanceled
	}

	env := r.env()
	var output bytes.Buffer
	cmd := exec.Command(req.Path, req.Args...)
	cmd.Dir = req.Dir
	cmd.Env = mergeEnv(r.baseEnv(), env)
	cmd.Stdout = &output
	cmd.Stderr = &output
	cmd.WaitDelay = waitDelay

	h := &handle{cmd: cmd, done: make(chan struct{})}

	r.mu.Lock()
	if prev, ok := r.handles[req.Task]; ok {
		r.terminate(req.Task, prev)
	}
	if err := ctx.Err(); err != nil {
		r.mu.Unlock()
		return nil, ErrCanceled
	}
	start := time.Now()
	if err := cmd.Start(); err != nil {
		r.mu.Unlock()
		return nil, &SpawnError{Path: req.Path, Err: err}
	}
	r.handles[req.Task] = h
	r.mu.Unlock()

	r.logger.Debug("engine started", "task", req.Task, "pid", cmd.Process.Pid, "args", len(req.Args))

	go func() {
		select {
		case <-ctx.Done():
			r.mu.Lock()
			r.terminate(req.Task, h)
			r.mu.Unlock()
		case <-h.done:
		}
	}()

	waitErr := cmd.Wait()
	duration := time.Since(start)

	r.mu.Lock()
	close(h.done)
	if r.handles[req.Task] == h {
		delete(r.handles, req.Task)
	}
	canceled := h.canceled.Load()
	r.mu.Unlock()

	if canceled {
		r.logger.Debug("engine run canceled", "task", req.Task)
		return nil, ErrCanceled
	}

	code := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, &SpawnError{Path: req.Path, Err: waitErr}
		}
		code = exitErr.ExitCode()
	}

	out := config.Redact(output.String(), env.Token)
	r.logger.Debug("engine exited", "task", req.Task, "code", code, "duration", duration)

	if !slices.Contains(r.successCodes, code) {
		return nil, &ExitError{Code: code, Output: out}
	}
	return &Result{Task: req.Task, ExitCode: code, Output: out, Duration: duration}, nil
}

// Cancel kills the running process for task. It reports whether one was
// running.
func (r *Runner) Cancel(task string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[task]
	if !ok {
		return false
	}
	r.terminate(task, h)
	return true
}

// Running reports whether a process is live for task.
func (r *Runner) Running(task string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handles[task]
	return ok
}

// waitReady blocks on the ready gate until it has passed once.
func (r *Runner) waitReady(ctx context.Context) error {
	if r.ready == nil || r.readyPassed.Load() {
		return nil
	}
	if err := r.ready.Wait(ctx); err != nil {
		return fmt.Errorf("wait for engine: %w", err)
	}
	r.readyPassed.Store(true)
	return nil
}

// terminate marks h canceled and kills its process tree. A process that has
// already been reaped is left alone and its run keeps its real result.
// Callers hold r.mu.
func (r *Runner) terminate(task string, h *handle) {
	if r.handles[task] == h {
		delete(r.handles, task)
	}

	select {
	case <-h.done:
		return
	default:
	}
	if exited(h.cmd.Process) {
		return
	}
	h.canceled.Store(true)

	if err := killTree(context.Background(), h.cmd.Process.Pid); err != nil {
		r.logger.Warn("failed to kill engine process tree", "task", task, "pid", h.cmd.Process.Pid, "error", err)
		if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			r.logger.Warn("failed to kill engine process", "task", task, "error", err)
		}
	}
}

// exited reports whether p has been waited on. The PID of a reaped process
// may already belong to something else.
func exited(p *os.Process) bool {
	return errors.Is(p.Signal(syscall.Signal(0)), os.ErrProcessDone)
}
