package executor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/go-logr/logr"
)

// Runner executes an external binary and returns its combined stdout and stderr.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// CommandError is returned when the binary was started but exited with a non-zero status.
// Failures to start the binary at all (missing binary, permission denied) are returned as is.
type CommandError struct {
	Cmd      []string
	Output   []byte
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q exited with %d: %v\n  %q", strings.Join(e.Cmd, " "), e.ExitCode, e.Err, string(e.Output))
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

type ExecRunner struct {
	log logr.Logger
}

func NewExecRunner(log logr.Logger) *ExecRunner {
	return &ExecRunner{log: log}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	r.log.V(5).Info("run", "cmd", cmd.String())
	out, err := cmd.CombinedOutput()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && ctx.Err() == nil {
			return out, &CommandError{
				Cmd:      append([]string{name}, args...),
				Output:   out,
				ExitCode: exitErr.ExitCode(),
				Err:      err,
			}
		}
		return out, err
	}
	r.log.V(6).Info("run done", "cmd", cmd.String(), "output", string(out))
	return out, nil
}

// Call is a single invocation recorded by RunnerMock.
type Call struct {
	Name string
	Args []string
}

func (c Call) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// RunnerMock records every invocation. OnRun, when set, produces the result, otherwise
// Response and Error are returned for every call.
type RunnerMock struct {
	Response []byte
	Error    error
	OnRun    func(name string, args []string) ([]byte, error)

	mu    sync.Mutex
	calls []Call
}

func (m *RunnerMock) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Name: name, Args: append([]string(nil), args...)})
	m.mu.Unlock()
	if m.OnRun != nil {
		return m.OnRun(name, args)
	}
	return m.Response, m.Error
}

func (m *RunnerMock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

func (m *RunnerMock) Reset() {
	m.mu.Lock()
	m.calls = nil
	m.mu.Unlock()
}
