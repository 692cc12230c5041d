package executor

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunnerSuccess(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh is not available")
	}
	r := NewExecRunner(logr.Discard())
	out, err := r.Run(context.Background(), "sh", "-c", "echo out; echo err 1>&2")
	require.NoError(t, err)
	assert.Contains(t, string(out), "out")
	assert.Contains(t, string(out), "err")
}

func TestExecRunnerNonZeroExit(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh is not available")
	}
	r := NewExecRunner(logr.Discard())
	out, err := r.Run(context.Background(), "sh", "-c", "echo broken; exit 3")
	require.Error(t, err)
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Equal(t, []string{"sh", "-c", "echo broken; exit 3"}, cmdErr.Cmd)
	assert.Contains(t, string(out), "broken")
	assert.Contains(t, cmdErr.Error(), "broken")
}

func TestExecRunnerMissingBinary(t *testing.T) {
	r := NewExecRunner(logr.Discard())
	_, err := r.Run(context.Background(), "/nonexistent/ovn-appctl-binary")
	require.Error(t, err)
	var cmdErr *CommandError
	assert.False(t, errors.As(err, &cmdErr), "a missing binary must not look like a command failure")
}

func TestRunnerMockRecordsCalls(t *testing.T) {
	m := &RunnerMock{OnRun: func(name string, args []string) ([]byte, error) {
		if name == "fail" {
			return nil, errors.New("boom")
		}
		return []byte("ok"), nil
	}}
	out, err := m.Run(context.Background(), "ovn-nbctl", "list", "connection")
	assert.NoError(t, err)
	assert.Equal(t, "ok", string(out))
	_, err = m.Run(context.Background(), "fail")
	assert.Error(t, err)

	calls := m.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "ovn-nbctl list connection", calls[0].String())
	m.Reset()
	assert.Empty(t, m.Calls())
}
