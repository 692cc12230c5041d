package ovn

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/ibm/ovn-central/pkg/executor"
	"github.com/ibm/ovn-central/pkg/unixctl"
)

// Appctl sends a command to the control socket of an OVN daemon.
type Appctl interface {
	Call(ctx context.Context, target string, args ...string) (string, error)
}

// CLIAppctl runs ovn-appctl, or ovs-appctl on releases that do not ship it.
type CLIAppctl struct {
	runner  executor.Runner
	release *Release
}

func NewCLIAppctl(runner executor.Runner, release *Release) *CLIAppctl {
	return &CLIAppctl{runner: runner, release: release}
}

func (a *CLIAppctl) Call(ctx context.Context, target string, args ...string) (string, error) {
	bin := "ovn-appctl"
	if a.release.UseOVSAppctl {
		bin = "ovs-appctl"
	}
	out, err := a.runner.Run(ctx, bin, append([]string{"-t", a.release.CtlSocket(target)}, args...)...)
	return string(out), err
}

// SocketAppctl talks JSON-RPC to the control socket directly.
type SocketAppctl struct {
	client  *unixctl.Client
	release *Release
	fs      afero.Fs
	log     logr.Logger
}

func NewSocketAppctl(client *unixctl.Client, release *Release, fs afero.Fs, log logr.Logger) *SocketAppctl {
	return &SocketAppctl{client: client, release: release, fs: fs, log: log}
}

func (a *SocketAppctl) Call(ctx context.Context, target string, args ...string) (string, error) {
	if len(args) == 0 {
		return "", errors.New("no appctl command")
	}
	path, err := a.socketPath(target)
	if err != nil {
		return "", err
	}
	return a.client.Call(ctx, path, args[0], args[1:]...)
}

// socketPath resolves daemons started without --unixctl the way appctl does,
// through <rundir>/<target>.pid and <rundir>/<target>.<pid>.ctl.
func (a *SocketAppctl) socketPath(target string) (string, error) {
	if target != NorthdTarget {
		return a.release.CtlSocket(target), nil
	}
	pidFile := filepath.Join(a.release.RunDir, target+".pid")
	data, err := afero.ReadFile(a.fs, pidFile)
	if err != nil {
		// no pidfile means the daemon is not running
		return "", &unixctl.DialError{Path: pidFile, Err: err}
	}
	pid := strings.TrimSpace(string(data))
	if pid == "" {
		return "", errors.Errorf("empty pidfile %s", pidFile)
	}
	return filepath.Join(a.release.RunDir, target+"."+pid+".ctl"), nil
}
