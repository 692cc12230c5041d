package central

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/ibm/ovn-central/pkg/common"
	"github.com/ibm/ovn-central/pkg/config"
	"github.com/ibm/ovn-central/pkg/executor"
	"github.com/ibm/ovn-central/pkg/ovn"
)

const (
	DefaultsFile       = "/etc/default/ovn-central"
	NorthdDBParamsFile = "ovn-northd-db-params.conf"

	keyFile    = "key_host"
	certFile   = "cert_host"
	caCertFile = "ovn-central.crt"
)

// ServiceManager renders the ovn-ctl configuration of a release and runs its services
// with systemctl.
type ServiceManager struct {
	fs      afero.Fs
	runner  executor.Runner
	release *ovn.Release
	log     logr.Logger
}

func NewServiceManager(fs afero.Fs, runner executor.Runner, release *ovn.Release, log logr.Logger) *ServiceManager {
	return &ServiceManager{fs: fs, runner: runner, release: release, log: log}
}

// Render writes the ovn-ctl defaults and the northd database parameters. Without remote
// addresses ovn-ctl initializes a new cluster instead of joining one. It reports whether
// any file changed.
func (m *ServiceManager) Render(cfg *config.Config) (bool, error) {
	files := []struct {
		path string
		data []byte
	}{
		{DefaultsFile, m.ctlDefaults(cfg)},
		{filepath.Join(m.release.SysConfDir, NorthdDBParamsFile), northdDBParams(cfg)},
	}
	changed := false
	for _, f := range files {
		old, err := afero.ReadFile(m.fs, f.path)
		if err == nil && bytes.Equal(old, f.data) {
			continue
		}
		if err := common.WriteFileAtomic(m.fs, f.path, f.data, 0644); err != nil {
			return changed, errors.Wrapf(err, "render %s", f.path)
		}
		m.log.Info("rendered", "path", f.path)
		changed = true
	}
	return changed, nil
}

func (m *ServiceManager) ctlDefaults(cfg *config.Config) []byte {
	sysconf := m.release.SysConfDir
	opts := []string{
		"--db-nb-file=" + m.release.DBPath(ovn.NB),
		"--db-sb-file=" + m.release.DBPath(ovn.SB),
		"--ovn-nb-db-ssl-key=" + filepath.Join(sysconf, keyFile),
		"--ovn-nb-db-ssl-cert=" + filepath.Join(sysconf, certFile),
		"--ovn-nb-db-ssl-ca-cert=" + filepath.Join(sysconf, caCertFile),
		"--ovn-sb-db-ssl-key=" + filepath.Join(sysconf, keyFile),
		"--ovn-sb-db-ssl-cert=" + filepath.Join(sysconf, certFile),
		"--ovn-sb-db-ssl-ca-cert=" + filepath.Join(sysconf, caCertFile),
	}
	for _, c := range []struct {
		db   string
		port int
	}{{"nb", cfg.Ports.NBCluster}, {"sb", cfg.Ports.SBCluster}} {
		opts = append(opts,
			fmt.Sprintf("--db-%s-cluster-local-addr=%s", c.db, cfg.LocalAddress),
			fmt.Sprintf("--db-%s-cluster-local-port=%d", c.db, c.port),
			fmt.Sprintf("--db-%s-cluster-local-proto=ssl", c.db))
		if len(cfg.RemoteAddresses) > 0 {
			opts = append(opts,
				fmt.Sprintf("--db-%s-cluster-remote-addr=%s", c.db, cfg.RemoteAddresses[0]),
				fmt.Sprintf("--db-%s-cluster-remote-port=%d", c.db, c.port),
				fmt.Sprintf("--db-%s-cluster-remote-proto=ssl", c.db))
		}
	}
	var b strings.Builder
	b.WriteString("# generated by ovn-central, local changes are overwritten\n")
	b.WriteString("OVN_CTL_OPTS=" + strings.Join(opts, " \\\n  ") + "\n")
	return []byte(b.String())
}

func northdDBParams(cfg *config.Config) []byte {
	addrs := append([]string{cfg.LocalAddress}, cfg.RemoteAddresses...)
	return []byte(fmt.Sprintf("--ovnnb-db=%s --ovnsb-db=%s\n",
		strings.Join(ConnectionStrings(addrs, cfg.Ports.NB), ","),
		strings.Join(ConnectionStrings(addrs, cfg.Ports.SB), ",")))
}

// Enable unmasks and starts the services of the release. Running services are restarted
// when restart is set, so they pick up a changed configuration.
func (m *ServiceManager) Enable(ctx context.Context, restart bool) error {
	for _, svc := range m.release.Services {
		if err := m.systemctl(ctx, "unmask", svc); err != nil {
			return err
		}
		if err := m.systemctl(ctx, "enable", "--now", svc); err != nil {
			return err
		}
		if restart {
			if err := m.systemctl(ctx, "restart", svc); err != nil {
				return err
			}
		}
	}
	return nil
}

// Mask keeps the packaged services from creating standalone databases before the cluster
// configuration is rendered.
func (m *ServiceManager) Mask(ctx context.Context) error {
	for _, svc := range m.release.ServiceMasks {
		if err := m.systemctl(ctx, "mask", svc); err != nil {
			return err
		}
	}
	return nil
}

// Inactive returns the monitored services that are not running.
func (m *ServiceManager) Inactive(ctx context.Context) ([]string, error) {
	var res []string
	for _, svc := range m.release.NRPECheckServices {
		_, err := m.runner.Run(ctx, "systemctl", "is-active", "--quiet", svc)
		if err == nil {
			continue
		}
		var cmdErr *executor.CommandError
		if !errors.As(err, &cmdErr) {
			return nil, errors.Wrapf(err, "systemctl is-active %s", svc)
		}
		res = append(res, svc)
	}
	return res, nil
}

func (m *ServiceManager) systemctl(ctx context.Context, args ...string) error {
	m.log.V(1).Info("systemctl", "args", args)
	if _, err := m.runner.Run(ctx, "systemctl", args...); err != nil {
		return errors.Wrapf(err, "systemctl %s", strings.Join(args, " "))
	}
	return nil
}
