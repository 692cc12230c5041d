package main

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/spf13/afero"
	"k8s.io/klog/v2/klogr"

	"github.com/ibm/ovn-central/pkg/central"
	"github.com/ibm/ovn-central/pkg/config"
	"github.com/ibm/ovn-central/pkg/executor"
	"github.com/ibm/ovn-central/pkg/firewall"
	"github.com/ibm/ovn-central/pkg/leadership"
	"github.com/ibm/ovn-central/pkg/metrics"
	"github.com/ibm/ovn-central/pkg/ovn"
	"github.com/ibm/ovn-central/pkg/ovsdb"
	"github.com/ibm/ovn-central/pkg/unixctl"
)

// unit is everything a command needs, built from the configuration.
type unit struct {
	cfg     *config.Config
	fs      afero.Fs
	central *central.Central
	metrics *metrics.Metrics
	log     logr.Logger
	closers []func() error
}

func newUnit() (*unit, error) {
	v, err := config.NewViper(configFile)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	release, err := ovn.LookupRelease(cfg.Release)
	if err != nil {
		return nil, err
	}
	log := klogr.New()
	fs := afero.NewOsFs()
	runner := executor.NewExecRunner(log.WithName("exec"))

	var appctl ovn.Appctl
	switch cfg.ControlTransport {
	case config.TransportSocket:
		appctl = ovn.NewSocketAppctl(unixctl.NewClient(log.WithName("unixctl")), release, fs, log)
	default:
		appctl = ovn.NewCLIAppctl(runner, release)
	}
	cluster := ovn.NewAppctlCluster(appctl, release, log.WithName("cluster"))
	m := metrics.New()
	u := &unit{cfg: cfg, fs: fs, metrics: m, log: log}

	var store leadership.Store
	if len(cfg.EtcdEndpoints) > 0 {
		cli, err := leadership.NewEtcdClient(cfg.EtcdEndpoints)
		if err != nil {
			return nil, err
		}
		etcdStore := leadership.NewEtcdStore(cli, cfg.LeadershipPrefix, log.WithName("leadership"))
		u.closers = append(u.closers, etcdStore.Close, cli.Close)
		store = etcdStore
	} else {
		store = leadership.NewFileStore(fs, cfg.SettingsFile, cfg.IsLeader)
	}

	databases := func(db ovn.DB) (ovsdb.Databaser, error) {
		return ovsdb.NewDatabaseCtl(db, runner, log.WithName("ovsdb"))
	}
	u.central = &central.Central{
		Config:       cfg,
		Cluster:      cluster,
		Timer:        central.NewElectionTimerController(cluster, nil, m, log.WithName("election-timer")),
		Listeners:    central.NewListenerReconciler(cluster, databases, m, log.WithName("listener")),
		Bootstrapper: central.NewClusterBootstrapper(fs, runner, release, log.WithName("bootstrap")),
		Services:     central.NewServiceManager(fs, runner, release, log.WithName("services")),
		Firewall:     firewall.NewManager(firewall.NewUFW(runner), log.WithName("firewall")),
		Leadership:   store,
		Log:          log,
	}
	return u, nil
}

// run builds the unit, runs f and writes the metrics textfile when one is configured.
func run(ctx context.Context, f func(ctx context.Context, u *unit) error) error {
	u, err := newUnit()
	if err != nil {
		return err
	}
	defer u.close()
	err = f(ctx, u)
	if u.cfg.MetricsTextfile != "" {
		if mErr := u.metrics.WriteTextfile(u.cfg.MetricsTextfile); mErr != nil {
			u.log.Error(mErr, "cannot write metrics", "file", u.cfg.MetricsTextfile)
		}
	}
	return err
}

func (u *unit) close() {
	for _, c := range u.closers {
		if err := c(); err != nil {
			u.log.Error(err, "close")
		}
	}
}
