package central

import (
	"context"

	"github.com/ibm/ovn-central/pkg/config"
	"github.com/ibm/ovn-central/pkg/firewall"
	"github.com/ibm/ovn-central/pkg/leadership"
	"github.com/ibm/ovn-central/pkg/ovn"
	"github.com/ibm/ovn-central/pkg/reactive"
)

const (
	FlagInstalled             = "charm.installed"
	FlagFirewallInitialized   = "charm.firewall_initialized"
	FlagConfigRendered        = "config.rendered"
	FlagIsLeader              = "leadership.is_leader"
	FlagNBCIDSet              = "leadership.set." + leadership.SettingNBCID
	FlagSBCIDSet              = "leadership.set." + leadership.SettingSBCID
	FlagPeerConnected         = "ovsdb-peer.connected"
	FlagPeerAvailable         = "ovsdb-peer.available"
	FlagClientsConnected      = "ovsdb-cms.connected"
	FlagCertificatesConnected = "certificates.connected"
	FlagCertificatesAvailable = "certificates.available"
)

// DeriveFlags sets the transient flags describing this run: leadership, leader settings,
// peers, clients and certificates.
func (c *Central) DeriveFlags(ctx context.Context, bus *reactive.Bus) error {
	bus.SetTransient(FlagInstalled)
	leader, err := c.Leadership.IsLeader(ctx)
	if err != nil {
		return err
	}
	if leader {
		bus.SetTransient(FlagIsLeader)
	}
	set, err := leadership.SetKeys(ctx, c.Leadership, leadership.SettingNBCID, leadership.SettingSBCID)
	if err != nil {
		return err
	}
	for _, k := range set {
		bus.SetTransient("leadership.set." + k)
	}
	if c.Config.LocalAddress != "" {
		bus.SetTransient(FlagPeerConnected)
		if len(c.Config.RemoteAddresses) > 0 {
			bus.SetTransient(FlagPeerAvailable)
		}
	}
	if len(c.Config.ClientAddresses) > 0 {
		bus.SetTransient(FlagClientsConnected)
	}
	if c.Config.CertificatesReady {
		bus.SetTransient(FlagCertificatesConnected)
		bus.SetTransient(FlagCertificatesAvailable)
	}
	return nil
}

func (c *Central) Handlers() []reactive.Handler {
	return []reactive.Handler{
		{
			Name:     "initialize-firewall",
			WhenNone: []string{FlagFirewallInitialized},
			Run:      c.initializeFirewall,
		},
		{
			Name:     "initialize-ovsdbs",
			When:     []string{FlagInstalled, FlagIsLeader, FlagPeerConnected},
			WhenNone: []string{FlagNBCIDSet, FlagSBCIDSet},
			Run:      c.initializeOVSDBs,
		},
		{
			Name:     "announce-leader-ready",
			When:     []string{FlagConfigRendered, FlagCertificatesConnected, FlagCertificatesAvailable, FlagIsLeader, FlagPeerConnected},
			WhenNone: []string{FlagNBCIDSet, FlagSBCIDSet},
			Run:      c.announceLeaderReady,
		},
		{
			Name: "configure-firewall",
			When: []string{FlagPeerAvailable},
			Run:  c.configureFirewall,
		},
		{
			Name: "render",
			When: []string{FlagPeerAvailable, FlagNBCIDSet, FlagSBCIDSet, FlagCertificatesConnected, FlagCertificatesAvailable},
			Run:  c.render,
		},
	}
}

// Reconcile derives the flags, runs the handlers and returns the resulting workload status.
func (c *Central) Reconcile(ctx context.Context, bus *reactive.Bus) (string, string, error) {
	if err := c.DeriveFlags(ctx, bus); err != nil {
		return "", "", err
	}
	bus.Register(c.Handlers()...)
	if err := bus.Dispatch(ctx); err != nil {
		return "", "", err
	}
	return c.AssessStatus(ctx)
}

func (c *Central) initializeFirewall(ctx context.Context, bus *reactive.Bus) error {
	if err := c.Firewall.Initialize(ctx); err != nil {
		return err
	}
	bus.SetFlag(FlagFirewallInitialized)
	return nil
}

// initializeOVSDBs lets the leader unit start a new cluster: its database servers come up
// without remote addresses and initialize the databases.
func (c *Central) initializeOVSDBs(ctx context.Context, bus *reactive.Bus) error {
	cfg := *c.Config
	cfg.RemoteAddresses = nil
	if err := c.startServices(ctx, bus, &cfg); err != nil {
		return err
	}
	bus.SetFlag(FlagConfigRendered)
	return nil
}

// startServices renders the ovn-ctl configuration and starts the services, restarting them
// when an earlier run already started them with a different configuration.
func (c *Central) startServices(ctx context.Context, bus *reactive.Bus, cfg *config.Config) error {
	changed, err := c.Services.Render(cfg)
	if err != nil {
		return err
	}
	return c.Services.Enable(ctx, changed && bus.IsSet(FlagConfigRendered))
}

// announceLeaderReady configures the listeners on the new cluster and publishes the
// cluster ids, which tells the peers to join.
func (c *Central) announceLeaderReady(ctx context.Context, bus *reactive.Bus) error {
	if err := c.ConfigureOVN(ctx); err != nil {
		return err
	}
	settings := map[string]string{leadership.SettingReady: "true"}
	for db, key := range map[ovn.DB]string{ovn.NB: leadership.SettingNBCID, ovn.SB: leadership.SettingSBCID} {
		status, err := c.Cluster.ClusterStatus(ctx, db)
		if err != nil {
			return err
		}
		if status == nil {
			c.Log.Info("database not clustered yet, not announcing", "db", db)
			return nil
		}
		settings[key] = status.ClusterID.String()
	}
	if err := c.Leadership.Set(ctx, settings); err != nil {
		return err
	}
	bus.SetTransient(FlagNBCIDSet)
	bus.SetTransient(FlagSBCIDSet)
	return nil
}

func (c *Central) configureFirewall(ctx context.Context, bus *reactive.Bus) error {
	return c.Firewall.Configure(ctx, c.FirewallAccess(bus.IsSet(FlagClientsConnected)))
}

// FirewallAccess opens the database and cluster ports to the peers and, once clients are
// related, the client ports to the clients.
func (c *Central) FirewallAccess(clientsConnected bool) []firewall.PortAccess {
	ports := c.Config.Ports
	access := []firewall.PortAccess{
		{
			Ports: []int{ports.NB, ports.SBAdmin, ports.SBCluster, ports.NBCluster},
			Addrs: c.Config.RemoteAddresses,
		},
	}
	if clientsConnected {
		access = append(access, firewall.PortAccess{
			Ports: []int{ports.NB, ports.SBAdmin},
			Addrs: c.Config.ClientAddresses,
		})
	}
	return access
}

// render joins the cluster announced by the leader and applies listener configuration
// changes made after deployment.
func (c *Central) render(ctx context.Context, bus *reactive.Bus) error {
	cfg := c.Config
	if err := c.Bootstrapper.JoinDB(ctx, ovn.NB, cfg.LocalAddress, cfg.RemoteAddresses, cfg.Ports.NBCluster); err != nil {
		return err
	}
	if err := c.Bootstrapper.JoinDB(ctx, ovn.SB, cfg.LocalAddress, cfg.RemoteAddresses, cfg.Ports.SBCluster); err != nil {
		return err
	}
	if err := c.startServices(ctx, bus, cfg); err != nil {
		return err
	}
	// post deployment changes to the listeners
	if err := c.ConfigureOVN(ctx); err != nil {
		return err
	}
	bus.SetFlag(FlagConfigRendered)
	return nil
}
