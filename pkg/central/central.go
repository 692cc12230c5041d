package central

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-logr/logr"

	"github.com/ibm/ovn-central/pkg/config"
	"github.com/ibm/ovn-central/pkg/firewall"
	"github.com/ibm/ovn-central/pkg/leadership"
	"github.com/ibm/ovn-central/pkg/ovn"
)

const RoleOVNController = "ovn-controller"

// Central operates the OVN central services of one unit.
type Central struct {
	Config       *config.Config
	Cluster      ovn.Cluster
	Timer        *ElectionTimerController
	Listeners    *ListenerReconciler
	Bootstrapper *ClusterBootstrapper
	Services     *ServiceManager
	Firewall     *firewall.Manager
	Leadership   leadership.Store
	Log          logr.Logger
}

// ConfigureOVN creates or updates the listeners and sets the election timers. Every step
// is a no-op unless this unit is the Raft leader of the database concerned.
func (c *Central) ConfigureOVN(ctx context.Context) error {
	probe := c.Config.InactivityProbeMs()
	ports := c.Config.Ports
	if err := c.Listeners.Reconcile(ctx, ovn.NB, PortMap{
		ports.NB: {"inactivity_probe": probe},
	}); err != nil {
		return err
	}
	if err := c.Listeners.Reconcile(ctx, ovn.SB, PortMap{
		ports.SB: {"role": RoleOVNController, "inactivity_probe": probe},
	}); err != nil {
		return err
	}
	if err := c.Listeners.Reconcile(ctx, ovn.SB, PortMap{
		ports.SBAdmin: {"inactivity_probe": probe},
	}); err != nil {
		return err
	}

	if status, msg := c.Config.Validate(); status != "" {
		// reported through AssessStatus, nothing to retry until the configuration changes
		c.Log.Info("not changing election timers", "reason", msg)
		return nil
	}
	for _, db := range []ovn.DB{ovn.NB, ovn.SB} {
		if err := c.Timer.Converge(ctx, db, c.Config.ElectionTimer); err != nil {
			return err
		}
	}
	return nil
}

// ClusterStatusMessage describes the databases this unit leads and whether northd is
// active, e.g. "leader: ovnnb_db, ovnsb_db northd: active".
func (c *Central) ClusterStatusMessage(ctx context.Context) (string, error) {
	var leaders []string
	for _, db := range []ovn.DB{ovn.NB, ovn.SB} {
		status, err := c.Cluster.ClusterStatus(ctx, db)
		if err != nil {
			return "", err
		}
		if status != nil && status.IsClusterLeader() {
			leaders = append(leaders, db.Target())
		}
	}
	var msg []string
	if len(leaders) > 0 {
		msg = append(msg, "leader: "+strings.Join(leaders, ", "))
	}
	northd, err := c.Cluster.NorthdStatus(ctx)
	if err != nil {
		return "", err
	}
	if northd == ovn.NorthdActive {
		msg = append(msg, "northd: active")
	}
	return strings.Join(msg, " "), nil
}

// AssessStatus returns the workload status and message of the unit.
func (c *Central) AssessStatus(ctx context.Context) (string, string, error) {
	if len(c.Config.RemoteAddresses) == 0 {
		return config.StatusBlocked, "Charm requires peers to operate, add more units. A minimum of 3 is required for HA", nil
	}
	if !c.Config.CertificatesReady {
		return config.StatusBlocked, "'certificates' missing", nil
	}
	if status, msg := c.Config.Validate(); status != "" {
		return status, msg, nil
	}
	clusterMsg, err := c.ClusterStatusMessage(ctx)
	if err != nil {
		return "", "", err
	}
	if clusterMsg != "" {
		return config.StatusActive, fmt.Sprintf("Unit is ready (%s)", clusterMsg), nil
	}
	return config.StatusActive, "Unit is ready", nil
}
