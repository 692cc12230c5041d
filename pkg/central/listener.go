package central

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/ibm/ovn-central/pkg/metrics"
	"github.com/ibm/ovn-central/pkg/ovn"
	"github.com/ibm/ovn-central/pkg/ovsdb"
)

// PortSettings are connection columns and the values they must hold.
type PortSettings map[string]interface{}

// PortMap maps a listener port to its settings.
type PortMap map[int]PortSettings

// DatabaseFactory opens the connection table access for a database.
type DatabaseFactory func(db ovn.DB) (ovsdb.Databaser, error)

// ListenerReconciler makes sure every port of a PortMap has a pssl:<port> connection row
// carrying the given settings. The rows are replicated, so only the Raft leader writes them.
type ListenerReconciler struct {
	cluster   ovn.Cluster
	databases DatabaseFactory
	metrics   *metrics.Metrics
	log       logr.Logger
}

func NewListenerReconciler(cluster ovn.Cluster, databases DatabaseFactory, m *metrics.Metrics, log logr.Logger) *ListenerReconciler {
	return &ListenerReconciler{cluster: cluster, databases: databases, metrics: m, log: log}
}

// ListenerTarget returns the Connection target of a port, e.g. pssl:6641.
func ListenerTarget(port int) string {
	return fmt.Sprintf("pssl:%d", port)
}

func (r *ListenerReconciler) Reconcile(ctx context.Context, db ovn.DB, ports PortMap) error {
	if err := db.Validate(); err != nil {
		return err
	}
	log := r.log.WithValues("db", string(db))
	// The Raft leader of a database is not necessarily the leader unit.
	status, err := r.cluster.ClusterStatus(ctx, db)
	if err != nil {
		return err
	}
	if status == nil || !status.IsClusterLeader() {
		log.V(1).Info("not the cluster leader, skipping listeners")
		return nil
	}
	log.V(1).Info("is_cluster_leader")
	table, err := r.databases(db)
	if err != nil {
		return err
	}

	portList := make([]int, 0, len(ports))
	for p := range ports {
		portList = append(portList, p)
	}
	sort.Ints(portList)
	for _, port := range portList {
		settings := ports[port]
		target := ListenerTarget(port)
		cond := ovsdb.EqualCondition("target", target)
		log.V(1).Info("port", "port", port, "settings", settings)

		rows, err := table.Find(ctx, ovsdb.TableConnection, cond)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			// The listener is shared by all units and cannot be bound to a local address.
			log.Info("create listener", "target", target)
			if err := table.CreateConnection(ctx, target); err != nil {
				return err
			}
			if r.metrics != nil {
				r.metrics.ObserveListenerCreated(string(db))
			}
			if rows, err = table.Find(ctx, ovsdb.TableConnection, cond); err != nil {
				return err
			}
		}
		if len(rows) == 0 {
			return errors.Errorf("connection %s not found after creating it", target)
		}
		keys := make([]string, 0, len(settings))
		for k := range settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, row := range rows {
			uuid, err := row.GetUUID()
			if err != nil {
				return err
			}
			for _, k := range keys {
				log.V(1).Info("set", "uuid", uuid.GoUUID, "column", k, "value", settings[k])
				if err := table.Set(ctx, ovsdb.TableConnection, uuid.GoUUID, k, settings[k]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
