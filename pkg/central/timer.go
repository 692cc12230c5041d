package central

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/ibm/ovn-central/pkg/config"
	"github.com/ibm/ovn-central/pkg/metrics"
	"github.com/ibm/ovn-central/pkg/ovn"
)

// PolicyError rejects an election timer outside of [config.MinElectionTimer, config.MaxElectionTimer].
type PolicyError struct {
	TargetSec int
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("election timer %ds out of range [%d, %d]", e.TargetSec, config.MinElectionTimer, config.MaxElectionTimer)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the Sleeper used outside of tests.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ElectionTimerController moves the Raft election timer of a database to a target value.
// ovsdb-server refuses to more than double or halve the timer in one request, so the
// change is made in steps, each followed by a pause of one election window.
type ElectionTimerController struct {
	cluster ovn.Cluster
	sleep   Sleeper
	metrics *metrics.Metrics
	log     logr.Logger
}

func NewElectionTimerController(cluster ovn.Cluster, sleep Sleeper, m *metrics.Metrics, log logr.Logger) *ElectionTimerController {
	if sleep == nil {
		sleep = SleepContext
	}
	return &ElectionTimerController{cluster: cluster, sleep: sleep, metrics: m, log: log}
}

// NextElectionTimer returns the next step from cur towards tgt, both in milliseconds.
func NextElectionTimer(cur, tgt int) int {
	if tgt > cur {
		if cur*2 < tgt {
			return cur * 2
		}
		return tgt
	}
	if cur/2 > tgt {
		return cur / 2
	}
	return tgt
}

// Converge sets the election timer of db to targetSec seconds. Only the Raft leader acts,
// elsewhere and on a server that is not ready this is a no-op. When leadership moves away
// mid-way the change is abandoned, the next leader resumes it on its next run.
func (c *ElectionTimerController) Converge(ctx context.Context, db ovn.DB, targetSec int) error {
	if err := db.Validate(); err != nil {
		return err
	}
	if targetSec < config.MinElectionTimer || targetSec > config.MaxElectionTimer {
		err := &PolicyError{TargetSec: targetSec}
		c.log.Error(err, "Attempt to set election timer to invalid value", "db", db)
		return err
	}
	tgt := targetSec * 1000
	log := c.log.WithValues("db", string(db), "schema", db.SchemaName())

	status, err := c.cluster.ClusterStatus(ctx, db)
	if err != nil {
		return err
	}
	if status == nil || !status.IsClusterLeader() {
		log.V(1).Info("not the cluster leader, skipping election timer")
		return nil
	}
	c.observe(db, status)
	if status.ElectionTimer == tgt {
		log.V(1).Info("election timer already set to target value", "timer", tgt)
		return nil
	}
	for status != nil && status.IsClusterLeader() && status.ElectionTimer != tgt {
		cur := status.ElectionTimer
		if cur <= 0 {
			return errors.Errorf("%s reports election timer %d", db.Target(), cur)
		}
		next := NextElectionTimer(cur, tgt)
		log.Info(fmt.Sprintf("change %s election timer %dms -> %dms", db.SchemaName(), cur, next))
		if err := c.cluster.ChangeElectionTimer(ctx, db, next); err != nil {
			return err
		}
		if c.metrics != nil {
			c.metrics.ObserveTimerChange(string(db), next)
		}
		// let one election window pass before the next step
		if err := c.sleep(ctx, time.Duration((cur+next)/2)*time.Millisecond); err != nil {
			return err
		}
		if status, err = c.cluster.ClusterStatus(ctx, db); err != nil {
			return err
		}
		c.observe(db, status)
	}
	if status == nil || !status.IsClusterLeader() {
		log.Info("lost cluster leadership, abandoning election timer change", "target", tgt)
	}
	return nil
}

func (c *ElectionTimerController) observe(db ovn.DB, status *ovn.ClusterStatus) {
	if c.metrics == nil || status == nil {
		return
	}
	c.metrics.ObserveStatus(string(db), status.IsClusterLeader(), status.ElectionTimer)
}
