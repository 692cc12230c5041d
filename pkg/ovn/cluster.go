package ovn

import (
	"context"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/ibm/ovn-central/pkg/executor"
	"github.com/ibm/ovn-central/pkg/unixctl"
)

const (
	NorthdActive  = "active"
	NorthdUnknown = "unknown"
)

// Cluster is the Raft surface of the clustered databases on the local unit.
type Cluster interface {
	// ClusterStatus returns nil without an error when the server is not ready.
	ClusterStatus(ctx context.Context, db DB) (*ClusterStatus, error)
	ChangeElectionTimer(ctx context.Context, db DB, timerMs int) error
	// NorthdStatus returns the ovn-northd state (active, standby, paused) or NorthdUnknown.
	NorthdStatus(ctx context.Context) (string, error)
}

type AppctlCluster struct {
	appctl  Appctl
	release *Release
	log     logr.Logger
}

func NewAppctlCluster(appctl Appctl, release *Release, log logr.Logger) *AppctlCluster {
	return &AppctlCluster{appctl: appctl, release: release, log: log}
}

func (c *AppctlCluster) ClusterStatus(ctx context.Context, db DB) (*ClusterStatus, error) {
	if err := db.Validate(); err != nil {
		return nil, err
	}
	out, err := c.appctl.Call(ctx, db.Target(), "cluster/status", db.SchemaName())
	if err == nil {
		var st *ClusterStatus
		if st, err = ParseClusterStatus(out); err == nil {
			return st, nil
		}
	}
	// The status is queried before the databases are clustered and while units are paused.
	if IsNotReady(err) {
		c.log.V(1).Info("Unable to get cluster status, ovsdb-server not ready yet?", "db", db, "error", err.Error())
		return nil, nil
	}
	return nil, errors.Wrapf(err, "cluster status of %s", db.Target())
}

func (c *AppctlCluster) ChangeElectionTimer(ctx context.Context, db DB, timerMs int) error {
	if err := db.Validate(); err != nil {
		return err
	}
	_, err := c.appctl.Call(ctx, db.Target(), "cluster/change-election-timer", db.SchemaName(), strconv.Itoa(timerMs))
	return errors.Wrapf(err, "change election timer of %s to %d", db.Target(), timerMs)
}

func (c *AppctlCluster) NorthdStatus(ctx context.Context) (string, error) {
	if !c.release.NorthdStatusSupported {
		return NorthdUnknown, nil
	}
	out, err := c.appctl.Call(ctx, NorthdTarget, "status")
	if err != nil {
		if IsNotReady(err) {
			c.log.V(1).Info("Unable to get ovn-northd status", "error", err.Error())
			return NorthdUnknown, nil
		}
		return "", errors.Wrap(err, "ovn-northd status")
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "Status:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "Status:")), nil
		}
	}
	return NorthdUnknown, nil
}

// IsNotReady reports whether err means the database server or its cluster is not up yet:
// the tool ran and failed, the control socket is absent or refuses connections, the server
// rejected the command, or the output was not a cluster status. A missing tool, a permission
// problem or a cancelled context are not in this class.
func IsNotReady(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var cmdErr *executor.CommandError
	if errors.As(err, &cmdErr) {
		return true
	}
	var dialErr *unixctl.DialError
	if errors.As(err, &dialErr) {
		return errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED)
	}
	var replyErr *unixctl.ReplyError
	if errors.As(err, &replyErr) {
		return true
	}
	return errors.Is(err, ErrNotReady)
}

// TimerChange is a change-election-timer request recorded by ClusterMock.
type TimerChange struct {
	DB      DB
	TimerMs int
}

// ClusterMock keeps one status per database and applies timer changes to it.
type ClusterMock struct {
	Statuses  map[DB]*ClusterStatus
	StatusErr error
	ChangeErr error
	Northd    string
	// OnChange runs after a change was applied, e.g. to hand leadership to another unit.
	OnChange func(change TimerChange, status *ClusterStatus)

	mu      sync.Mutex
	changes []TimerChange
	queries int
}

func NewClusterMock() *ClusterMock {
	return &ClusterMock{Statuses: map[DB]*ClusterStatus{}, Northd: NorthdUnknown}
}

// SetLeader installs a ready status for db.
func (m *ClusterMock) SetLeader(db DB, leader bool, timerMs int) *ClusterStatus {
	role := "follower"
	if leader {
		role = "leader"
	}
	st := &ClusterStatus{Name: db.SchemaName(), Role: role, ElectionTimer: timerMs}
	m.mu.Lock()
	m.Statuses[db] = st
	m.mu.Unlock()
	return st
}

func (m *ClusterMock) ClusterStatus(ctx context.Context, db DB) (*ClusterStatus, error) {
	if err := db.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	if m.StatusErr != nil {
		return nil, m.StatusErr
	}
	st, ok := m.Statuses[db]
	if !ok || st == nil {
		return nil, nil
	}
	res := *st
	return &res, nil
}

func (m *ClusterMock) ChangeElectionTimer(ctx context.Context, db DB, timerMs int) error {
	if err := db.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	change := TimerChange{DB: db, TimerMs: timerMs}
	m.changes = append(m.changes, change)
	if m.ChangeErr != nil {
		return m.ChangeErr
	}
	st, ok := m.Statuses[db]
	if !ok || st == nil {
		return errors.Errorf("%s is not clustered", db)
	}
	st.ElectionTimer = timerMs
	if m.OnChange != nil {
		m.OnChange(change, st)
	}
	return nil
}

func (m *ClusterMock) NorthdStatus(ctx context.Context) (string, error) {
	return m.Northd, nil
}

func (m *ClusterMock) Changes() []TimerChange {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TimerChange(nil), m.changes...)
}

func (m *ClusterMock) Queries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries
}
