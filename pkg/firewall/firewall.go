package firewall

import (
	"context"
	"sort"

	"github.com/go-logr/logr"
)

// Comment tags the rules owned by this unit.
const Comment = "charm-ovn-central"

type Rule struct {
	Num     int
	To      string
	Action  string // lower case, e.g. "allow in", "reject in"
	From    string
	Comment string
}

// Backend is the host firewall.
type Backend interface {
	Enable(ctx context.Context) error
	DefaultPolicy(ctx context.Context, policy, direction string) error
	// Reject blocks tcp port from every source.
	Reject(ctx context.Context, port int, comment string) error
	// Allow inserts an allow rule for src ahead of the reject rules.
	Allow(ctx context.Context, src string, port int, comment string) error
	Status(ctx context.Context) ([]Rule, error)
	Delete(ctx context.Context, num int) error
}

// PortAccess opens Ports to Addrs only.
type PortAccess struct {
	Ports []int
	Addrs []string
}

type Manager struct {
	backend Backend
	log     logr.Logger
}

func NewManager(backend Backend, log logr.Logger) *Manager {
	return &Manager{backend: backend, log: log}
}

// Initialize enables the firewall allowing everything by default. It disrupts active
// connections and is meant to run once.
func (m *Manager) Initialize(ctx context.Context) error {
	if err := m.backend.Enable(ctx); err != nil {
		return err
	}
	for _, direction := range []string{"incoming", "outgoing", "routed"} {
		if err := m.backend.DefaultPolicy(ctx, "allow", direction); err != nil {
			return err
		}
	}
	return nil
}

// Configure locks down the ports that OVN RBAC does not protect. Every listed port rejects
// all sources except the addresses given for it, allow rules left from earlier address sets
// are removed.
func (m *Manager) Configure(ctx context.Context, access []PortAccess) error {
	ports := map[int]bool{}
	for _, a := range access {
		for _, p := range a.Ports {
			ports[p] = true
		}
	}
	portList := make([]int, 0, len(ports))
	for p := range ports {
		portList = append(portList, p)
	}
	sort.Ints(portList)
	for _, p := range portList {
		if err := m.backend.Reject(ctx, p, Comment); err != nil {
			return err
		}
	}

	allowed := map[string]bool{}
	for _, a := range access {
		for _, p := range a.Ports {
			for _, addr := range a.Addrs {
				if err := m.backend.Allow(ctx, addr, p, Comment); err != nil {
					return err
				}
				allowed[addr] = true
			}
		}
	}

	rules, err := m.backend.Status(ctx)
	if err != nil {
		return err
	}
	var stale []int
	for _, r := range rules {
		if r.Comment == Comment && r.Action == "allow in" && !allowed[r.From] {
			stale = append(stale, r.Num)
		}
	}
	// deleting renumbers the rules that follow
	sort.Sort(sort.Reverse(sort.IntSlice(stale)))
	for _, num := range stale {
		m.log.Info("delete stale firewall rule", "num", num)
		if err := m.backend.Delete(ctx, num); err != nil {
			return err
		}
	}
	return nil
}
