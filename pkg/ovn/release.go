package ovn

import (
	"path/filepath"
	"sort"

	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
)

const (
	Train  = "train"
	Ussuri = "ussuri"

	NorthdTarget = "ovn-northd"
)

// Release holds what differs between packaged OVN releases.
type Release struct {
	Name       string
	SysConfDir string
	RunDir     string
	DBDir      string
	// UseOVSAppctl selects ovs-appctl over ovn-appctl, the latter is not shipped before ussuri.
	UseOVSAppctl          bool
	NorthdStatusSupported bool
	Services              []string
	NRPECheckServices     []string
	ServiceMasks          []string
}

var releases = map[string]Release{
	Train: {
		Name:         Train,
		SysConfDir:   "/etc/openvswitch",
		RunDir:       "/var/run/openvswitch",
		DBDir:        "/var/lib/openvswitch",
		UseOVSAppctl: true,
		Services:     []string{"ovn-central"},
		NRPECheckServices: []string{
			"ovn-northd",
			"ovn-nb-ovsdb",
			"ovn-sb-ovsdb",
		},
		ServiceMasks: []string{
			"openvswitch-switch.service",
			"ovs-vswitchd.service",
			"ovsdb-server.service",
			"ovn-central.service",
		},
	},
	Ussuri: {
		Name:                  Ussuri,
		SysConfDir:            "/etc/ovn",
		RunDir:                "/var/run/ovn",
		DBDir:                 "/var/lib/ovn",
		NorthdStatusSupported: true,
		Services: []string{
			"ovn-central",
			"ovn-ovsdb-server-nb",
			"ovn-ovsdb-server-sb",
		},
		NRPECheckServices: []string{
			"ovn-northd",
			"ovn-ovsdb-server-nb",
			"ovn-ovsdb-server-sb",
		},
		ServiceMasks: []string{
			"ovn-central.service",
			"ovn-ovsdb-server-nb.service",
			"ovn-ovsdb-server-sb.service",
		},
	},
}

// LookupRelease returns a copy of the release settings, callers may modify it.
func LookupRelease(name string) (*Release, error) {
	r, ok := releases[name]
	if !ok {
		return nil, errors.Errorf("unknown release %q, expected one of %v", name, ReleaseNames())
	}
	var res Release
	if err := copier.CopyWithOption(&res, &r, copier.Option{DeepCopy: true}); err != nil {
		return nil, errors.Wrapf(err, "copy release %s", name)
	}
	return &res, nil
}

func ReleaseNames() []string {
	names := make([]string, 0, len(releases))
	for n := range releases {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CtlSocket resolves an appctl target to the control socket path passed with -t.
// ovn-northd and absolute paths are left for appctl to resolve.
func (r *Release) CtlSocket(target string) string {
	if target == NorthdTarget || filepath.IsAbs(target) {
		return target
	}
	return filepath.Join(r.RunDir, target+".ctl")
}

// DBPath returns the absolute path of the database file.
func (r *Release) DBPath(db DB) string {
	return filepath.Join(r.DBDir, db.File())
}
