package config

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	KeyElectionTimer     = "ovsdb-server-election-timer"
	KeyInactivityProbe   = "ovsdb-server-inactivity-probe"
	KeyRelease           = "release"
	KeyControlTransport  = "control-transport"
	KeyPortNB            = "ports.nb"
	KeyPortSB            = "ports.sb"
	KeyPortSBAdmin       = "ports.sb-admin"
	KeyPortNBCluster     = "ports.nb-cluster"
	KeyPortSBCluster     = "ports.sb-cluster"
	KeyLocalAddress      = "cluster.local-address"
	KeyRemoteAddresses   = "cluster.remote-addresses"
	KeyClientAddresses   = "clients.remote-addresses"
	KeyEtcdEndpoints     = "leadership.etcd-endpoints"
	KeyLeadershipPrefix  = "leadership.prefix"
	KeyIsLeader          = "leadership.is-leader"
	KeySettingsFile      = "leadership.settings-file"
	KeyStateFile         = "state-file"
	KeyMetricsTextfile   = "metrics-textfile"
	KeyNagiosOutputFile  = "nagios.output-file"
	KeyCertificatesReady = "certificates.available"

	EnvPrefix = "OVN_CENTRAL"

	TransportCLI    = "cli"
	TransportSocket = "socket"

	MinElectionTimer = 1
	MaxElectionTimer = 60

	StatusBlocked = "blocked"
	StatusActive  = "active"
	StatusWaiting = "waiting"
)

type Ports struct {
	NB        int
	SB        int
	SBAdmin   int
	NBCluster int
	SBCluster int
}

type Config struct {
	ElectionTimer     int
	InactivityProbe   int
	Release           string
	ControlTransport  string
	Ports             Ports
	LocalAddress      string
	RemoteAddresses   []string
	ClientAddresses   []string
	EtcdEndpoints     []string
	LeadershipPrefix  string
	IsLeader          bool
	SettingsFile      string
	StateFile         string
	MetricsTextfile   string
	NagiosOutputFile  string
	CertificatesReady bool
}

// SetDefaults registers the defaults of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyElectionTimer, 4)
	v.SetDefault(KeyInactivityProbe, 60)
	v.SetDefault(KeyRelease, "ussuri")
	v.SetDefault(KeyControlTransport, TransportCLI)
	v.SetDefault(KeyPortNB, 6641)
	v.SetDefault(KeyPortSB, 6642)
	v.SetDefault(KeyPortSBAdmin, 16642)
	v.SetDefault(KeyPortNBCluster, 6643)
	v.SetDefault(KeyPortSBCluster, 6644)
	v.SetDefault(KeyLeadershipPrefix, "ovn-central")
	v.SetDefault(KeySettingsFile, "/var/lib/ovn-central/leader-settings.json")
	v.SetDefault(KeyStateFile, "/var/lib/ovn-central/state.json")
	v.SetDefault(KeyNagiosOutputFile, "/var/lib/nagios/ovn_db_connections.out")
	v.SetDefault(KeyCertificatesReady, true)
}

// NewViper returns a viper instance reading OVN_CENTRAL_* environment variables and, when
// file is not empty, a config file.
func NewViper(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", file)
		}
	}
	return v, nil
}

func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		ElectionTimer:    v.GetInt(KeyElectionTimer),
		InactivityProbe:  v.GetInt(KeyInactivityProbe),
		Release:          v.GetString(KeyRelease),
		ControlTransport: v.GetString(KeyControlTransport),
		Ports: Ports{
			NB:        v.GetInt(KeyPortNB),
			SB:        v.GetInt(KeyPortSB),
			SBAdmin:   v.GetInt(KeyPortSBAdmin),
			NBCluster: v.GetInt(KeyPortNBCluster),
			SBCluster: v.GetInt(KeyPortSBCluster),
		},
		LocalAddress:      v.GetString(KeyLocalAddress),
		RemoteAddresses:   v.GetStringSlice(KeyRemoteAddresses),
		ClientAddresses:   v.GetStringSlice(KeyClientAddresses),
		EtcdEndpoints:     v.GetStringSlice(KeyEtcdEndpoints),
		LeadershipPrefix:  v.GetString(KeyLeadershipPrefix),
		IsLeader:          v.GetBool(KeyIsLeader),
		SettingsFile:      v.GetString(KeySettingsFile),
		StateFile:         v.GetString(KeyStateFile),
		MetricsTextfile:   v.GetString(KeyMetricsTextfile),
		NagiosOutputFile:  v.GetString(KeyNagiosOutputFile),
		CertificatesReady: v.GetBool(KeyCertificatesReady),
	}
	switch cfg.ControlTransport {
	case TransportCLI, TransportSocket:
	default:
		return nil, errors.Errorf("%s must be %s or %s, got %q", KeyControlTransport, TransportCLI, TransportSocket, cfg.ControlTransport)
	}
	if cfg.InactivityProbe < 0 {
		return nil, errors.Errorf("%s must not be negative, got %d", KeyInactivityProbe, cfg.InactivityProbe)
	}
	return cfg, nil
}

// Validate returns a workload status and message describing a configuration problem the
// operator has to fix, or two empty strings.
func (c *Config) Validate() (string, string) {
	if c.ElectionTimer > MaxElectionTimer || c.ElectionTimer < MinElectionTimer {
		return StatusBlocked, fmt.Sprintf("Invalid configuration: '%s' must be > %d < %d.",
			KeyElectionTimer, MinElectionTimer, MaxElectionTimer)
	}
	return "", ""
}

// InactivityProbeMs is the probe interval in the unit stored in the connection table.
func (c *Config) InactivityProbeMs() int {
	return c.InactivityProbe * 1000
}
