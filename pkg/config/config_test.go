package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	v, err := NewViper("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.ElectionTimer)
	assert.Equal(t, 60000, cfg.InactivityProbeMs())
	assert.Equal(t, "ussuri", cfg.Release)
	assert.Equal(t, TransportCLI, cfg.ControlTransport)
	assert.Equal(t, Ports{NB: 6641, SB: 6642, SBAdmin: 16642, NBCluster: 6643, SBCluster: 6644}, cfg.Ports)
	assert.Equal(t, "/var/lib/nagios/ovn_db_connections.out", cfg.NagiosOutputFile)
}

func TestLoadFileAndEnv(t *testing.T) {
	file := filepath.Join(t.TempDir(), "ovn-central.yaml")
	require.NoError(t, ioutil.WriteFile(file, []byte(`
ovsdb-server-election-timer: 42
release: train
ports:
  sb-admin: 26642
cluster:
  local-address: 10.5.0.10
  remote-addresses: [10.5.0.11, 10.5.0.12]
`), 0644))
	os.Setenv("OVN_CENTRAL_OVSDB_SERVER_INACTIVITY_PROBE", "30")
	defer os.Unsetenv("OVN_CENTRAL_OVSDB_SERVER_INACTIVITY_PROBE")

	v, err := NewViper(file)
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.ElectionTimer)
	assert.Equal(t, 30, cfg.InactivityProbe)
	assert.Equal(t, "train", cfg.Release)
	assert.Equal(t, 26642, cfg.Ports.SBAdmin)
	assert.Equal(t, 6642, cfg.Ports.SB)
	assert.Equal(t, "10.5.0.10", cfg.LocalAddress)
	assert.Equal(t, []string{"10.5.0.11", "10.5.0.12"}, cfg.RemoteAddresses)
}

func TestLoadInvalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set(KeyControlTransport, "carrier-pigeon")
	_, err := Load(v)
	assert.Error(t, err)

	_, err = NewViper(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		timer  int
		status string
	}{
		{timer: 0, status: StatusBlocked},
		{timer: 1},
		{timer: 4},
		{timer: 60},
		{timer: 61, status: StatusBlocked},
	}
	for _, tcase := range tests {
		cfg := Config{ElectionTimer: tcase.timer}
		status, msg := cfg.Validate()
		assert.Equalf(t, tcase.status, status, "[timer %d] wrong status", tcase.timer)
		if tcase.status != "" {
			assert.Equal(t, "Invalid configuration: 'ovsdb-server-election-timer' must be > 1 < 60.", msg)
		}
	}
}
