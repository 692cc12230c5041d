package metrics

import (
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := New()
	m.ObserveStatus("sb", true, 1000)
	m.ObserveTimerChange("sb", 2000)
	m.ObserveTimerChange("sb", 4000)
	m.ObserveListenerCreated("nb")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TimerChanges.WithLabelValues("sb")))
	assert.Equal(t, 4000.0, testutil.ToFloat64(m.ElectionTimer.WithLabelValues("sb")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClusterLeader.WithLabelValues("sb")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ListenersCreated.WithLabelValues("nb")))

	expected := `
# HELP ovn_central_listener_created_total Number of connection rows created.
# TYPE ovn_central_listener_created_total counter
ovn_central_listener_created_total{db="nb"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "ovn_central_listener_created_total"))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveStatus("nb", false, 4000)
	path := filepath.Join(t.TempDir(), "ovn_central.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `ovn_central_cluster_leader{db="nb"} 0`)
	assert.Contains(t, string(data), `ovn_central_election_timer_ms{db="nb"} 4000`)
}
