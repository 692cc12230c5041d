package reactive

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchOrderAndChaining(t *testing.T) {
	b, err := NewBus(afero.NewMemMapFs(), "", logr.Discard())
	require.NoError(t, err)
	var ran []string
	record := func(name string, set ...string) HandlerFunc {
		return func(ctx context.Context, bus *Bus) error {
			ran = append(ran, name)
			for _, f := range set {
				bus.SetFlag(f)
			}
			return nil
		}
	}
	b.Register(
		Handler{Name: "render", When: []string{"peers.available", "leader.ready"}, Run: record("render", "config.rendered")},
		Handler{Name: "announce", When: []string{"is_leader"}, WhenNone: []string{"leader.ready"}, Run: record("announce", "leader.ready")},
		Handler{Name: "firewall", WhenNone: []string{"firewall.initialized"}, Run: record("firewall", "firewall.initialized")},
		Handler{Name: "never", When: []string{"missing"}, Run: record("never")},
	)
	b.SetTransient("is_leader")
	b.SetTransient("peers.available")

	require.NoError(t, b.Dispatch(context.Background()))
	assert.Equal(t, []string{"announce", "firewall", "render"}, ran)
	assert.True(t, b.IsSet("config.rendered"))
}

func TestDispatchRunsHandlerOnce(t *testing.T) {
	b, err := NewBus(afero.NewMemMapFs(), "", logr.Discard())
	require.NoError(t, err)
	count := 0
	b.Register(Handler{Name: "toggle", Run: func(ctx context.Context, bus *Bus) error {
		count++
		bus.SetFlag("a")
		bus.ClearFlag("a")
		return nil
	}})
	require.NoError(t, b.Dispatch(context.Background()))
	assert.Equal(t, 1, count)
}

func TestDispatchPersistsFlags(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/var/lib/ovn-central/state.json"
	b, err := NewBus(fs, path, logr.Discard())
	require.NoError(t, err)
	b.SetTransient("leadership.is_leader")
	b.Register(Handler{Name: "init", WhenNone: []string{"charm.firewall_initialized"}, Run: func(ctx context.Context, bus *Bus) error {
		bus.SetFlag("charm.firewall_initialized")
		return errors.New("ufw failed after enabling")
	}})
	assert.Error(t, b.Dispatch(context.Background()))

	again, err := NewBus(fs, path, logr.Discard())
	require.NoError(t, err)
	assert.Equal(t, []string{"charm.firewall_initialized"}, again.Flags())
	assert.False(t, again.IsSet("leadership.is_leader"))
}

func TestNewBusCorruptState(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/state.json", []byte("not json"), 0644))
	_, err := NewBus(fs, "/state.json", logr.Discard())
	assert.Error(t, err)
}
