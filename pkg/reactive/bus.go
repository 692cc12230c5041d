// Package reactive runs handlers when the flags they depend on are set and the flags they
// exclude are clear.
package reactive

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"sync"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/ibm/ovn-central/pkg/common"
)

type HandlerFunc func(ctx context.Context, bus *Bus) error

type Handler struct {
	Name string
	// When flags must all be set.
	When []string
	// WhenNone flags must all be clear.
	WhenNone []string
	Run      HandlerFunc
}

// Bus holds the flags of one unit. Persistent flags survive between runs through the state
// file, transient flags describe the environment of the current run only.
type Bus struct {
	fs   afero.Fs
	path string
	log  logr.Logger

	mu        sync.Mutex
	flags     map[string]bool
	transient map[string]bool
	handlers  []Handler
}

type state struct {
	Flags []string `json:"flags"`
}

// NewBus loads the persistent flags from path, an empty path keeps them in memory.
func NewBus(fs afero.Fs, path string, log logr.Logger) (*Bus, error) {
	b := &Bus{fs: fs, path: path, log: log, flags: map[string]bool{}, transient: map[string]bool{}}
	if path == "" {
		return b, nil
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return b, nil
		}
		return nil, errors.Wrapf(err, "read state %s", path)
	}
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, errors.Wrapf(err, "decode state %s", path)
	}
	for _, f := range st.Flags {
		b.flags[f] = true
	}
	return b, nil
}

func (b *Bus) Register(handlers ...Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handlers...)
}

func (b *Bus) SetFlag(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.flags[name] {
		b.log.V(3).Info("set flag", "flag", name)
	}
	b.flags[name] = true
}

// SetTransient sets a flag for this run only.
func (b *Bus) SetTransient(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transient[name] = true
}

func (b *Bus) ClearFlag(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.flags[name] || b.transient[name] {
		b.log.V(3).Info("clear flag", "flag", name)
	}
	delete(b.flags, name)
	delete(b.transient, name)
}

func (b *Bus) IsSet(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isSet(name)
}

func (b *Bus) isSet(name string) bool {
	return b.flags[name] || b.transient[name]
}

// Flags returns every set flag, sorted.
func (b *Bus) Flags() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var res []string
	for f := range b.flags {
		res = append(res, f)
	}
	for f := range b.transient {
		if !b.flags[f] {
			res = append(res, f)
		}
	}
	sort.Strings(res)
	return res
}

func (b *Bus) ready(h *Handler) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, f := range h.When {
		if !b.isSet(f) {
			return false
		}
	}
	for _, f := range h.WhenNone {
		if b.isSet(f) {
			return false
		}
	}
	return true
}

// Dispatch runs ready handlers in registration order, pass after pass, until a pass runs
// nothing. A handler runs at most once per dispatch. The persistent flags are saved even
// when a handler fails.
func (b *Bus) Dispatch(ctx context.Context) (err error) {
	defer func() {
		if saveErr := b.Save(); saveErr != nil && err == nil {
			err = saveErr
		}
	}()
	b.mu.Lock()
	handlers := append([]Handler(nil), b.handlers...)
	b.mu.Unlock()

	done := make([]bool, len(handlers))
	for {
		fired := false
		for i := range handlers {
			if done[i] || !b.ready(&handlers[i]) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			done[i] = true
			fired = true
			b.log.V(1).Info("invoking handler", "handler", handlers[i].Name)
			if err := handlers[i].Run(ctx, b); err != nil {
				return errors.Wrapf(err, "handler %s", handlers[i].Name)
			}
		}
		if !fired {
			return nil
		}
	}
}

func (b *Bus) Save() error {
	if b.path == "" {
		return nil
	}
	b.mu.Lock()
	st := state{Flags: []string{}}
	for f := range b.flags {
		st.Flags = append(st.Flags, f)
	}
	b.mu.Unlock()
	sort.Strings(st.Flags)
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return errors.Wrapf(common.WriteFileAtomic(b.fs, b.path, data, 0644), "write state %s", b.path)
}
