// Package leadership tells whether this unit is the leader unit of the deployment and keeps
// the settings the leader publishes to its peers.
package leadership

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/ibm/ovn-central/pkg/common"
)

const (
	SettingReady = "ready"
	SettingNBCID = "nb_cid"
	SettingSBCID = "sb_cid"
)

var ErrNotLeader = errors.New("only the leader unit can change leader settings")

type Store interface {
	IsLeader(ctx context.Context) (bool, error)
	// Get returns a leader setting and whether it is set.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set publishes settings, it fails with ErrNotLeader on other units.
	Set(ctx context.Context, settings map[string]string) error
}

// SetKeys returns the names of the settings that are set, sorted.
func SetKeys(ctx context.Context, s Store, keys ...string) ([]string, error) {
	var res []string
	for _, k := range keys {
		_, ok, err := s.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			res = append(res, k)
		}
	}
	sort.Strings(res)
	return res, nil
}

type MemoryStore struct {
	Leader bool

	mu       sync.Mutex
	settings map[string]string
}

func NewMemoryStore(leader bool) *MemoryStore {
	return &MemoryStore{Leader: leader, settings: map[string]string{}}
}

func (s *MemoryStore) IsLeader(ctx context.Context) (bool, error) {
	return s.Leader, nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.settings[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(ctx context.Context, settings map[string]string) error {
	if !s.Leader {
		return ErrNotLeader
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range settings {
		s.settings[k] = v
	}
	return nil
}

// FileStore keeps leader settings in a JSON file for hosts without etcd. Leadership is
// assigned by configuration.
type FileStore struct {
	fs     afero.Fs
	path   string
	leader bool
}

func NewFileStore(fs afero.Fs, path string, leader bool) *FileStore {
	return &FileStore{fs: fs, path: path, leader: leader}
}

func (s *FileStore) IsLeader(ctx context.Context) (bool, error) {
	return s.leader, nil
}

func (s *FileStore) load() (map[string]string, error) {
	settings := map[string]string{}
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, errors.Wrapf(err, "read %s", s.path)
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, errors.Wrapf(err, "decode %s", s.path)
	}
	return settings, nil
}

func (s *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	settings, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := settings[key]
	return v, ok, nil
}

func (s *FileStore) Set(ctx context.Context, settings map[string]string) error {
	if !s.leader {
		return ErrNotLeader
	}
	cur, err := s.load()
	if err != nil {
		return err
	}
	for k, v := range settings {
		cur[k] = v
	}
	data, err := json.MarshalIndent(cur, "", "  ")
	if err != nil {
		return err
	}
	return errors.Wrapf(common.WriteFileAtomic(s.fs, s.path, data, 0644), "write %s", s.path)
}
