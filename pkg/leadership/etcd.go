package leadership

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"

	"github.com/ibm/ovn-central/pkg/common"
)

var EtcdClientTimeout = 5 * time.Second

func NewEtcdClient(endpoints []string) (*clientv3.Client, error) {
	cfg := clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 30 * time.Second,
	}
	return clientv3.New(cfg)
}

// EtcdStore elects the leader unit with an etcd mutex. The unit that takes the mutex keeps
// it, and the leadership, until its session ends.
type EtcdStore struct {
	cli    *clientv3.Client
	prefix string
	log    logr.Logger

	mu      sync.Mutex
	session *concurrency.Session
	mutex   *concurrency.Mutex
	locked  bool
}

func NewEtcdStore(cli *clientv3.Client, prefix string, log logr.Logger) *EtcdStore {
	return &EtcdStore{cli: cli, prefix: prefix, log: log}
}

func (s *EtcdStore) IsLeader(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked {
		return true, nil
	}
	if s.mutex == nil {
		session, err := concurrency.NewSession(s.cli, concurrency.WithContext(ctx))
		if err != nil {
			return false, errors.Wrap(err, "etcd session")
		}
		key := common.NewLeaderLockKey(s.prefix)
		s.session = session
		s.mutex = concurrency.NewMutex(session, key.String())
	}
	err := s.mutex.TryLock(ctx)
	if err == concurrency.ErrLocked {
		s.log.V(1).Info("leader lock is held by another unit")
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "leader lock")
	}
	s.locked = true
	s.log.V(1).Info("took the leader lock", "key", s.mutex.Key())
	return true, nil
}

// settingKey returns the etcd key of a setting. Empty names and names holding the key
// delimiter are rejected.
func (s *EtcdStore) settingKey(name string) (string, error) {
	k := common.NewSettingKey(s.prefix, name)
	if _, err := common.ParseKey(s.prefix, k.String()); err != nil {
		return "", errors.Wrapf(err, "setting %q", name)
	}
	return k.String(), nil
}

func (s *EtcdStore) Get(ctx context.Context, key string) (string, bool, error) {
	k, err := s.settingKey(key)
	if err != nil {
		return "", false, err
	}
	ctx, cancel := context.WithTimeout(ctx, EtcdClientTimeout)
	defer cancel()
	resp, err := s.cli.Get(ctx, k)
	if err != nil {
		return "", false, errors.Wrapf(err, "get %s", k)
	}
	if len(resp.Kvs) == 0 {
		return "", false, nil
	}
	return string(resp.Kvs[0].Value), true, nil
}

// Set writes all settings in one transaction that only commits while this unit owns the lock.
func (s *EtcdStore) Set(ctx context.Context, settings map[string]string) error {
	leader, err := s.IsLeader(ctx)
	if err != nil {
		return err
	}
	if !leader {
		return ErrNotLeader
	}
	ops := make([]clientv3.Op, 0, len(settings))
	for name, v := range settings {
		k, err := s.settingKey(name)
		if err != nil {
			return err
		}
		ops = append(ops, clientv3.OpPut(k, v))
	}
	ctx, cancel := context.WithTimeout(ctx, EtcdClientTimeout)
	defer cancel()
	s.mu.Lock()
	owner := s.mutex.IsOwner()
	s.mu.Unlock()
	resp, err := s.cli.Txn(ctx).If(owner).Then(ops...).Commit()
	if err != nil {
		return errors.Wrap(err, "put leader settings")
	}
	if !resp.Succeeded {
		s.mu.Lock()
		s.locked = false
		s.mu.Unlock()
		return ErrNotLeader
	}
	return nil
}

// Close gives up the leadership.
func (s *EtcdStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	s.locked = false
	return s.session.Close()
}
