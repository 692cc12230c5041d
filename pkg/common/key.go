package common

import (
	"fmt"
	"strings"
)

const (
	KEY_DELIMETER = "/"
	LEADERSHIP    = "leadership"
	LOCKS         = "_locks"
	LEADER_LOCK   = "leader"
)

// Key addresses a value shared by the units of one deployment in etcd:
// <prefix>/<kind>/<name>, where kind is LEADERSHIP for leader settings and LOCKS for locks.
type Key struct {
	Prefix string
	Kind   string
	Name   string
}

// Parses a key from a given string.
func ParseKey(prefix, keyStr string) (*Key, error) {
	if !strings.HasPrefix(keyStr, prefix+KEY_DELIMETER) {
		return nil, fmt.Errorf("wrong key, unmatched prefix %q, %q", keyStr, prefix)
	}
	keyParts := strings.Split(strings.TrimPrefix(keyStr, prefix+KEY_DELIMETER), KEY_DELIMETER)
	if len(keyParts) != 2 {
		return nil, fmt.Errorf("wrong formatted key %q", keyStr)
	}
	retKey := Key{Prefix: prefix, Kind: keyParts[0], Name: keyParts[1]}
	if retKey.Kind == "" || retKey.Name == "" {
		return nil, fmt.Errorf("wrong formatted key %q", keyStr)
	}
	return &retKey, nil
}

func (k *Key) String() string {
	if len(k.Name) == 0 {
		return k.KindKeyString()
	}
	return k.Prefix + KEY_DELIMETER + k.Kind + KEY_DELIMETER + k.Name
}

// KindKeyString returns the prefix of every key of the same kind, with a trailing delimiter.
func (k *Key) KindKeyString() string {
	return k.Prefix + KEY_DELIMETER + k.Kind + KEY_DELIMETER
}

// Returns a key of one leader setting. If the given name is empty, the key points to all of them.
func NewSettingKey(prefix, name string) Key {
	return Key{Prefix: prefix, Kind: LEADERSHIP, Name: name}
}

// Returns the key of the lock held by the leader unit.
func NewLeaderLockKey(prefix string) Key {
	return Key{Prefix: prefix, Kind: LOCKS, Name: LEADER_LOCK}
}
