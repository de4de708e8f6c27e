package store

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Store is a hierarchical, schemaless document store. Paths are
// slash-separated ("posts/<id>/comments/<id>"), reads return whole
// subtrees and subscriptions deliver a full snapshot of the subscribed
// subtree on every change anywhere under it.
type Store interface {
	// Read returns a one-shot snapshot of the subtree at path.
	Read(ctx context.Context, path string) (Snapshot, error)

	// Subscribe registers a value listener on path. onChange receives a
	// full snapshot immediately and again after every change under path.
	// onCancel is invoked at most once if the store drops the
	// subscription; no further snapshots are delivered after that.
	Subscribe(path string, onChange func(Snapshot), onCancel func(error)) (*Subscription, error)

	// Write replaces the entire value at path.
	Write(ctx context.Context, path string, value any) error

	// Update patches the named children of path without disturbing
	// siblings.
	Update(ctx context.Context, path string, fields map[string]any) error

	// Append stores value under a new generated key and returns the key.
	// Generated keys are unique and ordered by creation time.
	Append(ctx context.Context, path string, value any) (string, error)

	// Remove deletes the subtree at path.
	Remove(ctx context.Context, path string) error

	// Query returns the children of path whose child named orderBy equals
	// equalTo.
	Query(ctx context.Context, path, orderBy string, equalTo any) (Snapshot, error)
}

var (
	ErrClosed      = errors.New("store: closed")
	ErrInvalidPath = errors.New("store: invalid path")
)

// Snapshot is a point-in-time copy of a subtree. The zero Snapshot
// represents a missing value.
type Snapshot struct {
	Key   string
	value any
}

func NewSnapshot(key string, value any) Snapshot {
	return Snapshot{Key: key, value: value}
}

func (s Snapshot) Exists() bool {
	return s.value != nil
}

func (s Snapshot) Value() any {
	return s.value
}

// Child returns the named child, or a non-existent snapshot.
func (s Snapshot) Child(key string) Snapshot {
	if m, ok := s.value.(map[string]any); ok {
		return Snapshot{Key: key, value: m[key]}
	}
	return Snapshot{Key: key}
}

// Children returns the child snapshots in ascending key order. Generated
// keys encode creation time, so this is creation order for appended
// children.
func (s Snapshot) Children() []Snapshot {
	m, ok := s.value.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	children := make([]Snapshot, 0, len(keys))
	for _, k := range keys {
		children = append(children, Snapshot{Key: k, value: m[k]})
	}
	return children
}

// Decode unmarshals the snapshot value into v. Fields absent from the
// snapshot keep their zero values; a type mismatch is an error.
func (s Snapshot) Decode(v any) error {
	if s.value == nil {
		return fmt.Errorf("store: no value at %q", s.Key)
	}
	raw, err := json.Marshal(s.value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// normalize converts an arbitrary value into the store's internal
// representation: maps, slices, strings, bools and json.Number. Numbers
// keep their literal form so int64 timestamps survive the round trip.
func normalize(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func splitPath(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, ErrInvalidPath
	}
	segs := strings.Split(trimmed, "/")
	for _, seg := range segs {
		if seg == "" {
			return nil, ErrInvalidPath
		}
	}
	return segs, nil
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// pushKey returns a new child key. ULIDs from a monotonic source are
// unique and sort by creation time, so key order doubles as creation
// order.
func pushKey() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
