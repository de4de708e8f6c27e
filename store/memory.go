package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store backed by a tree of maps. It implements
// the full value-event contract and is what the tests run against.
type Memory struct {
	mu     sync.RWMutex
	root   map[string]any
	hub    *hub
	closed bool
}

func NewMemory() *Memory {
	return &Memory{
		root: make(map[string]any),
		hub:  newHub(),
	}
}

// Close cancels every live subscription with ErrClosed and rejects all
// further operations.
func (m *Memory) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.hub.cancelAll(ErrClosed)
}

func (m *Memory) Read(_ context.Context, path string) (Snapshot, error) {
	segs, err := splitPath(path)
	if err != nil {
		return Snapshot{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Snapshot{}, ErrClosed
	}
	return m.snapshotLocked(segs), nil
}

func (m *Memory) Subscribe(path string, onChange func(Snapshot), onCancel func(error)) (*Subscription, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, ErrClosed
	}
	initial := m.snapshotLocked(segs)
	m.mu.RUnlock()

	sub := newSubscription(path, onChange, onCancel)
	m.hub.add(sub)
	sub.push(initial)
	return sub, nil
}

func (m *Memory) Write(_ context.Context, path string, value any) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	norm, err := normalize(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.setLocked(segs, norm)
	m.mu.Unlock()
	m.notify(path)
	return nil
}

func (m *Memory) Update(_ context.Context, path string, fields map[string]any) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	for name, value := range fields {
		norm, err := normalize(value)
		if err != nil {
			m.mu.Unlock()
			return err
		}
		m.setLocked(append(append([]string{}, segs...), name), norm)
	}
	m.mu.Unlock()
	m.notify(path)
	return nil
}

func (m *Memory) Append(_ context.Context, path string, value any) (string, error) {
	segs, err := splitPath(path)
	if err != nil {
		return "", err
	}
	norm, err := normalize(value)
	if err != nil {
		return "", err
	}
	key := pushKey()
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrClosed
	}
	m.setLocked(append(append([]string{}, segs...), key), norm)
	m.mu.Unlock()
	m.notify(path + "/" + key)
	return key, nil
}

func (m *Memory) Remove(_ context.Context, path string) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.removeLocked(segs)
	m.mu.Unlock()
	m.notify(path)
	return nil
}

func (m *Memory) Query(_ context.Context, path, orderBy string, equalTo any) (Snapshot, error) {
	segs, err := splitPath(path)
	if err != nil {
		return Snapshot{}, err
	}
	want, err := normalize(equalTo)
	if err != nil {
		return Snapshot{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Snapshot{}, ErrClosed
	}
	node, ok := m.nodeLocked(segs).(map[string]any)
	if !ok {
		return Snapshot{Key: segs[len(segs)-1]}, nil
	}
	matched := make(map[string]any)
	for key, child := range node {
		cm, ok := child.(map[string]any)
		if !ok {
			continue
		}
		if cm[orderBy] == want {
			matched[key] = deepCopy(cm)
		}
	}
	return Snapshot{Key: segs[len(segs)-1], value: matched}, nil
}

func (m *Memory) notify(path string) {
	m.hub.notify(path, func(subPath string) Snapshot {
		segs, err := splitPath(subPath)
		if err != nil {
			return Snapshot{}
		}
		m.mu.RLock()
		defer m.mu.RUnlock()
		return m.snapshotLocked(segs)
	})
}

func (m *Memory) nodeLocked(segs []string) any {
	var node any = m.root
	for _, seg := range segs {
		mm, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node = mm[seg]
	}
	return node
}

func (m *Memory) snapshotLocked(segs []string) Snapshot {
	return Snapshot{
		Key:   segs[len(segs)-1],
		value: deepCopy(m.nodeLocked(segs)),
	}
}

func (m *Memory) setLocked(segs []string, value any) {
	node := m.root
	for _, seg := range segs[:len(segs)-1] {
		child, ok := node[seg].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[seg] = child
		}
		node = child
	}
	node[segs[len(segs)-1]] = value
}

func (m *Memory) removeLocked(segs []string) {
	node := m.root
	for _, seg := range segs[:len(segs)-1] {
		child, ok := node[seg].(map[string]any)
		if !ok {
			return
		}
		node = child
	}
	delete(node, segs[len(segs)-1])
}

func deepCopy(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = deepCopy(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = deepCopy(e)
		}
		return out
	default:
		return v
	}
}
