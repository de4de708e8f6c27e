package store

import (
	"strings"
	"sync"
)

// Subscription is a live value listener on a subtree. Unsubscribe
// detaches it; no further snapshots are delivered afterwards.
type Subscription struct {
	path     string
	onChange func(Snapshot)
	onCancel func(error)

	mu      sync.Mutex
	pending *Snapshot
	err     error
	wake    chan struct{}
	stop    chan struct{}
	once    sync.Once
}

func newSubscription(path string, onChange func(Snapshot), onCancel func(error)) *Subscription {
	return &Subscription{
		path:     path,
		onChange: onChange,
		onCancel: onCancel,
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

// pump delivers snapshots to the listener in order. Each new snapshot
// supersedes any undelivered one, so a slow listener only ever sees the
// latest state.
func (s *Subscription) pump() {
	for {
		select {
		case <-s.stop:
			return
		case <-s.wake:
			s.mu.Lock()
			snap := s.pending
			err := s.err
			s.pending = nil
			s.mu.Unlock()
			if err != nil {
				if s.onCancel != nil {
					s.onCancel(err)
				}
				s.Unsubscribe()
				return
			}
			if snap != nil {
				s.onChange(*snap)
			}
		}
	}
}

func (s *Subscription) push(snap Snapshot) {
	s.mu.Lock()
	s.pending = &snap
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) cancel(err error) {
	s.mu.Lock()
	s.err = err
	s.pending = nil
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.stop)
	})
}

func (s *Subscription) done() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// hub fans out change notifications to subscriptions. Register,
// unregister and broadcast are serialized by the mutex.
type hub struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[*Subscription]struct{})}
}

func (h *hub) add(sub *Subscription) {
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	go sub.pump()
}

// notify re-reads the subtree of every subscription affected by a change
// at path and queues the fresh snapshot. read must be safe to call from
// the hub.
func (h *hub) notify(path string, read func(path string) Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if sub.done() {
			delete(h.subs, sub)
			continue
		}
		if !pathsOverlap(sub.path, path) {
			continue
		}
		sub.push(read(sub.path))
	}
}

// cancelAll drops every subscription, delivering err once to each.
func (h *hub) cancelAll(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		sub.cancel(err)
		delete(h.subs, sub)
	}
}

// pathsOverlap reports whether a change at changed is visible from a
// subscription rooted at sub: one path must be a prefix of the other.
func pathsOverlap(sub, changed string) bool {
	if sub == changed {
		return true
	}
	if strings.HasPrefix(changed, sub+"/") {
		return true
	}
	return strings.HasPrefix(sub, changed+"/")
}
