package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"wifizen/models"
	"wifizen/store"
)

// ErrSyncCancelled is surfaced when the store drops the posts
// subscription (permission revoked, store shut down). The synchronizer
// stops delivering updates and does not resubscribe.
var ErrSyncCancelled = errors.New("feed: sync cancelled")

const postsPath = "posts"

// Entry pairs a post with its store key.
type Entry struct {
	ID   string      `json:"id"`
	Post models.Post `json:"post"`
}

// Synchronizer maintains an ordered in-memory view of the posts subtree.
// Every store change delivers a full snapshot which completely replaces
// the previous feed; no diffing is done, so each update costs O(posts).
type Synchronizer struct {
	store store.Store
}

func New(st store.Store) *Synchronizer {
	return &Synchronizer{store: st}
}

// Subscribe registers onUpdate for the ordered feed. It fires once with
// the current state and again after every change to any post, comment or
// like. onCancel, if non-nil, receives ErrSyncCancelled (wrapping the
// store's reason) if the subscription is dropped.
func (s *Synchronizer) Subscribe(onUpdate func([]Entry), onCancel func(error)) (*store.Subscription, error) {
	return s.store.Subscribe(postsPath,
		func(snap store.Snapshot) {
			onUpdate(decodeFeed(snap))
		},
		func(err error) {
			if onCancel != nil {
				onCancel(fmt.Errorf("%w: %v", ErrSyncCancelled, err))
			}
		})
}

// Feed returns a one-shot ordered view of the posts subtree.
func (s *Synchronizer) Feed(ctx context.Context) ([]Entry, error) {
	snap, err := s.store.Read(ctx, postsPath)
	if err != nil {
		return nil, err
	}
	return decodeFeed(snap), nil
}

// decodeFeed turns a posts snapshot into the ordered feed. Children that
// fail to decode are skipped, not surfaced: the store enforces no schema,
// so a malformed record is treated as absent.
func decodeFeed(snap store.Snapshot) []Entry {
	entries := make([]Entry, 0, len(snap.Children()))
	for _, child := range snap.Children() {
		var post models.Post
		if err := child.Decode(&post); err != nil {
			continue
		}
		entries = append(entries, Entry{ID: child.Key, Post: post})
	}
	sortEntries(entries)
	return entries
}

// sortEntries orders newest first. The sort is stable over the store's
// key order, so posts sharing a millisecond keep creation order.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Post.Timestamp > entries[j].Post.Timestamp
	})
}
