package feed_test

import (
	"context"
	"testing"
	"time"

	"wifizen/feed"
	"wifizen/models"
	"wifizen/reconcile"
	"wifizen/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func awaitFeed(t *testing.T, ch <-chan []feed.Entry, cond func([]feed.Entry) bool) []feed.Entry {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case entries := <-ch:
			if cond(entries) {
				return entries
			}
		case <-deadline:
			t.Fatal("timed out waiting for feed update")
			return nil
		}
	}
}

func subscribeFeed(t *testing.T, s *feed.Synchronizer) (<-chan []feed.Entry, *store.Subscription) {
	t.Helper()
	updates := make(chan []feed.Entry, 16)
	sub, err := s.Subscribe(func(entries []feed.Entry) {
		updates <- entries
	}, nil)
	require.NoError(t, err)
	return updates, sub
}

func TestFeedSkipsMalformedPosts(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	// Two well-formed posts and two records no decoder can make sense of.
	require.NoError(t, m.Write(ctx, "posts/p1", models.Post{UID: "u1", Text: "first", Timestamp: 100}))
	require.NoError(t, m.Write(ctx, "posts/p2", models.Post{UID: "u2", Text: "second", Timestamp: 200}))
	require.NoError(t, m.Write(ctx, "posts/p3", "not a post at all"))
	require.NoError(t, m.Write(ctx, "posts/p4", map[string]any{"uid": "u3", "timestamp": "not-a-number"}))

	s := feed.New(m)
	updates, sub := subscribeFeed(t, s)
	defer sub.Unsubscribe()

	entries := awaitFeed(t, updates, func(e []feed.Entry) bool { return len(e) > 0 })
	require.Len(t, entries, 2)
	assert.Equal(t, "p2", entries[0].ID)
	assert.Equal(t, "p1", entries[1].ID)
}

func TestFeedOrderedByTimestampDescending(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	timestamps := []int64{50, 300, 100, 300, 200}
	for _, ts := range timestamps {
		_, err := m.Append(ctx, "posts", models.Post{UID: "u1", Text: "post", Timestamp: ts})
		require.NoError(t, err)
	}

	s := feed.New(m)
	entries, err := s.Feed(ctx)
	require.NoError(t, err)
	require.Len(t, entries, len(timestamps))
	for i := 0; i < len(entries)-1; i++ {
		assert.GreaterOrEqual(t, entries[i].Post.Timestamp, entries[i+1].Post.Timestamp)
	}
}

func TestFeedTieBreakKeepsCreationOrder(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	first, err := m.Append(ctx, "posts", models.Post{UID: "u1", Text: "a", Timestamp: 500})
	require.NoError(t, err)
	second, err := m.Append(ctx, "posts", models.Post{UID: "u1", Text: "b", Timestamp: 500})
	require.NoError(t, err)

	entries, err := feed.New(m).Feed(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first, entries[0].ID)
	assert.Equal(t, second, entries[1].ID)
}

func TestFeedSyncCancelled(t *testing.T) {
	m := store.NewMemory()

	cancelled := make(chan error, 1)
	_, err := feed.New(m).Subscribe(
		func([]feed.Entry) {},
		func(err error) { cancelled <- err })
	require.NoError(t, err)

	m.Close()

	select {
	case err := <-cancelled:
		assert.ErrorIs(t, err, feed.ErrSyncCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("sync cancellation was never surfaced")
	}
}

func TestFeedUnsubscribe(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	updates, sub := subscribeFeed(t, feed.New(m))
	awaitFeed(t, updates, func([]feed.Entry) bool { return true })

	sub.Unsubscribe()
	require.NoError(t, m.Write(ctx, "posts/p1", models.Post{UID: "u1", Text: "x", Timestamp: 1}))

	select {
	case <-updates:
		t.Fatal("received update after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}

// End to end: create, observe, like, unlike — through the reconciler and
// the synchronizer together.
func TestFeedFollowsMutations(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	rec := reconcile.New(m)
	s := feed.New(m)

	alice := models.User{UID: "u1", Pseudo: "alice"}

	updates, sub := subscribeFeed(t, s)
	defer sub.Unsubscribe()

	_, err := rec.CreatePost(ctx, alice, "hello", "")
	require.NoError(t, err)

	entries := awaitFeed(t, updates, func(e []feed.Entry) bool { return len(e) == 1 })
	post := entries[0].Post
	assert.Equal(t, "u1", post.UID)
	assert.Equal(t, "alice", post.Pseudo)
	assert.Equal(t, "hello", post.Text)
	assert.Empty(t, post.Likes)
	assert.Empty(t, post.Comments)

	// User B likes the post, working from the snapshot just delivered.
	require.NoError(t, rec.TogglePostLike(ctx, entries[0].ID, "u2", post.Likes))
	entries = awaitFeed(t, updates, func(e []feed.Entry) bool {
		return len(e) == 1 && len(e[0].Post.Likes) == 1
	})
	assert.True(t, entries[0].Post.Likes["u2"])

	// And un-likes it from the next snapshot.
	require.NoError(t, rec.TogglePostLike(ctx, entries[0].ID, "u2", entries[0].Post.Likes))
	entries = awaitFeed(t, updates, func(e []feed.Entry) bool {
		return len(e) == 1 && len(e[0].Post.Likes) == 0
	})
	assert.Empty(t, entries[0].Post.Likes)
}
