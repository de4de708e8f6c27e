package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryWriteRead(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	err := m.Write(ctx, "users/u1", map[string]any{
		"uid":    "u1",
		"pseudo": "alice",
	})
	require.NoError(t, err)

	snap, err := m.Read(ctx, "users/u1")
	require.NoError(t, err)
	require.True(t, snap.Exists())
	assert.Equal(t, "alice", snap.Child("pseudo").Value())

	missing, err := m.Read(ctx, "users/nobody")
	require.NoError(t, err)
	assert.False(t, missing.Exists())
}

func TestMemoryWriteReplacesSubtree(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Write(ctx, "posts/p1/likes", map[string]bool{"u1": true, "u2": true}))
	require.NoError(t, m.Write(ctx, "posts/p1/likes", map[string]bool{"u3": true}))

	snap, err := m.Read(ctx, "posts/p1/likes")
	require.NoError(t, err)
	require.Len(t, snap.Children(), 1)
	assert.Equal(t, "u3", snap.Children()[0].Key)
}

func TestMemoryUpdateKeepsSiblings(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Write(ctx, "posts/p1", map[string]any{
		"text":     "hello",
		"imageUrl": "",
		"uid":      "u1",
	}))
	require.NoError(t, m.Update(ctx, "posts/p1", map[string]any{
		"text": "edited",
	}))

	snap, err := m.Read(ctx, "posts/p1")
	require.NoError(t, err)
	assert.Equal(t, "edited", snap.Child("text").Value())
	assert.Equal(t, "u1", snap.Child("uid").Value())
}

func TestMemoryAppendKeysOrdered(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var keys []string
	for i := 0; i < 5; i++ {
		key, err := m.Append(ctx, "posts", map[string]any{"n": i})
		require.NoError(t, err)
		keys = append(keys, key)
	}

	snap, err := m.Read(ctx, "posts")
	require.NoError(t, err)
	children := snap.Children()
	require.Len(t, children, 5)
	for i, child := range children {
		assert.Equal(t, keys[i], child.Key, "children should come back in creation order")
	}
}

func TestMemoryRemove(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Write(ctx, "posts/p1", map[string]any{"text": "x"}))
	require.NoError(t, m.Remove(ctx, "posts/p1"))

	snap, err := m.Read(ctx, "posts/p1")
	require.NoError(t, err)
	assert.False(t, snap.Exists())
}

func TestMemoryQueryEqualTo(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Write(ctx, "posts/p1", map[string]any{"uid": "u1", "text": "a"}))
	require.NoError(t, m.Write(ctx, "posts/p2", map[string]any{"uid": "u2", "text": "b"}))
	require.NoError(t, m.Write(ctx, "posts/p3", map[string]any{"uid": "u1", "text": "c"}))

	snap, err := m.Query(ctx, "posts", "uid", "u1")
	require.NoError(t, err)
	children := snap.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "p1", children[0].Key)
	assert.Equal(t, "p3", children[1].Key)
}

func TestMemorySubscribeDeliversSnapshots(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	updates := make(chan Snapshot, 16)
	sub, err := m.Subscribe("posts", func(snap Snapshot) {
		updates <- snap
	}, nil)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	// Initial snapshot fires even when empty.
	snap := awaitSnapshot(t, updates)
	assert.False(t, snap.Exists())

	require.NoError(t, m.Write(ctx, "posts/p1", map[string]any{"text": "hello"}))
	snap = awaitSnapshot(t, updates)
	assert.Equal(t, "hello", snap.Child("p1").Child("text").Value())

	// A change below the subscribed path fires too.
	require.NoError(t, m.Write(ctx, "posts/p1/likes", map[string]bool{"u2": true}))
	snap = awaitSnapshot(t, updates)
	assert.True(t, snap.Child("p1").Child("likes").Child("u2").Exists())
}

func TestMemoryUnsubscribeStopsDelivery(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	updates := make(chan Snapshot, 16)
	sub, err := m.Subscribe("posts", func(snap Snapshot) {
		updates <- snap
	}, nil)
	require.NoError(t, err)

	awaitSnapshot(t, updates)
	sub.Unsubscribe()

	require.NoError(t, m.Write(ctx, "posts/p1", map[string]any{"text": "x"}))
	select {
	case <-updates:
		t.Fatal("received update after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMemoryCloseCancelsSubscriptions(t *testing.T) {
	m := NewMemory()

	cancelled := make(chan error, 1)
	_, err := m.Subscribe("posts", func(Snapshot) {}, func(err error) {
		cancelled <- err
	})
	require.NoError(t, err)

	m.Close()

	select {
	case err := <-cancelled:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("onCancel was never invoked")
	}

	_, err = m.Read(context.Background(), "posts")
	assert.ErrorIs(t, err, ErrClosed)
}

func awaitSnapshot(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}
