package reconcile

import (
	"context"
	"testing"

	"wifizen/models"
	"wifizen/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = models.User{UID: "u1", Pseudo: "alice", ProfileImageURL: "https://img.example.com/alice.png"}

func TestValidImageURL(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{"", true},
		{"https://example.com/a.png", true},
		{"http://example.com", true},
		{"ftp://x", false},
		{"not a url", false},
		{"http://", false},
		{"https:///path-only", false},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.want, validImageURL(tc.raw))
		})
	}
}

func TestCreatePostValidation(t *testing.T) {
	m := store.NewMemory()
	rec := New(m)
	ctx := context.Background()

	t.Run("empty post rejected", func(t *testing.T) {
		_, err := rec.CreatePost(ctx, alice, "", "")
		var validation *ValidationError
		require.ErrorAs(t, err, &validation)
	})

	t.Run("bad image URL rejected", func(t *testing.T) {
		_, err := rec.CreatePost(ctx, alice, "hello", "ftp://nope")
		var validation *ValidationError
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, "imageUrl", validation.Field)
	})

	t.Run("no write reaches the store on validation failure", func(t *testing.T) {
		snap, err := m.Read(ctx, "posts")
		require.NoError(t, err)
		assert.Empty(t, snap.Children())
	})

	t.Run("image-only post accepted", func(t *testing.T) {
		id, err := rec.CreatePost(ctx, alice, "", "https://example.com/a.png")
		require.NoError(t, err)
		assert.NotEmpty(t, id)
	})
}

func TestCreatePostDenormalizesAuthor(t *testing.T) {
	m := store.NewMemory()
	rec := New(m)
	ctx := context.Background()

	id, err := rec.CreatePost(ctx, alice, "hello", "")
	require.NoError(t, err)

	snap, err := m.Read(ctx, "posts/"+id)
	require.NoError(t, err)
	var post models.Post
	require.NoError(t, snap.Decode(&post))
	assert.Equal(t, alice.UID, post.UID)
	assert.Equal(t, alice.Pseudo, post.Pseudo)
	assert.Equal(t, alice.ProfileImageURL, post.ProfileImageURL)
	assert.NotZero(t, post.Timestamp)
}

func readPost(t *testing.T, m *store.Memory, id string) models.Post {
	t.Helper()
	snap, err := m.Read(context.Background(), "posts/"+id)
	require.NoError(t, err)
	var post models.Post
	require.NoError(t, snap.Decode(&post))
	return post
}

func readComment(t *testing.T, m *store.Memory, postID, commentID string) models.Comment {
	t.Helper()
	snap, err := m.Read(context.Background(), "posts/"+postID+"/comments/"+commentID)
	require.NoError(t, err)
	var comment models.Comment
	require.NoError(t, snap.Decode(&comment))
	return comment
}

func TestTogglePostLikeIdempotence(t *testing.T) {
	m := store.NewMemory()
	rec := New(m)
	ctx := context.Background()

	id, err := rec.CreatePost(ctx, alice, "hello", "")
	require.NoError(t, err)

	// Toggle on, from the empty cached map.
	require.NoError(t, rec.TogglePostLike(ctx, id, "u2", nil))
	likes := readPost(t, m, id).Likes
	assert.Equal(t, map[string]bool{"u2": true}, likes)

	// Toggle off, from the refreshed cached map.
	require.NoError(t, rec.TogglePostLike(ctx, id, "u2", likes))
	assert.Empty(t, readPost(t, m, id).Likes)
}

func TestTogglePostLikeKeepsOtherMembers(t *testing.T) {
	m := store.NewMemory()
	rec := New(m)
	ctx := context.Background()

	id, err := rec.CreatePost(ctx, alice, "hello", "")
	require.NoError(t, err)

	require.NoError(t, rec.TogglePostLike(ctx, id, "u2", nil))
	likes := readPost(t, m, id).Likes
	require.NoError(t, rec.TogglePostLike(ctx, id, "u3", likes))

	assert.Equal(t, map[string]bool{"u2": true, "u3": true}, readPost(t, m, id).Likes)
}

func TestCommentVoteMutualExclusion(t *testing.T) {
	m := store.NewMemory()
	rec := New(m)
	ctx := context.Background()

	postID, err := rec.CreatePost(ctx, alice, "hello", "")
	require.NoError(t, err)
	commentID, err := rec.AddComment(ctx, postID, models.User{UID: "u2", Pseudo: "bob"}, "nice")
	require.NoError(t, err)

	vote := func(like bool) models.Comment {
		c := readComment(t, m, postID, commentID)
		if like {
			require.NoError(t, rec.LikeComment(ctx, postID, commentID, "u3", c.Likes, c.Dislikes))
		} else {
			require.NoError(t, rec.DislikeComment(ctx, postID, commentID, "u3", c.Likes, c.Dislikes))
		}
		return readComment(t, m, postID, commentID)
	}

	assertExclusive := func(c models.Comment) {
		t.Helper()
		assert.False(t, c.Likes["u3"] && c.Dislikes["u3"], "uid in both likes and dislikes")
	}

	// like -> dislike -> dislike -> like -> like: never both, final state empty.
	c := vote(true)
	assert.True(t, c.Likes["u3"])
	assertExclusive(c)

	c = vote(false)
	assert.True(t, c.Dislikes["u3"])
	assert.False(t, c.Likes["u3"])
	assertExclusive(c)

	c = vote(false)
	assert.False(t, c.Dislikes["u3"])
	assertExclusive(c)

	c = vote(true)
	assert.True(t, c.Likes["u3"])
	assertExclusive(c)

	c = vote(true)
	assert.False(t, c.Likes["u3"])
	assert.False(t, c.Dislikes["u3"])
}

func TestEditPostOwnerOnly(t *testing.T) {
	m := store.NewMemory()
	rec := New(m)
	ctx := context.Background()

	id, err := rec.CreatePost(ctx, alice, "hello", "")
	require.NoError(t, err)
	require.NoError(t, rec.TogglePostLike(ctx, id, "u2", nil))
	original := readPost(t, m, id)

	err = rec.EditPost(ctx, "u2", id, "hijacked", "")
	assert.ErrorIs(t, err, ErrNotOwner)

	require.NoError(t, rec.EditPost(ctx, "u1", id, "edited", "https://example.com/b.png"))
	edited := readPost(t, m, id)
	assert.Equal(t, "edited", edited.Text)
	assert.Equal(t, "https://example.com/b.png", edited.ImageURL)
	// Everything else is untouched.
	assert.Equal(t, original.Timestamp, edited.Timestamp)
	assert.Equal(t, original.Likes, edited.Likes)
}

func TestEditPostNotFound(t *testing.T) {
	rec := New(store.NewMemory())
	err := rec.EditPost(context.Background(), "u1", "missing", "text", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeletePostRemovesSubtree(t *testing.T) {
	m := store.NewMemory()
	rec := New(m)
	ctx := context.Background()

	id, err := rec.CreatePost(ctx, alice, "hello", "")
	require.NoError(t, err)
	_, err = rec.AddComment(ctx, id, models.User{UID: "u2", Pseudo: "bob"}, "nice")
	require.NoError(t, err)

	err = rec.DeletePost(ctx, "u2", id)
	assert.ErrorIs(t, err, ErrNotOwner)

	require.NoError(t, rec.DeletePost(ctx, "u1", id))
	snap, err := m.Read(ctx, "posts/"+id)
	require.NoError(t, err)
	assert.False(t, snap.Exists(), "comments go down with the post")
}

func TestCommentOwnership(t *testing.T) {
	m := store.NewMemory()
	rec := New(m)
	ctx := context.Background()

	postID, err := rec.CreatePost(ctx, alice, "hello", "")
	require.NoError(t, err)
	commentID, err := rec.AddComment(ctx, postID, models.User{UID: "u2", Pseudo: "bob"}, "nice")
	require.NoError(t, err)

	assert.ErrorIs(t, rec.EditComment(ctx, "u1", postID, commentID, "hijack"), ErrNotOwner)
	assert.ErrorIs(t, rec.DeleteComment(ctx, "u1", postID, commentID), ErrNotOwner)

	require.NoError(t, rec.EditComment(ctx, "u2", postID, commentID, "still nice"))
	assert.Equal(t, "still nice", readComment(t, m, postID, commentID).Text)

	require.NoError(t, rec.DeleteComment(ctx, "u2", postID, commentID))
	snap, err := m.Read(ctx, "posts/"+postID+"/comments/"+commentID)
	require.NoError(t, err)
	assert.False(t, snap.Exists())
}

func TestAddCommentRejectsBlank(t *testing.T) {
	m := store.NewMemory()
	rec := New(m)
	ctx := context.Background()

	postID, err := rec.CreatePost(ctx, alice, "hello", "")
	require.NoError(t, err)

	_, err = rec.AddComment(ctx, postID, alice, "   ")
	var validation *ValidationError
	assert.ErrorAs(t, err, &validation)
}
