package reconcile

import (
	"context"
	"time"

	"wifizen/models"
	"wifizen/store"
)

// Reconciler translates user intents into store writes. Toggles follow
// the optimistic read-modify-write pattern: the caller hands in the maps
// from its last delivered snapshot, the reconciler writes the mutated
// maps back wholesale. Concurrent toggles by different users race
// last-writer-wins; that weakness is accepted, not guarded against.
type Reconciler struct {
	store store.Store
	now   func() time.Time
}

func New(st store.Store) *Reconciler {
	return &Reconciler{store: st, now: time.Now}
}

func postPath(postID string) string {
	return "posts/" + postID
}

func commentPath(postID, commentID string) string {
	return "posts/" + postID + "/comments/" + commentID
}

// CreatePost validates the intent and appends a post carrying the
// author's current profile snapshot. The generated key is returned.
func (r *Reconciler) CreatePost(ctx context.Context, author models.User, text, imageURL string) (string, error) {
	if err := validatePost(text, imageURL); err != nil {
		return "", err
	}
	post := models.Post{
		UID:             author.UID,
		Pseudo:          author.Pseudo,
		ProfileImageURL: author.ProfileImageURL,
		Text:            text,
		ImageURL:        imageURL,
		Timestamp:       r.now().UnixMilli(),
	}
	return r.store.Append(ctx, "posts", post)
}

// EditPost overwrites text and imageUrl only; likes, comments and the
// original timestamp are untouched. Owner-only.
func (r *Reconciler) EditPost(ctx context.Context, actorUID, postID, text, imageURL string) error {
	if err := validatePost(text, imageURL); err != nil {
		return err
	}
	if err := r.requirePostOwner(ctx, actorUID, postID); err != nil {
		return err
	}
	return r.store.Update(ctx, postPath(postID), map[string]any{
		"text":     text,
		"imageUrl": imageURL,
	})
}

// DeletePost removes the post subtree, comments included. Owner-only,
// immediate and irreversible.
func (r *Reconciler) DeletePost(ctx context.Context, actorUID, postID string) error {
	if err := r.requirePostOwner(ctx, actorUID, postID); err != nil {
		return err
	}
	return r.store.Remove(ctx, postPath(postID))
}

// TogglePostLike flips uid's membership in likes and writes the whole
// mutated map back as one overwrite. Toggling twice serially restores
// the original map; two users toggling inside the same snapshot window
// can clobber each other.
func (r *Reconciler) TogglePostLike(ctx context.Context, postID, uid string, likes map[string]bool) error {
	newLikes := toggled(likes, uid)
	return r.store.Write(ctx, postPath(postID)+"/likes", newLikes)
}

// AddComment appends a comment carrying the author's current pseudo.
func (r *Reconciler) AddComment(ctx context.Context, postID string, author models.User, text string) (string, error) {
	if blank(text) {
		return "", &ValidationError{Field: "text", Reason: "comment must not be empty"}
	}
	comment := models.Comment{
		UID:       author.UID,
		Pseudo:    author.Pseudo,
		Text:      text,
		Timestamp: r.now().UnixMilli(),
	}
	return r.store.Append(ctx, postPath(postID)+"/comments", comment)
}

// EditComment overwrites the comment text only. Owner-only.
func (r *Reconciler) EditComment(ctx context.Context, actorUID, postID, commentID, text string) error {
	if blank(text) {
		return &ValidationError{Field: "text", Reason: "comment must not be empty"}
	}
	if err := r.requireCommentOwner(ctx, actorUID, postID, commentID); err != nil {
		return err
	}
	return r.store.Update(ctx, commentPath(postID, commentID), map[string]any{
		"text": text,
	})
}

// DeleteComment removes the comment subtree. Owner-only.
func (r *Reconciler) DeleteComment(ctx context.Context, actorUID, postID, commentID string) error {
	if err := r.requireCommentOwner(ctx, actorUID, postID, commentID); err != nil {
		return err
	}
	return r.store.Remove(ctx, commentPath(postID, commentID))
}

// LikeComment toggles uid's like on a comment. Liking removes any
// standing dislike; both submaps are written in one combined update so
// this client never leaves a both-set state behind.
func (r *Reconciler) LikeComment(ctx context.Context, postID, commentID, uid string, likes, dislikes map[string]bool) error {
	newLikes := copyMembers(likes)
	newDislikes := copyMembers(dislikes)
	if newLikes[uid] {
		delete(newLikes, uid)
	} else {
		newLikes[uid] = true
		delete(newDislikes, uid)
	}
	return r.writeCommentVotes(ctx, postID, commentID, newLikes, newDislikes)
}

// DislikeComment is the symmetric counterpart of LikeComment.
func (r *Reconciler) DislikeComment(ctx context.Context, postID, commentID, uid string, likes, dislikes map[string]bool) error {
	newLikes := copyMembers(likes)
	newDislikes := copyMembers(dislikes)
	if newDislikes[uid] {
		delete(newDislikes, uid)
	} else {
		newDislikes[uid] = true
		delete(newLikes, uid)
	}
	return r.writeCommentVotes(ctx, postID, commentID, newLikes, newDislikes)
}

func (r *Reconciler) writeCommentVotes(ctx context.Context, postID, commentID string, likes, dislikes map[string]bool) error {
	return r.store.Update(ctx, commentPath(postID, commentID), map[string]any{
		"likes":    likes,
		"dislikes": dislikes,
	})
}

func (r *Reconciler) requirePostOwner(ctx context.Context, actorUID, postID string) error {
	snap, err := r.store.Read(ctx, postPath(postID))
	if err != nil {
		return err
	}
	return requireOwner(snap, actorUID)
}

func (r *Reconciler) requireCommentOwner(ctx context.Context, actorUID, postID, commentID string) error {
	snap, err := r.store.Read(ctx, commentPath(postID, commentID))
	if err != nil {
		return err
	}
	return requireOwner(snap, actorUID)
}

func requireOwner(snap store.Snapshot, actorUID string) error {
	if !snap.Exists() {
		return ErrNotFound
	}
	if uid, _ := snap.Child("uid").Value().(string); uid != actorUID {
		return ErrNotOwner
	}
	return nil
}

func toggled(likes map[string]bool, uid string) map[string]bool {
	out := copyMembers(likes)
	if out[uid] {
		delete(out, uid)
	} else {
		out[uid] = true
	}
	return out
}

func copyMembers(members map[string]bool) map[string]bool {
	out := make(map[string]bool, len(members))
	for uid, v := range members {
		if v {
			out[uid] = true
		}
	}
	return out
}
