package reconcile

import (
	"context"
	"log"
)

// UpdateProfile saves a new pseudo and profile image and propagates the
// denormalized copies: first the user record, then every post authored
// by uid, then every comment authored by uid across all posts (pseudo
// only, comments carry no profile image).
//
// The cascade is not transactional. A failure stops it at the current
// stage and earlier writes stand; the returned CascadeError names the
// stage so the surface can say what went stale. There is no retry and
// no resume.
func (r *Reconciler) UpdateProfile(ctx context.Context, uid, pseudo, profileImageURL string) error {
	if blank(pseudo) {
		return &ValidationError{Field: "pseudo", Reason: "pseudo must not be empty"}
	}
	if !validImageURL(profileImageURL) {
		return &ValidationError{Field: "profileImageUrl", Reason: "must be an absolute http or https URL"}
	}

	fields := map[string]any{
		"pseudo":          pseudo,
		"profileImageUrl": profileImageURL,
	}

	if err := r.store.Update(ctx, "users/"+uid, fields); err != nil {
		return &CascadeError{Stage: StageUser, Err: err}
	}

	owned, err := r.store.Query(ctx, "posts", "uid", uid)
	if err != nil {
		return &CascadeError{Stage: StagePosts, Err: err}
	}
	for _, post := range owned.Children() {
		if err := r.store.Update(ctx, postPath(post.Key), fields); err != nil {
			return &CascadeError{Stage: StagePosts, Err: err}
		}
	}

	// Full scan: comments are nested under posts by any author, so every
	// post's comment subtree has to be visited. O(total comments).
	all, err := r.store.Read(ctx, "posts")
	if err != nil {
		return &CascadeError{Stage: StageComments, Err: err}
	}
	for _, post := range all.Children() {
		for _, comment := range post.Child("comments").Children() {
			author, _ := comment.Child("uid").Value().(string)
			if author != uid {
				continue
			}
			err := r.store.Update(ctx, commentPath(post.Key, comment.Key), map[string]any{
				"pseudo": pseudo,
			})
			if err != nil {
				return &CascadeError{Stage: StageComments, Err: err}
			}
		}
	}

	log.Printf("profile cascade complete for uid %s", uid)
	return nil
}
