package models

// Comment lives under its parent post and is deleted with it. A uid may
// appear in at most one of Likes and Dislikes; the reconciler maintains
// that invariant, the store does not.
type Comment struct {
	UID       string          `bson:"uid" json:"uid"`
	Pseudo    string          `bson:"pseudo" json:"pseudo"`
	Text      string          `bson:"text" json:"text"`
	Timestamp int64           `bson:"timestamp" json:"timestamp"`
	Likes     map[string]bool `bson:"likes,omitempty" json:"likes,omitempty"`
	Dislikes  map[string]bool `bson:"dislikes,omitempty" json:"dislikes,omitempty"`
}
