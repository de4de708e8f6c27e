package models

// Post is a feed entry as stored at posts/{postId}. The author's pseudo
// and profile image are written with the post; Likes is keyed by uid so
// membership, not a counter, is the unit of truth.
type Post struct {
	UID             string             `bson:"uid" json:"uid"`
	Pseudo          string             `bson:"pseudo" json:"pseudo"`
	ProfileImageURL string             `bson:"profileImageUrl" json:"profileImageUrl"`
	Text            string             `bson:"text" json:"text"`
	ImageURL        string             `bson:"imageUrl" json:"imageUrl"`
	Timestamp       int64              `bson:"timestamp" json:"timestamp"`
	Likes           map[string]bool    `bson:"likes,omitempty" json:"likes,omitempty"`
	Comments        map[string]Comment `bson:"comments,omitempty" json:"comments,omitempty"`
}

// LikeCount is derived from membership; no separate counter is stored.
func (p Post) LikeCount() int {
	return len(p.Likes)
}

func (p Post) LikedBy(uid string) bool {
	return p.Likes[uid]
}
