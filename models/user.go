package models

// User is the public profile record stored at users/{uid}. Posts and
// comments carry denormalized copies of Pseudo and ProfileImageURL that
// are refreshed by the profile cascade.
type User struct {
	UID             string `bson:"uid" json:"uid"`
	Pseudo          string `bson:"pseudo" json:"pseudo"`
	ProfileImageURL string `bson:"profileImageUrl" json:"profileImageUrl"`
}
