package reconcile

import (
	"net/url"
	"strings"
)

// validImageURL accepts blank (no image) or an absolute http(s) URL with
// a host.
func validImageURL(raw string) bool {
	if raw == "" {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// validatePost enforces the creation/edit rules: at least one of text
// and image URL present, and the image URL well-formed if given.
func validatePost(text, imageURL string) error {
	if !validImageURL(imageURL) {
		return &ValidationError{Field: "imageUrl", Reason: "must be an absolute http or https URL"}
	}
	if blank(text) && blank(imageURL) {
		return &ValidationError{Field: "text", Reason: "post needs text or an image"}
	}
	return nil
}
