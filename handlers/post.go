package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

type PostRequest struct {
	Text     string `json:"text"`
	ImageURL string `json:"imageUrl"`
}

func CreatePost(c *gin.Context) {
	var req PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	author, ok := currentProfile(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext()
	defer cancel()

	postID, err := rec.CreatePost(ctx, author, req.Text, req.ImageURL)
	if err != nil {
		log.Printf("CreatePost error: %v", err)
		writeMutationError(c, err, "failed to create post")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"postId": postID})
}

func EditPost(c *gin.Context) {
	var req PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext()
	defer cancel()

	err := rec.EditPost(ctx, c.GetString("uid"), c.Param("id"), req.Text, req.ImageURL)
	if err != nil {
		log.Printf("EditPost error: %v", err)
		writeMutationError(c, err, "failed to edit post")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "post updated"})
}

func DeletePost(c *gin.Context) {
	ctx, cancel := requestContext()
	defer cancel()

	err := rec.DeletePost(ctx, c.GetString("uid"), c.Param("id"))
	if err != nil {
		log.Printf("DeletePost error: %v", err)
		writeMutationError(c, err, "failed to delete post")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "post deleted"})
}

// LikeRequest carries the likes map from the client's last delivered
// snapshot. The toggle is computed from that cached view, not from a
// re-read, so rapid taps race last-writer-wins.
type LikeRequest struct {
	Likes map[string]bool `json:"likes"`
}

func TogglePostLike(c *gin.Context) {
	var req LikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext()
	defer cancel()

	err := rec.TogglePostLike(ctx, c.Param("id"), c.GetString("uid"), req.Likes)
	if err != nil {
		log.Printf("TogglePostLike error: %v", err)
		writeMutationError(c, err, "failed to toggle like")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "like toggled"})
}

// GetFeed serves the ordered feed as a one-shot read; the websocket
// endpoint carries the live version of the same view.
func GetFeed(c *gin.Context) {
	ctx, cancel := requestContext()
	defer cancel()

	entries, err := synchronizer.Feed(ctx)
	if err != nil {
		log.Printf("GetFeed error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch feed"})
		return
	}

	c.JSON(http.StatusOK, entries)
}
