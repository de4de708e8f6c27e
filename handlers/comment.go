package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

type CommentRequest struct {
	Text string `json:"text" binding:"required"`
}

func AddComment(c *gin.Context) {
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	author, ok := currentProfile(c)
	if !ok {
		return
	}
	postID := c.Param("id")

	ctx, cancel := requestContext()
	defer cancel()

	commentID, err := rec.AddComment(ctx, postID, author, req.Text)
	if err != nil {
		log.Printf("AddComment error: %v", err)
		writeMutationError(c, err, "failed to add comment")
		return
	}

	go notifyPostAuthor(postID, author, req.Text)

	c.JSON(http.StatusCreated, gin.H{"commentId": commentID})
}

func EditComment(c *gin.Context) {
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext()
	defer cancel()

	err := rec.EditComment(ctx, c.GetString("uid"), c.Param("id"), c.Param("commentId"), req.Text)
	if err != nil {
		log.Printf("EditComment error: %v", err)
		writeMutationError(c, err, "failed to edit comment")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "comment updated"})
}

func DeleteComment(c *gin.Context) {
	ctx, cancel := requestContext()
	defer cancel()

	err := rec.DeleteComment(ctx, c.GetString("uid"), c.Param("id"), c.Param("commentId"))
	if err != nil {
		log.Printf("DeleteComment error: %v", err)
		writeMutationError(c, err, "failed to delete comment")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "comment deleted"})
}

// VoteRequest carries both vote maps from the client's last snapshot;
// the reconciler writes them back together so like and dislike stay
// mutually exclusive.
type VoteRequest struct {
	Likes    map[string]bool `json:"likes"`
	Dislikes map[string]bool `json:"dislikes"`
}

func LikeComment(c *gin.Context) {
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext()
	defer cancel()

	err := rec.LikeComment(ctx, c.Param("id"), c.Param("commentId"), c.GetString("uid"), req.Likes, req.Dislikes)
	if err != nil {
		log.Printf("LikeComment error: %v", err)
		writeMutationError(c, err, "failed to like comment")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "vote recorded"})
}

func DislikeComment(c *gin.Context) {
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext()
	defer cancel()

	err := rec.DislikeComment(ctx, c.Param("id"), c.Param("commentId"), c.GetString("uid"), req.Likes, req.Dislikes)
	if err != nil {
		log.Printf("DislikeComment error: %v", err)
		writeMutationError(c, err, "failed to dislike comment")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "vote recorded"})
}
