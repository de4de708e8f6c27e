package handlers

import (
	"log"
	"net/http"

	"wifizen/models"

	"github.com/gin-gonic/gin"
)

func GetMyProfile(c *gin.Context) {
	user, ok := currentProfile(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, user)
}

func GetUser(c *gin.Context) {
	uid := c.Param("id")

	ctx, cancel := requestContext()
	defer cancel()

	snap, err := st.Read(ctx, "users/"+uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch user"})
		return
	}
	if !snap.Exists() {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	var user models.User
	if err := snap.Decode(&user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to decode user"})
		return
	}
	user.UID = uid
	c.JSON(http.StatusOK, user)
}

type UpdateProfileRequest struct {
	Pseudo          string `json:"pseudo" binding:"required"`
	ProfileImageURL string `json:"profileImageUrl"`
}

// UpdateProfile saves the profile and runs the denormalization cascade.
// On a stage failure the earlier writes stand and the response names
// the stage that went stale.
func UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext()
	defer cancel()

	err := rec.UpdateProfile(ctx, c.GetString("uid"), req.Pseudo, req.ProfileImageURL)
	if err != nil {
		log.Printf("UpdateProfile error: %v", err)
		writeMutationError(c, err, "failed to update profile")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "profile updated"})
}
