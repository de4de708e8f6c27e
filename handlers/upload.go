package handlers

import (
	"log"
	"net/http"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/gin-gonic/gin"
)

// UploadPhoto pushes an image to Cloudinary and returns the hosted URL,
// which the client can then use as imageUrl or profileImageUrl. The
// store itself only ever holds URLs, never bytes.
func UploadPhoto(c *gin.Context) {
	if cloudinaryURL == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "photo upload is not configured"})
		return
	}

	file, _, err := c.Request.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return
	}
	defer file.Close()

	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		log.Printf("UploadPhoto cloudinary init error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upload photo"})
		return
	}

	ctx, cancel := requestContext()
	defer cancel()

	resp, err := cld.Upload.Upload(ctx, file, uploader.UploadParams{Folder: "wifizen"})
	if err != nil {
		log.Printf("UploadPhoto upload error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upload photo"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": resp.SecureURL})
}
