package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"wifizen/models"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
)

func GetVapidPublicKey(c *gin.Context) {
	if vapidPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "push is not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": vapidPublicKey})
}

// SubscribePush stores a browser push subscription under the caller's
// uid so comment notifications can reach all their devices.
func SubscribePush(c *gin.Context) {
	var sub webpush.Subscription
	if err := c.ShouldBindJSON(&sub); err != nil || sub.Endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid push subscription"})
		return
	}

	uid := c.GetString("uid")

	ctx, cancel := requestContext()
	defer cancel()

	if _, err := st.Append(ctx, "push/"+uid, sub); err != nil {
		log.Printf("SubscribePush error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save subscription"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "subscribed"})
}

// notifyPostAuthor pushes a comment notification to the post's author.
// Failures are logged and dropped; notification delivery is best effort
// and never blocks the comment write.
func notifyPostAuthor(postID string, commenter models.User, text string) {
	if vapidPublicKey == "" || vapidPrivateKey == "" {
		return
	}

	ctx, cancel := requestContext()
	defer cancel()

	postSnap, err := st.Read(ctx, "posts/"+postID)
	if err != nil || !postSnap.Exists() {
		return
	}
	author, _ := postSnap.Child("uid").Value().(string)
	if author == "" || author == commenter.UID {
		return
	}

	subsSnap, err := st.Read(ctx, "push/"+author)
	if err != nil {
		return
	}

	payload, err := json.Marshal(map[string]string{
		"title": "New comment",
		"body":  commenter.Pseudo + ": " + text,
	})
	if err != nil {
		return
	}

	for _, child := range subsSnap.Children() {
		var sub webpush.Subscription
		if err := child.Decode(&sub); err != nil {
			continue
		}
		resp, err := webpush.SendNotification(payload, &sub, &webpush.Options{
			Subscriber:      "mailto:admin@wifizen.local",
			VAPIDPublicKey:  vapidPublicKey,
			VAPIDPrivateKey: vapidPrivateKey,
			TTL:             30,
		})
		if err != nil {
			log.Printf("push notification error: %v", err)
			continue
		}
		resp.Body.Close()
	}
}
