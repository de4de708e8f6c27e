package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"wifizen/auth"
	"wifizen/feed"
	"wifizen/models"
	"wifizen/reconcile"
	"wifizen/store"

	"github.com/gin-gonic/gin"
)

// Shared handler state, injected once from main.
var (
	authSvc      *auth.Service
	rec          *reconcile.Reconciler
	st           store.Store
	synchronizer *feed.Synchronizer

	vapidPublicKey  string
	vapidPrivateKey string
	cloudinaryURL   string
)

func Configure(a *auth.Service, r *reconcile.Reconciler, s store.Store, f *feed.Synchronizer) {
	authSvc = a
	rec = r
	st = s
	synchronizer = f
}

func SetVAPIDKeys(public, private string) {
	vapidPublicKey = public
	vapidPrivateKey = private
}

func SetCloudinaryURL(url string) {
	cloudinaryURL = url
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

// currentProfile loads the caller's profile record for denormalization
// into posts and comments.
func currentProfile(c *gin.Context) (models.User, bool) {
	uid := c.GetString("uid")
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return models.User{}, false
	}

	ctx, cancel := requestContext()
	defer cancel()

	snap, err := st.Read(ctx, "users/"+uid)
	if err != nil || !snap.Exists() {
		// Profile record missing is survivable: fall back to the bare uid
		// the way the original renders uid when pseudo is blank.
		return models.User{UID: uid}, true
	}
	var user models.User
	if err := snap.Decode(&user); err != nil {
		return models.User{UID: uid}, true
	}
	user.UID = uid
	return user, true
}

// writeMutationError converts a reconciler failure into the inline
// status the surface shows. Mutations are abandoned, never retried.
func writeMutationError(c *gin.Context, err error, fallback string) {
	var validation *reconcile.ValidationError
	var cascade *reconcile.CascadeError
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error()})
	case errors.Is(err, reconcile.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner can do that"})
	case errors.Is(err, reconcile.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &cascade):
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": cascade.Error(),
			"stage": cascade.Stage.String(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
