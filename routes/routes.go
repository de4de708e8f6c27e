package routes

import (
	"time"

	"wifizen/auth"
	"wifizen/handlers"
	"wifizen/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRouter(authSvc *auth.Service) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:8080", "http://127.0.0.1:8080", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Public routes
	router.POST("/api/signup", handlers.Signup)
	router.POST("/api/login", handlers.Login)
	router.POST("/api/password-reset", handlers.SendPasswordReset)
	router.POST("/api/password-reset/confirm", handlers.ResetPassword)
	router.GET("/api/vapid-public-key", handlers.GetVapidPublicKey)

	// Protected routes
	protected := router.Group("/api")
	protected.Use(middleware.JWTAuth(authSvc))

	protected.POST("/logout", handlers.Logout)

	// Profile
	protected.GET("/me", handlers.GetMyProfile)
	protected.PUT("/me", handlers.UpdateProfile)
	protected.GET("/user/:id", handlers.GetUser)

	// Feed and posts
	protected.GET("/feed", handlers.GetFeed)
	protected.POST("/post", handlers.CreatePost)
	protected.PUT("/post/:id", handlers.EditPost)
	protected.DELETE("/post/:id", handlers.DeletePost)
	protected.POST("/post/:id/like", handlers.TogglePostLike)

	// Comments
	protected.POST("/post/:id/comment", handlers.AddComment)
	protected.PUT("/post/:id/comment/:commentId", handlers.EditComment)
	protected.DELETE("/post/:id/comment/:commentId", handlers.DeleteComment)
	protected.POST("/post/:id/comment/:commentId/like", handlers.LikeComment)
	protected.POST("/post/:id/comment/:commentId/dislike", handlers.DislikeComment)

	// Photo upload
	protected.POST("/upload-photo", handlers.UploadPhoto)

	// Push subscriptions
	protected.POST("/subscribe", handlers.SubscribePush)

	router.NoRoute(func(c *gin.Context) {
		if len(c.Request.URL.Path) >= 4 && c.Request.URL.Path[:4] == "/api" {
			c.JSON(404, gin.H{"error": "endpoint not found", "path": c.Request.URL.Path})
			return
		}
		c.Next()
	})

	return router
}
