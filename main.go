package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wifizen/auth"
	"wifizen/database"
	"wifizen/feed"
	"wifizen/handlers"
	"wifizen/reconcile"
	"wifizen/routes"
	"wifizen/store"
	"wifizen/websocket"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	log.Println("Starting wifizen feed server...")

	if err := godotenv.Load(); err != nil {
		log.Println(".env not found, relying on process environment")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	mongoURI := os.Getenv("MONGODB_URI")
	if jwtSecret == "" || mongoURI == "" {
		log.Fatal("JWT_SECRET and MONGODB_URI must be set")
	}

	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = "wifizen"
	}

	// Connect to MongoDB with retry
	var dbErr error
	for i := 1; i <= 3; i++ {
		if err := database.Connect(mongoURI); err != nil {
			dbErr = err
			log.Printf("MongoDB connection attempt %d failed: %v", i, err)
			time.Sleep(2 * time.Second)
			continue
		}
		dbErr = nil
		break
	}
	if dbErr != nil {
		log.Fatal("Failed to connect to MongoDB: ", dbErr)
	}

	st := store.NewMongo(database.Client.Database(dbName))
	authSvc := auth.New(st, []byte(jwtSecret))
	rec := reconcile.New(st)
	synchronizer := feed.New(st)

	handlers.Configure(authSvc, rec, st, synchronizer)
	handlers.SetVAPIDKeys(os.Getenv("VAPID_PUBLIC_KEY"), os.Getenv("VAPID_PRIVATE_KEY"))
	handlers.SetCloudinaryURL(os.Getenv("CLOUDINARY_URL"))

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := routes.SetupRouter(authSvc)

	router.GET("/health", func(c *gin.Context) {
		c.String(200, "OK")
	})

	// Live feed: every store change flows through the synchronizer into
	// the websocket hub as a full ordered snapshot.
	wsManager := websocket.NewManager()
	go wsManager.Start()

	subscription, err := synchronizer.Subscribe(
		wsManager.BroadcastFeed,
		func(err error) {
			log.Printf("warning: %v", err)
			wsManager.BroadcastSyncCancelled(err)
		})
	if err != nil {
		log.Fatal("Failed to subscribe to posts: ", err)
	}

	router.GET("/ws", func(c *gin.Context) {
		websocket.Handler(wsManager, authSvc)(c.Writer, c.Request)
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server running on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server error: ", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	subscription.Unsubscribe()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Println("Forced shutdown: ", err)
	}
	if err := database.Disconnect(); err != nil {
		log.Println("MongoDB disconnect error: ", err)
	}

	log.Println("Server stopped")
}
