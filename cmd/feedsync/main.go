package main

import (
	"context"
	"net/http"

	"github.com/MosinFAM/feedsync/internal/config"
	"github.com/MosinFAM/feedsync/internal/db"
	"github.com/MosinFAM/feedsync/internal/feed"
	"github.com/MosinFAM/feedsync/internal/gateway"
	"github.com/MosinFAM/feedsync/internal/identity"
	"github.com/MosinFAM/feedsync/internal/models"
	"github.com/MosinFAM/feedsync/internal/realtime"
	"github.com/MosinFAM/feedsync/internal/thread"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if cfg.UserID == "" {
		logrus.Fatal("user.id is not set")
	}

	dbConn, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logrus.Fatalf("Failed to connect to DB: %v", err)
	}
	defer dbConn.Close()

	if cfg.Migrate {
		if err := db.Migrate(dbConn, "migrations"); err != nil {
			logrus.Fatalf("Failed to migrate DB: %v", err)
		}
	}

	gw := gateway.NewPostgresGateway(dbConn)
	sess := identity.NewSession(cfg.UserID, models.Profile{
		UserID:      cfg.UserID,
		DisplayName: cfg.DisplayName,
		AvatarURL:   cfg.AvatarURL,
		Role:        cfg.Role,
	})

	feedStore := feed.NewStore(gw, sess, cfg.PageSize)
	threads := thread.NewStore(gw, sess, feedStore, cfg.MaxComments)

	// Канал: websocket, если задан адрес, иначе LISTEN/NOTIFY поверх той же БД
	var channel realtime.Channel
	if cfg.RealtimeURL != "" {
		ws, err := realtime.DialWS(cfg.RealtimeURL)
		if err != nil {
			logrus.Fatalf("Failed to connect realtime websocket: %v", err)
		}
		defer ws.Close()
		channel = ws
	} else {
		pg := realtime.ListenPG(cfg.DatabaseURL)
		defer pg.Close()
		channel = pg
	}

	reconciler := realtime.NewReconciler(channel, gw, feedStore, sess)
	if err := reconciler.Start(); err != nil {
		logrus.Fatalf("Failed to start reconciler: %v", err)
	}
	defer func() {
		if err := reconciler.Stop(); err != nil {
			logrus.Errorf("Failed to stop reconciler: %v", err)
		}
	}()

	if err := feedStore.LoadFirstPage(context.Background()); err != nil {
		logrus.Errorf("Initial feed load failed: %v", err)
	}

	r := gin.Default()

	r.GET("/feed", func(c *gin.Context) {
		c.JSON(http.StatusOK, feedView(feedStore.Snapshot()))
	})

	r.POST("/feed/more", func(c *gin.Context) {
		if err := feedStore.LoadMore(c.Request.Context()); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, feedView(feedStore.Snapshot()))
	})

	r.GET("/threads/:postID", func(c *gin.Context) {
		postID := c.Param("postID")
		if err := threads.Open(c.Request.Context(), postID); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		comments, _ := threads.Snapshot(postID)
		c.JSON(http.StatusOK, gin.H{"postId": postID, "comments": comments})
	})

	co := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
	})

	logrus.Infof("Read model server is running on %s", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, co.Handler(r)); err != nil {
		logrus.Fatalf("Server error: %v", err)
	}
}

// feedView переводит снимок ленты в JSON-представление
func feedView(snap feed.Snapshot) gin.H {
	liked := make([]string, 0, len(snap.LikedPostIDs))
	for id := range snap.LikedPostIDs {
		liked = append(liked, id)
	}
	followed := make([]string, 0, len(snap.FollowedOwnerIDs))
	for id := range snap.FollowedOwnerIDs {
		followed = append(followed, id)
	}
	return gin.H{
		"posts":            snap.Posts,
		"likedPostIds":     liked,
		"followedOwnerIds": followed,
		"hasMore":          snap.HasMore,
	}
}
