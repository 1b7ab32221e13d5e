package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"blocpage/internal/api/middleware"
	"blocpage/internal/auth"
	"blocpage/internal/config"
	"blocpage/internal/contact"
	"blocpage/internal/migration"
	"blocpage/internal/storage"
)

// RegisterRoutes 注册全部 API 路由，包括公开页面入口。
func RegisterRoutes(
	router *gin.Engine,
	cfg *config.Config,
	db *gorm.DB,
	asynqClient *asynq.Client,
	authService *auth.AuthService,
	redisClient *redis.Client,
	logger *slog.Logger,
	storageClient *storage.Client,
	extractor contact.Extractor,
	exporter contact.CardExporter,
) {
	router.Use(middleware.CorrelationIDMiddleware(), middleware.SlogLoggerMiddleware(logger))

	migrator := migration.New(db, logger)

	profileHandler := NewProfileHandler(db, asynqClient, storageClient, migrator, cfg.Editor.MaxProfiles)
	editorHandler := NewEditorHandler(db, migrator, redisClient, logger, cfg.Editor.DebounceWindow)
	publicHandler := NewPublicHandler(db, migrator, logger)
	authHandler := NewAuthHandler(db, authService, redisClient, logger,
		cfg.Auth.LoginRateLimitPerHour, cfg.Auth.LoginLockThreshold, cfg.Auth.LoginLockTTL, cfg.Auth.CookieDomain)
	wsHandler := NewWsHandler(redisClient, authService, logger, cfg.API.AllowedOrigins)
	assetHandler := NewAssetHandler(db, storageClient, logger, cfg.Clamd.Addr, redisClient)
	contactHandler := NewContactHandler(extractor, exporter, logger)
	authMiddleware := middleware.AuthMiddleware(authService)

	router.GET("/p/:username", publicHandler.GetPublicPage)

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authMiddleware, authHandler.Logout)
			authGroup.POST("/change-password", authMiddleware, authHandler.ChangePassword)
		}

		pageGroup := v1.Group("/pages")
		pageGroup.Use(authMiddleware)
		{
			pageGroup.POST("", profileHandler.CreateProfile)
			pageGroup.GET("", profileHandler.ListProfiles)
			pageGroup.GET("/active", profileHandler.GetActiveProfile)
			pageGroup.POST("/preview", profileHandler.PreviewProfile)
			pageGroup.GET("/:name", profileHandler.GetProfile)
			pageGroup.PUT("/:name", profileHandler.UpdateProfile)
			pageGroup.DELETE("/:name", profileHandler.DeleteProfile)
			pageGroup.POST("/:name/activate", profileHandler.ActivateProfile)
			pageGroup.POST("/:name/snapshot", profileHandler.RequestSnapshot)
			pageGroup.GET("/:name/snapshot-link", profileHandler.GetSnapshotLink)

			editGroup := pageGroup.Group("/:name/edit")
			{
				editGroup.POST("/open", editorHandler.OpenSession)
				editGroup.GET("/status", editorHandler.SessionState)
				editGroup.POST("/blocks", editorHandler.AddBlock)
				editGroup.PUT("/blocks/:blockID", editorHandler.UpdateBlock)
				editGroup.DELETE("/blocks/:blockID", editorHandler.DeleteBlock)
				editGroup.POST("/reorder", editorHandler.ReorderBlocks)
				editGroup.PUT("/background", editorHandler.SetBackground)
				editGroup.POST("/retry", editorHandler.RetrySave)
				editGroup.POST("/flush", editorHandler.FlushSession)
				editGroup.POST("/close", editorHandler.CloseSession)
			}
		}

		assetGroup := v1.Group("/assets")
		assetGroup.Use(authMiddleware)
		{
			assetGroup.POST("/upload", assetHandler.UploadAsset)
			assetGroup.GET("", assetHandler.ListAssets)
			assetGroup.GET("/view", assetHandler.GetAssetURL)
			assetGroup.DELETE("", assetHandler.DeleteAsset)
		}

		contactGroup := v1.Group("/contact")
		contactGroup.Use(authMiddleware)
		{
			contactGroup.POST("/extract", contactHandler.ExtractCard)
			contactGroup.POST("/export", contactHandler.ExportCard)
		}
	}
}
