package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tonojkeee/koordinator/internal/api/handlers"
	"github.com/tonojkeee/koordinator/internal/api/middleware"
	"github.com/tonojkeee/koordinator/internal/config"
	"github.com/tonojkeee/koordinator/internal/services"
	"github.com/tonojkeee/koordinator/internal/settings"
)

// Dependencies are the services the HTTP layer is wired to
type Dependencies struct {
	Users       *services.UserService
	Accounts    *services.AccountService
	Emails      *services.EmailService
	Folders     *services.FolderService
	Ingester    services.Ingester
	Logs        *services.LogService
	Settings    *settings.Store
	JWT         *middleware.JWTManager
	ServiceKeys *middleware.ServiceKeyManager
}

// SetupRouter initializes and returns the Gin router with all routes configured
func SetupRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.GetCORSOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	authHandler := handlers.NewAuthHandler(deps.Users, deps.JWT, deps.Logs)
	userHandler := handlers.NewUserHandler(deps.Users, deps.Logs)
	emailHandler := handlers.NewEmailHandler(deps.Emails, deps.Accounts, deps.Users, deps.Logs)
	folderHandler := handlers.NewFolderHandler(deps.Folders, deps.Accounts, deps.Users)
	settingsHandler := handlers.NewSettingsHandler(deps.Settings, deps.Logs)
	ingestHandler := handlers.NewIngestHandler(deps.Ingester, cfg.MaxMessageBytes)
	logHandler := handlers.NewLogHandler(deps.Logs)

	// Health check endpoint (no auth required)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Machine endpoints
	machine := router.Group("")
	machine.Use(middleware.ServiceKeyMiddleware(deps.ServiceKeys))
	{
		machine.GET("/metrics", gin.WrapH(promhttp.Handler()))
		machine.POST("/api/internal/deliver", ingestHandler.Deliver)
	}

	api := router.Group("/api")
	{
		api.POST("/auth/login", authHandler.Login)

		protected := api.Group("")
		protected.Use(middleware.JWTMiddleware(deps.JWT))
		{
			protected.POST("/auth/refresh", authHandler.RefreshToken)
			protected.GET("/auth/me", authHandler.GetCurrentUser)

			userGroup := protected.Group("/user")
			{
				userGroup.PUT("/profile", userHandler.UpdateProfile)
				userGroup.PUT("/password", userHandler.ChangePassword)
			}

			email := protected.Group("/email")
			{
				email.GET("/account", emailHandler.GetAccount)
				email.GET("/lookup", emailHandler.Lookup)
				email.GET("/messages", emailHandler.ListMessages)
				email.GET("/messages/:id", emailHandler.GetMessage)
				email.PATCH("/messages/:id", emailHandler.UpdateMessage)
				email.DELETE("/messages/:id", emailHandler.DeleteMessage)
				email.POST("/send", emailHandler.SendEmail)
				email.GET("/attachments/:id/download", emailHandler.DownloadAttachment)

				email.GET("/folders", folderHandler.ListFolders)
				email.POST("/folders", folderHandler.CreateFolder)
				email.DELETE("/folders/:id", folderHandler.DeleteFolder)
			}

			settingsGroup := protected.Group("/settings")
			{
				settingsGroup.GET("", settingsHandler.GetSettings)
				settingsGroup.PUT("/:key", settingsHandler.UpdateSetting)
			}

			protected.GET("/logs", logHandler.ListLogs)
		}
	}

	return router
}
