// Package router wires the gin engine, middleware stack and route groups.
package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mikaelkraft/quicknote-pro/internal/handler"
	"github.com/mikaelkraft/quicknote-pro/internal/middleware"
)

// Router holds the configured gin engine.
type Router struct {
	engine *gin.Engine
	db     *gorm.DB
}

// Dependencies are the constructed handlers the router mounts.
type Dependencies struct {
	Notes  *handler.NoteHandler
	Sync   *handler.SyncHandler
	Backup *handler.BackupHandler
}

// NewRouter builds the engine with the middleware stack and all routes.
func NewRouter(loggerMiddleware *middleware.LoggerMiddleware, db *gorm.DB, deps Dependencies) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(loggerMiddleware.RequestID())
	engine.Use(loggerMiddleware.RequestLogger())

	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"*"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := engine.Group("/api/v1")
	{
		api.GET("/db/status", func(c *gin.Context) {
			sqlDB, err := db.DB()
			if err != nil {
				c.JSON(500, gin.H{"error": "database connection error"})
				return
			}
			if err := sqlDB.Ping(); err != nil {
				c.JSON(500, gin.H{"error": "database ping failed"})
				return
			}
			c.JSON(200, gin.H{"status": "ok"})
		})

		notes := api.Group("/notes")
		{
			notes.GET("", deps.Notes.ListNotes)
			notes.POST("", deps.Notes.CreateNote)
			notes.GET("/:id", deps.Notes.GetNote)
			notes.PUT("/:id", deps.Notes.UpdateNote)
			notes.DELETE("/:id", deps.Notes.DeleteNote)
			notes.POST("/:id/media", deps.Notes.UploadAttachment)
			notes.GET("/:id/media/*path", deps.Notes.DownloadAttachment)
		}

		sync := api.Group("/sync")
		{
			sync.GET("/providers", deps.Sync.ListProviders)
			sync.POST("/providers/:id/connect", deps.Sync.Connect)
			sync.POST("/providers/:id/disconnect", deps.Sync.Disconnect)
			sync.POST("/providers/:id/sync", deps.Sync.SyncProvider)
			sync.POST("/now", deps.Sync.SyncNow)
			sync.GET("/logs", deps.Sync.SyncLogs)
			sync.GET("/events", deps.Sync.Events)

			sync.GET("/configs", deps.Sync.ListConfigs)
			sync.POST("/configs", deps.Sync.SaveConfig)
			sync.GET("/configs/:id", deps.Sync.GetConfig)
			sync.DELETE("/configs/:id", deps.Sync.DeleteConfig)
		}

		backup := api.Group("/backup")
		{
			backup.GET("/summary", deps.Backup.Summary)
			backup.POST("/export/zip", deps.Backup.ExportZip)
			backup.POST("/export/json", deps.Backup.ExportJSON)
			backup.GET("/download", deps.Backup.Download)
			backup.POST("/share", deps.Backup.Share)
			backup.POST("/validate", deps.Backup.Validate)
			backup.POST("/import", deps.Backup.Import)
		}
	}

	return &Router{engine: engine, db: db}
}

// GetEngine returns the gin engine.
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
