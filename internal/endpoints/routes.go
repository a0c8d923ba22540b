package endpoints

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all API routes. authMiddleware guards every route
// that acts on behalf of a user; Auth0Middleware in production.
func SetupRoutes(r *gin.Engine, h *Handlers, authMiddleware gin.HandlerFunc) {
	api := r.Group("/api")
	{
		api.GET("/health", h.HandleHealth)
		api.GET("/providers", h.HandleListProviders)
		api.GET("/downloads/:id", h.HandleDownload)
		api.GET("/oauth/google/callback", HandleOAuthCallback)

		protected := api.Group("")
		protected.Use(authMiddleware)
		{
			protected.POST("/app-arguments", h.HandleAppArguments)

			providers := protected.Group("/providers/:provider")
			{
				providers.POST("/open", h.HandleOpen)
				providers.POST("/save", h.HandleSave)
				providers.POST("/save-as", h.HandleSaveAs)
				providers.POST("/choose-save-as-location", h.HandleChooseSaveAsLocation)
				providers.POST("/properties", h.HandleChangeProperties)
				providers.POST("/picker", h.HandleOpenWithPicker)
				providers.GET("/projects", h.HandleListProjects)

				providers.POST("/autosave", h.HandleAutoSave)
				providers.POST("/autosave/date", h.HandleAutoSaveCreationDate)
				providers.POST("/autosave/metadata", h.HandleAutoSaveMetadata)
				providers.DELETE("/autosave", h.HandleBurstAutoSaveCache)
			}

			recent := protected.Group("/recent")
			{
				recent.GET("", h.HandleListRecent)
				recent.DELETE("/:provider/:fileId", h.HandleRemoveRecent)
			}
		}
	}
}
