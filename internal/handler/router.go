package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Caring-data/documenso-sub000/internal/middleware"
	"github.com/Caring-data/documenso-sub000/internal/service"
)

// Routers bundles the handlers mounted by RegisterRoutes.
type Routers struct {
	Documents      *DocumentHandler
	Signing        *SigningHandler
	Metrics        *MetricsHandler
	MetricsService *service.MetricsService
}

// RegisterRoutes mounts the API under the given prefix.
func RegisterRoutes(r *gin.Engine, prefix string, h Routers) {
	if h.Metrics != nil {
		r.GET("/metrics", h.Metrics.Prometheus)
	}

	api := r.Group(prefix)
	api.Use(middleware.Metrics(h.MetricsService))

	docs := api.Group("/documents")
	{
		docs.POST("", h.Documents.Create)
		docs.GET("/download", h.Documents.Download)
		docs.GET("/:id", h.Documents.Get)
		docs.DELETE("/:id", h.Documents.Delete)
		docs.POST("/:id/distribute", h.Documents.Distribute)
		docs.GET("/:id/download-url", h.Documents.DownloadURL)
		docs.POST("/:id/certificate-token", h.Documents.CertificateToken)
		docs.GET("/:id/certificate", h.Documents.CertificateData)
		docs.POST("/:id/reseal", h.Documents.Reseal)
	}

	signing := api.Group("/signing/:token")
	signing.Use(middleware.SigningToken())
	{
		signing.GET("", h.Signing.Session)
		signing.POST("/fields/:fieldId/sign", h.Signing.SignField)
		signing.POST("/fields/:fieldId/unsign", h.Signing.UnsignField)
		signing.POST("/complete", h.Signing.Complete)
		signing.POST("/reject", h.Signing.Reject)
	}
}
