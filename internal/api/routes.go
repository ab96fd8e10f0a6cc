package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/status", s.handleGetStatus)
		v1.GET("/health", s.handleGetHealth)

		v1.POST("/portfolio/analyze", s.handleAnalyzePortfolio)
		v1.GET("/assets/:ticker/analysis", s.handleAnalyzeAsset)

		catalog := v1.Group("/catalog")
		{
			catalog.GET("", s.handleListCatalog)
			catalog.POST("", s.handleAddCatalogEntry)
		}

		v1.GET("/search", s.handleSearch)
		v1.GET("/reports", s.handleListReports)
		v1.GET("/runs", s.handleListRuns)
	}

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/", s.handleRoot)
}
