package api

import (
	"errors"
	"io"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/quantlens/internal/analysis"
)

var startTime = time.Now()

// Root handler
func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "QuantLens API",
		"version": s.version,
		"status":  "running",
		"time":    time.Now().UTC(),
	})
}

// Status endpoints

// handleGetStatus returns component and runtime status
func (s *Server) handleGetStatus(c *gin.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbStatus := s.componentStatus(c, "database", s.db)
	cacheStatus := s.componentStatus(c, "cache", s.cache)

	systemStatus := "healthy"
	if dbStatus == "unhealthy" || cacheStatus == "unhealthy" {
		systemStatus = "degraded"
	}

	catalogEntries := 0
	if s.service != nil && s.service.Catalog() != nil {
		catalogEntries = s.service.Catalog().Len()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    systemStatus,
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(startTime).Seconds(),
		"version":   s.version,
		"components": gin.H{
			"database": gin.H{"status": dbStatus},
			"cache":    gin.H{"status": cacheStatus},
			"catalog":  gin.H{"entries": catalogEntries},
		},
		"system": gin.H{
			"goroutines": runtime.NumGoroutine(),
			"memory": gin.H{
				"alloc_mb":       toMB(memStats.Alloc),
				"total_alloc_mb": toMB(memStats.TotalAlloc),
				"sys_mb":         toMB(memStats.Sys),
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		},
	})
}

func (s *Server) componentStatus(c *gin.Context, name string, h HealthChecker) string {
	if h == nil {
		return "not_configured"
	}
	if err := h.Health(c.Request.Context()); err != nil {
		log.Warn().Err(err).Str("component", name).Msg("Health check failed")
		return "unhealthy"
	}
	return "healthy"
}

// handleGetHealth returns a simple health check (for load balancers)
func (s *Server) handleGetHealth(c *gin.Context) {
	if s.db != nil {
		if err := s.db.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database unavailable",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC(),
	})
}

// Analysis endpoints

func (s *Server) handleAnalyzePortfolio(c *gin.Context) {
	var req analysis.PortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	res, err := s.service.AnalyzePortfolio(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleAnalyzeAsset(c *gin.Context) {
	req := analysis.AssetRequest{
		Ticker: c.Param("ticker"),
		Period: c.Query("period"),
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"short_window", &req.ShortWindow},
		{"long_window", &req.LongWindow},
		{"rsi_window", &req.RSIWindow},
		{"horizon", &req.Horizon},
	}
	for _, p := range ints {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			badRequest(c, "Invalid "+p.name+": must be a positive integer")
			return
		}
		*p.dst = v
	}
	if raw := c.Query("confidence"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			badRequest(c, "Invalid confidence: must be a number in (0, 1)")
			return
		}
		req.Confidence = v
	}

	res, err := s.service.AnalyzeAsset(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Catalog endpoints

// AddCatalogRequest adds a FRED series to the catalog
type AddCatalogRequest struct {
	SeriesID string `json:"series_id" binding:"required"`
	Title    string `json:"title"`
}

func (s *Server) handleListCatalog(c *gin.Context) {
	cat := s.service.Catalog()
	if cat == nil {
		c.JSON(http.StatusOK, gin.H{"entries": []interface{}{}, "defaults": []string{}, "total": 0})
		return
	}

	entries := cat.List()
	if group := c.Query("group"); group != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if strings.EqualFold(e.Group, group) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	c.JSON(http.StatusOK, gin.H{
		"entries":  entries,
		"defaults": cat.Defaults(),
		"total":    len(entries),
	})
}

func (s *Server) handleAddCatalogEntry(c *gin.Context) {
	var req AddCatalogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	entry, added, err := s.service.AddToCatalog(c.Request.Context(), req.SeriesID, req.Title)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"entry": entry,
		"added": added,
	})
}

func (s *Server) handleSearch(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		badRequest(c, "Query parameter q is required")
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			badRequest(c, "Invalid limit: must be a positive integer")
			return
		}
		limit = v
	}

	hits, err := s.service.Search(c.Request.Context(), query, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{
		"query":   query,
		"results": hits,
		"total":   len(hits),
	}
	if len(hits) == 0 {
		resp["message"] = "No results. FRED holds macro data, not stock tickers like AAPL."
	}
	c.JSON(http.StatusOK, resp)
}

// History endpoints

func (s *Server) handleListReports(c *gin.Context) {
	if s.reports == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "report storage not configured"})
		return
	}
	limit, ok := limitParam(c)
	if !ok {
		return
	}

	records, err := s.reports.List(c.Request.Context(), c.Query("kind"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reports": records,
		"total":   len(records),
	})
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s.runs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run storage not configured"})
		return
	}
	limit, ok := limitParam(c)
	if !ok {
		return
	}

	runs, err := s.runs.Recent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"total": len(runs),
	})
}

func limitParam(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		badRequest(c, "Invalid limit: must be a positive integer")
		return 0, false
	}
	return v, true
}

func toMB(bytes uint64) uint64 {
	return bytes / 1024 / 1024
}
