package crawlermodule

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"melodyhub/internal/events"
)

// RegisterRoutes registers the crawl control routes.
func (m *Module) RegisterRoutes(router *gin.Engine) {
	crawler := router.Group("/crawler")
	crawler.POST("/start", m.startCrawl)
	crawler.GET("/progress", m.getProgress)
	crawler.GET("/progress/ws", m.progressSocket)
	crawler.POST("/stop", m.stopCrawl)
	crawler.POST("/reset", m.resetProgress)

	crawler.POST("/multi-site", m.startMultiSiteCrawl)
	crawler.GET("/multi-site/progress", m.getMultiSiteProgress)
	crawler.POST("/multi-site/reset", m.resetMultiSiteProgress)

	crawler.GET("/adapters", m.listAdapters)
	crawler.POST("/test-all-connections", m.testAllConnections)

	crawler.GET("/duplicate-stats", m.duplicateStats)
	crawler.POST("/cleanup-duplicates", m.cleanupDuplicates)
}

// startCrawl runs a single-site crawl against the default site and returns
// the full outcome. A second start while one is running comes back 409.
func (m *Module) startCrawl(c *gin.Context) {
	var cfg CrawlConfig
	if err := c.ShouldBindJSON(&cfg); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid crawl config: " + err.Error()})
		return
	}

	result := m.runner.CrawlMusic(c.Request.Context(), cfg)
	if result.Message == crawlBusyMessage {
		c.JSON(http.StatusConflict, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (m *Module) getProgress(c *gin.Context) {
	c.JSON(http.StatusOK, m.runner.GetProgress())
}

func (m *Module) stopCrawl(c *gin.Context) {
	if !m.runner.StopCrawling() {
		c.JSON(http.StatusOK, gin.H{"stopped": false, "message": "no crawl is running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": true})
}

func (m *Module) resetProgress(c *gin.Context) {
	if !m.runner.ResetProgress() {
		c.JSON(http.StatusConflict, gin.H{"reset": false, "message": "a crawl is still running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

func (m *Module) startMultiSiteCrawl(c *gin.Context) {
	var cfg MultiSiteCrawlConfig
	if err := c.ShouldBindJSON(&cfg); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multi-site crawl config: " + err.Error()})
		return
	}

	result := m.orchestrator.CrawlFromMultipleSites(c.Request.Context(), cfg)
	switch result.Message {
	case multiBusyMessage:
		c.JSON(http.StatusConflict, result)
	case noSitesMessage:
		c.JSON(http.StatusBadRequest, result)
	default:
		c.JSON(http.StatusOK, result)
	}
}

func (m *Module) getMultiSiteProgress(c *gin.Context) {
	c.JSON(http.StatusOK, m.orchestrator.GetProgress())
}

func (m *Module) resetMultiSiteProgress(c *gin.Context) {
	if !m.orchestrator.ResetProgress() {
		c.JSON(http.StatusConflict, gin.H{"reset": false, "message": "a multi-site crawl is still running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

func (m *Module) listAdapters(c *gin.Context) {
	descriptors := m.orchestrator.Descriptors()
	c.JSON(http.StatusOK, gin.H{
		"adapters": descriptors,
		"count":    len(descriptors),
	})
}

func (m *Module) testAllConnections(c *gin.Context) {
	results := m.orchestrator.TestAllConnections(c.Request.Context())
	accessible := 0
	for _, r := range results {
		if r.Accessible {
			accessible++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"results":    results,
		"tested":     len(results),
		"accessible": accessible,
	})
}

func (m *Module) duplicateStats(c *gin.Context) {
	stats, err := m.detector.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

type cleanupRequest struct {
	DryRun bool `json:"dry_run"`
}

func (m *Module) cleanupDuplicates(c *gin.Context) {
	req := cleanupRequest{DryRun: true} // destructive only on explicit request
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cleanup request: " + err.Error()})
		return
	}

	result, err := m.detector.CleanupDuplicates(req.DryRun)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !result.DryRun && result.DuplicatesRemoved > 0 {
		events.GetGlobalEventBus().PublishAsync(events.NewSystemEvent(events.EventDuplicatesCleaned,
			"Duplicates cleaned", fmt.Sprintf("removed %d duplicate songs", result.DuplicatesRemoved)))
	}
	c.JSON(http.StatusOK, result)
}
