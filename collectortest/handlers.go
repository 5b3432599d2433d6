// tracker/collectortest/handlers.go
package collectortest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mabletask/tracker/models"
)

type TrackHandlers struct {
	collector *Collector
}

func NewTrackHandlers(c *Collector) *TrackHandlers {
	return &TrackHandlers{collector: c}
}

// TrackVisit accepts a single VisitRecord.
func (h *TrackHandlers) TrackVisit(c *gin.Context) {
	if status, fail := h.collector.nextOutcome(KindVisit); fail {
		c.JSON(status, gin.H{"error": "Failed to record visit"})
		return
	}

	var visit models.VisitRecord
	if err := c.ShouldBindJSON(&visit); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if visit.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	h.collector.storeVisit(visit)
	c.Status(http.StatusCreated)
}

// TrackPixel accepts a single PixelEvent.
func (h *TrackHandlers) TrackPixel(c *gin.Context) {
	if status, fail := h.collector.nextOutcome(KindPixel); fail {
		c.JSON(status, gin.H{"error": "Failed to record pixel event"})
		return
	}

	var pixel models.PixelEvent
	if err := c.ShouldBindJSON(&pixel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if pixel.EventName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "eventName is required"})
		return
	}

	h.collector.storePixel(pixel)
	c.Status(http.StatusNoContent)
}

// Stall holds the request for d, or until the client gives up.
func stall(c *gin.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-c.Request.Context().Done():
	}
}
