// Package collectortest runs an in-process collector that speaks the
// tracker's HTTP transport protocol. It records what it receives and can be
// told to fail or stall, which is what transport and end-to-end tests need.
package collectortest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"mabletask/tracker/models"
	"mabletask/tracker/transport"
)

type Kind string

const (
	KindVisit Kind = "visit"
	KindPixel Kind = "pixel"
)

// Collector is a running test collector.
type Collector struct {
	server *httptest.Server

	mu         sync.Mutex
	visits     []models.VisitRecord
	pixels     []models.PixelEvent
	seen       map[string]bool
	requests   map[Kind]int
	failNext   int
	failAll    bool
	failStatus int
	delay      time.Duration
}

// New starts a collector; apiKey, when non-empty, is required on every request.
func New(apiKey string) *Collector {
	gin.SetMode(gin.TestMode)

	c := &Collector{
		seen:     make(map[string]bool),
		requests: make(map[Kind]int),
	}
	c.server = httptest.NewServer(c.router(apiKey))
	return c
}

func (c *Collector) router(apiKey string) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORSMiddleware(""))

	handlers := NewTrackHandlers(c)
	api := r.Group("/")
	api.Use(APIKeyRequired(apiKey), stallMiddleware(c))
	{
		api.POST(transport.VisitPath, handlers.TrackVisit)
		api.POST(transport.PixelPath, handlers.TrackPixel)
	}
	return r
}

func (c *Collector) URL() string { return c.server.URL }

func (c *Collector) Close() { c.server.Close() }

// FailNext makes the next n track requests answer with status.
func (c *Collector) FailNext(n, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failNext = n
	c.failStatus = status
}

// FailAll makes every track request answer with status until Recover.
func (c *Collector) FailAll(status int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failAll = true
	c.failStatus = status
}

func (c *Collector) Recover() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failAll = false
	c.failNext = 0
}

// Stall delays every request by d before it is handled.
func (c *Collector) Stall(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay = d
}

func (c *Collector) Visits() []models.VisitRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.VisitRecord(nil), c.visits...)
}

func (c *Collector) Pixels() []models.PixelEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.PixelEvent(nil), c.pixels...)
}

// Requests counts track requests of a kind that got past auth, including failed ones.
func (c *Collector) Requests(kind Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests[kind]
}

func (c *Collector) latency() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delay
}

func (c *Collector) nextOutcome(kind Kind) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests[kind]++
	if c.failAll {
		return c.failStatus, true
	}
	if c.failNext > 0 {
		c.failNext--
		return c.failStatus, true
	}
	return 0, false
}

// storeVisit keeps the first delivery of each event id; redeliveries are acknowledged but not stored twice.
func (c *Collector) storeVisit(v models.VisitRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v.EventID != "" && c.seen[v.EventID] {
		return
	}
	c.seen[v.EventID] = true
	c.visits = append(c.visits, v)
}

func (c *Collector) storePixel(p models.PixelEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p.EventID != "" && c.seen[p.EventID] {
		return
	}
	c.seen[p.EventID] = true
	c.pixels = append(c.pixels, p)
}
