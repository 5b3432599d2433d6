// Package tracker is the storefront telemetry client. A Client records page
// visits and interaction events, buffers them, and ships them to a transport
// in the background. None of its methods return errors: telemetry problems
// are logged and never reach the product.
package tracker

import (
	"context"
	"log/slog"
	"sync"

	"mabletask/tracker/clock"
	"mabletask/tracker/config"
	"mabletask/tracker/dedup"
	"mabletask/tracker/dispatch"
	"mabletask/tracker/models"
	"mabletask/tracker/probe"
	"mabletask/tracker/queue"
	"mabletask/tracker/scheduler"
	"mabletask/tracker/store"
	"mabletask/tracker/transport"
	"mabletask/tracker/utils"
)

const (
	jobDispatch   = "dispatch"
	jobCheckpoint = "checkpoint"
)

type Client struct {
	cfg     config.Config
	env     probe.Environment
	storage store.Storage
	clock   clock.Clock
	logger  *slog.Logger

	policy     dedup.Policy
	sessions   *store.SessionStore
	visits     *queue.Bounded[*models.VisitRecord]
	pixels     *queue.Bounded[*models.PixelEvent]
	dispatcher *dispatch.Dispatcher
	scheduler  *scheduler.Scheduler

	mu      sync.Mutex
	session models.Session
	closed  bool

	closeOnce sync.Once
}

// New builds a client, restores the persisted ledger and starts the
// dispatch and checkpoint timers. An invalid cfg falls back to defaults.
func New(cfg config.Config, t transport.Transport, opts ...Option) *Client {
	c := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "tracker")
	if err := c.cfg.Validate(); err != nil {
		c.logger.Warn("Invalid tracker config, using defaults", "error", err)
		c.cfg = config.Default()
	}
	if c.env == nil {
		c.env = probe.NewStatic("")
	}
	if c.storage == nil {
		c.storage = store.NewMemoryStorage()
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	if t == nil {
		c.logger.Warn("No transport configured, records will be discarded")
		t = transport.Func{}
	}

	c.policy = dedup.NewPolicy(c.cfg.VisitCooldown, c.cfg.ExcludedPaths)
	c.sessions = store.NewSessionStore(c.storage, c.cfg.StateKey, c.logger)
	c.visits = queue.New[*models.VisitRecord](c.cfg.QueueCapacity)
	c.pixels = queue.New[*models.PixelEvent](c.cfg.QueueCapacity)
	c.dispatcher = dispatch.New(c.visits, c.pixels, t, c.clock, c.Enabled, c.logger, c.cfg.DispatchOptions())
	c.scheduler = scheduler.New(c.clock, c.logger)

	// The ledger survives reloads; the session id never does.
	state := c.sessions.Load()
	c.session = models.Session{
		ID:      utils.NewSessionID(),
		Enabled: true,
		Ledger:  state.VisitLedger,
	}
	c.logger.Info("Tracking session started", "session_id", c.session.ID, "restored_urls", len(state.VisitLedger))

	c.scheduler.Every(jobDispatch, c.cfg.FlushInterval, c.dispatcher.Request)
	c.scheduler.Every(jobCheckpoint, c.cfg.CheckpointInterval, func() { c.checkpoint() })
	return c
}

// RecordVisit records a page view of url, or of the environment's current
// URL when url is empty. Disabled tracking, excluded paths and repeat views
// inside the cooldown window are silently ignored.
func (c *Client) RecordVisit(url string, opts ...VisitOption) {
	var params visitParams
	for _, opt := range opts {
		opt(&params)
	}
	current := c.env.CurrentURL()
	if url == "" {
		url = current
	}
	if url == "" {
		return
	}
	// Relative URLs are keyed, and compared for referrers, as the absolute
	// URL of the page they name.
	url = utils.ResolveURL(url, current)

	c.mu.Lock()
	if !c.session.Enabled || c.closed {
		c.mu.Unlock()
		return
	}
	now := c.clock.Now()
	if decision := c.policy.Admit(c.session.Ledger, url, now); decision != dedup.Accepted {
		c.mu.Unlock()
		c.logger.Debug("Visit not recorded", "url", url, "reason", decision.String())
		return
	}
	sessionID, userID := c.session.ID, c.session.UserID
	c.mu.Unlock()

	title := params.title
	if title == "" {
		title = c.env.Title()
	}
	previous := c.env.PreviousURL()
	if params.hasRef {
		previous = params.referrer
	}
	userAgent := c.env.UserAgent()
	info := probe.Parse(userAgent)

	c.visits.Push(&models.VisitRecord{
		EventID:    utils.NewEventID(),
		URL:        url,
		Referrer:   probe.ExternalReferrer(url, previous),
		UserAgent:  userAgent,
		Timestamp:  now,
		SessionID:  sessionID,
		UserID:     userID,
		DeviceType: info.Device,
		Browser:    info.Browser,
		OS:         info.OS,
		PageTitle:  title,
	})
}

// RecordEvent records a named interaction on the current page. Every call is
// kept; reaching the pixel high-water mark requests a dispatch pass early.
func (c *Client) RecordEvent(name string, metadata map[string]any) {
	if name == "" {
		c.logger.Debug("Pixel event without a name ignored")
		return
	}
	url := c.env.CurrentURL()

	c.mu.Lock()
	if !c.session.Enabled || c.closed {
		c.mu.Unlock()
		return
	}
	if c.policy.Excludes(url) {
		c.mu.Unlock()
		return
	}
	sessionID, userID := c.session.ID, c.session.UserID
	now := c.clock.Now()
	c.mu.Unlock()

	meta := make(map[string]any, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}

	depth := c.pixels.Push(&models.PixelEvent{
		EventID:   utils.NewEventID(),
		EventName: name,
		URL:       url,
		Referrer:  probe.ExternalReferrer(url, c.env.PreviousURL()),
		Timestamp: now,
		SessionID: sessionID,
		UserID:    userID,
		PageTitle: c.env.Title(),
		Metadata:  meta,
	})
	if depth >= c.cfg.PixelHighWater {
		c.dispatcher.Request()
	}
}

// SetUserID labels records created from now on. Queued records keep the id
// they were created with.
func (c *Client) SetUserID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.UserID = id
}

// SetUserFromToken sets the user id from a storefront access token. Expired
// or unreadable tokens leave the current id in place.
func (c *Client) SetUserFromToken(token string) {
	id, err := utils.UserIDFromToken(token, c.clock.Now())
	if err != nil {
		c.logger.Warn("Ignoring access token for tracking identity", "error", err)
		return
	}
	c.SetUserID(id)
}

// SetEnabled switches recording on or off. Records already queued are kept
// and still go out on regular passes.
func (c *Client) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.Enabled = enabled
}

// ResetSession starts a new session with an empty visit ledger and replaces
// the persisted state. The user id and enabled flag are kept.
func (c *Client) ResetSession() {
	c.mu.Lock()
	c.session.ID = utils.NewSessionID()
	c.session.Ledger = models.VisitLedger{}
	id := c.session.ID
	c.mu.Unlock()

	c.sessions.Clear()
	c.checkpoint()
	c.logger.Info("Tracking session reset", "session_id", id)
}

// Flush runs a forced dispatch pass bounded by ctx, then checkpoints the
// session. Hosts call it when the page is hidden.
func (c *Client) Flush(ctx context.Context) {
	stats := c.dispatcher.Flush(ctx)
	if !stats.Empty() {
		c.logger.Debug("Flushed tracking queues", "sent", stats.Sent, "retrying", stats.Retrying, "dropped", stats.Dropped)
	}
	c.checkpoint()
}

// Close stops the timers, flushes, checkpoints and waits, within ctx, for
// passes still in flight. The client records nothing afterwards.
func (c *Client) Close(ctx context.Context) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.scheduler.Stop()
		c.Flush(ctx)

		if err := c.dispatcher.Close(ctx); err != nil {
			c.logger.Warn("Timed out waiting for dispatch passes", "error", err)
		}
		c.logger.Info("Tracking session closed", "session_id", c.SessionID())
	})
}

func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.ID
}

func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.UserID
}

func (c *Client) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Enabled
}

// Ledger returns a copy of the visit ledger.
func (c *Client) Ledger() models.VisitLedger {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Ledger.Clone()
}

// Pending reports how many visits and pixel events are queued.
func (c *Client) Pending() (visits, pixels int) {
	return c.visits.Len(), c.pixels.Len()
}

func (c *Client) checkpoint() bool {
	c.mu.Lock()
	id := c.session.ID
	ledger := c.session.Ledger.Clone()
	c.mu.Unlock()
	return c.sessions.Save(id, ledger, c.clock.Now())
}
