package tracker

import (
	"log/slog"

	"mabletask/tracker/clock"
	"mabletask/tracker/probe"
	"mabletask/tracker/store"
)

type Option func(*Client)

// WithEnvironment supplies page and user-agent information. Defaults to an
// empty probe.Static.
func WithEnvironment(env probe.Environment) Option {
	return func(c *Client) { c.env = env }
}

// WithStorage supplies session-scoped storage. Defaults to MemoryStorage.
func WithStorage(s store.Storage) Option {
	return func(c *Client) { c.storage = s }
}

func WithClock(clk clock.Clock) Option {
	return func(c *Client) { c.clock = clk }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

type visitParams struct {
	title    string
	referrer string
	hasRef   bool
}

type VisitOption func(*visitParams)

// WithTitle overrides the page title otherwise read from the environment.
func WithTitle(title string) VisitOption {
	return func(p *visitParams) { p.title = title }
}

// WithReferrer overrides the referring URL otherwise read from the
// environment. It is still reported only when it is on another host.
func WithReferrer(ref string) VisitOption {
	return func(p *visitParams) {
		p.referrer = ref
		p.hasRef = true
	}
}
