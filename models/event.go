// tracker/models/event.go
package models

import (
	"time"
)

// DeviceClass is the coarse form factor reported with every visit.
type DeviceClass string

const (
	DeviceDesktop DeviceClass = "desktop"
	DeviceMobile  DeviceClass = "mobile"
	DeviceTablet  DeviceClass = "tablet"
)

// VisitRecord represents one page view.
type VisitRecord struct {
	EventID     string      `json:"eventId"`
	URL         string      `json:"url"`
	Referrer    string      `json:"referrer,omitempty"` // external referrers only
	UserAgent   string      `json:"userAgent"`
	Timestamp   time.Time   `json:"timestamp"`
	SessionID   string      `json:"sessionId"`
	UserID      string      `json:"userId,omitempty"`
	DeviceType  DeviceClass `json:"deviceType"`
	Browser     string      `json:"browser"`
	OS          string      `json:"os"`
	PageTitle   string      `json:"pageTitle"`
	RetryCount  int         `json:"retryCount"`
	LastRetryAt *time.Time  `json:"lastRetryAt,omitempty"`
}

// PixelEvent represents one named interaction, e.g. "scroll_depth" or "file_download".
type PixelEvent struct {
	EventID     string         `json:"eventId"`
	EventName   string         `json:"eventName"`
	URL         string         `json:"url"`
	Referrer    string         `json:"referrer,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	SessionID   string         `json:"sessionId"`
	UserID      string         `json:"userId,omitempty"`
	PageTitle   string         `json:"pageTitle"`
	Metadata    map[string]any `json:"metadata"`
	RetryCount  int            `json:"retryCount"`
	LastRetryAt *time.Time     `json:"lastRetryAt,omitempty"`
}

// MarkRetry bumps the retry counter and stamps the attempt time.
func (v *VisitRecord) MarkRetry(at time.Time) int {
	prev := v.RetryCount
	v.RetryCount++
	v.LastRetryAt = &at
	return prev
}

func (p *PixelEvent) MarkRetry(at time.Time) int {
	prev := p.RetryCount
	p.RetryCount++
	p.LastRetryAt = &at
	return prev
}
