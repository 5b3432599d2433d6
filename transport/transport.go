// Package transport delivers single records to the collection endpoint.
package transport

import (
	"context"
	"fmt"

	"mabletask/tracker/models"
)

// Transport sends one record per call. A nil error means the collector
// acknowledged receipt; any error is a delivery failure the dispatcher may retry.
type Transport interface {
	SendVisit(ctx context.Context, visit *models.VisitRecord) error
	SendPixel(ctx context.Context, pixel *models.PixelEvent) error
}

// StatusError reports a non-2xx response from the collector.
type StatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("collector %s responded with status %d", e.Endpoint, e.StatusCode)
}

// Func adapts a pair of functions to Transport.
type Func struct {
	Visit func(ctx context.Context, visit *models.VisitRecord) error
	Pixel func(ctx context.Context, pixel *models.PixelEvent) error
}

func (f Func) SendVisit(ctx context.Context, visit *models.VisitRecord) error {
	if f.Visit == nil {
		return nil
	}
	return f.Visit(ctx, visit)
}

func (f Func) SendPixel(ctx context.Context, pixel *models.PixelEvent) error {
	if f.Pixel == nil {
		return nil
	}
	return f.Pixel(ctx, pixel)
}
