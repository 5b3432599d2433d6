package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"mabletask/tracker/models"
)

const (
	VisitPath = "/api/track/visit"
	PixelPath = "/api/track/pixel"
)

// HTTPTransport posts each record as one JSON object to the collector.
type HTTPTransport struct {
	visitURL string
	pixelURL string
	apiKey   string
	client   *http.Client
}

// NewHTTPTransport targets the collector at baseURL. Per-attempt timeouts come
// from the caller's context; client may be nil.
func NewHTTPTransport(baseURL, apiKey string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	base := strings.TrimRight(baseURL, "/")
	return &HTTPTransport{
		visitURL: base + VisitPath,
		pixelURL: base + PixelPath,
		apiKey:   apiKey,
		client:   client,
	}
}

func (t *HTTPTransport) SendVisit(ctx context.Context, visit *models.VisitRecord) error {
	return t.post(ctx, t.visitURL, visit)
}

func (t *HTTPTransport) SendPixel(ctx context.Context, pixel *models.PixelEvent) error {
	return t.post(ctx, t.pixelURL, pixel)
}

func (t *HTTPTransport) post(ctx context.Context, endpoint string, record any) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("X-API-KEY", t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach collector: %w", err)
	}
	defer resp.Body.Close()
	// response bodies are never inspected; drain so the connection is reused
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}
	return nil
}
