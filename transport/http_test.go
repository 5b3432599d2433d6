package transport_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"mabletask/tracker/collectortest"
	"mabletask/tracker/models"
	"mabletask/tracker/transport"
)

func sampleVisit() *models.VisitRecord {
	return &models.VisitRecord{
		EventID:    "01HZX3Q7N8TQ5R2V4W6Y8A0C2E",
		URL:        "https://shop.example.com/products/42",
		UserAgent:  "test-agent",
		Timestamp:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		SessionID:  "session-1",
		DeviceType: models.DeviceDesktop,
		Browser:    "Chrome",
		OS:         "Windows",
		PageTitle:  "Product 42",
	}
}

func samplePixel() *models.PixelEvent {
	return &models.PixelEvent{
		EventID:   "01HZX3Q7N8TQ5R2V4W6Y8A0C2F",
		EventName: "scroll_depth",
		URL:       "https://shop.example.com/products/42",
		Timestamp: time.Date(2024, 5, 1, 12, 0, 1, 0, time.UTC),
		SessionID: "session-1",
		Metadata:  map[string]any{"depth": 50},
	}
}

func TestHTTPTransportDelivers(t *testing.T) {
	col := collectortest.New("secret")
	defer col.Close()

	tr := transport.NewHTTPTransport(col.URL()+"/", "secret", nil)
	ctx := context.Background()

	if err := tr.SendVisit(ctx, sampleVisit()); err != nil {
		t.Fatalf("SendVisit: %v", err)
	}
	if err := tr.SendPixel(ctx, samplePixel()); err != nil {
		t.Fatalf("SendPixel: %v", err)
	}

	visits := col.Visits()
	if len(visits) != 1 || visits[0].URL != "https://shop.example.com/products/42" || visits[0].PageTitle != "Product 42" {
		t.Fatalf("collector visits = %+v", visits)
	}
	pixels := col.Pixels()
	if len(pixels) != 1 || pixels[0].EventName != "scroll_depth" {
		t.Fatalf("collector pixels = %+v", pixels)
	}
	if depth, _ := pixels[0].Metadata["depth"].(float64); depth != 50 {
		t.Errorf("metadata depth = %v, want 50", pixels[0].Metadata["depth"])
	}
}

func TestHTTPTransportStatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"server error", http.StatusInternalServerError},
		{"unavailable", http.StatusServiceUnavailable},
		{"too many requests", http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col := collectortest.New("")
			defer col.Close()
			col.FailAll(tt.status)

			tr := transport.NewHTTPTransport(col.URL(), "", nil)
			err := tr.SendVisit(context.Background(), sampleVisit())

			var statusErr *transport.StatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("err = %v, want *StatusError", err)
			}
			if statusErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, tt.status)
			}
			if len(col.Visits()) != 0 {
				t.Error("failed request should not be stored")
			}
		})
	}
}

func TestHTTPTransportRejectsWrongKey(t *testing.T) {
	col := collectortest.New("secret")
	defer col.Close()

	tr := transport.NewHTTPTransport(col.URL(), "wrong", nil)
	err := tr.SendPixel(context.Background(), samplePixel())

	var statusErr *transport.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err = %v, want 401 StatusError", err)
	}
	if col.Requests(collectortest.KindPixel) != 0 {
		t.Error("unauthorized request reached the handler")
	}
}

func TestHTTPTransportTimeout(t *testing.T) {
	col := collectortest.New("")
	defer col.Close()
	col.Stall(time.Second)

	tr := transport.NewHTTPTransport(col.URL(), "", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := tr.SendVisit(ctx, sampleVisit())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestHTTPTransportUnreachable(t *testing.T) {
	col := collectortest.New("")
	url := col.URL()
	col.Close()

	tr := transport.NewHTTPTransport(url, "", nil)
	if err := tr.SendVisit(context.Background(), sampleVisit()); err == nil {
		t.Fatal("expected error for closed collector")
	}
}

func TestCollectorIgnoresRedelivery(t *testing.T) {
	col := collectortest.New("")
	defer col.Close()

	tr := transport.NewHTTPTransport(col.URL(), "", nil)
	visit := sampleVisit()
	for i := 0; i < 2; i++ {
		if err := tr.SendVisit(context.Background(), visit); err != nil {
			t.Fatalf("SendVisit #%d: %v", i, err)
		}
	}
	if got := len(col.Visits()); got != 1 {
		t.Errorf("stored visits = %d, want 1", got)
	}
	if got := col.Requests(collectortest.KindVisit); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
}

func TestCollectorRejectsMissingFields(t *testing.T) {
	col := collectortest.New("")
	defer col.Close()

	tr := transport.NewHTTPTransport(col.URL(), "", nil)
	pixel := samplePixel()
	pixel.EventName = ""

	var statusErr *transport.StatusError
	err := tr.SendPixel(context.Background(), pixel)
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400 StatusError", err)
	}
}
