package tracker

import (
	"context"
	"net/http"
	"testing"
	"time"

	"mabletask/tracker/clock"
	"mabletask/tracker/collectortest"
	"mabletask/tracker/probe"
	"mabletask/tracker/transport"
)

func TestDeliveryToCollector(t *testing.T) {
	col := collectortest.New("storefront-key")
	defer col.Close()

	cfg := quietConfig()
	cfg.Endpoint = col.URL()
	cfg.APIKey = "storefront-key"

	clk := clock.NewFake(start)
	env := probe.NewStatic("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")
	c := New(cfg, transport.NewHTTPTransport(cfg.Endpoint, cfg.APIKey, nil),
		WithClock(clk),
		WithEnvironment(env),
		WithLogger(quietLogger()),
	)
	defer c.Close(context.Background())

	env.Navigate("https://shop.test/p/soap-42", "Lavender Soap")
	c.SetUserID("42")
	c.RecordVisit("")
	c.RecordEvent("file_download", map[string]any{"file": "care-guide.pdf"})

	// The first visit delivery fails and is retried after the backoff.
	col.FailNext(1, http.StatusServiceUnavailable)
	c.Flush(context.Background())

	if got := len(col.Pixels()); got != 1 {
		t.Fatalf("pixels = %d, want 1", got)
	}
	if got := len(col.Visits()); got != 0 {
		t.Fatalf("visits = %d, want 0 before retry", got)
	}

	clk.Advance(time.Second)
	c.dispatcher.Wait()

	visits := col.Visits()
	if len(visits) != 1 {
		t.Fatalf("visits = %d, want 1 after retry", len(visits))
	}
	v := visits[0]
	if v.RetryCount != 1 || v.LastRetryAt == nil {
		t.Errorf("retry fields = %d %v", v.RetryCount, v.LastRetryAt)
	}
	if v.SessionID != c.SessionID() || v.UserID != "42" || v.PageTitle != "Lavender Soap" {
		t.Errorf("visit = %+v", v)
	}
	if col.Requests(collectortest.KindVisit) != 2 {
		t.Errorf("visit requests = %d, want 2", col.Requests(collectortest.KindVisit))
	}

	p := col.Pixels()[0]
	if p.EventName != "file_download" || p.Metadata["file"] != "care-guide.pdf" {
		t.Errorf("pixel = %+v", p)
	}
}
