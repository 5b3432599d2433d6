// tracker/transport/clickhouse.go
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"mabletask/tracker/database"
	"mabletask/tracker/models"
	"mabletask/tracker/utils"
)

const PageViewEventType = "page_view"

// ClickHouseTransport writes records straight into the storefront's
// analytics_events table. It serves server-rendered hosts that sit next to the
// analytics database and have no reason to round-trip through the HTTP collector.
type ClickHouseTransport struct {
	DB *database.ClickHouseClient
}

func NewClickHouseTransport(chClient *database.ClickHouseClient) *ClickHouseTransport {
	return &ClickHouseTransport{DB: chClient}
}

// analyticsRow matches the column order of analytics_events.
type analyticsRow struct {
	EventID    string
	EventType  string
	UserID     string
	SessionID  string
	Timestamp  time.Time
	PagePath   string
	Referrer   string
	UserAgent  string
	IPAddress  string
	DurationMs int64
	Products   string
	Location   string
	EventData  string
}

func (t *ClickHouseTransport) SendVisit(ctx context.Context, visit *models.VisitRecord) error {
	data, err := json.Marshal(map[string]any{
		"pageTitle":  visit.PageTitle,
		"url":        visit.URL,
		"deviceType": visit.DeviceType,
		"browser":    visit.Browser,
		"os":         visit.OS,
	})
	if err != nil {
		return fmt.Errorf("failed to encode visit data: %w", err)
	}
	return t.insert(ctx, visitRow(visit, string(data)))
}

func (t *ClickHouseTransport) SendPixel(ctx context.Context, pixel *models.PixelEvent) error {
	metadata := pixel.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode pixel metadata: %w", err)
	}
	return t.insert(ctx, pixelRow(pixel, string(data)))
}

func visitRow(visit *models.VisitRecord, eventData string) analyticsRow {
	return analyticsRow{
		EventID:   visit.EventID,
		EventType: PageViewEventType,
		UserID:    visit.UserID,
		SessionID: visit.SessionID,
		Timestamp: visit.Timestamp,
		PagePath:  utils.PathOf(visit.URL),
		Referrer:  visit.Referrer,
		UserAgent: visit.UserAgent,
		Products:  "[]",
		EventData: eventData,
	}
}

func pixelRow(pixel *models.PixelEvent, eventData string) analyticsRow {
	return analyticsRow{
		EventID:   pixel.EventID,
		EventType: pixel.EventName,
		UserID:    pixel.UserID,
		SessionID: pixel.SessionID,
		Timestamp: pixel.Timestamp,
		PagePath:  utils.PathOf(pixel.URL),
		Referrer:  pixel.Referrer,
		Products:  "[]",
		EventData: eventData,
	}
}

func (t *ClickHouseTransport) insert(ctx context.Context, row analyticsRow) error {
	// Ensure these column names and their order exactly match the ClickHouse table schema.
	batch, err := t.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO analytics_events (
			event_id, event_type, user_id, session_id, timestamp, page_path, referrer, user_agent,
			ip_address, duration_ms, products, location, event_data
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}
	return sendRow(batch, row)
}

// sendRow appends row to a prepared batch and sends it. A failed append
// aborts the batch.
func sendRow(batch driver.Batch, row analyticsRow) error {
	err := batch.Append(
		row.EventID,
		row.EventType,
		row.UserID,
		row.SessionID,
		row.Timestamp,
		row.PagePath,
		row.Referrer,
		row.UserAgent,
		row.IPAddress,
		row.DurationMs,
		row.Products,
		row.Location,
		row.EventData,
	)
	if err != nil {
		err = fmt.Errorf("failed to append event %s: %w", row.EventID, err)
		if abortErr := batch.Abort(); abortErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to abort batch: %w", abortErr))
		}
		return err
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}
