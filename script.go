package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"mabletask/tracker/probe"
	"mabletask/tracker/tracker"
)

// recorder is the part of tracker.Client a script drives.
type recorder interface {
	RecordVisit(url string, opts ...tracker.VisitOption)
	RecordEvent(name string, metadata map[string]any)
	SetUserID(id string)
	SetUserFromToken(token string)
	SetEnabled(enabled bool)
	ResetSession()
}

// step is one line of a navigation script.
type step struct {
	Type     string         `json:"type"`
	URL      string         `json:"url"`
	Title    string         `json:"title"`
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata"`
	UserID   string         `json:"userId"`
	Token    string         `json:"token"`
	Enabled  *bool          `json:"enabled"`
	Duration string         `json:"duration"`
}

type sleeper func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// replay runs every step in r against rec, keeping env in step with visits.
// Blank lines and lines starting with # are skipped. It returns the number of
// steps run.
func replay(ctx context.Context, rec recorder, env *probe.Static, r io.Reader, sleep sleeper) (int, error) {
	scanner := bufio.NewScanner(r)
	line, ran := 0, 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return ran, err
		}

		var s step
		if err := json.Unmarshal([]byte(text), &s); err != nil {
			return ran, fmt.Errorf("line %d: invalid step: %w", line, err)
		}
		if err := run(ctx, rec, env, s, sleep); err != nil {
			return ran, fmt.Errorf("line %d: %w", line, err)
		}
		ran++
	}
	if err := scanner.Err(); err != nil {
		return ran, fmt.Errorf("error reading script: %w", err)
	}
	return ran, nil
}

func run(ctx context.Context, rec recorder, env *probe.Static, s step, sleep sleeper) error {
	switch s.Type {
	case "visit":
		if s.URL == "" {
			return fmt.Errorf("visit step needs a url")
		}
		env.Navigate(s.URL, s.Title)
		rec.RecordVisit(s.URL, tracker.WithTitle(s.Title))
	case "event":
		if s.Name == "" {
			return fmt.Errorf("event step needs a name")
		}
		rec.RecordEvent(s.Name, s.Metadata)
	case "identify":
		if s.Token != "" {
			rec.SetUserFromToken(s.Token)
		} else {
			rec.SetUserID(s.UserID)
		}
	case "enable":
		enabled := true
		if s.Enabled != nil {
			enabled = *s.Enabled
		}
		rec.SetEnabled(enabled)
	case "reset":
		rec.ResetSession()
	case "wait":
		d, err := time.ParseDuration(s.Duration)
		if err != nil {
			return fmt.Errorf("invalid wait duration: %w", err)
		}
		return sleep(ctx, d)
	default:
		return fmt.Errorf("unknown step type %q", s.Type)
	}
	return nil
}
