package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"mabletask/tracker/probe"
	"mabletask/tracker/tracker"
)

type callLog struct {
	calls []string
}

func (l *callLog) RecordVisit(url string, opts ...tracker.VisitOption) {
	l.calls = append(l.calls, "visit "+url)
}
func (l *callLog) RecordEvent(name string, metadata map[string]any) {
	l.calls = append(l.calls, "event "+name)
}
func (l *callLog) SetUserID(id string)       { l.calls = append(l.calls, "user "+id) }
func (l *callLog) SetUserFromToken(t string) { l.calls = append(l.calls, "token "+t) }
func (l *callLog) SetEnabled(enabled bool) {
	if enabled {
		l.calls = append(l.calls, "enable")
	} else {
		l.calls = append(l.calls, "disable")
	}
}
func (l *callLog) ResetSession() { l.calls = append(l.calls, "reset") }

func TestReplay(t *testing.T) {
	script := `
# browse and buy
{"type":"visit","url":"https://shop.test/","title":"Home"}
{"type":"event","name":"scroll_depth","metadata":{"percentage":50}}
{"type":"identify","userId":"42"}
{"type":"identify","token":"abc.def.ghi"}
{"type":"wait","duration":"2s"}
{"type":"enable","enabled":false}
{"type":"enable"}

{"type":"reset"}
`
	var slept []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	log := &callLog{}
	env := probe.NewStatic("ua")
	n, err := replay(context.Background(), log, env, strings.NewReader(script), sleep)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if n != 8 {
		t.Errorf("steps = %d, want 8", n)
	}

	want := []string{
		"visit https://shop.test/",
		"event scroll_depth",
		"user 42",
		"token abc.def.ghi",
		"disable",
		"enable",
		"reset",
	}
	if strings.Join(log.calls, "|") != strings.Join(want, "|") {
		t.Errorf("calls = %v\nwant %v", log.calls, want)
	}
	if len(slept) != 1 || slept[0] != 2*time.Second {
		t.Errorf("slept = %v", slept)
	}
	if env.CurrentURL() != "https://shop.test/" || env.Title() != "Home" {
		t.Errorf("env = %q %q", env.CurrentURL(), env.Title())
	}
}

func TestReplayErrors(t *testing.T) {
	tests := []struct {
		name, script, want string
	}{
		{"bad json", `{"type":`, "line 1: invalid step"},
		{"unknown type", `{"type":"purchase"}`, `unknown step type "purchase"`},
		{"visit without url", `{"type":"visit"}`, "needs a url"},
		{"bad duration", "{\"type\":\"event\",\"name\":\"x\"}\n{\"type\":\"wait\",\"duration\":\"soon\"}", "line 2: invalid wait duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := replay(context.Background(), &callLog{}, probe.NewStatic(""), strings.NewReader(tt.script), sleepCtx)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestReplayStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	log := &callLog{}
	n, err := replay(ctx, log, probe.NewStatic(""), strings.NewReader(`{"type":"reset"}`), sleepCtx)
	if err == nil || n != 0 || len(log.calls) != 0 {
		t.Errorf("n = %d err = %v calls = %v", n, err, log.calls)
	}
}
