// Package scheduler runs the tracker's recurring jobs on a clock.Clock.
package scheduler

import (
	"log/slog"
	"sync"
	"time"

	"mabletask/tracker/clock"
)

type Scheduler struct {
	clock  clock.Clock
	logger *slog.Logger

	mu      sync.Mutex
	jobs    map[string]*job
	stopped bool
}

type job struct {
	name     string
	interval time.Duration
	fn       func()
	timer    clock.Timer
}

func New(clk clock.Clock, logger *slog.Logger) *Scheduler {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		clock:  clk,
		logger: logger.With("component", "scheduler"),
		jobs:   make(map[string]*job),
	}
}

// Every runs fn each interval, first one interval from now. Registering a
// name again replaces the earlier job. A panicking job is logged and keeps
// its schedule.
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) {
	if interval <= 0 {
		s.logger.Warn("Ignoring job with non-positive interval", "job", name, "interval", interval)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if old, ok := s.jobs[name]; ok {
		old.timer.Stop()
	}
	j := &job{name: name, interval: interval, fn: fn}
	s.jobs[name] = j
	s.armLocked(j)
}

func (s *Scheduler) armLocked(j *job) {
	j.timer = s.clock.AfterFunc(j.interval, func() { s.fire(j) })
}

func (s *Scheduler) fire(j *job) {
	s.mu.Lock()
	if s.stopped || s.jobs[j.name] != j {
		s.mu.Unlock()
		return
	}
	s.armLocked(j)
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Scheduled job panicked", "job", j.name, "panic", r)
		}
	}()
	j.fn()
}

// Stop cancels every job. Jobs already running finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for name, j := range s.jobs {
		j.timer.Stop()
		delete(s.jobs, name)
	}
}

// Jobs lists the names of scheduled jobs.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}
