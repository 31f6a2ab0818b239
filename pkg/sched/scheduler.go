package sched

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock firing time in the scheduler's zone.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimes parses a comma-separated list of HH:MM values.
func ParseTimes(s string) ([]TimeOfDay, error) {
	parts := strings.Split(s, ",")
	times := make([]TimeOfDay, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		hh, mm, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("invalid time of day %q: want HH:MM", part)
		}
		hour, err := strconv.Atoi(hh)
		if err != nil || hour < 0 || hour > 23 {
			return nil, fmt.Errorf("invalid hour in %q", part)
		}
		minute, err := strconv.Atoi(mm)
		if err != nil || minute < 0 || minute > 59 {
			return nil, fmt.Errorf("invalid minute in %q", part)
		}
		times = append(times, TimeOfDay{Hour: hour, Minute: minute})
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("no report times configured")
	}
	return times, nil
}

type Job func(now time.Time)

// Scheduler fires a job at fixed wall-clock times each day. It runs on
// timers only, so it keeps firing while the feed is down or
// reconnecting. A fire time the process slept through is skipped, never
// replayed.
type Scheduler struct {
	times []TimeOfDay
	loc   *time.Location
	job   Job
	now   func() time.Time
}

func New(times []TimeOfDay, loc *time.Location, job Job) *Scheduler {
	return &Scheduler{
		times: times,
		loc:   loc,
		job:   job,
		now:   time.Now,
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	for {
		now := s.now().In(s.loc)
		next := s.nextFire(now)
		slog.Info("scheduler", "nextReport", next.Format("2006-01-02 15:04 MST"))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.job(s.now().In(s.loc))
		}
	}
}

// nextFire returns the earliest configured instant strictly after now.
func (s *Scheduler) nextFire(now time.Time) time.Time {
	var next time.Time
	for _, t := range s.times {
		candidate := time.Date(now.Year(), now.Month(), now.Day(), t.Hour, t.Minute, 0, 0, s.loc)
		if !candidate.After(now) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		if next.IsZero() || candidate.Before(next) {
			next = candidate
		}
	}
	return next
}

// Heartbeat logs a liveness line on a fixed interval until ctx is done.
func Heartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			slog.Info("heartbeat", "status", "service is running")
		}
	}
}
