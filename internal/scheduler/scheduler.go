// Package scheduler computes which meetings are due a reminder. It keeps no
// per-meeting state: every tick re-derives the reminder bucket from the wall
// clock, and delivery dedup happens downstream against the notification log.
package scheduler

import (
	"context"
	"math"
	"time"

	"meeting-reminder-go/internal/logger"
	"meeting-reminder-go/internal/models"
	"meeting-reminder-go/internal/store"
)

// Candidate is one (meeting, bucket) match produced by a tick.
type Candidate struct {
	Meeting      models.Meeting
	Bucket       models.ReminderBucket
	MinutesUntil int
	Urgent       bool
}

// Dispatcher consumes the candidates of a tick. Implementations must
// deduplicate: candidates repeat across ticks while a window is open.
type Dispatcher interface {
	Dispatch(ctx context.Context, due []Candidate) error
}

// Scheduler classifies meetings into reminder buckets. Meeting times are wall
// clock in a single fixed UTC offset; the offset is configuration, every
// meeting in the store shares it.
type Scheduler struct {
	offset time.Duration
	now    func() time.Time
}

func New(offset time.Duration) *Scheduler {
	return &Scheduler{offset: offset, now: time.Now}
}

// Today returns the calendar day currently being scanned, in the configured
// offset.
func (s *Scheduler) Today() string {
	return s.now().UTC().Add(s.offset).Format("2006-01-02")
}

// Classify places a meeting into at most one reminder bucket relative to now.
// The windows are deliberately wider than the nominal 15/5/0 marks so that an
// irregular tick cadence cannot step over a reminder entirely.
func (s *Scheduler) Classify(m models.Meeting, now time.Time) (Candidate, bool) {
	if m.Status != models.StatusScheduled || m.StartTime == "" {
		return Candidate{}, false
	}
	start, err := s.startInstant(m)
	if err != nil {
		return Candidate{}, false
	}

	diff := start.Sub(now).Minutes()
	switch {
	case diff > 12 && diff <= 17:
		return Candidate{Meeting: m, Bucket: models.Bucket15Min, MinutesUntil: int(math.Round(diff))}, true
	case diff > 2 && diff <= 7:
		return Candidate{Meeting: m, Bucket: models.Bucket5Min, MinutesUntil: int(math.Round(diff)), Urgent: true}, true
	case diff >= -2 && diff <= 2:
		return Candidate{Meeting: m, Bucket: models.BucketNow, MinutesUntil: 0, Urgent: true}, true
	}
	return Candidate{}, false
}

// Scan classifies every meeting scheduled for today.
func (s *Scheduler) Scan(meetings []models.Meeting, now time.Time) []Candidate {
	today := s.Today()
	var due []Candidate
	for _, m := range meetings {
		if m.Date != today {
			continue
		}
		if c, ok := s.Classify(m, now); ok {
			due = append(due, c)
		}
	}
	return due
}

// startInstant builds the UTC start instant from the meeting's calendar day
// and wall-clock start time, shifted by the configured offset.
func (s *Scheduler) startInstant(m models.Meeting) (time.Time, error) {
	var t time.Time
	var err error
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04"} {
		t, err = time.Parse(layout, m.Date+" "+m.StartTime)
		if err == nil {
			return t.Add(-s.offset), nil
		}
	}
	return time.Time{}, err
}

// Runner drives the scheduler on a fixed interval and hands matches to the
// dispatcher. One logical timer per process; overlapping server-side
// invocations are safe because claims go through the notification log.
type Runner struct {
	sched    *Scheduler
	meetings store.MeetingStore
	dispatch Dispatcher
	interval time.Duration
	log      logger.Logger
}

func NewRunner(sched *Scheduler, meetings store.MeetingStore, dispatch Dispatcher, interval time.Duration, log logger.Logger) *Runner {
	return &Runner{
		sched:    sched,
		meetings: meetings,
		dispatch: dispatch,
		interval: interval,
		log:      log.WithFields(map[string]interface{}{"component": "scheduler"}),
	}
}

// Run ticks until the context is cancelled. The first tick fires immediately,
// matching the client heartbeat behavior.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	if err := r.Tick(ctx); err != nil {
		r.log.WithError(err).Error("tick failed", nil)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Tick(ctx); err != nil {
				r.log.WithError(err).Error("tick failed", nil)
			}
		}
	}
}

// Tick performs one scan-and-dispatch cycle. It is also invoked directly by
// the manual dispatch endpoint, mirroring an externally-scheduled cron call.
func (r *Runner) Tick(ctx context.Context) error {
	now := r.sched.now().UTC()
	today := r.sched.Today()

	meetings, err := r.meetings.GetScheduledMeetings(ctx, today)
	if err != nil {
		return err
	}
	if len(meetings) == 0 {
		return nil
	}

	due := r.sched.Scan(meetings, now)
	if len(due) == 0 {
		return nil
	}

	r.log.Debug("reminder candidates", map[string]interface{}{"count": len(due)})
	return r.dispatch.Dispatch(ctx, due)
}
