package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"meeting-reminder-go/internal/logger"
	"meeting-reminder-go/internal/metrics"
	"meeting-reminder-go/internal/models"
	"meeting-reminder-go/internal/push"
	"meeting-reminder-go/internal/scheduler"
	"meeting-reminder-go/internal/store"
)

// Dispatcher turns scheduler candidates into at-most-once push broadcasts.
// The notification log is the authority for deduplication: each (meeting,
// bucket) pair is claimed there before any send attempt, so a crash after the
// claim loses the reminder rather than repeating it.
type Dispatcher struct {
	store  store.Store
	cache  *store.SentCache // optional; nil disables the Redis shadow
	sender push.Sender
	log    logger.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

func New(st store.Store, cache *store.SentCache, sender push.Sender, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		store:  st,
		cache:  cache,
		sender: sender,
		log:    log,
		seen:   make(map[string]struct{}),
	}
}

// Dispatch claims and delivers every candidate that has not been handled yet.
// Send failures never fail the cycle; only store errors do.
func (d *Dispatcher) Dispatch(ctx context.Context, due []scheduler.Candidate) error {
	start := time.Now()
	defer func() {
		metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	}()

	log := d.log.WithFields(map[string]interface{}{"cycle": uuid.NewString()})

	pending, err := d.filterPending(ctx, due)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	subs, err := d.store.GetPushSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("load subscriptions: %w", err)
	}
	if len(subs) == 0 {
		// Nothing to deliver to. Leave the pairs unclaimed so a subscriber
		// arriving within the window still gets the reminder.
		log.Debug("no push subscriptions, skipping dispatch", map[string]interface{}{
			"pending": len(pending),
		})
		return nil
	}

	for _, cand := range pending {
		entry := models.NotificationLogEntry{
			MeetingID:    cand.Meeting.ID,
			ReminderType: cand.Bucket,
		}

		claimed, err := d.store.ClaimReminder(ctx, entry)
		if err != nil {
			return fmt.Errorf("claim reminder %s: %w", entry.Key(), err)
		}
		d.markSeen(ctx, entry.Key())
		if !claimed {
			log.Debug("reminder already claimed elsewhere", map[string]interface{}{
				"meeting_id": entry.MeetingID,
				"bucket":     string(entry.ReminderType),
			})
			continue
		}
		metrics.RemindersClaimed.WithLabelValues(string(cand.Bucket)).Inc()

		body, err := json.Marshal(buildPayload(cand))
		if err != nil {
			return fmt.Errorf("encode payload for %s: %w", entry.Key(), err)
		}

		log.Info("dispatching reminder", map[string]interface{}{
			"meeting_id": cand.Meeting.ID,
			"company":    cand.Meeting.CompanyName,
			"bucket":     string(cand.Bucket),
			"recipients": len(subs),
		})
		d.fanOut(ctx, log, cand.Bucket, subs, body)
	}
	return nil
}

// filterPending drops candidates already handled, consulting the per-process
// set, then the Redis shadow, then the notification log itself.
func (d *Dispatcher) filterPending(ctx context.Context, due []scheduler.Candidate) ([]scheduler.Candidate, error) {
	var candidates []scheduler.Candidate
	ids := make([]string, 0, len(due))
	for _, cand := range due {
		key := models.NotificationLogEntry{MeetingID: cand.Meeting.ID, ReminderType: cand.Bucket}.Key()
		if d.seenLocally(key) {
			continue
		}
		if d.cache != nil {
			hit, err := d.cache.Seen(ctx, key)
			if err != nil {
				d.log.WithError(err).Warn("sent cache lookup failed, falling back to log", nil)
			} else if hit {
				d.rememberLocally(key)
				continue
			}
		}
		candidates = append(candidates, cand)
		ids = append(ids, cand.Meeting.ID)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sent, err := d.store.GetSentReminders(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load sent reminders: %w", err)
	}
	done := make(map[string]struct{}, len(sent))
	for _, e := range sent {
		done[e.Key()] = struct{}{}
	}

	pending := candidates[:0]
	for _, cand := range candidates {
		key := models.NotificationLogEntry{MeetingID: cand.Meeting.ID, ReminderType: cand.Bucket}.Key()
		if _, ok := done[key]; ok {
			d.markSeen(ctx, key)
			continue
		}
		pending = append(pending, cand)
	}
	return pending, nil
}

// fanOut broadcasts one encrypted payload to every subscription concurrently.
// A failed or expired endpoint never blocks the rest of the batch.
func (d *Dispatcher) fanOut(ctx context.Context, log logger.Logger, bucket models.ReminderBucket, subs []models.PushSubscription, body []byte) {
	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(sub models.PushSubscription) {
			defer wg.Done()

			status, err := d.sender.Send(ctx, sub, body)
			switch {
			case err != nil:
				metrics.PushSendFailures.WithLabelValues("network").Inc()
				log.WithError(err).Warn("push send failed", map[string]interface{}{
					"endpoint": sub.Endpoint,
				})
			case status == http.StatusGone:
				if err := d.store.DeletePushSubscription(ctx, sub.Endpoint); err != nil {
					log.WithError(err).Warn("failed to prune expired subscription", map[string]interface{}{
						"endpoint": sub.Endpoint,
					})
					return
				}
				metrics.SubscriptionsPruned.Inc()
				log.Info("pruned expired subscription", map[string]interface{}{
					"endpoint": sub.Endpoint,
				})
			case status >= 200 && status < 300:
				metrics.RemindersSent.WithLabelValues(string(bucket)).Inc()
			default:
				metrics.PushSendFailures.WithLabelValues(strconv.Itoa(status)).Inc()
				log.Warn("push service rejected message", map[string]interface{}{
					"endpoint": sub.Endpoint,
					"status":   status,
				})
			}
		}(sub)
	}
	wg.Wait()
}

func (d *Dispatcher) seenLocally(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[key]
	return ok
}

func (d *Dispatcher) rememberLocally(key string) {
	d.mu.Lock()
	d.seen[key] = struct{}{}
	d.mu.Unlock()
}

// markSeen records the key in the per-process set and, best effort, in Redis.
func (d *Dispatcher) markSeen(ctx context.Context, key string) {
	d.rememberLocally(key)
	if d.cache != nil {
		if err := d.cache.Mark(ctx, key); err != nil {
			d.log.WithError(err).Warn("sent cache write failed", nil)
		}
	}
}

func buildPayload(cand scheduler.Candidate) models.NotificationPayload {
	var title, body string
	switch {
	case cand.MinutesUntil <= 0:
		title = "Meeting Starting Now!"
		body = fmt.Sprintf("Meeting with %s is starting now!", cand.Meeting.CompanyName)
	case cand.MinutesUntil <= 5:
		title = fmt.Sprintf("Meeting in %d min", cand.MinutesUntil)
		body = fmt.Sprintf("Meeting with %s starts in %d minutes!", cand.Meeting.CompanyName, cand.MinutesUntil)
	default:
		title = "Upcoming Meeting"
		body = fmt.Sprintf("Meeting with %s in %d minutes", cand.Meeting.CompanyName, cand.MinutesUntil)
	}
	if cand.Meeting.Subject != "" {
		body += " - " + cand.Meeting.Subject
	}

	return models.NotificationPayload{
		Title:     title,
		Body:      body,
		Tag:       fmt.Sprintf("meeting_%s_%s", cand.Meeting.ID, cand.Bucket),
		MeetingID: cand.Meeting.ID,
		Urgent:    cand.Urgent,
	}
}
