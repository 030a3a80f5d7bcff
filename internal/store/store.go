package store

import (
	"context"

	"meeting-reminder-go/internal/models"
)

// MeetingStore is the read-only view of scheduled meetings consumed by the
// reminder scheduler.
type MeetingStore interface {
	GetScheduledMeetings(ctx context.Context, date string) ([]models.Meeting, error)
}

// SubscriptionStore owns push subscription records, unique per endpoint.
type SubscriptionStore interface {
	GetPushSubscriptions(ctx context.Context) ([]models.PushSubscription, error)
	HasPushSubscription(ctx context.Context, endpoint string) (bool, error)
	SavePushSubscription(ctx context.Context, sub models.PushSubscription) error
	DeletePushSubscription(ctx context.Context, endpoint string) error
}

// NotificationLogStore is the write-ahead sent log. Entries are created
// before the send attempt and never updated, which bounds every
// (meeting, bucket) pair to at most one delivery.
type NotificationLogStore interface {
	GetSentReminders(ctx context.Context, meetingIDs []string) ([]models.NotificationLogEntry, error)
	// ClaimReminder records the pair ahead of delivery. It reports false when
	// another invocation already holds the claim; the caller must then skip
	// the send instead of treating it as an error.
	ClaimReminder(ctx context.Context, entry models.NotificationLogEntry) (bool, error)
}

// Store bundles everything the reminder pipeline needs from the record store.
type Store interface {
	MeetingStore
	SubscriptionStore
	NotificationLogStore
}
