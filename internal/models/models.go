package models

import "time"

// ReminderBucket identifies which reminder window a meeting currently falls in.
// A meeting matches at most one bucket per scheduler tick.
type ReminderBucket string

const (
	Bucket15Min ReminderBucket = "15min"
	Bucket5Min  ReminderBucket = "5min"
	BucketNow   ReminderBucket = "now"
)

// StatusScheduled is the only meeting status the reminder pipeline considers.
const StatusScheduled = "scheduled"

// PushSubscription is one browser push endpoint together with the subscriber's
// encryption keys, exactly as delivered by the browser's PushManager. There is
// at most one live record per endpoint.
type PushSubscription struct {
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"keys_p256dh"` // 65-byte uncompressed P-256 point, base64url
	Auth      string    `json:"keys_auth"`   // 16-byte shared secret, base64url
	UpdatedAt time.Time `json:"updated_at"`
}

// Meeting is the read-only view of a scheduled meeting consumed by the
// reminder scheduler.
type Meeting struct {
	ID          string `json:"id"`
	CompanyName string `json:"company"`
	Date        string `json:"date"`       // calendar day, YYYY-MM-DD
	StartTime   string `json:"start_time"` // local wall clock, HH:MM or HH:MM:SS
	EndTime     string `json:"end_time,omitempty"`
	ServiceType string `json:"service_type,omitempty"`
	Subject     string `json:"subject,omitempty"`
	Status      string `json:"status"`
}

// NotificationLogEntry records that a (meeting, bucket) reminder was claimed
// for delivery. Entries are written before the send attempt and never updated.
type NotificationLogEntry struct {
	MeetingID    string
	ReminderType ReminderBucket
}

// Key returns the composite dedup key for the entry.
func (e NotificationLogEntry) Key() string {
	return e.MeetingID + "_" + string(e.ReminderType)
}

// NotificationPayload is the JSON document delivered to the service worker.
type NotificationPayload struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Tag       string `json:"tag"`
	MeetingID string `json:"meetingId,omitempty"`
	URL       string `json:"url,omitempty"`
	Urgent    bool   `json:"urgent"`
}
