package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"meeting-reminder-go/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore implements Store on top of PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an existing connection; used by tests.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// RunMigrations creates tables if they don't exist and applies schema updates
func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return err
	}

	// Apply migrations for existing tables
	migrations := []string{
		`ALTER TABLE meetings ADD COLUMN IF NOT EXISTS subject TEXT;`,
		`ALTER TABLE meetings ADD COLUMN IF NOT EXISTS service_type TEXT;`,
		`ALTER TABLE push_subscriptions ADD COLUMN IF NOT EXISTS updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW();`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Meeting methods

func (s *PostgresStore) GetScheduledMeetings(ctx context.Context, date string) ([]models.Meeting, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company, date, start_time, COALESCE(end_time, ''), COALESCE(service_type, ''), COALESCE(subject, ''), status
		 FROM meetings
		 WHERE date = $1 AND status = $2`,
		date, models.StatusScheduled,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meetings []models.Meeting
	for rows.Next() {
		var m models.Meeting
		if err := rows.Scan(&m.ID, &m.CompanyName, &m.Date, &m.StartTime, &m.EndTime, &m.ServiceType, &m.Subject, &m.Status); err != nil {
			continue
		}
		meetings = append(meetings, m)
	}

	return meetings, rows.Err()
}

// Push subscription methods

func (s *PostgresStore) GetPushSubscriptions(ctx context.Context) ([]models.PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT endpoint, keys_p256dh, keys_auth, updated_at FROM push_subscriptions`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.PushSubscription
	for rows.Next() {
		var sub models.PushSubscription
		if err := rows.Scan(&sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.UpdatedAt); err != nil {
			continue
		}
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

func (s *PostgresStore) HasPushSubscription(ctx context.Context, endpoint string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM push_subscriptions WHERE endpoint = $1)`,
		endpoint,
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return exists, err
}

func (s *PostgresStore) SavePushSubscription(ctx context.Context, sub models.PushSubscription) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO push_subscriptions (endpoint, keys_p256dh, keys_auth, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (endpoint) DO UPDATE
		 SET keys_p256dh = EXCLUDED.keys_p256dh, keys_auth = EXCLUDED.keys_auth, updated_at = NOW()`,
		sub.Endpoint, sub.P256dh, sub.Auth,
	)
	return err
}

func (s *PostgresStore) DeletePushSubscription(ctx context.Context, endpoint string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE endpoint = $1`, endpoint)
	return err
}

// Notification log methods

func (s *PostgresStore) GetSentReminders(ctx context.Context, meetingIDs []string) ([]models.NotificationLogEntry, error) {
	if len(meetingIDs) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT meeting_id, reminder_type FROM notification_log WHERE meeting_id = ANY($1)`,
		pq.Array(meetingIDs),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.NotificationLogEntry
	for rows.Next() {
		var e models.NotificationLogEntry
		if err := rows.Scan(&e.MeetingID, &e.ReminderType); err != nil {
			continue
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (s *PostgresStore) ClaimReminder(ctx context.Context, entry models.NotificationLogEntry) (bool, error) {
	// The unique constraint enforces at-most-once even when scheduler
	// invocations overlap; a conflicting upsert means another invocation
	// already handled this pair.
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_log (meeting_id, reminder_type)
		 VALUES ($1, $2)
		 ON CONFLICT (meeting_id, reminder_type) DO NOTHING`,
		entry.MeetingID, entry.ReminderType,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
