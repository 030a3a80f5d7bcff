package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meeting-reminder-go/internal/models"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStoreFromDB(db), mock
}

func TestGetScheduledMeetings(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "company", "date", "start_time", "end_time", "service_type", "subject", "status"}).
		AddRow("m1", "Acme Telecom", "2026-08-29", "14:00", "", "SMS", "Q3 rates", "scheduled").
		AddRow("m2", "Globex", "2026-08-29", "16:30", "17:00", "", "", "scheduled")

	mock.ExpectQuery(`SELECT id, company, date, start_time`).
		WithArgs("2026-08-29", models.StatusScheduled).
		WillReturnRows(rows)

	meetings, err := s.GetScheduledMeetings(context.Background(), "2026-08-29")
	require.NoError(t, err)
	require.Len(t, meetings, 2)
	assert.Equal(t, "Acme Telecom", meetings[0].CompanyName)
	assert.Equal(t, "Q3 rates", meetings[0].Subject)
	assert.Equal(t, "16:30", meetings[1].StartTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePushSubscriptionUpserts(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO push_subscriptions .+ ON CONFLICT \(endpoint\) DO UPDATE`).
		WithArgs("https://push.example/ep1", "pubkey", "authsecret").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.SavePushSubscription(context.Background(), models.PushSubscription{
		Endpoint: "https://push.example/ep1",
		P256dh:   "pubkey",
		Auth:     "authsecret",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasPushSubscription(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("https://push.example/ep1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := s.HasPushSubscription(context.Background(), "https://push.example/ep1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPushSubscriptions(t *testing.T) {
	s, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery(`SELECT endpoint, keys_p256dh, keys_auth, updated_at FROM push_subscriptions`).
		WillReturnRows(sqlmock.NewRows([]string{"endpoint", "keys_p256dh", "keys_auth", "updated_at"}).
			AddRow("https://push.example/ep1", "k1", "a1", now))

	subs, err := s.GetPushSubscriptions(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "https://push.example/ep1", subs[0].Endpoint)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePushSubscription(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM push_subscriptions WHERE endpoint`).
		WithArgs("https://push.example/gone").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.DeletePushSubscription(context.Background(), "https://push.example/gone"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSentReminders(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT meeting_id, reminder_type FROM notification_log`).
		WithArgs(pq.Array([]string{"m1", "m2"})).
		WillReturnRows(sqlmock.NewRows([]string{"meeting_id", "reminder_type"}).
			AddRow("m1", "15min"))

	entries, err := s.GetSentReminders(context.Background(), []string{"m1", "m2"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.Bucket15Min, entries[0].ReminderType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSentRemindersEmptyInput(t *testing.T) {
	s, _ := newMockStore(t)

	entries, err := s.GetSentReminders(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestClaimReminder(t *testing.T) {
	t.Run("claimed", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec(`INSERT INTO notification_log .+ ON CONFLICT \(meeting_id, reminder_type\) DO NOTHING`).
			WithArgs("m1", models.Bucket5Min).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := s.ClaimReminder(context.Background(), models.NotificationLogEntry{MeetingID: "m1", ReminderType: models.Bucket5Min})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already claimed by another invocation", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec(`INSERT INTO notification_log`).
			WithArgs("m1", models.Bucket5Min).
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := s.ClaimReminder(context.Background(), models.NotificationLogEntry{MeetingID: "m1", ReminderType: models.Bucket5Min})
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
