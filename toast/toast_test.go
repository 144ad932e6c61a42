package toast_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifykit/notifykit/notification"
	"github.com/notifykit/notifykit/preferences"
	"github.com/notifykit/notifykit/toast"
)

func record(priority notification.Priority) notification.Record {
	return notification.Record{
		ID:        "n-1",
		Category:  notification.CategoryGeneral,
		Priority:  priority,
		Status:    notification.StatusSent,
		Title:     "Deploy finished",
		Body:      "build 42 is live",
		CreatedAt: time.Now(),
	}
}

func TestManagerOnNewRecord(t *testing.T) {
	t.Parallel()

	t.Run("surfaces an allowed record", func(t *testing.T) {
		t.Parallel()

		m := toast.NewManager()
		defer m.Close()

		id, ok := m.OnNewRecord(record(notification.PriorityNormal), preferences.Default())
		require.True(t, ok)

		entries := m.Entries()
		require.Len(t, entries, 1)
		assert.Equal(t, id, entries[0].ID)
		assert.Equal(t, "Deploy finished", entries[0].Title)
		assert.Equal(t, toast.KindInfo, entries[0].Kind)
		assert.False(t, entries[0].Sticky())
	})

	t.Run("filters records the preference gate rejects", func(t *testing.T) {
		t.Parallel()

		prefs := preferences.Default()
		prefs.QuietHours = preferences.QuietHours{Enabled: true, Start: "22:00", End: "07:00"}
		late := time.Date(2025, 3, 1, 23, 0, 0, 0, time.UTC)

		m := toast.NewManager(toast.WithClock(func() time.Time { return late }))
		defer m.Close()

		_, ok := m.OnNewRecord(record(notification.PriorityNormal), prefs)
		assert.False(t, ok)
		assert.Empty(t, m.Entries())

		_, ok = m.OnNewRecord(record(notification.PriorityUrgent), prefs)
		assert.True(t, ok, "urgent records cut through quiet hours")
	})

	t.Run("scales ttl by priority", func(t *testing.T) {
		t.Parallel()

		m := toast.NewManager(
			toast.WithBaseTTL(time.Second),
			toast.WithExtendedTTL(3*time.Second),
		)
		defer m.Close()

		for _, tc := range []struct {
			priority notification.Priority
			ttl      time.Duration
			kind     toast.Kind
		}{
			{notification.PriorityLow, time.Second, toast.KindInfo},
			{notification.PriorityNormal, time.Second, toast.KindInfo},
			{notification.PriorityHigh, 3 * time.Second, toast.KindWarning},
			{notification.PriorityUrgent, 0, toast.KindError},
		} {
			id, ok := m.OnNewRecord(record(tc.priority), preferences.Default())
			require.True(t, ok)
			entries := m.Entries()
			entry := entries[len(entries)-1]
			require.Equal(t, id, entry.ID)
			assert.Equal(t, tc.ttl, entry.TTL)
			assert.Equal(t, tc.kind, entry.Kind)
		}
	})

	t.Run("carries the first attached action", func(t *testing.T) {
		t.Parallel()

		m := toast.NewManager()
		defer m.Close()

		rec := record(notification.PriorityNormal)
		rec.Actions = []notification.Action{{Label: "Open", URL: "/deploys/42"}}
		_, ok := m.OnNewRecord(rec, preferences.Default())
		require.True(t, ok)

		entries := m.Entries()
		require.Len(t, entries, 1)
		require.NotNil(t, entries[0].Action)
		assert.Equal(t, "/deploys/42", entries[0].Action.URL)
	})
}

func TestManagerAutoDismiss(t *testing.T) {
	t.Parallel()

	t.Run("expired entries leave the queue", func(t *testing.T) {
		t.Parallel()

		m := toast.NewManager(
			toast.WithBaseTTL(20*time.Millisecond),
			toast.WithExitDelay(5*time.Millisecond),
		)
		defer m.Close()

		_, ok := m.OnNewRecord(record(notification.PriorityNormal), preferences.Default())
		require.True(t, ok)

		require.Eventually(t, func() bool {
			return len(m.Entries()) == 0
		}, time.Second, time.Millisecond)
	})

	t.Run("urgent entries never expire", func(t *testing.T) {
		t.Parallel()

		m := toast.NewManager(
			toast.WithBaseTTL(5*time.Millisecond),
			toast.WithExtendedTTL(10*time.Millisecond),
			toast.WithExitDelay(time.Millisecond),
		)
		defer m.Close()

		id, ok := m.OnNewRecord(record(notification.PriorityUrgent), preferences.Default())
		require.True(t, ok)

		time.Sleep(50 * time.Millisecond)
		entries := m.Entries()
		require.Len(t, entries, 1)
		assert.Equal(t, id, entries[0].ID)
		assert.True(t, entries[0].Sticky())
	})
}

func TestManagerDismiss(t *testing.T) {
	t.Parallel()

	t.Run("flags the entry before removing it", func(t *testing.T) {
		t.Parallel()

		m := toast.NewManager(toast.WithExitDelay(50 * time.Millisecond))
		defer m.Close()

		id, ok := m.Notify(toast.KindSuccess, "Saved", "")
		require.True(t, ok)

		require.True(t, m.Dismiss(id))

		entries := m.Entries()
		require.Len(t, entries, 1, "entry lingers during the exit delay")
		assert.True(t, entries[0].Exiting)

		require.Eventually(t, func() bool {
			return len(m.Entries()) == 0
		}, time.Second, time.Millisecond)
	})

	t.Run("is a no-op for unknown or already-exiting ids", func(t *testing.T) {
		t.Parallel()

		m := toast.NewManager(toast.WithExitDelay(time.Minute))
		defer m.Close()

		assert.False(t, m.Dismiss("missing"))

		id, _ := m.Notify(toast.KindInfo, "hello", "")
		require.True(t, m.Dismiss(id))
		assert.False(t, m.Dismiss(id))
	})

	t.Run("dismiss all sweeps the queue", func(t *testing.T) {
		t.Parallel()

		m := toast.NewManager(toast.WithExitDelay(time.Millisecond))
		defer m.Close()

		m.Notify(toast.KindInfo, "one", "")
		m.Notify(toast.KindInfo, "two", "")
		m.Notify(toast.KindInfo, "three", "")
		m.DismissAll()

		require.Eventually(t, func() bool {
			return len(m.Entries()) == 0
		}, time.Second, time.Millisecond)
	})
}

func TestManagerSubscribe(t *testing.T) {
	t.Parallel()

	t.Run("seeds and streams queue snapshots", func(t *testing.T) {
		t.Parallel()

		m := toast.NewManager()
		defer m.Close()

		sub := m.Subscribe(t.Context())
		defer sub.Close()

		seed := <-sub.Updates()
		assert.Empty(t, seed)

		id, ok := m.Notify(toast.KindWarning, "Live updates paused", "")
		require.True(t, ok)

		select {
		case entries := <-sub.Updates():
			require.Len(t, entries, 1)
			assert.Equal(t, id, entries[0].ID)
		case <-time.After(time.Second):
			t.Fatal("no snapshot delivered")
		}
	})

	t.Run("coalesces when the consumer lags", func(t *testing.T) {
		t.Parallel()

		m := toast.NewManager()
		defer m.Close()

		sub := m.Subscribe(t.Context())
		defer sub.Close()
		<-sub.Updates()

		for range 5 {
			_, ok := m.Notify(toast.KindInfo, "tick", "")
			require.True(t, ok)
		}

		var latest []toast.Entry
		require.Eventually(t, func() bool {
			select {
			case latest = <-sub.Updates():
			default:
			}
			return len(latest) == 5
		}, time.Second, time.Millisecond)
	})

	t.Run("close terminates subscriptions", func(t *testing.T) {
		t.Parallel()

		m := toast.NewManager()
		sub := m.Subscribe(t.Context())
		<-sub.Updates()

		m.Close()

		_, open := <-sub.Updates()
		assert.False(t, open)

		_, ok := m.Notify(toast.KindInfo, "late", "")
		assert.False(t, ok, "a closed manager rejects pushes")
	})
}
