package journal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"snipewatch/internal/tracker"
	"snipewatch/pkg/config"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("snipewatch"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := config.OpenDatabaseDSN(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = config.CloseDatabase(db) })
	return db
}

func TestToModel(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	row := toModel(tracker.Event{
		Kind:      tracker.EventRetarget,
		At:        at,
		Target:    "old",
		Recipient: "new",
		Signature: "sig",
		Slot:      7,
		Lamports:  500,
		Meta:      map[string]interface{}{"source": "transfer"},
	})

	assert.Equal(t, "retarget", row.Kind)
	assert.Equal(t, "new", row.Recipient)
	assert.Equal(t, at.UTC(), row.OccurredAt)
	assert.Equal(t, "transfer", row.Meta["source"])

	empty := toModel(tracker.Event{Kind: tracker.EventPurchase})
	assert.Nil(t, empty.Meta)
	assert.False(t, empty.OccurredAt.IsZero())
}

func TestJournal(t *testing.T) {
	db := setupTestDB(t)
	j := New(db)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	events := []tracker.Event{
		{Kind: tracker.EventLargeTransfer, At: base, Target: "A", Lamports: 500_000_000_000, Slot: 10},
		{Kind: tracker.EventRetarget, At: base.Add(time.Second), Target: "A", Recipient: "B", Meta: map[string]interface{}{"source": "transfer"}},
		{Kind: tracker.EventMintDiscovered, At: base.Add(2 * time.Second), Target: "B", Mint: "M", Signature: "S1"},
	}
	for _, ev := range events {
		require.NoError(t, j.Record(ctx, ev))
	}

	t.Run("newest first", func(t *testing.T) {
		got, err := j.Recent(ctx, 0, "")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, tracker.EventMintDiscovered, got[0].Kind)
		assert.Equal(t, tracker.EventLargeTransfer, got[2].Kind)
		assert.Equal(t, uint64(500_000_000_000), got[2].Lamports)
	})

	t.Run("filter by kind", func(t *testing.T) {
		got, err := j.Recent(ctx, 10, tracker.EventRetarget)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "B", got[0].Recipient)
		assert.Equal(t, "transfer", got[0].Meta["source"])
	})

	t.Run("limit", func(t *testing.T) {
		got, err := j.Recent(ctx, 2, "")
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}

func TestRollbackMigration(t *testing.T) {
	db := setupTestDB(t)
	require.True(t, db.Migrator().HasTable("watch_events"))

	require.NoError(t, config.RollbackMigration(db))
	assert.False(t, db.Migrator().HasTable("watch_events"))

	require.NoError(t, config.ExecuteMigrations(db))
	assert.True(t, db.Migrator().HasTable("watch_events"))
}
