package hearth

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := CreateDB(
		context.Background(),
		"sqlite",
		filepath.Join(t.TempDir(), "hearth_test.sqlite3"),
		nil,
		0,
	)
	require.NoError(t, err)
	return db
}

func TestCreateDBExplicitLogSettings(t *testing.T) {
	db, err := CreateDB(
		context.Background(),
		"sqlite",
		filepath.Join(t.TempDir(), "hearth_test.sqlite3"),
		slog.LevelDebug,
		50*time.Millisecond,
	)
	require.NoError(t, err)

	store := NewGuildStateStore(db, nil)
	state, err := store.Get(context.Background(), "guild1")
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), state))
}

func TestGuildStateStoreLazyCreate(t *testing.T) {
	store := NewGuildStateStore(testDB(t), nil)
	ctx := context.Background()

	state, err := store.Get(ctx, "guild1")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "guild1", state.ID)
	assert.Equal(t, DefaultStarboardEmoji, state.Starboard.Emoji)
	assert.Equal(t, DefaultStarboardThreshold, state.Starboard.Threshold)
	assert.False(t, state.FeatureToggles.StarboardScanning)
	assert.Empty(t, state.Confession.ApprovalQueue)
}

func TestGuildStateStoreSaveRoundTrip(t *testing.T) {
	store := NewGuildStateStore(testDB(t), nil)
	ctx := context.Background()

	state, err := store.Get(ctx, "guild1")
	require.NoError(t, err)

	state.FeatureToggles.StarboardScanning = true
	state.Channels.Confession = "chan1"
	state.Starboard.Threshold = 7
	state.Starboard.RecordReactions("m1", "c1", "author", 9)
	state.Confession.Enabled = true
	id := state.EnqueueConfession(
		PendingConfession{AuthorUserID: "author", MessageText: "hello"},
	)
	state.Counters.NumQOTD = 3

	require.NoError(t, store.Save(ctx, state))

	got, err := store.Get(ctx, "guild1")
	require.NoError(t, err)
	assert.True(t, got.FeatureToggles.StarboardScanning)
	assert.Equal(t, "chan1", got.Channels.Confession)
	assert.Equal(t, 7, got.Starboard.Threshold)
	require.Len(t, got.Starboard.Leaderboard, 1)
	assert.Equal(t, 9, got.Starboard.Leaderboard[0].NumReactions)
	assert.True(t, got.Confession.Enabled)
	require.Contains(t, got.Confession.ApprovalQueue, id)
	assert.Equal(t, "hello", got.Confession.ApprovalQueue[id].MessageText)
	assert.Equal(t, 3, got.Counters.NumQOTD)
	assert.NotZero(t, got.UpdatedAt)
}

func TestGuildStateStoreIsolation(t *testing.T) {
	store := NewGuildStateStore(testDB(t), nil)
	ctx := context.Background()

	a, err := store.Get(ctx, "guild1")
	require.NoError(t, err)
	a.Counters.NumConfessions = 10
	require.NoError(t, store.Save(ctx, a))

	b, err := store.Get(ctx, "guild2")
	require.NoError(t, err)
	assert.Zero(t, b.Counters.NumConfessions)
}
