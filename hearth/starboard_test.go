package hearth

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordReactionsUpdateInPlace(t *testing.T) {
	sb := DefaultStarboardConfig()

	entered, changed := sb.RecordReactions("m1", "c1", "author", 3)
	assert.True(t, entered)
	assert.True(t, changed)
	require.Len(t, sb.Leaderboard, 1)

	entered, changed = sb.RecordReactions("m1", "c1", "author", 7)
	assert.False(t, entered, "celebration fires only once per entry")
	assert.True(t, changed)
	require.Len(t, sb.Leaderboard, 1)
	assert.Equal(t, 7, sb.Leaderboard[0].NumReactions)
}

func TestRecordReactionsBound(t *testing.T) {
	sb := DefaultStarboardConfig()
	for i := 0; i < maxLeaderboardEntries; i++ {
		sb.RecordReactions(fmt.Sprintf("m%d", i), "c1", "author", 10+i)
	}
	require.Len(t, sb.Leaderboard, maxLeaderboardEntries)

	// below the minimum: rejected, board unchanged
	entered, changed := sb.RecordReactions("small", "c1", "author", 5)
	assert.False(t, entered)
	assert.False(t, changed)
	assert.Len(t, sb.Leaderboard, maxLeaderboardEntries)
	assert.Equal(t, -1, sb.leaderboardIndex("small"))

	// beats the minimum: minimum evicted, bound holds
	entered, changed = sb.RecordReactions("big", "c1", "author", 100)
	assert.True(t, entered)
	assert.True(t, changed)
	assert.Len(t, sb.Leaderboard, maxLeaderboardEntries)
	assert.Equal(t, -1, sb.leaderboardIndex("m0"), "minimum entry evicted")
	assert.Equal(t, 0, sb.leaderboardIndex("big"))
}

func TestRecordReactionsSortedDescending(t *testing.T) {
	sb := DefaultStarboardConfig()
	sb.RecordReactions("low", "c1", "a", 3)
	sb.RecordReactions("high", "c1", "a", 9)
	sb.RecordReactions("mid", "c1", "a", 5)

	require.Len(t, sb.Leaderboard, 3)
	assert.Equal(t, "high", sb.Leaderboard[0].MessageID)
	assert.Equal(t, "mid", sb.Leaderboard[1].MessageID)
	assert.Equal(t, "low", sb.Leaderboard[2].MessageID)
}

func TestCelebrationOnlyInsideTopTen(t *testing.T) {
	sb := DefaultStarboardConfig()
	for i := 0; i < renderedLeaderboardEntries; i++ {
		entered, _ := sb.RecordReactions(fmt.Sprintf("m%d", i), "c1", "a", 100+i)
		assert.True(t, entered)
	}

	// lands at index 10: retained but not celebrated
	entered, changed := sb.RecordReactions("outside", "c1", "a", 50)
	assert.False(t, entered)
	assert.True(t, changed)

	i := sb.leaderboardIndex("outside")
	require.GreaterOrEqual(t, i, renderedLeaderboardEntries)
	assert.False(t, sb.Leaderboard[i].Celebrated)

	// climbing into the top ten later still fires exactly once
	entered, _ = sb.RecordReactions("outside", "c1", "a", 500)
	assert.True(t, entered)
	entered, _ = sb.RecordReactions("outside", "c1", "a", 600)
	assert.False(t, entered)
}

func TestRemoveMessage(t *testing.T) {
	sb := DefaultStarboardConfig()
	sb.UpsertPost(
		StarboardPost{
			MessageID:          "m1",
			ChannelID:          "c1",
			StarboardMessageID: "sb1",
			NumReactions:       4,
		},
	)
	sb.RecordReactions("m1", "c1", "a", 4)

	removed, found := sb.RemoveMessage("m1")
	assert.True(t, found)
	assert.Equal(t, "sb1", removed.StarboardMessageID)
	assert.Empty(t, sb.Posts)
	assert.Empty(t, sb.Leaderboard)

	_, found = sb.RemoveMessage("m1")
	assert.False(t, found)
}

func TestUpsertPost(t *testing.T) {
	sb := DefaultStarboardConfig()
	sb.UpsertPost(StarboardPost{MessageID: "m1", NumReactions: 3})
	sb.UpsertPost(StarboardPost{MessageID: "m1", NumReactions: 5})
	require.Len(t, sb.Posts, 1)
	assert.Equal(t, 5, sb.Posts[0].NumReactions)
}

func TestChannelBlacklisted(t *testing.T) {
	sb := DefaultStarboardConfig()
	sb.Blacklist.ChannelIDs = []string{"c1"}

	assert.False(t, sb.ChannelBlacklisted("c1"), "disabled blacklist matches nothing")

	sb.Blacklist.Enabled = true
	assert.True(t, sb.ChannelBlacklisted("c1"))
	assert.False(t, sb.ChannelBlacklisted("c2"))
}

func TestTopEntriesCutoff(t *testing.T) {
	sb := DefaultStarboardConfig()
	for i := 0; i < maxLeaderboardEntries; i++ {
		sb.RecordReactions(fmt.Sprintf("m%d", i), "c1", "a", 10+i)
	}
	top := sb.TopEntries()
	require.Len(t, top, renderedLeaderboardEntries)
	for i := 1; i < len(top); i++ {
		assert.GreaterOrEqual(t, top[i-1].NumReactions, top[i].NumReactions)
	}
}

func TestApplyStarboardReply(t *testing.T) {
	sb := DefaultStarboardConfig()

	require.NoError(t, applyStarboardReply(&sb, StarboardFieldEmoji, "🔥"))
	assert.Equal(t, "🔥", sb.Emoji)

	require.NoError(t, applyStarboardReply(&sb, StarboardFieldThreshold, "5"))
	assert.Equal(t, 5, sb.Threshold)

	var validationErr ValidationError
	err := applyStarboardReply(&sb, StarboardFieldThreshold, "0")
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, 5, sb.Threshold, "invalid input leaves value unchanged")

	err = applyStarboardReply(&sb, StarboardFieldThreshold, "lots")
	require.ErrorAs(t, err, &validationErr)

	require.NoError(
		t,
		applyStarboardReply(&sb, StarboardFieldBlacklist, "<#111> <#222>"),
	)
	assert.True(t, sb.Blacklist.Enabled)
	assert.ElementsMatch(t, []string{"111", "222"}, sb.Blacklist.ChannelIDs)

	// mentioning an existing channel toggles it back off
	require.NoError(
		t,
		applyStarboardReply(&sb, StarboardFieldBlacklist, "<#111>"),
	)
	assert.ElementsMatch(t, []string{"222"}, sb.Blacklist.ChannelIDs)

	require.NoError(t, applyStarboardReply(&sb, StarboardFieldBlacklist, "off"))
	assert.False(t, sb.Blacklist.Enabled)
}
