package hearth

import (
	"cmp"
	"slices"
	"time"
)

const (
	// maxLeaderboardEntries bounds the starboard leaderboard. Entries
	// beyond renderedLeaderboardEntries are never rendered but are
	// retained for hysteresis.
	maxLeaderboardEntries = 15

	// renderedLeaderboardEntries is the number of entries shown, and the
	// cutoff for the one-time "entered top 10" celebration.
	renderedLeaderboardEntries = 10
)

// StarboardBlacklist excludes channels from starboard scanning.
type StarboardBlacklist struct {
	Enabled    bool     `json:"enabled"`
	ChannelIDs []string `json:"channel_ids"`
}

// StarboardPost is a live reference to a message the bot reposted to the
// starboard channel.
type StarboardPost struct {
	// MessageID is the original (reacted-to) message
	MessageID string `json:"message_id"`

	// ChannelID is the original message's channel
	ChannelID string `json:"channel_id"`

	// StarboardMessageID is the bot's repost in the starboard channel
	StarboardMessageID string `json:"starboard_message_id"`

	NumReactions int `json:"num_reactions"`
}

// LeaderboardEntry ranks a starboard post by reaction count. Celebrated
// marks that the one-time "entered top 10" side effect has fired for
// this entry.
type LeaderboardEntry struct {
	MessageID    string `json:"message_id"`
	ChannelID    string `json:"channel_id"`
	AuthorUserID string `json:"author_user_id"`
	NumReactions int    `json:"num_reactions"`
	Celebrated   bool   `json:"celebrated"`
	UpdatedAt    int64  `json:"updated_at"`
}

// StarboardConfig is the per-guild starboard configuration and ledger.
type StarboardConfig struct {
	Emoji        string `json:"emoji"`
	SuccessEmoji string `json:"success_emoji"`

	// Threshold is the reaction count at which a message is posted to
	// the starboard. Always >= 1.
	Threshold int `json:"threshold"`

	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	Posts       []StarboardPost    `json:"posts"`
	Blacklist   StarboardBlacklist `json:"blacklist"`
}

// DefaultStarboardConfig returns the starboard defaults used when a
// guild's state document is first created.
func DefaultStarboardConfig() StarboardConfig {
	return StarboardConfig{
		Emoji:        DefaultStarboardEmoji,
		SuccessEmoji: DefaultStarboardSuccessEmoji,
		Threshold:    DefaultStarboardThreshold,
	}
}

// sortLeaderboard orders entries descending by reaction count. Ties keep
// their existing relative order, making min-eviction deterministic
// (first found).
func (s *StarboardConfig) sortLeaderboard() {
	slices.SortStableFunc(
		s.Leaderboard,
		func(a, b LeaderboardEntry) int {
			return cmp.Compare(b.NumReactions, a.NumReactions)
		},
	)
}

// leaderboardIndex returns the index of the entry for messageID, or -1.
func (s *StarboardConfig) leaderboardIndex(messageID string) int {
	return slices.IndexFunc(
		s.Leaderboard,
		func(e LeaderboardEntry) bool { return e.MessageID == messageID },
	)
}

// RecordReactions applies a reaction-count change for a message to the
// leaderboard:
//
//   - an existing entry is updated in place
//   - otherwise a new entry is inserted if the board has room, or if the
//     new count beats the current minimum (which is then evicted)
//
// The board is re-sorted descending afterward. enteredTopTen is true
// exactly once per entry: the first time it lands at an index below 10.
// The caller uses it to trigger the celebratory side effect.
func (s *StarboardConfig) RecordReactions(
	messageID string,
	channelID string,
	authorUserID string,
	numReactions int,
) (enteredTopTen bool, changed bool) {
	now := time.Now().UTC().UnixMilli()

	i := s.leaderboardIndex(messageID)
	if i >= 0 {
		s.Leaderboard[i].NumReactions = numReactions
		s.Leaderboard[i].UpdatedAt = now
		changed = true
	} else {
		entry := LeaderboardEntry{
			MessageID:    messageID,
			ChannelID:    channelID,
			AuthorUserID: authorUserID,
			NumReactions: numReactions,
			UpdatedAt:    now,
		}
		switch {
		case len(s.Leaderboard) < maxLeaderboardEntries:
			s.Leaderboard = append(s.Leaderboard, entry)
			changed = true
		case numReactions > s.minLeaderboardCount():
			s.evictMinimum()
			s.Leaderboard = append(s.Leaderboard, entry)
			changed = true
		default:
			return false, false
		}
	}

	s.sortLeaderboard()

	i = s.leaderboardIndex(messageID)
	if i >= 0 && i < renderedLeaderboardEntries && !s.Leaderboard[i].Celebrated {
		s.Leaderboard[i].Celebrated = true
		enteredTopTen = true
	}
	return enteredTopTen, changed
}

// minLeaderboardCount returns the lowest reaction count on the board, or
// 0 for an empty board.
func (s *StarboardConfig) minLeaderboardCount() int {
	minCount := 0
	for i, e := range s.Leaderboard {
		if i == 0 || e.NumReactions < minCount {
			minCount = e.NumReactions
		}
	}
	return minCount
}

// evictMinimum removes the first entry holding the minimum reaction
// count.
func (s *StarboardConfig) evictMinimum() {
	if len(s.Leaderboard) == 0 {
		return
	}
	minIndex := 0
	for i, e := range s.Leaderboard {
		if e.NumReactions < s.Leaderboard[minIndex].NumReactions {
			minIndex = i
		}
	}
	s.Leaderboard = slices.Delete(s.Leaderboard, minIndex, minIndex+1)
}

// RemoveMessage removes the message from both the live post list and the
// leaderboard - the reverse of insertion, used when a post's reactions
// drop below the threshold. Returns the removed post reference, if any,
// so the caller can delete the starboard repost.
func (s *StarboardConfig) RemoveMessage(messageID string) (StarboardPost, bool) {
	var removed StarboardPost
	var found bool

	if i := slices.IndexFunc(
		s.Posts,
		func(p StarboardPost) bool { return p.MessageID == messageID },
	); i >= 0 {
		removed = s.Posts[i]
		s.Posts = slices.Delete(s.Posts, i, i+1)
		found = true
	}

	if i := s.leaderboardIndex(messageID); i >= 0 {
		s.Leaderboard = slices.Delete(s.Leaderboard, i, i+1)
		found = true
	}
	return removed, found
}

// UpsertPost records or updates a live starboard post reference.
func (s *StarboardConfig) UpsertPost(post StarboardPost) {
	if i := slices.IndexFunc(
		s.Posts,
		func(p StarboardPost) bool { return p.MessageID == post.MessageID },
	); i >= 0 {
		s.Posts[i] = post
		return
	}
	s.Posts = append(s.Posts, post)
}

// ChannelBlacklisted reports whether starboard scanning skips the given
// channel.
func (s StarboardConfig) ChannelBlacklisted(channelID string) bool {
	if !s.Blacklist.Enabled {
		return false
	}
	return slices.Contains(s.Blacklist.ChannelIDs, channelID)
}

// TopEntries returns the rendered slice of the leaderboard (at most
// renderedLeaderboardEntries entries, already sorted descending).
func (s StarboardConfig) TopEntries() []LeaderboardEntry {
	if len(s.Leaderboard) <= renderedLeaderboardEntries {
		return s.Leaderboard
	}
	return s.Leaderboard[:renderedLeaderboardEntries]
}
