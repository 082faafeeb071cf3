package hearth

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lmittmann/tint"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChannelSlots holds the named channel-ID slots for a guild. An empty
// string means the slot is unset.
type ChannelSlots struct {
	Confession         string `json:"confession"`
	ConfessionApproval string `json:"confession_approval"`
	Starboard          string `json:"starboard"`
	QOTD               string `json:"qotd"`
}

// FeatureToggles holds the per-guild boolean flags for optional features.
type FeatureToggles struct {
	WordleScanning         bool `json:"wordle_scanning"`
	StarboardScanning      bool `json:"starboard_scanning"`
	LinkEmbedFixes         bool `json:"link_embed_fixes"`
	CustomResponseScanning bool `json:"custom_response_scanning"`
}

// Counters are monotonically increasing named counters, used purely for
// display numbering - never for identity.
type Counters struct {
	NumConfessions    int `json:"num_confessions"`
	NumStarboardPosts int `json:"num_starboard_posts"`
	NumQOTD           int `json:"num_qotd"`
}

// GuildState is the persisted per-guild configuration document. One row
// exists per guild, created lazily on first access and never deleted.
// All mutation is load-modify-save as a unit, with last-writer-wins
// semantics across genuinely concurrent sessions (the session guard
// prevents redundant same-session writes).
type GuildState struct {
	// ID is the Discord guild ID
	ID string `gorm:"primaryKey" json:"id"`
	ModelUnixTime

	Channels         ChannelSlots     `gorm:"serializer:json" json:"channels"`
	FeatureToggles   FeatureToggles   `gorm:"serializer:json" json:"feature_toggles"`
	CommandOverrides CommandOverrides `gorm:"serializer:json" json:"command_overrides"`
	Starboard        StarboardConfig  `gorm:"serializer:json" json:"starboard"`
	Confession       ConfessionConfig `gorm:"serializer:json" json:"confession"`
	Counters         Counters         `gorm:"serializer:json" json:"counters"`
}

func (GuildState) TableName() string {
	return "guild_state"
}

func (g GuildState) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("guild_id", g.ID),
		slog.Int("pending_confessions", len(g.Confession.ApprovalQueue)),
		slog.Int("leaderboard_entries", len(g.Starboard.Leaderboard)),
		slog.Int64("updated_at", g.UpdatedAt),
	)
}

// NewGuildState returns a default-initialized GuildState for the given
// guild ID: all toggles false, default starboard thresholds, empty
// collections.
func NewGuildState(guildID string) *GuildState {
	return &GuildState{
		ID:        guildID,
		Starboard: DefaultStarboardConfig(),
		Confession: ConfessionConfig{
			ApprovalQueue: map[string]PendingConfession{},
		},
	}
}

// GuildStateStore loads and persists GuildState documents. Get performs
// a lazy upsert for unknown guild IDs; Save persists the full document
// and refreshes its UpdatedAt timestamp. Save failures are reported to
// the caller and never retried by the store itself.
type GuildStateStore interface {
	Get(ctx context.Context, guildID string) (*GuildState, error)
	Save(ctx context.Context, state *GuildState) error
}

type gormGuildStateStore struct {
	db     *gorm.DB
	logger *slog.Logger

	// serializes writes; sqlite runs with a single connection and GORM
	// offers no partial-field atomicity here anyway
	mu sync.Mutex
}

// NewGuildStateStore returns a GuildStateStore backed by the given GORM
// connection.
func NewGuildStateStore(db *gorm.DB, log *slog.Logger) GuildStateStore {
	if log == nil {
		log = slog.Default()
	}
	return &gormGuildStateStore{
		db:     db,
		logger: log.With(loggerNameKey, "guild_state_store"),
	}
}

// Get returns the existing document for guildID, or atomically creates a
// default-initialized one. The ON CONFLICT DO NOTHING upsert is the
// dedup mechanism for concurrent first access: whichever insert loses
// the race falls through to reading the winner's row.
func (s *gormGuildStateStore) Get(
	ctx context.Context,
	guildID string,
) (*GuildState, error) {
	ctx, cancel := withDeadline(ctx)
	defer cancel()

	var state GuildState
	err := s.db.WithContext(ctx).Where("id = ?", guildID).Take(&state).Error
	if err == nil {
		return &state, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, PersistenceError{Op: "get", Err: err}
	}

	fresh := NewGuildState(guildID)
	createErr := s.db.WithContext(ctx).Clauses(
		clause.OnConflict{DoNothing: true},
	).Create(fresh).Error
	if createErr != nil {
		return nil, PersistenceError{Op: "create", Err: createErr}
	}

	// re-read so a lost race still returns the winning row
	if err = s.db.WithContext(ctx).Where(
		"id = ?", guildID,
	).Take(&state).Error; err != nil {
		return nil, PersistenceError{Op: "get", Err: err}
	}
	s.logger.InfoContext(ctx, "created guild state", "guild_state", state)
	return &state, nil
}

// Save persists the full document. GORM's autoUpdateTime refreshes
// UpdatedAt on every save.
func (s *gormGuildStateStore) Save(
	ctx context.Context,
	state *GuildState,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := withDeadline(ctx)
	defer cancel()

	if err := s.db.WithContext(ctx).Save(state).Error; err != nil {
		s.logger.ErrorContext(
			ctx,
			"error saving guild state",
			"guild_state", state,
			tint.Err(err),
		)
		return PersistenceError{Op: "save", Err: err}
	}
	return nil
}
