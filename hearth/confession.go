package hearth

import (
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
)

// PendingConfession is a confession awaiting moderator decision, held in
// the guild's approval queue. The approval workflow controller is the
// only mutator.
type PendingConfession struct {
	// ID is an opaque generated identifier
	ID string `json:"id"`

	AuthorUserID string `json:"author_user_id"`
	MessageText  string `json:"message_text"`

	// ImageURL is an optional attached image
	ImageURL string `json:"image_url,omitempty"`

	// MentionedUserID is an optional user the confession is addressed to
	MentionedUserID string `json:"mentioned_user_id,omitempty"`

	CreatedAt int64 `json:"created_at"`
}

func (p PendingConfession) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", p.ID),
		slog.String("author_user_id", p.AuthorUserID),
		slog.Int64("created_at", p.CreatedAt),
	)
}

// ConfessionConfig is the per-guild confession configuration, including
// the approval queue sub-ledger.
type ConfessionConfig struct {
	Enabled          bool `json:"enabled"`
	ApprovalRequired bool `json:"approval_required"`

	// ApprovalQueue holds pending confessions keyed by generated ID
	ApprovalQueue map[string]PendingConfession `json:"approval_queue"`

	// BannedUserIDs lists users barred from submitting confessions,
	// populated by the approval workflow's ban escalation
	BannedUserIDs []string `json:"banned_user_ids,omitempty"`
}

// EnqueueConfession generates an opaque ID for the confession, inserts
// it into the approval queue, and returns the ID. The caller persists.
func (g *GuildState) EnqueueConfession(p PendingConfession) string {
	p.ID = uuid.NewString()
	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().UTC().UnixMilli()
	}
	if g.Confession.ApprovalQueue == nil {
		g.Confession.ApprovalQueue = map[string]PendingConfession{}
	}
	g.Confession.ApprovalQueue[p.ID] = p
	return p.ID
}

// ApproveConfession removes the entry from the approval queue and
// increments the display counter, returning the confession's display
// number. Approving an unknown or already-resolved ID returns a
// StaleReferenceError (matching ErrAlreadyResolved) without touching the
// counter.
func (g *GuildState) ApproveConfession(id string) (int, PendingConfession, error) {
	entry, ok := g.Confession.ApprovalQueue[id]
	if !ok {
		return 0, PendingConfession{}, StaleReferenceError{
			Kind: "confession",
			ID:   id,
		}
	}
	delete(g.Confession.ApprovalQueue, id)
	g.Counters.NumConfessions++
	return g.Counters.NumConfessions, entry, nil
}

// DenyConfession removes the entry from the approval queue. Denying an
// unknown or already-resolved ID returns a StaleReferenceError.
func (g *GuildState) DenyConfession(id string) (PendingConfession, error) {
	entry, ok := g.Confession.ApprovalQueue[id]
	if !ok {
		return PendingConfession{}, StaleReferenceError{
			Kind: "confession",
			ID:   id,
		}
	}
	delete(g.Confession.ApprovalQueue, id)
	return entry, nil
}

// BanConfessor denies the entry and records its author as banned from
// further confessions. Banning an already-banned author is a no-op on
// the ban list.
func (g *GuildState) BanConfessor(id string) (PendingConfession, error) {
	entry, err := g.DenyConfession(id)
	if err != nil {
		return entry, err
	}
	if !slices.Contains(g.Confession.BannedUserIDs, entry.AuthorUserID) {
		g.Confession.BannedUserIDs = append(
			g.Confession.BannedUserIDs,
			entry.AuthorUserID,
		)
	}
	return entry, nil
}

// ConfessorBanned reports whether the given user is barred from
// submitting confessions in this guild.
func (g GuildState) ConfessorBanned(userID string) bool {
	return slices.Contains(g.Confession.BannedUserIDs, userID)
}

// Decision outcomes recorded in the audit log.
const (
	ConfessionApproved  = "approved"
	ConfessionDenied    = "denied"
	ConfessionEscalated = "banned"
)

// ConfessionDecision is the audit record written for every resolved
// approval queue entry.
type ConfessionDecision struct {
	ModelUintID
	ModelUnixTime

	GuildID      string `json:"guild_id" gorm:"index;not null"`
	ConfessionID string `json:"confession_id" gorm:"index;not null"`

	// ModeratorUserID is the user whose action resolved the entry
	ModeratorUserID string `json:"moderator_user_id" gorm:"not null"`

	// Outcome is one of ConfessionApproved, ConfessionDenied,
	// ConfessionEscalated
	Outcome string `json:"outcome" gorm:"type:string"`

	// Reason is the optional denial reason collected by the deny
	// sub-flow
	Reason string `json:"reason" gorm:"type:string"`

	// Number is the display number assigned on approval (0 otherwise)
	Number int `json:"number"`
}

func (ConfessionDecision) TableName() string {
	return "confession_decisions"
}

func (d ConfessionDecision) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("guild_id", d.GuildID),
		slog.String("confession_id", d.ConfessionID),
		slog.String("moderator_user_id", d.ModeratorUserID),
		slog.String("outcome", d.Outcome),
	)
}
