package hearth

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lmittmann/tint"
)

// sessionKey identifies one interactive workflow instance. Sessions are
// scoped to a single guild and view; a guard on one session never
// serializes another guild's edits.
type sessionKey struct {
	GuildID string
	ViewID  string
}

// Session is the ephemeral runtime state of one open interactive
// workflow: the originating view, the invoking user, the open
// collectors, and the re-entrancy guard. Sessions are never persisted
// and never shared across guilds or users.
type Session struct {
	GuildID  string
	ViewID   string
	AuthorID string

	// Deadline is when the session is considered abandoned and eligible
	// for reaping
	Deadline time.Time

	guard  atomic.Bool
	closed atomic.Bool

	mu         sync.Mutex
	collectors []*Collector
	cleanup    func(ctx context.Context)
	cleanupRun sync.Once

	arena *SessionArena
}

// TryAcquire attempts to take the session guard. While held, no second
// action on this session may start a transition; callers that fail to
// acquire drop the action rather than queueing it, so rapid double
// clicks never stack concurrent edits.
func (s *Session) TryAcquire() bool {
	if s.closed.Load() {
		return false
	}
	return s.guard.CompareAndSwap(false, true)
}

// Release returns the session guard.
func (s *Session) Release() {
	s.guard.Store(false)
}

// Locked reports whether a transition is currently in flight.
func (s *Session) Locked() bool {
	return s.guard.Load()
}

// AddCollector attaches a collector to the session so terminal cleanup
// can stop it.
func (s *Session) AddCollector(c *Collector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collectors = append(s.collectors, c)
}

// SetCleanup registers the view-teardown function run exactly once when
// the session closes (terminal action, collector timeout, or reap).
func (s *Session) SetCleanup(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanup = fn
}

// ExtendDeadline pushes the reap deadline out after a processed action.
func (s *Session) ExtendDeadline(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deadline = time.Now().Add(d)
}

// Close transitions the session to its terminal state: stops all
// collectors, runs the registered view cleanup exactly once, and removes
// the session from its arena. Safe to call multiple times.
func (s *Session) Close(ctx context.Context) {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	s.mu.Lock()
	collectors := s.collectors
	s.collectors = nil
	cleanup := s.cleanup
	s.mu.Unlock()

	for _, c := range collectors {
		c.Stop()
	}
	if cleanup != nil {
		s.cleanupRun.Do(func() { cleanup(ctx) })
	}
	if s.arena != nil {
		s.arena.remove(s)
	}
}

// Closed reports whether the session reached its terminal state.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

func (s *Session) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("guild_id", s.GuildID),
		slog.String("view_id", s.ViewID),
		slog.String("author_id", s.AuthorID),
		slog.Bool("locked", s.guard.Load()),
		slog.Bool("closed", s.closed.Load()),
	)
}

// SessionArena owns the active sessions, keyed by (guildID, viewID).
// Each session carries its own guard, so unrelated guilds' edits are
// never serialized against each other.
type SessionArena struct {
	mu       sync.Mutex
	sessions map[sessionKey]*Session
	logger   *slog.Logger
}

// NewSessionArena returns an empty arena.
func NewSessionArena(log *slog.Logger) *SessionArena {
	if log == nil {
		log = slog.Default()
	}
	return &SessionArena{
		sessions: map[sessionKey]*Session{},
		logger:   log.With(loggerNameKey, "session_arena"),
	}
}

// Create registers a new session. If a session already exists for the
// same (guild, view), it is closed first - a view has at most one live
// session.
func (a *SessionArena) Create(
	ctx context.Context,
	guildID string,
	viewID string,
	authorID string,
	lifetime time.Duration,
) *Session {
	key := sessionKey{GuildID: guildID, ViewID: viewID}

	a.mu.Lock()
	existing := a.sessions[key]
	a.mu.Unlock()
	if existing != nil {
		a.logger.WarnContext(
			ctx,
			"replacing existing session",
			"session", existing,
		)
		existing.Close(ctx)
	}

	s := &Session{
		GuildID:  guildID,
		ViewID:   viewID,
		AuthorID: authorID,
		Deadline: time.Now().Add(lifetime),
		arena:    a,
	}
	a.mu.Lock()
	a.sessions[key] = s
	a.mu.Unlock()
	return s
}

// Get returns the live session for (guildID, viewID), if any.
func (a *SessionArena) Get(guildID string, viewID string) (*Session, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[sessionKey{GuildID: guildID, ViewID: viewID}]
	return s, ok
}

func (a *SessionArena) remove(s *Session) {
	key := sessionKey{GuildID: s.GuildID, ViewID: s.ViewID}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sessions[key] == s {
		delete(a.sessions, key)
	}
}

// Len reports the number of live sessions.
func (a *SessionArena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}

// Snapshot returns identifying info for all live sessions, for the
// admin API.
func (a *SessionArena) Snapshot() []SessionInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	infos := make([]SessionInfo, 0, len(a.sessions))
	for _, s := range a.sessions {
		infos = append(
			infos,
			SessionInfo{
				GuildID:  s.GuildID,
				ViewID:   s.ViewID,
				AuthorID: s.AuthorID,
				Deadline: s.Deadline,
				Locked:   s.Locked(),
			},
		)
	}
	return infos
}

// SessionInfo is the read-only view of a live session exposed by the
// admin API.
type SessionInfo struct {
	GuildID  string    `json:"guild_id"`
	ViewID   string    `json:"view_id"`
	AuthorID string    `json:"author_id"`
	Deadline time.Time `json:"deadline"`
	Locked   bool      `json:"locked"`
}

// Reap closes sessions whose deadline has passed. Collector timeouts
// normally tear sessions down first; the reaper catches sessions whose
// event loop goroutine died without cleanup.
func (a *SessionArena) Reap(ctx context.Context, now time.Time) int {
	a.mu.Lock()
	var expired []*Session
	for _, s := range a.sessions {
		if now.After(s.Deadline) {
			expired = append(expired, s)
		}
	}
	a.mu.Unlock()

	for _, s := range expired {
		a.logger.InfoContext(ctx, "reaping expired session", "session", s)
		s.Close(ctx)
	}
	return len(expired)
}

// RunReaper runs Reap on the given interval until ctx is canceled.
func (a *SessionArena) RunReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := ctx.Err(); err != nil && err != context.Canceled {
				a.logger.Warn("reaper stopped", tint.Err(err))
			}
			return
		case now := <-ticker.C:
			a.Reap(ctx, now)
		}
	}
}
