package hearth

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/lmittmann/tint"
	"gorm.io/gorm"
)

// userErrGeneric is shown for any error not matching a known kind.
const userErrGeneric = "sorry, something went wrong!"

// Workflows owns the shared dependencies of all workflow controllers:
// the guild state store, the platform boundary, the collector hub, the
// session arena, and the audit database.
type Workflows struct {
	store    GuildStateStore
	platform Platform
	perms    PermissionChecker
	registry CommandRegistry
	hub      *CollectorHub
	sessions *SessionArena
	cfg      WorkflowConfig
	logger   *slog.Logger

	// db is used only for audit rows (ActionLog, ConfessionDecision);
	// nil disables auditing
	db *gorm.DB

	// guildLocks serializes sessionless read-modify-write cycles
	// (reaction events) per guild; values are *sync.Mutex
	guildLocks sync.Map
}

// NewWorkflows wires up the controller environment.
func NewWorkflows(
	store GuildStateStore,
	platform Platform,
	perms PermissionChecker,
	registry CommandRegistry,
	hub *CollectorHub,
	sessions *SessionArena,
	cfg WorkflowConfig,
	db *gorm.DB,
	log *slog.Logger,
) *Workflows {
	if log == nil {
		log = slog.Default()
	}
	return &Workflows{
		store:    store,
		platform: platform,
		perms:    perms,
		registry: registry,
		hub:      hub,
		sessions: sessions,
		cfg:      cfg,
		db:       db,
		logger:   log.With(loggerNameKey, "workflows"),
	}
}

// Sessions exposes the arena for the admin API and lifecycle wiring.
func (w *Workflows) Sessions() *SessionArena {
	return w.sessions
}

// Hub exposes the collector hub for gateway dispatch.
func (w *Workflows) Hub() *CollectorHub {
	return w.hub
}

// requireManagement enforces the permission gate for mutating actions.
// It runs before the session guard is acquired, so unauthorized presses
// never block other users' transitions.
func (w *Workflows) requireManagement(ctx context.Context, a Action, guildID string) error {
	ok, err := w.perms.HasGuildManagement(ctx, a.UserID, guildID)
	if err != nil {
		return err
	}
	if !ok {
		return PermissionError{UserID: a.UserID, GuildID: guildID}
	}
	return nil
}

// transition applies exactly one guarded state mutation for a collected
// action: acquire the session guard (drop the action if it's held), load
// the latest guild state, run mutate, and persist. The in-memory
// mutation is discarded on save failure. Validation errors skip
// persistence entirely.
func (w *Workflows) transition(
	ctx context.Context,
	sess *Session,
	mutate func(state *GuildState) error,
) error {
	if !sess.TryAcquire() {
		if sess.Closed() {
			return ErrSessionClosed
		}
		return ErrSessionBusy
	}
	defer sess.Release()

	state, err := w.store.Get(ctx, sess.GuildID)
	if err != nil {
		return err
	}
	if err = mutate(state); err != nil {
		return err
	}
	if err = w.store.Save(ctx, state); err != nil {
		return err
	}
	sess.ExtendDeadline(w.cfg.MenuTimeout)
	return nil
}

// reportActionError maps the error taxonomy onto user-visible replies.
// Every transition error terminates here; nothing escapes to kill a
// session.
func (w *Workflows) reportActionError(ctx context.Context, a Action, err error) {
	log := contextOrDefaultLogger(ctx, w.logger)

	var validationErr ValidationError
	var permErr PermissionError
	var platformErr PlatformError
	var persistErr PersistenceError

	switch {
	case errors.Is(err, ErrSessionBusy), errors.Is(err, ErrSessionClosed):
		// deliberate drop semantics: a click during an in-flight
		// transition does nothing
		log.DebugContext(ctx, "dropped action", "action", a, tint.Err(err))
	case errors.As(err, &validationErr):
		_ = w.platform.NotifyEphemeral(ctx, a, validationErr.Error())
	case errors.As(err, &permErr):
		_ = w.platform.NotifyEphemeral(
			ctx,
			a,
			"You need the Manage Server permission for that.",
		)
	case errors.Is(err, ErrAlreadyResolved):
		_ = w.platform.NotifyEphemeral(ctx, a, "Already resolved.")
	case errors.As(err, &persistErr):
		log.ErrorContext(ctx, "persistence failure", "action", a, tint.Err(err))
		_ = w.platform.NotifyEphemeral(ctx, a, userErrGeneric)
	case errors.As(err, &platformErr):
		log.ErrorContext(ctx, "platform failure", "action", a, tint.Err(err))
	default:
		log.ErrorContext(ctx, "unexpected error", "action", a, tint.Err(err))
		_ = w.platform.NotifyEphemeral(ctx, a, userErrGeneric)
	}
}

// recordAction writes the audit row for a collected action.
func (w *Workflows) recordAction(ctx context.Context, guildID string, a Action) {
	if w.db == nil {
		return
	}
	row := ActionLog{
		GuildID:  guildID,
		ViewID:   a.ViewID,
		UserID:   a.UserID,
		Kind:     string(a.Kind),
		ButtonID: a.Op,
		Content:  a.Content,
	}
	if err := w.db.WithContext(ctx).Create(&row).Error; err != nil {
		w.logger.WarnContext(
			ctx,
			"error recording action",
			"action_log", row,
			tint.Err(err),
		)
	}
}

// neutralizeView performs the best-effort terminal cleanup of a rendered
// view: try a final edit, swallow further failures.
func (w *Workflows) neutralizeView(
	ctx context.Context,
	ref MessageRef,
	payload ViewPayload,
) {
	if err := w.platform.EditView(ctx, ref, payload); err != nil {
		w.logger.WarnContext(
			ctx,
			"error neutralizing view",
			"ref", ref,
			tint.Err(err),
		)
	}
}

// authorOnly returns an author filter admitting only the given user.
func authorOnly(userID string) func(string) bool {
	return func(id string) bool { return id == userID }
}

// anyAuthor admits all users; used where the permission gate is applied
// per action instead (confession approval).
func anyAuthor(string) bool { return true }

// opFilter admits component actions whose decoded op is in the given
// set.
func opFilter(ops ...string) func(Action) bool {
	return func(a Action) bool {
		if a.Kind == ActionMessage {
			return false
		}
		for _, op := range ops {
			if a.Op == op {
				return true
			}
		}
		return false
	}
}

// messageFilter admits plain-message actions.
func messageFilter(a Action) bool {
	return a.Kind == ActionMessage
}
