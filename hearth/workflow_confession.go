package hearth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
)

// SubmitConfession validates and routes a new confession. With approval
// required it lands in the approval queue and an approval session opens
// in the moderation channel; otherwise it posts immediately. Returns
// whether the confession was queued for approval.
func (w *Workflows) SubmitConfession(
	ctx context.Context,
	guildID string,
	p PendingConfession,
) (queued bool, err error) {
	if p.MessageText == "" && p.ImageURL == "" {
		return false, ValidationError{
			Field:  "confession",
			Reason: "confession cannot be empty",
		}
	}

	mu := w.guildLock(guildID)
	mu.Lock()

	state, err := w.store.Get(ctx, guildID)
	if err != nil {
		mu.Unlock()
		return false, err
	}

	switch {
	case !state.Confession.Enabled:
		mu.Unlock()
		return false, ValidationError{
			Field:  "confession",
			Reason: "confessions are not enabled in this server",
		}
	case state.Channels.Confession == "":
		mu.Unlock()
		return false, ValidationError{
			Field:  "confession",
			Reason: "no confession channel is configured",
		}
	case state.ConfessorBanned(p.AuthorUserID):
		mu.Unlock()
		return false, ValidationError{
			Field:  "confession",
			Reason: "you cannot submit confessions in this server",
		}
	}

	if !state.Confession.ApprovalRequired {
		state.Counters.NumConfessions++
		number := state.Counters.NumConfessions
		if err = w.store.Save(ctx, state); err != nil {
			mu.Unlock()
			return false, err
		}
		mu.Unlock()
		_, err = w.platform.SendView(
			ctx,
			state.Channels.Confession,
			renderConfessionPost(p, number),
		)
		return false, err
	}

	if state.Channels.ConfessionApproval == "" {
		mu.Unlock()
		return false, ValidationError{
			Field:  "confession",
			Reason: "no approval channel is configured",
		}
	}

	id := state.EnqueueConfession(p)
	if err = w.store.Save(ctx, state); err != nil {
		mu.Unlock()
		return false, err
	}
	mu.Unlock()

	_, err = w.StartApproval(ctx, guildID, id)
	return true, err
}

// StartApproval posts the approval view for one queued confession and
// opens its session. Any moderator can press the buttons; the permission
// gate runs per action, not per session author.
func (w *Workflows) StartApproval(
	ctx context.Context,
	guildID string,
	confessionID string,
) (*Session, error) {
	state, err := w.store.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}
	pending, ok := state.Confession.ApprovalQueue[confessionID]
	if !ok {
		return nil, StaleReferenceError{Kind: "confession", ID: confessionID}
	}

	viewID := uuid.NewString()
	ref, err := w.platform.SendView(
		ctx,
		state.Channels.ConfessionApproval,
		renderPendingConfession(pending, viewID),
	)
	if err != nil {
		return nil, err
	}

	sess := w.sessions.Create(
		ctx,
		guildID,
		viewID,
		pending.AuthorUserID,
		w.cfg.ApprovalTimeout+time.Minute,
	)
	sess.SetCleanup(
		func(c context.Context) {
			w.neutralizeView(c, ref, renderConfessionResolved("", 0, true))
		},
	)

	go w.runApproval(WithLogger(
		context.WithoutCancel(ctx),
		contextOrDefaultLogger(ctx, w.logger).With(
			"view_id", viewID,
			"confession_id", confessionID,
		),
	), sess, ref, confessionID)

	return sess, nil
}

// runApproval is the approval session's event loop. A timed-out session
// leaves the confession queued; a resolving action removes it exactly
// once, and any later press for the same entry reports "already
// resolved" instead of re-applying.
func (w *Workflows) runApproval(
	ctx context.Context,
	sess *Session,
	ref MessageRef,
	confessionID string,
) {
	log := contextOrDefaultLogger(ctx, w.logger)

	for !sess.Closed() {
		comp := w.hub.Open(
			CollectorOptions{
				ViewID:       sess.ViewID,
				AuthorFilter: anyAuthor,
				KindFilter: opFilter(
					opConfessionApprove,
					opConfessionDeny,
					opConfessionBan,
				),
				Timeout: w.cfg.ApprovalTimeout,
			},
		)
		sess.AddCollector(comp)

		var a Action
		var delivered bool
		select {
		case <-ctx.Done():
			comp.Stop()
			sess.Close(context.WithoutCancel(ctx))
			return
		case a, delivered = <-comp.Actions():
		}
		comp.Stop()

		if !delivered {
			// timed out: confession stays queued for a later sweep
			log.InfoContext(ctx, "approval session ended", "session", sess)
			sess.Close(ctx)
			return
		}

		_ = w.platform.Acknowledge(ctx, a)
		w.recordAction(ctx, sess.GuildID, a)

		if permErr := w.requireManagement(ctx, a, sess.GuildID); permErr != nil {
			w.reportActionError(ctx, a, permErr)
			continue
		}

		resolved, err := w.resolveConfession(ctx, sess, ref, confessionID, a)
		if err != nil {
			w.reportActionError(ctx, a, err)
			if errors.Is(err, ErrAlreadyResolved) {
				// resolved through another path: leave the view alone
				sess.SetCleanup(nil)
				sess.Close(ctx)
				return
			}
			continue
		}
		if resolved {
			return
		}
	}
}

// resolveConfession applies one approve, deny, or ban press. Deny first
// runs the nested reason sub-flow. On success the session is closed with
// the terminal view registered as its cleanup.
func (w *Workflows) resolveConfession(
	ctx context.Context,
	sess *Session,
	ref MessageRef,
	confessionID string,
	a Action,
) (resolved bool, err error) {
	var outcome string
	var reason string
	var number int
	var entry PendingConfession

	switch a.Op {
	case opConfessionApprove:
		outcome = ConfessionApproved
		err = w.transition(ctx, sess, func(state *GuildState) error {
			var approveErr error
			number, entry, approveErr = state.ApproveConfession(confessionID)
			return approveErr
		})

	case opConfessionDeny:
		outcome = ConfessionDenied
		reason = w.collectDenyReason(ctx, sess, ref, a.UserID)
		err = w.transition(ctx, sess, func(state *GuildState) error {
			var denyErr error
			entry, denyErr = state.DenyConfession(confessionID)
			return denyErr
		})

	case opConfessionBan:
		outcome = ConfessionEscalated
		err = w.transition(ctx, sess, func(state *GuildState) error {
			var banErr error
			entry, banErr = state.BanConfessor(confessionID)
			return banErr
		})

	default:
		return false, ValidationError{
			Field:  "action",
			Reason: fmt.Sprintf("unexpected action %q", a.Op),
		}
	}
	if err != nil {
		return false, err
	}

	w.recordDecision(ctx, ConfessionDecision{
		GuildID:         sess.GuildID,
		ConfessionID:    confessionID,
		ModeratorUserID: a.UserID,
		Outcome:         outcome,
		Reason:          reason,
		Number:          number,
	})

	if outcome == ConfessionApproved {
		state, getErr := w.store.Get(ctx, sess.GuildID)
		if getErr == nil && state.Channels.Confession != "" {
			_, sendErr := w.platform.SendView(
				ctx,
				state.Channels.Confession,
				renderConfessionPost(entry, number),
			)
			if sendErr != nil {
				contextOrDefaultLogger(ctx, w.logger).WarnContext(
					ctx,
					"error posting approved confession",
					tint.Err(sendErr),
				)
			}
		}
	}

	sess.SetCleanup(
		func(c context.Context) {
			w.neutralizeView(
				c,
				ref,
				renderConfessionResolved(outcome, number, false),
			)
		},
	)
	sess.Close(ctx)
	return true, nil
}

// collectDenyReason runs the nested deny sub-flow: swap the approval
// view for the reason prompt and wait for either a reply from the
// denying moderator or the skip button. A sub-flow timeout counts as a
// skip; the deny itself still proceeds.
func (w *Workflows) collectDenyReason(
	ctx context.Context,
	sess *Session,
	ref MessageRef,
	moderatorID string,
) string {
	if err := w.platform.EditView(
		ctx,
		ref,
		renderDenyReasonPrompt(sess.ViewID),
	); err != nil {
		return ""
	}

	skip := w.hub.Open(
		CollectorOptions{
			ViewID:       sess.ViewID,
			AuthorFilter: authorOnly(moderatorID),
			KindFilter:   opFilter(opDenyReasonSkip),
			Timeout:      w.cfg.ConfirmTimeout,
		},
	)
	replies := w.hub.Open(
		CollectorOptions{
			ChannelID:    ref.ChannelID,
			AuthorFilter: authorOnly(moderatorID),
			KindFilter:   messageFilter,
			Timeout:      w.cfg.ConfirmTimeout,
		},
	)
	sess.AddCollector(skip)
	sess.AddCollector(replies)
	defer skip.Stop()
	defer replies.Stop()

	select {
	case <-ctx.Done():
		return ""
	case a, ok := <-skip.Actions():
		if ok {
			_ = w.platform.Acknowledge(ctx, a)
		}
		return ""
	case a, ok := <-replies.Actions():
		if !ok {
			return ""
		}
		return a.Content
	}
}

// recordDecision appends one row to the decision audit table. A nil db
// disables auditing; write failures are logged, never surfaced.
func (w *Workflows) recordDecision(ctx context.Context, d ConfessionDecision) {
	if w.db == nil {
		return
	}
	if err := w.db.WithContext(ctx).Create(&d).Error; err != nil {
		w.logger.WarnContext(
			ctx,
			"error recording decision",
			"decision", d,
			tint.Err(err),
		)
	}
}
