package hearth

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
)

// StarboardField identifies which starboard setting a prompt view is
// editing.
type StarboardField string

const (
	StarboardFieldChannel      StarboardField = "channel"
	StarboardFieldEmoji        StarboardField = "emoji"
	StarboardFieldSuccessEmoji StarboardField = "success_emoji"
	StarboardFieldThreshold    StarboardField = "threshold"
	StarboardFieldBlacklist    StarboardField = "blacklist"
)

// fieldForOp maps a home-view button to the field its prompt edits.
func fieldForOp(op string) (StarboardField, bool) {
	switch op {
	case opStarboardChannel:
		return StarboardFieldChannel, true
	case opStarboardEmoji:
		return StarboardFieldEmoji, true
	case opStarboardSuccess:
		return StarboardFieldSuccessEmoji, true
	case opStarboardThreshold:
		return StarboardFieldThreshold, true
	case opStarboardBlacklist:
		return StarboardFieldBlacklist, true
	}
	return "", false
}

// StartStarboardEditor opens the interactive starboard editor. Same
// session shape as the settings menu: one guarded transition per
// collected action, per-iteration collectors, timeout neutralization.
func (w *Workflows) StartStarboardEditor(
	ctx context.Context,
	guildID string,
	channelID string,
	invokerID string,
) (*Session, error) {
	state, err := w.store.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}

	viewID := uuid.NewString()
	ref, err := w.platform.SendView(
		ctx,
		channelID,
		renderStarboardHome(*state, viewID),
	)
	if err != nil {
		return nil, err
	}

	sess := w.sessions.Create(
		ctx,
		guildID,
		viewID,
		invokerID,
		w.cfg.MenuTimeout+time.Minute,
	)
	sess.SetCleanup(
		func(c context.Context) {
			w.neutralizeView(c, ref, renderStarboardDone(true))
		},
	)

	go w.runStarboardEditor(WithLogger(
		context.WithoutCancel(ctx),
		contextOrDefaultLogger(ctx, w.logger).With("view_id", viewID),
	), sess, ref)

	return sess, nil
}

func starboardScreenOps(field StarboardField) []string {
	if field == "" {
		return []string{
			opStarboardChannel,
			opStarboardEmoji,
			opStarboardSuccess,
			opStarboardThreshold,
			opStarboardBlacklist,
			opStarboardDone,
		}
	}
	ops := []string{opStarboardHome, opStarboardDone}
	if field == StarboardFieldChannel {
		ops = append(ops, opChannelPick)
	}
	return ops
}

// runStarboardEditor is the starboard session's event loop. field is the
// current screen: empty for home, otherwise the prompt being edited.
func (w *Workflows) runStarboardEditor(
	ctx context.Context,
	sess *Session,
	ref MessageRef,
) {
	log := contextOrDefaultLogger(ctx, w.logger)
	var field StarboardField

	for !sess.Closed() {
		comp := w.hub.Open(
			CollectorOptions{
				ViewID:       sess.ViewID,
				AuthorFilter: authorOnly(sess.AuthorID),
				KindFilter:   opFilter(starboardScreenOps(field)...),
				Timeout:      w.cfg.MenuTimeout,
			},
		)
		sess.AddCollector(comp)

		var msgColl *Collector
		var msgActions <-chan Action
		if field != "" && field != StarboardFieldChannel {
			msgColl = w.hub.Open(
				CollectorOptions{
					ChannelID:    ref.ChannelID,
					AuthorFilter: authorOnly(sess.AuthorID),
					KindFilter:   messageFilter,
					Timeout:      w.cfg.MenuTimeout,
				},
			)
			sess.AddCollector(msgColl)
			msgActions = msgColl.Actions()
		}

		var a Action
		var delivered bool
		select {
		case <-ctx.Done():
			comp.Stop()
			if msgColl != nil {
				msgColl.Stop()
			}
			sess.Close(context.WithoutCancel(ctx))
			return
		case a, delivered = <-comp.Actions():
		case a, delivered = <-msgActions:
		}

		comp.Stop()
		if msgColl != nil {
			msgColl.Stop()
		}

		if !delivered {
			log.InfoContext(ctx, "starboard session ended", "session", sess)
			sess.Close(ctx)
			return
		}

		_ = w.platform.Acknowledge(ctx, a)
		w.recordAction(ctx, sess.GuildID, a)

		next, done, err := w.applyStarboardAction(ctx, sess, field, a)
		if err != nil {
			w.reportActionError(ctx, a, err)
			next = field
		}

		if done {
			sess.SetCleanup(
				func(c context.Context) {
					w.neutralizeView(c, ref, renderStarboardDone(false))
				},
			)
			sess.Close(ctx)
			return
		}

		var payload ViewPayload
		if next == "" {
			state, getErr := w.store.Get(ctx, sess.GuildID)
			if getErr != nil {
				w.reportActionError(ctx, a, getErr)
				sess.Close(ctx)
				return
			}
			payload = renderStarboardHome(*state, sess.ViewID)
		} else {
			payload = renderStarboardPrompt(next, sess.ViewID)
		}
		if editErr := w.platform.EditView(ctx, ref, payload); editErr != nil {
			w.reportActionError(ctx, a, editErr)
			sess.SetCleanup(nil)
			sess.Close(ctx)
			return
		}
		field = next
	}
}

// applyStarboardAction maps one collected action to at most one state
// transition, returning the next screen. A successful field edit sends
// the moderator back to the home view.
func (w *Workflows) applyStarboardAction(
	ctx context.Context,
	sess *Session,
	field StarboardField,
	a Action,
) (next StarboardField, done bool, err error) {
	next = field

	switch a.Op {
	case opStarboardDone:
		return field, true, nil
	case opStarboardHome:
		return "", false, nil
	}

	if f, ok := fieldForOp(a.Op); ok {
		return f, false, nil
	}

	if permErr := w.requireManagement(ctx, a, sess.GuildID); permErr != nil {
		return field, false, permErr
	}

	switch {
	case a.Op == opChannelPick && len(a.Values) == 1:
		err = w.transition(ctx, sess, func(state *GuildState) error {
			state.Channels.Starboard = a.Values[0]
			return nil
		})

	case a.Kind == ActionMessage && field != "":
		err = w.transition(ctx, sess, func(state *GuildState) error {
			return applyStarboardReply(&state.Starboard, field, a.Content)
		})

	default:
		return field, false, ValidationError{
			Field:  "action",
			Reason: fmt.Sprintf("unexpected action %q", a.Op),
		}
	}

	if err != nil {
		return field, false, err
	}
	return "", false, nil
}

// applyStarboardReply parses a free-text prompt reply into a starboard
// config mutation.
func applyStarboardReply(sb *StarboardConfig, field StarboardField, content string) error {
	content = strings.TrimSpace(content)

	switch field {
	case StarboardFieldEmoji:
		if content == "" {
			return ValidationError{Field: "emoji", Reason: "emoji cannot be empty"}
		}
		sb.Emoji = content
	case StarboardFieldSuccessEmoji:
		if content == "" {
			return ValidationError{Field: "success_emoji", Reason: "emoji cannot be empty"}
		}
		sb.SuccessEmoji = content
	case StarboardFieldThreshold:
		n, convErr := strconv.Atoi(content)
		if convErr != nil || n < 1 {
			return ValidationError{
				Field:  "threshold",
				Reason: fmt.Sprintf("%q is not a number >= 1", content),
			}
		}
		sb.Threshold = n
	case StarboardFieldBlacklist:
		if strings.EqualFold(content, "off") {
			sb.Blacklist.Enabled = false
			return nil
		}
		mentions := channelMentionPattern.FindAllStringSubmatch(content, -1)
		if len(mentions) == 0 {
			return ValidationError{
				Field:  "blacklist",
				Reason: "expected channel mentions, or `off`",
			}
		}
		sb.Blacklist.Enabled = true
		for _, m := range mentions {
			id := m[1]
			if i := indexOf(sb.Blacklist.ChannelIDs, id); i >= 0 {
				sb.Blacklist.ChannelIDs = append(
					sb.Blacklist.ChannelIDs[:i],
					sb.Blacklist.ChannelIDs[i+1:]...,
				)
			} else {
				sb.Blacklist.ChannelIDs = append(sb.Blacklist.ChannelIDs, id)
			}
		}
	default:
		return ValidationError{
			Field:  "field",
			Reason: fmt.Sprintf("unknown starboard field %q", field),
		}
	}
	return nil
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

// ReactionEvent is the normalized reaction-count update handed to the
// starboard scanner. NumReactions is the message's current count of the
// configured emoji, after the add or remove that produced the event.
type ReactionEvent struct {
	GuildID        string
	ChannelID      string
	MessageID      string
	AuthorUserID   string
	EmojiName      string
	NumReactions   int
	MessageContent string
	ImageURL       string
}

// guildLock serializes read-modify-write cycles for one guild's state
// outside of sessions (reaction events arrive concurrently).
func (w *Workflows) guildLock(guildID string) *sync.Mutex {
	mu, _ := w.guildLocks.LoadOrStore(guildID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// HandleReactionEvent applies one reaction-count update: repost or
// update the starboard entry at or above the threshold, remove it below,
// and maintain the leaderboard. The celebration message fires at most
// once per message, the first time it lands in the rendered top slice.
func (w *Workflows) HandleReactionEvent(ctx context.Context, ev ReactionEvent) error {
	log := contextOrDefaultLogger(ctx, w.logger).With(
		"guild_id", ev.GuildID,
		"message_id", ev.MessageID,
	)

	mu := w.guildLock(ev.GuildID)
	mu.Lock()
	defer mu.Unlock()

	state, err := w.store.Get(ctx, ev.GuildID)
	if err != nil {
		return err
	}

	sb := &state.Starboard
	switch {
	case !state.FeatureToggles.StarboardScanning:
		return nil
	case ev.EmojiName != sb.Emoji:
		return nil
	case sb.ChannelBlacklisted(ev.ChannelID):
		return nil
	case ev.ChannelID == state.Channels.Starboard:
		// never re-star the starboard channel itself
		return nil
	}

	if ev.NumReactions < sb.Threshold {
		removed, found := sb.RemoveMessage(ev.MessageID)
		if !found {
			return nil
		}
		if removed.StarboardMessageID != "" {
			delErr := w.platform.DeleteView(
				ctx,
				MessageRef{
					ChannelID: state.Channels.Starboard,
					MessageID: removed.StarboardMessageID,
				},
			)
			if delErr != nil {
				log.WarnContext(ctx, "error deleting starboard post", tint.Err(delErr))
			}
		}
		return w.store.Save(ctx, state)
	}

	if state.Channels.Starboard == "" {
		log.DebugContext(ctx, "starboard channel unset, skipping repost")
		return nil
	}

	post := StarboardPost{
		MessageID:    ev.MessageID,
		ChannelID:    ev.ChannelID,
		NumReactions: ev.NumReactions,
	}
	existing := -1
	for i, p := range sb.Posts {
		if p.MessageID == ev.MessageID {
			existing = i
			break
		}
	}
	if existing >= 0 {
		post.StarboardMessageID = sb.Posts[existing].StarboardMessageID
		editErr := w.platform.EditView(
			ctx,
			MessageRef{
				ChannelID: state.Channels.Starboard,
				MessageID: post.StarboardMessageID,
			},
			renderStarboardRepost(*state, ev),
		)
		if editErr != nil {
			log.WarnContext(ctx, "error updating starboard post", tint.Err(editErr))
		}
	} else {
		ref, sendErr := w.platform.SendView(
			ctx,
			state.Channels.Starboard,
			renderStarboardRepost(*state, ev),
		)
		if sendErr != nil {
			return sendErr
		}
		post.StarboardMessageID = ref.MessageID
		state.Counters.NumStarboardPosts++
	}
	sb.UpsertPost(post)

	enteredTopTen, _ := sb.RecordReactions(
		ev.MessageID,
		ev.ChannelID,
		ev.AuthorUserID,
		ev.NumReactions,
	)

	if err = w.store.Save(ctx, state); err != nil {
		return err
	}

	if enteredTopTen {
		_, sendErr := w.platform.SendView(
			ctx,
			state.Channels.Starboard,
			renderCelebration(*state, ev),
		)
		if sendErr != nil {
			log.WarnContext(ctx, "error sending celebration", tint.Err(sendErr))
		}
	}
	return nil
}

// PostLeaderboard sends the current top list to a channel.
func (w *Workflows) PostLeaderboard(
	ctx context.Context,
	guildID string,
	channelID string,
) error {
	state, err := w.store.Get(ctx, guildID)
	if err != nil {
		return err
	}
	_, err = w.platform.SendView(ctx, channelID, renderLeaderboard(*state))
	return err
}
