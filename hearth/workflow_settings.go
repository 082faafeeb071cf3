package hearth

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Feature names, as they appear in select-menu values and slash-command
// options.
const (
	featureWordle         = "wordle"
	featureStarboard      = "starboard"
	featureLinkFix        = "linkfix"
	featureCustomResponse = "responses"
)

// Channel slot names accepted by the channel editor.
const (
	slotConfession = "confession"
	slotApprovals  = "approvals"
	slotStarboard  = "starboard"
	slotQOTD       = "qotd"
)

var channelMentionPattern = regexp.MustCompile(`<#(\d+)>`)

// settingsScreen enumerates the settings workflow's states. Done is not
// listed: it is terminal and tears the session down.
type settingsScreen string

const (
	screenHome     settingsScreen = "home"
	screenFeatures settingsScreen = "features"
	screenCommands settingsScreen = "commands"
	screenChannels settingsScreen = "channels"
)

// Get returns the named feature toggle's current value.
func (f FeatureToggles) Get(name string) (bool, error) {
	switch name {
	case featureWordle:
		return f.WordleScanning, nil
	case featureStarboard:
		return f.StarboardScanning, nil
	case featureLinkFix:
		return f.LinkEmbedFixes, nil
	case featureCustomResponse:
		return f.CustomResponseScanning, nil
	default:
		return false, ValidationError{
			Field:  "feature",
			Reason: fmt.Sprintf("unknown feature %q", name),
		}
	}
}

// Set assigns the named feature toggle. Returns false if the toggle
// already held the requested value.
func (f *FeatureToggles) Set(name string, enabled bool) (bool, error) {
	current, err := f.Get(name)
	if err != nil {
		return false, err
	}
	if current == enabled {
		return false, nil
	}
	switch name {
	case featureWordle:
		f.WordleScanning = enabled
	case featureStarboard:
		f.StarboardScanning = enabled
	case featureLinkFix:
		f.LinkEmbedFixes = enabled
	case featureCustomResponse:
		f.CustomResponseScanning = enabled
	}
	return true, nil
}

// SetFeature enables or disables a feature for a guild outside of any
// open settings session (the slash-command path). A no-op request (the
// toggle already holds the value) returns a ValidationError and performs
// no save.
func (w *Workflows) SetFeature(
	ctx context.Context,
	guildID string,
	actorID string,
	feature string,
	enabled bool,
) error {
	ok, err := w.perms.HasGuildManagement(ctx, actorID, guildID)
	if err != nil {
		return err
	}
	if !ok {
		return PermissionError{UserID: actorID, GuildID: guildID}
	}

	state, err := w.store.Get(ctx, guildID)
	if err != nil {
		return err
	}
	changed, err := state.FeatureToggles.Set(feature, enabled)
	if err != nil {
		return err
	}
	if !changed {
		return ValidationError{
			Field:  feature,
			Reason: fmt.Sprintf("already %s", onOff(enabled)),
		}
	}
	return w.store.Save(ctx, state)
}

// StartSettings opens an interactive settings session: renders the home
// view, registers the session, and starts the event loop. The returned
// session closes on Done, on collector timeout, or via the reaper.
func (w *Workflows) StartSettings(
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
		renderSettingsHome(*state, viewID),
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
			w.neutralizeView(c, ref, renderSettingsDone(true))
		},
	)

	go w.runSettings(WithLogger(
		context.WithoutCancel(ctx),
		contextOrDefaultLogger(ctx, w.logger).With("view_id", viewID),
	), sess, ref)

	return sess, nil
}

// settingsScreenOps returns the component ops valid on a screen. An op
// outside this set never reaches the controller.
func settingsScreenOps(screen settingsScreen) []string {
	switch screen {
	case screenHome:
		return []string{
			opSettingsFeatures,
			opSettingsCommands,
			opSettingsChannels,
			opSettingsDone,
		}
	case screenFeatures:
		return []string{opFeatureToggle, opSettingsHome, opSettingsDone}
	case screenCommands:
		return []string{opCommandToggle, opSettingsHome, opSettingsDone}
	case screenChannels:
		return []string{opChannelPick, opSettingsHome, opSettingsDone}
	default:
		return []string{opSettingsDone}
	}
}

// renderSettingsScreen renders the view for a screen from fresh state.
func (w *Workflows) renderSettingsScreen(
	ctx context.Context,
	sess *Session,
	screen settingsScreen,
) (ViewPayload, error) {
	state, err := w.store.Get(ctx, sess.GuildID)
	if err != nil {
		return ViewPayload{}, err
	}
	switch screen {
	case screenFeatures:
		return renderFeatureMenu(*state, sess.ViewID), nil
	case screenCommands:
		return renderCommandMenu(
			*state,
			w.registry,
			w.registryCommandNames(),
			sess.ViewID,
		), nil
	case screenChannels:
		return renderChannelEditor(*state, sess.ViewID), nil
	default:
		return renderSettingsHome(*state, sess.ViewID), nil
	}
}

// registryCommandNames lists the registry's known commands for the
// command menu, when the registry is the static in-memory kind.
func (w *Workflows) registryCommandNames() []string {
	static, ok := w.registry.(StaticCommandRegistry)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(static.DefaultOn))
	for name := range static.DefaultOn {
		names = append(names, name)
	}
	return names
}

// runSettings is the settings session's event loop: open collectors
// scoped to the current screen, wait for the next matching action, apply
// at most one transition, re-render, and reopen. Stopping the previous
// iteration's collectors discards any actions that stacked up during an
// in-flight transition.
func (w *Workflows) runSettings(
	ctx context.Context,
	sess *Session,
	ref MessageRef,
) {
	log := contextOrDefaultLogger(ctx, w.logger)
	screen := screenHome

	for !sess.Closed() {
		comp := w.hub.Open(
			CollectorOptions{
				ViewID:       sess.ViewID,
				AuthorFilter: authorOnly(sess.AuthorID),
				KindFilter:   opFilter(settingsScreenOps(screen)...),
				Timeout:      w.cfg.MenuTimeout,
			},
		)
		sess.AddCollector(comp)

		var msgColl *Collector
		var msgActions <-chan Action
		if screen == screenChannels {
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

		// stop siblings first, so one action never double-handles
		comp.Stop()
		if msgColl != nil {
			msgColl.Stop()
		}

		if !delivered {
			// collector ended with no action: timeout cleanup is the
			// session's registered view neutralization
			log.InfoContext(ctx, "settings session ended", "session", sess)
			sess.Close(ctx)
			return
		}

		_ = w.platform.Acknowledge(ctx, a)
		w.recordAction(ctx, sess.GuildID, a)

		next, done, err := w.applySettingsAction(ctx, sess, screen, a)
		if err != nil {
			w.reportActionError(ctx, a, err)
			next = screen
		}

		if done {
			sess.SetCleanup(
				func(c context.Context) {
					w.neutralizeView(c, ref, renderSettingsDone(false))
				},
			)
			sess.Close(ctx)
			return
		}

		payload, renderErr := w.renderSettingsScreen(ctx, sess, next)
		if renderErr != nil {
			log.ErrorContext(ctx, "error rendering settings view")
			w.reportActionError(ctx, a, renderErr)
			sess.Close(ctx)
			return
		}
		if editErr := w.platform.EditView(ctx, ref, payload); editErr != nil {
			// view likely deleted externally: best-effort cleanup and done
			w.reportActionError(ctx, a, editErr)
			sess.SetCleanup(nil)
			sess.Close(ctx)
			return
		}
		screen = next
	}
}

// applySettingsAction maps one collected action to at most one state
// transition, returning the next screen. Navigation ops mutate nothing
// and need no permission; mutating ops are permission-gated before the
// guard is touched.
func (w *Workflows) applySettingsAction(
	ctx context.Context,
	sess *Session,
	screen settingsScreen,
	a Action,
) (next settingsScreen, done bool, err error) {
	next = screen

	switch a.Op {
	case opSettingsDone:
		return screen, true, nil
	case opSettingsHome:
		return screenHome, false, nil
	case opSettingsFeatures:
		return screenFeatures, false, nil
	case opSettingsCommands:
		return screenCommands, false, nil
	case opSettingsChannels:
		return screenChannels, false, nil
	}

	if permErr := w.requireManagement(ctx, a, sess.GuildID); permErr != nil {
		return screen, false, permErr
	}

	switch {
	case a.Op == opFeatureToggle && len(a.Values) == 1:
		err = w.transition(ctx, sess, func(state *GuildState) error {
			current, getErr := state.FeatureToggles.Get(a.Values[0])
			if getErr != nil {
				return getErr
			}
			_, setErr := state.FeatureToggles.Set(a.Values[0], !current)
			return setErr
		})
		return screenFeatures, false, err

	case a.Op == opCommandToggle && len(a.Values) == 1:
		name := a.Values[0]
		err = w.transition(ctx, sess, func(state *GuildState) error {
			defaultOn, known := w.registry.DefaultEnabled(name)
			if !known {
				return ValidationError{
					Field:  "command",
					Reason: fmt.Sprintf("unknown command %q", name),
				}
			}
			if w.registry.GloballyDisabled(name) {
				return ValidationError{
					Field:  "command",
					Reason: fmt.Sprintf("command %q is disabled bot-wide", name),
				}
			}
			if state.CommandOverrides.IsEnabled(name, defaultOn) {
				state.CommandOverrides.Disable(name, defaultOn)
			} else {
				state.CommandOverrides.Enable(name, defaultOn)
			}
			return nil
		})
		return screenCommands, false, err

	case a.Op == opChannelPick && len(a.Values) == 1:
		err = w.transition(ctx, sess, func(state *GuildState) error {
			state.Channels.Confession = a.Values[0]
			return nil
		})
		return screenChannels, false, err

	case a.Kind == ActionMessage && screen == screenChannels:
		slot, channelID, parseErr := parseChannelAssignment(a.Content)
		if parseErr != nil {
			return screenChannels, false, parseErr
		}
		err = w.transition(ctx, sess, func(state *GuildState) error {
			return state.Channels.assign(slot, channelID)
		})
		return screenChannels, false, err
	}

	return screen, false, ValidationError{
		Field:  "action",
		Reason: fmt.Sprintf("unexpected action %q", a.Op),
	}
}

// assign sets the named channel slot.
func (c *ChannelSlots) assign(slot string, channelID string) error {
	switch slot {
	case slotConfession:
		c.Confession = channelID
	case slotApprovals:
		c.ConfessionApproval = channelID
	case slotStarboard:
		c.Starboard = channelID
	case slotQOTD:
		c.QOTD = channelID
	default:
		return ValidationError{
			Field:  "slot",
			Reason: fmt.Sprintf("unknown channel slot %q", slot),
		}
	}
	return nil
}

// parseChannelAssignment parses a "<slot> #channel" reply from the
// channel editor.
func parseChannelAssignment(content string) (slot string, channelID string, err error) {
	fields := strings.Fields(strings.TrimSpace(content))
	if len(fields) != 2 {
		return "", "", ValidationError{
			Field:  "channel",
			Reason: "expected `<slot> #channel`",
		}
	}
	match := channelMentionPattern.FindStringSubmatch(fields[1])
	if match == nil {
		return "", "", ValidationError{
			Field:  "channel",
			Reason: fmt.Sprintf("%q is not a channel mention", fields[1]),
		}
	}
	return strings.ToLower(fields[0]), match[1], nil
}
