package hearth

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// ActionKind discriminates the union of user actions a collector can
// deliver.
type ActionKind string

const (
	// ActionButton is a button component press
	ActionButton ActionKind = "button"

	// ActionSelect is a select-menu choice
	ActionSelect ActionKind = "select"

	// ActionMessage is a plain chat message
	ActionMessage ActionKind = "message"
)

// Action is one decoded user action. Component interactions are decoded
// once at the collector boundary, so workflow controllers switch on
// Op/Kind rather than raw custom_id strings.
type Action struct {
	Kind   ActionKind
	UserID string

	// Op is the decoded operation for button/select actions (the part of
	// the custom_id before the view ID)
	Op string

	// ViewID is the session view the component belongs to
	ViewID string

	// Values holds the selected values for select-menu actions
	Values []string

	// Content is the message text for plain-message actions
	Content string

	// ChannelID is where the action originated
	ChannelID string

	// interaction is retained for component actions so the platform can
	// acknowledge them
	interaction *discordgo.Interaction
}

func (a Action) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("kind", string(a.Kind)),
		slog.String("user_id", a.UserID),
		slog.String("op", a.Op),
		slog.String("view_id", a.ViewID),
		slog.String("channel_id", a.ChannelID),
	)
}

const customIDFormat = "%s:%s"

// encodeCustomID packs an operation name and session view ID into a
// component custom_id.
func encodeCustomID(op string, viewID string) string {
	return fmt.Sprintf(customIDFormat, op, viewID)
}

// decodeCustomID splits a component custom_id into its operation name
// and session view ID.
func decodeCustomID(customID string) (op string, viewID string, err error) {
	op, viewID, found := strings.Cut(customID, ":")
	if !found || op == "" || viewID == "" {
		return "", "", fmt.Errorf("invalid custom_id format: %q", customID)
	}
	return op, viewID, nil
}

// actionFromComponent decodes a component interaction into an Action.
func actionFromComponent(
	i *discordgo.InteractionCreate,
) (Action, error) {
	data := i.MessageComponentData()
	op, viewID, err := decodeCustomID(data.CustomID)
	if err != nil {
		return Action{}, err
	}

	kind := ActionButton
	switch data.ComponentType {
	case discordgo.SelectMenuComponent,
		discordgo.ChannelSelectMenuComponent,
		discordgo.UserSelectMenuComponent:
		kind = ActionSelect
	}

	u := i.User
	if u == nil && i.Member != nil {
		u = i.Member.User
	}
	if u == nil {
		return Action{}, fmt.Errorf("interaction has no user")
	}

	return Action{
		Kind:        kind,
		UserID:      u.ID,
		Op:          op,
		ViewID:      viewID,
		Values:      data.Values,
		ChannelID:   i.ChannelID,
		interaction: i.Interaction,
	}, nil
}

// actionFromMessage wraps an incoming chat message as an Action. The
// view ID is left empty: message actions are routed to collectors by
// channel, not by component ownership.
func actionFromMessage(m *discordgo.MessageCreate) Action {
	var userID string
	if m.Author != nil {
		userID = m.Author.ID
	}
	return Action{
		Kind:      ActionMessage,
		UserID:    userID,
		Content:   m.Content,
		ChannelID: m.ChannelID,
	}
}
