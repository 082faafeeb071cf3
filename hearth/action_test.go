package hearth

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomIDRoundTrip(t *testing.T) {
	customID := encodeCustomID(opFeatureToggle, "view-123")
	op, viewID, err := decodeCustomID(customID)
	require.NoError(t, err)
	assert.Equal(t, opFeatureToggle, op)
	assert.Equal(t, "view-123", viewID)
}

func TestDecodeCustomIDInvalid(t *testing.T) {
	for _, customID := range []string{"", "noseparator", ":missing-op", "missing-view:"} {
		_, _, err := decodeCustomID(customID)
		assert.Error(t, err, "expected error for %q", customID)
	}
}

func TestActionFromComponent(t *testing.T) {
	i := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:      discordgo.InteractionMessageComponent,
			ChannelID: "chan-1",
			Member: &discordgo.Member{
				User: &discordgo.User{ID: "user-1"},
			},
			Data: discordgo.MessageComponentInteractionData{
				CustomID:      encodeCustomID(opCommandToggle, "view-9"),
				ComponentType: discordgo.SelectMenuComponent,
				Values:        []string{"confess"},
			},
		},
	}

	a, err := actionFromComponent(i)
	require.NoError(t, err)
	assert.Equal(t, ActionSelect, a.Kind)
	assert.Equal(t, "user-1", a.UserID)
	assert.Equal(t, opCommandToggle, a.Op)
	assert.Equal(t, "view-9", a.ViewID)
	assert.Equal(t, []string{"confess"}, a.Values)
	assert.Equal(t, "chan-1", a.ChannelID)
	assert.NotNil(t, a.interaction)
}

func TestActionFromComponentButton(t *testing.T) {
	i := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:      discordgo.InteractionMessageComponent,
			ChannelID: "chan-1",
			User:      &discordgo.User{ID: "user-2"},
			Data: discordgo.MessageComponentInteractionData{
				CustomID:      encodeCustomID(opSettingsDone, "view-1"),
				ComponentType: discordgo.ButtonComponent,
			},
		},
	}

	a, err := actionFromComponent(i)
	require.NoError(t, err)
	assert.Equal(t, ActionButton, a.Kind)
	assert.Equal(t, "user-2", a.UserID)
}

func TestActionFromComponentBadCustomID(t *testing.T) {
	i := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type: discordgo.InteractionMessageComponent,
			User: &discordgo.User{ID: "user-1"},
			Data: discordgo.MessageComponentInteractionData{
				CustomID: "garbage",
			},
		},
	}
	_, err := actionFromComponent(i)
	assert.Error(t, err)
}

func TestActionFromMessage(t *testing.T) {
	m := &discordgo.MessageCreate{
		Message: &discordgo.Message{
			Content:   "starboard <#555>",
			ChannelID: "chan-7",
			Author:    &discordgo.User{ID: "user-3"},
		},
	}
	a := actionFromMessage(m)
	assert.Equal(t, ActionMessage, a.Kind)
	assert.Equal(t, "user-3", a.UserID)
	assert.Equal(t, "starboard <#555>", a.Content)
	assert.Equal(t, "chan-7", a.ChannelID)
	assert.Empty(t, a.ViewID)
}
