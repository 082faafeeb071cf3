package hearth

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selectMenus(p ViewPayload) []discordgo.SelectMenu {
	var menus []discordgo.SelectMenu
	for _, c := range p.Components {
		row, ok := c.(discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if menu, ok := inner.(discordgo.SelectMenu); ok {
				menus = append(menus, menu)
			}
		}
	}
	return menus
}

func TestRenderChannelEditorUsesChannelSelect(t *testing.T) {
	payload := renderChannelEditor(GuildState{}, "view1")

	menus := selectMenus(payload)
	require.Len(t, menus, 1)
	assert.Equal(t, discordgo.ChannelSelectMenu, menus[0].MenuType)
	assert.Equal(t, encodeCustomID(opChannelPick, "view1"), menus[0].CustomID)
}

func TestRenderStarboardPromptChannelSelect(t *testing.T) {
	payload := renderStarboardPrompt(StarboardFieldChannel, "view1")

	menus := selectMenus(payload)
	require.Len(t, menus, 1)
	assert.Equal(t, discordgo.ChannelSelectMenu, menus[0].MenuType)
	assert.Equal(t, encodeCustomID(opChannelPick, "view1"), menus[0].CustomID)
}

func TestRenderStarboardPromptFreeTextFields(t *testing.T) {
	for _, field := range []StarboardField{
		StarboardFieldEmoji,
		StarboardFieldSuccessEmoji,
		StarboardFieldThreshold,
		StarboardFieldBlacklist,
	} {
		payload := renderStarboardPrompt(field, "view1")
		assert.Empty(t, selectMenus(payload), "field %q prompts for a reply", field)
	}
}
