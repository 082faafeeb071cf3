package hearth

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDiscordSession records the Discord calls the platform makes.
type stubDiscordSession struct {
	sentChannels []string
	sent         []*discordgo.MessageSend
	responses    []*discordgo.InteractionResponse
}

func (s *stubDiscordSession) Open() error  { return nil }
func (s *stubDiscordSession) Close() error { return nil }

func (s *stubDiscordSession) ChannelMessageSendComplex(
	channelID string,
	data *discordgo.MessageSend,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	s.sentChannels = append(s.sentChannels, channelID)
	s.sent = append(s.sent, data)
	return &discordgo.Message{ID: "m1", ChannelID: channelID}, nil
}

func (s *stubDiscordSession) ChannelMessageEditComplex(
	m *discordgo.MessageEdit,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return &discordgo.Message{ID: m.ID, ChannelID: m.Channel}, nil
}

func (s *stubDiscordSession) ChannelMessageDelete(
	string, string, ...discordgo.RequestOption,
) error {
	return nil
}

func (s *stubDiscordSession) ChannelMessage(
	channelID string,
	messageID string,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return &discordgo.Message{ID: messageID, ChannelID: channelID}, nil
}

func (s *stubDiscordSession) InteractionRespond(
	_ *discordgo.Interaction,
	resp *discordgo.InteractionResponse,
	_ ...discordgo.RequestOption,
) error {
	s.responses = append(s.responses, resp)
	return nil
}

func (s *stubDiscordSession) UserChannelPermissions(
	string, string, ...discordgo.RequestOption,
) (int64, error) {
	return 0, nil
}

func (s *stubDiscordSession) GuildMember(
	string, string, ...discordgo.RequestOption,
) (*discordgo.Member, error) {
	return &discordgo.Member{}, nil
}

func (s *stubDiscordSession) Guild(
	guildID string,
	_ ...discordgo.RequestOption,
) (*discordgo.Guild, error) {
	return &discordgo.Guild{ID: guildID}, nil
}

func (s *stubDiscordSession) AddHandler(any) func() {
	return func() {}
}

func (s *stubDiscordSession) ApplicationCommandBulkOverwrite(
	_ string,
	_ string,
	commands []*discordgo.ApplicationCommand,
	_ ...discordgo.RequestOption,
) ([]*discordgo.ApplicationCommand, error) {
	return commands, nil
}

func TestNotifyEphemeralComponentAction(t *testing.T) {
	session := &stubDiscordSession{}
	platform := NewDiscordPlatform(session, nil, 0, 0)

	a := Action{
		Kind:        ActionButton,
		UserID:      "user1",
		ChannelID:   "chan1",
		interaction: &discordgo.Interaction{ID: "i1"},
	}
	require.NoError(t, platform.NotifyEphemeral(context.Background(), a, "no can do"))

	require.Len(t, session.responses, 1)
	require.NotNil(t, session.responses[0].Data)
	assert.Equal(t, "no can do", session.responses[0].Data.Content)
	assert.Equal(
		t,
		discordgo.MessageFlagsEphemeral,
		session.responses[0].Data.Flags,
	)
	assert.Empty(t, session.sent, "component notices go through the interaction")
}

func TestNotifyEphemeralMessageAction(t *testing.T) {
	session := &stubDiscordSession{}
	platform := NewDiscordPlatform(session, nil, 0, 0)

	a := Action{
		Kind:      ActionMessage,
		UserID:    "user1",
		ChannelID: "chan1",
		Content:   "threshold lots",
	}
	require.NoError(t, platform.NotifyEphemeral(context.Background(), a, "not a number"))

	require.Len(t, session.sent, 1)
	assert.Equal(t, "chan1", session.sentChannels[0])
	assert.Equal(t, "not a number", session.sent[0].Content)
	assert.Empty(t, session.responses)
}

func TestNotifyEphemeralNoTarget(t *testing.T) {
	session := &stubDiscordSession{}
	platform := NewDiscordPlatform(session, nil, 0, 0)

	a := Action{Kind: ActionMessage, UserID: "user1"}
	require.NoError(t, platform.NotifyEphemeral(context.Background(), a, "lost"))

	assert.Empty(t, session.sent)
	assert.Empty(t, session.responses)
}
