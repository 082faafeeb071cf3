package hearth

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"golang.org/x/time/rate"
)

// ViewPayload is the display payload produced by the view renderers:
// text, structured embeds, and the available action components.
type ViewPayload struct {
	Content    string
	Embeds     []*discordgo.MessageEmbed
	Components []discordgo.MessageComponent
}

// MessageRef identifies a rendered view message on the platform.
type MessageRef struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

func (m MessageRef) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("channel_id", m.ChannelID),
		slog.String("message_id", m.MessageID),
	)
}

// Platform is the chat-platform boundary consumed by the workflow
// controllers. All operations are fallible; failures surface as
// PlatformError.
type Platform interface {
	// SendView posts a new view message to a channel
	SendView(ctx context.Context, channelID string, p ViewPayload) (MessageRef, error)

	// EditView replaces the content/components of a rendered view
	EditView(ctx context.Context, ref MessageRef, p ViewPayload) error

	// DeleteView removes a rendered view
	DeleteView(ctx context.Context, ref MessageRef) error

	// Acknowledge defers the component interaction so Discord doesn't
	// mark it failed while the transition runs
	Acknowledge(ctx context.Context, a Action) error

	// NotifyEphemeral sends an ephemeral notice visible only to the
	// acting user (permission refusals, validation errors)
	NotifyEphemeral(ctx context.Context, a Action, content string) error
}

// PermissionChecker is the permission boundary: whether a user holds
// guild-management permission in a guild. Checked before the session
// guard is acquired, so unauthorized presses never block others.
type PermissionChecker interface {
	HasGuildManagement(ctx context.Context, userID string, guildID string) (bool, error)
}

// DiscordSessionHandler defines the subset of discordgo.Session used by
// the platform implementation, to enable testing/mocking.
type DiscordSessionHandler interface {
	Open() error
	Close() error

	ChannelMessageSendComplex(
		channelID string,
		data *discordgo.MessageSend,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	ChannelMessageEditComplex(
		m *discordgo.MessageEdit,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	ChannelMessageDelete(
		channelID string,
		messageID string,
		options ...discordgo.RequestOption,
	) error

	ChannelMessage(
		channelID string,
		messageID string,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	InteractionRespond(
		interaction *discordgo.Interaction,
		resp *discordgo.InteractionResponse,
		options ...discordgo.RequestOption,
	) error

	UserChannelPermissions(
		userID string,
		channelID string,
		fetchOptions ...discordgo.RequestOption,
	) (int64, error)

	GuildMember(
		guildID string,
		userID string,
		options ...discordgo.RequestOption,
	) (*discordgo.Member, error)

	Guild(
		guildID string,
		options ...discordgo.RequestOption,
	) (*discordgo.Guild, error)

	AddHandler(handler any) func()

	ApplicationCommandBulkOverwrite(
		appID string,
		guildID string,
		commands []*discordgo.ApplicationCommand,
		options ...discordgo.RequestOption,
	) ([]*discordgo.ApplicationCommand, error)
}

// discordPlatform implements Platform on a DiscordSessionHandler, with a
// token-bucket limit on outbound view operations.
type discordPlatform struct {
	session DiscordSessionHandler
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewDiscordPlatform wraps a Discord session as a Platform. sendsPerSec
// and burst configure the outbound rate limiter.
func NewDiscordPlatform(
	session DiscordSessionHandler,
	log *slog.Logger,
	sendsPerSec float64,
	burst int,
) Platform {
	if log == nil {
		log = slog.Default()
	}
	if sendsPerSec <= 0 {
		sendsPerSec = DefaultPlatformSendsPerSecond
	}
	if burst <= 0 {
		burst = DefaultPlatformSendBurst
	}
	return &discordPlatform{
		session: session,
		limiter: rate.NewLimiter(rate.Limit(sendsPerSec), burst),
		logger:  log.With(loggerNameKey, "platform"),
	}
}

func (d *discordPlatform) SendView(
	ctx context.Context,
	channelID string,
	p ViewPayload,
) (MessageRef, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return MessageRef{}, PlatformError{Op: "send", Err: err}
	}
	msg, err := d.session.ChannelMessageSendComplex(
		channelID,
		&discordgo.MessageSend{
			Content:    p.Content,
			Embeds:     p.Embeds,
			Components: p.Components,
		},
	)
	if err != nil {
		d.logger.ErrorContext(
			ctx,
			"error sending view",
			"channel_id", channelID,
			tint.Err(err),
		)
		return MessageRef{}, PlatformError{Op: "send", Err: err}
	}
	return MessageRef{ChannelID: channelID, MessageID: msg.ID}, nil
}

func (d *discordPlatform) EditView(
	ctx context.Context,
	ref MessageRef,
	p ViewPayload,
) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return PlatformError{Op: "edit", Err: err}
	}
	edit := discordgo.NewMessageEdit(ref.ChannelID, ref.MessageID)
	edit.SetContent(p.Content)
	edit.SetEmbeds(p.Embeds)
	edit.Components = &p.Components
	if _, err := d.session.ChannelMessageEditComplex(edit); err != nil {
		d.logger.ErrorContext(
			ctx,
			"error editing view",
			"ref", ref,
			tint.Err(err),
		)
		return PlatformError{Op: "edit", Err: err}
	}
	return nil
}

func (d *discordPlatform) DeleteView(
	ctx context.Context,
	ref MessageRef,
) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return PlatformError{Op: "delete", Err: err}
	}
	if err := d.session.ChannelMessageDelete(
		ref.ChannelID,
		ref.MessageID,
	); err != nil {
		d.logger.ErrorContext(
			ctx,
			"error deleting view",
			"ref", ref,
			tint.Err(err),
		)
		return PlatformError{Op: "delete", Err: err}
	}
	return nil
}

func (d *discordPlatform) Acknowledge(ctx context.Context, a Action) error {
	if a.interaction == nil {
		return nil
	}
	err := d.session.InteractionRespond(
		a.interaction,
		&discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredMessageUpdate,
		},
	)
	if err != nil {
		d.logger.WarnContext(
			ctx,
			"error acknowledging interaction",
			"action", a,
			tint.Err(err),
		)
		return PlatformError{Op: "ack", Err: err}
	}
	return nil
}

func (d *discordPlatform) NotifyEphemeral(
	ctx context.Context,
	a Action,
	content string,
) error {
	if a.interaction == nil {
		// message-kind actions have no interaction to respond to; fall
		// back to a plain reply in the originating channel
		if a.ChannelID == "" {
			return nil
		}
		if err := d.limiter.Wait(ctx); err != nil {
			return PlatformError{Op: "notify", Err: err}
		}
		_, err := d.session.ChannelMessageSendComplex(
			a.ChannelID,
			&discordgo.MessageSend{Content: content},
		)
		if err != nil {
			d.logger.WarnContext(
				ctx,
				"error sending notice",
				"action", a,
				tint.Err(err),
			)
			return PlatformError{Op: "notify", Err: err}
		}
		return nil
	}
	err := d.session.InteractionRespond(
		a.interaction,
		&discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: content,
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		},
	)
	if err != nil {
		d.logger.WarnContext(
			ctx,
			"error sending ephemeral notice",
			"action", a,
			tint.Err(err),
		)
		return PlatformError{Op: "notify", Err: err}
	}
	return nil
}

// discordPermissionChecker implements PermissionChecker against guild
// member permissions.
type discordPermissionChecker struct {
	session DiscordSessionHandler
	logger  *slog.Logger
}

// NewDiscordPermissionChecker returns a PermissionChecker backed by live
// guild member data.
func NewDiscordPermissionChecker(
	session DiscordSessionHandler,
	log *slog.Logger,
) PermissionChecker {
	if log == nil {
		log = slog.Default()
	}
	return &discordPermissionChecker{
		session: session,
		logger:  log.With(loggerNameKey, "permissions"),
	}
}

func (d *discordPermissionChecker) HasGuildManagement(
	ctx context.Context,
	userID string,
	guildID string,
) (bool, error) {
	guild, err := d.session.Guild(guildID)
	if err != nil {
		return false, PlatformError{Op: "guild", Err: err}
	}
	if guild.OwnerID == userID {
		return true, nil
	}

	member, err := d.session.GuildMember(guildID, userID)
	if err != nil {
		return false, PlatformError{Op: "member", Err: err}
	}

	var permissions int64
	for _, roleID := range member.Roles {
		for _, role := range guild.Roles {
			if role.ID == roleID {
				permissions |= role.Permissions
			}
		}
	}
	if permissions&discordgo.PermissionAdministrator != 0 {
		return true, nil
	}
	return permissions&discordgo.PermissionManageServer != 0, nil
}
