package hearth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/go-playground/validator/v10"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Slash command names. Per-guild enablement is checked against these via
// CommandOverrides.
const (
	cmdConfess     = "confess"
	cmdSettings    = "settings"
	cmdStarboard   = "starboard"
	cmdLeaderboard = "leaderboard"
)

// DefaultCommandRegistry lists the bot's commands and their
// default-enabled flags.
func DefaultCommandRegistry() StaticCommandRegistry {
	return StaticCommandRegistry{
		DefaultOn: map[string]bool{
			cmdConfess:     true,
			cmdSettings:    true,
			cmdStarboard:   true,
			cmdLeaderboard: true,
		},
	}
}

// Hearth is the bot: the Discord gateway connection, the guild state
// store, the workflow controllers, and the admin API.
type Hearth struct {
	config     *Config
	logger     *slog.Logger
	logHandler slog.Handler

	db        *gorm.DB
	session   DiscordSessionHandler
	store     GuildStateStore
	platform  Platform
	perms     PermissionChecker
	registry  StaticCommandRegistry
	workflows *Workflows
	api       *API

	removeHandlers []func()
}

// New assembles a Hearth instance from config. The database and Discord
// gateway are not touched until Run.
func New(config *Config) (*Hearth, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}

	switch config.DatabaseType {
	case dbTypeSQLite, dbTypePostgres:
		//
	default:
		return nil, errors.New("invalid database type (must be 'sqlite' or 'postgres')")
	}

	h := &Hearth{
		config:   config,
		registry: DefaultCommandRegistry(),
	}

	h.logHandler = newLogHandler(config.LogLevel)
	h.logger = slog.New(h.logHandler)
	slog.SetDefault(h.logger)

	discordgo.Logger = discordgoLoggerFunc(
		context.Background(),
		newLogHandler(config.Discord.DiscordGoLogLevel).WithAttrs(
			[]slog.Attr{slog.String(loggerNameKey, "discordgo")},
		),
	)

	session, err := discordgo.New(fmt.Sprintf("Bot %s", config.Discord.Token))
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	session.Identify.Intents = config.Discord.GatewayIntents
	session.Client = config.HTTPClient
	h.session = session

	return h, nil
}

// ValidateConfig checks the config tree's binding tags.
func (h *Hearth) ValidateConfig() error {
	return structValidator.Struct(h.config)
}

// Workflows exposes the controller environment, once Run has assembled
// it.
func (h *Hearth) Workflows() *Workflows {
	return h.workflows
}

// init wires the persistence and controller layers. Split from Run so
// tests can assemble a Hearth without a gateway connection.
func (h *Hearth) init(ctx context.Context) error {
	if h.db == nil {
		db, err := CreateDB(
			ctx,
			h.config.DatabaseType,
			h.config.Database,
			h.config.DatabaseLogLevel,
			h.config.DatabaseSlowThreshold,
		)
		if err != nil {
			return fmt.Errorf("error initializing database: %w", err)
		}
		h.db = db
	}

	discordLogger := slog.New(
		newLogHandler(h.config.Discord.LogLevel),
	).With(loggerNameKey, "discord")

	h.store = NewGuildStateStore(h.db, h.logger)
	if h.platform == nil {
		h.platform = NewDiscordPlatform(
			h.session,
			discordLogger,
			h.config.Discord.SendsPerSecond,
			h.config.Discord.SendBurst,
		)
	}
	if h.perms == nil {
		h.perms = NewDiscordPermissionChecker(h.session, discordLogger)
	}

	h.workflows = NewWorkflows(
		h.store,
		h.platform,
		h.perms,
		h.registry,
		NewCollectorHub(h.logger),
		NewSessionArena(h.logger),
		*h.config.Workflow,
		h.db,
		h.logger,
	)

	if h.config.API.Enabled {
		h.api = newAPI(h.config.API, h.db, h.workflows)
	}
	return nil
}

// Run connects to the gateway, registers commands and handlers, and
// blocks until ctx is canceled. Shutdown closes live sessions, the
// gateway connection, and the API server.
func (h *Hearth) Run(ctx context.Context) error {
	if err := h.ValidateConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	startupCtx, startupCancel := context.WithTimeout(ctx, h.config.StartupTimeout)
	defer startupCancel()

	if err := h.init(startupCtx); err != nil {
		return err
	}

	h.removeHandlers = []func(){
		h.session.AddHandler(h.handlerInteractionCreate(ctx)),
		h.session.AddHandler(h.handlerMessageCreate(ctx)),
		h.session.AddHandler(h.handlerReactionAdd(ctx)),
		h.session.AddHandler(h.handlerReactionRemove(ctx)),
	}

	if err := h.session.Open(); err != nil {
		return fmt.Errorf("error opening discord connection: %w", err)
	}

	if _, err := h.registerCommands(); err != nil {
		_ = h.session.Close()
		return fmt.Errorf("error registering commands: %w", err)
	}
	h.logger.InfoContext(ctx, "started", "config", h.config)

	g, runCtx := errgroup.WithContext(ctx)
	if h.api != nil {
		g.Go(func() error {
			return h.api.Serve(runCtx)
		})
	}
	g.Go(func() error {
		h.workflows.Sessions().RunReaper(runCtx, h.config.Workflow.ReapInterval)
		return nil
	})

	<-runCtx.Done()
	shutdownErr := h.shutdown()
	if err := g.Wait(); err != nil {
		h.logger.Error("run group failed", tint.Err(err))
	}
	return shutdownErr
}

func (h *Hearth) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		h.config.ShutdownTimeout,
	)
	defer cancel()

	for _, s := range h.workflows.Sessions().Snapshot() {
		if sess, ok := h.workflows.Sessions().Get(s.GuildID, s.ViewID); ok {
			sess.Close(shutdownCtx)
		}
	}
	for _, remove := range h.removeHandlers {
		remove()
	}

	var errs []error
	if h.api != nil {
		errs = append(errs, h.api.Shutdown(shutdownCtx))
	}
	errs = append(errs, h.session.Close())
	return errors.Join(errs...)
}

// slashCommands returns the bot's application command definitions.
func slashCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        cmdConfess,
			Description: "Submit an anonymous confession",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "message",
					Description: "The confession text",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionAttachment,
					Name:        "image",
					Description: "An image to attach",
				},
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "to",
					Description: "A user to address the confession to",
				},
			},
		},
		{
			Name:        cmdSettings,
			Description: "Open the server settings menu",
		},
		{
			Name:        cmdStarboard,
			Description: "Open the starboard settings editor",
		},
		{
			Name:        cmdLeaderboard,
			Description: "Show the starboard leaderboard",
		},
	}
}

func (h *Hearth) registerCommands(
	options ...discordgo.RequestOption,
) ([]*discordgo.ApplicationCommand, error) {
	return h.session.ApplicationCommandBulkOverwrite(
		h.config.Discord.ApplicationID,
		h.config.Discord.GuildID,
		slashCommands(),
		options...,
	)
}

// commandEnabled reports whether a command can run in a guild, combining
// the global kill switch with the guild's overrides.
func (h *Hearth) commandEnabled(ctx context.Context, guildID string, name string) bool {
	defaultOn, known := h.registry.DefaultEnabled(name)
	if !known || h.registry.GloballyDisabled(name) {
		return false
	}
	state, err := h.store.Get(ctx, guildID)
	if err != nil {
		h.logger.ErrorContext(ctx, "error loading guild state", tint.Err(err))
		return false
	}
	return state.CommandOverrides.IsEnabled(name, defaultOn)
}

func interactionUser(i *discordgo.InteractionCreate) string {
	if i.User != nil {
		return i.User.ID
	}
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	return ""
}

// respondEphemeral replies to an interaction with a message only the
// invoker sees.
func (h *Hearth) respondEphemeral(i *discordgo.InteractionCreate, content string) {
	err := h.session.InteractionRespond(
		i.Interaction,
		&discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: content,
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		},
	)
	if err != nil {
		h.logger.Warn("error responding to interaction", tint.Err(err))
	}
}

func (h *Hearth) handlerInteractionCreate(
	ctx context.Context,
) func(s *discordgo.Session, i *discordgo.InteractionCreate) {
	return func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		switch i.Type {
		case discordgo.InteractionMessageComponent:
			a, err := actionFromComponent(i)
			if err != nil {
				h.logger.WarnContext(ctx, "undecodable component", tint.Err(err))
				return
			}
			if !h.workflows.Hub().DispatchComponent(a) {
				// stale component on a dead view
				h.respondEphemeral(i, "This menu is no longer active.")
			}
		case discordgo.InteractionApplicationCommand:
			h.handleSlashCommand(ctx, i)
		}
	}
}

func (h *Hearth) handleSlashCommand(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	data := i.ApplicationCommandData()
	userID := interactionUser(i)
	log := h.logger.With(
		"command", data.Name,
		"guild_id", i.GuildID,
		"user_id", userID,
	)

	if i.GuildID == "" {
		h.respondEphemeral(i, "This command only works in a server.")
		return
	}
	if !h.commandEnabled(ctx, i.GuildID, data.Name) {
		h.respondEphemeral(i, "That command is disabled here.")
		return
	}

	switch data.Name {
	case cmdSettings:
		h.respondEphemeral(i, "Opening the settings menu.")
		if _, err := h.workflows.StartSettings(
			ctx,
			i.GuildID,
			i.ChannelID,
			userID,
		); err != nil {
			log.ErrorContext(ctx, "error starting settings", tint.Err(err))
		}
	case cmdStarboard:
		h.respondEphemeral(i, "Opening the starboard editor.")
		if _, err := h.workflows.StartStarboardEditor(
			ctx,
			i.GuildID,
			i.ChannelID,
			userID,
		); err != nil {
			log.ErrorContext(ctx, "error starting starboard editor", tint.Err(err))
		}
	case cmdLeaderboard:
		h.respondEphemeral(i, "Posting the leaderboard.")
		if err := h.workflows.PostLeaderboard(
			ctx,
			i.GuildID,
			i.ChannelID,
		); err != nil {
			log.ErrorContext(ctx, "error posting leaderboard", tint.Err(err))
		}
	case cmdConfess:
		h.handleConfessCommand(ctx, i, userID)
	default:
		h.respondEphemeral(i, userErrGeneric)
	}
}

func (h *Hearth) handleConfessCommand(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	userID string,
) {
	data := i.ApplicationCommandData()
	pending := PendingConfession{AuthorUserID: userID}
	for _, opt := range data.Options {
		switch opt.Name {
		case "message":
			pending.MessageText = opt.StringValue()
		case "to":
			if u, ok := opt.Value.(string); ok {
				pending.MentionedUserID = u
			}
		case "image":
			if id, ok := opt.Value.(string); ok && data.Resolved != nil {
				if att := data.Resolved.Attachments[id]; att != nil {
					pending.ImageURL = att.URL
				}
			}
		}
	}

	queued, err := h.workflows.SubmitConfession(ctx, i.GuildID, pending)
	switch {
	case err == nil && queued:
		h.respondEphemeral(i, "Your confession was submitted for approval.")
	case err == nil:
		h.respondEphemeral(i, "Your confession was posted.")
	default:
		var validationErr ValidationError
		if errors.As(err, &validationErr) {
			h.respondEphemeral(i, validationErr.Reason)
			return
		}
		h.logger.ErrorContext(ctx, "error submitting confession", tint.Err(err))
		h.respondEphemeral(i, userErrGeneric)
	}
}

func (h *Hearth) handlerMessageCreate(
	ctx context.Context,
) func(s *discordgo.Session, m *discordgo.MessageCreate) {
	return func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot {
			return
		}
		h.workflows.Hub().DispatchMessage(actionFromMessage(m))
	}
}

func (h *Hearth) handlerReactionAdd(
	ctx context.Context,
) func(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	return func(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
		h.dispatchReaction(ctx, r.MessageReaction)
	}
}

func (h *Hearth) handlerReactionRemove(
	ctx context.Context,
) func(s *discordgo.Session, r *discordgo.MessageReactionRemove) {
	return func(_ *discordgo.Session, r *discordgo.MessageReactionRemove) {
		h.dispatchReaction(ctx, r.MessageReaction)
	}
}

// dispatchReaction resolves the reacted-to message and hands the current
// reaction count to the starboard scanner.
func (h *Hearth) dispatchReaction(ctx context.Context, r *discordgo.MessageReaction) {
	if r == nil || r.GuildID == "" {
		return
	}
	go func() {
		msg, err := h.session.ChannelMessage(r.ChannelID, r.MessageID)
		if err != nil {
			h.logger.WarnContext(ctx, "error fetching reacted message", tint.Err(err))
			return
		}
		if msg.Author == nil || msg.Author.Bot {
			return
		}

		count := 0
		for _, reaction := range msg.Reactions {
			if reaction.Emoji != nil &&
				strings.EqualFold(reaction.Emoji.Name, r.Emoji.Name) {
				count = reaction.Count
				break
			}
		}

		ev := ReactionEvent{
			GuildID:        r.GuildID,
			ChannelID:      r.ChannelID,
			MessageID:      r.MessageID,
			AuthorUserID:   msg.Author.ID,
			EmojiName:      r.Emoji.Name,
			NumReactions:   count,
			MessageContent: msg.Content,
		}
		if len(msg.Attachments) > 0 && msg.Attachments[0] != nil {
			ev.ImageURL = msg.Attachments[0].URL
		}

		reactionCtx, cancel := context.WithTimeout(
			context.WithoutCancel(ctx),
			dbOperationTimeout,
		)
		defer cancel()
		if err = h.workflows.HandleReactionEvent(reactionCtx, ev); err != nil {
			h.logger.ErrorContext(ctx, "error handling reaction", tint.Err(err))
		}
	}()
}
