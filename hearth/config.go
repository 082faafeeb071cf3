//nolint:lll // struct tags can't be split
package hearth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	DefaultDatabaseType          = "sqlite"
	DefaultDatabase              = "hearth.sqlite3"
	DefaultLogLevel              = slog.LevelInfo
	DefaultDatabaseLogLevel      = slog.LevelWarn
	DefaultDiscordLogLevel       = slog.LevelWarn
	DefaultDiscordgoLogLevel     = slog.LevelWarn
	DefaultAPILogLevel           = slog.LevelInfo
	DefaultDatabaseSlowThreshold = 200 * time.Millisecond

	DefaultStartupTimeout  = 30 * time.Second
	DefaultShutdownTimeout = 60 * time.Second

	// DefaultConfirmTimeout bounds single-step confirmations (deny-reason
	// prompts, field editors).
	DefaultConfirmTimeout = 60 * time.Second

	// DefaultMenuTimeout bounds the top-level settings and starboard
	// editor menus.
	DefaultMenuTimeout = 600 * time.Second

	// DefaultApprovalTimeout bounds confession approval views, which may
	// sit unanswered for a long time.
	DefaultApprovalTimeout = 1800 * time.Second

	DefaultSessionReapInterval = time.Minute

	DefaultAPIListen             = "127.0.0.1:5000"
	DefaultAPIReadTimeout        = 5 * time.Second
	DefaultAPIReadHeaderTimeout  = 5 * time.Second
	DefaultAPIWriteTimeout       = 10 * time.Second
	DefaultAPIIdleTimeout        = 30 * time.Second
	DefaultDiscordGatewayIntents = discordgo.IntentsAllWithoutPrivileged |
		discordgo.IntentMessageContent

	// DefaultPlatformSendsPerSecond rate-limits outbound view
	// sends/edits/deletes to Discord.
	DefaultPlatformSendsPerSecond = 5
	DefaultPlatformSendBurst      = 10

	DefaultStarboardThreshold   = 3
	DefaultStarboardEmoji       = "⭐"
	DefaultStarboardSuccessEmoji = "🌟"
)

// Config is the full configuration tree for a Hearth instance. Values are
// populated by DefaultConfig and overridden in cmd/ via viper.
type Config struct {
	// Database connection string (sqlite path or postgres DSN)
	Database string `yaml:"database" mapstructure:"database" json:"database" binding:"required"`

	// DatabaseType specifies the type of database, either 'sqlite' or 'postgres'
	DatabaseType string `yaml:"database_type" mapstructure:"database_type" json:"database_type" binding:"oneof=sqlite postgres"`

	// DatabaseLogLevel sets the log level for database operations
	DatabaseLogLevel *slog.LevelVar `yaml:"database_log_level" mapstructure:"database_log_level" json:"database_log_level"`

	// DatabaseSlowThreshold is the duration threshold for identifying slow database queries
	DatabaseSlowThreshold time.Duration `yaml:"database_slow_threshold" mapstructure:"database_slow_threshold" json:"database_slow_threshold"`

	// LogLevel is the base log level, for the default logger
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// Discord configures the bot connection itself
	Discord *DiscordConfig `yaml:"discord" mapstructure:"discord" json:"discord"`

	// Workflow configures collector timeouts and session reaping
	Workflow *WorkflowConfig `yaml:"workflow" mapstructure:"workflow" json:"workflow"`

	// API configures the read-only admin API server
	API *APIConfig `yaml:"api" mapstructure:"api" json:"api"`

	// StartupTimeout limits the time the bot has to connect and register
	// before startup is aborted
	StartupTimeout time.Duration `yaml:"startup_timeout" mapstructure:"startup_timeout" json:"startup_timeout"`

	// ShutdownTimeout is the time allowed for a graceful shutdown
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" json:"shutdown_timeout"`

	HTTPClient *http.Client `log:"[redacted]"`
}

func (c Config) LogValue() slog.Value {
	return structToSlogValue(c)
}

// DiscordConfig configures the discord bot itself.
type DiscordConfig struct {
	// Discord bot token
	Token string `yaml:"token" mapstructure:"token" json:"token" log:"[redacted]" binding:"required"`

	// Discord application ID
	ApplicationID string `yaml:"application_id" mapstructure:"application_id" json:"application_id" binding:"required"`

	// GuildID restricts slash-command registration to one guild. Empty
	// registers globally.
	GuildID string `yaml:"guild_id" mapstructure:"guild_id" json:"guild_id"`

	// Base discord logging level
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// Log level for the `discordgo` library's logger
	DiscordGoLogLevel *slog.LevelVar `yaml:"discordgo_log_level" mapstructure:"discordgo_log_level" json:"discordgo_log_level"`

	// Discord gateway intents
	GatewayIntents discordgo.Intent `yaml:"gateway_intents" mapstructure:"gateway_intents" json:"gateway_intents"`

	// SendsPerSecond rate-limits outbound view operations
	SendsPerSecond float64 `yaml:"sends_per_second" mapstructure:"sends_per_second" json:"sends_per_second"`

	// SendBurst is the burst size for the outbound rate limiter
	SendBurst int `yaml:"send_burst" mapstructure:"send_burst" json:"send_burst"`
}

// WorkflowConfig sets collector timeouts per view class and the reap
// interval for abandoned sessions.
type WorkflowConfig struct {
	// ConfirmTimeout bounds single-step confirmations
	ConfirmTimeout time.Duration `yaml:"confirm_timeout" mapstructure:"confirm_timeout" json:"confirm_timeout" binding:"min=1s"`

	// MenuTimeout bounds top-level menus
	MenuTimeout time.Duration `yaml:"menu_timeout" mapstructure:"menu_timeout" json:"menu_timeout" binding:"min=1s"`

	// ApprovalTimeout bounds confession approval views
	ApprovalTimeout time.Duration `yaml:"approval_timeout" mapstructure:"approval_timeout" json:"approval_timeout" binding:"min=1s"`

	// ReapInterval is how often abandoned sessions are checked for expiry
	ReapInterval time.Duration `yaml:"reap_interval" mapstructure:"reap_interval" json:"reap_interval" binding:"min=1s"`
}

// APIConfig configures the read-only admin API server.
type APIConfig struct {
	// Enabled determines whether the API server is started
	Enabled bool `yaml:"enabled" mapstructure:"enabled" json:"enabled"`

	// The address and port on which the server should listen
	Listen string `yaml:"listen" mapstructure:"listen" json:"listen" binding:"required_if=Enabled true"`

	// TokenHash is the argon2id hash of the bearer token required on all
	// endpoints except /health. Generate with `hearth hash-token`.
	TokenHash string `yaml:"token_hash" mapstructure:"token_hash" json:"token_hash" log:"[redacted]"`

	// The logging level for the API server
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// AllowOrigins configures CORS
	AllowOrigins []string `yaml:"allow_origins" mapstructure:"allow_origins" json:"allow_origins"`

	ReadTimeout       time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" json:"read_timeout" binding:"required_if=Enabled true,min=1s"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" mapstructure:"read_header_timeout" json:"read_header_timeout" binding:"required_if=Enabled true,min=1s"`
	WriteTimeout      time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" json:"write_timeout" binding:"required_if=Enabled true,min=1s"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" json:"idle_timeout" binding:"required_if=Enabled true,min=1s"`
}

// DefaultConfig returns a Config with all default settings populated
func DefaultConfig() *Config {
	mainLogLevel := &slog.LevelVar{}
	dbLogLevel := &slog.LevelVar{}
	discordLogLevel := &slog.LevelVar{}
	discordgoLogLevel := &slog.LevelVar{}
	apiLogLevel := &slog.LevelVar{}

	mainLogLevel.Set(DefaultLogLevel)
	dbLogLevel.Set(DefaultDatabaseLogLevel)
	discordLogLevel.Set(DefaultDiscordLogLevel)
	discordgoLogLevel.Set(DefaultDiscordgoLogLevel)
	apiLogLevel.Set(DefaultAPILogLevel)

	return &Config{
		Database:              DefaultDatabase,
		DatabaseType:          DefaultDatabaseType,
		DatabaseLogLevel:      dbLogLevel,
		DatabaseSlowThreshold: DefaultDatabaseSlowThreshold,
		LogLevel:              mainLogLevel,
		StartupTimeout:        DefaultStartupTimeout,
		ShutdownTimeout:       DefaultShutdownTimeout,
		Discord: &DiscordConfig{
			LogLevel:          discordLogLevel,
			DiscordGoLogLevel: discordgoLogLevel,
			GatewayIntents:    DefaultDiscordGatewayIntents,
			SendsPerSecond:    DefaultPlatformSendsPerSecond,
			SendBurst:         DefaultPlatformSendBurst,
		},
		Workflow: &WorkflowConfig{
			ConfirmTimeout:  DefaultConfirmTimeout,
			MenuTimeout:     DefaultMenuTimeout,
			ApprovalTimeout: DefaultApprovalTimeout,
			ReapInterval:    DefaultSessionReapInterval,
		},
		API: &APIConfig{
			Listen:            DefaultAPIListen,
			LogLevel:          apiLogLevel,
			ReadTimeout:       DefaultAPIReadTimeout,
			ReadHeaderTimeout: DefaultAPIReadHeaderTimeout,
			WriteTimeout:      DefaultAPIWriteTimeout,
			IdleTimeout:       DefaultAPIIdleTimeout,
		},
	}
}
