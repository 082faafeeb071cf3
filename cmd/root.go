package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"

	"github.com/arcward/hearth/hearth"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultEnvPrefix = "HEARTH"

var (
	cfg        = hearth.DefaultConfig()
	configFile string
)

var rootCmd = &cobra.Command{
	Use: "hearth [flags]",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		err := viper.Unmarshal(
			cfg,
			viper.DecodeHook(
				mapstructure.ComposeDecodeHookFunc(
					mapstructure.StringToTimeDurationHookFunc(),
					LevelToStringHookFunc(),
				),
			),
		)
		if err != nil {
			log.Fatalln(err)
		}
	},
}

func getLogLevel(level string) (slog.Level, error) {
	switch level {
	case slog.LevelDebug.String():
		return slog.LevelDebug, nil
	case slog.LevelInfo.String():
		return slog.LevelInfo, nil
	case slog.LevelWarn.String():
		return slog.LevelWarn, nil
	case slog.LevelError.String():
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

func LevelToStringHookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data any,
	) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		if t.Kind() != reflect.Ptr {
			return data, nil
		}

		typ := t.Elem()

		if typ != reflect.TypeOf(slog.LevelVar{}) {
			return data, nil
		}
		lvl, err := getLogLevel(data.(string))
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %s", data)
		}
		lvlVar := &slog.LevelVar{}
		lvlVar.Set(lvl)
		return lvlVar, nil
	}
}

func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	rootCmd.SetContext(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(
		signals,
		os.Interrupt,
		syscall.SIGHUP,
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer func() {
		signal.Stop(signals)
		cancel()
	}()
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
			//
		}
	}()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func initConfig() {
	if configFile == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found")
		}
	} else {
		fmt.Println("loading env from file", configFile)
		if err := godotenv.Load(configFile); err != nil {
			log.Println("No .env file found")
		}
	}

	viper.SetDefault("database", hearth.DefaultDatabase)
	viper.SetDefault("database_type", hearth.DefaultDatabaseType)
	viper.SetDefault(
		"database_slow_threshold",
		hearth.DefaultDatabaseSlowThreshold,
	)
	viper.SetDefault(
		"database_log_level",
		hearth.DefaultDatabaseLogLevel.String(),
	)

	viper.SetDefault("log_level", hearth.DefaultLogLevel.String())

	viper.SetDefault("startup_timeout", hearth.DefaultStartupTimeout)
	viper.SetDefault("shutdown_timeout", hearth.DefaultShutdownTimeout)

	// Discord config
	viper.SetDefault("discord.token", "")
	viper.SetDefault("discord.application_id", "")
	viper.SetDefault("discord.guild_id", "")
	viper.SetDefault(
		"discord.log_level",
		hearth.DefaultDiscordLogLevel.String(),
	)
	viper.SetDefault(
		"discord.discordgo_log_level",
		hearth.DefaultDiscordgoLogLevel.String(),
	)
	viper.SetDefault(
		"discord.gateway_intents",
		hearth.DefaultDiscordGatewayIntents,
	)
	viper.SetDefault(
		"discord.sends_per_second",
		hearth.DefaultPlatformSendsPerSecond,
	)
	viper.SetDefault("discord.send_burst", hearth.DefaultPlatformSendBurst)

	// Workflow config
	viper.SetDefault("workflow.confirm_timeout", hearth.DefaultConfirmTimeout)
	viper.SetDefault("workflow.menu_timeout", hearth.DefaultMenuTimeout)
	viper.SetDefault(
		"workflow.approval_timeout",
		hearth.DefaultApprovalTimeout,
	)
	viper.SetDefault(
		"workflow.reap_interval",
		hearth.DefaultSessionReapInterval,
	)

	// API config
	viper.SetDefault("api.enabled", false)
	viper.SetDefault("api.listen", hearth.DefaultAPIListen)
	viper.SetDefault("api.token_hash", "")
	viper.SetDefault("api.log_level", hearth.DefaultAPILogLevel.String())
	viper.SetDefault("api.allow_origins", []string{})
	viper.SetDefault("api.read_timeout", hearth.DefaultAPIReadTimeout)
	viper.SetDefault(
		"api.read_header_timeout",
		hearth.DefaultAPIReadHeaderTimeout,
	)
	viper.SetDefault("api.write_timeout", hearth.DefaultAPIWriteTimeout)
	viper.SetDefault("api.idle_timeout", hearth.DefaultAPIIdleTimeout)

	viper.SetEnvPrefix(defaultEnvPrefix)
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()

	viper.Set(
		"api.allow_origins",
		viper.GetStringSlice("api.allow_origins"),
	)

	for _, key := range []string{
		"log_level",
		"database_log_level",
		"discord.log_level",
		"discord.discordgo_log_level",
		"api.log_level",
	} {
		levelVar, err := levelStringToLevelVar(viper.GetString(key))
		if err != nil {
			log.Fatalf("error parsing %s: %v", key, err)
		}
		viper.Set(key, levelVar)
	}
}

func levelStringToLevelVar(lvl string) (*slog.LevelVar, error) {
	level := &slog.LevelVar{}
	err := level.UnmarshalText([]byte(lvl))
	return level, err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&configFile,
		"config",
		"",
		"Config file to use",
	)
}
