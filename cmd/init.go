package cmd

import (
	"fmt"
	"log"
	"syscall"

	"github.com/arcward/hearth/hearth"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// passwordReader reads the API token without echo. Replaceable for
// testing.
type passwordReader func() ([]byte, error)

var customPasswordReader passwordReader

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the database",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		if cfg.DatabaseType == "" {
			log.Fatal("Environment variable HEARTH_DATABASE_TYPE not set (must be one of: sqlite, postgres)")
		}
		if cfg.Database == "" {
			log.Fatal(
				"Environment variable HEARTH_DATABASE not set (must be a valid " +
					"database connection string or sqlite file path)",
			)
		}
		if _, err := hearth.CreateDB(
			ctx,
			cfg.DatabaseType,
			cfg.Database,
			cfg.DatabaseLogLevel,
			cfg.DatabaseSlowThreshold,
		); err != nil {
			log.Fatalf("Error creating database: %v", err)
		}

		fmt.Fprintln(
			cmd.OutOrStdout(),
			"Initialization complete. You can now start the bot with the 'run' subcommand.",
		)
	},
}

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token",
	Short: "Hash an admin API token for use as HEARTH_API_TOKEN_HASH",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()

		if customPasswordReader == nil {
			customPasswordReader = func() ([]byte, error) {
				return term.ReadPassword(int(syscall.Stdin))
			}
		}

		var token string
		for {
			fmt.Fprint(out, "Enter API token: ")
			tokenBytes, _ := customPasswordReader()
			token = string(tokenBytes)
			fmt.Fprintln(out)

			fmt.Fprint(out, "Confirm API token: ")
			confirmBytes, _ := customPasswordReader()
			fmt.Fprintln(out)

			if token != "" && token == string(confirmBytes) {
				break
			}
			fmt.Fprintln(out, "Tokens empty or mismatched. Please try again.")
		}

		hash, err := hearth.HashToken(token)
		if err != nil {
			log.Fatalf("Error hashing token: %v", err)
		}
		fmt.Fprintln(out, hash)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(hashTokenCmd)
}
