package cmd

import (
	"log"

	"github.com/arcward/hearth/hearth"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [flags]",
	Short: "Starts the Hearth bot and (optionally) the admin API",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		bot, err := hearth.New(cfg)
		if err != nil {
			log.Fatalf("error creating hearth: %s", err.Error())
		}

		if err = bot.Run(ctx); err != nil {
			log.Fatalf("error running hearth: %s", err.Error())
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
