package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgPath string
	rootCmd = &cobra.Command{
		Use:           "remindbot",
		Short:         "Telegram bot for one-shot reminders",
		SilenceUsage:  true,
		SilenceErrors: true,
		// Bare invocation runs the bot.
		RunE: func(cmd *cobra.Command, args []string) error { return runBot(cmd.Context()) },
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./config.yaml", "path to config (json or yaml)")

	rootCmd.AddCommand(
		newRunCmd(),
		newMigrateCmd(),
		newPendingCmd(),
		newListCmd(),
		newCancelCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}
