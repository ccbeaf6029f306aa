package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/gradientbot/internal/log"
)

// NewRootCmd creates the root command for gradientbot.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gradientbot",
		Short: "Keep a Gradient Network node connected in a headless browser",
		Long: `gradientbot runs the Gradient Sentry Node extension in Chromium without a desktop.

It downloads the extension, optionally routes the browser through a proxy,
signs in to the dashboard and checks the node status. A connected node is
supervised until the process receives SIGINT or SIGTERM; every other outcome
exits with status 1 and leaves screenshots and logs in the work directory.

Credentials are read from the environment (APP_USER, APP_PASS), as are the
optional proxy (PROXY) and debug switch (ALLOW_DEBUG).`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, log.MaskURLCredentials(err.Error()))
		os.Exit(1)
	}
}
