package main

import (
	"time"

	"rebase/pkg/client"

	"github.com/spf13/cobra"
)

func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "rebasectl",
		Short:         "Drive the rebase front-end through the backend",
		Long:          `Send prompt, generate and reset events to a running rebase backend, or batch process image/text pairs.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	rootCmd.PersistentFlags().String("url", client.DefaultBaseURL, "Backend base URL")
	rootCmd.PersistentFlags().Duration("timeout", 10*time.Second, "HTTP request timeout")

	rootCmd.AddCommand(
		NewPromptCmd(),
		NewGenerateCmd(),
		NewResetCmd(),
		NewForwardCmd(),
		NewBatchCmd(),
	)
	return rootCmd
}

func clientFor(cmd *cobra.Command) *client.Client {
	url, _ := cmd.Flags().GetString("url")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return client.New(url, timeout)
}
