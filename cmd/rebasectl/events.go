package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"rebase/pkg/client"

	"github.com/spf13/cobra"
)

func NewPromptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt <positive prompt>",
		Short: "Replace the prompt in the front-end",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			detail := client.PromptReplaceDetail{PositivePrompt: args[0]}
			detail.NegativePrompt, _ = cmd.Flags().GetString("negative")
			detail.Name, _ = cmd.Flags().GetString("name")

			width, _ := cmd.Flags().GetInt("width")
			height, _ := cmd.Flags().GetInt("height")
			if width > 0 && height > 0 {
				detail.Resolution = &client.Resolution{Width: width, Height: height}
			}
			if cmd.Flags().Changed("steps") {
				steps, _ := cmd.Flags().GetInt("steps")
				detail.Sampler = &client.Sampler{Steps: &steps}
			}

			if _, err := clientFor(cmd).PromptReplace(cmd.Context(), detail); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "prompt sent")
			return nil
		},
	}

	cmd.Flags().String("negative", "", "Negative prompt")
	cmd.Flags().String("name", "", "Job name")
	cmd.Flags().Int("width", 0, "Resolution width")
	cmd.Flags().Int("height", 0, "Resolution height")
	cmd.Flags().Int("steps", 0, "Sampler steps")
	return cmd
}

func NewGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate <count>",
		Short: "Queue 1-8 generations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := strconv.Atoi(args[0])
			if err != nil {
				return client.ErrInvalidCount
			}
			if _, err := clientFor(cmd).Generate(cmd.Context(), count); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %d generation(s)\n", count)
			return nil
		},
	}
}

func NewResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset the workflow graph to the base template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := clientFor(cmd).Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "reset sent")
			return nil
		},
	}
}

func NewForwardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forward <event> [json data]",
		Short: "Forward an arbitrary event",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data := json.RawMessage(`{}`)
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return fmt.Errorf("data is not valid JSON")
				}
				data = json.RawMessage(args[1])
			}
			if _, err := clientFor(cmd).Forward(cmd.Context(), args[0], data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s sent\n", args[0])
			return nil
		},
	}
}
