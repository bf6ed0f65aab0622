package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jaki95/check-engine/internal/controller"
	"github.com/jaki95/check-engine/internal/job"
	"github.com/jaki95/check-engine/internal/session"
)

func newControlCmd(action job.Action, short, done string) *cobra.Command {
	return &cobra.Command{
		Use:   string(action) + " <task-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := args[0]
			ctrl := controller.New(client, session.New("", nil), controllerOptions())

			var send func(context.Context, string) error
			switch action {
			case job.ActionPause:
				send = ctrl.Pause
			case job.ActionResume:
				send = ctrl.Resume
			default:
				send = ctrl.Cancel
			}

			if err := send(cmd.Context(), taskID); err != nil {
				red := color.New(color.FgRed).SprintFunc()
				fmt.Printf("%s %s failed: %v\n", red("✗"), action, err)
				return err
			}

			green := color.New(color.FgGreen).SprintFunc()
			fmt.Printf("%s Task %s: %s\n", green("✓"), done, taskID)
			if action == job.ActionPause {
				fmt.Printf("\nTo resume later: checkctl resume %s\n", taskID)
			}
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(
		newControlCmd(job.ActionPause, "Pause a running task", "paused"),
		newControlCmd(job.ActionResume, "Resume a paused task", "resumed"),
		newControlCmd(job.ActionCancel, "Cancel a task", "cancelled"),
	)
}
