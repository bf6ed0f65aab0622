package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	statusPage     int
	statusPageSize int
)

var statusCmd = &cobra.Command{
	Use:   "status [task-id]",
	Short: "Show one task or list all tasks",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if len(args) == 1 {
			resp, err := client.Progress(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get task %s: %w", args[0], err)
			}
			printTask(os.Stdout, resp)
			return nil
		}

		list, err := client.ListTasks(ctx, statusPage, statusPageSize)
		if err != nil {
			return fmt.Errorf("failed to list tasks: %w", err)
		}
		printTaskList(os.Stdout, list)
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusPage, "page", 1, "Page number")
	statusCmd.Flags().IntVar(&statusPageSize, "page-size", 10, "Tasks per page")
	rootCmd.AddCommand(statusCmd)
}
