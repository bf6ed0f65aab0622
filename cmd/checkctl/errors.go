package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jaki95/check-engine/internal/results"
)

var (
	errorsFilter   results.Filter
	errorsPage     int
	errorsPageSize int
)

var errorsCmd = &cobra.Command{
	Use:   "errors <task-id>",
	Short: "Page through the errors of a completed task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pageSize := errorsPageSize
		if pageSize <= 0 {
			pageSize = cfg.Results.PageSize
		}

		page, err := client.ErrorsPage(cmd.Context(), args[0], errorsFilter, errorsPage, pageSize)
		if err != nil {
			return fmt.Errorf("failed to list errors: %w", err)
		}
		if page.Total == 0 {
			fmt.Println("No matching errors")
			return nil
		}
		printErrorPage(os.Stdout, page)
		return nil
	},
}

func init() {
	errorsCmd.Flags().StringVar(&errorsFilter.Category, "category", results.All, "Category filter")
	errorsCmd.Flags().StringVar(&errorsFilter.ErrorType, "type", results.All, "Error type filter")
	errorsCmd.Flags().IntVar(&errorsPage, "page", 1, "Page number")
	errorsCmd.Flags().IntVar(&errorsPageSize, "page-size", 0, "Errors per page (default from configuration)")
	rootCmd.AddCommand(errorsCmd)
}
