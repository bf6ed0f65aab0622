package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/jaki95/check-engine/internal/domain"
	"github.com/jaki95/check-engine/internal/job"
	"github.com/jaki95/check-engine/internal/results"
	"github.com/jaki95/check-engine/internal/session"
)

func printSummary(w io.Writer, sess *session.Session, task job.Task) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	agg := sess.Aggregation()
	fmt.Fprintf(w, "\n%s\n", cyan("=== Check Result ==="))
	if task.ID != "" {
		fmt.Fprintf(w, "Task:    %s\n", task.ID)
	}
	fmt.Fprintf(w, "Project: %s\n", sess.ProjectID())

	if agg.Counts.Total() == 0 {
		fmt.Fprintf(w, "%s No errors found\n", green("✓"))
	} else {
		for _, cat := range domain.Categories {
			fmt.Fprintf(w, "  %-14s %d\n", cat, agg.Counts.Of(cat))
		}
		fmt.Fprintf(w, "  %-14s %d (%d cells, %d annotations)\n", "total", agg.Counts.Total(), agg.Cells.Len(), len(sess.Annotations()))
	}

	if adv := sess.Advisory(); adv != "" {
		fmt.Fprintf(w, "%s %s\n", yellow("⚠"), adv)
	}
	fmt.Fprintln(w)
}

func printErrorPage(w io.Writer, page results.Page) {
	if page.Total == 0 {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tCOLUMN\tCATEGORY\tTYPE\tMESSAGE")
	for _, r := range page.Records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", optionalInt(r.RowIndex), optionalString(r.Column), r.Category, r.ErrorType, r.Message)
	}
	tw.Flush()

	gray := color.New(color.FgHiBlack).SprintFunc()
	fmt.Fprintln(w, gray(fmt.Sprintf("page %d/%d, %d errors", page.Page, max(page.TotalPages, 1), page.Total)))
}

func printTask(w io.Writer, resp job.ProgressResponse) {
	fmt.Fprintf(w, "%s %s\n", statusColor(resp.Status)(string(resp.Status)), resp.TaskID)
	fmt.Fprintf(w, "  Progress: %.0f%%\n", resp.Progress)
	if resp.CurrentPhase != "" {
		fmt.Fprintf(w, "  Phase:    %s\n", resp.CurrentPhase)
	}
	counters := resp.Counters()
	for _, cat := range domain.Categories {
		c := counters[cat]
		if c.Total == 0 {
			continue
		}
		fmt.Fprintf(w, "  %-14s %d/%d checked, %d errors\n", cat, c.Processed, c.Total, c.Errors)
	}
	if resp.ErrorMessage != "" {
		fmt.Fprintf(w, "  Error:    %s\n", resp.ErrorMessage)
	}
}

func printTaskList(w io.Writer, list *job.Response) {
	if len(list.Jobs) == 0 {
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Fprintf(w, "  %s\n", gray("No tasks"))
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPROJECT\tSTATUS\tPROGRESS\tCREATED")
	for _, t := range list.Jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f%%\t%s\n", t.ID, t.ProjectID, t.Status, t.Progress, t.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	tw.Flush()
	fmt.Fprintf(w, "page %d/%d, %d tasks\n", list.Page, max(list.TotalPages, 1), list.TotalJobs)
}

func statusColor(s job.Status) func(a ...interface{}) string {
	switch s {
	case job.StatusCompleted:
		return color.New(color.FgGreen).SprintFunc()
	case job.StatusFailed:
		return color.New(color.FgRed).SprintFunc()
	case job.StatusPaused, job.StatusCancelled:
		return color.New(color.FgYellow).SprintFunc()
	}
	return color.New(color.FgCyan).SprintFunc()
}

func optionalInt(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}

func optionalString(v *string) string {
	if v == nil {
		return "-"
	}
	return *v
}
