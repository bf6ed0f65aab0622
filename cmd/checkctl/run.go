package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/jaki95/check-engine/internal/annotation"
	"github.com/jaki95/check-engine/internal/controller"
	"github.com/jaki95/check-engine/internal/domain"
	"github.com/jaki95/check-engine/internal/job"
	"github.com/jaki95/check-engine/internal/results"
	"github.com/jaki95/check-engine/internal/session"
)

const cancelTimeout = 10 * time.Second

var (
	runRules      string
	runCategories []string
	runSync       bool
	runPageSize   int
	runQuiet      bool
)

var runCmd = &cobra.Command{
	Use:   "run <project-id>",
	Short: "Run a check and follow its progress",
	Long: `Start a check for a project and follow it until it finishes.

Progress is polled from the service and shown as a progress bar. Press
Ctrl-C to cancel the remote task. When the check completes, the error
totals and the first page of errors are printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	runCmd.Flags().StringVar(&runRules, "rules", "", "Rule configuration as inline JSON or @file")
	runCmd.Flags().StringSliceVar(&runCategories, "category", nil, "Limit the check to these categories")
	runCmd.Flags().BoolVar(&runSync, "sync", false, "Wait for the result in a single request")
	runCmd.Flags().IntVar(&runPageSize, "page-size", 0, "Errors shown after completion (default from configuration)")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Hide the progress bar")
	rootCmd.AddCommand(runCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	ruleConfig, err := buildRuleConfig(runRules, runCategories)
	if err != nil {
		return err
	}

	sess := session.New(args[0], ruleConfig,
		session.WithExpander(&annotation.Expander{DefaultSize: cfg.Viewport.DefaultBoxSize}))

	display := newProgressDisplay(os.Stdout, runQuiet)
	ctrl := controller.New(client, sess, controllerOptions(display.onEvent))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	h, err := ctrl.Start(ctx, job.StartRequest{Async: !runSync})
	if err != nil {
		return fmt.Errorf("failed to start check: %w", err)
	}

	task, err := waitOrCancel(ctx, ctrl, h)
	display.finish()

	var failed *controller.TaskFailedError
	switch {
	case errors.As(err, &failed):
		red := color.New(color.FgRed).SprintFunc()
		fmt.Printf("%s Check failed: %s\n", red("✗"), failed.Message)
		return err
	case err != nil:
		return err
	case task.Status == job.StatusCancelled:
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("%s Check cancelled: %s\n", yellow("○"), h.ID())
		return nil
	}

	pageSize := runPageSize
	if pageSize <= 0 {
		pageSize = cfg.Results.PageSize
	}
	printSummary(os.Stdout, sess, task)
	printErrorPage(os.Stdout, sess.Page(results.Filter{}, 1, pageSize))
	return nil
}

// waitOrCancel waits for the task and cancels it remotely on interrupt.
func waitOrCancel(ctx context.Context, ctrl *controller.Controller, h *controller.Handle) (job.Task, error) {
	select {
	case <-h.Done():
		return h.Wait(context.Background())
	case <-ctx.Done():
	}

	fmt.Println()
	fmt.Println("Interrupted, cancelling task...")
	cancelCtx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()

	if err := ctrl.Cancel(cancelCtx, h.ID()); err != nil && !errors.Is(err, controller.ErrTaskTerminal) {
		h.Stop()
		return h.Task(), fmt.Errorf("failed to cancel task %s: %w", h.ID(), err)
	}
	return h.Wait(cancelCtx)
}

// buildRuleConfig turns the --rules and --category flags into the rule
// configuration sent to the service.
func buildRuleConfig(rules string, categories []string) (json.RawMessage, error) {
	if rules != "" && len(categories) > 0 {
		return nil, errors.New("--rules and --category cannot be combined")
	}

	if len(categories) > 0 {
		cats := make([]domain.Category, 0, len(categories))
		for _, c := range categories {
			cat := domain.Category(strings.TrimSpace(c))
			if !cat.Valid() {
				return nil, fmt.Errorf("unknown category %q", c)
			}
			cats = append(cats, cat)
		}
		return json.Marshal(map[string]any{"categories": cats})
	}

	if rules == "" {
		return nil, nil
	}

	data := []byte(rules)
	if path, ok := strings.CutPrefix(rules, "@"); ok {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read rules file: %w", err)
		}
	}
	if !json.Valid(data) {
		return nil, errors.New("rules are not valid JSON")
	}
	return json.RawMessage(data), nil
}

// progressDisplay renders controller events. It is only called from the
// polling goroutine.
type progressDisplay struct {
	out   io.Writer
	bar   *progressbar.ProgressBar
	quiet bool
}

func newProgressDisplay(out io.Writer, quiet bool) *progressDisplay {
	d := &progressDisplay{out: out, quiet: quiet}
	if !quiet {
		d.bar = progressbar.NewOptions(
			job.ProgressComplete,
			progressbar.OptionSetWriter(ansi.NewAnsiStdout()),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
			progressbar.OptionFullWidth(),
			progressbar.OptionSetDescription("[cyan]queued[reset]"),
		)
	}
	return d
}

func (d *progressDisplay) onEvent(e controller.Event) {
	if d.bar == nil {
		return
	}
	switch e.Kind {
	case controller.EventProgress:
		_ = d.bar.Set(int(e.Task.Progress))
		d.bar.Describe(fmt.Sprintf("[cyan]%s[reset]", e.Task.Phase))
	case controller.EventStatus:
		if e.Task.Status == job.StatusPaused {
			d.bar.Describe("[yellow]paused[reset]")
		}
	case controller.EventCompleted:
		_ = d.bar.Finish()
	}
}

func (d *progressDisplay) finish() {
	if d.bar != nil {
		_ = d.bar.Exit()
		fmt.Fprintln(d.out)
	}
}
