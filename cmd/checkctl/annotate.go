package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jaki95/check-engine/internal/annotation"
	"github.com/jaki95/check-engine/internal/domain"
	"github.com/jaki95/check-engine/internal/render"
	"github.com/jaki95/check-engine/internal/session"
	"github.com/jaki95/check-engine/internal/storage"
)

var (
	annotateTask   string
	annotateOut    string
	annotateWidth  int
	annotateHeight int
	annotateList   bool
)

var annotateCmd = &cobra.Command{
	Use:   "annotate <project-id> <file>",
	Short: "Draw the annotations of an image onto it",
	Long: `Load a project image and its archived result from storage and write a
PNG with every annotation for that image outlined.

Without --task the project's stored result is used; with it, the result
archived for that task run.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		projectID, file := args[0], args[1]

		archive, err := storage.New(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer archive.Close()

		var result *domain.Result
		if annotateTask != "" {
			result, err = archive.LoadRun(ctx, projectID, annotateTask)
		} else {
			result, err = archive.LoadResult(ctx, projectID)
		}
		if err != nil {
			return fmt.Errorf("failed to load result: %w", err)
		}

		sess := session.New(projectID, nil,
			session.WithExpander(&annotation.Expander{DefaultSize: cfg.Viewport.DefaultBoxSize}))
		sess.ApplyResult(result)
		annotations := sess.AnnotationsFor(file)

		reader, err := archive.GetReader(ctx, archive.ImagePath(projectID, file))
		if err != nil {
			return fmt.Errorf("failed to open image: %w", err)
		}
		data, err := io.ReadAll(reader)
		reader.Close()
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}

		state, err := loadViewport(ctx, data)
		if err != nil {
			return err
		}

		if annotateList {
			markers, err := render.Markers(annotations, state, cfg.Viewport.MinRenderedSize)
			if err != nil {
				return err
			}
			for _, m := range markers {
				fmt.Printf("  %-12s %-16s x=%.0f y=%.0f w=%.0f h=%.0f  %s\n",
					m.Annotation.Category, m.Annotation.ErrorType,
					m.Rect.X, m.Rect.Y, m.Rect.Width, m.Rect.Height, m.Annotation.Message)
			}
		}

		img, err := render.AnnotateImage(bytes.NewReader(data), annotations, render.OverlayOptions{
			Width:   annotateWidth,
			Height:  annotateHeight,
			MinSize: cfg.Viewport.MinRenderedSize,
		})
		if err != nil {
			return err
		}

		out := annotateOut
		if out == "" {
			out = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)) + ".annotated.png"
		}
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		if err := render.EncodePNG(f, img); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s %d annotations drawn to %s\n", green("✓"), len(annotations), out)
		return nil
	},
}

func init() {
	annotateCmd.Flags().StringVar(&annotateTask, "task", "", "Use the result archived for this task")
	annotateCmd.Flags().StringVarP(&annotateOut, "out", "o", "", "Output PNG path")
	annotateCmd.Flags().IntVar(&annotateWidth, "width", 0, "Displayed width (default natural)")
	annotateCmd.Flags().IntVar(&annotateHeight, "height", 0, "Displayed height (default natural)")
	annotateCmd.Flags().BoolVar(&annotateList, "list", false, "Print marker positions")
	rootCmd.AddCommand(annotateCmd)
}
