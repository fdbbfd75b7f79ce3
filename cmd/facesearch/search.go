package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"face-search/internal/models"
	"face-search/internal/render"
	"face-search/internal/service/storage"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var errSearchFailed = errors.New("search failed")

type searchOptions struct {
	image     string
	numRows   int
	tolerance float64
	minAge    int
	maxAge    int
	saveDir   string
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	opts := &searchOptions{}
	defaults := models.DefaultParameters()

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search once for faces similar to a photo",
		Long: `Search once for faces similar to a photo and print the results.

Supported formats: PNG, JPEG, GIF, WebP.

Examples:
  # Search with default parameters
  facesearch search --image me.jpg

  # Stricter distance, younger faces, more rows
  facesearch search --image me.jpg --tolerance 0.02 --max-age 40 --num-rows 20

  # Save result thumbnails into ./results/<run-id>/
  facesearch search --image me.jpg --save-dir ./results`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.image, "image", "", "Path to the photo (required)")
	cmd.Flags().IntVar(&opts.numRows, "num-rows", defaults.NumRows, fmt.Sprintf("Number of results (%d..%d)", models.MinNumRows, models.MaxNumRows))
	cmd.Flags().Float64Var(&opts.tolerance, "tolerance", defaults.ToleranceVar, fmt.Sprintf("Maximum face distance (%g..%g)", models.MinToleranceVar, models.MaxToleranceVar))
	cmd.Flags().IntVar(&opts.minAge, "min-age", defaults.MinAge, "Minimum age")
	cmd.Flags().IntVar(&opts.maxAge, "max-age", defaults.MaxAge, "Maximum age")
	cmd.Flags().StringVar(&opts.saveDir, "save-dir", "", "Directory to save result thumbnails into")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}

func (o *searchOptions) params() models.SearchParameters {
	return models.SearchParameters{
		NumRows:      o.numRows,
		ToleranceVar: o.tolerance,
		MinAge:       o.minAge,
		MaxAge:       o.maxAge,
	}
}

func runSearch(cmd *cobra.Command, root *rootOptions, opts *searchOptions) error {
	// Недопустимые значения отклоняются до любого запроса
	params := opts.params()
	if err := params.Validate(); err != nil {
		return err
	}

	file, err := os.Open(opts.image)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	ctrl := root.newController(cmd)
	go ctrl.Run(ctx)

	for _, name := range models.ParamNames {
		if err := ctrl.UpdateParameter(name, params.Get(name)); err != nil {
			return err
		}
	}

	updates := ctrl.Subscribe()
	ctrl.SubmitImage(file)

	session, err := awaitResult(ctx, updates, newLoadingBar(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := render.Text(out, render.Build(session), root.renderOptions(out)); err != nil {
		return err
	}
	if session.Status == models.StatusError {
		return errSearchFailed
	}

	if opts.saveDir != "" && len(session.Results) > 0 {
		return saveResults(out, opts.saveDir, session.Results)
	}
	return nil
}

// newLoadingBar - спиннер на время ожидания ответа
func newLoadingBar(w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(render.MsgLoading),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
}

// awaitResult ждет Success или Error, вращая спиннер
func awaitResult(ctx context.Context, updates <-chan models.Session, bar *progressbar.ProgressBar) (models.Session, error) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	defer func() { _ = bar.Finish() }()

	for {
		select {
		case <-ctx.Done():
			return models.Session{}, ctx.Err()
		case <-ticker.C:
			_ = bar.Add(1)
		case session, ok := <-updates:
			if !ok {
				return models.Session{}, context.Canceled
			}
			if session.Status == models.StatusSuccess || session.Status == models.StatusError {
				return session, nil
			}
		}
	}
}

func saveResults(out io.Writer, dir string, results []models.SearchResult) error {
	store, err := storage.NewService(dir)
	if err != nil {
		return err
	}
	runID, files, err := store.SaveResults(results)
	if err != nil {
		return fmt.Errorf("save results: %w", err)
	}
	fmt.Fprintf(out, "\nSaved %d images to %s\n", len(files), store.RunPath(runID))
	return nil
}
