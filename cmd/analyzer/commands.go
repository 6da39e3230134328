package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/V4T54L/safewatch/internal/adapter/watcher"
	"github.com/V4T54L/safewatch/internal/domain"
	"github.com/V4T54L/safewatch/internal/usecase"
)

func newBatchCmd(appFn func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "batch",
		Short: "Process every JSON file under the scraped posts folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFn()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Running batch processing on %s...\n", a.cfg.ScrapedPostsDir)

			results, err := a.orchestrator.ProcessAll(cmd.Context(), a.cfg.ScrapedPostsDir)
			if err != nil {
				return err
			}
			printResults(out, results)
			return nil
		},
	}
}

func newWatchCmd(appFn func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Process new files as they land in the scraped posts folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFn()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			obs, err := watcher.New(a.cfg.ScrapedPostsDir, a.cfg.WatchSettleDelay, a.logger)
			if err != nil {
				return err
			}
			go obs.Run(ctx)

			fmt.Fprintf(out, "Watching %s for new files...\n", a.cfg.ScrapedPostsDir)
			var results []usecase.ItemResult
			err = a.orchestrator.Watch(ctx, obs, func(res usecase.ItemResult) {
				results = append(results, res)
				printResult(out, res)
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "\nShutting down gracefully...")
			printSummary(out, usecase.Summarize(results))
			return nil
		},
	}
}

func newSingleCmd(appFn func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "single <path>",
		Short: "Process one scraped post file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFn()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Processing single file: %s\n", args[0])

			res, err := a.orchestrator.ProcessFile(cmd.Context(), args[0])
			printResult(out, res)
			return err
		},
	}
}

func newTestCmd(appFn func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Classify a built-in sample post and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFn()
			out := cmd.OutOrStdout()

			post := samplePost(time.Now().UTC())
			data, _ := json.MarshalIndent(post, "", "  ")
			fmt.Fprintf(out, "Test data created: %s\n\nRunning analysis...\n\n", data)

			outcome, err := a.analyzer.Analyze(cmd.Context(), post)
			if err != nil {
				return fmt.Errorf("test failed: %w", err)
			}
			printRecord(out, outcome)
			return nil
		},
	}
}

func newTestFilterCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "test-filter",
		Short:       "Check the retention policy against canned verdicts",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipSetup: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			_, failed := runFilterCases(cmd.OutOrStdout(), usecase.DefaultRetentionPolicy(), filterCases())
			if failed > 0 {
				return fmt.Errorf("%d filter case(s) failed", failed)
			}
			return nil
		},
	}
}

// samplePost is the canned post used by the test command.
func samplePost(now time.Time) domain.RawScrapedPost {
	return domain.RawScrapedPost{
		PostID:      "test123456789",
		Permalink:   "https://www.facebook.com/test/posts/123456789",
		ScrapedAt:   now.Format(time.RFC3339Nano),
		PublishedAt: now.Add(-time.Hour).Format(time.RFC3339Nano),
		FullText:    "Looking for young models for photo shoot. Good pay! DM me for details. Must be 16-18 years old. Private sessions available.",
		MediaURLs: []domain.MediaRef{{
			OriginalURL: "https://example.com/image.jpg",
			LocalPath:   "/path/to/local/image.jpg",
			Filename:    "test_image.jpg",
		}},
		PosterName:       "Test User",
		PosterProfileID:  "100000000000000",
		PosterProfileURL: "https://www.facebook.com/profile.php?id=100000000000000",
	}
}

func printRecord(out io.Writer, o usecase.Outcome) {
	r := o.Record
	fmt.Fprintln(out, "Analysis Result:")
	fmt.Fprintln(out, "===============")
	fmt.Fprintf(out, "Risk Level: %s\n", r.RiskLevel)
	fmt.Fprintf(out, "Flagged: %t\n", r.Flagged)
	fmt.Fprintf(out, "Priority Score: %d\n", r.PriorityScore)
	fmt.Fprintf(out, "Recommended Action: %s\n", r.RecommendedAction)
	fmt.Fprintf(out, "Processing Time: %dms\n\n", r.ProcessingMs)
	fmt.Fprintln(out, "Risk Scores:")
	fmt.Fprintf(out, "  Grooming: %.2f\n", r.RiskScores.Grooming)
	fmt.Fprintf(out, "  Trafficking: %.2f\n", r.RiskScores.Trafficking)
	fmt.Fprintf(out, "  CSAM: %.2f\n", r.RiskScores.CSAM)
	fmt.Fprintf(out, "  Harassment: %.2f\n\n", r.RiskScores.Harassment)
	fmt.Fprintf(out, "Flag Reasons: %v\n", r.FlagReason)
	fmt.Fprintf(out, "Explanation: %s\n\n", r.Explanation)
	if o.Retained() {
		fmt.Fprintf(out, "Retained: saved to %s\n", o.Location)
	} else {
		fmt.Fprintf(out, "Not retained: %s\n", o.Decision.Reason)
	}
}

func printResult(out io.Writer, res usecase.ItemResult) {
	switch res.State {
	case usecase.StateRetained:
		fmt.Fprintf(out, "RETAINED  %s -> %s\n", res.Path, res.Location)
	case usecase.StateDiscarded:
		fmt.Fprintf(out, "DISCARDED %s\n", res.Path)
	default:
		fmt.Fprintf(out, "FAILED    %s: %v\n", res.Path, res.Err)
	}
}

func printResults(out io.Writer, results []usecase.ItemResult) {
	for _, res := range results {
		printResult(out, res)
	}
	printSummary(out, usecase.Summarize(results))
}

func printSummary(out io.Writer, s usecase.Summary) {
	fmt.Fprintf(out, "\nProcessed %d file(s): %d retained, %d discarded, %d failed\n",
		s.Total, s.Retained, s.Discarded, s.Failed)
}
