package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/sentinel/pkg/api"
	"github.com/jamesainslie/sentinel/pkg/sentinel/check"
	"github.com/jamesainslie/sentinel/pkg/sentinel/drive"
	"github.com/jamesainslie/sentinel/pkg/sentinel/output"
	"github.com/jamesainslie/sentinel/pkg/sentinel/sweep"
	"github.com/jamesainslie/sentinel/pkg/sentinel/types"
)

var checkCmd = &cobra.Command{
	Use:   "check [drive]",
	Short: "Run a quick integrity check",
	Long: `Write, re-read twice and delete a slice of the drive's free space.

The slice is --fraction of the drive's capacity, capped by free space minus
the safety margin. Without --fraction the configured check_size_fraction is
used, or a size recommended for the drive's capacity when that is 0.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

var checkFraction float64

func init() {
	checkCmd.Flags().Float64VarP(&checkFraction, "fraction", "f", 0, "share of capacity to test, in (0, 1]")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	root, err := resolveDrive(svc, args)
	if err != nil {
		return err
	}
	id := drive.Identity(root)

	var res *check.Result
	start := time.Now()
	err = execute(cmd.Context(), "Quick check: "+id, func(ctx context.Context, onProgress types.ProgressFunc, _ func(sweep.Phase)) error {
		r, err := svc.RunQuickCheck(ctx, root, checkFraction, api.RunOptions{OnProgress: onProgress})
		res = r
		return err
	})
	if err != nil {
		return err
	}

	report := output.FromCheck(id, root, res, time.Since(start))
	if warnings, err := svc.Warnings(root); err == nil {
		report.Warnings = warnings
	}
	if err := render(report); err != nil {
		return err
	}
	if !res.Passed {
		return errNotPassed
	}
	return nil
}
