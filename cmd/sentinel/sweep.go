package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/sentinel/pkg/api"
	"github.com/jamesainslie/sentinel/pkg/sentinel/drive"
	"github.com/jamesainslie/sentinel/pkg/sentinel/output"
	"github.com/jamesainslie/sentinel/pkg/sentinel/sweep"
	"github.com/jamesainslie/sentinel/pkg/sentinel/types"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep [drive]",
	Short: "Run a full sweep",
	Long: `Verify every file against the drive's manifest (building it on first
sight), then write, re-read and delete all free space. The sweep time is
recorded on the drive and on this host only when everything passed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSweep,
}

var (
	sweepIfDue    bool
	sweepInterval int
)

func init() {
	sweepCmd.Flags().BoolVar(&sweepIfDue, "if-due", false, "only sweep when the drive is due")
	sweepCmd.Flags().IntVar(&sweepInterval, "interval", 0, "days between sweeps for --if-due (0 = config)")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	root, err := resolveDrive(svc, args)
	if err != nil {
		return err
	}
	id := drive.Identity(root)

	if sweepIfDue {
		due, err := svc.IsSweepDue(root, sweepInterval)
		if err != nil {
			return err
		}
		if !due {
			last, _, _ := svc.LastSweepTime(root)
			printInfo("Sweep of %s not due (last sweep %s).", id, last.Local().Format("2006-01-02"))
			return nil
		}
	}

	var res *sweep.Result
	start := time.Now()
	err = execute(cmd.Context(), "Full sweep: "+id, func(ctx context.Context, onProgress types.ProgressFunc, onPhase func(sweep.Phase)) error {
		r, err := svc.RunFullSweep(ctx, root, api.RunOptions{OnProgress: onProgress, OnPhase: onPhase})
		res = r
		return err
	})
	if err != nil {
		return err
	}

	if err := render(output.FromSweep(root, res, time.Since(start))); err != nil {
		return err
	}
	if !res.Passed {
		return errNotPassed
	}
	return nil
}
