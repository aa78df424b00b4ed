package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/sentinel/pkg/api"
	"github.com/jamesainslie/sentinel/pkg/sentinel/config"
	"github.com/jamesainslie/sentinel/pkg/sentinel/drive"
	"github.com/jamesainslie/sentinel/pkg/sentinel/logging"
	"github.com/jamesainslie/sentinel/pkg/sentinel/output"
	"github.com/jamesainslie/sentinel/pkg/sentinel/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Check drives as they are mounted",
	Long: `Wait for removable drives to be mounted. Each new drive gets a quick
check, followed by a full sweep when one is due and watch.auto_sweep is set.
Stop with Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Bool("auto-sweep", true, "sweep newly mounted drives that are due")
	watchCmd.Flags().String("debounce", config.DefaultWatchDebounce, "quiet period after a mount event")
	bindViper("watch.auto_sweep", watchCmd, "auto-sweep")
	bindViper("watch.debounce", watchCmd, "debounce")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	cfg := svc.Config()

	w, err := watcher.New(watcher.Options{Debounce: cfg.WatchDebounce()})
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printInfo("Watching %v for new drives. Press Ctrl+C to stop.", w.Watched())
	w.Run(ctx, func(root string) {
		onMount(ctx, svc, root, cfg.Watch.AutoSweep)
	})
	return nil
}

// onMount checks a newly mounted drive and sweeps it when due.
func onMount(ctx context.Context, svc *api.Service, root string, autoSweep bool) {
	log := logging.Get("watch")
	id := drive.Identity(root)
	printInfo("Drive %s mounted at %s", id, root)

	start := time.Now()
	res, err := svc.RunQuickCheck(ctx, root, 0, api.RunOptions{})
	if err != nil {
		log.Warn("quick check failed to start", "drive", id, "error", err)
		printInfo("Quick check of %s could not run: %v", id, err)
		return
	}
	if err := render(output.FromCheck(id, root, res, time.Since(start))); err != nil {
		log.Warn("rendering report", "error", err)
	}
	if !res.Passed || !autoSweep {
		return
	}

	due, err := svc.IsSweepDue(root, 0)
	if err != nil || !due {
		return
	}

	start = time.Now()
	sres, err := svc.RunFullSweep(ctx, root, api.RunOptions{})
	if err != nil {
		log.Warn("sweep failed to start", "drive", id, "error", err)
		printInfo("Sweep of %s could not run: %v", id, err)
		return
	}
	if err := render(output.FromSweep(root, sres, time.Since(start))); err != nil {
		log.Warn("rendering report", "error", err)
	}
}
