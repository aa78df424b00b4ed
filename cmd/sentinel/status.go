package main

import (
	"github.com/spf13/cobra"

	"github.com/jamesainslie/sentinel/pkg/api"
	"github.com/jamesainslie/sentinel/pkg/sentinel/drive"
	"github.com/jamesainslie/sentinel/pkg/sentinel/output"
)

var statusCmd = &cobra.Command{
	Use:   "status [drive]",
	Short: "Show a drive's sweep schedule and history",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	root, err := resolveDrive(svc, args)
	if err != nil {
		return err
	}

	st, err := driveStatus(svc, root)
	if err != nil {
		return err
	}
	report := &output.Report{
		Kind:   output.KindStatus,
		Drive:  drive.Identity(root),
		Root:   root,
		Status: st,
	}
	if warnings, err := svc.Warnings(root); err == nil {
		report.Warnings = warnings
	}
	return render(report)
}

// driveStatus gathers everything the status report shows.
func driveStatus(svc *api.Service, root string) (*output.Status, error) {
	usage, err := svc.Usage(root)
	if err != nil {
		return nil, err
	}
	sched, err := svc.Recommendation(root)
	if err != nil {
		return nil, err
	}
	fraction, err := svc.CheckFraction(root, 0)
	if err != nil {
		return nil, err
	}
	due, err := svc.IsSweepDue(root, 0)
	if err != nil {
		return nil, err
	}

	st := &output.Status{
		Usage:         usage,
		SweepDue:      due,
		IntervalDays:  svc.Config().SweepIntervalDays,
		Hint:          sched.Hint,
		CheckFraction: fraction,
	}
	if last, ok, err := svc.LastSweepTime(root); err == nil && ok {
		st.LastSweep = last
	}
	if last, ok, err := svc.DriveCheckTime(root); err == nil && ok {
		st.LastCheck = last
	}

	// The store is locked while a sweep runs elsewhere; status still works.
	store, err := svc.OpenManifests()
	if err != nil {
		printVerbose("manifest store unavailable: %v", err)
		return st, nil
	}
	defer func() { _ = store.Close() }()
	if m, err := store.Load(drive.Identity(root)); err == nil && m != nil {
		st.ManifestFiles = m.Len()
		st.ManifestBuilt = m.BuiltAt
	}
	return st, nil
}
