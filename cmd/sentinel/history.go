package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/sentinel/pkg/sentinel/journal"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View past checks and sweeps",
	Long: `View the journal of quick checks and full sweeps run on this host.

Entries older than journal.retention_days are removed automatically.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one journal entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove entries older than the retention period",
	Args:  cobra.NoArgs,
	RunE:  runHistoryClean,
}

var (
	historyLimit int
	historyDrive string
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")
	historyCmd.Flags().StringVar(&historyDrive, "drive", "", "only show entries for this drive id")

	historyCmd.AddCommand(historyShowCmd, historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

func openJournal() (*journal.Journal, int, error) {
	svc, err := newService()
	if err != nil {
		return nil, 0, err
	}
	j, err := svc.Journal()
	return j, svc.Config().Journal.RetentionDays, err
}

func runHistory(*cobra.Command, []string) error {
	j, _, err := openJournal()
	if err != nil {
		return err
	}

	var entries []journal.Entry
	if historyDrive != "" {
		entries, err = j.ListDrive(strings.ToUpper(historyDrive), historyLimit)
	} else {
		entries, err = j.List(historyLimit)
	}
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		printInfo("No history entries found.")
		printInfo("Run 'sentinel check' or 'sentinel sweep' to record one.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tDRIVE\tOUTCOME\tMESSAGE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Timestamp.Local().Format("2006-01-02 15:04"), e.Drive, e.Outcome, e.Message)
	}
	return tw.Flush()
}

func runHistoryShow(_ *cobra.Command, args []string) error {
	j, _, err := openJournal()
	if err != nil {
		return err
	}
	e, err := j.Get(args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}

func runHistoryClean(*cobra.Command, []string) error {
	j, days, err := openJournal()
	if err != nil {
		return err
	}
	n, err := j.Cleanup(days)
	if err != nil {
		return err
	}
	printInfo("Removed %d entries older than %d days.", n, days)
	return nil
}
