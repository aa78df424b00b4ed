package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/sentinel/pkg/sentinel/types"
)

var drivesCmd = &cobra.Command{
	Use:   "drives",
	Short: "List mounted removable drives",
	Args:  cobra.NoArgs,
	RunE:  runDrives,
}

func init() {
	rootCmd.AddCommand(drivesCmd)
}

func runDrives(*cobra.Command, []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	drives, err := svc.Drives()
	if err != nil {
		return err
	}

	switch vcfg.GetString("output") {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(drives)
	case "yaml":
		return yaml.NewEncoder(os.Stdout).Encode(drives)
	}

	if len(drives) == 0 {
		printInfo("No removable drives found.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DRIVE\tSIZE\tFREE\tUSED\tROOT")
	for _, d := range drives {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f%%\t%s\n",
			d.Identity,
			types.FormatSize(d.Usage.Total),
			types.FormatSize(d.Usage.Free),
			d.Usage.UsedFraction()*100,
			d.Root)
	}
	return tw.Flush()
}
