package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/sentinel/pkg/sentinel/manifest"
	"github.com/jamesainslie/sentinel/pkg/sentinel/types"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Inspect and manage stored manifests",
	Long: `Manifests record the content hash of every file on a drive. They are
kept on this host, keyed by drive identity, and built on a drive's first
full sweep.`,
}

var manifestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored manifests",
	Args:  cobra.NoArgs,
	RunE:  runManifestList,
}

var manifestShowCmd = &cobra.Command{
	Use:   "show <drive-id>",
	Short: "Show the files recorded for a drive",
	Args:  cobra.ExactArgs(1),
	RunE:  runManifestShow,
}

var manifestExportCmd = &cobra.Command{
	Use:   "export <drive-id> <file>",
	Short: "Write a drive's manifest as JSON",
	Args:  cobra.ExactArgs(2),
	RunE:  runManifestExport,
}

var manifestForgetCmd = &cobra.Command{
	Use:   "forget <drive-id>",
	Short: "Delete a drive's manifest",
	Long: `Delete a drive's stored manifest. The next full sweep builds a new one
from the drive's current contents.`,
	Args: cobra.ExactArgs(1),
	RunE: runManifestForget,
}

var manifestShowLimit int

func init() {
	manifestShowCmd.Flags().IntVarP(&manifestShowLimit, "limit", "l", 50, "maximum files to show (0 = all)")

	manifestCmd.AddCommand(manifestListCmd, manifestShowCmd, manifestExportCmd, manifestForgetCmd)
	rootCmd.AddCommand(manifestCmd)
}

func openStore() (*manifest.Store, error) {
	svc, err := newService()
	if err != nil {
		return nil, err
	}
	return svc.OpenManifests()
}

func runManifestList(*cobra.Command, []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	summaries, err := store.List()
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		printInfo("No manifests stored. Run 'sentinel sweep' to build one.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DRIVE\tFILES\tBUILT")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.DriveID, types.FormatCount(int64(s.Entries)), s.BuiltAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func runManifestShow(_ *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	m, err := store.Load(args[0])
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("%w: %s", manifest.ErrNotFound, args[0])
	}

	printInfo("Drive %s: %s files, built %s", m.DriveID, types.FormatCount(int64(m.Len())), m.BuiltAt.Local().Format("2006-01-02 15:04"))
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for i, e := range m.Entries {
		if manifestShowLimit > 0 && i >= manifestShowLimit {
			fmt.Fprintf(tw, "… and %d more\t\n", m.Len()-i)
			break
		}
		fmt.Fprintf(tw, "%s\t%s\n", e.Hash[:min(16, len(e.Hash))], e.Path)
	}
	return tw.Flush()
}

func runManifestExport(_ *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	path, err := filepath.Abs(args[1])
	if err != nil {
		return err
	}
	if err := store.ExportJSON(args[0], path); err != nil {
		return err
	}
	printInfo("Exported manifest for %s to %s", args[0], path)
	return nil
}

func runManifestForget(_ *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	m, err := store.Load(args[0])
	if err != nil && !errors.Is(err, manifest.ErrNotFound) {
		return err
	}
	if m == nil {
		printInfo("No manifest stored for %s.", args[0])
		return nil
	}
	if err := store.Delete(args[0]); err != nil {
		return err
	}
	printInfo("Forgot manifest for %s (%d files).", args[0], m.Len())
	return nil
}
