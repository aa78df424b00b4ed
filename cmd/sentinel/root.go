package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/sentinel/pkg/api"
	"github.com/jamesainslie/sentinel/pkg/sentinel/config"
	"github.com/jamesainslie/sentinel/pkg/sentinel/drive"
	"github.com/jamesainslie/sentinel/pkg/sentinel/logging"
	"github.com/jamesainslie/sentinel/pkg/sentinel/types"
)

// errNotPassed makes the process exit 1 without printing an error; the
// report has already been shown.
var errNotPassed = errors.New("operation did not pass")

var (
	cfgFile string
	vcfg    = config.New()

	rootCmd = &cobra.Command{
		Use:   "sentinel",
		Short: "Verify the integrity of removable storage",
		Long: `Sentinel checks memory cards and USB drives for silent corruption.

A quick check writes, re-reads and deletes a slice of free space. A full
sweep verifies every file against the manifest recorded on the last sweep,
then exercises all free space. Nothing on the drive is modified except
temporary test files and the sweep timestamp in Sentinel/.last_sweep.

Examples:
  sentinel drives                 # List mounted removable drives
  sentinel check /media/me/CARD   # Quick check
  sentinel sweep                  # Full sweep of the only mounted drive
  sentinel status -o json         # Schedule and last sweep as JSON
  sentinel watch                  # Check drives as they are inserted`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupLogging,
		PersistentPostRun: func(*cobra.Command, []string) { _ = logging.Close() },
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/sentinel/config.yaml)")
	pf.BoolP("no-interactive", "n", false, "disable the progress view, print text output")
	pf.StringP("output", "o", "", "output format: "+fmt.Sprint(outputFormats()))
	pf.BoolP("quiet", "q", false, "minimal output")
	pf.BoolP("verbose", "v", false, "debug output on stderr")

	_ = vcfg.BindPFlag("no_interactive", pf.Lookup("no-interactive"))
	_ = vcfg.BindPFlag("output", pf.Lookup("output"))
	_ = vcfg.BindPFlag("quiet", pf.Lookup("quiet"))
	_ = vcfg.BindPFlag("verbose", pf.Lookup("verbose"))
}

// initConfig points viper at --config when given.
func initConfig() {
	if cfgFile != "" {
		vcfg.SetConfigFile(cfgFile)
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the config file and environment over the defaults.
func loadConfig() (*config.Config, error) {
	return config.LoadFrom(vcfg)
}

// setupLogging starts file logging from config. A broken config still
// gets default logging so the command can report the problem.
func setupLogging(*cobra.Command, []string) error {
	lc := logging.DefaultConfig()
	if cfg, err := loadConfig(); err == nil {
		lc.Level = cfg.Logging.Level
		lc.Components = cfg.Logging.Components
		if cfg.Logging.Path != "" {
			if p, err := config.ExpandPath(cfg.Logging.Path); err == nil {
				lc.Path = p
			}
		}
		if n, err := types.ParseSize(cfg.Logging.Rotation.MaxSize); err == nil && n > 0 {
			lc.Rotation.MaxSize = n
		}
		lc.Rotation.MaxAge = cfg.Logging.Rotation.MaxAge
		lc.Rotation.MaxBackups = cfg.Logging.Rotation.MaxBackups
	}
	if getVerbose() {
		lc.ConsoleLevel = "debug"
	}
	if err := logging.Init(lc); err != nil {
		printVerbose("file logging disabled: %v", err)
	}
	return nil
}

// newService loads config and returns an api.Service.
func newService() (*api.Service, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return api.New(cfg), nil
}

// resolveDrive returns the drive root named by args, or the only mounted
// removable drive. With several mounted, the last drive used wins if it is
// among them.
func resolveDrive(svc *api.Service, args []string) (string, error) {
	if len(args) > 0 {
		p, err := config.ExpandPath(args[0])
		if err != nil {
			return "", err
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("resolving path: %w", err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return "", fmt.Errorf("cannot access drive: %w", err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("%w: %s", api.ErrNotADirectory, abs)
		}
		return abs, nil
	}

	roots, err := drive.List()
	if err != nil && !errors.Is(err, drive.ErrUnsupported) {
		return "", err
	}
	switch len(roots) {
	case 0:
		return "", errors.New("no removable drives found; pass the drive path")
	case 1:
		return roots[0], nil
	}

	if st, err := svc.State().Load(); err == nil {
		for _, r := range roots {
			if r == st.LastDrive {
				return r, nil
			}
		}
	}
	return "", fmt.Errorf("several drives mounted (%v); pass the drive path", roots)
}

func getVerbose() bool { return vcfg.GetBool("verbose") }

func getQuiet() bool { return vcfg.GetBool("quiet") }

// interactive reports whether the progress view should be used.
func interactive() bool {
	if vcfg.GetBool("no_interactive") {
		return false
	}
	if f := vcfg.GetString("output"); f != "" && f != "pretty" {
		return false
	}
	fi, err := os.Stdout.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// bindViper is a shorthand for flag-to-viper bindings on subcommands.
func bindViper(key string, cmd *cobra.Command, flag string) {
	_ = vcfg.BindPFlag(key, cmd.Flags().Lookup(flag))
}
