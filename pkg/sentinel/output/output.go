// Package output renders check, sweep and status reports in the formats the
// CLI offers (pretty, plain, json, yaml).
//
// Formatters are looked up by name from a registry:
//
//	f, err := output.Get("pretty")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := f.Format(&buf, report); err != nil {
//	    return err
//	}
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/sentinel/pkg/sentinel/check"
	"github.com/jamesainslie/sentinel/pkg/sentinel/drive"
	"github.com/jamesainslie/sentinel/pkg/sentinel/sweep"
)

// Kind identifies what a report describes.
type Kind string

const (
	KindCheck  Kind = "check"
	KindSweep  Kind = "sweep"
	KindStatus Kind = "status"
)

// Report is the input to every formatter.
type Report struct {
	Kind  Kind   `json:"kind" yaml:"kind"`
	Drive string `json:"drive" yaml:"drive"`
	Root  string `json:"root" yaml:"root"`

	Passed  bool   `json:"passed" yaml:"passed"`
	Aborted bool   `json:"aborted,omitempty" yaml:"aborted,omitempty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
	Details string `json:"details,omitempty" yaml:"details,omitempty"`

	Duration time.Duration `json:"-" yaml:"-"`

	// Exactly one of these is set, matching Kind.
	Check  *check.Result `json:"check,omitempty" yaml:"check,omitempty"`
	Sweep  *sweep.Result `json:"sweep,omitempty" yaml:"sweep,omitempty"`
	Status *Status       `json:"status,omitempty" yaml:"status,omitempty"`

	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Status summarizes a drive's health and schedule.
type Status struct {
	Usage drive.Usage `json:"usage" yaml:"usage"`

	// LastSweep is zero when the drive has never been swept.
	LastSweep time.Time `json:"last_sweep,omitempty" yaml:"last_sweep,omitempty"`
	LastCheck time.Time `json:"last_check,omitempty" yaml:"last_check,omitempty"`
	SweepDue  bool      `json:"sweep_due" yaml:"sweep_due"`

	IntervalDays  int     `json:"interval_days" yaml:"interval_days"`
	Hint          string  `json:"hint" yaml:"hint"`
	CheckFraction float64 `json:"check_fraction" yaml:"check_fraction"`

	ManifestFiles int       `json:"manifest_files" yaml:"manifest_files"`
	ManifestBuilt time.Time `json:"manifest_built,omitempty" yaml:"manifest_built,omitempty"`
}

// FromCheck wraps a quick check result.
func FromCheck(driveID, root string, res *check.Result, d time.Duration) *Report {
	return &Report{
		Kind:     KindCheck,
		Drive:    driveID,
		Root:     root,
		Passed:   res.Passed,
		Aborted:  res.Aborted,
		Message:  res.Message,
		Details:  res.Details,
		Duration: d,
		Check:    res,
	}
}

// FromSweep wraps a full sweep result.
func FromSweep(root string, res *sweep.Result, d time.Duration) *Report {
	return &Report{
		Kind:     KindSweep,
		Drive:    res.DriveID,
		Root:     root,
		Passed:   res.Passed,
		Aborted:  res.Aborted,
		Message:  res.Message,
		Details:  res.Details,
		Duration: d,
		Sweep:    res,
	}
}

// Formatter renders a report.
type Formatter interface {
	Format(w *bytes.Buffer, r *Report) error
}

// FormatterFactory returns a new Formatter.
type FormatterFactory func() Formatter

// Registry maps names to formatter factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]FormatterFactory)}
}

// Register adds or replaces a formatter.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns registered names, sorted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in formatters.
var DefaultRegistry = NewRegistry()

// Register adds a formatter to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a formatter from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available lists the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}

// formatDuration renders d as "850ms", "4.2s", "3m 5s" or "1h 12m".
func formatDuration(d time.Duration) string {
	sec := d.Seconds()
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

// formatWhen renders a timestamp for humans, or "never" for the zero time.
func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}
