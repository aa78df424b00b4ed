package output

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"
)

// PlainFormatter writes unstyled key/value lines for scripts and pipes.
type PlainFormatter struct{}

// Format writes the report as aligned "key value" rows.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	row := func(k string, v any) {
		fmt.Fprintf(tw, "%s\t%v\n", k, v)
	}

	row("drive", r.Drive)
	row("root", r.Root)

	switch r.Kind {
	case KindStatus:
		if s := r.Status; s != nil {
			row("total_bytes", s.Usage.Total)
			row("free_bytes", s.Usage.Free)
			row("last_sweep", formatWhen(s.LastSweep))
			row("last_check", formatWhen(s.LastCheck))
			row("sweep_due", s.SweepDue)
			row("interval_days", s.IntervalDays)
			row("check_fraction", s.CheckFraction)
			row("manifest_files", s.ManifestFiles)
		}
	default:
		row("result", verdict(r))
		row("message", r.Message)
		for _, line := range strings.Split(r.Details, "\n") {
			if line != "" {
				row("details", line)
			}
		}
		if c := r.Check; c != nil {
			row("batches", fmt.Sprintf("%d/%d", c.BatchesCompleted, c.BatchesTotal))
			row("bytes_tested", c.BytesTested)
			row("confidence_pct", c.ConfidencePct)
		}
		if s := r.Sweep; s != nil {
			row("files_verified", len(s.Records.Manifest))
			for _, m := range s.Mismatches {
				row("mismatch", m)
			}
		}
		if r.Duration > 0 {
			row("duration", formatDuration(r.Duration))
		}
	}

	for _, warning := range r.Warnings {
		row("warning", warning)
	}
	return tw.Flush()
}

// verdict is passed, failed or aborted.
func verdict(r *Report) string {
	switch {
	case r.Aborted:
		return "aborted"
	case r.Passed:
		return "passed"
	default:
		return "failed"
	}
}

func init() {
	Register("plain", func() Formatter { return &PlainFormatter{} })
}

var _ Formatter = (*PlainFormatter)(nil)
