package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jamesainslie/sentinel/pkg/sentinel/types"
)

// PrettyFormatter renders reports for a terminal with lipgloss styling.
type PrettyFormatter struct{}

// Format writes the styled report.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Report) error {
	w.WriteString(f.header(r))
	w.WriteString("\n")

	if r.Kind == KindStatus {
		w.WriteString(f.status(r.Status))
	} else {
		w.WriteString(outcomeStyle(r).Render(r.Message))
		w.WriteString("\n")
		for _, line := range strings.Split(r.Details, "\n") {
			if line != "" {
				w.WriteString("  " + ValueStyle.Render(line) + "\n")
			}
		}
		w.WriteString(f.footer(r))
	}

	if len(r.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
		w.WriteString("\n")
		for _, warning := range r.Warnings {
			w.WriteString(WarningStyle.Render("  " + warning))
			w.WriteString("\n")
		}
	}
	return nil
}

func (f *PrettyFormatter) header(r *Report) string {
	line := fmt.Sprintf("%s %s  %s %s",
		LabelStyle.Render("Drive:"), ValueStyle.Render(r.Drive),
		LabelStyle.Render("Root:"), ValueStyle.Render(r.Root))
	return HeaderBox.Render(line)
}

func (f *PrettyFormatter) footer(r *Report) string {
	var parts []string
	field := func(label, value string) {
		parts = append(parts, LabelStyle.Render(label)+" "+value)
	}

	switch {
	case r.Check != nil:
		c := r.Check
		field("Tested:", SizeStyle.Render(types.FormatSize(c.BytesTested))+MutedStyle.Render(" of "+types.FormatSize(c.BytesTotal)))
		field("Batches:", ValueStyle.Render(fmt.Sprintf("%d/%d", c.BatchesCompleted, c.BatchesTotal)))
		field("Confidence:", ValueStyle.Render(fmt.Sprintf("~%d%%", c.ConfidencePct)))
	case r.Sweep != nil:
		s := r.Sweep
		if s.ManifestBuilt {
			field("Manifest:", ValueStyle.Render("built"))
		} else {
			field("Files:", ValueStyle.Render(fmt.Sprintf("%d verified", len(s.Records.Manifest))))
		}
		if fs := s.FreeSpace; fs != nil {
			field("Free space:", SizeStyle.Render(types.FormatSize(fs.BytesTested)))
		}
	}
	if r.Duration > 0 {
		field("Time:", ValueStyle.Render(formatDuration(r.Duration)))
	}
	if len(parts) == 0 {
		return ""
	}
	return FooterBox.Render(strings.Join(parts, "  ")) + "\n"
}

func (f *PrettyFormatter) status(s *Status) string {
	if s == nil {
		return MutedStyle.Render("  No status available\n")
	}

	var sb strings.Builder
	row := func(label, value string) {
		sb.WriteString(fmt.Sprintf("  %s %s\n", LabelStyle.Render(fmt.Sprintf("%-15s", label)), value))
	}

	row("Capacity:", SizeStyle.Render(types.FormatSize(s.Usage.Total))+
		MutedStyle.Render(fmt.Sprintf(" (%s free, %.0f%% used)", types.FormatSize(s.Usage.Free), s.Usage.UsedFraction()*100)))
	row("Last sweep:", ValueStyle.Render(formatWhen(s.LastSweep)))
	row("Last check:", ValueStyle.Render(formatWhen(s.LastCheck)))

	due := SuccessStyle.Render("no")
	if s.SweepDue {
		due = WarningStyle.Bold(true).Render("yes")
	}
	row("Sweep due:", due)
	row("Schedule:", ValueStyle.Render(fmt.Sprintf("every %d days", s.IntervalDays))+MutedStyle.Render(" ("+s.Hint+")"))
	row("Check size:", ValueStyle.Render(fmt.Sprintf("%.0f%% of capacity", s.CheckFraction*100)))

	manifest := MutedStyle.Render("none")
	if s.ManifestFiles > 0 || !s.ManifestBuilt.IsZero() {
		manifest = ValueStyle.Render(fmt.Sprintf("%s files, built %s", types.FormatCount(int64(s.ManifestFiles)), formatWhen(s.ManifestBuilt)))
	}
	row("Manifest:", manifest)
	return sb.String()
}

func init() {
	Register("pretty", func() Formatter { return &PrettyFormatter{} })
}

var _ Formatter = (*PrettyFormatter)(nil)
