package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/sentinel/pkg/sentinel/check"
	"github.com/jamesainslie/sentinel/pkg/sentinel/drive"
	"github.com/jamesainslie/sentinel/pkg/sentinel/sweep"
	"github.com/jamesainslie/sentinel/pkg/sentinel/types"
)

func passedCheck() *Report {
	res := &check.Result{
		Passed:           true,
		Message:          "Integrity check passed",
		Details:          "Verified 1 batches, 1,073,741,824 bytes total.",
		BatchesCompleted: 1,
		BatchesTotal:     1,
		BytesTested:      types.GiB,
		BytesTotal:       types.GiB,
		ConfidencePct:    100,
	}
	return FromCheck("CARD", "/media/CARD", res, 90*time.Second)
}

func failedSweep() *Report {
	res := &sweep.Result{
		DriveID:    "CARD",
		Message:    "Full sweep failed",
		Details:    "File verification failed (1 mismatch(es)): DCIM/IMG_0001.JPG",
		Mismatches: []string{"DCIM/IMG_0001.JPG"},
	}
	return FromSweep("/media/CARD", res, time.Hour+5*time.Minute)
}

func statusReport() *Report {
	return &Report{
		Kind:  KindStatus,
		Drive: "CARD",
		Root:  "/media/CARD",
		Status: &Status{
			Usage:         drive.Usage{Total: 64 * types.GiB, Free: 16 * types.GiB},
			SweepDue:      true,
			IntervalDays:  14,
			Hint:          "Standard card",
			CheckFraction: 0.10,
		},
		Warnings: []string{"Card nearly full"},
	}
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"json", "plain", "pretty", "yaml"}, Available())

	_, err := Get("xml")
	assert.Error(t, err)

	r := NewRegistry()
	r.Register("x", func() Formatter { return &PlainFormatter{} })
	f, err := r.Get("x")
	require.NoError(t, err)
	assert.IsType(t, &PlainFormatter{}, f)
}

func TestPrettyFormatter_Check(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PrettyFormatter{}).Format(&buf, passedCheck()))

	out := buf.String()
	assert.Contains(t, out, "CARD")
	assert.Contains(t, out, "Integrity check passed")
	assert.Contains(t, out, "Verified 1 batches")
	assert.Contains(t, out, "1/1")
	assert.Contains(t, out, "~100%")
	assert.Contains(t, out, "1m 30s")
}

func TestPrettyFormatter_Status(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PrettyFormatter{}).Format(&buf, statusReport()))

	out := buf.String()
	assert.Contains(t, out, "never")
	assert.Contains(t, out, "every 14 days")
	assert.Contains(t, out, "Card nearly full")
	assert.Contains(t, out, "75% used")
}

func TestPlainFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PlainFormatter{}).Format(&buf, failedSweep()))

	out := buf.String()
	assert.Regexp(t, `result\s+failed`, out)
	assert.Contains(t, out, "DCIM/IMG_0001.JPG")
	assert.Contains(t, out, "1h 5m")
	assert.NotContains(t, out, "\x1b[", "plain output must not contain ANSI escapes")
}

func TestPlainFormatter_Status(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PlainFormatter{}).Format(&buf, statusReport()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Contains(t, lines[0], "drive")
	assert.Contains(t, buf.String(), "sweep_due")
	assert.Contains(t, buf.String(), "true")
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).Format(&buf, passedCheck()))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "check", got["kind"])
	assert.Equal(t, "passed", got["result"])
	assert.Equal(t, "1m30s", got["duration"])

	c, ok := got["check"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 100, c["confidence_pct"])
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&YAMLFormatter{}).Format(&buf, failedSweep()))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "sweep", got["kind"])
	assert.Equal(t, "failed", got["result"])
	assert.Equal(t, "CARD", got["drive"])
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{850 * time.Millisecond, "850ms"},
		{4200 * time.Millisecond, "4.2s"},
		{185 * time.Second, "3m 5s"},
		{72 * time.Minute, "1h 12m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.in))
	}
}
