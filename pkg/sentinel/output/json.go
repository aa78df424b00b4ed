package output

import (
	"bytes"
	"encoding/json"
)

// encoded adds the fields computed for machine-readable formats.
type encoded struct {
	Report   `yaml:",inline"`
	Result   string `json:"result" yaml:"result"`
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`
}

func encode(r *Report) encoded {
	e := encoded{Report: *r, Result: verdict(r)}
	if r.Kind == KindStatus {
		e.Result = ""
	}
	if r.Duration > 0 {
		e.Duration = r.Duration.String()
	}
	return e
}

// JSONFormatter writes the report as one indented JSON document.
type JSONFormatter struct{}

// Format writes the JSON document.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(encode(r))
}

func init() {
	Register("json", func() Formatter { return &JSONFormatter{} })
}

var _ Formatter = (*JSONFormatter)(nil)
