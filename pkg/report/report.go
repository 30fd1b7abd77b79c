// Package report serializes a finalized analysis result. Every
// marshaler is a pure function of the result; none re-opens or
// re-scans files.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fatih/color"

	"github.com/sentinelscan/sentinel/pkg/analysis"
)

type Marshaler interface {
	Marshal(result *analysis.Result) ([]byte, error)
}

type marshalerFunc func(result *analysis.Result) ([]byte, error)

func (f marshalerFunc) Marshal(result *analysis.Result) ([]byte, error) {
	return f(result)
}

// ForFormat returns the marshaler for a format selector.
func ForFormat(format string) (Marshaler, error) {
	switch format {
	case "json":
		return NewJSONMarshaler(), nil
	case "markdown", "md":
		return NewMarkdownMarshaler(), nil
	case "html":
		return NewHTMLMarshaler(), nil
	case "sarif":
		return NewSARIFMarshaler(), nil
	case "cli", "text":
		return MarshalCLI, nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}

// NewJSONMarshaler serializes the full result with no loss.
func NewJSONMarshaler() Marshaler {
	return marshalerFunc(func(result *analysis.Result) ([]byte, error) {
		return json.MarshalIndent(result, "", "  ")
	})
}

// MarshalCLI renders colorized per-finding lines plus a grade footer.
var MarshalCLI = marshalerFunc(func(result *analysis.Result) ([]byte, error) {
	var buf bytes.Buffer
	for _, f := range result.Findings {
		switch f.Severity {
		case analysis.Critical:
			buf.WriteString(color.RedString("critical: "))
		case analysis.High:
			buf.WriteString(color.RedString("high: "))
		case analysis.Medium:
			buf.WriteString(color.YellowString("medium: "))
		case analysis.Low:
			buf.WriteString(color.CyanString("low: "))
		case analysis.Info:
			buf.WriteString(color.WhiteString("info: "))
		}

		buf.WriteString(fmt.Sprintf("%s:%d: %s [%s]", f.File, f.Line, f.Message, f.RuleID))
		if f.Remediation != "" {
			buf.WriteRune('\n')
			buf.WriteString(color.BlueString("remediation: "))
			buf.WriteString(f.Remediation)
		}
		buf.WriteRune('\n')
	}

	buf.WriteString(fmt.Sprintf("\n%d findings, grade %s\n", len(result.Findings), result.Grade))
	if result.Metadata.Partial {
		buf.WriteString(color.YellowString("warning: ") + "partial results, the run was canceled\n")
	}
	return buf.Bytes(), nil
})

// ExitCode implements the consumer-facing threshold policy: non-zero
// when any finding is at or above the given severity.
func ExitCode(threshold analysis.Severity, result *analysis.Result) int {
	if !threshold.Valid() {
		return 0
	}
	for _, f := range result.Findings {
		if f.Severity.AtLeast(threshold) {
			return 1
		}
	}
	return 0
}

// Static checks

var (
	_ = Marshaler(MarshalCLI)
)
