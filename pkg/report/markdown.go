package report

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sentinelscan/sentinel/pkg/analysis"
)

// topFindings caps the findings table in the human summary.
const topFindings = 20

// NewMarkdownMarshaler renders a human summary: grade, count tables,
// and the most severe findings.
func NewMarkdownMarshaler() Marshaler {
	return marshalerFunc(marshalMarkdown)
}

func marshalMarkdown(result *analysis.Result) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Scan Report\n\n")
	fmt.Fprintf(&buf, "**Grade: %s** — %d findings across %d scanned files.\n\n",
		result.Grade, len(result.Findings), result.Metadata.FilesScanned)
	if result.Metadata.Partial {
		fmt.Fprintf(&buf, "> **Warning:** the run was canceled; results are partial.\n\n")
	}

	buf.WriteString("## Severity\n\n")
	sev := table.NewWriter()
	sev.AppendHeader(table.Row{"Severity", "Count"})
	for _, severity := range analysis.Severities() {
		sev.AppendRow(table.Row{string(severity), result.CountsBySeverity[severity]})
	}
	buf.WriteString(sev.RenderMarkdown())
	buf.WriteString("\n\n")

	buf.WriteString("## Category\n\n")
	cat := table.NewWriter()
	cat.AppendHeader(table.Row{"Category", "Count"})
	for _, category := range []analysis.Category{analysis.Security, analysis.Quality} {
		cat.AppendRow(table.Row{string(category), result.CountsByCategory[category]})
	}
	buf.WriteString(cat.RenderMarkdown())
	buf.WriteString("\n\n")

	if len(result.Findings) > 0 {
		buf.WriteString("## Top Findings\n\n")
		top := bySeverity(result.Findings)
		if len(top) > topFindings {
			top = top[:topFindings]
		}
		tf := table.NewWriter()
		tf.AppendHeader(table.Row{"Severity", "Rule", "Location", "Message"})
		for _, f := range top {
			tf.AppendRow(table.Row{
				string(f.Severity),
				f.RuleID,
				fmt.Sprintf("%s:%d", f.File, f.Line),
				f.Message,
			})
		}
		buf.WriteString(tf.RenderMarkdown())
		buf.WriteString("\n")
	}

	if result.Metadata.FilesSkipped > 0 || result.Metadata.EvaluationsSkipped > 0 {
		fmt.Fprintf(&buf, "\n%d files and %d rule evaluations were skipped; see run metadata for details.\n",
			result.Metadata.FilesSkipped, result.Metadata.EvaluationsSkipped)
	}

	return buf.Bytes(), nil
}

// bySeverity returns a copy ordered worst-first, keeping the canonical
// file/line order within each tier.
func bySeverity(findings []analysis.Finding) []analysis.Finding {
	out := make([]analysis.Finding, len(findings))
	copy(out, findings)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity == out[j].Severity {
			return false
		}
		return out[i].Severity.AtLeast(out[j].Severity)
	})
	return out
}
