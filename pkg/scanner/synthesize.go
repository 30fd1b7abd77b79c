package scanner

import (
	"fmt"

	"github.com/sentinelscan/sentinel/pkg/analysis"
	"github.com/sentinelscan/sentinel/pkg/evaluator"
	"github.com/sentinelscan/sentinel/pkg/rules"
)

// synthesize turns raw matches into candidate findings. Severity and
// confidence come from the rule; the only contextual adjustment is the
// documented sanitizer downgrade: a sanitizer pattern matching within
// one line of the finding lowers confidence one step.
func synthesize(content *evaluator.Content, file string, rule *rules.Rule, matches []analysis.RawMatch) []analysis.Finding {
	if len(matches) == 0 {
		return nil
	}
	findings := make([]analysis.Finding, 0, len(matches))
	for _, m := range matches {
		confidence := rule.Confidence
		if evaluator.SanitizerNearby(content, rule, m.Line) {
			confidence = confidence.Lower()
		}
		findings = append(findings, analysis.Finding{
			RuleID:      rule.ID,
			File:        file,
			Line:        m.Line,
			Column:      m.Column,
			Snippet:     m.Snippet,
			Severity:    rule.Severity,
			Confidence:  confidence,
			Category:    rule.Category,
			Message:     rule.Message,
			Remediation: rule.Remediation,
			CWE:         rule.CWE,
			OWASP:       rule.OWASP,
		})
	}
	return findings
}

// dedupe merges candidates sharing (rule_id, file, line), keeping the
// highest confidence seen. Distinct rules on the same line survive as
// separate findings. A malformed candidate is an internal defect and
// fails the run with an AggregationError.
func dedupe(candidates []analysis.Finding) ([]analysis.Finding, error) {
	out := make([]analysis.Finding, 0, len(candidates))
	index := make(map[analysis.DedupKey]int, len(candidates))

	for _, f := range candidates {
		if err := checkFinding(&f); err != nil {
			return nil, err
		}
		key := f.Key()
		if at, ok := index[key]; ok {
			out[at].Confidence = out[at].Confidence.Max(f.Confidence)
			continue
		}
		index[key] = len(out)
		out = append(out, f)
	}
	return out, nil
}

func checkFinding(f *analysis.Finding) error {
	switch {
	case f.RuleID == "":
		return &analysis.AggregationError{Reason: "finding without rule id"}
	case f.File == "":
		return &analysis.AggregationError{Reason: fmt.Sprintf("finding %s without file", f.RuleID)}
	case f.Line < 1:
		return &analysis.AggregationError{Reason: fmt.Sprintf("finding %s at invalid line %d", f.RuleID, f.Line)}
	case !f.Severity.Valid():
		return &analysis.AggregationError{Reason: fmt.Sprintf("finding %s with invalid severity %q", f.RuleID, f.Severity)}
	case !f.Confidence.Valid():
		return &analysis.AggregationError{Reason: fmt.Sprintf("finding %s with invalid confidence %q", f.RuleID, f.Confidence)}
	case !f.Category.Valid():
		return &analysis.AggregationError{Reason: fmt.Sprintf("finding %s with invalid category %q", f.RuleID, f.Category)}
	}
	return nil
}

// tally computes both count maps in a single pass over the deduplicated
// findings.
func tally(findings []analysis.Finding) (map[analysis.Severity]int, map[analysis.Category]int) {
	bySeverity := make(map[analysis.Severity]int)
	byCategory := make(map[analysis.Category]int)
	for _, f := range findings {
		bySeverity[f.Severity]++
		byCategory[f.Category]++
	}
	return bySeverity, byCategory
}
