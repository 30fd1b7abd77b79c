package analysis

import "fmt"

// ConfigError is fatal and raised at registry load time, before any
// scanning begins: malformed rule document, duplicate id, or a pattern
// that fails to compile.
type ConfigError struct {
	Source string
	RuleID string
	Err    error
}

func (e *ConfigError) Error() string {
	switch {
	case e.RuleID != "" && e.Source != "":
		return fmt.Sprintf("config: rule %q in %s: %v", e.RuleID, e.Source, e.Err)
	case e.RuleID != "":
		return fmt.Sprintf("config: rule %q: %v", e.RuleID, e.Err)
	case e.Source != "":
		return fmt.Sprintf("config: %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("config: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// PatternError is recovered per (file, rule): the rule is skipped for
// that file only and the run continues.
type PatternError struct {
	RuleID string
	File   string
	Err    error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("pattern: rule %q on %s: %v", e.RuleID, e.File, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

// AggregationError indicates an internal defect found while merging
// findings. It is fatal and not user-correctable.
type AggregationError struct {
	Reason string
}

func (e *AggregationError) Error() string {
	return "aggregation: " + e.Reason
}
