package analysis

import (
	"sort"
	"time"
)

type Severity string

var (
	Critical Severity = "critical"
	High     Severity = "high"
	Medium   Severity = "medium"
	Low      Severity = "low"
	Info     Severity = "info"
)

// severityRank orders severities for sorting and threshold checks.
// Higher is worse.
var severityRank = map[Severity]int{
	Critical: 5,
	High:     4,
	Medium:   3,
	Low:      2,
	Info:     1,
}

func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// AtLeast reports whether s is as severe as other or worse.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

func Severities() []Severity {
	return []Severity{Critical, High, Medium, Low, Info}
}

type Confidence string

var (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

var confidenceRank = map[Confidence]int{
	ConfidenceHigh:   3,
	ConfidenceMedium: 2,
	ConfidenceLow:    1,
}

func (c Confidence) Valid() bool {
	_, ok := confidenceRank[c]
	return ok
}

// Max returns the stronger of two confidence values. Used when merging
// duplicate findings.
func (c Confidence) Max(other Confidence) Confidence {
	if confidenceRank[other] > confidenceRank[c] {
		return other
	}
	return c
}

// Lower returns the confidence one step weaker than c. Low stays low.
func (c Confidence) Lower() Confidence {
	switch c {
	case ConfidenceHigh:
		return ConfidenceMedium
	case ConfidenceMedium:
		return ConfidenceLow
	}
	return ConfidenceLow
}

type Category string

var (
	Security Category = "security"
	Quality  Category = "quality"
)

func (c Category) Valid() bool {
	return c == Security || c == Quality
}

// RawMatch is a single pattern occurrence inside a file, before it is
// turned into a Finding.
type RawMatch struct {
	RuleID  string
	Offset  int
	Line    int
	Column  int
	Snippet string
}

// Finding is one concrete instance of a rule matching a location in
// source. Immutable once constructed.
type Finding struct {
	RuleID      string     `json:"rule_id"`
	File        string     `json:"file"`
	Line        int        `json:"line"`
	Column      int        `json:"column,omitempty"`
	Snippet     string     `json:"snippet,omitempty"`
	Severity    Severity   `json:"severity"`
	Confidence  Confidence `json:"confidence"`
	Category    Category   `json:"category"`
	Message     string     `json:"message"`
	Remediation string     `json:"remediation"`
	CWE         string     `json:"cwe,omitempty"`
	OWASP       string     `json:"owasp,omitempty"`
}

// DedupKey identifies a finding for merge purposes. Two rules matching
// the same line produce different keys.
type DedupKey struct {
	RuleID string
	File   string
	Line   int
}

func (f *Finding) Key() DedupKey {
	return DedupKey{RuleID: f.RuleID, File: f.File, Line: f.Line}
}

// RunMetadata records what happened around the findings: recovered
// errors, timing, and whether the run was cut short.
type RunMetadata struct {
	RunID              string    `json:"run_id"`
	StartedAt          time.Time `json:"started_at"`
	CompletedAt        time.Time `json:"completed_at"`
	FilesScanned       int       `json:"files_scanned"`
	FilesSkipped       int       `json:"files_skipped"`
	EvaluationsSkipped int       `json:"evaluations_skipped"`
	Warnings           []string  `json:"warnings,omitempty"`
	Partial            bool      `json:"partial,omitempty"`
}

// Result is the aggregate root produced by one scan invocation. It is
// never mutated after the scanner enters its reporting state; exporters
// and downstream consumers treat it as read-only.
type Result struct {
	Findings         []Finding        `json:"findings"`
	CountsBySeverity map[Severity]int `json:"counts_by_severity"`
	CountsByCategory map[Category]int `json:"counts_by_category"`
	Grade            string           `json:"grade"`
	Metadata         RunMetadata      `json:"metadata"`
}

// SortFindings imposes the canonical ordering: file path, then line,
// then rule id. Serialization order never depends on worker scheduling.
func SortFindings(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].File != findings[j].File {
			return findings[i].File < findings[j].File
		}
		if findings[i].Line != findings[j].Line {
			return findings[i].Line < findings[j].Line
		}
		return findings[i].RuleID < findings[j].RuleID
	})
}

// State tracks a scan invocation through its lifecycle.
type State string

var (
	StateIdle        State = "idle"
	StateScanning    State = "scanning"
	StateAggregating State = "aggregating"
	StateReporting   State = "reporting"
	StateDone        State = "done"
	StateFailed      State = "failed"
)
