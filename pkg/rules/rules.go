package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	"github.com/sentinelscan/sentinel/pkg/analysis"
)

// Rule is one named pattern plus metadata describing a class of defect.
// Rules are immutable after Load; the scanner only reads them.
type Rule struct {
	ID          string              `yaml:"id"          json:"id"`
	Category    analysis.Category   `yaml:"category"    json:"category"`
	Severity    analysis.Severity   `yaml:"severity"    json:"severity"`
	Languages   []string            `yaml:"languages"   json:"languages,omitempty"`
	Patterns    []string            `yaml:"patterns"    json:"patterns"`
	Sanitizers  []string            `yaml:"sanitizers"  json:"sanitizers,omitempty"`
	Message     string              `yaml:"message"     json:"message"`
	Remediation string              `yaml:"remediation" json:"remediation"`
	Confidence  analysis.Confidence `yaml:"confidence"  json:"confidence"`
	CWE         string              `yaml:"cwe"         json:"cwe,omitempty"`
	OWASP       string              `yaml:"owasp"       json:"owasp,omitempty"`

	compiled           []*regexp.Regexp
	compiledSanitizers []*regexp.Regexp
}

// Compiled returns the compiled patterns in document order.
func (r *Rule) Compiled() []*regexp.Regexp {
	return r.compiled
}

// CompiledSanitizers returns the compiled sanitizer patterns, if any.
func (r *Rule) CompiledSanitizers() []*regexp.Regexp {
	return r.compiledSanitizers
}

// AppliesTo reports whether the rule applies to files of the given
// language. An empty Languages list means the rule applies everywhere,
// including files classified as "unknown".
func (r *Rule) AppliesTo(language string) bool {
	if len(r.Languages) == 0 {
		return true
	}
	for _, l := range r.Languages {
		if l == language {
			return true
		}
	}
	return false
}

func (r *Rule) compile() error {
	for _, p := range r.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("pattern %q does not compile: %w", p, err)
		}
		r.compiled = append(r.compiled, re)
	}
	for _, p := range r.Sanitizers {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("sanitizer %q does not compile: %w", p, err)
		}
		r.compiledSanitizers = append(r.compiledSanitizers, re)
	}
	return nil
}

func (r *Rule) validate() error {
	if r.ID == "" {
		return fmt.Errorf("missing id")
	}
	if !r.Category.Valid() {
		return fmt.Errorf("invalid category %q", r.Category)
	}
	if !r.Severity.Valid() {
		return fmt.Errorf("invalid severity %q", r.Severity)
	}
	if !r.Confidence.Valid() {
		return fmt.Errorf("invalid confidence %q", r.Confidence)
	}
	if len(r.Patterns) == 0 {
		return fmt.Errorf("patterns must not be empty")
	}
	if r.Message == "" {
		return fmt.Errorf("missing message")
	}
	if r.Remediation == "" {
		return fmt.Errorf("missing remediation")
	}
	return nil
}

// Document is one rule file. Multiple documents can be loaded into a
// single registry; rule ids must stay unique across all of them.
type Document struct {
	MinEngineVersion string  `yaml:"min_engine_version" json:"min_engine_version,omitempty"`
	Rules            []*Rule `yaml:"rules"              json:"rules"`
}

// Source is a named rule document. The name shows up in ConfigError
// messages so users can find the offending file.
type Source struct {
	Name string
	Data []byte
}

// FromFile reads a rule document from disk.
func FromFile(path string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Source{}, fmt.Errorf("reading rule document: %w", err)
	}
	return Source{Name: path, Data: data}, nil
}

func (s Source) decode() (*Document, error) {
	var doc Document
	switch strings.ToLower(filepath.Ext(s.Name)) {
	case ".json", ".jsonc":
		// hujson first so documents may carry comments and trailing
		// commas.
		std, err := hujson.Standardize(s.Data)
		if err != nil {
			return nil, fmt.Errorf("standardizing json: %w", err)
		}
		if err := validateSchema(std); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(std, &doc); err != nil {
			return nil, fmt.Errorf("decoding json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(s.Data, &doc); err != nil {
			return nil, fmt.Errorf("decoding yaml: %w", err)
		}
	}
	return &doc, nil
}
