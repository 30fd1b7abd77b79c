package rules

import (
	"fmt"

	goversion "github.com/hashicorp/go-version"

	"github.com/sentinelscan/sentinel/pkg/analysis"
	"github.com/sentinelscan/sentinel/pkg/logme"
)

// EngineVersion is compared against a document's min_engine_version.
const EngineVersion = "1.4.0"

// wildcard indexes rules with an empty languages list; they apply to
// every language including "unknown".
const wildcard = "*"

type indexKey struct {
	language string
	category analysis.Category
}

// Registry holds the compiled rule set for one run. It is built once by
// Load, never mutated afterwards, and safe for concurrent readers
// without locking.
type Registry struct {
	rules []*Rule
	byID  map[string]*Rule
	index map[indexKey][]*Rule
}

// Load decodes, validates, and compiles one or more rule documents.
// Any failure is an *analysis.ConfigError naming the offending source
// and, where known, rule id. Nothing is scanned before Load succeeds.
func Load(sources ...Source) (*Registry, error) {
	if len(sources) == 0 {
		return nil, &analysis.ConfigError{Err: fmt.Errorf("no rule sources given")}
	}

	reg := &Registry{
		byID:  make(map[string]*Rule),
		index: make(map[indexKey][]*Rule),
	}

	for _, src := range sources {
		doc, err := src.decode()
		if err != nil {
			return nil, &analysis.ConfigError{Source: src.Name, Err: err}
		}

		if err := checkEngineVersion(doc.MinEngineVersion); err != nil {
			return nil, &analysis.ConfigError{Source: src.Name, Err: err}
		}

		if len(doc.Rules) == 0 {
			return nil, &analysis.ConfigError{Source: src.Name, Err: fmt.Errorf("document contains no rules")}
		}

		for _, rule := range doc.Rules {
			if err := rule.validate(); err != nil {
				return nil, &analysis.ConfigError{Source: src.Name, RuleID: rule.ID, Err: err}
			}
			if _, ok := reg.byID[rule.ID]; ok {
				return nil, &analysis.ConfigError{
					Source: src.Name,
					RuleID: rule.ID,
					Err:    fmt.Errorf("duplicate rule id"),
				}
			}
			if err := rule.compile(); err != nil {
				return nil, &analysis.ConfigError{Source: src.Name, RuleID: rule.ID, Err: err}
			}

			reg.rules = append(reg.rules, rule)
			reg.byID[rule.ID] = rule
			reg.addToIndex(rule)
		}

		logme.DebugFln("loaded %d rules from %s", len(doc.Rules), src.Name)
	}

	return reg, nil
}

func (r *Registry) addToIndex(rule *Rule) {
	languages := rule.Languages
	if len(languages) == 0 {
		languages = []string{wildcard}
	}
	for _, lang := range languages {
		key := indexKey{language: lang, category: rule.Category}
		r.index[key] = append(r.index[key], rule)
	}
}

// RulesFor returns the rules applicable to one language and category:
// language-specific entries followed by wildcard entries, in load order
// within each group. The returned slice never shares backing storage
// with the index, so callers may append to it freely.
func (r *Registry) RulesFor(language string, category analysis.Category) []*Rule {
	specific := r.index[indexKey{language: language, category: category}]
	wild := r.index[indexKey{language: wildcard, category: category}]
	out := make([]*Rule, 0, len(specific)+len(wild))
	out = append(out, specific...)
	out = append(out, wild...)
	return out
}

// ApplicableTo returns every rule applicable to the language across
// both categories.
func (r *Registry) ApplicableTo(language string) []*Rule {
	security := r.RulesFor(language, analysis.Security)
	quality := r.RulesFor(language, analysis.Quality)
	out := make([]*Rule, 0, len(security)+len(quality))
	out = append(out, security...)
	out = append(out, quality...)
	return out
}

// Rule looks a rule up by id.
func (r *Registry) Rule(id string) (*Rule, bool) {
	rule, ok := r.byID[id]
	return rule, ok
}

// All returns every loaded rule in load order.
func (r *Registry) All() []*Rule {
	return r.rules
}

// Len returns the number of loaded rules.
func (r *Registry) Len() int {
	return len(r.rules)
}

func checkEngineVersion(min string) error {
	if min == "" {
		return nil
	}
	required, err := goversion.NewVersion(min)
	if err != nil {
		return fmt.Errorf("invalid min_engine_version %q: %w", min, err)
	}
	engine := goversion.Must(goversion.NewVersion(EngineVersion))
	if engine.LessThan(required) {
		return fmt.Errorf("document requires engine >= %s, running %s", min, EngineVersion)
	}
	return nil
}
