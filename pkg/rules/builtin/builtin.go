// Package builtin embeds the default rule set shipped with the engine.
package builtin

import (
	_ "embed"

	"github.com/sentinelscan/sentinel/pkg/rules"
)

//go:embed security.yaml
var securityYAML []byte

//go:embed quality.yaml
var qualityYAML []byte

// Sources returns the embedded rule documents. Callers append their own
// documents on top; duplicate ids across documents fail at Load.
func Sources() []rules.Source {
	return []rules.Source{
		{Name: "builtin/security.yaml", Data: securityYAML},
		{Name: "builtin/quality.yaml", Data: qualityYAML},
	}
}
