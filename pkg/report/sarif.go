package report

import (
	"encoding/json"

	"github.com/sentinelscan/sentinel/pkg/analysis"
	"github.com/sentinelscan/sentinel/pkg/rules"
)

// SARIF 2.1.0 subset. Field names are fixed by the schema; downstream
// code-scanning consumers match on them exactly.

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           sarifRegion           `json:"region"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
}

const sarifSchemaURI = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"

// NewSARIFMarshaler serializes findings as a SARIF 2.1.0 log.
func NewSARIFMarshaler() Marshaler {
	return marshalerFunc(func(result *analysis.Result) ([]byte, error) {
		results := make([]sarifResult, 0, len(result.Findings))
		for _, f := range result.Findings {
			line := f.Line
			if line < 1 {
				line = 1
			}
			results = append(results, sarifResult{
				RuleID:  f.RuleID,
				Level:   sarifLevel(f.Severity),
				Message: sarifMessage{Text: f.Message},
				Locations: []sarifLocation{{
					PhysicalLocation: sarifPhysicalLocation{
						ArtifactLocation: sarifArtifactLocation{URI: f.File},
						Region:           sarifRegion{StartLine: line},
					},
				}},
			})
		}

		log := sarifLog{
			Version: "2.1.0",
			Schema:  sarifSchemaURI,
			Runs: []sarifRun{{
				Tool: sarifTool{Driver: sarifDriver{
					Name:    "sentinel",
					Version: rules.EngineVersion,
				}},
				Results: results,
			}},
		}
		return json.MarshalIndent(log, "", "  ")
	})
}

func sarifLevel(severity analysis.Severity) string {
	switch severity {
	case analysis.Critical, analysis.High:
		return "error"
	case analysis.Medium:
		return "warning"
	}
	return "note"
}
