package report

import (
	"bytes"
	"html/template"

	"github.com/sentinelscan/sentinel/pkg/analysis"
)

// The HTML export is a static document; interactivity belongs to the
// dashboard layer, not the engine.
var htmlTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Scan Report</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #222; }
table { border-collapse: collapse; margin: 1rem 0; }
th, td { border: 1px solid #ccc; padding: 0.4rem 0.8rem; text-align: left; }
th { background: #f4f4f4; }
.grade { font-size: 2.5rem; font-weight: bold; }
.critical, .high { color: #b30000; }
.medium { color: #b36b00; }
.low { color: #006080; }
.info { color: #555; }
.partial { background: #fff3cd; padding: 0.6rem; border: 1px solid #ffe08a; }
code { background: #f4f4f4; padding: 0 0.2rem; }
</style>
</head>
<body>
<h1>Scan Report</h1>
<p class="grade">{{.Grade}}</p>
{{if .Metadata.Partial}}<p class="partial">The run was canceled; results are partial.</p>{{end}}
<p>{{len .Findings}} findings, {{.Metadata.FilesScanned}} files scanned, {{.Metadata.FilesSkipped}} skipped.</p>

<h2>Counts</h2>
<table>
<tr><th>Severity</th><th>Count</th></tr>
{{range $severity, $count := .CountsBySeverity}}<tr><td class="{{$severity}}">{{$severity}}</td><td>{{$count}}</td></tr>
{{end}}</table>
<table>
<tr><th>Category</th><th>Count</th></tr>
{{range $category, $count := .CountsByCategory}}<tr><td>{{$category}}</td><td>{{$count}}</td></tr>
{{end}}</table>

<h2>Findings</h2>
{{if .Findings}}<table>
<tr><th>Severity</th><th>Rule</th><th>Location</th><th>Message</th><th>Remediation</th></tr>
{{range .Findings}}<tr>
<td class="{{.Severity}}">{{.Severity}}</td>
<td><code>{{.RuleID}}</code></td>
<td><code>{{.File}}:{{.Line}}</code></td>
<td>{{.Message}}</td>
<td>{{.Remediation}}</td>
</tr>
{{end}}</table>{{else}}<p>No findings.</p>{{end}}
</body>
</html>
`))

// NewHTMLMarshaler renders a static, self-contained HTML report.
func NewHTMLMarshaler() Marshaler {
	return marshalerFunc(func(result *analysis.Result) ([]byte, error) {
		var buf bytes.Buffer
		if err := htmlTemplate.Execute(&buf, result); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
}
