package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sentinelscan/sentinel/pkg/analysis"
	"github.com/sentinelscan/sentinel/pkg/rules"
)

const testRules = `
rules:
  - id: hardcoded-secret
    category: security
    severity: high
    patterns:
      - '(?i)password\s*=\s*"[^"]+"'
    message: "Possible hardcoded credential"
    remediation: "Use environment variables."
    confidence: medium
  - id: dangerous-eval
    category: security
    severity: critical
    patterns:
      - '\beval\s*\('
    message: "Dynamic code evaluation"
    remediation: "Do not eval user input."
    confidence: high
  - id: todo-comment
    category: quality
    severity: info
    patterns:
      - '(?i)#\s*todo\b'
      - '(?i)//\s*todo\b'
    message: "Unresolved TODO"
    remediation: "Track or resolve."
    confidence: high
`

func testRegistry(t *testing.T) *rules.Registry {
	t.Helper()
	reg, err := rules.Load(rules.Source{Name: "test.yaml", Data: []byte(testRules)})
	require.NoError(t, err)
	return reg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScanSingleSecretFinding(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "config.py"), `password = "abc123"`+"\n")

	s := New(testRegistry(t), Options{})
	result, err := s.Run(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, result.Findings, 1)
	f := result.Findings[0]
	require.Equal(t, "hardcoded-secret", f.RuleID)
	require.Equal(t, "config.py", f.File)
	require.Equal(t, 1, f.Line)
	require.Equal(t, analysis.High, f.Severity)
	require.Equal(t, analysis.Security, f.Category)
	require.Equal(t, analysis.StateDone, s.State())
}

func TestScanDangerousEval(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "handler.py"), "eval(user_input)\n")

	s := New(testRegistry(t), Options{})
	result, err := s.Run(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, result.Findings, 1)
	require.Equal(t, "dangerous-eval", result.Findings[0].RuleID)
	require.Equal(t, analysis.Security, result.Findings[0].Category)
	require.Equal(t, 1, result.CountsByCategory[analysis.Security])
	require.Equal(t, 1, result.CountsBySeverity[analysis.Critical])
}

func TestScanEmptyTree(t *testing.T) {
	s := New(testRegistry(t), Options{})
	result, err := s.Run(context.Background(), t.TempDir())
	require.NoError(t, err)

	require.NotNil(t, result.Findings)
	require.Empty(t, result.Findings)
	require.Equal(t, "A+", result.Grade)
	require.Equal(t, 0, result.Metadata.FilesScanned)
}

func TestScanDedupSameRuleMultiplePatterns(t *testing.T) {
	// both todo-comment alternatives hit the same line; they must
	// collapse to one finding
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "note.txt"), "# TODO // TODO same line\n")

	s := New(testRegistry(t), Options{})
	result, err := s.Run(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, result.Findings, 1)
	require.Equal(t, "todo-comment", result.Findings[0].RuleID)
}

func TestScanTwoRulesSameLineBothSurvive(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app.py"), `eval(x); password = "hunter2"`+"\n")

	s := New(testRegistry(t), Options{})
	result, err := s.Run(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, result.Findings, 2)
	ids := []string{result.Findings[0].RuleID, result.Findings[1].RuleID}
	require.ElementsMatch(t, []string{"dangerous-eval", "hardcoded-secret"}, ids)
	require.Equal(t, result.Findings[0].Line, result.Findings[1].Line)
}

func TestScanExcludeGlobWinsOverInclude(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "skip", "bad.py"), "eval(x)\n")
	writeFile(t, filepath.Join(root, "keep", "bad.py"), "eval(x)\n")

	s := New(testRegistry(t), Options{
		Includes: []string{"**/*.py"},
		Excludes: []string{"skip/**"},
	})
	result, err := s.Run(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, result.Findings, 1)
	require.Equal(t, "keep/bad.py", result.Findings[0].File)
}

func TestScanDeterministicAcrossWorkerCounts(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 60; i++ {
		dir := fmt.Sprintf("pkg%02d", i%7)
		name := fmt.Sprintf("file%02d.py", i)
		body := fmt.Sprintf("# module %d\npassword = \"secret%d\"\n# TODO tidy\neval(input())\n", i, i)
		writeFile(t, filepath.Join(root, dir, name), body)
	}

	run := func(workers int) *analysis.Result {
		s := New(testRegistry(t), Options{Workers: workers})
		result, err := s.Run(context.Background(), root)
		require.NoError(t, err)
		return result
	}

	one := run(1)
	eight := run(8)

	require.Equal(t, len(one.Findings), len(eight.Findings))
	require.Equal(t, one.Findings, eight.Findings)
	require.Equal(t, one.CountsBySeverity, eight.CountsBySeverity)
	require.Equal(t, one.CountsByCategory, eight.CountsByCategory)
	require.Equal(t, one.Grade, eight.Grade)
}

func TestScanIdempotent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.py"), "eval(x)\n")
	writeFile(t, filepath.Join(root, "b.py"), `password = "x1y2"`+"\n")

	s := New(testRegistry(t), Options{Workers: 4})
	first, err := s.Run(context.Background(), root)
	require.NoError(t, err)
	second, err := s.Run(context.Background(), root)
	require.NoError(t, err)

	require.Equal(t, first.Findings, second.Findings)
	require.Equal(t, first.Grade, second.Grade)
}

func TestScanUnreadableFileIsRecovered(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("root ignores file permissions")
	}
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ok.py"), "eval(x)\n")
	locked := filepath.Join(root, "locked.py")
	writeFile(t, locked, "eval(x)\n")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o644) })

	s := New(testRegistry(t), Options{})
	result, err := s.Run(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, result.Findings, 1)
	require.Equal(t, "ok.py", result.Findings[0].File)
	require.Equal(t, 1, result.Metadata.FilesScanned)
	require.GreaterOrEqual(t, result.Metadata.FilesSkipped, 1)
	require.NotEmpty(t, result.Metadata.Warnings)
}

func TestScanRuleDeadlineIsRecovered(t *testing.T) {
	// a timeout every evaluation blows through must not fail the run;
	// the evaluations are skipped and counted, and the scan completes
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.py"), "eval(x)\n")
	writeFile(t, filepath.Join(root, "b.py"), `password = "x1y2"`+"\n")

	s := New(testRegistry(t), Options{RuleTimeout: time.Nanosecond})
	result, err := s.Run(context.Background(), root)
	require.NoError(t, err)

	require.Equal(t, analysis.StateDone, s.State())
	require.False(t, result.Metadata.Partial)
	require.Equal(t, 2, result.Metadata.FilesScanned)
	require.GreaterOrEqual(t, result.Metadata.EvaluationsSkipped, 1)
	require.NotEmpty(t, result.Metadata.Warnings)
	require.Empty(t, result.Findings)
	require.Equal(t, "A+", result.Grade)
}

func TestScanCancellationFlagsPartial(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 20; i++ {
		writeFile(t, filepath.Join(root, fmt.Sprintf("f%02d.py", i)), "eval(x)\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(testRegistry(t), Options{Workers: 2})
	result, err := s.Run(ctx, root)
	require.Error(t, err)
	require.Equal(t, analysis.StateFailed, s.State())
	require.NotNil(t, result)
	require.True(t, result.Metadata.Partial)
}

func TestScanSanitizerLowersConfidence(t *testing.T) {
	doc := `
rules:
  - id: secret-assign
    category: security
    severity: high
    patterns: ['(?i)password\s*=']
    sanitizers: ['os\.getenv']
    message: "m"
    remediation: "r"
    confidence: high
`
	reg, err := rules.Load(rules.Source{Name: "s.yaml", Data: []byte(doc)})
	require.NoError(t, err)

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "clean.py"), "password = os.getenv(\"PW\")\n")
	writeFile(t, filepath.Join(root, "dirty.py"), "password = \"letmein\"\n")

	s := New(reg, Options{})
	result, err := s.Run(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, result.Findings, 2)

	byFile := map[string]analysis.Confidence{}
	for _, f := range result.Findings {
		byFile[f.File] = f.Confidence
	}
	require.Equal(t, analysis.ConfidenceMedium, byFile["clean.py"])
	require.Equal(t, analysis.ConfidenceHigh, byFile["dirty.py"])
}

func TestScanLanguageScopedRules(t *testing.T) {
	doc := `
rules:
  - id: go-only
    category: quality
    severity: low
    languages: [go]
    patterns: ['fmt\.Println']
    message: "m"
    remediation: "r"
    confidence: high
`
	reg, err := rules.Load(rules.Source{Name: "s.yaml", Data: []byte(doc)})
	require.NoError(t, err)

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.go"), "fmt.Println(1)\n")
	writeFile(t, filepath.Join(root, "main.py"), "fmt.Println(1)\n")

	s := New(reg, Options{})
	result, err := s.Run(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, result.Findings, 1)
	require.Equal(t, "main.go", result.Findings[0].File)
}

func TestScanMetadataPopulated(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.py"), "eval(x)\n")

	s := New(testRegistry(t), Options{})
	result, err := s.Run(context.Background(), root)
	require.NoError(t, err)

	require.NotEmpty(t, result.Metadata.RunID)
	require.False(t, result.Metadata.StartedAt.IsZero())
	require.False(t, result.Metadata.CompletedAt.IsZero())
	require.Equal(t, 1, result.Metadata.FilesScanned)
	require.False(t, result.Metadata.Partial)
}

func TestDedupeKeepsHighestConfidence(t *testing.T) {
	in := []analysis.Finding{
		{RuleID: "r", File: "f.py", Line: 1, Severity: analysis.Low, Category: analysis.Quality, Confidence: analysis.ConfidenceLow},
		{RuleID: "r", File: "f.py", Line: 1, Severity: analysis.Low, Category: analysis.Quality, Confidence: analysis.ConfidenceHigh},
		{RuleID: "r", File: "f.py", Line: 2, Severity: analysis.Low, Category: analysis.Quality, Confidence: analysis.ConfidenceLow},
	}
	out, err := dedupe(in)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, analysis.ConfidenceHigh, out[0].Confidence)
}

func TestDedupeRejectsMalformedFinding(t *testing.T) {
	cases := []analysis.Finding{
		{File: "f.py", Line: 1, Severity: analysis.Low, Category: analysis.Quality, Confidence: analysis.ConfidenceLow},
		{RuleID: "r", Line: 1, Severity: analysis.Low, Category: analysis.Quality, Confidence: analysis.ConfidenceLow},
		{RuleID: "r", File: "f.py", Line: 0, Severity: analysis.Low, Category: analysis.Quality, Confidence: analysis.ConfidenceLow},
		{RuleID: "r", File: "f.py", Line: 1, Severity: "nope", Category: analysis.Quality, Confidence: analysis.ConfidenceLow},
		{RuleID: "r", File: "f.py", Line: 1, Severity: analysis.Low, Category: "nope", Confidence: analysis.ConfidenceLow},
		{RuleID: "r", File: "f.py", Line: 1, Severity: analysis.Low, Category: analysis.Quality, Confidence: "nope"},
	}
	for _, f := range cases {
		_, err := dedupe([]analysis.Finding{f})
		var aggErr *analysis.AggregationError
		require.ErrorAs(t, err, &aggErr)
	}
}
