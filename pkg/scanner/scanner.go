// Package scanner orchestrates one scan invocation: walking files,
// classifying them, evaluating applicable rules concurrently, and
// aggregating findings into an immutable result.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sentinelscan/sentinel/pkg/analysis"
	"github.com/sentinelscan/sentinel/pkg/evaluator"
	"github.com/sentinelscan/sentinel/pkg/grade"
	"github.com/sentinelscan/sentinel/pkg/language"
	"github.com/sentinelscan/sentinel/pkg/logme"
	"github.com/sentinelscan/sentinel/pkg/rules"
	"github.com/sentinelscan/sentinel/pkg/walker"
)

type Options struct {
	// Includes/Excludes are doublestar globs matched against paths
	// relative to the scan root. Excludes win.
	Includes []string
	Excludes []string
	// Workers bounds the worker pool. Defaults to GOMAXPROCS.
	Workers int
	// MaxFileSize is passed through to the walker.
	MaxFileSize int64
	// RuleTimeout bounds each (file, rule) evaluation.
	RuleTimeout time.Duration
}

// Scanner runs scans against a shared read-only registry. One Scanner
// may be reused for multiple Run calls, but each call produces an
// independent result.
type Scanner struct {
	registry *rules.Registry
	opts     Options

	mu    sync.Mutex
	state analysis.State
}

func New(registry *rules.Registry, opts Options) *Scanner {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.RuleTimeout <= 0 {
		opts.RuleTimeout = evaluator.DefaultTimeout
	}
	return &Scanner{
		registry: registry,
		opts:     opts,
		state:    analysis.StateIdle,
	}
}

// State reports where the current (or last) run is in its lifecycle.
func (s *Scanner) State() analysis.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scanner) setState(state analysis.State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Run scans root and returns the finalized result. Recovered per-file
// and per-rule problems are counted in the result metadata; only
// configuration and aggregation defects, or cancellation, fail the
// run. On cancellation the partial result is returned alongside the
// error with its Partial flag set.
func (s *Scanner) Run(ctx context.Context, root string) (*analysis.Result, error) {
	meta := analysis.RunMetadata{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	var warnMu sync.Mutex
	warn := func(counter *int, format string, args ...interface{}) {
		msg := fmt.Sprintf(format, args...)
		warnMu.Lock()
		*counter++
		meta.Warnings = append(meta.Warnings, msg)
		warnMu.Unlock()
		logme.Warnln(msg)
	}

	s.setState(analysis.StateScanning)

	files := walker.Walk(ctx, root, walker.Options{
		Includes:    s.opts.Includes,
		Excludes:    s.opts.Excludes,
		MaxFileSize: s.opts.MaxFileSize,
		OnSkip: func(rel, reason string) {
			warn(&meta.FilesSkipped, "skipped %s: %s", rel, reason)
		},
	})

	// Workers push per-file finding batches here; the collector is the
	// only reader, so aggregation order never races.
	batches := make(chan []analysis.Finding)

	var collected []analysis.Finding
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for batch := range batches {
			collected = append(collected, batch...)
		}
	}()

	var scanned int64
	var scannedMu sync.Mutex

	eg, egctx := errgroup.WithContext(ctx)
	for i := 0; i < s.opts.Workers; i++ {
		eg.Go(func() error {
			for file := range files {
				findings, ok, err := s.scanFile(egctx, file, warn, &meta)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				scannedMu.Lock()
				scanned++
				scannedMu.Unlock()
				if len(findings) == 0 {
					continue
				}
				select {
				case batches <- findings:
				case <-egctx.Done():
					return egctx.Err()
				}
			}
			return egctx.Err()
		})
	}

	runErr := eg.Wait()
	close(batches)
	<-collectorDone

	meta.FilesScanned = int(scanned)

	if runErr != nil {
		// cancellation: keep what we have, flag it partial
		meta.Partial = true
		meta.CompletedAt = time.Now().UTC()
		result, aggErr := finalize(collected, meta)
		s.setState(analysis.StateFailed)
		if aggErr != nil {
			return nil, aggErr
		}
		return result, fmt.Errorf("scan aborted: %w", runErr)
	}

	s.setState(analysis.StateAggregating)
	meta.CompletedAt = time.Now().UTC()
	result, err := finalize(collected, meta)
	if err != nil {
		s.setState(analysis.StateFailed)
		return nil, err
	}

	s.setState(analysis.StateReporting)
	s.setState(analysis.StateDone)
	return result, nil
}

// scanFile runs classification, evaluation, and synthesis for one file.
// IO problems and evaluation timeouts are recovered into warnings; only
// cancellation is returned as an error. ok reports whether the file was
// actually scanned rather than skipped.
func (s *Scanner) scanFile(ctx context.Context, file walker.File, warn func(*int, string, ...interface{}), meta *analysis.RunMetadata) (findings []analysis.Finding, ok bool, err error) {
	data, err := os.ReadFile(file.Path)
	if err != nil {
		warn(&meta.FilesSkipped, "skipped %s: %v", file.Rel, err)
		return nil, false, nil
	}

	content := evaluator.NewContent(data)
	lang := language.Classify(file.Rel, content.Head(128))

	for _, rule := range s.registry.ApplicableTo(lang) {
		matches, err := evaluator.Evaluate(ctx, content, rule, s.opts.RuleTimeout)
		if err != nil {
			if errors.Is(err, evaluator.ErrDeadline) {
				perr := &analysis.PatternError{RuleID: rule.ID, File: file.Rel, Err: err}
				warn(&meta.EvaluationsSkipped, "%v", perr)
				continue
			}
			return nil, false, err
		}
		findings = append(findings, synthesize(content, file.Rel, rule, matches)...)
	}
	return findings, true, nil
}

// finalize is the single-threaded tail of a run: dedup, counts, grade,
// deterministic ordering. The result is immutable from here on.
func finalize(collected []analysis.Finding, meta analysis.RunMetadata) (*analysis.Result, error) {
	findings, err := dedupe(collected)
	if err != nil {
		return nil, err
	}

	analysis.SortFindings(findings)
	bySeverity, byCategory := tally(findings)

	return &analysis.Result{
		Findings:         findings,
		CountsBySeverity: bySeverity,
		CountsByCategory: byCategory,
		Grade:            grade.Grade(bySeverity),
		Metadata:         meta,
	}, nil
}
