package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sentinelscan/sentinel/pkg/analysis"
	"github.com/sentinelscan/sentinel/pkg/config"
	"github.com/sentinelscan/sentinel/pkg/logme"
	"github.com/sentinelscan/sentinel/pkg/report"
	"github.com/sentinelscan/sentinel/pkg/rules"
	"github.com/sentinelscan/sentinel/pkg/rules/builtin"
	"github.com/sentinelscan/sentinel/pkg/scanner"
)

// stringList is a repeatable flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	var (
		ruleFlags    stringList
		includeFlags stringList
		excludeFlags stringList

		configFlag    = flag.String("config", "", "Path to configuration file (default: sentinel.yaml if present)")
		formatFlag    = flag.String("format", "", "Output format: cli, json, markdown, html, sarif")
		failOnFlag    = flag.String("fail-on", "", "Exit non-zero when a finding is at or above this severity")
		workersFlag   = flag.Int("workers", 0, "Worker pool size (0 = one per CPU)")
		noBuiltinFlag = flag.Bool("no-builtin", false, "Skip the embedded rule set")
	)
	flag.Var(&ruleFlags, "rules", "Rule document to load (repeatable)")
	flag.Var(&includeFlags, "include", "Include glob (repeatable)")
	flag.Var(&excludeFlags, "exclude", "Exclude glob (repeatable)")
	flag.Parse()

	root := "."
	if flag.NArg() > 0 {
		root = flag.Arg(0)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		logme.Errorln(fmt.Errorf("couldn't read configuration: %w", err))
		os.Exit(1)
	}

	// flags win over file and env
	if len(ruleFlags) > 0 {
		cfg.Rules = append(cfg.Rules, ruleFlags...)
	}
	if len(includeFlags) > 0 {
		cfg.Include = includeFlags
	}
	if len(excludeFlags) > 0 {
		cfg.Exclude = excludeFlags
	}
	if *formatFlag != "" {
		cfg.Format = *formatFlag
	}
	if *failOnFlag != "" {
		cfg.FailOn = *failOnFlag
	}
	if *workersFlag > 0 {
		cfg.Workers = *workersFlag
	}
	if *noBuiltinFlag {
		cfg.NoBuiltin = true
	}

	marshaler, err := report.ForFormat(cfg.Format)
	if err != nil {
		logme.Errorln(err)
		os.Exit(1)
	}

	var sources []rules.Source
	if !cfg.NoBuiltin {
		sources = builtin.Sources()
	}
	for _, path := range cfg.Rules {
		src, err := rules.FromFile(path)
		if err != nil {
			logme.Errorln(err)
			os.Exit(1)
		}
		sources = append(sources, src)
	}

	registry, err := rules.Load(sources...)
	if err != nil {
		logme.Errorln(fmt.Errorf("couldn't load rules: %w", err))
		os.Exit(1)
	}
	logme.DebugFln("registry holds %d rules", registry.Len())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := scanner.New(registry, scanner.Options{
		Includes:    cfg.Include,
		Excludes:    cfg.Exclude,
		Workers:     cfg.Workers,
		MaxFileSize: cfg.MaxFileSize,
		RuleTimeout: cfg.RuleTimeout(),
	})

	result, err := s.Run(ctx, root)
	if err != nil && result == nil {
		logme.Errorln(fmt.Errorf("scan failed: %w", err))
		os.Exit(1)
	}
	if err != nil {
		logme.Warnln("scan interrupted, reporting partial results")
	}

	out, err := marshaler.Marshal(result)
	if err != nil {
		logme.Errorln(fmt.Errorf("couldn't serialize result: %w", err))
		os.Exit(1)
	}
	fmt.Fprint(os.Stdout, string(out))

	if cfg.FailOn != "" {
		os.Exit(report.ExitCode(analysis.Severity(cfg.FailOn), result))
	}
}
