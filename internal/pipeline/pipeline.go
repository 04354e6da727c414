package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/telhawk-systems/reconcile/common/logging"
	"github.com/telhawk-systems/reconcile/common/table"
	"github.com/telhawk-systems/reconcile/internal/config"
	"github.com/telhawk-systems/reconcile/internal/correlation"
	"github.com/telhawk-systems/reconcile/internal/duration"
	"github.com/telhawk-systems/reconcile/internal/loader"
	"github.com/telhawk-systems/reconcile/internal/metrics"
	"github.com/telhawk-systems/reconcile/internal/normalizer"
)

// Derivation appends one elapsed-time column to the correlated table.
type Derivation struct {
	Start  string
	End    string
	Unit   duration.Unit
	Suffix string
}

// Stages are the collaborators a pipeline runs, in order.
type Stages struct {
	Loader       *loader.Loader
	Sources      map[string]string
	Normalizer   *normalizer.Normalizer
	IntakeRules  []normalizer.Rule
	OutcomeRules []normalizer.Rule
	Correlator   *correlation.Correlator
	Derivations  []Derivation
}

// Pipeline orchestrates retrieval, date normalization, correlation and
// duration derivation.
type Pipeline struct {
	stages Stages
	logger *logging.Logger
}

// Result is the outcome of one run.
type Result struct {
	RunID    string
	Table    *table.Table
	Stats    correlation.Stats
	Failures []*loader.RetrievalError
	Elapsed  time.Duration
}

// New creates a pipeline instance.
func New(stages Stages, logger *logging.Logger) (*Pipeline, error) {
	if stages.Normalizer == nil || stages.Correlator == nil {
		return nil, fmt.Errorf("pipeline requires a normalizer and a correlator")
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Pipeline{stages: stages, logger: logger}, nil
}

// FromConfig wires every stage from cfg.
func FromConfig(cfg *config.Config, logger *logging.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	order, err := correlation.ParseOrder(cfg.Correlation.Order)
	if err != nil {
		return nil, err
	}
	c, err := correlation.New(correlation.Options{
		EntityColumn:      cfg.Correlation.EntityColumn,
		IntakeTimeColumn:  cfg.Correlation.IntakeTimeColumn,
		OutcomeTimeColumn: cfg.Correlation.OutcomeTimeColumn,
		IntakeSuffix:      cfg.Correlation.IntakeSuffix,
		OutcomeSuffix:     cfg.Correlation.OutcomeSuffix,
		Order:             order,
	}, logger)
	if err != nil {
		return nil, err
	}

	derivations := make([]Derivation, 0, len(cfg.Derive))
	for _, d := range cfg.Derive {
		unit, err := duration.ParseUnit(d.Unit)
		if err != nil {
			return nil, fmt.Errorf("derive %s -> %s: %w", d.Start, d.End, err)
		}
		derivations = append(derivations, Derivation{Start: d.Start, End: d.End, Unit: unit, Suffix: d.Suffix})
	}

	l := loader.New(loader.NewHTTPClient(cfg.HTTP.Timeout), cfg.HTTP.UserAgent, logger).
		WithRateLimit(cfg.HTTP.RequestsPerSecond, cfg.HTTP.Burst)

	return New(Stages{
		Loader:       l,
		Sources:      cfg.Sources,
		Normalizer:   normalizer.New(cfg.Normalize.SnakeCaseHeaders, logger),
		IntakeRules:  rules(cfg.Normalize.Intake),
		OutcomeRules: rules(cfg.Normalize.Outcome),
		Correlator:   c,
		Derivations:  derivations,
	}, logger)
}

func rules(in []config.DateRule) []normalizer.Rule {
	out := make([]normalizer.Rule, len(in))
	for i, r := range in {
		out[i] = normalizer.Rule{Column: r.Column, Format: r.Format, Optional: r.Optional}
	}
	return out
}

// Run retrieves the configured sources and processes them. Logs emitted
// during the run carry a fresh run ID.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if p == nil {
		return nil, fmt.Errorf("pipeline not configured")
	}
	if p.stages.Loader == nil {
		return nil, fmt.Errorf("pipeline has no loader")
	}
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	start := time.Now()

	p.logger.InfoContext(ctx, "Starting reconciliation run", logging.Stage("load"))
	ds := p.stages.Loader.Load(ctx, p.stages.Sources)
	intake, outcome, err := ds.IntakeOutcome()
	if err != nil {
		metrics.RunsTotal.WithLabelValues("failure").Inc()
		p.logger.ErrorContext(ctx, "Required dataset missing", logging.Error(err))
		return nil, fmt.Errorf("load: %w", err)
	}

	res, err := p.process(ctx, intake, outcome)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("failure").Inc()
		p.logger.ErrorContext(ctx, "Reconciliation run failed", logging.Error(err))
		return nil, err
	}
	res.RunID = runID
	res.Failures = ds.Failures()
	res.Elapsed = time.Since(start)

	metrics.RunsTotal.WithLabelValues("success").Inc()
	p.logger.InfoContext(ctx, "Reconciliation run complete",
		logging.Rows(res.Table.Rows()),
		logging.Duration(res.Elapsed))
	return res, nil
}

// Process runs every stage after retrieval on tables the caller already has.
func (p *Pipeline) Process(ctx context.Context, intake, outcome *table.Table) (*Result, error) {
	runID := logging.GetRunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = logging.WithRunID(ctx, runID)
	}
	start := time.Now()
	res, err := p.process(ctx, intake, outcome)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("failure").Inc()
		p.logger.ErrorContext(ctx, "Reconciliation run failed", logging.Error(err))
		return nil, err
	}
	res.RunID = runID
	res.Elapsed = time.Since(start)
	metrics.RunsTotal.WithLabelValues("success").Inc()
	return res, nil
}

func (p *Pipeline) process(ctx context.Context, intake, outcome *table.Table) (*Result, error) {
	// normalization renames and replaces columns, so work on copies
	intake, outcome = intake.Clone(), outcome.Clone()

	n := p.stages.Normalizer
	if _, err := n.Apply(ctx, loader.Intake, intake, p.stages.IntakeRules); err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	if _, err := n.Apply(ctx, loader.Outcome, outcome, p.stages.OutcomeRules); err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}

	correlated, err := p.stages.Correlator.Correlate(ctx, intake, outcome)
	if err != nil {
		return nil, fmt.Errorf("correlate: %w", err)
	}

	out := correlated.Table
	for _, d := range p.stages.Derivations {
		if !out.HasColumn(d.Start) || !out.HasColumn(d.End) {
			p.logger.DebugContext(ctx, "Skipping derivation, columns absent",
				logging.Stage("derive"),
				logging.Column(duration.ColumnName(d.Start, d.Unit, d.Suffix)))
			continue
		}
		col, err := duration.Between(out, d.Start, d.End, d.Unit, d.Suffix)
		if err != nil {
			return nil, fmt.Errorf("derive: %w", err)
		}
		if err := out.AddColumn(col); err != nil {
			return nil, fmt.Errorf("derive: %w", err)
		}
	}

	return &Result{Table: out, Stats: correlated.Stats}, nil
}
