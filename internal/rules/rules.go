// Package rules turns CEL expressions over the metrics snapshot into health
// checks, so operators can declare threshold alerts in configuration instead
// of code.
package rules

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/pulsewatch/pulsewatch/internal/errors"
	"github.com/pulsewatch/pulsewatch/internal/health"
	"github.com/pulsewatch/pulsewatch/internal/logging"
	"github.com/pulsewatch/pulsewatch/internal/metrics"
)

// Rule is a CEL-based threshold rule evaluated against the current metrics
// snapshot. The expression must return a boolean; false marks the rule's
// health check unhealthy.
//
// Available variables:
//   - metrics: map from canonical series key to a map with fields
//     type, labels, and either value (counters, gauges) or
//     count/sum/min/max/p50/p95/p99 (histograms)
//   - uptime_seconds: process uptime as a double
//
// Indexing a series that does not exist yet fails the evaluation; guard with
// `"name" in metrics` when a series appears lazily.
type Rule struct {
	Name       string `yaml:"name" json:"name"`
	Expression string `yaml:"expression" json:"expression"`
	Message    string `yaml:"message,omitempty" json:"message,omitempty"`
	Critical   bool   `yaml:"critical" json:"critical"`
}

// Engine holds compiled rule programs bound to one collector
type Engine struct {
	logger    *logging.Logger
	collector *metrics.Collector
	rules     []Rule
	programs  map[string]cel.Program
}

// NewEngine compiles every rule expression. A rule that does not compile or
// does not return a boolean is a permanent configuration error.
func NewEngine(logger *logging.Logger, collector *metrics.Collector, ruleSet []Rule) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("metrics", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("uptime_seconds", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	engine := &Engine{
		logger:    logger,
		collector: collector,
		rules:     ruleSet,
		programs:  make(map[string]cel.Program, len(ruleSet)),
	}

	for _, rule := range ruleSet {
		if rule.Name == "" {
			return nil, errors.NewPermanentf("rule without a name: %q", rule.Expression)
		}
		if rule.Expression == "" {
			return nil, errors.NewPermanentf("rule %q has no expression", rule.Name)
		}

		ast, issues := env.Compile(rule.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, errors.NewPermanentf("rule %q does not compile: %w", rule.Name, issues.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, errors.NewPermanentf("rule %q must return a boolean, got %v", rule.Name, ast.OutputType())
		}

		program, err := env.Program(ast)
		if err != nil {
			return nil, errors.NewPermanentf("rule %q program creation failed: %w", rule.Name, err)
		}
		engine.programs[rule.Name] = program
	}

	return engine, nil
}

// Rules returns the configured rule set
func (e *Engine) Rules() []Rule {
	return e.rules
}

// Register adds one health check per rule to the monitor, named
// "rule:<name>"
func (e *Engine) Register(monitor *health.Monitor) {
	for _, rule := range e.rules {
		monitor.AddCheck("rule:"+rule.Name, e.Check(rule), health.CheckOptions{
			Critical: rule.Critical,
		})
	}
	e.logger.Info("metric rules registered", map[string]any{
		"rules": len(e.rules),
	})
}

// Check builds the health check evaluating one rule against a fresh snapshot
func (e *Engine) Check(rule Rule) health.CheckFunc {
	program := e.programs[rule.Name]

	return func(ctx context.Context) (any, error) {
		out, _, err := program.ContextEval(ctx, map[string]any{
			"metrics":        flattenSnapshot(e.collector.Snapshot()),
			"uptime_seconds": e.collector.Uptime().Seconds(),
		})
		if err != nil {
			return nil, errors.NewTransientf("rule %q evaluation failed: %w", rule.Name, err)
		}

		passed, ok := out.Value().(bool)
		if !ok {
			return nil, errors.NewPermanentf("rule %q returned non-boolean %T", rule.Name, out.Value())
		}

		if !passed {
			msg := rule.Message
			if msg == "" {
				msg = fmt.Sprintf("expression %q is false", rule.Expression)
			}
			return nil, fmt.Errorf("%w: %s", errors.ErrCheckFailed, msg)
		}

		return map[string]any{"expression": rule.Expression}, nil
	}
}

// flattenSnapshot converts the typed snapshot into the dyn maps CEL indexes
func flattenSnapshot(snapshot map[string]metrics.SeriesSnapshot) map[string]any {
	out := make(map[string]any, len(snapshot))
	for key, snap := range snapshot {
		entry := map[string]any{
			"type": string(snap.Type),
		}
		if len(snap.Labels) > 0 {
			entry["labels"] = snap.Labels
		}
		if snap.Value != nil {
			entry["value"] = *snap.Value
		}
		if snap.HistogramStats != nil {
			entry["count"] = int64(snap.Count)
			entry["sum"] = snap.Sum
			entry["min"] = snap.Min
			entry["max"] = snap.Max
			entry["p50"] = snap.P50
			entry["p95"] = snap.P95
			entry["p99"] = snap.P99
		}
		out[key] = entry
	}
	return out
}
