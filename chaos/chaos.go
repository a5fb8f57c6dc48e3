// Package chaos runs fault experiments against a live deployment to verify
// the lending invariants hold under contention and partial failure.
package chaos

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Experiment is one hypothesis about system behavior under a fault, with a
// way to run the fault and check the hypothesis afterwards.
type Experiment struct {
	Name       string
	Hypothesis string
	Run        func(ctx context.Context) error
	Validate   func(ctx context.Context) error
}

// Result captures one experiment execution.
type Result struct {
	Experiment string        `json:"experiment"`
	Passed     bool          `json:"passed"`
	Err        string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Engine executes registered experiments sequentially.
type Engine struct {
	experiments []Experiment
	log         zerolog.Logger
	tracer      trace.Tracer
}

func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		log:    log.With().Str("component", "chaos").Logger(),
		tracer: otel.Tracer("libraflow/chaos"),
	}
}

func (e *Engine) Register(exp Experiment) {
	e.experiments = append(e.experiments, exp)
}

// RunAll executes every experiment and returns the results. A failed
// experiment does not stop the rest.
func (e *Engine) RunAll(ctx context.Context) []Result {
	results := make([]Result, 0, len(e.experiments))
	for _, exp := range e.experiments {
		results = append(results, e.runOne(ctx, exp))
	}
	return results
}

func (e *Engine) runOne(ctx context.Context, exp Experiment) Result {
	ctx, span := e.tracer.Start(ctx, "chaos.experiment",
		trace.WithAttributes(attribute.String("experiment.name", exp.Name)))
	defer span.End()

	e.log.Info().Str("experiment", exp.Name).Str("hypothesis", exp.Hypothesis).Msg("starting")
	start := time.Now()

	err := exp.Run(ctx)
	if err == nil && exp.Validate != nil {
		err = exp.Validate(ctx)
	}

	result := Result{
		Experiment: exp.Name,
		Passed:     err == nil,
		Duration:   time.Since(start),
	}
	if err != nil {
		result.Err = err.Error()
		e.log.Error().Str("experiment", exp.Name).Err(err).Msg("hypothesis violated")
	} else {
		e.log.Info().Str("experiment", exp.Name).Dur("duration", result.Duration).Msg("passed")
	}

	span.SetAttributes(attribute.Bool("experiment.passed", result.Passed))
	return result
}

// Summary returns an error if any experiment failed.
func Summary(results []Result) error {
	failed := 0
	for _, r := range results {
		if !r.Passed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d experiments failed", failed, len(results))
	}
	return nil
}
