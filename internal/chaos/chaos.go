// Package chaos runs contention experiments against a circulation target:
// validate steady state, inject load, observe, roll back, then check the
// hypothesis against the last observation of each metric.
package chaos

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrSteadyStateInvalid aborts an experiment before any load is injected.
var ErrSteadyStateInvalid = errors.New("steady state invalid")

// Experiment defines one contention test.
type Experiment struct {
	Name        string
	Hypothesis  string
	SteadyState []Metric
	Method      []Action
	Rollback    []Action
	Validation  []Assertion
	// Duration bounds the observation phase. Zero takes a single sample.
	Duration time.Duration
}

// Metric defines a measurable system property
type Metric struct {
	Name      string
	Query     func(context.Context) (float64, error)
	Threshold Threshold
}

type Threshold struct {
	Operator string // >, <, >=, <=, ==
	Value    float64
}

// Action injects load or undoes it.
type Action struct {
	Type    string
	Target  string
	Execute func(context.Context) error
}

// Assertion validates experiment outcome
type Assertion struct {
	Metric    string
	Condition func(float64) bool
	Message   string
}

// ExperimentResult captures experiment execution data
type ExperimentResult struct {
	ExperimentName   string                 `json:"experiment_name"`
	StartTime        time.Time              `json:"start_time"`
	EndTime          time.Time              `json:"end_time"`
	Duration         time.Duration          `json:"duration"`
	HypothesisHeld   bool                   `json:"hypothesis_held"`
	SteadyStateValid bool                   `json:"steady_state_valid"`
	Violations       []MetricViolation      `json:"violations"`
	Observations     map[string][]DataPoint `json:"observations"`
	ErrorEvents      []ErrorEvent           `json:"error_events"`
	FailedAssertions []string               `json:"failed_assertions,omitempty"`
	MTTR             *time.Duration         `json:"mttr,omitempty"`
}

type MetricViolation struct {
	MetricName string    `json:"metric_name"`
	Expected   float64   `json:"expected"`
	Actual     float64   `json:"actual"`
	Timestamp  time.Time `json:"timestamp"`
}

type DataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type ErrorEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
	Component string    `json:"component"`
}

// Runner executes experiments and keeps their results.
type Runner struct {
	tracer   trace.Tracer
	logger   *slog.Logger
	interval time.Duration
	mu       sync.Mutex
	results  []ExperimentResult
}

type Option func(*Runner)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithSampleInterval sets how often metrics are sampled while observing.
func WithSampleInterval(d time.Duration) Option {
	return func(r *Runner) { r.interval = d }
}

func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		tracer:   otel.Tracer("libraflow/chaos"),
		logger:   slog.Default(),
		interval: time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Results returns a copy of every result recorded so far.
func (r *Runner) Results() []ExperimentResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ExperimentResult(nil), r.results...)
}

// Run executes a single experiment.
func (r *Runner) Run(ctx context.Context, exp Experiment) (*ExperimentResult, error) {
	ctx, span := r.tracer.Start(ctx, "chaos.run_experiment",
		trace.WithAttributes(attribute.String("experiment.name", exp.Name)),
	)
	defer span.End()

	result := &ExperimentResult{
		ExperimentName: exp.Name,
		StartTime:      time.Now(),
		Observations:   make(map[string][]DataPoint),
		ErrorEvents:    make([]ErrorEvent, 0),
	}

	span.AddEvent("validating_steady_state")
	if valid, violations := r.validateSteadyState(ctx, exp.SteadyState); !valid {
		result.Violations = violations
		return result, ErrSteadyStateInvalid
	}
	result.SteadyStateValid = true

	span.AddEvent("injecting_load")
	for _, action := range exp.Method {
		if err := action.Execute(ctx); err != nil {
			result.recordError(action.Target, err)
			span.RecordError(err)
		}
	}

	span.AddEvent("observing_system")
	r.observe(ctx, exp, result)

	span.AddEvent("rolling_back")
	for _, action := range exp.Rollback {
		if err := action.Execute(ctx); err != nil {
			result.recordError(action.Target, err)
			span.RecordError(err)
		}
	}

	span.AddEvent("validating_assertions")
	result.FailedAssertions = validateAssertions(exp.Validation, result)
	result.HypothesisHeld = len(result.FailedAssertions) == 0
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	r.mu.Lock()
	r.results = append(r.results, *result)
	r.mu.Unlock()

	span.SetAttributes(
		attribute.Bool("hypothesis_held", result.HypothesisHeld),
		attribute.Int("violations", len(result.Violations)),
	)
	return result, nil
}

func (r *Runner) observe(ctx context.Context, exp Experiment, result *ExperimentResult) {
	var recoveryStart time.Time
	recovered := false

	sample := func() {
		for _, metric := range exp.SteadyState {
			value, err := metric.Query(ctx)
			if err != nil {
				result.recordError(metric.Name, err)
				continue
			}
			now := time.Now()
			result.Observations[metric.Name] = append(result.Observations[metric.Name], DataPoint{Timestamp: now, Value: value})

			if !metric.Threshold.holds(value) {
				if recoveryStart.IsZero() {
					recoveryStart = now
				}
				result.Violations = append(result.Violations, MetricViolation{
					MetricName: metric.Name,
					Expected:   metric.Threshold.Value,
					Actual:     value,
					Timestamp:  now,
				})
			} else if !recoveryStart.IsZero() && !recovered {
				mttr := now.Sub(recoveryStart)
				result.MTTR = &mttr
				recovered = true
			}
		}
	}

	sample()
	if exp.Duration <= 0 {
		return
	}

	observeCtx, cancel := context.WithTimeout(ctx, exp.Duration)
	defer cancel()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-observeCtx.Done():
			return
		case <-ticker.C:
			sample()
		}
	}
}

func (r *Runner) validateSteadyState(ctx context.Context, metrics []Metric) (bool, []MetricViolation) {
	violations := make([]MetricViolation, 0)

	for _, metric := range metrics {
		value, err := metric.Query(ctx)
		if err != nil {
			r.logger.WarnContext(ctx, "steady state query failed", "metric", metric.Name, "error", err)
			violations = append(violations, MetricViolation{
				MetricName: metric.Name,
				Expected:   metric.Threshold.Value,
				Actual:     -1,
				Timestamp:  time.Now(),
			})
			continue
		}

		if !metric.Threshold.holds(value) {
			violations = append(violations, MetricViolation{
				MetricName: metric.Name,
				Expected:   metric.Threshold.Value,
				Actual:     value,
				Timestamp:  time.Now(),
			})
		}
	}

	return len(violations) == 0, violations
}

func (t Threshold) holds(value float64) bool {
	switch t.Operator {
	case ">":
		return value > t.Value
	case "<":
		return value < t.Value
	case ">=":
		return value >= t.Value
	case "<=":
		return value <= t.Value
	case "==":
		return value == t.Value
	default:
		return false
	}
}

// validateAssertions returns the messages of assertions that did not hold
// on the final observation of their metric.
func validateAssertions(assertions []Assertion, result *ExperimentResult) []string {
	var failed []string
	for _, assertion := range assertions {
		observations := result.Observations[assertion.Metric]
		if len(observations) == 0 || !assertion.Condition(observations[len(observations)-1].Value) {
			failed = append(failed, assertion.Message)
		}
	}
	return failed
}

func (res *ExperimentResult) recordError(component string, err error) {
	res.ErrorEvents = append(res.ErrorEvents, ErrorEvent{
		Timestamp: time.Now(),
		Error:     err.Error(),
		Component: component,
	})
}

// GameDay is a named series of experiments.
type GameDay struct {
	Name      string
	Scenarios []Experiment
	// Pause is the wait between scenarios.
	Pause time.Duration
}

// ExecuteGameDay runs every scenario in order. A scenario whose steady state
// is invalid is logged and skipped.
func (r *Runner) ExecuteGameDay(ctx context.Context, gameDay GameDay) ([]*ExperimentResult, error) {
	ctx, span := r.tracer.Start(ctx, "chaos.game_day",
		trace.WithAttributes(attribute.String("gameday.name", gameDay.Name)),
	)
	defer span.End()

	r.logger.InfoContext(ctx, "game day started", "name", gameDay.Name, "scenarios", len(gameDay.Scenarios))

	results := make([]*ExperimentResult, 0, len(gameDay.Scenarios))
	for i, scenario := range gameDay.Scenarios {
		if i > 0 && gameDay.Pause > 0 {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(gameDay.Pause):
			}
		}

		result, err := r.Run(ctx, scenario)
		results = append(results, result)
		if err != nil {
			r.logger.ErrorContext(ctx, "experiment aborted", "experiment", scenario.Name, "error", err)
			continue
		}

		attrs := []any{
			"experiment", scenario.Name,
			"hypothesis", scenario.Hypothesis,
			"held", result.HypothesisHeld,
			"violations", len(result.Violations),
			"duration", result.Duration,
		}
		if result.MTTR != nil {
			attrs = append(attrs, "mttr", *result.MTTR)
		}
		if result.HypothesisHeld {
			r.logger.InfoContext(ctx, "experiment finished", attrs...)
		} else {
			r.logger.WarnContext(ctx, "hypothesis violated", append(attrs, "failed", result.FailedAssertions)...)
		}
	}
	return results, nil
}
