// Package dispatcher fans a batch of inbound crawl steps out to their
// operation handlers and re-batches the follow-up steps onto the queue.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/govscout-crawler/internal/crawler"
	"github.com/JakeFAU/govscout-crawler/internal/logging"
	"github.com/JakeFAU/govscout-crawler/internal/metrics"
)

// Step is one inbound crawl step.
type Step struct {
	// ID identifies the step within its batch, e.g. the SQS message id.
	ID   string
	Body []byte
}

// StepResult is the outcome of one step.
type StepResult struct {
	ID        string
	Operation string
	Next      []crawler.NextRequest
	Err       error
}

// Result holds per-step outcomes in input order.
type Result struct {
	Steps []StepResult
}

// Next returns the follow-up requests of every successful step, in step order.
func (r Result) Next() []crawler.NextRequest {
	var out []crawler.NextRequest
	for _, s := range r.Steps {
		if s.Err == nil {
			out = append(out, s.Next...)
		}
	}
	return out
}

// FailedSteps returns the ids of the steps that failed.
func (r Result) FailedSteps() []string {
	var out []string
	for _, s := range r.Steps {
		if s.Err != nil {
			out = append(out, s.ID)
		}
	}
	return out
}

// Err applies the batch error policy: nil when every step succeeded, the
// step's own error when exactly one failed, and a *MultiStepError otherwise.
func (r Result) Err() error {
	var errs []error
	for _, s := range r.Steps {
		if s.Err != nil {
			errs = append(errs, s.Err)
		}
	}
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return &MultiStepError{Errs: errs}
	}
}

// MultiStepError reports that more than one step in a batch failed.
type MultiStepError struct {
	Errs []error
}

func (e *MultiStepError) Error() string {
	return fmt.Sprintf("multiple errors occurred: %d crawl steps failed", len(e.Errs))
}

// Unwrap exposes the individual step errors to errors.Is and errors.As.
func (e *MultiStepError) Unwrap() []error {
	return e.Errs
}

// Dispatcher runs steps through the registry.
type Dispatcher struct {
	registry  *crawler.Registry
	publisher crawler.Publisher
	logger    *zap.Logger
}

// New creates a Dispatcher.
func New(registry *crawler.Registry, publisher crawler.Publisher, logger *zap.Logger) (*Dispatcher, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{registry: registry, publisher: publisher, logger: logger}, nil
}

// Dispatch runs every step concurrently and waits for all of them.
func (d *Dispatcher) Dispatch(ctx context.Context, inv crawler.Invocation, steps []Step) Result {
	results := make([]StepResult, len(steps))
	var g errgroup.Group
	for i, step := range steps {
		g.Go(func() error {
			results[i] = d.runStep(ctx, inv, step)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // step errors are kept per result
	return Result{Steps: results}
}

func (d *Dispatcher) runStep(ctx context.Context, inv crawler.Invocation, step Step) StepResult {
	res := StepResult{ID: step.ID}
	logger := logging.ForInvocation(d.logger, inv).With(zap.String("step_id", step.ID))

	var req crawler.CrawlRequest
	if err := json.Unmarshal(step.Body, &req); err != nil {
		res.Err = fmt.Errorf("decode step %s: %w", step.ID, err)
		metrics.ObserveStep("unknown", "error")
		logger.Error("failed to decode step", zap.Error(err))
		return res
	}
	res.Operation = req.Operation

	op, handler, err := d.registry.Resolve(req.Operation)
	if err != nil {
		res.Err = err
		metrics.ObserveStep("unknown", "error")
		logger.Error("failed to resolve operation", zap.String("operation", req.Operation), zap.Error(err))
		return res
	}
	logger = logger.With(zap.String("operation", op.String()))

	next, err := handler(ctx, inv, req)
	if err != nil {
		res.Err = err
		metrics.ObserveStep(op.String(), "error")
		logger.Error("crawl step failed", zap.Error(err))
		return res
	}
	res.Next = next
	metrics.ObserveStep(op.String(), "ok")
	logger.Info("crawl step completed", zap.Int("next_requests", len(next)))
	return res
}

// Run dispatches the batch and publishes the follow-up steps only if every
// step succeeded.
func (d *Dispatcher) Run(ctx context.Context, inv crawler.Invocation, steps []Step) error {
	res := d.Dispatch(ctx, inv, steps)
	if err := res.Err(); err != nil {
		return err
	}
	return d.Publish(ctx, inv, res.Next())
}

// RunPartial dispatches the batch, publishes the follow-up steps of the
// successful steps and returns the ids of the failed ones so that only those
// are redelivered. The error is non-nil only when publishing fails.
func (d *Dispatcher) RunPartial(ctx context.Context, inv crawler.Invocation, steps []Step) ([]string, error) {
	res := d.Dispatch(ctx, inv, steps)
	if err := d.Publish(ctx, inv, res.Next()); err != nil {
		return nil, err
	}
	failed := res.FailedSteps()
	if len(failed) > 0 {
		d.logger.Warn("crawl steps failed", zap.Strings("step_ids", failed), zap.Error(res.Err()))
	}
	return failed, nil
}

// Publish sends next in batches of at most crawler.MaxBatchSize.
func (d *Dispatcher) Publish(ctx context.Context, inv crawler.Invocation, next []crawler.NextRequest) error {
	batches, err := Batches(inv, next)
	if err != nil {
		return err
	}
	for i, batch := range batches {
		if err := d.publisher.PublishBatch(ctx, batch); err != nil {
			return fmt.Errorf("publish batch %d of %d: %w", i+1, len(batches), err)
		}
	}
	for _, n := range next {
		metrics.ObserveNextRequests(n.Operation.String(), 1)
	}
	if len(next) > 0 {
		d.logger.Info("published next requests", zap.Int("count", len(next)), zap.Int("batches", len(batches)))
	}
	return nil
}

// Batches encodes next into outbound groups of at most crawler.MaxBatchSize.
// Entry ids restart at zero in each group.
func Batches(inv crawler.Invocation, next []crawler.NextRequest) ([][]crawler.OutboundMessage, error) {
	var out [][]crawler.OutboundMessage
	for start := 0; start < len(next); start += crawler.MaxBatchSize {
		end := min(start+crawler.MaxBatchSize, len(next))
		batch := make([]crawler.OutboundMessage, 0, end-start)
		for i, n := range next[start:end] {
			body, err := json.Marshal(n)
			if err != nil {
				return nil, fmt.Errorf("encode next request: %w", err)
			}
			batch = append(batch, crawler.OutboundMessage{
				ID:   strconv.Itoa(i),
				Body: body,
				Attributes: map[string]string{
					crawler.AttributeSubsystem: string(n.Operation.Subsystem),
					crawler.AttributeOperation: n.Operation.Name,
				},
				TraceID: inv.TraceID,
			})
		}
		out = append(out, batch)
	}
	return out, nil
}
