// Package worker implements the poll loop that feeds queued crawl steps to
// the dispatcher.
package worker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/govscout-crawler/internal/crawler"
	"github.com/JakeFAU/govscout-crawler/internal/dispatcher"
	"github.com/JakeFAU/govscout-crawler/internal/queue"
)

// Receive retry delays.
const (
	DefaultErrorBackoff    = time.Second
	DefaultMaxErrorBackoff = 30 * time.Second
)

// Runner executes a batch of steps.
type Runner interface {
	Run(ctx context.Context, inv crawler.Invocation, steps []dispatcher.Step) error
	RunPartial(ctx context.Context, inv crawler.Invocation, steps []dispatcher.Step) ([]string, error)
}

// Config controls Worker behavior.
type Config struct {
	// ReportItemFailures deletes the successful messages of a partially
	// failed batch so that only the failed steps are redelivered.
	ReportItemFailures bool
	// ErrorBackoff is the first pause after a failed receive. Consecutive
	// failures double it up to MaxErrorBackoff.
	ErrorBackoff    time.Duration
	MaxErrorBackoff time.Duration
}

// Worker consumes step batches and acknowledges the ones that completed.
type Worker struct {
	source queue.Source
	runner Runner
	ids    crawler.IDGenerator
	cfg    Config
	logger *zap.Logger
}

// New constructs a Worker.
func New(source queue.Source, runner Runner, ids crawler.IDGenerator, cfg Config, logger *zap.Logger) (*Worker, error) {
	if source == nil || runner == nil || ids == nil {
		return nil, fmt.Errorf("source, runner and id generator are required")
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = DefaultErrorBackoff
	}
	if cfg.MaxErrorBackoff < cfg.ErrorBackoff {
		cfg.MaxErrorBackoff = max(DefaultMaxErrorBackoff, cfg.ErrorBackoff)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		source: source,
		runner: runner,
		ids:    ids,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Run blocks, consuming batches until the context finishes or the source is
// closed.
func (w *Worker) Run(ctx context.Context) {
	retry := backoff{base: w.cfg.ErrorBackoff, max: w.cfg.MaxErrorBackoff}
	failures := 0
	for {
		msgs, err := w.source.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return
			}
			delay := retry.Delay(failures)
			failures++
			w.logger.Error("queue receive failed", zap.Int("failures", failures), zap.Duration("retry_in", delay), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		failures = 0
		if len(msgs) == 0 {
			continue
		}
		if err := w.ProcessBatch(ctx, msgs); err != nil {
			w.logger.Error("crawl batch failed", zap.Int("steps", len(msgs)), zap.Error(err))
		}
	}
}

// ProcessBatch dispatches one batch and deletes the messages that no longer
// need delivery. On error the undeleted messages are redelivered by the
// queue once their visibility timeout lapses.
func (w *Worker) ProcessBatch(ctx context.Context, msgs []queue.Message) error {
	requestID, err := w.ids.NewID()
	if err != nil {
		return fmt.Errorf("generate request id: %w", err)
	}
	inv := crawler.Invocation{RequestID: requestID, TraceID: traceID(msgs)}
	steps := make([]dispatcher.Step, len(msgs))
	for i, m := range msgs {
		steps[i] = dispatcher.Step{ID: m.ID, Body: m.Body}
	}
	logger := w.logger.With(zap.String("request_id", requestID))
	logger.Debug("dispatching batch", zap.Int("steps", len(steps)))

	if !w.cfg.ReportItemFailures {
		if err := w.runner.Run(ctx, inv, steps); err != nil {
			return err
		}
		return w.delete(ctx, msgs)
	}

	failed, err := w.runner.RunPartial(ctx, inv, steps)
	if err != nil {
		return err
	}
	done := slices.DeleteFunc(slices.Clone(msgs), func(m queue.Message) bool {
		return slices.Contains(failed, m.ID)
	})
	if len(failed) > 0 {
		logger.Warn("leaving failed steps for redelivery", zap.Strings("step_ids", failed))
	}
	return w.delete(ctx, done)
}

func (w *Worker) delete(ctx context.Context, msgs []queue.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := w.source.Delete(ctx, msgs); err != nil {
		return fmt.Errorf("delete %d messages: %w", len(msgs), err)
	}
	return nil
}

// traceID returns the first trace header in the batch. A batch is handled as
// one invocation, so it carries one trace.
func traceID(msgs []queue.Message) string {
	for _, m := range msgs {
		if m.TraceID != "" {
			return m.TraceID
		}
	}
	return ""
}
