package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/govscout-crawler/internal/crawler"
	"github.com/JakeFAU/govscout-crawler/internal/dispatcher"
	"github.com/JakeFAU/govscout-crawler/internal/logging"
	"github.com/JakeFAU/govscout-crawler/internal/worker"
)

// traceEnv is set by the Lambda runtime for every invocation.
const traceEnv = "_X_AMZN_TRACE_ID"

func newLambdaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Serve SQS event batches as an AWS Lambda function",
		Long: `Runs the Lambda runtime loop. Each SQS event batch is dispatched as one
invocation and its follow-up steps are published before the handler returns.
With dispatcher.report_item_failures set, failed steps are reported as batch
item failures instead of failing the whole batch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			handler := newLambdaHandler(a.Dispatcher, a.Config.Dispatcher.ReportItemFailures, os.Getenv, a.Logger)
			lambda.StartWithOptions(handler, lambda.WithContext(cmd.Context()))
			return nil
		},
	}
}

type sqsHandler func(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error)

// newLambdaHandler adapts a step runner to the SQS event source mapping.
func newLambdaHandler(runner worker.Runner, reportItemFailures bool, getenv func(string) string, logger *zap.Logger) sqsHandler {
	return func(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
		inv := lambdaInvocation(ctx, event, getenv)
		logger := logging.ForInvocation(logger, inv)

		steps := make([]dispatcher.Step, len(event.Records))
		for i, rec := range event.Records {
			steps[i] = dispatcher.Step{ID: rec.MessageId, Body: []byte(rec.Body)}
		}
		logger.Info("received sqs batch", zap.Int("steps", len(steps)))

		if !reportItemFailures {
			if err := runner.Run(ctx, inv, steps); err != nil {
				return events.SQSEventResponse{}, fmt.Errorf("run batch: %w", err)
			}
			return events.SQSEventResponse{}, nil
		}

		failed, err := runner.RunPartial(ctx, inv, steps)
		if err != nil {
			return events.SQSEventResponse{}, fmt.Errorf("run batch: %w", err)
		}
		resp := events.SQSEventResponse{BatchItemFailures: make([]events.SQSBatchItemFailure, 0, len(failed))}
		for _, id := range failed {
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: id})
		}
		return resp, nil
	}
}

func lambdaInvocation(ctx context.Context, event events.SQSEvent, getenv func(string) string) crawler.Invocation {
	var inv crawler.Invocation
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		inv.RequestID = lc.AwsRequestID
	}
	inv.TraceID = getenv(traceEnv)
	if inv.TraceID == "" {
		for _, rec := range event.Records {
			if v := rec.Attributes[crawler.AttributeTraceHeader]; v != "" {
				inv.TraceID = v
				break
			}
		}
	}
	return inv
}
