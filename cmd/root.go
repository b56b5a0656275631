// Package cmd defines the govscout-crawler command line: the Lambda and
// polling front ends that run crawl steps, and tools to seed or replay them.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/govscout-crawler/internal/app"
	"github.com/JakeFAU/govscout-crawler/internal/config"
	"github.com/JakeFAU/govscout-crawler/internal/logging"
	"github.com/JakeFAU/govscout-crawler/internal/telemetry"
)

// Set at build time with -ldflags "-X github.com/JakeFAU/govscout-crawler/cmd.version=...".
var version = "dev"

// localQueueAnnotation marks commands that must never publish to the
// configured queue.
const localQueueAnnotation = "govscout/local-queue"

type appKeyType string

const appKey appKeyType = "app"

// newApp is a variable so tests can substitute the container.
var newApp = app.New

type rootOptions struct {
	configPath string
	shutdown   func(context.Context) error
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "govscout-crawler",
		Short:         "Stateless, resumable crawler for the WEBS procurement portal.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `govscout-crawler logs into Washington's WEBS vendor portal and walks its
bid listings one step at a time. Every step is a queue message carrying the
session cookies forward, so any worker can pick up where another left off.`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			opts.teardown(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")

	cmd.AddCommand(
		newLambdaCmd(),
		newPollCmd(),
		newStartCmd(),
		newStepCmd(),
	)
	return cmd
}

func (o *rootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Annotations[localQueueAnnotation] == "true" {
		cfg.Queue = config.QueueConfig{Backend: config.BackendMemory, Capacity: cfg.Queue.Capacity}
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(zap.String("command", cmd.Name()))
	zap.ReplaceGlobals(logger)

	o.shutdown, err = telemetry.Init(cmd.Context(), telemetry.Config{
		ServiceName: logging.ServiceName,
		Version:     version,
		SampleRatio: 1,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize application services: %w", err)
	}
	cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
	return nil
}

func (o *rootOptions) teardown(cmd *cobra.Command) {
	a, ok := cmd.Context().Value(appKey).(*app.App)
	if !ok || a == nil {
		return
	}
	if o.shutdown != nil {
		if err := o.shutdown(context.WithoutCancel(cmd.Context())); err != nil {
			a.Logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}
	a.Close()
}

func resolveApp(ctx context.Context) (*app.App, error) {
	a, ok := ctx.Value(appKey).(*app.App)
	if !ok || a == nil {
		return nil, fmt.Errorf("application services are not initialized")
	}
	return a, nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "govscout-crawler: %v\n", err)
		os.Exit(1)
	}
}
