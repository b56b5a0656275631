package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/govscout-crawler/internal/api"
	"github.com/JakeFAU/govscout-crawler/internal/worker"
)

func newPollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Long-poll the step queue and serve the admin API",
		Long: `Receives step batches from the configured queue until interrupted. The admin
server on server.port exposes /healthz, /readyz, /metrics and the /v1 API for
starting crawls.`,
		Args: cobra.NoArgs,
		RunE: runPoll,
	}
}

func runPoll(cmd *cobra.Command, _ []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, err := a.Source(ctx)
	if err != nil {
		return err
	}
	w, err := worker.New(source, a.Dispatcher, a.IDs, worker.Config{
		ReportItemFailures: a.Config.Dispatcher.ReportItemFailures,
	}, a.Logger.Named("worker"))
	if err != nil {
		return fmt.Errorf("build worker: %w", err)
	}

	apiServer := api.NewServer(a.Dispatcher, a.Registry, a.IDs, a.Config, a.Logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.Logger.Info("http server started", zap.Int("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	a.Logger.Info("worker started", zap.String("queue_backend", a.Config.Queue.Backend))
	w.Run(ctx)
	a.Logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("server shutdown error", zap.Error(err))
	}
	a.Logger.Info("shutdown complete")
	return nil
}
