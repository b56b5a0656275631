package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/govscout-crawler/internal/crawler"
	"github.com/JakeFAU/govscout-crawler/internal/webs"
)

type startOptions struct {
	loginURL  string
	userAgent string
	crawlID   string
}

func newStartCmd() *cobra.Command {
	opts := &startOptions{}
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Enqueue the first step of a new crawl",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if opts.crawlID == "" {
				if opts.crawlID, err = a.IDs.NewID(); err != nil {
					return fmt.Errorf("generate crawl id: %w", err)
				}
			}
			seed := webs.Seed(opts.loginURL, opts.userAgent, opts.crawlID)
			inv := crawler.Invocation{RequestID: opts.crawlID}
			if err := a.Dispatcher.Publish(cmd.Context(), inv, []crawler.NextRequest{seed}); err != nil {
				return fmt.Errorf("enqueue crawl: %w", err)
			}
			a.Logger.Info("crawl enqueued", zap.String("crawl_id", opts.crawlID))
			_, err = fmt.Fprintln(cmd.OutOrStdout(), opts.crawlID)
			return err
		},
	}
	cmd.Flags().StringVar(&opts.loginURL, "url", "", "login page to start from (default: the configured base URL's login page)")
	cmd.Flags().StringVar(&opts.userAgent, "user-agent", "", "user agent carried through the crawl")
	cmd.Flags().StringVar(&opts.crawlID, "crawl-id", "", "crawl id to record archived responses under (default: generated)")
	return cmd
}
