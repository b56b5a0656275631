package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/govscout-crawler/internal/crawler"
	"github.com/JakeFAU/govscout-crawler/internal/dispatcher"
)

// stepOutput is the direct-invocation response shape.
type stepOutput struct {
	NextOperations []crawler.NextRequest `json:"next_operations"`
}

func newStepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "step [file]",
		Short: "Run one crawl step locally and print the steps that follow it",
		Long: `Reads a step message from file, or from stdin when no file is given, runs it
and prints {"next_operations":[...]} without publishing anything. The printed
steps can be fed back into step to walk a crawl by hand.`,
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{localQueueAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			body, err := readStep(cmd, args)
			if err != nil {
				return err
			}
			requestID, err := a.IDs.NewID()
			if err != nil {
				return fmt.Errorf("generate request id: %w", err)
			}
			inv := crawler.Invocation{RequestID: requestID}
			res := a.Dispatcher.Dispatch(cmd.Context(), inv, []dispatcher.Step{{ID: "0", Body: body}})
			if err := res.Err(); err != nil {
				return err
			}
			out := stepOutput{NextOperations: res.Next()}
			if out.NextOperations == nil {
				out.NextOperations = []crawler.NextRequest{}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("write next operations: %w", err)
			}
			return nil
		},
	}
}

func readStep(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		body, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read step from stdin: %w", err)
		}
		return body, nil
	}
	body, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read step: %w", err)
	}
	return body, nil
}
