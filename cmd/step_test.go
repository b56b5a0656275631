package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/govscout-crawler/internal/app"
	"github.com/JakeFAU/govscout-crawler/internal/config"
	"github.com/JakeFAU/govscout-crawler/internal/crawler"
	"github.com/JakeFAU/govscout-crawler/internal/dispatcher"
	queueMemory "github.com/JakeFAU/govscout-crawler/internal/queue/memory"
)

type staticIDs struct{}

func (staticIDs) NewID() (string, error) { return "req-test", nil }

// useFakeApp swaps the container for one whose StartCrawl handler returns a
// single listing step, and returns the queue it publishes into.
func useFakeApp(t *testing.T) (*queueMemory.Queue, *config.Config) {
	t.Helper()
	q := queueMemory.NewQueue(4)
	var seen config.Config
	orig := newApp
	newApp = func(_ context.Context, cfg config.Config, _ *zap.Logger) (*app.App, error) {
		seen = cfg
		reg := crawler.NewRegistry()
		err := reg.Register(crawler.WebsStartCrawl, func(_ context.Context, _ crawler.Invocation, req crawler.CrawlRequest) ([]crawler.NextRequest, error) {
			return []crawler.NextRequest{{
				Operation:       crawler.WebsFetchOpportunityListingPage,
				URL:             crawler.StringPtr("https://webs.example.com/Home.aspx"),
				CrawlParameters: req.CrawlParameters,
			}}, nil
		})
		if err != nil {
			return nil, err
		}
		d, err := dispatcher.New(reg, q, zap.NewNop())
		if err != nil {
			return nil, err
		}
		return &app.App{Config: cfg, Logger: zap.NewNop(), Registry: reg, Dispatcher: d, IDs: staticIDs{}}, nil
	}
	t.Cleanup(func() { newApp = orig })
	return q, &seen
}

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := "archive:\n  blob_backend: none\nsecrets:\n  backend: env\nqueue:\n  backend: sqs\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func TestStepCommandPrintsNextOperations(t *testing.T) {
	q, seen := useFakeApp(t)

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetIn(strings.NewReader(`{"Operation":"Webs:StartCrawl","Url":null,"CrawlId":"crawl-1","UserAgent":"agent","Cookies":[]}`))
	root.SetArgs([]string{"--config", writeConfig(t), "step"})

	require.NoError(t, root.ExecuteContext(context.Background()))

	var got struct {
		NextOperations []crawler.CrawlRequest `json:"next_operations"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got.NextOperations, 1)
	assert.Equal(t, "Webs:FetchOpportunityListingPage", got.NextOperations[0].Operation)
	assert.Equal(t, "crawl-1", got.NextOperations[0].CrawlIDOr(""))
	assert.Equal(t, "agent", got.NextOperations[0].UserAgent)

	assert.Equal(t, config.BackendMemory, seen.Queue.Backend, "step must not publish to the configured queue")
	assert.Zero(t, q.Len())
}

func TestStepCommandReportsStepFailure(t *testing.T) {
	useFakeApp(t)

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetIn(strings.NewReader(`{"Operation":"Webs:FetchOpportunityDetailPage"}`))
	root.SetArgs([]string{"--config", writeConfig(t), "step", "-"})

	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
}

func TestStartCommandPublishesSeed(t *testing.T) {
	q, _ := useFakeApp(t)

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", writeConfig(t), "start", "--crawl-id", "crawl-9", "--user-agent", "agent"})

	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Equal(t, "crawl-9\n", out.String())

	msgs, err := q.Receive(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	var seed crawler.CrawlRequest
	require.NoError(t, json.Unmarshal(msgs[0].Body, &seed))
	assert.Equal(t, "Webs:StartCrawl", seed.Operation)
	assert.Nil(t, seed.URL)
	assert.Equal(t, "crawl-9", seed.CrawlIDOr(""))
}
