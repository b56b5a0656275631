// Package app builds the long-lived services shared by every command from a
// loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	pubsubapi "cloud.google.com/go/pubsub/apiv1"
	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"go.uber.org/zap"

	"github.com/JakeFAU/govscout-crawler/internal/archive"
	"github.com/JakeFAU/govscout-crawler/internal/clock/system"
	"github.com/JakeFAU/govscout-crawler/internal/config"
	"github.com/JakeFAU/govscout-crawler/internal/crawler"
	"github.com/JakeFAU/govscout-crawler/internal/dispatcher"
	"github.com/JakeFAU/govscout-crawler/internal/fetcher"
	"github.com/JakeFAU/govscout-crawler/internal/id/uuid"
	pubsubpub "github.com/JakeFAU/govscout-crawler/internal/publisher/pubsub"
	sqspub "github.com/JakeFAU/govscout-crawler/internal/publisher/sqs"
	"github.com/JakeFAU/govscout-crawler/internal/queue"
	queueMemory "github.com/JakeFAU/govscout-crawler/internal/queue/memory"
	pubsubqueue "github.com/JakeFAU/govscout-crawler/internal/queue/pubsub"
	sqsqueue "github.com/JakeFAU/govscout-crawler/internal/queue/sqs"
	"github.com/JakeFAU/govscout-crawler/internal/secrets"
	ssmstore "github.com/JakeFAU/govscout-crawler/internal/secrets/ssm"
	dynamostore "github.com/JakeFAU/govscout-crawler/internal/storage/dynamodb"
	gcsstore "github.com/JakeFAU/govscout-crawler/internal/storage/gcs"
	"github.com/JakeFAU/govscout-crawler/internal/storage/local"
	storageMemory "github.com/JakeFAU/govscout-crawler/internal/storage/memory"
	"github.com/JakeFAU/govscout-crawler/internal/storage/postgres"
	s3store "github.com/JakeFAU/govscout-crawler/internal/storage/s3"
	"github.com/JakeFAU/govscout-crawler/internal/webs"
)

// App holds the services built for one process: the operation registry, the
// dispatcher that runs and publishes steps, and the clients behind them.
type App struct {
	Config     config.Config
	Logger     *zap.Logger
	Registry   *crawler.Registry
	Dispatcher *dispatcher.Dispatcher
	IDs        crawler.IDGenerator

	awsCfg   *aws.Config
	pubsub   *pubsub.Client
	memQueue *queueMemory.Queue
	closers  []func()
}

// New builds the application for cfg. Clients are only created for the
// backends cfg selects.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: crawler.NewRegistry(),
		IDs:      uuid.New(),
	}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	logger.Info("application services initialized",
		zap.String("blob_backend", cfg.Archive.BlobBackend),
		zap.String("record_backend", cfg.Archive.RecordBackend),
		zap.String("secrets_backend", cfg.Secrets.Backend),
		zap.String("queue_backend", cfg.Queue.Backend),
	)
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	archiver, err := a.newArchiver(ctx)
	if err != nil {
		return err
	}
	secretStore, err := a.newSecrets(ctx)
	if err != nil {
		return err
	}
	publisher, err := a.newPublisher(ctx)
	if err != nil {
		return err
	}

	c, err := webs.New(webs.Config{
		BaseURL: a.Config.Crawler.BaseURL,
		Fetch: fetcher.Config{
			UserAgent:     a.Config.Crawler.UserAgent,
			RedirectLimit: a.Config.Crawler.RedirectLimit,
			Timeout:       a.Config.Crawler.RequestTimeout(),
			Limiter:       fetcher.NewLimiter(a.Config.Crawler.RequestsPerSecond, a.Config.Crawler.Burst),
		},
	}, secretStore, archiver, a.Logger)
	if err != nil {
		return fmt.Errorf("build webs crawler: %w", err)
	}
	if err := c.Register(a.Registry); err != nil {
		return fmt.Errorf("register operations: %w", err)
	}

	a.Dispatcher, err = dispatcher.New(a.Registry, publisher, a.Logger)
	if err != nil {
		return fmt.Errorf("build dispatcher: %w", err)
	}
	return nil
}

// aws loads the shared SDK configuration on first use.
func (a *App) aws(ctx context.Context) (aws.Config, error) {
	if a.awsCfg != nil {
		return *a.awsCfg, nil
	}
	var opts []func(*awsconfig.LoadOptions) error
	if a.Config.AWS.Region != "" {
		opts = append(opts, awsconfig.WithRegion(a.Config.AWS.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	if a.Config.AWS.Endpoint != "" {
		cfg.BaseEndpoint = aws.String(a.Config.AWS.Endpoint)
	}
	a.awsCfg = &cfg
	return cfg, nil
}

func (a *App) pubsubClient(ctx context.Context) (*pubsub.Client, error) {
	if a.pubsub != nil {
		return a.pubsub, nil
	}
	client, err := pubsub.NewClient(ctx, a.Config.Queue.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	a.pubsub = client
	a.onClose(func() {
		if err := client.Close(); err != nil {
			a.Logger.Warn("close pubsub client", zap.Error(err))
		}
	})
	return client, nil
}

// newArchiver returns nil when archiving is disabled.
func (a *App) newArchiver(ctx context.Context) (fetcher.Archiver, error) {
	cfg := a.Config.Archive
	if !cfg.Enabled() {
		a.Logger.Warn("response archiving disabled")
		return nil, nil
	}

	var blobs crawler.BlobStore
	switch cfg.BlobBackend {
	case config.BackendS3:
		awsCfg, err := a.aws(ctx)
		if err != nil {
			return nil, err
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = a.Config.AWS.Endpoint != ""
		})
		store, err := s3store.New(client, s3store.Config{Bucket: cfg.Bucket})
		if err != nil {
			return nil, fmt.Errorf("build s3 blob store: %w", err)
		}
		blobs = store
	case config.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		a.onClose(func() {
			if err := client.Close(); err != nil {
				a.Logger.Warn("close storage client", zap.Error(err))
			}
		})
		store, err := gcsstore.New(client, gcsstore.Config{Bucket: cfg.Bucket})
		if err != nil {
			return nil, fmt.Errorf("build gcs blob store: %w", err)
		}
		blobs = store
	case config.BackendFile:
		store, err := local.New(local.Config{BaseDir: cfg.Directory})
		if err != nil {
			return nil, fmt.Errorf("build file blob store: %w", err)
		}
		blobs = store
	case config.BackendMemory:
		blobs = storageMemory.NewBlobStore(cfg.Bucket)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}

	var records crawler.RecordStore
	switch cfg.RecordBackend {
	case config.BackendDynamoDB:
		awsCfg, err := a.aws(ctx)
		if err != nil {
			return nil, err
		}
		store, err := dynamostore.New(dynamodb.NewFromConfig(awsCfg), cfg.Table)
		if err != nil {
			return nil, fmt.Errorf("build dynamodb record store: %w", err)
		}
		records = store
	case config.BackendPostgres:
		store, err := postgres.NewRecordStore(ctx, postgres.RecordStoreConfig{
			DSN:   cfg.PostgresDSN,
			Table: cfg.Table,
		})
		if err != nil {
			return nil, fmt.Errorf("build postgres record store: %w", err)
		}
		a.onClose(store.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		records = store
	case config.BackendMemory:
		records = storageMemory.NewRecordStore()
	default:
		return nil, fmt.Errorf("unknown record backend %q", cfg.RecordBackend)
	}

	archiver, err := archive.New(blobs, records, a.IDs, system.New(), archive.Config{Prefix: cfg.Prefix}, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("build archiver: %w", err)
	}
	return archiver, nil
}

func (a *App) newSecrets(ctx context.Context) (crawler.SecretStore, error) {
	switch a.Config.Secrets.Backend {
	case config.BackendSSM:
		awsCfg, err := a.aws(ctx)
		if err != nil {
			return nil, err
		}
		store, err := ssmstore.New(ssm.NewFromConfig(awsCfg), a.Config.Secrets.Prefix, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("build ssm secret store: %w", err)
		}
		return store, nil
	case config.BackendEnv:
		return secrets.NewEnv(a.Config.Secrets.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown secrets backend %q", a.Config.Secrets.Backend)
	}
}

func (a *App) newPublisher(ctx context.Context) (crawler.Publisher, error) {
	cfg := a.Config.Queue
	switch cfg.Backend {
	case config.BackendSQS:
		if cfg.QueueURL == "" {
			return nil, errors.New("queue.queue_url must be set for the sqs queue")
		}
		awsCfg, err := a.aws(ctx)
		if err != nil {
			return nil, err
		}
		pub, err := sqspub.New(sqs.NewFromConfig(awsCfg), cfg.QueueURL, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("build sqs publisher: %w", err)
		}
		return pub, nil
	case config.BackendPubSub:
		if cfg.ProjectID == "" || cfg.Topic == "" {
			return nil, errors.New("queue.project_id and queue.topic must be set for the pubsub queue")
		}
		client, err := a.pubsubClient(ctx)
		if err != nil {
			return nil, err
		}
		pub := pubsubpub.New(client.Topic(cfg.Topic))
		a.onClose(pub.Stop)
		return pub, nil
	case config.BackendMemory:
		a.memQueue = queueMemory.NewQueue(cfg.Capacity)
		a.onClose(a.memQueue.Close)
		return a.memQueue, nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
	}
}

// Source returns the receiving side of the step queue for poll mode. The
// memory backend hands back the same queue the dispatcher publishes into.
func (a *App) Source(ctx context.Context) (queue.Source, error) {
	cfg := a.Config.Queue
	switch cfg.Backend {
	case config.BackendSQS:
		awsCfg, err := a.aws(ctx)
		if err != nil {
			return nil, err
		}
		src, err := sqsqueue.New(sqs.NewFromConfig(awsCfg), sqsqueue.Config{
			QueueURL:    cfg.QueueURL,
			WaitSeconds: int32(cfg.WaitSeconds), //nolint:gosec // bounded by config validation
		}, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("build sqs source: %w", err)
		}
		return src, nil
	case config.BackendPubSub:
		if cfg.Subscription == "" {
			return nil, errors.New("queue.subscription must be set to poll the pubsub queue")
		}
		client, err := pubsubapi.NewSubscriberClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create subscriber client: %w", err)
		}
		a.onClose(func() {
			if err := client.Close(); err != nil {
				a.Logger.Warn("close subscriber client", zap.Error(err))
			}
		})
		src, err := pubsubqueue.New(client, pubsubqueue.SubscriptionName(cfg.ProjectID, cfg.Subscription))
		if err != nil {
			return nil, fmt.Errorf("build pubsub source: %w", err)
		}
		return src, nil
	case config.BackendMemory:
		if a.memQueue == nil {
			return nil, errors.New("memory queue is not initialized")
		}
		return a.memQueue, nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
	}
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases clients in reverse creation order and flushes the logger.
func (a *App) Close() {
	a.Logger.Info("shutting down application services")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	// Sync fails on stdout for some platforms; nothing useful can be done with it.
	_ = a.Logger.Sync()
}
