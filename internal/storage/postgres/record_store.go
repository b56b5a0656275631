// Package postgres provides a Postgres-backed archive record store.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/govscout-crawler/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "archived_responses"

// Schema creates the records table. The primary key is the per-fetch
// request id, so many rows may share a blob key.
const Schema = `
CREATE TABLE IF NOT EXISTS %s (
	request_id       TEXT PRIMARY KEY,
	crawl_id         TEXT NOT NULL,
	original_url     TEXT NOT NULL,
	final_url        TEXT NOT NULL,
	fetched_at       TIMESTAMPTZ NOT NULL,
	method           TEXT NOT NULL,
	status_code      INTEGER NOT NULL,
	content_type     TEXT,
	content_language TEXT,
	content_length   BIGINT NOT NULL,
	etag             TEXT NOT NULL,
	md5              TEXT NOT NULL,
	sha256           TEXT NOT NULL,
	blob_bucket      TEXT NOT NULL,
	blob_key         TEXT NOT NULL
)`

// RecordStoreConfig controls the Postgres connection pool used for records.
type RecordStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// RecordStore writes archived response records into Postgres.
type RecordStore struct {
	pool  execCloser
	table string
}

// NewRecordStore creates a Postgres-backed RecordStore using the provided config.
func NewRecordStore(ctx context.Context, cfg RecordStoreConfig) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("archive.postgres_dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RecordStore{pool: pool, table: table}, nil
}

// NewRecordStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRecordStoreWithPool(pool execCloser, table string) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &RecordStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// EnsureSchema creates the records table when it does not exist.
func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(Schema, s.table)); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// PutRecord inserts one record row.
func (s *RecordStore) PutRecord(ctx context.Context, record crawler.ArchivedResponseRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("record store is not configured")
	}
	if record.RequestID == "" {
		return fmt.Errorf("record request id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	request_id,
	crawl_id,
	original_url,
	final_url,
	fetched_at,
	method,
	status_code,
	content_type,
	content_language,
	content_length,
	etag,
	md5,
	sha256,
	blob_bucket,
	blob_key
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
)`, s.table)

	args := []any{
		record.RequestID,
		record.CrawlID,
		record.OriginalURL,
		record.FinalURL,
		record.Timestamp,
		record.Method,
		record.StatusCode,
		nullable(record.ContentType),
		nullable(record.ContentLanguage),
		record.ContentLength,
		record.ETag,
		record.MD5,
		record.SHA256,
		record.BlobBucket,
		record.BlobKey,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert archived response: %w", err)
	}
	return nil
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
