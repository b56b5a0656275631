// Package local implements a filesystem blob store for running the crawler
// without cloud storage.
package local

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/govscout-crawler/internal/crawler"
	"github.com/JakeFAU/govscout-crawler/internal/hash/digest"
)

// Config captures the parameters for the local filesystem blob store.
type Config struct {
	// BaseDir is the root directory blob keys are resolved under.
	BaseDir string
}

// BlobStore writes archived bodies below a base directory.
type BlobStore struct {
	baseDir string
}

// New creates the base directory if needed and checks that it is writable.
func New(cfg Config) (*BlobStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	baseDir := filepath.Clean(cfg.BaseDir)

	info, err := os.Stat(baseDir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(baseDir, 0o750); err != nil {
			return nil, fmt.Errorf("create base directory: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory %s is not a directory", baseDir)
	}

	probe, err := os.CreateTemp(baseDir, ".writable-*")
	if err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	name := probe.Name()
	if err := probe.Close(); err != nil {
		return nil, fmt.Errorf("close probe file: %w", err)
	}
	if err := os.Remove(name); err != nil {
		return nil, fmt.Errorf("remove probe file: %w", err)
	}
	return &BlobStore{baseDir: baseDir}, nil
}

// Bucket returns the base directory.
func (s *BlobStore) Bucket() string {
	return s.baseDir
}

// Head reports the quoted hex MD5 of the stored file, matching the ETag
// format of the other stores.
func (s *BlobStore) Head(_ context.Context, key string) (crawler.BlobInfo, error) {
	path, err := s.path(key)
	if err != nil {
		return crawler.BlobInfo{}, err
	}
	f, err := os.Open(path) //nolint:gosec // path is confined to baseDir
	if errors.Is(err, fs.ErrNotExist) {
		return crawler.BlobInfo{}, fmt.Errorf("%w: file://%s", crawler.ErrBlobNotFound, path)
	}
	if err != nil {
		return crawler.BlobInfo{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	_, sum, err := digest.ReadAll(f)
	if err != nil {
		return crawler.BlobInfo{}, fmt.Errorf("read %s: %w", path, err)
	}
	return crawler.BlobInfo{Key: key, ETag: quotedHex(sum.MD5[:])}, nil
}

// Put writes the body to a temporary file and renames it into place so a
// concurrent Head never sees a partial blob.
func (s *BlobStore) Put(_ context.Context, blob crawler.Blob) (crawler.BlobInfo, error) {
	path, err := s.path(blob.Key)
	if err != nil {
		return crawler.BlobInfo{}, err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return crawler.BlobInfo{}, fmt.Errorf("create parent directories: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".blob-*")
	if err != nil {
		return crawler.BlobInfo{}, fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(blob.Body); err != nil {
		_ = tmp.Close()
		return crawler.BlobInfo{}, fmt.Errorf("write %s: %w", blob.Key, err)
	}
	if err := tmp.Close(); err != nil {
		return crawler.BlobInfo{}, fmt.Errorf("close %s: %w", blob.Key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return crawler.BlobInfo{}, fmt.Errorf("rename into %s: %w", path, err)
	}

	md5 := blob.MD5
	if len(md5) == 0 {
		sum := digest.Bytes(blob.Body)
		md5 = sum.MD5[:]
	}
	return crawler.BlobInfo{Key: blob.Key, ETag: quotedHex(md5)}, nil
}

// path resolves key under baseDir and rejects keys that escape it.
func (s *BlobStore) path(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("blob key is required")
	}
	full := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if !strings.HasPrefix(full, s.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("blob key %q escapes the base directory", key)
	}
	return full, nil
}

func quotedHex(b []byte) string {
	return `"` + hex.EncodeToString(b) + `"`
}
