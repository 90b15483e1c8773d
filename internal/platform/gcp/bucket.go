package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/yungbote/ontorelease/internal/platform/logger"
)

// ArtifactBucket stores released ontology files under
// <prefix>/<repository>/<release>/<name>.
type ArtifactBucket interface {
	Upload(ctx context.Context, key string, r io.Reader) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	ObjectKey(repository, release, name string) string
	PublicURL(key string) string
}

type artifactBucket struct {
	log    *logger.Logger
	client *storage.Client
	cfg    StorageConfig
}

// NewArtifactBucket returns nil, nil when no bucket is configured.
func NewArtifactBucket(ctx context.Context, log *logger.Logger, cfg StorageConfig) (ArtifactBucket, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}
	if err := ValidateStorageConfig(cfg); err != nil {
		return nil, err
	}
	client, err := newStorageClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	serviceLog := log.With("service", "ArtifactBucket")
	serviceLog.Info("Object storage initialized", "mode", cfg.Mode, "bucket", cfg.Bucket, "prefix", cfg.Prefix)
	return &artifactBucket{log: serviceLog, client: client, cfg: cfg}, nil
}

func newStorageClient(ctx context.Context, cfg StorageConfig) (*storage.Client, error) {
	if cfg.IsEmulator() {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", cfg.EmulatorHost)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	}
	opts := ClientOptionsFromEnv()
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	return storage.NewClient(ctx, opts...)
}

func (b *artifactBucket) ObjectKey(repository, release, name string) string {
	return objectKey(b.cfg.Prefix, repository, release, name)
}

func objectKey(prefix, repository, release, name string) string {
	parts := []string{}
	if prefix != "" {
		parts = append(parts, prefix)
	}
	parts = append(parts, strings.ReplaceAll(repository, "/", "_"), release, path.Base(name))
	return path.Join(parts...)
}

func (b *artifactBucket) Upload(ctx context.Context, key string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	w := b.client.Bucket(b.cfg.Bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentTypeForKey(key)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func (b *artifactBucket) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := b.client.Bucket(b.cfg.Bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open GCS object %q: %w", key, err)
	}
	return rc, nil
}

func (b *artifactBucket) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	it := b.client.Bucket(b.cfg.Bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list GCS objects: %w", err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

func (b *artifactBucket) PublicURL(key string) string {
	return publicURL(b.cfg, key)
}

func publicURL(cfg StorageConfig, key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	switch {
	case cfg.PublicBase != "":
		return cfg.PublicBase + "/" + cfg.Bucket + "/" + escaped
	case cfg.IsEmulator():
		return cfg.EmulatorHost + "/storage/v1/b/" + cfg.Bucket + "/o/" + url.PathEscape(key) + "?alt=media"
	default:
		return "https://storage.googleapis.com/" + cfg.Bucket + "/" + escaped
	}
}

func contentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".owl", ".rdf":
		return "application/rdf+xml"
	case ".ttl":
		return "text/turtle"
	case ".obo":
		return "text/plain"
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
