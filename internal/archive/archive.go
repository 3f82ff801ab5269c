// Package archive keeps a content-addressed copy of every page the scrapers fetch.
package archive

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/borsa-crawler/internal/metrics"
)

// DefaultContentType is recorded on archived objects when none is configured.
const DefaultContentType = "text/html; charset=utf-8"

// PageFetcher is the fetch capability being decorated.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (string, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Hasher computes the content address of a page.
type Hasher interface {
	Hash(r io.Reader) (string, error)
}

// Clock dates the archive partitions.
type Clock interface {
	Now() time.Time
}

// Config controls object naming.
type Config struct {
	Prefix      string
	ContentType string
}

// Fetcher archives every successful fetch of the wrapped fetcher.
// Archive failures are logged and never change the fetch result.
type Fetcher struct {
	next   PageFetcher
	blobs  BlobStore
	hasher Hasher
	clock  Clock
	cfg    Config
	logger *zap.Logger
}

// New wraps next.
func New(next PageFetcher, blobs BlobStore, hasher Hasher, clock Clock, cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.ContentType == "" {
		cfg.ContentType = DefaultContentType
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{next: next, blobs: blobs, hasher: hasher, clock: clock, cfg: cfg, logger: logger}
}

// FetchPage delegates to the wrapped fetcher and archives the body on success.
func (f *Fetcher) FetchPage(ctx context.Context, url string) (string, error) {
	body, err := f.next.FetchPage(ctx, url)
	if err != nil {
		return "", err
	}
	uri, archErr := f.store(ctx, body)
	if archErr != nil {
		metrics.ObserveArchive("error")
		f.logger.Warn("archive page failed", zap.String("url", url), zap.Error(archErr))
		return body, nil
	}
	metrics.ObserveArchive("ok")
	f.logger.Debug("page archived", zap.String("url", url), zap.String("uri", uri))
	return body, nil
}

func (f *Fetcher) store(ctx context.Context, body string) (string, error) {
	digest, err := f.hasher.Hash(strings.NewReader(body))
	if err != nil {
		return "", err
	}
	objectPath := ObjectPath(f.cfg.Prefix, f.clock.Now(), digest)
	uri, err := f.blobs.PutObject(ctx, objectPath, f.cfg.ContentType, strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("put %s: %w", objectPath, err)
	}
	return uri, nil
}

// ObjectPath renders {prefix}/{yyyy}/{mm}/{dd}/{digest}.html. An empty prefix is omitted.
func ObjectPath(prefix string, at time.Time, digest string) string {
	at = at.UTC()
	name := path.Join(
		fmt.Sprintf("%04d", at.Year()),
		fmt.Sprintf("%02d", int(at.Month())),
		fmt.Sprintf("%02d", at.Day()),
		digest+".html",
	)
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		return prefix + "/" + name
	}
	return name
}
