package analytics

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
)

// CachingClient remembers column metadata per filename for a short while.
// Re-uploading a file drops its entry.
type CachingClient struct {
	Client
	columns *cache.Cache
}

func NewCachingClient(inner Client, ttl time.Duration) *CachingClient {
	return &CachingClient{
		Client:  inner,
		columns: cache.New(ttl, 2*ttl),
	}
}

func (c *CachingClient) Columns(ctx context.Context, filename string) ([]ColumnDescriptor, error) {
	if cols, found := c.columns.Get(filename); found {
		slog.Debug("columns served from cache", "filename", filename)
		return cols.([]ColumnDescriptor), nil
	}
	cols, err := c.Client.Columns(ctx, filename)
	if err != nil {
		return nil, err
	}
	c.columns.Set(filename, cols, cache.DefaultExpiration)
	return cols, nil
}

func (c *CachingClient) Upload(ctx context.Context, filename string, body io.Reader) error {
	err := c.Client.Upload(ctx, filename, body)
	c.columns.Delete(filename)
	return err
}
