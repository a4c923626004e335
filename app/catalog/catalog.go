package catalog

import (
	"context"
	"fmt"
	"time"
)

// Catalog records uploads in the store and keeps the search index in step.
type Catalog struct {
	store Store
	index *FileIndex
}

func New(store Store, index *FileIndex) *Catalog {
	return &Catalog{store: store, index: index}
}

// Load indexes every upload already in the store.
func (c *Catalog) Load(ctx context.Context) error {
	files, err := c.store.ListUploads(ctx)
	if err != nil {
		return fmt.Errorf("listing uploads: %w", err)
	}
	return c.index.Load(files)
}

func (c *Catalog) RecordUpload(ctx context.Context, name string, size int64) error {
	f := UploadedFile{Name: name, Size: size, UploadedAt: time.Now()}
	if err := c.store.RecordUpload(ctx, f); err != nil {
		return fmt.Errorf("recording upload %s: %w", name, err)
	}
	return c.index.Put(f)
}

func (c *Catalog) RecordColumns(ctx context.Context, filename string, columns []string) error {
	if err := c.store.SetColumns(ctx, filename, columns); err != nil {
		return fmt.Errorf("recording columns of %s: %w", filename, err)
	}
	return c.index.Put(UploadedFile{Name: filename, Columns: columns})
}

func (c *Catalog) Uploads(ctx context.Context) ([]UploadedFile, error) {
	return c.store.ListUploads(ctx)
}

func (c *Catalog) Search(q string) ([]string, error) {
	return c.index.Search(q)
}
