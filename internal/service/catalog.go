package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/akozyreva/cloudkeep/internal/models"
	"github.com/akozyreva/cloudkeep/internal/objectstore"
	"go.uber.org/zap"
)

// ObjectStore is the remote store surface the catalog depends on.
type ObjectStore interface {
	List(ctx context.Context, prefix string) ([]objectstore.ObjectInfo, error)
	SignedURL(ctx context.Context, key string, ttl int) (string, error)
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, keys []string) error
}

// Catalog maintains the locally cached, categorized view of the principal's
// stored objects. The remote store stays the source of truth: every refresh
// replaces the whole cache, and concurrent refreshes resolve last-write-wins.
type Catalog struct {
	store     ObjectStore
	gate      PrincipalSource
	signedTTL int
	log       *zap.Logger

	mu      sync.Mutex
	objects []models.StoredObject
}

// NewCatalog builds a catalog over the given store and gate. signedTTL is
// the lifetime in seconds of links issued by OpenURL.
func NewCatalog(store ObjectStore, gate PrincipalSource, signedTTL int, log *zap.Logger) *Catalog {
	return &Catalog{store: store, gate: gate, signedTTL: signedTTL, log: log}
}

// Refresh re-fetches the authoritative listing for the principal's namespace
// and replaces the cache. Without a live session it returns
// ErrAuthenticationRequired and leaves the cache alone.
func (c *Catalog) Refresh(ctx context.Context) error {
	p, err := c.gate.Principal()
	if err != nil {
		return err
	}
	infos, err := c.store.List(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("refresh catalog: %w", err)
	}

	objects := make([]models.StoredObject, 0, len(infos))
	for _, in := range infos {
		name := originalName(in.Name)
		objects = append(objects, models.StoredObject{
			Name:      name,
			Size:      in.Size,
			CreatedAt: in.CreatedAt,
			Key:       p.ID + "/" + in.Name,
			Category:  models.CategoryOf(name),
			Kind:      models.KindOf(name),
		})
	}

	c.mu.Lock()
	c.objects = objects
	c.mu.Unlock()
	return nil
}

// Watch refreshes the catalog on every signal until ctx is cancelled.
// Failures are logged and the previous cache stays in place.
func (c *Catalog) Watch(ctx context.Context, signals <-chan struct{}) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-signals:
				if err := c.Refresh(ctx); err != nil {
					c.log.Warn("catalog refresh failed", zap.Error(err))
				}
			}
		}
	}()
}

// Clear drops the cached listing. Called when the session ends.
func (c *Catalog) Clear() {
	c.mu.Lock()
	c.objects = nil
	c.mu.Unlock()
}

// Total returns the number of cached objects.
func (c *Catalog) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.objects)
}

// CountByCategory returns per-category counts over the cached listing.
func (c *Catalog) CountByCategory() map[models.Category]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	counts := map[models.Category]int{
		models.CategoryDocument: 0,
		models.CategoryImage:    0,
		models.CategoryVideo:    0,
	}
	for _, o := range c.objects {
		counts[o.Category]++
	}
	return counts
}

// Filtered returns the cached objects matching cat; CategoryAll returns the
// full listing. The result is a copy and stays stable across refreshes.
func (c *Catalog) Filtered(cat models.Category) []models.StoredObject {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.StoredObject, 0, len(c.objects))
	for _, o := range c.objects {
		if cat == models.CategoryAll || o.Category == cat {
			out = append(out, o)
		}
	}
	return out
}

// OpenURL issues a time-limited signed link for the object. A failure is
// non-fatal and leaves the catalog unchanged.
func (c *Catalog) OpenURL(ctx context.Context, key string) (string, error) {
	url, err := c.store.SignedURL(ctx, key, c.signedTTL)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", key, err)
	}
	return url, nil
}

// Download streams the object's bytes. The caller owns the reader and must
// close it whatever the outcome.
func (c *Catalog) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := c.store.Download(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	return rc, nil
}

// Delete removes the object remotely, then drops it from the cache without a
// full re-fetch. When the remote remove fails the cache is left untouched so
// a failed delete never appears to succeed.
func (c *Catalog) Delete(ctx context.Context, key string) error {
	if err := c.store.Remove(ctx, []string{key}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	c.mu.Lock()
	kept := c.objects[:0]
	for _, o := range c.objects {
		if o.Key != key {
			kept = append(kept, o)
		}
	}
	c.objects = kept
	c.mu.Unlock()
	return nil
}

// originalName strips the epoch-millis disambiguator an upload prepends to
// the filename.
func originalName(stored string) string {
	if i := strings.Index(stored, "-"); i >= 0 {
		return stored[i+1:]
	}
	return stored
}
