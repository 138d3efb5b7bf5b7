// Package service implements the dashboard's coordination logic: batched
// uploads, the cached file catalog, and the credential vault view. All
// durable state lives with the platform; these services only sequence calls
// against it and keep per-view local caches.
package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/akozyreva/cloudkeep/internal/models"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// PrincipalSource supplies the signed-in identity. The session gate
// implements it.
type PrincipalSource interface {
	Principal() (*models.Principal, error)
}

// ObjectPutter stores one object. The object store client implements it.
type ObjectPutter interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// RefreshSignaler receives the upload-completed signal that drives catalog
// refreshes.
type RefreshSignaler interface {
	UploadCompleted()
}

// File is one local file handle submitted for upload.
type File struct {
	// Name is the original filename.
	Name string
	// Content supplies the bytes.
	Content io.Reader
	// Size is the byte length, when known.
	Size int64
	// ContentType is the MIME type, when known.
	ContentType string
}

// UploadCoordinator pushes batches of files into the principal's namespace.
type UploadCoordinator struct {
	store   ObjectPutter
	gate    PrincipalSource
	signals RefreshSignaler
	log     *zap.Logger
	now     func() time.Time
}

// NewUploadCoordinator builds a coordinator over the given store and gate.
func NewUploadCoordinator(store ObjectPutter, gate PrincipalSource, signals RefreshSignaler, log *zap.Logger) *UploadCoordinator {
	return &UploadCoordinator{
		store:   store,
		gate:    gate,
		signals: signals,
		log:     log,
		now:     time.Now,
	}
}

// UploadBatch stores every file under a fresh unique key and reports the
// joint outcome.
//
// Keys are {principalID}/{epochMillis}-{name}; files within one batch get
// consecutive millisecond stamps so identical names never collide. Puts run
// concurrently with no ordering guarantee. All results are awaited jointly:
// if any put fails the whole batch is reported failed with the aggregated
// error, and siblings that already landed are left in place (no rollback).
// An upload-completed signal is emitted after the batch settles, success or
// failure, so the catalog re-fetches either way.
//
// Without a live session the batch fails fast with ErrAuthenticationRequired
// and performs no store operations. On success the returned count is the
// number of files attempted.
func (u *UploadCoordinator) UploadBatch(ctx context.Context, files []File) (int, error) {
	if len(files) == 0 {
		return 0, nil
	}
	p, err := u.gate.Principal()
	if err != nil {
		return 0, err
	}
	defer u.signals.UploadCompleted()

	base := u.now().UnixMilli()
	keys := make([]string, len(files))
	for i, f := range files {
		keys[i] = fmt.Sprintf("%s/%d-%s", p.ID, base+int64(i), f.Name)
	}

	errs := make([]error, len(files))
	var wg sync.WaitGroup
	for i := range files {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f := files[i]
			if err := u.store.Put(ctx, keys[i], f.Content, f.Size, f.ContentType); err != nil {
				errs[i] = fmt.Errorf("%s: %w", f.Name, err)
			}
		}(i)
	}
	wg.Wait()

	if err := multierr.Combine(errs...); err != nil {
		u.log.Warn("upload batch failed", zap.Int("files", len(files)), zap.Error(err))
		return 0, fmt.Errorf("upload batch: %w", err)
	}
	u.log.Info("upload batch stored", zap.Int("files", len(files)), zap.String("principal", p.ID))
	return len(files), nil
}
