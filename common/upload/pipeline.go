// Package upload validates, names and stores assets in several destinations
// at once.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lyzr/cookbook/common/logger"
	"github.com/lyzr/cookbook/common/storage"
	"github.com/lyzr/cookbook/common/validation"
)

const (
	DefaultPublicPrefix     = "/images/uploads"
	DefaultOptimizeMaxWidth = 1600
	DefaultOptimizeQuality  = 82
	DefaultAVIFQuality      = 60
)

// Recorder receives pipeline outcomes. *metrics.Metrics satisfies it.
type Recorder interface {
	RecordUpload(operation string, duration time.Duration, bytes int64, err error)
	RecordDestinationWrite(destination string, err error)
}

type noopRecorder struct{}

func (noopRecorder) RecordUpload(string, time.Duration, int64, error) {}
func (noopRecorder) RecordDestinationWrite(string, error)             {}

// Config describes where assets go and what they may look like
type Config struct {
	Destinations     []storage.Destination
	PublicPrefix     string
	Policy           validation.Policy
	OptimizeMaxWidth int
	OptimizeQuality  int // WebP
	AVIFQuality      int
	DisableAVIF      bool
}

// Pipeline stores every asset in all configured destinations
type Pipeline struct {
	destinations []storage.Destination
	publicPrefix string
	policy       validation.Policy
	maxWidth     int
	quality      int
	avifQuality  int
	skipAVIF     bool
	namer        *Namer
	recorder     Recorder
	log          *logger.Logger
}

// Option customises a Pipeline
type Option func(*Pipeline)

// WithNamer replaces the file name generator
func WithNamer(n *Namer) Option {
	return func(p *Pipeline) {
		if n != nil {
			p.namer = n
		}
	}
}

// WithRecorder attaches a metrics recorder
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithLogger attaches a logger
func WithLogger(l *logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// New creates a pipeline over cfg.Destinations
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if len(cfg.Destinations) == 0 {
		return nil, errors.New("at least one destination is required")
	}

	p := &Pipeline{
		destinations: append([]storage.Destination(nil), cfg.Destinations...),
		publicPrefix: strings.TrimRight(cfg.PublicPrefix, "/"),
		policy:       cfg.Policy,
		maxWidth:     cfg.OptimizeMaxWidth,
		quality:      cfg.OptimizeQuality,
		avifQuality:  cfg.AVIFQuality,
		skipAVIF:     cfg.DisableAVIF,
		namer:        NewNamer(),
		recorder:     noopRecorder{},
		log:          logger.Discard(),
	}
	if cfg.PublicPrefix == "" {
		p.publicPrefix = DefaultPublicPrefix
	}
	if len(p.policy.AllowedTypes) == 0 {
		p.policy.AllowedTypes = validation.DefaultPolicy().AllowedTypes
	}
	if p.policy.MaxBytes <= 0 {
		p.policy.MaxBytes = validation.DefaultMaxBytes
	}
	if p.maxWidth <= 0 {
		p.maxWidth = DefaultOptimizeMaxWidth
	}
	if p.quality <= 0 || p.quality > 100 {
		p.quality = DefaultOptimizeQuality
	}
	if p.avifQuality <= 0 || p.avifQuality > 100 {
		p.avifQuality = DefaultAVIFQuality
	}

	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Destinations returns the configured destinations in order
func (p *Pipeline) Destinations() []storage.Destination {
	return append([]storage.Destination(nil), p.destinations...)
}

// Validate checks the asset against the pipeline policy without touching disk
func (p *Pipeline) Validate(asset Asset) error {
	return p.policy.Validate(asset.ContentType, asset.size())
}

// GenerateFileName returns the name the asset would be stored under
func (p *Pipeline) GenerateFileName(original string) string {
	return p.namer.GenerateFileName(original)
}

// PublicURL is the site-relative URL for a stored file name
func (p *Pipeline) PublicURL(fileName string) string {
	return p.publicPrefix + "/" + fileName
}

// Store validates the asset, then writes it to every destination
// concurrently. A write failure at any destination fails the whole call;
// copies already written elsewhere are left in place.
func (p *Pipeline) Store(ctx context.Context, asset Asset) (*StoredAsset, error) {
	start := time.Now()
	stored, err := p.store(ctx, asset)
	p.recorder.RecordUpload("store", time.Since(start), int64(len(asset.Data)), err)
	return stored, err
}

func (p *Pipeline) store(ctx context.Context, asset Asset) (*StoredAsset, error) {
	if err := p.Validate(asset); err != nil {
		return nil, err
	}

	fileName := p.namer.GenerateFileName(asset.FileName)
	log := p.log.WithContext(ctx).WithAsset(fileName)

	paths, err := p.writeAll(ctx, fileName, asset.Data)
	if err != nil {
		log.Warn("Failed to store asset", "error", err)
		return nil, err
	}

	log.Info("Stored asset",
		"original_name", asset.FileName,
		"size_bytes", len(asset.Data),
		"destinations", len(paths))

	return &StoredAsset{
		FileName:         fileName,
		DestinationPaths: paths,
		PublicURL:        p.PublicURL(fileName),
		SizeBytes:        int64(len(asset.Data)),
	}, nil
}

// writeAll fans one payload out to every destination and waits for all of
// them. Paths are returned in destination order.
func (p *Pipeline) writeAll(ctx context.Context, fileName string, data []byte) ([]string, error) {
	paths := make([]string, len(p.destinations))

	var g errgroup.Group
	for i, dest := range p.destinations {
		paths[i] = dest.Path(fileName)
		g.Go(func() error {
			err := dest.Ensure(ctx)
			if err == nil {
				err = dest.Write(ctx, fileName, data)
			}
			p.recorder.RecordDestinationWrite(dest.Name(), err)
			if err != nil {
				return &StorageError{Op: "write", Destination: dest.Name(), Err: err}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// Delete removes the file named by publicPath, and any optimized variants
// of it, from every destination. A file missing at some or all destinations
// is not an error, so repeated deletes keep returning true.
func (p *Pipeline) Delete(ctx context.Context, publicPath string) (bool, error) {
	start := time.Now()
	ok, err := p.delete(ctx, publicPath)
	p.recorder.RecordUpload("delete", time.Since(start), 0, err)
	return ok, err
}

func (p *Pipeline) delete(ctx context.Context, publicPath string) (bool, error) {
	fileName, err := FileNameFromPath(publicPath)
	if err != nil {
		return false, err
	}

	log := p.log.WithContext(ctx).WithAsset(fileName)
	removed := 0
	for _, name := range append([]string{fileName}, variantNames(fileName)...) {
		for _, dest := range p.destinations {
			if err := dest.Remove(ctx, name); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					log.Debug("Asset already absent", "destination", dest.Name(), "file", name)
					continue
				}
				log.Warn("Failed to delete asset", "destination", dest.Name(), "file", name, "error", err)
				return false, &StorageError{Op: "delete", Destination: dest.Name(), Err: err}
			}
			removed++
		}
	}

	log.Info("Deleted asset", "removed", removed, "destinations", len(p.destinations))
	return true, nil
}

// FileNameFromPath extracts the stored file name from a public URL or path.
// Query strings and fragments are ignored.
func FileNameFromPath(publicPath string) (string, error) {
	trimmed := strings.TrimSpace(publicPath)
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}

	name := path.Base(trimmed)
	if trimmed == "" || name == "." || name == ".." || name == "/" || strings.ContainsAny(name, `\`) {
		return "", &validation.ValidationError{
			Code:    validation.CodeInvalidPath,
			Message: fmt.Sprintf("invalid path %q: no file name", publicPath),
		}
	}
	return name, nil
}

// StoreMany stores assets one after another in order. onStored, if set, is
// called after each success. The first failure aborts the batch and no
// partial result is returned.
func (p *Pipeline) StoreMany(ctx context.Context, assets []Asset, onStored func(i int, stored *StoredAsset)) ([]*StoredAsset, error) {
	start := time.Now()
	results, err := p.storeMany(ctx, assets, onStored)

	var total int64
	for _, a := range assets {
		total += int64(len(a.Data))
	}
	p.recorder.RecordUpload("store_many", time.Since(start), total, err)
	return results, err
}

func (p *Pipeline) storeMany(ctx context.Context, assets []Asset, onStored func(int, *StoredAsset)) ([]*StoredAsset, error) {
	results := make([]*StoredAsset, 0, len(assets))
	for i, asset := range assets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stored, err := p.Store(ctx, asset)
		if err != nil {
			return nil, fmt.Errorf("asset %d (%s): %w", i, asset.FileName, err)
		}
		if onStored != nil {
			onStored(i, stored)
		}
		results = append(results, stored)
	}
	return results, nil
}
