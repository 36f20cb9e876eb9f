package upload

import (
	"bytes"
	"context"
	"errors"
	"image"
	"math"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/avif"
	"github.com/gen2brain/webp"
	"golang.org/x/sync/errgroup"
)

// optimizable lists the media types the decoder understands
var optimizable = map[string]string{
	"image/jpeg": "jpeg",
	"image/jpg":  "jpeg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/avif": "avif",
}

// Variant file suffixes. Delete removes these alongside the original.
const (
	webpSuffix = "-optimized.webp"
	avifSuffix = "-optimized.avif"
)

// StoreOptimized stores the original, then a downscaled WebP variant and,
// unless disabled, an AVIF variant. Assets that cannot be decoded are
// stored as-is with no optimization data.
func (p *Pipeline) StoreOptimized(ctx context.Context, asset Asset) (*Result, error) {
	stored, err := p.Store(ctx, asset)
	if err != nil {
		return nil, err
	}
	result := &Result{Stored: stored}

	format, ok := optimizable[strings.ToLower(mediaType(asset.ContentType))]
	if !ok {
		return result, nil
	}

	start := time.Now()
	err = p.optimize(ctx, result, asset.Data, format)
	p.recorder.RecordUpload("optimize", time.Since(start), statsBytes(result.Optimization), err)
	if err != nil {
		var storageErr *StorageError
		if errors.As(err, &storageErr) {
			return nil, err
		}
		p.log.WithContext(ctx).WithAsset(stored.FileName).Warn("Skipping optimization", "error", err)
		return &Result{Stored: stored}, nil
	}
	return result, nil
}

type encodedVariant struct {
	name string
	data []byte
}

func (p *Pipeline) optimize(ctx context.Context, result *Result, data []byte, format string) error {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return err
	}

	bounds := img.Bounds()
	meta := &ImageMetadata{Width: bounds.Dx(), Height: bounds.Dy(), Format: format}
	if bounds.Dx() > p.maxWidth {
		img = imaging.Resize(img, p.maxWidth, 0, imaging.Lanczos)
	}

	fileName := result.Stored.FileName
	var webpOut, avifOut *encodedVariant
	var g errgroup.Group
	g.Go(func() error {
		var buf bytes.Buffer
		if err := webp.Encode(&buf, img, webp.Options{Quality: p.quality, Method: 4}); err != nil {
			return err
		}
		webpOut = &encodedVariant{name: variantName(fileName, webpSuffix), data: buf.Bytes()}
		return nil
	})
	if !p.skipAVIF {
		g.Go(func() error {
			var buf bytes.Buffer
			opts := avif.Options{
				Quality:           p.avifQuality,
				QualityAlpha:      p.avifQuality,
				Speed:             10,
				ChromaSubsampling: image.YCbCrSubsampleRatio420,
			}
			if err := avif.Encode(&buf, img, opts); err != nil {
				return err
			}
			avifOut = &encodedVariant{name: variantName(fileName, avifSuffix), data: buf.Bytes()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	originalSize := int64(len(data))
	out := img.Bounds()
	stats := &OptimizationStats{
		OriginalBytes: originalSize,
		Width:         out.Dx(),
		Height:        out.Dy(),
	}

	result.WebP, err = p.storeVariant(ctx, webpOut)
	if err != nil {
		return err
	}
	stats.WebPBytes = result.WebP.SizeBytes
	smallest := stats.WebPBytes

	if avifOut != nil {
		result.AVIF, err = p.storeVariant(ctx, avifOut)
		if err != nil {
			return err
		}
		stats.AVIFBytes = result.AVIF.SizeBytes
		smallest = min(smallest, stats.AVIFBytes)
	}

	stats.SavedBytes = originalSize - smallest
	if originalSize > 0 {
		stats.SavedPercent = math.Round(float64(stats.SavedBytes)/float64(originalSize)*1000) / 10
	}
	result.Optimization = stats
	result.Metadata = meta

	p.log.WithContext(ctx).WithAsset(fileName).Info("Stored optimized variants",
		"original_bytes", originalSize,
		"webp_bytes", stats.WebPBytes,
		"avif_bytes", stats.AVIFBytes,
		"width", stats.Width,
		"height", stats.Height)
	return nil
}

func (p *Pipeline) storeVariant(ctx context.Context, v *encodedVariant) (*StoredAsset, error) {
	paths, err := p.writeAll(ctx, v.name, v.data)
	if err != nil {
		return nil, err
	}
	return &StoredAsset{
		FileName:         v.name,
		DestinationPaths: paths,
		PublicURL:        p.PublicURL(v.name),
		SizeBytes:        int64(len(v.data)),
	}, nil
}

// variantName swaps the extension of fileName for suffix
func variantName(fileName, suffix string) string {
	stem := fileName
	if i := strings.LastIndexByte(stem, '.'); i > 0 {
		stem = stem[:i]
	}
	return stem + suffix
}

// variantNames lists the optimized files that may exist for an original.
// Variants have none of their own.
func variantNames(fileName string) []string {
	if strings.HasSuffix(fileName, webpSuffix) || strings.HasSuffix(fileName, avifSuffix) {
		return nil
	}
	return []string{variantName(fileName, webpSuffix), variantName(fileName, avifSuffix)}
}

func mediaType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.TrimSpace(contentType)
}

func statsBytes(stats *OptimizationStats) int64 {
	if stats == nil {
		return 0
	}
	return stats.WebPBytes + stats.AVIFBytes
}
