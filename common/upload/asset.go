package upload

import "fmt"

// Asset is an uploaded file waiting to be stored
type Asset struct {
	Data        []byte
	ContentType string
	Size        int64
	FileName    string
}

// size is the declared size, falling back to the payload length
func (a Asset) size() int64 {
	if a.Size > 0 {
		return a.Size
	}
	return int64(len(a.Data))
}

// StoredAsset describes a file written to every destination
type StoredAsset struct {
	FileName         string   `json:"fileName"`
	DestinationPaths []string `json:"destinationPaths"`
	PublicURL        string   `json:"publicUrl"`
	SizeBytes        int64    `json:"sizeBytes"`
}

// ImageMetadata is what the decoder learned about the original image
type ImageMetadata struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// OptimizationStats compares the original with its optimized variants.
// SavedBytes is measured against the smallest variant.
type OptimizationStats struct {
	OriginalBytes int64   `json:"originalBytes"`
	WebPBytes     int64   `json:"webpBytes"`
	AVIFBytes     int64   `json:"avifBytes,omitempty"`
	SavedBytes    int64   `json:"savedBytes"`
	SavedPercent  float64 `json:"savedPercent"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
}

// Result is returned by StoreOptimized. WebP, AVIF, Optimization and
// Metadata are nil when the asset could not be decoded; AVIF is also nil
// when AVIF encoding is disabled.
type Result struct {
	Stored       *StoredAsset       `json:"stored"`
	WebP         *StoredAsset       `json:"webp,omitempty"`
	AVIF         *StoredAsset       `json:"avif,omitempty"`
	Optimization *OptimizationStats `json:"optimization,omitempty"`
	Metadata     *ImageMetadata     `json:"metadata,omitempty"`
}

// StorageError wraps a filesystem failure at one destination
type StorageError struct {
	Op          string
	Destination string
	Err         error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed at %s: %v", e.Op, e.Destination, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
