package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/lyzr/cookbook/common/logger"
	"github.com/lyzr/cookbook/common/upload"
	"github.com/lyzr/cookbook/common/validation"
)

// UploadService turns multipart form files into pipeline assets
type UploadService struct {
	pipeline      *upload.Pipeline
	publicBaseURL string
	log           *logger.Logger
}

// NewUploadService creates a new upload service. publicBaseURL, when set,
// is prepended to public paths to build absolute URLs.
func NewUploadService(pipeline *upload.Pipeline, publicBaseURL string, log *logger.Logger) *UploadService {
	return &UploadService{
		pipeline:      pipeline,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		log:           log,
	}
}

// Upload stores one form file, optionally with an optimized variant
func (s *UploadService) Upload(ctx context.Context, fh *multipart.FileHeader, optimize bool) (*upload.Result, error) {
	asset, err := ReadAsset(fh)
	if err != nil {
		return nil, err
	}

	if optimize {
		return s.pipeline.StoreOptimized(ctx, asset)
	}

	stored, err := s.pipeline.Store(ctx, asset)
	if err != nil {
		return nil, err
	}
	return &upload.Result{Stored: stored}, nil
}

// UploadMany stores form files in order and stops at the first failure
func (s *UploadService) UploadMany(ctx context.Context, files []*multipart.FileHeader) ([]*upload.StoredAsset, error) {
	assets := make([]upload.Asset, 0, len(files))
	for i, fh := range files {
		asset, err := ReadAsset(fh)
		if err != nil {
			return nil, fmt.Errorf("file%d: %w", i, err)
		}
		assets = append(assets, asset)
	}

	return s.pipeline.StoreMany(ctx, assets, func(i int, stored *upload.StoredAsset) {
		s.log.Debug("stored batch item", "index", i, "file_name", stored.FileName)
	})
}

// Delete removes the file behind a public path from every destination
func (s *UploadService) Delete(ctx context.Context, publicPath string) (bool, error) {
	return s.pipeline.Delete(ctx, publicPath)
}

// URL returns the address clients should use for a public path
func (s *UploadService) URL(publicPath string) string {
	if s.publicBaseURL == "" || publicPath == "" {
		return publicPath
	}
	return s.publicBaseURL + publicPath
}

// ReadAsset loads a form file into memory. The declared part type is used
// when present; otherwise the type is sniffed from the bytes.
func ReadAsset(fh *multipart.FileHeader) (upload.Asset, error) {
	f, err := fh.Open()
	if err != nil {
		return upload.Asset{}, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return upload.Asset{}, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
	}

	contentType := strings.TrimSpace(fh.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = validation.SniffContentType(data)
	}

	return upload.Asset{
		Data:        data,
		ContentType: contentType,
		Size:        int64(len(data)),
		FileName:    fh.Filename,
	}, nil
}
