// Package upload spools incoming image uploads to temporary files and
// guarantees their cleanup. Every materialized handle must be released
// exactly once; release is idempotent so defer chains and error paths
// can both call it safely.
package upload

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/flp-cmd/WhatsappBackstageAPI/internal/metrics"
)

const DefaultMaxBytes = 10 << 20 // 10MB

var (
	// ErrMediaType: the declared content type is not an accepted image format.
	ErrMediaType = errors.New("unsupported media type")
	// ErrTooLarge: the upload exceeds the configured size limit.
	ErrTooLarge = errors.New("upload too large")
)

// allowedMediaTypes are the raster image formats accepted at the boundary.
var allowedMediaTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// AllowedMediaType reports whether mediaType is an accepted image format.
func AllowedMediaType(mediaType string) bool {
	return allowedMediaTypes[mediaType]
}

// Store writes uploads into a spool directory.
type Store struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger
	live     atomic.Int64
}

type StoreConfig struct {
	Dir      string
	MaxBytes int64
	Logger   *slog.Logger
}

func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: cfg.Dir, maxBytes: cfg.MaxBytes, logger: cfg.Logger}, nil
}

// Live returns the number of handles materialized but not yet released.
func (s *Store) Live() int64 { return s.live.Load() }

// Materialize spools r to a temporary file and returns a handle to it.
// Rejects disallowed media types and uploads over the size limit.
func (s *Store) Materialize(r io.Reader, mediaType, filename string) (*Handle, error) {
	if !AllowedMediaType(mediaType) {
		return nil, fmt.Errorf("%w: %q", ErrMediaType, mediaType)
	}

	f, err := os.CreateTemp(s.dir, "upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	// +1 so an oversized upload is detectable rather than silently truncated.
	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > s.maxBytes {
		err = fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, s.maxBytes)
	}
	if err != nil {
		os.Remove(f.Name())
		return nil, err
	}

	s.live.Add(1)
	metrics.LiveUploads.Inc()
	return &Handle{
		store:     s,
		path:      f.Name(),
		mediaType: mediaType,
		filename:  filename,
	}, nil
}

// Handle is one spooled upload. Implements domain.Attachment.
type Handle struct {
	store     *Store
	path      string
	mediaType string
	filename  string
	released  sync.Once
}

func (h *Handle) Path() string      { return h.path }
func (h *Handle) MediaType() string { return h.mediaType }
func (h *Handle) Filename() string  { return h.filename }

// Bytes reads the spooled content back.
func (h *Handle) Bytes() ([]byte, error) {
	return os.ReadFile(h.path)
}

// Release removes the backing file. Idempotent; failures are logged
// but never override the caller's primary result.
func (h *Handle) Release() {
	h.released.Do(func() {
		h.store.live.Add(-1)
		metrics.LiveUploads.Dec()
		if err := os.Remove(h.path); err != nil {
			h.store.logger.Warn("failed to remove upload temp file", "path", h.path, "err", err)
		}
	})
}
