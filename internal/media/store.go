// Package media stores uploaded product images on local disk.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/kalakari/storefront/internal/domain"
)

// DefaultMaxBytes caps an upload when no limit is configured.
const DefaultMaxBytes int64 = 5 << 20

// sniffLen is how much of the file http.DetectContentType looks at.
const sniffLen = 512

// allowed maps sniffed content types to the extension the file is stored with.
var allowed = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Upload describes a stored file.
type Upload struct {
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type Store struct {
	dir      string
	baseURL  string
	maxBytes int64
	logger   *slog.Logger
}

// NewStore creates dir if needed. Stored files are addressed as baseURL/<name>.
func NewStore(dir, baseURL string, maxBytes int64, logger *slog.Logger) (*Store, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("media: create upload dir %s: %w", dir, err)
	}
	return &Store{dir: dir, baseURL: baseURL, maxBytes: maxBytes, logger: logger.With("component", "media")}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Save stores r under a fresh uuid name. size is the declared length, or -1 when
// unknown; the limit is enforced on the bytes actually read either way.
func (s *Store) Save(ctx context.Context, r io.Reader, size int64) (Upload, error) {
	if size > s.maxBytes {
		return Upload{}, s.tooLarge()
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Upload{}, domain.Internal(fmt.Errorf("read upload: %w", err), "failed to read upload")
	}
	head = head[:n]
	if n == 0 {
		return Upload{}, domain.Invalid("empty upload", map[string]string{"image": "file is empty"})
	}

	contentType := http.DetectContentType(head)
	ext, ok := allowed[contentType]
	if !ok {
		return Upload{}, domain.Invalid("unsupported image type", map[string]string{
			"image": fmt.Sprintf("%s is not allowed; use jpeg, png, webp or gif", contentType),
		})
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return Upload{}, domain.Internal(fmt.Errorf("create temp file: %w", err), "failed to store upload")
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, io.LimitReader(io.MultiReader(bytes.NewReader(head), r), s.maxBytes+1))
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		return Upload{}, domain.Internal(fmt.Errorf("write upload: %w", err), "failed to store upload")
	}
	if written > s.maxBytes {
		return Upload{}, s.tooLarge()
	}

	name := uuid.NewString() + ext
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return Upload{}, domain.Internal(fmt.Errorf("rename upload: %w", err), "failed to store upload")
	}

	s.logger.InfoContext(ctx, "image uploaded",
		slog.String("filename", name),
		slog.String("content_type", contentType),
		slog.Int64("size", written),
	)
	return Upload{
		Filename:    name,
		URL:         path.Join(s.baseURL, name),
		ContentType: contentType,
		Size:        written,
	}, nil
}

func (s *Store) tooLarge() error {
	return domain.Invalid("image too large", map[string]string{
		"image": fmt.Sprintf("must be at most %d bytes", s.maxBytes),
	})
}
