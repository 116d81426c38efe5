// Package evidence stores uploaded proof and profile files and hands back
// opaque URIs under the public uploads prefix.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// URLPrefix is the public path stored files are served under.
const URLPrefix = "/uploads"

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
	ErrInvalidFolder   = errors.New("invalid folder")
)

var allowedExt = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".pdf":  true,
}

// Store saves uploaded files.
type Store interface {
	Save(ctx context.Context, folder string, files []*multipart.FileHeader) ([]string, error)
	Remove(uris []string)
}

// LocalStore writes files under a directory on disk.
type LocalStore struct {
	root     string
	maxBytes int64
	log      *zap.Logger
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string, maxBytes int64, log *zap.Logger) (*LocalStore, error) {
	if root == "" {
		return nil, errors.New("upload dir is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LocalStore{root: root, maxBytes: maxBytes, log: log.With(zap.String("component", "evidence"))}, nil
}

// Root returns the directory files are written to.
func (s *LocalStore) Root() string { return s.root }

// Save validates every file first and then writes them with random names.
// Either all files are stored or none.
func (s *LocalStore) Save(ctx context.Context, folder string, files []*multipart.FileHeader) ([]string, error) {
	if folder == "" || strings.ContainsAny(folder, `/\.`) {
		return nil, ErrInvalidFolder
	}
	for _, fh := range files {
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if !allowedExt[ext] {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, fh.Filename)
		}
		if s.maxBytes > 0 && fh.Size > s.maxBytes {
			return nil, fmt.Errorf("%w: %s", ErrTooLarge, fh.Filename)
		}
	}

	dir := filepath.Join(s.root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create folder: %w", err)
	}

	uris := make([]string, 0, len(files))
	for _, fh := range files {
		if err := ctx.Err(); err != nil {
			s.Remove(uris)
			return nil, err
		}
		name := uuid.NewString() + strings.ToLower(filepath.Ext(fh.Filename))
		if err := s.write(filepath.Join(dir, name), fh); err != nil {
			s.Remove(uris)
			return nil, err
		}
		uris = append(uris, path.Join(URLPrefix, folder, name))
	}
	return uris, nil
}

func (s *LocalStore) write(dst string, fh *multipart.FileHeader) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("write file: %w", err)
	}
	return out.Close()
}

// Remove deletes previously saved files; failures are only logged.
func (s *LocalStore) Remove(uris []string) {
	for _, u := range uris {
		rel := strings.TrimPrefix(u, URLPrefix+"/")
		if rel == u || strings.Contains(rel, "..") {
			continue
		}
		if err := os.Remove(filepath.Join(s.root, filepath.FromSlash(rel))); err != nil && !os.IsNotExist(err) {
			s.log.Warn("remove evidence failed", zap.String("uri", u), zap.Error(err))
		}
	}
}
