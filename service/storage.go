package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"armario-estampados/capture"
)

// Storage is where capture and regeneration artifacts end up
type Storage interface {
	capture.Uploader
	Delete(ctx context.Context, fileURL string) error
}

// FileStorage persists artifacts onto the local filesystem and serves them under baseURL.
// It is intended for development and test environments.
type FileStorage struct {
	basePath string
	baseURL  string
}

var _ Storage = (*FileStorage)(nil)

// NewFileStorage initializes a FileStorage rooted at basePath
func NewFileStorage(basePath, baseURL string) (*FileStorage, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStorage{basePath: basePath, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// BasePath returns the configured root directory
func (s *FileStorage) BasePath() string { return s.basePath }

// Upload writes the artifact under its key and returns the public URL
func (s *FileStorage) Upload(ctx context.Context, req capture.UploadRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := sanitizeKey(req.Key)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, req.Data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	log.Debug().Str("key", key).Int("bytes", len(req.Data)).Msg("💾 Artifact stored")
	return s.baseURL + "/" + key, nil
}

// Delete removes a file previously returned by Upload. Unknown URLs are ignored.
func (s *FileStorage) Delete(ctx context.Context, fileURL string) error {
	if !strings.HasPrefix(fileURL, s.baseURL+"/") {
		return nil
	}
	key, err := sanitizeKey(strings.TrimPrefix(fileURL, s.baseURL+"/"))
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.basePath, filepath.FromSlash(key))); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: delete file: %w", err)
	}
	return nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	if unescaped, err := url.PathUnescape(key); err == nil {
		key = unescaped
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
