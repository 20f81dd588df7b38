// Package capture rasterizes render surfaces and uploads the resulting images.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"

	"armario-estampados/models"
)

var (
	// ErrNotReady reports a surface that is empty, unsized or not painted with the latest state
	ErrNotReady = errors.New("surface not ready for capture")
	// ErrBusy reports a capture run already in flight for the same session
	ErrBusy = errors.New("capture already in progress")
)

// Surface is anything that can be validated and rasterized for one garment side
type Surface interface {
	Side() models.Side
	IsReady() error
	Rasterize(ctx context.Context) (image.Image, error)
}

// UploadRequest describes one encoded artifact headed for remote storage
type UploadRequest struct {
	OrderID     string
	Side        models.Side
	Variant     models.CaptureVariant
	Key         string
	ContentType string
	Data        []byte
}

// Uploader stores an artifact and returns its public URL
type Uploader interface {
	Upload(ctx context.Context, req UploadRequest) (string, error)
}

// UploadError wraps a storage failure with the artifact it belonged to.
// Uploads are retryable by the caller; the pipeline never retries on its own.
type UploadError struct {
	Side    models.Side
	Variant models.CaptureVariant
	OrderID string
	Err     error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("failed to upload %s %s capture for order %q: %v", e.Side, e.Variant, e.OrderID, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Temporary marks upload failures as transient
func (e *UploadError) Temporary() bool { return true }

// IsTransient reports whether err is worth retrying
func IsTransient(err error) bool {
	var t interface{ Temporary() bool }
	return errors.As(err, &t) && t.Temporary()
}

// Target pairs a surface with the capture intent
type Target struct {
	Surface Surface
	Variant models.CaptureVariant
}
