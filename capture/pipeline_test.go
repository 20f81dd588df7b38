package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"armario-estampados/models"
)

type fakeSurface struct {
	side    models.Side
	img     image.Image
	readyFn func() error
	rastErr error
}

func (f *fakeSurface) Side() models.Side { return f.side }

func (f *fakeSurface) IsReady() error {
	if f.readyFn != nil {
		return f.readyFn()
	}
	return nil
}

func (f *fakeSurface) Rasterize(ctx context.Context) (image.Image, error) {
	if f.rastErr != nil {
		return nil, f.rastErr
	}
	return f.img, nil
}

type fakeUploader struct {
	mu      sync.Mutex
	calls   []UploadRequest
	err     error
	started chan struct{}
	release chan struct{}
}

func (u *fakeUploader) Upload(ctx context.Context, req UploadRequest) (string, error) {
	if u.started != nil {
		u.started <- struct{}{}
		<-u.release
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, req)
	if u.err != nil {
		return "", u.err
	}
	return "https://cdn.test/" + req.Key, nil
}

func solid(w, h int, c color.Color) image.Image {
	return imaging.New(w, h, c)
}

func TestCapture_ProductionKeepsTransparency(t *testing.T) {
	up := &fakeUploader{}
	p := NewPipeline(up, Options{})
	surface := &fakeSurface{side: models.SideFront, img: solid(40, 40, color.NRGBA{})}

	a, err := p.Capture(context.Background(), "ord_1", surface, models.VariantProduction)
	require.NoError(t, err)

	assert.Equal(t, models.CaptureStatusUploaded, a.Status)
	assert.Equal(t, "image/png", a.ContentType)
	require.Len(t, up.calls, 1)
	assert.Contains(t, up.calls[0].Key, "ord_1/front-production-")

	decoded, err := imaging.Decode(bytes.NewReader(a.Data))
	require.NoError(t, err)
	_, _, _, alpha := decoded.At(5, 5).RGBA()
	assert.Zero(t, alpha)
}

func TestCapture_PreviewIsDownsizedJPEG(t *testing.T) {
	up := &fakeUploader{}
	p := NewPipeline(up, Options{PreviewMaxEdge: 100})
	surface := &fakeSurface{side: models.SideBack, img: solid(600, 600, color.NRGBA{R: 255, A: 255})}

	a, err := p.Capture(context.Background(), "", surface, models.VariantPreview)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", a.ContentType)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(a.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 100, cfg.Width)
	assert.Contains(t, up.calls[0].Key, "draft/back-preview-")
}

func TestCapture_NotReadySurfaceNeverUploads(t *testing.T) {
	up := &fakeUploader{}
	p := NewPipeline(up, Options{})
	surface := &fakeSurface{side: models.SideFront, readyFn: func() error {
		return errors.New("no renderable content")
	}}

	_, err := p.Capture(context.Background(), "ord_1", surface, models.VariantProduction)
	require.ErrorIs(t, err, ErrNotReady)
	assert.Empty(t, up.calls)
	assert.False(t, p.Busy())
}

func TestCapture_UploadFailureIsTransient(t *testing.T) {
	up := &fakeUploader{err: errors.New("503 from storage")}
	p := NewPipeline(up, Options{})
	surface := &fakeSurface{side: models.SideBack, img: solid(10, 10, color.Black)}

	_, err := p.Capture(context.Background(), "ord_9", surface, models.VariantProduction)
	require.Error(t, err)

	var uerr *UploadError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, models.SideBack, uerr.Side)
	assert.Equal(t, models.VariantProduction, uerr.Variant)
	assert.Equal(t, "ord_9", uerr.OrderID)
	assert.True(t, IsTransient(err))
}

func TestCapture_RasterizeErrorPropagates(t *testing.T) {
	tainted := errors.New("tainted")
	p := NewPipeline(&fakeUploader{}, Options{})
	surface := &fakeSurface{side: models.SideFront, rastErr: tainted}

	_, err := p.Capture(context.Background(), "ord_1", surface, models.VariantPreview)
	assert.ErrorIs(t, err, tainted)
	assert.False(t, IsTransient(err))
}

func TestRun_ConcurrentRunIsRejected(t *testing.T) {
	up := &fakeUploader{started: make(chan struct{}), release: make(chan struct{})}
	p := NewPipeline(up, Options{})
	targets := []Target{
		{Surface: &fakeSurface{side: models.SideFront, img: solid(10, 10, color.Black)}, Variant: models.VariantProduction},
	}

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background(), "ord_1", targets)
		done <- err
	}()

	select {
	case <-up.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first run never reached upload")
	}

	_, err := p.Run(context.Background(), "ord_1", targets)
	assert.ErrorIs(t, err, ErrBusy)
	_, err = p.Capture(context.Background(), "ord_1", targets[0].Surface, models.VariantPreview)
	assert.ErrorIs(t, err, ErrBusy)

	close(up.release)
	require.NoError(t, <-done)
	assert.Len(t, up.calls, 1)
	assert.False(t, p.Busy())
}

func TestRun_ValidatesEverySurfaceBeforeUploading(t *testing.T) {
	up := &fakeUploader{}
	p := NewPipeline(up, Options{})
	ready := &fakeSurface{side: models.SideFront, img: solid(10, 10, color.Black)}
	stale := &fakeSurface{side: models.SideBack, readyFn: func() error { return ErrNotReady }}

	_, err := p.Run(context.Background(), "ord_1", []Target{
		{Surface: ready, Variant: models.VariantProduction},
		{Surface: stale, Variant: models.VariantProduction},
	})
	require.ErrorIs(t, err, ErrNotReady)
	assert.Empty(t, up.calls)
}

func TestRun_CollectsURLsPerSide(t *testing.T) {
	up := &fakeUploader{}
	p := NewPipeline(up, Options{})
	front := &fakeSurface{side: models.SideFront, img: solid(10, 10, color.Black)}

	artifacts, err := p.Run(context.Background(), "ord_2", []Target{
		{Surface: front, Variant: models.VariantPreview},
		{Surface: front, Variant: models.VariantProduction},
	})
	require.NoError(t, err)
	require.Len(t, artifacts, 2)

	urls := URLs(artifacts)
	require.Contains(t, urls, models.SideFront)
	assert.Contains(t, urls[models.SideFront].PreviewURL, "front-preview")
	assert.Contains(t, urls[models.SideFront].ProductionURL, "front-production")
}

func TestRun_EmptyTargetList(t *testing.T) {
	_, err := NewPipeline(&fakeUploader{}, Options{}).Run(context.Background(), "ord", nil)
	assert.ErrorIs(t, err, ErrNotReady)
}
