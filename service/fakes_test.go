package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/disintegration/imaging"

	"armario-estampados/capture"
	"armario-estampados/models"
	"armario-estampados/repository"
)

type fakeRenderer struct {
	mu    sync.Mutex
	calls []bool
	err   error
}

func (f *fakeRenderer) RenderSide(_ context.Context, st *models.SideState, size int, withGarment bool) (image.Image, error) {
	f.mu.Lock()
	f.calls = append(f.calls, withGarment)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if withGarment {
		return imaging.New(size, size, color.NRGBA{R: 0, G: 0, B: 255, A: 255}), nil
	}
	return imaging.New(size, size, color.NRGBA{}), nil
}

type fakeStorage struct {
	mu       sync.Mutex
	uploads  []capture.UploadRequest
	deleted  []string
	failOn   models.CaptureVariant
	onUpload func(capture.UploadRequest) // runs before the upload is recorded
}

func (f *fakeStorage) Upload(_ context.Context, req capture.UploadRequest) (string, error) {
	if f.onUpload != nil {
		f.onUpload(req)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != "" && req.Variant == f.failOn {
		return "", errors.New("storage unavailable")
	}
	f.uploads = append(f.uploads, req)
	return "https://files.test/" + req.Key, nil
}

func (f *fakeStorage) Delete(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, url)
	return nil
}

func (f *fakeStorage) deletedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func (f *fakeStorage) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

type fakeRepo struct {
	mu         sync.Mutex
	items      map[string][]models.LineItemCustomization
	files      map[string][]models.GeneratedFile
	pending    []string
	nextID     int64
	replaced   int
	replaceErr error
}

var _ repository.CustomizationRepositoryInterface = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{items: map[string][]models.LineItemCustomization{}, files: map[string][]models.GeneratedFile{}}
}

func (f *fakeRepo) SaveLineItem(_ context.Context, item *models.LineItemCustomization) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	item.ID = f.nextID
	f.items[item.OrderID] = append(f.items[item.OrderID], *item)
	return item.ID, nil
}

func (f *fakeRepo) GetLineItemsByOrder(_ context.Context, orderID string) ([]models.LineItemCustomization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := f.items[orderID]
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: %s", repository.ErrOrderNotFound, orderID)
	}
	return append([]models.LineItemCustomization(nil), items...), nil
}

func (f *fakeRepo) ReplaceGeneratedFiles(_ context.Context, orderID string, files []models.GeneratedFile) ([]models.GeneratedFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		return nil, f.replaceErr
	}
	prev := f.files[orderID]
	f.files[orderID] = append([]models.GeneratedFile(nil), files...)
	f.replaced++
	return prev, nil
}

func (f *fakeRepo) ListGeneratedFiles(_ context.Context, orderID string) ([]models.GeneratedFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.GeneratedFile(nil), f.files[orderID]...), nil
}

func (f *fakeRepo) FlagForRegeneration(_ context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.items[orderID]) == 0 {
		return repository.ErrOrderNotFound
	}
	f.pending = append(f.pending, orderID)
	return nil
}

func (f *fakeRepo) ListOrdersPendingRegeneration(_ context.Context, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.pending
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return append([]string(nil), out...), nil
}
