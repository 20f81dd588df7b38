package service

import (
	"context"
	"fmt"
	"image/color"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"armario-estampados/asset"
	"armario-estampados/bgremoval"
	"armario-estampados/customization"
	"armario-estampados/models"
)

// gatedLoader blocks the first Load until release is closed
type gatedLoader struct {
	sources map[string]asset.Source
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedLoader(sources map[string]asset.Source) *gatedLoader {
	return &gatedLoader{sources: sources, started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedLoader) Load(ctx context.Context, url string) (asset.Source, error) {
	first := false
	g.once.Do(func() { first = true })
	if first && g.release != nil {
		close(g.started)
		<-g.release
	}
	s, ok := g.sources[url]
	if !ok {
		return asset.Source{}, fmt.Errorf("%w: %s", asset.ErrDecode, url)
	}
	return s, nil
}

func whiteBackgroundDesign() map[string]asset.Source {
	img := imaging.New(8, 8, color.White)
	img.SetNRGBA(4, 4, color.NRGBA{R: 200, A: 255})
	return map[string]asset.Source{
		"https://cdn.test/dog.png":     {URL: "https://cdn.test/dog.png", Image: img},
		"https://other.test/cat.png":   {URL: "https://other.test/cat.png", Image: img, Tainted: true},
		"https://cdn.test/new-dog.png": {URL: "https://cdn.test/new-dog.png", Image: img},
	}
}

func storeWithDesign(t *testing.T, url string) *customization.Store {
	t.Helper()
	store, err := customization.New(models.PrintSizeA4)
	require.NoError(t, err)
	require.NoError(t, store.Update(models.SideFront, customization.KindDesign, customization.Patch{SourceURL: &url}))
	return store
}

func TestBackgroundService_Clean(t *testing.T) {
	loader := newGatedLoader(whiteBackgroundDesign())
	loader.release = nil
	storage := &fakeStorage{}
	svc := NewBackgroundService(loader, storage)
	store := storeWithDesign(t, "https://cdn.test/dog.png")

	url, err := svc.Clean(context.Background(), store, "sess", models.SideFront, 10)
	require.NoError(t, err)
	assert.Contains(t, url, "drafts/sess/front-cleaned-")

	st, _, err := store.SideSnapshot(models.SideFront)
	require.NoError(t, err)
	assert.Equal(t, url, st.Design.CleanedURL)
	assert.Equal(t, "https://cdn.test/dog.png", st.Design.SourceURL)

	require.Equal(t, 1, storage.uploadCount())
	img, err := asset.Decode(storage.uploads[0].Data)
	require.NoError(t, err)
	cleaned := imaging.Clone(img)
	assert.Equal(t, uint8(0), cleaned.NRGBAAt(0, 0).A)
	assert.Equal(t, uint8(255), cleaned.NRGBAAt(4, 4).A)
}

func TestBackgroundService_Errors(t *testing.T) {
	loader := newGatedLoader(whiteBackgroundDesign())
	loader.release = nil
	svc := NewBackgroundService(loader, &fakeStorage{})

	store := storeWithDesign(t, "https://cdn.test/dog.png")
	_, err := svc.Clean(context.Background(), store, "s", models.SideFront, 81)
	assert.ErrorIs(t, err, bgremoval.ErrInvalidTolerance)

	_, err = svc.Clean(context.Background(), store, "s", models.SideBack, 10)
	assert.ErrorIs(t, err, customization.ErrUnknownTarget)

	tainted := storeWithDesign(t, "https://other.test/cat.png")
	_, err = svc.Clean(context.Background(), tainted, "s", models.SideFront, 10)
	assert.ErrorIs(t, err, asset.ErrTainted)

	missing := storeWithDesign(t, "https://cdn.test/missing.png")
	_, err = svc.Clean(context.Background(), missing, "s", models.SideFront, 10)
	assert.ErrorIs(t, err, asset.ErrDecode)
}

func TestBackgroundService_NewerPassSupersedes(t *testing.T) {
	loader := newGatedLoader(whiteBackgroundDesign())
	storage := &fakeStorage{}
	svc := NewBackgroundService(loader, storage)
	store := storeWithDesign(t, "https://cdn.test/dog.png")

	done := make(chan error, 1)
	go func() {
		_, err := svc.Clean(context.Background(), store, "sess", models.SideFront, 5)
		done <- err
	}()
	<-loader.started

	newest, err := svc.Clean(context.Background(), store, "sess", models.SideFront, 40)
	require.NoError(t, err)

	close(loader.release)
	assert.ErrorIs(t, <-done, ErrSuperseded)

	st, _, err := store.SideSnapshot(models.SideFront)
	require.NoError(t, err)
	assert.Equal(t, newest, st.Design.CleanedURL)
	assert.Equal(t, 1, storage.uploadCount(), "a stale pass never uploads")
}

func TestBackgroundService_DesignChangedDuringPass(t *testing.T) {
	loader := newGatedLoader(whiteBackgroundDesign())
	storage := &fakeStorage{}
	svc := NewBackgroundService(loader, storage)
	store := storeWithDesign(t, "https://cdn.test/dog.png")

	done := make(chan error, 1)
	go func() {
		_, err := svc.Clean(context.Background(), store, "sess", models.SideFront, 5)
		done <- err
	}()
	<-loader.started

	newSource := "https://cdn.test/new-dog.png"
	require.NoError(t, store.Update(models.SideFront, customization.KindDesign, customization.Patch{SourceURL: &newSource}))
	close(loader.release)

	assert.ErrorIs(t, <-done, ErrSuperseded)
	st, _, err := store.SideSnapshot(models.SideFront)
	require.NoError(t, err)
	assert.Empty(t, st.Design.CleanedURL)
	assert.Len(t, storage.deleted, 1, "the orphaned upload is removed")
}

func TestBackgroundService_Forget(t *testing.T) {
	svc := NewBackgroundService(nil, nil)
	svc.begin(passKey{scope: "a", side: models.SideFront})
	svc.begin(passKey{scope: "b", side: models.SideFront})

	svc.Forget("a")
	assert.Len(t, svc.passes, 1)
}
