package asset

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"armario-estampados/cache"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.NRGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newAssetServer(t *testing.T, hits *int32) *httptest.Server {
	data := pngBytes(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/cors.png", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.Empty(t, r.Header.Get("Cookie"))
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Write(data)
	})
	mux.HandleFunc("/private.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	})
	mux.HandleFunc("/broken.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Write([]byte("not an image"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLoader_CORSGrant(t *testing.T) {
	var hits int32
	srv := newAssetServer(t, &hits)
	l := NewLoader(srv.Client(), "https://tienda.example", nil, nil)

	src, err := l.Load(context.Background(), srv.URL+"/cors.png")
	require.NoError(t, err)
	assert.False(t, src.Tainted)
	assert.NoError(t, src.Readable())
	assert.Equal(t, 4, src.Image.Bounds().Dx())
}

func TestLoader_MissingGrantIsTainted(t *testing.T) {
	var hits int32
	srv := newAssetServer(t, &hits)
	l := NewLoader(srv.Client(), "https://tienda.example", nil, nil)

	src, err := l.Load(context.Background(), srv.URL+"/private.png")
	require.NoError(t, err)
	assert.True(t, src.Tainted)
	assert.ErrorIs(t, src.Readable(), ErrTainted)
}

func TestLoader_TrustedHostNeedsNoGrant(t *testing.T) {
	var hits int32
	srv := newAssetServer(t, &hits)
	u, _ := url.Parse(srv.URL)
	l := NewLoader(srv.Client(), "https://tienda.example", []string{u.Hostname()}, nil)

	src, err := l.Load(context.Background(), srv.URL+"/private.png")
	require.NoError(t, err)
	assert.False(t, src.Tainted)
}

func TestLoader_DecodeErrors(t *testing.T) {
	var hits int32
	srv := newAssetServer(t, &hits)
	l := NewLoader(srv.Client(), "", nil, nil)
	ctx := context.Background()

	_, err := l.Load(ctx, srv.URL+"/broken.png")
	assert.ErrorIs(t, err, ErrDecode)

	_, err = l.Load(ctx, srv.URL+"/missing.png")
	assert.ErrorIs(t, err, ErrDecode)

	_, err = l.Load(ctx, "")
	assert.ErrorIs(t, err, ErrDecode)

	_, err = l.Load(ctx, "ftp://example.com/a.png")
	assert.ErrorIs(t, err, ErrDecode)
}

func TestLoader_DataURI(t *testing.T) {
	l := NewLoader(nil, "", nil, nil)
	src, err := l.Load(context.Background(), DataURI("image/png", pngBytes(t)))
	require.NoError(t, err)
	assert.False(t, src.Tainted)
	assert.Equal(t, color.NRGBAModel.Convert(src.Image.At(1, 1)), color.NRGBA{R: 200, A: 255})
}

func TestLoader_CachesReadableAssets(t *testing.T) {
	var hits int32
	srv := newAssetServer(t, &hits)
	store, err := cache.NewMemoryStore(8)
	require.NoError(t, err)
	l := NewLoader(srv.Client(), "", nil, store)

	for i := 0; i < 3; i++ {
		_, err := l.Load(context.Background(), srv.URL+"/cors.png")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}
