package asset

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"armario-estampados/cache"
)

const maxAssetBytes = 40 << 20

// Loader fetches and decodes images by URL
type Loader struct {
	client  *http.Client
	origin  string
	trusted map[string]bool
	cache   cache.Store
	ttl     time.Duration
}

// NewLoader creates a Loader. origin is sent as the Origin header; trustedHosts are served
// by our own storage and never need a CORS grant. store may be nil.
func NewLoader(client *http.Client, origin string, trustedHosts []string, store cache.Store) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	trusted := make(map[string]bool, len(trustedHosts))
	for _, h := range trustedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			trusted[h] = true
		}
	}
	return &Loader{client: client, origin: origin, trusted: trusted, cache: store, ttl: time.Hour}
}

// Load returns the decoded image behind rawURL. data: URIs are decoded in place.
func (l *Loader) Load(ctx context.Context, rawURL string) (Source, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Source{}, fmt.Errorf("%w: missing image url", ErrDecode)
	}
	if strings.HasPrefix(rawURL, "data:") {
		data, err := decodeDataURI(rawURL)
		if err != nil {
			return Source{}, err
		}
		img, err := Decode(data)
		if err != nil {
			return Source{}, err
		}
		return Source{URL: rawURL, Image: img}, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return Source{}, fmt.Errorf("%w: unsupported image url %q", ErrDecode, rawURL)
	}

	key := cache.Key{Entity: cache.EntityAsset, ID: rawURL}
	if l.cache != nil {
		if data, ok, err := l.cache.Get(ctx, key); err == nil && ok {
			img, err := Decode(data)
			if err == nil {
				return Source{URL: rawURL, Image: img}, nil
			}
			_ = l.cache.Invalidate(ctx, key)
		}
	}

	data, tainted, err := l.fetch(ctx, u)
	if err != nil {
		return Source{}, err
	}
	img, err := Decode(data)
	if err != nil {
		return Source{}, fmt.Errorf("%w (%s)", err, rawURL)
	}
	if tainted {
		log.Warn().Str("url", rawURL).Msg("⚠️  Asset served without CORS grant, marking tainted")
	} else if l.cache != nil {
		if err := l.cache.Set(ctx, key, data, l.ttl); err != nil {
			log.Warn().Err(err).Str("url", rawURL).Msg("⚠️  Failed to cache asset")
		}
	}
	return Source{URL: rawURL, Image: img, Tainted: tainted}, nil
}

// fetch performs a credential-less CORS request
func (l *Loader) fetch(ctx context.Context, u *url.URL) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build asset request: %w", err)
	}
	if l.origin != "" {
		req.Header.Set("Origin", l.origin)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("%w: image endpoint returned status %d", ErrDecode, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read image data: %w", err)
	}
	return data, !l.allowed(u, resp.Header.Get("Access-Control-Allow-Origin")), nil
}

func (l *Loader) allowed(u *url.URL, allowOrigin string) bool {
	if l.trusted[strings.ToLower(u.Hostname())] {
		return true
	}
	allowOrigin = strings.TrimSpace(allowOrigin)
	return allowOrigin == "*" || (l.origin != "" && strings.EqualFold(allowOrigin, l.origin))
}

func decodeDataURI(uri string) ([]byte, error) {
	comma := strings.IndexByte(uri, ',')
	if comma < 0 {
		return nil, fmt.Errorf("%w: malformed data uri", ErrDecode)
	}
	meta, payload := uri[len("data:"):comma], uri[comma+1:]
	if !strings.HasSuffix(meta, ";base64") {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return []byte(unescaped), nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return data, nil
}

// DataURI encodes a payload as a base64 data URI
func DataURI(contentType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data))
}
