package compositor

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// DefaultFont is used for unknown families
const DefaultFont = "Go"

var embeddedFonts = map[string][]byte{
	"go":        goregular.TTF,
	"go bold":   gobold.TTF,
	"go italic": goitalic.TTF,
	"go mono":   gomono.TTF,
}

// FontBook parses font families once and hands out sized faces
type FontBook struct {
	mu    sync.Mutex
	fonts map[string]*opentype.Font
}

// NewFontBook parses the embedded families
func NewFontBook() (*FontBook, error) {
	fb := &FontBook{fonts: make(map[string]*opentype.Font, len(embeddedFonts))}
	for name, ttf := range embeddedFonts {
		f, err := opentype.Parse(ttf)
		if err != nil {
			return nil, fmt.Errorf("failed to parse font %q: %w", name, err)
		}
		fb.fonts[name] = f
	}
	return fb, nil
}

// Register adds a TrueType/OpenType family under name
func (fb *FontBook) Register(name string, data []byte) error {
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("failed to parse font %q: %w", name, err)
	}
	fb.mu.Lock()
	fb.fonts[strings.ToLower(strings.TrimSpace(name))] = f
	fb.mu.Unlock()
	return nil
}

// Has reports whether the family is known
func (fb *FontBook) Has(name string) bool {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	_, ok := fb.fonts[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Face returns a face of the family at sizePx pixels per em. Unknown families fall back to
// DefaultFont.
func (fb *FontBook) Face(name string, sizePx float64) (font.Face, error) {
	if sizePx <= 0 {
		return nil, fmt.Errorf("invalid font size %v", sizePx)
	}
	fb.mu.Lock()
	f, ok := fb.fonts[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		f = fb.fonts[strings.ToLower(DefaultFont)]
	}
	fb.mu.Unlock()

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    sizePx,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	return face, nil
}
