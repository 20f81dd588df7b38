package compositor

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/f64"
	"golang.org/x/sync/errgroup"

	"armario-estampados/asset"
	"armario-estampados/models"
	"armario-estampados/transform"
	"armario-estampados/utils"
)

// ImageLoader resolves image URLs to decoded sources
type ImageLoader interface {
	Load(ctx context.Context, url string) (asset.Source, error)
}

// Stats describes what a render pass drew
type Stats struct {
	Nodes   int
	Tainted []string
}

// Renderer draws a SideState onto a canvas of any size. All geometry comes from normalized
// transforms, so the same state yields the same picture at every resolution.
type Renderer struct {
	loader ImageLoader
	fonts  *FontBook
}

// NewRenderer creates a Renderer
func NewRenderer(loader ImageLoader, fonts *FontBook) *Renderer {
	return &Renderer{loader: loader, fonts: fonts}
}

// Render loads the side's images and draws it on a new w×h canvas. Taint is not enforced
// here; server-side callers own the bytes they fetch.
func (r *Renderer) Render(ctx context.Context, st *models.SideState, w, h int, withGarment bool) (*image.NRGBA, error) {
	sources, err := r.load(ctx, st)
	if err != nil {
		return nil, err
	}
	canvas := image.NewNRGBA(image.Rect(0, 0, w, h))
	if _, err := r.draw(canvas, st, sources, withGarment); err != nil {
		return nil, err
	}
	return canvas, nil
}

// load fetches the design and mockup concurrently. A missing mockup degrades to the colour
// fill; a missing design is an error.
func (r *Renderer) load(ctx context.Context, st *models.SideState) (map[string]asset.Source, error) {
	sources := make(map[string]asset.Source)
	if st == nil {
		return sources, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	if st.Design != nil {
		u := st.Design.RenderURL()
		g.Go(func() error {
			src, err := r.loader.Load(gctx, u)
			if err != nil {
				return fmt.Errorf("failed to load design image: %w", err)
			}
			mu.Lock()
			sources[u] = src
			mu.Unlock()
			return nil
		})
	}
	if st.MockupURL != "" {
		u := st.MockupURL
		g.Go(func() error {
			src, err := r.loader.Load(gctx, u)
			if err != nil {
				log.Warn().Err(err).Str("url", u).Msg("⚠️  Mockup unavailable, falling back to colour fill")
				return nil
			}
			mu.Lock()
			sources[u] = src
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sources, nil
}

func (r *Renderer) draw(dst *image.NRGBA, st *models.SideState, sources map[string]asset.Source, withGarment bool) (Stats, error) {
	var stats Stats
	if st == nil {
		return stats, nil
	}
	w, h := float64(dst.Bounds().Dx()), float64(dst.Bounds().Dy())

	if withGarment {
		drawGarment(dst, st, sources, &stats)
	}

	if d := st.Design; d != nil {
		src, ok := sources[d.RenderURL()]
		if ok && src.Image != nil {
			img := src.Image
			if d.IsVector && d.Color != "" {
				c, err := utils.ParseColor(d.Color)
				if err != nil {
					return stats, fmt.Errorf("failed to recolour design: %w", err)
				}
				img = Recolor(img, c)
			}
			drawElement(dst, img, d.Width*w, d.Height*h, transform.Matrix(d.Transform, w, h))
			stats.Nodes++
			if src.Tainted {
				stats.Tainted = append(stats.Tainted, src.URL)
			}
		}
	}

	for _, t := range st.Texts {
		drawn, err := r.drawText(dst, t, w, h)
		if err != nil {
			return stats, err
		}
		if drawn {
			stats.Nodes++
		}
	}
	return stats, nil
}

func drawGarment(dst *image.NRGBA, st *models.SideState, sources map[string]asset.Source, stats *Stats) {
	fill := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	for _, s := range []string{st.MockupColor, st.BackgroundColor} {
		if s == "" {
			continue
		}
		if c, err := utils.ParseColor(s); err == nil {
			fill = c
			break
		}
	}
	draw.Draw(dst, dst.Bounds(), image.NewUniform(fill), image.Point{}, draw.Src)

	src, ok := sources[st.MockupURL]
	if !ok || src.Image == nil {
		return
	}
	b := dst.Bounds()
	fitted := imaging.Fit(src.Image, b.Dx(), b.Dy(), imaging.Lanczos)
	offset := image.Pt((b.Dx()-fitted.Bounds().Dx())/2, (b.Dy()-fitted.Bounds().Dy())/2)
	draw.Draw(dst, fitted.Bounds().Add(offset), fitted, image.Point{}, draw.Over)
	if src.Tainted {
		stats.Tainted = append(stats.Tainted, src.URL)
	}
}

// drawElement fits img inside a boxW×boxH box centred on the element origin and maps it
// through m onto dst.
func drawElement(dst *image.NRGBA, img image.Image, boxW, boxH float64, m f64.Aff3) {
	sb := img.Bounds()
	sw, sh := float64(sb.Dx()), float64(sb.Dy())
	if sw == 0 || sh == 0 || boxW <= 0 || boxH <= 0 {
		return
	}
	k := math.Min(boxW/sw, boxH/sh)
	local := f64.Aff3{
		k, 0, -k * (float64(sb.Min.X) + sw/2),
		0, k, -k * (float64(sb.Min.Y) + sh/2),
	}
	xdraw.CatmullRom.Transform(dst, compose(m, local), img, sb, xdraw.Over, nil)
}

// drawText rasterizes the text at its final pixel size so glyphs stay sharp at any scale
func (r *Renderer) drawText(dst *image.NRGBA, t models.TextElement, w, h float64) (bool, error) {
	if t.Content == "" || t.Size <= 0 {
		return false, nil
	}
	c := color.NRGBA{A: 255}
	if t.Color != "" {
		var err error
		if c, err = utils.ParseColor(t.Color); err != nil {
			return false, fmt.Errorf("failed to parse text colour: %w", err)
		}
	}
	scale := transform.ClampScale(t.Transform.Scale)
	face, err := r.fonts.Face(t.Font, t.Size*h*scale)
	if err != nil {
		return false, err
	}
	defer face.Close()

	metrics := face.Metrics()
	tw := font.MeasureString(face, t.Content).Ceil()
	th := (metrics.Ascent + metrics.Descent).Ceil()
	if tw <= 0 || th <= 0 {
		return false, nil
	}

	glyphs := image.NewNRGBA(image.Rect(0, 0, tw, th))
	d := &font.Drawer{
		Dst:  glyphs,
		Src:  image.NewUniform(c),
		Face: face,
	}
	d.Dot.Y = metrics.Ascent
	d.DrawString(t.Content)

	placed := t.Transform
	placed.Scale = 1
	m := compose(transform.Matrix(placed, w, h), f64.Aff3{1, 0, -float64(tw) / 2, 0, 1, -float64(th) / 2})
	xdraw.CatmullRom.Transform(dst, m, glyphs, glyphs.Bounds(), xdraw.Over, nil)
	return true, nil
}

// compose returns a·b (b applied first)
func compose(a, b f64.Aff3) f64.Aff3 {
	return f64.Aff3{
		a[0]*b[0] + a[1]*b[3], a[0]*b[1] + a[1]*b[4], a[0]*b[2] + a[1]*b[5] + a[2],
		a[3]*b[0] + a[4]*b[3], a[3]*b[1] + a[4]*b[4], a[3]*b[2] + a[4]*b[5] + a[5],
	}
}

// Recolor paints every visible pixel of img with c, keeping coverage
func Recolor(img image.Image, c color.NRGBA) *image.NRGBA {
	out := imaging.Clone(img)
	for i := 0; i < len(out.Pix); i += 4 {
		a := out.Pix[i+3]
		if a == 0 {
			continue
		}
		out.Pix[i] = c.R
		out.Pix[i+1] = c.G
		out.Pix[i+2] = c.B
		out.Pix[i+3] = uint8(uint16(a) * uint16(c.A) / 255)
	}
	return out
}
