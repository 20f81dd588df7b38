package service

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"image"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"armario-estampados/asset"
	"armario-estampados/compositor"
	"armario-estampados/models"
	"armario-estampados/transform"
	"armario-estampados/utils"
)

//go:embed templates/surface.html
var templatesFS embed.FS

// waitForAssets resolves once fonts and every <img> finished loading. Images marked
// data-required (the design) reject on error or after 5s; the mockup may fail and the
// colour fill shows through instead.
const waitForAssets = `
	(function() {
		const load = (img) => new Promise((resolve, reject) => {
			const fail = (reason) => {
				if (img.hasAttribute('data-required')) {
					reject(new Error(reason + ': ' + img.src));
					return;
				}
				resolve();
			};
			if (img.complete) {
				if (img.naturalWidth > 0 && img.naturalHeight > 0) {
					resolve();
				} else {
					fail('asset failed to load');
				}
				return;
			}
			const timeout = setTimeout(() => fail('asset load timed out'), 5000);
			img.onload = () => { clearTimeout(timeout); resolve(); };
			img.onerror = () => { clearTimeout(timeout); fail('asset failed to load'); };
		});
		return Promise.all([
			document.fonts.ready,
			Promise.all(Array.from(document.querySelectorAll('img')).map(load))
		]);
	})();
`

// ChromeRenderer renders side state as an HTML page in headless Chrome and screenshots it
// with a transparent page background
type ChromeRenderer struct {
	chromePath string
	timeout    time.Duration
	tmpl       *template.Template
}

var _ Renderer = (*ChromeRenderer)(nil)

// NewChromeRenderer parses the surface template. chromePath may be empty to auto-detect.
func NewChromeRenderer(chromePath string, timeout time.Duration) (*ChromeRenderer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/surface.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ChromeRenderer{chromePath: chromePath, timeout: timeout, tmpl: tmpl}, nil
}

// detectChromePath checks the configured path first, then common installation paths
func detectChromePath(configured string) string {
	if configured != "" {
		if _, err := os.Stat(configured); err == nil {
			return configured
		}
	}
	paths := []string{
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/snap/bin/chromium",
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

type surfacePage struct {
	Size       int
	Background template.CSS
	MockupURL  template.URL
	Design     *surfaceNode
	Texts      []surfaceNode
}

type surfaceNode struct {
	URL     template.URL
	Recolor bool
	Style   template.CSS
	Content string
}

// cssTransform mirrors transform.Matrix: centre the box, offset, rotate, scale
func cssTransform(t transform.Transform, size int, withScale bool) string {
	s := fmt.Sprintf("translate(-50%%, -50%%) translate(%.3fpx, %.3fpx) rotate(%.3fdeg)",
		t.Position.X*float64(size), t.Position.Y*float64(size), t.Rotation)
	if withScale {
		s += fmt.Sprintf(" scale(%.4f)", transform.ClampScale(t.Scale))
	}
	return s
}

func cssColor(s string) (string, error) {
	c, err := utils.ParseColor(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("rgba(%d, %d, %d, %.3f)", c.R, c.G, c.B, float64(c.A)/255), nil
}

// cssURL quotes a URL for use inside url('...')
func cssURL(u string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", "", "\r", "")
	return "url('" + r.Replace(u) + "')"
}

// fontFamily keeps letters, digits, spaces and hyphens so the name can stay unquoted
func fontFamily(name string) string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' {
			return r
		}
		return -1
	}, name)
	if clean = strings.TrimSpace(clean); clean == "" {
		return compositor.DefaultFont
	}
	return clean
}

// buildPage renders the HTML document for one side
func (c *ChromeRenderer) buildPage(st *models.SideState, size int, withGarment bool) (string, error) {
	data := surfacePage{Size: size}
	if withGarment {
		fill := "#ffffff"
		for _, s := range []string{st.MockupColor, st.BackgroundColor} {
			if s != "" {
				fill = s
				break
			}
		}
		bg, err := cssColor(fill)
		if err != nil {
			return "", fmt.Errorf("failed to parse garment colour: %w", err)
		}
		data.Background = template.CSS("background-color: " + bg + ";")
		data.MockupURL = template.URL(st.MockupURL)
	}

	if d := st.Design; d != nil {
		node := &surfaceNode{URL: template.URL(d.RenderURL())}
		style := fmt.Sprintf("width: %.3fpx; height: %.3fpx; transform: %s;",
			d.Width*float64(size), d.Height*float64(size), cssTransform(d.Transform, size, true))
		if d.IsVector && d.Color != "" {
			col, err := cssColor(d.Color)
			if err != nil {
				return "", fmt.Errorf("failed to recolour design: %w", err)
			}
			node.Recolor = true
			style += fmt.Sprintf(" background-color: %s; -webkit-mask-image: %s;", col, cssURL(d.RenderURL()))
		} else {
			style += " object-fit: contain;"
		}
		node.Style = template.CSS(style)
		data.Design = node
	}

	for _, t := range st.Texts {
		if t.Content == "" {
			continue
		}
		col := "rgba(0, 0, 0, 1.000)"
		if t.Color != "" {
			var err error
			if col, err = cssColor(t.Color); err != nil {
				return "", fmt.Errorf("failed to parse text colour: %w", err)
			}
		}
		family := fontFamily(t.Font)
		fontSize := t.Size * float64(size) * transform.ClampScale(t.Transform.Scale)
		data.Texts = append(data.Texts, surfaceNode{
			Content: t.Content,
			Style: template.CSS(fmt.Sprintf(`font-family: %s, sans-serif; font-size: %.3fpx; color: %s; transform: %s;`,
				family, fontSize, col, cssTransform(t.Transform, size, false))),
		})
	}

	var buf bytes.Buffer
	if err := c.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// RenderSide screenshots the rendered page at size×size pixels
func (c *ChromeRenderer) RenderSide(ctx context.Context, st *models.SideState, size int, withGarment bool) (image.Image, error) {
	html, err := c.buildPage(st, size, withGarment)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox, // Required for running in Docker/containers
	)
	if chromePath := detectChromePath(c.chromePath); chromePath != "" {
		opts = append(opts, chromedp.ExecPath(chromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	chromedpCtx, chromedpCancel := chromedp.NewContext(allocCtx)
	defer chromedpCancel()

	awaitPromise := func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}

	var buf []byte
	err = chromedp.Run(chromedpCtx,
		chromedp.EmulateViewport(int64(size), int64(size)),
		emulation.SetDefaultBackgroundColorOverride().WithColor(&cdp.RGBA{R: 0, G: 0, B: 0, A: 0}),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("#surface", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if err := chromedp.Evaluate(waitForAssets, nil, awaitPromise).Do(ctx); err != nil {
				return fmt.Errorf("%w: %v", ErrAssetNotLoaded, err)
			}
			return nil
		}),
		chromedp.Screenshot("#surface", &buf, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render side in chrome: %w", err)
	}

	img, err := asset.Decode(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to decode chrome screenshot: %w", err)
	}
	log.Debug().Int("size", size).Bool("garment", withGarment).Msg("📸 Chrome render completed")
	return img, nil
}
