// Package preview renders project thumbnails with headless Chrome. When no
// chromium binary is installed the service degrades to a no-op and projects
// simply keep their previous thumbnail.
package preview

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ErrDependencyMissing is returned when no chromium binary is available.
var ErrDependencyMissing = errors.New("thumbnail rendering unavailable")

const renderTimeout = 30 * time.Second

type Renderer struct {
	width  int64
	height int64
}

func NewRenderer() *Renderer {
	return &Renderer{width: 1280, height: 800}
}

// Available reports whether a chromium binary can be found.
func (r *Renderer) Available() bool {
	if _, err := exec.LookPath("chromium-browser"); err == nil {
		return true
	}
	_, err := exec.LookPath("chromium")
	return err == nil
}

// Render produces a PNG screenshot of the document's above-the-fold view.
func (r *Renderer) Render(ctx context.Context, html string) ([]byte, error) {
	if !r.Available() {
		return nil, fmt.Errorf("%w: chromium not installed", ErrDependencyMissing)
	}

	ctx, cancel := context.WithTimeout(ctx, renderTimeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.WindowSize(int(r.width), int(r.height)),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	dataURL := "data:text/html;charset=utf-8," + percentEncodeForDataURL(html)

	var png []byte
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			png, err = page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatPng).
				WithClip(&page.Viewport{
					X:      0,
					Y:      0,
					Width:  float64(r.width),
					Height: float64(r.height),
					Scale:  1,
				}).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome screenshot failed: %w", err)
	}
	return png, nil
}

// percentEncodeForDataURL encodes HTML for a data URL. url.QueryEscape is
// unsuitable because it encodes spaces as +.
func percentEncodeForDataURL(s string) string {
	var result strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '-', r == '_', r == '.', r == '~':
			result.WriteRune(r)
		case r == ' ':
			result.WriteString("%20")
		default:
			for _, b := range []byte(string(r)) {
				result.WriteString(fmt.Sprintf("%%%02X", b))
			}
		}
	}
	return result.String()
}
