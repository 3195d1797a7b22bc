package capture

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Default capture parameters for the month view.
const (
	DefaultWidth      = 1400
	DefaultHeight     = 1000
	DefaultTimeoutSec = 30
)

// Options defines parameters for a Chromium-based snapshot of /calendar.
type Options struct {
	// BaseURL of the running console, e.g. "http://127.0.0.1:8090".
	BaseURL string

	// Month to render as YYYY-MM; empty means the console's current month.
	Month string

	// OutputPath is where the PNG screenshot will be written.
	OutputPath string

	// Username/Password are sent as HTTP Basic credentials when set.
	Username string
	Password string

	// Width and Height are the viewport dimensions in pixels. If zero,
	// DefaultWidth / DefaultHeight are used.
	Width  int
	Height int

	// Timeout bounds the entire capture operation.
	Timeout time.Duration
}

func (o Options) withDefaults() (Options, error) {
	if o.BaseURL == "" {
		return o, fmt.Errorf("capture: BaseURL is required")
	}
	if o.OutputPath == "" {
		return o, fmt.Errorf("capture: OutputPath is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}
	return o, nil
}

// PageURL is the /calendar URL for the requested month.
func (o Options) PageURL() (string, error) {
	u, err := url.Parse(strings.TrimRight(o.BaseURL, "/") + "/calendar")
	if err != nil {
		return "", fmt.Errorf("capture: invalid base URL: %w", err)
	}
	if o.Month != "" {
		q := u.Query()
		q.Set("month", o.Month)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// SnapshotMonthPNG drives headless Chromium to the month view, waits for
// `[data-ready="true"]` and writes a full-page PNG to opts.OutputPath.
func SnapshotMonthPNG(parentCtx context.Context, opts Options) error {
	opts, err := opts.withDefaults()
	if err != nil {
		return err
	}
	pageURL, err := opts.PageURL()
	if err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{network.Enable()}
	if opts.Username != "" {
		cred := base64.StdEncoding.EncodeToString([]byte(opts.Username + ":" + opts.Password))
		tasks = append(tasks, network.SetExtraHTTPHeaders(network.Headers{"Authorization": "Basic " + cred}))
	}
	tasks = append(tasks,
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(pageURL),
		chromedp.WaitVisible(`[data-ready="true"]`, chromedp.ByQuery),
		// Small extra delay to allow final paints.
		chromedp.Sleep(300*time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	)

	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	return nil
}
