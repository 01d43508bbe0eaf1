package capture

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	appLog "cdfplan/internal/log"
)

// Default print parameters.
const (
	DefaultTimeoutSec    = 30
	DefaultReadySelector = "body"
	DefaultSettle        = 500 * time.Millisecond
)

// PrintOptions defines parameters for a Chromium-based PDF print.
type PrintOptions struct {
	// URL to print, e.g. "http://127.0.0.1:8080/coupe-de-france/".
	URL string

	// ReadySelector is waited for before printing. If empty,
	// DefaultReadySelector is used.
	ReadySelector string

	// Settle is an extra delay after ReadySelector appears, to let the App
	// finish painting. If zero, DefaultSettle is used.
	Settle time.Duration

	// Timeout bounds the entire print operation. If zero, a sane default
	// (DefaultTimeoutSec) is used.
	Timeout time.Duration

	// Headers are sent with every request the page makes, e.g. an
	// Authorization header when the App sits behind basic auth.
	Headers map[string]string
}

// PrintPDF launches a headless Chromium instance via chromedp, navigates to
// opts.URL, waits for the page to render and returns it printed as PDF.
func PrintPDF(parentCtx context.Context, opts PrintOptions) ([]byte, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("capture: URL is required")
	}
	if opts.ReadySelector == "" {
		opts.ReadySelector = DefaultReadySelector
	}
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}

	// Create a new chromedp context.
	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	// Apply timeout to the entire print sequence.
	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	if len(opts.Headers) > 0 {
		headers := make(network.Headers, len(opts.Headers))
		for k, v := range opts.Headers {
			headers[k] = v
		}
		if err := chromedp.Run(ctx, network.Enable(), network.SetExtraHTTPHeaders(headers)); err != nil {
			return nil, fmt.Errorf("capture: set headers: %w", err)
		}
	}

	resp, err := chromedp.RunResponse(ctx, chromedp.Navigate(opts.URL))
	if err != nil {
		return nil, fmt.Errorf("capture: navigate: %w", err)
	}
	if resp != nil && resp.Status >= 400 {
		return nil, fmt.Errorf("capture: %s answered HTTP %d", opts.URL, resp.Status)
	}

	var pdf []byte
	tasks := chromedp.Tasks{
		chromedp.WaitReady(opts.ReadySelector, chromedp.ByQuery),
		chromedp.Sleep(opts.Settle),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	appLog.Info("page printed", "url", opts.URL, "bytes", len(pdf))
	return pdf, nil
}

// Printer prints one fixed page with fixed options.
type Printer struct {
	Options PrintOptions
}

// NewPrinter returns a Printer for url.
func NewPrinter(url, readySelector string, timeout time.Duration) *Printer {
	return &Printer{Options: PrintOptions{
		URL:           url,
		ReadySelector: readySelector,
		Timeout:       timeout,
	}}
}

// WithBasicAuth makes the printer authenticate as user.
func (p *Printer) WithBasicAuth(user, password string) *Printer {
	if p.Options.Headers == nil {
		p.Options.Headers = make(map[string]string)
	}
	p.Options.Headers["Authorization"] = BasicAuthHeader(user, password)
	return p
}

// BasicAuthHeader returns the Authorization header value for user.
func BasicAuthHeader(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}

// Print renders the configured page as PDF.
func (p *Printer) Print(ctx context.Context) ([]byte, error) {
	return PrintPDF(ctx, p.Options)
}
