package render

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// allowedResourceTypes is the request allow-list applied through CDP fetch
// interception. Everything else (media, websockets, trackers, prefetch) is
// failed with BlockedByClient to keep renders fast and deterministic.
var allowedResourceTypes = map[network.ResourceType]bool{
	network.ResourceTypeDocument:   true,
	network.ResourceTypeStylesheet: true,
	network.ResourceTypeScript:     true,
	network.ResourceTypeImage:      true,
	network.ResourceTypeFont:       true,
	network.ResourceTypeXHR:        true,
	network.ResourceTypeFetch:      true,
}

// ChromeOptions configures the headless renderer.
type ChromeOptions struct {
	ChromePath string // empty = auto-detect
	UserAgent  string
	Headless   bool
}

// ChromeRenderer renders pages in headless Chrome via the DevTools protocol.
// It implements both Renderer and Screenshotter.
type ChromeRenderer struct {
	opts ChromeOptions
	log  *logrus.Entry
}

// NewChromeRenderer creates a ChromeRenderer. A fresh browser process is
// started per Render call so no state leaks across invocations.
func NewChromeRenderer(opts ChromeOptions, log *logrus.Entry) *ChromeRenderer {
	return &ChromeRenderer{opts: opts, log: log}
}

func (r *ChromeRenderer) allocatorOptions() []chromedp.ExecAllocatorOption {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-component-update", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1366, 900),
	)
	if r.opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(r.opts.UserAgent))
	}
	if r.opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(r.opts.ChromePath))
	}
	if !r.opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	return allocOpts
}

// Render implements Renderer.
func (r *ChromeRenderer) Render(ctx context.Context, url string) (*Result, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, r.allocatorOptions()...)
	defer cancelAlloc()
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	res := &Result{Headers: http.Header{}}
	var mu sync.Mutex // guards res fields written from the event listener
	start := time.Now()

	chromedp.ListenTarget(taskCtx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *fetch.EventRequestPaused:
			reqID := ev.RequestID
			allowed := allowedResourceTypes[ev.ResourceType]
			go func() {
				c := chromedp.FromContext(taskCtx)
				execCtx := cdp.WithExecutor(taskCtx, c.Target)
				if allowed {
					_ = fetch.ContinueRequest(reqID).Do(execCtx)
				} else {
					_ = fetch.FailRequest(reqID, network.ErrorReasonBlockedByClient).Do(execCtx)
				}
			}()
		case *network.EventRequestWillBeSent:
			if ev.RedirectResponse != nil && ev.Type == network.ResourceTypeDocument {
				mu.Lock()
				res.RedirectChain = append(res.RedirectChain, ev.RedirectResponse.URL)
				mu.Unlock()
			}
		case *network.EventResponseReceived:
			if ev.Type != network.ResourceTypeDocument {
				return
			}
			mu.Lock()
			if res.StatusCode == 0 {
				res.StatusCode = int(ev.Response.Status)
				res.FinalURL = ev.Response.URL
				res.TTFB = time.Since(start)
				for name, value := range ev.Response.Headers {
					if s, ok := value.(string); ok {
						res.Headers.Set(name, s)
					}
				}
				res.ContentType = res.Headers.Get("Content-Type")
			}
			mu.Unlock()
		case *network.EventLoadingFinished:
			mu.Lock()
			res.ByteSize += int64(ev.EncodedDataLength)
			mu.Unlock()
		case *network.EventLoadingFailed:
			if ev.Canceled || ev.ErrorText == "net::ERR_BLOCKED_BY_CLIENT" {
				return // our own interception
			}
			mu.Lock()
			res.RequestErrors = append(res.RequestErrors, fmt.Sprintf("%s: %s", ev.Type, ev.ErrorText))
			mu.Unlock()
		case *cdpruntime.EventConsoleAPICalled:
			if ev.Type != cdpruntime.APITypeError {
				return
			}
			var parts []string
			for _, arg := range ev.Args {
				if len(arg.Value) > 0 {
					parts = append(parts, string(arg.Value))
				}
			}
			mu.Lock()
			res.ConsoleErrors = append(res.ConsoleErrors, strings.Join(parts, " "))
			mu.Unlock()
		case *cdpruntime.EventExceptionThrown:
			mu.Lock()
			res.ConsoleErrors = append(res.ConsoleErrors, ev.ExceptionDetails.Error())
			mu.Unlock()
		}
	})

	var html string
	err := chromedp.Run(taskCtx,
		network.Enable(),
		fetch.Enable(),
		chromedp.Navigate(url),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("rendering %q: %w", url, err)
	}

	mu.Lock()
	defer mu.Unlock()
	res.LoadTime = time.Since(start)
	if isHTMLContentType(res.ContentType) {
		res.HTML = html
	}
	if res.FinalURL == "" {
		res.FinalURL = url
	}
	if res.ByteSize == 0 {
		res.ByteSize = int64(len(html))
	}
	return res, nil
}

// Screenshot implements Screenshotter by capturing the page at the given
// viewport size (typically a mobile viewport).
func (r *ChromeRenderer) Screenshot(ctx context.Context, url string, width, height int) ([]byte, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, r.allocatorOptions()...)
	defer cancelAlloc()
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	var buf []byte
	err := chromedp.Run(taskCtx,
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(url),
		chromedp.CaptureScreenshot(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("screenshot of %q: %w", url, err)
	}
	r.log.WithFields(logrus.Fields{"url": url, "bytes": len(buf)}).Debug("Captured screenshot")
	return buf, nil
}
