// Package render provides the page-rendering capability consumed by the
// fetcher: a plain HTTP implementation and a headless-Chrome implementation
// with resource interception and console/request error collection.
package render

import (
	"context"
	"net/http"
	"time"
)

// Result is the outcome of rendering a single URL. Navigation errors,
// timings and headers are pre-aggregated; there is no streaming callback
// surface. A Result is returned for any response the server produced,
// including 4xx/5xx; the error return of Render is reserved for
// transport-level failures where no response exists at all.
type Result struct {
	StatusCode    int
	FinalURL      string
	HTML          string
	Headers       http.Header
	ContentType   string
	ByteSize      int64
	TTFB          time.Duration
	LoadTime      time.Duration
	RedirectChain []string

	// ConsoleErrors and RequestErrors are only populated by renderers that
	// execute the page (headless browser); the plain HTTP renderer leaves
	// them empty.
	ConsoleErrors []string
	RequestErrors []string
}

// Renderer fetches and renders one URL. Implementations must honor ctx
// cancellation and apply no caching across invocations.
type Renderer interface {
	Render(ctx context.Context, url string) (*Result, error)
}

// Screenshotter captures a viewport image of a URL. Failure is always
// non-fatal to an audit; callers treat the capability as optional.
type Screenshotter interface {
	Screenshot(ctx context.Context, url string, width, height int) ([]byte, error)
}
