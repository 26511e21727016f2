package render

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"strings"
	"time"

	"site-auditor/pkg/utils"
)

// DefaultMaxBodyBytes caps how much of a response body is read into memory.
const DefaultMaxBodyBytes = 5 << 20 // 5 MiB

// HTTPRenderer renders pages with a plain HTTP client. It does not execute
// scripts, so ConsoleErrors/RequestErrors stay empty; everything else in the
// Result is populated. It is the default renderer and the one used in tests.
type HTTPRenderer struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
}

// NewHTTPRenderer creates an HTTPRenderer with the given per-request timeout
// and user agent.
func NewHTTPRenderer(timeout time.Duration, userAgent string) *HTTPRenderer {
	return &HTTPRenderer{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		userAgent:    userAgent,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
}

// NewHTTPRendererWithClient wraps an existing client, used by tests.
func NewHTTPRendererWithClient(client *http.Client, userAgent string) *HTTPRenderer {
	return &HTTPRenderer{client: client, userAgent: userAgent, maxBodyBytes: DefaultMaxBodyBytes}
}

// Render implements Renderer.
func (r *HTTPRenderer) Render(ctx context.Context, url string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w for %q: %w", utils.ErrRequestCreation, url, err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")

	var ttfb time.Duration
	start := time.Now()
	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() { ttfb = time.Since(start) },
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, r.maxBodyBytes)
	body, readErr := io.ReadAll(limited)
	loadTime := time.Since(start)

	res := &Result{
		StatusCode:    resp.StatusCode,
		FinalURL:      resp.Request.URL.String(),
		Headers:       resp.Header,
		ContentType:   resp.Header.Get("Content-Type"),
		ByteSize:      int64(len(body)),
		TTFB:          ttfb,
		LoadTime:      loadTime,
		RedirectChain: redirectChain(resp),
	}
	if isHTMLContentType(res.ContentType) {
		res.HTML = string(body)
	}
	if readErr != nil {
		// A truncated body is still worth a record; note the failure.
		res.RequestErrors = append(res.RequestErrors,
			fmt.Sprintf("%v of %s: %v", utils.ErrResponseBodyRead, url, readErr))
	}
	return res, nil
}

// redirectChain reconstructs the URLs visited before the final response.
// The HTTP client links each redirect hop via Request.Response.
func redirectChain(resp *http.Response) []string {
	var chain []string
	for req := resp.Request; req != nil && req.Response != nil; req = req.Response.Request {
		chain = append([]string{req.Response.Request.URL.String()}, chain...)
	}
	return chain
}

func isHTMLContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return ct == "" || strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}
