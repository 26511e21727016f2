package verify

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"site-auditor/pkg/config"
	"site-auditor/pkg/models"
	"site-auditor/pkg/parse"
)

// maxProbeBodyBytes bounds how much of a response body is read when looking
// for not-found page markers.
const maxProbeBodyBytes = 64 * 1024

// Verifier probes a sample of internal links that were discovered during the
// crawl but never fetched themselves, usually because the page or depth
// budget ran out first. Classification is deliberately conservative: a link
// is only reported broken on high-confidence signals, everything ambiguous
// lands in the unknown bucket.
type Verifier struct {
	cfg    *config.Config
	client *http.Client
	log    *logrus.Entry
}

func NewVerifier(cfg *config.Config, log *logrus.Entry) *Verifier {
	return &Verifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RequestTimeout},
		log:    log,
	}
}

// NewVerifierWithClient is used by tests to inject a client.
func NewVerifierWithClient(cfg *config.Config, client *http.Client, log *logrus.Entry) *Verifier {
	return &Verifier{cfg: cfg, client: client, log: log}
}

// Verify selects up to LinkSampleSize uncrawled internal links from the
// crawl result and probes them in batches of LinkBatchSize with a pause
// between batches. The returned checks are sorted by URL.
func (v *Verifier) Verify(ctx context.Context, result *models.CrawlResult) []models.LinkCheck {
	candidates := v.candidates(result)
	if len(candidates) == 0 {
		return nil
	}

	checks := make([]models.LinkCheck, len(candidates))
	sem := semaphore.NewWeighted(int64(v.cfg.LinkBatchSize))
	var wg sync.WaitGroup

	for i := range candidates {
		if i > 0 && i%v.cfg.LinkBatchSize == 0 {
			select {
			case <-time.After(v.cfg.LinkBatchPause):
			case <-ctx.Done():
			}
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context gone: everything not yet probed stays unknown.
			for j := i; j < len(candidates); j++ {
				checks[j] = models.LinkCheck{URL: candidates[j].url, State: models.LinkUnknown, Sources: candidates[j].sources}
			}
			break
		}
		wg.Add(1)
		go func(idx int, c candidate) {
			defer sem.Release(1)
			defer wg.Done()
			checks[idx] = v.probe(ctx, c)
		}(i, candidates[i])
	}
	wg.Wait()

	v.log.WithFields(logrus.Fields{
		"sampled": len(checks),
		"broken":  countState(checks, models.LinkBroken),
		"blocked": countState(checks, models.LinkBlocked),
		"unknown": countState(checks, models.LinkUnknown),
	}).Info("Link verification finished")
	return checks
}

type candidate struct {
	url     string
	sources []string
}

// candidates returns the sample of internal links that were discovered but
// not crawled, sorted by URL for deterministic selection.
func (v *Verifier) candidates(result *models.CrawlResult) []candidate {
	crawled := make(map[string]bool, len(result.Pages))
	for _, p := range result.Pages {
		if u, err := url.Parse(p.RequestedURL); err == nil {
			crawled[parse.NormalizeForComparison(u)] = true
		}
	}

	bySources := make(map[string]map[string]bool)
	for _, p := range result.HTMLPages() {
		for _, link := range p.InternalLinks {
			u, err := url.Parse(link)
			if err != nil || crawled[parse.NormalizeForComparison(u)] {
				continue
			}
			if parse.HasIgnoredExtension(u) {
				continue
			}
			if bySources[link] == nil {
				bySources[link] = make(map[string]bool)
			}
			bySources[link][p.RequestedURL] = true
		}
	}

	urls := make([]string, 0, len(bySources))
	for u := range bySources {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	if len(urls) > v.cfg.LinkSampleSize {
		urls = urls[:v.cfg.LinkSampleSize]
	}

	out := make([]candidate, 0, len(urls))
	for _, u := range urls {
		sources := make([]string, 0, len(bySources[u]))
		for s := range bySources[u] {
			sources = append(sources, s)
		}
		sort.Strings(sources)
		out = append(out, candidate{url: u, sources: sources})
	}
	return out
}

// probe checks a single link with HEAD, falling back to GET when the server
// rejects or mishandles HEAD.
func (v *Verifier) probe(ctx context.Context, c candidate) models.LinkCheck {
	check := models.LinkCheck{URL: c.url, Sources: c.sources}

	resp, body, err := v.request(ctx, http.MethodHead, c.url)
	if err == nil && headNeedsGet(resp.StatusCode) {
		resp, body, err = v.request(ctx, http.MethodGet, c.url)
	}
	if err != nil {
		// Timeouts, TLS trouble, connection resets: all ambiguous.
		v.log.WithField("url", c.url).Debugf("Link probe failed: %v", err)
		check.State = models.LinkUnknown
		return check
	}

	check.StatusCode = resp.StatusCode
	check.FinalURL = resp.Request.URL.String()
	check.State = classify(c.url, resp, body)
	return check
}

func (v *Verifier) request(ctx context.Context, method, rawURL string) (*http.Response, string, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", v.cfg.UserAgent)
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxProbeBodyBytes))
	return resp, string(data), nil
}

// headNeedsGet reports whether a HEAD response warrants a GET retry. Besides
// the explicit method rejections, 404s are re-checked because some servers
// answer HEAD incorrectly for pages that exist.
func headNeedsGet(status int) bool {
	switch status {
	case http.StatusMethodNotAllowed, http.StatusNotImplemented, http.StatusNotFound:
		return true
	}
	return false
}

func classify(requested string, resp *http.Response, body string) models.LinkState {
	status := resp.StatusCode
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return models.LinkBlocked
	case status == http.StatusNotFound || status == http.StatusGone:
		return models.LinkBroken
	case status >= 500:
		return models.LinkUnknown
	case status >= 400:
		// Other client errors are ambiguous (rate limits, odd servers).
		return models.LinkUnknown
	case status >= 300:
		// The client follows redirects, so a remaining 3xx means a loop
		// or an exhausted redirect chain.
		return models.LinkUnknown
	}

	// 2xx. Did we land somewhere else?
	if sameDestination(requested, resp.Request.URL) {
		return models.LinkOK
	}
	// A redirect onto a 404-styled destination is a soft not-found even
	// though the status says otherwise.
	if errorStyledURL(resp.Request.URL) && containsNotFoundMarker(body) {
		return models.LinkBroken
	}
	return models.LinkRedirected
}

func sameDestination(requested string, final *url.URL) bool {
	req, err := url.Parse(requested)
	if err != nil {
		return false
	}
	return parse.NormalizeForComparison(req) == parse.NormalizeForComparison(final)
}

// errorStyledURL reports whether a URL path looks like an error page.
func errorStyledURL(u *url.URL) bool {
	path := strings.ToLower(u.Path)
	for _, marker := range []string{"404", "not-found", "notfound", "error"} {
		if strings.Contains(path, marker) {
			return true
		}
	}
	return false
}

var notFoundMarkers = []string{
	"page not found",
	"not found",
	"404",
	"does not exist",
	"nicht gefunden",
	"existiert nicht",
}

func containsNotFoundMarker(body string) bool {
	if body == "" {
		// HEAD responses have no body; without counter-evidence the URL
		// styling alone decides.
		return true
	}
	lower := strings.ToLower(body)
	for _, marker := range notFoundMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// BrokenLinkIssue aggregates the confirmed-broken subset of checks into a
// single issue. Blocked and unknown links never contribute. Returns nil when
// nothing is confirmed broken.
func BrokenLinkIssue(checks []models.LinkCheck) *models.Issue {
	var broken []models.LinkCheck
	pageSet := make(map[string]bool)
	for _, c := range checks {
		if c.State != models.LinkBroken {
			continue
		}
		broken = append(broken, c)
		for _, s := range c.Sources {
			pageSet[s] = true
		}
	}
	if len(broken) == 0 {
		return nil
	}

	pages := make([]string, 0, len(pageSet))
	for p := range pageSet {
		pages = append(pages, p)
	}
	sort.Strings(pages)

	evidence := make([]string, 0, len(broken))
	for _, c := range broken {
		evidence = append(evidence, c.URL)
	}

	severity := models.SeverityMedium
	if len(broken) >= 3 {
		severity = models.SeverityHigh
	}

	return &models.Issue{
		ID:             "technical-broken-links",
		Category:       models.CategoryTechnical,
		Severity:       severity,
		Title:          "Broken internal links",
		Description:    "Some internal links point to pages that no longer exist. Visitors following them hit dead ends, and search engines waste crawl budget on them.",
		Pages:          pages,
		Evidence:       evidence,
		Recommendation: "Update or remove the broken links, or restore the missing target pages.",
		FixEffort:      2,
	}
}

func countState(checks []models.LinkCheck, state models.LinkState) int {
	n := 0
	for _, c := range checks {
		if c.State == state {
			n++
		}
	}
	return n
}
