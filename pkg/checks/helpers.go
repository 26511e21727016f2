package checks

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"site-auditor/pkg/models"
)

// pure adapts a context-free rule function to the Rule signature. Most rules
// only look at the crawl result and never touch the network.
func pure(fn func(*models.CrawlResult) []models.Issue) func(context.Context, *models.CrawlResult) []models.Issue {
	return func(_ context.Context, result *models.CrawlResult) []models.Issue {
		return fn(result)
	}
}

// pagesWhere collects the requested URLs of HTML pages matching the
// predicate, preserving crawl order.
func pagesWhere(result *models.CrawlResult, pred func(*models.PageRecord) bool) []string {
	var out []string
	for _, p := range result.HTMLPages() {
		if pred(p) {
			out = append(out, p.RequestedURL)
		}
	}
	return out
}

// one wraps a single issue for the common one-or-nothing rule shape.
func one(issue models.Issue) []models.Issue {
	return []models.Issue{issue}
}

// siteMentions reports whether any crawled page URL, discovered link or page
// body matches one of the lowercase substrings. Used by the legal rules to
// find imprint/privacy/contact pages that may sit outside the crawl budget.
func siteMentions(result *models.CrawlResult, substrings ...string) bool {
	matches := func(s string) bool {
		lower := strings.ToLower(s)
		for _, sub := range substrings {
			if strings.Contains(lower, sub) {
				return true
			}
		}
		return false
	}
	for _, p := range result.Pages {
		if matches(p.RequestedURL) {
			return true
		}
		for _, l := range p.InternalLinks {
			if matches(l) {
				return true
			}
		}
		for _, l := range p.ExternalLinks {
			if matches(l) {
				return true
			}
		}
	}
	for _, p := range result.HTMLPages() {
		if matches(p.RawHTML) {
			return true
		}
	}
	return false
}

// seedURL parses the crawl seed; rules that need the scheme or host go
// through this.
func seedURL(result *models.CrawlResult) *url.URL {
	u, err := url.Parse(result.Seed)
	if err != nil {
		return &url.URL{}
	}
	return u
}

var inlineColorRe = regexp.MustCompile(`(?i)color\s*:\s*#([0-9a-f]{3}|[0-9a-f]{6})\b`)

// lightInlineColors returns the inline text colors on a page that are too
// light to read on a typical light background.
func lightInlineColors(html string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range inlineColorRe.FindAllStringSubmatch(html, -1) {
		hex := strings.ToLower(m[1])
		if seen[hex] {
			continue
		}
		seen[hex] = true
		if relativeLuminance(hex) > 0.7 {
			out = append(out, "#"+hex)
		}
	}
	return out
}

// relativeLuminance computes a rough 0..1 luminance from a 3- or 6-digit hex
// color. Good enough for a heuristic, not a WCAG implementation.
func relativeLuminance(hex string) float64 {
	var r, g, b int
	switch len(hex) {
	case 3:
		r = hexNibble(hex[0]) * 17
		g = hexNibble(hex[1]) * 17
		b = hexNibble(hex[2]) * 17
	case 6:
		r = hexNibble(hex[0])*16 + hexNibble(hex[1])
		g = hexNibble(hex[2])*16 + hexNibble(hex[3])
		b = hexNibble(hex[4])*16 + hexNibble(hex[5])
	default:
		return 0
	}
	return (0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(b)) / 255
}

func hexNibble(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return 0
}
