package checks

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"site-auditor/pkg/models"
)

const (
	slowTTFB      = 1500 * time.Millisecond
	slowLoad      = 4 * time.Second
	largePage     = 2 << 20 // 2 MiB
	longRedirects = 2
)

var legacyMarkupRe = regexp.MustCompile(`(?i)<(font|center|marquee|blink|frameset)\b`)

var insecureSubresourceRe = regexp.MustCompile(`(?i)(src|href)\s*=\s*["']http://`)

func (e *Engine) technicalRules() []Rule {
	return []Rule{
		{ID: "technical_ssl", Run: pure(checkSSL)},
		{ID: "technical_transport_errors", Run: pure(checkTransportErrors)},
		{ID: "technical_http_errors", Run: pure(checkHTTPErrors)},
		{ID: "technical_mixed_content", Run: pure(checkMixedContent)},
		{ID: "technical_slow_pages", Run: pure(checkSlowPages)},
		{ID: "technical_large_pages", Run: pure(checkLargePages)},
		{ID: "technical_redirect_chains", Run: pure(checkRedirectChains)},
		{ID: "technical_missing_favicon", Run: pure(checkMissingFavicon)},
		{ID: "technical_browser_errors", Run: pure(checkBrowserErrors)},
		{ID: "technical_legacy_markup", Run: pure(checkLegacyMarkup)},
	}
}

// checkSSL flags sites that are not served over HTTPS at all. A site that
// redirects its HTTP seed to HTTPS is fine.
func checkSSL(result *models.CrawlResult) []models.Issue {
	home := result.HomePage()
	finalScheme := seedURL(result).Scheme
	if home != nil && home.Redirected() && strings.HasPrefix(home.FinalURL, "https://") {
		finalScheme = "https"
	}
	if finalScheme == "https" {
		return nil
	}
	return one(models.Issue{
		ID:             "technical_ssl",
		Category:       models.CategoryTechnical,
		Severity:       models.SeverityHigh,
		Title:          "No HTTPS encryption",
		Description:    "The site is served over plain HTTP. Browsers mark it as not secure, and form submissions travel unencrypted.",
		Pages:          []string{result.Seed},
		Recommendation: "Install a TLS certificate and redirect all HTTP traffic to HTTPS.",
		FixEffort:      2,
	})
}

func checkTransportErrors(result *models.CrawlResult) []models.Issue {
	var pages, evidence []string
	for _, p := range result.Pages {
		if !p.Failed() {
			continue
		}
		pages = append(pages, p.RequestedURL)
		evidence = append(evidence, p.Errors...)
	}
	if len(pages) == 0 {
		return nil
	}
	return one(models.Issue{
		ID:             "technical_transport_errors",
		Category:       models.CategoryTechnical,
		Severity:       models.SeverityHigh,
		Title:          "Pages failing to load",
		Description:    fmt.Sprintf("%d page(s) could not be loaded at all due to connection, DNS or certificate problems.", len(pages)),
		Pages:          pages,
		Evidence:       evidence,
		Recommendation: "Check server availability and certificate validity for the affected URLs.",
		FixEffort:      3,
	})
}

func checkHTTPErrors(result *models.CrawlResult) []models.Issue {
	var pages, evidence []string
	for _, p := range result.Pages {
		if p.StatusCode < 400 {
			continue
		}
		pages = append(pages, p.RequestedURL)
		evidence = append(evidence, fmt.Sprintf("%s returned HTTP %d", p.RequestedURL, p.StatusCode))
	}
	if len(pages) == 0 {
		return nil
	}
	severity := models.SeverityMedium
	if home := result.HomePage(); home != nil && home.StatusCode >= 400 {
		severity = models.SeverityHigh
	}
	return one(models.Issue{
		ID:             "technical_http_errors",
		Category:       models.CategoryTechnical,
		Severity:       severity,
		Title:          "Pages returning HTTP errors",
		Description:    fmt.Sprintf("%d linked page(s) respond with an HTTP error status.", len(pages)),
		Pages:          pages,
		Evidence:       evidence,
		Recommendation: "Fix or remove the pages that return error statuses.",
		FixEffort:      2,
	})
}

// checkMixedContent flags HTTPS pages that embed subresources over plain
// HTTP, which browsers block or warn about.
func checkMixedContent(result *models.CrawlResult) []models.Issue {
	pages := pagesWhere(result, func(p *models.PageRecord) bool {
		return strings.HasPrefix(p.FinalURL, "https://") && insecureSubresourceRe.MatchString(p.RawHTML)
	})
	if len(pages) == 0 {
		return nil
	}
	return one(models.Issue{
		ID:             "technical_mixed_content",
		Category:       models.CategoryTechnical,
		Severity:       models.SeverityMedium,
		Title:          "Mixed content on HTTPS pages",
		Description:    "Some HTTPS pages load scripts, styles or images over insecure HTTP, which browsers may block.",
		Pages:          pages,
		Recommendation: "Serve all embedded resources over HTTPS.",
		FixEffort:      2,
	})
}

func checkSlowPages(result *models.CrawlResult) []models.Issue {
	var pages, evidence []string
	for _, p := range result.HTMLPages() {
		if p.TTFB < slowTTFB && p.LoadTime < slowLoad {
			continue
		}
		pages = append(pages, p.RequestedURL)
		evidence = append(evidence, fmt.Sprintf("%s: first byte after %s, loaded in %s",
			p.RequestedURL, p.TTFB.Round(time.Millisecond), p.LoadTime.Round(time.Millisecond)))
	}
	if len(pages) == 0 {
		return nil
	}
	return one(models.Issue{
		ID:             "technical_slow_pages",
		Category:       models.CategoryTechnical,
		Severity:       models.SeverityMedium,
		Title:          "Slow page loads",
		Description:    fmt.Sprintf("%d page(s) take noticeably long to respond or finish loading.", len(pages)),
		Pages:          pages,
		Evidence:       evidence,
		Recommendation: "Enable caching and compression, and review server response times for the slow pages.",
		FixEffort:      3,
	})
}

func checkLargePages(result *models.CrawlResult) []models.Issue {
	var pages, evidence []string
	for _, p := range result.HTMLPages() {
		if p.ByteSize <= largePage {
			continue
		}
		pages = append(pages, p.RequestedURL)
		evidence = append(evidence, fmt.Sprintf("%s weighs %.1f MB", p.RequestedURL, float64(p.ByteSize)/(1<<20)))
	}
	if len(pages) == 0 {
		return nil
	}
	return one(models.Issue{
		ID:             "technical_large_pages",
		Category:       models.CategoryTechnical,
		Severity:       models.SeverityLow,
		Title:          "Very heavy pages",
		Description:    "Some pages transfer several megabytes, which hurts load times on mobile connections.",
		Pages:          pages,
		Evidence:       evidence,
		Recommendation: "Compress images and defer non-critical resources on the heavy pages.",
		FixEffort:      2,
	})
}

func checkRedirectChains(result *models.CrawlResult) []models.Issue {
	var pages, evidence []string
	for _, p := range result.Pages {
		if len(p.RedirectChain) < longRedirects {
			continue
		}
		pages = append(pages, p.RequestedURL)
		evidence = append(evidence, fmt.Sprintf("%s reaches its destination after %d redirects", p.RequestedURL, len(p.RedirectChain)))
	}
	if len(pages) == 0 {
		return nil
	}
	return one(models.Issue{
		ID:             "technical_redirect_chains",
		Category:       models.CategoryTechnical,
		Severity:       models.SeverityLow,
		Title:          "Long redirect chains",
		Description:    "Multiple chained redirects add latency to every visit and dilute link signals.",
		Pages:          pages,
		Evidence:       evidence,
		Recommendation: "Point links and redirects directly at the final URL.",
		FixEffort:      1,
	})
}

func checkMissingFavicon(result *models.CrawlResult) []models.Issue {
	home := result.HomePage()
	if home == nil || !home.OK() || home.HasFavicon {
		return nil
	}
	return one(models.Issue{
		ID:             "technical_missing_favicon",
		Category:       models.CategoryTechnical,
		Severity:       models.SeverityLow,
		Title:          "No favicon",
		Description:    "The site does not declare a favicon, so browser tabs and bookmarks show a generic icon.",
		Pages:          []string{home.RequestedURL},
		Recommendation: "Add a favicon and reference it with a link tag in the page head.",
		FixEffort:      1,
	})
}

// checkBrowserErrors reports pages that loaded but logged console errors or
// failed subresource requests. Only available when the Chrome renderer ran.
func checkBrowserErrors(result *models.CrawlResult) []models.Issue {
	var pages, evidence []string
	for _, p := range result.HTMLPages() {
		if len(p.Errors) == 0 {
			continue
		}
		pages = append(pages, p.RequestedURL)
		evidence = append(evidence, p.Errors...)
	}
	if len(pages) == 0 {
		return nil
	}
	return one(models.Issue{
		ID:             "technical_browser_errors",
		Category:       models.CategoryTechnical,
		Severity:       models.SeverityLow,
		Title:          "JavaScript errors while loading",
		Description:    fmt.Sprintf("%d page(s) log script errors or fail to load embedded resources.", len(pages)),
		Pages:          pages,
		Evidence:       evidence,
		Recommendation: "Open the affected pages with the browser console and fix the reported errors.",
		FixEffort:      3,
	})
}

func checkLegacyMarkup(result *models.CrawlResult) []models.Issue {
	pages := pagesWhere(result, func(p *models.PageRecord) bool {
		return legacyMarkupRe.MatchString(p.RawHTML)
	})
	if len(pages) == 0 {
		return nil
	}
	return one(models.Issue{
		ID:             "technical_legacy_markup",
		Category:       models.CategoryTechnical,
		Severity:       models.SeverityMedium,
		Title:          "Outdated HTML markup",
		Description:    "Pages use obsolete elements such as font, center or frameset, a sign of a site that has not been maintained in years.",
		Pages:          pages,
		Recommendation: "Modernize the templates and replace obsolete elements with CSS.",
		FixEffort:      4,
	})
}
