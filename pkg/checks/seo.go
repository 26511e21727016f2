package checks

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"site-auditor/pkg/models"
)

const (
	titleMin = 10
	titleMax = 60
	descMin  = 50
	descMax  = 160
	thinPage = 150 // words
)

func (e *Engine) seoRules() []Rule {
	return []Rule{
		{ID: "missing-title", Run: pure(checkMissingTitle)},
		{ID: "seo_title_length", Run: pure(checkTitleLength)},
		{ID: "seo_duplicate_titles", Run: pure(checkDuplicateTitles)},
		{ID: "missing-meta-description", Run: pure(checkMissingMetaDescription)},
		{ID: "seo_meta_description_length", Run: pure(checkMetaDescriptionLength)},
		{ID: "seo_missing_lang_attr", Run: pure(checkMissingLang)},
		{ID: "seo_missing_h1", Run: pure(checkMissingH1)},
		{ID: "seo_multiple_h1", Run: pure(checkMultipleH1)},
		{ID: "seo_thin_content", Run: pure(checkThinContent)},
		{ID: "seo_missing_canonical", Run: pure(checkMissingCanonical)},
		{ID: "seo_missing_alt_text", Run: pure(checkMissingAltText)},
		{ID: "seo_noindex", Run: pure(checkNoindex)},
		{ID: "seo_robots_txt_missing", Run: pure(checkRobotsTxtMissing)},
		{ID: "seo_sitemap_missing", Run: e.checkSitemapMissing},
	}
}

func checkMissingTitle(result *models.CrawlResult) []models.Issue {
	pages := pagesWhere(result, func(p *models.PageRecord) bool {
		return strings.TrimSpace(p.Title) == ""
	})
	if len(pages) == 0 {
		return nil
	}
	return one(models.Issue{
		ID:             "missing-title",
		Category:       models.CategorySEO,
		Severity:       models.SeverityHigh,
		Title:          "Pages without a title tag",
		Description:    fmt.Sprintf("%d page(s) have no title tag. The title is the headline of every search result.", len(pages)),
		Pages:          pages,
		Recommendation: "Give every page a unique, descriptive title of roughly 50 to 60 characters.",
		FixEffort:      1,
	})
}

func checkTitleLength(result *models.CrawlResult) []models.Issue {
	var pages, evidence []string
	for _, p := range result.HTMLPages() {
		title := strings.TrimSpace(p.Title)
		if title == "" || (len(title) >= titleMin && len(title) <= titleMax) {
			continue
		}
		pages = append(pages, p.RequestedURL)
		evidence = append(evidence, fmt.Sprintf("%s: title is %d characters", p.RequestedURL, len(title)))
	}
	if len(pages) == 0 {
		return nil
	}
	return one(models.Issue{
		ID:             "seo_title_length",
		Category:       models.CategorySEO,
		Severity:       models.SeverityLow,
		Title:          "Title tags with poor length",
		Description:    "Very short titles waste the search snippet; very long ones get truncated.",
		Pages:          pages,
		Evidence:       evidence,
		Recommendation: "Aim for titles between 10 and 60 characters.",
		FixEffort:      1,
	})
}

func checkDuplicateTitles(result *models.CrawlResult) []models.Issue {
	byTitle := make(map[string][]string)
	for _, p := range result.HTMLPages() {
		title := strings.TrimSpace(p.Title)
		if title == "" {
			continue
		}
		byTitle[title] = append(byTitle[title], p.RequestedURL)
	}
	// Map order is random; emit the groups in a stable order.
	var duplicated []string
	for title, urls := range byTitle {
		if len(urls) >= 2 {
			duplicated = append(duplicated, title)
		}
	}
	sort.Strings(duplicated)

	var pages, evidence []string
	for _, title := range duplicated {
		urls := byTitle[title]
		pages = append(pages, urls...)
		evidence = append(evidence, fmt.Sprintf("%d pages share the title %q", len(urls), title))
	}
	if len(pages) == 0 {
		return nil
	}
	return one(models.Issue{
		ID:             "seo_duplicate_titles",
		Category:       models.CategorySEO,
		Severity:       models.SeverityLow,
		Title:          "Duplicate title tags",
		Description:    "Several pages share the same title, so search engines cannot tell them apart.",
		Pages:          pages,
		Evidence:       evidence,
		Recommendation: "Write a distinct title for each page.",
		FixEffort:      1,
	})
}

func checkMissingMetaDescription(result *models.CrawlResult) []models.Issue {
	pages := pagesWhere(result, func(p *models.PageRecord) bool {
		return strings.TrimSpace(p.Meta["description"]) == ""
	})
	if len(pages) == 0 {
		return nil
	}
	return one(models.Issue{
		ID:             "missing-meta-description",
		Category:       models.CategorySEO,
		Severity:       models.SeverityMedium,
		Title:          "Pages without a meta description",
		Description:    fmt.Sprintf("%d page(s) have no meta description, so search engines compose their own snippet.", len(pages)),
		Pages:          pages,
		Recommendation: "Add a meta description of 50 to 160 characters summarizing each page.",
		FixEffort:      1,
	})
}

func checkMetaDescriptionLength(result *models.CrawlResult) []models.Issue {
	var pages, evidence []string
	for _, p := range result.HTMLPages() {
		desc := strings.TrimSpace(p.Meta["description"])
		if desc == "" || (len(desc) >= descMin && len(desc) <= descMax) {
			continue
		}
		pages = append(pages, p.RequestedURL)
		evidence = append(evidence, fmt.Sprintf("%s: description is %d characters", p.RequestedURL, len(desc)))
	}
	if len(pages) == 0 {
		return nil
	}
	return one(models.Issue{
		ID:             "seo_meta_description_length",
		Category:       models.CategorySEO,
		Severity:       models.SeverityLow,
		Title:          "Meta descriptions with poor length",
		Description:    "Descriptions outside the 50-160 character range are truncated or leave the snippet half-empty.",
		Pages:          pages,
		Evidence:       evidence,
		Recommendation: "Rewrite the flagged descriptions to fit the snippet.",
		FixEffort:      1,
	})
}

func checkMissingLang(result *models.CrawlResult) []models.Issue {
	pages := pagesWhere(result, func(p *models.PageRecord) bool {
		return strings.TrimSpace(p.Lang) == ""
	})
	if len(pages) == 0 {
		return nil
	}
	return one(models.Issue{
		ID:             "seo_missing_lang_attr",
		Category:       models.CategorySEO,
		Severity:       models.SeverityLow,
		Title:          "Missing language attribute",
		Description:    "The html element declares no lang attribute, which screen readers and search engines rely on.",
		Pages:          pages,
		Recommendation: "Add the page language to the html tag, for example lang=\"de\".",
		FixEffort:      1,
	})
}

func checkMissingH1(result *models.CrawlResult) []models.Issue {
	pages := pagesWhere(result, func(p *models.PageRecord) bool {
		return len(p.H1) == 0
	})
	if len(pages) == 0 {
		return nil
	}
	return one(models.Issue{
		ID:             "seo_missing_h1",
		Category:       models.CategorySEO,
		Severity:       models.SeverityMedium,
		Title:          "Pages without a main heading",
		Description:    fmt.Sprintf("%d page(s) have no h1 heading to anchor their topic.", len(pages)),
		Pages:          pages,
		Recommendation: "Add exactly one h1 per page describing its content.",
		FixEffort:      1,
	})
}

func checkMultipleH1(result *models.CrawlResult) []models.Issue {
	pages := pagesWhere(result, func(p *models.PageRecord) bool {
		return len(p.H1) > 1
	})
	if len(pages) == 0 {
		return nil
	}
	return one(models.Issue{
		ID:             "seo_multiple_h1",
		Category:       models.CategorySEO,
		Severity:       models.SeverityLow,
		Title:          "Multiple h1 headings",
		Description:    "Pages with several h1 headings blur the document outline.",
		Pages:          pages,
		Recommendation: "Keep one h1 per page and demote the others to h2.",
		FixEffort:      1,
	})
}

func checkThinContent(result *models.CrawlResult) []models.Issue {
	var pages, evidence []string
	for _, p := range result.HTMLPages() {
		if p.WordCount >= thinPage {
			continue
		}
		pages = append(pages, p.RequestedURL)
		evidence = append(evidence, fmt.Sprintf("%s: %d words of visible text", p.RequestedURL, p.WordCount))
	}
	if len(pages) == 0 {
		return nil
	}
	return one(models.Issue{
		ID:             "seo_thin_content",
		Category:       models.CategorySEO,
		Severity:       models.SeverityLow,
		Title:          "Pages with very little text",
		Description:    "Pages with only a few sentences rarely rank for anything.",
		Pages:          pages,
		Evidence:       evidence,
		Recommendation: "Expand the thin pages with genuinely useful content or merge them.",
		FixEffort:      3,
	})
}

func checkMissingCanonical(result *models.CrawlResult) []models.Issue {
	pages := pagesWhere(result, func(p *models.PageRecord) bool {
		return p.CanonicalURL == ""
	})
	if len(pages) == 0 {
		return nil
	}
	return one(models.Issue{
		ID:             "seo_missing_canonical",
		Category:       models.CategorySEO,
		Severity:       models.SeverityLow,
		Title:          "Missing canonical links",
		Description:    "Without a canonical link, URL variants of the same page compete against each other.",
		Pages:          pages,
		Recommendation: "Add a self-referencing canonical link to every page.",
		FixEffort:      1,
	})
}

func checkMissingAltText(result *models.CrawlResult) []models.Issue {
	var pages, evidence []string
	for _, p := range result.HTMLPages() {
		missing := 0
		for _, img := range p.Images {
			if strings.TrimSpace(img.Alt) == "" {
				missing++
			}
		}
		if missing == 0 {
			continue
		}
		pages = append(pages, p.RequestedURL)
		evidence = append(evidence, fmt.Sprintf("%s: %d of %d images without alt text", p.RequestedURL, missing, len(p.Images)))
	}
	if len(pages) == 0 {
		return nil
	}
	return one(models.Issue{
		ID:             "seo_missing_alt_text",
		Category:       models.CategorySEO,
		Severity:       models.SeverityLow,
		Title:          "Images without alt text",
		Description:    "Images without alternative text are invisible to image search and screen readers.",
		Pages:          pages,
		Evidence:       evidence,
		Recommendation: "Describe each content image in its alt attribute.",
		FixEffort:      2,
	})
}

// checkNoindex flags pages that explicitly opt out of indexing. On a small
// business site this is almost always a leftover from development.
func checkNoindex(result *models.CrawlResult) []models.Issue {
	pages := pagesWhere(result, func(p *models.PageRecord) bool {
		return strings.Contains(strings.ToLower(p.Meta["robots"]), "noindex")
	})
	if len(pages) == 0 {
		return nil
	}
	return one(models.Issue{
		ID:             "seo_noindex",
		Category:       models.CategorySEO,
		Severity:       models.SeverityHigh,
		Title:          "Pages excluded from search engines",
		Description:    fmt.Sprintf("%d page(s) carry a noindex directive and never appear in search results.", len(pages)),
		Pages:          pages,
		Recommendation: "Remove the noindex directive from pages that should be found.",
		FixEffort:      1,
	})
}

func checkRobotsTxtMissing(result *models.CrawlResult) []models.Issue {
	if result.RobotsFound {
		return nil
	}
	return one(models.Issue{
		ID:             "seo_robots_txt_missing",
		Category:       models.CategorySEO,
		Severity:       models.SeverityLow,
		Title:          "No robots.txt",
		Description:    "The site serves no robots.txt, leaving crawler behavior entirely to defaults.",
		Pages:          []string{result.Seed},
		Recommendation: "Publish a robots.txt, even a permissive one, and reference the sitemap from it.",
		FixEffort:      1,
	})
}

// checkSitemapMissing probes /sitemap.xml on the live site. This is one of
// the few rules that touch the network after the crawl.
func (e *Engine) checkSitemapMissing(ctx context.Context, result *models.CrawlResult) []models.Issue {
	seed := seedURL(result)
	if seed.Host == "" {
		return nil
	}
	sitemapURL := seed.Scheme + "://" + seed.Host + "/sitemap.xml"

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, sitemapURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", e.cfg.UserAgent)
	resp, err := e.client.Do(req)
	if err != nil {
		// Unreachable is ambiguous; don't guess.
		return nil
	}
	resp.Body.Close()
	if resp.StatusCode < 400 {
		return nil
	}
	return one(models.Issue{
		ID:             "seo_sitemap_missing",
		Category:       models.CategorySEO,
		Severity:       models.SeverityLow,
		Title:          "No XML sitemap",
		Description:    "No sitemap.xml was found, so search engines have to discover pages purely by following links.",
		Pages:          []string{sitemapURL},
		Recommendation: "Generate a sitemap.xml and submit it in the search console.",
		FixEffort:      1,
	})
}
