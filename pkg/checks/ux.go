package checks

import (
	"fmt"
	"regexp"
	"strings"

	"site-auditor/pkg/models"
)

const (
	inlineStyleLimit = 20
	imageHeavyLimit  = 30
	wordWallRatio    = 200 // words per paragraph element
)

var (
	phoneRe     = regexp.MustCompile(`(?:tel:|\+\d{2}[\d\s/().-]{6,}|\b0\d{2,4}[\s/-]\d{3,})`)
	smallFontRe = regexp.MustCompile(`(?i)font-size\s*:\s*([0-9]|1[01])px`)
	inlineStyle = regexp.MustCompile(`(?i)\sstyle\s*=`)
	paragraphRe = regexp.MustCompile(`(?i)<(p|li|h[1-6]|blockquote)\b`)
	ctaMarkers  = []string{"<button", "type=\"submit\"", "type='submit'", "<form", "mailto:", "tel:", "kontakt", "contact", "termin", "anfrage", "jetzt", "book", "quote"}
)

func (e *Engine) uxRules() []Rule {
	return []Rule{
		{ID: "ux_missing_viewport", Run: pure(checkMissingViewport)},
		{ID: "ux_missing_cta", Run: pure(checkMissingCTA)},
		{ID: "ux_no_phone_number", Run: pure(checkNoPhoneNumber)},
		{ID: "ux_inline_styles", Run: pure(checkInlineStyles)},
		{ID: "ux_low_contrast", Run: pure(checkLowContrast)},
		{ID: "ux_deep_navigation", Run: pure(checkDeepNavigation)},
		{ID: "ux_image_heavy", Run: pure(checkImageHeavy)},
		{ID: "ux_word_walls", Run: pure(checkWordWalls)},
		{ID: "ux_small_font", Run: pure(checkSmallFont)},
	}
}

// checkMissingViewport flags pages that do not declare a viewport and are
// therefore unusable on phones. Most traffic for small businesses is mobile.
func checkMissingViewport(result *models.CrawlResult) []models.Issue {
	pages := pagesWhere(result, func(p *models.PageRecord) bool {
		return strings.TrimSpace(p.Meta["viewport"]) == ""
	})
	if len(pages) == 0 {
		return nil
	}
	return one(models.Issue{
		ID:             "ux_missing_viewport",
		Category:       models.CategoryUX,
		Severity:       models.SeverityHigh,
		Title:          "Not optimized for mobile",
		Description:    fmt.Sprintf("%d page(s) declare no viewport, so phones render them as tiny desktop pages.", len(pages)),
		Pages:          pages,
		Recommendation: "Add a responsive viewport meta tag and verify the layout on a phone.",
		FixEffort:      3,
	})
}

// checkMissingCTA looks for any call to action on the homepage: a form, a
// button, or a direct contact link.
func checkMissingCTA(result *models.CrawlResult) []models.Issue {
	home := result.HomePage()
	if home == nil || !home.OK() || home.RawHTML == "" {
		return nil
	}
	lower := strings.ToLower(home.RawHTML)
	for _, marker := range ctaMarkers {
		if strings.Contains(lower, marker) {
			return nil
		}
	}
	return one(models.Issue{
		ID:             "ux_missing_cta",
		Category:       models.CategoryUX,
		Severity:       models.SeverityMedium,
		Title:          "No call to action on the homepage",
		Description:    "The homepage offers visitors nothing to do: no form, button or contact link. Interested visitors leave without converting.",
		Pages:          []string{home.RequestedURL},
		Recommendation: "Add a prominent call to action above the fold, for example a contact button.",
		FixEffort:      2,
	})
}

func checkNoPhoneNumber(result *models.CrawlResult) []models.Issue {
	for _, p := range result.HTMLPages() {
		if phoneRe.MatchString(p.RawHTML) || phoneRe.MatchString(p.Text) {
			return nil
		}
	}
	if len(result.HTMLPages()) == 0 {
		return nil
	}
	return one(models.Issue{
		ID:             "ux_no_phone_number",
		Category:       models.CategoryUX,
		Severity:       models.SeverityLow,
		Title:          "No phone number found",
		Description:    "No phone number appears on any crawled page. Many customers of local businesses still prefer to call.",
		Pages:          []string{result.Seed},
		Recommendation: "Show the phone number in the header or footer, wrapped in a tel: link.",
		FixEffort:      1,
	})
}

func checkInlineStyles(result *models.CrawlResult) []models.Issue {
	var pages, evidence []string
	for _, p := range result.HTMLPages() {
		n := len(inlineStyle.FindAllStringIndex(p.RawHTML, -1))
		if n <= inlineStyleLimit {
			continue
		}
		pages = append(pages, p.RequestedURL)
		evidence = append(evidence, fmt.Sprintf("%s: %d inline style attributes", p.RequestedURL, n))
	}
	if len(pages) == 0 {
		return nil
	}
	return one(models.Issue{
		ID:             "ux_inline_styles",
		Category:       models.CategoryUX,
		Severity:       models.SeverityLow,
		Title:          "Heavy use of inline styles",
		Description:    "Dozens of inline style attributes make the design inconsistent and hard to maintain.",
		Pages:          pages,
		Evidence:       evidence,
		Recommendation: "Move the styling into a stylesheet.",
		FixEffort:      3,
	})
}

func checkLowContrast(result *models.CrawlResult) []models.Issue {
	var pages, evidence []string
	for _, p := range result.HTMLPages() {
		colors := lightInlineColors(p.RawHTML)
		if len(colors) == 0 {
			continue
		}
		pages = append(pages, p.RequestedURL)
		evidence = append(evidence, fmt.Sprintf("%s: very light text colors %s", p.RequestedURL, strings.Join(colors, ", ")))
	}
	if len(pages) == 0 {
		return nil
	}
	return one(models.Issue{
		ID:             "ux_low_contrast",
		Category:       models.CategoryUX,
		Severity:       models.SeverityLow,
		Title:          "Possibly unreadable text colors",
		Description:    "Inline styles set text colors so light they are hard to read on a white background.",
		Pages:          pages,
		Evidence:       evidence,
		Recommendation: "Check the flagged colors against a contrast checker and darken them.",
		FixEffort:      1,
	})
}

// checkDeepNavigation flags content that sits beyond the crawl depth:
// pages at the depth limit still link to unvisited internal pages, meaning
// real content needs more than a couple of clicks to reach.
func checkDeepNavigation(result *models.CrawlResult) []models.Issue {
	crawled := make(map[string]bool, len(result.Pages))
	for _, p := range result.Pages {
		crawled[p.RequestedURL] = true
	}
	var pages []string
	for _, p := range result.HTMLPages() {
		if p.Depth < result.MaxDepth {
			continue
		}
		for _, link := range p.InternalLinks {
			if !crawled[link] {
				pages = append(pages, p.RequestedURL)
				break
			}
		}
	}
	if len(pages) == 0 {
		return nil
	}
	return one(models.Issue{
		ID:             "ux_deep_navigation",
		Category:       models.CategoryUX,
		Severity:       models.SeverityLow,
		Title:          "Content buried deep in the navigation",
		Description:    fmt.Sprintf("%d page(s) at the edge of the crawl still link further down. Visitors need many clicks to reach that content.", len(pages)),
		Pages:          pages,
		Recommendation: "Flatten the navigation so important pages are at most two clicks from the homepage.",
		FixEffort:      3,
	})
}

func checkImageHeavy(result *models.CrawlResult) []models.Issue {
	var pages, evidence []string
	for _, p := range result.HTMLPages() {
		if len(p.Images) <= imageHeavyLimit {
			continue
		}
		pages = append(pages, p.RequestedURL)
		evidence = append(evidence, fmt.Sprintf("%s: %d images", p.RequestedURL, len(p.Images)))
	}
	if len(pages) == 0 {
		return nil
	}
	return one(models.Issue{
		ID:             "ux_image_heavy",
		Category:       models.CategoryUX,
		Severity:       models.SeverityLow,
		Title:          "Pages overloaded with images",
		Description:    "Pages embedding dozens of images load slowly and bury the actual content.",
		Pages:          pages,
		Evidence:       evidence,
		Recommendation: "Curate the images and lazy-load galleries.",
		FixEffort:      2,
	})
}

// checkWordWalls flags long text with almost no structuring elements.
func checkWordWalls(result *models.CrawlResult) []models.Issue {
	var pages, evidence []string
	for _, p := range result.HTMLPages() {
		if p.WordCount < wordWallRatio {
			continue
		}
		blocks := len(paragraphRe.FindAllStringIndex(p.RawHTML, -1))
		if blocks == 0 {
			blocks = 1
		}
		if p.WordCount/blocks <= wordWallRatio {
			continue
		}
		pages = append(pages, p.RequestedURL)
		evidence = append(evidence, fmt.Sprintf("%s: %d words in %d text blocks", p.RequestedURL, p.WordCount, blocks))
	}
	if len(pages) == 0 {
		return nil
	}
	return one(models.Issue{
		ID:             "ux_word_walls",
		Category:       models.CategoryUX,
		Severity:       models.SeverityLow,
		Title:          "Unstructured walls of text",
		Description:    "Long passages without headings or paragraphs are skipped by most readers.",
		Pages:          pages,
		Evidence:       evidence,
		Recommendation: "Break the text up with headings, short paragraphs and lists.",
		FixEffort:      2,
	})
}

func checkSmallFont(result *models.CrawlResult) []models.Issue {
	var pages, evidence []string
	for _, p := range result.HTMLPages() {
		m := smallFontRe.FindString(p.RawHTML)
		if m == "" {
			continue
		}
		pages = append(pages, p.RequestedURL)
		evidence = append(evidence, fmt.Sprintf("%s: %s", p.RequestedURL, strings.TrimSpace(m)))
	}
	if len(pages) == 0 {
		return nil
	}
	return one(models.Issue{
		ID:             "ux_small_font",
		Category:       models.CategoryUX,
		Severity:       models.SeverityLow,
		Title:          "Very small font sizes",
		Description:    "Inline styles set text below 12px, which is barely readable on phones.",
		Pages:          pages,
		Evidence:       evidence,
		Recommendation: "Use at least 16px for body text.",
		FixEffort:      1,
	})
}
