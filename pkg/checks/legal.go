package checks

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"site-auditor/pkg/models"
)

func (e *Engine) legalRules() []Rule {
	return []Rule{
		{ID: "legal_missing_imprint", Run: pure(checkMissingImprint)},
		{ID: "legal_missing_privacy_policy", Run: pure(checkMissingPrivacyPolicy)},
		{ID: "legal_missing_terms", Run: pure(checkMissingTerms)},
		{ID: "legal_missing_cookie_notice", Run: pure(checkMissingCookieNotice)},
		{ID: "legal_missing_contact", Run: pure(checkMissingContact)},
		{ID: "legal_copyright_outdated", Run: pure(checkCopyrightOutdated)},
	}
}

// checkMissingImprint looks for an imprint page anywhere in the discovered
// link graph. German commercial sites are required to have one.
func checkMissingImprint(result *models.CrawlResult) []models.Issue {
	if siteMentions(result, "impressum", "imprint", "legal-notice", "legal_notice") {
		return nil
	}
	return one(models.Issue{
		ID:             "legal_missing_imprint",
		Category:       models.CategoryLegal,
		Severity:       models.SeverityHigh,
		Title:          "No imprint found",
		Description:    "No imprint page is linked anywhere on the crawled pages. Commercial sites in Germany must provide one, and missing imprints are a common target for warning letters.",
		Pages:          []string{result.Seed},
		Recommendation: "Publish an imprint page and link it from every page, typically in the footer.",
		FixEffort:      1,
	})
}

func checkMissingPrivacyPolicy(result *models.CrawlResult) []models.Issue {
	if siteMentions(result, "datenschutz", "privacy", "data-protection") {
		return nil
	}
	return one(models.Issue{
		ID:             "legal_missing_privacy_policy",
		Category:       models.CategoryLegal,
		Severity:       models.SeverityHigh,
		Title:          "No privacy policy found",
		Description:    "No privacy policy is linked on the crawled pages. The GDPR requires one on virtually every site that serves EU visitors.",
		Pages:          []string{result.Seed},
		Recommendation: "Publish a privacy policy and link it from every page.",
		FixEffort:      2,
	})
}

func checkMissingTerms(result *models.CrawlResult) []models.Issue {
	if siteMentions(result, "agb", "terms", "conditions") {
		return nil
	}
	return one(models.Issue{
		ID:             "legal_missing_terms",
		Category:       models.CategoryLegal,
		Severity:       models.SeverityLow,
		Title:          "No terms and conditions found",
		Description:    "No terms page is linked. Not mandatory for every business, but expected wherever orders or bookings happen online.",
		Pages:          []string{result.Seed},
		Recommendation: "Add a terms page if the site sells or books anything.",
		FixEffort:      2,
	})
}

// checkMissingCookieNotice flags script-heavy sites with no trace of a
// consent solution. Static sites without scripts are left alone.
func checkMissingCookieNotice(result *models.CrawlResult) []models.Issue {
	home := result.HomePage()
	if home == nil || !home.OK() || home.ScriptCount < 3 {
		return nil
	}
	if siteMentions(result, "cookie", "consent", "usercentrics", "cookiebot", "borlabs") {
		return nil
	}
	return one(models.Issue{
		ID:             "legal_missing_cookie_notice",
		Category:       models.CategoryLegal,
		Severity:       models.SeverityMedium,
		Title:          "No cookie consent found",
		Description:    "The site runs several scripts but shows no sign of a cookie or consent banner. Tracking without consent violates the ePrivacy rules.",
		Pages:          []string{home.RequestedURL},
		Recommendation: "Add a consent banner before loading tracking or third-party scripts.",
		FixEffort:      2,
	})
}

func checkMissingContact(result *models.CrawlResult) []models.Issue {
	if siteMentions(result, "kontakt", "contact", "mailto:") {
		return nil
	}
	return one(models.Issue{
		ID:             "legal_missing_contact",
		Category:       models.CategoryLegal,
		Severity:       models.SeverityMedium,
		Title:          "No contact option found",
		Description:    "No contact page or email link was found on the crawled pages, so visitors have no way to reach the business.",
		Pages:          []string{result.Seed},
		Recommendation: "Add a contact page or at least a visible email address.",
		FixEffort:      1,
	})
}

var copyrightYearRe = regexp.MustCompile(`(?i)(?:©|&copy;|copyright)\s*(?:\d{4}\s*[-–]\s*)?(\d{4})`)

// checkCopyrightOutdated reads the copyright year from the homepage footer.
// A stale year signals an unmaintained site to visitors.
func checkCopyrightOutdated(result *models.CrawlResult) []models.Issue {
	home := result.HomePage()
	if home == nil || !home.OK() {
		return nil
	}
	m := copyrightYearRe.FindStringSubmatch(home.RawHTML)
	if m == nil {
		return nil
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	current := time.Now().Year()
	if year >= current-1 {
		return nil
	}
	return one(models.Issue{
		ID:             "legal_copyright_outdated",
		Category:       models.CategoryLegal,
		Severity:       models.SeverityLow,
		Title:          "Outdated copyright year",
		Description:    fmt.Sprintf("The footer still says © %d, which makes the site look abandoned.", year),
		Pages:          []string{home.RequestedURL},
		Evidence:       []string{m[0]},
		Recommendation: "Update the copyright year, ideally generated from the current date.",
		FixEffort:      1,
	})
}
