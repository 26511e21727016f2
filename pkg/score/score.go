// Package score turns a crawl result and its issues into the final report.
// Everything in here is a pure function of its inputs; the same issues always
// produce the same numbers.
package score

import (
	"fmt"
	"math"
	"net/url"
	"time"

	"site-auditor/pkg/models"
)

// Severity deductions from a category's starting score of 100.
const (
	deductHigh   = 15
	deductMedium = 8
	deductLow    = 3
)

// Category weights for the overall raw score. These are tuned product
// constants; changing them silently shifts every historical score.
const (
	weightTechnical = 0.35
	weightSEO       = 0.20
	weightLegal     = 0.20
	weightUX        = 0.25
)

// highPenalty is subtracted from the weighted raw score once per
// high-severity issue.
const highPenalty = 5

// quickWinPriority is tried in order when picking the headline issue.
// Legal compliance first: those are the findings a business owner can get
// sued over, and they are usually cheap to fix.
var quickWinPriority = []string{
	"legal_missing_imprint",
	"legal_missing_privacy_policy",
	"technical-broken-links",
	"ux_missing_cta",
	"ux_missing_viewport",
}

// Breakdown computes the four category raw scores and the weighted,
// high-penalized overall raw score.
func Breakdown(issues []models.Issue) models.ScoreBreakdown {
	totals := map[models.Category]int{
		models.CategoryTechnical: 100,
		models.CategorySEO:       100,
		models.CategoryLegal:     100,
		models.CategoryUX:        100,
	}
	highCount := 0
	for _, issue := range issues {
		totals[issue.Category] -= deduction(issue.Severity)
		if issue.Severity == models.SeverityHigh {
			highCount++
		}
	}
	for cat, v := range totals {
		totals[cat] = clamp(v, 0, 100)
	}

	raw := int(math.Round(
		weightTechnical*float64(totals[models.CategoryTechnical]) +
			weightSEO*float64(totals[models.CategorySEO]) +
			weightLegal*float64(totals[models.CategoryLegal]) +
			weightUX*float64(totals[models.CategoryUX])))
	raw -= highPenalty * highCount
	if raw < 0 {
		raw = 0
	}

	return models.ScoreBreakdown{
		Technical:  totals[models.CategoryTechnical],
		SEO:        totals[models.CategorySEO],
		Legal:      totals[models.CategoryLegal],
		UXDesign:   totals[models.CategoryUX],
		RawOverall: raw,
	}
}

// Normalize applies the quadratic compression that spreads mid-range sites
// apart: final = clamp(raw²/100 − 5, 0, 100). Raw 50 maps to 20, raw 80 to
// 59, raw 100 to 95.
func Normalize(raw int) int {
	final := int(math.Round(float64(raw)*float64(raw)/100.0 - 5))
	return clamp(final, 0, 100)
}

// QuickWin picks the single issue to headline the report: first match from
// the fixed priority list, otherwise the highest-severity issue with the
// lowest fix effort. Returns nil for an issue-free site.
func QuickWin(issues []models.Issue) *models.Issue {
	for _, id := range quickWinPriority {
		for i := range issues {
			if issues[i].ID == id {
				return &issues[i]
			}
		}
	}
	var best *models.Issue
	for i := range issues {
		cand := &issues[i]
		if best == nil {
			best = cand
			continue
		}
		if cand.Severity.Rank() > best.Severity.Rank() {
			best = cand
			continue
		}
		if cand.Severity.Rank() == best.Severity.Rank() && cand.FixEffort < best.FixEffort {
			best = cand
		}
	}
	return best
}

// BuildReport assembles the final report for a crawl. Whitelisted domains
// are forced to a perfect score; the raw value and the issues stay in the
// report for internal visibility.
func BuildReport(result *models.CrawlResult, issues []models.Issue, whitelisted bool) *models.Report {
	breakdown := Breakdown(issues)
	final := Normalize(breakdown.RawOverall)

	report := &models.Report{
		Domain:       Domain(result),
		Score:        final,
		ScoreRaw:     breakdown.RawOverall,
		Issues:       issues,
		Breakdown:    breakdown,
		QuickWin:     QuickWin(issues),
		Whitelisted:  whitelisted,
		PagesCrawled: result.TotalPages,
		GeneratedAt:  time.Now().UTC(),
	}
	if whitelisted {
		report.Score = 100
	}
	report.Summary = summarize(report, issues)
	return report
}

func summarize(report *models.Report, issues []models.Issue) string {
	high := 0
	for _, i := range issues {
		if i.Severity == models.SeverityHigh {
			high++
		}
	}
	switch {
	case len(issues) == 0:
		return fmt.Sprintf("No issues found across %d crawled pages.", report.PagesCrawled)
	case high > 0:
		return fmt.Sprintf("%d issues found across %d crawled pages, %d of them severe.", len(issues), report.PagesCrawled, high)
	default:
		return fmt.Sprintf("%d issues found across %d crawled pages.", len(issues), report.PagesCrawled)
	}
}

// Domain extracts the crawled hostname from a result's seed.
func Domain(result *models.CrawlResult) string {
	u, err := url.Parse(result.Seed)
	if err != nil {
		return result.Seed
	}
	return u.Hostname()
}

func deduction(s models.Severity) int {
	switch s {
	case models.SeverityHigh:
		return deductHigh
	case models.SeverityMedium:
		return deductMedium
	default:
		return deductLow
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
