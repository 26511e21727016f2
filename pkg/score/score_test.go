package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"site-auditor/pkg/models"
)

func issue(id string, cat models.Category, sev models.Severity, effort int) models.Issue {
	return models.Issue{ID: id, Category: cat, Severity: sev, FixEffort: effort}
}

func TestBreakdownDeductions(t *testing.T) {
	issues := []models.Issue{
		issue("a", models.CategoryTechnical, models.SeverityHigh, 1),   // technical 85
		issue("b", models.CategorySEO, models.SeverityMedium, 1),       // seo 92
		issue("c", models.CategorySEO, models.SeverityLow, 1),          // seo 89
		issue("d", models.CategoryLegal, models.SeverityLow, 1),        // legal 97
	}

	b := Breakdown(issues)
	assert.Equal(t, 85, b.Technical)
	assert.Equal(t, 89, b.SEO)
	assert.Equal(t, 97, b.Legal)
	assert.Equal(t, 100, b.UXDesign)

	// 0.35*85 + 0.20*89 + 0.20*97 + 0.25*100 = 91.95 -> 92, minus one
	// high-severity penalty of 5.
	assert.Equal(t, 87, b.RawOverall)
}

func TestBreakdownClampsCategoryFloor(t *testing.T) {
	var issues []models.Issue
	for i := 0; i < 10; i++ {
		issues = append(issues, issue("x", models.CategoryLegal, models.SeverityHigh, 1))
	}
	b := Breakdown(issues)
	assert.Equal(t, 0, b.Legal)
	assert.GreaterOrEqual(t, b.RawOverall, 0)
}

func TestNormalizeCurve(t *testing.T) {
	assert.Equal(t, 20, Normalize(50))
	assert.Equal(t, 59, Normalize(80))
	assert.Equal(t, 95, Normalize(100))
	assert.Equal(t, 0, Normalize(0))
	assert.Equal(t, 0, Normalize(20)) // 4 - 5 clamps to 0
}

func TestScoreBounds(t *testing.T) {
	lists := [][]models.Issue{
		nil,
		{issue("a", models.CategoryTechnical, models.SeverityHigh, 1)},
	}
	// Pile on issues until every category is exhausted.
	var pile []models.Issue
	for i := 0; i < 40; i++ {
		for _, cat := range []models.Category{models.CategoryTechnical, models.CategorySEO, models.CategoryLegal, models.CategoryUX} {
			pile = append(pile, issue("p", cat, models.SeverityHigh, 1))
		}
	}
	lists = append(lists, pile)

	for _, issues := range lists {
		b := Breakdown(issues)
		for _, v := range []int{b.Technical, b.SEO, b.Legal, b.UXDesign, b.RawOverall, Normalize(b.RawOverall)} {
			assert.GreaterOrEqual(t, v, 0)
			assert.LessOrEqual(t, v, 100)
		}
	}
}

func TestScoreMonotonicity(t *testing.T) {
	base := []models.Issue{
		issue("a", models.CategorySEO, models.SeverityMedium, 1),
		issue("b", models.CategoryUX, models.SeverityLow, 1),
	}
	before := Breakdown(base)

	withHigh := append(append([]models.Issue{}, base...),
		issue("c", models.CategoryTechnical, models.SeverityHigh, 1))
	after := Breakdown(withHigh)

	assert.LessOrEqual(t, after.RawOverall, before.RawOverall)
	assert.LessOrEqual(t, Normalize(after.RawOverall), Normalize(before.RawOverall))
}

func TestScoreDeterminism(t *testing.T) {
	issues := []models.Issue{
		issue("a", models.CategoryTechnical, models.SeverityHigh, 2),
		issue("b", models.CategoryLegal, models.SeverityMedium, 1),
	}
	assert.Equal(t, Breakdown(issues), Breakdown(issues))
}

func TestQuickWinPriorityList(t *testing.T) {
	issues := []models.Issue{
		issue("seo_thin_content", models.CategorySEO, models.SeverityLow, 3),
		issue("ux_missing_cta", models.CategoryUX, models.SeverityMedium, 2),
		issue("legal_missing_imprint", models.CategoryLegal, models.SeverityHigh, 1),
	}
	win := QuickWin(issues)
	require.NotNil(t, win)
	assert.Equal(t, "legal_missing_imprint", win.ID)
}

func TestQuickWinFallbackBySeverityThenEffort(t *testing.T) {
	issues := []models.Issue{
		issue("seo_thin_content", models.CategorySEO, models.SeverityMedium, 3),
		issue("technical_legacy_markup", models.CategoryTechnical, models.SeverityMedium, 4),
		issue("seo_missing_h1", models.CategorySEO, models.SeverityMedium, 1),
	}
	win := QuickWin(issues)
	require.NotNil(t, win)
	assert.Equal(t, "seo_missing_h1", win.ID)

	assert.Nil(t, QuickWin(nil))
}

func TestBuildReport(t *testing.T) {
	result := &models.CrawlResult{Seed: "https://www.altbau.test/", TotalPages: 7}
	issues := []models.Issue{
		issue("technical_ssl", models.CategoryTechnical, models.SeverityHigh, 2),
		issue("missing-title", models.CategorySEO, models.SeverityHigh, 1),
	}

	report := BuildReport(result, issues, false)
	assert.Equal(t, "www.altbau.test", report.Domain)
	assert.Equal(t, 7, report.PagesCrawled)
	assert.Less(t, report.ScoreRaw, 100)
	assert.Less(t, report.Score, report.ScoreRaw)
	assert.False(t, report.Whitelisted)
	assert.NotNil(t, report.QuickWin)
	assert.Contains(t, report.Summary, "2 issues")
	assert.False(t, report.GeneratedAt.IsZero())
}

func TestBuildReportWhitelistOverride(t *testing.T) {
	result := &models.CrawlResult{Seed: "https://partner.test/", TotalPages: 3}
	var issues []models.Issue
	for i := 0; i < 10; i++ {
		issues = append(issues, issue("technical_ssl", models.CategoryTechnical, models.SeverityHigh, 2))
	}

	report := BuildReport(result, issues, true)
	assert.Equal(t, 100, report.Score)
	assert.True(t, report.Whitelisted)
	assert.Less(t, report.ScoreRaw, 50, "raw score keeps the real computed value")
	assert.Len(t, report.Issues, 10)
}
