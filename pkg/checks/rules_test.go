package checks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"site-auditor/pkg/models"
)

func htmlPage(url, rawHTML string) *models.PageRecord {
	return &models.PageRecord{
		RequestedURL: url,
		FinalURL:     url,
		StatusCode:   200,
		ContentType:  "text/html",
		RawHTML:      rawHTML,
	}
}

func TestCheckDuplicateTitles(t *testing.T) {
	a := htmlPage("https://x.test/a", "<html></html>")
	a.Title = "Startseite"
	b := htmlPage("https://x.test/b", "<html></html>")
	b.Title = "Startseite"
	c := htmlPage("https://x.test/c", "<html></html>")
	c.Title = "Leistungen"
	result := &models.CrawlResult{Pages: []*models.PageRecord{a, b, c}}

	issues := checkDuplicateTitles(result)
	require.Len(t, issues, 1)
	assert.ElementsMatch(t, []string{"https://x.test/a", "https://x.test/b"}, issues[0].Pages)
}

func TestCheckDuplicateTitlesStableOrder(t *testing.T) {
	a := htmlPage("https://x.test/a", "<html></html>")
	a.Title = "Startseite"
	b := htmlPage("https://x.test/b", "<html></html>")
	b.Title = "Startseite"
	c := htmlPage("https://x.test/c", "<html></html>")
	c.Title = "Kontakt"
	d := htmlPage("https://x.test/d", "<html></html>")
	d.Title = "Kontakt"
	result := &models.CrawlResult{Pages: []*models.PageRecord{a, b, c, d}}

	first := checkDuplicateTitles(result)
	require.Len(t, first, 1)
	for i := 0; i < 200; i++ {
		again := checkDuplicateTitles(result)
		require.Len(t, again, 1)
		assert.Equal(t, first[0].Pages, again[0].Pages)
		assert.Equal(t, first[0].Evidence, again[0].Evidence)
	}
}

func TestCheckCopyrightOutdated(t *testing.T) {
	old := htmlPage("https://x.test/", "<footer>&copy; 2018 Firma GmbH</footer>")
	result := &models.CrawlResult{Pages: []*models.PageRecord{old}}

	issues := checkCopyrightOutdated(result)
	require.Len(t, issues, 1)
	assert.Equal(t, "legal_copyright_outdated", issues[0].ID)
	assert.Contains(t, issues[0].Description, "2018")
}

func TestCheckCopyrightRangeUsesLastYear(t *testing.T) {
	// "© 2010-2019" must be read as 2019, not 2010.
	old := htmlPage("https://x.test/", "<footer>© 2010-2019 Firma</footer>")
	issues := checkCopyrightOutdated(&models.CrawlResult{Pages: []*models.PageRecord{old}})
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Description, "2019")
}

func TestCheckMixedContent(t *testing.T) {
	insecure := htmlPage("https://x.test/", `<img src="http://x.test/logo.png">`)
	clean := htmlPage("https://x.test/ok", `<img src="https://x.test/logo.png">`)
	result := &models.CrawlResult{Pages: []*models.PageRecord{insecure, clean}}

	issues := checkMixedContent(result)
	require.Len(t, issues, 1)
	assert.Equal(t, []string{"https://x.test/"}, issues[0].Pages)
}

func TestCheckMixedContentIgnoresHTTPPages(t *testing.T) {
	p := htmlPage("http://x.test/", `<img src="http://x.test/logo.png">`)
	assert.Empty(t, checkMixedContent(&models.CrawlResult{Pages: []*models.PageRecord{p}}))
}

func TestLightInlineColors(t *testing.T) {
	html := `<p style="color:#eee">light</p><p style="color: #333333">dark</p><p style="color:#EEE">dup</p>`
	colors := lightInlineColors(html)
	assert.Equal(t, []string{"#eee"}, colors)
}

func TestCheckMissingCTA(t *testing.T) {
	bare := htmlPage("https://x.test/", "<html><body><p>Nur Text.</p></body></html>")
	bare.Depth = 0
	result := &models.CrawlResult{Pages: []*models.PageRecord{bare}}

	issues := checkMissingCTA(result)
	require.Len(t, issues, 1)

	withForm := htmlPage("https://x.test/", `<form><button type="submit">Los</button></form>`)
	assert.Empty(t, checkMissingCTA(&models.CrawlResult{Pages: []*models.PageRecord{withForm}}))
}

func TestCheckDeepNavigation(t *testing.T) {
	edge := htmlPage("https://x.test/a/b", "<html></html>")
	edge.Depth = 2
	edge.InternalLinks = []string{"https://x.test/a/b/c"}
	result := &models.CrawlResult{Pages: []*models.PageRecord{edge}, MaxDepth: 2}

	issues := checkDeepNavigation(result)
	require.Len(t, issues, 1)
	assert.Equal(t, []string{"https://x.test/a/b"}, issues[0].Pages)

	// Links that were themselves crawled don't count.
	target := htmlPage("https://x.test/a/b/c", "<html></html>")
	target.Depth = 2
	result.Pages = append(result.Pages, target)
	assert.Empty(t, checkDeepNavigation(result))
}

func TestCheckNoindex(t *testing.T) {
	p := htmlPage("https://x.test/", "<html></html>")
	p.Meta = map[string]string{"robots": "noindex, nofollow"}
	issues := checkNoindex(&models.CrawlResult{Pages: []*models.PageRecord{p}})
	require.Len(t, issues, 1)
	assert.Equal(t, models.SeverityHigh, issues[0].Severity)
}

func TestCheckSSLAcceptsHTTPSRedirect(t *testing.T) {
	home := htmlPage("http://x.test/", "<html></html>")
	home.FinalURL = "https://x.test/"
	result := &models.CrawlResult{Seed: "http://x.test/", Pages: []*models.PageRecord{home}}
	assert.Empty(t, checkSSL(result))
}

func TestCheckTransportErrors(t *testing.T) {
	dead := &models.PageRecord{
		RequestedURL: "https://x.test/down",
		StatusCode:   0,
		Errors:       []string{"connection to https://x.test/down failed: connection refused"},
	}
	issues := checkTransportErrors(&models.CrawlResult{Pages: []*models.PageRecord{dead}})
	require.Len(t, issues, 1)
	assert.Equal(t, models.SeverityHigh, issues[0].Severity)
	assert.NotEmpty(t, issues[0].Evidence)
}
