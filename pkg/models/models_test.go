package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryValid(t *testing.T) {
	tests := []struct {
		category Category
		want     bool
	}{
		{CategoryTechnical, true},
		{CategorySEO, true},
		{CategoryLegal, true},
		{CategoryUX, true},
		{Category("design"), false},
		{Category(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.category.Valid())
		})
	}
}

func TestSeverityRankOrdering(t *testing.T) {
	assert.Greater(t, SeverityHigh.Rank(), SeverityMedium.Rank())
	assert.Greater(t, SeverityMedium.Rank(), SeverityLow.Rank())
	assert.Greater(t, SeverityLow.Rank(), Severity("bogus").Rank())
}

func TestPageRecordStatusHelpers(t *testing.T) {
	transport := &PageRecord{RequestedURL: "https://a.test/", FinalURL: "https://a.test/", StatusCode: 0}
	assert.True(t, transport.Failed())
	assert.False(t, transport.OK())

	notFound := &PageRecord{StatusCode: 404}
	assert.False(t, notFound.Failed())
	assert.False(t, notFound.OK())

	ok := &PageRecord{RequestedURL: "http://a.test/x", FinalURL: "https://a.test/x", StatusCode: 200}
	assert.True(t, ok.OK())
	assert.True(t, ok.Redirected())
}

func TestCrawlResultHomePage(t *testing.T) {
	crawl := &CrawlResult{
		Pages: []*PageRecord{
			{RequestedURL: "https://a.test/about", Depth: 1},
			{RequestedURL: "https://a.test/", Depth: 0},
		},
	}
	home := crawl.HomePage()
	if assert.NotNil(t, home) {
		assert.Equal(t, "https://a.test/", home.RequestedURL)
	}

	empty := &CrawlResult{}
	assert.Nil(t, empty.HomePage())
}

func TestCrawlResultHTMLPages(t *testing.T) {
	crawl := &CrawlResult{
		Pages: []*PageRecord{
			{RequestedURL: "https://a.test/", StatusCode: 200, RawHTML: "<html></html>"},
			{RequestedURL: "https://a.test/broken", StatusCode: 404},
			{RequestedURL: "https://a.test/file.pdf", StatusCode: 200}, // no HTML body
			{RequestedURL: "https://a.test/down", StatusCode: 0},
		},
	}
	pages := crawl.HTMLPages()
	assert.Len(t, pages, 1)
	assert.Equal(t, "https://a.test/", pages[0].RequestedURL)
}
