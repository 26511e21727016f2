package storage

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"site-auditor/pkg/models"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore(t.TempDir(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleReport(domain string, score int, generatedAt time.Time) *models.Report {
	return &models.Report{
		Domain:   domain,
		Score:    score,
		ScoreRaw: score + 5,
		Issues: []models.Issue{
			{ID: "technical_ssl", Category: models.CategoryTechnical, Severity: models.SeverityHigh},
		},
		GeneratedAt: generatedAt,
	}
}

func TestSaveAndGetReport(t *testing.T) {
	store := newTestStore(t)
	jobID := NewJobID()
	want := sampleReport("example.com", 42, time.Now().UTC().Truncate(time.Second))

	require.NoError(t, store.SaveReport(jobID, want))

	got, err := store.GetReport(jobID)
	require.NoError(t, err)
	assert.Equal(t, want.Domain, got.Domain)
	assert.Equal(t, want.Score, got.Score)
	assert.Len(t, got.Issues, 1)
}

func TestGetReportNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetReport("no-such-job")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveAndGetCrawl(t *testing.T) {
	store := newTestStore(t)
	jobID := NewJobID()
	want := &models.CrawlResult{
		Seed:       "https://example.com/",
		TotalPages: 2,
		Pages: []*models.PageRecord{
			{RequestedURL: "https://example.com/", FinalURL: "https://example.com/", StatusCode: 200},
			{RequestedURL: "https://example.com/a", FinalURL: "https://example.com/a", StatusCode: 404},
		},
	}

	require.NoError(t, store.SaveCrawl(jobID, want))

	got, err := store.GetCrawl(jobID)
	require.NoError(t, err)
	assert.Equal(t, want.Seed, got.Seed)
	require.Len(t, got.Pages, 2)
	assert.Equal(t, 404, got.Pages[1].StatusCode)
}

func TestScreenshotRoundTrip(t *testing.T) {
	store := newTestStore(t)
	jobID := NewJobID()
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}

	require.NoError(t, store.SaveScreenshot(jobID, png))

	got, err := store.GetScreenshot(jobID)
	require.NoError(t, err)
	assert.Equal(t, png, got)

	_, err = store.GetScreenshot("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListJobsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().UTC()

	older := NewJobID()
	newer := NewJobID()
	require.NoError(t, store.SaveReport(older, sampleReport("old.test", 30, base.Add(-time.Hour))))
	require.NoError(t, store.SaveReport(newer, sampleReport("new.test", 70, base)))
	// Crawl artifacts must not leak into the job listing.
	require.NoError(t, store.SaveCrawl(newer, &models.CrawlResult{Seed: "https://new.test/"}))

	jobs, err := store.ListJobs()
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "new.test", jobs[0].Domain)
	assert.Equal(t, 70, jobs[0].Score)
	assert.Equal(t, 1, jobs[0].Issues)
	assert.Equal(t, "old.test", jobs[1].Domain)
}

func TestReportSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	jobID := NewJobID()

	store1, err := NewBadgerStore(dir, testLogger())
	require.NoError(t, err)
	require.NoError(t, store1.SaveReport(jobID, sampleReport("persist.test", 55, time.Now().UTC())))
	require.NoError(t, store1.Close())

	store2, err := NewBadgerStore(dir, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store2.Close() })

	got, err := store2.GetReport(jobID)
	require.NoError(t, err)
	assert.Equal(t, "persist.test", got.Domain)
}
