package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"site-auditor/pkg/config"
	"site-auditor/pkg/fetch"
	"site-auditor/pkg/models"
	"site-auditor/pkg/parse"
	"site-auditor/pkg/render"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.MaxPages = 10
	cfg.MaxDepth = 2
	cfg.MaxCrawlTime = 30 * time.Second
	cfg.Concurrency = 3
	cfg.RequestTimeout = 5 * time.Second
	cfg.MaxRetries = 0
	return cfg
}

// page builds a minimal HTML document linking to the given hrefs.
func page(title string, hrefs ...string) string {
	var b strings.Builder
	b.WriteString("<html><head><title>" + title + "</title></head><body>")
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<a href=%q>link</a>`, h)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// miniSite serves a small site with a robots.txt, some cross-links and a few
// pages that should be skipped by the scheduler.
func miniSite(t *testing.T) (*httptest.Server, *requestLog) {
	t.Helper()
	reqs := &requestLog{seen: make(map[string]int)}

	mux := http.NewServeMux()
	handle := func(path, body string) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			reqs.record(r.URL.Path)
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, body)
		})
	}
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /secret/\n")
	})

	handle("/", page("Home", "/a", "/b", "/secret/area", "/style.css", "https://elsewhere.example/x", "/a#section", "/a"))
	handle("/a", page("A", "/deep", "/b"))
	handle("/b", page("B", "/"))
	handle("/deep", page("Deep", "/toodeep"))
	handle("/toodeep", page("Too Deep"))
	handle("/secret/area", page("Secret"))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, reqs
}

type requestLog struct {
	mu   sync.Mutex
	seen map[string]int
}

func (r *requestLog) record(path string) {
	r.mu.Lock()
	r.seen[path]++
	r.mu.Unlock()
}

func (r *requestLog) count(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen[path]
}

func newScheduler(t *testing.T, cfg *config.Config, srv *httptest.Server) *Scheduler {
	t.Helper()
	seed, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)

	log := testLogger()
	renderer := render.NewHTTPRenderer(cfg.RequestTimeout, cfg.UserAgent)
	fetcher := fetch.NewFetcher(renderer, cfg, seed.Hostname(), log)
	robots := fetch.LoadRobots(context.Background(), srv.Client(), seed, cfg.UserAgent, log)
	return New(cfg, fetcher, robots, seed, log)
}

func pagePaths(result *models.CrawlResult) map[string]*models.PageRecord {
	byPath := make(map[string]*models.PageRecord)
	for _, p := range result.Pages {
		u, _ := url.Parse(p.RequestedURL)
		byPath[u.Path] = p
	}
	return byPath
}

func TestRunCrawlsReachablePages(t *testing.T) {
	srv, reqs := miniSite(t)
	sched := newScheduler(t, testConfig(), srv)

	result := sched.Run(context.Background())

	byPath := pagePaths(result)
	assert.Contains(t, byPath, "/")
	assert.Contains(t, byPath, "/a")
	assert.Contains(t, byPath, "/b")
	assert.Contains(t, byPath, "/deep")
	assert.Equal(t, 0, byPath["/"].Depth)
	assert.Equal(t, 2, byPath["/deep"].Depth)
	assert.Equal(t, len(result.Pages), result.TotalPages)
	assert.True(t, result.RobotsFound)
	assert.Greater(t, result.TotalBytes, int64(0))
	assert.Equal(t, 1, reqs.count("/"))
}

func TestRunRespectsDepthBudget(t *testing.T) {
	srv, reqs := miniSite(t)
	sched := newScheduler(t, testConfig(), srv)

	result := sched.Run(context.Background())

	for _, p := range result.Pages {
		assert.LessOrEqual(t, p.Depth, 2, "page beyond depth budget: %s", p.RequestedURL)
	}
	// /toodeep is only reachable at depth 3.
	assert.Equal(t, 0, reqs.count("/toodeep"))
}

func TestRunSkipsDisallowedAndOffsite(t *testing.T) {
	srv, reqs := miniSite(t)
	sched := newScheduler(t, testConfig(), srv)

	result := sched.Run(context.Background())

	assert.Equal(t, 0, reqs.count("/secret/area"))
	assert.Equal(t, 0, reqs.count("/style.css"))
	for _, p := range result.Pages {
		u, err := url.Parse(p.RequestedURL)
		require.NoError(t, err)
		assert.True(t, parse.SameBaseDomain(u.Hostname(), "127.0.0.1"))
	}
}

func TestRunDeduplicatesNormalizedURLs(t *testing.T) {
	// "/" links to /a, /a#section and /a again; /b links back to "/".
	srv, reqs := miniSite(t)
	sched := newScheduler(t, testConfig(), srv)

	result := sched.Run(context.Background())

	assert.Equal(t, 1, reqs.count("/a"))
	assert.Equal(t, 1, reqs.count("/"))

	seen := make(map[string]bool)
	for _, p := range result.Pages {
		u, err := url.Parse(p.RequestedURL)
		require.NoError(t, err)
		key := parse.NormalizeForComparison(u)
		assert.False(t, seen[key], "duplicate fetch of %s", key)
		seen[key] = true
	}
}

func TestRunRespectsPageBudget(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Every page links to twenty fresh URLs: only MaxPages of them
		// may ever be fetched.
		var hrefs []string
		for i := 0; i < 20; i++ {
			hrefs = append(hrefs, fmt.Sprintf("%s-%d", r.URL.Path, i))
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, page("Page", hrefs...))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := testConfig()
	cfg.MaxPages = 5
	sched := newScheduler(t, cfg, srv)

	result := sched.Run(context.Background())

	assert.LessOrEqual(t, len(result.Pages), 5)
	assert.Equal(t, 5, result.MaxPages)
}

func TestRunStopsOnDeadline(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		var hrefs []string
		for i := 0; i < 10; i++ {
			hrefs = append(hrefs, fmt.Sprintf("%s-%d", r.URL.Path, i))
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, page("Slow", hrefs...))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := testConfig()
	cfg.MaxPages = 100
	cfg.MaxCrawlTime = 150 * time.Millisecond
	sched := newScheduler(t, cfg, srv)

	start := time.Now()
	result := sched.Run(context.Background())

	// Run returns promptly after the deadline: queued tasks are dropped
	// rather than fetched, and whatever was collected is kept.
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Less(t, len(result.Pages), 100)
}

func TestRunLogsQueueDepthOnSchedule(t *testing.T) {
	srv, _ := miniSite(t)
	cfg := testConfig()

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	entry := logrus.NewEntry(logger)

	seed, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	renderer := render.NewHTTPRenderer(cfg.RequestTimeout, cfg.UserAgent)
	fetcher := fetch.NewFetcher(renderer, cfg, seed.Hostname(), entry)
	robots := fetch.LoadRobots(context.Background(), srv.Client(), seed, cfg.UserAgent, entry)

	New(cfg, fetcher, robots, seed, entry).Run(context.Background())

	scheduled := 0
	for _, e := range hook.AllEntries() {
		if e.Message != "Scheduled link" {
			continue
		}
		scheduled++
		depth, ok := e.Data["queue_len"].(int)
		require.True(t, ok)
		assert.GreaterOrEqual(t, depth, 0)
	}
	assert.Greater(t, scheduled, 0, "no links were scheduled")
}

func TestRunRecordsFailedPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, page("Home", "/gone"))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	sched := newScheduler(t, testConfig(), srv)
	result := sched.Run(context.Background())

	byPath := pagePaths(result)
	require.Contains(t, byPath, "/gone")
	assert.Equal(t, http.StatusNotFound, byPath["/gone"].StatusCode)
	// A 404 is a served response; only transport failures count as failed.
	assert.False(t, byPath["/gone"].Failed())
}
