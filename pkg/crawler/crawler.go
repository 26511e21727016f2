package crawler

import (
	"context"
	"net/url"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"site-auditor/pkg/config"
	"site-auditor/pkg/fetch"
	"site-auditor/pkg/models"
	"site-auditor/pkg/parse"
	"site-auditor/pkg/queue"
)

// Scheduler drives a bounded-concurrency breadth-first crawl of a single
// site. Expansion stops when any of the four budgets (pages, depth,
// wall-clock time, worker slots) is exhausted; budget exhaustion is a normal
// termination and still returns everything collected so far.
type Scheduler struct {
	cfg     *config.Config
	fetcher *fetch.Fetcher
	robots  *fetch.RobotsPolicy
	seed    *url.URL
	log     *logrus.Entry

	q  *queue.ThreadSafeQueue
	wg sync.WaitGroup // one count per scheduled task

	// mu guards the visited set, the scheduled counter and the collected
	// pages. These are the only mutable shared state of a crawl; records
	// are write-once after publication.
	mu         sync.Mutex
	visited    map[string]bool
	scheduled  int
	pages      []*models.PageRecord
	totalBytes int64
}

// New creates a Scheduler for one crawl invocation. The robots policy must
// already be loaded; the seed is assumed to have passed validation.
func New(cfg *config.Config, fetcher *fetch.Fetcher, robots *fetch.RobotsPolicy, seed *url.URL, log *logrus.Entry) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		fetcher: fetcher,
		robots:  robots,
		seed:    seed,
		log:     log,
		q:       queue.NewThreadSafeQueue(log),
		visited: make(map[string]bool),
	}
}

// Run executes the crawl and blocks until all workers have finished.
// It never returns an error: deadline expiry and budget exhaustion simply
// stop expansion.
func (s *Scheduler) Run(ctx context.Context) *models.CrawlResult {
	start := time.Now()
	crawlCtx, cancel := context.WithTimeout(ctx, s.cfg.MaxCrawlTime)
	defer cancel()

	s.log.WithFields(logrus.Fields{
		"seed":        s.seed.String(),
		"max_pages":   s.cfg.MaxPages,
		"max_depth":   s.cfg.MaxDepth,
		"budget":      s.cfg.MaxCrawlTime,
		"concurrency": s.cfg.Concurrency,
	}).Info("Crawl starting")

	// Seed the queue. The seed always occupies the first page slot.
	s.mu.Lock()
	s.visited[parse.NormalizeForComparison(s.seed)] = true
	s.scheduled = 1
	s.mu.Unlock()
	s.wg.Add(1)
	s.q.Add(&models.WorkItem{URL: parse.Normalize(s.seed), Depth: 0})

	// Fixed-size worker pool consuming from the queue.
	var workersWg sync.WaitGroup
	for i := 1; i <= s.cfg.Concurrency; i++ {
		workersWg.Add(1)
		workerLog := s.log.WithField("worker_id", i)
		go func() {
			defer workersWg.Done()
			s.worker(crawlCtx, workerLog)
		}()
	}

	// Close the queue once every scheduled task has completed, which
	// releases any workers blocked on Pop.
	go func() {
		s.wg.Wait()
		s.q.Close()
	}()

	workersWg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	result := &models.CrawlResult{
		Seed:        parse.Normalize(s.seed),
		Pages:       s.pages,
		RobotsFound: s.robots.Found(),
		Robots:      s.robots.Rule(),
		TotalPages:  len(s.pages),
		TotalBytes:  s.totalBytes,
		Elapsed:     time.Since(start),
		MaxPages:    s.cfg.MaxPages,
		MaxDepth:    s.cfg.MaxDepth,
	}

	s.log.WithFields(logrus.Fields{
		"pages":       result.TotalPages,
		"total_bytes": result.TotalBytes,
		"elapsed":     result.Elapsed,
		"deadline":    crawlCtx.Err() != nil,
	}).Info("Crawl finished")
	return result
}

// worker runs the loop for a single worker goroutine.
func (s *Scheduler) worker(ctx context.Context, log *logrus.Entry) {
	log.Debug("Worker starting")
	defer log.Debug("Worker finished")

	for {
		item, ok := s.q.Pop()
		if !ok {
			return
		}
		s.processTask(ctx, item, log)
	}
}

// processTask fetches one URL and enqueues its discovered links.
func (s *Scheduler) processTask(ctx context.Context, item *models.WorkItem, log *logrus.Entry) {
	taskLog := log.WithFields(logrus.Fields{"url": item.URL, "depth": item.Depth})

	defer func() {
		if r := recover(); r != nil {
			taskLog.WithField("stack_trace", string(debug.Stack())).Errorf("PANIC recovered in crawl task: %v", r)
		}
		s.wg.Done()
	}()

	// Hard stop: once the crawl deadline has expired, pending queue items
	// are drained without starting new fetches.
	if ctx.Err() != nil {
		taskLog.Debug("Crawl deadline reached, dropping queued task")
		return
	}

	rec := s.fetcher.Fetch(ctx, item.URL, item.Depth)

	s.mu.Lock()
	s.pages = append(s.pages, rec)
	s.totalBytes += rec.ByteSize
	s.mu.Unlock()

	// Expand only below the depth budget.
	if item.Depth >= s.cfg.MaxDepth {
		return
	}
	for _, link := range rec.InternalLinks {
		s.enqueue(link, item.Depth+1, taskLog)
	}
}

// enqueue applies the skip rules and schedules a newly discovered URL.
// Skip reasons: already visited (by comparison-normalized form), disallowed
// by robots, outside the seed's base domain, ignored file extension, or page
// budget already fully allocated.
func (s *Scheduler) enqueue(link string, depth int, log *logrus.Entry) {
	parsed, err := url.Parse(link)
	if err != nil {
		log.Debugf("Skipping unparseable link %q: %v", link, err)
		return
	}
	if !parse.SameBaseDomain(parsed.Hostname(), s.seed.Hostname()) {
		return
	}
	if parse.HasIgnoredExtension(parsed) {
		return
	}
	if !s.robots.IsAllowed(parsed) {
		log.Debugf("Skipping robots-disallowed link: %s", link)
		return
	}

	comparison := parse.NormalizeForComparison(parsed)

	s.mu.Lock()
	if s.visited[comparison] || s.scheduled >= s.cfg.MaxPages {
		s.mu.Unlock()
		return
	}
	s.visited[comparison] = true
	s.scheduled++
	s.mu.Unlock()

	s.wg.Add(1)
	s.q.Add(&models.WorkItem{URL: parse.Normalize(parsed), Depth: depth})
	log.WithFields(logrus.Fields{"link": link, "queue_len": s.q.Len()}).Debug("Scheduled link")
}
