package models

import "time"

// WorkItem represents a URL and its depth to be processed by a crawl worker.
type WorkItem struct {
	URL   string
	Depth int
}

// PageRecord holds everything the audit pipeline knows about one crawled page.
// A record is created once per fetch attempt and never mutated afterwards; it
// is owned exclusively by the CrawlResult that contains it.
//
// StatusCode == 0 signals a transport-level failure (DNS, timeout, SSL), which
// is distinct from HTTP error statuses >= 400. FinalURL is always set; it
// equals RequestedURL when no redirect occurred.
type PageRecord struct {
	RequestedURL string `json:"requested_url"`
	FinalURL     string `json:"final_url"`
	StatusCode   int    `json:"status_code"`
	Depth        int    `json:"depth"`
	ContentType  string `json:"content_type,omitempty"`

	Title        string            `json:"title,omitempty"`
	Meta         map[string]string `json:"meta,omitempty"`
	H1           []string          `json:"h1,omitempty"`
	H2           []string          `json:"h2,omitempty"`
	Text         string            `json:"-"`
	WordCount    int               `json:"word_count"`
	RawHTML      string            `json:"-"`
	CanonicalURL string            `json:"canonical_url,omitempty"`
	Lang         string            `json:"lang,omitempty"`
	HasFavicon   bool              `json:"has_favicon"`
	ScriptCount  int               `json:"script_count"`

	InternalLinks []string   `json:"internal_links,omitempty"`
	ExternalLinks []string   `json:"external_links,omitempty"`
	Images        []ImageRef `json:"images,omitempty"`

	TTFB          time.Duration `json:"ttfb_ns"`
	LoadTime      time.Duration `json:"load_time_ns"`
	RedirectChain []string      `json:"redirect_chain,omitempty"`
	ByteSize      int64         `json:"byte_size"`

	// Errors collects transport, console and subresource failures observed
	// while loading this page. A non-empty list never aborts the crawl.
	Errors []string `json:"errors,omitempty"`
}

// ImageRef is one image reference found on a page.
type ImageRef struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

// Failed reports whether the page failed at the transport level.
func (p *PageRecord) Failed() bool { return p.StatusCode == 0 }

// OK reports whether the page returned a 2xx status.
func (p *PageRecord) OK() bool { return p.StatusCode >= 200 && p.StatusCode < 300 }

// Redirected reports whether the final URL differs from the requested one.
func (p *PageRecord) Redirected() bool { return p.FinalURL != p.RequestedURL }

// RobotsRule holds the Allow/Disallow path prefixes of the rule group that
// applied to the crawler's user agent. Loaded once per crawl, immutable, and
// shared by reference across all fetch decisions.
type RobotsRule struct {
	Disallowed []string `json:"disallowed,omitempty"`
	Allowed    []string `json:"allowed,omitempty"`
}

// CrawlResult is the output of a single crawl invocation: the collected page
// records plus crawl-level metadata. Pages are appended in completion order,
// not discovery order; consumers must treat the collection as unordered.
// Never mutated after the crawl completes.
type CrawlResult struct {
	Seed        string        `json:"seed"`
	Pages       []*PageRecord `json:"pages"`
	RobotsFound bool          `json:"robots_found"`
	Robots      *RobotsRule   `json:"robots,omitempty"`
	TotalPages  int           `json:"total_pages"`
	TotalBytes  int64         `json:"total_bytes"`
	Elapsed     time.Duration `json:"elapsed_ns"`
	MaxPages    int           `json:"max_pages"`
	MaxDepth    int           `json:"max_depth"`
}

// HomePage returns the depth-0 page record, or nil if the seed fetch never
// produced one.
func (c *CrawlResult) HomePage() *PageRecord {
	for _, p := range c.Pages {
		if p.Depth == 0 {
			return p
		}
	}
	return nil
}

// HTMLPages returns the records that were fetched successfully and parsed as
// HTML documents.
func (c *CrawlResult) HTMLPages() []*PageRecord {
	var out []*PageRecord
	for _, p := range c.Pages {
		if p.OK() && p.RawHTML != "" {
			out = append(out, p)
		}
	}
	return out
}

// Category classifies an Issue into one of the four audit areas.
type Category string

const (
	CategoryTechnical Category = "technical"
	CategorySEO       Category = "seo"
	CategoryLegal     Category = "legal"
	CategoryUX        Category = "ux"
)

// Valid reports whether the category is one of the known values.
func (c Category) Valid() bool {
	switch c {
	case CategoryTechnical, CategorySEO, CategoryLegal, CategoryUX:
		return true
	}
	return false
}

// Severity ranks how damaging an Issue is.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Valid reports whether the severity is one of the known values.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// Rank returns an ordering value for severity comparisons (higher is worse).
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Issue is one detected defect. The ID is a stable key used for priority
// ordering and for attaching business explanations externally. Issues are
// created by exactly one rule per invocation and never mutated or merged
// afterwards; duplicate IDs from different rules are allowed and retained.
type Issue struct {
	ID             string   `json:"id"`
	Category       Category `json:"category"`
	Severity       Severity `json:"severity"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Pages          []string `json:"pages,omitempty"`
	Evidence       []string `json:"evidence,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`

	// FixEffort is a rough 1 (trivial) to 5 (large) estimate used only to
	// tie-break the quick-win selection.
	FixEffort int `json:"fix_effort,omitempty"`
}

// LinkState classifies the outcome of one link-verification probe.
type LinkState string

const (
	LinkOK         LinkState = "ok"
	LinkRedirected LinkState = "redirected"
	LinkBroken     LinkState = "broken"
	LinkBlocked    LinkState = "blocked"
	LinkUnknown    LinkState = "unknown"
)

// LinkCheck is the result of probing one discovered-but-uncrawled link.
type LinkCheck struct {
	URL        string    `json:"url"`
	State      LinkState `json:"state"`
	StatusCode int       `json:"status_code,omitempty"`
	FinalURL   string    `json:"final_url,omitempty"`
	Sources    []string  `json:"sources,omitempty"`
}

// ScoreBreakdown holds the four category raw scores (0-100 each) and the
// weighted raw overall score. Each category starts at 100 and is only ever
// decreased; RawOverall is a fixed linear combination of the four.
type ScoreBreakdown struct {
	Technical  int `json:"technical"`
	SEO        int `json:"seo"`
	Legal      int `json:"legal"`
	UXDesign   int `json:"ux_design"`
	RawOverall int `json:"raw_overall"`
}

// Report is the final audit output, derived entirely from the CrawlResult and
// the Issue list.
type Report struct {
	Domain       string         `json:"domain"`
	Score        int            `json:"score"`
	ScoreRaw     int            `json:"score_raw"`
	Summary      string         `json:"summary"`
	Issues       []Issue        `json:"issues"`
	Breakdown    ScoreBreakdown `json:"breakdown"`
	QuickWin     *Issue         `json:"quick_win,omitempty"`
	Whitelisted  bool           `json:"whitelisted,omitempty"`
	PagesCrawled int            `json:"pages_crawled"`
	GeneratedAt  time.Time      `json:"generated_at"`
}
