// Package audit is the public entry point of the pipeline. It composes the
// crawler, the link verifier, the rule engine and the scorer into the two
// calls a driver needs: Crawl and Audit.
package audit

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"site-auditor/pkg/checks"
	"site-auditor/pkg/config"
	"site-auditor/pkg/crawler"
	"site-auditor/pkg/fetch"
	"site-auditor/pkg/models"
	"site-auditor/pkg/parse"
	"site-auditor/pkg/render"
	"site-auditor/pkg/score"
	"site-auditor/pkg/utils"
	"site-auditor/pkg/verify"
)

// Auditor runs audits with a fixed configuration. Safe to reuse across
// invocations; each call runs an isolated crawl.
type Auditor struct {
	cfg      *config.Config
	renderer render.Renderer
	client   *http.Client
	log      *logrus.Entry
}

// New builds an Auditor. A nil renderer selects one from the configuration:
// the Chrome renderer when enabled and not in safe mode, the plain HTTP
// renderer otherwise.
func New(cfg *config.Config, renderer render.Renderer, logger *logrus.Entry) *Auditor {
	if renderer == nil {
		if cfg.Chrome.Enabled && !cfg.SafeMode {
			renderer = render.NewChromeRenderer(render.ChromeOptions{
				ChromePath: cfg.Chrome.Path,
				UserAgent:  cfg.UserAgent,
				Headless:   cfg.Chrome.HeadlessEnabled(),
			}, logger)
		} else {
			renderer = render.NewHTTPRenderer(cfg.RequestTimeout, cfg.UserAgent)
		}
	}
	return &Auditor{
		cfg:      cfg,
		renderer: renderer,
		client:   &http.Client{Timeout: cfg.RequestTimeout},
		log:      logger,
	}
}

// Crawl runs the bounded crawl for a seed URL. The only hard errors are an
// invalid seed and a seed the site's robots.txt forbids; every in-crawl
// failure is embedded in the returned page records.
func (a *Auditor) Crawl(ctx context.Context, seedURL string) (*models.CrawlResult, error) {
	seed, err := parse.ParseSeed(seedURL)
	if err != nil {
		return nil, err
	}
	crawlLog := a.log.WithField("site", seed.Hostname())

	robots := fetch.LoadRobots(ctx, a.client, seed, a.cfg.UserAgent, crawlLog)
	if !robots.IsAllowed(seed) {
		return nil, fmt.Errorf("%w: %s", utils.ErrRobotsDisallowed, seedURL)
	}

	fetcher := fetch.NewFetcher(a.renderer, a.cfg, seed.Hostname(), crawlLog)
	return crawler.New(a.cfg, fetcher, robots, seed, crawlLog).Run(ctx), nil
}

// Audit composes Crawl, the link verifier, the rule engine and the scorer
// into a full report. Same error contract as Crawl.
func (a *Auditor) Audit(ctx context.Context, seedURL string) (*models.Report, error) {
	result, err := a.Crawl(ctx, seedURL)
	if err != nil {
		return nil, err
	}
	auditLog := a.log.WithField("site", score.Domain(result))

	issues := checks.NewEngine(a.cfg, auditLog).Run(ctx, result)

	linkChecks := verify.NewVerifier(a.cfg, auditLog).Verify(ctx, result)
	if broken := verify.BrokenLinkIssue(linkChecks); broken != nil {
		issues = append(issues, *broken)
	}

	whitelisted := a.cfg.IsWhitelisted(score.Domain(result))
	report := score.BuildReport(result, issues, whitelisted)

	auditLog.WithFields(logrus.Fields{
		"score":     report.Score,
		"score_raw": report.ScoreRaw,
		"issues":    len(report.Issues),
		"pages":     report.PagesCrawled,
	}).Info("Audit finished")
	return report, nil
}
