package checks

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"site-auditor/pkg/config"
	"site-auditor/pkg/models"
	"site-auditor/pkg/utils"
)

// Rule inspects a finished crawl and reports zero or more issues. Most rules
// are pure functions over the CrawlResult; the few that probe the live site
// (sitemap existence) respect the passed context.
type Rule struct {
	ID  string
	Run func(ctx context.Context, result *models.CrawlResult) []models.Issue
}

// Engine owns the rule catalog and executes it in category groups. A panic
// in one rule never takes down the audit, and a stuck group is abandoned at
// the phase deadline with the issues gathered so far.
type Engine struct {
	cfg    *config.Config
	client *http.Client
	log    *logrus.Entry
	groups map[models.Category][]Rule
}

func NewEngine(cfg *config.Config, log *logrus.Entry) *Engine {
	return NewEngineWithClient(cfg, &http.Client{Timeout: cfg.ProbeTimeout}, log)
}

// NewEngineWithClient injects the client used by the network-probing rules.
func NewEngineWithClient(cfg *config.Config, client *http.Client, log *logrus.Entry) *Engine {
	e := &Engine{cfg: cfg, client: client, log: log}
	e.groups = map[models.Category][]Rule{
		models.CategoryTechnical: e.technicalRules(),
		models.CategorySEO:       e.seoRules(),
		models.CategoryLegal:     e.legalRules(),
		models.CategoryUX:        e.uxRules(),
	}
	return e
}

// Run evaluates every rule group concurrently and returns the collected
// issues sorted by category, severity and ID. Groups still running at the
// phase deadline are abandoned; their finished rules' issues are kept.
func (e *Engine) Run(ctx context.Context, result *models.CrawlResult) []models.Issue {
	phaseCtx, cancel := context.WithTimeout(ctx, e.cfg.CheckTimeout)
	defer cancel()

	start := time.Now()
	var mu sync.Mutex
	var issues []models.Issue

	done := make(chan struct{})
	var wg sync.WaitGroup
	for category, rules := range e.groups {
		wg.Add(1)
		go func(category models.Category, rules []Rule) {
			defer wg.Done()
			groupLog := e.log.WithField("category", string(category))
			for _, rule := range rules {
				if phaseCtx.Err() != nil {
					groupLog.WithField("rule", rule.ID).Warn("Check phase deadline reached, skipping remaining rules")
					return
				}
				found := e.runRule(phaseCtx, rule, result, groupLog)
				if len(found) == 0 {
					continue
				}
				mu.Lock()
				issues = append(issues, found...)
				mu.Unlock()
			}
		}(category, rules)
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-phaseCtx.Done():
		// Partial results: whatever the groups published before the
		// deadline is what the report gets.
	}

	mu.Lock()
	out := make([]models.Issue, len(issues))
	copy(out, issues)
	mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		if out[i].Severity != out[j].Severity {
			return out[i].Severity.Rank() > out[j].Severity.Rank()
		}
		return out[i].ID < out[j].ID
	})

	e.log.WithFields(logrus.Fields{
		"issues":  len(out),
		"elapsed": time.Since(start),
	}).Info("Check phase finished")
	return out
}

// runRule executes one rule with panic isolation.
func (e *Engine) runRule(ctx context.Context, rule Rule, result *models.CrawlResult, log *logrus.Entry) (found []models.Issue) {
	defer func() {
		if r := recover(); r != nil {
			panicErr := fmt.Errorf("%w: rule %s: %v", utils.ErrCheckPanicked, rule.ID, r)
			log.WithFields(logrus.Fields{
				"rule":           rule.ID,
				"error_category": utils.CategorizeError(panicErr),
				"stack_trace":    string(debug.Stack()),
			}).Errorf("PANIC recovered in check rule: %v", r)
			found = nil
		}
	}()
	return rule.Run(ctx, result)
}
