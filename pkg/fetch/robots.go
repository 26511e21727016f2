package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"

	"site-auditor/pkg/models"
)

// RobotsPolicy answers IsAllowed for one site's robots.txt, loaded once per
// crawl. A missing, unreachable or unparseable robots.txt yields a fail-open
// policy that allows everything; that is never an error.
type RobotsPolicy struct {
	group *robotstxt.Group
	rule  *models.RobotsRule
	found bool
}

// Found reports whether a robots.txt was successfully fetched and parsed.
func (p *RobotsPolicy) Found() bool { return p.found }

// Rule returns the Allow/Disallow prefixes of the matched agent group, or nil
// when no robots.txt was found. The returned value is shared, never copied.
func (p *RobotsPolicy) Rule() *models.RobotsRule { return p.rule }

// IsAllowed applies longest-matching-prefix semantics (Allow overriding a
// shorter Disallow) for the crawl's user-agent group.
func (p *RobotsPolicy) IsAllowed(u *url.URL) bool {
	if !p.found || p.group == nil {
		return true
	}
	return p.group.Test(u.RequestURI())
}

// LoadRobots fetches and parses <scheme>://<host>/robots.txt for the seed.
// Fetch or parse failure is logged and treated as fully allowed.
func LoadRobots(ctx context.Context, client *http.Client, seed *url.URL, userAgent string, log *logrus.Entry) *RobotsPolicy {
	robotsURL := &url.URL{Scheme: seed.Scheme, Host: seed.Host, Path: "/robots.txt"}
	robotsLog := log.WithField("robots_url", robotsURL.String())

	failOpen := &RobotsPolicy{found: false}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		robotsLog.Warnf("Creating robots.txt request failed, allowing all: %v", err)
		return failOpen
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		robotsLog.Infof("robots.txt unreachable, allowing all: %v", err)
		return failOpen
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		robotsLog.WithField("status_code", resp.StatusCode).Info("No usable robots.txt, allowing all")
		return failOpen
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
	if err != nil {
		robotsLog.Warnf("Reading robots.txt failed, allowing all: %v", err)
		return failOpen
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		robotsLog.Warnf("Parsing robots.txt failed, allowing all: %v", err)
		return failOpen
	}

	policy := &RobotsPolicy{
		group: data.FindGroup(userAgent),
		rule:  extractRule(string(body), userAgent),
		found: true,
	}
	robotsLog.WithFields(logrus.Fields{
		"disallow_rules": len(policy.rule.Disallowed),
		"allow_rules":    len(policy.rule.Allowed),
	}).Info("Loaded robots.txt")
	return policy
}

// extractRule collects the raw Allow/Disallow path prefixes of the rule group
// matching the crawler's user agent (or the wildcard group). The robotstxt
// library answers IsAllowed; this keeps the matched prefixes visible in the
// crawl metadata.
func extractRule(body, userAgent string) *models.RobotsRule {
	type group struct {
		agents     []string
		disallowed []string
		allowed    []string
	}

	var groups []*group
	var current *group
	lastWasAgent := false

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}
		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		field = strings.ToLower(strings.TrimSpace(field))
		value = strings.TrimSpace(value)

		switch field {
		case "user-agent":
			if !lastWasAgent {
				current = &group{}
				groups = append(groups, current)
			}
			if current != nil {
				current.agents = append(current.agents, strings.ToLower(value))
			}
			lastWasAgent = true
		case "disallow":
			if current != nil && value != "" {
				current.disallowed = append(current.disallowed, value)
			}
			lastWasAgent = false
		case "allow":
			if current != nil && value != "" {
				current.allowed = append(current.allowed, value)
			}
			lastWasAgent = false
		default:
			lastWasAgent = false
		}
	}

	agentLower := strings.ToLower(userAgent)
	var wildcard *group
	var matched *group
	matchedLen := 0
	for _, g := range groups {
		for _, agent := range g.agents {
			if agent == "*" {
				if wildcard == nil {
					wildcard = g
				}
				continue
			}
			if strings.Contains(agentLower, agent) && len(agent) > matchedLen {
				matched = g
				matchedLen = len(agent)
			}
		}
	}
	if matched == nil {
		matched = wildcard
	}
	if matched == nil {
		return &models.RobotsRule{}
	}
	return &models.RobotsRule{Disallowed: matched.disallowed, Allowed: matched.allowed}
}
