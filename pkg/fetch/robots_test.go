package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRobots = `# audit test
User-agent: SiteAuditBot
Disallow: /admin/
Allow: /admin/public/

User-agent: *
Disallow: /private/

Sitemap: https://example.com/sitemap.xml
`

func robotsServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestLoadRobotsMatchedGroup(t *testing.T) {
	server := robotsServer(t, http.StatusOK, sampleRobots)
	client := &http.Client{Timeout: 5 * time.Second}

	policy := LoadRobots(context.Background(), client, mustURL(t, server.URL), "SiteAuditBot/1.0", testLogger())

	require.True(t, policy.Found())
	require.NotNil(t, policy.Rule())
	assert.Equal(t, []string{"/admin/"}, policy.Rule().Disallowed)
	assert.Equal(t, []string{"/admin/public/"}, policy.Rule().Allowed)

	assert.True(t, policy.IsAllowed(mustURL(t, server.URL+"/")))
	assert.False(t, policy.IsAllowed(mustURL(t, server.URL+"/admin/settings")))
	// Longer Allow prefix overrides the shorter Disallow.
	assert.True(t, policy.IsAllowed(mustURL(t, server.URL+"/admin/public/page")))
	// The /private/ rule belongs to the wildcard group, not ours.
	assert.True(t, policy.IsAllowed(mustURL(t, server.URL+"/private/x")))
}

func TestLoadRobotsWildcardFallback(t *testing.T) {
	server := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /secret/\n")
	client := &http.Client{Timeout: 5 * time.Second}

	policy := LoadRobots(context.Background(), client, mustURL(t, server.URL), "SomeOtherBot/2.0", testLogger())

	require.True(t, policy.Found())
	assert.Equal(t, []string{"/secret/"}, policy.Rule().Disallowed)
	assert.False(t, policy.IsAllowed(mustURL(t, server.URL+"/secret/doc")))
	assert.True(t, policy.IsAllowed(mustURL(t, server.URL+"/public")))
}

func TestLoadRobotsMissingFailsOpen(t *testing.T) {
	server := robotsServer(t, http.StatusNotFound, "not found")
	client := &http.Client{Timeout: 5 * time.Second}

	policy := LoadRobots(context.Background(), client, mustURL(t, server.URL), "SiteAuditBot/1.0", testLogger())

	assert.False(t, policy.Found())
	assert.Nil(t, policy.Rule())
	assert.True(t, policy.IsAllowed(mustURL(t, server.URL+"/anything")))
}

func TestLoadRobotsUnreachableFailsOpen(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	seed := server.URL
	server.Close()

	client := &http.Client{Timeout: 500 * time.Millisecond}
	policy := LoadRobots(context.Background(), client, mustURL(t, seed), "SiteAuditBot/1.0", testLogger())

	assert.False(t, policy.Found())
	assert.True(t, policy.IsAllowed(mustURL(t, seed+"/any")))
}

func TestExtractRuleMultipleAgentsPerGroup(t *testing.T) {
	body := "User-agent: alpha\nUser-agent: beta\nDisallow: /a\n\nUser-agent: *\nDisallow: /b\n"

	rule := extractRule(body, "beta-crawler/1.0")
	assert.Equal(t, []string{"/a"}, rule.Disallowed)

	rule = extractRule(body, "gamma/1.0")
	assert.Equal(t, []string{"/b"}, rule.Disallowed)
}

func TestExtractRuleNoGroups(t *testing.T) {
	rule := extractRule("# empty file\n", "SiteAuditBot/1.0")
	require.NotNil(t, rule)
	assert.Empty(t, rule.Disallowed)
	assert.Empty(t, rule.Allowed)
}
