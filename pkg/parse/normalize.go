package parse

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"strings"

	"site-auditor/pkg/utils"
)

// trackingParams are query parameters stripped during normalization because
// they never change the document a URL addresses.
var trackingParams = map[string]bool{
	"gclid":    true,
	"fbclid":   true,
	"msclkid":  true,
	"mc_cid":   true,
	"mc_eid":   true,
	"ref":      true,
	"referrer": true,
}

// ignoredExtensions covers binary and media files the crawler never fetches.
var ignoredExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".svg": true, ".ico": true, ".bmp": true, ".avif": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true,
	".zip": true, ".tar": true, ".gz": true, ".rar": true, ".7z": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".webm": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true, ".otf": true,
	".css": true, ".js": true, ".json": true, ".xml": true,
	".exe": true, ".dmg": true, ".apk": true,
}

// Normalize standardizes a URL for storage and display.
// It lowercases the scheme and host, removes default ports (80 for http, 443
// for https), removes trailing slashes from paths (unless root "/"), ensures
// an empty path becomes "/", strips the fragment, and removes tracking query
// parameters (utm_*, gclid, fbclid, ...). The remaining query is kept but
// re-encoded in sorted order so the operation is idempotent.
// Does not modify the input *url.URL.
func Normalize(u *url.URL) string {
	if u == nil {
		return ""
	}
	// Work on a copy
	normalized := *u

	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = strings.ToLower(normalized.Host)

	// Remove default ports
	host, port, err := net.SplitHostPort(normalized.Host)
	if err == nil { // Host included a port
		if (normalized.Scheme == "http" && port == "80") ||
			(normalized.Scheme == "https" && port == "443") {
			normalized.Host = host
		}
	}

	// Path normalization
	if normalized.Path == "" {
		normalized.Path = "/"
	} else if len(normalized.Path) > 1 && strings.HasSuffix(normalized.Path, "/") {
		normalized.Path = normalized.Path[:len(normalized.Path)-1]
	}

	// Strip tracking parameters, keep the rest in sorted encoding
	if normalized.RawQuery != "" {
		q := normalized.Query()
		for key := range q {
			if isTrackingParam(key) {
				q.Del(key)
			}
		}
		normalized.RawQuery = q.Encode()
	}

	normalized.Fragment = ""
	normalized.RawFragment = ""

	return normalized.String()
}

// NormalizeForComparison is Normalize with the entire query string removed.
// It is used exclusively for visited-set membership, so /page?x=1 and
// /page?x=2 count as the same crawl target.
func NormalizeForComparison(u *url.URL) string {
	if u == nil {
		return ""
	}
	stripped := *u
	stripped.RawQuery = ""
	return Normalize(&stripped)
}

func isTrackingParam(key string) bool {
	lower := strings.ToLower(key)
	return trackingParams[lower] || strings.HasPrefix(lower, "utm_")
}

// SameBaseDomain reports whether two hostnames share their last two DNS
// labels, so www.example.com and shop.example.com count as the same site.
func SameBaseDomain(a, b string) bool {
	return BaseDomain(a) != "" && BaseDomain(a) == BaseDomain(b)
}

// BaseDomain returns the last two labels of a hostname ("shop.example.com"
// -> "example.com"). Single-label hosts (localhost, bare IP labels) are
// returned unchanged.
func BaseDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return ""
	}
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// HasIgnoredExtension reports whether the URL path ends in a file extension
// the crawler skips (images, binaries, archives, style/script assets).
func HasIgnoredExtension(u *url.URL) bool {
	if u == nil {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	return ignoredExtensions[ext]
}

// ParseSeed validates and parses a seed URL. Only http/https URLs with a
// hostname are accepted; a bare domain without a scheme is rejected rather
// than guessed at. This is the single hard-error path of the pipeline.
func ParseSeed(raw string) (*url.URL, error) {
	parsed, err := url.ParseRequestURI(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %q: %v", utils.ErrInvalidSeed, raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q has unsupported scheme %q (want http or https)", utils.ErrInvalidSeed, raw, parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return nil, fmt.Errorf("%w: %q has no host", utils.ErrInvalidSeed, raw)
	}
	return parsed, nil
}

// Resolve resolves a possibly-relative href against a base URL and returns
// the absolute URL, or nil for non-navigational schemes (mailto:, tel:,
// javascript:, data:) and empty or fragment-only hrefs.
func Resolve(base *url.URL, href string) *url.URL {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return nil
	}
	resolved, err := base.Parse(href)
	if err != nil {
		return nil
	}
	switch resolved.Scheme {
	case "http", "https":
		return resolved
	}
	return nil
}
