package fetch

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"site-auditor/pkg/models"
	"site-auditor/pkg/parse"
	"site-auditor/pkg/render"
	"site-auditor/pkg/utils"
)

// buildRecord turns a render result into a PageRecord. HTML-compatible
// documents are fully parsed; everything else (and error statuses without a
// body) gets a minimal record so broken pages remain visible in the report.
func (f *Fetcher) buildRecord(rawURL string, depth int, res *render.Result, log *logrus.Entry) *models.PageRecord {
	rec := &models.PageRecord{
		RequestedURL:  rawURL,
		FinalURL:      res.FinalURL,
		StatusCode:    res.StatusCode,
		Depth:         depth,
		ContentType:   res.ContentType,
		TTFB:          res.TTFB,
		LoadTime:      res.LoadTime,
		RedirectChain: res.RedirectChain,
		ByteSize:      res.ByteSize,
	}
	if rec.FinalURL == "" {
		rec.FinalURL = rawURL
	}
	rec.Errors = append(rec.Errors, res.ConsoleErrors...)
	rec.Errors = append(rec.Errors, res.RequestErrors...)

	if res.HTML == "" {
		return rec
	}

	base, err := url.Parse(rec.FinalURL)
	if err != nil {
		log.Warnf("Unparseable final URL %q, skipping document extraction: %v", rec.FinalURL, err)
		return rec
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.HTML))
	if err != nil {
		parseErr := fmt.Errorf("%w: HTML of %q: %w", utils.ErrParsing, rec.FinalURL, err)
		log.WithField("error_category", utils.CategorizeError(parseErr)).Warnf("Parsing HTML failed: %v", err)
		rec.Errors = append(rec.Errors, parseErr.Error())
		return rec
	}

	rec.RawHTML = res.HTML
	f.extractDocument(rec, doc, base)
	return rec
}

func (f *Fetcher) extractDocument(rec *models.PageRecord, doc *goquery.Document, base *url.URL) {
	rec.Title = strings.TrimSpace(doc.Find("head title").First().Text())
	rec.Lang = strings.TrimSpace(doc.Find("html").AttrOr("lang", ""))
	rec.ScriptCount = doc.Find("script").Length()

	rec.Meta = make(map[string]string)
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok {
			name, ok = s.Attr("property")
		}
		if !ok {
			return
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return
		}
		if _, exists := rec.Meta[name]; !exists {
			rec.Meta[name] = strings.TrimSpace(s.AttrOr("content", ""))
		}
	})

	doc.Find("h1").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			rec.H1 = append(rec.H1, t)
		}
	})
	doc.Find("h2").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			rec.H2 = append(rec.H2, t)
		}
	})

	if href, ok := doc.Find(`head link[rel="canonical"]`).First().Attr("href"); ok {
		if resolved := parse.Resolve(base, href); resolved != nil {
			rec.CanonicalURL = parse.Normalize(resolved)
		}
	}
	doc.Find("head link[rel]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel := strings.ToLower(s.AttrOr("rel", ""))
		if strings.Contains(rel, "icon") {
			rec.HasFavicon = true
			return false
		}
		return true
	})

	rec.Text = visibleText(doc)
	rec.WordCount = len(strings.Fields(rec.Text))

	f.extractLinks(rec, doc, base)
	extractImages(rec, doc, base)
}

// extractLinks collects deduplicated outbound links, split into internal
// (same base domain as the seed) and external.
func (f *Fetcher) extractLinks(rec *models.PageRecord, doc *goquery.Document, base *url.URL) {
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		resolved := parse.Resolve(base, s.AttrOr("href", ""))
		if resolved == nil {
			return
		}
		normalized := parse.Normalize(resolved)
		if seen[normalized] {
			return
		}
		seen[normalized] = true
		if parse.SameBaseDomain(resolved.Hostname(), f.seedHost) {
			rec.InternalLinks = append(rec.InternalLinks, normalized)
		} else {
			rec.ExternalLinks = append(rec.ExternalLinks, normalized)
		}
	})
}

func extractImages(rec *models.PageRecord, doc *goquery.Document, base *url.URL) {
	seen := make(map[string]bool)
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src := s.AttrOr("src", "")
		if src == "" {
			src = s.AttrOr("data-src", "")
		}
		resolved := parse.Resolve(base, src)
		if resolved == nil {
			return
		}
		u := resolved.String()
		if seen[u] {
			return
		}
		seen[u] = true
		rec.Images = append(rec.Images, models.ImageRef{
			URL: u,
			Alt: strings.TrimSpace(s.AttrOr("alt", "")),
		})
	})
}

// visibleText extracts the body text with script/style/template content
// removed and whitespace collapsed.
func visibleText(doc *goquery.Document) string {
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return ""
	}
	clone := body.Clone()
	clone.Find("script, style, noscript, template, iframe").Remove()
	return strings.Join(strings.Fields(clone.Text()), " ")
}
