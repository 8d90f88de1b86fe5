package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cortexlabs/iris/internal/types"
)

// Metadata extracts page-level metadata per spec §4.7. pageURL is used to
// resolve relative og:image and canonical-link values.
func Metadata(doc *goquery.Document, pageURL *url.URL) *types.PageMetadata {
	m := &types.PageMetadata{
		Title:       strings.TrimSpace(doc.Find("title").First().Text()),
		Description: metaContent(doc, "name", "description"),
		Author:      metaContent(doc, "name", "author"),
		OGTitle:     metaContent(doc, "property", "og:title"),
		OGDescription: metaContent(doc, "property", "og:description"),
		Language:    strings.TrimSpace(doc.Find("html").First().AttrOr("lang", "")),
	}

	if og := metaContent(doc, "property", "og:image"); og != "" {
		m.OGImage = resolve(pageURL, og)
	}
	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		m.CanonicalURL = resolve(pageURL, href)
	}

	m.PublishedDate = publishedDate(doc)

	if m.Title == "" && m.Description == "" && m.OGTitle == "" && m.OGDescription == "" &&
		m.Language == "" && m.CanonicalURL == "" && m.PublishedDate == "" && m.Author == "" {
		return nil
	}
	return m
}

func metaContent(doc *goquery.Document, attr, value string) string {
	sel := doc.Find("meta[" + attr + `="` + value + `"]`).First()
	content, _ := sel.Attr("content")
	return strings.TrimSpace(content)
}

// publishedDate applies the precedence order from spec §4.7: JSON-LD is
// handled separately by the structured-data extractor, so this covers only
// the meta/time-element sources.
func publishedDate(doc *goquery.Document) string {
	if v := metaContent(doc, "property", "article:published_time"); v != "" {
		return v
	}
	for _, name := range []string{"date", "pubdate", "publishdate"} {
		if v := metaContent(doc, "name", name); v != "" {
			return v
		}
	}
	if v := metaContent(doc, "itemprop", "datePublished"); v != "" {
		return v
	}
	if dt, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		return strings.TrimSpace(dt)
	}
	return ""
}

func resolve(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
