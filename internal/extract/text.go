// Package extract implements the Extractors (spec §4.7): text, metadata,
// links, structured data, and PDF. The primary HTML text extractor is
// grounded on the pack's only go-readability call site
// (other_examples/Tsuchiya2-catchup-feed-backend's readability.go,
// readability.FromReader + Article.TextContent/Content fallback); the DOM
// tree-walk fallback is grounded on internal/parser/dom.go
// goquery idiom (doc.Find/.Each/.Text), generalized from selector-rule
// traversal to boilerplate stripping.
package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// boilerplateTags are dropped before DOM-walk fallback text extraction.
var boilerplateTags = map[string]bool{
	"script": true, "style": true, "nav": true, "footer": true,
	"header": true, "aside": true, "noscript": true, "iframe": true, "svg": true,
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Text extracts readable body text from html, truncated to maxLen runes.
// Prefers a readability-style extractor; falls back to a DOM tree-walk that
// strips the same boilerplate tag set when readability yields nothing.
func Text(html string, pageURL *url.URL, maxLen int) string {
	text := readabilityText(html, pageURL)
	if text == "" {
		text = domWalkText(html)
	}
	return truncate(text, maxLen)
}

func readabilityText(html string, pageURL *url.URL) string {
	article, err := readability.FromReader(strings.NewReader(html), pageURL)
	if err != nil {
		return ""
	}
	if article.TextContent != "" {
		return strings.TrimSpace(article.TextContent)
	}
	return strings.TrimSpace(article.Content)
}

func domWalkText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find("script, style, nav, footer, header, aside, noscript, iframe, svg").Remove()

	var b strings.Builder
	doc.Find("body").Each(func(_ int, body *goquery.Selection) {
		walkBlocks(body, &b)
	})

	text := b.String()
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// blockLevel mirrors the set of elements that should force a separator when
// walking text nodes, so paragraphs aren't smashed together.
var blockLevel = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "tr": true, "section": true,
	"article": true, "blockquote": true,
}

func walkBlocks(sel *goquery.Selection, b *strings.Builder) {
	sel.Contents().Each(func(_ int, child *goquery.Selection) {
		if goquery.NodeName(child) == "#text" {
			if t := strings.TrimSpace(child.Text()); t != "" {
				b.WriteString(t)
				b.WriteString(" ")
			}
			return
		}
		if boilerplateTags[goquery.NodeName(child)] {
			return
		}
		walkBlocks(child, b)
		if blockLevel[goquery.NodeName(child)] {
			b.WriteString("\n")
		}
	})
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}
