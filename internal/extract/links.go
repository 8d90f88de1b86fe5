package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cortexlabs/iris/internal/types"
)

var excludedPrefixes = []string{"#", "javascript:", "mailto:", "tel:"}

const maxLinkTextLen = 200

// Links extracts all <a href> per spec §4.7: excluded prefixes dropped,
// resolved against pageURL, deduplicated by exact absolute URL in
// first-seen order, link text trimmed and truncated.
func Links(doc *goquery.Document, pageURL *url.URL) []types.ExtractedLink {
	seen := make(map[string]bool)
	var links []types.ExtractedLink

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || hasExcludedPrefix(href) {
			return
		}

		absolute := resolve(pageURL, href)
		if seen[absolute] {
			return
		}
		seen[absolute] = true

		text := strings.TrimSpace(sel.Text())
		if len(text) > maxLinkTextLen {
			text = text[:maxLinkTextLen]
		}

		links = append(links, types.ExtractedLink{
			URL:        absolute,
			Text:       text,
			IsExternal: isExternal(pageURL, absolute),
		})
	})

	return links
}

func hasExcludedPrefix(href string) bool {
	lower := strings.ToLower(href)
	for _, prefix := range excludedPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func isExternal(pageURL *url.URL, absolute string) bool {
	if pageURL == nil {
		return false
	}
	u, err := url.Parse(absolute)
	if err != nil {
		return false
	}
	return !strings.EqualFold(u.Host, pageURL.Host)
}
