package extract

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func mustParse(t *testing.T, rawURL string) *url.URL {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse %q: %v", rawURL, err)
	}
	return u
}

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func TestMetadataExtractsCoreFields(t *testing.T) {
	html := `<html lang="en"><head>
		<title>Example Page</title>
		<meta name="description" content="a description">
		<meta property="og:title" content="OG Title">
		<link rel="canonical" href="/canonical">
		<meta property="article:published_time" content="2024-01-01T00:00:00Z">
	</head><body></body></html>`

	doc := mustDoc(t, html)
	pageURL := mustParse(t, "https://example.com/page")

	m := Metadata(doc, pageURL)
	if m == nil {
		t.Fatal("expected non-nil metadata")
	}
	if m.Title != "Example Page" {
		t.Errorf("title = %q", m.Title)
	}
	if m.Description != "a description" {
		t.Errorf("description = %q", m.Description)
	}
	if m.CanonicalURL != "https://example.com/canonical" {
		t.Errorf("canonical_url = %q", m.CanonicalURL)
	}
	if m.Language != "en" {
		t.Errorf("language = %q", m.Language)
	}
	if m.PublishedDate != "2024-01-01T00:00:00Z" {
		t.Errorf("published_date = %q", m.PublishedDate)
	}
}

func TestMetadataReturnsNilWhenEmpty(t *testing.T) {
	doc := mustDoc(t, `<html><head></head><body><p>hi</p></body></html>`)
	m := Metadata(doc, mustParse(t, "https://example.com/"))
	if m != nil {
		t.Fatalf("expected nil metadata, got %+v", m)
	}
}

func TestLinksDedupesAndExcludesPrefixes(t *testing.T) {
	html := `<body>
		<a href="/a">A</a>
		<a href="/a">A again</a>
		<a href="https://other.example/b">B</a>
		<a href="#section">anchor</a>
		<a href="javascript:void(0)">js</a>
		<a href="mailto:x@example.com">mail</a>
	</body>`

	doc := mustDoc(t, html)
	links := Links(doc, mustParse(t, "https://example.com/page"))

	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d: %+v", len(links), links)
	}
	if links[0].URL != "https://example.com/a" || links[0].IsExternal {
		t.Errorf("unexpected first link: %+v", links[0])
	}
	if links[1].URL != "https://other.example/b" || !links[1].IsExternal {
		t.Errorf("unexpected second link: %+v", links[1])
	}
}

func TestLinksTruncatesText(t *testing.T) {
	longText := strings.Repeat("x", 300)
	html := `<body><a href="/a">` + longText + `</a></body>`
	doc := mustDoc(t, html)
	links := Links(doc, mustParse(t, "https://example.com/"))
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	if len(links[0].Text) != 200 {
		t.Errorf("expected text truncated to 200 chars, got %d", len(links[0].Text))
	}
}

func TestStructuredParsesJSONLDAndSkipsMalformed(t *testing.T) {
	html := `<html><body>
		<script type="application/ld+json">{"@type": "Product", "name": "Widget"}</script>
		<script type="application/ld+json">not json</script>
		<div itemscope itemtype="https://schema.org/Organization"></div>
	</body></html>`

	doc := mustDoc(t, html)
	sd := Structured(html, doc)
	if sd == nil {
		t.Fatal("expected non-nil structured data")
	}
	if len(sd.JSONLD) != 1 {
		t.Fatalf("expected 1 valid JSON-LD block, got %d", len(sd.JSONLD))
	}

	want := []string{"Organization", "Product"}
	if len(sd.SchemaOrgTypes) != len(want) {
		t.Fatalf("schema_org_types = %v, want %v", sd.SchemaOrgTypes, want)
	}
	for i, w := range want {
		if sd.SchemaOrgTypes[i] != w {
			t.Errorf("schema_org_types[%d] = %q, want %q", i, sd.SchemaOrgTypes[i], w)
		}
	}
}

func TestStructuredReturnsNilWhenAbsent(t *testing.T) {
	html := `<html><body><p>nothing here</p></body></html>`
	doc := mustDoc(t, html)
	if sd := Structured(html, doc); sd != nil {
		t.Fatalf("expected nil, got %+v", sd)
	}
}

func TestTextKeepsBodyTextAndDropsScript(t *testing.T) {
	html := `<html><body><script>ignored();</script><p>Hello world</p></body></html>`
	text := Text(html, mustParse(t, "https://example.com/"), 1000)
	if !strings.Contains(text, "Hello world") {
		t.Errorf("expected extracted text to contain body content, got %q", text)
	}
	if strings.Contains(text, "ignored()") {
		t.Errorf("expected script content to be stripped, got %q", text)
	}
}

func TestTextTruncatesToMaxLen(t *testing.T) {
	html := "<html><body><p>" + strings.Repeat("a", 500) + "</p></body></html>"
	text := Text(html, mustParse(t, "https://example.com/"), 50)
	if len([]rune(text)) > 50 {
		t.Errorf("expected truncation to 50 runes, got %d", len([]rune(text)))
	}
}
