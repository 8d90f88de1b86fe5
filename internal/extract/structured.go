// Structured-data extraction. JSON-LD parsing is grounded on the same
// goquery document used for metadata/links; microdata itemtype leaf-name
// extraction is grounded on internal/parser/xpath.go
// (htmlquery.QueryAll + htmlquery.SelectAttr), retargeted from a
// configurable rule engine to a fixed `//*[@itemtype]` query.
package extract

import (
	"encoding/json"
	"path"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"

	"github.com/cortexlabs/iris/internal/types"
)

// Structured extracts JSON-LD blocks and the derived schema.org type union.
// Returns nil when nothing is found, per spec §4.7.
func Structured(htmlSrc string, doc *goquery.Document) *types.StructuredData {
	var jsonLD []map[string]any
	var schemaTypes []string

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		blocks, blockTypes := parseJSONLDBlock(sel.Text())
		jsonLD = append(jsonLD, blocks...)
		schemaTypes = append(schemaTypes, blockTypes...)
	})

	schemaTypes = append(schemaTypes, microdataTypes(htmlSrc)...)

	if len(jsonLD) == 0 && len(schemaTypes) == 0 {
		return nil
	}

	return &types.StructuredData{
		JSONLD:         jsonLD,
		SchemaOrgTypes: sortedUnique(schemaTypes),
	}
}

// parseJSONLDBlock parses one <script type="application/ld+json"> body.
// Malformed blocks are silently skipped; top-level arrays are flattened.
func parseJSONLDBlock(raw string) ([]map[string]any, []string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var single map[string]any
	if err := json.Unmarshal([]byte(raw), &single); err == nil {
		return []map[string]any{single}, schemaTypesOf(single)
	}

	var list []map[string]any
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		var allTypes []string
		for _, block := range list {
			allTypes = append(allTypes, schemaTypesOf(block)...)
		}
		return list, allTypes
	}

	return nil, nil
}

func schemaTypesOf(block map[string]any) []string {
	raw, ok := block["@type"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case string:
		return []string{v}
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// microdataTypes finds every [itemtype] attribute and reduces it to its
// schema.org leaf name, e.g. https://schema.org/Product -> Product.
func microdataTypes(htmlSrc string) []string {
	doc, err := htmlquery.Parse(strings.NewReader(htmlSrc))
	if err != nil {
		return nil
	}

	nodes, err := htmlquery.QueryAll(doc, "//*[@itemtype]")
	if err != nil {
		return nil
	}

	var leaves []string
	for _, n := range nodes {
		itemtype := htmlquery.SelectAttr(n, "itemtype")
		if leaf := leafName(itemtype); leaf != "" {
			leaves = append(leaves, leaf)
		}
	}
	return leaves
}

func leafName(itemtype string) string {
	itemtype = strings.TrimSpace(itemtype)
	if itemtype == "" {
		return ""
	}
	return path.Base(strings.TrimRight(itemtype, "/"))
}

func sortedUnique(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
