// PDF extraction. No pack repo imports a PDF library, so ledongthuc/pdf is
// named here as a plain ecosystem choice rather than grounded on a
// retrieved example (see DESIGN.md).
package extract

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/cortexlabs/iris/internal/types"
)

// PDFResult holds the extracted body text plus the metadata fields spec
// §4.7 lifts from the document info dictionary.
type PDFResult struct {
	Text     string
	Metadata *types.PageMetadata
}

// PDF extracts per-page text (newline-joined) and document metadata from
// raw PDF bytes. title/author/creationDate are lifted from the info
// dictionary; a leading "D:" prefix is stripped from creationDate per
// testable property #12.
func PDF(data []byte) (*PDFResult, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	pageCount := reader.NumPage()
	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	meta := &types.PageMetadata{PDFPages: pageCount}

	info := reader.Trailer().Key("Info")
	if !info.IsNull() {
		meta.Title = info.Key("Title").Text()
		meta.Author = info.Key("Author").Text()
		meta.PDFCreatedDate = strings.TrimPrefix(info.Key("CreationDate").Text(), "D:")
	}

	return &PDFResult{
		Text:     strings.TrimSpace(b.String()),
		Metadata: meta,
	}, nil
}
