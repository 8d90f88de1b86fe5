package types

// PageMetadata holds extracted page-level metadata. All fields optional.
type PageMetadata struct {
	Title           string `json:"title,omitempty"`
	Description     string `json:"description,omitempty"`
	OGTitle         string `json:"og_title,omitempty"`
	OGDescription   string `json:"og_description,omitempty"`
	OGImage         string `json:"og_image,omitempty"`
	Language        string `json:"language,omitempty"`
	CanonicalURL    string `json:"canonical_url,omitempty"`
	Author          string `json:"author,omitempty"`
	PublishedDate   string `json:"published_date,omitempty"`
	PDFPages        int    `json:"pdf_pages,omitempty"`
	PDFCreatedDate  string `json:"pdf_created_date,omitempty"`
}

// ExtractedLink is one <a href> discovered in the rendered document.
type ExtractedLink struct {
	URL        string `json:"url"`
	Text       string `json:"text"`
	IsExternal bool   `json:"is_external"`
}

// StructuredData holds JSON-LD blocks and the derived schema.org type set.
type StructuredData struct {
	JSONLD         []map[string]any `json:"json_ld,omitempty"`
	SchemaOrgTypes []string         `json:"schema_org_types,omitempty"`
}

// FetchResponse is the externally visible result of fetch(request).
//
// Invariant: exactly one of Error being set, or at least one of ContentText,
// Metadata, Links, ScreenshotB64, StructuredData, or a non-error empty
// payload (image/unsupported success), is present.
type FetchResponse struct {
	URL            string          `json:"url"`
	StatusCode     int             `json:"status_code"`
	ContentText    *string         `json:"content_text,omitempty"`
	Metadata       *PageMetadata   `json:"metadata,omitempty"`
	Links          []ExtractedLink `json:"links,omitempty"`
	ScreenshotB64  *string         `json:"screenshot_b64,omitempty"`
	StructuredData *StructuredData `json:"structured_data,omitempty"`
	ContentLength  int             `json:"content_length"`
	FetchTimeMs    int64           `json:"fetch_time_ms"`
	Cached         bool            `json:"cached"`
	Error          *FetchError     `json:"error,omitempty"`
}

// Clone returns a deep copy suitable for independent mutation (e.g. before
// stripping the screenshot for cache storage).
func (r *FetchResponse) Clone() *FetchResponse {
	clone := *r
	if r.ContentText != nil {
		v := *r.ContentText
		clone.ContentText = &v
	}
	if r.Metadata != nil {
		m := *r.Metadata
		clone.Metadata = &m
	}
	if r.Links != nil {
		clone.Links = append([]ExtractedLink(nil), r.Links...)
	}
	if r.ScreenshotB64 != nil {
		v := *r.ScreenshotB64
		clone.ScreenshotB64 = &v
	}
	if r.StructuredData != nil {
		sd := *r.StructuredData
		if r.StructuredData.JSONLD != nil {
			sd.JSONLD = append([]map[string]any(nil), r.StructuredData.JSONLD...)
		}
		if r.StructuredData.SchemaOrgTypes != nil {
			sd.SchemaOrgTypes = append([]string(nil), r.StructuredData.SchemaOrgTypes...)
		}
		clone.StructuredData = &sd
	}
	if r.Error != nil {
		e := *r.Error
		clone.Error = &e
	}
	return &clone
}

// BatchFetchResponse is the body of POST /batch's reply.
type BatchFetchResponse struct {
	Results     []*FetchResponse `json:"results"`
	TotalTimeMs int64            `json:"total_time_ms"`
}

// HealthResponse is the body of GET /health's reply.
type HealthResponse struct {
	Status            string `json:"status"`
	Service           string `json:"service"`
	Version           string `json:"version"`
	BrowserConnected  bool   `json:"browser_connected"`
	CacheConnected    bool   `json:"cache_connected"`
	SentinelConnected bool   `json:"sentinel_connected"`
	ActivePages       int    `json:"active_pages"`
	UptimeSeconds     int64  `json:"uptime_seconds"`
}
