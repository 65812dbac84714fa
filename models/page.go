package models

// Page is the rendered result of one fetch cycle.
type Page struct {
	// URL is the requested target URL.
	URL string

	// FinalURL is the location after redirects, when known.
	FinalURL string

	// Title is the document title (best-effort).
	Title string

	// HTML is the rendered top-level document markup.
	HTML string

	// FrameCount is the number of embedded frames found on the page.
	FrameCount int

	// FrameHTML is the rendered markup of the first embedded frame, or ""
	// when the page has no frames or the frame could not be entered.
	FrameHTML string

	// FetchMethod records which engine produced the page: "browser" or "http".
	FetchMethod string
}

// ExtractionSource returns the markup field extraction should run against:
// the first embedded frame when one was captured, the top-level document otherwise.
func (p *Page) ExtractionSource() string {
	if p.FrameHTML != "" {
		return p.FrameHTML
	}
	return p.HTML
}
