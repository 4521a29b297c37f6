package models

// Format names a representation the scraper is asked to return.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// Document is a fetched page in the requested representations. Title is empty
// when the provider did not report one.
type Document struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
	HTML     string `json:"html"`
	Status   int    `json:"status"`
	RenderMS int    `json:"render_ms"`
}

// HasText reports whether the document carries readable text.
func (d Document) HasText() bool { return d.Markdown != "" }
