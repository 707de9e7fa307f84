// Package models defines the data structures shared by the publish pipeline and the docs QA backend.
package models

// Draft is the article being assembled by a single publish run.
// Each pipeline stage fills in or rewrites a field; nothing is persisted.
type Draft struct {
	SourceURL    string
	Title        string
	LockTitle    bool
	Text         string
	Markdown     string // page body as markdown, optional summarizer input
	MainPoints   []string
	Links        []Link
	Tags         []string
	CanonicalURL string
	BannerURL    string

	// Body is the final markdown sent to the publisher.
	Body string
}

// Link is an anchor extracted from the source page.
type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}
