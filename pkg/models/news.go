package models

// NewsArticle is one automotive news item produced by the news search
// workflow.
type NewsArticle struct {
	Title     string `json:"title"`
	SourceURL string `json:"sourceUrl"`
	Summary   string `json:"summary"`
	Content   string `json:"content"`
}
