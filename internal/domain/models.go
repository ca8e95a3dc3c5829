package domain

import "time"

// Domain contains core models and interfaces.

// Candidate is a fetched headline that has not been extracted, validated or stored yet.
type Candidate struct {
	URL           string
	Title         string
	Description   string
	PublishedAt   time.Time
	SourceName    string
	ImageURL      string
	CategoryToken string
	Category      Category
}

// ExtractionMethod names the extractor stage that produced a text.
type ExtractionMethod string

const (
	MethodReadability ExtractionMethod = "readability"
	MethodSelectors   ExtractionMethod = "selectors"
	MethodParagraphs  ExtractionMethod = "paragraphs"
	MethodStripped    ExtractionMethod = "stripped"
	MethodDescription ExtractionMethod = "description"
)

// ExtractionResult is the raw article text produced by the extractor chain.
type ExtractionResult struct {
	Text      string
	WordCount int
	Method    ExtractionMethod
	ImageURL  string
}

// SummaryMethod tells whether a summary came from the model or the extractive fallback.
type SummaryMethod string

const (
	SummaryLLM        SummaryMethod = "llm"
	SummaryExtractive SummaryMethod = "extractive"
)

// Summary is a bounded-length article summary.
type Summary struct {
	Text      string
	WordCount int
	Method    SummaryMethod
	Model     string
}

// Article is the persisted record.
type Article struct {
	ID            string        `json:"id" gorm:"primaryKey;size:36"`
	Title         string        `json:"titulo" gorm:"not null"`
	URL           string        `json:"url" gorm:"size:2048;uniqueIndex;not null"`
	Category      Category      `json:"categoria" gorm:"size:64;index"`
	SourceName    string        `json:"fuente" gorm:"size:255;index"`
	ImageURL      string        `json:"imagen"`
	PublishedAt   time.Time     `json:"fecha" gorm:"index"`
	Summary       string        `json:"resumen" gorm:"type:text"`
	SummaryMethod SummaryMethod `json:"resumen_metodo" gorm:"size:16"`
	TitleHash     string        `json:"titulo_hash" gorm:"size:32;uniqueIndex;not null"`
	Clicks        int64         `json:"clics" gorm:"not null;default:0"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Stats aggregates store totals.
type Stats struct {
	TotalArticles int64 `json:"total_noticias"`
	TotalClicks   int64 `json:"total_clics"`
	ArticlesToday int64 `json:"noticias_hoy"`
}

// PublishDay truncates t to its UTC calendar day, the granularity records are dated with.
func PublishDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
