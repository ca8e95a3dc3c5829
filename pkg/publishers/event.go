package publishers

import (
	"time"

	"github.com/samvad-hq/samvad-news-digest/internal/domain"
)

// EventArticleStored is emitted after an article is persisted.
const EventArticleStored = "article.stored"

// Event represents the payload published downstream.
type Event struct {
	Type          string               `json:"type"`
	Category      domain.Category      `json:"category"`
	Source        string               `json:"source"`
	SummaryMethod domain.SummaryMethod `json:"summary_method"`
	Article       domain.Article       `json:"article"`
	StoredAt      time.Time            `json:"stored_at"`
}

// NewEvent constructs an article.stored Event for a persisted article.
func NewEvent(article domain.Article) Event {
	return Event{
		Type:          EventArticleStored,
		Category:      article.Category,
		Source:        article.SourceName,
		SummaryMethod: article.SummaryMethod,
		Article:       article,
		StoredAt:      time.Now().UTC(),
	}
}

// attributes are the routing attributes attached to queue and topic messages.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"event_type":     e.Type,
		"category":       string(e.Category),
		"summary_method": string(e.SummaryMethod),
	}
}
