package providers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StatusError is returned when a feed answers with a non-200 status.
type StatusError struct {
	ProviderID string
	URL        string
	Code       int
	Snippet    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s feed returned status %d body: %s", e.ProviderID, e.Code, e.Snippet)
}

// RateLimited reports whether the feed asked us to slow down.
func (e *StatusError) RateLimited() bool { return e.Code == http.StatusTooManyRequests }

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}

func fetchFeed(ctx context.Context, client HTTPClient, url, providerID string, query, headers map[string]string) ([]byte, error) {
	resp, err := client.GetWithQuery(ctx, url, query, headers)
	if err != nil {
		return nil, fmt.Errorf("fetch %s feed: %w", providerID, err)
	}

	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return nil, &StatusError{
			ProviderID: providerID,
			URL:        url,
			Code:       resp.StatusCode(),
			Snippet:    responseSnippet(body),
		}
	}

	return body, nil
}

// plainText drops markup some feeds embed in descriptions.
func plainText(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "<") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(s)))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
