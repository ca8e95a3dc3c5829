// Package extractor turns an article page into plain text through an ordered chain of strategies.
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samvad-hq/samvad-news-digest/internal/domain"
	"github.com/samvad-hq/samvad-news-digest/internal/logger"
	"github.com/samvad-hq/samvad-news-digest/internal/textutil"
	"github.com/samvad-hq/samvad-news-digest/pkg/httpclient"
)

const (
	maxHTMLBodyBytes = 2 << 20 // 2 MiB
	maxTextWords     = 1500
)

// Options holds the minimum word count each stage must reach.
type Options struct {
	ReadabilityMinWords int
	SelectorMinWords    int
	ParagraphsMinWords  int
	ParagraphMinChars   int
	StrippedMinWords    int
	DescriptionMinWords int
	UserAgent           string

	// Degraded is set when no summary model is available; the markup-stripping
	// stage then accepts StrippedMinWordsDegraded words.
	Degraded                 bool
	StrippedMinWordsDegraded int
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		ReadabilityMinWords: 50,
		SelectorMinWords:    50,
		ParagraphsMinWords:  40,
		ParagraphMinChars:   40,
		StrippedMinWords:    80,
		DescriptionMinWords: 30,

		StrippedMinWordsDegraded: 50,
	}
}

func (o Options) strippedMinWords() int {
	if o.Degraded && o.StrippedMinWordsDegraded > 0 {
		return o.StrippedMinWordsDegraded
	}
	return o.StrippedMinWords
}

// Extractor runs the extraction chain for a candidate.
type Extractor struct {
	client httpclient.Client
	opts   Options
	log    logger.Logger
}

// New constructs an Extractor with the provided HTTP client.
func New(client httpclient.Client, opts Options, log logger.Logger) *Extractor {
	return &Extractor{client: client, opts: opts, log: logger.Ensure(log)}
}

// page is a fetched article page.
type page struct {
	raw []byte
	doc *goquery.Document
}

// Extract returns the first stage result that meets its threshold, or a
// *domain.ExtractionExhaustedError when none does.
func (e *Extractor) Extract(ctx context.Context, c domain.Candidate) (domain.ExtractionResult, error) {
	var attempts []domain.StageAttempt

	pg, err := e.fetchPage(ctx, c.URL)
	if err != nil {
		e.log.WarnObj("article page fetch failed", "extract_error", map[string]any{
			"url":   c.URL,
			"error": err.Error(),
		})
		attempts = append(attempts, domain.StageAttempt{Method: domain.MethodReadability, Err: err.Error()})
	} else {
		image := resolveURL(pageImage(pg.doc), c.URL)
		stripBoilerplate(pg.doc)

		stages := []struct {
			method    domain.ExtractionMethod
			threshold int
			run       func() string
		}{
			{domain.MethodReadability, e.opts.ReadabilityMinWords, func() string { return readability(pg.doc) }},
			{domain.MethodSelectors, e.opts.SelectorMinWords, func() string { return selectorText(pg.doc, e.opts.SelectorMinWords) }},
			{domain.MethodParagraphs, e.opts.ParagraphsMinWords, func() string { return paragraphText(pg.doc, e.opts.ParagraphMinChars) }},
			{domain.MethodStripped, e.opts.strippedMinWords(), func() string { return stripMarkup(pg.raw) }},
		}
		for _, st := range stages {
			text := textutil.TruncateWords(st.run(), maxTextWords)
			words := textutil.CountWords(text)
			if words > 0 && words >= st.threshold {
				return domain.ExtractionResult{Text: text, WordCount: words, Method: st.method, ImageURL: image}, nil
			}
			attempts = append(attempts, domain.StageAttempt{Method: st.method, WordCount: words, Threshold: st.threshold})
		}
	}

	desc := textutil.Collapse(c.Description)
	words := textutil.CountWords(desc)
	if words > 0 && words >= e.opts.DescriptionMinWords {
		return domain.ExtractionResult{Text: desc, WordCount: words, Method: domain.MethodDescription}, nil
	}
	attempts = append(attempts, domain.StageAttempt{Method: domain.MethodDescription, WordCount: words, Threshold: e.opts.DescriptionMinWords})

	return domain.ExtractionResult{}, &domain.ExtractionExhaustedError{URL: c.URL, Attempts: attempts}
}

func (e *Extractor) fetchPage(ctx context.Context, pageURL string) (*page, error) {
	if e.client == nil {
		return nil, fmt.Errorf("no http client configured")
	}
	headers := map[string]string{
		"Accept":          "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "es-ES,es;q=0.9,en;q=0.8",
	}
	if e.opts.UserAgent != "" {
		headers["User-Agent"] = e.opts.UserAgent
	}

	resp, err := e.client.Get(ctx, pageURL, headers)
	if err != nil {
		return nil, &domain.FetchError{Stage: "page", URL: pageURL, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &domain.FetchError{Stage: "page", URL: pageURL, StatusCode: resp.StatusCode()}
	}

	body := resp.Body()
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &page{raw: body, doc: doc}, nil
}

func pageImage(doc *goquery.Document) string {
	extract := func(sel string) string {
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			return strings.TrimSpace(v)
		}
		return ""
	}
	return firstNonEmpty(
		extract(`meta[property="og:image"]`),
		extract(`meta[name="twitter:image"]`),
	)
}

func resolveURL(raw, base string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return b.ResolveReference(ref).String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
