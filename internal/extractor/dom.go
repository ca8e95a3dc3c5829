package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samvad-hq/samvad-news-digest/internal/textutil"
)

// articleSelectors are tried in order; the first one with enough text wins.
var articleSelectors = []string{
	`[itemprop="articleBody"] p`,
	".article-body p",
	".article-content p",
	".articulo-cuerpo p",
	".cuerpo-noticia p",
	".story-body p",
	".entry-content p",
	".post-content p",
	".content p",
	"article p",
	"main p",
	"#content p",
	".text p",
}

const minSelectorParagraphChars = 10

func selectorText(doc *goquery.Document, minWords int) string {
	best := ""
	for _, sel := range articleSelectors {
		var parts []string
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); len(text) > minSelectorParagraphChars {
				parts = append(parts, text)
			}
		})
		if len(parts) == 0 {
			continue
		}
		text := strings.Join(parts, "\n")
		if textutil.CountWords(text) >= minWords {
			return text
		}
		if textutil.CountWords(text) > textutil.CountWords(best) {
			best = text
		}
	}
	return best
}

// paragraphText concatenates every paragraph longer than minChars.
func paragraphText(doc *goquery.Document, minChars int) string {
	var parts []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		text := textutil.Collapse(s.Text())
		if len([]rune(text)) >= minChars {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n")
}
