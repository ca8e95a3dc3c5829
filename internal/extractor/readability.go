package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	positiveHint = regexp.MustCompile(`(?i)article|body|content|entry|main|post|story|text|nota|noticia|cuerpo|articulo`)
	negativeHint = regexp.MustCompile(`(?i)comment|meta|footer|footnote|sidebar|sponsor|share|social|related|promo|menu|advert|widget|newsletter|cookie|banner|breadcrumb|popup`)
)

const minScoredParagraphChars = 25

// stripBoilerplate removes elements that never carry article prose.
func stripBoilerplate(doc *goquery.Document) {
	doc.Find("script, style, noscript, template, iframe, svg, form, nav, header, footer, aside, button").Remove()
}

// readability scores paragraph containers and returns the text of the best one.
func readability(doc *goquery.Document) string {
	scores := make(map[*html.Node]float64)
	var order []*goquery.Selection

	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := strings.TrimSpace(p.Text())
		if len(text) < minScoredParagraphChars {
			return
		}
		score := 1 + float64(strings.Count(text, ",")) + minFloat(float64(len(text))/100, 3)

		parent := p.Parent()
		if parent.Length() == 0 {
			return
		}
		order = addScore(scores, order, parent, score)
		if grand := parent.Parent(); grand.Length() > 0 {
			order = addScore(scores, order, grand, score/2)
		}
	})

	var (
		best      *goquery.Selection
		bestScore float64
	)
	// Containers are visited in document order; on a tie the enclosing container wins.
	for _, sel := range order {
		final := (scores[sel.Get(0)] + classWeight(sel)) * (1 - linkDensity(sel))
		if best == nil || final > bestScore || (final == bestScore && sel.Contains(best.Get(0))) {
			best, bestScore = sel, final
		}
	}
	if best == nil || bestScore <= 0 {
		return ""
	}

	var parts []string
	best.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		return strings.TrimSpace(best.Text())
	}
	return strings.Join(parts, "\n")
}

func addScore(scores map[*html.Node]float64, order []*goquery.Selection, sel *goquery.Selection, score float64) []*goquery.Selection {
	node := sel.Get(0)
	if _, ok := scores[node]; !ok {
		order = append(order, sel)
	}
	scores[node] += score
	return order
}

func classWeight(sel *goquery.Selection) float64 {
	var weight float64
	for _, attr := range []string{"class", "id"} {
		v, ok := sel.Attr(attr)
		if !ok || v == "" {
			continue
		}
		if negativeHint.MatchString(v) {
			weight -= 25
		}
		if positiveHint.MatchString(v) {
			weight += 25
		}
	}
	return weight
}

func linkDensity(sel *goquery.Selection) float64 {
	textLen := len(strings.TrimSpace(sel.Text()))
	if textLen == 0 {
		return 1
	}
	linkLen := 0
	sel.Find("a").Each(func(_ int, a *goquery.Selection) {
		linkLen += len(strings.TrimSpace(a.Text()))
	})
	return float64(linkLen) / float64(textLen)
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
