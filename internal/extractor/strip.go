package extractor

import (
	"html"
	"regexp"

	"github.com/samvad-hq/samvad-news-digest/internal/textutil"
)

var (
	reCodeBlocks = regexp.MustCompile(`(?is)<script\b.*?</script>|<style\b.*?</style>|<noscript\b.*?</noscript>|<svg\b.*?</svg>|<template\b.*?</template>`)
	reComments   = regexp.MustCompile(`(?s)<!--.*?-->`)
	reTags       = regexp.MustCompile(`(?s)<[^>]*>`)
)

// stripMarkup is the last resort over raw HTML: drop code blocks, comments and tags, decode entities.
func stripMarkup(raw []byte) string {
	s := reCodeBlocks.ReplaceAllString(string(raw), " ")
	s = reComments.ReplaceAllString(s, " ")
	s = reTags.ReplaceAllString(s, " ")
	return textutil.Collapse(html.UnescapeString(s))
}
