package extractor

import (
	"regexp"
	"strings"
)

var (
	mdImage     = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	mdLink      = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	mdHeading   = regexp.MustCompile(`(?m)^[ \t]{0,3}#{1,6}[ \t]+`)
	mdQuote     = regexp.MustCompile(`(?m)^[ \t]*>[ \t]?`)
	mdListItem  = regexp.MustCompile(`(?m)^[ \t]*([-*+]|\d+[.)])[ \t]+(\[[ xX]\][ \t]+)?`)
	mdRule      = regexp.MustCompile(`(?m)^[ \t]*([-*_][ \t]*){3,}$`)
	mdEmphasis  = regexp.MustCompile(`(\*\*|__|~~)(.+?)(\*\*|__|~~)`)
	mdFence     = regexp.MustCompile("(?m)^[ \\t]*```.*$")
	mdInlineTag = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
)

// markdownText drops markup and keeps the words, including code blocks.
func markdownText(data []byte) (string, error) {
	s, err := plainText(data)
	if err != nil {
		return "", err
	}
	s = mdFence.ReplaceAllString(s, "")
	s = mdImage.ReplaceAllString(s, "$1")
	s = mdLink.ReplaceAllString(s, "$1")
	s = mdRule.ReplaceAllString(s, "")
	s = mdHeading.ReplaceAllString(s, "")
	s = mdQuote.ReplaceAllString(s, "")
	s = mdListItem.ReplaceAllString(s, "")
	s = mdEmphasis.ReplaceAllString(s, "$2")
	s = mdInlineTag.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "`", "")
	return s, nil
}
