// Package extractor turns uploaded documents into plain text for pending document context.
package extractor

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrUnsupportedType is returned for content types no extractor handles.
var ErrUnsupportedType = errors.New("extractor: unsupported document type")

// ErrNotText is returned when a text document is not valid UTF-8.
var ErrNotText = errors.New("extractor: document is not valid UTF-8 text")

const (
	TypePlain    = "text/plain"
	TypeMarkdown = "text/markdown"
	TypeHTML     = "text/html"
	TypeLexical  = "application/vnd.lexical+json"
)

type Extractor interface {
	// Extract returns the text of data. contentType may be a MIME type with parameters or a file name.
	Extract(data []byte, contentType string) (string, error)
}

type extractor struct{}

func New() Extractor {
	return &extractor{}
}

func (e *extractor) Extract(data []byte, contentType string) (string, error) {
	kind := DetectType(contentType, data)

	var text string
	var err error
	switch kind {
	case TypePlain:
		text, err = plainText(data)
	case TypeMarkdown:
		text, err = markdownText(data)
	case TypeHTML:
		text, err = htmlText(data)
	case TypeLexical:
		text, err = lexicalText(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	if err != nil {
		return "", err
	}
	return clean(text), nil
}

// DetectType maps a MIME type or file name onto one of the supported types. JSON with a Lexical root is
// recognised by content.
func DetectType(contentType string, data []byte) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mt
	}

	switch ct {
	case TypePlain, TypeMarkdown, TypeHTML, TypeLexical:
		return ct
	case "text/x-markdown":
		return TypeMarkdown
	case "application/xhtml+xml":
		return TypeHTML
	case "application/json":
		if looksLexical(data) {
			return TypeLexical
		}
		return ""
	}

	switch filepath.Ext(ct) {
	case ".txt", ".text", ".log", ".csv":
		return TypePlain
	case ".md", ".markdown":
		return TypeMarkdown
	case ".html", ".htm":
		return TypeHTML
	case ".json":
		if looksLexical(data) {
			return TypeLexical
		}
	}
	return ""
}

func plainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", ErrNotText
	}
	return strings.TrimPrefix(string(data), "\ufeff"), nil
}

var (
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	multiSpacePattern   = regexp.MustCompile(`[ \t]+`)
)

// clean collapses runs of blank lines and spaces and trims every line.
func clean(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = multiSpacePattern.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = multiNewlinePattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
