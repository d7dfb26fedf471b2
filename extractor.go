package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	bodyPattern       = regexp.MustCompile(`(?is)<body[^>]*>(.*?)</body>`)
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`[\s\p{Zs}\x{feff}\x{2028}\x{2029}]+`)
)

// searchEntities is the fixed entity set found in the legacy export, applied
// in order. Anything else is left encoded.
var searchEntities = [][2]string{
	{"&nbsp;", " "},
	{"&rsquo;", "'"},
	{"&ldquo;", `"`},
	{"&rdquo;", `"`},
	{"&amp;", "&"},
	{"&#039;", "'"},
}

// Extraction is the result of reading one legacy HTML file
type Extraction struct {
	Content    string
	SearchText string
	Missing    bool
}

// ContentExtractor turns legacy HTML documents into article content
type ContentExtractor struct {
	deadLink  *regexp.Regexp
	sanitizer *bluemonday.Policy
}

// NewContentExtractor creates an extractor that unwraps links to deadHost.
// When sanitize is set the body is additionally passed through a UGC policy.
func NewContentExtractor(deadHost string, sanitize bool) *ContentExtractor {
	e := &ContentExtractor{}

	if deadHost != "" {
		e.deadLink = regexp.MustCompile(
			`(?i)<a\s+href="https?://` + regexp.QuoteMeta(deadHost) + `[^"]*"[^>]*>([\s\S]*?)</a>`)
	}

	if sanitize {
		policy := bluemonday.UGCPolicy()
		policy.AllowAttrs("style").OnElements("img", "p", "span", "table", "td", "th")
		policy.AllowAttrs("src", "alt", "width", "height").OnElements("img")
		e.sanitizer = policy
	}

	return e
}

// ExtractBodyContent returns the body of an HTML document with image paths
// rooted at /images/ and dead links unwrapped. No body yields "".
func (e *ContentExtractor) ExtractBodyContent(html string) string {
	return e.sanitize(e.body(html))
}

func (e *ContentExtractor) body(html string) string {
	m := bodyPattern.FindStringSubmatch(html)
	if m == nil {
		return ""
	}

	content := strings.TrimSpace(m[1])
	content = strings.ReplaceAll(content, `src="images/`, `src="/images/`)

	if e.deadLink != nil {
		content = e.deadLink.ReplaceAllString(content, "$1")
	}

	return content
}

func (e *ContentExtractor) sanitize(content string) string {
	if e.sanitizer == nil {
		return content
	}
	return e.sanitizer.Sanitize(content)
}

// ExtractPlainText derives the search projection of an HTML fragment
func ExtractPlainText(html string) string {
	text := tagPattern.ReplaceAllString(html, " ")
	for _, e := range searchEntities {
		text = strings.ReplaceAll(text, e[0], e[1])
	}
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// ExtractFile reads a legacy HTML file. A missing file is not an error: the
// extraction comes back empty with Missing set. Search text is projected from
// the unsanitized body because the sanitizer re-encodes entities.
func (e *ContentExtractor) ExtractFile(path string) (Extraction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Extraction{Missing: true}, nil
		}
		return Extraction{}, fmt.Errorf("reading %s: %w", path, err)
	}

	body := e.body(string(data))
	return Extraction{
		Content:    e.sanitize(body),
		SearchText: ExtractPlainText(body),
	}, nil
}
