package main

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var horizontalRulePattern = regexp.MustCompile(`(?i)<hr\s*/?>`)

// PathRewriter replaces every occurrence of an old image path in article
// content, whether it sits in src, srcset, a style url() or plain text.
// Longer old paths take priority at every position, so a path that is a
// prefix of another ("/a/1.png" vs "/a/1.png2") can never clobber the
// longer one, and content is rewritten in a single pass.
type PathRewriter struct {
	pattern      *regexp.Regexp
	replacements map[string]string
	order        []string
}

// NewPathRewriter builds a rewriter for the given old→new mapping. Identity
// entries are ignored.
func NewPathRewriter(mapping map[string]string) *PathRewriter {
	order := longestFirst(mapping)
	r := &PathRewriter{
		replacements: make(map[string]string, len(order)*2),
		order:        order,
	}
	if len(order) == 0 {
		return r
	}

	// Alternation is leftmost-first, so listing longer paths earlier gives
	// them priority. Slash-escaped spellings start with a backslash and never
	// overlap a plain path.
	alternatives := make([]string, 0, len(order)*2)
	for _, oldPath := range order {
		alternatives = append(alternatives, regexp.QuoteMeta(oldPath))
		r.replacements[oldPath] = mapping[oldPath]
	}
	for _, oldPath := range order {
		escaped := escapeSlashes(oldPath)
		alternatives = append(alternatives, regexp.QuoteMeta(escaped))
		r.replacements[escaped] = escapeSlashes(mapping[oldPath])
	}
	r.pattern = regexp.MustCompile(strings.Join(alternatives, "|"))

	return r
}

// Order returns the old paths in the priority used for replacement
func (r *PathRewriter) Order() []string {
	return r.order
}

// Rewrite returns content with every old path replaced and the number of
// occurrences that changed
func (r *PathRewriter) Rewrite(content string) (string, int) {
	if r.pattern == nil {
		return content, 0
	}

	changed := 0
	out := r.pattern.ReplaceAllStringFunc(content, func(oldPath string) string {
		changed++
		return r.replacements[oldPath]
	})

	return out, changed
}

// RewriteTree walks the tree and rewrites the content field of every
// article. It returns how many articles and path occurrences changed.
func (r *PathRewriter) RewriteTree(articles []*Article) (int, int) {
	articlesChanged, refsChanged := 0, 0
	for _, fa := range Flatten(articles) {
		content, n := r.Rewrite(fa.Content)
		if n > 0 {
			fa.Content = content
			articlesChanged++
			refsChanged += n
		}
	}
	return articlesChanged, refsChanged
}

// longestFirst orders the non-identity keys by descending length, ties
// broken lexically so runs are reproducible
func longestFirst(mapping map[string]string) []string {
	keys := make([]string, 0, len(mapping))
	for oldPath, newPath := range mapping {
		if oldPath != newPath {
			keys = append(keys, oldPath)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

func escapeSlashes(p string) string {
	return strings.ReplaceAll(p, "/", `\/`)
}

// InjectionOutcome describes what InjectImage did
type InjectionOutcome string

const (
	InjectedBeforeRule      InjectionOutcome = "inserted before first horizontal rule"
	InjectedAfterParagraph  InjectionOutcome = "inserted after first paragraph"
	InjectionAlreadyPresent InjectionOutcome = "already present"
	InjectionNoAnchor       InjectionOutcome = "no insertion anchor"
	InjectionNoArticle      InjectionOutcome = "article not found"
	InjectionDisabled       InjectionOutcome = "disabled"
)

// ImageTag renders the paragraph wrapping an injected image
func ImageTag(src string) string {
	return fmt.Sprintf(`<p style="margin-top: 0in"><img src="%s" style="max-width: 100%%; height: auto;" /></p>`, src)
}

// InjectImage inserts tag into content before the first horizontal rule,
// or after the first closing paragraph when there is none. Content already
// containing marker is returned unchanged.
func InjectImage(content, marker, tag string) (string, InjectionOutcome) {
	if strings.Contains(content, marker) {
		return content, InjectionAlreadyPresent
	}

	if loc := horizontalRulePattern.FindStringIndex(content); loc != nil {
		return content[:loc[0]] + tag + "\n\n" + content[loc[0]:], InjectedBeforeRule
	}

	if i := strings.Index(content, "</p>"); i != -1 {
		at := i + len("</p>")
		return content[:at] + "\n" + tag + content[at:], InjectedAfterParagraph
	}

	return content, InjectionNoAnchor
}
