package main

import (
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Violation points at one offending reference
type Violation struct {
	ArticleID string
	Path      string
}

// VerificationReport is the outcome of checking a migrated tree
type VerificationReport struct {
	TopLevel           int
	Articles           int
	TotalImages        int
	Missing            []Violation
	OldPaths           []Violation
	DesignatedArticle  string
	DesignatedHasImage bool
}

// Passed reports whether every check succeeded
func (r *VerificationReport) Passed() bool {
	return len(r.Missing) == 0 && len(r.OldPaths) == 0 && r.DesignatedHasImage
}

// Verifier checks a migrated tree against the files on disk. It never
// modifies the tree or the filesystem.
type Verifier struct {
	publicDir  string
	imageRoot  string
	designated string
	legacyRe   *regexp.Regexp
}

// NewVerifier creates a verifier. designated names the article that must
// contain at least one <img> element.
func NewVerifier(publicDir, imageRoot string, legacyPrefixes []string, designated string) *Verifier {
	v := &Verifier{
		publicDir:  publicDir,
		imageRoot:  "/" + strings.Trim(imageRoot, "/"),
		designated: designated,
	}

	if len(legacyPrefixes) > 0 {
		quoted := make([]string, len(legacyPrefixes))
		for i, p := range legacyPrefixes {
			quoted[i] = regexp.QuoteMeta(p)
		}
		v.legacyRe = regexp.MustCompile(`(?:` + strings.Join(quoted, "|") + `)[^"'\s<>]*`)
	}

	return v
}

// VerifyFile reads the articles document and verifies it
func (v *Verifier) VerifyFile(articlesPath string) (*VerificationReport, error) {
	articles, err := ReadArticles(articlesPath)
	if err != nil {
		return nil, err
	}
	return v.Verify(articles)
}

// Verify runs every check over the tree
func (v *Verifier) Verify(articles []*Article) (*VerificationReport, error) {
	report := &VerificationReport{
		TopLevel:           len(articles),
		DesignatedArticle:  v.designated,
		DesignatedHasImage: v.designated == "",
	}

	for _, fa := range Flatten(articles) {
		report.Articles++

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(fa.Content))
		if err != nil {
			return nil, fmt.Errorf("parsing content of %s: %w", fa.ID, err)
		}

		doc.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
			src, _ := img.Attr("src")
			if !strings.HasPrefix(src, v.imageRoot+"/") {
				return
			}
			report.TotalImages++
			if !fileExists(resolvePublicPath(v.publicDir, src)) {
				log.Printf("  ✗ MISSING: %s (in article: %s)", src, fa.ID)
				report.Missing = append(report.Missing, Violation{ArticleID: fa.ID, Path: src})
			}
		})

		if v.legacyRe != nil {
			for _, ref := range v.legacyRe.FindAllString(fa.Content, -1) {
				log.Printf("  ⚠ OLD PATH: %s (in article: %s)", ref, fa.ID)
				report.OldPaths = append(report.OldPaths, Violation{ArticleID: fa.ID, Path: ref})
			}
		}

		if fa.ID == v.designated {
			report.DesignatedHasImage = doc.Find("img").Length() > 0
		}
	}

	return report, nil
}
