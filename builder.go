package main

import (
	"fmt"
	"log"
	"path/filepath"
)

// TreeBuilder assembles the article tree from definitions and legacy HTML
type TreeBuilder struct {
	extractor *ContentExtractor
	sourceDir string
}

// BuildReport summarizes one build run
type BuildReport struct {
	Results  []ProcessingResult
	Parents  int
	Children int
	Missing  int
}

// NewTreeBuilder creates a builder reading HTML files from sourceDir
func NewTreeBuilder(extractor *ContentExtractor, sourceDir string) *TreeBuilder {
	return &TreeBuilder{
		extractor: extractor,
		sourceDir: sourceDir,
	}
}

// Build processes every definition in order. Missing source files produce
// empty articles; any other read failure aborts the build.
func (b *TreeBuilder) Build(defs []ArticleDefinition) ([]*Article, *BuildReport, error) {
	report := &BuildReport{}
	articles := make([]*Article, 0, len(defs))

	log.Printf("Building %d articles from %s...", len(defs), b.sourceDir)

	for i, def := range defs {
		debugLog("[%d/%d] %s (%s)", i+1, len(defs), def.ID, def.File)

		article, err := b.buildArticle(def, "", report)
		if err != nil {
			return nil, report, err
		}
		article.Icon = def.Icon
		article.Category = def.Category

		for _, childDef := range def.Children {
			child, err := b.buildArticle(childDef, def.ID, report)
			if err != nil {
				return nil, report, err
			}
			article.Children = append(article.Children, child)
			report.Children++
		}

		articles = append(articles, article)
		report.Parents++
	}

	return articles, report, nil
}

func (b *TreeBuilder) buildArticle(def ArticleDefinition, parentID string, report *BuildReport) (*Article, error) {
	result := ProcessingResult{ID: def.ID, File: def.File, Status: StatusSuccess}

	extraction, err := b.extractor.ExtractFile(filepath.Join(b.sourceDir, def.File))
	if err != nil {
		result.Status = StatusError
		result.Error = err
		report.Results = append(report.Results, result)
		log.Printf("✗ Failed %s: %v", def.ID, err)
		return nil, fmt.Errorf("building %s: %w", def.ID, err)
	}

	if extraction.Missing {
		result.Status = StatusMissing
		report.Missing++
		log.Printf("⚠ Missing source for %s: %s", def.ID, def.File)
	}
	report.Results = append(report.Results, result)

	return &Article{
		ID:         def.ID,
		Title:      def.Title,
		Content:    extraction.Content,
		SearchText: extraction.SearchText,
		ParentID:   parentID,
	}, nil
}
