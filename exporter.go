package main

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Frontmatter is the metadata block written at the top of exported files
type Frontmatter struct {
	ID       string `yaml:"id" toml:"id"`
	Title    string `yaml:"title" toml:"title"`
	Category string `yaml:"category,omitempty" toml:"category,omitempty"`
	Icon     string `yaml:"icon,omitempty" toml:"icon,omitempty"`
	Parent   string `yaml:"parent,omitempty" toml:"parent,omitempty"`
	Weight   int    `yaml:"weight" toml:"weight"`
}

// FrontmatterEncoder renders a document in one frontmatter format
type FrontmatterEncoder interface {
	CanHandle(format string) bool
	Encode(fm Frontmatter, body string) ([]byte, error)
}

// YAMLFrontmatter writes "---" delimited YAML frontmatter
type YAMLFrontmatter struct{}

func (YAMLFrontmatter) CanHandle(format string) bool {
	return format == "yaml" || format == "yml"
}

func (YAMLFrontmatter) Encode(fm Frontmatter, body string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fm); err != nil {
		return nil, fmt.Errorf("encoding YAML frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	buf.WriteString("---\n")
	writeBody(&buf, body)
	return buf.Bytes(), nil
}

// TOMLFrontmatter writes "+++" delimited TOML frontmatter
type TOMLFrontmatter struct{}

func (TOMLFrontmatter) CanHandle(format string) bool {
	return format == "toml"
}

func (TOMLFrontmatter) Encode(fm Frontmatter, body string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("+++\n")
	if err := toml.NewEncoder(&buf).Encode(fm); err != nil {
		return nil, fmt.Errorf("encoding TOML frontmatter: %w", err)
	}
	buf.WriteString("+++\n")
	writeBody(&buf, body)
	return buf.Bytes(), nil
}

func writeBody(buf *bytes.Buffer, body string) {
	if body == "" {
		return
	}
	buf.WriteString("\n")
	buf.WriteString(strings.TrimSpace(body))
	buf.WriteString("\n")
}

// Exporter writes the article tree as Markdown files for review
type Exporter struct {
	encoders  []FrontmatterEncoder
	converter *md.Converter
	outDir    string
	dryRun    bool
}

// ExportReport lists the files an export produced
type ExportReport struct {
	Files []string
}

// NewExporter creates an exporter with the YAML and TOML encoders registered
func NewExporter(outDir string, dryRun bool) *Exporter {
	e := &Exporter{
		converter: md.NewConverter("", true, nil),
		outDir:    outDir,
		dryRun:    dryRun,
	}
	e.AddEncoder(YAMLFrontmatter{})
	e.AddEncoder(TOMLFrontmatter{})
	return e
}

// AddEncoder adds a frontmatter encoder to the chain
func (e *Exporter) AddEncoder(enc FrontmatterEncoder) {
	e.encoders = append(e.encoders, enc)
}

func (e *Exporter) encoderFor(format string) (FrontmatterEncoder, error) {
	format = strings.ToLower(format)
	for _, enc := range e.encoders {
		if enc.CanHandle(format) {
			return enc, nil
		}
	}
	return nil, fmt.Errorf("unsupported frontmatter format: %s", format)
}

// Export converts every article to Markdown. Children land in a folder
// named after their parent and inherit its category.
func (e *Exporter) Export(articles []*Article, format string) (*ExportReport, error) {
	enc, err := e.encoderFor(format)
	if err != nil {
		return nil, err
	}
	// ids become file names
	if err := ValidateTree(articles); err != nil {
		return nil, err
	}

	report := &ExportReport{}
	for _, fa := range Flatten(articles) {
		fm := Frontmatter{
			ID:     fa.ID,
			Title:  fa.Title,
			Icon:   fa.Icon,
			Parent: fa.Parent,
			Weight: fa.Position + 1,
		}

		filename := filepath.Join(e.outDir, fa.ID+".md")
		if fa.Parent != "" {
			filename = filepath.Join(e.outDir, fa.Parent, fa.ID+".md")
			if parent := FindArticle(articles, fa.Parent); parent != nil {
				fm.Category = parent.Category
			}
		} else {
			fm.Category = fa.Category
		}

		body, err := e.converter.ConvertString(fa.Content)
		if err != nil {
			return report, fmt.Errorf("converting %s to markdown: %w", fa.ID, err)
		}

		data, err := enc.Encode(fm, body)
		if err != nil {
			return report, fmt.Errorf("encoding %s: %w", fa.ID, err)
		}

		if err := e.write(filename, data); err != nil {
			return report, err
		}
		report.Files = append(report.Files, filename)
	}

	return report, nil
}

func (e *Exporter) write(filename string, data []byte) error {
	if e.dryRun {
		log.Printf("  [DRY] Would write: %s (%d bytes)", filename, len(data))
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(filename), err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", filename, err)
	}
	debugLog("Wrote %s", filename)
	return nil
}
