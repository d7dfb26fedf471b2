package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// MarshalArticles encodes the tree as the articles document. HTML is not
// escaped so the content stays readable and greppable on disk.
func MarshalArticles(articles []*Article) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(articles); err != nil {
		return nil, fmt.Errorf("encoding articles: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalArticles decodes an articles document
func UnmarshalArticles(data []byte) ([]*Article, error) {
	var articles []*Article
	if err := json.Unmarshal(data, &articles); err != nil {
		return nil, fmt.Errorf("parsing articles JSON: %w", err)
	}
	return articles, nil
}

// ReadArticles loads the articles document from disk
func ReadArticles(path string) ([]*Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return UnmarshalArticles(data)
}

// WriteArticles writes the articles document, creating its directory
func WriteArticles(path string, articles []*Article) error {
	data, err := MarshalArticles(articles)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}
