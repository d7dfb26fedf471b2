package main

import (
	"bufio"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var defaultLegacyDirs = []string{"images/import", "images/qu"}

// any rooted file path counts as a reference: src, srcset, url() or text
var imageRefPattern = regexp.MustCompile(`(/[\w\-./%]+\.\w+)`)

type article struct {
	ID       string     `json:"id"`
	Content  string     `json:"content"`
	Children []*article `json:"children"`
}

func main() {
	if len(os.Args) < 3 {
		log.Fatal("Usage: prune orphans <public-dir> <articles.json> [legacy-dir...] | prune duplicates <images-dir>")
	}

	command := os.Args[1]

	switch command {
	case "orphans":
		if len(os.Args) < 4 {
			log.Fatal("Usage: prune orphans <public-dir> <articles.json> [legacy-dir...]")
		}
		legacyDirs := defaultLegacyDirs
		if len(os.Args) > 4 {
			legacyDirs = os.Args[4:]
		}
		if _, err := removeOrphans(os.Args[2], os.Args[3], legacyDirs, os.Stdin, os.Stdout); err != nil {
			log.Fatal(err)
		}
	case "duplicates":
		if err := reportDuplicates(os.Args[2], os.Stdout); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatalf("Unknown command %q", command)
	}
}

// findOrphans lists files under the legacy folders that no article
// references anymore
func findOrphans(publicDir, articlesPath string, legacyDirs []string) ([]string, error) {
	referenced, err := referencedPaths(articlesPath)
	if err != nil {
		return nil, err
	}

	var orphans []string
	for _, dir := range legacyDirs {
		root := filepath.Join(publicDir, filepath.FromSlash(dir))
		if err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil // Continue on errors
			}
			if d.IsDir() {
				return nil
			}

			rel, err := filepath.Rel(publicDir, path)
			if err != nil {
				return nil
			}
			if !referenced["/"+filepath.ToSlash(rel)] {
				orphans = append(orphans, path)
			}
			return nil
		}); err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}

	return orphans, nil
}

// removeOrphans offers to delete each orphaned legacy image, reading the
// answers from in. It returns how many files were removed.
func removeOrphans(publicDir, articlesPath string, legacyDirs []string, in io.Reader, out io.Writer) (int, error) {
	orphans, err := findOrphans(publicDir, articlesPath, legacyDirs)
	if err != nil {
		return 0, err
	}

	if len(orphans) == 0 {
		fmt.Fprintln(out, "No orphaned legacy images")
		return 0, nil
	}

	fmt.Fprintf(out, "Found %d legacy images no article references:\n", len(orphans))
	reader := bufio.NewReader(in)
	totalRemoved := 0
	for _, file := range orphans {
		if confirmDelete(reader, out, file) {
			if err := os.Remove(file); err != nil {
				log.Printf("Error removing %s: %v", file, err)
			} else {
				totalRemoved++
				fmt.Fprintf(out, "  REMOVED: %s\n", file)
			}
		} else {
			fmt.Fprintf(out, "  SKIP: %s\n", file)
		}
	}

	fmt.Fprintf(out, "\nRemoved %d orphaned files\n", totalRemoved)
	return totalRemoved, nil
}

func referencedPaths(articlesPath string) (map[string]bool, error) {
	data, err := os.ReadFile(articlesPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", articlesPath, err)
	}

	var articles []*article
	if err := json.Unmarshal(data, &articles); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", articlesPath, err)
	}

	referenced := make(map[string]bool)
	var walk func([]*article)
	walk = func(items []*article) {
		for _, a := range items {
			for _, m := range imageRefPattern.FindAllStringSubmatch(a.Content, -1) {
				referenced[m[1]] = true
			}
			walk(a.Children)
		}
	}
	walk(articles)

	return referenced, nil
}

// findDuplicates groups files under imagesDir by content hash. Only groups
// with more than one file are returned, each sorted, ordered by hash.
func findDuplicates(imagesDir string) ([][]string, error) {
	hashToFiles := make(map[string][]string)

	if err := filepath.WalkDir(imagesDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Continue on errors
		}
		if d.IsDir() {
			return nil
		}

		hash, err := fileHash(path)
		if err != nil {
			log.Printf("Error hashing %s: %v", path, err)
			return nil
		}
		hashToFiles[hash] = append(hashToFiles[hash], path)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	hashes := make([]string, 0, len(hashToFiles))
	for hash, files := range hashToFiles {
		if len(files) > 1 {
			hashes = append(hashes, hash)
		}
	}
	sort.Strings(hashes)

	groups := make([][]string, 0, len(hashes))
	for _, hash := range hashes {
		files := hashToFiles[hash]
		sort.Strings(files)
		groups = append(groups, files)
	}
	return groups, nil
}

// reportDuplicates lists files with identical content under imagesDir
func reportDuplicates(imagesDir string, out io.Writer) error {
	groups, err := findDuplicates(imagesDir)
	if err != nil {
		return err
	}

	for _, files := range groups {
		fmt.Fprintf(out, "\n%d identical copies:\n", len(files))
		for _, file := range files {
			fmt.Fprintf(out, "  %s\n", file)
		}
	}

	fmt.Fprintf(out, "\nFound %d groups of duplicate images\n", len(groups))
	return nil
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func confirmDelete(reader *bufio.Reader, out io.Writer, path string) bool {
	for {
		fmt.Fprintf(out, "  DELETE %s? [y/N]: ", filepath.Base(path))
		input, err := reader.ReadString('\n')
		if err != nil && input == "" {
			return false
		}
		response := strings.ToLower(strings.TrimSpace(input))
		switch response {
		case "y", "yes":
			return true
		case "", "n", "no":
			return false
		default:
			if err != nil {
				return false
			}
			fmt.Fprintln(out, "  Please enter y or n.")
		}
	}
}
