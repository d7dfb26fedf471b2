package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// MigratorOptions configures an ImageMigrator
type MigratorOptions struct {
	PublicDir      string
	ImageRoot      string
	Folders        FolderMap
	Injection      *AssetInjection
	LegacyPrefixes []string
	DryRun         bool
}

// ImageMigrator moves images from the legacy flat folders into per-topic
// folders and rewrites article content to match
type ImageMigrator struct {
	publicDir string
	imageRoot string
	folders   FolderMap
	injection *AssetInjection
	legacy    []string
	dryRun    bool
	srcRe     *regexp.Regexp
}

// Collision records an old path claimed by two articles with different
// destinations. The later article wins.
type Collision struct {
	OldPath   string
	Kept      string
	KeptBy    string
	Dropped   string
	DroppedBy string
}

// MigrationPlan is the old→new path mapping and what it touches
type MigrationPlan struct {
	Mapping     map[string]string
	References  int
	Articles    int
	Directories []string
	Collisions  []Collision
}

// MigrationReport summarizes one migration run
type MigrationReport struct {
	Plan              *MigrationPlan
	Copied            int
	Skipped           int
	Missing           int
	MissingPaths      []string
	ArticlesRewritten int
	RefsRewritten     int
	AssetCopied       bool
	Injection         InjectionOutcome
	Remaining         map[string]int
	DryRun            bool
}

// RemainingLegacy returns the total legacy references left after rewriting
func (r *MigrationReport) RemainingLegacy() int {
	total := 0
	for _, n := range r.Remaining {
		total += n
	}
	return total
}

// NewImageMigrator creates a migrator from options
func NewImageMigrator(opts MigratorOptions) *ImageMigrator {
	root := "/" + strings.Trim(opts.ImageRoot, "/")
	folders := opts.Folders
	if folders == nil {
		folders = FolderMap{}
	}

	return &ImageMigrator{
		publicDir: opts.PublicDir,
		imageRoot: root,
		folders:   folders,
		injection: opts.Injection,
		legacy:    opts.LegacyPrefixes,
		dryRun:    opts.DryRun,
		srcRe:     regexp.MustCompile(`\ssrc="(` + regexp.QuoteMeta(root) + `/[^"]+)"`),
	}
}

// ExtractImagePaths returns every image src under the image root, in order
func (m *ImageMigrator) ExtractImagePaths(content string) []string {
	var paths []string
	for _, match := range m.srcRe.FindAllStringSubmatch(content, -1) {
		paths = append(paths, match[1])
	}
	return paths
}

// Plan builds the global path mapping. Only articles with a folder
// assignment and at least one image are considered.
func (m *ImageMigrator) Plan(articles []*Article) *MigrationPlan {
	plan := &MigrationPlan{Mapping: make(map[string]string)}
	owner := make(map[string]string)
	dirs := make(map[string]bool)

	for _, fa := range Flatten(articles) {
		folder, ok := m.folders[fa.ID]
		if !ok {
			continue
		}

		imagePaths := m.ExtractImagePaths(fa.Content)
		if len(imagePaths) == 0 {
			continue
		}

		plan.Articles++
		newFolder := m.imageRoot + "/" + strings.Trim(folder, "/")
		dirs[newFolder] = true

		for _, oldPath := range imagePaths {
			newPath := newFolder + "/" + path.Base(oldPath)
			if prev, seen := plan.Mapping[oldPath]; seen && prev != newPath {
				plan.Collisions = append(plan.Collisions, Collision{
					OldPath:   oldPath,
					Kept:      newPath,
					KeptBy:    fa.ID,
					Dropped:   prev,
					DroppedBy: owner[oldPath],
				})
			}
			plan.Mapping[oldPath] = newPath
			owner[oldPath] = fa.ID
			plan.References++
		}
	}

	for dir := range dirs {
		plan.Directories = append(plan.Directories, dir)
	}
	sort.Strings(plan.Directories)

	return plan
}

// Migrate runs the whole migration against the tree. In dry-run mode the
// filesystem is left alone and the rewrite is applied to a copy, so the
// report still shows what a live run would leave behind.
func (m *ImageMigrator) Migrate(articles []*Article) (*MigrationReport, error) {
	report := &MigrationReport{DryRun: m.dryRun, Injection: InjectionDisabled}

	plan := m.Plan(articles)
	report.Plan = plan
	log.Printf("Found %d image references across %d articles.", plan.References, plan.Articles)
	for _, c := range plan.Collisions {
		log.Printf("⚠ COLLISION: %s claimed by %s (%s) and %s (%s); keeping %s",
			c.OldPath, c.DroppedBy, c.Dropped, c.KeptBy, c.Kept, c.KeptBy)
	}

	log.Printf("─── Step 1: Copy files to new locations ───")
	if err := m.copyImages(plan, report); err != nil {
		return report, err
	}
	log.Printf("Copied: %d files | Skipped: %d | Missing: %d", report.Copied, report.Skipped, report.Missing)

	if m.injection != nil && m.injection.ArticleID != "" {
		log.Printf("─── Step 2: Copy injected asset ───")
		copied, err := m.copyInjectedAsset()
		if err != nil {
			return report, err
		}
		report.AssetCopied = copied
	}

	target := articles
	if m.dryRun {
		target = cloneArticles(articles)
	}

	log.Printf("─── Step 3: Rewrite image paths ───")
	rewriter := NewPathRewriter(plan.Mapping)
	report.ArticlesRewritten, report.RefsRewritten = rewriter.RewriteTree(target)
	log.Printf("Rewrote %d references in %d articles", report.RefsRewritten, report.ArticlesRewritten)

	if m.injection != nil && m.injection.ArticleID != "" {
		log.Printf("─── Step 4: Inject asset into %s ───", m.injection.ArticleID)
		report.Injection = m.inject(target)
		log.Printf("  %s: %s", m.injection.ArticleID, report.Injection)
	}

	report.Remaining = m.countLegacy(target)
	return report, nil
}

// MigrateFile loads the articles document, migrates it and writes it back
func (m *ImageMigrator) MigrateFile(articlesPath string) (*MigrationReport, error) {
	articles, err := ReadArticles(articlesPath)
	if err != nil {
		return nil, err
	}

	report, err := m.Migrate(articles)
	if err != nil {
		return report, err
	}

	if m.dryRun {
		log.Printf("  [DRY RUN] Would write %s", articlesPath)
		return report, nil
	}

	if err := WriteArticles(articlesPath, articles); err != nil {
		return report, fmt.Errorf("writing %s: %w", articlesPath, err)
	}
	log.Printf("✓ %s updated", articlesPath)

	return report, nil
}

func (m *ImageMigrator) copyImages(plan *MigrationPlan, report *MigrationReport) error {
	oldPaths := make([]string, 0, len(plan.Mapping))
	for oldPath := range plan.Mapping {
		oldPaths = append(oldPaths, oldPath)
	}
	sort.Strings(oldPaths)

	createdDirs := make(map[string]bool)

	for _, oldPath := range oldPaths {
		newPath := plan.Mapping[oldPath]
		if oldPath == newPath {
			report.Skipped++
			continue
		}

		src := m.resolve(oldPath)
		dst := m.resolve(newPath)

		dir := filepath.Dir(dst)
		if !createdDirs[dir] {
			if err := m.mkdirAll(dir); err != nil {
				return err
			}
			createdDirs[dir] = true
		}

		if !fileExists(src) {
			log.Printf("  ⚠ MISSING SOURCE: %s", oldPath)
			report.Missing++
			report.MissingPaths = append(report.MissingPaths, oldPath)
			continue
		}

		if fileExists(dst) {
			debugLog("Skipped (exists): %s", newPath)
			report.Skipped++
			continue
		}

		if err := m.copyFile(src, dst); err != nil {
			return err
		}
		report.Copied++
	}

	return nil
}

func (m *ImageMigrator) copyInjectedAsset() (bool, error) {
	src := m.resolve(m.injection.Source)
	dst := m.resolve(m.injection.Destination)

	if !fileExists(src) {
		log.Printf("  ⚠ Injected asset not found at %s", m.injection.Source)
		return false, nil
	}
	if fileExists(dst) {
		log.Printf("  Skipped (exists): %s", m.injection.Destination)
		return false, nil
	}

	if err := m.mkdirAll(filepath.Dir(dst)); err != nil {
		return false, err
	}
	if err := m.copyFile(src, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (m *ImageMigrator) inject(articles []*Article) InjectionOutcome {
	article := FindArticle(articles, m.injection.ArticleID)
	if article == nil {
		return InjectionNoArticle
	}

	marker := m.injection.Marker
	if marker == "" {
		marker = m.injection.Destination
	}

	content, outcome := InjectImage(article.Content, marker, ImageTag(m.injection.Destination))
	article.Content = content
	return outcome
}

func (m *ImageMigrator) countLegacy(articles []*Article) map[string]int {
	remaining := make(map[string]int, len(m.legacy))
	for _, prefix := range m.legacy {
		remaining[prefix] = 0
	}
	for _, fa := range Flatten(articles) {
		for _, prefix := range m.legacy {
			remaining[prefix] += strings.Count(fa.Content, prefix)
		}
	}
	return remaining
}

func (m *ImageMigrator) resolve(urlPath string) string {
	return resolvePublicPath(m.publicDir, urlPath)
}

func (m *ImageMigrator) mkdirAll(dir string) error {
	if m.dryRun {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}

func (m *ImageMigrator) copyFile(src, dst string) error {
	if m.dryRun {
		log.Printf("  [DRY] Would copy: %s → %s", m.rel(src), m.rel(dst))
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	log.Printf("  Copied: %s → %s", m.rel(src), m.rel(dst))
	return nil
}

func (m *ImageMigrator) rel(p string) string {
	if r, err := filepath.Rel(m.publicDir, p); err == nil {
		return r
	}
	return p
}

// resolvePublicPath maps an image URL path onto the public directory.
// Cleaning against "/" first keeps ".." segments from leaving publicDir.
func resolvePublicPath(publicDir, urlPath string) string {
	rel := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	return filepath.Join(publicDir, filepath.FromSlash(rel))
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// copyFile copies src to dst; dst is never left half-written
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".copy-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", dst, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("chmod %s: %w", dst, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("renaming into %s: %w", dst, err)
	}
	return nil
}

func cloneArticles(articles []*Article) []*Article {
	if articles == nil {
		return nil
	}
	out := make([]*Article, len(articles))
	for i, a := range articles {
		c := *a
		c.Children = cloneArticles(a.Children)
		out[i] = &c
	}
	return out
}
