package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T, publicDir, urlPath, data string) {
	t.Helper()
	p := resolvePublicPath(publicDir, urlPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(data), 0644))
}

func readImage(t *testing.T, publicDir, urlPath string) string {
	t.Helper()
	data, err := os.ReadFile(resolvePublicPath(publicDir, urlPath))
	require.NoError(t, err)
	return string(data)
}

func testInjection() *AssetInjection {
	return &AssetInjection{
		ArticleID:   "homepage-navigation",
		Source:      "/images/qu/2026/eons_homepage_annotated.png",
		Destination: "/images/overview/homepage-navigation/eons_homepage_annotated.png",
		Marker:      "eons_homepage_annotated",
	}
}

func testMigrator(publicDir string, dryRun bool) *ImageMigrator {
	return NewImageMigrator(MigratorOptions{
		PublicDir: publicDir,
		ImageRoot: "/images",
		Folders: FolderMap{
			"user-login":          "overview/user-login",
			"homepage-navigation": "overview/homepage-navigation",
			"campaign-dashboard":  "campaigns/campaign-dashboard",
		},
		Injection:      testInjection(),
		LegacyPrefixes: []string{"/images/import/", "/images/qu/"},
		DryRun:         dryRun,
	})
}

func testTree() []*Article {
	return []*Article{
		{
			ID:      "user-login",
			Title:   "User Login",
			Content: `<p>Log in</p><img src="/images/import/login.png"><p><img src="/images/qu/login_2.png"></p>`,
		},
		{
			ID:      "homepage-navigation",
			Title:   "Homepage Navigation",
			Content: `<p>Welcome</p><hr><p>Menus</p>`,
		},
		{
			ID:      "campaigns",
			Title:   "Campaigns",
			Content: `<p>No folder assigned</p><img src="/images/import/campaigns.png">`,
			Children: []*Article{
				{
					ID:       "campaign-dashboard",
					Title:    "Campaign Dashboard",
					ParentID: "campaigns",
					Content:  `<img src="/images/import/dash.png"><a href="/images/import/dash.png">full size</a>`,
				},
			},
		},
	}
}

func seedPublicDir(t *testing.T) string {
	t.Helper()
	publicDir := t.TempDir()
	writeImage(t, publicDir, "/images/import/login.png", "login")
	writeImage(t, publicDir, "/images/qu/login_2.png", "login2")
	writeImage(t, publicDir, "/images/import/dash.png", "dash")
	writeImage(t, publicDir, "/images/import/campaigns.png", "campaigns")
	writeImage(t, publicDir, "/images/qu/2026/eons_homepage_annotated.png", "annotated")
	return publicDir
}

func TestExtractImagePaths(t *testing.T) {
	m := testMigrator(t.TempDir(), true)

	tests := []struct {
		name     string
		content  string
		expected []string
	}{
		{"none", "<p>text</p>", nil},
		{"in order", `<img src="/images/b.png"><img src="/images/a/a.png">`, []string{"/images/b.png", "/images/a/a.png"}},
		{"outside root ignored", `<img src="https://cdn.example.com/x.png"><img src="/static/y.png">`, nil},
		{"duplicates kept", `<img src="/images/a.png"><img src="/images/a.png">`, []string{"/images/a.png", "/images/a.png"}},
		{"href ignored", `<a href="/images/a.png">a</a>`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, m.ExtractImagePaths(tt.content))
		})
	}
}

func TestPlan(t *testing.T) {
	m := testMigrator(t.TempDir(), true)

	plan := m.Plan(testTree())

	assert.Equal(t, map[string]string{
		"/images/import/login.png": "/images/overview/user-login/login.png",
		"/images/qu/login_2.png":   "/images/overview/user-login/login_2.png",
		"/images/import/dash.png":  "/images/campaigns/campaign-dashboard/dash.png",
	}, plan.Mapping)
	assert.Equal(t, 3, plan.References)
	assert.Equal(t, 2, plan.Articles)
	assert.Equal(t, []string{
		"/images/campaigns/campaign-dashboard",
		"/images/overview/user-login",
	}, plan.Directories)
	assert.Empty(t, plan.Collisions)
}

func TestPlanCollisionLastWriteWins(t *testing.T) {
	m := testMigrator(t.TempDir(), true)
	articles := []*Article{
		{ID: "user-login", Content: `<img src="/images/import/shared.png">`},
		{ID: "campaign-dashboard", Content: `<img src="/images/import/shared.png">`},
	}

	plan := m.Plan(articles)

	assert.Equal(t, "/images/campaigns/campaign-dashboard/shared.png", plan.Mapping["/images/import/shared.png"])
	require.Len(t, plan.Collisions, 1)
	c := plan.Collisions[0]
	assert.Equal(t, "/images/import/shared.png", c.OldPath)
	assert.Equal(t, "campaign-dashboard", c.KeptBy)
	assert.Equal(t, "user-login", c.DroppedBy)
	assert.Equal(t, "/images/overview/user-login/shared.png", c.Dropped)
}

func TestMigrateLive(t *testing.T) {
	publicDir := seedPublicDir(t)
	articles := testTree()

	report, err := testMigrator(publicDir, false).Migrate(articles)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Copied)
	assert.Equal(t, 0, report.Missing)
	assert.True(t, report.AssetCopied)
	assert.Equal(t, InjectedBeforeRule, report.Injection)
	assert.Equal(t, 4, report.RefsRewritten, "dashboard src and href both count")
	assert.Equal(t, 2, report.ArticlesRewritten)

	assert.Equal(t, "login", readImage(t, publicDir, "/images/overview/user-login/login.png"))
	assert.Equal(t, "login2", readImage(t, publicDir, "/images/overview/user-login/login_2.png"))
	assert.Equal(t, "dash", readImage(t, publicDir, "/images/campaigns/campaign-dashboard/dash.png"))
	assert.Equal(t, "annotated", readImage(t, publicDir, "/images/overview/homepage-navigation/eons_homepage_annotated.png"))

	// originals stay in place
	assert.FileExists(t, resolvePublicPath(publicDir, "/images/import/login.png"))

	assert.Equal(t,
		`<p>Log in</p><img src="/images/overview/user-login/login.png"><p><img src="/images/overview/user-login/login_2.png"></p>`,
		articles[0].Content)
	assert.Equal(t,
		`<img src="/images/campaigns/campaign-dashboard/dash.png"><a href="/images/campaigns/campaign-dashboard/dash.png">full size</a>`,
		articles[2].Children[0].Content)
	assert.Equal(t,
		`<p>Welcome</p>`+ImageTag("/images/overview/homepage-navigation/eons_homepage_annotated.png")+"\n\n<hr><p>Menus</p>",
		articles[1].Content)

	// the campaigns article has no folder, so its legacy reference remains
	assert.Contains(t, articles[2].Content, "/images/import/campaigns.png")
	assert.Equal(t, 1, report.Remaining["/images/import/"])
	assert.Equal(t, 0, report.Remaining["/images/qu/"])
	assert.Equal(t, 1, report.RemainingLegacy())
}

func TestMigrateDryRun(t *testing.T) {
	publicDir := seedPublicDir(t)
	articles := testTree()
	before := testTree()

	report, err := testMigrator(publicDir, true).Migrate(articles)
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 3, report.Copied)
	assert.Equal(t, 4, report.RefsRewritten, "dashboard src and href both count")
	assert.Equal(t, InjectedBeforeRule, report.Injection)
	assert.Equal(t, 1, report.RemainingLegacy())

	assert.Equal(t, before, articles, "dry run must not modify the tree")
	assert.NoDirExists(t, resolvePublicPath(publicDir, "/images/overview"))
	assert.NoDirExists(t, resolvePublicPath(publicDir, "/images/campaigns"))
}

func TestMigrateMissingSource(t *testing.T) {
	publicDir := t.TempDir()
	writeImage(t, publicDir, "/images/import/login.png", "login")

	articles := []*Article{
		{ID: "user-login", Content: `<img src="/images/import/login.png"><img src="/images/import/gone.png">`},
	}

	m := NewImageMigrator(MigratorOptions{
		PublicDir: publicDir,
		ImageRoot: "/images",
		Folders:   FolderMap{"user-login": "overview/user-login"},
	})
	report, err := m.Migrate(articles)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Copied)
	assert.Equal(t, 1, report.Missing)
	assert.Equal(t, []string{"/images/import/gone.png"}, report.MissingPaths)
	assert.Equal(t, InjectionDisabled, report.Injection)

	// the reference is rewritten even though the copy could not happen
	assert.Equal(t,
		`<img src="/images/overview/user-login/login.png"><img src="/images/overview/user-login/gone.png">`,
		articles[0].Content)
}

func TestMigrateInjectionWithoutArticle(t *testing.T) {
	publicDir := seedPublicDir(t)
	articles := []*Article{{ID: "user-login", Content: `<img src="/images/import/login.png">`}}

	report, err := testMigrator(publicDir, false).Migrate(articles)
	require.NoError(t, err)
	assert.Equal(t, InjectionNoArticle, report.Injection)
}

func TestMigrateFileIsIdempotent(t *testing.T) {
	publicDir := seedPublicDir(t)
	articlesPath := filepath.Join(t.TempDir(), "articles.json")
	require.NoError(t, WriteArticles(articlesPath, testTree()))

	first, err := testMigrator(publicDir, false).MigrateFile(articlesPath)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Copied)

	afterFirst, err := os.ReadFile(articlesPath)
	require.NoError(t, err)

	second, err := testMigrator(publicDir, false).MigrateFile(articlesPath)
	require.NoError(t, err)

	afterSecond, err := os.ReadFile(articlesPath)
	require.NoError(t, err)

	assert.Equal(t, string(afterFirst), string(afterSecond))
	assert.Equal(t, 0, second.Copied)
	assert.Equal(t, 0, second.RefsRewritten)
	assert.False(t, second.AssetCopied)
	assert.Equal(t, InjectionAlreadyPresent, second.Injection)
	assert.Equal(t, "login", readImage(t, publicDir, "/images/overview/user-login/login.png"))
}

func TestMigrateFileDryRunLeavesDocument(t *testing.T) {
	publicDir := seedPublicDir(t)
	articlesPath := filepath.Join(t.TempDir(), "articles.json")
	require.NoError(t, WriteArticles(articlesPath, testTree()))

	before, err := os.ReadFile(articlesPath)
	require.NoError(t, err)

	_, err = testMigrator(publicDir, true).MigrateFile(articlesPath)
	require.NoError(t, err)

	after, err := os.ReadFile(articlesPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMigrateFileMalformed(t *testing.T) {
	articlesPath := filepath.Join(t.TempDir(), "articles.json")
	require.NoError(t, os.WriteFile(articlesPath, []byte("{not json"), 0644))

	_, err := testMigrator(t.TempDir(), false).MigrateFile(articlesPath)
	assert.Error(t, err)
}

func TestResolvePublicPath(t *testing.T) {
	tests := []struct {
		urlPath  string
		expected string
	}{
		{"/images/a.png", filepath.Join("pub", "images", "a.png")},
		{"images/a.png", filepath.Join("pub", "images", "a.png")},
		{"/images/../../etc/passwd", filepath.Join("pub", "etc", "passwd")},
	}

	for _, tt := range tests {
		t.Run(tt.urlPath, func(t *testing.T) {
			assert.Equal(t, tt.expected, resolvePublicPath("pub", tt.urlPath))
		})
	}
}

func TestMigrateRewritesEveryOccurrence(t *testing.T) {
	publicDir := seedPublicDir(t)
	articles := []*Article{
		{
			ID:      "homepage-navigation",
			Content: `<p>Welcome</p>`,
		},
		{
			ID:      "user-login",
			Content: `<img src="/images/import/login.png" srcset="/images/import/login.png 2x"><img src='/images/import/login.png'>`,
		},
	}

	report, err := testMigrator(publicDir, false).Migrate(articles)
	require.NoError(t, err)

	assert.Equal(t,
		`<img src="/images/overview/user-login/login.png" srcset="/images/overview/user-login/login.png 2x"><img src='/images/overview/user-login/login.png'>`,
		articles[1].Content)
	assert.Equal(t, 3, report.RefsRewritten)
	assert.Zero(t, report.RemainingLegacy())

	verification, err := testVerifier(publicDir).Verify(articles)
	require.NoError(t, err)
	assert.Empty(t, verification.OldPaths)
	assert.True(t, verification.Passed())
}
