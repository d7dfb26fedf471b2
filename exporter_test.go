package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func exportTree() []*Article {
	return []*Article{
		{
			ID: "campaigns", Title: "Campaigns", Icon: "campaign", Category: "campaigns",
			Content: `<p>Start a <strong>campaign</strong></p>`,
			Children: []*Article{
				{ID: "campaign-dashboard", Title: "Campaign Dashboard", ParentID: "campaigns", Content: `<p>Dashboard</p>`},
			},
		},
		{ID: "map", Title: "Map", Icon: "map", Category: "tools"},
	}
}

// splitFrontmatter returns the frontmatter block and the body of an exported file
func splitFrontmatter(t *testing.T, data []byte, delim string) ([]byte, string) {
	t.Helper()
	d := []byte(delim + "\n")
	require.True(t, bytes.HasPrefix(data, d), "file must start with %q", delim)
	rest := data[len(d):]
	end := bytes.Index(rest, d)
	require.NotEqual(t, -1, end, "closing %q not found", delim)
	return rest[:end], strings.TrimSpace(string(rest[end+len(d):]))
}

func TestExportYAML(t *testing.T) {
	outDir := t.TempDir()

	report, err := NewExporter(outDir, false).Export(exportTree(), "yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(outDir, "campaigns.md"),
		filepath.Join(outDir, "campaigns", "campaign-dashboard.md"),
		filepath.Join(outDir, "map.md"),
	}, report.Files)

	data, err := os.ReadFile(filepath.Join(outDir, "campaigns.md"))
	require.NoError(t, err)
	block, body := splitFrontmatter(t, data, "---")

	var fm Frontmatter
	require.NoError(t, yaml.Unmarshal(block, &fm))
	assert.Equal(t, Frontmatter{ID: "campaigns", Title: "Campaigns", Category: "campaigns", Icon: "campaign", Weight: 1}, fm)
	assert.Equal(t, "Start a **campaign**", body)

	data, err = os.ReadFile(filepath.Join(outDir, "campaigns", "campaign-dashboard.md"))
	require.NoError(t, err)
	block, body = splitFrontmatter(t, data, "---")

	fm = Frontmatter{}
	require.NoError(t, yaml.Unmarshal(block, &fm))
	assert.Equal(t, Frontmatter{ID: "campaign-dashboard", Title: "Campaign Dashboard", Category: "campaigns", Parent: "campaigns", Weight: 1}, fm)
	assert.Equal(t, "Dashboard", body)

	data, err = os.ReadFile(filepath.Join(outDir, "map.md"))
	require.NoError(t, err)
	block, body = splitFrontmatter(t, data, "---")
	fm = Frontmatter{}
	require.NoError(t, yaml.Unmarshal(block, &fm))
	assert.Equal(t, 2, fm.Weight)
	assert.Empty(t, body)
}

func TestExportTOML(t *testing.T) {
	outDir := t.TempDir()

	_, err := NewExporter(outDir, false).Export(exportTree(), "TOML")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(outDir, "campaigns", "campaign-dashboard.md"))
	require.NoError(t, err)
	block, body := splitFrontmatter(t, data, "+++")

	var fm Frontmatter
	require.NoError(t, toml.Unmarshal(block, &fm))
	assert.Equal(t, "campaign-dashboard", fm.ID)
	assert.Equal(t, "campaigns", fm.Parent)
	assert.Equal(t, "campaigns", fm.Category)
	assert.Equal(t, "Dashboard", body)
}

func TestExportUnknownFormat(t *testing.T) {
	outDir := t.TempDir()

	_, err := NewExporter(outDir, false).Export(exportTree(), "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported frontmatter format")

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExportDryRun(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "export")

	report, err := NewExporter(outDir, true).Export(exportTree(), "yaml")
	require.NoError(t, err)
	assert.Len(t, report.Files, 3)
	assert.NoDirExists(t, outDir)
}

type upperEncoder struct{}

func (upperEncoder) CanHandle(format string) bool { return format == "upper" }

func (upperEncoder) Encode(fm Frontmatter, body string) ([]byte, error) {
	return []byte(strings.ToUpper(fm.ID) + "\n"), nil
}

func TestExportCustomEncoder(t *testing.T) {
	outDir := t.TempDir()

	e := NewExporter(outDir, false)
	e.AddEncoder(upperEncoder{})

	_, err := e.Export(exportTree()[1:], "upper")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(outDir, "map.md"))
	require.NoError(t, err)
	assert.Equal(t, "MAP\n", string(data))
}

func TestExportRejectsUnsafeIDs(t *testing.T) {
	tests := []struct {
		name     string
		articles []*Article
	}{
		{"parent traversal", []*Article{{ID: "../escape", Title: "x"}}},
		{"child path separator", []*Article{{ID: "lists", Children: []*Article{{ID: "a/b", ParentID: "lists"}}}}},
		{"duplicate ids", []*Article{{ID: "map"}, {ID: "map"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			outDir := filepath.Join(root, "export")

			_, err := NewExporter(outDir, false).Export(tt.articles, "yaml")
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)

			entries, err := os.ReadDir(root)
			require.NoError(t, err)
			assert.Empty(t, entries, "nothing may be written")
		})
	}
}
