package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	settingsPath    string
	definitionsPath string
	debugMode       bool
	dryRun          bool
	exportFormat    string
	exportDir       string
	debugEnabled    bool
)

// SetDebugMode enables or disables debug logging
func SetDebugMode(enabled bool) {
	debugEnabled = enabled
}

func debugLog(format string, args ...interface{}) {
	if debugEnabled {
		log.Printf("[DEBUG] "+format, args...)
	}
}

var rootCmd = &cobra.Command{
	Use:   "kbmigrate",
	Short: "Knowledge-base content migration pipeline",
	Long: `Turns the legacy HTML help export into the articles document, moves images into
per-topic folders, verifies the result and seeds the database.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debugMode {
			SetDebugMode(true)
		}
	},
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Extract legacy HTML into the articles document",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoadConfig()
		s := cfg.Settings

		defs, err := cfg.LoadDefinitions()
		if err != nil {
			log.Fatalf("Loading definitions failed: %v", err)
		}

		extractor := NewContentExtractor(s.DeadLinkHost, s.Extract.Sanitize)
		articles, report, err := NewTreeBuilder(extractor, s.SourceDirectory).Build(defs.Articles)
		if err != nil {
			log.Fatalf("Build failed: %v", err)
		}

		if err := WriteArticles(s.ArticlesPath, articles); err != nil {
			log.Fatalf("Writing articles failed: %v", err)
		}

		printBuildSummary(report, s.ArticlesPath)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Move images into topic folders and rewrite article paths",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := mustLoadConfig().Settings

		printBanner(fmt.Sprintf("IMAGE MIGRATION %s", modeLabel(dryRun)))

		injection := s.Injection
		migrator := NewImageMigrator(MigratorOptions{
			PublicDir:      s.PublicDirectory,
			ImageRoot:      s.ImageRoot,
			Folders:        s.Folders,
			Injection:      &injection,
			LegacyPrefixes: s.LegacyPrefixes,
			DryRun:         dryRun,
		})

		report, err := migrator.MigrateFile(s.ArticlesPath)
		if err != nil {
			log.Fatalf("Migration failed: %v", err)
		}

		printMigrationSummary(report)
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check migrated articles for stale or missing image paths",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := mustLoadConfig().Settings

		verifier := NewVerifier(s.PublicDirectory, s.ImageRoot, s.LegacyPrefixes, s.DesignatedArticle)
		report, err := verifier.VerifyFile(s.ArticlesPath)
		if err != nil {
			log.Fatalf("Verification failed: %v", err)
		}

		printVerificationSummary(report)
		if !report.Passed() {
			os.Exit(1)
		}
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the articles table from the articles document",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		s := mustLoadConfig().Settings

		databaseURL := os.Getenv("DATABASE_URL")
		if databaseURL == "" {
			log.Fatal("DATABASE_URL is required (environment or .env)")
		}

		articles, err := ReadArticles(s.ArticlesPath)
		if err != nil {
			log.Fatalf("Loading articles failed: %v", err)
		}

		ctx := context.Background()
		pool, err := CreateConnectionPool(ctx, databaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pool.Close()

		seeder := NewArticleSeeder(pool)
		if err := seeder.EnsureSchema(ctx); err != nil {
			log.Fatalf("Schema setup failed: %v", err)
		}
		if _, err := seeder.Seed(ctx, articles); err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export articles as Markdown with frontmatter",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := mustLoadConfig().Settings

		format := s.Export.Format
		if exportFormat != "" {
			format = exportFormat
		}
		outDir := s.Export.OutputDirectory
		if exportDir != "" {
			outDir = exportDir
		}

		articles, err := ReadArticles(s.ArticlesPath)
		if err != nil {
			log.Fatalf("Loading articles failed: %v", err)
		}

		report, err := NewExporter(outDir, dryRun).Export(articles, format)
		if err != nil {
			log.Fatalf("Export failed: %v", err)
		}
		log.Printf("✓ Exported %d files to %s (%s)", len(report.Files), outDir, modeLabel(dryRun))
	},
}

func mustLoadConfig() *Config {
	overrides := &ConfigOverrides{}
	if settingsPath != "" {
		overrides.SettingsPath = &settingsPath
	}
	if definitionsPath != "" {
		overrides.DefinitionsPath = &definitionsPath
	}

	cfg, err := NewConfig(overrides)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "Path to settings file (default .kbmigrate/settings.yaml)")
	rootCmd.PersistentFlags().StringVar(&definitionsPath, "definitions", "", "Path to article definitions file (default articles.yaml next to the settings file)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	migrateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview the migration without touching files")

	exportCmd.Flags().BoolVar(&dryRun, "dry-run", false, "List files without writing them")
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "Frontmatter format: yaml or toml")
	exportCmd.Flags().StringVar(&exportDir, "out", "", "Output directory")

	rootCmd.AddCommand(buildCmd, migrateCmd, verifyCmd, seedCmd, exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
