package main

import (
	"log"
	"sort"
	"strings"
)

var rule = strings.Repeat("=", 60)

func printBanner(title string) {
	log.Printf("%s", rule)
	log.Printf("  %s", title)
	log.Printf("%s", rule)
}

func modeLabel(dry bool) string {
	if dry {
		return "(DRY RUN)"
	}
	return "(LIVE)"
}

func printBuildSummary(report *BuildReport, articlesPath string) {
	log.Printf("✓ Built %d articles with %d children → %s", report.Parents, report.Children, articlesPath)
	if report.Missing > 0 {
		log.Printf("⚠ %d definitions had no source file:", report.Missing)
		for _, r := range report.Results {
			if r.Status == StatusMissing {
				log.Printf("    %s (%s)", r.ID, r.File)
			}
		}
	}
}

func printMigrationSummary(report *MigrationReport) {
	prefixes := make([]string, 0, len(report.Remaining))
	for p := range report.Remaining {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)

	log.Printf("─── Verification ───")
	for _, p := range prefixes {
		log.Printf("  Remaining %s references: %d", p, report.Remaining[p])
	}
	if report.RemainingLegacy() == 0 {
		log.Printf("  ✓ All old paths have been migrated!")
	} else {
		log.Printf("  ⚠ Some old paths still remain (may be in non-image contexts)")
	}

	printBanner("SUMMARY")
	log.Printf("  Total image references: %d", report.Plan.References)
	log.Printf("  Unique paths mapped: %d", len(report.Plan.Mapping))
	log.Printf("  Articles with images: %d", report.Plan.Articles)
	log.Printf("  Topic directories: %d", len(report.Plan.Directories))
	log.Printf("  Copied: %d | Skipped: %d | Missing: %d", report.Copied, report.Skipped, report.Missing)
	log.Printf("  Collisions: %d", len(report.Plan.Collisions))
	log.Printf("  References rewritten: %d in %d articles", report.RefsRewritten, report.ArticlesRewritten)
	log.Printf("  Injected asset: %s", report.Injection)
	if report.DryRun {
		log.Printf("  Mode: DRY RUN (no files changed)")
	} else {
		log.Printf("  Mode: LIVE (changes applied)")
	}
	log.Printf("%s", rule)
}

func printVerificationSummary(report *VerificationReport) {
	log.Printf("  Top-level articles: %d", report.TopLevel)
	log.Printf("  Total articles (incl children): %d", report.Articles)
	log.Printf("  Total image references: %d", report.TotalImages)
	log.Printf("  Missing files: %d", len(report.Missing))
	log.Printf("  Old paths remaining: %d", len(report.OldPaths))
	if report.DesignatedArticle != "" {
		mark := "NO ✗"
		if report.DesignatedHasImage {
			mark = "YES ✓"
		}
		log.Printf("  %s has image: %s", report.DesignatedArticle, mark)
	}

	if report.Passed() {
		log.Printf("✓ ALL CHECKS PASSED!")
	} else {
		log.Printf("✗ SOME CHECKS FAILED")
	}
}
