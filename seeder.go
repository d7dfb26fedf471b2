package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const articlesSchema = `
CREATE TABLE IF NOT EXISTS articles (
	id VARCHAR(100) PRIMARY KEY,
	title VARCHAR(500) NOT NULL,
	content TEXT DEFAULT '',
	search_text TEXT DEFAULT '',
	category VARCHAR(50),
	parent_id VARCHAR(100) REFERENCES articles(id) ON DELETE SET NULL,
	sort_order INTEGER DEFAULT 0,
	icon VARCHAR(50),
	created_at TIMESTAMPTZ DEFAULT NOW(),
	updated_at TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_articles_category ON articles(category);
CREATE INDEX IF NOT EXISTS idx_articles_parent_id ON articles(parent_id);
`

const insertArticleSQL = `INSERT INTO articles (id, title, content, search_text, category, parent_id, sort_order, icon)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row
}

// TxFn runs inside a transaction
type TxFn func(ctx context.Context, tx DBTX) error

// TxRunner executes a function within a transaction
type TxRunner interface {
	ExecTx(ctx context.Context, fn TxFn) error
}

// PoolTxRunner runs transactions on a pgx pool
type PoolTxRunner struct {
	pool *pgxpool.Pool
}

// ExecTx commits when fn succeeds and rolls back otherwise
func (r *PoolTxRunner) ExecTx(ctx context.Context, fn TxFn) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	// Rollback after a successful commit is a no-op
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			log.Printf("rollback failed: %v", err)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// CreateConnectionPool opens and pings a pgx pool
func CreateConnectionPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	config.MaxConns = 4

	// PgBouncer transaction pooling does not support prepared statements
	if config.ConnConfig.Port == 6543 && config.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// ArticleSeeder populates the articles table from the articles document
type ArticleSeeder struct {
	db DBTX
	tx TxRunner
}

// SeedResult reports what a seed run did
type SeedResult struct {
	Skipped  bool
	Existing int
	Parents  int
	Children int
}

// NewArticleSeeder creates a seeder over a pgx pool
func NewArticleSeeder(pool *pgxpool.Pool) *ArticleSeeder {
	return &ArticleSeeder{db: pool, tx: &PoolTxRunner{pool: pool}}
}

// EnsureSchema creates the articles table and its indexes
func (s *ArticleSeeder) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, articlesSchema); err != nil {
		return fmt.Errorf("creating articles schema: %w", err)
	}
	return nil
}

// Seed inserts every article unless the table already has rows. Parents
// get their list position as sort order; children get their position within
// the parent and inherit the parent's category.
func (s *ArticleSeeder) Seed(ctx context.Context, articles []*Article) (*SeedResult, error) {
	if err := ValidateTree(articles); err != nil {
		return nil, err
	}

	var count int
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM articles").Scan(&count); err != nil {
		return nil, fmt.Errorf("counting articles: %w", err)
	}
	if count > 0 {
		log.Printf("Articles already seeded (%d rows), skipping", count)
		return &SeedResult{Skipped: true, Existing: count}, nil
	}

	result := &SeedResult{}
	err := s.tx.ExecTx(ctx, func(ctx context.Context, tx DBTX) error {
		for i, a := range articles {
			if _, err := tx.Exec(ctx, insertArticleSQL,
				a.ID, a.Title, a.Content, a.SearchText, nullable(a.Category), nil, i, nullable(a.Icon)); err != nil {
				return insertError(a.ID, err)
			}
			result.Parents++
		}

		for _, a := range articles {
			for j, c := range a.Children {
				if _, err := tx.Exec(ctx, insertArticleSQL,
					c.ID, c.Title, c.Content, c.SearchText, nullable(a.Category), a.ID, j, nil); err != nil {
					return insertError(c.ID, err)
				}
				result.Children++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✓ Seeded %d articles and %d children", result.Parents, result.Children)
	return result, nil
}

// ValidationError lists every structural problem found in a tree
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid article tree: %s", strings.Join(e.Problems, "; "))
}

// ValidateTree checks the invariants the store and the exporter rely on:
// ids are unique slugs across the whole tree, children have no children,
// and parent references point at a top-level article.
func ValidateTree(articles []*Article) error {
	var problems []string
	seen := make(map[string]bool)
	topLevel := make(map[string]bool, len(articles))

	for _, a := range articles {
		topLevel[a.ID] = true
	}

	for _, fa := range Flatten(articles) {
		if fa.ID == "" {
			problems = append(problems, "article with empty id")
		} else if !slugPattern.MatchString(fa.ID) {
			problems = append(problems, fmt.Sprintf("id %q is not a slug", fa.ID))
		}
		if fa.ID != "" && seen[fa.ID] {
			problems = append(problems, fmt.Sprintf("duplicate id %q", fa.ID))
		}
		seen[fa.ID] = true

		if fa.Parent == "" {
			if fa.ParentID != "" {
				problems = append(problems, fmt.Sprintf("top-level %q has parentId %q", fa.ID, fa.ParentID))
			}
			continue
		}

		if len(fa.Children) > 0 {
			problems = append(problems, fmt.Sprintf("child %q has children", fa.ID))
		}
		if fa.ParentID != fa.Parent || !topLevel[fa.ParentID] {
			problems = append(problems, fmt.Sprintf("child %q has parentId %q, want %q", fa.ID, fa.ParentID, fa.Parent))
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func insertError(id string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("article %q already exists: %w", id, err)
		case "23503":
			return fmt.Errorf("article %q references a missing parent: %w", id, err)
		}
	}
	return fmt.Errorf("inserting article %q: %w", id, err)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
