// Package resume supplies the candidate resume text and guards the sections
// that curation must never rewrite.
package resume

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrEmpty is returned when a provider has no resume text to offer.
var ErrEmpty = errors.New("resume is empty")

// Provider returns the full resume as one text blob in a deterministic order.
type Provider interface {
	ResumeText(ctx context.Context) (string, error)
}

// FileProvider reads a Markdown resume from disk.
type FileProvider struct {
	Path string
}

func (p FileProvider) ResumeText(_ context.Context) (string, error) {
	if strings.TrimSpace(p.Path) == "" {
		return "", errors.New("resume file path is required")
	}

	data, err := os.ReadFile(p.Path)
	if err != nil {
		return "", fmt.Errorf("read resume file: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("read resume file %s: %w", p.Path, ErrEmpty)
	}
	return string(data), nil
}

//go:embed schema.sql
var schema string

const defaultCollection = "resume"

// PostgresProvider concatenates the chunks stored for one collection,
// ordered by their position in the source document.
type PostgresProvider struct {
	pool       *pgxpool.Pool
	collection string
}

func NewPostgresProvider(pool *pgxpool.Pool, collection string) *PostgresProvider {
	if collection = strings.TrimSpace(collection); collection == "" {
		collection = defaultCollection
	}
	return &PostgresProvider{pool: pool, collection: collection}
}

// EnsureSchema creates the chunk table when it does not exist yet.
func (p *PostgresProvider) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply resume schema: %w", err)
	}
	return nil
}

func (p *PostgresProvider) ResumeText(ctx context.Context) (string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT content FROM resume_chunks WHERE collection = $1 ORDER BY ordinal, id`,
		p.collection)
	if err != nil {
		return "", fmt.Errorf("query resume chunks: %w", err)
	}
	defer rows.Close()

	var chunks []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return "", fmt.Errorf("scan resume chunk: %w", err)
		}
		chunks = append(chunks, content)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate resume chunks: %w", err)
	}

	if len(chunks) == 0 {
		return "", fmt.Errorf("collection %q: %w", p.collection, ErrEmpty)
	}
	return strings.Join(chunks, "\n"), nil
}
