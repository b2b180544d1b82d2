package jobs

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spigell/job-curator/internal/utils"
)

//go:embed schema.sql
var schema string

const jobColumns = `title, company, job_url, description, location, is_remote,
	score, COALESCE(recommendations, ''), curated, curated_resume, created_at, updated_at`

// PostgresStore persists jobs in the jobs table. job_url is the natural key.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the jobs table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply jobs schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertJob(ctx context.Context, job Job) (*Job, error) {
	url := strings.TrimSpace(job.JobURL)
	if url == "" {
		return nil, fmt.Errorf("upsert job: job_url is required")
	}

	var stored *Job
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO jobs (title, company, job_url, description, location, is_remote)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (job_url) DO UPDATE SET
				title = EXCLUDED.title,
				company = EXCLUDED.company,
				description = EXCLUDED.description,
				location = EXCLUDED.location,
				is_remote = EXCLUDED.is_remote,
				updated_at = NOW()
			RETURNING `+jobColumns,
			job.Title, job.Company, url, job.Description, job.Location, job.IsRemote)

		var err error
		stored, err = scanJob(row)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("upsert job %q: %w", url, err)
	}
	return stored, nil
}

func (s *PostgresStore) FetchJobs(ctx context.Context, filter Filter) ([]Job, error) {
	where, args := buildWhere(filter)
	rows, err := s.pool.Query(ctx, `SELECT `+jobColumns+` FROM jobs`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch jobs: %w", err)
	}
	return collectJobs(rows)
}

func (s *PostgresStore) UpdateScore(ctx context.Context, jobURL string, score int, recommendations string) error {
	return s.UpdateScores(ctx, []ScoreUpdate{{JobURL: jobURL, Score: score, Recommendations: recommendations}})
}

func (s *PostgresStore) UpdateScores(ctx context.Context, updates []ScoreUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	return s.inTx(ctx, func(tx pgx.Tx) error {
		for _, u := range updates {
			if err := validateScore(u.Score); err != nil {
				return fmt.Errorf("update score for %q: %w", u.JobURL, err)
			}
			tag, err := tx.Exec(ctx,
				`UPDATE jobs SET score = $1, recommendations = $2, updated_at = NOW() WHERE job_url = $3`,
				u.Score, utils.CollapseWhitespace(u.Recommendations), u.JobURL)
			if err != nil {
				return fmt.Errorf("update score for %q: %w", u.JobURL, err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("update score for %q: %w", u.JobURL, ErrNotFound)
			}
		}
		return nil
	})
}

func (s *PostgresStore) UpdateCuratedResume(ctx context.Context, jobURL, curatedResume string) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE jobs SET curated_resume = $1, curated = TRUE, updated_at = NOW() WHERE job_url = $2`,
			curatedResume, jobURL)
		if err != nil {
			return fmt.Errorf("update curated resume for %q: %w", jobURL, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("update curated resume for %q: %w", jobURL, ErrNotFound)
		}
		return nil
	})
}

func (s *PostgresStore) FetchRanked(ctx context.Context, limit int) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY score DESC NULLS LAST, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch ranked jobs: %w", err)
	}
	return collectJobs(rows)
}

func (s *PostgresStore) GetCuratedResume(ctx context.Context, jobURL string) (*Job, error) {
	if strings.TrimSpace(jobURL) == "" {
		return nil, fmt.Errorf("job_url must not be empty")
	}

	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE job_url = $1`, jobURL)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get curated resume for %q: %w", jobURL, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get curated resume for %q: %w", jobURL, err)
	}
	return job, nil
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func buildWhere(f Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)

	if f.Curated != nil {
		args = append(args, *f.Curated)
		clauses = append(clauses, fmt.Sprintf("curated = $%d", len(args)))
	}
	if f.MinScore != nil {
		args = append(args, *f.MinScore)
		clauses = append(clauses, fmt.Sprintf("score > $%d", len(args)))
	}
	if f.Unscored {
		clauses = append(clauses, "score IS NULL")
	}
	if len(f.JobURLs) > 0 {
		args = append(args, f.JobURLs)
		clauses = append(clauses, fmt.Sprintf("job_url = ANY($%d)", len(args)))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanJob(row pgx.Row) (*Job, error) {
	var (
		job   Job
		score *int32
	)
	err := row.Scan(
		&job.Title, &job.Company, &job.JobURL, &job.Description, &job.Location, &job.IsRemote,
		&score, &job.Recommendations, &job.Curated, &job.CuratedResume, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if score != nil {
		v := int(*score)
		job.Score = &v
	}
	return &job, nil
}

func collectJobs(rows pgx.Rows) ([]Job, error) {
	defer rows.Close()

	var result []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		result = append(result, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return result, nil
}
