package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orgball2608/reddit-research-bot/internal/domain"
	"github.com/orgball2608/reddit-research-bot/internal/repositories"
	"github.com/orgball2608/reddit-research-bot/pkg/logger"
)

const (
	runsTable     = "research_runs"
	findingsTable = "research_findings"
)

var runColumns = []string{"id", "chat_id", "brand", "status", "fetched", "relevant", "diagnostics", "started_at", "finished_at"}

type Pgx struct {
	pg     *pgxpool.Pool
	logger logger.Logger
}

func NewPgx(pg *pgxpool.Pool, logger logger.Logger) *Pgx {
	return &Pgx{
		pg:     pg,
		logger: logger.WithComponent("RunRepo"),
	}
}

var _ Repository = (*Pgx)(nil)

func (p *Pgx) Create(ctx context.Context, run domain.ResearchRun) error {
	runQuery, runArgs, err := insertRunQuery(run)
	if err != nil {
		return repositories.ErrBadQuery
	}

	tx, err := p.pg.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, runQuery, runArgs...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if len(run.Findings) > 0 {
		findingsQuery, findingsArgs, err := insertFindingsQuery(run.ID, run.Findings)
		if err != nil {
			return repositories.ErrBadQuery
		}
		if _, err := tx.Exec(ctx, findingsQuery, findingsArgs...); err != nil {
			return fmt.Errorf("insert findings: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	p.logger.Debug("Stored research run", "id", run.ID, "findings", len(run.Findings))
	return nil
}

func (p *Pgx) ListByChat(ctx context.Context, chatID int64, limit int) ([]domain.ResearchRun, error) {
	builder := repositories.SqBuilder.
		Select(runColumns...).
		From(runsTable).
		Where(sq.Eq{"chat_id": chatID}).
		OrderBy("started_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	rows, err := p.pg.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.ResearchRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

func (p *Pgx) Get(ctx context.Context, id string) (domain.ResearchRun, error) {
	query, args, err := repositories.SqBuilder.
		Select(runColumns...).
		From(runsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.ResearchRun{}, repositories.ErrBadQuery
	}

	run, err := scanRun(p.pg.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ResearchRun{}, ErrNotFound
		}
		return domain.ResearchRun{}, err
	}

	query, args, err = repositories.SqBuilder.
		Select("post_id", "community", "title", "url", "score", "comments", "posted_at",
			"sentiment", "theme", "summary", "competitor_mentions", "resolution").
		From(findingsTable).
		Where(sq.Eq{"run_id": id}).
		OrderBy("posted_at DESC NULLS LAST", "post_id").
		ToSql()
	if err != nil {
		return domain.ResearchRun{}, repositories.ErrBadQuery
	}

	rows, err := p.pg.Query(ctx, query, args...)
	if err != nil {
		return domain.ResearchRun{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			f         domain.Finding
			postedAt  *time.Time
			sentiment string
			res       string
		)
		if err := rows.Scan(
			&f.Post.ID, &f.Post.Community, &f.Post.Title, &f.Post.Permalink, &f.Post.Score, &f.Post.CommentCount, &postedAt,
			&sentiment, &f.Analysis.Theme, &f.Analysis.Summary, &f.Analysis.CompetitorMentions, &res,
		); err != nil {
			return domain.ResearchRun{}, err
		}
		if postedAt != nil {
			f.Post.CreatedAt = postedAt.UTC()
		}
		f.Analysis.ID = f.Post.ID
		f.Analysis.Sentiment = domain.Sentiment(sentiment)
		f.Analysis.Resolution = domain.Resolution(res)
		run.Findings = append(run.Findings, f)
	}
	if err := rows.Err(); err != nil {
		return domain.ResearchRun{}, err
	}
	return run, nil
}

func (p *Pgx) CleanupOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := repositories.SqBuilder.
		Delete(runsTable).
		Where(sq.Lt{"finished_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, repositories.ErrBadQuery
	}

	result, err := p.pg.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

func insertRunQuery(run domain.ResearchRun) (string, []any, error) {
	return repositories.SqBuilder.
		Insert(runsTable).
		Columns(runColumns...).
		Values(run.ID, run.ChatID, run.Brand, string(run.Status), run.Fetched, run.Relevant,
			run.Diagnostics, run.StartedAt, run.FinishedAt).
		ToSql()
}

func insertFindingsQuery(runID string, findings []domain.Finding) (string, []any, error) {
	builder := repositories.SqBuilder.
		Insert(findingsTable).
		Columns("run_id", "post_id", "community", "title", "url", "score", "comments", "posted_at",
			"sentiment", "theme", "summary", "competitor_mentions", "resolution").
		Suffix("ON CONFLICT (run_id, post_id) DO NOTHING")

	for _, f := range findings {
		var postedAt *time.Time
		if !f.Post.CreatedAt.IsZero() {
			t := f.Post.CreatedAt
			postedAt = &t
		}
		mentions := f.Analysis.CompetitorMentions
		if mentions == nil {
			mentions = []string{}
		}
		builder = builder.Values(runID, f.Post.ID, f.Post.Community, f.Post.Title, f.Post.Link(),
			f.Post.Score, f.Post.CommentCount, postedAt, string(f.Analysis.Sentiment), f.Analysis.Theme,
			f.Analysis.Summary, mentions, string(f.Analysis.Resolution))
	}
	return builder.ToSql()
}

func scanRun(row pgx.Row) (domain.ResearchRun, error) {
	var (
		run    domain.ResearchRun
		status string
	)
	err := row.Scan(&run.ID, &run.ChatID, &run.Brand, &status, &run.Fetched, &run.Relevant,
		&run.Diagnostics, &run.StartedAt, &run.FinishedAt)
	run.Status = domain.RunStatus(status)
	return run, err
}
