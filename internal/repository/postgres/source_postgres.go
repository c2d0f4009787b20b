package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"studium/internal/database"
	"studium/internal/model"
	"studium/internal/repository"
)

var sourceColumns = []string{
	"id", "title", "description", "owner_user_id", "original_file_name",
	"content_type", "file_path", "file_size", "created_at", "updated_at",
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// SourcePostgres is a PostgreSQL implementation of repository.SourceRepository.
// Queries run on the request session transaction when the context carries one.
type SourcePostgres struct {
	db sqlx.ExtContext
}

// NewSourcePostgres creates a new SourcePostgres repository.
func NewSourcePostgres(db sqlx.ExtContext) *SourcePostgres {
	return &SourcePostgres{db: db}
}

var _ repository.SourceRepository = (*SourcePostgres)(nil)

func (r *SourcePostgres) exec(ctx context.Context) sqlx.ExtContext {
	return database.Executor(ctx, r.db)
}

// Create inserts a new source row and returns the stored record.
func (r *SourcePostgres) Create(ctx context.Context, src *model.Source) (*model.Source, error) {
	q, args, err := psql.Insert("sources").
		Columns("id", "title", "description", "owner_user_id", "original_file_name",
			"content_type", "file_path", "file_size").
		Values(src.ID, src.Title, src.Description, src.OwnerUserID, src.OriginalFileName,
			src.ContentType, src.FilePath, src.FileSize).
		Suffix("RETURNING " + strings.Join(sourceColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}

	var out model.Source
	if err := sqlx.GetContext(ctx, r.exec(ctx), &out, q, args...); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindByID fetches a single source by its ID.
func (r *SourcePostgres) FindByID(ctx context.Context, id uuid.UUID) (*model.Source, error) {
	q, args, err := psql.Select(sourceColumns...).
		From("sources").
		Where(sq.Eq{"id": id.String()}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var s model.Source
	if err := sqlx.GetContext(ctx, r.exec(ctx), &s, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// ListByOwner returns the owner's sources ordered by creation time, newest first.
func (r *SourcePostgres) ListByOwner(ctx context.Context, ownerID string) ([]model.Source, error) {
	q, args, err := psql.Select(sourceColumns...).
		From("sources").
		Where(sq.Eq{"owner_user_id": ownerID}).
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	items := make([]model.Source, 0)
	if err := sqlx.SelectContext(ctx, r.exec(ctx), &items, q, args...); err != nil {
		return nil, err
	}
	return items, nil
}
