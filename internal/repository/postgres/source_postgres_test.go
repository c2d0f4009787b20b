package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studium/internal/database"
	"studium/internal/model"
	"studium/internal/repository"
)

func newRepo(t *testing.T) (*SourcePostgres, *sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { db.Close() })
	xdb := sqlx.NewDb(db, database.DriverName)
	return NewSourcePostgres(xdb), xdb, mock
}

func sourceRows() *sqlmock.Rows {
	return sqlmock.NewRows(sourceColumns)
}

func strPtr(s string) *string { return &s }

func TestSourcePostgres_Create(t *testing.T) {
	repo, _, mock := newRepo(t)
	ctx := context.Background()

	now := time.Now().UTC()
	src := &model.Source{
		ID:               uuid.New(),
		Title:            "Linear Algebra",
		Description:      strPtr("chapter 1"),
		OwnerUserID:      strPtr("local-dev"),
		OriginalFileName: "la.pdf",
		ContentType:      "application/pdf",
		FilePath:         "/app/storage/uploads/x.pdf",
		FileSize:         123,
	}

	mock.ExpectQuery("INSERT INTO sources (.+) RETURNING id, title").
		WithArgs(src.ID, src.Title, src.Description, src.OwnerUserID, src.OriginalFileName,
			src.ContentType, src.FilePath, src.FileSize).
		WillReturnRows(sourceRows().AddRow(src.ID.String(), src.Title, "chapter 1", "local-dev",
			src.OriginalFileName, src.ContentType, src.FilePath, src.FileSize, now, now))

	result, err := repo.Create(ctx, src)

	require.NoError(t, err)
	assert.Equal(t, src.ID, result.ID)
	assert.Equal(t, "chapter 1", *result.Description)
	assert.Equal(t, now, result.CreatedAt)
	assert.Equal(t, now, result.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSourcePostgres_Create_Error(t *testing.T) {
	repo, _, mock := newRepo(t)

	mock.ExpectQuery("INSERT INTO sources").WillReturnError(errors.New("disk full"))

	result, err := repo.Create(context.Background(), &model.Source{ID: uuid.New()})
	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestSourcePostgres_FindByID(t *testing.T) {
	repo, _, mock := newRepo(t)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		id := uuid.New()
		mock.ExpectQuery(`SELECT (.+) FROM sources WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnRows(sourceRows().AddRow(id.String(), "t", nil, "local-dev", "f.pdf",
				"application/pdf", "/p/f.pdf", 100, time.Now(), time.Now()))

		src, err := repo.FindByID(ctx, id)

		require.NoError(t, err)
		assert.Equal(t, id, src.ID)
		assert.Nil(t, src.Description)
		assert.Equal(t, "local-dev", *src.OwnerUserID)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New()
		mock.ExpectQuery(`SELECT (.+) FROM sources WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnError(sql.ErrNoRows)

		src, err := repo.FindByID(ctx, id)

		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.Nil(t, src)
	})

	t.Run("db error", func(t *testing.T) {
		id := uuid.New()
		mock.ExpectQuery(`SELECT (.+) FROM sources WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnError(errors.New("conn refused"))

		src, err := repo.FindByID(ctx, id)

		assert.Error(t, err)
		assert.NotErrorIs(t, err, repository.ErrNotFound)
		assert.Nil(t, src)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSourcePostgres_ListByOwner(t *testing.T) {
	repo, _, mock := newRepo(t)
	ctx := context.Background()

	t.Run("newest first", func(t *testing.T) {
		base := time.Now().UTC()
		c, b := uuid.New(), uuid.New()
		mock.ExpectQuery(`SELECT (.+) FROM sources WHERE owner_user_id = \$1 ORDER BY created_at DESC, id DESC`).
			WithArgs("local-dev").
			WillReturnRows(sourceRows().
				AddRow(c.String(), "C", nil, "local-dev", "c.pdf", "application/pdf", "/c.pdf", 1, base.Add(2*time.Second), base).
				AddRow(b.String(), "B", nil, "local-dev", "b.pdf", "application/pdf", "/b.pdf", 1, base.Add(time.Second), base))

		items, err := repo.ListByOwner(ctx, "local-dev")

		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, c, items[0].ID)
		assert.Equal(t, b, items[1].ID)
	})

	t.Run("empty list is not nil", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM sources WHERE owner_user_id = \$1`).
			WithArgs("nobody").
			WillReturnRows(sourceRows())

		items, err := repo.ListByOwner(ctx, "nobody")

		require.NoError(t, err)
		assert.NotNil(t, items)
		assert.Empty(t, items)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSourcePostgres_UsesSessionTransaction(t *testing.T) {
	repo, db, mock := newRepo(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM sources WHERE id = \$1`).
		WithArgs(id.String()).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := database.WithSession(context.Background(), db, func(ctx context.Context) error {
		_, err := repo.FindByID(ctx, id)
		return err
	})

	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
