package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DekelUsach/Loomi-backend/internal/models"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn, verifies the connection and creates the schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS library_texts (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	owner_id TEXT NOT NULL DEFAULT '',
	source_path TEXT NOT NULL DEFAULT '',
	source_hash TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_library_texts_source_hash ON library_texts(source_hash);

CREATE TABLE IF NOT EXISTS library_paragraphs (
	id BIGSERIAL PRIMARY KEY,
	text_id BIGINT NOT NULL REFERENCES library_texts(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	content TEXT NOT NULL,
	image_url TEXT NOT NULL DEFAULT '',
	UNIQUE (text_id, position)
);

CREATE TABLE IF NOT EXISTS user_texts (
	id BIGSERIAL PRIMARY KEY,
	owner_id TEXT NOT NULL,
	title TEXT NOT NULL,
	library_text_id BIGINT NOT NULL REFERENCES library_texts(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_user_texts_owner ON user_texts(owner_id);

CREATE TABLE IF NOT EXISTS user_paragraphs (
	id BIGSERIAL PRIMARY KEY,
	text_id BIGINT NOT NULL REFERENCES user_texts(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	content TEXT NOT NULL,
	image_url TEXT NOT NULL DEFAULT '',
	UNIQUE (text_id, position)
);
`

func (s *PostgresStore) CreateLibraryText(ctx context.Context, t *models.LibraryText) error {
	t.CreatedAt = time.Now().UTC()
	err := s.pool.QueryRow(ctx,
		`INSERT INTO library_texts (title, owner_id, source_path, source_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		t.Title, t.OwnerID, t.SourcePath, t.SourceHash, t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("insert library text: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateUserText(ctx context.Context, t *models.UserText) error {
	t.CreatedAt = time.Now().UTC()
	err := s.pool.QueryRow(ctx,
		`INSERT INTO user_texts (owner_id, title, library_text_id, created_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		t.OwnerID, t.Title, t.LibraryTextID, t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("insert user text: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteUserText(ctx context.Context, id int64) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_paragraphs WHERE text_id = $1`, id); err != nil {
			return fmt.Errorf("delete user paragraphs: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM user_texts WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete user text: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("user text %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

func (s *PostgresStore) InsertLibraryParagraphs(ctx context.Context, textID int64, ps []models.Paragraph) error {
	return s.insertParagraphs(ctx, "library_paragraphs", textID, ps)
}

func (s *PostgresStore) InsertUserParagraphs(ctx context.Context, textID int64, ps []models.Paragraph) error {
	return s.insertParagraphs(ctx, "user_paragraphs", textID, ps)
}

func (s *PostgresStore) insertParagraphs(ctx context.Context, table string, textID int64, ps []models.Paragraph) error {
	if len(ps) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, p := range ps {
			batch.Queue(`INSERT INTO `+table+` (text_id, position, content, image_url)
				VALUES ($1, $2, $3, $4) RETURNING id`, textID, p.Position, p.Content, p.ImageURL)
		}
		br := tx.SendBatch(ctx, batch)
		for i := range ps {
			if err := br.QueryRow().Scan(&ps[i].ID); err != nil {
				_ = br.Close()
				return fmt.Errorf("insert %s position %d: %w", table, ps[i].Position, err)
			}
			ps[i].TextID = textID
		}
		return br.Close()
	})
}

func (s *PostgresStore) ListLibraryParagraphs(ctx context.Context, textID int64) ([]models.Paragraph, error) {
	return s.listParagraphs(ctx, "library_paragraphs", textID)
}

func (s *PostgresStore) ListUserParagraphs(ctx context.Context, textID int64) ([]models.Paragraph, error) {
	return s.listParagraphs(ctx, "user_paragraphs", textID)
}

func (s *PostgresStore) listParagraphs(ctx context.Context, table string, textID int64) ([]models.Paragraph, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, text_id, position, content, image_url FROM `+table+` WHERE text_id = $1 ORDER BY position`,
		textID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Paragraph
	for rows.Next() {
		var p models.Paragraph
		if err := rows.Scan(&p.ID, &p.TextID, &p.Position, &p.Content, &p.ImageURL); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) queryLibraryText(ctx context.Context, where string, arg any) (*models.LibraryText, error) {
	var t models.LibraryText
	err := s.pool.QueryRow(ctx,
		`SELECT `+libraryTextColumns+` FROM library_texts WHERE `+where+` ORDER BY id LIMIT 1`, arg,
	).Scan(&t.ID, &t.Title, &t.OwnerID, &t.SourcePath, &t.SourceHash, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) GetLibraryText(ctx context.Context, id int64) (*models.LibraryText, error) {
	t, err := s.queryLibraryText(ctx, "id = $1", id)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("library text %d: %w", id, ErrNotFound)
	}
	return t, err
}

func (s *PostgresStore) FindLibraryTextBySource(ctx context.Context, sourceHash string) (*models.LibraryText, error) {
	t, err := s.queryLibraryText(ctx, "source_hash = $1 AND owner_id = ''", sourceHash)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("library text with source %s: %w", sourceHash, ErrNotFound)
	}
	return t, err
}

func (s *PostgresStore) ListLibraryTexts(ctx context.Context) ([]models.LibraryText, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+libraryTextColumns+` FROM library_texts ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.LibraryText
	for rows.Next() {
		var t models.LibraryText
		if err := rows.Scan(&t.ID, &t.Title, &t.OwnerID, &t.SourcePath, &t.SourceHash, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetUserText(ctx context.Context, id int64) (*models.UserText, error) {
	var t models.UserText
	err := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, title, library_text_id, created_at FROM user_texts WHERE id = $1`, id,
	).Scan(&t.ID, &t.OwnerID, &t.Title, &t.LibraryTextID, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user text %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) ListUserTexts(ctx context.Context, ownerID string) ([]models.UserText, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, title, library_text_id, created_at FROM user_texts WHERE owner_id = $1 ORDER BY id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.UserText
	for rows.Next() {
		var t models.UserText
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Title, &t.LibraryTextID, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Counts(ctx context.Context) (models.Counts, error) {
	var c models.Counts
	err := s.pool.QueryRow(ctx, `SELECT
		(SELECT COUNT(*) FROM library_texts),
		(SELECT COUNT(*) FROM library_paragraphs),
		(SELECT COUNT(*) FROM user_texts),
		(SELECT COUNT(*) FROM user_paragraphs)`,
	).Scan(&c.LibraryTexts, &c.LibraryParagraphs, &c.UserTexts, &c.UserParagraphs)
	return c, err
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
