package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/DekelUsach/Loomi-backend/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS library_texts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	owner_id TEXT,
	source_path TEXT,
	source_hash TEXT,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_library_texts_source_hash ON library_texts(source_hash);

CREATE TABLE IF NOT EXISTS library_paragraphs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	text_id INTEGER NOT NULL REFERENCES library_texts(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	content TEXT NOT NULL,
	image_url TEXT,
	UNIQUE (text_id, position)
);

CREATE TABLE IF NOT EXISTS user_texts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id TEXT NOT NULL,
	title TEXT NOT NULL,
	library_text_id INTEGER NOT NULL REFERENCES library_texts(id) ON DELETE CASCADE,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_user_texts_owner ON user_texts(owner_id);

CREATE TABLE IF NOT EXISTS user_paragraphs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	text_id INTEGER NOT NULL REFERENCES user_texts(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	content TEXT NOT NULL,
	image_url TEXT,
	UNIQUE (text_id, position)
);
`

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CreateLibraryText inserts t and sets its ID and CreatedAt.
func (s *SQLiteStore) CreateLibraryText(ctx context.Context, t *models.LibraryText) error {
	t.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO library_texts (title, owner_id, source_path, source_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		t.Title, nullString(t.OwnerID), nullString(t.SourcePath), nullString(t.SourceHash), t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert library text: %w", err)
	}
	t.ID, err = res.LastInsertId()
	return err
}

// CreateUserText inserts t and sets its ID and CreatedAt.
func (s *SQLiteStore) CreateUserText(ctx context.Context, t *models.UserText) error {
	t.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO user_texts (owner_id, title, library_text_id, created_at) VALUES (?, ?, ?, ?)`,
		t.OwnerID, t.Title, t.LibraryTextID, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user text: %w", err)
	}
	t.ID, err = res.LastInsertId()
	return err
}

// DeleteUserText removes user text id and its paragraphs.
func (s *SQLiteStore) DeleteUserText(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_paragraphs WHERE text_id = ?`, id); err != nil {
		return fmt.Errorf("delete user paragraphs: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM user_texts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user text: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("user text %d: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

// InsertLibraryParagraphs inserts ps for textID in one transaction.
func (s *SQLiteStore) InsertLibraryParagraphs(ctx context.Context, textID int64, ps []models.Paragraph) error {
	return s.insertParagraphs(ctx, "library_paragraphs", textID, ps)
}

// InsertUserParagraphs inserts ps for textID in one transaction.
func (s *SQLiteStore) InsertUserParagraphs(ctx context.Context, textID int64, ps []models.Paragraph) error {
	return s.insertParagraphs(ctx, "user_paragraphs", textID, ps)
}

func (s *SQLiteStore) insertParagraphs(ctx context.Context, table string, textID int64, ps []models.Paragraph) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO `+table+` (text_id, position, content, image_url) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range ps {
		res, err := stmt.ExecContext(ctx, textID, ps[i].Position, ps[i].Content, nullString(ps[i].ImageURL))
		if err != nil {
			return fmt.Errorf("insert %s position %d: %w", table, ps[i].Position, err)
		}
		if ps[i].ID, err = res.LastInsertId(); err != nil {
			return err
		}
		ps[i].TextID = textID
	}
	return tx.Commit()
}

// ListLibraryParagraphs returns the paragraphs of textID ordered by position.
func (s *SQLiteStore) ListLibraryParagraphs(ctx context.Context, textID int64) ([]models.Paragraph, error) {
	return s.listParagraphs(ctx, "library_paragraphs", textID)
}

// ListUserParagraphs returns the paragraphs of textID ordered by position.
func (s *SQLiteStore) ListUserParagraphs(ctx context.Context, textID int64) ([]models.Paragraph, error) {
	return s.listParagraphs(ctx, "user_paragraphs", textID)
}

func (s *SQLiteStore) listParagraphs(ctx context.Context, table string, textID int64) ([]models.Paragraph, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text_id, position, content, image_url FROM `+table+` WHERE text_id = ? ORDER BY position`,
		textID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Paragraph
	for rows.Next() {
		var p models.Paragraph
		var image sql.NullString
		if err := rows.Scan(&p.ID, &p.TextID, &p.Position, &p.Content, &image); err != nil {
			return nil, err
		}
		p.ImageURL = image.String
		out = append(out, p)
	}
	return out, rows.Err()
}

const libraryTextColumns = `id, title, owner_id, source_path, source_hash, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLibraryText(row rowScanner) (*models.LibraryText, error) {
	var t models.LibraryText
	var owner, path, hash sql.NullString
	if err := row.Scan(&t.ID, &t.Title, &owner, &path, &hash, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.OwnerID, t.SourcePath, t.SourceHash = owner.String, path.String, hash.String
	return &t, nil
}

// GetLibraryText returns the library text with id or ErrNotFound.
func (s *SQLiteStore) GetLibraryText(ctx context.Context, id int64) (*models.LibraryText, error) {
	t, err := scanLibraryText(s.db.QueryRowContext(ctx,
		`SELECT `+libraryTextColumns+` FROM library_texts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("library text %d: %w", id, ErrNotFound)
	}
	return t, err
}

// FindLibraryTextBySource returns the oldest library text with sourceHash or ErrNotFound.
func (s *SQLiteStore) FindLibraryTextBySource(ctx context.Context, sourceHash string) (*models.LibraryText, error) {
	t, err := scanLibraryText(s.db.QueryRowContext(ctx,
		`SELECT `+libraryTextColumns+` FROM library_texts WHERE source_hash = ? AND (owner_id IS NULL OR owner_id = '') ORDER BY id LIMIT 1`, sourceHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("library text with source %s: %w", sourceHash, ErrNotFound)
	}
	return t, err
}

// ListLibraryTexts returns all library texts, newest first.
func (s *SQLiteStore) ListLibraryTexts(ctx context.Context) ([]models.LibraryText, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+libraryTextColumns+` FROM library_texts ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.LibraryText
	for rows.Next() {
		t, err := scanLibraryText(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// GetUserText returns the user text with id or ErrNotFound.
func (s *SQLiteStore) GetUserText(ctx context.Context, id int64) (*models.UserText, error) {
	var t models.UserText
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, title, library_text_id, created_at FROM user_texts WHERE id = ?`, id,
	).Scan(&t.ID, &t.OwnerID, &t.Title, &t.LibraryTextID, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user text %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListUserTexts returns ownerID's texts, newest first.
func (s *SQLiteStore) ListUserTexts(ctx context.Context, ownerID string) ([]models.UserText, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, title, library_text_id, created_at FROM user_texts WHERE owner_id = ? ORDER BY id DESC`,
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

// Counts returns the number of rows in each table.
func (s *SQLiteStore) Counts(ctx context.Context) (models.Counts, error) {
	var c models.Counts
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM library_texts),
		(SELECT COUNT(*) FROM library_paragraphs),
		(SELECT COUNT(*) FROM user_texts),
		(SELECT COUNT(*) FROM user_paragraphs)`,
	).Scan(&c.LibraryTexts, &c.LibraryParagraphs, &c.UserTexts, &c.UserParagraphs)
	return c, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
