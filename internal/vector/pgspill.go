package vector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

const spillSchema = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS vector_spill (
	spill_key TEXT NOT NULL,
	chunk_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	content TEXT NOT NULL,
	embedding vector NOT NULL,
	PRIMARY KEY (spill_key, chunk_id)
);
`

// PostgresSpill stores evicted vectors in a pgvector table.
type PostgresSpill struct {
	pool *pgxpool.Pool
}

// NewPostgresSpill connects to dsn, installs the vector extension and table,
// and registers the pgvector types on every pooled connection.
func NewPostgresSpill(ctx context.Context, dsn string) (*PostgresSpill, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	_, err = conn.Exec(ctx, spillSchema)
	conn.Close(ctx)
	if err != nil {
		return nil, fmt.Errorf("init spill schema: %w", err)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	return &PostgresSpill{pool: pool}, nil
}

// Put inserts all entries of idx in one transaction.
func (p *PostgresSpill) Put(ctx context.Context, key string, idx *MemoryIndex) error {
	var exists bool
	if err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM vector_spill WHERE spill_key = $1)`, key).Scan(&exists); err != nil {
		return fmt.Errorf("check spill %s: %w", key, err)
	}
	if exists {
		return nil
	}
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, e := range idx.Entries() {
			batch.Queue(`INSERT INTO vector_spill (spill_key, chunk_id, position, content, embedding)
				VALUES ($1, $2, $3, $4, $5) ON CONFLICT DO NOTHING`,
				key, e.ID, e.Position, e.Text, pgvector.NewVector(e.Vector))
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert spill %s: %w", key, err)
		}
		return nil
	})
}

// Get rebuilds the index for key ordered by chunk position.
func (p *PostgresSpill) Get(ctx context.Context, key string, dimensions int) (*MemoryIndex, error) {
	rows, err := p.pool.Query(ctx, `SELECT chunk_id, position, content, embedding
		FROM vector_spill WHERE spill_key = $1 ORDER BY position`, key)
	if err != nil {
		return nil, fmt.Errorf("query spill %s: %w", key, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var vec pgvector.Vector
		if err := rows.Scan(&e.ID, &e.Position, &e.Text, &vec); err != nil {
			return nil, fmt.Errorf("scan spill %s: %w", key, err)
		}
		e.Vector = vec.Slice()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read spill %s: %w", key, err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	idx, err := NewMemoryIndex(dimensions)
	if err != nil {
		return nil, err
	}
	if err := idx.Add(entries...); err != nil {
		return nil, fmt.Errorf("rebuild spill %s: %w", key, err)
	}
	return idx, nil
}

// Close closes the pool.
func (p *PostgresSpill) Close() {
	p.pool.Close()
}
