package db

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/raphaelgruber/docrelay/internal/models"
)

// QueryInsertChunks writes chunks in a single transaction.
func (c *Client) QueryInsertChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, source, position, content, metadata, embedding, dimension, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, ch := range chunks {
		meta, err := json.Marshal(ch.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata for %s: %w", ch.ID, err)
		}
		if ch.Metadata == nil {
			meta = []byte("{}")
		}
		created := ch.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, ch.ID, ch.Source, ch.Position, ch.Content, string(meta),
			float32SliceToBytes(ch.Embedding), len(ch.Embedding), created); err != nil {
			return fmt.Errorf("insert chunk %s: %w", ch.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}

// QueryCountChunks returns the number of stored chunks.
func (c *Client) QueryCountChunks(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// QueryAllChunks streams every chunk with its embedding to fn, ordered by source and position.
func (c *Client) QueryAllChunks(ctx context.Context, fn func(models.Chunk) error) error {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, source, position, content, metadata, embedding, created_at
		FROM chunks ORDER BY source, position`)
	if err != nil {
		return fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		ch, err := scanChunk(rows)
		if err != nil {
			return err
		}
		if err := fn(*ch); err != nil {
			return err
		}
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChunk(s scanner) (*models.Chunk, error) {
	var (
		ch       models.Chunk
		metaJSON string
		blob     []byte
	)
	if err := s.Scan(&ch.ID, &ch.Source, &ch.Position, &ch.Content, &metaJSON, &blob, &ch.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan chunk: %w", err)
	}
	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &ch.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", ch.ID, err)
		}
	}
	ch.Embedding = bytesToFloat32Slice(blob)
	return &ch, nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return []byte{}
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
