package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver
)

// FileName is the database file inside the index directory.
const FileName = "index.db"

// Client wraps the SQLite connection backing the index.
type Client struct {
	db   *sql.DB
	path string
}

// Open opens or creates INDEX_DIR/index.db and applies the schema.
func Open(ctx context.Context, dir string) (*Client, error) {
	return OpenPath(ctx, filepath.Join(dir, FileName))
}

// OpenPath opens or creates the database at path, creating its directory.
func OpenPath(ctx context.Context, path string) (*Client, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	// A single connection keeps WAL writers serialized.
	conn.SetMaxOpenConns(1)

	c := &Client{db: conn, path: path}
	if err := c.InitSchema(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	slog.Debug("index database opened", "path", path)
	return c, nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	return c.db.Close()
}

// Path returns the database file path.
func (c *Client) Path() string {
	return c.path
}

// InitSchema initializes the database schema.
func (c *Client) InitSchema(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, SchemaSQL); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}
