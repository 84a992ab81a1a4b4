package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteObjectStore keeps objects as blobs, keyed by bucket and path.
type SQLiteObjectStore struct {
	db            *sql.DB
	publicBaseURL string
}

func NewSQLiteObjectStore(connectionString, publicBaseURL string) (ObjectStore, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	// a second connection to ":memory:" would see an empty database
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS objects (
		bucket TEXT NOT NULL,
		path TEXT NOT NULL,
		content_type TEXT NOT NULL,
		data BLOB NOT NULL,
		PRIMARY KEY (bucket, path)
	)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create objects table: %w", err)
	}

	return &SQLiteObjectStore{
		db:            db,
		publicBaseURL: publicBaseURL,
	}, nil
}

func (s *SQLiteObjectStore) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO objects (bucket, path, content_type, data) VALUES (?, ?, ?, ?)
		ON CONFLICT (bucket, path) DO UPDATE SET content_type = excluded.content_type, data = excluded.data`,
		bucket, path, contentType, data)
	return err
}

func (s *SQLiteObjectStore) Download(ctx context.Context, bucket, path string) ([]byte, string, error) {
	row := s.db.QueryRowContext(ctx, "SELECT data, content_type FROM objects WHERE bucket = ? AND path = ?", bucket, path)
	var data []byte
	var contentType string
	if err := row.Scan(&data, &contentType); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", ErrObjectNotFound
		}
		return nil, "", err
	}
	return data, contentType, nil
}

func (s *SQLiteObjectStore) PublicURL(bucket, path string) string {
	return joinPublicURL(s.publicBaseURL, bucket, path)
}

func (s *SQLiteObjectStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
