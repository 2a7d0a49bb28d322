// Package docstore is a small path-addressed document store on top of the
// relational database. Documents live at paths like
// "users/u1/projects/p1"; the collection holding a document is its parent
// path ("users/u1/projects"). Document bodies are free-form JSON objects.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("docstore: document not found")

type Document struct {
	Path      string
	Parent    string
	ID        string
	Data      map[string]interface{}
	CreatedAt int64
	UpdatedAt int64
}

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// SplitPath returns the parent collection path and document ID for a
// document path. "users/u1/projects/p1" -> ("users/u1/projects", "p1").
func SplitPath(path string) (parent, id string) {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "", path
	}
	return path[:idx], path[idx+1:]
}

// Put upserts the document at path. Re-putting the same path overwrites the
// body and keeps the original created_at.
func (s *Store) Put(ctx context.Context, path string, data map[string]interface{}) error {
	parent, id := SplitPath(path)
	if parent == "" || id == "" {
		return errors.New("docstore: invalid document path: " + path)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (path, parent, doc_id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, path, parent, id, string(raw), now, now)
	return err
}

func (s *Store) Get(ctx context.Context, path string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT path, parent, doc_id, data, created_at, updated_at FROM documents WHERE path = ?
	`, path)

	doc, err := scanDocument(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return doc, err
}

// List returns all documents directly under a collection path, ordered by
// document ID for determinism.
func (s *Store) List(ctx context.Context, collectionPath string) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, parent, doc_id, data, created_at, updated_at
		FROM documents WHERE parent = ? ORDER BY doc_id
	`, collectionPath)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Store) Count(ctx context.Context, collectionPath string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE parent = ?`, collectionPath).Scan(&n)
	return n, err
}

func (s *Store) Delete(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, path)
	return err
}

func scanDocument(scan func(dest ...interface{}) error) (*Document, error) {
	var doc Document
	var raw string
	if err := scan(&doc.Path, &doc.Parent, &doc.ID, &raw, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(raw), &doc.Data); err != nil {
		return nil, err
	}
	return &doc, nil
}
