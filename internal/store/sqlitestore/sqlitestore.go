// Package sqlitestore persists messages in an embedded SQLite database. Each
// record is stored as its JSON document so the layout matches jsonstore.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/store"
)

const messagesSchema = `
	CREATE TABLE IF NOT EXISTS messages (
		seq         INTEGER PRIMARY KEY AUTOINCREMENT,
		id          TEXT NOT NULL UNIQUE,
		received_at INTEGER NOT NULL,
		document    TEXT NOT NULL
	);
`

const insertMessageStmt = `
	INSERT INTO messages (id, received_at, document) VALUES ($1, $2, $3)
`

const selectMessagesStmt = `
	SELECT document FROM messages ORDER BY seq
`

// Store is a SQLite-backed message store.
type Store struct {
	db             *sql.DB
	insertMessage  *sql.Stmt
	selectMessages *sql.Stmt
}

var _ store.Store = (*Store)(nil)

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000&_journal_mode=WAL&_synchronous=FULL")
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	// A single connection serializes appends.
	db.SetMaxOpenConns(1)

	s, err := newStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func newStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	_, err := db.Exec(messagesSchema)
	if err != nil {
		return nil, fmt.Errorf("db.Exec: %w", err)
	}
	s.insertMessage, err = db.Prepare(insertMessageStmt)
	if err != nil {
		return nil, fmt.Errorf("db.Prepare(insertMessageStmt): %w", err)
	}
	s.selectMessages, err = db.Prepare(selectMessagesStmt)
	if err != nil {
		return nil, fmt.Errorf("db.Prepare(selectMessagesStmt): %w", err)
	}
	return s, nil
}

// Append inserts msg as one row.
func (s *Store) Append(ctx context.Context, msg *store.Message) error {
	doc, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if _, err := s.insertMessage.ExecContext(ctx, msg.ID, time.Now().UnixMilli(), string(doc)); err != nil {
		return fmt.Errorf("insert message %s: %w", msg.ID, err)
	}
	return nil
}

// List returns every message in insertion order. Rows that fail to decode are
// logged and skipped.
func (s *Store) List(ctx context.Context) []store.Message {
	msgs := []store.Message{}

	rows, err := s.selectMessages.QueryContext(ctx)
	if err != nil {
		slog.Error("failed to query messages", "error", err)
		return msgs
	}
	defer rows.Close()

	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			slog.Error("failed to scan message row", "error", err)
			continue
		}
		var m store.Message
		if err := json.Unmarshal([]byte(doc), &m); err != nil {
			slog.Error("failed to decode message row", "error", err)
			continue
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to iterate messages", "error", err)
	}
	return msgs
}

// Close releases the prepared statements and the database handle.
func (s *Store) Close() error {
	s.insertMessage.Close()
	s.selectMessages.Close()
	return s.db.Close()
}
