// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/drchat/internal/model"
	"github.com/jeranaias/drchat/internal/util"
)

const (
	// DefaultMaxConversations bounds the history; oldest entries are pruned.
	DefaultMaxConversations = 500

	// PreviewLength bounds ConversationMeta.Preview in runes.
	PreviewLength = 80
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrConversationNotFound is returned when a conversation doesn't exist.
// Use errors.Is(err, ErrConversationNotFound) to check for this error.
var ErrConversationNotFound = &ConversationError{Message: "conversation not found"}

// ErrAmbiguousID is returned when an ID prefix matches several conversations.
var ErrAmbiguousID = &ConversationError{Message: "conversation ID is ambiguous"}

// ConversationError represents a conversation-related error.
type ConversationError struct {
	Message string
}

// Error implements the error interface.
func (e *ConversationError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing conversation errors.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// TYPES
// =============================================================================

// ConversationMeta contains metadata for listing conversations.
type ConversationMeta struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Preview      string    `json:"preview"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// Store is the SQLite conversation history.
type Store struct {
	db   *sql.DB
	path string

	// MaxConversations limits stored conversations (0 = unlimited).
	MaxConversations int
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	for _, stmt := range []string{Schema, InitMetadata} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return &Store{
		db:               db,
		path:             path,
		MaxConversations: DefaultMaxConversations,
	}, nil
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// Save upserts conv and replaces its messages. Empty conversations are not
// stored.
func (s *Store) Save(ctx context.Context, conv *model.Conversation) error {
	if conv == nil || conv.IsEmpty() {
		return nil
	}
	msgs := conv.Messages()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, title, preview, created_at, updated_at, message_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			preview = excluded.preview,
			updated_at = excluded.updated_at,
			message_count = excluded.message_count`,
		conv.ID, conv.Title(), preview(msgs),
		conv.CreatedAt.UnixNano(), conv.UpdatedAt.UnixNano(), len(msgs))
	if err != nil {
		return fmt.Errorf("save conversation %s: %w", conv.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conv.ID); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (conversation_id, seq, id, kind, created_at, content, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i, m := range msgs {
		payload, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode message %s: %w", m.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, conv.ID, i, m.ID, string(m.Kind),
			m.Timestamp.UnixNano(), m.PlainText(), string(payload)); err != nil {
			return fmt.Errorf("save message %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	if s.MaxConversations > 0 {
		return s.enforceLimit(ctx)
	}
	return nil
}

// enforceLimit removes the oldest conversations beyond MaxConversations.
func (s *Store) enforceLimit(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM conversations WHERE id NOT IN (
			SELECT id FROM conversations ORDER BY updated_at DESC LIMIT ?
		)`, s.MaxConversations)
	if err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	return nil
}

func preview(msgs []model.Message) string {
	for _, m := range msgs {
		if m.Kind == model.KindUser {
			return util.TruncateRunes(util.OneLine(m.Text), PreviewLength)
		}
	}
	return ""
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// Load retrieves a conversation by ID or unique ID prefix.
func (s *Store) Load(ctx context.Context, id string) (*model.Conversation, error) {
	meta, err := s.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM messages WHERE conversation_id = ? ORDER BY seq`, meta.ID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var m model.Message
		if err := json.Unmarshal([]byte(payload), &m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return model.Restore(meta.ID, meta.CreatedAt, meta.UpdatedAt, msgs), nil
}

// Resolve returns the metadata of the conversation whose ID equals id or,
// failing that, uniquely starts with it.
func (s *Store) Resolve(ctx context.Context, id string) (ConversationMeta, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return ConversationMeta{}, ErrConversationNotFound
	}

	metas, err := s.query(ctx, `WHERE id = ?`, id)
	if err != nil {
		return ConversationMeta{}, err
	}
	if len(metas) == 1 {
		return metas[0], nil
	}

	metas, err = s.query(ctx, `WHERE id LIKE ? ESCAPE '\' LIMIT 2`, escapeLike(id)+"%")
	if err != nil {
		return ConversationMeta{}, err
	}
	switch len(metas) {
	case 0:
		return ConversationMeta{}, ErrConversationNotFound
	case 1:
		return metas[0], nil
	default:
		return ConversationMeta{}, ErrAmbiguousID
	}
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

// List returns saved conversations, most recent first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]ConversationMeta, error) {
	return s.query(ctx, `ORDER BY updated_at DESC LIMIT ?`, sqlLimit(limit))
}

// Search finds conversations whose title or message text contains term,
// case-insensitively for ASCII. limit <= 0 means all.
func (s *Store) Search(ctx context.Context, term string, limit int) ([]ConversationMeta, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.List(ctx, limit)
	}
	pattern := "%" + escapeLike(term) + "%"
	return s.query(ctx, `
		WHERE title LIKE ?1 ESCAPE '\'
		   OR id IN (SELECT conversation_id FROM messages WHERE content LIKE ?1 ESCAPE '\')
		ORDER BY updated_at DESC LIMIT ?2`, pattern, sqlLimit(limit))
}

// Count returns the number of stored conversations.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&n)
	return n, err
}

func (s *Store) query(ctx context.Context, clause string, args ...any) ([]ConversationMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, preview, created_at, updated_at, message_count
		FROM conversations `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	metas := []ConversationMeta{}
	for rows.Next() {
		var m ConversationMeta
		var created, updated int64
		if err := rows.Scan(&m.ID, &m.Title, &m.Preview, &created, &updated, &m.MessageCount); err != nil {
			return nil, err
		}
		m.CreatedAt = time.Unix(0, created)
		m.UpdatedAt = time.Unix(0, updated)
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete removes a conversation by ID or unique ID prefix and returns the
// full ID that was removed.
func (s *Store) Delete(ctx context.Context, id string) (string, error) {
	meta, err := s.Resolve(ctx, id)
	if err != nil {
		return "", err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, meta.ID)
	if err != nil {
		return "", fmt.Errorf("delete %s: %w", meta.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", ErrConversationNotFound
	}
	return meta.ID, nil
}

// Clear removes all saved conversations.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversations`)
	return err
}

// IsNotFound reports whether err means the conversation does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrConversationNotFound)
}
