// Package store persists registered users and their conversation log in
// SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a user does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("store: closed")
)

// User represents a row in the users table.
type User struct {
	ID          int64  `json:"id"`
	ChatID      int64  `json:"chat_id"`
	FirstName   string `json:"first_name"`
	Username    string `json:"username"`
	PhoneNumber string `json:"phone_number,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// Chat represents a row in the chats table. Text turns fill the message
// fields, file analyses the file fields.
type Chat struct {
	ID              int64  `json:"id"`
	UserID          int64  `json:"user_id"`
	UserMessage     string `json:"user_message,omitempty"`
	BotResponse     string `json:"bot_response,omitempty"`
	FileName        string `json:"file_name,omitempty"`
	FileKind        string `json:"file_kind,omitempty"`
	FileDescription string `json:"file_description,omitempty"`
	CreatedAt       string `json:"created_at"`
}

// Store wraps the SQLite database.
type Store struct {
	db     *sql.DB
	closed atomic.Bool
}

// New opens (or creates) a SQLite database at dbPath and applies the
// schema and pending migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database. Later calls return ErrClosed.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return s.db.Close()
}

func (s *Store) check() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// GetUser returns the user registered for chatID, or ErrNotFound.
func (s *Store) GetUser(ctx context.Context, chatID int64) (*User, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	u := &User{}
	var first, username, phone sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, chat_id, first_name, username, phone_number, created_at
		FROM users WHERE chat_id = ?
	`, chatID).Scan(&u.ID, &u.ChatID, &first, &username, &phone, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.FirstName = first.String
	u.Username = username.String
	u.PhoneNumber = phone.String
	return u, nil
}

// InsertUser registers a user and returns its row id.
func (s *Store) InsertUser(ctx context.Context, u User) (int64, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (chat_id, first_name, username, phone_number)
		VALUES (?, ?, ?, ?)
	`, u.ChatID, u.FirstName, u.Username, nullable(u.PhoneNumber))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// SetPhoneNumber stores the contact number shared by a user.
func (s *Store) SetPhoneNumber(ctx context.Context, chatID int64, phone string) error {
	if err := s.check(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, "UPDATE users SET phone_number = ? WHERE chat_id = ?", phone, chatID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertChat logs a text exchange.
func (s *Store) InsertChat(ctx context.Context, userID int64, message, response string) error {
	if err := s.check(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chats (user_id, user_message, bot_response) VALUES (?, ?, ?)
	`, userID, message, response)
	return err
}

// InsertFileAnalysis logs the analysis of an uploaded file.
func (s *Store) InsertFileAnalysis(ctx context.Context, userID int64, fileName, kind, description string) error {
	if err := s.check(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chats (user_id, file_name, file_kind, file_description) VALUES (?, ?, ?, ?)
	`, userID, fileName, kind, description)
	return err
}

// ListChats returns a user's most recent exchanges, newest first.
func (s *Store) ListChats(ctx context.Context, userID int64, limit int) ([]Chat, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, user_message, bot_response, file_name, file_kind, file_description, created_at
		FROM chats WHERE user_id = ? ORDER BY id DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var c Chat
		var msg, resp, name, kind, desc sql.NullString
		if err := rows.Scan(&c.ID, &c.UserID, &msg, &resp, &name, &kind, &desc, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.UserMessage = msg.String
		c.BotResponse = resp.String
		c.FileName = name.String
		c.FileKind = kind.String
		c.FileDescription = desc.String
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
