package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/eldersfive/mediator/internal/model"
)

// sqliteTimeLayout is fixed-width so that text ordering matches time ordering.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

// SQLiteStore handles SQLite database operations.
type SQLiteStore struct {
	db   *sql.DB
	Path string
}

// NewSQLiteStore opens (or creates) the database at path and runs migrations.
// If path is empty, defaults to "./data/eldersfive.db".
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		path = "./data/eldersfive.db"
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?"+sqlitePragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	return initSQLite(ctx, db, path)
}

// OpenMemory opens an in-memory database for tests and local runs.
// A single connection is used so every caller sees the same database.
func OpenMemory(ctx context.Context) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", "file::memory:?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	db.SetMaxOpenConns(1)

	return initSQLite(ctx, db, ":memory:")
}

func initSQLite(ctx context.Context, db *sql.DB, path string) (*SQLiteStore, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLiteStore{db: db, Path: path}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range sqliteMigrations {
		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, s)
}

// UpsertProfile creates or replaces a profile row.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, p *model.Profile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, display_name, full_name, email)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			full_name = excluded.full_name,
			email = excluded.email
	`, p.UserID, nullString(p.DisplayName), nullString(p.FullName), nullString(p.Email))
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// CreateConversation inserts a conversation, filling ID and timestamps when empty.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	prepareConversation(conv)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, title, invite_code, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, conv.ID, conv.Title, nullString(conv.InviteCode), formatTime(conv.CreatedAt), formatTime(conv.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// GetConversation retrieves a conversation by ID.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var (
		conv                 model.Conversation
		invite               sql.NullString
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, invite_code, created_at, updated_at
		FROM conversations WHERE id = ?
	`, id).Scan(&conv.ID, &conv.Title, &invite, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	conv.InviteCode = invite.String
	if conv.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if conv.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &conv, nil
}

// UpdateTitleIfPlaceholder sets the title while it is still a placeholder.
func (s *SQLiteStore) UpdateTitleIfPlaceholder(ctx context.Context, id, title string, placeholders []string) (bool, error) {
	if len(placeholders) == 0 {
		return false, nil
	}

	normalized := normalizePlaceholders(placeholders)
	marks := strings.TrimSuffix(strings.Repeat("?,", len(normalized)), ",")
	args := []any{title, formatTime(time.Now()), id}
	for _, p := range normalized {
		args = append(args, p)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET title = ?, updated_at = ?
		WHERE id = ? AND lower(trim(title)) IN (`+marks+`)
	`, args...)
	if err != nil {
		return false, fmt.Errorf("update title: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update title rows: %w", err)
	}
	return n > 0, nil
}

// RecentMessages returns the newest messages first.
func (s *SQLiteStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.conversation_id, m.sender_id, m.content, m.is_ai_mediator, m.created_at,
		       p.display_name, p.full_name, p.email
		FROM messages m
		LEFT JOIN profiles p ON p.id = m.sender_id
		WHERE m.conversation_id = ?
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT ?
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var (
			msg                          model.Message
			senderID                     sql.NullString
			createdAt                    string
			displayName, fullName, email sql.NullString
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &senderID, &msg.Content, &msg.IsMediator, &createdAt,
			&displayName, &fullName, &email); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if msg.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse message time: %w", err)
		}
		attachSender(&msg, senderID, displayName, fullName, email)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// InsertMessage appends a message.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *model.Message) error {
	prepareMessage(msg)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, content, is_ai_mediator, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.ConversationID, msg.SenderID, msg.Content, msg.IsMediator, formatTime(msg.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetRoomKey retrieves the key for a conversation.
func (s *SQLiteStore) GetRoomKey(ctx context.Context, conversationID string) (string, error) {
	var key string
	err := s.db.QueryRowContext(ctx, `SELECT key FROM room_keys WHERE conversation_id = ?`, conversationID).Scan(&key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get room key: %w", err)
	}
	return key, nil
}

// InsertRoomKey stores a key unless one already exists.
func (s *SQLiteStore) InsertRoomKey(ctx context.Context, conversationID, key string) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO room_keys (conversation_id, key, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(conversation_id) DO NOTHING
	`, conversationID, key, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("insert room key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert room key rows: %w", err)
	}
	if n == 0 {
		return ErrKeyExists
	}
	return nil
}

func prepareConversation(conv *model.Conversation) {
	now := time.Now().UTC()
	if conv.ID == "" {
		conv.ID = uuid.Must(uuid.NewV7()).String()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = conv.CreatedAt
	}
}

func prepareMessage(msg *model.Message) {
	if msg.ID == "" {
		msg.ID = uuid.Must(uuid.NewV7()).String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
}

func attachSender(msg *model.Message, senderID, displayName, fullName, email sql.NullString) {
	if !senderID.Valid {
		return
	}
	id := senderID.String
	msg.SenderID = &id
	msg.Sender = &model.Profile{
		UserID:      id,
		DisplayName: displayName.String,
		FullName:    fullName.String,
		Email:       email.String,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
