package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eldersfive/mediator/internal/model"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range postgresMigrations {
		if err := s.applyMigration(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) applyMigration(ctx context.Context, m migration) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	defer tx.Rollback(ctx)

	// Serialises concurrent migrators on the same database.
	if _, err := tx.Exec(ctx, `LOCK TABLE schema_versions IN EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("lock schema_versions: %w", err)
	}

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_versions WHERE version = $1)`, m.Version).Scan(&exists); err != nil {
		return fmt.Errorf("check migration %d: %w", m.Version, err)
	}
	if exists {
		return nil
	}

	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_versions (version, description) VALUES ($1, $2)`, m.Version, m.Description); err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	return nil
}

// UpsertProfile creates or replaces a profile row.
func (s *PostgresStore) UpsertProfile(ctx context.Context, p *model.Profile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO profiles (id, display_name, full_name, email)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''))
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			full_name = EXCLUDED.full_name,
			email = EXCLUDED.email`,
		p.UserID, p.DisplayName, p.FullName, p.Email,
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// CreateConversation inserts a conversation, filling ID and timestamps when empty.
func (s *PostgresStore) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	prepareConversation(conv)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO conversations (id, title, invite_code, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)`,
		conv.ID, conv.Title, conv.InviteCode, conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// GetConversation retrieves a conversation by ID.
func (s *PostgresStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	conv := &model.Conversation{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, COALESCE(invite_code, ''), created_at, updated_at
		FROM conversations WHERE id = $1`, id,
	).Scan(&conv.ID, &conv.Title, &conv.InviteCode, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return conv, nil
}

// UpdateTitleIfPlaceholder sets the title while it is still a placeholder.
func (s *PostgresStore) UpdateTitleIfPlaceholder(ctx context.Context, id, title string, placeholders []string) (bool, error) {
	if len(placeholders) == 0 {
		return false, nil
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE conversations SET title = $1, updated_at = now()
		WHERE id = $2 AND lower(btrim(title)) = ANY($3)`,
		title, id, normalizePlaceholders(placeholders),
	)
	if err != nil {
		return false, fmt.Errorf("update title: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RecentMessages returns the newest messages first.
func (s *PostgresStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.conversation_id, m.sender_id, m.content, m.is_ai_mediator, m.created_at,
		       COALESCE(p.display_name, ''), COALESCE(p.full_name, ''), COALESCE(p.email, '')
		FROM messages m
		LEFT JOIN profiles p ON p.id = m.sender_id
		WHERE m.conversation_id = $1
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $2`, conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var (
			msg                          model.Message
			displayName, fullName, email string
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.IsMediator, &msg.CreatedAt,
			&displayName, &fullName, &email); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if msg.SenderID != nil {
			msg.Sender = &model.Profile{
				UserID:      *msg.SenderID,
				DisplayName: displayName,
				FullName:    fullName,
				Email:       email,
			}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// InsertMessage appends a message.
func (s *PostgresStore) InsertMessage(ctx context.Context, msg *model.Message) error {
	prepareMessage(msg)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, content, is_ai_mediator, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Content, msg.IsMediator, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetRoomKey retrieves the key for a conversation.
func (s *PostgresStore) GetRoomKey(ctx context.Context, conversationID string) (string, error) {
	var key string
	err := s.pool.QueryRow(ctx, `SELECT key FROM room_keys WHERE conversation_id = $1`, conversationID).Scan(&key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get room key: %w", err)
	}
	return key, nil
}

// InsertRoomKey stores a key unless one already exists.
func (s *PostgresStore) InsertRoomKey(ctx context.Context, conversationID, key string) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO room_keys (conversation_id, key)
		VALUES ($1, $2)
		ON CONFLICT (conversation_id) DO NOTHING`,
		conversationID, key,
	)
	if err != nil {
		return fmt.Errorf("insert room key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrKeyExists
	}
	return nil
}
