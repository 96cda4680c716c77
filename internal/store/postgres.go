package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/enisar25/SocialApp/internal/chat"
)

// PostgresStore is the production chat.Store backed by a pgx pool.
//
// The unique index on direct_key is what makes CreateDirect idempotent: two
// racing first-messages between the same pair both land on the same row.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ chat.Store = (*PostgresStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id           TEXT PRIMARY KEY,
	participants TEXT[] NOT NULL,
	group_name   TEXT,
	room_id      TEXT UNIQUE,
	direct_key   TEXT UNIQUE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS messages (
	seq             BIGSERIAL PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	author          TEXT NOT NULL,
	content         TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS messages_conversation_idx
	ON messages (conversation_id, seq);
`

// NewPostgresStore ensures the conversation schema exists on the shared pool.
// The pool is owned by the caller; user tables live alongside and are read by
// the directory.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

const conversationColumns = `id, participants, COALESCE(group_name, ''), COALESCE(room_id, ''), created_at`

func scanConversation(row pgx.Row) (*chat.Conversation, error) {
	conv := &chat.Conversation{}
	err := row.Scan(&conv.ID, &conv.Participants, &conv.GroupName, &conv.RoomID, &conv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, chat.ErrNotFound
		}
		return nil, err
	}
	return conv, nil
}

func (s *PostgresStore) FindDirect(ctx context.Context, a, b string) (*chat.Conversation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations WHERE direct_key = $1
	`, directKey(a, b))
	conv, err := scanConversation(row)
	if err != nil {
		if chat.IsNotFound(err) {
			return nil, fmt.Errorf("direct conversation %s/%s: %w", a, b, chat.ErrNotFound)
		}
		return nil, fmt.Errorf("find direct conversation: %w", err)
	}
	return conv, nil
}

func (s *PostgresStore) CreateDirect(ctx context.Context, a, b string) (*chat.Conversation, error) {
	// The no-op DO UPDATE makes the insert return the surviving row on
	// conflict, so the caller always gets the one conversation for the pair.
	row := s.pool.QueryRow(ctx, `
		INSERT INTO conversations (id, participants, direct_key)
		VALUES ($1, $2, $3)
		ON CONFLICT (direct_key) DO UPDATE SET direct_key = EXCLUDED.direct_key
		RETURNING `+conversationColumns+`
	`, uuid.NewString(), []string{a, b}, directKey(a, b))
	conv, err := scanConversation(row)
	if err != nil {
		return nil, fmt.Errorf("create direct conversation: %w", err)
	}
	return conv, nil
}

func (s *PostgresStore) FindGroup(ctx context.Context, id string) (*chat.Conversation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations WHERE id = $1 AND room_id IS NOT NULL
	`, id)
	conv, err := scanConversation(row)
	if err != nil {
		if chat.IsNotFound(err) {
			return nil, fmt.Errorf("group conversation %s: %w", id, chat.ErrNotFound)
		}
		return nil, fmt.Errorf("find group conversation: %w", err)
	}
	return conv, nil
}

func (s *PostgresStore) FindGroupByRoom(ctx context.Context, roomID string) (*chat.Conversation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations WHERE room_id = $1
	`, roomID)
	conv, err := scanConversation(row)
	if err != nil {
		if chat.IsNotFound(err) {
			return nil, fmt.Errorf("room %s: %w", roomID, chat.ErrNotFound)
		}
		return nil, fmt.Errorf("find group conversation by room: %w", err)
	}
	return conv, nil
}

func (s *PostgresStore) CreateGroup(ctx context.Context, name string, participants []string) (*chat.Conversation, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO conversations (id, participants, group_name, room_id)
		VALUES ($1, $2, $3, $4)
		RETURNING `+conversationColumns+`
	`, uuid.NewString(), participants, name, ulid.Make().String())
	conv, err := scanConversation(row)
	if err != nil {
		return nil, fmt.Errorf("create group conversation: %w", err)
	}
	return conv, nil
}

func (s *PostgresStore) AppendMessage(ctx context.Context, conversationID string, msg chat.Message) error {
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO messages (conversation_id, author, content, created_at)
		SELECT $1, $2, $3, $4
		WHERE EXISTS (SELECT 1 FROM conversations WHERE id = $1)
	`, conversationID, msg.Author, msg.Content, createdAt)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("conversation %s: %w", conversationID, chat.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Messages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT author, content, created_at
		FROM messages WHERE conversation_id = $1
		ORDER BY seq
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []chat.Message
	for rows.Next() {
		var msg chat.Message
		if err := rows.Scan(&msg.Author, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}
