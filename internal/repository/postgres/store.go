package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"support-relay-backend/internal/domain/chat"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements chat.Store on a pgx pool. Message ordering per
// conversation is serialised by the row lock on the conversation.
type Store struct {
	pool *pgxpool.Pool
}

var _ chat.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

// Migrate applies the schema idempotently.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.ErrNotFound
	}
	return err
}

func (s *Store) CreateActor(ctx context.Context, a *chat.Actor) error {
	const q = `
	INSERT INTO actors (kind, external_id, username, display_name)
	VALUES ($1, NULLIF($2, ''), $3, $4)
	RETURNING id, created_at`
	if err := s.pool.QueryRow(ctx, q, string(a.Kind), a.ExternalID, a.Username, a.DisplayName).Scan(&a.ID, &a.CreatedAt); err != nil {
		return fmt.Errorf("insert actor: %w", err)
	}
	return nil
}

const actorColumns = `id, kind, COALESCE(external_id, ''), username, display_name, created_at`

func scanActor(row pgx.Row) (*chat.Actor, error) {
	var (
		a    chat.Actor
		kind string
	)
	if err := row.Scan(&a.ID, &kind, &a.ExternalID, &a.Username, &a.DisplayName, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Kind = chat.ActorKind(kind)
	return &a, nil
}

func (s *Store) GetActorByID(ctx context.Context, id int64) (*chat.Actor, error) {
	a, err := scanActor(s.pool.QueryRow(ctx, `SELECT `+actorColumns+` FROM actors WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (s *Store) GetActorByExternalID(ctx context.Context, externalID string) (*chat.Actor, error) {
	a, err := scanActor(s.pool.QueryRow(ctx, `SELECT `+actorColumns+` FROM actors WHERE external_id = $1`, externalID))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (s *Store) UpdateActorDisplayName(ctx context.Context, id int64, displayName string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE actors SET display_name = $2 WHERE id = $1`, id, displayName)
	if err != nil {
		return fmt.Errorf("update actor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return chat.ErrNotFound
	}
	return nil
}

func (s *Store) ListActors(ctx context.Context) ([]chat.Actor, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+actorColumns+` FROM actors ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list actors: %w", err)
	}
	defer rows.Close()

	var out []chat.Actor
	for rows.Next() {
		a, err := scanActor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *Store) CreateConversation(ctx context.Context, c *chat.Conversation) error {
	const q = `
	INSERT INTO conversations (owner_id, title)
	VALUES ($1, $2)
	RETURNING id, created_at, updated_at`
	if err := s.pool.QueryRow(ctx, q, c.OwnerID, c.Title).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (s *Store) GetConversationOwner(ctx context.Context, conversationID int64) (int64, error) {
	var owner int64
	if err := s.pool.QueryRow(ctx, `SELECT owner_id FROM conversations WHERE id = $1`, conversationID).Scan(&owner); err != nil {
		return 0, notFound(err)
	}
	return owner, nil
}

func (s *Store) LatestConversationForActor(ctx context.Context, actorID int64) (*chat.Conversation, error) {
	const q = `
	SELECT id, owner_id, title, created_at, updated_at
	FROM conversations
	WHERE owner_id = $1
	ORDER BY updated_at DESC, id DESC
	LIMIT 1`
	var c chat.Conversation
	if err := s.pool.QueryRow(ctx, q, actorID).Scan(&c.ID, &c.OwnerID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

const summarySelect = `
	SELECT c.id, c.owner_id, c.title, c.created_at, c.updated_at,
		COALESCE(NULLIF(a.display_name, ''), a.username), a.kind,
		(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id),
		COALESCE((SELECT m.body FROM messages m WHERE m.conversation_id = c.id
			ORDER BY m.created_at DESC, m.id DESC LIMIT 1), '')
	FROM conversations c
	JOIN actors a ON a.id = c.owner_id`

func (s *Store) ListConversationsForActor(ctx context.Context, actorID int64) ([]chat.ConversationSummary, error) {
	return s.listSummaries(ctx, summarySelect+` WHERE c.owner_id = $1 ORDER BY c.updated_at DESC, c.id DESC`, actorID)
}

func (s *Store) ListAllConversations(ctx context.Context) ([]chat.ConversationSummary, error) {
	return s.listSummaries(ctx, summarySelect+` ORDER BY c.updated_at DESC, c.id DESC`)
}

func (s *Store) listSummaries(ctx context.Context, q string, args ...any) ([]chat.ConversationSummary, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []chat.ConversationSummary
	for rows.Next() {
		var (
			cs    chat.ConversationSummary
			kind  string
			count int64
		)
		if err := rows.Scan(&cs.ID, &cs.OwnerID, &cs.Title, &cs.CreatedAt, &cs.UpdatedAt,
			&cs.OwnerName, &kind, &count, &cs.LastMessage); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		cs.OwnerKind = chat.ActorKind(kind)
		cs.MessageCount = int(count)
		out = append(out, cs)
	}
	return out, rows.Err()
}

func (s *Store) InsertMessage(ctx context.Context, m *chat.Message) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// The UPDATE takes the conversation row lock, so concurrent inserts into
	// one conversation get monotonic stamps.
	var stamp time.Time
	err = tx.QueryRow(ctx, `
		UPDATE conversations SET updated_at = GREATEST(clock_timestamp(), updated_at)
		WHERE id = $1
		RETURNING updated_at
	`, m.ConversationID).Scan(&stamp)
	if err != nil {
		return notFound(err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, sender_kind, sender_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, m.ConversationID, string(m.SenderKind), m.SenderID, m.Body, stamp).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	m.CreatedAt = stamp
	return nil
}

func (s *Store) ListMessagesForConversation(ctx context.Context, conversationID int64) ([]chat.MessageView, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.conversation_id, m.sender_kind, m.sender_id, m.body, m.created_at,
			CASE WHEN m.sender_kind = 'admin' THEN COALESCE(au.username, 'Admin')
				ELSE COALESCE(NULLIF(a.display_name, ''), a.username, '') END
		FROM messages m
		LEFT JOIN actors a ON m.sender_kind = 'user' AND a.id = m.sender_id
		LEFT JOIN admin_users au ON m.sender_kind = 'admin' AND au.id = m.sender_id
		WHERE m.conversation_id = $1
		ORDER BY m.created_at ASC, m.id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []chat.MessageView
	for rows.Next() {
		var (
			v    chat.MessageView
			kind string
		)
		if err := rows.Scan(&v.ID, &v.ConversationID, &kind, &v.SenderID, &v.Body, &v.CreatedAt, &v.SenderName); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		v.SenderKind = chat.SenderKind(kind)
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) CreateOneTimeToken(ctx context.Context, t *chat.OneTimeToken) error {
	const q = `
	INSERT INTO one_time_tokens (token, actor_id, expires_at)
	VALUES ($1, $2, $3)
	RETURNING created_at`
	if err := s.pool.QueryRow(ctx, q, t.Token, t.ActorID, t.ExpiresAt).Scan(&t.CreatedAt); err != nil {
		return fmt.Errorf("insert one-time token: %w", err)
	}
	return nil
}

func (s *Store) RedeemOneTimeToken(ctx context.Context, token string) (*chat.OneTimeToken, error) {
	t := chat.OneTimeToken{Token: token}
	err := s.pool.QueryRow(ctx, `
		DELETE FROM one_time_tokens WHERE token = $1
		RETURNING actor_id, expires_at, created_at
	`, token).Scan(&t.ActorID, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (s *Store) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM one_time_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) CreateAdminCredential(ctx context.Context, c *chat.AdminCredential) error {
	const q = `
	INSERT INTO admin_users (username, password_hash, email)
	VALUES ($1, $2, $3)
	RETURNING id, created_at`
	if err := s.pool.QueryRow(ctx, q, c.Username, c.PasswordHash, c.Email).Scan(&c.ID, &c.CreatedAt); err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	return nil
}

func (s *Store) GetAdminCredential(ctx context.Context, username string) (*chat.AdminCredential, error) {
	return s.getAdmin(ctx, `WHERE username = $1`, username)
}

func (s *Store) GetAdminCredentialByID(ctx context.Context, id int64) (*chat.AdminCredential, error) {
	return s.getAdmin(ctx, `WHERE id = $1`, id)
}

func (s *Store) getAdmin(ctx context.Context, where string, arg any) (*chat.AdminCredential, error) {
	var c chat.AdminCredential
	err := s.pool.QueryRow(ctx, `SELECT id, username, password_hash, email, created_at FROM admin_users `+where, arg).
		Scan(&c.ID, &c.Username, &c.PasswordHash, &c.Email, &c.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}
