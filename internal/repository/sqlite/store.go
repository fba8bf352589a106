package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"support-relay-backend/internal/domain/chat"

	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store implements chat.Store on an embedded SQLite database. All access goes
// through a single connection, which serialises writers.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ chat.Store = (*Store)(nil)

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source used for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{`PRAGMA foreign_keys = ON`, `PRAGMA busy_timeout = 5000`}
	if path != MemoryPath {
		pragmas = append(pragmas, `PRAGMA journal_mode = WAL`)
	}
	for _, p := range append(pragmas, schema...) {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateActor(ctx context.Context, a *chat.Actor) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO actors (kind, external_id, username, display_name, created_at)
		VALUES (?, NULLIF(?, ''), ?, ?, ?)
	`, string(a.Kind), a.ExternalID, a.Username, a.DisplayName, a.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert actor: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert actor: %w", err)
	}
	a.ID = id
	return nil
}

const actorColumns = `id, kind, COALESCE(external_id, ''), username, display_name, created_at`

func scanActor(row interface{ Scan(...any) error }) (*chat.Actor, error) {
	var (
		a       chat.Actor
		kind    string
		created int64
	)
	if err := row.Scan(&a.ID, &kind, &a.ExternalID, &a.Username, &a.DisplayName, &created); err != nil {
		return nil, err
	}
	a.Kind = chat.ActorKind(kind)
	a.CreatedAt = time.Unix(0, created)
	return &a, nil
}

func (s *Store) GetActorByID(ctx context.Context, id int64) (*chat.Actor, error) {
	a, err := scanActor(s.db.QueryRowContext(ctx, `SELECT `+actorColumns+` FROM actors WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chat.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get actor: %w", err)
	}
	return a, nil
}

func (s *Store) GetActorByExternalID(ctx context.Context, externalID string) (*chat.Actor, error) {
	a, err := scanActor(s.db.QueryRowContext(ctx, `SELECT `+actorColumns+` FROM actors WHERE external_id = ?`, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chat.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get actor by external id: %w", err)
	}
	return a, nil
}

func (s *Store) UpdateActorDisplayName(ctx context.Context, id int64, displayName string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE actors SET display_name = ? WHERE id = ?`, displayName, id)
	if err != nil {
		return fmt.Errorf("update actor: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return chat.ErrNotFound
	}
	return nil
}

func (s *Store) ListActors(ctx context.Context) ([]chat.Actor, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+actorColumns+` FROM actors ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list actors: %w", err)
	}
	defer rows.Close()

	var actors []chat.Actor
	for rows.Next() {
		a, err := scanActor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan actor: %w", err)
		}
		actors = append(actors, *a)
	}
	return actors, rows.Err()
}

func (s *Store) CreateConversation(ctx context.Context, c *chat.Conversation) error {
	now := s.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = c.CreatedAt
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (owner_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, c.OwnerID, c.Title, c.CreatedAt.UnixNano(), c.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	c.ID = id
	return nil
}

func (s *Store) GetConversationOwner(ctx context.Context, conversationID int64) (int64, error) {
	var owner int64
	err := s.db.QueryRowContext(ctx, `SELECT owner_id FROM conversations WHERE id = ?`, conversationID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, chat.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get conversation owner: %w", err)
	}
	return owner, nil
}

func (s *Store) LatestConversationForActor(ctx context.Context, actorID int64) (*chat.Conversation, error) {
	var (
		c                chat.Conversation
		created, updated int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, title, created_at, updated_at
		FROM conversations
		WHERE owner_id = ?
		ORDER BY updated_at DESC, id DESC
		LIMIT 1
	`, actorID).Scan(&c.ID, &c.OwnerID, &c.Title, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chat.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest conversation: %w", err)
	}
	c.CreatedAt = time.Unix(0, created)
	c.UpdatedAt = time.Unix(0, updated)
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
	return s.listSummaries(ctx, summarySelect+` WHERE c.owner_id = ? ORDER BY c.updated_at DESC, c.id DESC`, actorID)
}

func (s *Store) ListAllConversations(ctx context.Context) ([]chat.ConversationSummary, error) {
	return s.listSummaries(ctx, summarySelect+` ORDER BY c.updated_at DESC, c.id DESC`)
}

func (s *Store) listSummaries(ctx context.Context, q string, args ...any) ([]chat.ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []chat.ConversationSummary
	for rows.Next() {
		var (
			cs               chat.ConversationSummary
			created, updated int64
			kind             string
		)
		if err := rows.Scan(&cs.ID, &cs.OwnerID, &cs.Title, &created, &updated,
			&cs.OwnerName, &kind, &cs.MessageCount, &cs.LastMessage); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		cs.CreatedAt = time.Unix(0, created)
		cs.UpdatedAt = time.Unix(0, updated)
		cs.OwnerKind = chat.ActorKind(kind)
		out = append(out, cs)
	}
	return out, rows.Err()
}

func (s *Store) InsertMessage(ctx context.Context, m *chat.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var last int64
	err = tx.QueryRowContext(ctx, `SELECT updated_at FROM conversations WHERE id = ?`, m.ConversationID).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock conversation: %w", err)
	}

	stamp := s.now().UnixNano()
	if stamp < last {
		stamp = last
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, sender_kind, sender_id, body, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.ConversationID, string(m.SenderKind), m.SenderID, m.Body, stamp)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, stamp, m.ConversationID); err != nil {
		return fmt.Errorf("bump conversation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	m.ID = id
	m.CreatedAt = time.Unix(0, stamp)
	return nil
}

func (s *Store) ListMessagesForConversation(ctx context.Context, conversationID int64) ([]chat.MessageView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.conversation_id, m.sender_kind, m.sender_id, m.body, m.created_at,
			CASE WHEN m.sender_kind = 'admin' THEN COALESCE(au.username, 'Admin')
				ELSE COALESCE(NULLIF(a.display_name, ''), a.username, '') END
		FROM messages m
		LEFT JOIN actors a ON m.sender_kind = 'user' AND a.id = m.sender_id
		LEFT JOIN admin_users au ON m.sender_kind = 'admin' AND au.id = m.sender_id
		WHERE m.conversation_id = ?
		ORDER BY m.created_at ASC, m.id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []chat.MessageView
	for rows.Next() {
		var (
			v       chat.MessageView
			kind    string
			sender  sql.NullInt64
			created int64
		)
		if err := rows.Scan(&v.ID, &v.ConversationID, &kind, &sender, &v.Body, &created, &v.SenderName); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		v.SenderKind = chat.SenderKind(kind)
		if sender.Valid {
			id := sender.Int64
			v.SenderID = &id
		}
		v.CreatedAt = time.Unix(0, created)
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) CreateOneTimeToken(ctx context.Context, t *chat.OneTimeToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO one_time_tokens (token, actor_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`, t.Token, t.ActorID, t.ExpiresAt.UnixNano(), t.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert one-time token: %w", err)
	}
	return nil
}

func (s *Store) RedeemOneTimeToken(ctx context.Context, token string) (*chat.OneTimeToken, error) {
	var expires, created int64
	t := chat.OneTimeToken{Token: token}
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM one_time_tokens WHERE token = ?
		RETURNING actor_id, expires_at, created_at
	`, token).Scan(&t.ActorID, &expires, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chat.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redeem one-time token: %w", err)
	}
	t.ExpiresAt = time.Unix(0, expires)
	t.CreatedAt = time.Unix(0, created)
	return &t, nil
}

func (s *Store) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM one_time_tokens WHERE expires_at <= ?`, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("purge tokens: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) CreateAdminCredential(ctx context.Context, c *chat.AdminCredential) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_users (username, password_hash, email, created_at)
		VALUES (?, ?, ?, ?)
	`, c.Username, c.PasswordHash, c.Email, c.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	c.ID = id
	return nil
}

func (s *Store) GetAdminCredential(ctx context.Context, username string) (*chat.AdminCredential, error) {
	return s.getAdmin(ctx, `WHERE username = ?`, username)
}

func (s *Store) GetAdminCredentialByID(ctx context.Context, id int64) (*chat.AdminCredential, error) {
	return s.getAdmin(ctx, `WHERE id = ?`, id)
}

func (s *Store) getAdmin(ctx context.Context, where string, arg any) (*chat.AdminCredential, error) {
	var (
		c       chat.AdminCredential
		created int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, username, password_hash, email, created_at FROM admin_users `+where, arg).
		Scan(&c.ID, &c.Username, &c.PasswordHash, &c.Email, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chat.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get admin: %w", err)
	}
	c.CreatedAt = time.Unix(0, created)
	return &c, nil
}
