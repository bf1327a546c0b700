package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const DefaultPageLimit = 20

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidPageID = errors.New("invalid page id")
)

// Sealer encrypts secrets before they are persisted.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

type PostgresStore struct {
	db     *sql.DB
	sealer Sealer
}

func NewPostgresStore(db *sql.DB, sealer Sealer) *PostgresStore {
	return &PostgresStore{db: db, sealer: sealer}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) LoadSettings(ctx context.Context, userID string) (Settings, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM settings WHERE user_id=$1`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Settings{}, ErrNotFound
	}
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	var settings Settings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return settings, nil
}

func (s *PostgresStore) StoreSettings(ctx context.Context, userID string, settings Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (user_id, data)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET data=EXCLUDED.data, updated_at=NOW()
	`, userID, data)
	if err != nil {
		return fmt.Errorf("store settings: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadSecrets(ctx context.Context, userID string) (UserSecrets, error) {
	var sealed []byte
	err := s.db.QueryRowContext(ctx, `SELECT sealed FROM user_secrets WHERE user_id=$1`, userID).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return UserSecrets{}, ErrNotFound
	}
	if err != nil {
		return UserSecrets{}, fmt.Errorf("load secrets: %w", err)
	}
	plaintext, err := s.sealer.Open(sealed)
	if err != nil {
		return UserSecrets{}, fmt.Errorf("open secrets: %w", err)
	}
	secrets := NewUserSecrets()
	if err := json.Unmarshal(plaintext, &secrets); err != nil {
		return UserSecrets{}, fmt.Errorf("decode secrets: %w", err)
	}
	return secrets, nil
}

func (s *PostgresStore) StoreSecrets(ctx context.Context, userID string, secrets UserSecrets) error {
	plaintext, err := json.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("encode secrets: %w", err)
	}
	sealed, err := s.sealer.Seal(plaintext)
	if err != nil {
		return fmt.Errorf("seal secrets: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_secrets (user_id, sealed)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET sealed=EXCLUDED.sealed, updated_at=NOW()
	`, userID, sealed)
	if err != nil {
		return fmt.Errorf("store secrets: %w", err)
	}
	return nil
}

const conversationColumns = `
	conversation_id, user_id, title, selected_repository, selected_branch,
	git_provider, trigger, llm_model, accumulated_cost, prompt_tokens,
	completion_tokens, total_tokens, created_at, last_updated_at
`

func (s *PostgresStore) SaveConversation(ctx context.Context, meta ConversationMetadata) error {
	now := time.Now().UTC()
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}
	if meta.LastUpdatedAt.IsZero() {
		meta.LastUpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_metadata (`+conversationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (conversation_id) DO UPDATE SET
			title=EXCLUDED.title,
			selected_repository=EXCLUDED.selected_repository,
			selected_branch=EXCLUDED.selected_branch,
			git_provider=EXCLUDED.git_provider,
			trigger=EXCLUDED.trigger,
			llm_model=EXCLUDED.llm_model,
			accumulated_cost=EXCLUDED.accumulated_cost,
			prompt_tokens=EXCLUDED.prompt_tokens,
			completion_tokens=EXCLUDED.completion_tokens,
			total_tokens=EXCLUDED.total_tokens,
			last_updated_at=EXCLUDED.last_updated_at
		WHERE conversation_metadata.user_id=EXCLUDED.user_id
	`,
		meta.ConversationID, meta.UserID, meta.Title, meta.SelectedRepository, meta.SelectedBranch,
		meta.GitProvider, meta.Trigger, meta.LLMModel, meta.AccumulatedCost, meta.PromptTokens,
		meta.CompletionTokens, meta.TotalTokens, meta.CreatedAt, meta.LastUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetConversation(ctx context.Context, userID, conversationID string) (ConversationMetadata, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversation_metadata
		WHERE conversation_id=$1 AND user_id=$2
	`, conversationID, userID)
	meta, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ConversationMetadata{}, ErrNotFound
	}
	if err != nil {
		return ConversationMetadata{}, fmt.Errorf("get conversation: %w", err)
	}
	return meta, nil
}

func (s *PostgresStore) DeleteConversation(ctx context.Context, userID, conversationID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM conversation_metadata WHERE conversation_id=$1 AND user_id=$2`, conversationID, userID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete conversation rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ConversationExists(ctx context.Context, userID, conversationID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM conversation_metadata WHERE conversation_id=$1 AND user_id=$2)
	`, conversationID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check conversation: %w", err)
	}
	return exists, nil
}

// SearchConversations pages through a user's conversations by created_at,
// newest first. pageID is the created_at cursor returned by the previous page.
func (s *PostgresStore) SearchConversations(ctx context.Context, userID, pageID string, limit int) (ConversationPage, error) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}

	query := `SELECT ` + conversationColumns + ` FROM conversation_metadata WHERE user_id=$1`
	args := []any{userID}
	if pageID != "" {
		cursor, err := ParsePageID(pageID)
		if err != nil {
			return ConversationPage{}, err
		}
		query += ` AND created_at < $2`
		args = append(args, cursor)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return ConversationPage{}, fmt.Errorf("search conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]ConversationMetadata, 0, limit)
	for rows.Next() {
		meta, err := scanConversation(rows)
		if err != nil {
			return ConversationPage{}, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, meta)
	}
	if err := rows.Err(); err != nil {
		return ConversationPage{}, fmt.Errorf("iterate conversations: %w", err)
	}
	return NewConversationPage(conversations, limit), nil
}

// NewConversationPage sets the next cursor when the page is full.
func NewConversationPage(conversations []ConversationMetadata, limit int) ConversationPage {
	page := ConversationPage{Conversations: conversations}
	if limit > 0 && len(conversations) == limit {
		page.NextPageID = conversations[len(conversations)-1].CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return page
}

func ParsePageID(pageID string) (time.Time, error) {
	cursor, err := time.Parse(time.RFC3339Nano, pageID)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPageID, pageID)
	}
	return cursor, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (ConversationMetadata, error) {
	var meta ConversationMetadata
	var repository, branch, provider, trigger, model sql.NullString
	err := row.Scan(
		&meta.ConversationID, &meta.UserID, &meta.Title, &repository, &branch,
		&provider, &trigger, &model, &meta.AccumulatedCost, &meta.PromptTokens,
		&meta.CompletionTokens, &meta.TotalTokens, &meta.CreatedAt, &meta.LastUpdatedAt,
	)
	if err != nil {
		return ConversationMetadata{}, err
	}
	meta.SelectedRepository = repository.String
	meta.SelectedBranch = branch.String
	meta.GitProvider = provider.String
	meta.Trigger = trigger.String
	meta.LLMModel = model.String
	return meta, nil
}
