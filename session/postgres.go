package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bomsabor-web/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps sessions in web_sessions (migrations/001_sessions.sql).
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (p *PostgresStore) Load(ctx context.Context, id string) (*Session, error) {
	var s Session
	var userJSON []byte
	err := p.pool.QueryRow(ctx, `
		SELECT id, token, user_json, created_at, expires_at
		FROM web_sessions
		WHERE id = $1 AND expires_at > now()`,
		id,
	).Scan(&s.ID, &s.Token, &userJSON, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(userJSON) > 0 {
		var u models.User
		if err := json.Unmarshal(userJSON, &u); err != nil {
			return nil, fmt.Errorf("decode session user: %w", err)
		}
		s.User = u
	}
	return &s, nil
}

func (p *PostgresStore) Save(ctx context.Context, s *Session) error {
	userJSON, err := json.Marshal(s.User)
	if err != nil {
		return fmt.Errorf("encode session user: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO web_sessions (id, token, user_json, created_at, expires_at)
		VALUES ($1, $2, $3::jsonb, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			token = EXCLUDED.token,
			user_json = EXCLUDED.user_json,
			expires_at = EXCLUDED.expires_at`,
		s.ID, s.Token, string(userJSON), s.CreatedAt, s.ExpiresAt,
	)
	return err
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM web_sessions WHERE id = $1`, id)
	return err
}

// PurgeExpired removes expired rows and returns how many went.
func (p *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM web_sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
