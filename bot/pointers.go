package bot

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CardPointer locates the Telegram message that shows an order card.
type CardPointer struct {
	ChatID    int64
	MessageID int
	Status    string
}

// CardPointers remembers which message to edit when an order changes.
type CardPointers interface {
	Get(ctx context.Context, orderID, chatID int64) (CardPointer, bool, error)
	Upsert(ctx context.Context, orderID int64, p CardPointer) error
}

// PointerStore keeps card pointers in Postgres so a restart edits the old
// messages instead of posting new ones.
type PointerStore struct {
	pool *pgxpool.Pool
}

func NewPointerStore(pool *pgxpool.Pool) *PointerStore {
	return &PointerStore{pool: pool}
}

// EnsureTable creates order_message_pointers if missing (safety net when migrate was not run).
func (s *PointerStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS order_message_pointers (
			order_id BIGINT NOT NULL,
			chat_id BIGINT NOT NULL,
			message_id INT NOT NULL,
			status TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (order_id, chat_id)
		);
		CREATE INDEX IF NOT EXISTS idx_order_message_pointers_order_id ON order_message_pointers(order_id);
	`)
	return err
}

func isRelationNotExist(err error) bool {
	return err != nil && strings.Contains(err.Error(), "order_message_pointers") && strings.Contains(err.Error(), "does not exist")
}

func (s *PointerStore) Get(ctx context.Context, orderID, chatID int64) (CardPointer, bool, error) {
	p := CardPointer{ChatID: chatID}
	err := s.pool.QueryRow(ctx, `
		SELECT message_id, status FROM order_message_pointers WHERE order_id = $1 AND chat_id = $2`,
		orderID, chatID,
	).Scan(&p.MessageID, &p.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CardPointer{}, false, nil
		}
		if isRelationNotExist(err) {
			if ensureErr := s.EnsureTable(ctx); ensureErr != nil {
				return CardPointer{}, false, ensureErr
			}
			return s.Get(ctx, orderID, chatID)
		}
		return CardPointer{}, false, err
	}
	return p, true, nil
}

func (s *PointerStore) Upsert(ctx context.Context, orderID int64, p CardPointer) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO order_message_pointers (order_id, chat_id, message_id, status, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (order_id, chat_id) DO UPDATE SET message_id = EXCLUDED.message_id, status = EXCLUDED.status, updated_at = now()`,
		orderID, p.ChatID, p.MessageID, p.Status,
	)
	if err != nil && isRelationNotExist(err) {
		if ensureErr := s.EnsureTable(ctx); ensureErr != nil {
			return ensureErr
		}
		return s.Upsert(ctx, orderID, p)
	}
	return err
}
