package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines persistence for direct messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, fromUserID, toUserID, text, messageType, mediaURL string) (models.Message, error)
	ListBetween(ctx context.Context, userA, userB string) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID int64) (models.Message, error)
	MarkSeen(ctx context.Context, fromUserID, toUserID string) error
	RecentForUser(ctx context.Context, userID string) ([]models.RecentMessage, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a direct message.
func (r *MessageRepo) CreateMessage(ctx context.Context, fromUserID, toUserID, text, messageType, mediaURL string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (from_user_id, to_user_id, text, message_type, media_url)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, from_user_id, to_user_id, text, message_type, media_url, seen, created_at`,
		fromUserID, toUserID, text, messageType, mediaURL).
		Scan(&msg.ID, &msg.FromUserID, &msg.ToUserID, &msg.Text, &msg.MessageType, &msg.MediaURL, &msg.Seen, &msg.CreatedAt)
	return msg, err
}

// ListBetween returns every message exchanged between two users, in either
// direction. Ordering for display is a client concern.
func (r *MessageRepo) ListBetween(ctx context.Context, userA, userB string) ([]models.Message, error) {
	query := `SELECT id, from_user_id, to_user_id, text, message_type, media_url, seen, created_at
        FROM messages
        WHERE (from_user_id=$1 AND to_user_id=$2) OR (from_user_id=$2 AND to_user_id=$1)`
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, query, userA, userB)
	return msgs, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT id, from_user_id, to_user_id, text, message_type, media_url, seen, created_at
        FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// MarkSeen flags every message from one user to another as seen.
func (r *MessageRepo) MarkSeen(ctx context.Context, fromUserID, toUserID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE messages SET seen = TRUE
        WHERE from_user_id=$1 AND to_user_id=$2 AND seen = FALSE`, fromUserID, toUserID)
	return err
}

// RecentForUser returns the latest inbound message per counterpart together
// with the unseen count for that conversation, newest first.
func (r *MessageRepo) RecentForUser(ctx context.Context, userID string) ([]models.RecentMessage, error) {
	query := `SELECT DISTINCT ON (m.from_user_id)
            m.id, m.from_user_id, m.to_user_id, m.text, m.message_type, m.media_url, m.seen, m.created_at,
            (SELECT COUNT(*) FROM messages u
                WHERE u.from_user_id = m.from_user_id AND u.to_user_id = $1 AND u.seen = FALSE) AS unread_count
        FROM messages m
        WHERE m.to_user_id = $1
        ORDER BY m.from_user_id, m.created_at DESC`
	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.RecentMessage
	for rows.Next() {
		var rm models.RecentMessage
		if err := rows.Scan(&rm.ID, &rm.FromUserID, &rm.ToUserID, &rm.Text, &rm.MessageType, &rm.MediaURL, &rm.Seen, &rm.CreatedAt, &rm.UnreadCount); err != nil {
			return nil, err
		}
		result = append(result, rm)
	}
	return result, rows.Err()
}
