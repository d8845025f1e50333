package chat

import (
	"context"
	"database/sql"
	"errors"

	"dmchat/internal/apperror"

	"github.com/google/uuid"
)

// Repository is the message store gateway — the only path to durable
// message state. Validation and sender-only authorization are enforced
// here, before any row is touched.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, senderID, receiverID, text, image string) (*Message, error) {
	if text == "" && image == "" {
		return nil, apperror.Validation("message needs text or an image")
	}

	m := &Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		Image:      image,
	}
	query := `INSERT INTO messages (id, sender_id, receiver_id, text, image)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING edited, created_at`

	err := r.db.QueryRowContext(ctx, query,
		m.ID, m.SenderID, m.ReceiverID, m.Text, m.Image,
	).Scan(&m.Edited, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListConversation returns every message between the two users, in either
// direction, oldest first.
func (r *Repository) ListConversation(ctx context.Context, userA, userB string) ([]Message, error) {
	query := `SELECT id, sender_id, receiver_id, text, image, edited, created_at
	          FROM messages
	          WHERE (sender_id = $1 AND receiver_id = $2)
	             OR (sender_id = $2 AND receiver_id = $1)
	          ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, userA, userB)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.Image, &m.Edited, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (r *Repository) get(ctx context.Context, id string) (*Message, error) {
	m := &Message{}
	query := `SELECT id, sender_id, receiver_id, text, image, edited, created_at
	          FROM messages WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.Image, &m.Edited, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("message", id)
		}
		return nil, err
	}
	return m, nil
}

// Edit rewrites the text of a message and marks it edited. Only the
// original sender may edit; unknown ids surface as NotFound so clients can
// tell "already deleted" from "not yours".
func (r *Repository) Edit(ctx context.Context, id, editorID, newText string) (*Message, error) {
	if newText == "" {
		return nil, apperror.Validation("message needs text or an image")
	}

	m, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.SenderID != editorID {
		return nil, apperror.Forbidden("only the sender can edit a message")
	}

	query := `UPDATE messages SET text = $1, edited = TRUE WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, newText, id); err != nil {
		return nil, err
	}
	m.Text = newText
	m.Edited = true
	return m, nil
}

// Delete removes a message. Sender-only, NotFound on unknown or
// already-deleted ids.
func (r *Repository) Delete(ctx context.Context, id, requesterID string) (*Message, error) {
	m, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.SenderID != requesterID {
		return nil, apperror.Forbidden("only the sender can delete a message")
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return m, nil
}
