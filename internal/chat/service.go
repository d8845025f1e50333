package chat

import (
	"context"
	"log/slog"
)

// MessageStore is what the delivery pipeline needs from the message store
// gateway.
type MessageStore interface {
	Create(ctx context.Context, senderID, receiverID, text, image string) (*Message, error)
	ListConversation(ctx context.Context, userA, userB string) ([]Message, error)
	Edit(ctx context.Context, id, editorID, newText string) (*Message, error)
	Delete(ctx context.Context, id, requesterID string) (*Message, error)
}

// Pusher delivers an event to a user's live connection if one exists.
type Pusher interface {
	Push(userID, event string, payload any) bool
}

// Service is the message delivery pipeline. Every operation persists first
// and pushes second; a failed store write aborts with no push, a failed
// push is a silent delivery miss covered by fetch-on-reconnect.
type Service struct {
	store  MessageStore
	pusher Pusher
	logger *slog.Logger
}

func NewService(store MessageStore, pusher Pusher, logger *slog.Logger) *Service {
	return &Service{store: store, pusher: pusher, logger: logger}
}

// Send persists a new message, then pushes it to the receiver if
// connected. The stored record is returned to the sender either way.
func (s *Service) Send(ctx context.Context, senderID, receiverID string, req *SendRequest) (*Message, error) {
	m, err := s.store.Create(ctx, senderID, receiverID, req.Text, req.Image)
	if err != nil {
		return nil, err
	}

	if !s.pusher.Push(receiverID, EventNewMessage, m) {
		s.logger.Debug("delivery miss", slog.String("receiverID", receiverID), slog.String("messageID", m.ID))
	}
	return m, nil
}

func (s *Service) History(ctx context.Context, userID, peerID string) ([]Message, error) {
	return s.store.ListConversation(ctx, userID, peerID)
}

// Edit rewrites a message and notifies the other party. The editor's own
// client updates locally off the synchronous response.
func (s *Service) Edit(ctx context.Context, id, editorID, newText string) (*Message, error) {
	m, err := s.store.Edit(ctx, id, editorID, newText)
	if err != nil {
		return nil, err
	}

	s.pusher.Push(otherParty(m, editorID), EventMessageEdited, m)
	return m, nil
}

// Delete removes a message and notifies the other party with its id.
func (s *Service) Delete(ctx context.Context, id, requesterID string) error {
	m, err := s.store.Delete(ctx, id, requesterID)
	if err != nil {
		return err
	}

	s.pusher.Push(otherParty(m, requesterID), EventMessageDeleted, DeletedPayload{ID: m.ID})
	return nil
}

// otherParty picks the conversation member that is not actor.
func otherParty(m *Message, actor string) string {
	if m.SenderID == actor {
		return m.ReceiverID
	}
	return m.SenderID
}
