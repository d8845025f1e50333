package client

import (
	"sync"

	"dmchat/internal/chat"
)

// Conversation holds the local ordered message list for one peer, keyed by
// message id. Oldest first; push events and confirmed sends are applied
// in place and deduplicated by id.
type Conversation struct {
	mu     sync.Mutex
	peerID string
	order  []string
	byID   map[string]chat.Message
}

func NewConversation() *Conversation {
	return &Conversation{byID: make(map[string]chat.Message)}
}

func (c *Conversation) PeerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerID
}

// Reset switches the active peer and replaces the local list with a fresh
// server fetch. No diffing across conversation switches.
func (c *Conversation) Reset(peerID string, messages []chat.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peerID = peerID
	c.order = c.order[:0]
	c.byID = make(map[string]chat.Message, len(messages))
	for _, m := range messages {
		if _, ok := c.byID[m.ID]; ok {
			continue
		}
		c.order = append(c.order, m.ID)
		c.byID[m.ID] = m
	}
}

// Append adds a message to the end of the list unless its id is already
// present. Reports whether the message was added.
func (c *Conversation) Append(m chat.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byID[m.ID]; ok {
		return false
	}
	c.order = append(c.order, m.ID)
	c.byID[m.ID] = m
	return true
}

// ApplyEdit replaces the matching entry in place, preserving its position.
// Unknown ids are ignored (the edit targets a conversation we are not
// currently viewing).
func (c *Conversation) ApplyEdit(m chat.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byID[m.ID]; !ok {
		return false
	}
	c.byID[m.ID] = m
	return true
}

// ApplyDelete removes the entry with the given id, if present.
func (c *Conversation) ApplyDelete(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byID[id]; !ok {
		return false
	}
	delete(c.byID, id)
	for i, mid := range c.order {
		if mid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// Messages returns the current list, oldest first.
func (c *Conversation) Messages() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]chat.Message, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}
