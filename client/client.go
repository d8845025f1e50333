// Package client is a Go client for the dmchat server. It wraps the REST
// message API and the realtime websocket, and reconciles push events into
// a local ordered view of the active conversation.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"

	"dmchat/internal/chat"
	"dmchat/internal/user"

	"github.com/gorilla/websocket"
)

type Client struct {
	baseURL string
	wsURL   string
	http    *http.Client

	token  string
	userID string

	conn *websocket.Conn
	conv *Conversation

	mu     sync.Mutex
	online map[string]struct{}
}

func New(baseURL, wsURL string) *Client {
	return &Client{
		baseURL: baseURL,
		wsURL:   wsURL,
		http:    http.DefaultClient,
		conv:    NewConversation(),
		online:  make(map[string]struct{}),
	}
}

func (c *Client) UserID() string {
	return c.userID
}

// Conversation exposes the reconciled local view of the active peer.
func (c *Client) Conversation() *Conversation {
	return c.conv
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = resp.Status
		}
		return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) Signup(ctx context.Context, req *user.SignupRequest) error {
	var res user.AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/signup", req, &res); err != nil {
		return err
	}
	c.token = res.AccessToken
	c.userID = res.User.ID
	return nil
}

func (c *Client) Signin(ctx context.Context, email, password string) error {
	var res user.AuthResponse
	req := &user.SigninRequest{Email: email, Password: password}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/signin", req, &res); err != nil {
		return err
	}
	c.token = res.AccessToken
	c.userID = res.User.ID
	return nil
}

// ListUsers fetches the sidebar listing.
func (c *Client) ListUsers(ctx context.Context) ([]user.User, error) {
	var users []user.User
	if err := c.doJSON(ctx, http.MethodGet, "/api/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Connect dials the realtime channel and starts the listen loop that
// applies push events to the local state.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL+"?token="+c.token, nil)
	if err != nil {
		return err
	}
	c.conn = conn
	go c.listen()
	return nil
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// listen applies server events to the local conversation and online set.
// Events for messages outside the active conversation are dropped; the
// next Select re-fetches authoritative history anyway.
func (c *Client) listen() {
	for {
		var env chat.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return
		}

		switch env.Event {
		case chat.EventOnlineUsers:
			var ids []string
			if json.Unmarshal(env.Data, &ids) != nil {
				continue
			}
			c.setOnline(ids)

		case chat.EventNewMessage:
			var m chat.Message
			if json.Unmarshal(env.Data, &m) != nil {
				continue
			}
			if c.inActiveConversation(m) {
				c.conv.Append(m)
			}

		case chat.EventMessageEdited:
			var m chat.Message
			if json.Unmarshal(env.Data, &m) != nil {
				continue
			}
			c.conv.ApplyEdit(m)

		case chat.EventMessageDeleted:
			var p chat.DeletedPayload
			if json.Unmarshal(env.Data, &p) != nil {
				continue
			}
			c.conv.ApplyDelete(p.ID)
		}
	}
}

func (c *Client) inActiveConversation(m chat.Message) bool {
	peer := c.conv.PeerID()
	return peer != "" && (m.SenderID == peer || m.ReceiverID == peer)
}

func (c *Client) setOnline(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.online = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		c.online[id] = struct{}{}
	}
}

// OnlineUsers returns the last presence snapshot, sorted.
func (c *Client) OnlineUsers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.online))
	for id := range c.online {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Select makes peerID the active conversation: the local list is cleared
// and replaced with a fresh history fetch.
func (c *Client) Select(ctx context.Context, peerID string) error {
	var messages []chat.Message
	if err := c.doJSON(ctx, http.MethodGet, "/api/messages/"+peerID, nil, &messages); err != nil {
		return err
	}
	c.conv.Reset(peerID, messages)
	return nil
}

// Send creates a message via the REST pipeline and appends the stored
// record once the server confirms it. No optimistic ghost entries.
func (c *Client) Send(ctx context.Context, text, image string) (*chat.Message, error) {
	peer := c.conv.PeerID()
	if peer == "" {
		return nil, fmt.Errorf("no active conversation")
	}

	var m chat.Message
	req := &chat.SendRequest{Text: text, Image: image}
	if err := c.doJSON(ctx, http.MethodPost, "/api/messages/send/"+peer, req, &m); err != nil {
		return nil, err
	}
	c.conv.Append(m)
	return &m, nil
}

// Edit updates a message's text and applies the confirmed record locally.
func (c *Client) Edit(ctx context.Context, id, text string) (*chat.Message, error) {
	var m chat.Message
	req := &chat.EditRequest{Text: text}
	if err := c.doJSON(ctx, http.MethodPatch, "/api/messages/"+id, req, &m); err != nil {
		return nil, err
	}
	c.conv.ApplyEdit(m)
	return &m, nil
}

// Delete removes a message and drops it from the local list on success.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/api/messages/"+id, nil, nil); err != nil {
		return err
	}
	c.conv.ApplyDelete(id)
	return nil
}

// Notify relays a transient payload to a peer over the websocket. Nothing
// is persisted; the authoritative send path is Send.
func (c *Client) Notify(peerID string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(chat.NotifyPayload{ReceiverID: peerID, Data: raw})
	if err != nil {
		return err
	}
	return c.conn.WriteJSON(chat.Envelope{Event: chat.EventSendMessage, Data: payload})
}
