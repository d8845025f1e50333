package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsFixture struct {
	server *httptest.Server
	store  *mockStore
	status *fakeStatusStore
}

func newWsFixture(t *testing.T) *wsFixture {
	t.Helper()

	registry := NewRegistry()
	status := &fakeStatusStore{}
	hub := NewHub(registry, status, nopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	store := newMockStore()
	svc := NewService(store, hub, nopLogger())
	h := NewHandler(hub, svc, nopLogger())

	r := chi.NewRouter()
	r.Use(asUser)
	r.Get("/ws", h.ServeWs)
	r.Post("/api/messages/send/{peerID}", h.SendMessage)
	r.Patch("/api/messages/{id}", h.EditMessage)
	r.Delete("/api/messages/{id}", h.DeleteMessage)

	server := httptest.NewServer(r)
	t.Cleanup(func() {
		server.Close()
		cancel()
	})

	return &wsFixture{server: server, store: store, status: status}
}

func (f *wsFixture) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	header := http.Header{"X-Test-User": []string{userID}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (f *wsFixture) post(t *testing.T, userID, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", userID)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func readWsEvent(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

// waitForOnline reads presence events until the snapshot matches want.
func waitForOnline(t *testing.T, conn *websocket.Conn, want []string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		env := readWsEvent(t, conn)
		if env.Event != EventOnlineUsers {
			continue
		}
		var ids []string
		require.NoError(t, json.Unmarshal(env.Data, &ids))
		if assert.ObjectsAreEqual(want, ids) {
			return
		}
	}
	t.Fatalf("never observed online set %v", want)
}

func TestWsMessageDeliveredToConnectedPeer(t *testing.T) {
	f := newWsFixture(t)

	connA := f.dial(t, "u1")
	waitForOnline(t, connA, []string{"u1"})
	connB := f.dial(t, "u2")
	waitForOnline(t, connA, []string{"u1", "u2"})
	waitForOnline(t, connB, []string{"u1", "u2"})

	resp := f.post(t, "u1", "/api/messages/send/u2", `{"text":"hello"}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var sent Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sent))
	assert.Equal(t, "hello", sent.Text)

	env := readWsEvent(t, connB)
	require.Equal(t, EventNewMessage, env.Event)
	var pushed Message
	require.NoError(t, json.Unmarshal(env.Data, &pushed))
	assert.Equal(t, sent.ID, pushed.ID, "the pushed record is the stored record")
	assert.Equal(t, "u1", pushed.SenderID)
	assert.Equal(t, "u2", pushed.ReceiverID)

	// The store agrees with both views.
	history, err := f.store.ListConversation(context.Background(), "u1", "u2")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, sent.ID, history[0].ID)
}

func TestWsSendToOfflinePeerSucceedsSilently(t *testing.T) {
	f := newWsFixture(t)

	connA := f.dial(t, "u1")
	waitForOnline(t, connA, []string{"u1"})

	resp := f.post(t, "u1", "/api/messages/send/u2", `{"text":"hello"}`)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode,
		"sender gets success even though the recipient is offline")

	history, _ := f.store.ListConversation(context.Background(), "u1", "u2")
	assert.Len(t, history, 1)
}

func TestWsDisconnectUpdatesPresence(t *testing.T) {
	f := newWsFixture(t)

	connA := f.dial(t, "u1")
	waitForOnline(t, connA, []string{"u1"})
	connB := f.dial(t, "u2")
	waitForOnline(t, connB, []string{"u1", "u2"})
	waitForOnline(t, connA, []string{"u1", "u2"})

	before := time.Now()
	connA.Close()

	waitForOnline(t, connB, []string{"u2"})

	require.Eventually(t, func() bool {
		f.status.mu.Lock()
		defer f.status.mu.Unlock()
		for _, w := range f.status.writes {
			if w.userID == "u1" && w.status == statusOffline && !w.lastSeen.Before(before) {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWsEditAndDeletePushedToPeer(t *testing.T) {
	f := newWsFixture(t)

	connB := f.dial(t, "u2")
	waitForOnline(t, connB, []string{"u2"})

	// Sender is not connected; pushes only target the other party anyway.
	resp := f.post(t, "u1", "/api/messages/send/u2", `{"text":"hi"}`)
	var m Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	resp.Body.Close()

	env := readWsEvent(t, connB)
	require.Equal(t, EventNewMessage, env.Event)

	req, _ := http.NewRequest(http.MethodPatch, f.server.URL+"/api/messages/"+m.ID, strings.NewReader(`{"text":"hello"}`))
	req.Header.Set("X-Test-User", "u1")
	patchResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	patchResp.Body.Close()
	require.Equal(t, http.StatusOK, patchResp.StatusCode)

	env = readWsEvent(t, connB)
	require.Equal(t, EventMessageEdited, env.Event)
	var edited Message
	require.NoError(t, json.Unmarshal(env.Data, &edited))
	assert.Equal(t, "hello", edited.Text)
	assert.True(t, edited.Edited)

	req, _ = http.NewRequest(http.MethodDelete, f.server.URL+"/api/messages/"+m.ID, nil)
	req.Header.Set("X-Test-User", "u1")
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	require.Equal(t, http.StatusNoContent, delResp.StatusCode)

	env = readWsEvent(t, connB)
	require.Equal(t, EventMessageDeleted, env.Event)
	var deleted DeletedPayload
	require.NoError(t, json.Unmarshal(env.Data, &deleted))
	assert.Equal(t, m.ID, deleted.ID)
}

func TestWsReconnectReplacesConnection(t *testing.T) {
	f := newWsFixture(t)

	first := f.dial(t, "u1")
	waitForOnline(t, first, []string{"u1"})

	second := f.dial(t, "u1")
	waitForOnline(t, second, []string{"u1"})

	observer := f.dial(t, "u2")
	waitForOnline(t, observer, []string{"u1", "u2"})

	// The displaced socket is closed by the server.
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}

	// Deliveries land on the replacement connection.
	resp := f.post(t, "u2", "/api/messages/send/u1", `{"text":"still there?"}`)
	resp.Body.Close()

	// Presence broadcasts may be interleaved; the message must arrive.
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.True(t, time.Now().Before(deadline), "newMessage never arrived on the replacement connection")
		if env := readWsEvent(t, second); env.Event == EventNewMessage {
			break
		}
	}
}
