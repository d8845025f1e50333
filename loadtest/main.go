package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"dmchat/client"
	"dmchat/internal/user"
)

const (
	BaseURL   = "http://localhost:8080"
	WSURL     = "ws://localhost:8080/ws"
	PairCount = 50 // ⚠️ Start small. Each pair is two users with live sockets.
	MsgCount  = 20 // Messages per user
)

var delivered atomic.Int64

func main() {
	log.Printf("🔥 STARTING STRESS TEST: %d users, %d messages each...", PairCount*2, MsgCount)
	var wg sync.WaitGroup

	for i := 0; i < PairCount; i++ {
		wg.Add(1)
		go func(pairID int) {
			defer wg.Done()
			runPair(pairID)
		}(i)
	}

	wg.Wait()
	log.Printf("✅ LOAD TEST COMPLETE: %d/%d messages delivered in realtime",
		delivered.Load(), int64(PairCount*2*MsgCount))
}

func runPair(pairID int) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	a := connect(ctx, pairID, "a")
	b := connect(ctx, pairID, "b")
	if a == nil || b == nil {
		return
	}
	defer a.Close()
	defer b.Close()

	// Point both clients at each other's conversation.
	if err := a.Select(ctx, b.UserID()); err != nil {
		log.Printf("❌ Select failed: %v", err)
		return
	}
	if err := b.Select(ctx, a.UserID()); err != nil {
		log.Printf("❌ Select failed: %v", err)
		return
	}

	var wsWg sync.WaitGroup
	wsWg.Add(2)
	go spam(ctx, &wsWg, a, pairID, "a")
	go spam(ctx, &wsWg, b, pairID, "b")
	wsWg.Wait()

	// Give the last pushes a moment to land, then count what arrived over
	// the socket plus what was confirmed locally.
	time.Sleep(500 * time.Millisecond)
	delivered.Add(int64(a.Conversation().Len() + b.Conversation().Len() - 2*MsgCount))
}

// connect signs up a fresh user (sign-in fallback for reruns) and opens
// the realtime channel.
func connect(ctx context.Context, pairID int, side string) *client.Client {
	c := client.New(BaseURL, WSURL)
	email := fmt.Sprintf("load_%d_%s@example.com", pairID, side)

	err := c.Signup(ctx, &user.SignupRequest{
		FirstName: "Load",
		LastName:  fmt.Sprintf("%d%s", pairID, side),
		Email:     email,
		Password:  "password123",
	})
	if err != nil {
		if err = c.Signin(ctx, email, "password123"); err != nil {
			log.Printf("❌ Auth failed [%s]: %v", email, err)
			return nil
		}
	}

	if err := c.Connect(ctx); err != nil {
		log.Printf("❌ WS connect failed [%s]: %v", email, err)
		return nil
	}
	return c
}

func spam(ctx context.Context, wg *sync.WaitGroup, c *client.Client, pairID int, side string) {
	defer wg.Done()

	for i := 0; i < MsgCount; i++ {
		if _, err := c.Send(ctx, fmt.Sprintf("loadtest msg %d from pair %d side %s", i, pairID, side), ""); err != nil {
			log.Printf("❌ Send failed [pair %d %s]: %v", pairID, side, err)
			return
		}
		// Small sleep to prevent an instant localhost bottleneck.
		time.Sleep(10 * time.Millisecond)
	}
}
