// Jukewire - Crowd-Curated Queue and Zone Playback Synchronization
// Copyright 2026 Jukewire contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jukewire/jukewire

package websocket

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/jukewire/jukewire/internal/logging"
	"github.com/jukewire/jukewire/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// setupHub starts a hub under a context the test controls.
func setupHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("hub did not stop")
		}
	})
	time.Sleep(10 * time.Millisecond)
	return hub, cancel
}

// testClient builds a connection-less client for hub-level tests.
func testClient(hub *Hub, sessionID string) *Client {
	return &Client{
		id:        clientIDCounter.Add(1),
		sessionID: sessionID,
		hub:       hub,
		send:      make(chan Message, 256),
	}
}

func register(hub *Hub, client *Client) {
	hub.Register <- client
	time.Sleep(20 * time.Millisecond)
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub.clients == nil {
		t.Error("clients map not initialized")
	}
	if hub.broadcast == nil {
		t.Error("broadcast channel not initialized")
	}
	if hub.Register == nil || hub.Unregister == nil {
		t.Error("lifecycle channels not initialized")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("new hub has %d clients", hub.ClientCount())
	}
}

func TestRegisterAndUnregister(t *testing.T) {
	hub, _ := setupHub(t)
	client := testClient(hub, "sess-1")

	register(hub, client)
	if hub.ClientCount() != 1 {
		t.Fatalf("client count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister <- client
	time.Sleep(20 * time.Millisecond)
	if hub.ClientCount() != 0 {
		t.Fatalf("client count after unregister = %d, want 0", hub.ClientCount())
	}

	// The hub closes the send channel on unregister.
	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("send channel delivered a message instead of closing")
		}
	case <-time.After(time.Second):
		t.Error("send channel not closed")
	}
}

func TestPublishIsSessionScoped(t *testing.T) {
	hub, _ := setupHub(t)
	in := testClient(hub, "sess-1")
	out := testClient(hub, "sess-2")
	register(hub, in)
	register(hub, out)

	view := &models.QueueView{}
	hub.PublishQueue("sess-1", view)

	select {
	case msg := <-in.send:
		if msg.Type != MessageTypeQueueUpdate {
			t.Errorf("message type = %q, want %q", msg.Type, MessageTypeQueueUpdate)
		}
	case <-time.After(time.Second):
		t.Fatal("subscribed client received nothing")
	}

	select {
	case msg := <-out.send:
		t.Errorf("client of another session received %q", msg.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishPlayback(t *testing.T) {
	hub, _ := setupHub(t)
	client := testClient(hub, "sess-1")
	register(hub, client)

	hub.PublishPlayback("sess-1", &models.PlaybackState{Requester: "Alice"})

	select {
	case msg := <-client.send:
		if msg.Type != MessageTypePlaybackUpdate {
			t.Errorf("message type = %q, want %q", msg.Type, MessageTypePlaybackUpdate)
		}
		state, ok := msg.Data.(*models.PlaybackState)
		if !ok || state.Requester != "Alice" {
			t.Errorf("payload = %#v", msg.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("no playback message delivered")
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	hub, _ := setupHub(t)
	slow := &Client{
		id:        clientIDCounter.Add(1),
		sessionID: "sess-1",
		hub:       hub,
		send:      make(chan Message), // unbuffered, nobody reading
	}
	register(hub, slow)

	hub.PublishQueue("sess-1", &models.QueueView{})
	time.Sleep(50 * time.Millisecond)

	if hub.ClientCount() != 0 {
		t.Errorf("slow client still registered, count = %d", hub.ClientCount())
	}
}

func TestSessionClientCount(t *testing.T) {
	hub, _ := setupHub(t)
	register(hub, testClient(hub, "sess-1"))
	register(hub, testClient(hub, "sess-1"))
	register(hub, testClient(hub, "sess-2"))

	if got := hub.SessionClientCount("sess-1"); got != 2 {
		t.Errorf("sess-1 count = %d, want 2", got)
	}
	if got := hub.SessionClientCount("sess-2"); got != 1 {
		t.Errorf("sess-2 count = %d, want 1", got)
	}
	if got := hub.SessionClientCount("ghost"); got != 0 {
		t.Errorf("ghost count = %d, want 0", got)
	}
}

func TestServeShutdownClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- hub.Serve(ctx) }()
	time.Sleep(10 * time.Millisecond)

	client := testClient(hub, "sess-1")
	register(hub, client)

	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	if hub.ClientCount() != 0 {
		t.Errorf("clients survived shutdown: %d", hub.ClientCount())
	}
	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("send channel delivered a message instead of closing")
		}
	default:
		t.Error("send channel not closed on shutdown")
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	// Hub not served: the broadcast buffer fills and publish must not block.
	hub := NewHub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			hub.PublishQueue("sess-1", &models.QueueView{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full broadcast buffer")
	}
}
