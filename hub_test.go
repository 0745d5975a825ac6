package main

import (
	"testing"
)

func TestSendToEvictedClient(t *testing.T) {
	h := newTestHub(t)

	c := &Client{send: make(chan any, 1)}
	h.clients[c] = true

	h.broadcast("first")
	h.broadcast("second")

	if _, ok := h.clients[c]; ok {
		t.Fatal("client still registered after buffer overflow")
	}

	// The overflow closed the channel, so another write must be a no-op.
	h.sendTo(c, "third")

	if msg := <-c.send; msg != "first" {
		t.Errorf("buffered message = %v, want first", msg)
	}
	if _, open := <-c.send; open {
		t.Error("send channel still open after eviction")
	}
}

func TestResultAfterOverflowDoesNotPanic(t *testing.T) {
	h := newTestHub(t)

	c := &Client{send: make(chan any, 1), isAdmin: true}
	h.clients[c] = true

	// resetGame broadcasts several events, overflowing the one-slot buffer
	// mid-command. The result reply afterwards must not write to the
	// closed channel.
	h.handleRequest(clientRequest{client: c, env: Envelope{ID: "1", Type: CmdResetGame}})

	if _, ok := h.clients[c]; ok {
		t.Fatal("overflowed client should have been evicted")
	}
}
