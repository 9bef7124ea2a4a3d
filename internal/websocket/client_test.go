package websocket

import (
	"fmt"
	"testing"
)

func newQueueClient(size int) *Client {
	return &Client{
		send: make(chan []byte, size),
		done: make(chan struct{}),
	}
}

func TestEnqueuePreservesOrder(t *testing.T) {
	c := newQueueClient(8)

	for i := 0; i < 5; i++ {
		if !c.Enqueue([]byte(fmt.Sprintf("msg-%d", i))) {
			t.Fatalf("enqueue %d failed", i)
		}
	}
	for i := 0; i < 5; i++ {
		got := string(<-c.send)
		want := fmt.Sprintf("msg-%d", i)
		if got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
}

func TestEnqueueDropsOldestOnOverflow(t *testing.T) {
	c := newQueueClient(2)

	c.Enqueue([]byte("a"))
	c.Enqueue([]byte("b"))
	// Queue full: the oldest message gives way, the producer never blocks.
	if !c.Enqueue([]byte("c")) {
		t.Fatal("overflow enqueue must still succeed")
	}

	if got := c.Dropped(); got != 1 {
		t.Fatalf("expected 1 dropped message, got %d", got)
	}
	if got := string(<-c.send); got != "b" {
		t.Fatalf("expected oldest evicted, head is %s", got)
	}
	if got := string(<-c.send); got != "c" {
		t.Fatalf("expected newest retained, got %s", got)
	}
}

func TestEnqueueFailsAfterClose(t *testing.T) {
	c := newQueueClient(2)
	close(c.done)

	if c.Enqueue([]byte("late")) {
		t.Fatal("enqueue on closing connection must report failure")
	}
}
