package mailbox

import (
	"errors"
	"testing"
	"time"
)

func TestBoundedMailbox_ErrorPolicyRejectsWhenFull(t *testing.T) {
	mb := NewBoundedMailbox[int](2, Error)
	if err := mb.Send(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mb.Send(2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mb.Send(3); !errors.Is(err, ErrFull) {
		t.Fatalf("expected ErrFull, got %v", err)
	}
}

func TestBoundedMailbox_DropOldestEvictsHead(t *testing.T) {
	mb := NewBoundedMailbox[int](2, DropOldest)
	_ = mb.Send(1)
	_ = mb.Send(2)
	_ = mb.Send(3) // evicts 1

	if inFlight := mb.Metrics().InFlight; inFlight != 2 {
		t.Fatalf("expected in-flight count to stay bounded at capacity 2, got %d", inFlight)
	}

	first, err := mb.TryRecv()
	if err != nil || first != 2 {
		t.Fatalf("expected 2, got %v err %v", first, err)
	}
	second, err := mb.TryRecv()
	if err != nil || second != 3 {
		t.Fatalf("expected 3, got %v err %v", second, err)
	}
}

func TestBoundedMailbox_DropNewestDiscardsIncoming(t *testing.T) {
	mb := NewBoundedMailbox[int](1, DropNewest)
	_ = mb.Send(1)
	if err := mb.Send(2); err != nil {
		t.Fatalf("DropNewest must not error: %v", err)
	}
	msg, err := mb.TryRecv()
	if err != nil || msg != 1 {
		t.Fatalf("expected original message 1 retained, got %v err %v", msg, err)
	}
}

func TestBoundedMailbox_FIFOOrder(t *testing.T) {
	mb := NewBoundedMailbox[int](10, Error)
	for i := 0; i < 5; i++ {
		_ = mb.Send(i)
	}
	for i := 0; i < 5; i++ {
		got, err := mb.TryRecv()
		if err != nil || got != i {
			t.Fatalf("expected FIFO order, want %d got %v err %v", i, got, err)
		}
	}
}

func TestBoundedMailbox_TryRecvEmpty(t *testing.T) {
	mb := NewBoundedMailbox[int](1, Error)
	if _, err := mb.TryRecv(); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestBoundedMailbox_CloseDrainsThenDisconnects(t *testing.T) {
	mb := NewBoundedMailbox[int](2, Error)
	_ = mb.Send(1)
	mb.Close()

	if err := mb.Send(2); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}

	got, err := mb.TryRecv()
	if err != nil || got != 1 {
		t.Fatalf("expected drain of queued message, got %v err %v", got, err)
	}
	if _, err := mb.TryRecv(); !errors.Is(err, ErrDisconnected) {
		t.Fatalf("expected ErrDisconnected once drained, got %v", err)
	}
}

func TestBoundedMailbox_BlockWaitsForSpace(t *testing.T) {
	mb := NewBoundedMailbox[int](1, Block)
	_ = mb.Send(1)

	sendDone := make(chan error, 1)
	go func() {
		sendDone <- mb.Send(2)
	}()

	select {
	case <-sendDone:
		t.Fatal("blocking send should not complete before space frees up")
	case <-time.After(50 * time.Millisecond):
	}

	if _, err := mb.TryRecv(); err != nil {
		t.Fatalf("unexpected error draining: %v", err)
	}

	select {
	case err := <-sendDone:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked send never unblocked")
	}
}

func TestBoundedMailbox_Metrics(t *testing.T) {
	mb := NewBoundedMailbox[int](5, Error)
	_ = mb.Send(1)
	_ = mb.Send(2)
	_, _ = mb.TryRecv()

	m := mb.Metrics()
	if m.Sent != 2 || m.Received != 1 || m.InFlight != 1 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
}

func TestUnboundedMailbox_NeverRejects(t *testing.T) {
	mb := NewUnboundedMailbox[int]()
	for i := 0; i < 1000; i++ {
		if err := mb.Send(i); err != nil {
			t.Fatalf("unbounded send must never fail: %v", err)
		}
	}
	if mb.Capacity() != 0 {
		t.Fatalf("expected capacity 0 sentinel, got %d", mb.Capacity())
	}
	for i := 0; i < 1000; i++ {
		got, err := mb.TryRecv()
		if err != nil || got != i {
			t.Fatalf("expected FIFO order at %d, got %v err %v", i, got, err)
		}
	}
}

func TestUnboundedMailbox_RecvBlocksUntilSend(t *testing.T) {
	mb := NewUnboundedMailbox[string]()
	result := make(chan string, 1)
	go func() {
		msg, err := mb.Recv(nil)
		if err == nil {
			result <- msg
		}
	}()

	time.Sleep(20 * time.Millisecond)
	_ = mb.Send("hello")

	select {
	case msg := <-result:
		if msg != "hello" {
			t.Fatalf("expected hello, got %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("Recv never returned")
	}
}

func TestUnboundedMailbox_RecvDisconnectsOnClose(t *testing.T) {
	mb := NewUnboundedMailbox[int]()
	errc := make(chan error, 1)
	go func() {
		_, err := mb.Recv(nil)
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	mb.Close()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrDisconnected) {
			t.Fatalf("expected ErrDisconnected, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Recv never woke up on close")
	}
}
