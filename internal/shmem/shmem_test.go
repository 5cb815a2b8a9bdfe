package shmem

import (
	"fmt"
	"testing"
	"time"
)

func uniqueName(t *testing.T) string {
	return fmt.Sprintf(`Local\DirectPipeTest%d`, time.Now().UnixNano())
}

func TestCreateOpenRoundTrip(t *testing.T) {
	name := uniqueName(t)

	producer, err := Create(name, 4096)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer producer.Close()

	producer.Data()[0] = 0x42

	consumer, err := Open(name, 4096)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer consumer.Close()

	if got := consumer.Data()[0]; got != 0x42 {
		t.Fatalf("consumer saw byte %d, want 0x42", got)
	}
}

func TestOpenFailsWithoutCreate(t *testing.T) {
	name := uniqueName(t)
	if _, err := Open(name, 4096); err == nil {
		t.Fatal("Open succeeded against a region that was never created")
	}
}

func TestCloseIsIdempotentAndClearsOpen(t *testing.T) {
	name := uniqueName(t)
	r, err := Create(name, 64)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !r.IsOpen() {
		t.Fatal("region reports closed right after Create")
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if r.IsOpen() {
		t.Fatal("region still reports open after Close")
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close returned error: %v", err)
	}
}

func TestNamedEventSignalWait(t *testing.T) {
	name := uniqueName(t)

	producer, err := CreateEvent(name)
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	defer producer.Close()

	consumer, err := OpenEvent(name)
	if err != nil {
		t.Fatalf("OpenEvent: %v", err)
	}
	defer consumer.Close()

	if consumer.Wait(50) {
		t.Fatal("wait succeeded before any signal")
	}

	producer.Signal()
	if !consumer.Wait(500) {
		t.Fatal("wait timed out after a signal")
	}

	// Auto-reset: a second wait with no new signal must time out.
	if consumer.Wait(50) {
		t.Fatal("second wait observed a stale signal")
	}
}

func TestNamedEventSignalIsTolerantOfNoWaiter(t *testing.T) {
	name := uniqueName(t)
	producer, err := CreateEvent(name)
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	defer producer.Close()

	// Signaling with no one waiting must not block or panic.
	producer.Signal()
	producer.Signal()
}
