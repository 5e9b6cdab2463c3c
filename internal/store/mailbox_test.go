package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	logx "herald/pkg/logx"
)

func TestMailboxEnqueueRejectsBlank(t *testing.T) {
	t.Parallel()
	m := NewMailbox(filepath.Join(t.TempDir(), "pending_message.txt"), logx.Nop())

	for _, text := range []string{"", "   ", "\n\t"} {
		if err := m.Enqueue(text); !errors.Is(err, ErrEmptyMessage) {
			t.Fatalf("Enqueue(%q) err = %v, want ErrEmptyMessage", text, err)
		}
	}
	if _, err := os.Stat(m.Path()); !os.IsNotExist(err) {
		t.Fatal("blank enqueue must not create the marker")
	}
}

func TestMailboxSingleSlotLastWriteWins(t *testing.T) {
	t.Parallel()
	m := NewMailbox(filepath.Join(t.TempDir(), "pending_message.txt"), logx.Nop())

	if err := m.Enqueue("message A"); err != nil {
		t.Fatalf("Enqueue A: %v", err)
	}
	if err := m.Enqueue("message B"); err != nil {
		t.Fatalf("Enqueue B: %v", err)
	}

	text, ok := m.TakePending()
	if !ok || text != "message B" {
		t.Fatalf("TakePending = (%q, %v), want (message B, true)", text, ok)
	}

	// Slot is single-entry: nothing else is pending.
	if text, ok := m.TakePending(); ok {
		t.Fatalf("second TakePending = (%q, true), want nothing", text)
	}
}

func TestMailboxTakeConsumesMarker(t *testing.T) {
	t.Parallel()
	m := NewMailbox(filepath.Join(t.TempDir(), "pending_message.txt"), logx.Nop())

	if err := m.Enqueue("hello"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, ok := m.TakePending(); !ok {
		t.Fatal("expected pending entry")
	}
	if _, err := os.Stat(m.Path()); !os.IsNotExist(err) {
		t.Fatalf("marker still present after consume (stat err = %v)", err)
	}
}

func TestMailboxTakeAbsentIsIdempotent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	m := NewMailbox(filepath.Join(dir, "pending_message.txt"), logx.Nop())

	if text, ok := m.TakePending(); ok {
		t.Fatalf("TakePending on absent marker = (%q, true), want nothing", text)
	}

	// No stray file mutations either.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("unexpected files in mailbox dir: %v", entries)
	}
}

func TestMailboxBlankContentConsumedWithoutMessage(t *testing.T) {
	t.Parallel()
	m := NewMailbox(filepath.Join(t.TempDir(), "pending_message.txt"), logx.Nop())

	// A marker can land blank (e.g. an external writer misbehaving). It must
	// be cleared without reporting a message, or the loop would spin on it.
	if err := os.WriteFile(m.Path(), []byte("  \n "), 0o600); err != nil {
		t.Fatalf("seed marker: %v", err)
	}

	if text, ok := m.TakePending(); ok {
		t.Fatalf("TakePending = (%q, true), want nothing for blank content", text)
	}
	if _, err := os.Stat(m.Path()); !os.IsNotExist(err) {
		t.Fatal("blank marker must still be deleted")
	}
}
