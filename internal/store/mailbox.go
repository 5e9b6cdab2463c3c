package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	logx "herald/pkg/logx"
)

// ErrEmptyMessage rejects blank enqueue attempts.
var ErrEmptyMessage = errors.New("message is empty")

// Mailbox is the single-slot filesystem hand-off between the enqueue entry
// point (external process) and the daemon's poll loop.
//
// Presence of the marker file = pending entry; absence = idle. At most one
// entry exists at a time: a second Enqueue before consumption overwrites the
// first (last-write-wins, no backpressure).
type Mailbox struct {
	log  logx.Logger
	path string
}

func NewMailbox(path string, log logx.Logger) *Mailbox {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Mailbox{log: log, path: path}
}

// Path returns the marker file location (the poll loop watches its directory).
func (m *Mailbox) Path() string { return m.path }

// Enqueue writes text into the marker, replacing any unconsumed entry.
// Write-then-rename so the consumer never reads a torn entry.
func (m *Mailbox) Enqueue(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(text), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, m.path)
}

// TakePending consumes the pending entry, if any: it reads the marker's full
// content, deletes the marker, and returns the content.
//
// Blank content is treated as "no message" but still deletes the marker so an
// empty file can't be reprocessed forever. A marker that vanishes between the
// existence check and the read is "no message this cycle", not an error.
func (m *Mailbox) TakePending() (string, bool) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			m.log.Debug("mailbox read failed; skipping cycle", logx.String("path", m.path), logx.Err(err))
		}
		return "", false
	}

	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		// The entry will be seen again next cycle; at-least-once is acceptable.
		m.log.Warn("mailbox marker remove failed", logx.String("path", m.path), logx.Err(err))
	}

	text := strings.TrimSpace(string(b))
	if text == "" {
		return "", false
	}
	return text, true
}
