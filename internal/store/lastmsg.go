package store

import (
	"os"
	"strings"

	logx "herald/pkg/logx"
)

// DefaultGreeting is returned when no broadcast has ever been recorded.
// Newly registered chats that missed the live broadcast receive it instead.
const DefaultGreeting = "Добро пожаловать! 👋 Вы подписались на уведомления."

// LastMessage is a single durable slot holding the most recent broadcast text.
// The poll loop is the only writer; the registration handler reads it.
type LastMessage struct {
	log  logx.Logger
	path string
}

func NewLastMessage(path string, log logx.Logger) *LastMessage {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &LastMessage{log: log, path: path}
}

// Read returns the stored text, or DefaultGreeting when the slot is absent,
// blank, or unreadable. It never fails.
func (r *LastMessage) Read() string {
	b, err := os.ReadFile(r.path)
	if err != nil {
		if !os.IsNotExist(err) {
			r.log.Error("last message unreadable; using default greeting", logx.String("path", r.path), logx.Err(err))
		}
		return DefaultGreeting
	}
	text := strings.TrimSpace(string(b))
	if text == "" {
		return DefaultGreeting
	}
	return text
}

// Write overwrites the slot. Write-then-rename keeps a concurrent Read from
// ever observing a half-written message.
func (r *LastMessage) Write(text string) error {
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(text), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, r.path)
}
