package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the optional audit store.
//
// Driver values:
//   - "file": dependency-free JSON Lines backend
//   - "sqlite": SQLite database file (sqlite build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AuditEntry records one operational event: a completed broadcast sweep or a
// new registration. This is an operations trail, not message history —
// nothing is ever re-delivered from it.
type AuditEntry struct {
	At     time.Time `json:"at"`
	Action string    `json:"action"` // "broadcast" | "register"
	ChatID int64     `json:"chat_id,omitempty"`
	OK     int       `json:"ok"`
	Fail   int       `json:"fail"`
	Error  string    `json:"err,omitempty"`
	TookMS int64     `json:"took_ms,omitempty"`
}

const (
	ActionBroadcast = "broadcast"
	ActionRegister  = "register"
)
