package transport

import "context"

type UpdateKind string

const (
	// UpdateRegister is emitted when a chat issues the register command (/start).
	UpdateRegister UpdateKind = "register"
)

type Update struct {
	Kind     UpdateKind
	Register *Register
}

// Register carries the sender of a registration command.
type Register struct {
	ChatID       int64
	FromID       int64
	FromUsername string
}

type ChatTarget struct {
	ChatID int64
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Adapter is the narrow Messaging Gateway surface the daemon depends on.
// The wire protocol (long polling, formatting, remote rate limits) lives
// behind it.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) error
}
