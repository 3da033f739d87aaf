package transport

import "context"

type UpdateKind string

const (
	UpdateMessage UpdateKind = "message"
	// UpdateBotLeft fires when the bot is removed from (or leaves) a chat.
	UpdateBotLeft UpdateKind = "bot_left"
)

type Update struct {
	Kind       UpdateKind
	Message    *Message
	Membership *Membership
}

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // telegram forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	Text         string
	IsGroup      bool
}

type Membership struct {
	ChatID    int64
	ChatTitle string
	ByUserID  int64
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}

// AdminChecker is implemented by adapters that can tell whether a user
// administers a chat.
type AdminChecker interface {
	IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error)
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is an optional interface that adapters can implement
// to update platform-specific bot command menus (e.g. Telegram /menu list).
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
