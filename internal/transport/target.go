package transport

import (
	"fmt"
	"strconv"
	"strings"
)

// ChatTarget addresses a chat, optionally a forum topic inside it.
type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

// String renders the target the way it is persisted: "chat" or "chat/thread".
func (t ChatTarget) String() string {
	if t.ThreadID != 0 {
		return strconv.FormatInt(t.ChatID, 10) + "/" + strconv.Itoa(t.ThreadID)
	}
	return strconv.FormatInt(t.ChatID, 10)
}

// GroupID is the registry key for the chat.
func (t ChatTarget) GroupID() string { return strconv.FormatInt(t.ChatID, 10) }

// ParseChatTarget parses "chat" or "chat/thread".
func ParseChatTarget(raw string) (ChatTarget, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ChatTarget{}, fmt.Errorf("empty chat target")
	}
	chatPart, threadPart, hasThread := strings.Cut(s, "/")
	chatID, err := strconv.ParseInt(strings.TrimSpace(chatPart), 10, 64)
	if err != nil || chatID == 0 {
		return ChatTarget{}, fmt.Errorf("invalid chat id %q", chatPart)
	}
	t := ChatTarget{ChatID: chatID}
	if hasThread {
		thread, err := strconv.Atoi(strings.TrimSpace(threadPart))
		if err != nil || thread < 0 {
			return ChatTarget{}, fmt.Errorf("invalid thread id %q", threadPart)
		}
		t.ThreadID = thread
	}
	return t, nil
}
