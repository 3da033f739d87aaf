// Package adapter connects the bot to Telegram through telebot.
package adapter

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	rtsup "growthbot/internal/runtime/supervisor"
	kit "growthbot/internal/transport"
	logx "growthbot/pkg/logx"
)

const (
	defaultPollTimeout = 10 * time.Second
	dropReportEvery    = 5 * time.Second
	stopGrace          = 2 * time.Second
)

type Config struct {
	Token       string
	PollTimeout time.Duration
	// Offline builds the bot without calling getMe. Tests only.
	Offline bool
}

// Adapter implements kit.Adapter, kit.AdminChecker and kit.CommandMenuUpdater.
type Adapter struct {
	log logx.Logger
	bot *tele.Bot

	out atomic.Pointer[chan<- kit.Update]

	runMu   sync.Mutex
	running bool
	sup     *rtsup.Supervisor

	dropped atomic.Uint64

	menuMu   sync.Mutex
	menuHash uint64
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}
	a := &Adapter{log: log.With(logx.String("comp", "telegram"))}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Poller:  &tele.LongPoller{Timeout: timeout},
		Offline: cfg.Offline,
		OnError: func(err error, _ tele.Context) {
			a.log.Warn("telebot handler error", logx.Err(err))
		},
	})
	if err != nil {
		return nil, err
	}
	a.bot = b
	a.registerHandlers()
	return a, nil
}

func (a *Adapter) registerHandlers() {
	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		if msg := toMessage(c.Message()); msg != nil {
			a.emit(kit.Update{Kind: kit.UpdateMessage, Message: msg})
		}
		return nil
	})
	a.bot.Handle(tele.OnMyChatMember, func(c tele.Context) error {
		if m := toMembership(c.ChatMember()); m != nil {
			a.emit(kit.Update{Kind: kit.UpdateBotLeft, Membership: m})
		}
		return nil
	})
}

func toMessage(m *tele.Message) *kit.Message {
	if m == nil || m.Chat == nil {
		return nil
	}
	msg := &kit.Message{
		ID:       m.ID,
		ChatID:   m.Chat.ID,
		ThreadID: m.ThreadID,
		Text:     m.Text,
		IsGroup:  m.Chat.Type == tele.ChatGroup || m.Chat.Type == tele.ChatSuperGroup,
	}
	if m.Sender != nil {
		msg.FromID = m.Sender.ID
		msg.FromUsername = m.Sender.Username
	}
	return msg
}

// toMembership returns nil unless the update says the bot is no longer in
// the chat.
func toMembership(u *tele.ChatMemberUpdate) *kit.Membership {
	if u == nil || u.Chat == nil || u.NewChatMember == nil {
		return nil
	}
	switch u.NewChatMember.Role {
	case tele.Left, tele.Kicked:
	default:
		return nil
	}
	m := &kit.Membership{ChatID: u.Chat.ID, ChatTitle: u.Chat.Title}
	if u.Sender != nil {
		m.ByUserID = u.Sender.ID
	}
	return m
}

func (a *Adapter) emit(up kit.Update) {
	p := a.out.Load()
	if p == nil {
		return
	}
	select {
	case *p <- up:
	default:
		a.dropped.Add(1)
	}
}

func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.out.Store(&out)
	sup := rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(false))
	a.sup = sup
	a.runMu.Unlock()

	sup.Go0("telegram.drop_report", func(c context.Context) {
		t := time.NewTicker(dropReportEvery)
		defer t.Stop()
		for {
			select {
			case <-c.Done():
				a.reportDropped(cap(out))
				return
			case <-t.C:
				a.reportDropped(cap(out))
			}
		}
	})
	sup.Go0("telegram.stop_on_cancel", func(c context.Context) {
		<-c.Done()
		a.bot.Stop()
	})
	// bot.Start blocks until Stop; restart it if it returns on its own.
	sup.GoRestart("telegram.poll", func(c context.Context) error {
		a.log.Info("polling started")
		a.bot.Start()
		a.log.Info("polling stopped")
		return nil
	},
		rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
		rtsup.WithStopOnCleanExit(false),
	)
	return nil
}

func (a *Adapter) reportDropped(capacity int) {
	if n := a.dropped.Swap(0); n > 0 {
		a.log.Warn("incoming updates dropped (channel full)", logx.Uint64("count", n), logx.Int("chan_cap", capacity))
	}
}

// Stop never blocks longer than a short grace window; a pending long poll
// is abandoned.
func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	sup, was := a.sup, a.running
	a.sup, a.running = nil, false
	a.out.Store(nil)
	a.runMu.Unlock()
	if !was || sup == nil {
		return nil
	}

	sup.Cancel()
	wctx, cancel := context.WithTimeout(ctx, stopGrace)
	defer cancel()
	if err := sup.Wait(wctx); err != nil && wctx.Err() != nil {
		a.log.Warn("telegram stop timed out", logx.Err(err))
	}
	return nil
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	chat := &tele.Chat{ID: to.ChatID}
	var first kit.MessageRef
	for i, chunk := range splitText(text, textLimit, opt.ParseMode) {
		if err := ctx.Err(); err != nil {
			return first, err
		}
		msg, err := a.bot.Send(chat, chunk, &tele.SendOptions{
			ParseMode:             opt.ParseMode,
			DisableWebPagePreview: opt.DisablePreview,
			ThreadID:              to.ThreadID,
		})
		if err != nil {
			return first, err
		}
		if i == 0 {
			first = kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
		}
	}
	return first, nil
}

func (a *Adapter) IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m, err := a.bot.ChatMemberOf(&tele.Chat{ID: chatID}, &tele.User{ID: userID})
	if err != nil {
		return false, err
	}
	return m.Role == tele.Administrator || m.Role == tele.Creator, nil
}

// UpdateMenuCommands calls setMyCommands only when the list changed since
// the last successful call.
func (a *Adapter) UpdateMenuCommands(ctx context.Context, cmds []kit.BotCommand) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.menuMu.Lock()
	defer a.menuMu.Unlock()

	h := fnv.New64a()
	list := make([]tele.Command, 0, len(cmds))
	for _, c := range cmds {
		if c.Command == "" {
			continue
		}
		d := c.Description
		if d == "" {
			d = c.Command
		}
		list = append(list, tele.Command{Text: c.Command, Description: d})
		_, _ = h.Write([]byte(c.Command + "\x00" + d + "\x00"))
	}
	sum := h.Sum64()
	if sum == a.menuHash {
		return nil
	}
	if err := a.bot.SetCommands(list); err != nil {
		return err
	}
	a.menuHash = sum
	a.log.Info("menu commands updated", logx.Int("count", len(list)))
	return nil
}
