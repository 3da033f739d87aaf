// Package router turns chat messages into tracker commands.
package router

import (
	"context"
	"runtime"
	"runtime/debug"
	"slices"
	"strconv"
	"sync"
	"time"

	rtsup "growthbot/internal/runtime/supervisor"
	"growthbot/internal/social"
	kit "growthbot/internal/transport"
	logx "growthbot/pkg/logx"
)

const (
	defaultTimeout    = 45 * time.Second
	jobQueueSize      = 256
	adminCheckTimeout = 5 * time.Second
)

type Access int

const (
	AccessEveryone Access = iota
	// AccessAdmin allows chat administrators and owners. In a private chat
	// the user counts as the chat's administrator.
	AccessAdmin
	AccessOwner
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Command struct {
	Name        string // telegram-safe: [a-z0-9_]
	Description string
	Usage       string
	Access      Access
	Timeout     time.Duration
	Handle      HandlerFunc
}

type Request struct {
	Update  kit.Update
	Chat    kit.ChatTarget
	FromID  int64
	IsGroup bool
	Command string
	Args    []string
	ReqID   string
	Logger  logx.Logger
}

// Group is the registry key for the request's chat.
func (r *Request) Group() string { return r.Chat.GroupID() }

// Tracker is the registry surface the commands drive.
type Tracker interface {
	Add(ctx context.Context, group, rawURL, destination string) (social.Account, error)
	Remove(ctx context.Context, group string, index int) (social.Account, error)
	List(group string) []social.Account
	DropGroup(ctx context.Context, group string) int
	Enabled(p social.Platform) bool
}

// Trigger requests an immediate sweep.
type Trigger interface {
	RunNow() bool
}

type Options struct {
	Adapter kit.Adapter
	Tracker Tracker
	Trigger Trigger
	Owners  []int64
	Log     logx.Logger
}

type Router struct {
	log     logx.Logger
	adapter kit.Adapter
	tracker Tracker
	trigger Trigger

	mu     sync.RWMutex
	owners []int64
	cmds   map[string]Command
	order  []string

	jobs chan func(context.Context)
}

func New(opts Options) *Router {
	r := &Router{
		log:     opts.Log.With(logx.String("comp", "telegram.router")),
		adapter: opts.Adapter,
		tracker: opts.Tracker,
		trigger: opts.Trigger,
		owners:  slices.Clone(opts.Owners),
		jobs:    make(chan func(context.Context), jobQueueSize),
	}
	r.register(r.builtinCommands())
	return r
}

// SetOwners replaces the owner list; safe during a config reload.
func (r *Router) SetOwners(owners []int64) {
	r.mu.Lock()
	r.owners = slices.Clone(owners)
	r.mu.Unlock()
}

func (r *Router) isOwner(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Contains(r.owners, id)
}

func (r *Router) register(cmds []Command) {
	m := make(map[string]Command, len(cmds))
	order := make([]string, 0, len(cmds))
	for _, c := range cmds {
		if c.Name == "" || c.Handle == nil {
			continue
		}
		m[c.Name] = c
		order = append(order, c.Name)
	}
	r.mu.Lock()
	r.cmds, r.order = m, order
	r.mu.Unlock()
}

// Commands returns the registered commands in help order.
func (r *Router) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Command, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.cmds[n])
	}
	return out
}

func (r *Router) lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cmds[name]
	return c, ok
}

// PublishMenu pushes the command list to the adapter's menu, if supported.
func (r *Router) PublishMenu(ctx context.Context) {
	up, ok := r.adapter.(kit.CommandMenuUpdater)
	if !ok {
		return
	}
	var menu []kit.BotCommand
	for _, c := range r.Commands() {
		menu = append(menu, kit.BotCommand{Command: c.Name, Description: c.Description})
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := up.UpdateMenuCommands(ctx, menu); err != nil {
		r.log.Warn("menu update failed", logx.Err(err))
	}
}

// DispatchLoop consumes updates until ctx is done or updates is closed.
// Commands run on a small worker pool; a full pool answers "busy".
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	workers := max(2, min(runtime.NumCPU(), 8))
	sup := rtsup.New(ctx, rtsup.WithLogger(r.log), rtsup.WithCancelOnError(false))
	for i := 0; i < workers; i++ {
		sup.GoRestart("command.worker."+strconv.Itoa(i), func(c context.Context) error {
			r.work(c)
			return nil
		},
			rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			rtsup.WithStopOnCleanExit(true),
		)
	}
	r.log.Info("command dispatcher started", logx.Int("workers", workers))

	defer func() {
		sup.Cancel()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		r.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.route(ctx, up)
		}
	}
}

func (r *Router) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-r.jobs:
			func() {
				defer func() {
					if v := recover(); v != nil {
						r.log.Error("panic in command job", logx.Any("panic", v), logx.String("stack", string(debug.Stack())))
					}
				}()
				job(ctx)
			}()
		}
	}
}

func (r *Router) route(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		if req, cmd, ok := r.prepare(up); ok {
			r.enqueue(ctx, req, cmd)
		}
	case kit.UpdateBotLeft:
		if up.Membership != nil {
			r.botLeft(ctx, up.Membership)
		}
	}
}

// prepare resolves the command for a message. Unknown commands are
// ignored; in groups other bots' commands are common.
func (r *Router) prepare(up kit.Update) (*Request, Command, bool) {
	msg := up.Message
	if msg == nil {
		return nil, Command{}, false
	}
	name, args, ok := splitCommand(msg.Text)
	if !ok {
		return nil, Command{}, false
	}
	cmd, ok := r.lookup(name)
	if !ok {
		return nil, Command{}, false
	}
	rid := newReqID()
	req := &Request{
		Update:  up,
		Chat:    kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID},
		FromID:  msg.FromID,
		IsGroup: msg.IsGroup,
		Command: name,
		Args:    args,
		ReqID:   rid,
		Logger: r.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", name),
		),
	}
	return req, cmd, true
}

func (r *Router) enqueue(ctx context.Context, req *Request, cmd Command) {
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	final := Chain(cmd.Handle,
		MWPanicRecover(r.log),
		MWRequestLog(r.log),
		MWAccess(cmd.Access, r.authorize, r.reply),
		MWTimeout(timeout),
	)
	select {
	case r.jobs <- func(c context.Context) { _ = final(c, req) }:
	default:
		r.reply(ctx, req, "⏳ Busy, try again in a moment.")
	}
}

// authorize reports whether req's sender may run a command at the given level.
func (r *Router) authorize(ctx context.Context, req *Request, level Access) bool {
	switch level {
	case AccessEveryone:
		return true
	case AccessOwner:
		return r.isOwner(req.FromID)
	}
	if r.isOwner(req.FromID) || !req.IsGroup {
		return true
	}
	return r.isAdmin(ctx, req.Chat.ChatID, req.FromID, req.Logger)
}

func (r *Router) isAdmin(ctx context.Context, chatID, userID int64, log logx.Logger) bool {
	ac, ok := r.adapter.(kit.AdminChecker)
	if !ok {
		return false
	}
	cctx, cancel := context.WithTimeout(ctx, adminCheckTimeout)
	defer cancel()
	admin, err := ac.IsChatAdmin(cctx, chatID, userID)
	if err != nil {
		log.Warn("admin check failed", logx.Int64("chat_id", chatID), logx.Err(err))
		return false
	}
	return admin
}

func (r *Router) botLeft(ctx context.Context, m *kit.Membership) {
	group := kit.ChatTarget{ChatID: m.ChatID}.GroupID()
	n := r.tracker.DropGroup(ctx, group)
	r.log.Info("bot removed from chat",
		logx.String("group", group),
		logx.String("title", m.ChatTitle),
		logx.Int64("by", m.ByUserID),
		logx.Int("accounts_dropped", n),
	)
}

func (r *Router) reply(ctx context.Context, req *Request, html string) {
	_, err := r.adapter.SendText(ctx, req.Chat, html, &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
	if err != nil {
		req.Logger.Warn("reply failed", logx.Err(err))
	}
}
