package router

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"growthbot/internal/social"
	kit "growthbot/internal/transport"
)

func (r *Router) builtinCommands() []Command {
	return []Command{
		{
			Name:        "track_add",
			Description: "track a YouTube channel or Instagram profile",
			Usage:       "/track_add <url> [chat_id[/thread_id]]",
			Access:      AccessAdmin,
			Timeout:     60 * time.Second,
			Handle:      r.cmdAdd,
		},
		{
			Name:        "track_list",
			Description: "show tracked accounts in this chat",
			Usage:       "/track_list",
			Access:      AccessAdmin,
			Handle:      r.cmdList,
		},
		{
			Name:        "track_remove",
			Description: "stop tracking an account",
			Usage:       "/track_remove <n>",
			Access:      AccessAdmin,
			Handle:      r.cmdRemove,
		},
		{
			Name:        "track_refresh",
			Description: "check all accounts now",
			Usage:       "/track_refresh",
			Access:      AccessOwner,
			Handle:      r.cmdRefresh,
		},
		{
			Name:        "help",
			Description: "show commands",
			Usage:       "/help",
			Access:      AccessEveryone,
			Handle:      r.cmdHelp,
		},
	}
}

func (r *Router) cmdAdd(ctx context.Context, req *Request) error {
	if len(req.Args) == 0 || len(req.Args) > 2 {
		r.usage(ctx, req)
		return nil
	}
	dest := req.Chat
	if len(req.Args) == 2 {
		t, err := kit.ParseChatTarget(req.Args[1])
		if err != nil {
			r.reply(ctx, req, "❌ Invalid destination. Use <code>chat_id</code> or <code>chat_id/thread_id</code>.")
			return nil
		}
		// Posting into another chat needs admin rights there too.
		if t.ChatID != req.Chat.ChatID && !r.isOwner(req.FromID) && !r.isAdmin(ctx, t.ChatID, req.FromID, req.Logger) {
			r.reply(ctx, req, "🔒 You must be an administrator of the destination chat.")
			return errForbidden
		}
		dest = t
	}

	acc, err := r.tracker.Add(ctx, req.Group(), req.Args[0], dest.String())
	if err != nil {
		r.reply(ctx, req, addErrorText(err))
		return err
	}
	r.reply(ctx, req, fmt.Sprintf("✅ Now tracking <b>%s</b> on %s!\nCurrent %s: <b>%s</b>\nUpdates will be posted in <code>%s</code>.",
		html.EscapeString(acc.Name),
		acc.Platform.Title(),
		acc.Platform.Metric(),
		humanize.Comma(acc.LastCount),
		html.EscapeString(acc.Destination),
	))
	return nil
}

// addErrorText maps tracker errors to a reply.
func addErrorText(err error) string {
	var ve *social.ValidationError
	switch {
	case errors.As(err, &ve):
		return "❌ " + html.EscapeString(ve.Reason)
	case errors.Is(err, social.ErrPlatformDisabled):
		return "⚠️ Tracking for this platform is disabled on this bot."
	case errors.Is(err, social.ErrNotFound):
		return "❌ Account not found. Check the URL."
	case errors.Is(err, social.ErrParse):
		return "❌ Could not read the follower count from that profile."
	case errors.Is(err, social.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "⏱ The platform took too long to answer. Try again later."
	default:
		return "⚠️ Could not reach the platform. Try again later."
	}
}

func (r *Router) cmdList(ctx context.Context, req *Request) error {
	accs := r.tracker.List(req.Group())
	if len(accs) == 0 {
		r.reply(ctx, req, "📊 <b>Social Trackers</b>\nNo active trackers configured.")
		return nil
	}
	var b strings.Builder
	b.WriteString("📊 <b>Active Social Trackers</b>\n")
	for i, a := range accs {
		fmt.Fprintf(&b, "\n<b>%d. %s</b>\nPlatform: %s\nChannel: <code>%s</code>\nCurrent Count: %s\n<a href=\"%s\">View Profile</a>\n",
			i+1,
			html.EscapeString(a.Name),
			a.Platform.Title(),
			html.EscapeString(a.Destination),
			humanize.Comma(a.LastCount),
			html.EscapeString(a.URL),
		)
		if !r.tracker.Enabled(a.Platform) {
			b.WriteString("<i>paused: platform disabled</i>\n")
		}
	}
	r.reply(ctx, req, strings.TrimRight(b.String(), "\n"))
	return nil
}

func (r *Router) cmdRemove(ctx context.Context, req *Request) error {
	if len(req.Args) != 1 {
		r.usage(ctx, req)
		return nil
	}
	idx, ok := parseIndex(req.Args[0])
	if !ok {
		r.reply(ctx, req, "❌ Please use a valid tracker number (see /track_list).")
		return nil
	}
	acc, err := r.tracker.Remove(ctx, req.Group(), idx)
	if err != nil {
		var ve *social.ValidationError
		if errors.As(err, &ve) {
			r.reply(ctx, req, "❌ Please use a valid tracker number (see /track_list).")
			return nil
		}
		r.reply(ctx, req, "⚠️ Could not remove the tracker.")
		return err
	}
	r.reply(ctx, req, "🗑 No longer tracking <b>"+html.EscapeString(acc.Name)+"</b>.")
	return nil
}

func (r *Router) cmdRefresh(ctx context.Context, req *Request) error {
	if r.trigger == nil {
		r.reply(ctx, req, "⚠️ Scheduler is not running.")
		return nil
	}
	if r.trigger.RunNow() {
		r.reply(ctx, req, "🔄 Sweep requested.")
	} else {
		r.reply(ctx, req, "🔄 A sweep is already queued.")
	}
	return nil
}

func (r *Router) cmdHelp(ctx context.Context, req *Request) error {
	r.reply(ctx, req, r.helpText())
	return nil
}

func (r *Router) usage(ctx context.Context, req *Request) {
	c, _ := r.lookup(req.Command)
	r.reply(ctx, req, "Usage: <code>"+html.EscapeString(c.Usage)+"</code>")
}

func (r *Router) helpText() string {
	lines := []string{"📚 <b>Commands</b>", ""}
	for _, c := range r.Commands() {
		lock := ""
		switch c.Access {
		case AccessAdmin:
			lock = "🛡 "
		case AccessOwner:
			lock = "🔒 "
		}
		lines = append(lines, "• "+lock+"<code>"+html.EscapeString(c.Usage)+"</code> · "+html.EscapeString(c.Description))
	}
	lines = append(lines, "", "🛡 chat admins · 🔒 bot owner", "Supported: youtube.com/channel/…, youtube.com/@handle, instagram.com/<i>user</i>")
	return strings.Join(lines, "\n")
}
