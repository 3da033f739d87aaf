package router

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growthbot/internal/social"
	kit "growthbot/internal/transport"
	logx "growthbot/pkg/logx"
)

type sent struct {
	to   kit.ChatTarget
	text string
}

type fakeAdapter struct {
	mu     sync.Mutex
	sent   []sent
	admins map[int64]map[int64]bool
	menu   []kit.BotCommand
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{to: to, text: text})
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

func (f *fakeAdapter) IsChatAdmin(_ context.Context, chatID, userID int64) (bool, error) {
	return f.admins[chatID][userID], nil
}

func (f *fakeAdapter) UpdateMenuCommands(_ context.Context, cmds []kit.BotCommand) error {
	f.menu = cmds
	return nil
}

func (f *fakeAdapter) last(t *testing.T) sent {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

type addCall struct{ group, url, dest string }

type fakeTracker struct {
	adds    []addCall
	addErr  error
	removed []int
	groups  map[string][]social.Account
	dropped []string
}

func (f *fakeTracker) Add(_ context.Context, group, rawURL, dest string) (social.Account, error) {
	f.adds = append(f.adds, addCall{group, rawURL, dest})
	if f.addErr != nil {
		return social.Account{}, f.addErr
	}
	return social.Account{Platform: social.YouTube, Name: "Nexus <Esports>", LastCount: 12345, Destination: dest}, nil
}

func (f *fakeTracker) Remove(_ context.Context, group string, index int) (social.Account, error) {
	accs := f.groups[group]
	if index > len(accs) {
		return social.Account{}, &social.ValidationError{Field: "index", Reason: "out of range"}
	}
	f.removed = append(f.removed, index)
	return accs[index-1], nil
}

func (f *fakeTracker) List(group string) []social.Account { return f.groups[group] }

func (f *fakeTracker) DropGroup(_ context.Context, group string) int {
	f.dropped = append(f.dropped, group)
	return len(f.groups[group])
}

func (f *fakeTracker) Enabled(p social.Platform) bool { return p != social.YouTube }

type fakeTrigger struct{ calls int }

func (f *fakeTrigger) RunNow() bool { f.calls++; return f.calls == 1 }

const (
	ownerID = int64(1)
	adminID = int64(2)
	userID  = int64(3)
	groupID = int64(-1001)
)

func newFixture() (*Router, *fakeAdapter, *fakeTracker, *fakeTrigger) {
	ad := &fakeAdapter{admins: map[int64]map[int64]bool{groupID: {adminID: true}}}
	tr := &fakeTracker{groups: map[string][]social.Account{}}
	trig := &fakeTrigger{}
	r := New(Options{Adapter: ad, Tracker: tr, Trigger: trig, Owners: []int64{ownerID}, Log: logx.Nop()})
	return r, ad, tr, trig
}

// send routes one message and runs the queued job synchronously.
func send(t *testing.T, r *Router, from int64, text string) {
	t.Helper()
	ctx := context.Background()
	r.route(ctx, kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{
		ChatID: groupID, ThreadID: 7, FromID: from, Text: text, IsGroup: true,
	}})
	select {
	case job := <-r.jobs:
		job(ctx)
	default:
		t.Fatalf("no job queued for %q", text)
	}
}

func TestAddDefaultsDestinationToCurrentThread(t *testing.T) {
	r, ad, tr, _ := newFixture()
	send(t, r, adminID, "/track_add https://www.youtube.com/@nexus")

	require.Len(t, tr.adds, 1)
	assert.Equal(t, addCall{"-1001", "https://www.youtube.com/@nexus", "-1001/7"}, tr.adds[0])
	reply := ad.last(t)
	assert.Equal(t, kit.ChatTarget{ChatID: groupID, ThreadID: 7}, reply.to)
	assert.Contains(t, reply.text, "Nexus &lt;Esports&gt;")
	assert.Contains(t, reply.text, "12,345")
}

func TestAddExplicitDestinationRequiresAdminThere(t *testing.T) {
	r, ad, tr, _ := newFixture()
	send(t, r, adminID, "/track_add https://instagram.com/nexus -2002")
	assert.Empty(t, tr.adds)
	assert.Contains(t, ad.last(t).text, "destination chat")

	send(t, r, ownerID, "/track_add https://instagram.com/nexus -2002/3")
	require.Len(t, tr.adds, 1)
	assert.Equal(t, "-2002/3", tr.adds[0].dest)
}

func TestAddRejectsBadDestination(t *testing.T) {
	r, ad, tr, _ := newFixture()
	send(t, r, adminID, "/track_add https://instagram.com/nexus general")
	assert.Empty(t, tr.adds)
	assert.Contains(t, ad.last(t).text, "Invalid destination")
}

func TestAddUsage(t *testing.T) {
	r, ad, tr, _ := newFixture()
	send(t, r, adminID, "/track_add")
	assert.Empty(t, tr.adds)
	assert.Contains(t, ad.last(t).text, "Usage")
}

func TestAddErrorReplies(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&social.ValidationError{Field: "url", Reason: "unsupported profile URL x"}, "unsupported profile URL x"},
		{social.ErrPlatformDisabled, "disabled"},
		{social.NewFetchError(social.YouTube, social.ErrNotFound, errors.New("empty")), "not found"},
		{social.NewFetchError(social.Instagram, social.ErrParse, errors.New("no tag")), "follower count"},
		{social.NewFetchError(social.Instagram, social.ErrProvider, errors.New("503")), "Could not reach"},
	}
	for _, tt := range tests {
		r, ad, tr, _ := newFixture()
		tr.addErr = tt.err
		send(t, r, adminID, "/track_add https://instagram.com/x")
		assert.Contains(t, ad.last(t).text, tt.want)
	}
}

func TestNonAdminIsDenied(t *testing.T) {
	r, ad, tr, _ := newFixture()
	send(t, r, userID, "/track_add https://instagram.com/nexus")
	assert.Empty(t, tr.adds)
	assert.Contains(t, ad.last(t).text, "administrators")
}

func TestListFormatsAccounts(t *testing.T) {
	r, ad, tr, _ := newFixture()
	tr.groups["-1001"] = []social.Account{
		{Platform: social.YouTube, Name: "Nexus", URL: "https://www.youtube.com/channel/UC1", LastCount: 1500, Destination: "-1001"},
		{Platform: social.Instagram, Name: "nexus.ig", URL: "https://www.instagram.com/nexus.ig/", LastCount: 45000, Destination: "-1001/7"},
	}
	send(t, r, adminID, "/track_list")
	text := ad.last(t).text
	assert.Contains(t, text, "1. Nexus")
	assert.Contains(t, text, "2. nexus.ig")
	assert.Contains(t, text, "1,500")
	assert.Contains(t, text, "45,000")
	assert.Contains(t, text, "paused")
}

func TestListEmpty(t *testing.T) {
	r, ad, _, _ := newFixture()
	send(t, r, ownerID, "/track_list")
	assert.Contains(t, ad.last(t).text, "No active trackers")
}

func TestRemove(t *testing.T) {
	r, ad, tr, _ := newFixture()
	tr.groups["-1001"] = []social.Account{{Name: "A"}, {Name: "B"}}

	send(t, r, adminID, "/track_remove 2")
	assert.Equal(t, []int{2}, tr.removed)
	assert.Contains(t, ad.last(t).text, "<b>B</b>")

	send(t, r, adminID, "/track_remove 9")
	assert.Contains(t, ad.last(t).text, "valid tracker number")

	send(t, r, adminID, "/track_remove zero")
	assert.Contains(t, ad.last(t).text, "valid tracker number")
	assert.Equal(t, []int{2}, tr.removed)
}

func TestRefreshIsOwnerOnly(t *testing.T) {
	r, ad, _, trig := newFixture()
	send(t, r, adminID, "/track_refresh")
	assert.Zero(t, trig.calls)
	assert.Contains(t, ad.last(t).text, "owner")

	send(t, r, ownerID, "/track_refresh")
	assert.Contains(t, ad.last(t).text, "requested")
	send(t, r, ownerID, "/track_refresh")
	assert.Contains(t, ad.last(t).text, "already queued")
}

func TestPrivateChatUserActsAsAdmin(t *testing.T) {
	r, _, tr, _ := newFixture()
	ctx := context.Background()
	r.route(ctx, kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{
		ChatID: 555, FromID: 555, Text: "/track_add https://instagram.com/me",
	}})
	(<-r.jobs)(ctx)
	require.Len(t, tr.adds, 1)
	assert.Equal(t, addCall{"555", "https://instagram.com/me", "555"}, tr.adds[0])
}

func TestUnknownCommandsAndPlainTextAreIgnored(t *testing.T) {
	r, _, _, _ := newFixture()
	ctx := context.Background()
	for _, text := range []string{"/start", "hello"} {
		r.route(ctx, kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: groupID, Text: text}})
	}
	assert.Empty(t, r.jobs)
}

func TestBotLeftDropsGroup(t *testing.T) {
	r, _, tr, _ := newFixture()
	r.route(context.Background(), kit.Update{Kind: kit.UpdateBotLeft, Membership: &kit.Membership{ChatID: groupID}})
	assert.Equal(t, []string{"-1001"}, tr.dropped)
}

func TestHelpAndMenu(t *testing.T) {
	r, ad, _, _ := newFixture()
	send(t, r, userID, "/help")
	text := ad.last(t).text
	for _, c := range r.Commands() {
		assert.Contains(t, text, c.Name)
	}

	r.PublishMenu(context.Background())
	require.Len(t, ad.menu, len(r.Commands()))
	assert.Equal(t, "track_add", ad.menu[0].Command)
}

func TestPanicInHandlerIsRecovered(t *testing.T) {
	h := Chain(func(context.Context, *Request) error { panic("boom") }, MWPanicRecover(logx.Nop()))
	err := h(context.Background(), &Request{})
	assert.ErrorContains(t, err, "boom")
}
