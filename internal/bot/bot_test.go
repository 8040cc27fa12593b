package bot

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/warden-bot/internal/config"
	"github.com/keshon/warden-bot/internal/store"
	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	testAdminID = "100000000000000001"
	testUserID  = "200000000000000002"
	testBotID   = "300000000000000003"
	testGuildID = "400000000000000004"

	testRoleEmojiID = "900000000000000009"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeAPI records every Discord call. Sent messages become fetchable.
type fakeAPI struct {
	mu sync.Mutex

	messages map[string]*discordgo.Message
	history  []*discordgo.Message
	nextID   int

	sent             []*discordgo.Message
	sentData         []*discordgo.MessageSend
	edits            []*discordgo.MessageEdit
	deleted          []string
	bulkDeleted      [][]string
	reactionsAdded   []string // message id + ":" + emoji
	reactionsRemoved []string // message id + ":" + user id
	rolesAdded       []string // user id + ":" + role id
	rolesRemoved     []string
	statusUpdates    []discordgo.UpdateStatusData
	historyFetches   int

	deleteErr map[string]error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{messages: map[string]*discordgo.Message{}, deleteErr: map[string]error{}}
}

func restErr(code int) error {
	return &discordgo.RESTError{
		Response: &http.Response{Status: "404 Not Found"},
		Message:  &discordgo.APIErrorMessage{Code: code, Message: "test"},
	}
}

func (f *fakeAPI) ChannelMessage(channelID, messageID string) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.messages[messageID]; ok {
		return m, nil
	}
	return nil, restErr(discordgo.ErrCodeUnknownMessage)
}

func (f *fakeAPI) ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string) ([]*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyFetches++
	if len(f.history) > limit {
		return f.history[:limit], nil
	}
	return f.history, nil
}

func (f *fakeAPI) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	m := &discordgo.Message{
		ID:        fmt.Sprintf("sent-%d", f.nextID),
		ChannelID: channelID,
		Content:   data.Content,
		Embeds:    data.Embeds,
		Author:    &discordgo.User{ID: testBotID, Bot: true},
	}
	f.messages[m.ID] = m
	f.sent = append(f.sent, m)
	f.sentData = append(f.sentData, data)
	return m, nil
}

func (f *fakeAPI) ChannelMessageEditComplex(e *discordgo.MessageEdit) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, e)
	m, ok := f.messages[e.ID]
	if !ok {
		return nil, restErr(discordgo.ErrCodeUnknownMessage)
	}
	if e.Content != nil {
		m.Content = *e.Content
	}
	return m, nil
}

func (f *fakeAPI) ChannelMessageDelete(channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deleteErr[messageID]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, messageID)
	delete(f.messages, messageID)
	return nil
}

func (f *fakeAPI) ChannelMessagesBulkDelete(channelID string, messages []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulkDeleted = append(f.bulkDeleted, messages)
	return nil
}

func (f *fakeAPI) MessageReactionAdd(channelID, messageID, emojiID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactionsAdded = append(f.reactionsAdded, messageID+":"+emojiID)
	return nil
}

func (f *fakeAPI) MessageReactionRemove(channelID, messageID, emojiID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactionsRemoved = append(f.reactionsRemoved, messageID+":"+userID)
	return nil
}

func (f *fakeAPI) GuildMember(guildID, userID string) (*discordgo.Member, error) {
	return &discordgo.Member{GuildID: guildID, User: &discordgo.User{ID: userID, Username: "user-" + userID[:3]}}, nil
}

func (f *fakeAPI) GuildMemberRoleAdd(guildID, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rolesAdded = append(f.rolesAdded, userID+":"+roleID)
	return nil
}

func (f *fakeAPI) GuildMemberRoleRemove(guildID, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rolesRemoved = append(f.rolesRemoved, userID+":"+roleID)
	return nil
}

func (f *fakeAPI) User(userID string) (*discordgo.User, error) {
	return &discordgo.User{ID: userID, Username: "user-" + userID[:3]}, nil
}

func (f *fakeAPI) UpdateStatusComplex(usd discordgo.UpdateStatusData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusUpdates = append(f.statusUpdates, usd)
	return nil
}

// lastSent returns the newest message sent to channelID.
func (f *fakeAPI) lastSent(channelID string) *discordgo.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].ChannelID == channelID {
			return f.sent[i]
		}
	}
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Prefix:         "!",
		AdminIDs:       []string{testAdminID},
		DebugChannelID: "debug",
		ClipChannelID:  "clips",
		SweepInterval:  time.Hour,
		ReactionRoles: config.ReactionRoles{
			ChannelID: "roles",
			MessageID: "roles-msg",
			Title:     "Roles",
			Roles: []config.RoleReaction{
				{Name: "game", EmojiID: testRoleEmojiID, RoleID: "role-game", Label: "Game news"},
				{Name: "controller", EmojiID: "🎮", RoleID: "role-pad"},
			},
		},
		SwearWords: []string{"Darn"},
	}
}

// newTestBot returns a bot on an in-memory database with a fixed clock that
// the caller can move through *now.
func newTestBot(t *testing.T) (*Bot, *fakeAPI, *store.Store, *time.Time) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		t.Skipf("Skipping: database requires CGO/sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := store.Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	st := store.New(db)
	api := newFakeAPI()
	b := NewBot(st, api, testConfig())
	now := base
	b.now = func() time.Time { return now }
	b.pick = func(int) int { return 0 }
	b.setSelfID(testBotID)
	t.Cleanup(b.Stop)
	return b, api, st, &now
}

func newMessage(id, channelID, authorID, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        id,
		ChannelID: channelID,
		GuildID:   testGuildID,
		Content:   content,
		Author:    &discordgo.User{ID: authorID, Username: "user-" + authorID[:3]},
		Timestamp: base,
	}}
}

func TestSweep(t *testing.T) {
	b, api, st, _ := newTestBot(t)
	ctx := context.Background()

	schedule := func(msgID string, at time.Time, logID string) {
		t.Helper()
		if _, err := st.ScheduleDeletion(ctx, "c1", msgID, at, logID); err != nil {
			t.Fatalf("ScheduleDeletion(%s) error = %v", msgID, err)
		}
	}
	schedule("ok", base.Add(-time.Minute), "log-ok")
	schedule("gone", base.Add(-time.Minute), "")
	schedule("hidden", base.Add(-time.Minute), "")
	schedule("broken", base.Add(-time.Minute), "")
	schedule("later", base.Add(time.Minute), "")

	api.deleteErr["gone"] = restErr(discordgo.ErrCodeUnknownMessage)
	api.deleteErr["hidden"] = restErr(discordgo.ErrCodeMissingAccess)
	api.deleteErr["broken"] = errors.New("connection reset")

	res, err := b.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if res.Done != 2 || res.Errored != 2 {
		t.Errorf("Sweep() = %+v, want 2 done and 2 errored", res)
	}

	counts, err := st.DeletionCounts(ctx)
	if err != nil {
		t.Fatalf("DeletionCounts() error = %v", err)
	}
	if counts[store.DeletionRemoved] != 2 || counts[store.DeletionErrored] != 2 || counts[store.DeletionPending] != 1 {
		t.Errorf("DeletionCounts() = %v", counts)
	}

	hidden, err := st.DeletionByMessageID(ctx, "hidden")
	if err != nil {
		t.Fatalf("DeletionByMessageID() error = %v", err)
	}
	if hidden.ErrorLog != "Channel inaccessible" {
		t.Errorf("ErrorLog = %q, want %q", hidden.ErrorLog, "Channel inaccessible")
	}
	broken, _ := st.DeletionByMessageID(ctx, "broken")
	if broken == nil || !strings.Contains(broken.ErrorLog, "connection reset") {
		t.Errorf("broken row = %+v, want the delete error recorded", broken)
	}

	want := map[string]bool{"ok": true, "log-ok": true}
	for _, id := range api.deleted {
		delete(want, id)
	}
	if len(want) != 0 {
		t.Errorf("deleted = %v, missing %v", api.deleted, want)
	}
	if n, _ := st.UserRemovals(ctx, testBotID); n != 1 {
		t.Errorf("UserRemovals(bot) = %d, want 1", n)
	}

	// errored rows are not retried
	res, err = b.Sweep(ctx)
	if err != nil {
		t.Fatalf("second Sweep() error = %v", err)
	}
	if res.Done != 0 || res.Errored != 0 {
		t.Errorf("second Sweep() = %+v, want nothing", res)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	b, _, _, _ := newTestBot(t)
	b.StartSweeper()
	b.StartSweeper()
	b.Stop()
	b.Stop()
}

func TestParseCommand(t *testing.T) {
	b, _, _, _ := newTestBot(t)
	tests := []struct {
		name     string
		content  string
		wantOK   bool
		wantName string
		wantRest string
	}{
		{name: "prefix", content: "!stat 123", wantOK: true, wantName: "stat", wantRest: "123"},
		{name: "upper case", content: "!MovieAdd The Thing", wantOK: true, wantName: "movieadd", wantRest: "The Thing"},
		{name: "mention", content: "<@" + testBotID + "> help", wantOK: true, wantName: "help"},
		{name: "nick mention", content: "<@!" + testBotID + "> roles", wantOK: true, wantName: "roles"},
		{name: "plain text", content: "hello there", wantOK: false},
		{name: "bare prefix", content: "!", wantOK: false},
		{name: "other mention", content: "<@" + testUserID + "> help", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := b.parseCommand(&discordgo.Message{Content: tt.content})
			if ok != tt.wantOK {
				t.Fatalf("parseCommand(%q) ok = %v, want %v", tt.content, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if r.name != tt.wantName || r.rest != tt.wantRest {
				t.Errorf("parseCommand(%q) = %q/%q, want %q/%q", tt.content, r.name, r.rest, tt.wantName, tt.wantRest)
			}
		})
	}
}

func TestParseUserRef(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: testUserID, want: testUserID, ok: true},
		{in: "<@" + testUserID + ">", want: testUserID, ok: true},
		{in: "<@!" + testUserID + ">", want: testUserID, ok: true},
		{in: "12345", ok: false},
		{in: "@someone", ok: false},
	}
	for _, tt := range tests {
		got, ok := parseUserRef(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseUserRef(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestAdminOnlyCommandsRejectOthers(t *testing.T) {
	b, api, st, _ := newTestBot(t)
	ctx := context.Background()

	b.MessageCreate(nil, newMessage("cmd-1", "general", testUserID, "!remove 5"))
	if api.historyFetches != 0 {
		t.Errorf("non-admin remove fetched history %d times", api.historyFetches)
	}
	reply := api.lastSent("general")
	if reply == nil || reply.Content != adminOnlyReply {
		t.Fatalf("reply = %+v, want %q", reply, adminOnlyReply)
	}
	// the rejected command and its reply are both cleaned up later
	due, err := st.OverdueDeletions(ctx, base.Add(shortTTL))
	if err != nil {
		t.Fatalf("OverdueDeletions() error = %v", err)
	}
	if len(due) != 2 {
		t.Errorf("scheduled deletions = %d, want 2", len(due))
	}

	for _, name := range []string{"watched 1", "serialadd \"X\" 1", "user " + testUserID, "timer 1m", "botstatus idle", "swear heck"} {
		before := len(api.sent)
		b.MessageCreate(nil, newMessage("cmd-x", "general", testUserID, "!"+name))
		if len(api.sent) != before+1 || api.sent[len(api.sent)-1].Content != adminOnlyReply {
			t.Errorf("!%s from non-admin was not rejected", name)
		}
	}
	if len(api.statusUpdates) != 0 {
		t.Errorf("non-admin changed presence: %v", api.statusUpdates)
	}
}

func TestRemoveSplitsByAge(t *testing.T) {
	b, api, st, _ := newTestBot(t)
	api.history = []*discordgo.Message{
		{ID: "r1", Timestamp: base.Add(-time.Hour)},
		{ID: "r2", Timestamp: base.Add(-2 * time.Hour)},
		{ID: "old", Timestamp: base.Add(-30 * 24 * time.Hour)},
	}

	b.MessageCreate(nil, newMessage("cmd-rm", "general", testAdminID, "!remove 3"))

	if len(api.bulkDeleted) != 1 || strings.Join(api.bulkDeleted[0], ",") != "r1,r2" {
		t.Errorf("bulk deletes = %v, want [[r1 r2]]", api.bulkDeleted)
	}
	got := strings.Join(api.deleted, ",")
	if got != "old,cmd-rm" {
		t.Errorf("single deletes = %q, want %q", got, "old,cmd-rm")
	}
	if n, _ := st.UserRemovals(context.Background(), testAdminID); n != 4 {
		t.Errorf("UserRemovals(admin) = %d, want 4", n)
	}
	if notice := api.lastSent("general"); notice == nil || notice.Content != "Messages removed ✅" {
		t.Errorf("notice = %+v", notice)
	}
}

func TestRemoveRejectsBadCount(t *testing.T) {
	b, api, _, _ := newTestBot(t)
	for _, c := range []string{"!remove", "!remove 0", "!remove 101", "!remove many"} {
		b.MessageCreate(nil, newMessage("cmd", "general", testAdminID, c))
	}
	if api.historyFetches != 0 {
		t.Errorf("history fetched %d times for invalid counts", api.historyFetches)
	}
}

func TestMessagesAreTracked(t *testing.T) {
	b, _, st, _ := newTestBot(t)
	ctx := context.Background()

	b.MessageCreate(nil, newMessage("m1", "general", testUserID, "well darn, that is DARN annoying"))
	b.MessageCreate(nil, newMessage("m2", "general", testUserID, "ok"))
	// commands are not counted as messages
	b.MessageCreate(nil, newMessage("m3", "general", testUserID, "!help"))

	st1, err := st.UserStats(ctx, testUserID)
	if err != nil {
		t.Fatalf("UserStats() error = %v", err)
	}
	if st1.TotalMessages != 2 || st1.TotalWords != 7 || st1.TotalSwears != 2 {
		t.Errorf("stats = %+v, want 2 messages, 7 words, 2 swears", st1)
	}

	b.MessageUpdate(nil, &discordgo.MessageUpdate{
		Message:      &discordgo.Message{ID: "m2", Content: "ok darn", Author: &discordgo.User{ID: testUserID}},
		BeforeUpdate: &discordgo.Message{ID: "m2", Content: "ok", Author: &discordgo.User{ID: testUserID}},
	})
	b.MessageDelete(nil, &discordgo.MessageDelete{
		Message:      &discordgo.Message{ID: "m1", ChannelID: "general"},
		BeforeDelete: &discordgo.Message{ID: "m1", Author: &discordgo.User{ID: testUserID}},
	})
	st2, _ := st.UserStats(ctx, testUserID)
	if st2.MessagesEdited != 1 || st2.MessagesRemoved != 1 || st2.TotalSwears != 3 {
		t.Errorf("stats = %+v, want 1 edit, 1 removal, 3 swears", st2)
	}
}

func TestCountSwears(t *testing.T) {
	swears := map[string]bool{"darn": true, "łajza": true}
	tests := []struct {
		content string
		want    int
	}{
		{content: "", want: 0},
		{content: "Darn!", want: 1},
		{content: "darn darn, DARN.", want: 3},
		{content: "ty łajzo łajza", want: 1},
		{content: "darnation", want: 0},
	}
	for _, tt := range tests {
		if got := countSwears(tt.content, swears); got != tt.want {
			t.Errorf("countSwears(%q) = %d, want %d", tt.content, got, tt.want)
		}
	}
	if got := countWords("  one two\tthree\n"); got != 3 {
		t.Errorf("countWords() = %d, want 3", got)
	}
}

func TestReactionCounters(t *testing.T) {
	b, api, st, _ := newTestBot(t)
	ctx := context.Background()
	api.messages["post"] = &discordgo.Message{ID: "post", ChannelID: "general", Author: &discordgo.User{ID: testAdminID}}

	r := &discordgo.MessageReaction{UserID: testUserID, MessageID: "post", ChannelID: "general", GuildID: testGuildID, Emoji: discordgo.Emoji{Name: "👍"}}
	b.MessageReactionAdd(nil, &discordgo.MessageReactionAdd{MessageReaction: r})
	b.MessageReactionAdd(nil, &discordgo.MessageReactionAdd{MessageReaction: r})
	b.MessageReactionRemove(nil, &discordgo.MessageReactionRemove{MessageReaction: r})

	giver, err := st.UserStats(ctx, testUserID)
	if err != nil {
		t.Fatalf("UserStats(giver) error = %v", err)
	}
	author, err := st.UserStats(ctx, testAdminID)
	if err != nil {
		t.Fatalf("UserStats(author) error = %v", err)
	}
	if giver.ReactionsGiven != 1 || author.ReactionsReceived != 1 {
		t.Errorf("given = %d, received = %d, want 1 and 1", giver.ReactionsGiven, author.ReactionsReceived)
	}

	// reactions from bots are ignored
	bot := &discordgo.MessageReactionAdd{
		MessageReaction: &discordgo.MessageReaction{UserID: "500000000000000005", MessageID: "post", ChannelID: "general"},
		Member:          &discordgo.Member{User: &discordgo.User{ID: "500000000000000005", Bot: true}},
	}
	b.MessageReactionAdd(nil, bot)
	if _, err := st.UserStats(ctx, "500000000000000005"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("bot reaction was counted: %v", err)
	}
}

func TestVoiceTime(t *testing.T) {
	b, _, st, now := newTestBot(t)
	voice := func(channelID string, streaming bool) {
		b.VoiceStateUpdate(nil, &discordgo.VoiceStateUpdate{VoiceState: &discordgo.VoiceState{
			GuildID: testGuildID, UserID: testUserID, ChannelID: channelID, SelfStream: streaming,
		}})
	}

	voice("voice", false)
	*now = base.Add(30 * time.Second)
	voice("voice", true)
	*now = base.Add(90 * time.Second)
	voice("", false)

	got, err := st.UserStats(context.Background(), testUserID)
	if err != nil {
		t.Fatalf("UserStats() error = %v", err)
	}
	if got.VoiceSeconds != 90 || got.StreamingSeconds != 60 {
		t.Errorf("voice = %ds, streaming = %ds, want 90 and 60", got.VoiceSeconds, got.StreamingSeconds)
	}
}
