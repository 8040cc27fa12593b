package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/warden-bot/internal/store"
)

func presence(userID string, games ...string) *discordgo.PresenceUpdate {
	acts := make([]*discordgo.Activity, 0, len(games))
	for _, g := range games {
		acts = append(acts, &discordgo.Activity{Name: g, Type: discordgo.ActivityTypeGame})
	}
	return &discordgo.PresenceUpdate{
		Presence: discordgo.Presence{User: &discordgo.User{ID: userID, Username: "player"}, Activities: acts},
		GuildID:  testGuildID,
	}
}

func TestGameSessions(t *testing.T) {
	b, api, st, now := newTestBot(t)
	ctx := context.Background()
	if err := st.AddGameAlias(ctx, "Counter-Strike 2", "CS2"); err != nil {
		t.Fatalf("AddGameAlias() error = %v", err)
	}

	b.PresenceUpdate(nil, presence(testUserID, "Dota 2™"))
	*now = base.Add(time.Hour)
	// a repeated update for the same game keeps the session open
	b.PresenceUpdate(nil, presence(testUserID, "Dota 2"))
	b.PresenceUpdate(nil, presence(testUserID, "CS2"))
	*now = base.Add(90 * time.Minute)
	b.PresenceUpdate(nil, presence(testUserID))

	totals, err := st.GameTotals(ctx, testUserID)
	if err != nil {
		t.Fatalf("GameTotals() error = %v", err)
	}
	want := []store.GameTotal{
		{Name: "Dota 2", Sessions: 1, Seconds: 3600},
		{Name: "Counter-Strike 2", Sessions: 1, Seconds: 1800},
	}
	if len(totals) != len(want) {
		t.Fatalf("GameTotals() = %+v, want %+v", totals, want)
	}
	for i := range want {
		if totals[i] != want[i] {
			t.Errorf("GameTotals()[%d] = %+v, want %+v", i, totals[i], want[i])
		}
	}

	b.MessageCreate(nil, newMessage("cmd-game", "general", testUserID, "!game "+testUserID))
	reply := api.lastSent("general")
	if reply == nil || len(reply.Embeds) != 1 {
		t.Fatalf("reply = %+v, want an embed", reply)
	}
	if got := reply.Embeds[0].Fields[0].Value; !strings.HasPrefix(got, "**Dota 2**: 1 sessions, 1h 0m") {
		t.Errorf("game stats = %q", got)
	}
}

func TestPlayingActivity(t *testing.T) {
	acts := []*discordgo.Activity{
		nil,
		{Name: "Spotify", Type: discordgo.ActivityTypeListening},
		{Name: "Factorio", Type: discordgo.ActivityTypeGame},
	}
	if got := playingActivity(acts); got != "Factorio" {
		t.Errorf("playingActivity() = %q, want Factorio", got)
	}
	if got := playingActivity(acts[:2]); got != "" {
		t.Errorf("playingActivity() = %q, want none", got)
	}
}
