package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/keshon/warden-bot/internal/store"
	"github.com/pkg/errors"
)

func TestSeriesReactionAdvances(t *testing.T) {
	b, api, st, _ := newTestBot(t)
	ctx := context.Background()

	b.MessageCreate(nil, newMessage("cmd-s", "general", testAdminID, "!serialadd \"Dark\" 2,1"))
	series, err := st.ActiveSeries(ctx)
	if err != nil || len(series) != 1 {
		t.Fatalf("ActiveSeries() = %v, %v", series, err)
	}
	id := series[0].ID
	if log := api.lastSent("debug"); log == nil || log.Content != "Admin added \"Dark\" with seasons: 2, 1" {
		t.Errorf("debug log = %+v", log)
	}

	b.MessageCreate(nil, newMessage("cmd-show", "general", testUserID, fmt.Sprintf("!series %d", id)))
	embedMsg := api.lastSent("general")
	if embedMsg == nil || len(embedMsg.Embeds) != 1 || embedMsg.Embeds[0].Description != "Current episode: Season 1, Episode 1" {
		t.Fatalf("series embed = %+v", embedMsg)
	}

	// non-admin ✅ changes nothing
	b.MessageReactionAdd(nil, promptReaction(testUserID, embedMsg, approveEmoji))
	if next, err := st.NextUnwatchedEpisode(ctx, id); err != nil || next.SeasonNumber != 1 || next.EpisodeNumber != 1 {
		t.Errorf("non-admin advanced the series")
	}

	for i := 0; i < 3; i++ {
		b.MessageReactionAdd(nil, promptReaction(testAdminID, embedMsg, approveEmoji))
	}
	if _, err := st.NextUnwatchedEpisode(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("NextUnwatchedEpisode() error = %v, want everything watched", err)
	}
	edit := api.edits[len(api.edits)-1]
	if got := (*edit.Embeds)[0].Description; got != "All episodes have been watched." {
		t.Errorf("final embed = %q", got)
	}
	b.seriesMu.Lock()
	_, tracked := b.seriesEmbeds[embedMsg.ID]
	b.seriesMu.Unlock()
	if tracked {
		t.Errorf("finished series embed still tracked")
	}
}

func TestParseSeasonCounts(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: " 7,13,13", want: "7,13,13", ok: true},
		{in: "7, 13 ,13", want: "7,13,13", ok: true},
		{in: "", ok: false},
		{in: "7,x", ok: false},
	}
	for _, tt := range tests {
		got, ok := parseSeasonCounts(tt.in)
		parts := make([]string, len(got))
		for i, n := range got {
			parts[i] = strconv.Itoa(n)
		}
		if ok != tt.ok || strings.Join(parts, ",") != tt.want {
			t.Errorf("parseSeasonCounts(%q) = %v, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
