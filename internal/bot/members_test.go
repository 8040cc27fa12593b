package bot

import (
	"context"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/warden-bot/internal/store"
	"github.com/pkg/errors"
)

func testMember(userID string, roles ...string) *discordgo.Member {
	return &discordgo.Member{GuildID: testGuildID, User: &discordgo.User{ID: userID}, Roles: roles}
}

func TestMemberLifecycle(t *testing.T) {
	b, api, st, _ := newTestBot(t)
	ctx := context.Background()

	b.GuildMemberAdd(nil, &discordgo.GuildMemberAdd{Member: testMember(testUserID)})
	rec, err := st.MemberByID(ctx, testUserID)
	if err != nil {
		t.Fatalf("MemberByID() error = %v", err)
	}
	if rec.Connections != 1 || !rec.FirstJoinDate.Equal(base) {
		t.Errorf("new member = %+v", rec)
	}

	b.GuildMemberUpdate(nil, &discordgo.GuildMemberUpdate{Member: testMember(testUserID, testGuildID, "r1", "r2")})
	// same roles in another order are not saved again
	b.GuildMemberUpdate(nil, &discordgo.GuildMemberUpdate{
		Member:       testMember(testUserID, "r2", "r1"),
		BeforeUpdate: testMember(testUserID, "r1", "r2"),
	})

	// the leave event carries no roles, so the saved ones stay
	b.GuildMemberRemove(nil, &discordgo.GuildMemberRemove{Member: testMember(testUserID)})
	rec, _ = st.MemberByID(ctx, testUserID)
	if rec.Kicks != 1 || strings.Join(rec.Roles, ",") != "r1,r2" {
		t.Errorf("after leave = %+v", rec)
	}

	b.GuildMemberAdd(nil, &discordgo.GuildMemberAdd{Member: testMember(testUserID)})
	rec, _ = st.MemberByID(ctx, testUserID)
	if rec.Connections != 2 {
		t.Errorf("Connections = %d, want 2", rec.Connections)
	}
	want := testUserID + ":r1," + testUserID + ":r2"
	if got := strings.Join(api.rolesAdded, ","); got != want {
		t.Errorf("restored roles = %s, want %s", got, want)
	}

	b.GuildBanAdd(nil, &discordgo.GuildBanAdd{User: &discordgo.User{ID: testUserID}, GuildID: testGuildID})
	rec, _ = st.MemberByID(ctx, testUserID)
	if rec.Bans != 1 {
		t.Errorf("Bans = %d, want 1", rec.Bans)
	}
}

func TestMemberEventsIgnoreBotsAndStrangers(t *testing.T) {
	b, _, st, _ := newTestBot(t)
	ctx := context.Background()

	bot := testMember(testBotID)
	bot.User.Bot = true
	b.GuildMemberAdd(nil, &discordgo.GuildMemberAdd{Member: bot})
	if _, err := st.MemberByID(ctx, testBotID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("bot member recorded: %v", err)
	}

	b.GuildMemberRemove(nil, &discordgo.GuildMemberRemove{Member: testMember(testUserID, "r1")})
	b.GuildBanAdd(nil, &discordgo.GuildBanAdd{User: &discordgo.User{ID: testUserID}, GuildID: testGuildID})
	if _, err := st.MemberByID(ctx, testUserID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown member recorded on leave or ban: %v", err)
	}
}

func TestUserCommand(t *testing.T) {
	b, api, _, _ := newTestBot(t)
	b.GuildMemberAdd(nil, &discordgo.GuildMemberAdd{Member: testMember(testUserID)})
	b.GuildMemberUpdate(nil, &discordgo.GuildMemberUpdate{Member: testMember(testUserID, "r1")})

	b.MessageCreate(nil, newMessage("cmd-user", "general", testAdminID, "!user <@"+testUserID+">"))

	reply := api.lastSent("general")
	if reply == nil || len(reply.Embeds) != 1 {
		t.Fatalf("reply = %+v, want an embed", reply)
	}
	desc := reply.Embeds[0].Description
	for _, want := range []string{"**Connections**: 1", "**Inviter**: Unknown", "**Roles**: <@&r1>", "**First Join Date**: 2024-03-01"} {
		if !strings.Contains(desc, want) {
			t.Errorf("user embed missing %q:\n%s", want, desc)
		}
	}
}
