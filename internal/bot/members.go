package bot

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/warden-bot/internal/store"
	"github.com/pkg/errors"
)

// memberRoles returns the member's roles without @everyone, whose id equals the guild id.
func memberRoles(m *discordgo.Member) []string {
	out := make([]string, 0, len(m.Roles))
	for _, id := range m.Roles {
		if id != m.GuildID {
			out = append(out, id)
		}
	}
	return out
}

// GuildMemberAdd records a first join or restores the saved roles of a returning member.
func (b *Bot) GuildMemberAdd(_ *discordgo.Session, e *discordgo.GuildMemberAdd) {
	if e.Member == nil || e.User == nil || e.User.Bot {
		return
	}
	userID := e.User.ID
	rec, err := b.store.MemberByID(b.ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		rec = &store.Member{UserID: userID, Connections: 1, FirstJoinDate: b.now()}
		if err := b.store.SaveMember(b.ctx, rec); err != nil {
			b.logError("saving new member failed", "user_id", userID, "error", err)
			return
		}
		b.logInfo("new member recorded", "user_id", userID)
		return
	}
	if err != nil {
		b.logError("loading member failed", "user_id", userID, "error", err)
		return
	}

	if err := b.store.IncrementMemberField(b.ctx, userID, store.FieldConnections); err != nil {
		b.logError("counting member connection failed", "user_id", userID, "error", err)
	}
	restored := 0
	for _, roleID := range rec.Roles {
		if roleID == e.GuildID {
			continue
		}
		if err := b.api.GuildMemberRoleAdd(e.GuildID, userID, roleID); err != nil {
			b.logWarn("restoring role failed", "user_id", userID, "role_id", roleID, "error", err)
			continue
		}
		restored++
	}
	b.logInfo("returning member", "user_id", userID, "connections", rec.Connections+1, "roles_restored", restored)
}

// GuildMemberRemove saves the roles of a leaving member and counts the leave as a kick.
func (b *Bot) GuildMemberRemove(_ *discordgo.Session, e *discordgo.GuildMemberRemove) {
	if e.Member == nil || e.User == nil || e.User.Bot {
		return
	}
	userID := e.User.ID
	rec, err := b.store.MemberByID(b.ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			b.logError("loading member failed", "user_id", userID, "error", err)
		}
		return
	}
	if len(e.Roles) > 0 {
		rec.Roles = memberRoles(e.Member)
	}
	rec.Kicks++
	if err := b.store.SaveMember(b.ctx, rec); err != nil {
		b.logError("saving leaving member failed", "user_id", userID, "error", err)
		return
	}
	b.logInfo("member left", "user_id", userID, "kicks", rec.Kicks)
}

// GuildBanAdd counts a ban for a known member.
func (b *Bot) GuildBanAdd(_ *discordgo.Session, e *discordgo.GuildBanAdd) {
	if e.User == nil {
		return
	}
	err := b.store.IncrementMemberField(b.ctx, e.User.ID, store.FieldBans)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		b.logError("counting ban failed", "user_id", e.User.ID, "error", err)
		return
	}
	b.logInfo("member banned", "user_id", e.User.ID)
}

// GuildMemberUpdate keeps the saved role list current.
func (b *Bot) GuildMemberUpdate(_ *discordgo.Session, e *discordgo.GuildMemberUpdate) {
	if e.Member == nil || e.User == nil || e.User.Bot {
		return
	}
	roles := memberRoles(e.Member)
	if e.BeforeUpdate != nil && sameRoles(memberRoles(e.BeforeUpdate), roles) {
		return
	}
	userID := e.User.ID
	rec, err := b.store.MemberByID(b.ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		rec = &store.Member{UserID: userID, Connections: 1, FirstJoinDate: e.JoinedAt}
		if rec.FirstJoinDate.IsZero() {
			rec.FirstJoinDate = b.now()
		}
	} else if err != nil {
		b.logError("loading member failed", "user_id", userID, "error", err)
		return
	}
	rec.Roles = roles
	if err := b.store.SaveMember(b.ctx, rec); err != nil {
		b.logError("saving member roles failed", "user_id", userID, "error", err)
	}
}

func sameRoles(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, id := range a {
		seen[id]++
	}
	for _, id := range b {
		if seen[id] == 0 {
			return false
		}
		seen[id]--
	}
	return true
}

func (b *Bot) cmdUser(r *request) {
	if len(r.args) == 0 {
		b.replyTransient(r.msg, minuteTTL, fmt.Sprintf("Please provide a user ID or mention, e.g., `%suser 123456789012345678` or `%suser @user`.", b.cfg.Prefix, b.cfg.Prefix))
		return
	}
	userID, ok := parseUserRef(r.args[0])
	if !ok {
		b.replyTransient(r.msg, minuteTTL, "Invalid user ID or mention. Use a valid ID or @user.")
		return
	}
	rec, err := b.store.MemberByID(b.ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		b.replyTransient(r.msg, minuteTTL, "User not found in the database.")
		return
	}
	if err != nil {
		b.logError("loading member failed", "user_id", userID, "error", err)
		b.replyTransient(r.msg, minuteTTL, "Could not load the user.")
		return
	}

	name := "Unknown User"
	if u, err := b.api.User(userID); err == nil {
		name = u.Username
	}
	inviter := "Unknown"
	if rec.InviterID != store.UnknownInviter && rec.InviterID != "" {
		inviter = "<@" + rec.InviterID + ">"
	}
	roles := make([]string, 0, len(rec.Roles))
	for _, id := range rec.Roles {
		roles = append(roles, "<@&"+id+">")
	}
	roleList := strings.Join(roles, ", ")
	if roleList == "" {
		roleList = "None"
	}
	b.replyEmbedTransient(r.msg, minuteTTL, &discordgo.MessageEmbed{
		Title: "User Info: " + name,
		Color: embedColor,
		Description: fmt.Sprintf("**ID**: %s\n**First Join Date**: %s\n**Connections**: %d\n**Kicks**: %d\n**Bans**: %d\n**Inviter**: %s\n**Roles**: %s",
			userID, rec.FirstJoinDate.Format("2006-01-02"), rec.Connections, rec.Kicks, rec.Bans, inviter, roleList),
	})
}
