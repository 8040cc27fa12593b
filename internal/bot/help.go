package bot

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) cmdHelp(r *request) {
	p := b.cfg.Prefix
	regular := []string{
		"`" + p + "movieadd <name>`: Suggest a movie to add to the list.",
		"`" + p + "movielist`: Show all movies with their IDs.",
		"`" + p + "rmovie`: Pick a random movie for approval.",
		"`" + p + "moviehelp`: Show help for movie commands.",
		"`" + p + "serieslist`, `" + p + "series <id>`: Follow the series we watch.",
		"`" + p + "serialhelp`: Show help for series commands.",
		"`" + p + "stat [user]`: Show user statistics (yours if no user specified).",
		"`" + p + "allstat`: Show aggregated statistics for all users.",
		"`" + p + "game <userID> or " + p + "game @user`: Show gaming activity stats for a user.",
		"`" + p + "roles`: Show the self-assignable roles.",
		"`" + p + "help`: Show this help message.",
	}
	admin := []string{
		"`" + p + "watched <id>`: Mark a movie as watched.",
		"`" + p + "removemovie <id>`: Remove a movie from the random pool.",
		"`" + p + "editmovie <id> <newTitle>`: Edit a movie's title.",
		"`" + p + "remove <count>`: Remove 1-100 messages above the command.",
		"`" + p + "timer <duration> [message]`: Set a countdown timer, e.g. `" + p + "timer 1h 30m`.",
		"`" + p + "user <userID> or " + p + "user @user`: Show membership history.",
		"`" + p + "swear <word>`: Add a swear word to the list.",
		"`" + p + "galias \"standard\" \"alias\"`: Map a game name to its canonical name.",
		"`" + p + "bothelp`: Show bot presence commands.",
	}
	b.replyEmbedTransient(r.msg, helpTTL, &discordgo.MessageEmbed{
		Title:       "Bot Commands",
		Description: "A list of all available commands. Admin commands are marked accordingly.",
		Color:       embedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Regular Commands", Value: strings.Join(regular, "\n")},
			{Name: "Admin Commands", Value: strings.Join(admin, "\n")},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Messages will be deleted after 2 minutes."},
	})
}
