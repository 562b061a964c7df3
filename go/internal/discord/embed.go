package discord

import (
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/mcdev12/racebot/go/internal/race"
)

const (
	footerText    = "SPRINT Racebot"
	embedColor    = 0xE22922
	maxFieldValue = 1024
)

// toMessageEmbed brands a race embed for posting.
func toMessageEmbed(e race.Embed, now time.Time) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       embedColor,
		Timestamp:   now.Format(time.RFC3339),
		Footer:      &discordgo.MessageEmbedFooter{Text: footerText},
	}
	for _, f := range e.Fields {
		value := f.Value
		if utf8.RuneCountInString(value) > maxFieldValue {
			value = string([]rune(value)[:maxFieldValue])
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  value,
			Inline: f.Inline,
		})
	}
	return embed
}
