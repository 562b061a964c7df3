package discord

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/mcdev12/racebot/go/internal/race"
)

func TestNextSuffix(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		want  int
	}{
		{"empty", nil, 1},
		{"contiguous", []string{"race-1", "race-2", "race-3"}, 4},
		{"gap", []string{"race-1", "race-3"}, 2},
		{"unordered", []string{"race-2", "race-1", "race-4"}, 3},
		{"ignores others", []string{"general", "race-x", "racers-1", "race-0"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextSuffix(tt.names, "race"); got != tt.want {
				t.Errorf("nextSuffix(%v) = %d, want %d", tt.names, got, tt.want)
			}
		})
	}
}

func TestIsNumbered(t *testing.T) {
	for name, want := range map[string]bool{
		"race-1":   true,
		"race-12":  true,
		"race-":    false,
		"race":     false,
		"lobby-1":  false,
		"race-1-a": false,
	} {
		if got := isNumbered(name, "race"); got != want {
			t.Errorf("isNumbered(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestToMessageEmbed(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	long := strings.Repeat("x", 1500)

	got := toMessageEmbed(race.Embed{
		Title:       "Race Started",
		Description: "GO!",
		Fields: []race.Field{
			{Name: "Racing", Value: long, Inline: true},
		},
	}, now)

	if got.Color != embedColor || got.Footer == nil || got.Footer.Text != "SPRINT Racebot" {
		t.Errorf("branding = %+v", got)
	}
	if got.Timestamp != "2024-05-01T12:00:00Z" {
		t.Errorf("timestamp = %q", got.Timestamp)
	}
	if len(got.Fields) != 1 || len(got.Fields[0].Value) != 1024 || !got.Fields[0].Inline {
		t.Errorf("field = %+v", got.Fields)
	}
}

func TestToMessageEmbedKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"accented", strings.Repeat("é", 1500), 1024},
		{"emoji", strings.Repeat("🏁", 1100), 1024},
		{"mixed under limit", strings.Repeat("aé", 500), 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toMessageEmbed(race.Embed{
				Title:  "Racers",
				Fields: []race.Field{{Name: "Entered", Value: tt.value}},
			}, time.Unix(0, 0))

			value := got.Fields[0].Value
			if !utf8.ValidString(value) {
				t.Fatal("field value is not valid UTF-8")
			}
			if n := utf8.RuneCountInString(value); n != tt.want {
				t.Errorf("runes = %d, want %d", n, tt.want)
			}
			if !strings.HasPrefix(tt.value, value) {
				t.Error("field value is not a prefix of the input")
			}
		})
	}
}

func TestFindCategoryAndRole(t *testing.T) {
	channels := []*discordgo.Channel{
		{ID: "1", Name: "Race Rooms", Type: discordgo.ChannelTypeGuildText},
		{ID: "2", Name: "Race Rooms", Type: discordgo.ChannelTypeGuildCategory},
	}
	if got := findCategory(channels, "Race Rooms"); got != "2" {
		t.Errorf("findCategory = %q", got)
	}
	if got := findCategory(channels, "Missing"); got != "" {
		t.Errorf("findCategory(missing) = %q", got)
	}

	roles := []*discordgo.Role{{ID: "9", Name: "SPRINT Staff"}}
	if got := findRole(roles, "SPRINT Staff"); got != "9" {
		t.Errorf("findRole = %q", got)
	}
}

func TestMemberName(t *testing.T) {
	user := &discordgo.User{Username: "runner", GlobalName: "Runner"}

	if got := memberName(user, &discordgo.Member{Nick: "Speedy"}); got != "Speedy" {
		t.Errorf("nick = %q", got)
	}
	if got := memberName(user, nil); got != "Runner" {
		t.Errorf("global = %q", got)
	}
	if got := memberName(&discordgo.User{Username: "runner"}, &discordgo.Member{}); got != "runner" {
		t.Errorf("username = %q", got)
	}
}
