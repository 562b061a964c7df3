package race

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	preRaceCommands = "`.enter` or `.e` - Enter the race\n" +
		"`.withdraw` or `.w` - Withdraw from the race\n" +
		"`.ready` or `.r` - Indicate that you are ready to start\n" +
		"`.unready` or `.u` - Indicate you are not ready to start"
	inRaceCommands = "`.done` or `.d` - Indicate you completed the race\n" +
		"`.forfeit` or `.f` - Forfeit the race\n" +
		"`.notdone` or `.n` - Reenter the race if you accidentally completed or forfeited\n" +
		"`.time` or `.t` - Get the time elapsed in the race."
	postRaceCommands = "`.rematch` - Start a new race in this channel.\n" +
		"`.notdone` or `.n` - Reenter the race if you accidentally completed or forfeited"
)

// Phase is the lifecycle position of a race.
type Phase string

const (
	PhaseForming   Phase = "forming"
	PhaseCountdown Phase = "countdown"
	PhaseRacing    Phase = "racing"
	PhaseComplete  Phase = "complete"
)

func phaseOf(started bool, start, end time.Time) Phase {
	switch {
	case !started && start.IsZero():
		return PhaseForming
	case !started:
		return PhaseCountdown
	case end.IsZero():
		return PhaseRacing
	default:
		return PhaseComplete
	}
}

// State is an immutable snapshot of a race.
type State struct {
	ChannelID      string    `json:"channel_id"`
	ChannelName    string    `json:"channel_name"`
	Seed           string    `json:"seed"`
	Goal           string    `json:"goal,omitempty"`
	Phase          Phase     `json:"phase"`
	Players        []Player  `json:"players"`
	Start          time.Time `json:"start,omitzero"`
	End            time.Time `json:"end,omitzero"`
	CountdownArmed bool      `json:"countdown_armed"`
	AutoCloseArmed bool      `json:"auto_close_armed"`
}

// Finishers returns finished players ordered by finish time, ties by entry order.
func (s State) Finishers() []Player {
	var finished []Player
	for _, p := range s.Players {
		if p.Finished() {
			finished = append(finished, p)
		}
	}
	sort.SliceStable(finished, func(i, j int) bool {
		return finished[i].Finish.Before(finished[j].Finish)
	})
	return finished
}

func (s State) filter(keep func(Player) bool) []Player {
	var out []Player
	for _, p := range s.Players {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// RenderStatus builds the pinned status message for a race state.
func RenderStatus(s State) Embed {
	switch s.Phase {
	case PhaseCountdown:
		return Embed{
			Title:       "Race Starting",
			Description: fmt.Sprintf("%s\nStarting %s", s.header(), relative(s.Start)),
			Fields: []Field{
				{Name: "Players", Value: mentions(s.Players)},
				{Name: "Commands", Value: preRaceCommands},
			},
		}

	case PhaseRacing:
		embed := Embed{
			Title:       "Race Started",
			Description: fmt.Sprintf("%s\nStarted %s", s.header(), relative(s.Start)),
		}
		embed.Fields = appendResults(embed.Fields, s, "Finished Players")
		if racing := s.filter(Player.Racing); len(racing) > 0 {
			embed.Fields = append(embed.Fields, Field{Name: "Still Racing", Value: mentions(racing), Inline: true})
		}
		embed.Fields = append(embed.Fields, Field{Name: "Commands", Value: inRaceCommands})
		return embed

	case PhaseComplete:
		embed := Embed{
			Title:       "Race Complete",
			Description: fmt.Sprintf("%s\nStarted %s\nEnded %s", s.header(), relative(s.Start), relative(s.End)),
		}
		embed.Fields = appendResults(embed.Fields, s, "Finished Players")
		embed.Fields = append(embed.Fields, Field{Name: "Commands", Value: postRaceCommands})
		return embed

	default:
		embed := Embed{
			Title:       "New Race",
			Description: s.header(),
		}
		if ready := s.filter(func(p Player) bool { return p.Ready }); len(ready) > 0 {
			embed.Fields = append(embed.Fields, Field{Name: "Ready Players", Value: mentions(ready), Inline: true})
		}
		if unready := s.filter(func(p Player) bool { return !p.Ready }); len(unready) > 0 {
			embed.Fields = append(embed.Fields, Field{Name: "Unready Players", Value: mentions(unready), Inline: true})
		}
		embed.Fields = append(embed.Fields, Field{Name: "Commands", Value: preRaceCommands})
		return embed
	}
}

// RenderResults builds the announcement posted when a race completes.
func RenderResults(s State) Embed {
	embed := Embed{
		Title:       "Race Ended",
		Description: "The race has concluded!",
	}
	embed.Fields = appendResults(embed.Fields, s, "Standings")
	return embed
}

func appendResults(fields []Field, s State, finishedTitle string) []Field {
	if finished := s.Finishers(); len(finished) > 0 {
		lines := make([]string, len(finished))
		for i, p := range finished {
			lines[i] = fmt.Sprintf("%d) **%s** - %s", i+1, FormatTime(p.Finish.Sub(s.Start)), p.Mention())
		}
		fields = append(fields, Field{Name: finishedTitle, Value: strings.Join(lines, "\n"), Inline: true})
	}
	if forfeited := s.filter(func(p Player) bool { return p.Forfeit }); len(forfeited) > 0 {
		fields = append(fields, Field{Name: "Forfeited Players", Value: mentions(forfeited), Inline: true})
	}
	return fields
}

func (s State) header() string {
	if s.Goal == "" {
		return "Seed: " + s.Seed
	}
	return fmt.Sprintf("Seed: %s\nGoal: %s", s.Seed, s.Goal)
}

func mentions(players []Player) string {
	lines := make([]string, len(players))
	for i, p := range players {
		lines[i] = p.Mention()
	}
	return strings.Join(lines, "\n")
}

func relative(t time.Time) string {
	return fmt.Sprintf("<t:%d:R>", t.Unix())
}
