package race

import "time"

// Member is a chat user acting on a race.
type Member struct {
	ID   string
	Name string
}

// Mention returns the chat mention for the member.
func (m Member) Mention() string {
	return mention(m.ID)
}

// Player is a single entrant's status within a race.
type Player struct {
	UserID  string    `json:"user_id"`
	Ready   bool      `json:"ready"`
	Forfeit bool      `json:"forfeit"`
	Finish  time.Time `json:"finish,omitzero"`
}

// Finished reports whether the player has a finish time.
func (p Player) Finished() bool {
	return !p.Finish.IsZero()
}

// Racing reports whether the player has neither finished nor forfeited.
func (p Player) Racing() bool {
	return p.Finish.IsZero() && !p.Forfeit
}

func (p Player) Mention() string {
	return mention(p.UserID)
}

func mention(id string) string {
	return "<@" + id + ">"
}
