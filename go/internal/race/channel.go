package race

import (
	"context"

	"github.com/mcdev12/racebot/go/internal/race/events"
)

// Field is one named block of a rich message.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Embed is a platform-neutral rich message.
type Embed struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Fields      []Field `json:"fields,omitempty"`
}

// Channel is the chat channel a race lives in.
type Channel interface {
	ID() string
	Name() string
	Mention() string
	Send(ctx context.Context, content string) error
	SendEmbed(ctx context.Context, embed Embed) (messageID string, err error)
	EditEmbed(ctx context.Context, messageID string, embed Embed) error
	UnpinAll(ctx context.Context, reason string) error
	Pin(ctx context.Context, messageID, reason string) error
	Delete(ctx context.Context, reason string) error
}

// ChannelProvider allocates new race channels.
type ChannelProvider interface {
	CreateNumberedChannel(ctx context.Context, prefix string) (Channel, error)
}

// EventPublisher receives race lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}
