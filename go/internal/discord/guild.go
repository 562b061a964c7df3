package discord

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/racebot/go/internal/race"
	"github.com/rs/zerolog/log"
)

var errNotLoaded = errors.New("guild not loaded")

type Config struct {
	GuildID      string
	CategoryID   string
	CategoryName string
	StaffRole    string
	ChannelName  string
}

func DefaultConfig() Config {
	return Config{
		CategoryName: "Race Rooms",
		StaffRole:    "SPRINT Staff",
		ChannelName:  "race",
	}
}

// Guild is the server the bot runs races in. It allocates race rooms,
// resolves members and replies to commands.
type Guild struct {
	session *discordgo.Session
	clock   clockwork.Clock
	config  Config

	mu          sync.RWMutex
	categoryID  string
	staffRoleID string

	// serializes suffix selection with channel creation
	createMu sync.Mutex
}

func NewGuild(session *discordgo.Session, cfg Config, clock clockwork.Clock) *Guild {
	return &Guild{
		session: session,
		clock:   clock,
		config:  cfg,
	}
}

// Load resolves the race category and the staff role.
func (g *Guild) Load(ctx context.Context) error {
	categoryID := g.config.CategoryID
	if categoryID == "" {
		channels, err := g.session.GuildChannels(g.config.GuildID, discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("list guild channels: %w", err)
		}
		categoryID = findCategory(channels, g.config.CategoryName)
		if categoryID == "" {
			return fmt.Errorf("race category %q not found", g.config.CategoryName)
		}
	}

	roles, err := g.session.GuildRoles(g.config.GuildID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("list guild roles: %w", err)
	}
	staffRoleID := findRole(roles, g.config.StaffRole)
	if staffRoleID == "" {
		log.Warn().Str("role", g.config.StaffRole).Msg("staff role not found, staff commands are disabled")
	}

	g.mu.Lock()
	g.categoryID = categoryID
	g.staffRoleID = staffRoleID
	g.mu.Unlock()

	log.Info().
		Str("guild_id", g.config.GuildID).
		Str("category_id", categoryID).
		Str("staff_role_id", staffRoleID).
		Msg("guild loaded")
	return nil
}

func (g *Guild) category() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.categoryID
}

func (g *Guild) staffRole() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.staffRoleID
}

// CreateNumberedChannel creates <prefix>-<n> under the race category using
// the lowest free n.
func (g *Guild) CreateNumberedChannel(ctx context.Context, prefix string) (race.Channel, error) {
	category := g.category()
	if category == "" {
		return nil, errNotLoaded
	}

	g.createMu.Lock()
	defer g.createMu.Unlock()

	channels, err := g.session.GuildChannels(g.config.GuildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("list guild channels: %w", err)
	}

	var names []string
	for _, c := range channels {
		if c.ParentID == category {
			names = append(names, c.Name)
		}
	}
	name := fmt.Sprintf("%s-%d", prefix, nextSuffix(names, prefix))

	created, err := g.session.GuildChannelCreateComplex(g.config.GuildID, discordgo.GuildChannelCreateData{
		Name:     name,
		Type:     discordgo.ChannelTypeGuildText,
		ParentID: category,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("create channel %s: %w", name, err)
	}

	return g.channel(created.ID, created.Name), nil
}

func (g *Guild) channel(id, name string) *Channel {
	return &Channel{session: g.session, clock: g.clock, id: id, name: name}
}

func (g *Guild) lookupChannel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	if c, err := g.session.State.Channel(channelID); err == nil {
		return c, nil
	}
	return g.session.Channel(channelID, discordgo.WithContext(ctx))
}

// ChannelName returns the name of a guild channel, or "" if it is unknown.
func (g *Guild) ChannelName(ctx context.Context, channelID string) string {
	c, err := g.lookupChannel(ctx, channelID)
	if err != nil {
		return ""
	}
	return c.Name
}

// IsRaceChannel reports whether channelID is a race room, with or without a
// live race attached.
func (g *Guild) IsRaceChannel(ctx context.Context, channelID string) bool {
	category := g.category()
	if category == "" {
		return false
	}
	c, err := g.lookupChannel(ctx, channelID)
	if err != nil {
		log.Debug().Err(err).Str("channel_id", channelID).Msg("failed to look up channel")
		return false
	}
	return c.ParentID == category && isNumbered(c.Name, g.config.ChannelName)
}

func (g *Guild) DeleteChannel(ctx context.Context, channelID, reason string) error {
	_, err := g.session.ChannelDelete(channelID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	return err
}

func (g *Guild) Resolve(ctx context.Context, userID string) (race.Member, bool) {
	m, err := g.session.GuildMember(g.config.GuildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		log.Debug().Err(err).Str("user_id", userID).Msg("failed to resolve member")
		return race.Member{}, false
	}
	return race.Member{ID: userID, Name: memberName(m.User, m)}, true
}

func (g *Guild) IsStaff(ctx context.Context, m race.Member) bool {
	role := g.staffRole()
	if role == "" {
		return false
	}
	member, err := g.session.GuildMember(g.config.GuildID, m.ID, discordgo.WithContext(ctx))
	if err != nil {
		log.Warn().Err(err).Str("user_id", m.ID).Msg("failed to load member roles")
		return false
	}
	return slices.Contains(member.Roles, role)
}

func (g *Guild) Reply(ctx context.Context, channelID string, e race.Embed) error {
	_, err := g.session.ChannelMessageSendEmbed(channelID, toMessageEmbed(e, g.clock.Now()), discordgo.WithContext(ctx))
	return err
}

func findCategory(channels []*discordgo.Channel, name string) string {
	for _, c := range channels {
		if c.Type == discordgo.ChannelTypeGuildCategory && c.Name == name {
			return c.ID
		}
	}
	return ""
}

func findRole(roles []*discordgo.Role, name string) string {
	for _, r := range roles {
		if r.Name == name {
			return r.ID
		}
	}
	return ""
}

// nextSuffix returns the lowest positive n such that <prefix>-<n> is not in names.
func nextSuffix(names []string, prefix string) int {
	used := make(map[int]bool, len(names))
	for _, name := range names {
		if n, ok := suffix(name, prefix); ok {
			used[n] = true
		}
	}
	n := 1
	for used[n] {
		n++
	}
	return n
}

func suffix(name, prefix string) (int, bool) {
	rest, ok := strings.CutPrefix(name, prefix+"-")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func isNumbered(name, prefix string) bool {
	_, ok := suffix(name, prefix)
	return ok
}

// memberName prefers the guild nickname, then the global display name.
func memberName(u *discordgo.User, m *discordgo.Member) string {
	if m != nil && m.Nick != "" {
		return m.Nick
	}
	if u == nil {
		return ""
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}
