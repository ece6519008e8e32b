package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/ua-community/phenomena/archive"
	"github.com/ua-community/phenomena/roles"
)

// Gateway wraps a discordgo session with the calls the archive and the role
// toggle make. It implements archive.Replier, roles.Mutator and roles.Resolver.
type Gateway struct {
	Session *discordgo.Session
}

// NewGateway creates a bot session for token. The connection is opened by Bot.Run.
func NewGateway(token string) (*Gateway, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = Intents
	return &Gateway{Session: s}, nil
}

// BotID returns the logged in user id, or "" before the session is ready.
func (g *Gateway) BotID() string {
	if g.Session.State == nil || g.Session.State.User == nil {
		return ""
	}
	return g.Session.State.User.ID
}

// Reply answers m in its channel as a message reply.
func (g *Gateway) Reply(ctx context.Context, m archive.Message, text string) error {
	ref := &discordgo.MessageReference{MessageID: m.ID, ChannelID: m.ChannelID, GuildID: m.GuildID}
	if _, err := g.Session.ChannelMessageSendReply(m.ChannelID, text, ref, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("reply to %s: %w", m.ID, err)
	}
	return nil
}

// AddRole grants roleID to the member.
func (g *Gateway) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	return g.Session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx))
}

// RemoveRole revokes roleID from the member.
func (g *Gateway) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	return g.Session.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx))
}

// Resolve fills in the guild of a partial reaction with one channel fetch.
func (g *Gateway) Resolve(ctx context.Context, r roles.Reaction) (roles.Reaction, error) {
	ch, err := g.Session.Channel(r.ChannelID, discordgo.WithContext(ctx))
	if err != nil {
		return r, fmt.Errorf("fetch channel %s: %w", r.ChannelID, err)
	}
	if ch.GuildID == "" {
		return r, errors.New("reaction is not in a guild")
	}
	r.GuildID = ch.GuildID
	r.Partial = false
	return r, nil
}

// MemberRoles fetches the role ids of a guild member.
func (g *Gateway) MemberRoles(ctx context.Context, guildID, userID string) ([]string, error) {
	m, err := g.Session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch member %s: %w", userID, err)
	}
	return m.Roles, nil
}
