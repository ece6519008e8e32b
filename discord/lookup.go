package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// ErrMessageNotFound is returned when no text channel of the guild holds the message.
var ErrMessageNotFound = errors.New("message not found in any channel")

// ChannelAPI is the part of *discordgo.Session a Lookup needs.
type ChannelAPI interface {
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Lookup finds message authors across a guild's text channels. The channel
// list is fetched on first use and kept for the life of the Lookup; create
// one per batch.
type Lookup struct {
	api     ChannelAPI
	guildID string

	once     sync.Once
	channels []*discordgo.Channel
	err      error
}

// NewLookup returns a Lookup for guildID.
func NewLookup(api ChannelAPI, guildID string) *Lookup {
	return &Lookup{api: api, guildID: guildID}
}

// textChannel reports whether messages can be fetched from ch.
func textChannel(ch *discordgo.Channel) bool {
	switch ch.Type {
	case discordgo.ChannelTypeGuildText,
		discordgo.ChannelTypeGuildNews,
		discordgo.ChannelTypeGuildVoice,
		discordgo.ChannelTypeGuildStageVoice,
		discordgo.ChannelTypeGuildNewsThread,
		discordgo.ChannelTypeGuildPublicThread,
		discordgo.ChannelTypeGuildPrivateThread:
		return true
	}
	return false
}

// Channels returns the guild's text channels, fetching them once.
func (l *Lookup) Channels(ctx context.Context) ([]*discordgo.Channel, error) {
	l.once.Do(func() {
		slog.Info("fetching guild channels", slog.String("guild_id", l.guildID))
		all, err := l.api.GuildChannels(l.guildID, discordgo.WithContext(ctx))
		if err != nil {
			l.err = fmt.Errorf("fetch channels for guild %s: %w", l.guildID, err)
			return
		}
		for _, ch := range all {
			if textChannel(ch) {
				l.channels = append(l.channels, ch)
			}
		}
	})
	return l.channels, l.err
}

// FindAuthor returns the author id of messageID, searching channel by channel.
// Per-channel fetch errors mean "not here" and are skipped.
func (l *Lookup) FindAuthor(ctx context.Context, messageID string) (string, error) {
	channels, err := l.Channels(ctx)
	if err != nil {
		return "", err
	}
	for _, ch := range channels {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		m, err := l.api.ChannelMessage(ch.ID, messageID, discordgo.WithContext(ctx))
		if err != nil || m == nil || m.Author == nil {
			continue
		}
		slog.Debug("found message", slog.String("message_id", messageID), slog.String("author_id", m.Author.ID), slog.String("channel", ch.Name))
		return m.Author.ID, nil
	}
	return "", fmt.Errorf("%s: %w", messageID, ErrMessageNotFound)
}
