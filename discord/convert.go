// Package discord adapts a discordgo session to the archive and role toggle.
package discord

import (
	"slices"

	"github.com/bwmarrin/discordgo"

	"github.com/ua-community/phenomena/archive"
	"github.com/ua-community/phenomena/roles"
)

// Intents are the gateway intents the bot subscribes to.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

// ToMessage converts a gateway message for the archive policy. botID is the
// bot's own user id; roleID is the eligible role.
func ToMessage(m *discordgo.Message, botID, roleID string) archive.Message {
	out := archive.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Text:      m.Content,
		Direct:    m.GuildID == "",
	}
	if m.Author != nil {
		out.AuthorID = m.Author.ID
		out.FromSelf = botID != "" && m.Author.ID == botID
	}
	for _, u := range m.Mentions {
		if u != nil && u.ID == botID {
			out.MentionsBot = true
			break
		}
	}
	if m.Member != nil {
		out.EligibleRoleHeld = slices.Contains(m.Member.Roles, roleID)
	}
	return out
}

// ToReaction converts a gateway reaction. Reactions delivered without a guild
// are partial and need their channel fetched.
func ToReaction(r *discordgo.MessageReaction) roles.Reaction {
	return roles.Reaction{
		MessageID: r.MessageID,
		ChannelID: r.ChannelID,
		GuildID:   r.GuildID,
		UserID:    r.UserID,
		Emoji:     r.Emoji.Name,
		Partial:   r.GuildID == "",
	}
}
