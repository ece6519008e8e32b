package discord

import (
	"context"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/ua-community/phenomena/archive"
	"github.com/ua-community/phenomena/roles"
	"github.com/ua-community/phenomena/telemetry"
)

// eventTimeout bounds the work done for one gateway event.
const eventTimeout = 30 * time.Second

// Bot dispatches gateway events to the archive and the role toggle. discordgo
// runs each handler on its own goroutine, so events are handled concurrently.
type Bot struct {
	gw      *Gateway
	archive *archive.Service
	toggle  *roles.Toggle
	roleID  string

	base      context.Context
	connected atomic.Bool
}

// NewBot wires handlers for gw. roleID is the role that makes an author's
// messages eligible for archiving.
func NewBot(gw *Gateway, svc *archive.Service, toggle *roles.Toggle, roleID string) *Bot {
	b := &Bot{gw: gw, archive: svc, toggle: toggle, roleID: roleID, base: context.Background()}
	gw.Session.AddHandler(b.onReady)
	gw.Session.AddHandler(b.onResumed)
	gw.Session.AddHandler(b.onDisconnect)
	gw.Session.AddHandler(b.onMessageCreate)
	gw.Session.AddHandler(b.onReactionAdd)
	gw.Session.AddHandler(b.onReactionRemove)
	return b
}

// Connected reports whether the gateway session is up.
func (b *Bot) Connected() bool { return b.connected.Load() }

func (b *Bot) setConnected(up bool) {
	b.connected.Store(up)
	telemetry.SetGatewayConnected(up)
}

// Run opens the gateway and blocks until ctx is canceled. Events already being
// handled at shutdown keep their own deadline.
func (b *Bot) Run(ctx context.Context) error {
	b.base = context.WithoutCancel(ctx)
	if err := b.gw.Session.Open(); err != nil {
		return err
	}
	<-ctx.Done()
	b.setConnected(false)
	slog.Info("closing discord gateway")
	return b.gw.Session.Close()
}

// eventContext returns a bounded context tagged with a fresh correlation id.
func (b *Bot) eventContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(b.base, eventTimeout)
	return telemetry.WithCorrelation(ctx, uuid.NewString()), cancel
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	b.setConnected(true)
	var name string
	if r.User != nil {
		name = r.User.Username
	}
	slog.Info("discord gateway ready", slog.String("user", name), slog.Int("guilds", len(r.Guilds)))
}

func (b *Bot) onResumed(_ *discordgo.Session, _ *discordgo.Resumed) {
	b.setConnected(true)
	slog.Info("discord gateway resumed")
}

func (b *Bot) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	b.setConnected(false)
	slog.Warn("discord gateway disconnected")
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	ctx, cancel := b.eventContext()
	defer cancel()
	b.handleMessage(ctx, m.Message)
}

func (b *Bot) handleMessage(ctx context.Context, m *discordgo.Message) {
	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("message_id", m.ID), slog.String("channel_id", m.ChannelID))
	msg := ToMessage(m, b.gw.BotID(), b.roleID)
	if !msg.Direct && m.Member == nil && m.Author != nil && !msg.FromSelf {
		roleIDs, err := b.gw.MemberRoles(ctx, m.GuildID, m.Author.ID)
		if err != nil {
			logger.Warn("member lookup failed", slog.Any("err", err))
		}
		msg.EligibleRoleHeld = slices.Contains(roleIDs, b.roleID)
	}

	out, err := b.archive.HandleMessage(ctx, msg)
	if err != nil {
		logger.Error("message handling failed", slog.String("outcome", string(out)), slog.Any("err", err))
		return
	}
	logger.Debug("message handled", slog.String("outcome", string(out)))
}

func (b *Bot) onReactionAdd(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
	ctx, cancel := b.eventContext()
	defer cancel()
	b.handleReaction(ctx, ToReaction(r.MessageReaction), true)
}

func (b *Bot) onReactionRemove(_ *discordgo.Session, r *discordgo.MessageReactionRemove) {
	ctx, cancel := b.eventContext()
	defer cancel()
	b.handleReaction(ctx, ToReaction(r.MessageReaction), false)
}

func (b *Bot) handleReaction(ctx context.Context, r roles.Reaction, add bool) {
	handle := b.toggle.HandleRemove
	if add {
		handle = b.toggle.HandleAdd
	}
	if _, err := handle(ctx, r); err != nil {
		telemetry.LoggerWithCorr(ctx).Error("reaction role update failed",
			slog.String("message_id", r.MessageID), slog.String("user_id", r.UserID), slog.Any("err", err))
	}
}
