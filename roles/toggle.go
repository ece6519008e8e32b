// Package roles toggles a member role when a fixed emoji reaction is placed on
// or removed from a fixed message.
package roles

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ua-community/phenomena/telemetry"
)

// Binding pairs a trigger message and emoji with the role it grants.
type Binding struct {
	MessageID string
	Emoji     string
	RoleID    string
}

// Matches reports whether a reaction on messageID with emoji triggers the binding.
func (b Binding) Matches(messageID, emoji string) bool {
	return messageID == b.MessageID && emoji == b.Emoji
}

// Reaction is a reaction event from the gateway.
type Reaction struct {
	MessageID string
	ChannelID string
	GuildID   string
	UserID    string
	Emoji     string
	// Partial events lack data and need one follow-up fetch before matching.
	Partial bool
}

// Resolver completes a partial reaction.
type Resolver interface {
	Resolve(ctx context.Context, r Reaction) (Reaction, error)
}

// Mutator changes member roles on the platform.
type Mutator interface {
	AddRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID string) error
}

// Action is what a Toggle did with a reaction.
type Action string

const (
	ActionAdded   Action = "added"
	ActionRemoved Action = "removed"
	ActionIgnored Action = "ignored"
	ActionDropped Action = "dropped"
)

// Toggle is a stateless filter-then-mutate handler for reaction events.
type Toggle struct {
	binding  Binding
	resolver Resolver
	mutator  Mutator
}

// NewToggle returns a Toggle for b. resolver may be nil, in which case
// partial reactions are dropped.
func NewToggle(b Binding, resolver Resolver, mutator Mutator) *Toggle {
	return &Toggle{binding: b, resolver: resolver, mutator: mutator}
}

// Binding returns the configured binding.
func (t *Toggle) Binding() Binding { return t.binding }

// HandleAdd grants the role on a matching reaction.
func (t *Toggle) HandleAdd(ctx context.Context, r Reaction) (Action, error) {
	return t.handle(ctx, r, true)
}

// HandleRemove revokes the role on a matching reaction removal.
func (t *Toggle) HandleRemove(ctx context.Context, r Reaction) (Action, error) {
	return t.handle(ctx, r, false)
}

func (t *Toggle) handle(ctx context.Context, r Reaction, add bool) (Action, error) {
	logger := telemetry.LoggerWithCorr(ctx)
	if r.Partial {
		if t.resolver == nil {
			logger.Warn("dropping partial reaction: no resolver", slog.String("message_id", r.MessageID))
			telemetry.IncRoleChange(string(ActionDropped))
			return ActionDropped, nil
		}
		full, err := t.resolver.Resolve(ctx, r)
		if err != nil {
			logger.Error("dropping partial reaction: fetch failed", slog.String("message_id", r.MessageID), slog.Any("err", err))
			telemetry.IncRoleChange(string(ActionDropped))
			return ActionDropped, nil
		}
		r = full
	}
	if !t.binding.Matches(r.MessageID, r.Emoji) {
		return ActionIgnored, nil
	}

	action := ActionAdded
	mutate := t.mutator.AddRole
	if !add {
		action = ActionRemoved
		mutate = t.mutator.RemoveRole
	}
	if err := mutate(ctx, r.GuildID, r.UserID, t.binding.RoleID); err != nil {
		telemetry.IncRoleChange("failed")
		return action, fmt.Errorf("%s role %s for %s: %w", action, t.binding.RoleID, r.UserID, err)
	}
	telemetry.IncRoleChange(string(action))
	logger.Info("reaction role changed", slog.String("action", string(action)), slog.String("user_id", r.UserID), slog.String("role_id", t.binding.RoleID))
	return action, nil
}
