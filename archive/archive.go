// Package archive turns observed chat messages into archive files: one
// redacted text file per message plus the day's URL ledger.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ua-community/phenomena/ledger"
	"github.com/ua-community/phenomena/redact"
	"github.com/ua-community/phenomena/store"
	"github.com/ua-community/phenomena/telemetry"
	"github.com/ua-community/phenomena/urls"
)

// MessageCommit is the commit message of every message file.
const MessageCommit = "new msg"

// MessageDir holds one file per archived message.
const MessageDir = "msgs"

// Greeting is the reply to direct messages and mentions of the bot.
const Greeting = "Hello! I am Phenomena, the User & Agents Archive bot. I archive messages and URLs from this server. To enable or disable archiving, go to <id:customize> for the U&A server."

// MessagePath returns the archive path of a message file.
func MessagePath(id string) string {
	return MessageDir + "/" + id + ".txt"
}

// Message is a chat message as observed by the gateway.
type Message struct {
	ID        string
	ChannelID string
	GuildID   string
	AuthorID  string
	Text      string
	// FromSelf is set for messages the bot itself authored.
	FromSelf bool
	// Direct is set for direct-message channels.
	Direct bool
	// MentionsBot is set when the bot user is mentioned.
	MentionsBot bool
	// EligibleRoleHeld reports whether the author holds the archive role.
	EligibleRoleHeld bool
}

// Replier answers a message in its channel.
type Replier interface {
	Reply(ctx context.Context, m Message, text string) error
}

// Outcome is what HandleMessage did with a message.
type Outcome string

const (
	OutcomeIgnored  Outcome = "ignored"
	OutcomeGreeted  Outcome = "greeted"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeArchived Outcome = "archived"
)

// Service archives messages into a store.
type Service struct {
	store   store.Store
	ledger  *ledger.Merger
	replier Replier
	loc     *time.Location
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLocation sets the zone used for ledger day keys. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock overrides the wall clock used for day keys.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithReplier sets where greetings are sent. Without one greetings are skipped.
func WithReplier(r Replier) Option {
	return func(s *Service) { s.replier = r }
}

// NewService returns a Service writing message files to st and URLs through m.
func NewService(st store.Store, m *ledger.Merger, opts ...Option) *Service {
	s := &Service{store: st, ledger: m, loc: time.Local, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ArchiveMessage writes the redacted text to msgs/<id>.txt. The write carries
// no version token, so an existing file for id is reported as a conflict.
func (s *Service) ArchiveMessage(ctx context.Context, id, rawText string) error {
	if id == "" {
		return errors.New("archive message: empty id")
	}
	path := MessagePath(id)
	if _, err := s.store.Put(ctx, path, redact.Redact(rawText), MessageCommit, ""); err != nil {
		telemetry.IncMessagesFailed()
		return fmt.Errorf("archive message %s: %w", id, err)
	}
	telemetry.IncMessagesArchived()
	return nil
}

// ArchiveURLs merges the URLs found in rawText into today's ledger. Text
// without URLs never reaches the store.
func (s *Service) ArchiveURLs(ctx context.Context, rawText string) (ledger.Result, error) {
	found := urls.Extract(rawText)
	day := ledger.DayKey(s.now(), s.loc)
	if len(found) == 0 {
		return ledger.Result{Day: day, Path: ledger.Path(day)}, nil
	}
	return s.ledger.Merge(ctx, day, found)
}

// HandleMessage applies the archive policy to one observed message. Failures
// of the message write and the URL merge are independent and both returned.
func (s *Service) HandleMessage(ctx context.Context, m Message) (Outcome, error) {
	switch {
	case m.FromSelf:
		return OutcomeIgnored, nil
	case m.Direct || m.MentionsBot:
		if s.replier == nil {
			return OutcomeGreeted, nil
		}
		if err := s.replier.Reply(ctx, m, Greeting); err != nil {
			return OutcomeGreeted, fmt.Errorf("greet %s: %w", m.ID, err)
		}
		return OutcomeGreeted, nil
	case !m.EligibleRoleHeld:
		return OutcomeSkipped, nil
	}

	ctx, span := telemetry.StartSpan(ctx, "archive", "archive.HandleMessage",
		attribute.String("message_id", m.ID), attribute.String("channel_id", m.ChannelID))
	var err error
	defer func() { telemetry.EndSpan(span, err) }()

	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("message_id", m.ID))
	msgErr := s.ArchiveMessage(ctx, m.ID, m.Text)
	res, urlErr := s.ArchiveURLs(ctx, m.Text)
	if res.Written {
		logger.Info("ledger updated", slog.String("path", res.Path), slog.Int("added", len(res.Added)))
	}
	err = errors.Join(msgErr, urlErr)
	if err == nil {
		logger.Debug("message archived")
	}
	return OutcomeArchived, err
}
