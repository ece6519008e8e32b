package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ua-community/phenomena/githubapi"
	"github.com/ua-community/phenomena/ledger"
	"github.com/ua-community/phenomena/store"
	"github.com/ua-community/phenomena/telemetry"
	"github.com/ua-community/phenomena/testutil"
)

var fixedNow = func() time.Time { return time.Date(2025, 4, 2, 3, 0, 0, 0, time.UTC) }

type fakeReplier struct {
	replies []string
	err     error
}

func (f *fakeReplier) Reply(_ context.Context, m Message, text string) error {
	f.replies = append(f.replies, m.ID+":"+text)
	return f.err
}

func newService(st store.Store, opts ...Option) *Service {
	opts = append([]Option{WithClock(fixedNow), WithLocation(time.FixedZone("PDT", -7*3600))}, opts...)
	return NewService(st, ledger.NewMerger(st), opts...)
}

func content(t *testing.T, st store.Store, path string) string {
	t.Helper()
	f, err := st.Get(context.Background(), path)
	if err != nil {
		t.Fatalf("Get(%s) error = %v", path, err)
	}
	return f.Content
}

func TestArchiveMessage(t *testing.T) {
	telemetry.Init()
	st := store.NewMemory()
	s := newService(st)
	before := promtest.ToFloat64(telemetry.MessagesArchived)

	if err := s.ArchiveMessage(context.Background(), "1357", "hey <@123><@456> look"); err != nil {
		t.Fatalf("ArchiveMessage() error = %v", err)
	}
	if got := content(t, st, "msgs/1357.txt"); got != "hey (user)(user) look" {
		t.Errorf("message file = %q", got)
	}
	if got := promtest.ToFloat64(telemetry.MessagesArchived) - before; got != 1 {
		t.Errorf("archived counter delta = %v, want 1", got)
	}
}

func TestArchiveMessage_ExistingFileConflicts(t *testing.T) {
	st := store.NewMemory()
	st.Seed("msgs/1357.txt", "first")
	s := newService(st)

	err := s.ArchiveMessage(context.Background(), "1357", "second")
	if !store.IsConflict(err) {
		t.Fatalf("ArchiveMessage() error = %v, want conflict", err)
	}
	if got := content(t, st, "msgs/1357.txt"); got != "first" {
		t.Errorf("message file overwritten: %q", got)
	}
}

func TestArchiveURLs(t *testing.T) {
	st := store.NewMemory()
	s := newService(st)

	res, err := s.ArchiveURLs(context.Background(), "no links here")
	if err != nil || res.Written {
		t.Fatalf("ArchiveURLs() = %+v, %v", res, err)
	}
	if st.Reads() != 0 {
		t.Errorf("store read for text without urls")
	}

	res, err = s.ArchiveURLs(context.Background(), "see (https://example.com/path) and https://x.org")
	if err != nil {
		t.Fatalf("ArchiveURLs() error = %v", err)
	}
	if res.Day != "2025-04-01" {
		t.Errorf("day = %s, want local date 2025-04-01", res.Day)
	}
	if got := content(t, st, "urls/2025-04-01.txt"); got != "https://example.com/path\nhttps://x.org" {
		t.Errorf("ledger = %q", got)
	}
}

func TestHandleMessage_Policy(t *testing.T) {
	tests := []struct {
		name        string
		msg         Message
		want        Outcome
		wantReplies int
		wantPaths   []string
	}{
		{
			name: "own message",
			msg:  Message{ID: "1", FromSelf: true, Direct: true, EligibleRoleHeld: true, Text: "https://a.com"},
			want: OutcomeIgnored,
		},
		{
			name:        "direct message",
			msg:         Message{ID: "2", Direct: true, Text: "hi"},
			want:        OutcomeGreeted,
			wantReplies: 1,
		},
		{
			name:        "mention from eligible author is not archived",
			msg:         Message{ID: "3", MentionsBot: true, EligibleRoleHeld: true, Text: "<@99> https://a.com"},
			want:        OutcomeGreeted,
			wantReplies: 1,
		},
		{
			name: "author without role",
			msg:  Message{ID: "4", Text: "https://a.com"},
			want: OutcomeSkipped,
		},
		{
			name:      "eligible author",
			msg:       Message{ID: "5", EligibleRoleHeld: true, Text: "read https://a.com"},
			want:      OutcomeArchived,
			wantPaths: []string{"msgs/5.txt", "urls/2025-04-01.txt"},
		},
		{
			name:      "eligible author without urls",
			msg:       Message{ID: "6", EligibleRoleHeld: true, Text: "just text"},
			want:      OutcomeArchived,
			wantPaths: []string{"msgs/6.txt"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemory()
			r := &fakeReplier{}
			s := newService(st, WithReplier(r))

			got, err := s.HandleMessage(context.Background(), tt.msg)
			if err != nil {
				t.Fatalf("HandleMessage() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("HandleMessage() = %s, want %s", got, tt.want)
			}
			if len(r.replies) != tt.wantReplies {
				t.Errorf("replies = %v", r.replies)
			}
			if tt.wantReplies > 0 && r.replies[0] != tt.msg.ID+":"+Greeting {
				t.Errorf("reply = %q", r.replies[0])
			}
			wantPaths := tt.wantPaths
			if wantPaths == nil {
				wantPaths = []string{}
			}
			if diff := cmp.Diff(wantPaths, st.Paths()); diff != "" {
				t.Errorf("archived paths (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHandleMessage_GreetingFailure(t *testing.T) {
	r := &fakeReplier{err: errors.New("missing access")}
	s := newService(store.NewMemory(), WithReplier(r))
	out, err := s.HandleMessage(context.Background(), Message{ID: "7", Direct: true})
	if out != OutcomeGreeted || err == nil {
		t.Errorf("HandleMessage() = %s, %v", out, err)
	}
}

func TestHandleMessage_MessageFailureStillMergesURLs(t *testing.T) {
	st := store.NewMemory()
	st.Seed("msgs/8.txt", "already here")
	s := newService(st)

	_, err := s.HandleMessage(context.Background(), Message{ID: "8", EligibleRoleHeld: true, Text: "https://a.com"})
	if !store.IsConflict(err) {
		t.Fatalf("HandleMessage() error = %v, want conflict", err)
	}
	if got := content(t, st, "urls/2025-04-01.txt"); got != "https://a.com" {
		t.Errorf("ledger = %q", got)
	}
}

func TestHandleMessage_ThroughGitHub(t *testing.T) {
	srv := testutil.NewMockGitHubServer(t, "ua-community", "ua-discord-archive")
	c := githubapi.New(context.Background(), "tok", "ua-community", "ua-discord-archive")
	c.BaseURL = srv.URL
	s := newService(c)

	msgs := []Message{
		{ID: "10", EligibleRoleHeld: true, Text: "<@1> posted https://a.com"},
		{ID: "11", EligibleRoleHeld: true, Text: "again https://a.com"},
		{ID: "12", EligibleRoleHeld: true, Text: "new https://b.com"},
	}
	for _, m := range msgs {
		if _, err := s.HandleMessage(context.Background(), m); err != nil {
			t.Fatalf("HandleMessage(%s) error = %v", m.ID, err)
		}
	}
	want := []string{"new msg", "new url(s)", "new msg", "new msg", "new url(s)"}
	if diff := cmp.Diff(want, srv.CommitMessages()); diff != "" {
		t.Errorf("commits (-want +got):\n%s", diff)
	}
	if got := content(t, srv.Files, "msgs/10.txt"); got != "(user) posted https://a.com" {
		t.Errorf("message file = %q", got)
	}
	if got := content(t, srv.Files, "urls/2025-04-01.txt"); got != "https://b.com\nhttps://a.com" {
		t.Errorf("ledger = %q", got)
	}
}
