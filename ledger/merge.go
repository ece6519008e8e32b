// Package ledger maintains the per-day URL files of the archive.
//
// A day's ledger is a newline-separated list of distinct URLs stored at
// urls/<YYYY-MM-DD>.txt. Every update rewrites the whole file: the current
// content is read together with its version token, the new batch is merged in
// (new URLs first, then the previously stored ones), and the result is written
// back conditioned on that token. Two merges racing on the same day therefore
// cannot silently overwrite each other; the loser gets store.ErrConflict and
// is not retried. WithSerialization adds an in-process per-day lock for
// callers that want concurrent merges ordered instead.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ua-community/phenomena/store"
	"github.com/ua-community/phenomena/telemetry"
)

// CommitMessage is used for every ledger write.
const CommitMessage = "new url(s)"

// Split parses stored content into lines, verbatim. A trailing newline yields
// a trailing empty element.
func Split(content string) []string {
	return strings.Split(content, "\n")
}

// Join renders a URL list as stored content.
func Join(urls []string) string {
	return strings.Join(urls, "\n")
}

// Dedup drops repeated entries, keeping first-seen order.
func Dedup(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func toSet(in []string) map[string]struct{} {
	set := make(map[string]struct{}, len(in))
	for _, s := range in {
		set[s] = struct{}{}
	}
	return set
}

// SetsEqual reports whether a and b hold the same distinct elements,
// ignoring order and repetition.
func SetsEqual(a, b []string) bool {
	as, bs := toSet(a), toSet(b)
	if len(as) != len(bs) {
		return false
	}
	for s := range as {
		if _, ok := bs[s]; !ok {
			return false
		}
	}
	return true
}

// Compute merges newURLs into the old ledger lines. It returns the merged
// list, the URLs the ledger did not hold yet, and whether a write is needed.
// No write is needed when every new URL is already present, which covers the
// case of both sides holding the same set.
func Compute(old, newURLs []string) (merged, added []string, write bool) {
	uniqueNew := Dedup(newURLs)
	uniqueOld := Dedup(old)
	if len(uniqueNew) == 0 || SetsEqual(uniqueNew, uniqueOld) {
		return nil, nil, false
	}
	oldSet := toSet(uniqueOld)
	for _, u := range uniqueNew {
		if _, ok := oldSet[u]; !ok {
			added = append(added, u)
		}
	}
	if len(added) == 0 {
		return nil, nil, false
	}
	merged = Dedup(append(append(make([]string, 0, len(uniqueNew)+len(uniqueOld)), uniqueNew...), uniqueOld...))
	return merged, added, true
}

// Plan is the outcome of reading a day's ledger and merging a batch into it.
type Plan struct {
	Day  string
	Path string
	// Exists and SHA describe the file as read; SHA is the write precondition.
	Exists bool
	SHA    string
	Old    []string
	Merged []string
	Added  []string
	// Content is what a write would commit; empty when Write is false.
	Content string
	Write   bool
}

// Result describes a completed merge.
type Result struct {
	Day     string
	Path    string
	Written bool
	Added   []string
	// SHA is the version token of the committed ledger after a write.
	SHA string
}

// Merger merges URL batches into day ledgers held in a store.
type Merger struct {
	store store.Store
	locks *keyLocks
}

// Option configures a Merger.
type Option func(*Merger)

// WithSerialization orders concurrent merges for the same day key within this
// process, so they no longer race on the version token.
func WithSerialization() Option {
	return func(m *Merger) { m.locks = newKeyLocks() }
}

// NewMerger returns a Merger writing to s.
func NewMerger(s store.Store, opts ...Option) *Merger {
	m := &Merger{store: s}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Serialized reports whether per-day serialization is enabled.
func (m *Merger) Serialized() bool { return m.locks != nil }

// Plan reads the day's ledger and computes the merge without writing.
func (m *Merger) Plan(ctx context.Context, day string, newURLs []string) (*Plan, error) {
	p := &Plan{Day: day, Path: Path(day)}
	f, err := m.store.Get(ctx, p.Path)
	switch {
	case err == nil:
		p.Exists = true
		p.SHA = f.SHA
		p.Old = Split(f.Content)
	case store.IsNotFound(err):
		// No ledger for this day yet.
	default:
		return nil, fmt.Errorf("read ledger %s: %w", p.Path, err)
	}
	p.Merged, p.Added, p.Write = Compute(p.Old, newURLs)
	if p.Write {
		p.Content = Join(p.Merged)
	}
	return p, nil
}

// Merge folds newURLs into the ledger for day. An empty batch touches nothing.
// A stale version token surfaces as an error classified store.KindConflict;
// the batch is then not recorded and nothing is retried.
func (m *Merger) Merge(ctx context.Context, day string, newURLs []string) (Result, error) {
	res := Result{Day: day, Path: Path(day)}
	if len(newURLs) == 0 {
		return res, nil
	}

	ctx, span := telemetry.StartSpan(ctx, "ledger", "ledger.Merge")
	var err error
	defer func() { telemetry.EndSpan(span, err) }()

	if m.locks != nil {
		var release func()
		release, err = m.locks.acquire(ctx, day)
		if err != nil {
			err = fmt.Errorf("lock ledger %s: %w", day, err)
			return res, err
		}
		defer release()
	}

	var p *Plan
	p, err = m.Plan(ctx, day, newURLs)
	if err != nil {
		telemetry.IncLedgerFailure(store.Classify(err).String())
		return res, err
	}
	if !p.Write {
		telemetry.IncLedgerSkips()
		return res, nil
	}

	var sha string
	sha, err = m.store.Put(ctx, p.Path, p.Content, CommitMessage, p.SHA)
	if err != nil {
		kind := store.Classify(err)
		telemetry.IncLedgerFailure(kind.String())
		telemetry.LoggerWithCorr(ctx).Warn("ledger write rejected",
			slog.String("path", p.Path), slog.String("kind", kind.String()), slog.Int("lost_urls", len(p.Added)))
		err = fmt.Errorf("write ledger %s: %w", p.Path, err)
		return res, err
	}
	telemetry.IncLedgerWrites()
	res.Written = true
	res.Added = p.Added
	res.SHA = sha
	return res, nil
}
