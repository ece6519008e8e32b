package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/ua-community/phenomena/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const day = "2025-04-01"

func read(t *testing.T, s *store.Memory) string {
	t.Helper()
	f, err := s.Get(context.Background(), Path(day))
	if err != nil {
		t.Fatalf("Get(%s) error = %v", Path(day), err)
	}
	return f.Content
}

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name       string
		old, in    []string
		wantMerged []string
		wantAdded  []string
		wantWrite  bool
	}{
		{
			name:       "absent ledger",
			in:         []string{"https://a.com", "https://b.com"},
			wantMerged: []string{"https://a.com", "https://b.com"},
			wantAdded:  []string{"https://a.com", "https://b.com"},
			wantWrite:  true,
		},
		{
			name:       "new first then old",
			old:        []string{"https://a.com"},
			in:         []string{"https://b.com"},
			wantMerged: []string{"https://b.com", "https://a.com"},
			wantAdded:  []string{"https://b.com"},
			wantWrite:  true,
		},
		{
			name:       "overlap keeps one copy",
			old:        []string{"https://a.com", "https://b.com"},
			in:         []string{"https://c.com", "https://a.com", "https://c.com"},
			wantMerged: []string{"https://c.com", "https://a.com", "https://b.com"},
			wantAdded:  []string{"https://c.com"},
			wantWrite:  true,
		},
		{
			name: "same set different order",
			old:  []string{"https://a.com", "https://b.com"},
			in:   []string{"https://b.com", "https://a.com", "https://a.com"},
		},
		{
			name: "subset already recorded",
			old:  []string{"https://a.com", "https://b.com"},
			in:   []string{"https://b.com"},
		},
		{
			name:       "trailing empty line kept",
			old:        []string{"https://a.com", ""},
			in:         []string{"https://b.com"},
			wantMerged: []string{"https://b.com", "https://a.com", ""},
			wantAdded:  []string{"https://b.com"},
			wantWrite:  true,
		},
		{
			name: "empty batch",
			old:  []string{"https://a.com"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged, added, write := Compute(tt.old, tt.in)
			if write != tt.wantWrite {
				t.Fatalf("write = %v, want %v", write, tt.wantWrite)
			}
			if diff := cmp.Diff(tt.wantMerged, merged); diff != "" {
				t.Errorf("merged (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantAdded, added); diff != "" {
				t.Errorf("added (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSplitJoinRoundTrip(t *testing.T) {
	for _, content := range []string{"", "https://a.com", "https://a.com\nhttps://b.com", "https://a.com\n"} {
		if got := Join(Split(content)); got != content {
			t.Errorf("Join(Split(%q)) = %q", content, got)
		}
	}
	urls := []string{"https://a.com", "https://b.com/x?y=1"}
	if diff := cmp.Diff(urls, Split(Join(urls))); diff != "" {
		t.Errorf("Split(Join()) (-want +got):\n%s", diff)
	}
}

func TestMerge_CreatesLedger(t *testing.T) {
	s := store.NewMemory()
	m := NewMerger(s)

	res, err := m.Merge(context.Background(), day, []string{"https://a.com", "https://b.com", "https://a.com"})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if !res.Written || res.Path != "urls/2025-04-01.txt" {
		t.Errorf("Merge() = %+v", res)
	}
	if got := read(t, s); got != "https://a.com\nhttps://b.com" {
		t.Errorf("ledger = %q", got)
	}
	if res.SHA != store.BlobSHA("https://a.com\nhttps://b.com") {
		t.Errorf("result sha = %s", res.SHA)
	}
}

func TestMerge_EmptyBatchTouchesNothing(t *testing.T) {
	s := store.NewMemory()
	m := NewMerger(s)
	for _, in := range [][]string{nil, {}} {
		res, err := m.Merge(context.Background(), day, in)
		if err != nil || res.Written {
			t.Fatalf("Merge(%v) = %+v, %v", in, res, err)
		}
	}
	if s.Reads() != 0 || s.Writes() != 0 {
		t.Errorf("reads=%d writes=%d, want none", s.Reads(), s.Writes())
	}
}

func TestMerge_Idempotent(t *testing.T) {
	for _, seeded := range []bool{false, true} {
		t.Run(fmt.Sprintf("seeded=%v", seeded), func(t *testing.T) {
			s := store.NewMemory()
			if seeded {
				s.Seed(Path(day), "https://old.com")
			}
			m := NewMerger(s)
			batch := []string{"https://a.com", "https://b.com"}
			for i := 0; i < 2; i++ {
				if _, err := m.Merge(context.Background(), day, batch); err != nil {
					t.Fatalf("Merge() #%d error = %v", i, err)
				}
			}
			if s.Writes() != 1 {
				t.Errorf("writes = %d, want 1", s.Writes())
			}
		})
	}
}

func TestMerge_OrderInsensitive(t *testing.T) {
	s := store.NewMemory()
	s.Seed(Path(day), "https://a.com\nhttps://b.com")
	m := NewMerger(s)

	res, err := m.Merge(context.Background(), day, []string{"https://b.com", "https://a.com"})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if res.Written || s.Writes() != 0 {
		t.Errorf("permuted batch wrote: %+v", res)
	}
}

func TestMerge_Union(t *testing.T) {
	s := store.NewMemory()
	s.Seed(Path(day), "https://a.com\nhttps://b.com")
	m := NewMerger(s)

	res, err := m.Merge(context.Background(), day, []string{"https://c.com", "https://a.com"})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if diff := cmp.Diff([]string{"https://c.com"}, res.Added); diff != "" {
		t.Errorf("added (-want +got):\n%s", diff)
	}
	got := Split(read(t, s))
	if diff := cmp.Diff(sorted(got), sorted(Dedup(got))); diff != "" {
		t.Errorf("ledger holds duplicates:\n%s", diff)
	}
	want := []string{"https://a.com", "https://b.com", "https://c.com"}
	if diff := cmp.Diff(want, sorted(got)); diff != "" {
		t.Errorf("ledger set (-want +got):\n%s", diff)
	}
	if got[0] != "https://c.com" {
		t.Errorf("new url not first: %v", got)
	}
}

func TestMerge_TrailingNewline(t *testing.T) {
	s := store.NewMemory()
	s.Seed(Path(day), "https://a.com\n")
	m := NewMerger(s)

	if _, err := m.Merge(context.Background(), day, []string{"https://b.com"}); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if got := read(t, s); got != "https://b.com\nhttps://a.com\n" {
		t.Errorf("ledger = %q", got)
	}
}

// interleavingStore commits a competing ledger right after the merger reads.
type interleavingStore struct {
	*store.Memory
	once sync.Once
}

func (s *interleavingStore) Get(ctx context.Context, path string) (*store.File, error) {
	f, err := s.Memory.Get(ctx, path)
	s.once.Do(func() { s.Seed(path, "https://a.com\nhttps://other.com") })
	return f, err
}

func TestMerge_StaleTokenConflicts(t *testing.T) {
	s := &interleavingStore{Memory: store.NewMemory()}
	s.Seed(Path(day), "https://a.com")
	m := NewMerger(s)

	res, err := m.Merge(context.Background(), day, []string{"https://b.com"})
	if store.Classify(err) != store.KindConflict {
		t.Fatalf("Merge() error = %v, want conflict", err)
	}
	if res.Written {
		t.Error("Merge() reported a write on conflict")
	}
	if got := read(t, s.Memory); got != "https://a.com\nhttps://other.com" {
		t.Errorf("ledger = %q, want competing write intact", got)
	}
}

func TestMerge_ReadFailure(t *testing.T) {
	s := store.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMerger(s).Merge(ctx, day, []string{"https://a.com"})
	if store.Classify(err) != store.KindNetwork {
		t.Fatalf("Merge() error = %v, want network kind", err)
	}
	if s.Writes() != 0 {
		t.Error("write attempted after failed read")
	}
}

// barrierStore holds every reader until n reads have happened, so n merges
// all observe the same version of the ledger.
type barrierStore struct {
	*store.Memory
	wg sync.WaitGroup
}

func (s *barrierStore) Get(ctx context.Context, path string) (*store.File, error) {
	f, err := s.Memory.Get(ctx, path)
	s.wg.Done()
	s.wg.Wait()
	return f, err
}

func TestMerge_ConcurrentSameDay(t *testing.T) {
	s := &barrierStore{Memory: store.NewMemory()}
	s.wg.Add(2)
	m := NewMerger(s)

	errs := make(chan error, 2)
	for _, u := range []string{"https://a.com", "https://b.com"} {
		go func(u string) {
			_, err := m.Merge(context.Background(), day, []string{u})
			errs <- err
		}(u)
	}
	var conflicts, ok int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			ok++
		case store.IsConflict(err):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != 1 {
		t.Errorf("ok=%d conflicts=%d, want one of each", ok, conflicts)
	}
	if got := Split(read(t, s.Memory)); len(got) != 1 {
		t.Errorf("ledger = %v, want only the winning url", got)
	}
}

func TestMerge_SerializedSameDay(t *testing.T) {
	s := store.NewMemory()
	m := NewMerger(s, WithSerialization())
	if !m.Serialized() {
		t.Fatal("Serialized() = false")
	}

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Merge(context.Background(), day, []string{fmt.Sprintf("https://%d.com", i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("Merge() error = %v", err)
		}
	}
	if got := Split(read(t, s)); len(got) != n {
		t.Errorf("ledger has %d urls, want %d: %v", len(got), n, got)
	}
	if m.locks.held() != 0 {
		t.Errorf("locks held after merges: %d", m.locks.held())
	}
}

func TestPlan_DoesNotWrite(t *testing.T) {
	s := store.NewMemory()
	sha := s.Seed(Path(day), "https://a.com")

	p, err := NewMerger(s).Plan(context.Background(), day, []string{"https://b.com"})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if !p.Exists || p.SHA != sha || !p.Write {
		t.Errorf("Plan() = %+v", p)
	}
	if p.Content != "https://b.com\nhttps://a.com" {
		t.Errorf("Plan() content = %q", p.Content)
	}
	if s.Writes() != 0 {
		t.Error("Plan() wrote")
	}
}
