package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ua-community/phenomena/discord"
	"github.com/ua-community/phenomena/store"
)

type fakeLister []string

func (f fakeLister) ListTree(context.Context, string, string) ([]string, error) { return f, nil }

type fakeFinder map[string]string

func (f fakeFinder) FindAuthor(_ context.Context, id string) (string, error) {
	if a, ok := f[id]; ok {
		return a, nil
	}
	return "", fmt.Errorf("%s: %w", id, discord.ErrMessageNotFound)
}

type failingFinder struct{}

func (failingFinder) FindAuthor(context.Context, string) (string, error) {
	return "", errors.New("HTTP 401 Unauthorized")
}

func TestParseUsers(t *testing.T) {
	got := parseUsers(" 1, 2,,3 ")
	if diff := cmp.Diff(map[string]bool{"1": true, "2": true, "3": true}, got); diff != "" {
		t.Errorf("parseUsers (-want +got):\n%s", diff)
	}
}

func TestFindMessages(t *testing.T) {
	paths := fakeLister{"msgs/10.txt", "msgs/11.txt", "msgs/12.txt", "msgs/13.txt"}
	finder := fakeFinder{"10": "alice", "11": "bob", "13": "alice"}
	users := map[string]bool{"alice": true}

	got, err := findMessages(context.Background(), paths, finder, users, 0, 3)
	if err != nil {
		t.Fatalf("findMessages() error = %v", err)
	}
	want := []Record{{MessageID: "10", UserID: "alice"}, {MessageID: "13", UserID: "alice"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("findMessages (-want +got):\n%s", diff)
	}

	got, err = findMessages(context.Background(), paths, finder, users, 2, 1)
	if err != nil {
		t.Fatalf("findMessages() with limit error = %v", err)
	}
	if diff := cmp.Diff(want[:1], got); diff != "" {
		t.Errorf("findMessages with limit (-want +got):\n%s", diff)
	}
}

func TestFindMessagesLookupFailure(t *testing.T) {
	_, err := findMessages(context.Background(), fakeLister{"msgs/1.txt"}, failingFinder{}, map[string]bool{"a": true}, 0, 2)
	if err == nil {
		t.Fatal("expected lookup failure to abort the search")
	}
}

func TestRecordsCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "message-authors.json")

	if _, cached, err := loadRecords(path, nil); cached || err != nil {
		t.Fatalf("loadRecords() on missing file = cached %v, %v", cached, err)
	}

	recs := []Record{{MessageID: "10", UserID: "alice"}, {MessageID: "11", UserID: "bob"}}
	if err := saveRecords(path, recs); err != nil {
		t.Fatalf("saveRecords() error = %v", err)
	}
	got, cached, err := loadRecords(path, map[string]bool{"bob": true})
	if err != nil || !cached {
		t.Fatalf("loadRecords() = cached %v, %v", cached, err)
	}
	if diff := cmp.Diff(recs[1:], got); diff != "" {
		t.Errorf("loadRecords (-want +got):\n%s", diff)
	}
}

func TestDeleteMessages(t *testing.T) {
	st := store.NewMemory()
	st.Seed("msgs/10.txt", "hello")
	st.Seed("msgs/12.txt", "keep")

	recs := []Record{{MessageID: "10", UserID: "alice"}, {MessageID: "11", UserID: "alice"}}
	if err := deleteMessages(context.Background(), st, recs); err != nil {
		t.Fatalf("deleteMessages() error = %v", err)
	}
	if diff := cmp.Diff([]string{"msgs/12.txt"}, st.Paths()); diff != "" {
		t.Errorf("remaining (-want +got):\n%s", diff)
	}
}
