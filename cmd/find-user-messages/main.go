// Package main provides a CLI tool to find archived messages written by given
// users, and optionally remove them from the archive.
//
// Message files carry no author, so each msgs/<id>.txt is looked up on Discord
// by searching the guild's text channels for message <id>. Matches are cached
// in a JSON file; when that file exists it is used instead of Discord.
//
// Usage:
//
//	find-user-messages -users ID[,ID...] [-limit 2000] [-out message-authors.json] [-delete]
//
// Environment Variables:
//
//	DISCORD_TOKEN: bot token (required)
//	DISCORD_GUILD_ID: guild whose channels are searched (required)
//	GH_TOKEN: GitHub token (required)
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ua-community/phenomena/archive"
	"github.com/ua-community/phenomena/config"
	"github.com/ua-community/phenomena/discord"
	"github.com/ua-community/phenomena/githubapi"
	"github.com/ua-community/phenomena/store"
)

// Record pairs an archived message with its author.
type Record struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
}

type lister interface {
	ListTree(ctx context.Context, prefix, suffix string) ([]string, error)
}

type authorFinder interface {
	FindAuthor(ctx context.Context, messageID string) (string, error)
}

func main() {
	usersFlag := flag.String("users", "", "Comma-separated Discord user ids (required)")
	limit := flag.Int("limit", 2000, "Maximum number of message files to look up")
	outPath := flag.String("out", "message-authors.json", "Cache file for matched messages")
	del := flag.Bool("delete", false, "Delete the matched message files from the archive")
	workers := flag.Int("workers", 4, "Concurrent Discord lookups")
	flag.Parse()

	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	users := parseUsers(*usersFlag)
	if len(users) == 0 {
		slog.Error("-users is required")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config invalid", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.DiscordGuildID == "" {
		slog.Error("DISCORD_GUILD_ID environment variable is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gh := githubapi.New(ctx, cfg.GitHubToken, cfg.GitHubOwner, cfg.GitHubRepo).WithRateLimit(cfg.GitHubMaxRPS)
	gh.BaseURL = cfg.GitHubAPIURL

	results, cached, err := loadRecords(*outPath, users)
	if err != nil {
		slog.Error("failed to read cache file", slog.String("path", *outPath), slog.Any("error", err))
		os.Exit(1)
	}
	if !cached {
		session, err := discordgo.New("Bot " + cfg.DiscordToken)
		if err != nil {
			slog.Error("failed to create discord session", slog.Any("error", err))
			os.Exit(1)
		}
		lookup := discord.NewLookup(session, cfg.DiscordGuildID)
		results, err = findMessages(ctx, gh, lookup, users, *limit, *workers)
		if err != nil {
			slog.Error("search failed", slog.Any("error", err))
			os.Exit(1)
		}
		if err := saveRecords(*outPath, results); err != nil {
			slog.Error("failed to write cache file", slog.String("path", *outPath), slog.Any("error", err))
			os.Exit(1)
		}
		slog.Info("wrote message records", slog.String("path", *outPath), slog.Int("count", len(results)))
	}

	for _, r := range results {
		fmt.Printf("%s\t%s\n", r.MessageID, r.UserID)
	}
	slog.Info("messages found", slog.Int("count", len(results)), slog.Bool("from_cache", cached))

	if *del {
		if err := deleteMessages(ctx, gh, results); err != nil {
			slog.Error("delete failed", slog.Any("error", err))
			os.Exit(1)
		}
	}
}

func parseUsers(s string) map[string]bool {
	users := make(map[string]bool)
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			users[id] = true
		}
	}
	return users
}

// loadRecords reads the cache file and keeps records of users. A missing file
// reports cached=false.
func loadRecords(path string, users map[string]bool) ([]Record, bool, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var all []Record
	if err := json.Unmarshal(b, &all); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", path, err)
	}
	out := make([]Record, 0, len(all))
	for _, r := range all {
		if users[r.UserID] {
			out = append(out, r)
		}
	}
	return out, true, nil
}

func saveRecords(path string, recs []Record) error {
	if recs == nil {
		recs = []Record{}
	}
	b, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// findMessages looks up the author of up to limit archived messages and
// returns those written by users, in archive order.
func findMessages(ctx context.Context, l lister, f authorFinder, users map[string]bool, limit, workers int) ([]Record, error) {
	paths, err := l.ListTree(ctx, archive.MessageDir+"/", ".txt")
	if err != nil {
		return nil, fmt.Errorf("list message files: %w", err)
	}
	slog.Info("found message files", slog.Int("count", len(paths)))
	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}

	authors := make([]string, len(paths))
	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, p := range paths {
		id := strings.TrimSuffix(strings.TrimPrefix(p, archive.MessageDir+"/"), ".txt")
		g.Go(func() error {
			author, err := f.FindAuthor(gctx, id)
			n := done.Add(1)
			if n%100 == 0 || int(n) == len(paths) {
				slog.Info("progress", slog.Int64("processed", n), slog.Int("total", len(paths)))
			}
			if errors.Is(err, discord.ErrMessageNotFound) {
				slog.Debug("message not found on discord", slog.String("message_id", id))
				return nil
			}
			if err != nil {
				return err
			}
			authors[i] = author
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Record
	for i, p := range paths {
		if users[authors[i]] {
			id := strings.TrimSuffix(strings.TrimPrefix(p, archive.MessageDir+"/"), ".txt")
			out = append(out, Record{MessageID: id, UserID: authors[i]})
		}
	}
	return out, nil
}

// deleteMessages removes each record's message file. Missing files are skipped.
func deleteMessages(ctx context.Context, st store.Store, recs []Record) error {
	var failed []string
	for _, r := range recs {
		path := archive.MessagePath(r.MessageID)
		err := st.Delete(ctx, path, "", "")
		switch {
		case err == nil:
			slog.Info("deleted message file", slog.String("path", path))
		case store.IsNotFound(err):
			slog.Info("message file already gone", slog.String("path", path))
		default:
			slog.Error("failed to delete message file", slog.String("path", path), slog.Any("error", err))
			failed = append(failed, r.MessageID)
		}
	}
	if len(failed) > 0 {
		slices.Sort(failed)
		return fmt.Errorf("could not delete %d message files: %s", len(failed), strings.Join(failed, ","))
	}
	return nil
}
