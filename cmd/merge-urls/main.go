// Package main provides a CLI tool to merge URLs into a day's ledger by hand.
//
// It runs the same read-merge-conditional-write cycle the bot runs for each
// message, so it is safe against concurrent bot writes: a race surfaces as a
// conflict and nothing is overwritten.
//
// Usage:
//
//	merge-urls [-day YYYY-MM-DD] [-dry-run] [-extract] URL...
//
// Flags:
//
//	-day: ledger day (default: today in ARCHIVE_TZ)
//	-dry-run: print the ledger that would be written without writing it
//	-extract: treat arguments as free text and merge the URLs found in it
//
// Environment Variables:
//
//	GH_TOKEN: GitHub token (required)
//	GITHUB_OWNER, GITHUB_REPO, GITHUB_API_URL, ARCHIVE_TZ: as for the bot
//
// Example:
//
//	./merge-urls -day 2025-04-01 https://two.com https://three.com
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ua-community/phenomena/config"
	"github.com/ua-community/phenomena/githubapi"
	"github.com/ua-community/phenomena/ledger"
	"github.com/ua-community/phenomena/store"
	"github.com/ua-community/phenomena/urls"
)

func main() {
	day := flag.String("day", "", "ledger day YYYY-MM-DD (default: today in ARCHIVE_TZ)")
	dryRun := flag.Bool("dry-run", false, "Show the merged ledger without writing it")
	extract := flag.Bool("extract", false, "Extract URLs from the arguments instead of taking them verbatim")
	flag.Parse()

	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := cfg.ValidateGitHub(); err != nil {
		slog.Error("config invalid", slog.Any("error", err))
		os.Exit(1)
	}

	if *day == "" {
		*day = ledger.DayKey(time.Now(), cfg.ArchiveLocation)
	}
	in := collectURLs(flag.Args(), *extract)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gh := githubapi.New(ctx, cfg.GitHubToken, cfg.GitHubOwner, cfg.GitHubRepo).WithRateLimit(cfg.GitHubMaxRPS)
	gh.BaseURL = cfg.GitHubAPIURL

	if err := mergeURLs(ctx, ledger.NewMerger(gh), *day, in, *dryRun, os.Stdout); err != nil {
		slog.Error("merge failed", slog.String("day", *day), slog.Any("error", err))
		os.Exit(1)
	}
}

// collectURLs returns the URLs to merge from command-line arguments.
func collectURLs(args []string, extract bool) []string {
	if !extract {
		out := make([]string, 0, len(args))
		for _, a := range args {
			if a = strings.TrimSpace(a); a != "" {
				out = append(out, a)
			}
		}
		return out
	}
	return urls.Extract(strings.Join(args, " "))
}

// mergeURLs merges in into day's ledger, or with dryRun prints the content a
// merge would write.
func mergeURLs(ctx context.Context, m *ledger.Merger, day string, in []string, dryRun bool, out io.Writer) error {
	if !ledger.ValidDay(day) {
		return fmt.Errorf("invalid day %q: want YYYY-MM-DD", day)
	}
	if len(in) == 0 {
		return errors.New("no URLs given")
	}
	logger := slog.With(slog.String("path", ledger.Path(day)), slog.Int("urls", len(in)), slog.Bool("dry_run", dryRun))

	if dryRun {
		p, err := m.Plan(ctx, day, in)
		if err != nil {
			return err
		}
		if !p.Write {
			logger.Info("all URLs already recorded; nothing would be written")
			return nil
		}
		logger.Info("would write ledger (dry-run)", slog.Bool("exists", p.Exists), slog.Int("added", len(p.Added)))
		_, err = fmt.Fprintln(out, p.Content)
		return err
	}

	res, err := m.Merge(ctx, day, in)
	if err != nil {
		if store.IsConflict(err) {
			return fmt.Errorf("ledger changed while merging, run again: %w", err)
		}
		return err
	}
	if !res.Written {
		logger.Info("all URLs already recorded; nothing written")
		return nil
	}
	logger.Info("ledger written", slog.Int("added", len(res.Added)), slog.String("sha", res.SHA))
	return nil
}
