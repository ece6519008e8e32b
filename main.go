// Command phenomena is the User & Agents archive bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to the Discord gateway and archives messages from members holding
//     the archive role into a GitHub repository (msgs/<id>.txt), merging any URLs
//     into the day's ledger (urls/<YYYY-MM-DD>.txt).
//   - Toggles the archive role when the ✨ reaction is added to or removed from
//     the role message.
//   - Exposes a minimal HTTP server with /healthz, /readyz, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ua-community/phenomena/archive"
	"github.com/ua-community/phenomena/config"
	"github.com/ua-community/phenomena/discord"
	"github.com/ua-community/phenomena/githubapi"
	"github.com/ua-community/phenomena/ledger"
	"github.com/ua-community/phenomena/roles"
	"github.com/ua-community/phenomena/server"
	"github.com/ua-community/phenomena/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		// unknown level -> keep info but note once using temporary logger
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config invalid", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("phenomena", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gh := githubapi.New(ctx, cfg.GitHubToken, cfg.GitHubOwner, cfg.GitHubRepo).WithRateLimit(cfg.GitHubMaxRPS)
	gh.BaseURL = cfg.GitHubAPIURL

	pingCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
	if branch, err := gh.DefaultBranch(pingCtx); err != nil {
		slog.Warn("archive repository not reachable yet", slog.String("repo", cfg.GitHubOwner+"/"+cfg.GitHubRepo), slog.Any("err", err))
	} else {
		slog.Info("archive repository reachable", slog.String("repo", cfg.GitHubOwner+"/"+cfg.GitHubRepo), slog.String("branch", branch))
	}
	cancel()

	var ledgerOpts []ledger.Option
	if cfg.LedgerSerialize {
		ledgerOpts = append(ledgerOpts, ledger.WithSerialization())
	}
	merger := ledger.NewMerger(gh, ledgerOpts...)

	gw, err := discord.NewGateway(cfg.DiscordToken)
	if err != nil {
		slog.Error("discord session setup failed", slog.Any("err", err))
		os.Exit(1)
	}
	svc := archive.NewService(gh, merger,
		archive.WithLocation(cfg.ArchiveLocation),
		archive.WithReplier(gw),
	)
	toggle := roles.NewToggle(roles.Binding{
		MessageID: cfg.ReactionRoleMessageID,
		Emoji:     cfg.ReactionRoleEmoji,
		RoleID:    cfg.ReactionRoleID,
	}, gw, gw)
	bot := discord.NewBot(gw, svc, toggle, cfg.ArchiveRoleID)

	slog.Info("starting archive bot",
		slog.String("repo", cfg.GitHubOwner+"/"+cfg.GitHubRepo),
		slog.String("archive_role", cfg.ArchiveRoleID),
		slog.String("day_zone", cfg.ArchiveLocation.String()),
		slog.Bool("ledger_serialized", merger.Serialized()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bot.Run(gctx) })
	g.Go(func() error {
		return server.Start(gctx, cfg.HTTPAddr, server.Checks{Gateway: bot.Connected, Store: gh.Ping})
	})

	if err := g.Wait(); err != nil {
		slog.Error("shutting down after failure", slog.Any("err", err))
		shutdown()
		os.Exit(1)
	}
	slog.Info("shutting down")
}
