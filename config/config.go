// Package config loads environment variables and provides a typed Config used across the bot.
// It applies defaults matching the production archive so only credentials need to be set.
// Use Validate before connecting to Discord or GitHub.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ua-community/phenomena/ledger"
)

// Defaults for the U&A archive.
const (
	DefaultGitHubOwner           = "ua-community"
	DefaultGitHubRepo            = "ua-discord-archive"
	DefaultGitHubAPIURL          = "https://api.github.com"
	DefaultArchiveRoleID         = "1356666056201998426"
	DefaultReactionRoleMessageID = "1356979729764450555"
	DefaultReactionRoleEmoji     = "✨"
	DefaultHTTPAddr              = ":8080"
)

type Config struct {
	// Discord
	DiscordToken    string
	DiscordClientID string
	DiscordGuildID  string

	// GitHub archive repository
	GitHubToken  string
	GitHubOwner  string
	GitHubRepo   string
	GitHubAPIURL string
	GitHubMaxRPS float64

	// Archiving
	ArchiveRoleID   string
	ArchiveLocation *time.Location
	LedgerSerialize bool

	// Reaction role
	ReactionRoleMessageID string
	ReactionRoleEmoji     string
	ReactionRoleID        string

	// Operational HTTP
	HTTPAddr string
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// Load reads environment variables and applies defaults. Missing credentials
// are not an error here; call Validate when they are required.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DiscordToken = os.Getenv("DISCORD_TOKEN")
	cfg.DiscordClientID = os.Getenv("DISCORD_CLIENT_ID")
	cfg.DiscordGuildID = os.Getenv("DISCORD_GUILD_ID")

	cfg.GitHubToken = os.Getenv("GH_TOKEN")
	cfg.GitHubOwner = envOr("GITHUB_OWNER", DefaultGitHubOwner)
	cfg.GitHubRepo = envOr("GITHUB_REPO", DefaultGitHubRepo)
	cfg.GitHubAPIURL = strings.TrimRight(envOr("GITHUB_API_URL", DefaultGitHubAPIURL), "/")
	if v := os.Getenv("GITHUB_MAX_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps < 0 {
			return nil, fmt.Errorf("invalid GITHUB_MAX_RPS %q: want a non-negative number", v)
		}
		cfg.GitHubMaxRPS = rps
	}

	cfg.ArchiveRoleID = envOr("ARCHIVE_ROLE_ID", DefaultArchiveRoleID)
	loc, err := ledger.ParseLocation(os.Getenv("ARCHIVE_TZ"))
	if err != nil {
		return nil, fmt.Errorf("invalid ARCHIVE_TZ: %w", err)
	}
	cfg.ArchiveLocation = loc
	if v := os.Getenv("LEDGER_SERIALIZE"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid LEDGER_SERIALIZE %q: %w", v, err)
		}
		cfg.LedgerSerialize = on
	}

	cfg.ReactionRoleMessageID = envOr("REACTION_ROLE_MESSAGE_ID", DefaultReactionRoleMessageID)
	cfg.ReactionRoleEmoji = envOr("REACTION_ROLE_EMOJI", DefaultReactionRoleEmoji)
	cfg.ReactionRoleID = envOr("REACTION_ROLE_ID", cfg.ArchiveRoleID)

	cfg.HTTPAddr = envOr("HTTP_ADDR", DefaultHTTPAddr)

	return cfg, nil
}

// ValidateGitHub checks the credentials needed to reach the archive repository.
func (c *Config) ValidateGitHub() error {
	if c.GitHubToken == "" {
		return fmt.Errorf("missing github env: require GH_TOKEN")
	}
	if c.GitHubOwner == "" || c.GitHubRepo == "" {
		return fmt.Errorf("missing github env: require GITHUB_OWNER and GITHUB_REPO")
	}
	return nil
}

// Validate checks everything the bot needs to run.
func (c *Config) Validate() error {
	if c.DiscordToken == "" {
		return fmt.Errorf("missing discord env: require DISCORD_TOKEN")
	}
	return c.ValidateGitHub()
}
