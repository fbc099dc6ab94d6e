package app

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	coreconfig "github.com/m3rciful/tiffinbot/core/config"
	coredatabase "github.com/m3rciful/tiffinbot/core/database"
	"github.com/m3rciful/tiffinbot/internal/bot"
	"github.com/m3rciful/tiffinbot/internal/order"
	"github.com/m3rciful/tiffinbot/internal/poll"
)

// PollConfig holds poll behaviour settings.
type PollConfig struct {
	Categories  []string `yaml:"categories" envconfig:"POLL_CATEGORIES"`
	DefaultName string   `yaml:"default_name" envconfig:"POLL_DEFAULT_NAME"`
	// Scope is "conversation" (one poll per chat) or "global".
	Scope string `yaml:"scope" envconfig:"POLL_SCOPE"`
	// ClosePolicy is "owner" or "anyone".
	ClosePolicy string `yaml:"close_policy" envconfig:"POLL_CLOSE_POLICY"`
	// Unrecognized is "ignore", "hint" or "always".
	Unrecognized      string `yaml:"unrecognized" envconfig:"POLL_UNRECOGNIZED"`
	IdleExpiryMinutes int    `yaml:"idle_expiry_minutes" envconfig:"POLL_IDLE_EXPIRY_MINUTES"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Poll     PollConfig          `yaml:"poll"`
	Database coredatabase.Config `yaml:"database"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads YAML from path, overlays the environment and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}
	if err := cfg.Database.Normalize(); err != nil {
		return err
	}
	return cfg.Poll.normalize()
}

func (p *PollConfig) normalize() error {
	for _, c := range p.Categories {
		name := strings.TrimSpace(c)
		if name == "" {
			continue
		}
		for _, r := range name {
			if !unicode.IsLetter(r) {
				return fmt.Errorf("poll.categories: %q must contain letters only", c)
			}
		}
	}

	p.Scope = lowerTrim(p.Scope)
	switch bot.ScopeMode(p.Scope) {
	case "":
		p.Scope = string(bot.ScopeConversation)
	case bot.ScopeConversation, bot.ScopeGlobal:
	default:
		return fmt.Errorf("invalid poll.scope %q; allowed: conversation, global", p.Scope)
	}

	p.ClosePolicy = lowerTrim(p.ClosePolicy)
	switch poll.ClosePolicy(p.ClosePolicy) {
	case "":
		p.ClosePolicy = string(poll.CloseOwner)
	case poll.CloseOwner, poll.CloseAnyone:
	default:
		return fmt.Errorf("invalid poll.close_policy %q; allowed: owner, anyone", p.ClosePolicy)
	}

	p.Unrecognized = lowerTrim(p.Unrecognized)
	switch bot.UnrecognizedPolicy(p.Unrecognized) {
	case "":
		p.Unrecognized = string(bot.UnrecognizedIgnore)
	case bot.UnrecognizedIgnore, bot.UnrecognizedHint, bot.UnrecognizedAlways:
	default:
		return fmt.Errorf("invalid poll.unrecognized %q; allowed: ignore, hint, always", p.Unrecognized)
	}

	if p.IdleExpiryMinutes < 0 {
		return fmt.Errorf("poll.idle_expiry_minutes must be >= 0")
	}
	return nil
}

// Menu returns the configured categories, or the default menu.
func (p PollConfig) Menu() order.Menu {
	return order.NewMenu(p.Categories...)
}

// IdleExpiry converts IdleExpiryMinutes; zero disables expiry.
func (p PollConfig) IdleExpiry() time.Duration {
	return time.Duration(p.IdleExpiryMinutes) * time.Minute
}

func lowerTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
