package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration accepts Go duration strings like "24h" in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Settings holds runtime configuration loaded from a YAML file. Secrets may
// be supplied or overridden through environment variables so the file can be
// committed without credentials.
type Settings struct {
	DiscordToken  string   `yaml:"discord_token"`
	DatabaseURL   string   `yaml:"database_url"`
	CommandPrefix string   `yaml:"command_prefix"`
	Guilds        []string `yaml:"guilds"`
	MaxConns      int32    `yaml:"max_conns"`

	Decay struct {
		InactiveDays  int      `yaml:"inactive_days"`
		Percent       int      `yaml:"percent"`
		CheckInterval Duration `yaml:"check_interval"`
	} `yaml:"decay"`
}

// Load reads settings from path (optional), then applies environment
// overrides DISCORD_BOT_TOKEN and DATABASE_URL.
func Load(path string) (Settings, error) {
	s := Settings{CommandPrefix: "!", MaxConns: 6}
	s.Decay.InactiveDays = DefaultDecay.InactiveDays
	s.Decay.Percent = DefaultDecay.Percent
	s.Decay.CheckInterval = Duration(DefaultDecay.CheckInterval)

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &s); err != nil {
			return Settings{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if tok := os.Getenv("DISCORD_BOT_TOKEN"); tok != "" {
		s.DiscordToken = tok
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		s.DatabaseURL = dsn
	}

	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) validate() error {
	// The decay processor treats a non-positive percent as unset and falls
	// back to the default, so a configured 0 must be rejected here rather
	// than silently becoming 10.
	if s.Decay.Percent < 1 || s.Decay.Percent > 100 {
		return fmt.Errorf("decay percent must be within 1-100, got %d", s.Decay.Percent)
	}
	if s.Decay.InactiveDays <= 0 {
		return fmt.Errorf("decay inactive_days must be positive, got %d", s.Decay.InactiveDays)
	}
	if s.Decay.CheckInterval <= 0 {
		return fmt.Errorf("decay check_interval must be positive, got %s", time.Duration(s.Decay.CheckInterval))
	}
	if s.CommandPrefix == "" {
		return fmt.Errorf("command_prefix must not be empty")
	}
	return nil
}

// DecaySettings converts the runtime decay section into the domain settings
// used by the sweep.
func (s Settings) DecaySettings() DecaySettings {
	return DecaySettings{
		InactiveDays:  s.Decay.InactiveDays,
		Percent:       s.Decay.Percent,
		CheckInterval: time.Duration(s.Decay.CheckInterval),
	}
}
