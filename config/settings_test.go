package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rankbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "!", s.CommandPrefix)
	assert.Equal(t, int32(6), s.MaxConns)
	assert.Equal(t, DefaultDecay.InactiveDays, s.Decay.InactiveDays)
	assert.Equal(t, DefaultDecay.Percent, s.Decay.Percent)
	assert.Equal(t, Duration(DefaultDecay.CheckInterval), s.Decay.CheckInterval)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
discord_token: file-token
database_url: postgres://localhost/rankbot
command_prefix: "?"
max_conns: 12
decay:
  inactive_days: 14
  percent: 25
  check_interval: 6h
`)
	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file-token", s.DiscordToken)
	assert.Equal(t, "postgres://localhost/rankbot", s.DatabaseURL)
	assert.Equal(t, "?", s.CommandPrefix)
	assert.Equal(t, int32(12), s.MaxConns)
	assert.Equal(t, 14, s.Decay.InactiveDays)
	assert.Equal(t, 25, s.Decay.Percent)
	assert.Equal(t, Duration(6*time.Hour), s.Decay.CheckInterval)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "discord_token: file-token\ndatabase_url: file-dsn\n")
	t.Setenv("DISCORD_BOT_TOKEN", "env-token")
	t.Setenv("DATABASE_URL", "env-dsn")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-token", s.DiscordToken)
	assert.Equal(t, "env-dsn", s.DatabaseURL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"percent above 100", "decay:\n  percent: 150\n"},
		{"percent zero", "decay:\n  percent: 0\n"},
		{"negative inactive days", "decay:\n  inactive_days: -1\n"},
		{"zero interval", "decay:\n  check_interval: 0s\n"},
		{"empty prefix", `command_prefix: ""` + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestDecaySettingsConversion(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	d := s.DecaySettings()
	assert.Equal(t, s.Decay.InactiveDays, d.InactiveDays)
	assert.Equal(t, s.Decay.Percent, d.Percent)
	assert.Equal(t, time.Duration(s.Decay.CheckInterval), d.CheckInterval)
}

func TestValidationsNeeded(t *testing.T) {
	assert.Equal(t, int64(1), ValidationsNeeded(RankContributor))
	assert.Equal(t, int64(2), ValidationsNeeded(RankElite))
	assert.Zero(t, ValidationsNeeded(RankMember))
	assert.Zero(t, ValidationsNeeded(RankRuler), "leadership ranks are assigned, never promoted into")
}
