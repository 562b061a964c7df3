package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func requiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DISCORD_GUILD_ID", "42")
	t.Setenv("NATS_URL", "")
	t.Setenv("MAX_RACES", "")
	t.Setenv("RACE_AUTO_CLOSE_AFTER", "")
	t.Setenv("LOG_LEVEL", "")
}

func TestLoadDefaults(t *testing.T) {
	requiredEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Races.AutoCloseAfter != 5*time.Minute || cfg.Races.MaxActive != 40 {
		t.Errorf("races = %+v", cfg.Races)
	}
	if cfg.Discord.CategoryName != "Race Rooms" || cfg.Discord.StaffRole != "SPRINT Staff" {
		t.Errorf("discord = %+v", cfg.Discord)
	}
	if cfg.Events.NATSURL != "" {
		t.Errorf("nats url = %q, want disabled by default", cfg.Events.NATSURL)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	requiredEnv(t)
	path := filepath.Join(t.TempDir(), "racebot.yaml")
	data := `
races:
  default_goal: Boss Rush
  max_active: 5
  auto_close_after: 2m
gateway:
  addr: ":9000"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MAX_RACES", "7")
	t.Setenv("RACE_AUTO_CLOSE_AFTER", "90")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Races.DefaultGoal != "Boss Rush" || cfg.Gateway.Addr != ":9000" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Races.MaxActive != 7 {
		t.Errorf("max active = %d, want env override", cfg.Races.MaxActive)
	}
	if cfg.Races.AutoCloseAfter != 90*time.Second {
		t.Errorf("auto close = %s", cfg.Races.AutoCloseAfter)
	}
}

func TestLoadValidation(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("DISCORD_GUILD_ID", "")
	t.Setenv("LOG_LEVEL", "loud")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"DISCORD_TOKEN", "DISCORD_GUILD_ID", "log level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadBadDuration(t *testing.T) {
	requiredEnv(t)
	t.Setenv("RACE_AUTO_CLOSE_AFTER", "soon")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadRelay(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("APPLICATION", "racebot-test")

	cfg, err := LoadRelay()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 12201 || cfg.Application != "racebot-test" || cfg.Subject != "telemetry.logs" {
		t.Errorf("relay = %+v", cfg)
	}

	t.Setenv("PORT", "70000")
	if _, err := LoadRelay(); err == nil {
		t.Error("expected invalid port error")
	}
}

func TestSetupLogging(t *testing.T) {
	if err := SetupLogging(LogConfig{Level: "debug", Format: "json"}); err != nil {
		t.Fatal(err)
	}
	if err := SetupLogging(LogConfig{Level: "info", Format: "xml"}); err == nil {
		t.Error("expected unknown format error")
	}
}
