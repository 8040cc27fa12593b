package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DISCORD_KEY", "BOT_TOKEN", "ADMIN_IDS", "DEBUG_CHANNEL_ID", "DB_DRIVER", "DB_PATH", "STATUS_ADDR"} {
		t.Setenv(k, "")
	}
}

func TestLoadRequiresToken(t *testing.T) {
	clearEnv(t)
	if _, err := Load("", ""); err == nil {
		t.Fatal("expected error without DISCORD_KEY")
	}
}

func TestLoadDefaultsWithoutSettingsFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", "abc")

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DiscordKey != "abc" {
		t.Errorf("DiscordKey = %q", cfg.DiscordKey)
	}
	if cfg.Prefix != "!" {
		t.Errorf("Prefix = %q, want !", cfg.Prefix)
	}
	if cfg.SweepInterval != 10*time.Second {
		t.Errorf("SweepInterval = %v", cfg.SweepInterval)
	}
	if cfg.MovieCooldownDays != 182 {
		t.Errorf("MovieCooldownDays = %d", cfg.MovieCooldownDays)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.DSN() != "database.db" {
		t.Errorf("DB = %+v", cfg.DB)
	}
}

func TestLoadSettingsFileAndEnvOverride(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	yaml := `
admin_ids: ["111", " 222 "]
debug_channel_id: "900"
clip_channel_id: "901"
sweep_interval: 30s
reaction_roles:
  channel_id: "10"
  message_id: "20"
  roles:
    - name: rust
      emoji_id: "e1"
      role_id: "r1"
      label: Updates for Rust
swear_words: [darn, heck]
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DISCORD_KEY", "k")
	t.Setenv("DEBUG_CHANNEL_ID", "999")

	cfg, err := Load("", path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.AdminIDs) != 2 || cfg.AdminIDs[1] != "222" {
		t.Errorf("AdminIDs = %q", cfg.AdminIDs)
	}
	if cfg.DebugChannelID != "999" {
		t.Errorf("DebugChannelID = %q, want env override 999", cfg.DebugChannelID)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Errorf("SweepInterval = %v", cfg.SweepInterval)
	}
	rr := cfg.ReactionRoles
	if rr.MessageID != "20" || len(rr.Roles) != 1 || rr.Roles[0].RoleID != "r1" {
		t.Errorf("ReactionRoles = %+v", rr)
	}
	if len(cfg.SwearWords) != 2 {
		t.Errorf("SwearWords = %q", cfg.SwearWords)
	}

	t.Setenv("ADMIN_IDS", "5, 6,,7")
	cfg, err = Load("", path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.AdminIDs) != 3 || cfg.AdminIDs[0] != "5" {
		t.Errorf("AdminIDs env override = %q", cfg.AdminIDs)
	}
}

func TestLoadExplicitMissingSettingsFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_KEY", "k")
	if _, err := Load("", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing explicit settings file")
	}
}

func TestMySQLDSN(t *testing.T) {
	db := Database{Driver: "mysql", Host: "h", User: "u", Password: "p", Name: "n"}
	want := "u:p@tcp(h:3306)/n?charset=utf8mb4&parseTime=True&loc=UTC"
	if got := db.DSN(); got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
}
