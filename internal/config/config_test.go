package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

// TestDefaults verifies all default values are applied when loading an empty config file.
func TestDefaults(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, "# empty config\n")

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Path != "karl_database.db" {
		t.Errorf("Database.Path = %q, want karl_database.db", cfg.Database.Path)
	}
	if cfg.Report.Profile != "types" {
		t.Errorf("Report.Profile = %q, want types", cfg.Report.Profile)
	}
	if cfg.Report.TopTypes != 10 {
		t.Errorf("Report.TopTypes = %d, want 10", cfg.Report.TopTypes)
	}
	if cfg.Report.RecentLimit != 5 {
		t.Errorf("Report.RecentLimit = %d, want 5", cfg.Report.RecentLimit)
	}
	if cfg.Report.PreviewBytes != 32 {
		t.Errorf("Report.PreviewBytes = %d, want 32", cfg.Report.PreviewBytes)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
	if cfg.Server.MaxConns != 16 {
		t.Errorf("Server.MaxConns = %d, want 16", cfg.Server.MaxConns)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
}

// TestMissingFile verifies a missing config file falls back to defaults silently.
func TestMissingFile(t *testing.T) {
	clearEnv(t)

	cfg, err := loadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Path != "karl_database.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
}

// TestYAMLParsing verifies that all fields are correctly read from a YAML file.
func TestYAMLParsing(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `
database.path: /var/lib/karl/karl_database.db
report.profile: users
report.top_types: 3
report.recent_limit: 7
report.preview_bytes: "16"
server.port: 5000
server.max_conns: 4
log.level: debug
`)

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Path != "/var/lib/karl/karl_database.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Report.Profile != "users" {
		t.Errorf("Report.Profile = %q", cfg.Report.Profile)
	}
	if cfg.Report.TopTypes != 3 {
		t.Errorf("Report.TopTypes = %d", cfg.Report.TopTypes)
	}
	if cfg.Report.RecentLimit != 7 {
		t.Errorf("Report.RecentLimit = %d", cfg.Report.RecentLimit)
	}
	if cfg.Report.PreviewBytes != 16 {
		t.Errorf("Report.PreviewBytes = %d", cfg.Report.PreviewBytes)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if cfg.Server.MaxConns != 4 {
		t.Errorf("Server.MaxConns = %d", cfg.Server.MaxConns)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

// TestEnvOverride verifies that environment variables override config file values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, "database.path: from-file.db\nserver.port: 5000\n")

	t.Setenv("DBCHECK_DATABASE_PATH", "from-env.db")
	t.Setenv("DBCHECK_SERVER_PORT", "6000")

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Path != "from-env.db" {
		t.Errorf("Database.Path = %q, want from-env.db", cfg.Database.Path)
	}
	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want 6000", cfg.Server.Port)
	}
}

// TestEnvOverrideInvalidInt verifies a bad integer env var keeps the previous value.
func TestEnvOverrideInvalidInt(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, "report.top_types: 4\n")
	t.Setenv("DBCHECK_REPORT_TOP_TYPES", "many")

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Report.TopTypes != 4 {
		t.Errorf("Report.TopTypes = %d, want 4", cfg.Report.TopTypes)
	}
}

func TestInvalidFileValue(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, "server.port: not-a-number\n")

	_, err := loadFromPath(path)
	if err == nil {
		t.Fatal("expected error for non-integer server.port")
	}
	if !strings.Contains(err.Error(), "server.port") {
		t.Errorf("error = %q, want it to mention server.port", err.Error())
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"empty path", `database.path: ""`, "database.path is required"},
		{"zero top types", "report.top_types: 0", "report.top_types"},
		{"negative recent", "report.recent_limit: -1", "report.recent_limit"},
		{"port range", "server.port: 70000", "server.port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := loadFromPath(writeTempConfig(t, tt.content+"\n"))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.want)
			}
		})
	}
}

// TestSetKeyRoundTrip verifies values written through the backend are read back by Load.
func TestSetKeyRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "dbcheck", "config.yaml")

	if err := setKeyWith(newFileBackend(path), "database.path", "other.db"); err != nil {
		t.Fatalf("set database.path: %v", err)
	}
	if err := setKeyWith(newFileBackend(path), "report.recent_limit", "9"); err != nil {
		t.Fatalf("set report.recent_limit: %v", err)
	}

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if cfg.Database.Path != "other.db" {
		t.Errorf("Database.Path = %q, want other.db", cfg.Database.Path)
	}
	if cfg.Report.RecentLimit != 9 {
		t.Errorf("Report.RecentLimit = %d, want 9", cfg.Report.RecentLimit)
	}
}

func TestSetKeyErrors(t *testing.T) {
	b := newFileBackend(filepath.Join(t.TempDir(), "config.yaml"))

	if err := setKeyWith(b, "no.such.key", "x"); err == nil || !strings.Contains(err.Error(), "unknown config key") {
		t.Errorf("unknown key error = %v", err)
	}
	if err := setKeyWith(b, "no.such.key", "x"); err == nil || !strings.Contains(err.Error(), "database.path") {
		t.Errorf("unknown key error should list valid keys, got %v", err)
	}
	if err := setKeyWith(b, "server.port", "abc"); err == nil || !strings.Contains(err.Error(), "invalid integer") {
		t.Errorf("invalid int error = %v", err)
	}
}

// TestUnsetKey verifies an unset key falls back to its default.
func TestUnsetKey(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, "report.profile: full\nserver.port: 5000\n")

	if err := unsetKeyWith(newFileBackend(path), "report.profile"); err != nil {
		t.Fatalf("unset: %v", err)
	}

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if cfg.Report.Profile != "types" {
		t.Errorf("Report.Profile = %q, want default types", cfg.Report.Profile)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000 to survive", cfg.Server.Port)
	}

	b := newFileBackend(path)
	if err := unsetKeyWith(b, "no.such.key"); err == nil || !strings.Contains(err.Error(), "unknown config key") {
		t.Errorf("unknown key error = %v", err)
	}
	if err := unsetKeyWith(b, "server.token"); err == nil || !strings.Contains(err.Error(), "cannot unset secret") {
		t.Errorf("secret unset error = %v", err)
	}
}

// TestSecretFromEnvOnly verifies server.token is ignored in the file and read from env.
func TestSecretFromEnvOnly(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, "server.token: from-file\n")

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Token != "" {
		t.Errorf("Server.Token = %q, want empty", cfg.Server.Token)
	}

	t.Setenv("DBCHECK_SERVER_TOKEN", "s3cret")
	cfg, err = loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Token != "s3cret" {
		t.Errorf("Server.Token = %q, want s3cret", cfg.Server.Token)
	}

	if err := setKeyWith(newFileBackend(path), "server.token", "x"); err == nil || !strings.Contains(err.Error(), "cannot set secret") {
		t.Errorf("setting secret error = %v", err)
	}
	for _, k := range ShowAll(cfg) {
		if k.Key == "server.token" {
			t.Error("ShowAll exposed server.token")
		}
	}
}

func TestShowAll(t *testing.T) {
	keys := ShowAll(defaults())
	if len(keys) != len(ValidKeys()) {
		t.Fatalf("ShowAll returned %d keys, want %d", len(keys), len(ValidKeys()))
	}
	found := false
	for _, k := range keys {
		if k.Key == "database.path" {
			found = true
			if k.Value != "karl_database.db" || k.EnvVar != "DBCHECK_DATABASE_PATH" {
				t.Errorf("database.path = %+v", k)
			}
		}
	}
	if !found {
		t.Error("database.path missing from ShowAll")
	}
}
