// cliparse/cliparse_test.go
package cliparse

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://test")
	t.Setenv("VOTER_TOKEN_SALT", "test-salt")
}

func TestParseFlags_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := ParseFlags([]string{})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != DefaultPort {
		t.Errorf("expected port %d, got %d", DefaultPort, cfg.Port)
	}
	if cfg.DatabaseType != "sqlite" {
		t.Errorf("expected sqlite, got %s", cfg.DatabaseType)
	}
	if cfg.FlushInterval != 5*time.Second {
		t.Errorf("expected 5s flush interval, got %v", cfg.FlushInterval)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("expected 5m cache TTL, got %v", cfg.CacheTTL)
	}
	if cfg.BatchSize != 500 {
		t.Errorf("expected batch size 500, got %d", cfg.BatchSize)
	}
	if cfg.Trust.Neutral != 50 {
		t.Errorf("expected neutral trust 50, got %v", cfg.Trust.Neutral)
	}
	if cfg.TrustProxy || cfg.Rebuild {
		t.Errorf("proxy trust and rebuild must be opt-in, got %+v", cfg)
	}
}

func TestParseFlags_ProxyAndRebuild(t *testing.T) {
	setRequired(t)
	t.Setenv("TRUST_PROXY", "true")

	cfg, err := ParseFlags([]string{"-rebuild"})
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.TrustProxy {
		t.Error("expected TRUST_PROXY to enable proxy trust")
	}
	if !cfg.Rebuild {
		t.Error("expected -rebuild to request a rebuild")
	}

	t.Setenv("TRUST_PROXY", "sometimes")
	if _, err := ParseFlags([]string{}); err == nil {
		t.Error("expected error for invalid TRUST_PROXY")
	}
}

func TestParseFlags_EnvVars(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9000")
	t.Setenv("FLUSH_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT", "7.5")

	cfg, err := ParseFlags([]string{})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Port)
	}
	if cfg.FlushInterval != 2*time.Second {
		t.Errorf("expected 2s, got %v", cfg.FlushInterval)
	}
	if cfg.RateLimit != 7.5 {
		t.Errorf("expected rate limit 7.5, got %v", cfg.RateLimit)
	}
}

func TestParseFlags_CLIOverridesEnv(t *testing.T) {
	t.Setenv("PORT", "9000")

	cfg, err := ParseFlags([]string{"-p", "8080", "-d", "file:test.db", "-voter-salt", "s1"})
	if err != nil {
		t.Fatal(err)
	}

	// CLI should override env
	if cfg.Port != 8080 {
		t.Errorf("CLI should override env: expected 8080, got %d", cfg.Port)
	}
	if cfg.VoterTokenSalt != "s1" {
		t.Errorf("expected salt from flag, got %q", cfg.VoterTokenSalt)
	}
}

func TestParseFlags_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "votes.yaml")
	yaml := `
port: 7000
database_url: file:from-yaml.db
flush_interval: 750ms
batch_size: 100
trust:
  up_weight: 2
  down_weight: 1
  neutral: 50
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("VOTER_TOKEN_SALT", "test-salt")
	t.Setenv("PORT", "7100")

	cfg, err := ParseFlags([]string{"-config", path, "-batch-size", "50"})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 7100 {
		t.Errorf("env should override file: expected 7100, got %d", cfg.Port)
	}
	if cfg.DatabaseURL != "file:from-yaml.db" {
		t.Errorf("expected database URL from file, got %q", cfg.DatabaseURL)
	}
	if cfg.FlushInterval != 750*time.Millisecond {
		t.Errorf("expected 750ms, got %v", cfg.FlushInterval)
	}
	if cfg.BatchSize != 50 {
		t.Errorf("flag should override file: expected 50, got %d", cfg.BatchSize)
	}
	if cfg.CacheTTL != DefaultCacheTTL {
		t.Errorf("missing keys keep defaults: got %v", cfg.CacheTTL)
	}
	if cfg.Trust.UpWeight != 2 {
		t.Errorf("expected up weight 2, got %v", cfg.Trust.UpWeight)
	}
}

func TestParseFlags_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{"missing salt", map[string]string{"DATABASE_URL": "file:x.db"}, nil},
		{"missing database", map[string]string{"VOTER_TOKEN_SALT": "s"}, nil},
		{"bad port", map[string]string{"DATABASE_URL": "file:x.db", "VOTER_TOKEN_SALT": "s", "PORT": "abc"}, nil},
		{"bad duration", map[string]string{"DATABASE_URL": "file:x.db", "VOTER_TOKEN_SALT": "s", "CACHE_TTL": "soon"}, nil},
		{"unknown database type", map[string]string{"DATABASE_URL": "file:x.db", "VOTER_TOKEN_SALT": "s"}, []string{"-t", "mysql"}},
		{"batch too large", map[string]string{"DATABASE_URL": "file:x.db", "VOTER_TOKEN_SALT": "s"}, []string{"-batch-size", "501"}},
		{"missing config file", map[string]string{"DATABASE_URL": "file:x.db", "VOTER_TOKEN_SALT": "s"}, []string{"-config", "/nonexistent/votes.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Blank out anything inherited from the environment
			for _, k := range []string{"DATABASE_URL", "VOTER_TOKEN_SALT", "PORT", "CACHE_TTL", "CONFIG_FILE"} {
				t.Setenv(k, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			if _, err := ParseFlags(tt.args); err == nil {
				t.Error("expected error")
			}
		})
	}
}
