package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CRAWLER_API_HOST", "https://public-api.example.com")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.Limit != DefaultAPILimit {
		t.Errorf("API.Limit = %d, want %d", cfg.API.Limit, DefaultAPILimit)
	}
	if cfg.Intervals.TooManyRequests != 10*time.Second {
		t.Errorf("Intervals.TooManyRequests = %s, want 10s", cfg.Intervals.TooManyRequests)
	}
	if cfg.Lock.ExpireTime != 60*time.Second {
		t.Errorf("Lock.ExpireTime = %s, want 60s", cfg.Lock.ExpireTime)
	}
	if got, want := cfg.API.ResourceURL(), "https://public-api.example.com/api/2.5/tenders"; got != want {
		t.Errorf("ResourceURL = %q, want %q", got, want)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CRAWLER_API_HOST", "https://public-api.example.com")
	t.Setenv("CRAWLER_API_LIMIT", "25")
	t.Setenv("CRAWLER_INTERVALS_FEED_STEP", "2s")
	t.Setenv("CRAWLER_INTERVALS_CONNECTION_ERROR", "7")
	t.Setenv("CRAWLER_API_OPT_FIELDS", "status,dateModified")
	t.Setenv("CRAWLER_DATE_MODIFIED_LOCK_ENABLED", "true")
	t.Setenv("CRAWLER_MONGO_URL", "mongodb://localhost:27017")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.Limit != 25 {
		t.Errorf("API.Limit = %d, want 25", cfg.API.Limit)
	}
	if cfg.Intervals.FeedStep != 2*time.Second {
		t.Errorf("Intervals.FeedStep = %s, want 2s", cfg.Intervals.FeedStep)
	}
	// bare numbers are seconds
	if cfg.Intervals.ConnectionError != 7*time.Second {
		t.Errorf("Intervals.ConnectionError = %s, want 7s", cfg.Intervals.ConnectionError)
	}
	if len(cfg.API.OptFields) != 2 || cfg.API.OptFields[0] != "status" || cfg.API.OptFields[1] != "dateModified" {
		t.Errorf("API.OptFields = %v, want [status dateModified]", cfg.API.OptFields)
	}
	if !cfg.DateModified.LockEnabled {
		t.Error("DateModified.LockEnabled = false, want true")
	}
}

func TestValidateRejectsBadHost(t *testing.T) {
	cases := []struct {
		name string
		host string
	}{
		{"no scheme", "public-api.example.com"},
		{"trailing slash", "https://public-api.example.com/"},
		{"empty", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			cfg.API.Host = tc.host
			if err := Validate(cfg); err == nil {
				t.Errorf("Validate accepted host %q", tc.host)
			}
		})
	}
}

func TestValidateRejectsLockWithoutMongo(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.API.Host = "https://public-api.example.com"
	cfg.Lock.Enabled = true
	if err := Validate(cfg); err == nil {
		t.Error("Validate accepted lock.enabled without mongo.url")
	}
}

func TestValidateRejectsLoneBootstrapOffset(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.API.Host = "https://public-api.example.com"
	cfg.Bootstrap.ForwardOffset = "123.0"
	if err := Validate(cfg); err == nil {
		t.Error("Validate accepted a lone bootstrap offset")
	}
}

func TestSaveAndReloadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := GetDefaultConfig()
	cfg.API.Host = "https://public-api.example.com"
	cfg.API.Token = "secret"
	cfg.Mongo.URL = "mongodb://localhost:27017"

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.API.Token != "secret" {
		t.Errorf("API.Token = %q, want secret", loaded.API.Token)
	}
	if loaded.Mongo.URL != "mongodb://localhost:27017" {
		t.Errorf("Mongo.URL = %q", loaded.Mongo.URL)
	}
}

func TestDefaultWarnings(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.API.Host = "https://public-api.example.com"
	cfg.Mongo.URL = "mongodb://localhost:27017"
	cfg.Lock.Enabled = true

	warnings := cfg.DefaultWarnings()
	if len(warnings) < 3 {
		t.Errorf("expected warnings about state_id, process_name and user agent, got %v", warnings)
	}

	cfg.Mongo.StateID = "my-crawler-state"
	cfg.Lock.ProcessName = "my-crawler"
	cfg.API.UserAgent = "MyCrawler/2.1"
	if warnings := cfg.DefaultWarnings(); len(warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warnings)
	}
}
