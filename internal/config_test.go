package internal

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	t.Setenv(DataDirEnv, t.TempDir())
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if got := cfg.App.HTTP.Address(); got != "127.0.0.1:7733" {
		t.Errorf("address = %q", got)
	}
}

func TestDefaultDataDir_FromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(DataDirEnv, dir)
	cfg := NewDefaultConfig()
	if cfg.Data.Root() != dir {
		t.Errorf("root = %q, want %q", cfg.Data.Root(), dir)
	}
	if cfg.Data.IndexFile() != filepath.Join(dir, "index.db") {
		t.Errorf("index = %q", cfg.Data.IndexFile())
	}
	if cfg.Data.PidFile() != filepath.Join(dir, "xnote.pid") {
		t.Errorf("pid = %q", cfg.Data.PidFile())
	}
}

func TestDataConfig_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	cfg := DataConfig{Dir: "~/notes", ExportDir: "~/out", IndexPath: "~notuser/x.db"}
	if cfg.Root() != filepath.Join(home, "notes") {
		t.Errorf("root = %q", cfg.Root())
	}
	if cfg.Exports() != filepath.Join(home, "out") {
		t.Errorf("exports = %q", cfg.Exports())
	}
	if cfg.IndexFile() != "~notuser/x.db" {
		t.Errorf("index = %q", cfg.IndexFile())
	}
}

func TestHTTPConfig_BaseURL(t *testing.T) {
	cases := map[string]string{
		"":          "http://127.0.0.1:7733",
		"0.0.0.0":   "http://127.0.0.1:7733",
		"localhost": "http://localhost:7733",
		"::1":       "http://[::1]:7733",
	}
	for host, want := range cases {
		c := HTTPConfig{Host: host, Port: 7733}
		if got := c.BaseURL(); got != want {
			t.Errorf("BaseURL(%q) = %q, want %q", host, got, want)
		}
	}
}

func TestAIConfig_RequiresModel(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.AI.Model = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty model should fail validation")
	}
}

func TestShareConfig_TimeoutFloor(t *testing.T) {
	cfg := ShareConfig{Timeout: 10 * time.Millisecond}
	if err := cfg.Validate(); err == nil {
		t.Error("sub-second timeout should fail validation")
	}
}
