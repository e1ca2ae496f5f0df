package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d", cfg.Server.Port)
	}
	if cfg.Render.Mode != "remote" {
		t.Errorf("default render mode = %q", cfg.Render.Mode)
	}
	if cfg.LLM.Model != "gemini-2.5-flash" {
		t.Errorf("default model = %q", cfg.LLM.Model)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.MinWait != 4*time.Second || cfg.Retry.MaxWait != 10*time.Second {
		t.Errorf("default retry config = %+v", cfg.Retry)
	}
	if len(cfg.Funds.Disabled) != 1 || cfg.Funds.Disabled[0] != "BTCO" {
		t.Errorf("default disabled funds = %v", cfg.Funds.Disabled)
	}
	if cfg.Cache.MaxAge != time.Hour {
		t.Errorf("default cache max age = %v", cfg.Cache.MaxAge)
	}
	if !cfg.Auth.Enabled {
		t.Error("auth should default to enabled")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TREASURY_PORT", "9999")
	t.Setenv("TREASURY_RENDER_MODE", "browser")
	t.Setenv("TREASURY_RETRY_MIN_WAIT", "250ms")
	t.Setenv("TREASURY_DISABLED_FUNDS", "BTCO, DEFI ,FBTC")
	t.Setenv("TREASURY_AUTH_ENABLED", "false")
	t.Setenv("TREASURY_RATE_RPS", "2.5")

	cfg := Load()

	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Render.Mode != "browser" {
		t.Errorf("render mode = %q", cfg.Render.Mode)
	}
	if cfg.Retry.MinWait != 250*time.Millisecond {
		t.Errorf("retry min wait = %v", cfg.Retry.MinWait)
	}
	want := []string{"BTCO", "DEFI", "FBTC"}
	if len(cfg.Funds.Disabled) != len(want) {
		t.Fatalf("disabled funds = %v", cfg.Funds.Disabled)
	}
	for i, w := range want {
		if cfg.Funds.Disabled[i] != w {
			t.Errorf("disabled[%d] = %q, want %q", i, cfg.Funds.Disabled[i], w)
		}
	}
	if cfg.Auth.Enabled {
		t.Error("auth should be disabled")
	}
	if cfg.RateLimit.RequestsPerSecond != 2.5 {
		t.Errorf("rps = %v", cfg.RateLimit.RequestsPerSecond)
	}
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("TREASURY_PORT", "not-a-number")
	t.Setenv("TREASURY_RETRY_MAX_WAIT", "soon")
	t.Setenv("TREASURY_HEADLESS", "kinda")

	cfg := Load()

	if cfg.Server.Port != 8080 {
		t.Errorf("malformed port should fall back to default, got %d", cfg.Server.Port)
	}
	if cfg.Retry.MaxWait != 10*time.Second {
		t.Errorf("malformed duration should fall back, got %v", cfg.Retry.MaxWait)
	}
	if !cfg.Browser.Headless {
		t.Error("malformed bool should fall back to default true")
	}
}
