package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "TICKRELAY_WS_URL", "TICKRELAY_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, `
[symbols]
list = [" btcusdt", "ETHUSDT", "btcusdt", ""]
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := cfg.Symbols.List; len(got) != 2 || got[0] != "BTCUSDT" || got[1] != "ETHUSDT" {
		t.Errorf("unexpected symbols: %v", got)
	}
	if got := cfg.PercentageChange.Intervals; len(got) != 3 || got[0] != 2 || got[2] != 6 {
		t.Errorf("unexpected default intervals: %v", got)
	}
	if cfg.Relay.Channel != "ticker:updates" {
		t.Errorf("unexpected channel: %s", cfg.Relay.Channel)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("unexpected redis addr: %s", cfg.Redis.Addr)
	}
	if cfg.Upstream.WsURL != "wss://stream.binance.com:9443/ws" || cfg.Upstream.ControlRate != 5 {
		t.Errorf("unexpected upstream defaults: %+v", cfg.Upstream)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_PORT", "")
	t.Setenv("REDIS_PASSWORD", "s3cret")
	t.Setenv("TICKRELAY_WS_URL", "ws://127.0.0.1:9000/ws")

	cfg, err := Load(writeConfig(t, `
[redis]
addr = "redis.local:6380"
password = "from-file"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Redis.Addr != "cache.internal:6380" {
		t.Errorf("expected host override keeping file port, got %s", cfg.Redis.Addr)
	}
	if cfg.Redis.Password != "s3cret" {
		t.Errorf("expected password override, got %s", cfg.Redis.Password)
	}
	if cfg.Upstream.WsURL != "ws://127.0.0.1:9000/ws" {
		t.Errorf("expected ws url override, got %s", cfg.Upstream.WsURL)
	}
}

func TestLoadInvalid(t *testing.T) {
	cases := []struct {
		name string
		body string
		want error
	}{
		{"empty intervals", "[percentage_change]\nintervals = []\n", ErrNoIntervals},
		{"negative interval", "[percentage_change]\nintervals = [2, -4]\n", ErrInvalidInterval},
		{"postgres without dsn", "[storage.postgres]\nenabled = true\n", ErrStorageDSNEmpty},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
