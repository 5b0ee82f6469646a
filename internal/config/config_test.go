package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"LOCALDROP_SERVER", "LOCALDROP_STUN", "LOCALDROP_NAME"} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, configFileName), []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg, err := Load(Options{Dir: dir})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server != DefaultServer {
		t.Errorf("server = %q", cfg.Server)
	}
	if cfg.WebSocketURL != "ws://localhost:8080/ws" {
		t.Errorf("ws url = %q", cfg.WebSocketURL)
	}
	if !reflect.DeepEqual(cfg.GetSTUNServers(), []string{DefaultSTUN}) {
		t.Errorf("stun = %v", cfg.STUNServers)
	}
	if cfg.ClientID == "" {
		t.Error("client id not generated")
	}
}

func TestLoadPrecedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeConfig(t, dir, `{
		// relay used at home
		"server": "file.example:9000",
		"stun": ["stun:file.example:3478"],
		"name": "file-name",
	}`)

	cfg, err := Load(Options{Dir: dir})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server != "file.example:9000" || cfg.Name != "file-name" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.WebSocketURL != "wss://file.example:9000/ws" {
		t.Errorf("ws url = %q", cfg.WebSocketURL)
	}

	t.Setenv("LOCALDROP_SERVER", "env.example")
	t.Setenv("LOCALDROP_STUN", "stun:a:1, stun:b:2")
	cfg, err = Load(Options{Dir: dir})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server != "env.example" {
		t.Errorf("env did not override file: %q", cfg.Server)
	}
	if !reflect.DeepEqual(cfg.STUNServers, []string{"stun:a:1", "stun:b:2"}) {
		t.Errorf("stun = %v", cfg.STUNServers)
	}
	if cfg.Name != "file-name" {
		t.Errorf("name = %q, want file value", cfg.Name)
	}

	cfg, err = Load(Options{Dir: dir, Server: "ws://127.0.0.1:8080", Name: "flag-name"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WebSocketURL != "ws://127.0.0.1:8080/ws" || cfg.Name != "flag-name" {
		t.Errorf("flags did not win: %+v", cfg)
	}
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeConfig(t, dir, `{"server": 42}`)

	if _, err := Load(Options{Dir: dir}); err == nil {
		t.Fatal("expected an error for a mistyped field")
	}
}

func TestClientIDIsStable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	first, err := LoadClientID(dir)
	if err != nil {
		t.Fatalf("LoadClientID: %v", err)
	}
	second, err := LoadClientID(dir)
	if err != nil {
		t.Fatalf("LoadClientID: %v", err)
	}
	if first != second {
		t.Errorf("client id changed: %q then %q", first, second)
	}
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"relay.example", "wss://relay.example/ws", false},
		{"localhost:8080", "ws://localhost:8080/ws", false},
		{"[::1]:8080", "ws://[::1]:8080/ws", false},
		{"wss://relay.example/custom", "wss://relay.example/custom", false},
		{"ws://relay.example", "ws://relay.example/ws", false},
		{"relay.example/ws", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := WebSocketURL(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("WebSocketURL(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("WebSocketURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadServer(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("REDIS_DB", "")
	t.Setenv("GIN_MODE", "")

	cfg := LoadServer()
	if cfg.Port != "8080" {
		t.Errorf("port = %q", cfg.Port)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, []string{"https://a.example", "https://b.example"}) {
		t.Errorf("origins = %v", cfg.AllowedOrigins)
	}
	if cfg.Redis.Enabled() {
		t.Error("redis enabled without REDIS_ADDR")
	}
}
