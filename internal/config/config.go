package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/jsonc"
)

// Default configuration values
const (
	DefaultServer = "localhost:8080"
	DefaultSTUN   = "stun:stun.l.google.com:19302"

	configFileName = "config.jsonc"
	clientIDFile   = "client_id"
)

// Config holds the client's configuration
type Config struct {
	// Server is the relay address as configured, host[:port] or a ws(s) URL
	Server string

	// WebSocketURL is the relay endpoint derived from Server
	WebSocketURL string

	// STUN servers for WebRTC
	STUNServers []string

	// Name is shown to other participants instead of the derived label
	Name string

	// ClientID survives restarts so a reconnect replaces the old record
	ClientID string

	// Dir is where the config file and client id live
	Dir string
}

// Options for loading config with CLI flag overrides
type Options struct {
	Server     string
	STUNServer string
	Name       string

	// Dir overrides the config directory, mainly for tests
	Dir string
}

// fileConfig is the on-disk shape of config.jsonc
type fileConfig struct {
	Server string   `json:"server"`
	STUN   []string `json:"stun"`
	Name   string   `json:"name"`
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Config file
// 4. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	dir := opts.Dir
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}

	file, err := readFile(filepath.Join(dir, configFileName))
	if err != nil {
		return nil, err
	}

	server := first(opts.Server, os.Getenv("LOCALDROP_SERVER"), file.Server, DefaultServer)
	wsURL, err := WebSocketURL(server)
	if err != nil {
		return nil, err
	}

	var stun []string
	switch {
	case opts.STUNServer != "":
		stun = splitList(opts.STUNServer)
	case os.Getenv("LOCALDROP_STUN") != "":
		stun = splitList(os.Getenv("LOCALDROP_STUN"))
	case len(file.STUN) > 0:
		stun = file.STUN
	default:
		stun = []string{DefaultSTUN}
	}

	clientID, err := LoadClientID(dir)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:       server,
		WebSocketURL: wsURL,
		STUNServers:  stun,
		Name:         first(opts.Name, os.Getenv("LOCALDROP_NAME"), file.Name),
		ClientID:     clientID,
		Dir:          dir,
	}, nil
}

// DefaultDir returns $XDG_CONFIG_HOME/localdrop or the platform equivalent.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot locate config directory: %w", err)
	}
	return filepath.Join(base, "localdrop"), nil
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	return c.STUNServers
}

// WebSocketURL turns a configured server into the relay's /ws endpoint.
// Bare hosts use wss unless they point at a loopback address.
func WebSocketURL(server string) (string, error) {
	if strings.HasPrefix(server, "ws://") || strings.HasPrefix(server, "wss://") {
		u, err := url.Parse(server)
		if err != nil {
			return "", fmt.Errorf("invalid server URL %q: %w", server, err)
		}
		if u.Path == "" || u.Path == "/" {
			u.Path = "/ws"
		}
		return u.String(), nil
	}

	if server == "" || strings.Contains(server, "/") {
		return "", fmt.Errorf("invalid server address %q", server)
	}

	scheme := "wss"
	if isLoopback(server) {
		scheme = "ws"
	}
	return fmt.Sprintf("%s://%s/ws", scheme, server), nil
}

// LoadClientID returns the persisted client id, creating one on first use.
func LoadClientID(dir string) (string, error) {
	path := filepath.Join(dir, clientIDFile)

	data, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to read client id: %w", err)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("failed to write client id: %w", err)
	}
	return id, nil
}

func readFile(path string) (fileConfig, error) {
	var fc fileConfig

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fc, nil
	}
	if err != nil {
		return fc, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := json.Unmarshal(jsonc.ToJSON(data), &fc); err != nil {
		return fc, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return fc, nil
}

func isLoopback(hostport string) bool {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
