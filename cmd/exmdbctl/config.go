package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/exmdbctl/internal/config"
	"github.com/danmuck/exmdbctl/internal/probe"
)

type fileTLS struct {
	Enabled            bool   `toml:"enabled"`
	Mutual             bool   `toml:"mutual"`
	CAFile             string `toml:"ca_file"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

type fileTransport struct {
	Network         string  `toml:"network"`
	ConnectTimeout  string  `toml:"connect_timeout"`
	ReadTimeout     string  `toml:"read_timeout"`
	WriteTimeout    string  `toml:"write_timeout"`
	MaxPayloadBytes uint32  `toml:"max_payload_bytes"`
	SecurityMode    string  `toml:"security_mode"`
	TLS             fileTLS `toml:"tls"`
}

type fileConfig struct {
	Host               string        `toml:"host"`
	Service            string        `toml:"service"`
	Port               int           `toml:"port"`
	Prefix             string        `toml:"prefix"`
	Private            bool          `toml:"private"`
	RemoteID           string        `toml:"remote_id"`
	Stores             []string      `toml:"stores"`
	Interval           string        `toml:"interval"`
	MaxConnectAttempts int           `toml:"max_connect_attempts"`
	AdminAddr          string        `toml:"admin_addr"`
	CorsOrigins        []string      `toml:"cors_origins"`
	AdminTokens        []string      `toml:"admin_tokens"`
	Transport          fileTransport `toml:"transport"`
}

type cliConfig struct {
	Probe       probe.Config
	AdminAddr   string
	CorsOrigins []string
	AdminTokens []string
}

func loadCLIConfig(path string) (cliConfig, error) {
	f, err := loadFile(path)
	if err != nil {
		return cliConfig{}, err
	}
	if err := f.Validate(); err != nil {
		return cliConfig{}, fmt.Errorf("validate exmdbctl config: %w", err)
	}
	pc, err := f.Probe()
	if err != nil {
		return cliConfig{}, err
	}
	return cliConfig{
		Probe:       pc,
		AdminAddr:   strings.TrimSpace(f.AdminAddr),
		CorsOrigins: normalizeList(f.CorsOrigins),
		AdminTokens: normalizeList(f.AdminTokens),
	}, nil
}

// loadFile overlays the keys defined in path onto config.DefaultFile.
func loadFile(path string) (config.File, error) {
	cfg := config.DefaultFile()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config.File{}, fmt.Errorf("load exmdbctl config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return config.File{}, fmt.Errorf("load exmdbctl config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("service") {
		cfg.Service = strings.TrimSpace(raw.Service)
	}
	if meta.IsDefined("port") {
		if raw.Port <= 0 {
			return config.File{}, fmt.Errorf("parse port: out of range %d", raw.Port)
		}
		cfg.Port = raw.Port
	}
	if meta.IsDefined("prefix") {
		cfg.Prefix = strings.TrimSpace(raw.Prefix)
	}
	if meta.IsDefined("private") {
		cfg.Private = raw.Private
	}
	if meta.IsDefined("remote_id") {
		cfg.RemoteID = strings.TrimSpace(raw.RemoteID)
	}
	if meta.IsDefined("stores") {
		cfg.Stores = normalizeList(raw.Stores)
	}
	if meta.IsDefined("interval") {
		cfg.Interval = strings.TrimSpace(raw.Interval)
	}
	if meta.IsDefined("max_connect_attempts") {
		cfg.MaxConnectAttempts = raw.MaxConnectAttempts
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}
	if meta.IsDefined("admin_tokens") {
		cfg.AdminTokens = normalizeList(raw.AdminTokens)
	}

	t := &cfg.Transport
	if meta.IsDefined("transport", "network") {
		t.Network = strings.TrimSpace(raw.Transport.Network)
	}
	if meta.IsDefined("transport", "connect_timeout") {
		t.ConnectTimeout = raw.Transport.ConnectTimeout
	}
	if meta.IsDefined("transport", "read_timeout") {
		t.ReadTimeout = raw.Transport.ReadTimeout
	}
	if meta.IsDefined("transport", "write_timeout") {
		t.WriteTimeout = raw.Transport.WriteTimeout
	}
	if meta.IsDefined("transport", "max_payload_bytes") {
		t.MaxPayloadBytes = raw.Transport.MaxPayloadBytes
	}
	if meta.IsDefined("transport", "security_mode") {
		t.SecurityMode = strings.TrimSpace(raw.Transport.SecurityMode)
	}
	if meta.IsDefined("transport", "tls") {
		t.TLS = config.TLSFile(raw.Transport.TLS)
	}

	return cfg, nil
}

func normalizeList(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
