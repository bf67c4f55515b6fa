package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/exmdbctl/internal/exmdb"
	"github.com/danmuck/exmdbctl/internal/probe"
	"github.com/danmuck/exmdbctl/internal/protocol/transport"
	"github.com/pelletier/go-toml/v2"
)

// File is the on-disk shape of an exmdbctl config.
type File struct {
	Host               string        `toml:"host"`
	Service            string        `toml:"service"`
	Port               int           `toml:"port,omitempty"`
	Prefix             string        `toml:"prefix"`
	Private            bool          `toml:"private"`
	RemoteID           string        `toml:"remote_id,omitempty"`
	Stores             []string      `toml:"stores"`
	Interval           string        `toml:"interval"`
	MaxConnectAttempts int           `toml:"max_connect_attempts"`
	AdminAddr          string        `toml:"admin_addr"`
	CorsOrigins        []string      `toml:"cors_origins"`
	AdminTokens        []string      `toml:"admin_tokens,omitempty"`
	Transport          TransportFile `toml:"transport"`
}

type TransportFile struct {
	Network         string  `toml:"network"`
	ConnectTimeout  string  `toml:"connect_timeout"`
	ReadTimeout     string  `toml:"read_timeout"`
	WriteTimeout    string  `toml:"write_timeout"`
	MaxPayloadBytes uint32  `toml:"max_payload_bytes"`
	SecurityMode    string  `toml:"security_mode"`
	TLS             TLSFile `toml:"tls"`
}

type TLSFile struct {
	Enabled            bool   `toml:"enabled"`
	Mutual             bool   `toml:"mutual"`
	CAFile             string `toml:"ca_file"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

func DefaultFile() File {
	t := transport.DefaultConfig()
	return File{
		Host:        "localhost",
		Service:     "5000",
		Prefix:      "/var/lib/gromox/user/",
		Private:     true,
		Stores:      []string{},
		Interval:    probe.DefaultConfig().Interval.String(),
		AdminAddr:   "127.0.0.1:7020",
		CorsOrigins: []string{"http://localhost:3000"},
		Transport: TransportFile{
			Network:         t.Network,
			ConnectTimeout:  t.ConnectTimeout.String(),
			ReadTimeout:     t.ReadTimeout.String(),
			WriteTimeout:    t.WriteTimeout.String(),
			MaxPayloadBytes: t.Limits.MaxPayloadBytes,
			SecurityMode:    string(t.SecurityMode),
		},
	}
}

// Load reads path strictly: unknown keys are rejected. Missing keys keep
// their DefaultFile values.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	cfg := DefaultFile()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return File{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return File{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func (f File) Validate() error {
	if strings.TrimSpace(f.Host) == "" {
		return fmt.Errorf("host is required")
	}
	if strings.TrimSpace(f.Prefix) == "" {
		return fmt.Errorf("prefix is required")
	}
	if f.Port < 0 || f.Port > 65535 {
		return fmt.Errorf("port out of range: %d", f.Port)
	}
	if _, err := f.Probe(); err != nil {
		return err
	}
	return nil
}

// Endpoint resolves the exmdb endpoint. A non-zero Port takes precedence
// over Service.
func (f File) Endpoint() exmdb.Endpoint {
	service := strings.TrimSpace(f.Service)
	if f.Port > 0 {
		service = strconv.Itoa(f.Port)
	}
	return exmdb.Endpoint{
		Host:     strings.TrimSpace(f.Host),
		Service:  service,
		Prefix:   strings.TrimSpace(f.Prefix),
		Private:  f.Private,
		RemoteID: strings.TrimSpace(f.RemoteID),
	}
}

func (f File) TransportConfig() (transport.Config, error) {
	cfg := transport.DefaultConfig()
	tf := f.Transport
	if v := strings.TrimSpace(tf.Network); v != "" {
		cfg.Network = v
	}
	var err error
	if cfg.ConnectTimeout, err = parseDuration("transport.connect_timeout", tf.ConnectTimeout, cfg.ConnectTimeout); err != nil {
		return transport.Config{}, err
	}
	if cfg.ReadTimeout, err = parseDuration("transport.read_timeout", tf.ReadTimeout, cfg.ReadTimeout); err != nil {
		return transport.Config{}, err
	}
	if cfg.WriteTimeout, err = parseDuration("transport.write_timeout", tf.WriteTimeout, cfg.WriteTimeout); err != nil {
		return transport.Config{}, err
	}
	if tf.MaxPayloadBytes > 0 {
		cfg.Limits.MaxPayloadBytes = tf.MaxPayloadBytes
	}
	if v := strings.TrimSpace(tf.SecurityMode); v != "" {
		cfg.SecurityMode = transport.SecurityMode(v)
	}
	cfg.TLS = transport.TLSConfig{
		Enabled:            tf.TLS.Enabled,
		Mutual:             tf.TLS.Mutual,
		CAFile:             strings.TrimSpace(tf.TLS.CAFile),
		CertFile:           strings.TrimSpace(tf.TLS.CertFile),
		KeyFile:            strings.TrimSpace(tf.TLS.KeyFile),
		ServerName:         strings.TrimSpace(tf.TLS.ServerName),
		InsecureSkipVerify: tf.TLS.InsecureSkipVerify,
	}
	if err := cfg.ValidateClientTransport(); err != nil {
		return transport.Config{}, err
	}
	return cfg, nil
}

// Probe converts f into a prober config. Stores may be empty here; the
// prober itself rejects an empty set.
func (f File) Probe() (probe.Config, error) {
	cfg := probe.DefaultConfig()
	cfg.Endpoint = f.Endpoint()
	cfg.Stores = append([]string(nil), f.Stores...)
	cfg.MaxConnectAttempts = f.MaxConnectAttempts
	var err error
	if cfg.Interval, err = parseDuration("interval", f.Interval, cfg.Interval); err != nil {
		return probe.Config{}, err
	}
	if cfg.Transport, err = f.TransportConfig(); err != nil {
		return probe.Config{}, err
	}
	return cfg, nil
}

func parseDuration(key, raw string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("parse %s: negative duration %s", key, v)
	}
	return d, nil
}
