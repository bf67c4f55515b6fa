package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/exmdbctl/internal/protocol/transport"
	"github.com/danmuck/exmdbctl/internal/testutil/testlog"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestTemplateRoundTripsThroughLoad(t *testing.T) {
	testlog.Start(t)

	path := filepath.Join(t.TempDir(), "exmdbctl.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Fatalf("overwrite template: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	if cfg.Host != "localhost" || cfg.Prefix != "/var/lib/gromox/user/" || !cfg.Private {
		t.Fatalf("unexpected endpoint fields: %+v", cfg)
	}
	if len(cfg.Stores) != 1 || cfg.Stores[0] != "/var/lib/gromox/user/example" {
		t.Fatalf("unexpected stores: %+v", cfg.Stores)
	}

	pc, err := cfg.Probe()
	if err != nil {
		t.Fatalf("probe config: %v", err)
	}
	if pc.Interval != 30*time.Second {
		t.Fatalf("unexpected interval: %v", pc.Interval)
	}
	if pc.Transport.ReadTimeout != 30*time.Second || pc.Transport.Network != transport.NetworkTCP {
		t.Fatalf("unexpected transport: %+v", pc.Transport)
	}
	if pc.Transport.Limits.MaxPayloadBytes != 64<<20 {
		t.Fatalf("unexpected payload cap: %d", pc.Transport.Limits.MaxPayloadBytes)
	}
}

func TestLoadOverridesAndTLS(t *testing.T) {
	testlog.Start(t)

	path := writeFile(t, `
host = "mail.example.org"
service = "5000"
prefix = "/var/lib/gromox/domain/"
private = false
stores = ["/var/lib/gromox/domain/1"]
interval = "5s"

[transport]
read_timeout = "2s"
max_payload_bytes = 1024
security_mode = "production"

[transport.tls]
enabled = true
mutual = true
ca_file = "/etc/gromox/ca.pem"
cert_file = "/etc/gromox/client.pem"
key_file = "/etc/gromox/client.key"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ep := cfg.Endpoint()
	if ep.Private || ep.Host != "mail.example.org" {
		t.Fatalf("unexpected endpoint: %+v", ep)
	}
	tc, err := cfg.TransportConfig()
	if err != nil {
		t.Fatalf("transport config: %v", err)
	}
	if tc.ReadTimeout != 2*time.Second || tc.WriteTimeout != 15*time.Second {
		t.Fatalf("unexpected timeouts: read=%v write=%v", tc.ReadTimeout, tc.WriteTimeout)
	}
	if tc.Limits.MaxPayloadBytes != 1024 {
		t.Fatalf("unexpected payload cap: %d", tc.Limits.MaxPayloadBytes)
	}
	if !tc.TLS.Enabled || !tc.TLS.Mutual || tc.TLS.CAFile != "/etc/gromox/ca.pem" {
		t.Fatalf("unexpected tls: %+v", tc.TLS)
	}
}

func TestLoadRejectsInvalidFiles(t *testing.T) {
	testlog.Start(t)

	cases := map[string]string{
		"unknown key":    "hostname = \"x\"\n",
		"bad interval":   "interval = \"soon\"\n",
		"empty prefix":   "prefix = \"\"\n",
		"production tcp": "[transport]\nsecurity_mode = \"production\"\n",
		"port range":     "port = 70000\n",
	}
	for name, content := range cases {
		if _, err := Load(writeFile(t, content)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	_, err := Load(writeFile(t, "[transport]\nsecurity_mode = \"production\"\n"))
	if !errors.Is(err, transport.ErrTLSRequired) {
		t.Fatalf("expected ErrTLSRequired, got %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil || !strings.Contains(err.Error(), "config load failed") {
		t.Fatalf("expected load failure, got %v", err)
	}
}

func TestLoadPortOverridesService(t *testing.T) {
	testlog.Start(t)

	cfg, err := Load(writeFile(t, "service = \"exmdb\"\nport = 5001\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.Endpoint().Service; got != "5001" {
		t.Fatalf("expected port to win over service, got %q", got)
	}
}
