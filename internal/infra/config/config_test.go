package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Backend != "json" {
		t.Errorf("Backend = %q, want json", cfg.Store.Backend)
	}
	if cfg.Probe.Timeout != 30*time.Second {
		t.Errorf("Probe.Timeout = %v, want 30s", cfg.Probe.Timeout)
	}
	if cfg.Probe.UserAgent != "Service-Ninja-Agent/1.0" {
		t.Errorf("UserAgent = %q", cfg.Probe.UserAgent)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
store:
  backend: sqlite
  path: /tmp/test.db
probe:
  timeout: 5s
sweep:
  concurrency: 3
logger:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Backend != "sqlite" || cfg.Store.Path != "/tmp/test.db" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Probe.Timeout != 5*time.Second {
		t.Errorf("Probe.Timeout = %v, want 5s", cfg.Probe.Timeout)
	}
	if cfg.Sweep.Concurrency != 3 {
		t.Errorf("Sweep.Concurrency = %d, want 3", cfg.Sweep.Concurrency)
	}
	// Untouched fields keep their defaults.
	if cfg.Sweep.Timeout != 2*time.Minute {
		t.Errorf("Sweep.Timeout = %v, want default 2m", cfg.Sweep.Timeout)
	}
}

func TestValidateRejectsBadBackend(t *testing.T) {
	cfg := Default()
	cfg.Store.Backend = "etcd"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestValidateRejectsBadMonitorJob(t *testing.T) {
	cfg := Default()
	cfg.Monitor.Jobs = []MonitorJobConfig{{Name: "nightly", Schedule: "@daily"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for job without project_id")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := EncryptValue("super-secret-key", "passphrase")
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}
	if enc == "super-secret-key" {
		t.Fatal("ciphertext equals plaintext")
	}

	dec, err := DecryptValue(enc, "passphrase")
	if err != nil {
		t.Fatalf("DecryptValue: %v", err)
	}
	if dec != "super-secret-key" {
		t.Errorf("decrypted = %q", dec)
	}
}

func TestDecryptWrongPassphraseFails(t *testing.T) {
	enc, err := EncryptValue("v", "right")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecryptValue(enc, "wrong"); err == nil {
		t.Fatal("expected decryption failure with wrong passphrase")
	}
}

func TestStoredFormRoundTrip(t *testing.T) {
	enc, err := EncryptValue("super-secret-key", "passphrase")
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}

	// The record holds EncPrefix + ciphertext; that form must be recognized
	// as encrypted and decrypt back after stripping the prefix.
	stored := EncPrefix + enc
	if !IsEncrypted(stored) {
		t.Fatalf("stored value %q not recognized as encrypted", stored)
	}
	dec, err := DecryptValue(strings.TrimPrefix(stored, EncPrefix), "passphrase")
	if err != nil {
		t.Fatalf("DecryptValue: %v", err)
	}
	if dec != "super-secret-key" {
		t.Errorf("decrypted = %q", dec)
	}
}

func TestIsEncrypted(t *testing.T) {
	if !IsEncrypted("enc:abc") {
		t.Error("enc:abc should be encrypted")
	}
	if IsEncrypted("plain-key") {
		t.Error("plain-key should not be encrypted")
	}
}
