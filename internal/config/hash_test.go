package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLockAndVerify(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "worker:\n  binary: /bin/true\n")

	checksumPath, hash, err := Lock(path)
	if err != nil {
		t.Fatalf("Lock() error: %v", err)
	}
	if checksumPath != filepath.Join(dir, ChecksumFile) {
		t.Errorf("checksum path = %q", checksumPath)
	}
	if len(hash) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(hash))
	}

	info, err := os.Stat(checksumPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("checksums perm = %v, want 0600", info.Mode().Perm())
	}

	if err := VerifyChecksum(path); err != nil {
		t.Fatalf("VerifyChecksum() after lock: %v", err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("Load() of locked config: %v", err)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "worker:\n  binary: /bin/true\n")
	if _, _, err := Lock(path); err != nil {
		t.Fatal(err)
	}

	writeConfig(t, dir, "worker:\n  binary: /bin/false\n")

	err := VerifyChecksum(path)
	if err == nil || !strings.Contains(err.Error(), "hash mismatch") {
		t.Fatalf("expected hash mismatch, got %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load() should refuse a tampered config")
	}
}

func TestVerifyWithoutManifest(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "worker:\n  binary: /bin/true\n")
	if err := VerifyChecksum(path); err != nil {
		t.Fatalf("unlocked config should verify, got %v", err)
	}
}

func TestLoadChecksumsRejectsVersion(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ChecksumFile), []byte("version: 2\nhashes: {}\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadChecksums(dir); err == nil {
		t.Fatal("expected unsupported version error")
	}
}

func TestDiscover(t *testing.T) {
	got, err := Discover("/explicit/config.yaml")
	if err != nil || got != "/explicit/config.yaml" {
		t.Fatalf("explicit path: got %q, %v", got, err)
	}

	t.Setenv(EnvConfigPath, "/from/env.yaml")
	got, err = Discover("")
	if err != nil || got != "/from/env.yaml" {
		t.Fatalf("env path: got %q, %v", got, err)
	}
}
