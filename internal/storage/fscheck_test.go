package storage

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckFilesystemAllowsLocal(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "state.db")
	err := checkFilesystemWith(dbPath, func(string) (string, error) { return "apfs", nil })
	if err != nil {
		t.Fatalf("expected local filesystem to pass, got: %v", err)
	}
}

func TestCheckFilesystemRejectsNetwork(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "state.db")
	err := checkFilesystemWith(dbPath, func(string) (string, error) { return "smbfs", nil })
	if err == nil {
		t.Fatal("expected network filesystem validation error")
	}
	for _, want := range []string{"smbfs", "state.path", "local disk"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to contain %q, got %q", want, err)
		}
	}
}

func TestCheckFilesystemInspectsNearestExistingPath(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	var inspected string
	err := checkFilesystemWith(filepath.Join(root, "a", "b", "state.db"), func(path string) (string, error) {
		inspected = path
		return "ext4", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inspected != root {
		t.Fatalf("expected detector to inspect %q, got %q", root, inspected)
	}
}

func TestCheckFilesystemUndetectable(t *testing.T) {
	t.Parallel()

	err := checkFilesystemWith(filepath.Join(t.TempDir(), "state.db"), func(string) (string, error) {
		return "", errors.New("unsupported")
	})
	if err != nil {
		t.Fatalf("undetectable filesystem should pass, got %v", err)
	}
}

func TestIsNetworkFilesystem(t *testing.T) {
	t.Parallel()

	cases := []struct {
		fs   string
		want bool
	}{
		{fs: "nfs", want: true},
		{fs: "SMBFS", want: true},
		{fs: " cifs ", want: true},
		{fs: "apfs", want: false},
		{fs: "0x6969", want: false},
	}
	for _, tc := range cases {
		if got := isNetworkFilesystem(tc.fs); got != tc.want {
			t.Errorf("isNetworkFilesystem(%q)=%v, want %v", tc.fs, got, tc.want)
		}
	}
}
