package storage_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/JaimeStill/lectern/pkg/storage"
)

func TestMemory_RoundTrip(t *testing.T) {
	ctx := context.Background()
	m := storage.NewMemory(slog.New(slog.DiscardHandler))

	if err := m.Upload(ctx, "a/b.json", strings.NewReader(`{"ok":true}`), "application/json"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	ok, err := m.Exists(ctx, "a/b.json")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}

	rc, err := m.Download(ctx, "a/b.json")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	defer rc.Close()

	data, _ := io.ReadAll(rc)
	if string(data) != `{"ok":true}` {
		t.Errorf("Download = %q", data)
	}
	if ct := m.ContentType("a/b.json"); ct != "application/json" {
		t.Errorf("ContentType = %q", ct)
	}

	if err := m.Delete(ctx, "a/b.json"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := m.Download(ctx, "a/b.json"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Download after delete = %v, want ErrNotFound", err)
	}
	if err := m.Delete(ctx, "a/b.json"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestMemory_InvalidKeys(t *testing.T) {
	ctx := context.Background()
	m := storage.NewMemory(slog.New(slog.DiscardHandler))

	if err := m.Upload(ctx, "", strings.NewReader("x"), "text/plain"); !errors.Is(err, storage.ErrEmptyKey) {
		t.Errorf("empty key = %v, want ErrEmptyKey", err)
	}
	if _, err := m.Download(ctx, "a/../b"); !errors.Is(err, storage.ErrInvalidKey) {
		t.Errorf("traversal key = %v, want ErrInvalidKey", err)
	}
}

func TestKey(t *testing.T) {
	if got := storage.Key("/course-sets/", "abc", "set.json"); got != "course-sets/abc/set.json" {
		t.Errorf("Key = %q", got)
	}
	if got := storage.Key("", "x"); got != "x" {
		t.Errorf("Key = %q", got)
	}
}

func TestConfigFinalize(t *testing.T) {
	tests := []struct {
		name    string
		cfg     storage.Config
		wantErr bool
	}{
		{"memory", storage.Config{Backend: storage.BackendMemory}, false},
		{"connection string", storage.Config{ConnectionString: "UseDevelopmentStorage=true"}, false},
		{"account url", storage.Config{AccountURL: "https://acct.blob.core.windows.net"}, false},
		{"no credentials", storage.Config{}, true},
		{"plain http account", storage.Config{AccountURL: "http://acct"}, true},
		{"unknown backend", storage.Config{Backend: "s3"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize(nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("Finalize = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigEnv(t *testing.T) {
	t.Setenv("TEST_STORAGE_BACKEND", "memory")
	t.Setenv("TEST_STORAGE_PREFIX", "/exports/")

	cfg := storage.Config{}
	err := cfg.Finalize(&storage.Env{Backend: "TEST_STORAGE_BACKEND", ExportPrefix: "TEST_STORAGE_PREFIX"})
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if cfg.Backend != storage.BackendMemory || cfg.ExportPrefix != "exports" {
		t.Errorf("cfg = %+v", cfg)
	}
}
