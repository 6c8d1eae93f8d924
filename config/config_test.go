package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileMissingReturnsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Audio.Backend != BackendSynth {
		t.Errorf("backend = %q, want %q", cfg.Audio.Backend, BackendSynth)
	}
	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("sample rate = %d, want 44100", cfg.Audio.SampleRate)
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")
	cfg := DefaultConfig()
	cfg.Audio.Backend = BackendHeadless
	cfg.Seed = 42
	cfg.Server.Addr = "127.0.0.1:9000"

	if err := cfg.SaveFile(path); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got.Audio.Backend != BackendHeadless || got.Seed != 42 || got.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestLoadFileNormalizesBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := []byte(`{"audio":{"backend":"tape","sampleRate":-1}}`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Audio.Backend != BackendSynth {
		t.Errorf("backend = %q, want fallback %q", cfg.Audio.Backend, BackendSynth)
	}
	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("sample rate = %d, want 44100", cfg.Audio.SampleRate)
	}
	if cfg.Server.Addr != ":8787" {
		t.Errorf("addr = %q, want :8787", cfg.Server.Addr)
	}
}

func TestLoadFileRejectsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for truncated JSON")
	}
}
