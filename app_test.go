package main

import (
	"context"
	"testing"

	"ambient-looper/config"
)

func changedSet(names ...string) func(string) bool {
	set := make(map[string]bool)
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}

func TestOverridesApply(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Seed = 9
	o := overrides{backend: "headless", sampleRate: 48000, seed: 3, addr: ":9000"}
	if err := o.apply(cfg, changedSet("backend", "addr")); err != nil {
		t.Fatal(err)
	}
	if cfg.Audio.Backend != config.BackendHeadless || cfg.Server.Addr != ":9000" {
		t.Errorf("cfg = %+v", cfg)
	}
	// unset flags leave the file's values alone
	if cfg.Audio.SampleRate != 44100 || cfg.Seed != 9 {
		t.Errorf("untouched fields changed: %+v", cfg)
	}
}

func TestOverridesReject(t *testing.T) {
	if err := (overrides{backend: "alsa"}).apply(config.DefaultConfig(), changedSet("backend")); err == nil {
		t.Error("unknown backend accepted")
	}
	if err := (overrides{sampleRate: -1}).apply(config.DefaultConfig(), changedSet("sample-rate")); err == nil {
		t.Error("negative sample rate accepted")
	}
}

func TestHeadlessApp(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Audio.Backend = config.BackendHeadless
	cfg.Seed = 4
	a, err := newApp(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	on, err := a.manager.TogglePlay(context.Background())
	if err != nil || !on {
		t.Fatalf("TogglePlay = %v, %v", on, err)
	}
}
