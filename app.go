package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"ambient-looper/config"
	"ambient-looper/debug"
	"ambient-looper/engine"
	"ambient-looper/engine/headless"
	"ambient-looper/engine/synth"
	"ambient-looper/notegen"
	"ambient-looper/sequencer"
	"ambient-looper/theme"
)

// overrides holds command-line values that win over the config file
type overrides struct {
	backend    string
	sampleRate int
	seed       int64
	debug      bool
	addr       string
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.ConfigPath()
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot load config: %w", err)
	}
	if err := flags.apply(cfg, cmd.Flags().Changed); err != nil {
		return nil, err
	}
	return cfg, nil
}

// apply copies every flag the user set onto cfg
func (o overrides) apply(cfg *config.Config, changed func(string) bool) error {
	if changed("backend") {
		switch b := config.Backend(o.backend); b {
		case config.BackendSynth, config.BackendHeadless:
			cfg.Audio.Backend = b
		default:
			return fmt.Errorf("unknown backend %q", o.backend)
		}
	}
	if changed("sample-rate") {
		if o.sampleRate <= 0 {
			return fmt.Errorf("sample rate must be positive, got %d", o.sampleRate)
		}
		cfg.Audio.SampleRate = o.sampleRate
	}
	if changed("seed") {
		cfg.Seed = o.seed
	}
	if changed("debug") {
		cfg.Debug = o.debug
	}
	if changed("addr") && o.addr != "" {
		cfg.Server.Addr = o.addr
	}
	return nil
}

// app is everything a command needs to run the looper
type app struct {
	manager *sequencer.Manager
	theme   *theme.Theme
	cancel  context.CancelFunc
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if cfg.Debug {
		if err := debug.Enable(debug.DefaultPath()); err != nil {
			return nil, fmt.Errorf("cannot enable debug log: %w", err)
		}
	}

	palette := theme.DefaultPalette()
	if cfg.UI.Palette != "" {
		p, err := theme.LoadGPL(cfg.UI.Palette)
		if err != nil {
			return nil, err
		}
		palette = p
	}

	ctx, cancel := context.WithCancel(ctx)
	eng := newEngine(ctx, cfg)

	gen := notegen.New(nil)
	if cfg.Seed != 0 {
		gen = notegen.NewSeeded(cfg.Seed)
	}
	return &app{
		manager: sequencer.NewManager(eng, sequencer.WithGenerator(gen)),
		theme:   theme.New(palette),
		cancel:  cancel,
	}, nil
}

// newEngine picks the backend. The headless clock runs until ctx is done.
func newEngine(ctx context.Context, cfg *config.Config) engine.Engine {
	if cfg.Audio.Backend == config.BackendHeadless {
		e := headless.New()
		go func() {
			if err := e.Clock().Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				debug.Log("engine", "headless clock: %v", err)
			}
		}()
		return e
	}
	opts := []synth.Option{synth.WithSampleRate(cfg.Audio.SampleRate)}
	if cfg.Seed != 0 {
		opts = append(opts, synth.WithSeed(cfg.Seed))
	}
	return synth.New(opts...)
}

func (a *app) Close() error {
	err := a.manager.Close()
	a.cancel()
	debug.Disable()
	return err
}
