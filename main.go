package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ambient-looper/server"
	"ambient-looper/tui"
)

var version = "0.1.0"

var (
	configPath string
	flags      overrides
	playOnBoot bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ambient-looper",
	Short: "Generative ambient four-track step sequencer",
	Long: `ambient-looper loops four fixed tracks (chords, percussion, crackles
and wash) over a shared clock. Notes are picked from the position of each
track's LFO, so patterns drift while the grid stays fixed.

Running without a subcommand starts the terminal UI.`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runPlay,
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Start the terminal UI",
	Long: `Start the terminal UI. Space or p starts playback.

Examples:
  ambient-looper play
  ambient-looper play --backend headless --debug`,
	RunE: runPlay,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP control API",
	Long: `Run the looper without a UI and control it over HTTP.

Example:
  ambient-looper serve --addr :8787 --play
  curl -X PATCH localhost:8787/tracks/0 -d '{"effects":{"filter":0.6}}'`,
	RunE: runServe,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective config to disk",
	RunE:  runConfigInit,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default ~/.config/ambient-looper/config.json)")
	pf.StringVar(&flags.backend, "backend", "", "Audio backend: synth or headless")
	pf.IntVar(&flags.sampleRate, "sample-rate", 0, "Output sample rate for the synth backend")
	pf.Int64Var(&flags.seed, "seed", 0, "Seed for note selection (0 = from the clock)")
	pf.BoolVar(&flags.debug, "debug", false, "Write a debug log next to the config file")

	serveCmd.Flags().StringVar(&flags.addr, "addr", "", "Address to listen on")
	serveCmd.Flags().BoolVar(&playOnBoot, "play", false, "Start playing immediately")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(playCmd, serveCmd, configCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	lp, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer lp.Close()

	m := tui.NewModel(ctx, lp.manager, lp.theme)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	lp, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer lp.Close()

	if playOnBoot {
		if _, err := lp.manager.TogglePlay(ctx); err != nil {
			return err
		}
	}

	srv := server.New(server.Config{Addr: cfg.Server.Addr}, lp.manager, nil)
	fmt.Printf("\n  ambient-looper listening on %s\n\n", cfg.Server.Addr)
	return srv.Run(ctx)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}
	if err := cfg.SaveFile(path); err != nil {
		return fmt.Errorf("cannot write config: %w", err)
	}
	fmt.Println("wrote", path)
	return nil
}
