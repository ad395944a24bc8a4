package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/haivivi/songgen/cmd/songgen/internal/config"
	"github.com/haivivi/songgen/pkg/cli"
	"github.com/haivivi/songgen/pkg/feature"
	"github.com/haivivi/songgen/pkg/kv"
	"github.com/haivivi/songgen/pkg/songgen"
	"github.com/haivivi/songgen/pkg/storage"
)

var (
	// Global flags
	configPath   string
	verbose      bool
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "songgen",
	Short: "Multi-modal song generator",
	Long: `songgen - train a symbolic/spectral/theory fusion model on a per-track
corpus and generate complete songs from it.

The corpus holds one MIDI file and one mel spectrogram (.npy) per
recording and role:

  <midi_dir>/<recording>_<role>.mid
  <spectrogram_dir>/<recording>_<role>.npy

Configuration is read from --config, or ~/.songgen/config.yaml when it
exists.

Examples:
  songgen encode
  songgen train -o text
  songgen generate --out songs/first --seed 7
  songgen plan --file plan.yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Interrupts cancel the running command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "config file (default ~/.songgen/config.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	pf.StringVarP(&outputFormat, "output", "o", "", "output format: yaml (default), json or text")
}

func logger() *slog.Logger { return cli.NewLogger(os.Stderr, verbose) }

func format() (cli.OutputFormat, error) { return cli.ParseFormat(outputFormat) }

func loadConfig() (*config.Config, error) {
	paths, err := cli.NewPaths()
	if err != nil {
		return nil, fmt.Errorf("locate home directory: %w", err)
	}
	return config.Load(configPath, paths)
}

// env is what every pipeline command needs.
type env struct {
	cfg    *config.Config
	svc    *songgen.Service
	cache  *feature.Cache
	logger *slog.Logger
	close  func()
}

// openEnv loads the configuration, lets adjust override it and builds
// the service.
func openEnv(ctx context.Context, adjust func(*config.Config)) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if adjust != nil {
		adjust(cfg)
	}
	log := logger()
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, logger: log, close: func() {}}
	opts := []songgen.Option{songgen.WithLogger(log)}
	if cfg.CacheDir != "" {
		db, err := kv.OpenBadger(kv.BadgerOptions{Dir: cfg.CacheDir, Logger: log})
		if err != nil {
			return nil, err
		}
		e.cache = feature.NewCache(db, cfg.Features.WindowLength, cfg.Features.Bands)
		e.close = func() {
			if err := db.Close(); err != nil {
				log.Warn("close cache", "error", err)
			}
		}
		opts = append(opts, songgen.WithCache(e.cache))
	}
	e.svc = songgen.New(cfg.Config, store, opts...)
	log.Debug("loaded config", "path", cfg.Path, "storage", cfg.Storage.Backend, "cache", cfg.CacheDir)
	return e, nil
}
