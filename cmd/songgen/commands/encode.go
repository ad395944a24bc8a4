package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/songgen/pkg/cli"
)

var purgeCache bool

type encodedTrack struct {
	Role    string   `json:"role" yaml:"role"`
	Skipped []string `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Key     int      `json:"key" yaml:"key"`
	Minor   bool     `json:"minor" yaml:"minor"`
	Chords  int      `json:"chords" yaml:"chords"`
	HasNext bool     `json:"has_next" yaml:"has_next"`
}

type encodedRecording struct {
	Recording string         `json:"recording" yaml:"recording"`
	Tracks    []encodedTrack `json:"tracks" yaml:"tracks"`
}

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Encode the corpus and report what each track contributes",
	Long: `Encode every recording of the corpus into symbolic, spectral and theory
windows. Results are stored in the corpus cache when one is configured, so
later train and generate runs skip decoding.

Unreadable tracks are logged and reported as skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := format()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		e, err := openEnv(ctx, nil)
		if err != nil {
			return err
		}
		defer e.close()

		if purgeCache {
			if e.cache == nil {
				return fmt.Errorf("--purge: no cache_dir configured")
			}
			if err := e.cache.Purge(ctx); err != nil {
				return fmt.Errorf("purge cache: %w", err)
			}
			e.logger.Info("purged corpus cache", "dir", e.cfg.CacheDir)
		}

		examples, err := e.svc.EncodeCorpus(ctx)
		if err != nil {
			return err
		}
		out := make([]encodedRecording, 0, len(examples))
		for _, ex := range examples {
			rec := encodedRecording{Recording: ex.Recording}
			for _, t := range ex.Tracks {
				et := encodedTrack{
					Role:    string(t.Role),
					Key:     t.Theory.Key,
					Minor:   t.Theory.Minor,
					Chords:  len(t.Theory.Chords),
					HasNext: t.NextSymbolic != nil || t.NextSpectral != nil,
				}
				if t.SymbolicSkipped {
					et.Skipped = append(et.Skipped, "symbolic")
				}
				if t.SpectralSkipped {
					et.Skipped = append(et.Skipped, "spectral")
				}
				rec.Tracks = append(rec.Tracks, et)
			}
			out = append(out, rec)
		}
		return cli.Output(out, cli.OutputOptions{Format: f, Writer: cmd.OutOrStdout()})
	},
}

func init() {
	encodeCmd.Flags().BoolVar(&purgeCache, "purge", false, "drop cached examples before encoding")
	rootCmd.AddCommand(encodeCmd)
}
