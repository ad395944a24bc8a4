package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/songgen/pkg/cli"
	"github.com/haivivi/songgen/pkg/generate"
	"github.com/haivivi/songgen/pkg/songgen"
)

var (
	genOut     string
	genPlan    string
	genSeed    int64
	genRequest string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a song as MIDI and WAV",
	Long: `Generate one song from the trained model. The seed example is drawn
from the corpus per track; --seed makes the draw reproducible.

A request file (YAML or JSON) may carry the same fields:

  output_path: songs/first
  seed: 7
  plan:
    sections:
      - {name: intro, repeats: 1}
      - {name: chorus, repeats: 2}`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := format()
		if err != nil {
			return err
		}
		var req songgen.Request
		if genRequest != "" {
			if err := cli.LoadRequest(genRequest, &req); err != nil {
				return err
			}
		}
		if genOut != "" {
			req.OutputPath = genOut
		}
		if genPlan != "" {
			plan, err := generate.LoadPlan(genPlan)
			if err != nil {
				return err
			}
			req.Plan = &plan
		}
		if cmd.Flags().Changed("seed") {
			req.Seed = &genSeed
		}

		ctx := cmd.Context()
		e, err := openEnv(ctx, nil)
		if err != nil {
			return err
		}
		defer e.close()

		resp := e.svc.Generate(ctx, req)
		if f == cli.FormatText && resp.Err == nil {
			rows := []cli.Row{
				{Label: "id", Value: resp.ID},
				{Label: "steps", Value: fmt.Sprint(resp.Steps)},
				{Label: "midi", Value: resp.MIDIPath},
				{Label: "wav", Value: resp.WAVPath},
				{Label: "audio", Value: cli.FormatAudioLength(resp.Samples, resp.SampleRate)},
				{Label: "elapsed", Value: cli.FormatDuration(resp.Duration)},
			}
			if len(resp.SilentTracks) > 0 {
				rows = append(rows, cli.Row{Label: "silent", Value: strings.Join(resp.SilentTracks, ", ")})
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.Summary{
				Styles: cli.NewStyles(cli.DefaultTheme),
				Title:  "songgen generate",
				Rows:   rows,
			}.Render())
		} else if err := cli.Output(resp, cli.OutputOptions{Format: f, Writer: cmd.OutOrStdout()}); err != nil {
			return err
		}
		return resp.Err
	},
}

func init() {
	fl := generateCmd.Flags()
	fl.StringVar(&genOut, "out", "", "output base path (default <output_dir>/<run id>)")
	fl.StringVar(&genPlan, "plan", "", "song plan YAML file")
	fl.Int64Var(&genSeed, "seed", 0, "seed for the seed-example draw")
	fl.StringVarP(&genRequest, "file", "f", "", "request file (YAML or JSON)")
	rootCmd.AddCommand(generateCmd)
}
