package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/songgen/cmd/songgen/internal/config"
	"github.com/haivivi/songgen/pkg/cli"
)

var trainEpochs int

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the fusion model and persist the artifact",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := format()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		e, err := openEnv(ctx, func(cfg *config.Config) {
			if trainEpochs > 0 {
				cfg.Train.Epochs = trainEpochs
			}
		})
		if err != nil {
			return err
		}
		defer e.close()

		rep, err := e.svc.Train(ctx)
		if err != nil {
			return err
		}
		if f != cli.FormatText {
			return cli.Output(rep, cli.OutputOptions{Format: f, Writer: cmd.OutOrStdout()})
		}
		h := rep.History
		fmt.Fprintln(cmd.OutOrStdout(), cli.Summary{
			Styles: cli.NewStyles(cli.DefaultTheme),
			Title:  "songgen train",
			Rows: []cli.Row{
				{Label: "examples", Value: fmt.Sprint(h.Examples)},
				{Label: "epochs", Value: fmt.Sprint(len(h.EpochLoss))},
				{Label: "batches", Value: fmt.Sprint(h.Batches)},
				{Label: "final loss", Value: fmt.Sprintf("%.6f", h.FinalLoss())},
				{Label: "duration", Value: cli.FormatDuration(h.Duration)},
			},
			Trend:      h.EpochLoss,
			TrendLabel: "loss",
			Footer:     "saved " + rep.ModelPath,
		}.Render())
		return nil
	},
}

func init() {
	trainCmd.Flags().IntVar(&trainEpochs, "epochs", 0, "override the configured epoch count")
	rootCmd.AddCommand(trainCmd)
}
