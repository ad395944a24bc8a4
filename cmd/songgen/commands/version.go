package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/songgen/cmd/songgen/internal/build"
	"github.com/haivivi/songgen/pkg/cli"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := format()
		if err != nil {
			return err
		}
		if outputFormat == "" || f == cli.FormatText {
			fmt.Fprintln(cmd.OutOrStdout(), build.String())
			return nil
		}
		return cli.Output(build.Current(), cli.OutputOptions{Format: f, Writer: cmd.OutOrStdout()})
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
