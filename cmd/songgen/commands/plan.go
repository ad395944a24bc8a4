package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/songgen/pkg/cli"
	"github.com/haivivi/songgen/pkg/generate"
)

var planFile string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the effective song plan and its step count",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := format()
		if err != nil {
			return err
		}
		plan, err := effectivePlan(planFile)
		if err != nil {
			return err
		}
		if f == cli.FormatText {
			var b strings.Builder
			for _, s := range plan.Sections {
				fmt.Fprintf(&b, "%s ×%d\n", s.Name, s.Repeats)
			}
			fmt.Fprintf(&b, "%d steps", plan.Steps())
			fmt.Fprintln(cmd.OutOrStdout(), b.String())
			return nil
		}
		out := struct {
			generate.Plan `yaml:",inline"`
			Steps         int `json:"steps" yaml:"steps"`
		}{plan, plan.Steps()}
		return cli.Output(out, cli.OutputOptions{Format: f, Writer: cmd.OutOrStdout()})
	},
}

// effectivePlan is the plan in file, or the configured plan.
func effectivePlan(file string) (generate.Plan, error) {
	if file != "" {
		return generate.LoadPlan(file)
	}
	cfg, err := loadConfig()
	if err != nil {
		return generate.Plan{}, err
	}
	return cfg.Plan, nil
}

func init() {
	planCmd.Flags().StringVarP(&planFile, "file", "f", "", "plan YAML file")
	rootCmd.AddCommand(planCmd)
}
