// Package cli holds the terminal plumbing shared by songgen commands:
// result output (YAML or JSON), request file loading, the per-user
// directory layout, logger setup and lipgloss-styled summaries.
//
//	logger := cli.NewLogger(os.Stderr, verbose)
//	err := cli.Output(resp, cli.OutputOptions{Format: cli.FormatJSON})
package cli
