// Command songgen trains the multi-modal fusion model on a per-track
// corpus and generates songs from it.
//
// Usage:
//
//	songgen [flags] <command>
//
// Commands:
//
//	encode     Encode the corpus and report skipped tracks
//	train      Train the model and persist the artifact
//	generate   Generate a song (MIDI + WAV)
//	plan       Show the effective song plan
//	version    Show version information
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/songgen/cmd/songgen/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
