// Command klipmcu-gen is the cobra front-end over genconfig.Builder
// (spec §6 "Build-step surface"): it scans an annotated entry file and
// writes the generated dispatch/dictionary artifact to the --out path.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/klipmcu/klipmcu/genconfig"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		entry         string
		entryModule   string
		version       string
		buildVersions string
		skipCommands  []string
		out           string
		verbose       bool
	)

	cmd := &cobra.Command{
		Use:   "klipmcu-gen",
		Short: "Generate a klipmcu command dispatch artifact from an annotated entry file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
			if entry == "" {
				return fmt.Errorf("--entry is required")
			}
			if out == "" {
				return fmt.Errorf("--out is required")
			}

			b := genconfig.New().
				SetVersion(version).
				SetBuildVersions(buildVersions)
			if entryModule != "" {
				b.EntryModule(entry, entryModule)
			} else {
				b.Entry(entry)
			}
			for _, name := range skipCommands {
				b.SkipCommand(name)
			}
			return b.Build(out)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&entry, "entry", "", "path to the annotated entry source file")
	flags.StringVar(&entryModule, "entry-module", "", "Go module path the entry file belongs to, if not the invoking module")
	flags.StringVar(&version, "version", "", "firmware version string embedded in the data dictionary")
	flags.StringVar(&buildVersions, "build-versions", "", "toolchain/build-versions string embedded in the data dictionary")
	flags.StringArrayVar(&skipCommands, "skip-command", nil, "name of a command to exclude from the build (repeatable)")
	flags.StringVar(&out, "out", "", "output path for the generated artifact")
	flags.BoolVar(&verbose, "verbose", false, "enable debug logging")

	return cmd
}
