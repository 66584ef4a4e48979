package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"shelter-media/internal/logging"
)

type rootOptions struct {
	json     bool
	noLock   bool
	logLevel string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "mediatool",
		Short:         "Batch maintenance for shelter media",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.logLevel == "" {
				return nil
			}
			level, ok := logging.ParseLevel(opts.logLevel)
			if !ok {
				return fmt.Errorf("invalid log level %q", opts.logLevel)
			}
			logging.SetLevel(level)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&opts.json, "json", false, "Print results as JSON")
	flags.BoolVar(&opts.noLock, "no-lock", false, "Run without taking the mediatool lock")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newExpireCommand(opts))
	rootCmd.AddCommand(newScaleCommand(opts, "scale-images", "Rescale every animal picture to the incoming scale", scaleImages))
	rootCmd.AddCommand(newScaleCommand(opts, "scale-pdfs", "Recompress every stored PDF", scalePDFs))
	rootCmd.AddCommand(newScaleCommand(opts, "scale-odts", "Strip embedded thumbnails from every stored ODT", scaleODTs))
	rootCmd.AddCommand(newVacuumCommand(opts))

	return rootCmd
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
