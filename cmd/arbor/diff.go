package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/jward/arbor"
)

var flagEqual bool

var diffCmd = &cobra.Command{
	Use:   "diff <old> [new]",
	Short: "Structurally diff two files, or a file against its latest snapshot",
	Long: "Compares two syntax trees and prints one record per changed, inserted or removed subtree. " +
		"With a single argument the file on disk is compared to its latest snapshot.",
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		equal := cfg.Diff.OutputEqual
		if cmd.Flags().Changed("equal") {
			equal = flagEqual
		}
		opts := []arbor.DiffOption{arbor.OutputEqual(equal)}

		var (
			file    string
			records []arbor.DiffRecord
		)
		if len(args) == 1 {
			abs, err := resolveFilePath(args[0])
			if err != nil {
				return outputError("diff", err)
			}
			engine, err := openEngine()
			if err != nil {
				return outputError("diff", err)
			}
			defer engine.Close()
			d, err := engine.DiffSnapshot(cmd.Context(), abs, opts...)
			if err != nil {
				return outputError("diff", err)
			}
			defer d.Close()
			file, records = abs, d.Records
		} else {
			old, _, err := parseFileArg(cmd.Context(), args[0])
			if err != nil {
				return outputError("diff", err)
			}
			defer old.Close()
			cur, abs, err := parseFileArg(cmd.Context(), args[1])
			if err != nil {
				return outputError("diff", err)
			}
			defer cur.Close()
			if records, err = arbor.DiffTrees(old, cur, opts...); err != nil {
				return outputError("diff", err)
			}
			file = abs
		}

		if records == nil {
			records = []arbor.DiffRecord{}
		}
		return outputResult(CLIResult{Command: "diff", File: file, Results: records}, func(w io.Writer) error {
			return formatDiffText(w, records)
		})
	},
}

func init() {
	diffCmd.Flags().BoolVar(&flagEqual, "equal", false, "also print unchanged subtrees")
}
