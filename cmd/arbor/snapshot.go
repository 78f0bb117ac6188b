package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/arbor"
	"github.com/jward/arbor/internal/logging"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [path...]",
	Short: "Store parsed snapshots of files for later diffs",
	Long: "Parses each file (directories are walked, honoring .gitignore inside a git repository) " +
		"and stores its source and subtree counts. Unchanged files are skipped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			args = []string{"."}
		}
		engine, err := openEngine()
		if err != nil {
			return outputError("snapshot", err)
		}
		defer engine.Close()
		if engine.DigestsChanged() {
			logging.Default().Warn("database holds digests from another arbor version; duplicate counts may be split")
		}

		results, err := snapshotPaths(cmd, engine, args)
		if err != nil {
			return outputError("snapshot", err)
		}

		out := make([]CLISnapshot, 0, len(results))
		for _, r := range results {
			out = append(out, CLISnapshot{
				Path:       r.Path,
				Grammar:    r.Grammar,
				SnapshotID: r.SnapshotID,
				Skipped:    r.Skipped,
				Nodes:      r.Nodes,
				Errors:     r.Errors,
				Subtrees:   r.Subtrees,
			})
		}
		return outputResult(CLIResult{Command: "snapshot", Results: out}, func(w io.Writer) error {
			return formatSnapshotsText(w, out)
		})
	},
}

// snapshotPaths snapshots files directly and directories recursively.
func snapshotPaths(cmd *cobra.Command, engine *arbor.Engine, args []string) ([]arbor.SnapshotResult, error) {
	var (
		files   []string
		results []arbor.SnapshotResult
	)
	for _, arg := range args {
		abs, err := resolveFilePath(arg)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("path not found: %s", abs)
		}
		if !info.IsDir() {
			files = append(files, abs)
			continue
		}
		rs, err := engine.SnapshotDirectory(cmd.Context(), abs)
		results = append(results, rs...)
		if err != nil {
			return results, err
		}
	}
	if len(files) > 0 {
		rs, err := engine.Snapshot(cmd.Context(), files)
		results = append(results, rs...)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

var (
	flagMinCount int
	flagMinSize  int
)

var dupesCmd = &cobra.Command{
	Use:   "dupes [path...]",
	Short: "Report repeated subtrees across snapshotted files",
	Long:  "Snapshots the given paths (if any) and prints subtree shapes that occur at least --min times across the latest snapshots.",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return outputError("dupes", err)
		}
		defer engine.Close()

		if len(args) > 0 {
			if _, err := snapshotPaths(cmd, engine, args); err != nil {
				return outputError("dupes", err)
			}
		}

		minCount := cfg.Snapshot.MinCount
		if cmd.Flags().Changed("min") {
			minCount = flagMinCount
		}
		minSize := cfg.Snapshot.MinSize
		if cmd.Flags().Changed("min-size") {
			minSize = flagMinSize
		}
		dupes, err := engine.Duplicates(minCount, minSize)
		if err != nil {
			return outputError("dupes", err)
		}

		out := make([]CLIDuplicate, 0, len(dupes))
		for _, d := range dupes {
			cd := CLIDuplicate{Digest: d.Digest, Type: d.Type, Size: d.Size, Total: d.Total}
			for _, o := range d.Occurrences {
				cd.Occurrences = append(cd.Occurrences, CLIOccurrence{
					File:      o.Path,
					Count:     o.Count,
					StartLine: o.StartLine,
					StartCol:  o.StartCol,
				})
			}
			out = append(out, cd)
		}
		return outputResult(CLIResult{Command: "dupes", Results: out}, func(w io.Writer) error {
			return formatDuplicatesText(w, out)
		})
	},
}

func init() {
	dupesCmd.Flags().IntVar(&flagMinCount, "min", 2, "minimum number of occurrences")
	dupesCmd.Flags().IntVar(&flagMinSize, "min-size", 4, "minimum subtree size in named nodes")
}
