package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/arbor/internal/logging"
	"github.com/jward/arbor/internal/runtime"
	"github.com/jward/arbor/scripts"
)

var flagScriptsDir string

var scriptCmd = &cobra.Command{
	Use:   "script <name|file.risor> <file>",
	Short: "Run a Risor script against a file",
	Long: "Runs a bundled script (e.g. outline) or a .risor file on disk. The script sees the target " +
		"as the global file_path and gets parse, query, tokens, diff and the other tree host functions.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := resolveFilePath(args[1])
		if err != nil {
			return outputError("script", err)
		}

		opts := []runtime.RuntimeOption{runtime.WithRuntimeLogger(logging.Default())}
		scriptsDir := flagScriptsDir
		script := args[0]
		if info, err := os.Stat(script); err == nil && !info.IsDir() {
			if script, err = resolveFilePath(script); err != nil {
				return outputError("script", err)
			}
		} else {
			script = runtime.ScriptPath(script)
			if scriptsDir == "" {
				opts = append(opts, runtime.WithRuntimeFS(scripts.FS))
			}
		}

		rt := runtime.NewRuntime(registry, scriptsDir, opts...)
		err = rt.RunScript(cmd.Context(), script, map[string]any{
			"file_path": target,
		})
		if err != nil {
			return outputError("script", err)
		}
		return nil
	},
}

func init() {
	scriptCmd.Flags().StringVar(&flagScriptsDir, "scripts-dir", "", "load named scripts from this directory instead of the bundled ones")
}
