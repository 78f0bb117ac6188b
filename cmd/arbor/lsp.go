package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/jward/arbor/internal/lsp"
)

var lspCmd = &cobra.Command{
	Use:   "lsp",
	Short: "Run a language server over stdio",
	Long:  "Serves textDocument/selectionRange for every grammar arbor knows, computed from the chain of enclosing nodes.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lsp.ConfigureLogging(cfg.LogLevel)
		return lsp.NewServer(registry, version).RunStdio()
	},
}

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List the loaded grammars and their file extensions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var langs []CLILanguage
		for _, name := range registry.Names() {
			exts := registry.Extensions(name)
			if exts == nil {
				exts = []string{}
			}
			langs = append(langs, CLILanguage{Name: name, Extensions: exts})
		}
		return outputResult(CLIResult{Command: "languages", Results: langs}, func(w io.Writer) error {
			return formatLanguagesText(w, langs)
		})
	},
}
