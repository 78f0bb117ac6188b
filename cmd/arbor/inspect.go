package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jward/arbor"
	"github.com/jward/arbor/internal/ui/pretty"
)

// parseFileArg parses the file named by a positional argument.
func parseFileArg(ctx context.Context, file string) (*arbor.Tree, string, error) {
	abs, err := resolveFilePath(file)
	if err != nil {
		return nil, "", err
	}
	tree, err := registry.ParseSource(ctx, arbor.FileSource(abs))
	if err != nil {
		return nil, "", err
	}
	return tree, abs, nil
}

// parseOffsetArg parses a byte offset with a clear error.
func parseOffsetArg(value string) (uint32, error) {
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid offset %q: must be a non-negative integer", value)
	}
	return uint32(n), nil
}

// --- parse ---

var (
	flagByteRanges bool
	flagUnnamed    bool
	flagSexp       bool
)

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Print the syntax tree of a file",
	Long:  "Parses a file and prints its tree as JSON or YAML maps, an S-expression (--sexp), or an indented outline (--format text).",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, file, err := parseFileArg(cmd.Context(), args[0])
		if err != nil {
			return outputError("parse", err)
		}
		defer tree.Close()

		if flagSexp {
			_, err := fmt.Fprintln(stdout, tree.String())
			return err
		}
		return outputResult(CLIResult{
			Command: "parse",
			File:    file,
			Results: tree.ToMap(arbor.ByteRanges(flagByteRanges), arbor.Unnamed(flagUnnamed)),
		}, func(w io.Writer) error {
			return pretty.RenderTree(w, styles(), tree.Root(), pretty.TreeOptions{
				Unnamed: flagUnnamed,
				Width:   pretty.TerminalWidth(w),
			})
		})
	},
}

func init() {
	parseCmd.Flags().BoolVar(&flagByteRanges, "byte-ranges", false, "include byte ranges")
	parseCmd.Flags().BoolVar(&flagUnnamed, "unnamed", false, "include anonymous nodes")
	parseCmd.Flags().BoolVar(&flagSexp, "sexp", false, "print an S-expression of named nodes")
}

// --- path / find ---

var flagNearest string

var pathCmd = &cobra.Command{
	Use:   "path <file> <offset>",
	Short: "Print the chain of nodes from the root to a byte offset",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, file, err := parseFileArg(cmd.Context(), args[0])
		if err != nil {
			return outputError("path", err)
		}
		defer tree.Close()
		off, err := parseOffsetArg(args[1])
		if err != nil {
			return outputError("path", err)
		}
		p, err := tree.PathTo(off)
		if err != nil {
			return outputError("path", err)
		}

		var nodes []CLINode
		if flagNearest != "" {
			i, ok := p.RIndexByType(flagNearest)
			if !ok {
				return outputError("path", fmt.Errorf("no %s encloses offset %d", flagNearest, off))
			}
			nodes = []CLINode{nodeToCLI(p.At(i).Node, true)}
		} else {
			for _, e := range p.Entries() {
				nodes = append(nodes, nodeToCLI(e.Node, false))
			}
		}
		return outputResult(CLIResult{Command: "path", File: file, Results: nodes}, func(w io.Writer) error {
			if flagNearest != "" {
				return formatNodesText(w, nodes)
			}
			_, err := fmt.Fprintln(w, p.String())
			return err
		})
	},
}

func init() {
	pathCmd.Flags().StringVar(&flagNearest, "nearest", "", "print only the innermost enclosing node of this type")
}

var findCmd = &cobra.Command{
	Use:   "find <file> <offset>",
	Short: "Print the deepest node containing a byte offset",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, file, err := parseFileArg(cmd.Context(), args[0])
		if err != nil {
			return outputError("find", err)
		}
		defer tree.Close()
		off, err := parseOffsetArg(args[1])
		if err != nil {
			return outputError("find", err)
		}
		n, err := tree.FindByByte(off)
		if err != nil {
			return outputError("find", err)
		}
		node := nodeToCLI(n, true)
		return outputResult(CLIResult{Command: "find", File: file, Results: node}, func(w io.Writer) error {
			return formatNodesText(w, []CLINode{node})
		})
	},
}

// --- tokens ---

var (
	flagWhitespace bool
	flagNoComments bool
)

var tokensCmd = &cobra.Command{
	Use:   "tokens <file>",
	Short: "Print the token stream of a file",
	Long:  "Prints the leaves of the tree in source order. Comments are kept and whitespace dropped unless the flags say otherwise.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, file, err := parseFileArg(cmd.Context(), args[0])
		if err != nil {
			return outputError("tokens", err)
		}
		defer tree.Close()

		ignoreWS := cfg.Tokenize.IgnoreWhitespace
		if cmd.Flags().Changed("whitespace") {
			ignoreWS = !flagWhitespace
		}
		ignoreComments := cfg.Tokenize.IgnoreComments
		if cmd.Flags().Changed("no-comments") {
			ignoreComments = flagNoComments
		}

		toks := []CLIToken{}
		for tok := range tree.Tokenize(arbor.IgnoreWhitespace(ignoreWS), arbor.IgnoreComments(ignoreComments)) {
			toks = append(toks, CLIToken{
				Kind:      tok.Kind.String(),
				Type:      tok.Type,
				Text:      tok.Text(),
				StartByte: tok.Range.Start,
				EndByte:   tok.Range.End,
			})
		}
		return outputResult(CLIResult{Command: "tokens", File: file, Results: toks}, func(w io.Writer) error {
			return formatTokensText(w, toks)
		})
	},
}

func init() {
	tokensCmd.Flags().BoolVar(&flagWhitespace, "whitespace", false, "include whitespace tokens")
	tokensCmd.Flags().BoolVar(&flagNoComments, "no-comments", false, "drop comment tokens")
}

// --- query ---

var (
	flagStartByte uint32
	flagEndByte   uint32
)

var queryCmd = &cobra.Command{
	Use:   "query <file> <pattern>",
	Short: "Run a tree-sitter query against a file",
	Long:  "Runs a tree-sitter query pattern. With --start-byte/--end-byte only matches with a capture inside the window are printed.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, file, err := parseFileArg(cmd.Context(), args[0])
		if err != nil {
			return outputError("query", err)
		}
		defer tree.Close()

		q, err := arbor.NewQuery(tree.Grammar(), args[1])
		if err != nil {
			return outputError("query", err)
		}
		defer q.Close()

		var opts []arbor.QueryOption
		if cmd.Flags().Changed("start-byte") {
			opts = append(opts, arbor.StartByte(flagStartByte))
		}
		if cmd.Flags().Changed("end-byte") {
			opts = append(opts, arbor.EndByte(flagEndByte))
		}
		matches, err := q.Run(tree.Root(), opts...)
		if err != nil {
			return outputError("query", err)
		}

		out := make([]CLIMatch, 0, len(matches))
		for _, m := range matches {
			cm := CLIMatch{Pattern: m.Pattern}
			for _, c := range m.Captures {
				cm.Captures = append(cm.Captures, CLICapture{Name: c.Name, Node: nodeToCLI(c.Node, true)})
			}
			out = append(out, cm)
		}
		return outputResult(CLIResult{Command: "query", File: file, Results: out}, func(w io.Writer) error {
			return formatMatchesText(w, out)
		})
	},
}

func init() {
	queryCmd.Flags().Uint32Var(&flagStartByte, "start-byte", 0, "window start (inclusive)")
	queryCmd.Flags().Uint32Var(&flagEndByte, "end-byte", 0, "window end (exclusive)")
}
