package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/jward/arbor"
	"github.com/jward/arbor/internal/ui/pretty"
)

// stdout is where results go.
var stdout io.Writer = os.Stdout

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "yaml", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, ", "))
}

func styles() *pretty.Styles {
	return pretty.NewStyles(pretty.IsColorEnabled(flagColor, stdout))
}

// outputResult writes result in the selected format. Text output is
// produced by textFn, which receives only the results.
func outputResult(result CLIResult, textFn func(w io.Writer) error) error {
	switch flagFormat {
	case "text":
		if textFn == nil {
			return fmt.Errorf("%s: text output not supported", result.Command)
		}
		return textFn(stdout)
	case "yaml":
		return encodeYAML(stdout, result)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// encodeYAML writes v as YAML with the same keys as its JSON encoding.
func encodeYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON and YAML mode the error is written to
// stdout as a CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	switch flagFormat {
	case "text":
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	case "yaml":
		_ = encodeYAML(stdout, CLIResult{Command: command, Error: err.Error()})
	default:
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	}
	return err
}

// formatNodesText writes one node per line as aligned columns.
func formatNodesText(w io.Writer, nodes []CLINode) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tFIELD\tSTART\tEND\tTEXT")
	for _, n := range nodes {
		text := ""
		if n.Text != nil {
			text = pretty.Snippet(*n.Text, 40)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", n.ID, n.Type, n.Field, n.Start, n.End, text)
	}
	return tw.Flush()
}

func formatTokensText(w io.Writer, toks []CLIToken) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tTYPE\tRANGE\tTEXT")
	for _, t := range toks {
		fmt.Fprintf(tw, "%s\t%s\t[%d, %d)\t%q\n", t.Kind, t.Type, t.StartByte, t.EndByte, t.Text)
	}
	return tw.Flush()
}

func formatMatchesText(w io.Writer, matches []CLIMatch) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MATCH\tCAPTURE\tTYPE\tSTART\tTEXT")
	for i, m := range matches {
		for _, c := range m.Captures {
			text := ""
			if c.Node.Text != nil {
				text = pretty.Snippet(*c.Node.Text, 40)
			}
			fmt.Fprintf(tw, "%d\t@%s\t%s\t%s\t%s\n", i, c.Name, c.Node.Type, c.Node.Start, text)
		}
	}
	return tw.Flush()
}

func formatSnapshotsText(w io.Writer, results []CLISnapshot) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tGRAMMAR\tSNAPSHOT\tNODES\tERRORS\tSTATUS")
	for _, r := range results {
		status := "stored"
		if r.Skipped {
			status = "unchanged"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n", r.Path, r.Grammar, r.SnapshotID, r.Nodes, r.Errors, status)
	}
	return tw.Flush()
}

func formatDuplicatesText(w io.Writer, dupes []CLIDuplicate) error {
	for _, d := range dupes {
		fmt.Fprintf(w, "%s  %s  size %d  x%d\n", d.Digest[:12], d.Type, d.Size, d.Total)
		for _, o := range d.Occurrences {
			fmt.Fprintf(w, "  %s:%d:%d (x%d)\n", o.File, o.StartLine, o.StartCol, o.Count)
		}
	}
	return nil
}

func formatLanguagesText(w io.Writer, langs []CLILanguage) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "GRAMMAR\tEXTENSIONS")
	for _, l := range langs {
		fmt.Fprintf(tw, "%s\t%s\n", l.Name, strings.Join(l.Extensions, " "))
	}
	return tw.Flush()
}

func formatDiffText(w io.Writer, records []arbor.DiffRecord) error {
	return pretty.RenderDiff(w, styles(), records, pretty.TerminalWidth(w))
}
