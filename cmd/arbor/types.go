package main

import "github.com/jward/arbor"

// CLIResult is the top-level JSON envelope for every command.
type CLIResult struct {
	Command string `json:"command"`
	File    string `json:"file,omitempty"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLINode is a JSON-friendly node.
type CLINode struct {
	ID        int         `json:"id"`
	Type      string      `json:"type"`
	Field     string      `json:"field,omitempty"`
	Named     bool        `json:"named"`
	StartByte uint32      `json:"start_byte"`
	EndByte   uint32      `json:"end_byte"`
	Start     arbor.Point `json:"start"`
	End       arbor.Point `json:"end"`
	Text      *string     `json:"text,omitempty"`
}

// CLIToken is one token or fringe element.
type CLIToken struct {
	Kind      string `json:"kind"`
	Type      string `json:"type"`
	Text      string `json:"text"`
	StartByte uint32 `json:"start_byte"`
	EndByte   uint32 `json:"end_byte"`
}

// CLICapture is one capture of a query match.
type CLICapture struct {
	Name string  `json:"name"`
	Node CLINode `json:"node"`
}

// CLIMatch is one query match.
type CLIMatch struct {
	Pattern  int          `json:"pattern"`
	Captures []CLICapture `json:"captures"`
}

// CLISnapshot reports one file of a snapshot run.
type CLISnapshot struct {
	Path       string `json:"path"`
	Grammar    string `json:"grammar"`
	SnapshotID int64  `json:"snapshot_id"`
	Skipped    bool   `json:"skipped"`
	Nodes      int    `json:"nodes"`
	Errors     int    `json:"errors"`
	Subtrees   int    `json:"subtrees"`
}

// CLIDuplicate is a repeated subtree shape.
type CLIDuplicate struct {
	Digest      string          `json:"digest"`
	Type        string          `json:"type"`
	Size        int             `json:"size"`
	Total       int             `json:"total"`
	Occurrences []CLIOccurrence `json:"occurrences"`
}

// CLIOccurrence locates a duplicate in one file. Lines and columns are
// 0-based.
type CLIOccurrence struct {
	File      string `json:"file"`
	Count     int    `json:"count"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
}

// CLILanguage is a loaded grammar and the extensions that select it.
type CLILanguage struct {
	Name       string   `json:"name"`
	Extensions []string `json:"extensions"`
}

func nodeToCLI(n arbor.Node, withText bool) CLINode {
	out := CLINode{
		ID:        n.ID(),
		Type:      n.Type(),
		Field:     n.Field(),
		Named:     n.IsNamed(),
		StartByte: n.StartByte(),
		EndByte:   n.EndByte(),
		Start:     n.StartPoint(),
		End:       n.EndPoint(),
	}
	if withText {
		if s, err := n.Text(); err == nil {
			out.Text = &s
		}
	}
	return out
}
