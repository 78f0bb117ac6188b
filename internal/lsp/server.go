// Package lsp serves arbor trees over the Language Server Protocol. It
// keeps one parsed tree per open document and answers
// textDocument/selectionRange from the ancestor chain at each position.
package lsp

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	_ "github.com/tliron/commonlog/simple"

	"github.com/jward/arbor"
)

const lsName = "arbor"

// Server is an LSP server over arbor trees.
type Server struct {
	registry *arbor.Registry
	handler  protocol.Handler
	server   *server.Server
	version  string
	log      commonlog.Logger

	mu   sync.Mutex
	docs map[string]*arbor.Tree
}

// ConfigureLogging sets commonlog's verbosity from an arbor log level.
// Output goes to stderr; stdout carries the protocol.
func ConfigureLogging(level string) {
	verbosity := 0
	switch strings.ToLower(level) {
	case "debug":
		verbosity = 2
	case "info":
		verbosity = 1
	}
	commonlog.Configure(verbosity, nil)
}

// NewServer creates a server parsing with reg (DefaultRegistry when nil).
func NewServer(reg *arbor.Registry, version string) *Server {
	if reg == nil {
		reg = arbor.DefaultRegistry()
	}
	s := &Server{
		registry: reg,
		version:  version,
		log:      commonlog.GetLogger("arbor.lsp"),
		docs:     make(map[string]*arbor.Tree),
	}
	s.handler = protocol.Handler{
		Initialize:                 s.initialize,
		Initialized:                s.initialized,
		Shutdown:                   s.shutdown,
		SetTrace:                   s.setTrace,
		TextDocumentDidOpen:        s.textDocumentDidOpen,
		TextDocumentDidChange:      s.textDocumentDidChange,
		TextDocumentDidClose:       s.textDocumentDidClose,
		TextDocumentSelectionRange: s.textDocumentSelectionRange,
	}
	s.server = server.NewServer(&s.handler, lsName, false)
	return s
}

// RunStdio serves the protocol on stdin/stdout until the client exits.
func (s *Server) RunStdio() error {
	return s.server.RunStdio()
}

func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	capabilities := s.handler.CreateServerCapabilities()
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    syncKindPtr(protocol.TextDocumentSyncKindFull),
	}
	capabilities.SelectionRangeProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &s.version,
		},
	}, nil
}

func (s *Server) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *Server) shutdown(ctx *glsp.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for uri, t := range s.docs {
		t.Close()
		delete(s.docs, uri)
	}
	return nil
}

func (s *Server) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (s *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	doc := params.TextDocument
	if err := s.Open(context.Background(), doc.URI, doc.LanguageID, doc.Text); err != nil {
		s.log.Warningf("open %s: %s", doc.URI, err)
	}
	return nil
}

func (s *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}
	change := params.ContentChanges[len(params.ContentChanges)-1]
	whole, ok := change.(protocol.TextDocumentContentChangeEventWhole)
	if !ok {
		return nil
	}
	if err := s.Update(context.Background(), params.TextDocument.URI, whole.Text); err != nil {
		s.log.Warningf("change %s: %s", params.TextDocument.URI, err)
	}
	return nil
}

func (s *Server) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.Close(params.TextDocument.URI)
	return nil
}

func (s *Server) textDocumentSelectionRange(ctx *glsp.Context, params *protocol.SelectionRangeParams) ([]protocol.SelectionRange, error) {
	return s.SelectionRanges(params.TextDocument.URI, params.Positions)
}

// grammarFor picks a grammar by the document's file extension, falling back
// to its language id.
func (s *Server) grammarFor(uri, languageID string) (*arbor.Grammar, error) {
	if g, err := s.registry.ForFilename(uriToPath(uri)); err == nil {
		return g, nil
	}
	return s.registry.Grammar(languageID)
}

// Open parses text as the content of uri, replacing any earlier version.
func (s *Server) Open(ctx context.Context, uri, languageID, text string) error {
	g, err := s.grammarFor(uri, languageID)
	if err != nil {
		return err
	}
	t, err := g.Parse(ctx, []byte(text))
	if err != nil {
		return err
	}
	s.replace(uri, t)
	s.log.Debugf("parsed %s as %s: %d nodes", uri, g.Name(), t.Len())
	return nil
}

// Update reparses an open document with new content.
func (s *Server) Update(ctx context.Context, uri, text string) error {
	s.mu.Lock()
	old, ok := s.docs[uri]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("lsp: %s is not open", uri)
	}
	t, err := old.Grammar().Parse(ctx, []byte(text))
	if err != nil {
		return err
	}
	s.replace(uri, t)
	return nil
}

func (s *Server) replace(uri string, t *arbor.Tree) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.docs[uri]; ok {
		old.Close()
	}
	s.docs[uri] = t
}

// Close forgets uri.
func (s *Server) Close(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.docs[uri]; ok {
		t.Close()
		delete(s.docs, uri)
	}
}

// SelectionRanges returns, for each position, the chain of enclosing
// nodes from innermost outward. Ancestors with the same range as their
// child are collapsed.
func (s *Server) SelectionRanges(uri string, positions []protocol.Position) ([]protocol.SelectionRange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.docs[uri]
	if !ok {
		return nil, fmt.Errorf("lsp: %s is not open", uri)
	}

	out := make([]protocol.SelectionRange, 0, len(positions))
	for _, pos := range positions {
		out = append(out, selectionAt(t, byteOffset(t, pos)))
	}
	return out, nil
}

func selectionAt(t *arbor.Tree, b uint32) protocol.SelectionRange {
	if t.Len() == 0 || len(t.Source()) == 0 {
		return protocol.SelectionRange{Range: lspRange(t, arbor.Range{})}
	}
	if int(b) >= len(t.Source()) {
		b = uint32(len(t.Source()) - 1)
	}
	path, err := t.PathTo(b)
	if err != nil {
		return protocol.SelectionRange{Range: lspRange(t, t.Root().Range())}
	}

	var sel *protocol.SelectionRange
	var last arbor.Range
	for _, n := range path.Nodes() {
		r := n.Range()
		if sel != nil && r == last {
			continue
		}
		sel = &protocol.SelectionRange{Range: lspRange(t, r), Parent: sel}
		last = r
	}
	return *sel
}

func uriToPath(uri string) string {
	if strings.HasPrefix(uri, "file://") {
		if parsed, err := url.Parse(uri); err == nil {
			return filepath.Clean(parsed.Path)
		}
	}
	return uri
}

func boolPtr(b bool) *bool {
	return &b
}

func syncKindPtr(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind {
	return &k
}
