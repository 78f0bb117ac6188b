package arbor

import (
	"context"
	"fmt"
	"os"
)

// Source names where input bytes come from: a file on disk or an in-memory
// buffer with a name used for grammar resolution.
type Source struct {
	name string
	data []byte
	file bool
}

// FileSource refers to the file at path. It is read once, by Bytes.
func FileSource(path string) Source {
	return Source{name: path, file: true}
}

// BytesSource wraps data. name only drives grammar resolution and messages.
func BytesSource(name string, data []byte) Source {
	return Source{name: name, data: data}
}

func (s Source) Name() string { return s.name }
func (s Source) IsFile() bool { return s.file }

// Bytes returns the source content, reading the file for a FileSource.
func (s Source) Bytes() ([]byte, error) {
	if !s.file {
		return s.data, nil
	}
	data, err := os.ReadFile(s.name)
	if err != nil {
		return nil, fmt.Errorf("arbor: read %s: %w", s.name, err)
	}
	return data, nil
}

// grammarFor picks the grammar for a source whose content is already
// loaded. With detection enabled, content decides when the extension can't.
func (r *Registry) grammarFor(s Source, content []byte) (*Grammar, error) {
	if !r.detect {
		return r.ForFilename(s.name)
	}
	name, err := r.Detect(s.name, content)
	if err != nil {
		return nil, err
	}
	return r.Grammar(name)
}

// ParseSource loads s and parses it with the grammar its name resolves to.
func (r *Registry) ParseSource(ctx context.Context, s Source) (*Tree, error) {
	content, err := s.Bytes()
	if err != nil {
		return nil, err
	}
	g, err := r.grammarFor(s, content)
	if err != nil {
		return nil, err
	}
	return g.Parse(ctx, content)
}
