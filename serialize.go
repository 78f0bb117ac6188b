package arbor

// NodeMap is the nested-mapping form of a subtree. It marshals to JSON and
// YAML with the keys type, byte_range, text and children; byte_range and
// text appear only when requested.
type NodeMap struct {
	Type      string    `json:"type" yaml:"type"`
	ByteRange []uint32  `json:"byte_range,omitempty" yaml:"byte_range,omitempty,flow"`
	Text      *string   `json:"text,omitempty" yaml:"text,omitempty"`
	Children  []NodeMap `json:"children" yaml:"children"`
}

// SerializeOption configures ToMap.
type SerializeOption func(*serializeConfig)

type serializeConfig struct {
	byteRanges bool
	unnamed    bool
	text       bool
}

// ByteRanges includes each node's [start, end) as byte_range.
func ByteRanges(on bool) SerializeOption {
	return func(c *serializeConfig) { c.byteRanges = on }
}

// Unnamed keeps anonymous nodes such as punctuation and keywords in the
// children lists.
func Unnamed(on bool) SerializeOption {
	return func(c *serializeConfig) { c.unnamed = on }
}

// WithText records the source text of leaf nodes.
func WithText(on bool) SerializeOption {
	return func(c *serializeConfig) { c.text = on }
}

// ToMap converts the subtree rooted at n. Byte ranges, unnamed nodes and
// leaf text are all off by default. The result depends only on the subtree
// and the options.
func (n Node) ToMap(opts ...SerializeOption) NodeMap {
	var cfg serializeConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	n.tree.mustOpen()
	return n.tree.toMap(n.id, &cfg)
}

func (t *Tree) toMap(id int32, cfg *serializeConfig) NodeMap {
	d := &t.nodes[id]
	m := NodeMap{Type: d.typ, Children: make([]NodeMap, 0, d.count)}
	if cfg.byteRanges {
		m.ByteRange = []uint32{d.bytes.Start, d.bytes.End}
	}
	if cfg.text && d.count == 0 && int(d.bytes.End) <= len(t.source) {
		s := string(t.source[d.bytes.Start:d.bytes.End])
		m.Text = &s
	}
	for c := d.first; c < d.first+d.count; c++ {
		if !cfg.unnamed && !t.nodes[c].named {
			continue
		}
		m.Children = append(m.Children, t.toMap(c, cfg))
	}
	return m
}

// Equal reports whether m and o describe the same structure.
func (m NodeMap) Equal(o NodeMap) bool {
	if m.Type != o.Type || len(m.ByteRange) != len(o.ByteRange) || len(m.Children) != len(o.Children) {
		return false
	}
	for i := range m.ByteRange {
		if m.ByteRange[i] != o.ByteRange[i] {
			return false
		}
	}
	if (m.Text == nil) != (o.Text == nil) || (m.Text != nil && *m.Text != *o.Text) {
		return false
	}
	for i := range m.Children {
		if !m.Children[i].Equal(o.Children[i]) {
			return false
		}
	}
	return true
}

// AsMap returns m as plain maps and slices, for consumers that want
// untyped data.
func (m NodeMap) AsMap() map[string]any {
	children := make([]any, len(m.Children))
	for i, c := range m.Children {
		children[i] = c.AsMap()
	}
	out := map[string]any{
		"type":     m.Type,
		"children": children,
	}
	if m.ByteRange != nil {
		out["byte_range"] = []any{int64(m.ByteRange[0]), int64(m.ByteRange[1])}
	}
	if m.Text != nil {
		out["text"] = *m.Text
	}
	return out
}
