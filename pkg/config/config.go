package config

import (
	"bytes"

	"gopkg.in/yaml.v3"

	"github.com/sidkik/san/pkg/errors"
)

const (
	presetsKey  = "presets"
	settingsKey = "settings"
	sourceKey   = "source"
	destKey     = "dest"

	// emptyDocument is written when the config document doesn't exist yet.
	emptyDocument = "presets: {}\n"
)

// document is a parsed config file. It keeps the yaml.Node tree rather than
// a decoded struct so that comments, key order and fields we don't know about
// survive a read-modify-write cycle.
type document struct {
	root yaml.Node
}

func parseDocument(path string, contents []byte) (*document, error) {
	doc := &document{}
	if err := yaml.Unmarshal(contents, &doc.root); err != nil {
		return nil, errors.ParseError{Path: path, Err: err}
	}

	// An empty file decodes into a zero node.
	if doc.root.Kind == 0 {
		doc.root = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
		}
	}

	// A file that only contains comments has no content node.
	if doc.root.Kind == yaml.DocumentNode && len(doc.root.Content) == 0 {
		doc.root.Content = []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}
	}

	if doc.root.Kind != yaml.DocumentNode || len(doc.root.Content) != 1 {
		return nil, errors.ParseError{Path: path, Err: errors.New("expected a single document")}
	}

	top := doc.root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, errors.ParseError{Path: path,
			Err: errors.Errorf("top level must be a mapping, got %s", kindName(top.Kind))}
	}
	return doc, nil
}

func (doc *document) encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc.root); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (doc *document) top() *yaml.Node {
	return doc.root.Content[0]
}

// presets returns the `presets` mapping, or nil if the document doesn't have
// one.
func (doc *document) presets() *yaml.Node {
	_, value := lookup(doc.top(), presetsKey)
	return value
}

// ensurePresets adds an empty `presets` mapping if it's missing or null. It
// returns whether the document was modified.
func (doc *document) ensurePresets(path string) (bool, error) {
	top := doc.top()
	_, value := lookup(top, presetsKey)
	switch {
	case value == nil:
		top.Content = append(top.Content,
			stringNode(presetsKey),
			&yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"})
		return true, nil
	case value.Kind == yaml.ScalarNode && value.Tag == "!!null":
		*value = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map",
			HeadComment: value.HeadComment, LineComment: value.LineComment}
		return true, nil
	case value.Kind != yaml.MappingNode:
		return false, errors.ParseError{Path: path,
			Err: errors.Errorf("%q must be a mapping, got %s", presetsKey, kindName(value.Kind))}
	}
	return false, nil
}

// lookup returns the key and value nodes for `key` in a mapping node.
func lookup(mapping *yaml.Node, key string) (*yaml.Node, *yaml.Node) {
	if mapping == nil || mapping.Kind != yaml.MappingNode {
		return nil, nil
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i], mapping.Content[i+1]
		}
	}
	return nil, nil
}

// setString sets `key` to the string `value` in a mapping node, reusing the
// existing value node so that comments attached to it are kept.
func setString(mapping *yaml.Node, key, value string) {
	if _, existing := lookup(mapping, key); existing != nil {
		existing.Kind = yaml.ScalarNode
		existing.Tag = "!!str"
		existing.Style = 0
		existing.Value = value
		existing.Content = nil
		return
	}
	mapping.Content = append(mapping.Content, stringNode(key), stringNode(value))
}

func stringNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

func kindName(kind yaml.Kind) string {
	switch kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	}
	return "unknown"
}
