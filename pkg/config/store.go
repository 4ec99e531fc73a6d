package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/sidkik/san/pkg/errors"
)

// Preset is a named (source, dest) pair used to start a sync.
type Preset struct {
	Name   string
	Source string
	Dest   string
}

// Store is a handle on the config document. The document is a single YAML
// file with a top-level `presets` mapping:
//
//	presets:
//	  Docs:
//	    source: /home/u/docs
//	    dest: remote:/docs
//
// The Store assumes exclusive access to the document for the duration of
// each call. Concurrent writers from other processes race.
type Store struct {
	fs   afero.Fs
	path string
}

// NewStore returns a Store backed by the document at `path` on `fs`.
func NewStore(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path}
}

// Path returns the location of the backing document.
func (s *Store) Path() string {
	return s.path
}

// EnsureInitialized creates the document with an empty preset table if it
// doesn't exist, and adds the preset table if an existing document lacks one.
// It's idempotent.
func (s *Store) EnsureInitialized() error {
	_, err := s.load()
	return err
}

// Register inserts or overwrites the preset with the given name. All other
// entries, and any comments in the document, are preserved.
func (s *Store) Register(preset Preset) error {
	switch {
	case preset.Name == "":
		return errors.MissingFieldError{Field: "name"}
	case preset.Source == "":
		return errors.MissingFieldError{Preset: preset.Name, Field: sourceKey}
	case preset.Dest == "":
		return errors.MissingFieldError{Preset: preset.Name, Field: destKey}
	}

	doc, err := s.load()
	if err != nil {
		return err
	}

	presets := doc.presets()
	// New entries are written in block style even if the table was
	// previously the empty flow mapping `{}`.
	presets.Style &^= yaml.FlowStyle

	_, entry := lookup(presets, preset.Name)
	if entry == nil {
		entry = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		presets.Content = append(presets.Content, stringNode(preset.Name), entry)
	} else if entry.Kind != yaml.MappingNode {
		*entry = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map",
			HeadComment: entry.HeadComment, LineComment: entry.LineComment}
	}
	entry.Style &^= yaml.FlowStyle

	setString(entry, sourceKey, preset.Source)
	setString(entry, destKey, preset.Dest)
	return s.save(doc)
}

// Resolve looks up the preset with the given name.
func (s *Store) Resolve(name string) (Preset, error) {
	doc, err := s.load()
	if err != nil {
		return Preset{}, err
	}

	_, entry := lookup(doc.presets(), name)
	if entry == nil {
		return Preset{}, errors.PresetNotFound{Name: name}
	}

	source, ok := stringField(entry, sourceKey)
	if !ok {
		return Preset{}, errors.MissingFieldError{Preset: name, Field: sourceKey}
	}
	dest, ok := stringField(entry, destKey)
	if !ok {
		return Preset{}, errors.MissingFieldError{Preset: name, Field: destKey}
	}
	return Preset{Name: name, Source: source, Dest: dest}, nil
}

// List returns the names of all presets in the order they're stored in the
// document.
func (s *Store) List() ([]string, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	presets := doc.presets()
	names := make([]string, 0, len(presets.Content)/2)
	for i := 0; i+1 < len(presets.Content); i += 2 {
		names = append(names, presets.Content[i].Value)
	}
	return names, nil
}

// Remove deletes the preset with the given name.
func (s *Store) Remove(name string) error {
	doc, err := s.load()
	if err != nil {
		return err
	}

	presets := doc.presets()
	for i := 0; i+1 < len(presets.Content); i += 2 {
		if presets.Content[i].Value == name {
			presets.Content = append(presets.Content[:i], presets.Content[i+2:]...)
			return s.save(doc)
		}
	}
	return errors.PresetNotFound{Name: name}
}

// load reads and parses the document, creating or repairing it first if
// necessary.
func (s *Store) load() (*document, error) {
	contents, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.IOError{Op: "read", Path: s.path, Err: err}
		}
		if err := s.fs.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
			return nil, errors.IOError{Op: "create directory", Path: filepath.Dir(s.path), Err: err}
		}
		if err := afero.WriteFile(s.fs, s.path, []byte(emptyDocument), 0644); err != nil {
			return nil, errors.IOError{Op: "write", Path: s.path, Err: err}
		}
		contents = []byte(emptyDocument)
	}

	doc, err := parseDocument(s.path, contents)
	if err != nil {
		return nil, err
	}

	modified, err := doc.ensurePresets(s.path)
	if err != nil {
		return nil, err
	}
	if modified {
		if err := s.save(doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func (s *Store) save(doc *document) error {
	contents, err := doc.encode()
	if err != nil {
		return errors.WithContext(err, "encode")
	}
	if err := afero.WriteFile(s.fs, s.path, contents, 0644); err != nil {
		return errors.IOError{Op: "write", Path: s.path, Err: err}
	}
	return nil
}

// stringField returns the non-empty string value of `key` in a preset entry.
// Null values such as `~` count as missing.
func stringField(entry *yaml.Node, key string) (string, bool) {
	_, value := lookup(entry, key)
	if value == nil || value.Kind != yaml.ScalarNode ||
		value.ShortTag() == "!!null" || value.Value == "" {
		return "", false
	}
	return value.Value, true
}
