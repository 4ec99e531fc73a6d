package config

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/san/pkg/errors"
)

const testPath = "/home/u/.config/san/config.yaml"

func newTestStore(t *testing.T, contents string) (*Store, afero.Fs) {
	fs := afero.NewMemMapFs()
	if contents != "" {
		require.NoError(t, fs.MkdirAll("/home/u/.config/san", 0755))
		require.NoError(t, afero.WriteFile(fs, testPath, []byte(contents), 0644))
	}
	return NewStore(fs, testPath), fs
}

func readDocument(t *testing.T, fs afero.Fs) string {
	contents, err := afero.ReadFile(fs, testPath)
	require.NoError(t, err)
	return string(contents)
}

func TestEnsureInitialized(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		expDoc   string
	}{
		{
			name:   "Missing document",
			expDoc: "presets: {}\n",
		},
		{
			name:     "Missing preset table",
			existing: "# my settings\nsettings:\n  interval: 5s\n",
			expDoc:   "# my settings\nsettings:\n  interval: 5s\npresets: {}\n",
		},
		{
			name:     "Null preset table",
			existing: "presets:\n",
			expDoc:   "presets: {}\n",
		},
		{
			name:     "Already initialized",
			existing: "presets:\n  Docs:\n    source: /a\n    dest: b:/c\n",
			expDoc:   "presets:\n  Docs:\n    source: /a\n    dest: b:/c\n",
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			store, fs := newTestStore(t, test.existing)
			require.NoError(t, store.EnsureInitialized())
			assert.Equal(t, test.expDoc, readDocument(t, fs))

			// A second call doesn't change anything.
			require.NoError(t, store.EnsureInitialized())
			assert.Equal(t, test.expDoc, readDocument(t, fs))
		})
	}
}

func TestEnsureInitializedCreatesParents(t *testing.T) {
	store, fs := newTestStore(t, "")
	require.NoError(t, store.EnsureInitialized())

	isDir, err := afero.IsDir(fs, "/home/u/.config/san")
	require.NoError(t, err)
	assert.True(t, isDir)
}

func TestRegisterAndResolve(t *testing.T) {
	store, _ := newTestStore(t, "")

	docs := Preset{Name: "Docs", Source: "/home/u/docs", Dest: "remote:/docs"}
	require.NoError(t, store.Register(docs))

	resolved, err := store.Resolve("Docs")
	require.NoError(t, err)
	assert.Equal(t, docs, resolved)
}

func TestRegisterIdempotent(t *testing.T) {
	store, fs := newTestStore(t, "")
	docs := Preset{Name: "Docs", Source: "/home/u/docs", Dest: "remote:/docs"}

	require.NoError(t, store.Register(docs))
	firstDoc := readDocument(t, fs)

	require.NoError(t, store.Register(docs))
	assert.Equal(t, firstDoc, readDocument(t, fs))

	names, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"Docs"}, names)

	resolved, err := store.Resolve("Docs")
	require.NoError(t, err)
	assert.Equal(t, docs, resolved)
}

func TestRegisterIsolation(t *testing.T) {
	store, _ := newTestStore(t, "")
	a := Preset{Name: "A", Source: "/a", Dest: "remote:/a"}
	b := Preset{Name: "B", Source: "/b", Dest: "remote:/b"}

	require.NoError(t, store.Register(a))
	require.NoError(t, store.Register(b))

	resolvedA, err := store.Resolve("A")
	require.NoError(t, err)
	assert.Equal(t, a, resolvedA)

	// Overwriting B still leaves A alone.
	b.Dest = "other:/b"
	require.NoError(t, store.Register(b))
	resolvedA, err = store.Resolve("A")
	require.NoError(t, err)
	assert.Equal(t, a, resolvedA)

	resolvedB, err := store.Resolve("B")
	require.NoError(t, err)
	assert.Equal(t, b, resolvedB)
}

func TestRegisterPreservesComments(t *testing.T) {
	store, fs := newTestStore(t, `# Presets managed by san.
presets:
  # Work documents.
  Work:
    source: /home/u/work # local copy
    dest: remote:/work
settings:
  interval: 3s
`)

	require.NoError(t, store.Register(Preset{Name: "Docs", Source: "/home/u/docs", Dest: "remote:/docs"}))
	require.NoError(t, store.Register(Preset{Name: "Work", Source: "/home/u/work2", Dest: "remote:/work"}))

	doc := readDocument(t, fs)
	assert.Contains(t, doc, "# Presets managed by san.")
	assert.Contains(t, doc, "# Work documents.")
	assert.Contains(t, doc, "source: /home/u/work2 # local copy")
	assert.Contains(t, doc, "interval: 3s")

	names, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"Work", "Docs"}, names)
}

func TestRegisterQuotesAmbiguousStrings(t *testing.T) {
	store, _ := newTestStore(t, "")
	preset := Preset{Name: "yes", Source: "/tmp/1", Dest: "true"}
	require.NoError(t, store.Register(preset))

	resolved, err := store.Resolve("yes")
	require.NoError(t, err)
	assert.Equal(t, preset, resolved)
}

func TestRegisterValidation(t *testing.T) {
	store, fs := newTestStore(t, "")

	err := store.Register(Preset{Source: "/a", Dest: "b"})
	assert.Equal(t, errors.MissingFieldError{Field: "name"}, err)

	err = store.Register(Preset{Name: "A", Dest: "b"})
	assert.Equal(t, errors.MissingFieldError{Preset: "A", Field: "source"}, err)

	err = store.Register(Preset{Name: "A", Source: "/a"})
	assert.Equal(t, errors.MissingFieldError{Preset: "A", Field: "dest"}, err)

	// Nothing was written.
	exists, err := afero.Exists(fs, testPath)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestResolveErrors(t *testing.T) {
	store, _ := newTestStore(t, `presets:
  NoDest:
    source: /a
  NoSource:
    dest: remote:/b
  Scalar: oops
  EmptySource:
    source: ""
    dest: remote:/c
  NullSource:
    source: null
    dest: remote:/d
  NullDest:
    source: /e
    dest: ~
  QuotedTilde:
    source: /f
    dest: "~"
`)

	tests := []struct {
		name   string
		expErr error
	}{
		{"Missing", errors.PresetNotFound{Name: "Missing"}},
		{"NoDest", errors.MissingFieldError{Preset: "NoDest", Field: "dest"}},
		{"NoSource", errors.MissingFieldError{Preset: "NoSource", Field: "source"}},
		{"Scalar", errors.MissingFieldError{Preset: "Scalar", Field: "source"}},
		{"EmptySource", errors.MissingFieldError{Preset: "EmptySource", Field: "source"}},
		{"NullSource", errors.MissingFieldError{Preset: "NullSource", Field: "source"}},
		{"NullDest", errors.MissingFieldError{Preset: "NullDest", Field: "dest"}},
	}

	for _, test := range tests {
		_, err := store.Resolve(test.name)
		assert.Equal(t, test.expErr, err, test.name)
	}

	// A quoted tilde is a string, not a null.
	preset, err := store.Resolve("QuotedTilde")
	require.NoError(t, err)
	assert.Equal(t, "~", preset.Dest)

	// Values that look like nulls are stored as strings.
	require.NoError(t, store.Register(Preset{Name: "Tilde", Source: "null", Dest: "~"}))
	preset, err = store.Resolve("Tilde")
	require.NoError(t, err)
	assert.Equal(t, Preset{Name: "Tilde", Source: "null", Dest: "~"}, preset)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		expMsg   string
	}{
		{
			name:     "Invalid YAML",
			contents: "presets: [unterminated\n",
		},
		{
			name:     "Top level sequence",
			contents: "- a\n- b\n",
			expMsg:   "top level must be a mapping, got sequence",
		},
		{
			name:     "Presets is a scalar",
			contents: "presets: 7\n",
			expMsg:   `"presets" must be a mapping, got scalar`,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			store, _ := newTestStore(t, test.contents)
			_, err := store.List()

			var parseErr errors.ParseError
			require.True(t, errors.As(err, &parseErr), "expected ParseError, got %v", err)
			assert.Equal(t, testPath, parseErr.Path)
			if test.expMsg != "" {
				assert.EqualError(t, parseErr.Err, test.expMsg)
			}
		})
	}
}

func TestIOError(t *testing.T) {
	store := NewStore(afero.NewReadOnlyFs(afero.NewMemMapFs()), testPath)

	err := store.EnsureInitialized()
	var ioErr errors.IOError
	require.True(t, errors.As(err, &ioErr), "expected IOError, got %v", err)
	assert.Equal(t, "create directory", ioErr.Op)
}

func TestListOrder(t *testing.T) {
	store, _ := newTestStore(t, "presets:\n  zeta: {source: /z, dest: r:/z}\n  alpha: {source: /a, dest: r:/a}\n")
	require.NoError(t, store.Register(Preset{Name: "mid", Source: "/m", Dest: "r:/m"}))

	names, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, names)
}

func TestListScenario(t *testing.T) {
	store, _ := newTestStore(t, "")
	require.NoError(t, store.Register(Preset{Name: "Docs", Source: "/home/u/docs", Dest: "remote:/docs"}))

	names, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, "Docs", strings.Join(names, "\n"))
}

func TestRemove(t *testing.T) {
	store, _ := newTestStore(t, "")
	require.NoError(t, store.Register(Preset{Name: "A", Source: "/a", Dest: "r:/a"}))
	require.NoError(t, store.Register(Preset{Name: "B", Source: "/b", Dest: "r:/b"}))

	require.NoError(t, store.Remove("A"))
	names, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, names)

	assert.Equal(t, errors.PresetNotFound{Name: "A"}, store.Remove("A"))
}
