package driver_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/gohyper/pkg/config"
	"github.com/walteh/gohyper/pkg/diagnostic"
	"github.com/walteh/gohyper/pkg/driver"
)

func newFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	return fs
}

func TestDiscover(t *testing.T) {
	files := map[string]string{
		"/proj/a.hyper":            "<p>a</p>",
		"/proj/sub/b.hyper":        "<p>b</p>",
		"/proj/sub/deep/c.hyper":   "<p>c</p>",
		"/proj/vendor/d.hyper":     "<p>d</p>",
		"/proj/notes.txt":          "x",
		"/proj/sub/e.hy":           "<p>e</p>",
		"/other/explicit.template": "<p>f</p>",
	}

	tests := []struct {
		name     string
		cfg      *config.Config
		roots    []string
		expected []string
	}{
		{
			name:  "walks directories for the extension",
			cfg:   config.Default(),
			roots: []string{"/proj"},
			expected: []string{
				"/proj/a.hyper",
				"/proj/sub/b.hyper",
				"/proj/sub/deep/c.hyper",
				"/proj/vendor/d.hyper",
			},
		},
		{
			name:     "exclude patterns",
			cfg:      &config.Config{Extension: ".hyper", Exclude: []string{"**/vendor/**", "sub/deep/**"}},
			roots:    []string{"/proj"},
			expected: []string{"/proj/a.hyper", "/proj/sub/b.hyper"},
		},
		{
			name:     "include patterns",
			cfg:      &config.Config{Extension: ".hyper", Include: []string{"sub/*.hyper"}},
			roots:    []string{"/proj"},
			expected: []string{"/proj/sub/b.hyper"},
		},
		{
			name:     "other extension",
			cfg:      &config.Config{Extension: ".hy"},
			roots:    []string{"/proj"},
			expected: []string{"/proj/sub/e.hy"},
		},
		{
			name:     "files are kept and duplicates dropped",
			cfg:      &config.Config{Extension: ".hyper", Include: []string{"a.hyper"}},
			roots:    []string{"/other/explicit.template", "/proj", "/proj/a.hyper"},
			expected: []string{"/other/explicit.template", "/proj/a.hyper"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := driver.New(newFs(t, files), nil, tt.cfg)
			found, err := d.Discover(context.Background(), tt.roots)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, found)
		})
	}
}

func TestDiscoverMissingRoot(t *testing.T) {
	d := driver.New(afero.NewMemMapFs(), nil, nil)
	_, err := d.Discover(context.Background(), []string{"/nope"})
	require.Error(t, err)
}

func TestIndentFor(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		cfg      *config.Config
		expected string
	}{
		{
			name:     "nothing configured",
			files:    map[string]string{},
			cfg:      config.Default(),
			expected: "",
		},
		{
			name:     "config wins",
			files:    map[string]string{"/proj/.editorconfig": "[*.py]\nindent_style = tab\n"},
			cfg:      &config.Config{Extension: ".hyper", Indent: "  "},
			expected: "  ",
		},
		{
			name:     "spaces",
			files:    map[string]string{"/proj/.editorconfig": "root = true\n\n[*.py]\nindent_style = space\nindent_size = 2\n"},
			cfg:      config.Default(),
			expected: "  ",
		},
		{
			name:     "tabs",
			files:    map[string]string{"/proj/.editorconfig": "[*]\nindent_style = tab\n"},
			cfg:      config.Default(),
			expected: "\t",
		},
		{
			name: "nearer file overrides",
			files: map[string]string{
				"/.editorconfig":      "root = true\n\n[*.py]\nindent_style = space\nindent_size = 8\n",
				"/proj/.editorconfig": "[*.py]\nindent_size = 3\n",
			},
			cfg:      config.Default(),
			expected: "   ",
		},
		{
			name: "root stops the search",
			files: map[string]string{
				"/.editorconfig":      "[*.py]\nindent_style = tab\n",
				"/proj/.editorconfig": "root = true\n",
			},
			cfg:      config.Default(),
			expected: "",
		},
		{
			name:     "other file types are ignored",
			files:    map[string]string{"/proj/.editorconfig": "[*.js]\nindent_style = tab\n"},
			cfg:      config.Default(),
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := driver.New(newFs(t, tt.files), nil, tt.cfg)
			assert.Equal(t, tt.expected, d.IndentFor("/proj/page.hyper"))
		})
	}
}

func TestCompileFile(t *testing.T) {
	fs := newFs(t, map[string]string{
		"/proj/user_card.hyper": "name: str\n---\n<p>{name}</p>",
		"/proj/broken.hyper":    "<div>",
		"/proj/.editorconfig":   "[*.py]\nindent_style = tab\n",
	})
	d := driver.New(fs, nil, nil)

	res, err := d.CompileFile(context.Background(), "/proj/user_card.hyper")
	require.NoError(t, err)
	assert.Equal(t, "/proj/user_card.py", res.Output)

	code, err := afero.ReadFile(fs, "/proj/user_card.py")
	require.NoError(t, err)
	assert.Equal(t, res.Result.Code, string(code))
	assert.Contains(t, string(code), "def UserCard(*, name: str):\n\tyield ")

	_, err = d.CompileFile(context.Background(), "/proj/broken.hyper")
	require.Error(t, err)
	var ferr *driver.FileError
	require.ErrorAs(t, err, &ferr)
	assert.True(t, diagnostic.IsKind(err, diagnostic.UnclosedElement))
	rendered := ferr.Render(false)
	assert.Contains(t, rendered, "/proj/broken.hyper:1:6")
	assert.Contains(t, rendered, "opened here")

	exists, err := afero.Exists(fs, "/proj/broken.py")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCompileAll(t *testing.T) {
	fs := newFs(t, map[string]string{
		"/proj/c.hyper": "<p>c</p>",
		"/proj/a.hyper": "<p>a</p>",
		"/proj/b.hyper": "<p>b</p>",
		"/proj/x.hyper": "<p><div>x</div></p>",
		"/proj/y.hyper": "<span>",
	})
	d := driver.New(fs, nil, nil, driver.WithWorkers(2))

	paths, err := d.Discover(context.Background(), []string{"/proj"})
	require.NoError(t, err)

	summary, err := d.CompileAll(context.Background(), paths)
	require.Error(t, err)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 2)

	require.Len(t, summary.Results, 3)
	assert.Equal(t, "/proj/a.hyper", summary.Results[0].Source)
	assert.Equal(t, "/proj/b.hyper", summary.Results[1].Source)
	assert.Equal(t, "/proj/c.hyper", summary.Results[2].Source)

	require.Len(t, summary.Failed, 2)
	assert.Equal(t, "/proj/x.hyper", summary.Failed[0].Path)
	assert.Equal(t, "/proj/y.hyper", summary.Failed[1].Path)

	for _, p := range []string{"/proj/a.py", "/proj/b.py", "/proj/c.py"} {
		ok, err := afero.Exists(fs, p)
		require.NoError(t, err)
		assert.True(t, ok, p)
	}
}

func TestCompileAllSucceeds(t *testing.T) {
	fs := newFs(t, map[string]string{"/proj/a.hyper": "<p>a</p>"})
	summary, err := driver.New(fs, nil, nil).CompileAll(context.Background(), []string{"/proj/a.hyper"})
	require.NoError(t, err)
	assert.Len(t, summary.Results, 1)
	assert.Empty(t, summary.Failed)
}

func TestAccept(t *testing.T) {
	fs := newFs(t, map[string]string{
		"/cases/plain.hyper":         "<p>plain</p>",
		"/cases/expr.hyper":          "<p>{name}</p>",
		"/cases/broken.hyper":        "<div>",
		"/cases/plain.expected.json": "stale",
		"/cases/plain.expected.err":  "stale",
		"/cases/broken.expected.py":  "stale",
	})
	d := driver.New(fs, nil, nil)

	written, err := d.Accept(context.Background(), "/cases", "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/cases/broken.expected.err",
		"/cases/expr.expected.py",
		"/cases/expr.expected.json",
		"/cases/plain.expected.py",
	}, written)

	exists := func(path string) bool {
		ok, err := afero.Exists(fs, path)
		require.NoError(t, err)
		return ok
	}
	assert.False(t, exists("/cases/plain.expected.json"))
	assert.False(t, exists("/cases/plain.expected.err"))
	assert.False(t, exists("/cases/broken.expected.py"))

	errText, err := afero.ReadFile(fs, "/cases/broken.expected.err")
	require.NoError(t, err)
	assert.Contains(t, string(errText), "error:")
	assert.NotContains(t, string(errText), "\x1b[")

	raw, err := afero.ReadFile(fs, "/cases/expr.expected.json")
	require.NoError(t, err)
	var decoded struct {
		Ranges     []map[string]any `json:"ranges"`
		Injections []map[string]any `json:"injections"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Len(t, decoded.Ranges, 1)
	assert.Len(t, decoded.Injections, 1)

	written, err = d.Accept(context.Background(), "/cases", "plain")
	require.NoError(t, err)
	assert.Equal(t, []string{"/cases/plain.expected.py"}, written)
}

func TestVerify(t *testing.T) {
	fs := newFs(t, map[string]string{
		"/cases/plain.hyper":  "<p>plain</p>",
		"/cases/expr.hyper":   "<p>{name}</p>",
		"/cases/broken.hyper": "<div>",
	})
	d := driver.New(fs, nil, nil)

	mismatches, err := d.Verify(context.Background(), "/cases", "")
	require.NoError(t, err)
	assert.Len(t, mismatches, 4)

	_, err = d.Accept(context.Background(), "/cases", "")
	require.NoError(t, err)

	mismatches, err = d.Verify(context.Background(), "/cases", "")
	require.NoError(t, err)
	assert.Empty(t, mismatches)

	require.NoError(t, afero.WriteFile(fs, "/cases/plain.expected.py", []byte("old\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/cases/plain.expected.err", []byte("old\n"), 0o644))

	mismatches, err = d.Verify(context.Background(), "/cases", "plain")
	require.NoError(t, err)
	require.Len(t, mismatches, 2)
	assert.Equal(t, "/cases/plain.expected.py", mismatches[0].Path)
	assert.Contains(t, mismatches[0].Diff, "➖")
	assert.Equal(t, "/cases/plain.expected.err", mismatches[1].Path)
	assert.Equal(t, "unexpected\n", mismatches[1].Diff)
}
