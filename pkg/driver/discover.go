package driver

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/editorconfig/editorconfig-core-go/v2"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
	"go.uber.org/multierr"
)

// Discover expands roots into template files. Files named directly are kept
// as is; directories are walked for files with the configured extension that
// pass the include and exclude patterns, matched against the path relative to
// the directory.
func (me *Driver) Discover(ctx context.Context, roots []string) ([]string, error) {
	seen := map[string]bool{}
	var found []string
	add := func(path string) {
		path = filepath.Clean(path)
		if !seen[path] {
			seen[path] = true
			found = append(found, path)
		}
	}

	for _, root := range roots {
		info, err := me.fs.Stat(root)
		if err != nil {
			return nil, errors.Errorf("reading %s: %w", root, err)
		}
		if !info.IsDir() {
			add(root)
			continue
		}

		err = afero.Walk(me.fs, root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)

			if info.IsDir() {
				if rel != "." && me.excluded(rel) {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(path) != me.cfg.Extension {
				return nil
			}
			if me.excluded(rel) || !me.included(rel) {
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, errors.Errorf("walking %s: %w", root, err)
		}
	}

	sort.Strings(found)
	return found, nil
}

func (me *Driver) included(rel string) bool {
	if len(me.cfg.Include) == 0 {
		return true
	}
	return matchAny(me.cfg.Include, rel)
}

func (me *Driver) excluded(rel string) bool {
	return matchAny(me.cfg.Exclude, rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// IndentFor returns the indentation for the module generated from path:
// the configured indent if set, otherwise the nearest .editorconfig rules
// for the output file, otherwise the generator default.
func (me *Driver) IndentFor(path string) string {
	if me.cfg.Indent != "" {
		return me.cfg.Indent
	}

	def, err := me.editorconfigFor(OutputPath(path))
	if err != nil || def == nil {
		return ""
	}
	switch def.IndentStyle {
	case editorconfig.IndentStyleTab:
		return "\t"
	case editorconfig.IndentStyleSpaces:
		if n, err := strconv.Atoi(def.IndentSize); err == nil && n > 0 {
			return strings.Repeat(" ", n)
		}
	}
	return ""
}

// editorconfigFor merges every .editorconfig from the file's directory up to
// the nearest root = true, nearer files winning.
func (me *Driver) editorconfigFor(path string) (*editorconfig.Definition, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	var chain []*editorconfig.Definition
	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		def, root, err := me.readEditorconfig(dir, abs)
		if err != nil {
			return nil, err
		}
		if def != nil {
			chain = append(chain, def)
		}
		if root || dir == filepath.Dir(dir) {
			break
		}
	}
	if len(chain) == 0 {
		return nil, nil
	}

	merged := &editorconfig.Definition{}
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].IndentStyle != "" {
			merged.IndentStyle = chain[i].IndentStyle
		}
		if chain[i].IndentSize != "" {
			merged.IndentSize = chain[i].IndentSize
		}
	}
	return merged, nil
}

func (me *Driver) readEditorconfig(dir, file string) (_ *editorconfig.Definition, root bool, err error) {
	f, err := me.fs.Open(filepath.Join(dir, ".editorconfig"))
	if err != nil {
		return nil, false, nil
	}
	defer func() { err = multierr.Append(err, f.Close()) }()

	ec, err := editorconfig.Parse(f)
	if err != nil {
		return nil, false, errors.Errorf("parsing %s: %w", filepath.Join(dir, ".editorconfig"), err)
	}
	rel, err := filepath.Rel(dir, file)
	if err != nil {
		return nil, ec.Root, err
	}
	def, err := ec.GetDefinitionForFilename(filepath.ToSlash(rel))
	if err != nil {
		return nil, ec.Root, err
	}
	return def, ec.Root, nil
}
