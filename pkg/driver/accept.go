package driver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gohyper/pkg/diff"
	"github.com/walteh/gohyper/pkg/generate"
)

// Golden file suffixes written by Accept.
const (
	ExpectedCode  = ".expected.py"
	ExpectedJSON  = ".expected.json"
	ExpectedError = ".expected.err"
)

type expectedRanges struct {
	Ranges     []generate.Range     `json:"ranges,omitempty"`
	Injections []generate.Injection `json:"injections,omitempty"`
}

type goldenFile struct {
	path string
	data []byte
}

// golden computes the golden files for one template: the ones that should
// exist with their contents, and the ones that should not exist.
func (me *Driver) golden(ctx context.Context, path string) (keep []goldenFile, stale []string, err error) {
	stem := strings.TrimSuffix(path, me.cfg.Extension)

	_, res, err := me.compile(ctx, path, true)
	if err != nil {
		var ferr *FileError
		if !errors.As(err, &ferr) {
			return nil, nil, err
		}
		keep = []goldenFile{{path: stem + ExpectedError, data: []byte(ferr.Render(false))}}
		return keep, []string{stem + ExpectedCode, stem + ExpectedJSON}, nil
	}

	keep = []goldenFile{{path: stem + ExpectedCode, data: []byte(res.Code)}}
	if len(res.Ranges) == 0 && len(res.Injections) == 0 {
		return keep, []string{stem + ExpectedJSON, stem + ExpectedError}, nil
	}
	data, err := json.MarshalIndent(expectedRanges{Ranges: res.Ranges, Injections: res.Injections}, "", "  ")
	if err != nil {
		return nil, nil, errors.Errorf("encoding ranges for %s: %w", path, err)
	}
	keep = append(keep, goldenFile{path: stem + ExpectedJSON, data: append(data, '\n')})
	return keep, []string{stem + ExpectedError}, nil
}

func (me *Driver) templates(ctx context.Context, root, filter string) ([]string, error) {
	paths, err := me.Discover(ctx, []string{root})
	if err != nil {
		return nil, err
	}
	if filter == "" {
		return paths, nil
	}
	kept := paths[:0]
	for _, path := range paths {
		if strings.Contains(path, filter) {
			kept = append(kept, path)
		}
	}
	return kept, nil
}

// Accept regenerates the golden files for every template under root whose
// path contains filter. A template that compiles gets .expected.py and,
// when it has ranges, .expected.json; one that fails gets .expected.err.
// Golden files that no longer apply are removed. It returns the paths written.
func (me *Driver) Accept(ctx context.Context, root, filter string) ([]string, error) {
	paths, err := me.templates(ctx, root, filter)
	if err != nil {
		return nil, err
	}

	var written []string
	for _, path := range paths {
		keep, stale, err := me.golden(ctx, path)
		if err != nil {
			return written, err
		}
		for _, f := range keep {
			if err := afero.WriteFile(me.fs, f.path, f.data, 0o644); err != nil {
				return written, errors.Errorf("writing %s: %w", f.path, err)
			}
			written = append(written, f.path)
		}
		if err := me.remove(stale...); err != nil {
			return written, err
		}
	}
	zerolog.Ctx(ctx).Debug().Int("files", len(written)).Str("root", root).Msg("accepted golden files")
	return written, nil
}

// Mismatch is a golden file that disagrees with the current compiler output.
type Mismatch struct {
	Path string
	Diff string
}

// Verify compares the golden files under root with fresh compiler output
// without writing anything.
func (me *Driver) Verify(ctx context.Context, root, filter string) ([]Mismatch, error) {
	paths, err := me.templates(ctx, root, filter)
	if err != nil {
		return nil, err
	}

	var mismatches []Mismatch
	for _, path := range paths {
		keep, stale, err := me.golden(ctx, path)
		if err != nil {
			return nil, err
		}
		for _, f := range keep {
			current, err := afero.ReadFile(me.fs, f.path)
			if err != nil {
				mismatches = append(mismatches, Mismatch{Path: f.path, Diff: "missing\n"})
				continue
			}
			if d := diff.Text(f.path, string(current), string(f.data)); d != "" {
				mismatches = append(mismatches, Mismatch{Path: f.path, Diff: d})
			}
		}
		for _, s := range stale {
			ok, err := afero.Exists(me.fs, s)
			if err != nil {
				return nil, errors.Errorf("checking %s: %w", s, err)
			}
			if ok {
				mismatches = append(mismatches, Mismatch{Path: s, Diff: "unexpected\n"})
			}
		}
	}
	return mismatches, nil
}

func (me *Driver) remove(paths ...string) error {
	for _, path := range paths {
		ok, err := afero.Exists(me.fs, path)
		if err != nil {
			return errors.Errorf("checking %s: %w", path, err)
		}
		if !ok {
			continue
		}
		if err := me.fs.Remove(path); err != nil {
			return errors.Errorf("removing %s: %w", path, err)
		}
	}
	return nil
}
