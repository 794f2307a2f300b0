// Package config loads project settings from hyper.hcl or hyper.yaml.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/walteh/gohyper/pkg/classify"
)

// FileNames are the config files looked up in a directory, in order.
var FileNames = []string{"hyper.hcl", "hyper.yaml", "hyper.yml"}

const (
	DefaultExtension     = ".hyper"
	DefaultMaxFrameBytes = 10 * 1024 * 1024

	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"

	// NameFromStem names each generated function after its file.
	NameFromStem = "stem"
	// NameRender names every generated function Render.
	NameRender = "render"
)

type Config struct {
	Extension string   `json:"extension,omitempty" hcl:"extension,optional" yaml:"extension,omitempty"`
	Include   []string `json:"include,omitempty" hcl:"include,optional" yaml:"include,omitempty"`
	Exclude   []string `json:"exclude,omitempty" hcl:"exclude,optional" yaml:"exclude,omitempty"`
	// Indent overrides .editorconfig for generated files.
	Indent            string `json:"indent,omitempty" hcl:"indent,optional" yaml:"indent,omitempty"`
	FunctionNameStyle string `json:"function_name_style,omitempty" hcl:"function_name_style,optional" yaml:"function_name_style,omitempty"`
	Color             string `json:"color,omitempty" hcl:"color,optional" yaml:"color,omitempty"`

	Prefilter *PrefilterBlock `json:"prefilter,omitempty" hcl:"prefilter,block" yaml:"prefilter,omitempty"`
	Daemon    *DaemonBlock    `json:"daemon,omitempty" hcl:"daemon,block" yaml:"daemon,omitempty"`
}

// PrefilterBlock overrides fields of the default prefilter; unset fields keep their default.
type PrefilterBlock struct {
	ContentLeaders     *string `json:"content_leaders,omitempty" hcl:"content_leaders,optional" yaml:"content_leaders,omitempty"`
	UppercaseIsContent *bool   `json:"uppercase_is_content,omitempty" hcl:"uppercase_is_content,optional" yaml:"uppercase_is_content,omitempty"`
	DigitIsContent     *bool   `json:"digit_is_content,omitempty" hcl:"digit_is_content,optional" yaml:"digit_is_content,omitempty"`
}

type DaemonBlock struct {
	MaxFrameBytes int `json:"max_frame_bytes,omitempty" hcl:"max_frame_bytes,optional" yaml:"max_frame_bytes,omitempty"`
}

// Default returns the settings used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.fill()
	return cfg
}

func (me *Config) fill() {
	if me.Extension == "" {
		me.Extension = DefaultExtension
	}
	if me.Color == "" {
		me.Color = ColorAuto
	}
	if me.FunctionNameStyle == "" {
		me.FunctionNameStyle = NameFromStem
	}
}

// Discover loads the first config file found in dir. It returns the default
// config and an empty path when there is none.
func Discover(fs afero.Fs, dir string) (*Config, string, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		ok, err := afero.Exists(fs, path)
		if err != nil {
			return nil, "", errors.Errorf("checking %s: %w", path, err)
		}
		if ok {
			cfg, err := Load(fs, path)
			if err != nil {
				return nil, "", err
			}
			return cfg, path, nil
		}
	}
	return Default(), "", nil
}

// Resolve loads explicit when it is set and otherwise discovers a config in dir.
func Resolve(fs afero.Fs, explicit, dir string) (*Config, string, error) {
	if explicit == "" {
		return Discover(fs, dir)
	}
	cfg, err := Load(fs, explicit)
	if err != nil {
		return nil, "", err
	}
	return cfg, explicit, nil
}

// Load reads and validates the config file at path.
func Load(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}
	cfg, err := Parse(data, path, environ())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func environ() map[string]string {
	env := map[string]string{}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// Parse decodes config data. YAML is chosen by extension, anything else is
// HCL. HCL expressions can read env, e.g. `indent = env.HYPER_INDENT`.
func Parse(data []byte, filename string, env map[string]string) (*Config, error) {
	var cfg Config

	if strings.HasSuffix(filename, ".yaml") || strings.HasSuffix(filename, ".yml") {
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, errors.Errorf("parsing YAML: %w", err)
		}
		cfg.fill()
		return &cfg, nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	vars := map[string]cty.Value{}
	for k, v := range env {
		vars[k] = cty.StringVal(v)
	}
	envVal := cty.EmptyObjectVal
	if len(vars) > 0 {
		envVal = cty.ObjectVal(vars)
	}
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": envVal},
	}

	diags = gohcl.DecodeBody(file.Body, evalCtx, &cfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}
	cfg.fill()
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (me *Config) Validate() error {
	if !strings.HasPrefix(me.Extension, ".") || len(me.Extension) < 2 {
		return errors.Errorf("extension %q must start with a dot", me.Extension)
	}
	for _, p := range append(append([]string{}, me.Include...), me.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return errors.Errorf("invalid glob pattern %q", p)
		}
	}
	if me.Indent != "" && me.Indent != "\t" && strings.Trim(me.Indent, " ") != "" {
		return errors.Errorf("indent must be spaces or a single tab, got %q", me.Indent)
	}
	switch me.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return errors.Errorf("color must be %s, %s or %s, got %q", ColorAuto, ColorAlways, ColorNever, me.Color)
	}
	switch me.FunctionNameStyle {
	case NameFromStem, NameRender:
	default:
		return errors.Errorf("function_name_style must be %s or %s, got %q", NameFromStem, NameRender, me.FunctionNameStyle)
	}
	if me.Daemon != nil && me.Daemon.MaxFrameBytes < 0 {
		return errors.Errorf("daemon.max_frame_bytes must not be negative")
	}
	return nil
}

// ClassifierPrefilter returns the default prefilter with the configured overrides applied.
func (me *Config) ClassifierPrefilter() classify.Prefilter {
	pf := classify.DefaultPrefilter()
	if me.Prefilter == nil {
		return pf
	}
	if me.Prefilter.ContentLeaders != nil {
		pf.ContentLeaders = *me.Prefilter.ContentLeaders
	}
	if me.Prefilter.UppercaseIsContent != nil {
		pf.UppercaseIsContent = *me.Prefilter.UppercaseIsContent
	}
	if me.Prefilter.DigitIsContent != nil {
		pf.DigitIsContent = *me.Prefilter.DigitIsContent
	}
	return pf
}

func (me *Config) MaxFrameBytes() int {
	if me.Daemon == nil || me.Daemon.MaxFrameBytes == 0 {
		return DefaultMaxFrameBytes
	}
	return me.Daemon.MaxFrameBytes
}

// UseColor resolves the color setting for a stream.
func (me *Config) UseColor(isTerminal bool) bool {
	switch me.Color {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	return isTerminal
}

// FunctionName picks the generated function name for a template file.
func (me *Config) FunctionName(path string) string {
	if me.FunctionNameStyle == NameRender {
		return ""
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
