package config

import (
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/toastate/toastpipe/internal/fileset"
)

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = "toastpipe.json"

type Configuration struct {
	// Root is the directory every relative path is resolved against.
	// Defaults to the directory holding the configuration file.
	Root string `json:"root,omitempty" yaml:"root,omitempty"`

	Bases     Bases                 `json:"bases" yaml:"bases"`
	Path      Paths                 `json:"path" yaml:"path"`
	Inject    InjectConfiguration   `json:"inject" yaml:"inject"`
	Templates TemplateConfiguration `json:"templates" yaml:"templates"`
	Clean     CleanConfiguration    `json:"clean" yaml:"clean"`
	Sass      SassConfiguration     `json:"sass" yaml:"sass"`
	Watch     WatchConfiguration    `json:"watch" yaml:"watch"`
	Serve     ServeConfiguration    `json:"serve" yaml:"serve"`
}

type Bases struct {
	Dist string `json:"dist" yaml:"dist"`
}

type Paths struct {
	Copy    []string `json:"copy" yaml:"copy"`
	Fonts   []string `json:"fonts" yaml:"fonts"`
	Libs    []string `json:"libs" yaml:"libs"`
	CSSLibs []string `json:"css_libs" yaml:"css_libs"`
	Scripts []string `json:"scripts" yaml:"scripts"`
	Sass    SassPath `json:"sass" yaml:"sass"`
	HTML    []string `json:"html" yaml:"html"`
}

type SassPath struct {
	Src  []string          `json:"src" yaml:"src"`
	Conf map[string]string `json:"conf,omitempty" yaml:"conf,omitempty"`
}

// InjectConfiguration describes where the vendor bundle references are written.
type InjectConfiguration struct {
	Target     string `json:"target" yaml:"target"`
	Name       string `json:"name" yaml:"name"`
	AddPrefix  string `json:"add_prefix,omitempty" yaml:"add_prefix,omitempty"`
	IgnorePath string `json:"ignore_path,omitempty" yaml:"ignore_path,omitempty"`
}

type TemplateConfiguration struct {
	Filename   string `json:"filename" yaml:"filename"`
	Module     string `json:"module" yaml:"module"`
	Standalone bool   `json:"standalone" yaml:"standalone"`
	Root       string `json:"root,omitempty" yaml:"root,omitempty"`
	Minify     bool   `json:"minify,omitempty" yaml:"minify,omitempty"`
}

type CleanConfiguration struct {
	Preserve []string `json:"preserve" yaml:"preserve"`
}

type SassConfiguration struct {
	// Command is a shell command line producing the compiled CSS on stdout.
	// SASS_INPUT, SASS_STYLE and SASS_INCLUDE_PATHS are set in its environment.
	Command string `json:"command" yaml:"command"`
}

type WatchConfiguration struct {
	Debounce string `json:"debounce" yaml:"debounce"`
}

type ServeConfiguration struct {
	Redirect404 string `json:"redirect_404" yaml:"redirect_404"`
	Port        int    `json:"port" yaml:"port"`
}

func DefaultConfiguration() *Configuration {
	return &Configuration{
		Bases: Bases{
			Dist: "../static/admin/",
		},
		Path: Paths{
			Copy:  []string{"src/assets/**/*.*"},
			Fonts: []string{"vendor/font-awesome/fonts/*.*", "vendor/bootstrap/fonts/*.*"},
			Sass: SassPath{
				Src:  []string{"src/scss/app.scss"},
				Conf: map[string]string{"outputStyle": "compressed"},
			},
			// libs and css_libs name project vendor files and have no default
			Scripts: []string{"src/app/**/*.js", "src/common/**/*.js"},
			HTML:    []string{"src/app/**/*.tpl.html"},
		},
		Inject: InjectConfiguration{
			Target:     "../maplocate/templates/index.jinja2",
			Name:       "vendor",
			AddPrefix:  "static",
			IgnorePath: "../static",
		},
		Templates: TemplateConfiguration{
			Filename:   "app.tpls.js",
			Module:     "app.tpls",
			Standalone: true,
		},
		Clean: CleanConfiguration{
			Preserve: []string{"images"},
		},
		Sass: SassConfiguration{
			Command: `sass --no-source-map --style="${SASS_STYLE}" --load-path="${SASS_INCLUDE_PATHS:-.}" "$SASS_INPUT"`,
		},
		Watch: WatchConfiguration{
			Debounce: "300ms",
		},
		Serve: ServeConfiguration{
			Port: 8100,
		},
	}
}

// Resolve returns p relative to the configuration root.
func (c *Configuration) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// Globs resolves a list of glob patterns, keeping the "!" negation marker.
// Root is escaped so its characters never act as wildcards.
func (c *Configuration) Globs(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if strings.HasPrefix(p, "!") {
			out = append(out, "!"+c.resolveGlob(p[1:]))
			continue
		}
		out = append(out, c.resolveGlob(p))
	}
	return out
}

func (c *Configuration) resolveGlob(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Root == "" {
		return p
	}
	return path.Join(fileset.Escape(c.Root), filepath.ToSlash(p))
}

// DistDir returns the destination root, optionally joined with sub.
func (c *Configuration) DistDir(sub ...string) string {
	return filepath.Join(append([]string{c.Resolve(c.Bases.Dist)}, sub...)...)
}

// DebounceDuration parses Watch.Debounce, falling back to 300ms when unset.
func (c *Configuration) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 300 * time.Millisecond
	}
	return d
}
