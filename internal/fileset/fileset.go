// Package fileset expands and matches gulp-style glob lists.
//
// A list is made of include patterns and "!"-prefixed exclude patterns.
// "**" crosses directory boundaries and "**/" also matches no directory at
// all, so "src/**/*.js" selects "src/app.js" as well as "src/a/b/app.js".
package fileset

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/rotisserie/eris"
)

const metaChars = "*?[{"

type pattern struct {
	raw     string
	base    string
	literal bool
	// file is the unescaped path of a literal pattern.
	file  string
	globs []glob.Glob
}

func (p *pattern) match(name string) bool {
	for _, g := range p.globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Set is a compiled glob list. It is safe for concurrent use.
type Set struct {
	includes []*pattern
	excludes []*pattern
}

// Match is one expanded file.
type Match struct {
	// Path is the file path in OS form, as derived from the pattern.
	Path string
	// Base is the static directory prefix of the pattern that selected Path.
	Base string
}

// Rel returns Path relative to Base with forward slashes.
func (m Match) Rel() string {
	rel, err := filepath.Rel(m.Base, m.Path)
	if err != nil {
		return filepath.ToSlash(filepath.Base(m.Path))
	}
	return filepath.ToSlash(rel)
}

// New compiles patterns.
func New(patterns ...string) (*Set, error) {
	s := &Set{}
	for _, raw := range patterns {
		if raw == "" {
			continue
		}
		negate := strings.HasPrefix(raw, "!")
		if negate {
			raw = raw[1:]
		}

		p, err := compile(raw)
		if err != nil {
			return nil, err
		}

		if negate {
			s.excludes = append(s.excludes, p)
		} else {
			s.includes = append(s.includes, p)
		}
	}
	return s, nil
}

// MustNew is New for static pattern lists.
func MustNew(patterns ...string) *Set {
	s, err := New(patterns...)
	if err != nil {
		panic(err)
	}
	return s
}

func normalize(p string) string {
	if p == "" {
		return p
	}
	return path.Clean(filepath.ToSlash(p))
}

// Escape quotes the glob metacharacters of a literal path so it can be
// used as a pattern prefix, e.g. a project root named "static[admin]".
func Escape(s string) string {
	s = filepath.ToSlash(s)
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`*?[]{}\`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// hasMeta reports whether seg holds an unescaped glob metacharacter.
func hasMeta(seg string) bool {
	for i := 0; i < len(seg); i++ {
		if seg[i] == '\\' {
			i++
			continue
		}
		if strings.IndexByte(metaChars, seg[i]) >= 0 {
			return true
		}
	}
	return false
}

func compile(raw string) (*pattern, error) {
	norm := normalize(raw)
	p := &pattern{raw: raw}

	segments := strings.Split(norm, "/")
	baseSegments := make([]string, 0, len(segments))
	for _, seg := range segments {
		if hasMeta(seg) {
			break
		}
		baseSegments = append(baseSegments, seg)
	}

	if len(baseSegments) == len(segments) {
		p.literal = true
		p.file = filepath.FromSlash(unescape(norm))
		p.base = filepath.FromSlash(unescape(path.Dir(norm)))
	} else {
		base := strings.Join(baseSegments, "/")
		if base == "" && strings.HasPrefix(norm, "/") {
			base = "/"
		} else if base == "" {
			base = "."
		}
		p.base = filepath.FromSlash(unescape(base))
	}

	for _, variant := range globstarVariants(norm) {
		g, err := glob.Compile(variant, '/')
		if err != nil {
			return nil, eris.Wrapf(err, "invalid glob pattern %q", raw)
		}
		p.globs = append(p.globs, g)
	}
	return p, nil
}

// globstarVariants returns p plus every variant where a "**/" segment
// is dropped, so globstars may match zero directories.
func globstarVariants(p string) []string {
	out := []string{p}
	seen := map[string]bool{p: true}
	for i := 0; i < len(out); i++ {
		cur := out[i]
		for idx := 0; idx < len(cur); {
			j := strings.Index(cur[idx:], "**/")
			if j < 0 {
				break
			}
			j += idx
			if j == 0 || cur[j-1] == '/' {
				v := cur[:j] + cur[j+3:]
				if !seen[v] {
					seen[v] = true
					out = append(out, v)
				}
			}
			idx = j + 3
		}
	}
	return out
}

// Match reports whether name is selected by the set.
func (s *Set) Match(name string) bool {
	norm := normalize(name)
	if s.excluded(norm) {
		return false
	}
	for _, p := range s.includes {
		if p.match(norm) {
			return true
		}
	}
	return false
}

func (s *Set) excluded(norm string) bool {
	for _, p := range s.excludes {
		if p.match(norm) {
			return true
		}
	}
	return false
}

// Roots returns the static base directory of each include pattern, deduplicated.
func (s *Set) Roots() []string {
	seen := map[string]bool{}
	out := []string{}
	for _, p := range s.includes {
		if !seen[p.base] {
			seen[p.base] = true
			out = append(out, p.base)
		}
	}
	return out
}

// Empty reports whether the set has no include pattern.
func (s *Set) Empty() bool {
	return len(s.includes) == 0
}

// Expand lists the regular files selected by the set. Files come in
// include-pattern order, walk order within a pattern, each at most once.
// A pattern without wildcards must name an existing file; otherwise the
// *fs.PathError from the lookup is returned.
func (s *Set) Expand() ([]Match, error) {
	seen := map[string]bool{}
	out := []Match{}

	add := func(p *pattern, file string) {
		norm := normalize(file)
		if seen[norm] || s.excluded(norm) {
			return
		}
		seen[norm] = true
		out = append(out, Match{Path: filepath.Clean(file), Base: p.base})
	}

	for _, p := range s.includes {
		if p.literal {
			file := p.file
			info, err := os.Stat(file)
			if err != nil {
				return nil, err
			}
			if !info.IsDir() {
				add(p, file)
			}
			continue
		}

		if _, err := os.Stat(p.base); os.IsNotExist(err) {
			continue
		}

		found := []string{}
		err := filepath.WalkDir(p.base, func(file string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if p.match(normalize(file)) {
				found = append(found, file)
			}
			return nil
		})
		if err != nil {
			return nil, eris.Wrapf(err, "failed to expand %s", p.raw)
		}

		for _, file := range found {
			add(p, file)
		}
	}
	return out, nil
}
