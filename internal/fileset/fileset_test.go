package fileset

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func touch(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(name), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func rels(matches []Match) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Rel())
	}
	return out
}

func TestExpand_GlobstarMatchesZeroDirectories(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "src/app.js", "src/a/b/deep.js", "src/a/readme.md")

	s, err := New(filepath.Join(root, "src/**/*.js"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.Expand()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"a/b/deep.js", "app.js"}
	if !reflect.DeepEqual(rels(got), want) {
		t.Fatalf("got %v want %v", rels(got), want)
	}
	if got[0].Base != filepath.Join(root, "src") {
		t.Fatalf("base = %q", got[0].Base)
	}
}

func TestExpand_PatternOrderAndDedup(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "lib/b.js", "lib/a.js", "lib/c.js")

	s := MustNew(
		filepath.Join(root, "lib/c.js"),
		filepath.Join(root, "lib/*.js"),
	)
	got, err := s.Expand()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"c.js", "a.js", "b.js"}
	if !reflect.DeepEqual(rels(got), want) {
		t.Fatalf("got %v want %v", rels(got), want)
	}
}

func TestExpand_Exclude(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "dist/js/app.js", "dist/images/logo.png", "dist/images/sub/x.png")

	s := MustNew(
		filepath.Join(root, "dist/**/*.*"),
		"!"+filepath.Join(root, "dist/images/*.*"),
	)
	got, err := s.Expand()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"images/sub/x.png", "js/app.js"}
	if !reflect.DeepEqual(rels(got), want) {
		t.Fatalf("got %v want %v", rels(got), want)
	}
}

func TestExpand_MissingLiteral(t *testing.T) {
	s := MustNew(filepath.Join(t.TempDir(), "missing.js"))
	_, err := s.Expand()
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestExpand_MissingGlobBaseIsEmpty(t *testing.T) {
	s := MustNew(filepath.Join(t.TempDir(), "nothing/**/*.js"))
	got, err := s.Expand()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no match, got %v", got)
	}
}

func TestMatch(t *testing.T) {
	s := MustNew("src/app/**/*.tpl.html", "!src/app/legacy/**")

	cases := map[string]bool{
		"src/app/home.tpl.html":         true,
		"src/app/users/list.tpl.html":   true,
		"./src/app/users/list.tpl.html": true,
		"src/app/users/list.html":       false,
		"src/app/legacy/old.tpl.html":   false,
		"src/other/home.tpl.html":       false,
	}
	for name, want := range cases {
		if got := s.Match(name); got != want {
			t.Errorf("Match(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestRoots(t *testing.T) {
	s := MustNew("src/app/**/*.html", "src/app/*.js", "vendor/fonts/*.*", "!src/app/x/**")
	want := []string{filepath.FromSlash("src/app"), filepath.FromSlash("vendor/fonts")}
	if got := s.Roots(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestGlobstarVariants(t *testing.T) {
	got := globstarVariants("a/**/b/**/c")
	want := []string{"a/**/b/**/c", "a/b/**/c", "a/**/b/c", "a/b/c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestNew_InvalidPattern(t *testing.T) {
	if _, err := New("src/[a.js"); err == nil {
		t.Fatalf("expected compile error")
	}
}

func TestEscape_RootWithGlobCharacters(t *testing.T) {
	root := filepath.Join(t.TempDir(), "static[admin]")
	touch(t, root, "js/app.js", "js/app.vendor.js", "a.css")

	if got := Escape("a[b]/{c}*?"); got != `a\[b\]/\{c\}\*\?` {
		t.Fatalf("Escape = %q", got)
	}

	s := MustNew(Escape(root)+"/js/*.js", "!"+Escape(root)+"/js/*.vendor.js")
	if got := s.Roots(); !reflect.DeepEqual(got, []string{filepath.Join(root, "js")}) {
		t.Fatalf("roots = %v", got)
	}
	got, err := s.Expand()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"app.js"}; !reflect.DeepEqual(rels(got), want) {
		t.Fatalf("got %v want %v", rels(got), want)
	}
	if !s.Match(filepath.Join(root, "js/app.js")) {
		t.Fatalf("escaped pattern does not match its own file")
	}

	literal := MustNew(Escape(filepath.Join(root, "a.css")))
	got, err = literal.Expand()
	if err != nil || len(got) != 1 || got[0].Path != filepath.Join(root, "a.css") {
		t.Fatalf("literal expand = %v, %v", got, err)
	}
}

func TestEmpty(t *testing.T) {
	if !MustNew().Empty() || !MustNew("!src/**").Empty() {
		t.Fatalf("set without includes should be empty")
	}
	if MustNew("src/*.js").Empty() {
		t.Fatalf("set with an include should not be empty")
	}
}
