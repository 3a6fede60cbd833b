package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/toastate/toastpipe/internal/fileset"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func readFile(t *testing.T, p string) string {
	t.Helper()
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read %s: %v", p, err)
	}
	return string(b)
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func TestPipeline_ConcatMinifyDest(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"lib/b.js": "var second = 2;\r\n",
		"lib/a.js": "// leading comment\nvar first = 1;\n",
	})
	out := filepath.Join(root, "dist", "js")

	p := New("vendor:js",
		Src(fileset.MustNew(filepath.Join(root, "lib/a.js"), filepath.Join(root, "lib/b.js"))),
		Concat("app.vendor.js"),
		Minify(MediaJS),
		Dest(out),
	)

	wantSteps := []string{"src", "concat app.vendor.js", "minify application/javascript", "dest " + filepath.ToSlash(out)}
	if got := p.Describe(); !reflect.DeepEqual(got, wantSteps) {
		t.Fatalf("describe = %v", got)
	}

	batch, err := p.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch) != 1 {
		t.Fatalf("expected one output file, got %d", len(batch))
	}

	got := readFile(t, filepath.Join(out, "app.vendor.js"))
	if strings.Contains(got, "leading comment") {
		t.Fatalf("comment survived minification: %q", got)
	}
	first, second := strings.Index(got, "first"), strings.Index(got, "second")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("concat order broken: %q", got)
	}
}

func TestConcat_EmptyBatch(t *testing.T) {
	out, err := Concat("x.js").Apply(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty batch, got %d files", len(out))
	}
}

func TestSrc_MissingLiteralIsIOError(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.js")
	_, err := New("x", Src(fileset.MustNew(missing))).Run(context.Background(), nil)

	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected IOError, got %v", err)
	}
	if ioErr.Path != missing {
		t.Fatalf("path = %q, want %q", ioErr.Path, missing)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist cause, got %v", err)
	}
}

func TestDest_LazyCopyKeepsRelativeLayout(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/assets/img/a.png":  "png",
		"src/assets/robots.txt": "txt",
	})
	out := filepath.Join(root, "dist")

	_, err := New("copy",
		SrcLazy(fileset.MustNew(filepath.Join(root, "src/assets/**/*.*"))),
		Dest(out),
	).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := readFile(t, filepath.Join(out, "img", "a.png")); got != "png" {
		t.Fatalf("img content = %q", got)
	}
	if got := readFile(t, filepath.Join(out, "robots.txt")); got != "txt" {
		t.Fatalf("robots content = %q", got)
	}
}

func TestClean_PreservesImages(t *testing.T) {
	root := t.TempDir()
	dist := filepath.Join(root, "dist")
	writeTree(t, dist, map[string]string{
		"js/app.js":          "x",
		"css/app.css":        "x",
		"index.html":         "x",
		"images/logo.png":    "x",
		"images/icons/a.svg": "x",
	})

	if err := Clean(dist, []string{"images"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, gone := range []string{"js/app.js", "css/app.css", "index.html", "js", "css"} {
		if exists(filepath.Join(dist, gone)) {
			t.Errorf("%s should have been removed", gone)
		}
	}
	for _, kept := range []string{"images/logo.png", "images/icons/a.svg"} {
		if !exists(filepath.Join(dist, kept)) {
			t.Errorf("%s should have been kept", kept)
		}
	}
}

func TestClean_MissingDir(t *testing.T) {
	if err := Clean(filepath.Join(t.TempDir(), "absent"), []string{"images"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClean_DirWithGlobCharacters(t *testing.T) {
	dist := filepath.Join(t.TempDir(), "static[admin]")
	writeTree(t, dist, map[string]string{
		"js/app.js":    "x",
		"images/a.png": "x",
	})

	if err := Clean(dist, []string{"images"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists(filepath.Join(dist, "js")) {
		t.Errorf("js should have been removed")
	}
	if !exists(filepath.Join(dist, "images/a.png")) {
		t.Errorf("images/a.png should have been kept")
	}
}

func TestTemplateCache(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/app/home.tpl.html":       "<h1 class='x'>Home</h1>\r\n",
		"src/app/users/list.tpl.html": "<ul>\n<li>\"a\"</li>\n</ul>",
	})

	out, err := New("templates",
		Src(fileset.MustNew(filepath.Join(root, "src/app/**/*.tpl.html"))),
		TemplateCache(TemplateCacheOptions{Filename: "app.tpls.js", Module: "app.tpls", Standalone: true}),
	).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one generated file, got %d", len(out))
	}
	if out[0].Rel() != "app.tpls.js" {
		t.Fatalf("generated file rel = %q", out[0].Rel())
	}

	got := string(out[0].Contents)
	want := "angular.module(\"app.tpls\", []).run(['$templateCache', function($templateCache) {\n" +
		"  $templateCache.put(\"home.tpl.html\", \"<h1 class='x'>Home</h1>\\n\");\n" +
		"  $templateCache.put(\"users/list.tpl.html\", \"<ul>\\n<li>\\\"a\\\"</li>\\n</ul>\");\n" +
		"}]);\n"
	if got != want {
		t.Fatalf("unexpected template cache:\n%s\nwant:\n%s", got, want)
	}
}

func TestTemplateCache_RootAndModuleAttach(t *testing.T) {
	f := &File{Path: "/src/a/b.html", Base: "/src", Contents: []byte("<p>x</p>")}
	out, err := TemplateCache(TemplateCacheOptions{Filename: "t.js", Module: "app", Root: "tpl"}).Apply(context.Background(), Batch{f})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := string(out[0].Contents)
	if !strings.HasPrefix(got, "angular.module(\"app\").run(") {
		t.Fatalf("module should not be declared standalone: %q", got)
	}
	if !strings.Contains(got, `$templateCache.put("tpl/a/b.html", "<p>x</p>");`) {
		t.Fatalf("missing rooted key: %q", got)
	}
}

func TestInject(t *testing.T) {
	root := t.TempDir()
	app := filepath.Join(root, "angular-app")
	writeTree(t, root, map[string]string{
		"static/admin/js/app.vendor.js":    "js",
		"static/admin/css/app.vendor.css":  "css",
		"maplocate/templates/index.jinja2": "<head>\n" +
			"    <!-- vendor:css -->\n" +
			"    <link rel=\"stylesheet\" href=\"/old.css\">\n" +
			"    <!-- endinject -->\n" +
			"</head>\n<body>\n" +
			"  <!-- vendor:js -->\n" +
			"  <!-- endinject -->\n" +
			"</body>\n",
	})
	if err := os.MkdirAll(app, 0755); err != nil {
		t.Fatal(err)
	}

	target := filepath.Join(root, "maplocate/templates/index.jinja2")
	refs := fileset.MustNew(
		filepath.Join(root, "static/admin/js/app.vendor.js"),
		filepath.Join(root, "static/admin/css/app.vendor.css"),
	)

	_, err := New("vendor:prod",
		Src(fileset.MustNew(target)),
		Inject(InjectOptions{Name: "vendor", Root: app, IgnorePath: "../static", AddPrefix: "static"}, refs),
		Dest(filepath.Dir(target)),
	).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "<head>\n" +
		"    <!-- vendor:css -->\n" +
		"    <link rel=\"stylesheet\" href=\"/static/admin/css/app.vendor.css\">\n" +
		"    <!-- endinject -->\n" +
		"</head>\n<body>\n" +
		"  <!-- vendor:js -->\n" +
		"  <script src=\"/static/admin/js/app.vendor.js\"></script>\n" +
		"  <!-- endinject -->\n" +
		"</body>\n"
	if got := readFile(t, target); got != want {
		t.Fatalf("unexpected injection:\n%s\nwant:\n%s", got, want)
	}
}

func TestInject_ReferenceWithoutOptions(t *testing.T) {
	o := InjectOptions{Root: "/app"}
	if got := o.reference("/app/dist/js/a.js"); got != "/dist/js/a.js" {
		t.Fatalf("reference = %q", got)
	}
}

func TestReplaceBlock_InlineAndRepeated(t *testing.T) {
	tags := []string{`<script src="/js/a.js"></script>`}

	got, found := replaceBlock("<head><!-- vendor:js --><!-- endinject --></head>\n", "vendor", "js", tags)
	want := "<head><!-- vendor:js -->\n<script src=\"/js/a.js\"></script>\n<!-- endinject --></head>\n"
	if !found || got != want {
		t.Fatalf("inline block:\n%q\nwant:\n%q", got, want)
	}

	doc := "  <!-- vendor:js -->\n  <!-- endinject -->\n<p>x</p>\n\t<!-- vendor:js --><!-- endinject -->\n"
	got, found = replaceBlock(doc, "vendor", "js", tags)
	want = "  <!-- vendor:js -->\n  <script src=\"/js/a.js\"></script>\n  <!-- endinject -->\n<p>x</p>\n" +
		"\t<!-- vendor:js -->\n\t<script src=\"/js/a.js\"></script>\n\t<!-- endinject -->\n"
	if !found || got != want {
		t.Fatalf("repeated blocks:\n%q\nwant:\n%q", got, want)
	}

	if _, found := replaceBlock("<head></head>", "vendor", "js", tags); found {
		t.Fatalf("found a block in a document without markers")
	}
}

func TestSass(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"scss/app.scss":      "$c: red; a { color: $c; }",
		"scss/_partial.scss": "b { }",
	})

	step := Sass(`echo "/* $SASS_STYLE */ a{color:red}"`, map[string]string{"outputStyle": "compressed"})
	out, err := New("css",
		Src(fileset.MustNew(filepath.Join(root, "scss/*.scss"))),
		step,
	).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("partials must be skipped, got %d files", len(out))
	}
	if out[0].Rel() != "app.css" {
		t.Fatalf("output rel = %q", out[0].Rel())
	}
	if got := string(out[0].Contents); got != "/* compressed */ a{color:red}\n" {
		t.Fatalf("output = %q", got)
	}
}

func TestSass_FailureIsTransformError(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"scss/app.scss": "a {"})
	src := filepath.Join(root, "scss/app.scss")

	_, err := New("css",
		Src(fileset.MustNew(src)),
		Sass(`echo "expected }" >&2; exit 3`, nil),
	).Run(context.Background(), nil)

	var terr *TransformError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransformError, got %v", err)
	}
	if terr.Path != src {
		t.Fatalf("path = %q, want %q", terr.Path, src)
	}
	if !strings.Contains(err.Error(), "expected }") {
		t.Fatalf("stderr missing from error: %v", err)
	}
}

func TestMinify_NOOP(t *testing.T) {
	f := &File{Path: "a.css", Contents: []byte("a {  color : red ; }")}
	out, err := MinifyWith(&NOOPMinifier{}, MediaCSS).Apply(context.Background(), Batch{f})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out[0].Contents) != "a {  color : red ; }" {
		t.Fatalf("noop minifier changed contents: %q", out[0].Contents)
	}
}

func TestPipeline_StopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := New("x", StepFunc("probe", func(ctx context.Context, in Batch) (Batch, error) {
		called = true
		return in, nil
	})).Run(ctx, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Fatalf("step ran after cancellation")
	}
}
