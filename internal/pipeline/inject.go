package pipeline

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/toastate/toastpipe/internal/fileset"
	"github.com/toastate/toastpipe/internal/tlogger"
)

type InjectOptions struct {
	// Name selects the "<!-- name:ext -->" ... "<!-- endinject -->" blocks.
	Name string
	// Root is the directory reference paths are made relative to.
	Root string
	// IgnorePath is stripped from the front of every reference.
	IgnorePath string
	// AddPrefix is prepended to every reference.
	AddPrefix string
}

// Inject rewrites the injection blocks of every file in the batch with a
// <script> or <link> tag per file selected by refs. refs is expanded when
// the step runs, so it may point at outputs of earlier tasks.
func Inject(opts InjectOptions, refs *fileset.Set) Step {
	return StepFunc("inject "+opts.Name, func(ctx context.Context, in Batch) (Batch, error) {
		matches, err := refs.Expand()
		if err != nil {
			return nil, &IOError{Op: "read", Path: pathOf(err), Err: err}
		}

		byExt := map[string][]string{}
		exts := []string{}
		for _, m := range matches {
			ext := strings.TrimPrefix(filepath.Ext(m.Path), ".")
			if _, ok := byExt[ext]; !ok {
				exts = append(exts, ext)
			}
			byExt[ext] = append(byExt[ext], opts.reference(m.Path))
		}

		for _, f := range in {
			b, err := f.Bytes()
			if err != nil {
				return nil, err
			}
			doc := string(b)

			for _, ext := range exts {
				tags := make([]string, 0, len(byExt[ext]))
				for _, ref := range byExt[ext] {
					tag, ok := referenceTag(ext, ref)
					if ok {
						tags = append(tags, tag)
					}
				}

				var found bool
				doc, found = replaceBlock(doc, opts.Name, ext, tags)
				if !found {
					tlogger.Warn("step", "inject", "msg", "missing injection block", "file", f.Path, "tag", opts.Name+":"+ext)
				}
			}

			f.Contents = []byte(doc)
		}
		return in, nil
	})
}

func (o InjectOptions) reference(file string) string {
	p := file
	if o.Root != "" {
		if rel, err := filepath.Rel(o.Root, file); err == nil {
			p = rel
		}
	}
	p = "/" + strings.TrimPrefix(filepath.ToSlash(p), "/")

	if o.IgnorePath != "" {
		ignore := "/" + strings.Trim(path.Clean(filepath.ToSlash(o.IgnorePath)), "/")
		if p == ignore || strings.HasPrefix(p, ignore+"/") {
			p = p[len(ignore):]
		}
	}

	return "/" + strings.TrimPrefix(path.Join(o.AddPrefix, p), "/")
}

func referenceTag(ext, ref string) (string, bool) {
	switch ext {
	case "js":
		return fmt.Sprintf(`<script src="%s"></script>`, ref), true
	case "css":
		return fmt.Sprintf(`<link rel="stylesheet" href="%s">`, ref), true
	case "html":
		return fmt.Sprintf(`<link rel="import" href="%s">`, ref), true
	}
	return "", false
}

func injectBlockRegexp(name, ext string) *regexp.Regexp {
	return regexp.MustCompile(`(<!--\s*` + regexp.QuoteMeta(name+":"+ext) + `\s*-->)[\s\S]*?(<!--\s*endinject\s*-->)`)
}

// replaceBlock rewrites every name:ext block of doc. Tags are indented
// like the line holding the start marker; text around the markers is kept.
func replaceBlock(doc, name, ext string, tags []string) (string, bool) {
	re := injectBlockRegexp(name, ext)
	locs := re.FindAllStringSubmatchIndex(doc, -1)
	if len(locs) == 0 {
		return doc, false
	}

	var sb strings.Builder
	last := 0
	for _, loc := range locs {
		lineStart := strings.LastIndexByte(doc[:loc[0]], '\n') + 1
		line := doc[lineStart:loc[0]]
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]

		sb.WriteString(doc[last:loc[0]])
		sb.WriteString(doc[loc[2]:loc[3]])
		sb.WriteString("\n")
		for _, tag := range tags {
			sb.WriteString(indent)
			sb.WriteString(tag)
			sb.WriteString("\n")
		}
		sb.WriteString(indent)
		sb.WriteString(doc[loc[4]:loc[5]])
		last = loc[1]
	}
	sb.WriteString(doc[last:])
	return sb.String(), true
}
