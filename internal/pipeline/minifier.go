package pipeline

import (
	"context"
	"regexp"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
)

const (
	MediaJS   = "application/javascript"
	MediaCSS  = "text/css"
	MediaHTML = "text/html"
)

type Minifier interface {
	Bytes(mediatype string, b []byte) ([]byte, error)
}

var defaultMinifier Minifier

type TDMinifier struct {
	Minifier *minify.M
}

func (m *TDMinifier) Bytes(mediatype string, b []byte) ([]byte, error) {
	return m.Minifier.Bytes(mediatype, b)
}

type NOOPMinifier struct {
}

func (m *NOOPMinifier) Bytes(mediatype string, b []byte) ([]byte, error) {
	return b, nil
}

func init() {
	minifier := minify.New()
	minifier.AddFunc(MediaCSS, css.Minify)
	minifier.Add(MediaHTML, &html.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
	})
	minifier.AddFuncRegexp(regexp.MustCompile("^(application|text)/(x-)?(java|ecma)script$"), js.Minify)
	defaultMinifier = &TDMinifier{
		Minifier: minifier,
	}
}

// Minify minifies every file as mediatype.
func Minify(mediatype string) Step {
	return MinifyWith(defaultMinifier, mediatype)
}

// MinifyWith is Minify with an explicit minifier.
func MinifyWith(m Minifier, mediatype string) Step {
	return StepFunc("minify "+mediatype, func(ctx context.Context, in Batch) (Batch, error) {
		for _, f := range in {
			b, err := f.Bytes()
			if err != nil {
				return nil, err
			}
			out, err := m.Bytes(mediatype, b)
			if err != nil {
				return nil, &TransformError{Step: "minify", Path: f.Path, Err: err}
			}
			f.Contents = out
		}
		return in, nil
	})
}
