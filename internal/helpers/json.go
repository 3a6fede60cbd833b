package helpers

import (
	"bytes"
	"encoding/json"
)

// MarshalJSON encodes v without escaping <, > and &, so markup embedded in
// generated scripts stays readable. The trailing newline is dropped.
func MarshalJSON(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(v)
	return bytes.TrimRight(buf.Bytes(), "\n"), err
}

// JSString quotes s as a JavaScript string literal.
func JSString(s string) string {
	b, _ := MarshalJSON(s)
	return string(b)
}
