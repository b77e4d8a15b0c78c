// Package jsonplan implements the tolerant JSON reader spec.md §4.C calls
// for: a streaming reader, built on encoding/json.Decoder's token stream,
// that accepts duplicate keys at the same object level — PostgreSQL's own
// JSON EXPLAIN emitter never does this, but tooling that reconstructs JSON
// from the text form (and some EXPLAIN proxies) can legitimately produce a
// second "Worker" key instead of widening the "Workers" array, and the
// merge policy here recovers the intended union instead of silently
// dropping the first occurrence the way a plain json.Unmarshal into
// map[string]any would.
package jsonplan

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mickamy/xplain/internal/model"
)

// Parse reads a single JSON value from r and returns it as nested
// map[string]any / []any / scalar values, with duplicate object keys
// merged rather than overwritten. If the decoded top-level value is a
// non-empty array, it is unwrapped to its first element, matching
// PostgreSQL's `EXPLAIN (FORMAT JSON)` convention of wrapping the single
// plan entry in a one-element array.
func Parse(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	val, err := parseValue(dec)
	if err != nil {
		var syn *json.SyntaxError
		if errors.As(err, &syn) {
			return nil, fmt.Errorf("%w: %s (offset %d)", model.ErrJSONSyntax, syn.Error(), syn.Offset)
		}
		return nil, fmt.Errorf("%w: %s", model.ErrJSONSyntax, err)
	}

	switch v := val.(type) {
	case []any:
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: empty top-level array", model.ErrJSONSyntax)
		}
		obj, ok := v[0].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: top-level array entry is not an object", model.ErrJSONSyntax)
		}
		return obj, nil
	case map[string]any:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: unexpected top-level JSON value %T", model.ErrJSONSyntax, v)
	}
}

// parseValue reads one JSON value off the token stream. It is the
// recursive-descent equivalent of the stack machine spec.md §4.C
// describes: the Go call stack plays the role of the "stack of
// in-progress containers", and parseObject's duplicate-key branch plays
// the role of the "duplicate marker" / deep-merge step.
func parseValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return parseFromToken(dec, tok)
}

func parseFromToken(dec *json.Decoder, tok json.Token) (any, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return parseObject(dec)
		case '[':
			return parseArray(dec)
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t)
		}
	default:
		return normalizeScalar(tok), nil
	}
}

func parseObject(dec *json.Decoder) (map[string]any, error) {
	obj := map[string]any{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", keyTok)
		}
		val, err := parseValue(dec)
		if err != nil {
			return nil, err
		}
		if existing, dup := obj[key]; dup {
			obj[key] = deepMerge(existing, val)
		} else {
			obj[key] = val
		}
	}
	// Consume the closing '}'.
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func parseArray(dec *json.Decoder) ([]any, error) {
	arr := []any{}
	for dec.More() {
		val, err := parseValue(dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, val)
	}
	// Consume the closing ']'.
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}

// deepMerge combines a duplicate key's existing value with the newly
// parsed one: matching-shape objects merge key by key, matching-shape
// arrays merge element by element (index-aligned, extending with the
// longer side's tail), and anything else — including a type mismatch —
// is treated as a scalar: the new value overwrites the old one.
func deepMerge(existing, next any) any {
	switch e := existing.(type) {
	case map[string]any:
		n, ok := next.(map[string]any)
		if !ok {
			return next
		}
		merged := make(map[string]any, len(e)+len(n))
		for k, v := range e {
			merged[k] = v
		}
		for k, v := range n {
			if old, ok := merged[k]; ok {
				merged[k] = deepMerge(old, v)
			} else {
				merged[k] = v
			}
		}
		return merged
	case []any:
		n, ok := next.([]any)
		if !ok {
			return next
		}
		length := len(e)
		if len(n) > length {
			length = len(n)
		}
		merged := make([]any, length)
		for i := 0; i < length; i++ {
			switch {
			case i < len(e) && i < len(n):
				merged[i] = deepMerge(e[i], n[i])
			case i < len(e):
				merged[i] = e[i]
			default:
				merged[i] = n[i]
			}
		}
		return merged
	default:
		return next
	}
}

func normalizeScalar(tok json.Token) any {
	switch v := tok.(type) {
	case json.Number:
		return v
	default:
		return v
	}
}
