// Package format writes CLI output as a strict JSON envelope.
package format

import (
	"encoding/json"
	"fmt"
	"io"
)

// Envelope wraps every scriptable result: {"data": ..., "meta": {...}}.
type Envelope struct {
	Data any   `json:"data"`
	Meta *Meta `json:"meta,omitempty"`
}

type Meta struct {
	Count int    `json:"count"`
	Tag   string `json:"tag,omitempty"`
	// Hint tells a caller how to get more, e.g. a wider filter.
	Hint string `json:"_hint,omitempty"`
}

// Write writes output in the requested format. Only json is supported.
func Write(w io.Writer, v any, format string, pretty bool) error {
	switch format {
	case "", "json":
		return WriteJSON(w, v, pretty)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func WriteJSON(w io.Writer, v any, pretty bool) error {
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
