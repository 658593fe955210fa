package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/winniio/dashboard/internal/platform/record"
)

// Decode parses source content into a collection.
//
// A top-level array must contain only objects. A top-level object whose
// values are all objects is an entity-ID keyed store and decodes to its
// values in document order; any other object decodes as a single record.
func Decode(source string, data []byte) (record.Collection, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, newFormatError(source, data, int64(len(data)), errors.New("empty document"))
		}
		return nil, wrapDecodeError(source, data, dec, err)
	}

	var out record.Collection
	switch tok {
	case json.Delim('['):
		out, err = decodeArray(source, data, dec)
	case json.Delim('{'):
		out, err = decodeObject(source, data, dec)
	default:
		return nil, newFormatError(source, data, 0,
			fmt.Errorf("top-level value must be an array or object, got %v", tok))
	}
	if err != nil {
		return nil, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, newFormatError(source, data, dec.InputOffset(), errors.New("unexpected data after top-level value"))
	}
	return out, nil
}

func decodeArray(source string, data []byte, dec *json.Decoder) (record.Collection, error) {
	out := record.Collection{}
	for i := 0; dec.More(); i++ {
		offset := dec.InputOffset()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, wrapDecodeError(source, data, dec, err)
		}
		m, ok := v.(map[string]any)
		if !ok {
			return nil, newFormatError(source, data, offset,
				fmt.Errorf("element %d is not an object", i))
		}
		out = append(out, record.Record(m))
	}
	if _, err := dec.Token(); err != nil {
		return nil, wrapDecodeError(source, data, dec, err)
	}
	return out, nil
}

func decodeObject(source string, data []byte, dec *json.Decoder) (record.Collection, error) {
	var (
		keys   []string
		values []any
	)
	keyed := true
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, wrapDecodeError(source, data, dec, err)
		}
		key, _ := tok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, wrapDecodeError(source, data, dec, err)
		}
		if _, ok := v.(map[string]any); !ok {
			keyed = false
		}
		keys = append(keys, key)
		values = append(values, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, wrapDecodeError(source, data, dec, err)
	}

	if !keyed {
		single := make(record.Record, len(keys))
		for i, k := range keys {
			single[k] = values[i]
		}
		return record.Collection{single}, nil
	}
	out := make(record.Collection, 0, len(values))
	for _, v := range values {
		out = append(out, record.Record(v.(map[string]any)))
	}
	return out, nil
}

// Encode serializes a collection as a compact JSON array without a trailing
// newline.
func Encode(c record.Collection) ([]byte, error) {
	if c == nil {
		c = record.Collection{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func wrapDecodeError(source string, data []byte, dec *json.Decoder, err error) error {
	offset := dec.InputOffset()
	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		// Decoder offsets are relative to its internal buffer; a full scan
		// gives the absolute position of the offending byte.
		var v any
		var full *json.SyntaxError
		if uerr := json.Unmarshal(data, &v); errors.As(uerr, &full) {
			offset = full.Offset - 1
		}
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		offset = int64(len(data))
		err = io.ErrUnexpectedEOF
	}
	return newFormatError(source, data, offset, err)
}

func newFormatError(source string, data []byte, offset int64, err error) *FormatError {
	if offset < 0 {
		offset = 0
	}
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	line, col := 1, 1
	for _, b := range data[:offset] {
		if b == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return &FormatError{Source: source, Offset: offset, Line: line, Column: col, Err: err}
}
