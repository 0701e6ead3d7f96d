package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DecodeError reports a document that is not well-formed JSON.
type DecodeError struct {
	Offset int64 // byte offset where decoding stopped
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode json at offset %d: %v", e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var errTrailingData = errors.New("trailing data after document")

// Decode parses one JSON document. Integer literals become Int, literals
// with a fraction or exponent become Float (as do integers outside the
// int64 range), and object members keep their document order. A repeated
// key keeps its first position and takes the last value.
func Decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeNext(dec)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, &DecodeError{Offset: dec.InputOffset(), Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			err = errTrailingData
		}
		return nil, &DecodeError{Offset: dec.InputOffset(), Err: err}
	}
	return v, nil
}

// DecodeString is Decode for string input.
func DecodeString(s string) (Value, error) {
	return Decode([]byte(s))
}

func decodeNext(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return parseNumber(t.String())
	case json.Delim:
		switch t {
		case '[':
			return decodeArray(dec)
		case '{':
			return decodeObject(dec)
		}
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

func decodeArray(dec *json.Decoder) (Value, error) {
	arr := Array{}
	for dec.More() {
		v, err := decodeNext(dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
	// closing ']'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}

func decodeObject(dec *json.Decoder) (Value, error) {
	obj := Object{}
	seen := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is %T, not string", tok)
		}
		v, err := decodeNext(dec)
		if err != nil {
			return nil, err
		}
		if i, dup := seen[key]; dup {
			obj[i].Value = v
			continue
		}
		seen[key] = len(obj)
		obj = append(obj, Member{Key: key, Value: v})
	}
	// closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func parseNumber(s string) (Value, error) {
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(i), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("number %q: %w", s, err)
	}
	return Float(f), nil
}
