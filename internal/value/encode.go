package value

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Render returns the canonical text of v as it appears when spliced into a
// larger string: strings are written raw, numbers and booleans in JSON
// syntax, null as "null", and composites as compact JSON.
func Render(v Value) string {
	switch t := v.(type) {
	case nil, Null:
		return "null"
	case Bool:
		return strconv.FormatBool(bool(t))
	case Int:
		return strconv.FormatInt(int64(t), 10)
	case Float:
		return formatFloat(float64(t))
	case String:
		return string(t)
	case Array, Object:
		return string(Marshal(t))
	}
	return ""
}

// Marshal encodes v as compact JSON, keeping object member order.
func Marshal(v Value) []byte {
	var buf bytes.Buffer
	appendJSON(&buf, v)
	return buf.Bytes()
}

// MarshalIndent is Marshal followed by indentation.
func MarshalIndent(v Value, prefix, indent string) ([]byte, error) {
	var out bytes.Buffer
	if err := json.Indent(&out, Marshal(v), prefix, indent); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func appendJSON(buf *bytes.Buffer, v Value) {
	switch t := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(t)))
	case Int:
		buf.WriteString(strconv.FormatInt(int64(t), 10))
	case Float:
		f := float64(t)
		if math.IsInf(f, 0) || math.IsNaN(f) {
			// not representable in JSON
			buf.WriteString("null")
			return
		}
		buf.WriteString(formatFloatJSON(f))
	case String:
		appendString(buf, string(t))
	case Array:
		buf.WriteByte('[')
		for i, el := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			appendJSON(buf, el)
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, m := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			appendString(buf, m.Key)
			buf.WriteByte(':')
			appendJSON(buf, m.Value)
		}
		buf.WriteByte('}')
	}
}

func appendString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s) // strings always encode
	// Encode terminates with a newline
	buf.Truncate(buf.Len() - 1)
}

// formatFloat matches encoding/json: shortest round-trip form, exponent
// notation only for very small or very large magnitudes.
func formatFloat(f float64) string {
	format := byte('f')
	if abs := math.Abs(f); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	return strconv.FormatFloat(f, format, -1, 64)
}

// formatFloatJSON is formatFloat with a fraction kept on integral values,
// so the literal decodes back as a Float.
func formatFloatJSON(f float64) string {
	s := formatFloat(f)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
