package export

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// The subset of a Plotly figure needed to redraw it as a static image.
type plotlyFigure struct {
	Data   []plotlyTrace `json:"data"`
	Layout plotlyLayout  `json:"layout"`
}

type plotlyTrace struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Mode        string          `json:"mode"`
	Orientation string          `json:"orientation"`
	X           json.RawMessage `json:"x"`
	Y           json.RawMessage `json:"y"`
	Labels      json.RawMessage `json:"labels"`
	Values      json.RawMessage `json:"values"`
}

type plotlyLayout struct {
	Title json.RawMessage `json:"title"`
	XAxis plotlyAxis      `json:"xaxis"`
	YAxis plotlyAxis      `json:"yaxis"`
}

type plotlyAxis struct {
	Title json.RawMessage `json:"title"`
}

// typedArray is Plotly's binary array encoding: little endian values,
// base64 encoded, with a numpy style dtype.
type typedArray struct {
	DType string `json:"dtype"`
	BData string `json:"bdata"`
}

var errNotArray = errors.New("not an array")

// titleText accepts both "title" and {"text": "title"}.
func titleText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Text string `json:"text"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return obj.Text
	}
	return ""
}

// decodeArray returns the elements of a Plotly data array, each either a
// float64 or a string. Nulls are kept as nil.
func decodeArray(raw json.RawMessage) ([]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] == '{' {
		var ta typedArray
		if err := json.Unmarshal(raw, &ta); err != nil {
			return nil, err
		}
		nums, err := decodeTypedArray(ta)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(nums))
		for i, n := range nums {
			out[i] = n
		}
		return out, nil
	}

	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errNotArray
	}
	for i, it := range items {
		switch v := it.(type) {
		case nil, float64, string:
		case bool:
			items[i] = strconv.FormatBool(v)
		default:
			return nil, fmt.Errorf("unsupported array element %T", it)
		}
	}
	return items, nil
}

func decodeTypedArray(ta typedArray) ([]float64, error) {
	buf, err := base64.StdEncoding.DecodeString(ta.BData)
	if err != nil {
		return nil, fmt.Errorf("decoding bdata: %w", err)
	}

	var size int
	var read func([]byte) float64
	switch ta.DType {
	case "i1", "int8":
		size, read = 1, func(b []byte) float64 { return float64(int8(b[0])) }
	case "u1", "uint8":
		size, read = 1, func(b []byte) float64 { return float64(b[0]) }
	case "i2", "int16":
		size, read = 2, func(b []byte) float64 { return float64(int16(binary.LittleEndian.Uint16(b))) }
	case "u2", "uint16":
		size, read = 2, func(b []byte) float64 { return float64(binary.LittleEndian.Uint16(b)) }
	case "i4", "int32":
		size, read = 4, func(b []byte) float64 { return float64(int32(binary.LittleEndian.Uint32(b))) }
	case "u4", "uint32":
		size, read = 4, func(b []byte) float64 { return float64(binary.LittleEndian.Uint32(b)) }
	case "f4", "float32":
		size, read = 4, func(b []byte) float64 { return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))) }
	case "f8", "float64":
		size, read = 8, func(b []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(b)) }
	default:
		return nil, fmt.Errorf("unsupported dtype %q", ta.DType)
	}
	if len(buf)%size != 0 {
		return nil, fmt.Errorf("bdata length %d is not a multiple of %d", len(buf), size)
	}

	out := make([]float64, 0, len(buf)/size)
	for i := 0; i < len(buf); i += size {
		out = append(out, read(buf[i:i+size]))
	}
	return out, nil
}

func label(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		return t
	}
	return fmt.Sprint(v)
}

func labels(items []any) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = label(it)
	}
	return out
}

// number converts an element to float64. Numeric strings are accepted since
// pandas often serializes them that way.
func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	}
	return 0, false
}

func numbers(items []any) ([]float64, bool) {
	out := make([]float64, len(items))
	for i, it := range items {
		f, ok := number(it)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}
