package webconnect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// RequestIDKind is the variant held by a RequestID
type RequestIDKind uint8

const (
	RequestIDInt RequestIDKind = iota + 1
	RequestIDDouble
	RequestIDString
)

func (k RequestIDKind) String() string {
	switch k {
	case RequestIDInt:
		return "int"
	case RequestIDDouble:
		return "double"
	case RequestIDString:
		return "string"
	}
	return "none"
}

// RequestID is a JSON-RPC request id: an integer, a floating point number or
// a string. The zero value is "no id".
type RequestID struct {
	kind RequestIDKind
	i    int64
	d    float64
	s    string
}

func IntRequestID(v int64) RequestID { return RequestID{kind: RequestIDInt, i: v} }
func DoubleRequestID(v float64) RequestID { return RequestID{kind: RequestIDDouble, d: v} }
func StringRequestID(v string) RequestID { return RequestID{kind: RequestIDString, s: v} }

// Kind returns the held variant, zero for "no id"
func (id RequestID) Kind() RequestIDKind { return id.kind }

// IsZero reports whether id holds no value
func (id RequestID) IsZero() bool { return id.kind == 0 }

func (id RequestID) Int() (int64, bool) { return id.i, id.kind == RequestIDInt }
func (id RequestID) Double() (float64, bool) { return id.d, id.kind == RequestIDDouble }
func (id RequestID) Text() (string, bool) { return id.s, id.kind == RequestIDString }

// ParseRequestID converts a dynamically typed id as decoded by encoding/json
// or built in Go code. Unsupported types give "no id".
func ParseRequestID(v any) (RequestID, bool) {
	switch x := v.(type) {
	case string:
		return StringRequestID(x), true
	case int:
		return IntRequestID(int64(x)), true
	case int32:
		return IntRequestID(int64(x)), true
	case int64:
		return IntRequestID(x), true
	case uint32:
		return IntRequestID(int64(x)), true
	case float32:
		return DoubleRequestID(float64(x)), true
	case float64:
		return DoubleRequestID(x), true
	case json.Number:
		id, err := parseNumber(string(x))
		if err != nil {
			return RequestID{}, false
		}
		return id, true
	}
	return RequestID{}, false
}

// MarshalJSON keeps the variant: doubles always carry a fraction or exponent
func (id RequestID) MarshalJSON() ([]byte, error) {
	switch id.kind {
	case RequestIDInt:
		return []byte(strconv.FormatInt(id.i, 10)), nil
	case RequestIDDouble:
		if math.IsNaN(id.d) || math.IsInf(id.d, 0) {
			return nil, fmt.Errorf("request id %v is not representable in JSON", id.d)
		}
		s := strconv.FormatFloat(id.d, 'g', -1, 64)
		if !bytes.ContainsAny([]byte(s), ".eE") {
			s += ".0"
		}
		return []byte(s), nil
	case RequestIDString:
		return json.Marshal(id.s)
	}
	return []byte("null"), nil
}

// UnmarshalJSON decodes numbers without fraction or exponent as Int
func (id *RequestID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = RequestID{}
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = StringRequestID(s)
		return nil
	}

	parsed, err := parseNumber(string(data))
	if err != nil {
		return fmt.Errorf("invalid request id %s: %w", data, err)
	}
	*id = parsed
	return nil
}

// parseNumber rejects integer literals outside the int64 range instead of
// turning them into a Double
func parseNumber(s string) (RequestID, error) {
	if !bytes.ContainsAny([]byte(s), ".eE") {
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return RequestID{}, err
		}
		return IntRequestID(i), nil
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return RequestID{}, err
	}
	return DoubleRequestID(d), nil
}
