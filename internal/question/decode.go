package question

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// member is one key/value of a JSON object, kept in source order.
type member struct {
	Key   string
	Value json.RawMessage
}

// decodeObject walks a JSON object token by token so member order survives.
func decodeObject(raw []byte) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var members []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		members = append(members, member{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return members, nil
}

// kind reports the JSON type of raw by its first significant byte.
func kind(raw []byte) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	switch c := trimmed[0]; {
	case c == '{', c == '[', c == '"':
		return c
	case c == 'n':
		return 'n'
	case c == 't', c == 'f':
		return 'b'
	default:
		return '0'
	}
}

// scalarString renders a JSON string or number as text. Other kinds report false.
func scalarString(raw []byte) (string, bool) {
	switch kind(raw) {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return strings.TrimSpace(s), true
	case '0':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", false
		}
		return n.String(), true
	default:
		return "", false
	}
}

// firstString returns the first of fields present in obj as a non-empty scalar.
func firstString(obj map[string]json.RawMessage, fields ...string) string {
	for _, f := range fields {
		if v, ok := obj[f]; ok {
			if s, ok := scalarString(v); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
