package deviceflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// Param is a single key/value pair of a Params map
type Param struct {
	Key   string
	Value string
}

// Params is an ordered string map holding the extra authorize and token
// endpoint parameters a device registers at issuance
type Params []Param

// ParseParams parses a JSON object of scalar members into Params, keeping
// document order. An empty input yields an empty map.
func ParseParams(raw string) (Params, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Params{}, nil
	}
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidParams)
	}

	doc := gjson.Parse(raw)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: must be a JSON object", ErrInvalidParams)
	}

	params := Params{}
	var err error
	doc.ForEach(func(key, value gjson.Result) bool {
		var v string
		switch value.Type {
		case gjson.String:
			v = value.Str
		case gjson.Number:
			v = value.Raw
		case gjson.True:
			v = "true"
		case gjson.False:
			v = "false"
		case gjson.Null:
			v = ""
		default:
			err = fmt.Errorf("%w: member %q is not a scalar", ErrInvalidParams, key.Str)
			return false
		}
		params.Set(key.Str, v)
		return true
	})
	if err != nil {
		return nil, err
	}
	return params, nil
}

// Get returns the value stored for key
func (p Params) Get(key string) (string, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Set replaces the value of an existing key in place or appends a new one
func (p *Params) Set(key, value string) {
	for i := range *p {
		if (*p)[i].Key == key {
			(*p)[i].Value = value
			return
		}
	}
	*p = append(*p, Param{Key: key, Value: value})
}

// Without returns a copy of p minus the given keys
func (p Params) Without(keys ...string) Params {
	out := make(Params, 0, len(p))
	for _, kv := range p {
		skip := false
		for _, k := range keys {
			if kv.Key == k {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, kv)
		}
	}
	return out
}

// Values converts p to url.Values for form and query encoding
func (p Params) Values() url.Values {
	v := make(url.Values, len(p))
	for _, kv := range p {
		v.Set(kv.Key, kv.Value)
	}
	return v
}

// Clone returns an independent copy of p
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	copy(out, p)
	return out
}

// MarshalJSON encodes p as a JSON object in insertion order
func (p Params) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object produced by MarshalJSON
func (p *Params) UnmarshalJSON(b []byte) error {
	if string(bytes.TrimSpace(b)) == "null" {
		*p = Params{}
		return nil
	}
	parsed, err := ParseParams(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
