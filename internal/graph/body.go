package graph

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Body is a successfully parsed JSON response body.
type Body []byte

// Get returns the value at a gjson path, e.g. "summary.total_count".
func (b Body) Get(path string) gjson.Result {
	return gjson.GetBytes(b, path)
}

// Decode unmarshals the body into v.
func (b Body) Decode(v any) error {
	return json.Unmarshal(b, v)
}

// String returns the raw JSON text.
func (b Body) String() string {
	return string(b)
}
