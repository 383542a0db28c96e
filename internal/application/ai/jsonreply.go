package ai

import (
	"encoding/json"
	"errors"
	"strings"
)

var (
	errNoJSONObject = errors.New("reply holds no JSON object")
	errNoJSONArray  = errors.New("reply holds no JSON array")
)

// decodeObject unmarshals the outermost {...} of a reply, ignoring code
// fences and surrounding prose.
func decodeObject(reply string, v interface{}) error {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return errNoJSONObject
	}
	return json.Unmarshal([]byte(reply[start:end+1]), v)
}

// decodeStringArray unmarshals the outermost [...] of a reply as strings.
func decodeStringArray(reply string) ([]string, error) {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start < 0 || end <= start {
		return nil, errNoJSONArray
	}
	var out []string
	if err := json.Unmarshal([]byte(reply[start:end+1]), &out); err != nil {
		return nil, err
	}
	return out, nil
}
