package statestore

import (
	"fmt"
	"sort"
	"time"

	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

// Value kinds of the wire format.
const (
	wireNumber = "number"
	wireString = "string"
	wireBool   = "bool"
)

type wireValue struct {
	Key    string `yaml:"key"`
	Kind   string `yaml:"kind"`
	Value  string `yaml:"value"`
	Auto   bool   `yaml:"auto,omitempty"`
	Active bool   `yaml:"active,omitempty"`
}

type wireContext struct {
	Tab     string         `yaml:"tab"`
	SavedAt time.Time      `yaml:"saved_at"`
	Counts  map[string]int `yaml:"counts,omitempty"`
	Order   []string       `yaml:"order,omitempty"`
	Values  []wireValue    `yaml:"values"`
}

// Marshal encodes c as a YAML document. Numbers are written in their exact
// decimal form so that a round trip preserves them.
func Marshal(c *SavedContext) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("saved context is nil")
	}
	w := wireContext{
		Tab:     c.Tab,
		SavedAt: c.SavedAt.UTC(),
		Counts:  c.Counts,
		Order:   c.Order,
	}
	keys := make([]string, 0, len(c.Values))
	for k := range c.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sv := c.Values[k]
		kind, text, err := encodeValue(sv.Value)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", k, err)
		}
		w.Values = append(w.Values, wireValue{Key: k, Kind: kind, Value: text, Auto: sv.Auto, Active: sv.Active})
	}
	return yaml.Marshal(&w)
}

// Unmarshal decodes a document produced by Marshal.
func Unmarshal(data []byte) (*SavedContext, error) {
	var w wireContext
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to decode saved context: %w", err)
	}
	c := &SavedContext{
		Tab:     w.Tab,
		SavedAt: w.SavedAt,
		Counts:  w.Counts,
		Order:   w.Order,
		Values:  make(map[string]SavedValue, len(w.Values)),
	}
	if c.Counts == nil {
		c.Counts = make(map[string]int)
	}
	for _, wv := range w.Values {
		v, err := decodeValue(wv.Kind, wv.Value)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", wv.Key, err)
		}
		c.Values[wv.Key] = SavedValue{Value: v, Auto: wv.Auto, Active: wv.Active}
	}
	return c, nil
}

func encodeValue(v cty.Value) (kind, text string, err error) {
	if v.IsNull() || !v.IsWhollyKnown() {
		return "", "", fmt.Errorf("value is not set")
	}
	switch {
	case v.Type().Equals(cty.Number):
		return wireNumber, v.AsBigFloat().Text('f', -1), nil
	case v.Type().Equals(cty.String):
		return wireString, v.AsString(), nil
	case v.Type().Equals(cty.Bool):
		if v.True() {
			return wireBool, "true", nil
		}
		return wireBool, "false", nil
	}
	return "", "", fmt.Errorf("unsupported value type %s", v.Type().FriendlyName())
}

func decodeValue(kind, text string) (cty.Value, error) {
	switch kind {
	case wireNumber:
		return cty.ParseNumberVal(text)
	case wireString:
		return cty.StringVal(text), nil
	case wireBool:
		switch text {
		case "true":
			return cty.True, nil
		case "false":
			return cty.False, nil
		}
		return cty.NilVal, fmt.Errorf("invalid bool %q", text)
	}
	return cty.NilVal, fmt.Errorf("unknown value kind %q", kind)
}
