package statestore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestMarshalUnmarshal(t *testing.T) {
	saved := &SavedContext{
		Tab: "door",
		Values: map[string]SavedValue{
			"door_height":      {Value: cty.NumberFloatVal(2100.25), Active: true},
			"hinge_0_position": {Value: cty.NumberIntVal(700), Auto: true},
			"handle":           {Value: cty.StringVal("left")},
			"glass":            {Value: cty.True},
		},
		Order:   []string{"door_height"},
		Counts:  map[string]int{"hinges": 1},
		SavedAt: time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC),
	}

	data, err := Marshal(saved)
	require.NoError(t, err)
	assert.Contains(t, string(data), "kind: number")

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, "door", got.Tab)
	assert.Equal(t, saved.Order, got.Order)
	assert.Equal(t, saved.Counts, got.Counts)
	assert.True(t, saved.SavedAt.Equal(got.SavedAt))
	require.Len(t, got.Values, 4)
	for k, want := range saved.Values {
		v := got.Values[k]
		assert.True(t, v.Value.Equals(want.Value).True(), "value of %s", k)
		assert.Equal(t, want.Auto, v.Auto)
		assert.Equal(t, want.Active, v.Active)
	}
}

func TestMarshal_Errors(t *testing.T) {
	_, err := Marshal(nil)
	assert.Error(t, err)

	_, err = Marshal(&SavedContext{Values: map[string]SavedValue{"x": {}}})
	assert.Error(t, err)
}

func TestUnmarshal_Errors(t *testing.T) {
	_, err := Unmarshal([]byte("values: [{key: x, kind: blob, value: y}]"))
	assert.Error(t, err)

	_, err = Unmarshal([]byte("values: [{key: x, kind: bool, value: maybe}]"))
	assert.Error(t, err)

	_, err = Unmarshal([]byte("tab: [unclosed"))
	assert.Error(t, err)
}
