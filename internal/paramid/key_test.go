// internal/paramid/key_test.go
package paramid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	testCases := []struct {
		name      string
		key       string
		template  bool
		expectErr bool
	}{
		{name: "simple key", key: "door_height"},
		{name: "template key", key: "hinge_#_position", template: true},
		{name: "error - empty", key: "", expectErr: true},
		{name: "error - leading digit", key: "1door", expectErr: true},
		{name: "error - dash", key: "door-height", expectErr: true},
		{name: "error - placeholder in plain key", key: "hinge_#", expectErr: true},
		{name: "error - template without placeholder", key: "hinge", template: true, expectErr: true},
		{name: "error - template with dot", key: "hinge.#", template: true, expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.key, tc.template)
			if tc.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSubstitute(t *testing.T) {
	assert.Equal(t, "hinge_3_position", Substitute("hinge_#_position", 3))
	assert.Equal(t, "Hinge 0", Substitute("Hinge #", 0))
	assert.Equal(t, "door_height", Substitute("door_height", 7))
}

func TestMatch(t *testing.T) {
	testCases := []struct {
		template string
		key      string
		index    int
		ok       bool
	}{
		{"hinge_#_position", "hinge_0_position", 0, true},
		{"hinge_#_position", "hinge_12_position", 12, true},
		{"pos_#", "pos_4", 4, true},
		{"#_offset", "2_offset", 2, true},
		{"hinge_#_position", "hinge_x_position", -1, false},
		{"hinge_#_position", "hinge_01_position", -1, false},
		{"hinge_#_position", "lock_0_position", -1, false},
		{"hinge_position", "hinge_position", -1, false},
	}

	for _, tc := range testCases {
		t.Run(tc.key, func(t *testing.T) {
			index, ok := Match(tc.template, tc.key)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.index, index)
		})
	}
}
