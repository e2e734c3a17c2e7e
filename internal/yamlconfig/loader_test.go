package yamlconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/paramgrid/internal/calc"
	"github.com/specialistvlad/paramgrid/internal/config"
	"github.com/specialistvlad/paramgrid/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

var _ config.Loader = (*Loader)(nil)

const doorYAML = `
tabs:
  - id: door
    name: {en: Door}
    sections:
      - id: frame
        position: left
        grouped_auto:
          label: {en: Automatic sizes}
          controlled: [H]
          default_active: true
        parameters:
          - key: L
            kind: float
            min: 100
            max: 3000
            default: 2100.5
          - key: H
            kind: float
            auto: true
            formula: param.L / 2
          - key: glass
            kind: boolean
            default: false
          - key: hinge
            kind: enum
            options: [left, right]
            default: right
      - id: body
        parameters:
          - key: shelves
            kind: multi
            count_max: 6
            count_default: 2
            template:
              key: "shelf_#_gap"
              kind: float
              auto: true
              default_auto: true
              formula: param.L / 10
              depends_on: [L]
    preview:
      - id: leaf
        type: rectangle
        x: 0
        width: param.L / 10
        color: "#aa8844"
`

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoad_Door(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "door.yaml", doorYAML)
	write(t, dir, "notes.txt", "ignored")
	write(t, dir, "empty.yml", "")

	model, err := NewLoader().Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, model.Tabs, 1)
	tab := model.Tabs[0]

	frame := tab.Sections[0]
	require.NotNil(t, frame.GroupedAuto)
	assert.True(t, frame.GroupedAuto.DefaultActive)

	params := frame.Parameters
	require.Len(t, params, 4)
	assert.True(t, params[0].Default.Equals(cty.NumberFloatVal(2100.5)).True())
	assert.Nil(t, params[1].Default)
	assert.Nil(t, params[1].DependsOn)
	assert.Equal(t, cty.False, *params[2].Default)
	assert.Equal(t, cty.StringVal("right"), *params[3].Default)

	tpl := tab.Sections[1].Parameters[0].Template
	require.NotNil(t, tpl)
	assert.Equal(t, "shelf_#_gap", tpl.Key)
	assert.Equal(t, []string{"L"}, tpl.DependsOn)

	assert.Equal(t, "0", tab.Preview[0].X)
	assert.Equal(t, "param.L / 10", tab.Preview[0].Width)

	_, err = schema.Load(context.Background(), tab, calc.NewRegistry())
	require.NoError(t, err)
}

func TestLoad_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown field", "tabs:\n  - id: x\n    colour: red\n", "failed to decode YAML file"},
		{"syntax", "tabs: [", "failed to decode YAML file"},
		{"validation", "tabs:\n  - id: x\n    sections:\n      - id: s\n        parameters:\n          - key: p\n            kind: complex\n", "config validation failed"},
		{"list default", "tabs:\n  - id: x\n    sections:\n      - id: s\n        parameters:\n          - key: p\n            kind: float\n            default: [1, 2]\n", "expected a scalar"},
		{"bool geometry", "tabs:\n  - id: x\n    preview:\n      - id: s\n        type: line\n        x: true\n", "expected a number or a formula string"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			write(t, dir, "a.yaml", tc.content)
			_, err := NewLoader().Load(context.Background(), dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoad_DuplicateTabAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.yaml", "tabs:\n  - id: x\n")
	write(t, dir, "b.yml", "tabs:\n  - id: x\n")
	_, err := NewLoader().Load(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `tab "x" is defined in both`)
}
