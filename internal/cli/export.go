package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"

	"github.com/specialistvlad/paramgrid/internal/app"
	"github.com/specialistvlad/paramgrid/internal/ctxlog"
	"github.com/specialistvlad/paramgrid/internal/session"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

// exportEntry is one active parameter in output order.
type exportEntry struct {
	Key   string `json:"key" yaml:"key"`
	Value any    `json:"value" yaml:"value"`
}

type exportDoc struct {
	Tab        string        `json:"tab" yaml:"tab"`
	Parameters []exportEntry `json:"parameters" yaml:"parameters"`
}

func writeExport(w io.Writer, ex session.Export, format string) error {
	doc := exportDoc{Tab: ex.Tab, Parameters: []exportEntry{}}
	for _, key := range ex.Order {
		doc.Parameters = append(doc.Parameters, exportEntry{Key: key, Value: plain(ex.Values[key])})
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	}
	for _, p := range doc.Parameters {
		if _, err := fmt.Fprintf(w, "%s = %v\n", p.Key, p.Value); err != nil {
			return err
		}
	}
	return nil
}

// plain turns a primitive value into its Go equivalent. Whole numbers print
// without a fractional part.
func plain(v cty.Value) any {
	if v.IsNull() || !v.IsKnown() {
		return nil
	}
	switch {
	case v.Type().Equals(cty.Number):
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return i
			}
		}
		f, _ := bf.Float64()
		return f
	case v.Type().Equals(cty.String):
		return v.AsString()
	case v.Type().Equals(cty.Bool):
		return v.True()
	}
	return v.GoString()
}

func withAppLogger(ctx context.Context, a *app.App) context.Context {
	return ctxlog.WithLogger(ctx, a.Logger())
}
