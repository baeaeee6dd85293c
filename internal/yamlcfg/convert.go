package yamlcfg

import (
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// paramsToCty converts a decoded YAML params mapping into cty values so the
// rest of the system sees the same parameter representation regardless of
// definition format.
func paramsToCty(params map[string]any) (map[string]cty.Value, error) {
	if len(params) == 0 {
		return nil, nil
	}
	out := make(map[string]cty.Value, len(params))
	for name, raw := range params {
		val, err := toCty(raw)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", name, err)
		}
		out[name] = val
	}
	return out, nil
}

// toCty converts one YAML-decoded Go value into its cty equivalent.
func toCty(raw any) (cty.Value, error) {
	switch v := raw.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case bool:
		return cty.BoolVal(v), nil
	case string:
		return cty.StringVal(v), nil
	case int:
		return cty.NumberIntVal(int64(v)), nil
	case int64:
		return cty.NumberIntVal(v), nil
	case float64:
		return cty.NumberFloatVal(v), nil
	case []any:
		if len(v) == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, len(v))
		for i, e := range v {
			val, err := toCty(e)
			if err != nil {
				return cty.NilVal, err
			}
			elems[i] = val
		}
		return cty.TupleVal(elems), nil
	case map[string]any:
		if len(v) == 0 {
			return cty.EmptyObjectVal, nil
		}
		attrs := make(map[string]cty.Value, len(v))
		names := make([]string, 0, len(v))
		for name := range v {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			val, err := toCty(v[name])
			if err != nil {
				return cty.NilVal, err
			}
			attrs[name] = val
		}
		return cty.ObjectVal(attrs), nil
	default:
		return cty.NilVal, fmt.Errorf("unsupported YAML value of type %T", raw)
	}
}
