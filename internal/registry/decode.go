package registry

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// DecodeParams populates an input struct from a task's bound parameters.
// Fields are matched by their `cty` tag; a field tagged `name,optional` may
// be absent from the params, anything else is required. Values are
// implicitly converted to the field's implied cty type where possible.
func DecodeParams(params map[string]cty.Value, inputStruct any) error {
	structVal := reflect.ValueOf(inputStruct)
	if structVal.Kind() != reflect.Ptr || structVal.IsNil() {
		return fmt.Errorf("input struct must be a non-nil pointer")
	}
	structVal = structVal.Elem()
	structType := structVal.Type()

	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		fieldVal := structVal.Field(i)

		tag := field.Tag.Get("cty")
		if tag == "" || tag == "-" || !fieldVal.CanSet() {
			continue
		}

		parts := strings.Split(tag, ",")
		name := parts[0]
		optional := len(parts) > 1 && parts[1] == "optional"

		val, provided := params[name]
		if !provided || val.IsNull() {
			if optional {
				continue
			}
			return fmt.Errorf("missing required parameter %q", name)
		}

		if err := decodeValue(val, fieldVal.Addr().Interface()); err != nil {
			return fmt.Errorf("parameter %q: %w", name, err)
		}
	}
	return nil
}

// decodeValue converts and decodes a single cty.Value into a Go pointer.
func decodeValue(val cty.Value, goVal any) error {
	impliedType, err := gocty.ImpliedType(reflect.ValueOf(goVal).Elem().Interface())
	if err != nil {
		// No implied type for this Go shape; let gocty attempt it directly.
		return gocty.FromCtyValue(val, goVal)
	}

	convertedVal, err := convert.Convert(val, impliedType)
	if err != nil {
		return fmt.Errorf("cannot convert %s to %s: %w",
			val.Type().FriendlyName(), impliedType.FriendlyName(), err)
	}

	return gocty.FromCtyValue(convertedVal, goVal)
}
