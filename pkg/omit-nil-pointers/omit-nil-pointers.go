package omitnilpointers

import (
	"reflect"
)

// OmitNilPointers returns a copy of fields without the nil entries. Non-nil
// pointers are replaced by the value they point to, so optional patch fields
// print as plain values.
func OmitNilPointers(fields map[string]any) map[string]any {
	res := make(map[string]any, len(fields))
	for key, value := range fields {
		v := reflect.ValueOf(value)
		switch {
		case !v.IsValid():
		case v.Kind() == reflect.Pointer:
			if !v.IsNil() {
				res[key] = v.Elem().Interface()
			}
		default:
			res[key] = value
		}
	}

	return res
}
