package runtime

import (
	"fmt"

	"github.com/risor-io/risor/object"
)

// ToObject converts the Go values handed to scripts into Risor objects.
func ToObject(v any) (object.Object, error) {
	switch val := v.(type) {
	case nil:
		return object.Nil, nil
	case object.Object:
		return val, nil
	case string:
		return object.NewString(val), nil
	case bool:
		return object.NewBool(val), nil
	case int:
		return object.NewInt(int64(val)), nil
	case int64:
		return object.NewInt(val), nil
	case []string:
		return StringList(val), nil
	case map[string]string:
		m := make(map[string]object.Object, len(val))
		for k, s := range val {
			m[k] = object.NewString(s)
		}
		return object.NewMap(m), nil
	case []map[string]string:
		items := make([]object.Object, 0, len(val))
		for _, mv := range val {
			obj, _ := ToObject(mv)
			items = append(items, obj)
		}
		return object.NewList(items), nil
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}

// StringList converts ss to a Risor list of strings.
func StringList(ss []string) *object.List {
	items := make([]object.Object, 0, len(ss))
	for _, s := range ss {
		items = append(items, object.NewString(s))
	}
	return object.NewList(items)
}

// Strings converts a script result into a string slice. A nil result is an
// empty list.
func Strings(obj object.Object) ([]string, error) {
	if obj == nil || obj == object.Nil {
		return []string{}, nil
	}
	if e, ok := obj.(*object.Error); ok {
		return nil, fmt.Errorf("script error: %s", e.Inspect())
	}
	list, ok := obj.(*object.List)
	if !ok {
		return nil, fmt.Errorf("expected list result, got %s", obj.Type())
	}
	out := make([]string, 0, len(list.Value()))
	for i, item := range list.Value() {
		s, ok := item.(*object.String)
		if !ok {
			return nil, fmt.Errorf("result item %d: expected string, got %s", i, item.Type())
		}
		out = append(out, s.Value())
	}
	return out, nil
}
