package fabrik

import (
	"fmt"
	"reflect"
	"sort"
)

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyAnyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func mergeMaps(base, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// asInt normalizes the integer kinds a caller may plausibly hand over as a
// sequence override.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	}
	return 0, false
}

// truthy reports whether a resolved decider value selects the "yes" branch
// of a Maybe. nil, false, zero numbers and empty strings/collections are
// falsy; everything else is truthy.
func truthy(v any) bool {
	if v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Chan:
		return rv.Len() != 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// asSlice flattens a supplied value into a positional argument list.
func asSlice(v any) ([]any, error) {
	if items, ok := v.([]any); ok {
		return items, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("expected a sequence of positional arguments, got %T", v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

// attrOf reads a named attribute off an arbitrary value: a map key for
// string-keyed maps, an exported field for structs (through pointers).
func attrOf(v any, name string) (any, bool) {
	if m, ok := v.(map[string]any); ok {
		val, found := m[name]
		return val, found
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		f := rv.FieldByName(name)
		if f.IsValid() && f.CanInterface() {
			return f.Interface(), true
		}
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			mv := rv.MapIndex(reflect.ValueOf(name))
			if mv.IsValid() {
				return mv.Interface(), true
			}
		}
	}
	return nil, false
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

// callMethod invokes a named method on instance with positional args and,
// when the method's trailing parameter is a map[string]any, the keyword
// extras. Methods may return nothing, a value, an error, or (value, error).
func callMethod(instance any, name string, args []any, kwargs map[string]any) (any, error) {
	m := reflect.ValueOf(instance).MethodByName(name)
	if !m.IsValid() {
		return nil, fmt.Errorf("no method %q on %T", name, instance)
	}
	mt := m.Type()
	if mt.IsVariadic() {
		return nil, fmt.Errorf("method %q on %T is variadic; variadic hooks are not supported", name, instance)
	}

	kwargType := reflect.TypeOf(map[string]any(nil))
	wantsKwargs := mt.NumIn() == len(args)+1 && mt.In(mt.NumIn()-1) == kwargType
	if !wantsKwargs {
		if mt.NumIn() != len(args) {
			return nil, fmt.Errorf("method %q on %T takes %d arguments, got %d", name, instance, mt.NumIn(), len(args))
		}
		if len(kwargs) > 0 {
			return nil, fmt.Errorf("method %q on %T does not accept keyword extras (no trailing map[string]any parameter)", name, instance)
		}
	}

	in := make([]reflect.Value, 0, mt.NumIn())
	for i, a := range args {
		pt := mt.In(i)
		if a == nil {
			in = append(in, reflect.Zero(pt))
			continue
		}
		av := reflect.ValueOf(a)
		if !av.Type().AssignableTo(pt) {
			if !av.Type().ConvertibleTo(pt) {
				return nil, fmt.Errorf("method %q on %T: argument %d must be %s, got %T", name, instance, i, pt, a)
			}
			av = av.Convert(pt)
		}
		in = append(in, av)
	}
	if wantsKwargs {
		if kwargs == nil {
			kwargs = map[string]any{}
		}
		in = append(in, reflect.ValueOf(kwargs))
	}

	out := m.Call(in)
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if out[0].Type().Implements(errType) {
			if e := out[0].Interface(); e != nil {
				return nil, e.(error)
			}
			return nil, nil
		}
		return out[0].Interface(), nil
	case 2:
		if !out[1].Type().Implements(errType) {
			return nil, fmt.Errorf("method %q on %T: second return value must be an error", name, instance)
		}
		var err error
		if e := out[1].Interface(); e != nil {
			err = e.(error)
		}
		return out[0].Interface(), err
	default:
		return nil, fmt.Errorf("method %q on %T returns %d values; at most (value, error) is supported", name, instance, len(out))
	}
}

// resetableIterator replays a fixed value list, optionally cycling forever.
type resetableIterator struct {
	values []any
	pos    int
	cycle  bool
}

func newResetableIterator(values []any, cycle bool) *resetableIterator {
	return &resetableIterator{values: values, cycle: cycle}
}

func (it *resetableIterator) next() (any, bool) {
	if it.pos >= len(it.values) {
		if !it.cycle || len(it.values) == 0 {
			return nil, false
		}
		it.pos = 0
	}
	v := it.values[it.pos]
	it.pos++
	return v, true
}

func (it *resetableIterator) reset() {
	it.pos = 0
}
