package runtime

import (
	"errors"
	"fmt"

	"github.com/risor-io/risor/object"
)

var (
	errNotTree    = errors.New("expected a tree or node map")
	errClosedTree = errors.New("tree is closed or unknown")
	errBadNode    = errors.New("node id out of range")
)

// Risor scripts cannot construct Go values, so host functions accept maps
// and primitives and convert them here.

func extractMap(obj object.Object) (map[string]object.Object, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return nil, fmt.Errorf("expected map, got %s", obj.Type())
	}
	return m.Value(), nil
}

func getInt64(m map[string]object.Object, key string) int64 {
	v, _ := getOptionalInt64(m, key)
	return v
}

func getOptionalInt64(m map[string]object.Object, key string) (int64, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case *object.Int:
		return n.Value(), true
	case *object.Float:
		return int64(n.Value()), true
	}
	return 0, false
}

func getBool(m map[string]object.Object, key string) bool {
	v, ok := m[key]
	if !ok {
		return false
	}
	if b, ok := v.(*object.Bool); ok {
		return b.Value()
	}
	return false
}

func toInt64(obj object.Object) (int64, error) {
	if i, ok := obj.(*object.Int); ok {
		return i.Value(), nil
	}
	if f, ok := obj.(*object.Float); ok {
		return int64(f.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

// toOffset converts a byte offset argument, rejecting negatives.
func toOffset(obj object.Object) (uint32, error) {
	v, err := toInt64(obj)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative byte offset %d", v)
	}
	return uint32(v), nil
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}

// toObject converts untyped Go data (maps, slices, scalars) to Risor.
func toObject(v any) object.Object {
	switch val := v.(type) {
	case nil:
		return object.Nil
	case map[string]any:
		m := make(map[string]object.Object, len(val))
		for k, e := range val {
			m[k] = toObject(e)
		}
		return object.NewMap(m)
	case []any:
		l := make([]object.Object, len(val))
		for i, e := range val {
			l[i] = toObject(e)
		}
		return object.NewList(l)
	case string:
		return object.NewString(val)
	case bool:
		return object.NewBool(val)
	case int:
		return object.NewInt(int64(val))
	case int64:
		return object.NewInt(val)
	case uint32:
		return object.NewInt(int64(val))
	case float64:
		return object.NewFloat(val)
	default:
		return object.NewString(fmt.Sprintf("%v", val))
	}
}
