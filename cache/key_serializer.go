package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator defines the delimiter between namespace, method and argument segments.
const KeySeparator = ":"

// maxPlainArgsLen is the longest argument segment kept verbatim; longer ones are hashed.
const maxPlainArgsLen = 96

// namespacedKeySerializer builds keys of the form namespace:method:args. Argument
// segments are human readable for short scalar args (so single-entity keys such as
// products:item:<id> can be deleted exactly) and collapse to an xxhash digest otherwise.
type namespacedKeySerializer struct {
	namespace string
}

// NewKeySerializer creates a serializer whose keys all live under namespace.
func NewKeySerializer(namespace string) KeySerializer {
	return &namespacedKeySerializer{namespace: namespace}
}

// NewDefaultKeySerializer creates a serializer without namespace.
func NewDefaultKeySerializer() KeySerializer {
	return &namespacedKeySerializer{}
}

// SerializeKey builds a cache key from method name and args.
func (s *namespacedKeySerializer) SerializeKey(method string, args ...any) string {
	var b strings.Builder
	if s.namespace != "" {
		b.WriteString(s.namespace)
		b.WriteString(KeySeparator)
	}
	b.WriteString(method)

	if len(args) == 0 {
		return b.String()
	}

	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = serializeValue(arg)
	}
	joined := strings.Join(parts, KeySeparator)

	b.WriteString(KeySeparator)
	if len(joined) > maxPlainArgsLen || strings.ContainsAny(joined, " \t\n") {
		b.WriteString("h")
		b.WriteString(strconv.FormatUint(xxhash.Sum64String(joined), 16))
	} else {
		b.WriteString(joined)
	}
	return b.String()
}

// serializeValue handles individual argument serialization based on type.
func serializeValue(v any) string {
	if v == nil {
		return "nil"
	}

	if stringer, ok := v.(fmt.Stringer); ok {
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Ptr && rv.IsNil() {
			return "nil"
		}
		return stringer.String()
	}

	rv := reflect.ValueOf(v)
	rt := rv.Type()

	switch rt.Kind() {
	case reflect.Func:
		return fmt.Sprintf("func:%p", v)
	case reflect.Ptr:
		if rv.IsNil() {
			return "nil"
		}
		return serializeValue(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return "[]"
		}
		return serializeList(rv)
	case reflect.Array:
		return serializeList(rv)
	case reflect.Map:
		if rv.IsNil() {
			return "{}"
		}
		return serializeMap(rv)
	case reflect.Struct:
		return serializeStruct(rv, rt)
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String:
		return fmt.Sprintf("%v", v)
	}

	return jsonFallback(v)
}

func serializeList(rv reflect.Value) string {
	parts := make([]string, rv.Len())
	for i := range parts {
		parts[i] = serializeValue(rv.Index(i).Interface())
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// serializeMap sorts entries by their serialized key for determinism.
func serializeMap(rv reflect.Value) string {
	pairs := make([]string, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		pairs = append(pairs, serializeValue(iter.Key().Interface())+"="+serializeValue(iter.Value().Interface()))
	}
	sort.Strings(pairs)
	return "{" + strings.Join(pairs, ",") + "}"
}

// serializeStruct keeps exported fields with their names; zero values are skipped so
// adding an optional filter field does not change existing keys.
func serializeStruct(rv reflect.Value, rt reflect.Type) string {
	parts := make([]string, 0, rv.NumField())
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		fv := rv.Field(i)
		if fv.IsZero() {
			continue
		}
		parts = append(parts, field.Name+"="+serializeValue(fv.Interface()))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func jsonFallback(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "fallback:" + reflect.TypeOf(v).String()
	}
	return string(data)
}
