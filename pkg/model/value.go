package model

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// ValueKind identifies the variant held by a Value
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindMap
)

// Value is a tagged union for command arguments decoded from model
// output. Argument values are untyped at the decode layer; each command
// validates its own required keys at dispatch time.
type Value struct {
	kind    ValueKind
	str     string
	num     float64
	boolean bool
	list    []Value
	obj     map[string]Value
}

func StringValue(s string) Value  { return Value{kind: KindString, str: s} }
func NumberValue(f float64) Value { return Value{kind: KindNumber, num: f} }
func BoolValue(b bool) Value      { return Value{kind: KindBool, boolean: b} }

func ListValue(vs []Value) Value {
	return Value{kind: KindList, list: vs}
}

func MapValue(m map[string]Value) Value {
	return Value{kind: KindMap, obj: m}
}

// ValueOf converts a value produced by encoding/json into a Value
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return Value{}
	case string:
		return StringValue(x)
	case float64:
		return NumberValue(x)
	case bool:
		return BoolValue(x)
	case []any:
		list := make([]Value, 0, len(x))
		for _, item := range x {
			list = append(list, ValueOf(item))
		}
		return ListValue(list)
	case map[string]any:
		obj := make(map[string]Value, len(x))
		for k, item := range x {
			obj[k] = ValueOf(item)
		}
		return MapValue(obj)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return StringValue(x.String())
		}
		return NumberValue(f)
	default:
		return Value{}
	}
}

func (v Value) Kind() ValueKind { return v.kind }

// String renders the value as plain text. String values are returned
// as-is; composite values are rendered as JSON.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.boolean)
	case KindList, KindMap:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return ""
	}
}

func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }
func (v Value) AsNumber() (float64, bool) {
	return v.num, v.kind == KindNumber
}
func (v Value) AsBool() (bool, bool)    { return v.boolean, v.kind == KindBool }
func (v Value) AsList() ([]Value, bool) { return v.list, v.kind == KindList }
func (v Value) AsMap() (map[string]Value, bool) {
	return v.obj, v.kind == KindMap
}

// Interface converts the value back to a plain Go representation
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.boolean
	case KindList:
		list := make([]any, 0, len(v.list))
		for _, item := range v.list {
			list = append(list, item.Interface())
		}
		return list
	case KindMap:
		obj := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			obj[k] = item.Interface()
		}
		return obj
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = ValueOf(raw)
	return nil
}

// Args is the argument mapping of a decoded command
type Args map[string]Value

// ArgsFrom converts a decoded JSON object into Args
func ArgsFrom(m map[string]any) Args {
	args := make(Args, len(m))
	for k, v := range m {
		args[k] = ValueOf(v)
	}
	return args
}

// GetString returns the rendered text of the named argument
func (a Args) GetString(key string) (string, bool) {
	v, ok := a[key]
	if !ok {
		return "", false
	}
	return v.String(), true
}

// Has reports whether the named argument is present
func (a Args) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// Keys returns the argument names in sorted order
func (a Args) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Interface converts the arguments back to a plain map
func (a Args) Interface() map[string]any {
	m := make(map[string]any, len(a))
	for k, v := range a {
		m[k] = v.Interface()
	}
	return m
}

// JSON renders the arguments as a JSON object for transcripts and logs
func (a Args) JSON() string {
	if len(a) == 0 {
		return "{}"
	}
	data, err := json.Marshal(map[string]Value(a))
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Summary renders the arguments as "key=value" pairs for display
func (a Args) Summary() string {
	parts := make([]string, 0, len(a))
	for _, k := range a.Keys() {
		parts = append(parts, k+"="+a[k].String())
	}
	return strings.Join(parts, ", ")
}
