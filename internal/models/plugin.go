package models

import (
	"encoding/json"
	"fmt"
)

// PluginKind enumerates the shapes a PluginValue can take.
type PluginKind uint8

const (
	PluginNull PluginKind = iota
	PluginString
	PluginNumber
	PluginBool
	PluginList
	PluginObject
)

// PluginValue is a closed JSON-like value carried through the codec without
// interpretation. The zero value is null.
type PluginValue struct {
	kind PluginKind
	str  string
	num  float64
	b    bool
	list []PluginValue
	obj  map[string]PluginValue
}

// PluginData is the opaque per-item plugin metadata bag.
type PluginData map[string]PluginValue

// Constructors for each variant.
func NullValue() PluginValue            { return PluginValue{} }
func StringValue(s string) PluginValue  { return PluginValue{kind: PluginString, str: s} }
func NumberValue(n float64) PluginValue { return PluginValue{kind: PluginNumber, num: n} }
func BoolValue(b bool) PluginValue      { return PluginValue{kind: PluginBool, b: b} }

func ListValue(v ...PluginValue) PluginValue {
	return PluginValue{kind: PluginList, list: v}
}

func ObjectValue(m map[string]PluginValue) PluginValue {
	return PluginValue{kind: PluginObject, obj: m}
}

// Kind returns the variant held by v.
func (v PluginValue) Kind() PluginKind { return v.kind }

// AsString returns the string payload and whether v holds a string.
func (v PluginValue) AsString() (string, bool) { return v.str, v.kind == PluginString }

// AsNumber returns the numeric payload and whether v holds a number.
func (v PluginValue) AsNumber() (float64, bool) { return v.num, v.kind == PluginNumber }

// AsBool returns the boolean payload and whether v holds a bool.
func (v PluginValue) AsBool() (bool, bool) { return v.b, v.kind == PluginBool }

// AsList returns the elements and whether v holds a list.
func (v PluginValue) AsList() ([]PluginValue, bool) { return v.list, v.kind == PluginList }

// AsObject returns the members and whether v holds an object.
func (v PluginValue) AsObject() (map[string]PluginValue, bool) { return v.obj, v.kind == PluginObject }

// Equal reports deep equality.
func (v PluginValue) Equal(o PluginValue) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case PluginString:
		return v.str == o.str
	case PluginNumber:
		return v.num == o.num
	case PluginBool:
		return v.b == o.b
	case PluginList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case PluginObject:
		return PluginData(v.obj).Equal(PluginData(o.obj))
	}
	return true
}

// Equal reports whether both bags hold the same keys and values.
func (d PluginData) Equal(o PluginData) bool {
	if len(d) != len(o) {
		return false
	}
	for k, v := range d {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes v; object keys come out sorted.
func (v PluginValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.toAny())
}

// UnmarshalJSON decodes any JSON value into v.
func (v *PluginValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	conv, err := pluginFromAny(raw)
	if err != nil {
		return err
	}
	*v = conv
	return nil
}

func (v PluginValue) toAny() any {
	switch v.kind {
	case PluginString:
		return v.str
	case PluginNumber:
		return v.num
	case PluginBool:
		return v.b
	case PluginList:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = e.toAny()
		}
		return out
	case PluginObject:
		out := make(map[string]any, len(v.obj))
		for k, e := range v.obj {
			out[k] = e.toAny()
		}
		return out
	}
	return nil
}

func pluginFromAny(raw any) (PluginValue, error) {
	switch t := raw.(type) {
	case nil:
		return NullValue(), nil
	case string:
		return StringValue(t), nil
	case float64:
		return NumberValue(t), nil
	case bool:
		return BoolValue(t), nil
	case []any:
		list := make([]PluginValue, len(t))
		for i, e := range t {
			c, err := pluginFromAny(e)
			if err != nil {
				return PluginValue{}, err
			}
			list[i] = c
		}
		return ListValue(list...), nil
	case map[string]any:
		obj := make(map[string]PluginValue, len(t))
		for k, e := range t {
			c, err := pluginFromAny(e)
			if err != nil {
				return PluginValue{}, err
			}
			obj[k] = c
		}
		return ObjectValue(obj), nil
	}
	return PluginValue{}, fmt.Errorf("models: unsupported plugin value %T", raw)
}
