// Package options is a typed, string keyed configuration and results map.
// A key may be present with a type but no value, which is distinct from the
// key being absent.
package options

import (
	"fmt"
	"sort"
	"strconv"
)

type Type int

const (
	Int32 Type = iota
	Double
	String
	Bool
)

func (t Type) String() string {
	switch t {
	case Int32:
		return "int32"
	case Double:
		return "double"
	case String:
		return "string"
	case Bool:
		return "bool"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// Status is the outcome of a lookup.
type Status int

const (
	KeySet Status = iota
	KeyExists
	KeyDoesNotExist
)

func (s Status) String() string {
	switch s {
	case KeySet:
		return "set"
	case KeyExists:
		return "exists"
	default:
		return "does not exist"
	}
}

// Option is a single typed entry. A nil value means present but unset.
type Option struct {
	Type  Type
	value any
}

func (o Option) HasValue() bool { return o.value != nil }

func (o Option) Value() any { return o.value }

func (o Option) String() string {
	switch v := o.value.(type) {
	case nil:
		return "<unset>"
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// Options is not safe for concurrent mutation.
type Options struct {
	m map[string]Option
}

func New() *Options {
	return &Options{m: make(map[string]Option)}
}

func (o *Options) SetInt32(key string, v int32)    { o.m[key] = Option{Type: Int32, value: v} }
func (o *Options) SetDouble(key string, v float64) { o.m[key] = Option{Type: Double, value: v} }
func (o *Options) SetString(key string, v string)  { o.m[key] = Option{Type: String, value: v} }
func (o *Options) SetBool(key string, v bool)      { o.m[key] = Option{Type: Bool, value: v} }

// SetType declares key with type t and clears any value it held.
func (o *Options) SetType(key string, t Type) {
	o.m[key] = Option{Type: t}
}

func (o *Options) Get(key string) (Option, Status) {
	opt, ok := o.m[key]
	if !ok {
		return Option{}, KeyDoesNotExist
	}
	if opt.value == nil {
		return opt, KeyExists
	}
	return opt, KeySet
}

// GetString returns KeySet only when key holds a string value.
func (o *Options) GetString(key string) (string, Status) {
	opt, st := o.Get(key)
	if st != KeySet {
		return "", st
	}
	s, ok := opt.value.(string)
	if !ok {
		return "", KeyExists
	}
	return s, KeySet
}

func (o *Options) GetDouble(key string) (float64, Status) {
	opt, st := o.Get(key)
	if st != KeySet {
		return 0, st
	}
	switch v := opt.value.(type) {
	case float64:
		return v, KeySet
	case int32:
		return float64(v), KeySet
	}
	return 0, KeyExists
}

func (o *Options) GetInt32(key string) (int32, Status) {
	opt, st := o.Get(key)
	if st != KeySet {
		return 0, st
	}
	v, ok := opt.value.(int32)
	if !ok {
		return 0, KeyExists
	}
	return v, KeySet
}

func (o *Options) GetBool(key string) (bool, Status) {
	opt, st := o.Get(key)
	if st != KeySet {
		return false, st
	}
	v, ok := opt.value.(bool)
	if !ok {
		return false, KeyExists
	}
	return v, KeySet
}

// Keys returns the keys in sorted order.
func (o *Options) Keys() []string {
	keys := make([]string, 0, len(o.m))
	for k := range o.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (o *Options) Len() int { return len(o.m) }

// Merge copies every entry of other into o, overwriting existing keys.
func (o *Options) Merge(other *Options) {
	if other == nil {
		return
	}
	for k, v := range other.m {
		o.m[k] = v
	}
}

func (o *Options) Clone() *Options {
	c := New()
	c.Merge(o)
	return c
}

// Map flattens the set entries into plain Go values, dropping unset keys.
func (o *Options) Map() map[string]any {
	out := make(map[string]any, len(o.m))
	for k, v := range o.m {
		if v.value != nil {
			out[k] = v.value
		}
	}
	return out
}
