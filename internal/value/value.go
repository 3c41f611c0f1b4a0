package value

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// ErrNotInteger is returned by AsInt for values with no integer form.
var ErrNotInteger = errors.New("value: expected integer")

// Value is any payload with a canonical string form.
type Value interface {
	String() string
}

// DeepCopier is implemented by composite values that know how to duplicate
// themselves without sharing mutable sub-structure.
type DeepCopier interface {
	Value
	DeepCopy() Value
}

// DupFunc duplicates a value of one registered concrete type.
type DupFunc func(Value) Value

var (
	dupMu sync.RWMutex
	dups  = make(map[reflect.Type]DupFunc)
)

// Register installs fn as the duplicator for values with the same concrete
// type as sample. A later registration for the same type replaces the
// earlier one; a nil fn removes it.
func Register(sample Value, fn DupFunc) {
	t := reflect.TypeOf(sample)
	dupMu.Lock()
	defer dupMu.Unlock()
	if fn == nil {
		delete(dups, t)
		return
	}
	dups[t] = fn
}

func lookupDup(v Value) (DupFunc, bool) {
	dupMu.RLock()
	defer dupMu.RUnlock()
	fn, ok := dups[reflect.TypeOf(v)]
	return fn, ok
}

// Copy returns a duplicate of v that shares no mutable state with it.
func Copy(v Value) Value {
	switch v.(type) {
	case nil:
		return nil
	case String, Int, Float, Bool:
		return v
	}
	if fn, ok := lookupDup(v); ok {
		return fn(v)
	}
	if dc, ok := v.(DeepCopier); ok {
		return dc.DeepCopy()
	}
	return String(v.String())
}

// String is a text scalar.
type String string

func (s String) String() string { return string(s) }

// Int is an integer scalar.
type Int int64

func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

// Float is a floating point scalar.
type Float float64

func (f Float) String() string { return strconv.FormatFloat(float64(f), 'g', -1, 64) }

// Bool is a boolean scalar rendered as 1 or 0.
type Bool bool

func (b Bool) String() string {
	if b {
		return "1"
	}
	return "0"
}

// AsInt interprets v as an integer.
func AsInt(v Value) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, fmt.Errorf("%w but got empty value", ErrNotInteger)
	case Int:
		return int64(x), nil
	case Bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	s := strings.TrimSpace(v.String())
	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w but got %q", ErrNotInteger, s)
	}
	return n, nil
}

// AsList interprets v as a list. Lists are returned as-is; any other value
// is parsed from its string form.
func AsList(v Value) (List, error) {
	switch x := v.(type) {
	case nil:
		return List{}, nil
	case List:
		return x, nil
	}
	elems, err := ParseList(v.String())
	if err != nil {
		return nil, err
	}
	l := make(List, len(elems))
	for i, e := range elems {
		l[i] = String(e)
	}
	return l, nil
}

// Of converts a Go scalar to a Value. Values pass through; anything else is
// stored by its fmt %v form.
func Of(x any) Value {
	switch v := x.(type) {
	case nil:
		return String("")
	case Value:
		return v
	case string:
		return String(v)
	case int:
		return Int(v)
	case int64:
		return Int(v)
	case int32:
		return Int(v)
	case float64:
		return Float(v)
	case float32:
		return Float(v)
	case bool:
		return Bool(v)
	case []string:
		l := make(List, len(v))
		for i, s := range v {
			l[i] = String(s)
		}
		return l
	default:
		return String(fmt.Sprint(v))
	}
}
