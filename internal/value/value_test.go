package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type opaque struct{ parts []string }

func (o *opaque) String() string { return "opaque" }

type counted struct{ n *int }

func (c counted) String() string { return "counted" }

func TestCopyScalars(t *testing.T) {
	assert.Equal(t, String("x"), Copy(String("x")))
	assert.Equal(t, Int(7), Copy(Int(7)))
	assert.Equal(t, Float(1.5), Copy(Float(1.5)))
	assert.Equal(t, Bool(true), Copy(Bool(true)))
	assert.Nil(t, Copy(nil))
}

func TestCopyListIsIndependent(t *testing.T) {
	inner := List{String("b"), String("c")}
	orig := List{String("a"), inner}

	dup := Copy(orig).(List)
	dup[1].(List)[0] = String("changed")

	assert.Equal(t, String("b"), inner[0])
	assert.Equal(t, "a {b c}", orig.String())
}

func TestCopyDictIsIndependent(t *testing.T) {
	d := NewDict()
	d.Set("k", List{String("v")})
	d.Set("n", Int(1))

	dup := Copy(d).(*Dict)
	dup.Set("n", Int(2))
	l, _ := dup.Get("k")
	l.(List)[0] = String("other")

	n, _ := d.Get("n")
	assert.Equal(t, Int(1), n)
	orig, _ := d.Get("k")
	assert.Equal(t, String("v"), orig.(List)[0])
	assert.Equal(t, []string{"k", "n"}, dup.Keys())
}

func TestCopyFallsBackToString(t *testing.T) {
	got := Copy(&opaque{parts: []string{"a"}})
	assert.Equal(t, String("opaque"), got)
}

func TestRegisteredDuplicator(t *testing.T) {
	calls := 0
	Register(counted{}, func(v Value) Value {
		calls++
		n := *v.(counted).n
		return counted{n: &n}
	})
	t.Cleanup(func() { Register(counted{}, nil) })

	n := 3
	dup := Copy(counted{n: &n}).(counted)
	*dup.n = 9

	assert.Equal(t, 1, calls)
	assert.Equal(t, 3, n)
}

func TestAsInt(t *testing.T) {
	n, err := AsInt(String(" 42 "))
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	n, err = AsInt(Int(-3))
	require.NoError(t, err)
	assert.Equal(t, int64(-3), n)

	_, err = AsInt(String("abc"))
	assert.ErrorIs(t, err, ErrNotInteger)
}

func TestAsList(t *testing.T) {
	l, err := AsList(String("a {b c} d"))
	require.NoError(t, err)
	assert.Equal(t, List{String("a"), String("b c"), String("d")}, l)

	same := List{Int(1)}
	l, err = AsList(same)
	require.NoError(t, err)
	assert.Equal(t, same, l)
}

func TestOf(t *testing.T) {
	assert.Equal(t, String("s"), Of("s"))
	assert.Equal(t, Int(3), Of(3))
	assert.Equal(t, Float(2.5), Of(2.5))
	assert.Equal(t, List{String("a"), String("b")}, Of([]string{"a", "b"}))
}
